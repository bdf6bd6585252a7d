package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Column types understood by the feature store decoder.
const (
	TypeString        = "string"
	TypeDouble        = "double"
	TypeBigInt        = "bigint"
	TypeFP16Vector    = "fp16vector"
	TypeFloat32Vector = "float32vector"
)

func BytesToFloat64LE(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid byte array length: expected 8 bytes, got %d", len(b))
	}
	var result float64
	buf := bytes.NewReader(b)
	err := binary.Read(buf, binary.LittleEndian, &result)
	return result, err
}

func BytesToFloat32LE(b []byte) (float32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("invalid byte array length: expected 4 bytes, got %d", len(b))
	}
	var result float32
	buf := bytes.NewReader(b)
	err := binary.Read(buf, binary.LittleEndian, &result)
	return result, err
}

func BytesToInt64LE(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid byte array length: expected 8 bytes, got %d", len(b))
	}
	var result int64
	buf := bytes.NewReader(b)
	err := binary.Read(buf, binary.LittleEndian, &result)
	return result, err
}

func Float64ToBytesLE(value float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(value))
	return b
}

func Int64ToBytesLE(value int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(value))
	return b
}

// Float16AsFP32 decodes a 2-byte little-endian half-precision float.
func Float16AsFP32(b []byte) (float32, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("invalid byte array length: expected 2 bytes for float16, got %d", len(b))
	}
	return float16.Frombits(binary.LittleEndian.Uint16(b)).Float32(), nil
}

// Float32ToFloat16Bytes encodes a float32 as a 2-byte little-endian half-precision float.
func Float32ToFloat16Bytes(value float32) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, float16.Fromfloat32(value).Bits())
	return b
}

// DecodeFP16Vector decodes a packed vector of 2-byte half-precision floats.
func DecodeFP16Vector(b []byte) ([]float32, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("invalid byte slice length %d: must be a multiple of 2", len(b))
	}
	n := len(b) / 2
	result := make([]float32, n)
	for i := 0; i < n; i++ {
		offset := i * 2
		result[i] = float16.Frombits(binary.LittleEndian.Uint16(b[offset : offset+2])).Float32()
	}
	return result, nil
}

// DecodeFloat32Vector decodes a packed vector of 4-byte little-endian floats.
func DecodeFloat32Vector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid byte slice length %d: must be a multiple of 4", len(b))
	}
	n := len(b) / 4
	result := make([]float32, n)
	for i := 0; i < n; i++ {
		offset := i * 4
		result[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[offset : offset+4]))
	}
	return result, nil
}

// EncodeFP16Vector packs float32 values into a 2-byte-per-element vector.
func EncodeFP16Vector(values []float32) []byte {
	b := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[i*2:], float16.Fromfloat32(v).Bits())
	}
	return b
}

// EncodeFloat32Vector packs float32 values into a 4-byte-per-element vector.
func EncodeFloat32Vector(values []float32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeColumn decodes a raw column value according to its declared type.
// Strings are stored as UTF-8 bytes, scalars as little-endian fixed width
// values and vectors as packed element arrays.
func DecodeColumn(b []byte, columnType string) (interface{}, error) {
	switch columnType {
	case TypeString:
		return string(b), nil
	case TypeDouble:
		return BytesToFloat64LE(b)
	case TypeBigInt:
		return BytesToInt64LE(b)
	case TypeFP16Vector:
		return DecodeFP16Vector(b)
	case TypeFloat32Vector:
		return DecodeFloat32Vector(b)
	default:
		return nil, fmt.Errorf("unsupported column type: %s", columnType)
	}
}
