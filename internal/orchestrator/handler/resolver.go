package handler

import (
	"strings"
)

// Resolve evaluates one parameter value against the request data and prior
// source results. Non-string values and strings without a leading $ pass
// through unchanged. A $-expression containing || is a fallback chain;
// otherwise it is a single reference. Resolution never errors: unknown
// names and paths yield nil.
func Resolve(raw any, requestData, results map[string]any) any {
	text, ok := raw.(string)
	if !ok {
		return raw
	}
	if !strings.HasPrefix(text, "$") {
		return text
	}
	if strings.Contains(text, "||") {
		return resolveFallbackChain(text, requestData, results)
	}
	return resolveReference(text, requestData, results)
}

// ResolveParams applies Resolve to every leaf of a nested params structure,
// returning a new structure of the same shape. The input is never mutated.
func ResolveParams(params map[string]any, requestData, results map[string]any) map[string]any {
	resolved := make(map[string]any, len(params))
	for name, value := range params {
		resolved[name] = resolveValue(value, requestData, results)
	}
	return resolved
}

func resolveValue(value any, requestData, results map[string]any) any {
	switch nested := value.(type) {
	case map[string]any:
		resolved := make(map[string]any, len(nested))
		for key, child := range nested {
			resolved[key] = resolveValue(child, requestData, results)
		}
		return resolved
	case []any:
		resolved := make([]any, len(nested))
		for i, child := range nested {
			resolved[i] = resolveValue(child, requestData, results)
		}
		return resolved
	default:
		return Resolve(value, requestData, results)
	}
}

// resolveFallbackChain evaluates || alternatives left to right. A literal
// alternative is taken the moment it is reached, whether or not it is
// truthy; a reference must resolve to a non-empty value. An exhausted
// chain yields nil.
func resolveFallbackChain(expr string, requestData, results map[string]any) any {
	for _, token := range tokenizeFallbackChain(expr) {
		if token.kind != tokenReference {
			return token.value
		}
		value := resolveReference(token.text, requestData, results)
		if !isEmptyValue(value) {
			return value
		}
	}
	return nil
}

// resolveReference walks a $-prefixed dotted path. The first segment picks
// the namespace: "request" reads the request data, anything else reads a
// prior source result.
func resolveReference(reference string, requestData, results map[string]any) any {
	segments := strings.Split(strings.TrimPrefix(reference, "$"), ".")
	if segments[0] == "" {
		return nil
	}
	if segments[0] == "request" {
		return traversePath(requestData, segments[1:])
	}
	value, ok := results[segments[0]]
	if !ok {
		return nil
	}
	return traversePath(value, segments[1:])
}

// lookupResultsPath resolves a dotted path whose first segment is a source
// name in the results map, as used by response templates and the legacy
// response mapping.
func lookupResultsPath(path string, results map[string]any) any {
	segments := strings.Split(strings.TrimSpace(path), ".")
	if segments[0] == "" {
		return nil
	}
	value, ok := results[segments[0]]
	if !ok {
		return nil
	}
	return traversePath(value, segments[1:])
}

// traversePath descends map keys and all-digit list indexes; a missing key
// or out-of-range index yields nil. A segment literally named path_params
// is skipped when the current map has no such key, so references written
// against the raw request shape keep working for callers that pass
// path-parameter maps directly.
func traversePath(current any, segments []string) any {
	for _, segment := range segments {
		switch value := current.(type) {
		case map[string]any:
			child, ok := value[segment]
			if !ok {
				if segment == "path_params" {
					continue
				}
				return nil
			}
			current = child
		case []any:
			index, ok := parseIndex(segment)
			if !ok || index >= len(value) {
				return nil
			}
			current = value[index]
		case []map[string]any:
			// database rows keep their typed slice shape
			index, ok := parseIndex(segment)
			if !ok || index >= len(value) {
				return nil
			}
			current = value[index]
		default:
			return nil
		}
	}
	return current
}

func parseIndex(segment string) (int, bool) {
	if segment == "" || len(segment) > 9 {
		return 0, false
	}
	index := 0
	for _, r := range segment {
		if r < '0' || r > '9' {
			return 0, false
		}
		index = index*10 + int(r-'0')
	}
	return index, true
}

// isEmptyValue reports nil and empty strings/slices/maps, which fallback
// chains treat as no value.
func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	switch typed := value.(type) {
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	case []map[string]any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	return false
}

// isFalsy extends isEmptyValue with false and zero numbers, matching how
// source conditions are evaluated.
func isFalsy(value any) bool {
	if isEmptyValue(value) {
		return true
	}
	switch typed := value.(type) {
	case bool:
		return !typed
	case int:
		return typed == 0
	case int64:
		return typed == 0
	case float64:
		return typed == 0
	}
	return false
}
