package infra

import (
	"errors"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/configs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	Redis *RedisConnectors
)

type RedisConnection struct {
	Client *redis.Client
	Meta   map[string]interface{}
}

func (c *RedisConnection) GetConn() (interface{}, error) {
	if c.Client == nil {
		return nil, errors.New("redis client is nil")
	}
	return c.Client, nil
}

func (c *RedisConnection) GetMeta() (map[string]interface{}, error) {
	if c.Meta == nil {
		return nil, errors.New("meta nil")
	}
	return c.Meta, nil
}

func (c *RedisConnection) IsLive() bool {
	return c.Client != nil
}

type RedisConnectors struct {
	RedisConnections map[int]ConnectionFacade
}

func (r *RedisConnectors) GetConnection(configId int) (ConnectionFacade, error) {
	conn, ok := r.RedisConnections[configId]
	if !ok {
		return nil, errors.New("connection not found")
	}
	return conn, nil
}

func initRedisConns(config configs.Configs) {
	redisOptions := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.RedisHost, config.RedisPort),
		Password:     config.RedisPassword,
		DB:           config.RedisDb,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
	client := redis.NewClient(redisOptions)
	if _, ok := ConfIdDBTypeMap[DefaultRedisConfId]; ok {
		log.Error().Msg("Duplicate config id")
		panic("Duplicate config id")
	}
	ConfIdDBTypeMap[DefaultRedisConfId] = DBTypeRedis
	conn := &RedisConnection{
		Client: client,
		Meta: map[string]interface{}{
			"configId": DefaultRedisConfId,
			"type":     DBTypeRedis,
		},
	}
	Redis = &RedisConnectors{
		RedisConnections: map[int]ConnectionFacade{
			DefaultRedisConfId: conn,
		},
	}
}
