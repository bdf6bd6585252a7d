package infra

import (
	"errors"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog/log"
)

var (
	Scylla *ScyllaConnectors
)

type ScyllaClusterConnection struct {
	Session *gocql.Session
	Meta    map[string]interface{}
}

func (c *ScyllaClusterConnection) GetConn() (interface{}, error) {
	if c.Session == nil || c.Session.Closed() {
		return nil, errors.New("connection nil or closed")
	}
	return c.Session, nil
}

func (c *ScyllaClusterConnection) GetMeta() (map[string]interface{}, error) {
	if c.Meta == nil {
		return nil, errors.New("meta nil")
	}
	return c.Meta, nil
}

func (c *ScyllaClusterConnection) IsLive() bool {
	return !c.Session.Closed()
}

type ScyllaConnectors struct {
	ScyllaConnections map[int]ConnectionFacade
}

func (s *ScyllaConnectors) GetConnection(configId int) (ConnectionFacade, error) {
	conn, ok := s.ScyllaConnections[configId]
	if !ok {
		return nil, errors.New("connection not found")
	}
	return conn, nil
}

func initScyllaClusterConns() {
	cfg, err := BuildClusterConfigFromEnv("SCYLLA")
	if err != nil {
		log.Error().Err(err).Msg("Error building scylla cluster config")
		panic(err)
	}
	session, err := cfg.CreateSession()
	if err != nil {
		log.Error().Err(err).Msg("Error connecting scylla db")
		panic(err)
	}
	if _, ok := ConfIdDBTypeMap[DefaultScyllaConfId]; ok {
		log.Error().Msg("Duplicate config id")
		panic("Duplicate config id")
	}
	ConfIdDBTypeMap[DefaultScyllaConfId] = DBTypeScylla
	conn := &ScyllaClusterConnection{
		Session: session,
		Meta: map[string]interface{}{
			"configId": DefaultScyllaConfId,
			"keyspace": cfg.Keyspace,
			"type":     DBTypeScylla,
		},
	}
	Scylla = &ScyllaConnectors{
		ScyllaConnections: map[int]ConnectionFacade{
			DefaultScyllaConfId: conn,
		},
	}
}
