package etcd

import (
	"time"
)

const (
	configPath = "/config/"
	timeout    = 5 * time.Second
)

type Etcd interface {
	GetValue(path string) (string, error)
	GetTree(path string) (map[string]string, error)
	SetValue(path string, value interface{}) error
	SetValues(paths map[string]interface{}) error
	CreateNode(path string, value interface{}) error
	CreateNodes(paths map[string]interface{}) error
	IsNodeExist(path string) (bool, error)
	DeleteNode(path string) error
	RegisterWatchPathCallback(path string, callback func() error) error
}
