package etcd

import (
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/internal/configs"
	"github.com/rs/zerolog/log"
)

var (
	instance          Etcd
	envEtcdServer     string
	envEtcdUsername   string
	envEtcdPassword   string
	envWatcherEnabled bool
	initEtcdOnce      sync.Once
)

// Init initializes the Etcd client, to be called from main.go
func Init(appConfig configs.Configs, basePath string) {
	initEtcdOnce.Do(func() {
		envEtcdServer = appConfig.EtcdServer
		envEtcdUsername = appConfig.EtcdUsername
		envEtcdPassword = appConfig.EtcdPassword
		envWatcherEnabled = appConfig.EtcdWatcherEnabled
		instance = newV1Etcd(appConfig.AppName, basePath)
	})
}

// Instance returns the Etcd client instance. Ensure that Init is called before calling this function
func Instance() Etcd {
	if instance == nil {
		log.Panic().Msg("etcd client not initialized, call Init first")
	}
	return instance
}

// SetMockInstance sets the mock instance of Etcd client
// This would be handy in places where we are directly using Etcd as etcd.Instance()
func SetMockInstance(mock Etcd) {
	instance = mock
}
