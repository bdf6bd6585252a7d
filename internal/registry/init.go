package registry

import (
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/internal/configs"
	"github.com/Meesho/BharatMLStack/weaver/pkg/etcd"
	"github.com/rs/zerolog/log"
)

const (
	ProviderYAML = "yaml"
	ProviderEtcd = "etcd"
)

var (
	instance Manager
	once     sync.Once
)

// Init builds the registry manager once, choosing the provider from
// REGISTRY_PROVIDER. With the etcd provider, any change under the registry
// tree invalidates the caches.
func Init(appConfig configs.Configs) {
	once.Do(func() {
		switch appConfig.RegistryProvider {
		case ProviderEtcd:
			etcdInstance := etcd.Instance()
			instance = NewManager(NewEtcdProvider(etcdInstance), appConfig.RegistryCacheMaxItems)
			if err := etcdInstance.RegisterWatchPathCallback("", instance.Reload); err != nil {
				log.Error().Err(err).Msg("failed to register registry watch callback")
			}
		default:
			instance = NewManager(NewYAMLProvider(appConfig.RegistryPath), appConfig.RegistryCacheMaxItems)
		}
		log.Info().Str("provider", appConfig.RegistryProvider).Msg("registry manager initialized")
	})
}

func Instance() Manager {
	if instance == nil {
		log.Panic().Msg("registry manager is not initialized")
	}
	return instance
}

// SetMockInstance overrides the singleton for tests.
func SetMockInstance(mock Manager) {
	instance = mock
}
