package infra

import (
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/internal/configs"
)

var (
	mut             sync.Mutex
	ConfIdDBTypeMap = make(map[int]DBType)
)

// InitDBConnectors initializes connections for every backend that has
// configuration present. Backends without configuration are skipped so a
// deployment can run with only the stores its endpoints reference.
func InitDBConnectors(config configs.Configs) {
	mut.Lock()
	defer mut.Unlock()
	if SQL == nil && config.MysqlMasterHost != "" {
		initSQLConns()
	}
	if Scylla == nil && config.ScyllaContactPoints != "" {
		initScyllaClusterConns()
	}
	if Redis == nil && config.RedisHost != "" {
		initRedisConns(config)
	}
}
