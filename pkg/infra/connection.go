package infra

type DBType string

const (
	DBTypeScylla        DBType = "scylla"
	DBTypeMySQL         DBType = "mysql"
	DBTypeRedis         DBType = "redis"
	DefaultSqlConfId           = 0
	DefaultScyllaConfId        = 1
	DefaultRedisConfId         = 2
)

// ConnectionFacade is a common interface for all database connections
type ConnectionFacade interface {
	// GetConn returns the database connection
	GetConn() (interface{}, error)

	// GetMeta returns metadata about the connection
	GetMeta() (map[string]interface{}, error)
	IsLive() bool
}

type Connector interface {
	GetConnection(configId int) (ConnectionFacade, error)
}
