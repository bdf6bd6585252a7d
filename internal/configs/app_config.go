package configs

type Configs struct {
	// App configuration
	AppName               string  `mapstructure:"app_name"`
	AppEnv                string  `mapstructure:"app_env"`
	AppGcPercentage       int     `mapstructure:"app_gc_percentage"`
	AppLogLevel           string  `mapstructure:"app_log_level"`
	AppMetricSamplingRate float64 `mapstructure:"app_metric_sampling_rate"`
	AppPort               int     `mapstructure:"app_port"`

	// Auth configuration
	AuthEnabled      bool   `mapstructure:"auth_enabled"`
	AuthBearerTokens string `mapstructure:"auth_bearer_tokens"`

	// Registry configuration
	RegistryProvider      string `mapstructure:"registry_provider"`
	RegistryPath          string `mapstructure:"registry_path"`
	RegistryEtcdBasePath  string `mapstructure:"registry_etcd_base_path"`
	RegistryCacheMaxItems int64  `mapstructure:"registry_cache_max_items"`

	// MySQL configuration
	MysqlDbName            string `mapstructure:"mysql_db_name"`
	MysqlMasterHost        string `mapstructure:"mysql_master_host"`
	MysqlMasterMaxPoolSize string `mapstructure:"mysql_master_max_pool_size"`
	MysqlMasterMinPoolSize string `mapstructure:"mysql_master_min_pool_size"`
	MysqlMasterPassword    string `mapstructure:"mysql_master_password"`
	MysqlMasterPort        int    `mapstructure:"mysql_master_port"`
	MysqlMasterUsername    string `mapstructure:"mysql_master_username"`
	MysqlSlaveHost         string `mapstructure:"mysql_slave_host"`
	MysqlSlaveMaxPoolSize  string `mapstructure:"mysql_slave_max_pool_size"`
	MysqlSlaveMinPoolSize  string `mapstructure:"mysql_slave_min_pool_size"`
	MysqlSlavePassword     string `mapstructure:"mysql_slave_password"`
	MysqlSlavePort         int    `mapstructure:"mysql_slave_port"`
	MysqlSlaveUsername     string `mapstructure:"mysql_slave_username"`

	// Scylla configuration
	ScyllaContactPoints string `mapstructure:"scylla_contact_points"`
	ScyllaKeyspace      string `mapstructure:"scylla_keyspace"`
	ScyllaUsername      string `mapstructure:"scylla_username"`
	ScyllaPassword      string `mapstructure:"scylla_password"`
	ScyllaPort          int    `mapstructure:"scylla_port"`
	ScyllaNumConns      int    `mapstructure:"scylla_num_conns"`
	ScyllaTimeoutMs     int    `mapstructure:"scylla_timeout_ms"`

	// Redis configuration
	RedisHost            string `mapstructure:"redis_host"`
	RedisPort            int    `mapstructure:"redis_port"`
	RedisPassword        string `mapstructure:"redis_password"`
	RedisDb              int    `mapstructure:"redis_db"`
	RedisCacheTtlSeconds int    `mapstructure:"redis_cache_ttl_seconds"`

	// Etcd configuration
	EtcdPassword       string `mapstructure:"etcd_password"`
	EtcdServer         string `mapstructure:"etcd_server"`
	EtcdUsername       string `mapstructure:"etcd_username"`
	EtcdWatcherEnabled bool   `mapstructure:"etcd_watcher_enabled"`

	// Model runtime configuration
	ModelStartupDelaySeconds int    `mapstructure:"model_startup_delay_seconds"`
	ModelHealthTimeoutMs     int    `mapstructure:"model_health_timeout_ms"`
	ModelStopTimeoutSeconds  int    `mapstructure:"model_stop_timeout_seconds"`
	ModelLogDir              string `mapstructure:"model_log_dir"`
	DockerBinary             string `mapstructure:"docker_binary"`

	// Other configurations
	HttpClientTimeoutMs     int    `mapstructure:"http_client_timeout_ms"`
	ScheduledCronExpression string `mapstructure:"scheduled_cron_expression"`
}

type DynamicConfigs struct{}
