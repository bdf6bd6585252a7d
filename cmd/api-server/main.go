package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/configs"
	"github.com/Meesho/BharatMLStack/weaver/internal/middleware"
	"github.com/Meesho/BharatMLStack/weaver/internal/orchestrator/handler"
	"github.com/Meesho/BharatMLStack/weaver/internal/orchestrator/route"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources/database"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources/featurestore"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources/model"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources/restapi"
	"github.com/Meesho/BharatMLStack/weaver/pkg/etcd"
	"github.com/Meesho/BharatMLStack/weaver/pkg/httpframework"
	"github.com/Meesho/BharatMLStack/weaver/pkg/infra"
	"github.com/Meesho/BharatMLStack/weaver/pkg/logger"
	"github.com/Meesho/BharatMLStack/weaver/pkg/metric"
	"github.com/Meesho/BharatMLStack/weaver/pkg/scheduler"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

type AppConfig struct {
	Configs        configs.Configs
	DynamicConfigs configs.DynamicConfigs
}

func (cfg *AppConfig) GetStaticConfig() interface{} {
	return &cfg.Configs
}

func (cfg *AppConfig) GetDynamicConfig() interface{} {
	return &cfg.DynamicConfigs
}

var (
	appConfig AppConfig
)

func main() {
	configs.InitConfig(&appConfig)

	// Initialize logger first (needed for logging)
	logger.Init(appConfig.Configs)
	metric.Init(appConfig.Configs)

	// Database initialization; backends without configuration are skipped
	infra.InitDBConnectors(appConfig.Configs)

	if appConfig.Configs.RegistryProvider == registry.ProviderEtcd {
		etcd.Init(appConfig.Configs, appConfig.Configs.RegistryEtcdBasePath)
	}
	registry.Init(appConfig.Configs)
	registryManager := registry.Instance()

	models := model.NewManager(modelConfig(appConfig.Configs))
	executor := handler.NewExecutor(buildAdapters(registryManager, models)...)
	processor := handler.NewProcessor(registryManager, executor, handler.NewTracker())

	// Periodic health sweep over loaded model runtimes
	scheduler.Init(appConfig.Configs, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		models.CheckHealth(ctx)
	})

	middlewares := middleware.NewMiddleware(appConfig.Configs).GetMiddleWares()
	httpframework.Init(middlewares...)
	route.Init(processor, registryManager, models)

	// Use default port if not set (for local testing)
	port := appConfig.Configs.AppPort
	if port == 0 {
		port = 8080
		log.Warn().Int("port", port).Msg("App port not set, defaulting to 8080")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpframework.Instance().Run(":" + strconv.Itoa(port)); err != nil {
			log.Fatal().Err(err).Msg("http server terminated")
		}
	}()
	log.Info().Int("port", port).Msg("orchestrator started")

	sig := <-sigChan
	log.Info().Msgf("Received signal: %v. Shutting down gracefully...", sig)

	// Model runtimes are child processes and containers; leaving them
	// behind would leak ports and disk.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	models.UnloadAllModels(ctx)
}

// buildAdapters wires one adapter per configured backend. The database and
// feature store adapters need live connections and are skipped when their
// backend is not configured; api and ml sources only need HTTP.
func buildAdapters(registryManager registry.Manager, models *model.Manager) []sources.Adapter {
	adapters := []sources.Adapter{
		restapi.NewAdapter(registryManager),
		model.NewAdapter(registryManager, models),
	}

	if infra.SQL != nil {
		connection, err := infra.SQL.GetConnection()
		if err != nil {
			log.Panic().Err(err).Msg("failed to get sql connection")
		}
		store, err := database.NewStore(connection.(*infra.SQLConnection))
		if err != nil {
			log.Panic().Err(err).Msg("failed to build database store")
		}
		adapters = append(adapters, database.NewAdapter(store, registryManager))
	} else {
		log.Warn().Msg("mysql not configured, database sources disabled")
	}

	if infra.Scylla != nil {
		connection, err := infra.Scylla.GetConnection(infra.DefaultScyllaConfId)
		if err != nil {
			log.Panic().Err(err).Msg("failed to get scylla connection")
		}
		rows, err := featurestore.NewStore(connection.(*infra.ScyllaClusterConnection))
		if err != nil {
			log.Panic().Err(err).Msg("failed to build feature store")
		}
		adapters = append(adapters, featurestore.NewAdapter(registryManager, rows, rowCache()))
	} else {
		log.Warn().Msg("scylla not configured, feast sources disabled")
	}

	return adapters
}

// rowCache returns the look-aside cache for feature rows, or nil when redis
// is not configured.
func rowCache() featurestore.RowCache {
	if infra.Redis == nil {
		log.Warn().Msg("redis not configured, feature row caching disabled")
		return nil
	}
	connection, err := infra.Redis.GetConnection(infra.DefaultRedisConfId)
	if err != nil {
		log.Panic().Err(err).Msg("failed to get redis connection")
	}
	cache, err := featurestore.NewRedisRowCache(connection.(*infra.RedisConnection))
	if err != nil {
		log.Panic().Err(err).Msg("failed to build feature row cache")
	}
	return cache
}

func modelConfig(config configs.Configs) model.Config {
	modelCfg := model.Config{
		StartupDelay: time.Duration(config.ModelStartupDelaySeconds) * time.Second,
		StopTimeout:  time.Duration(config.ModelStopTimeoutSeconds) * time.Second,
		LogDir:       config.ModelLogDir,
		DockerBinary: config.DockerBinary,
	}
	if config.ModelHealthTimeoutMs > 0 {
		modelCfg.HealthProbe = model.HTTPProbe(time.Duration(config.ModelHealthTimeoutMs) * time.Millisecond)
	}
	return modelCfg
}
