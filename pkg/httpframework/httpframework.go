package httpframework

import (
	"os"
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	router *gin.Engine
	once   sync.Once
)

// Init initializes gin engine with the given middlewares
// It sets the gin mode to release if the environment is production and use the middleware logger and recovery
func Init(middlewares ...gin.HandlerFunc) {
	once.Do(func() {
		env := os.Getenv("APP_ENV")
		if env == "prod" || env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		router = gin.New()
		// Recovery and logging wrap the whole chain so rejected and
		// panicking requests still produce access logs and metrics.
		chain := append([]gin.HandlerFunc{middleware.HTTPRecovery(), middleware.HTTPLogger()}, middlewares...)
		router.Use(chain...)
	})
}

// Instance returns the httpframework instance
func Instance() *gin.Engine {
	if router == nil {
		log.Fatal().Msg("Router not initialized")
	}
	return router
}
