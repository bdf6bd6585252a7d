package route

import (
	"net/http"
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/internal/orchestrator/controller"
	"github.com/Meesho/BharatMLStack/weaver/internal/orchestrator/handler"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources/model"
	"github.com/Meesho/BharatMLStack/weaver/pkg/httpframework"
	"github.com/gin-gonic/gin"
)

var initOrchestratorRouterOnce sync.Once

// Init registers the orchestrator routes.
// Expects http framework to be initialized before calling this function
func Init(processor *handler.Processor, registryManager registry.Manager, models *model.Manager) {
	initOrchestratorRouterOnce.Do(func() {
		ctrl := controller.NewOrchestratorController(processor, registryManager, models)

		httpframework.Instance().GET("/health/self", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"message": "true"})
		})

		api := httpframework.Instance().Group("/api/v1/orchestrator")
		{
			process := api.Group("/process")
			{
				process.GET("/:domain/:operation", ctrl.ProcessGet)
				process.GET("/:domain/:operation/:entity_id", ctrl.ProcessGet)
				process.POST("/:domain/:operation", ctrl.ProcessPost)
				process.POST("/:domain/:operation/:entity_id", ctrl.ProcessPost)
			}

			api.GET("/domains", ctrl.ListDomains)
			api.GET("/executions/:execution_id", ctrl.GetExecution)
			api.POST("/registry/reload", ctrl.ReloadRegistry)

			lifecycle := api.Group("/models")
			{
				lifecycle.GET("", ctrl.ListModels)
				lifecycle.POST("/:source_id/:model_id/load", ctrl.LoadModel)
				lifecycle.POST("/:source_id/:model_id/unload", ctrl.UnloadModel)
			}
		}
	})
}
