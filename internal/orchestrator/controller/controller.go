package controller

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/orchestrator/handler"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources/model"
	"github.com/Meesho/BharatMLStack/weaver/pkg/api"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	modelScoringDomain    = "model_scoring"
	modelScoringPrefix    = "model_scoring_"
	modelScoringOperation = "predict"

	flagTrace        = "trace"
	flagTiming       = "timing"
	flagHandleErrors = "handle_errors"
)

// validName guards path segments that flow into config lookups, container
// names and log file names.
var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type OrchestratorController interface {
	ProcessGet(ctx *gin.Context)
	ProcessPost(ctx *gin.Context)
	GetExecution(ctx *gin.Context)
	ListDomains(ctx *gin.Context)
	ReloadRegistry(ctx *gin.Context)
	ListModels(ctx *gin.Context)
	LoadModel(ctx *gin.Context)
	UnloadModel(ctx *gin.Context)
}

var (
	orchestratorController OrchestratorController
	orchestratorOnce       sync.Once
)

type V1 struct {
	processor *handler.Processor
	registry  registry.Manager
	models    *model.Manager
}

func NewOrchestratorController(processor *handler.Processor, registryManager registry.Manager, models *model.Manager) OrchestratorController {
	if orchestratorController == nil {
		orchestratorOnce.Do(func() {
			orchestratorController = &V1{
				processor: processor,
				registry:  registryManager,
				models:    models,
			}
		})
	}
	return orchestratorController
}

// ProcessGet runs one configured endpoint. The optional trailing path
// segment is the entity id; everything else the pipeline needs comes from
// query parameters.
func (v *V1) ProcessGet(ctx *gin.Context) {
	v.process(ctx, map[string]any{})
}

// ProcessPost is the body-carrying form of ProcessGet. The body must be a
// JSON object; it is handed to the pipeline untouched.
func (v *V1) ProcessPost(ctx *gin.Context) {
	body := map[string]any{}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		writeAPIError(ctx, api.NewBadRequestError("invalid request body: "+err.Error()))
		return
	}
	v.process(ctx, body)
}

func (v *V1) process(ctx *gin.Context, body map[string]any) {
	domain := ctx.Param("domain")
	operation := ctx.Param("operation")
	entityID := ctx.Param("entity_id")
	if !validName.MatchString(domain) || !validName.MatchString(operation) {
		writeAPIError(ctx, api.NewBadRequestError("invalid domain or operation format"))
		return
	}
	if entityID != "" && !validName.MatchString(entityID) {
		writeAPIError(ctx, api.NewBadRequestError("invalid entity id format"))
		return
	}

	pathParams := map[string]any{"domain": domain, "operation": operation}
	if domain == modelScoringDomain {
		// /process/model_scoring/<model> routes to the model's dedicated
		// domain; the operation segment carries the model name.
		if ctx.Request.Method == http.MethodPost && entityID != "" {
			writeAPIError(ctx, api.NewNotFoundError("POST with entity id not supported for model_scoring domain"))
			return
		}
		pathParams = map[string]any{"model_name": operation}
		domain = modelScoringPrefix + operation
		operation = modelScoringOperation
	}
	if entityID != "" {
		pathParams["entity_id"] = entityID
	}

	endpoint, err := v.registry.GetEndpointConfig(domain, operation)
	if err != nil {
		v.writeError(ctx, err)
		return
	}
	if endpoint == nil {
		if modelName, ok := pathParams["model_name"]; ok {
			writeAPIError(ctx, api.NewNotFoundError(fmt.Sprintf("model scoring configuration not found for model: %v", modelName)))
			return
		}
		writeAPIError(ctx, api.NewNotFoundError(fmt.Sprintf("configuration not found for domain: %s, operation: %s", domain, operation)))
		return
	}

	request := handler.ProcessRequestBody{
		EndpointID: domain + "." + operation,
		Parameters: map[string]any{
			"path_params":  pathParams,
			"query_params": queryParams(ctx),
			"body":         body,
		},
		TraceExecution: ctx.Query(flagTrace) == "true",
		TraceTiming:    ctx.Query(flagTiming) == "true",
	}
	response, err := v.processor.ProcessRequest(ctx.Request.Context(), request, ctx.Query(flagHandleErrors) == "true")
	if err != nil {
		v.writeError(ctx, err)
		return
	}
	if response == nil {
		writeAPIError(ctx, api.NewNotFoundError(fmt.Sprintf("failed to process request for domain: %s, operation: %s", domain, operation)))
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// GetExecution returns the tracker record of a previous run.
func (v *V1) GetExecution(ctx *gin.Context) {
	executionID := ctx.Param("execution_id")
	record := v.processor.Tracker().GetExecution(executionID)
	if record == nil {
		writeAPIError(ctx, api.NewNotFoundError(fmt.Sprintf("execution '%s' not found", executionID)))
		return
	}
	ctx.JSON(http.StatusOK, record)
}

// ListDomains reports every domain the registry can serve.
func (v *V1) ListDomains(ctx *gin.Context) {
	domains, err := v.registry.ListDomains()
	if err != nil {
		v.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"domains": domains})
}

// ReloadRegistry drops cached configuration so subsequent requests see
// fresh documents.
func (v *V1) ReloadRegistry(ctx *gin.Context) {
	if err := v.registry.Reload(); err != nil {
		v.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListModels reports every loaded model runtime.
func (v *V1) ListModels(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"models": v.models.Runtimes()})
}

// LoadModel brings up the runtime of one configured model without waiting
// for the first prediction to need it.
func (v *V1) LoadModel(ctx *gin.Context) {
	sourceID := ctx.Param("source_id")
	modelID := ctx.Param("model_id")
	if !validName.MatchString(sourceID) || !validName.MatchString(modelID) {
		writeAPIError(ctx, api.NewBadRequestError("invalid source or model id format"))
		return
	}
	config, err := v.registry.GetSourceConfig(registry.SourceTypeModel, sourceID)
	if err != nil {
		v.writeError(ctx, err)
		return
	}
	if config == nil {
		writeAPIError(ctx, api.NewNotFoundError(fmt.Sprintf("ml service configuration not found for source '%s'", sourceID)))
		return
	}
	modelConfig, ok := config.Models[modelID]
	if !ok {
		writeAPIError(ctx, api.NewNotFoundError(fmt.Sprintf("model '%s' not found in ml service '%s'", modelID, sourceID)))
		return
	}
	runtime, err := v.models.LoadModel(ctx.Request.Context(), modelConfig, sourceID)
	if err != nil {
		v.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, runtime)
}

// UnloadModel stops the runtime of one loaded model. Unknown keys respond
// 200 as well, matching the manager's no-op semantics.
func (v *V1) UnloadModel(ctx *gin.Context) {
	sourceID := ctx.Param("source_id")
	modelID := ctx.Param("model_id")
	if !validName.MatchString(sourceID) || !validName.MatchString(modelID) {
		writeAPIError(ctx, api.NewBadRequestError("invalid source or model id format"))
		return
	}
	modelKey := model.ModelKey(sourceID, modelID)
	v.models.UnloadModel(ctx.Request.Context(), modelKey)
	ctx.JSON(http.StatusOK, gin.H{"model_key": modelKey, "state": model.StateUnloaded})
}

func (v *V1) writeError(ctx *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.Request.URL.Path).Msg("request failed")
	} else {
		log.Warn().Err(err).Str("path", ctx.Request.URL.Path).Msg("request failed")
	}
	ctx.JSON(status, errorBody(err.Error()))
}

// writeAPIError renders rejections the controller raises itself, as opposed
// to errors surfaced by the pipeline.
func writeAPIError(ctx *gin.Context, apiErr *api.Error) {
	ctx.JSON(apiErr.StatusCode, errorBody(apiErr.Message))
}

// queryParams flattens the query string for the pipeline. The diagnostic
// flags are transport concerns and never reach parameter resolution.
func queryParams(ctx *gin.Context) map[string]any {
	params := map[string]any{}
	for key, values := range ctx.Request.URL.Query() {
		switch key {
		case flagTrace, flagTiming, flagHandleErrors:
			continue
		}
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func errorBody(message string) gin.H {
	return gin.H{"status": "error", "message": message}
}
