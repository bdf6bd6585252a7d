package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources"
	"github.com/rs/zerolog/log"
)

const (
	// OperationPredict posts features to a model endpoint and returns the
	// decoded prediction.
	OperationPredict = "predict"

	defaultSourceID       = "default"
	defaultModelID        = "default"
	defaultPredictTimeout = 30 * time.Second
)

// Adapter serves ml data sources. Predictions go to the endpoint resolved
// by the lifecycle manager, which starts the backing runtime on first use.
type Adapter struct {
	registry registry.Manager
	manager  *Manager
	client   *http.Client
}

func NewAdapter(registryManager registry.Manager, manager *Manager) *Adapter {
	return &Adapter{
		registry: registryManager,
		manager:  manager,
		client:   &http.Client{Timeout: defaultPredictTimeout},
	}
}

func (a *Adapter) Type() string {
	return registry.SourceTypeModel
}

func (a *Adapter) Execute(ctx context.Context, operation string, req sources.Request) (any, error) {
	switch operation {
	case OperationPredict:
		return a.predict(ctx, req)
	default:
		return nil, errs.NewModelError(sourceName(req), fmt.Sprintf("unsupported operation '%s'", operation), nil)
	}
}

func (a *Adapter) predict(ctx context.Context, req sources.Request) (any, error) {
	source := sourceName(req)
	config, err := a.registry.GetSourceConfig(registry.SourceTypeModel, source)
	if err != nil {
		return nil, errs.NewModelError(source, "failed to load ml source configuration", err)
	}
	if config == nil {
		return nil, errs.NewModelError(source, fmt.Sprintf("ml service configuration not found for source '%s'", source), nil)
	}

	modelID := stringParam(req.Params, "model_id")
	if modelID == "" {
		modelID = defaultModelID
	}
	model, ok := config.Models[modelID]
	if !ok {
		return nil, errs.NewModelError(source, fmt.Sprintf("model '%s' not found in ml service '%s'", modelID, source), nil)
	}

	runtime, err := a.manager.LoadModel(ctx, model, source)
	if err != nil {
		return nil, err
	}
	if runtime.Endpoint == "" {
		return nil, errs.NewModelError(source, fmt.Sprintf("endpoint not defined for model '%s' in ml service '%s'", modelID, source), nil)
	}

	payload, err := json.Marshal(map[string]any{"features": req.Params["features"]})
	if err != nil {
		return nil, errs.NewModelError(source, "failed to encode prediction request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, runtime.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errs.NewModelError(source, "failed to create prediction request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range model.Headers {
		httpReq.Header.Set(key, value)
	}

	log.Debug().
		Str("model_id", modelID).
		Str("source_id", source).
		Str("endpoint", runtime.Endpoint).
		Msg("making prediction request")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, errs.NewModelError(source, fmt.Sprintf("failed to get prediction: %s", err.Error()), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewModelError(source, "failed to read prediction response", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errs.NewModelError(source, fmt.Sprintf("failed to get prediction: %s", errorMessage(body, resp.StatusCode)), nil)
	}

	var prediction any
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, errs.NewModelError(source, "failed to decode prediction response", err)
	}
	return prediction, nil
}

func sourceName(req sources.Request) string {
	if req.SourceID != "" {
		return req.SourceID
	}
	return defaultSourceID
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return value
}

// errorMessage pulls the "message" field from a JSON error body, falling
// back to the status code.
func errorMessage(body []byte, statusCode int) string {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if message, ok := decoded["message"].(string); ok && message != "" {
			return message
		}
	}
	return fmt.Sprintf("HTTP error %d", statusCode)
}
