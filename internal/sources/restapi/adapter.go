package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources"
	"github.com/Meesho/BharatMLStack/weaver/pkg/metric"
	"github.com/rs/zerolog/log"
)

const (
	OperationRequest   = "request"
	OperationDirectURL = "direct_url"

	directSourceName = "direct_request"
	defaultTimeout   = 30 * time.Second
)

// Adapter serves api data sources. One http.Client is kept per source so
// the configured timeout applies; direct_url requests share a one-off
// client with the default timeout.
type Adapter struct {
	registry registry.Manager
	direct   *http.Client

	mu      sync.Mutex
	clients map[string]*http.Client
}

func NewAdapter(registryManager registry.Manager) *Adapter {
	return &Adapter{
		registry: registryManager,
		direct:   &http.Client{Timeout: defaultTimeout},
		clients:  make(map[string]*http.Client),
	}
}

func (a *Adapter) Type() string {
	return registry.SourceTypeAPI
}

func (a *Adapter) Execute(ctx context.Context, operation string, req sources.Request) (any, error) {
	switch operation {
	case OperationRequest:
		return a.request(ctx, req)
	case OperationDirectURL:
		return a.directRequest(ctx, req)
	default:
		return nil, errs.NewApiError(req.SourceID, fmt.Sprintf("unsupported operation '%s'", operation), 0, nil)
	}
}

func (a *Adapter) request(ctx context.Context, req sources.Request) (any, error) {
	config, err := a.registry.GetSourceConfig(registry.SourceTypeAPI, req.SourceID)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errs.NewApiError(req.SourceID, fmt.Sprintf("API configuration not found for source '%s'", req.SourceID), 0, nil)
	}
	path, ok := req.Params["path"].(string)
	if !ok || path == "" {
		return nil, errs.NewApiError(req.SourceID, "missing required parameter 'path'", 0, nil)
	}

	fullURL := strings.TrimSuffix(config.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	fullURL += path

	headers := make(map[string]string, len(config.Headers))
	for key, value := range config.Headers {
		headers[key] = value
	}
	for key, value := range paramHeaders(req.Params) {
		headers[key] = value
	}

	return a.do(ctx, a.client(req.SourceID, config), req.SourceID, requestSpec{
		method:  paramMethod(req.Params),
		url:     fullURL,
		query:   paramQuery(req.Params),
		body:    req.Params["data"],
		headers: headers,
	})
}

// directRequest treats the url parameter as a complete address, bypassing
// any source configuration.
func (a *Adapter) directRequest(ctx context.Context, req sources.Request) (any, error) {
	target, ok := req.Params["url"].(string)
	if !ok || target == "" {
		target, ok = req.Params["path"].(string)
	}
	if !ok || target == "" {
		return nil, errs.NewApiError(directSourceName, "missing required parameter 'url'", 0, nil)
	}

	return a.do(ctx, a.direct, directSourceName, requestSpec{
		method:  paramMethod(req.Params),
		url:     target,
		query:   paramQuery(req.Params),
		body:    req.Params["data"],
		headers: paramHeaders(req.Params),
	})
}

type requestSpec struct {
	method  string
	url     string
	query   url.Values
	body    any
	headers map[string]string
}

func (a *Adapter) do(ctx context.Context, client *http.Client, name string, spec requestSpec) (any, error) {
	var bodyReader io.Reader
	if spec.body != nil {
		encoded, err := json.Marshal(spec.body)
		if err != nil {
			return nil, errs.NewApiError(name, fmt.Sprintf("error encoding request body: %s", err.Error()), 0, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, spec.method, spec.url, bodyReader)
	if err != nil {
		return nil, errs.NewApiError(name, fmt.Sprintf("error building request: %s", err.Error()), 0, err)
	}
	if len(spec.query) > 0 {
		httpReq.URL.RawQuery = spec.query.Encode()
	}
	for key, value := range spec.headers {
		httpReq.Header.Set(key, value)
	}
	if spec.body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	log.Info().Str("method", spec.method).Str("url", spec.url).Str("source", name).Msg("making API request")
	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errs.NewApiError(name, fmt.Sprintf("request failed: %s", err.Error()), 0, err)
	}
	defer resp.Body.Close()
	tags := metric.BuildTag(
		metric.NewTag(metric.TagExternalService, name),
		metric.NewTag(metric.TagExternalServiceMethod, spec.method),
		metric.NewTag(metric.TagExternalServiceStatusCode, strconv.Itoa(resp.StatusCode)),
	)
	metric.Incr(metric.ExternalApiRequestCount, tags)
	metric.Timing(metric.ExternalApiRequestLatency, time.Since(start), tags)

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewApiError(name, fmt.Sprintf("error reading response: %s", err.Error()), 0, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		message := errorMessage(resp.StatusCode, responseBody)
		log.Error().Int("statusCode", resp.StatusCode).Str("source", name).Msg(message)
		return nil, errs.NewApiError(name, message, resp.StatusCode, nil)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(responseBody, &decoded); err != nil {
			return nil, errs.NewApiError(name, fmt.Sprintf("error decoding response: %s", err.Error()), 0, err)
		}
		return decoded, nil
	}
	return map[string]any{"content": string(responseBody), "status_code": resp.StatusCode}, nil
}

// errorMessage prefers the message field of a JSON error body over the
// bare status line.
func errorMessage(statusCode int, body []byte) string {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if message, ok := decoded["message"].(string); ok && message != "" {
			return message
		}
	}
	return fmt.Sprintf("HTTP error %d", statusCode)
}

func (a *Adapter) client(sourceID string, config *registry.SourceConfig) *http.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	if client, ok := a.clients[sourceID]; ok {
		return client
	}
	timeout := defaultTimeout
	if config.TimeoutMs > 0 {
		timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	}
	client := &http.Client{Timeout: timeout}
	a.clients[sourceID] = client
	return client
}

func paramMethod(params map[string]any) string {
	if method, ok := params["method"].(string); ok && method != "" {
		return strings.ToUpper(method)
	}
	return http.MethodGet
}

func paramQuery(params map[string]any) url.Values {
	raw, ok := params["params"].(map[string]any)
	if !ok {
		return nil
	}
	values := url.Values{}
	for key, value := range raw {
		values.Set(key, fmt.Sprintf("%v", value))
	}
	return values
}

func paramHeaders(params map[string]any) map[string]string {
	raw, ok := params["headers"].(map[string]any)
	if !ok {
		return nil
	}
	headers := make(map[string]string, len(raw))
	for key, value := range raw {
		if text, ok := value.(string); ok {
			headers[key] = text
		}
	}
	return headers
}
