package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources"
	"github.com/Meesho/BharatMLStack/weaver/pkg/metric"
	"github.com/rs/zerolog/log"
)

const transformSelectFields = "select_fields"

// Executor runs an endpoint's data sources strictly in declaration order,
// threading every result into a shared results map that later sources can
// reference.
type Executor struct {
	adapters map[string]sources.Adapter
}

func NewExecutor(adapters ...sources.Adapter) *Executor {
	byType := make(map[string]sources.Adapter, len(adapters))
	for _, adapter := range adapters {
		byType[adapter.Type()] = adapter
	}
	return &Executor{adapters: byType}
}

// Orchestrate executes the pipeline for one request. Misconfigured specs
// are skipped with a warning; backend errors abort the run and propagate.
func (e *Executor) Orchestrate(ctx context.Context, executionID string, endpoint *registry.EndpointConfig, requestData map[string]any) (*ExecutionContext, error) {
	execCtx := &ExecutionContext{
		ExecutionID: executionID,
		RequestData: requestData,
		Results:     make(map[string]any),
	}
	for _, spec := range e.selectSpecs(executionID, endpoint) {
		if spec.Name == "" || spec.Type == "" || (spec.Operation == "" && spec.Type != registry.SourceTypeDirect) {
			log.Warn().Str("executionId", executionID).Str("source", spec.Name).Msg("skipping misconfigured data source")
			continue
		}
		if spec.Condition != "" && !conditionAllows(executionID, spec, execCtx) {
			continue
		}
		params := ResolveParams(spec.Params, requestData, execCtx.Results)
		start := time.Now()
		value, executed, err := e.executeSource(ctx, endpoint, spec, params)
		duration := time.Since(start)
		if err != nil {
			emitSourceMetrics(endpoint.DomainID, spec, duration, "failed")
			log.Error().Err(err).Str("executionId", executionID).Str("source", spec.Name).Msg("source execution failed")
			return execCtx, err
		}
		if !executed {
			continue
		}
		if spec.Transform != nil && value != nil {
			value = applyTransform(spec.Transform, value)
		}
		execCtx.Results[spec.Name] = value
		execCtx.Trace = append(execCtx.Trace, traceLine(spec))
		execCtx.Timing = append(execCtx.Timing, TimingEntry{Source: spec.Name, DurationMs: durationMs(duration)})
		emitSourceMetrics(endpoint.DomainID, spec, duration, "success")
	}
	return execCtx, nil
}

// selectSpecs applies the endpoint_type filter: a non-composite type drops
// every spec of a different type.
func (e *Executor) selectSpecs(executionID string, endpoint *registry.EndpointConfig) []registry.DataSourceSpec {
	if endpoint.EndpointType == "" || endpoint.EndpointType == registry.EndpointTypeComposite {
		return endpoint.DataSources
	}
	matching := make([]registry.DataSourceSpec, 0, len(endpoint.DataSources))
	for _, spec := range endpoint.DataSources {
		if spec.Type == endpoint.EndpointType {
			matching = append(matching, spec)
		}
	}
	if len(matching) == 0 && len(endpoint.DataSources) > 0 {
		log.Warn().Str("executionId", executionID).Str("endpointType", endpoint.EndpointType).
			Msg("endpoint type filtered out every data source, results may be empty")
	}
	return matching
}

// executeSource runs one spec and reports whether it actually executed.
// Direct sources store their resolved params without a backend call; specs
// whose type has no registered adapter are skipped.
func (e *Executor) executeSource(ctx context.Context, endpoint *registry.EndpointConfig, spec registry.DataSourceSpec, params map[string]any) (any, bool, error) {
	if spec.Type == registry.SourceTypeDirect {
		return params, true, nil
	}
	adapter, ok := e.adapters[spec.Type]
	if !ok {
		log.Warn().Str("sourceType", spec.Type).Str("source", spec.Name).Msg("no adapter registered for source type, skipping")
		return nil, false, nil
	}
	domain := spec.Domain
	if domain == "" {
		domain = endpoint.DomainID
	}
	value, err := adapter.Execute(ctx, spec.Operation, sources.Request{Params: params, SourceID: spec.SourceID, Domain: domain})
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// conditionAllows resolves a $-prefixed simple reference and reports
// whether the source should run. Anything more complex cannot be
// evaluated; those conditions warn and the source runs anyway.
func conditionAllows(executionID string, spec registry.DataSourceSpec, execCtx *ExecutionContext) bool {
	if !strings.HasPrefix(spec.Condition, "$") || strings.Contains(spec.Condition, "||") {
		log.Warn().Str("executionId", executionID).Str("condition", spec.Condition).Msg("complex condition not supported, executing source")
		return true
	}
	value := resolveReference(spec.Condition, execCtx.RequestData, execCtx.Results)
	if isFalsy(value) {
		log.Info().Str("executionId", executionID).Str("source", spec.Name).Str("condition", spec.Condition).Msg("skipping source, condition not met")
		return false
	}
	return true
}

// applyTransform post-processes a source result. select_fields projects a
// map, or a list of maps, down to the named fields; unknown transform
// kinds pass the value through unchanged.
func applyTransform(transform *registry.TransformSpec, value any) any {
	if transform.Type != transformSelectFields {
		return value
	}
	fields := make(map[string]struct{}, len(transform.Fields))
	for _, field := range transform.Fields {
		fields[field] = struct{}{}
	}
	switch typed := value.(type) {
	case map[string]any:
		return projectFields(typed, fields)
	case []any:
		projected := make([]any, len(typed))
		for i, item := range typed {
			entry, ok := item.(map[string]any)
			if !ok {
				return value
			}
			projected[i] = projectFields(entry, fields)
		}
		return projected
	case []map[string]any:
		projected := make([]any, len(typed))
		for i, entry := range typed {
			projected[i] = projectFields(entry, fields)
		}
		return projected
	}
	return value
}

func projectFields(entry map[string]any, fields map[string]struct{}) map[string]any {
	projected := make(map[string]any, len(fields))
	for key, value := range entry {
		if _, ok := fields[key]; ok {
			projected[key] = value
		}
	}
	return projected
}

func traceLine(spec registry.DataSourceSpec) string {
	if spec.Type == registry.SourceTypeDirect {
		return fmt.Sprintf("%s [direct]", spec.Name)
	}
	return fmt.Sprintf("%s [%s.%s]", spec.Name, spec.Type, spec.Operation)
}

func durationMs(duration time.Duration) float64 {
	return float64(duration.Microseconds()) / 1000.0
}

func emitSourceMetrics(domain string, spec registry.DataSourceSpec, duration time.Duration, status string) {
	tags := metric.BuildTag(
		metric.NewTag(metric.TagDomain, domain),
		metric.NewTag(metric.TagSourceName, spec.Name),
		metric.NewTag(metric.TagSourceType, spec.Type),
		metric.NewTag(metric.TagStatus, status),
	)
	metric.Incr(metric.SourceExecutionCount, tags)
	metric.Timing(metric.SourceExecutionLatency, duration, tags)
}
