package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
)

// Processor ties the pipeline together: endpoint lookup, execution
// tracking, orchestration and response assembly.
type Processor struct {
	registry registry.Manager
	executor *Executor
	tracker  *Tracker
}

func NewProcessor(registryManager registry.Manager, executor *Executor, tracker *Tracker) *Processor {
	return &Processor{registry: registryManager, executor: executor, tracker: tracker}
}

func (p *Processor) Tracker() *Tracker {
	return p.tracker
}

// Process runs one domain operation end to end and returns the assembled
// response. The tracker always receives the terminal state.
func (p *Processor) Process(ctx context.Context, domain, operation string, requestData map[string]any) (any, error) {
	response, _, err := p.run(ctx, domain, operation, requestData)
	return response, err
}

func (p *Processor) run(ctx context.Context, domain, operation string, requestData map[string]any) (any, *ExecutionContext, error) {
	endpoint, err := p.registry.GetEndpointConfig(domain, operation)
	if err != nil {
		return nil, nil, err
	}
	if endpoint == nil {
		return nil, nil, errs.NewResourceNotFoundError(fmt.Sprintf("no endpoint configuration for %s.%s", domain, operation))
	}
	executionID := p.tracker.StartExecution(domain, operation, requestData)
	execCtx, err := p.executor.Orchestrate(ctx, executionID, endpoint, requestData)
	if err != nil {
		p.tracker.CompleteExecution(executionID, false, err.Error())
		return nil, execCtx, err
	}
	response := Assemble(endpoint, execCtx.Results)
	p.tracker.CompleteExecution(executionID, true, "")
	return response, execCtx, nil
}

// ProcessRequest drives Process from a transport envelope. The trace and
// timing flags attach diagnostics to map responses (other responses are
// wrapped); handleErrors converts a failure into an error envelope instead
// of propagating it.
func (p *Processor) ProcessRequest(ctx context.Context, request ProcessRequestBody, handleErrors bool) (any, error) {
	domain, operation, err := splitEndpointID(request.EndpointID)
	if err != nil {
		if handleErrors {
			return errorEnvelope("general", err), nil
		}
		return nil, err
	}
	start := time.Now()
	response, execCtx, err := p.run(ctx, domain, operation, request.Parameters)
	if err != nil {
		if handleErrors {
			return errorEnvelope(errorKey(err), err), nil
		}
		return nil, err
	}
	if !request.TraceExecution && !request.TraceTiming {
		return response, nil
	}
	wrapped := map[string]any{}
	if asMap, ok := response.(map[string]any); ok {
		for key, value := range asMap {
			wrapped[key] = value
		}
	} else {
		wrapped["response"] = response
	}
	wrapped["execution_id"] = execCtx.ExecutionID
	if request.TraceExecution {
		wrapped["trace"] = execCtx.Trace
	}
	if request.TraceTiming {
		wrapped["timing"] = execCtx.Timing
		wrapped["total_time_ms"] = durationMs(time.Since(start))
	}
	return wrapped, nil
}

// splitEndpointID parses "domain.operation"; the first dot separates the
// two.
func splitEndpointID(endpointID string) (string, string, error) {
	domain, operation, found := strings.Cut(endpointID, ".")
	if !found || domain == "" || operation == "" {
		return "", "", errs.NewValidationError(fmt.Sprintf("invalid endpoint_id %q, expected domain.operation", endpointID))
	}
	return domain, operation, nil
}

// errorEnvelope is the handleErrors response shape: the failure keyed by
// the offending source when known, partial results withheld.
func errorEnvelope(key string, err error) map[string]any {
	return map[string]any{
		"errors":          map[string]any{key: err.Error()},
		"partial_results": map[string]any{},
	}
}

func errorKey(err error) string {
	var sourceErr errs.SourceError
	if errors.As(err, &sourceErr) {
		if _, name := sourceErr.Source(); name != "" {
			return name
		}
	}
	return "general"
}
