package handler

import (
	"time"
)

const (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// ExecutionContext is the per-request working state of one orchestration
// run. Results is append-only within the run; duplicate source names
// overwrite.
type ExecutionContext struct {
	ExecutionID string
	RequestData map[string]any
	Results     map[string]any
	Trace       []string
	Timing      []TimingEntry
}

type TimingEntry struct {
	Source     string  `json:"source"`
	DurationMs float64 `json:"duration_ms"`
}

// ExecutionRecord is the tracker's view of one run.
type ExecutionRecord struct {
	ID        string         `json:"id"`
	Domain    string         `json:"domain"`
	Operation string         `json:"operation"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time"`
	Status    string         `json:"status"`
	Request   map[string]any `json:"request"`
	Error     string         `json:"error,omitempty"`
}

// ProcessRequestBody is the transport envelope of the orchestrate-by-id
// entry point. EndpointID is "domain.operation".
type ProcessRequestBody struct {
	EndpointID     string         `json:"endpoint_id"`
	Parameters     map[string]any `json:"parameters"`
	TraceExecution bool           `json:"trace_execution"`
	TraceTiming    bool           `json:"trace_timing"`
}
