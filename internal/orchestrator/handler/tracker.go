package handler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Tracker keeps per-request execution records in memory. Records are
// retained for the process lifetime with no eviction.
type Tracker struct {
	mu         sync.RWMutex
	executions map[string]*ExecutionRecord
}

func NewTracker() *Tracker {
	return &Tracker{executions: make(map[string]*ExecutionRecord)}
}

// StartExecution stores an in_progress record and returns its id.
func (t *Tracker) StartExecution(domain, operation string, requestData map[string]any) string {
	executionID := uuid.NewString()
	record := &ExecutionRecord{
		ID:        executionID,
		Domain:    domain,
		Operation: operation,
		StartTime: time.Now().UTC(),
		Status:    StatusInProgress,
		Request:   requestData,
	}
	t.mu.Lock()
	t.executions[executionID] = record
	t.mu.Unlock()
	log.Info().Str("executionId", executionID).Msgf("started execution for %s.%s", domain, operation)
	return executionID
}

// CompleteExecution records the terminal status and end time. Unknown ids
// warn and are a no-op.
func (t *Tracker) CompleteExecution(executionID string, success bool, errorMessage string) {
	t.mu.Lock()
	record, ok := t.executions[executionID]
	if !ok {
		t.mu.Unlock()
		log.Warn().Str("executionId", executionID).Msg("attempted to complete unknown execution")
		return
	}
	now := time.Now().UTC()
	record.EndTime = &now
	if success {
		record.Status = StatusSuccess
	} else {
		record.Status = StatusFailed
		record.Error = errorMessage
	}
	t.mu.Unlock()
	if success {
		log.Info().Str("executionId", executionID).Msg("execution completed")
	} else {
		log.Error().Str("executionId", executionID).Msgf("execution failed: %s", errorMessage)
	}
}

// GetExecution returns a copy of the record for the id, or nil when the id
// is unknown. The request map is copied so the snapshot does not share
// state with the live record.
func (t *Tracker) GetExecution(executionID string) *ExecutionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.executions[executionID]
	if !ok {
		return nil
	}
	copied := *record
	if record.Request != nil {
		copied.Request = make(map[string]any, len(record.Request))
		for k, v := range record.Request {
			copied.Request[k] = v
		}
	}
	if record.EndTime != nil {
		endTime := *record.EndTime
		copied.EndTime = &endTime
	}
	return &copied
}
