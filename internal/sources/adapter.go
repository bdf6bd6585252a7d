package sources

import (
	"context"
)

// Request carries the resolved inputs of one data source execution.
type Request struct {
	Params   map[string]any
	SourceID string
	Domain   string
}

// Adapter executes named operations against one backend family. Adapters
// are built once at startup from registry source configs and are safe for
// concurrent use.
type Adapter interface {
	Type() string
	Execute(ctx context.Context, operation string, req Request) (any, error)
}
