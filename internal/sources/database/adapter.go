package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources"
	"github.com/Meesho/BharatMLStack/weaver/pkg/metric"
	"github.com/rs/zerolog/log"
)

// Built-in operations. Anything else falls through to the operations
// declared on the source configuration.
const (
	OperationQuery   = "query"
	OperationGetByID = "get_by_id"
	OperationList    = "list"

	defaultSourceID = "default"
	defaultIDColumn = "id"
)

// Adapter serves database data sources over the shared SQL connection.
// Rows come back as []map[string]any; single-row operations return a map
// or nil when no row matched.
type Adapter struct {
	store    Store
	registry registry.Manager
}

func NewAdapter(store Store, registryManager registry.Manager) *Adapter {
	return &Adapter{store: store, registry: registryManager}
}

func (a *Adapter) Type() string {
	return registry.SourceTypeDatabase
}

func (a *Adapter) Execute(ctx context.Context, operation string, req sources.Request) (any, error) {
	switch operation {
	case OperationQuery:
		return a.rawQuery(ctx, req)
	case OperationGetByID:
		return a.getByID(ctx, req)
	case OperationList:
		return a.list(ctx, req)
	default:
		return a.configuredOperation(ctx, operation, req)
	}
}

func (a *Adapter) rawQuery(ctx context.Context, req sources.Request) (any, error) {
	query, ok := stringParam(req.Params, "query")
	if !ok {
		return nil, errs.NewDatabaseError(sourceName(req), "missing required parameter 'query'", nil)
	}
	args, _ := mapParam(req.Params, "params")
	return a.run(ctx, req, query, args)
}

func (a *Adapter) getByID(ctx context.Context, req sources.Request) (any, error) {
	table, ok := stringParam(req.Params, "table")
	if !ok {
		return nil, errs.NewDatabaseError(sourceName(req), "missing required parameter 'table'", nil)
	}
	id, ok := req.Params["id"]
	if !ok {
		return nil, errs.NewDatabaseError(sourceName(req), "missing required parameter 'id'", nil)
	}
	idColumn, ok := stringParam(req.Params, "id_column")
	if !ok {
		idColumn = defaultIDColumn
	}

	query, args, err := buildSelect(table, nil, map[string]any{idColumn: id}, "", 1, 0)
	if err != nil {
		return nil, errs.NewDatabaseError(sourceName(req), err.Error(), err)
	}
	rows, err := a.run(ctx, req, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (a *Adapter) list(ctx context.Context, req sources.Request) (any, error) {
	table, ok := stringParam(req.Params, "table")
	if !ok {
		return nil, errs.NewDatabaseError(sourceName(req), "missing required parameter 'table'", nil)
	}
	filters, _ := mapParam(req.Params, "filters")
	columns := stringSliceParam(req.Params, "columns")
	orderBy, _ := stringParam(req.Params, "order_by")
	limit := intParam(req.Params, "limit")
	offset := intParam(req.Params, "offset")

	query, args, err := buildSelect(table, columns, filters, orderBy, limit, offset)
	if err != nil {
		return nil, errs.NewDatabaseError(sourceName(req), err.Error(), err)
	}
	return a.run(ctx, req, query, args)
}

// configuredOperation dispatches an operation declared on the source
// configuration: a named query plus the parameter names it binds.
func (a *Adapter) configuredOperation(ctx context.Context, operation string, req sources.Request) (any, error) {
	config, err := a.registry.GetSourceConfig(registry.SourceTypeDatabase, req.SourceID)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errs.NewDatabaseError(sourceName(req), fmt.Sprintf("database configuration not found for source '%s'", req.SourceID), nil)
	}
	operationConfig, ok := config.Operations[operation]
	if !ok {
		return nil, errs.NewDatabaseError(sourceName(req), fmt.Sprintf("unsupported operation '%s'", operation), nil)
	}

	args := make(map[string]any, len(operationConfig.Params))
	for _, name := range operationConfig.Params {
		args[name] = req.Params[name]
	}
	return a.run(ctx, req, operationConfig.Query, args)
}

func (a *Adapter) run(ctx context.Context, req sources.Request, query string, args map[string]any) ([]map[string]any, error) {
	start := time.Now()
	rows, err := a.store.Query(ctx, query, args)
	tags := metric.BuildTag(
		metric.NewTag(metric.TagSourceName, sourceName(req)),
		metric.NewTag(metric.TagDomain, req.Domain),
	)
	metric.Incr(metric.DBCallCount, tags)
	metric.Timing(metric.DBCallLatency, time.Since(start), tags)
	if err != nil {
		log.Error().Err(err).Str("source", sourceName(req)).Str("domain", req.Domain).Msg("database query failed")
		return nil, errs.NewDatabaseError(sourceName(req), fmt.Sprintf("error executing query: %s", err.Error()), err)
	}
	return rows, nil
}

func sourceName(req sources.Request) string {
	if req.SourceID == "" {
		return defaultSourceID
	}
	return req.SourceID
}

func stringParam(params map[string]any, key string) (string, bool) {
	value, ok := params[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func mapParam(params map[string]any, key string) (map[string]any, bool) {
	value, ok := params[key].(map[string]any)
	return value, ok
}

// stringSliceParam accepts []string or []any of strings; non-string items
// are dropped.
func stringSliceParam(params map[string]any, key string) []string {
	switch value := params[key].(type) {
	case []string:
		return value
	case []any:
		items := make([]string, 0, len(value))
		for _, item := range value {
			if text, ok := item.(string); ok {
				items = append(items, text)
			}
		}
		return items
	default:
		return nil
	}
}

// intParam tolerates the numeric types YAML and JSON decoding produce.
func intParam(params map[string]any, key string) int {
	switch value := params[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}
