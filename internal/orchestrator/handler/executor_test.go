package handler

import (
	"context"
	"testing"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources/database"
	"github.com/stretchr/testify/assert"
)

type fakeAdapter struct {
	sourceType string
	execute    func(ctx context.Context, operation string, req sources.Request) (any, error)
	requests   []sources.Request
	operations []string
}

func (f *fakeAdapter) Type() string {
	return f.sourceType
}

func (f *fakeAdapter) Execute(ctx context.Context, operation string, req sources.Request) (any, error) {
	f.requests = append(f.requests, req)
	f.operations = append(f.operations, operation)
	if f.execute == nil {
		return nil, nil
	}
	return f.execute(ctx, operation, req)
}

func TestOrchestrate_DirectSource(t *testing.T) {
	executor := NewExecutor()
	endpoint := &registry.EndpointConfig{
		DomainID: "demo",
		DataSources: []registry.DataSourceSpec{
			{Name: "r", Type: registry.SourceTypeDirect, Params: map[string]any{"k": 1}},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-1", endpoint, map[string]any{})

	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"r": map[string]any{"k": 1}}, execCtx.Results)
	assert.Equal(t, []string{"r [direct]"}, execCtx.Trace)
	assert.Len(t, execCtx.Timing, 1)
	assert.Equal(t, "r", execCtx.Timing[0].Source)
}

func TestOrchestrate_SequentialChaining(t *testing.T) {
	adapter := &fakeAdapter{
		sourceType: registry.SourceTypeDatabase,
		execute: func(_ context.Context, operation string, req sources.Request) (any, error) {
			if operation == "get_customer" {
				return map[string]any{"id": req.Params["id"], "segment": "gold"}, nil
			}
			return map[string]any{"segment": req.Params["segment"], "discount": 0.2}, nil
		},
	}
	executor := NewExecutor(adapter)
	endpoint := &registry.EndpointConfig{
		DomainID: "customers",
		DataSources: []registry.DataSourceSpec{
			{
				Name:      "customer",
				Type:      registry.SourceTypeDatabase,
				Operation: "get_customer",
				SourceID:  "main_db",
				Params:    map[string]any{"id": "$request.id"},
			},
			{
				Name:      "offers",
				Type:      registry.SourceTypeDatabase,
				Operation: "offers_for_segment",
				SourceID:  "main_db",
				Params:    map[string]any{"segment": "$customer.segment"},
			},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-2", endpoint, map[string]any{"id": 11})

	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 11, "segment": "gold"}, execCtx.Results["customer"])
	assert.Equal(t, map[string]any{"segment": "gold", "discount": 0.2}, execCtx.Results["offers"])
	assert.Equal(t, []string{"customer [database.get_customer]", "offers [database.offers_for_segment]"}, execCtx.Trace)
	assert.Equal(t, "main_db", adapter.requests[0].SourceID)
	assert.Equal(t, "customers", adapter.requests[0].Domain)
}

func TestOrchestrate_EndpointTypeFilter(t *testing.T) {
	adapter := &fakeAdapter{
		sourceType: registry.SourceTypeDatabase,
		execute: func(context.Context, string, sources.Request) (any, error) {
			return map[string]any{"hit": true}, nil
		},
	}
	executor := NewExecutor(adapter)
	endpoint := &registry.EndpointConfig{
		DomainID:     "demo",
		EndpointType: registry.SourceTypeDatabase,
		DataSources: []registry.DataSourceSpec{
			{Name: "keep", Type: registry.SourceTypeDatabase, Operation: "list", SourceID: "main_db"},
			{Name: "drop", Type: registry.SourceTypeAPI, Operation: "request", SourceID: "ext"},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-3", endpoint, map[string]any{})

	assert.NoError(t, err)
	assert.Contains(t, execCtx.Results, "keep")
	assert.NotContains(t, execCtx.Results, "drop")
	assert.Len(t, adapter.requests, 1)
}

func TestOrchestrate_EndpointTypeFilterEmptiesAll(t *testing.T) {
	executor := NewExecutor()
	endpoint := &registry.EndpointConfig{
		DomainID:     "demo",
		EndpointType: registry.SourceTypeFeatureStore,
		DataSources: []registry.DataSourceSpec{
			{Name: "drop", Type: registry.SourceTypeAPI, Operation: "request", SourceID: "ext"},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-4", endpoint, map[string]any{})

	assert.NoError(t, err)
	assert.Empty(t, execCtx.Results)
	assert.Empty(t, execCtx.Trace)
}

func TestOrchestrate_Conditions(t *testing.T) {
	tests := []struct {
		name        string
		condition   string
		requestData map[string]any
		executed    bool
	}{
		{name: "nil reference skips", condition: "$request.include_offers", requestData: map[string]any{}, executed: false},
		{name: "false skips", condition: "$request.include_offers", requestData: map[string]any{"include_offers": false}, executed: false},
		{name: "zero skips", condition: "$request.count", requestData: map[string]any{"count": 0}, executed: false},
		{name: "empty string skips", condition: "$request.mode", requestData: map[string]any{"mode": ""}, executed: false},
		{name: "true executes", condition: "$request.include_offers", requestData: map[string]any{"include_offers": true}, executed: true},
		{name: "non-reference executes", condition: "include_offers", requestData: map[string]any{}, executed: true},
		{name: "chain expression executes", condition: "$request.a || $request.b", requestData: map[string]any{}, executed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := NewExecutor()
			endpoint := &registry.EndpointConfig{
				DomainID: "demo",
				DataSources: []registry.DataSourceSpec{
					{Name: "r", Type: registry.SourceTypeDirect, Params: map[string]any{"k": 1}, Condition: tt.condition},
				},
			}

			execCtx, err := executor.Orchestrate(context.Background(), "exec-5", endpoint, tt.requestData)

			assert.NoError(t, err)
			if tt.executed {
				assert.Contains(t, execCtx.Results, "r")
			} else {
				assert.NotContains(t, execCtx.Results, "r")
			}
		})
	}
}

func TestOrchestrate_SkipsMisconfiguredSpecs(t *testing.T) {
	adapter := &fakeAdapter{sourceType: registry.SourceTypeDatabase}
	executor := NewExecutor(adapter)
	endpoint := &registry.EndpointConfig{
		DomainID: "demo",
		DataSources: []registry.DataSourceSpec{
			{Type: registry.SourceTypeDatabase, Operation: "list", SourceID: "main_db"},
			{Name: "no_type", Operation: "list", SourceID: "main_db"},
			{Name: "no_operation", Type: registry.SourceTypeDatabase, SourceID: "main_db"},
			{Name: "unknown_adapter", Type: "graphql", Operation: "query", SourceID: "gql"},
			{Name: "ok", Type: registry.SourceTypeDirect, Params: map[string]any{"v": 1}},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-6", endpoint, map[string]any{})

	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": map[string]any{"v": 1}}, execCtx.Results)
	assert.Empty(t, adapter.requests)
}

func TestOrchestrate_DuplicateNameOverwrites(t *testing.T) {
	executor := NewExecutor()
	endpoint := &registry.EndpointConfig{
		DomainID: "demo",
		DataSources: []registry.DataSourceSpec{
			{Name: "r", Type: registry.SourceTypeDirect, Params: map[string]any{"v": 1}},
			{Name: "r", Type: registry.SourceTypeDirect, Params: map[string]any{"v": 2}},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-7", endpoint, map[string]any{})

	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 2}, execCtx.Results["r"])
	assert.Len(t, execCtx.Trace, 2)
}

func TestOrchestrate_AdapterErrorStopsExecution(t *testing.T) {
	adapter := &fakeAdapter{
		sourceType: registry.SourceTypeDatabase,
		execute: func(context.Context, string, sources.Request) (any, error) {
			return nil, errs.NewDatabaseError("main_db", "connection refused", nil)
		},
	}
	executor := NewExecutor(adapter)
	endpoint := &registry.EndpointConfig{
		DomainID: "demo",
		DataSources: []registry.DataSourceSpec{
			{Name: "first", Type: registry.SourceTypeDatabase, Operation: "list", SourceID: "main_db"},
			{Name: "second", Type: registry.SourceTypeDirect, Params: map[string]any{"v": 1}},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-8", endpoint, map[string]any{})

	assert.Error(t, err)
	var dbErr *errs.DatabaseError
	assert.ErrorAs(t, err, &dbErr)
	assert.NotContains(t, execCtx.Results, "first")
	assert.NotContains(t, execCtx.Results, "second")
}

func TestOrchestrate_DomainOverride(t *testing.T) {
	adapter := &fakeAdapter{sourceType: registry.SourceTypeAPI}
	executor := NewExecutor(adapter)
	endpoint := &registry.EndpointConfig{
		DomainID: "customers",
		DataSources: []registry.DataSourceSpec{
			{Name: "own", Type: registry.SourceTypeAPI, Operation: "request", SourceID: "ext"},
			{Name: "other", Type: registry.SourceTypeAPI, Operation: "request", SourceID: "ext", Domain: "billing"},
		},
	}

	_, err := executor.Orchestrate(context.Background(), "exec-9", endpoint, map[string]any{})

	assert.NoError(t, err)
	assert.Equal(t, "customers", adapter.requests[0].Domain)
	assert.Equal(t, "billing", adapter.requests[1].Domain)
}

// Feature lookup with a relational fallback: the feature store comes back
// empty, the || chain promotes the database row to the feature map and the
// prediction source consumes the promoted value.
func TestOrchestrate_FeatureFallbackFeedsPrediction(t *testing.T) {
	feast := &fakeAdapter{
		sourceType: registry.SourceTypeFeatureStore,
		execute: func(context.Context, string, sources.Request) (any, error) {
			return map[string]any{}, nil
		},
	}
	db := &fakeAdapter{
		sourceType: registry.SourceTypeDatabase,
		execute: func(context.Context, string, sources.Request) (any, error) {
			return map[string]any{"id": 2, "sepal_length": 6.2, "sepal_width": 2.9}, nil
		},
	}
	ml := &fakeAdapter{
		sourceType: registry.SourceTypeModel,
		execute: func(_ context.Context, _ string, req sources.Request) (any, error) {
			return map[string]any{"prediction": 1, "input": req.Params["features"]}, nil
		},
	}
	executor := NewExecutor(feast, db, ml)
	endpoint := &registry.EndpointConfig{
		DomainID: "iris_example",
		DataSources: []registry.DataSourceSpec{
			{
				Name:      "feast_features",
				Type:      registry.SourceTypeFeatureStore,
				Operation: "get_features",
				SourceID:  "iris_store",
				Params:    map[string]any{"entity_id": "$request.entity_id", "features": []any{"iris:sepal_length"}},
			},
			{
				Name:      "db_row",
				Type:      registry.SourceTypeDatabase,
				Operation: "get_by_id",
				SourceID:  "main_db",
				Params:    map[string]any{"table": "iris", "id": "$request.entity_id"},
			},
			{
				Name: "iris_features",
				Type: registry.SourceTypeDirect,
				Params: map[string]any{
					"iris:sepal_length": "$feast_features.iris:sepal_length || $db_row.sepal_length",
				},
			},
			{
				Name:      "prediction",
				Type:      registry.SourceTypeModel,
				Operation: "predict",
				SourceID:  "iris_service",
				Params: map[string]any{
					"model_id": "iris",
					"features": map[string]any{"sepal_length": "$iris_features.iris:sepal_length"},
				},
			},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-10", endpoint, map[string]any{"entity_id": 2})

	assert.NoError(t, err)
	features := execCtx.Results["iris_features"].(map[string]any)
	assert.Equal(t, 6.2, features["iris:sepal_length"])
	assert.Equal(t, map[string]any{"sepal_length": 6.2}, ml.requests[0].Params["features"])
	assert.Equal(t, "iris", ml.requests[0].Params["model_id"])
}

// rowStore feeds the real database adapter, so the rows land in results
// with the adapter's []map[string]any shape rather than a test fake's.
type rowStore struct {
	rows []map[string]any
}

func (s *rowStore) Query(context.Context, string, map[string]any) ([]map[string]any, error) {
	return s.rows, nil
}

func TestOrchestrate_DatabaseRowsResolvable(t *testing.T) {
	adapter := database.NewAdapter(&rowStore{rows: []map[string]any{
		{"name": "a"}, {"name": "b"},
	}}, nil)
	executor := NewExecutor(adapter)
	endpoint := &registry.EndpointConfig{
		DomainID: "customers",
		DataSources: []registry.DataSourceSpec{
			{
				Name:      "rows",
				Type:      registry.SourceTypeDatabase,
				Operation: "list",
				SourceID:  "main_db",
				Params:    map[string]any{"table": "customers"},
			},
			{
				Name: "summary",
				Type: registry.SourceTypeDirect,
				Params: map[string]any{
					"first_name": "$rows.0.name",
					"row_set":    "$rows || \"no rows\"",
				},
			},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-11", endpoint, map[string]any{})

	assert.NoError(t, err)
	summary := execCtx.Results["summary"].(map[string]any)
	assert.Equal(t, "a", summary["first_name"])
	assert.Equal(t, []map[string]any{{"name": "a"}, {"name": "b"}}, summary["row_set"])
}

func TestOrchestrate_EmptyDatabaseRowsFallBack(t *testing.T) {
	adapter := database.NewAdapter(&rowStore{rows: []map[string]any{}}, nil)
	dependent := &fakeAdapter{sourceType: registry.SourceTypeAPI}
	executor := NewExecutor(adapter, dependent)
	endpoint := &registry.EndpointConfig{
		DomainID: "customers",
		DataSources: []registry.DataSourceSpec{
			{
				Name:      "rows",
				Type:      registry.SourceTypeDatabase,
				Operation: "list",
				SourceID:  "main_db",
				Params:    map[string]any{"table": "customers"},
			},
			{
				Name: "summary",
				Type: registry.SourceTypeDirect,
				Params: map[string]any{
					"row_set": "$rows || \"no rows\"",
				},
			},
			{
				// an empty row set is falsy, so the dependent source is skipped
				Name:      "enrichment",
				Type:      registry.SourceTypeAPI,
				Operation: "request",
				SourceID:  "ext",
				Condition: "$rows",
			},
		},
	}

	execCtx, err := executor.Orchestrate(context.Background(), "exec-12", endpoint, map[string]any{})

	assert.NoError(t, err)
	summary := execCtx.Results["summary"].(map[string]any)
	assert.Equal(t, "no rows", summary["row_set"])
	assert.NotContains(t, execCtx.Results, "enrichment")
	assert.Empty(t, dependent.requests)
}

func TestApplyTransform_SelectFields(t *testing.T) {
	transform := &registry.TransformSpec{Type: transformSelectFields, Fields: []string{"id", "name"}}

	tests := []struct {
		name     string
		value    any
		expected any
	}{
		{
			name:     "map projection",
			value:    map[string]any{"id": 1, "name": "a", "secret": "x"},
			expected: map[string]any{"id": 1, "name": "a"},
		},
		{
			name: "list of maps projection",
			value: []any{
				map[string]any{"id": 1, "name": "a", "secret": "x"},
				map[string]any{"id": 2, "name": "b", "secret": "y"},
			},
			expected: []any{
				map[string]any{"id": 1, "name": "a"},
				map[string]any{"id": 2, "name": "b"},
			},
		},
		{
			name:     "list with non-map item unchanged",
			value:    []any{map[string]any{"id": 1}, "rogue"},
			expected: []any{map[string]any{"id": 1}, "rogue"},
		},
		{
			name:     "scalar unchanged",
			value:    42,
			expected: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, applyTransform(transform, tt.value))
		})
	}
}

func TestApplyTransform_UnknownTypePassesThrough(t *testing.T) {
	transform := &registry.TransformSpec{Type: "uppercase", Fields: []string{"id"}}
	value := map[string]any{"id": 1, "name": "a"}

	assert.Equal(t, value, applyTransform(transform, value))
}
