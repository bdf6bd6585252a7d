package database

import (
	"context"
	"errors"
	"testing"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources"
	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	rows  []map[string]any
	err   error
	query string
	args  map[string]any
}

func (f *fakeStore) Query(_ context.Context, query string, args map[string]any) ([]map[string]any, error) {
	f.query = query
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type stubRegistry struct {
	configs map[string]*registry.SourceConfig
}

func (s *stubRegistry) GetEndpointConfig(string, string) (*registry.EndpointConfig, error) {
	return nil, nil
}

func (s *stubRegistry) GetSourceConfig(_, sourceID string) (*registry.SourceConfig, error) {
	return s.configs[sourceID], nil
}

func (s *stubRegistry) GetSourceConfigs(string) (map[string]*registry.SourceConfig, error) {
	return s.configs, nil
}

func (s *stubRegistry) ListDomains() ([]string, error) {
	return nil, nil
}

func (s *stubRegistry) Reload() error {
	return nil
}

func (s *stubRegistry) InvalidateEndpoints() {}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name          string
		table         string
		columns       []string
		filters       map[string]any
		orderBy       string
		limit, offset int
		expectedQuery string
		expectedArgs  map[string]any
		expectError   bool
	}{
		{
			name:          "bare table",
			table:         "customers",
			expectedQuery: "SELECT * FROM customers",
			expectedArgs:  map[string]any{},
		},
		{
			name:          "columns and filter",
			table:         "customers",
			columns:       []string{"id", "name"},
			filters:       map[string]any{"segment": "gold"},
			expectedQuery: "SELECT id, name FROM customers WHERE segment = @param_0",
			expectedArgs:  map[string]any{"param_0": "gold"},
		},
		{
			name:          "multiple filters ordered by column name",
			table:         "orders",
			filters:       map[string]any{"status": "open", "customer_id": 7},
			expectedQuery: "SELECT * FROM orders WHERE customer_id = @param_0 AND status = @param_1",
			expectedArgs:  map[string]any{"param_0": 7, "param_1": "open"},
		},
		{
			name:          "order limit offset",
			table:         "orders",
			orderBy:       "created_at desc",
			limit:         10,
			offset:        20,
			expectedQuery: "SELECT * FROM orders ORDER BY created_at DESC LIMIT 10 OFFSET 20",
			expectedArgs:  map[string]any{},
		},
		{
			name:        "invalid table",
			table:       "customers; drop table x",
			expectError: true,
		},
		{
			name:        "invalid column",
			table:       "customers",
			columns:     []string{"id, name"},
			expectError: true,
		},
		{
			name:        "invalid filter column",
			table:       "customers",
			filters:     map[string]any{"id = 1 OR 1": 1},
			expectError: true,
		},
		{
			name:        "invalid order direction",
			table:       "customers",
			orderBy:     "id sideways",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildSelect(tt.table, tt.columns, tt.filters, tt.orderBy, tt.limit, tt.offset)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedQuery, query)
			assert.Equal(t, tt.expectedArgs, args)
		})
	}
}

func TestExecute_RawQuery(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{{"total": 3}}}
	adapter := NewAdapter(store, &stubRegistry{})

	result, err := adapter.Execute(context.Background(), OperationQuery, sources.Request{
		SourceID: "main_db",
		Params: map[string]any{
			"query":  "SELECT COUNT(*) AS total FROM orders WHERE status = @status",
			"params": map[string]any{"status": "open"},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, []map[string]any{{"total": 3}}, result)
	assert.Equal(t, "SELECT COUNT(*) AS total FROM orders WHERE status = @status", store.query)
	assert.Equal(t, map[string]any{"status": "open"}, store.args)
}

func TestExecute_RawQueryMissingQuery(t *testing.T) {
	adapter := NewAdapter(&fakeStore{}, &stubRegistry{})

	_, err := adapter.Execute(context.Background(), OperationQuery, sources.Request{SourceID: "main_db"})

	var dbErr *errs.DatabaseError
	assert.ErrorAs(t, err, &dbErr)
	assert.Contains(t, err.Error(), "missing required parameter 'query'")
}

func TestExecute_GetByID(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{{"id": 2, "sepal_length": 6.2}}}
	adapter := NewAdapter(store, &stubRegistry{})

	result, err := adapter.Execute(context.Background(), OperationGetByID, sources.Request{
		SourceID: "main_db",
		Params:   map[string]any{"table": "iris_flowers", "id": 2},
	})

	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 2, "sepal_length": 6.2}, result)
	assert.Equal(t, "SELECT * FROM iris_flowers WHERE id = @param_0 LIMIT 1", store.query)
	assert.Equal(t, map[string]any{"param_0": 2}, store.args)
}

func TestExecute_GetByIDNoRow(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{}}
	adapter := NewAdapter(store, &stubRegistry{})

	result, err := adapter.Execute(context.Background(), OperationGetByID, sources.Request{
		SourceID: "main_db",
		Params:   map[string]any{"table": "iris_flowers", "id": 999},
	})

	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestExecute_GetByIDCustomColumn(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{{"customer_id": "cust_1"}}}
	adapter := NewAdapter(store, &stubRegistry{})

	_, err := adapter.Execute(context.Background(), OperationGetByID, sources.Request{
		SourceID: "main_db",
		Params:   map[string]any{"table": "customers", "id": "cust_1", "id_column": "customer_id"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "SELECT * FROM customers WHERE customer_id = @param_0 LIMIT 1", store.query)
}

func TestExecute_List(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{{"id": 1}, {"id": 2}}}
	adapter := NewAdapter(store, &stubRegistry{})

	result, err := adapter.Execute(context.Background(), OperationList, sources.Request{
		SourceID: "main_db",
		Params: map[string]any{
			"table":    "orders",
			"filters":  map[string]any{"status": "open"},
			"columns":  []any{"id", "status"},
			"order_by": "created_at desc",
			"limit":    float64(5),
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": 1}, {"id": 2}}, result)
	assert.Equal(t, "SELECT id, status FROM orders WHERE status = @param_0 ORDER BY created_at DESC LIMIT 5", store.query)
}

func TestExecute_ConfiguredOperation(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{{"species": "versicolor"}}}
	registryStub := &stubRegistry{configs: map[string]*registry.SourceConfig{
		"main_db": {
			SourceID: "main_db",
			Type:     registry.SourceTypeDatabase,
			Operations: map[string]registry.OperationConfig{
				"flowers_by_species": {
					Query:  "SELECT * FROM iris_flowers WHERE species = @species",
					Params: []string{"species"},
				},
			},
		},
	}}
	adapter := NewAdapter(store, registryStub)

	result, err := adapter.Execute(context.Background(), "flowers_by_species", sources.Request{
		SourceID: "main_db",
		Params:   map[string]any{"species": "versicolor", "unused": 1},
	})

	assert.NoError(t, err)
	assert.Equal(t, []map[string]any{{"species": "versicolor"}}, result)
	assert.Equal(t, "SELECT * FROM iris_flowers WHERE species = @species", store.query)
	assert.Equal(t, map[string]any{"species": "versicolor"}, store.args)
}

func TestExecute_ConfiguredOperationUnknown(t *testing.T) {
	registryStub := &stubRegistry{configs: map[string]*registry.SourceConfig{
		"main_db": {SourceID: "main_db", Type: registry.SourceTypeDatabase},
	}}
	adapter := NewAdapter(&fakeStore{}, registryStub)

	_, err := adapter.Execute(context.Background(), "no_such_op", sources.Request{SourceID: "main_db"})

	var dbErr *errs.DatabaseError
	assert.ErrorAs(t, err, &dbErr)
	assert.Contains(t, err.Error(), "unsupported operation 'no_such_op'")
}

func TestExecute_ConfiguredOperationMissingSource(t *testing.T) {
	adapter := NewAdapter(&fakeStore{}, &stubRegistry{})

	_, err := adapter.Execute(context.Background(), "anything", sources.Request{SourceID: "ghost"})

	var dbErr *errs.DatabaseError
	assert.ErrorAs(t, err, &dbErr)
	assert.Contains(t, err.Error(), "configuration not found")
}

func TestExecute_StoreErrorWrapped(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	adapter := NewAdapter(store, &stubRegistry{})

	_, err := adapter.Execute(context.Background(), OperationQuery, sources.Request{
		SourceID: "main_db",
		Params:   map[string]any{"query": "SELECT 1"},
	})

	var dbErr *errs.DatabaseError
	assert.ErrorAs(t, err, &dbErr)
	sourceType, name := dbErr.Source()
	assert.Equal(t, "database", sourceType)
	assert.Equal(t, "main_db", name)
	assert.ErrorContains(t, err, "connection refused")
}
