package featurestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/internal/sources"
	"github.com/Meesho/BharatMLStack/weaver/pkg/metric"
	"github.com/Meesho/BharatMLStack/weaver/pkg/serializer"
)

const (
	// OperationGetOnlineFeatures returns feature columns aligned with the
	// entity_rows parameter, plus the entity key column.
	OperationGetOnlineFeatures = "get_online_features"
	// OperationGetFeatures is the single-entity form: one value per
	// feature reference.
	OperationGetFeatures = "get_features"

	defaultEntityKey = "id"
)

// Adapter serves feast data sources from the online store tables declared
// in the source's feature views, with an optional look-aside row cache.
type Adapter struct {
	registry registry.Manager
	rows     Rows
	cache    RowCache
}

func NewAdapter(registryManager registry.Manager, rows Rows, cache RowCache) *Adapter {
	return &Adapter{registry: registryManager, rows: rows, cache: cache}
}

func (a *Adapter) Type() string {
	return registry.SourceTypeFeatureStore
}

func (a *Adapter) Execute(ctx context.Context, operation string, req sources.Request) (any, error) {
	switch operation {
	case OperationGetOnlineFeatures:
		return a.onlineFeatures(ctx, req)
	case OperationGetFeatures:
		return a.singleEntityFeatures(ctx, req)
	default:
		return nil, errs.NewFeatureStoreError(req.SourceID, fmt.Sprintf("unsupported operation '%s'", operation), nil)
	}
}

func (a *Adapter) onlineFeatures(ctx context.Context, req sources.Request) (any, error) {
	config, err := a.sourceConfig(req)
	if err != nil {
		return nil, err
	}
	entityRows := entityRowsParam(req.Params)
	if len(entityRows) == 0 {
		return nil, errs.NewFeatureStoreError(req.SourceID, "missing required parameter 'entity_rows'", nil)
	}
	refs := featureRefsParam(req.Params)
	if len(refs) == 0 {
		return nil, errs.NewFeatureStoreError(req.SourceID, "missing required parameter 'features'", nil)
	}

	entityKey := config.EntityKey
	if entityKey == "" {
		entityKey = defaultEntityKey
	}
	entityValues := make([]any, len(entityRows))
	for i, row := range entityRows {
		value, ok := row[entityKey]
		if !ok {
			return nil, errs.NewFeatureStoreError(req.SourceID, fmt.Sprintf("entity row %d is missing key '%s'", i, entityKey), nil)
		}
		entityValues[i] = value
	}

	parsed, err := parseFeatureRefs(req.SourceID, config, refs)
	if err != nil {
		return nil, err
	}

	// one row fetch per view per entity, shared across that view's refs
	viewRows := make(map[string][]map[string]any)
	for view := range parsed.byView {
		viewConfig := config.FeatureViews[view]
		rows := make([]map[string]any, len(entityValues))
		for i, value := range entityValues {
			row, err := a.fetchViewRow(ctx, req.SourceID, config, viewConfig, entityKey, value)
			if err != nil {
				return nil, err
			}
			rows[i] = row
		}
		viewRows[view] = rows
	}

	result := make(map[string]any, len(refs)+1)
	for _, ref := range parsed.ordered {
		column := make([]any, len(entityValues))
		for i, row := range viewRows[ref.view] {
			if row != nil {
				column[i] = row[ref.feature]
			}
		}
		result[ref.raw] = column
	}
	result[entityKey] = entityValues
	return result, nil
}

// singleEntityFeatures resolves one entity and flattens every reference to
// its single value, nil included for a missing row.
func (a *Adapter) singleEntityFeatures(ctx context.Context, req sources.Request) (any, error) {
	entityID, ok := req.Params["entity_id"]
	if !ok {
		entityID, ok = req.Params["id"]
	}
	if !ok {
		return nil, errs.NewFeatureStoreError(req.SourceID, "missing required parameter 'entity_id'", nil)
	}

	config, err := a.sourceConfig(req)
	if err != nil {
		return nil, err
	}
	entityKey := config.EntityKey
	if entityKey == "" {
		entityKey = defaultEntityKey
	}

	params := map[string]any{
		"entity_rows": []any{map[string]any{entityKey: entityID}},
		"features":    req.Params["features"],
	}
	columnar, err := a.onlineFeatures(ctx, sources.Request{Params: params, SourceID: req.SourceID, Domain: req.Domain})
	if err != nil {
		return nil, err
	}

	result := make(map[string]any)
	for ref, column := range columnar.(map[string]any) {
		values := column.([]any)
		if len(values) > 0 {
			result[ref] = values[0]
		}
	}
	return result, nil
}

func (a *Adapter) sourceConfig(req sources.Request) (*registry.SourceConfig, error) {
	config, err := a.registry.GetSourceConfig(registry.SourceTypeFeatureStore, req.SourceID)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errs.NewFeatureStoreError(req.SourceID, fmt.Sprintf("feast configuration not found for source '%s'", req.SourceID), nil)
	}
	return config, nil
}

// fetchViewRow reads (and decodes) one entity's row for a view, consulting
// the look-aside cache first when the source enables it.
func (a *Adapter) fetchViewRow(ctx context.Context, sourceID string, config *registry.SourceConfig, view registry.FeatureViewConfig, entityKey string, entityValue any) (map[string]any, error) {
	ttl := time.Duration(config.CacheTtlSeconds) * time.Second
	key := fmt.Sprintf("feast:%s:%s:%v", sourceID, view.Table, entityValue)
	cacheTags := metric.BuildTag(metric.NewTag(metric.TagSourceName, sourceID))
	if a.cache != nil && ttl > 0 {
		if row, ok := a.cache.Get(ctx, key); ok {
			metric.Incr(metric.FeatureCacheHitCount, cacheTags)
			return row, nil
		}
		metric.Incr(metric.FeatureCacheMissCount, cacheTags)
	}

	columns := make([]string, 0, len(view.Columns))
	for column := range view.Columns {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	raw, err := a.rows.FetchRow(ctx, config.Keyspace, view.Table, entityKey, entityValue, columns)
	if err != nil {
		return nil, errs.NewFeatureStoreError(sourceID, fmt.Sprintf("failed to retrieve features: %s", err.Error()), err)
	}
	if raw == nil {
		return nil, nil
	}

	row, err := decodeRow(sourceID, raw, view.Columns)
	if err != nil {
		return nil, err
	}
	if a.cache != nil && ttl > 0 {
		a.cache.Set(ctx, key, row, ttl)
	}
	return row, nil
}

// decodeRow converts packed column values to their declared types. Values
// that arrive already typed pass through unchanged.
func decodeRow(sourceID string, raw map[string]any, columnTypes map[string]string) (map[string]any, error) {
	row := make(map[string]any, len(raw))
	for column, value := range raw {
		packed, ok := value.([]byte)
		if !ok {
			row[column] = value
			continue
		}
		decoded, err := serializer.DecodeColumn(packed, columnTypes[column])
		if err != nil {
			return nil, errs.NewFeatureStoreError(sourceID, fmt.Sprintf("failed to decode column '%s': %s", column, err.Error()), err)
		}
		row[column] = decoded
	}
	return row, nil
}

type parsedRef struct {
	raw     string
	view    string
	feature string
}

type parsedRefs struct {
	ordered []parsedRef
	byView  map[string][]string
}

func parseFeatureRefs(sourceID string, config *registry.SourceConfig, refs []string) (*parsedRefs, error) {
	parsed := &parsedRefs{byView: make(map[string][]string)}
	for _, ref := range refs {
		view, feature, found := strings.Cut(ref, ":")
		if !found || view == "" || feature == "" {
			return nil, errs.NewFeatureStoreError(sourceID, fmt.Sprintf("invalid feature reference %q, expected view:feature", ref), nil)
		}
		viewConfig, ok := config.FeatureViews[view]
		if !ok {
			return nil, errs.NewFeatureStoreError(sourceID, fmt.Sprintf("unknown feature view '%s'", view), nil)
		}
		if _, ok := viewConfig.Columns[feature]; !ok {
			return nil, errs.NewFeatureStoreError(sourceID, fmt.Sprintf("unknown feature '%s' in view '%s'", feature, view), nil)
		}
		parsed.ordered = append(parsed.ordered, parsedRef{raw: ref, view: view, feature: feature})
		parsed.byView[view] = append(parsed.byView[view], feature)
	}
	return parsed, nil
}

func entityRowsParam(params map[string]any) []map[string]any {
	raw, ok := params["entity_rows"].([]any)
	if !ok {
		if typed, ok := params["entity_rows"].([]map[string]any); ok {
			return typed
		}
		return nil
	}
	rows := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func featureRefsParam(params map[string]any) []string {
	switch value := params["features"].(type) {
	case []string:
		return value
	case []any:
		refs := make([]string, 0, len(value))
		for _, item := range value {
			if ref, ok := item.(string); ok {
				refs = append(refs, ref)
			}
		}
		return refs
	default:
		return nil
	}
}
