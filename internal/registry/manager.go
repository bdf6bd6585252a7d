package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/pkg/metric"
	"github.com/rs/zerolog/log"
)

const (
	modelScoringPrefix    = "model_scoring_"
	modelScoringOperation = "predict"
)

// Manager is the read side of the configuration registry. Lookups are cached
// after first load; Reload drops the caches so subsequent lookups see fresh
// documents. A missing endpoint or source is (nil, nil), not an error.
type Manager interface {
	GetEndpointConfig(domain, operation string) (*EndpointConfig, error)
	GetSourceConfig(sourceType, sourceID string) (*SourceConfig, error)
	GetSourceConfigs(sourceType string) (map[string]*SourceConfig, error)
	ListDomains() ([]string, error)
	Reload() error
	InvalidateEndpoints()
}

// Provider loads raw registry documents from a backing store.
type Provider interface {
	LoadDomain(domain string) (*DomainConfig, error)
	ListDomains() ([]string, error)
	LoadSources(sourceType string) (map[string]*SourceConfig, error)
}

type manager struct {
	provider  Provider
	endpoints *configCache
	mu        sync.RWMutex
	sources   map[string]map[string]*SourceConfig
}

func NewManager(provider Provider, cacheMaxItems int64) Manager {
	return &manager{
		provider:  provider,
		endpoints: newConfigCache(cacheMaxItems),
		sources:   make(map[string]map[string]*SourceConfig),
	}
}

func (m *manager) GetEndpointConfig(domain, operation string) (*EndpointConfig, error) {
	key := domain + "." + operation
	if cached, found := m.endpoints.Get(key); found {
		return cached.(*EndpointConfig), nil
	}
	domainConfig, err := m.provider.LoadDomain(domain)
	if err != nil {
		return nil, err
	}
	var endpoint *EndpointConfig
	if domainConfig != nil {
		endpoint = domainConfig.Endpoints[operation]
	}
	if endpoint == nil && operation == modelScoringOperation && strings.HasPrefix(domain, modelScoringPrefix) {
		if endpoint, err = m.synthesizeModelScoring(domain); err != nil {
			return nil, err
		}
	}
	if endpoint == nil {
		log.Warn().Str("domain", domain).Str("operation", operation).Msg("no endpoint config found")
		return nil, nil
	}
	if endpoint.DomainID == "" {
		endpoint.DomainID = domain
	}
	if err := m.validateEndpoint(domain, operation, endpoint); err != nil {
		return nil, err
	}
	m.endpoints.Set(key, endpoint)
	return endpoint, nil
}

func (m *manager) GetSourceConfigs(sourceType string) (map[string]*SourceConfig, error) {
	m.mu.RLock()
	byID, ok := m.sources[sourceType]
	m.mu.RUnlock()
	if ok {
		return byID, nil
	}
	loaded, err := m.provider.LoadSources(sourceType)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		loaded = map[string]*SourceConfig{}
	}
	for id, source := range loaded {
		if !knownSourceType(source.Type) {
			return nil, errs.NewConfigurationError(fmt.Sprintf("%s source %q has unknown type %q", sourceType, id, source.Type))
		}
	}
	m.mu.Lock()
	if existing, ok := m.sources[sourceType]; ok {
		loaded = existing
	} else {
		m.sources[sourceType] = loaded
	}
	m.mu.Unlock()
	return loaded, nil
}

func (m *manager) GetSourceConfig(sourceType, sourceID string) (*SourceConfig, error) {
	sources, err := m.GetSourceConfigs(sourceType)
	if err != nil {
		return nil, err
	}
	source, ok := sources[sourceID]
	if !ok {
		log.Warn().Str("sourceType", sourceType).Str("sourceId", sourceID).Msg("no source config found")
		return nil, nil
	}
	return source, nil
}

func (m *manager) ListDomains() ([]string, error) {
	domains, err := m.provider.ListDomains()
	if err != nil {
		return nil, err
	}
	sort.Strings(domains)
	return domains, nil
}

// Reload resets the source snapshot and the endpoint cache. Configs are
// re-read lazily on the next lookup.
func (m *manager) Reload() error {
	domains, err := m.provider.ListDomains()
	if err != nil {
		metric.Incr(metric.RegistryReloadCount, metric.BuildTag(metric.NewTag(metric.TagStatus, "failed")))
		return err
	}
	m.mu.Lock()
	m.sources = make(map[string]map[string]*SourceConfig)
	m.mu.Unlock()
	m.InvalidateEndpoints()
	metric.Incr(metric.RegistryReloadCount, metric.BuildTag(metric.NewTag(metric.TagStatus, "success")))
	log.Info().Int("domains", len(domains)).Msg("registry reloaded, cached configs invalidated")
	return nil
}

func (m *manager) InvalidateEndpoints() {
	m.endpoints.Clear()
}

// validateEndpoint rejects configs the executor could never run: a source
// type outside the known vocabulary, or a source_id no integration declares.
// Missing name/type/operation are left to the executor, which skips those
// specs with a warning at run time.
func (m *manager) validateEndpoint(domain, operation string, endpoint *EndpointConfig) error {
	for _, spec := range endpoint.DataSources {
		if spec.Type == "" || spec.Type == SourceTypeDirect {
			continue
		}
		if !knownSourceType(spec.Type) {
			return errs.NewConfigurationError(fmt.Sprintf("endpoint %s.%s: data source %q has unknown type %q", domain, operation, spec.Name, spec.Type))
		}
		if spec.SourceID == "" {
			continue
		}
		source, err := m.GetSourceConfig(spec.Type, spec.SourceID)
		if err != nil {
			return err
		}
		if source == nil {
			return errs.NewConfigurationError(fmt.Sprintf("endpoint %s.%s: data source %q references unknown %s source %q", domain, operation, spec.Name, spec.Type, spec.SourceID))
		}
	}
	return nil
}

// synthesizeModelScoring builds a predict endpoint for model_scoring_<model>
// domains without an explicit config, pointing at the first ml source that
// declares the model.
func (m *manager) synthesizeModelScoring(domain string) (*EndpointConfig, error) {
	modelName := strings.TrimPrefix(domain, modelScoringPrefix)
	sources, err := m.GetSourceConfigs(SourceTypeModel)
	if err != nil {
		return nil, err
	}
	for _, sourceID := range sortedSourceIDs(sources) {
		if _, ok := sources[sourceID].Models[modelName]; !ok {
			continue
		}
		log.Info().Str("domain", domain).Str("sourceId", sourceID).Str("model", modelName).Msg("synthesized model scoring endpoint")
		return &EndpointConfig{
			DomainID: domain,
			DataSources: []DataSourceSpec{{
				Name:      "prediction",
				Type:      SourceTypeModel,
				Operation: modelScoringOperation,
				SourceID:  sourceID,
				Params: map[string]any{
					"model_id": modelName,
					"features": "$request.body.features || $request.body",
				},
			}},
			PrimarySource: "prediction",
		}, nil
	}
	return nil, nil
}

func knownSourceType(sourceType string) bool {
	switch sourceType {
	case SourceTypeDatabase, SourceTypeAPI, SourceTypeFeatureStore, SourceTypeModel, SourceTypeDirect:
		return true
	}
	return false
}

func sortedSourceIDs(sources map[string]*SourceConfig) []string {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
