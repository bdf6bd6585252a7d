package model

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/Meesho/BharatMLStack/weaver/pkg/metric"
	"github.com/rs/zerolog/log"
)

const (
	defaultStartupDelay = 5 * time.Second
	defaultStopTimeout  = 10 * time.Second
)

// HealthProbe actively verifies a model endpoint once its runtime reports
// healthy. Optional; without one, readiness rests on the fixed startup
// delay alone.
type HealthProbe func(ctx context.Context, endpoint string) error

// Config carries the manager-wide runtime defaults. A model's source
// configuration overrides the startup delay per model.
type Config struct {
	StartupDelay time.Duration
	StopTimeout  time.Duration
	LogDir       string
	DockerBinary string
	HealthProbe  HealthProbe
}

// ModelRuntime is the bookkeeping record for one model key. Once LOADED
// the record is not mutated again; unloading drops it from the manager.
type ModelRuntime struct {
	ModelKey   string               `json:"model_key"`
	SourceID   string               `json:"source_id"`
	SourceType string               `json:"source_type"`
	State      string               `json:"state"`
	Endpoint   string               `json:"endpoint,omitempty"`
	Config     registry.ModelConfig `json:"-"`

	runtime Runtime
}

// Manager owns every live model runtime. Loads for one model key are
// serialized through a lazily created per-key mutex; different keys load
// independently and concurrently.
type Manager struct {
	config  Config
	factory func(modelKey string, model registry.ModelConfig, config Config) (Runtime, error)

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	models map[string]*ModelRuntime
}

func NewManager(config Config) *Manager {
	if config.StartupDelay <= 0 {
		config.StartupDelay = defaultStartupDelay
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = defaultStopTimeout
	}
	return &Manager{
		config:  config,
		factory: newRuntime,
		locks:   make(map[string]*sync.Mutex),
		models:  make(map[string]*ModelRuntime),
	}
}

// LoadModel starts the runtime backing a model, or returns the cached
// record when the key is already loaded. The returned record carries the
// concrete endpoint.
func (m *Manager) LoadModel(ctx context.Context, model registry.ModelConfig, sourceID string) (*ModelRuntime, error) {
	modelID := model.ID
	if modelID == "" {
		modelID = defaultModelID
	}
	key := ModelKey(sourceID, modelID)

	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if loaded := m.loaded(key); loaded != nil {
		return loaded, nil
	}

	sourceType := model.Source.Type
	if sourceType == "" {
		sourceType = SourceHTTP
	}
	record := &ModelRuntime{
		ModelKey:   key,
		SourceID:   sourceID,
		SourceType: sourceType,
		State:      StateLoading,
		Config:     model,
	}
	m.mu.Lock()
	m.models[key] = record
	m.mu.Unlock()

	start := time.Now()
	runtime, err := m.bringUp(ctx, key, model)
	status := "success"
	if err != nil {
		status = "failed"
	}
	tags := metric.BuildTag(
		metric.NewTag(metric.TagModelKey, key),
		metric.NewTag(metric.TagRuntime, sourceType),
		metric.NewTag(metric.TagStatus, status),
	)
	metric.Incr(metric.ModelLoadCount, tags)
	metric.Timing(metric.ModelLoadLatency, time.Since(start), tags)

	if err != nil {
		m.mu.Lock()
		delete(m.models, key)
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	record.State = StateLoaded
	record.Endpoint = runtime.Endpoint()
	record.runtime = runtime
	m.mu.Unlock()

	log.Info().
		Str("model_key", key).
		Str("endpoint", record.Endpoint).
		Msg("model runtime loaded")
	return record, nil
}

// bringUp drives one runtime through Start, WaitHealthy and the optional
// active probe, tearing it down again on any failure.
func (m *Manager) bringUp(ctx context.Context, key string, model registry.ModelConfig) (Runtime, error) {
	runtime, err := m.factory(key, model, m.config)
	if err != nil {
		return nil, err
	}
	if err := runtime.Start(ctx); err != nil {
		if cleanupErr := runtime.Cleanup(); cleanupErr != nil {
			log.Warn().Err(cleanupErr).Str("model_key", key).Msg("model runtime cleanup failed")
		}
		return nil, err
	}
	if err := runtime.WaitHealthy(ctx); err != nil {
		m.tearDown(key, runtime)
		return nil, err
	}
	if m.config.HealthProbe != nil {
		if err := m.config.HealthProbe(ctx, runtime.Endpoint()); err != nil {
			m.tearDown(key, runtime)
			return nil, errs.NewModelError(key, "model endpoint failed readiness probe", err)
		}
	}
	return runtime, nil
}

// tearDown stops a runtime that never reached LOADED. Uses a background
// context so a cancelled load still releases its process or container.
func (m *Manager) tearDown(key string, runtime Runtime) {
	if err := runtime.Stop(context.Background()); err != nil {
		log.Warn().Err(err).Str("model_key", key).Msg("failed to stop model runtime")
	}
	if err := runtime.Cleanup(); err != nil {
		log.Warn().Err(err).Str("model_key", key).Msg("model runtime cleanup failed")
	}
}

// UnloadModel stops and removes one model runtime. Unknown keys log a
// warning and are otherwise a no-op; stop failures are logged but never
// block the bookkeeping removal.
func (m *Manager) UnloadModel(ctx context.Context, modelKey string) {
	lock := m.keyLock(modelKey)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	record, ok := m.models[modelKey]
	if ok {
		delete(m.models, modelKey)
	}
	m.mu.Unlock()
	if !ok {
		log.Warn().Str("model_key", modelKey).Msg("model not found in loaded models")
		return
	}

	if record.runtime != nil {
		if err := record.runtime.Stop(ctx); err != nil {
			log.Error().Err(err).Str("model_key", modelKey).Msg("error stopping model runtime")
		}
		if err := record.runtime.Cleanup(); err != nil {
			log.Warn().Err(err).Str("model_key", modelKey).Msg("model runtime cleanup failed")
		}
	}

	metric.Incr(metric.ModelUnloadCount, metric.BuildTag(
		metric.NewTag(metric.TagModelKey, modelKey),
		metric.NewTag(metric.TagRuntime, record.SourceType),
	))
	log.Info().Str("model_key", modelKey).Msg("unloaded model")
}

// UnloadAllModels tears down every tracked runtime; the hosting process
// must call it once on shutdown.
func (m *Manager) UnloadAllModels(ctx context.Context) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.models))
	for key := range m.models {
		keys = append(keys, key)
	}
	m.mu.Unlock()

	for _, key := range keys {
		m.UnloadModel(ctx, key)
	}
}

// Runtimes returns a point-in-time snapshot of every tracked runtime,
// ordered by model key.
func (m *Manager) Runtimes() []ModelRuntime {
	m.mu.Lock()
	snapshot := make([]ModelRuntime, 0, len(m.models))
	for _, record := range m.models {
		snapshot = append(snapshot, *record)
	}
	m.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].ModelKey < snapshot[j].ModelKey
	})
	return snapshot
}

// CheckHealth probes every loaded runtime with the configured probe. Used
// by the periodic health sweep; a no-op when no probe is configured.
func (m *Manager) CheckHealth(ctx context.Context) {
	if m.config.HealthProbe == nil {
		return
	}
	for _, record := range m.Runtimes() {
		if record.State != StateLoaded || record.Endpoint == "" {
			continue
		}
		if err := m.config.HealthProbe(ctx, record.Endpoint); err != nil {
			log.Warn().Err(err).
				Str("model_key", record.ModelKey).
				Str("endpoint", record.Endpoint).
				Msg("model health check failed")
			metric.Incr(metric.ModelHealthCheckFailed, metric.BuildTag(
				metric.NewTag(metric.TagModelKey, record.ModelKey),
				metric.NewTag(metric.TagRuntime, record.SourceType),
			))
		}
	}
}

// HTTPProbe builds a HealthProbe that considers a model healthy when its
// endpoint answers at all; the HTTP status is irrelevant, only a transport
// failure marks it down.
func HTTPProbe(timeout time.Duration) HealthProbe {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, endpoint string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}

func (m *Manager) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// loaded returns the record for a key only once it reached LOADED. Callers
// hold the key lock, so a LOADING record can never be observed here.
func (m *Manager) loaded(key string) *ModelRuntime {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.models[key]; ok && record.State == StateLoaded {
		return record
	}
	return nil
}
