package model

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/stretchr/testify/assert"
)

type fakeRuntime struct {
	endpoint   string
	startErr   error
	healthyErr error

	starts   int
	stops    int
	cleanups int
}

func (f *fakeRuntime) Start(context.Context) error {
	f.starts++
	return f.startErr
}

func (f *fakeRuntime) WaitHealthy(context.Context) error {
	return f.healthyErr
}

func (f *fakeRuntime) Endpoint() string { return f.endpoint }

func (f *fakeRuntime) Stop(context.Context) error {
	f.stops++
	return nil
}

func (f *fakeRuntime) Cleanup() error {
	f.cleanups++
	return nil
}

// fakeFactory hands out one shared runtime and counts how often the
// manager asked for a fresh one.
type fakeFactory struct {
	runtime *fakeRuntime
	builds  int
}

func (f *fakeFactory) build(string, registry.ModelConfig, Config) (Runtime, error) {
	f.builds++
	return f.runtime, nil
}

func newTestManager(runtime *fakeRuntime) (*Manager, *fakeFactory) {
	manager := NewManager(Config{})
	factory := &fakeFactory{runtime: runtime}
	manager.factory = factory.build
	return manager, factory
}

func TestModelKey(t *testing.T) {
	assert.Equal(t, "ml_service_churn", ModelKey("ml_service", "churn"))
}

func TestLoadModel_HTTPSource(t *testing.T) {
	manager := NewManager(Config{})

	runtime, err := manager.LoadModel(context.Background(), registry.ModelConfig{
		ID:       "churn",
		Endpoint: "http://models.internal/churn/predict",
	}, "ml_service")

	assert.NoError(t, err)
	assert.Equal(t, "ml_service_churn", runtime.ModelKey)
	assert.Equal(t, SourceHTTP, runtime.SourceType)
	assert.Equal(t, StateLoaded, runtime.State)
	assert.Equal(t, "http://models.internal/churn/predict", runtime.Endpoint)
}

func TestLoadModel_DefaultsModelID(t *testing.T) {
	manager := NewManager(Config{})

	runtime, err := manager.LoadModel(context.Background(), registry.ModelConfig{
		Endpoint: "http://models.internal/predict",
	}, "ml_service")

	assert.NoError(t, err)
	assert.Equal(t, "ml_service_default", runtime.ModelKey)
}

func TestLoadModel_Idempotent(t *testing.T) {
	manager, factory := newTestManager(&fakeRuntime{endpoint: "http://localhost:8000/predict"})
	model := registry.ModelConfig{ID: "iris", Source: registry.ModelSourceConfig{Type: SourceLocalArtifact}}

	first, err := manager.LoadModel(context.Background(), model, "iris_svc")
	assert.NoError(t, err)
	second, err := manager.LoadModel(context.Background(), model, "iris_svc")
	assert.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, factory.builds)
	assert.Equal(t, 1, factory.runtime.starts)
}

func TestLoadModel_ConcurrentCallsStartOnce(t *testing.T) {
	manager, factory := newTestManager(&fakeRuntime{endpoint: "http://localhost:8000/predict"})
	model := registry.ModelConfig{ID: "iris", Source: registry.ModelSourceConfig{Type: SourceLocalArtifact}}

	const callers = 10
	endpoints := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runtime, err := manager.LoadModel(context.Background(), model, "iris_svc")
			assert.NoError(t, err)
			endpoints[i] = runtime.Endpoint
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, factory.runtime.starts)
	for _, endpoint := range endpoints {
		assert.Equal(t, "http://localhost:8000/predict", endpoint)
	}
}

func TestLoadModel_StartFailureDropsRecord(t *testing.T) {
	runtime := &fakeRuntime{startErr: errors.New("no such file")}
	manager, factory := newTestManager(runtime)
	model := registry.ModelConfig{ID: "iris", Source: registry.ModelSourceConfig{Type: SourceLocalArtifact}}

	_, err := manager.LoadModel(context.Background(), model, "iris_svc")
	assert.Error(t, err)
	assert.Empty(t, manager.Runtimes())
	assert.Equal(t, 1, runtime.cleanups)

	// the key is retryable after a failed load
	runtime.startErr = nil
	_, err = manager.LoadModel(context.Background(), model, "iris_svc")
	assert.NoError(t, err)
	assert.Equal(t, 2, factory.builds)
}

func TestLoadModel_UnhealthyRuntimeTornDown(t *testing.T) {
	runtime := &fakeRuntime{healthyErr: errs.NewModelError("iris_svc_iris", "model server process terminated unexpectedly", nil)}
	manager, _ := newTestManager(runtime)
	model := registry.ModelConfig{ID: "iris", Source: registry.ModelSourceConfig{Type: SourceLocalArtifact}}

	_, err := manager.LoadModel(context.Background(), model, "iris_svc")

	var modelErr *errs.ModelError
	assert.ErrorAs(t, err, &modelErr)
	assert.Equal(t, 1, runtime.stops)
	assert.Equal(t, 1, runtime.cleanups)
	assert.Empty(t, manager.Runtimes())
}

func TestLoadModel_ProbeFailureTearsDown(t *testing.T) {
	runtime := &fakeRuntime{endpoint: "http://localhost:8000/predict"}
	manager := NewManager(Config{
		HealthProbe: func(context.Context, string) error { return errors.New("connection refused") },
	})
	factory := &fakeFactory{runtime: runtime}
	manager.factory = factory.build
	model := registry.ModelConfig{ID: "iris", Source: registry.ModelSourceConfig{Type: SourceLocalArtifact}}

	_, err := manager.LoadModel(context.Background(), model, "iris_svc")

	var modelErr *errs.ModelError
	assert.ErrorAs(t, err, &modelErr)
	assert.ErrorContains(t, err, "readiness probe")
	assert.Equal(t, 1, runtime.stops)
}

func TestLoadModel_UnsupportedSourceType(t *testing.T) {
	manager := NewManager(Config{})

	_, err := manager.LoadModel(context.Background(), registry.ModelConfig{
		ID:     "iris",
		Source: registry.ModelSourceConfig{Type: "kubernetes"},
	}, "iris_svc")

	var modelErr *errs.ModelError
	assert.ErrorAs(t, err, &modelErr)
	assert.ErrorContains(t, err, "unsupported model source type 'kubernetes'")
}

func TestUnloadModel_StopsRuntime(t *testing.T) {
	runtime := &fakeRuntime{endpoint: "http://localhost:8000/predict"}
	manager, _ := newTestManager(runtime)
	model := registry.ModelConfig{ID: "iris", Source: registry.ModelSourceConfig{Type: SourceLocalArtifact}}

	_, err := manager.LoadModel(context.Background(), model, "iris_svc")
	assert.NoError(t, err)

	manager.UnloadModel(context.Background(), "iris_svc_iris")

	assert.Equal(t, 1, runtime.stops)
	assert.Equal(t, 1, runtime.cleanups)
	assert.Empty(t, manager.Runtimes())
}

func TestUnloadModel_UnknownKeyIsNoOp(t *testing.T) {
	manager := NewManager(Config{})

	assert.NotPanics(t, func() {
		manager.UnloadModel(context.Background(), "ghost_default")
	})
}

func TestUnloadAllModels(t *testing.T) {
	manager := NewManager(Config{})

	_, err := manager.LoadModel(context.Background(), registry.ModelConfig{ID: "a", Endpoint: "http://a/predict"}, "svc")
	assert.NoError(t, err)
	_, err = manager.LoadModel(context.Background(), registry.ModelConfig{ID: "b", Endpoint: "http://b/predict"}, "svc")
	assert.NoError(t, err)
	assert.Len(t, manager.Runtimes(), 2)

	manager.UnloadAllModels(context.Background())

	assert.Empty(t, manager.Runtimes())
}

func TestRuntimes_SortedSnapshot(t *testing.T) {
	manager := NewManager(Config{})

	_, err := manager.LoadModel(context.Background(), registry.ModelConfig{ID: "zeta", Endpoint: "http://z/predict"}, "svc")
	assert.NoError(t, err)
	_, err = manager.LoadModel(context.Background(), registry.ModelConfig{ID: "alpha", Endpoint: "http://a/predict"}, "svc")
	assert.NoError(t, err)

	runtimes := manager.Runtimes()
	assert.Equal(t, "svc_alpha", runtimes[0].ModelKey)
	assert.Equal(t, "svc_zeta", runtimes[1].ModelKey)
}

func TestCheckHealth_ProbesLoadedRuntimes(t *testing.T) {
	manager := NewManager(Config{})
	_, err := manager.LoadModel(context.Background(), registry.ModelConfig{ID: "iris", Endpoint: "http://iris/predict"}, "svc")
	assert.NoError(t, err)

	var probed []string
	manager.config.HealthProbe = func(_ context.Context, endpoint string) error {
		probed = append(probed, endpoint)
		return errors.New("unreachable")
	}

	manager.CheckHealth(context.Background())

	assert.Equal(t, []string{"http://iris/predict"}, probed)
}
