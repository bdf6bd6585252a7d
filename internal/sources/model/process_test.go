package model

import (
	"context"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/stretchr/testify/assert"
)

func processModel(t *testing.T, command string) registry.ModelConfig {
	t.Helper()
	return registry.ModelConfig{
		ID:       "iris",
		Endpoint: "/predict",
		Source: registry.ModelSourceConfig{
			Type:           SourceLocalArtifact,
			Path:           t.TempDir(),
			StartupCommand: command,
		},
	}
}

func TestProcessRuntime_StartStopCleanup(t *testing.T) {
	runtime := newProcessRuntime("svc_iris", processModel(t, "sleep 30"), Config{
		StartupDelay: 50 * time.Millisecond,
		StopTimeout:  2 * time.Second,
	})

	assert.NoError(t, runtime.Start(context.Background()))
	assert.NoError(t, runtime.WaitHealthy(context.Background()))
	assert.Equal(t, "http://localhost:8000/predict", runtime.Endpoint())

	assert.NoError(t, runtime.Stop(context.Background()))
	assert.NoError(t, runtime.Cleanup())
	assert.NoDirExists(t, runtime.logDir)
}

func TestProcessRuntime_ExitedProcessFailsWithLogs(t *testing.T) {
	runtime := newProcessRuntime("svc_iris", processModel(t, "echo boom; exit 3"), Config{
		StartupDelay: 300 * time.Millisecond,
		StopTimeout:  time.Second,
	})
	t.Cleanup(func() { _ = runtime.Cleanup() })

	assert.NoError(t, runtime.Start(context.Background()))
	err := runtime.WaitHealthy(context.Background())

	var modelErr *errs.ModelError
	assert.ErrorAs(t, err, &modelErr)
	assert.ErrorContains(t, err, "exit code 3")
	assert.ErrorContains(t, err, "boom")
}

func TestProcessRuntime_MissingPath(t *testing.T) {
	runtime := newProcessRuntime("svc_iris", registry.ModelConfig{
		Source: registry.ModelSourceConfig{Type: SourceLocalArtifact, StartupCommand: "sleep 1"},
	}, Config{StartupDelay: time.Millisecond})

	err := runtime.Start(context.Background())
	assert.ErrorContains(t, err, "missing artifact path")
}

func TestProcessRuntime_PathNotFound(t *testing.T) {
	runtime := newProcessRuntime("svc_iris", registry.ModelConfig{
		Source: registry.ModelSourceConfig{
			Type:           SourceLocalArtifact,
			Path:           "/nonexistent/artifacts",
			StartupCommand: "sleep 1",
		},
	}, Config{StartupDelay: time.Millisecond})

	err := runtime.Start(context.Background())
	assert.ErrorContains(t, err, "model artifact path not found")
}

func TestProcessRuntime_MissingStartupCommand(t *testing.T) {
	runtime := newProcessRuntime("svc_iris", registry.ModelConfig{
		Source: registry.ModelSourceConfig{Type: SourceLocalArtifact, Path: t.TempDir()},
	}, Config{StartupDelay: time.Millisecond})

	err := runtime.Start(context.Background())
	assert.ErrorContains(t, err, "missing startup command")
}

func TestProcessRuntime_EndpointOverrides(t *testing.T) {
	model := registry.ModelConfig{
		ID:       "iris",
		Endpoint: "/score",
		Source: registry.ModelSourceConfig{
			Type: SourceLocalArtifact,
			Host: "10.0.0.5",
			Port: 9090,
		},
	}
	runtime := newProcessRuntime("svc_iris", model, Config{})

	assert.Equal(t, "http://10.0.0.5:9090/score", runtime.Endpoint())
}

func TestProcessRuntime_PerModelStartupDelay(t *testing.T) {
	model := registry.ModelConfig{
		Source: registry.ModelSourceConfig{Type: SourceLocalArtifact, StartupDelay: 0.25},
	}
	runtime := newProcessRuntime("svc_iris", model, Config{StartupDelay: 5 * time.Second})

	assert.Equal(t, 250*time.Millisecond, runtime.delay)
}
