package model

import (
	"context"
	"fmt"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
)

const (
	// SourceHTTP is the default model source: the configured endpoint is
	// already concrete and nothing has to be started.
	SourceHTTP = "http"
	// SourceLocalArtifact starts the model server as a child process from
	// a local artifact directory.
	SourceLocalArtifact = "local_artifact"
	// SourceDocker runs the model server as a detached container.
	SourceDocker = "docker"
	// SourceECR pulls the image from an ECR registry first, then runs it
	// the same way as a docker source.
	SourceECR = "ecr"

	defaultPredictPath = "/predict"
	defaultModelHost   = "localhost"
	defaultModelPort   = 8000
)

// Model runtime states. A key moves UNLOADED -> LOADING -> LOADED; unload
// returns it to UNLOADED by dropping the record.
const (
	StateUnloaded = "UNLOADED"
	StateLoading  = "LOADING"
	StateLoaded   = "LOADED"
)

// ModelKey identifies one runtime: a model id within an ml source.
func ModelKey(sourceID, modelID string) string {
	return sourceID + "_" + modelID
}

// Runtime is one live model backing. Start launches the underlying process
// or container, WaitHealthy blocks until it is serving (or reports why it
// is not), Stop tears it down and Cleanup releases local leftovers such as
// log directories. Implementations are driven by the Manager under a
// per-model-key lock and need no internal synchronization.
type Runtime interface {
	Start(ctx context.Context) error
	WaitHealthy(ctx context.Context) error
	Endpoint() string
	Stop(ctx context.Context) error
	Cleanup() error
}

// staticRuntime backs http sources. The endpoint is taken verbatim from the
// model configuration and there is nothing to start or stop.
type staticRuntime struct {
	endpoint string
}

func (s *staticRuntime) Start(context.Context) error       { return nil }
func (s *staticRuntime) WaitHealthy(context.Context) error { return nil }
func (s *staticRuntime) Endpoint() string                  { return s.endpoint }
func (s *staticRuntime) Stop(context.Context) error        { return nil }
func (s *staticRuntime) Cleanup() error                    { return nil }

// newRuntime builds the Runtime for a model configuration, dispatching on
// the source type. It is the Manager's default factory.
func newRuntime(modelKey string, model registry.ModelConfig, config Config) (Runtime, error) {
	sourceType := model.Source.Type
	if sourceType == "" {
		sourceType = SourceHTTP
	}

	switch sourceType {
	case SourceHTTP:
		return &staticRuntime{endpoint: model.Endpoint}, nil
	case SourceLocalArtifact:
		return newProcessRuntime(modelKey, model, config), nil
	case SourceDocker:
		return newContainerRuntime(modelKey, model, config, newDockerEngine(config.DockerBinary)), nil
	case SourceECR:
		region := model.Source.Region
		if region == "" {
			region = defaultECRRegion
		}
		container := newContainerRuntime(modelKey, model, config, newDockerEngine(config.DockerBinary))
		return &registryRuntime{containerRuntime: container, auth: NewECRAuth(region)}, nil
	default:
		return nil, errs.NewModelError(modelKey, fmt.Sprintf("unsupported model source type '%s'", sourceType), nil)
	}
}

// endpointPath is the request path appended to a managed runtime's host and
// port. For http sources ModelConfig.Endpoint is the full URL instead.
func endpointPath(model registry.ModelConfig) string {
	if model.Endpoint == "" {
		return defaultPredictPath
	}
	return model.Endpoint
}
