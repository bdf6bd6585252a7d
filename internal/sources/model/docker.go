package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/rs/zerolog/log"
)

const defaultDockerBinary = "docker"

// ContainerSpec is the subset of run options the lifecycle manager needs.
// HostPort 0 lets the engine assign a free port, discovered afterwards via
// HostPort.
type ContainerSpec struct {
	Name        string
	Image       string
	HostPort    int
	Port        int
	Environment map[string]string
	Volumes     map[string]string
	AutoRemove  bool
}

// Engine abstracts the container engine CLI that runs model images.
type Engine interface {
	Pull(ctx context.Context, image string) error
	Login(ctx context.Context, registryHost, username, password string) error
	Run(ctx context.Context, spec ContainerSpec) (string, error)
	HostPort(ctx context.Context, containerID string, containerPort int) (int, error)
	Running(ctx context.Context, containerID string) (bool, error)
	Stop(ctx context.Context, containerID string, timeout time.Duration) error
}

// dockerEngine drives the docker binary directly.
type dockerEngine struct {
	bin string
}

func newDockerEngine(bin string) *dockerEngine {
	if bin == "" {
		bin = defaultDockerBinary
	}
	return &dockerEngine{bin: bin}
}

func (e *dockerEngine) Pull(ctx context.Context, image string) error {
	cmd := exec.CommandContext(ctx, e.bin, "pull", image)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker pull failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Login authenticates against a registry, feeding the password over stdin
// so it never appears in the process table.
func (e *dockerEngine) Login(ctx context.Context, registryHost, username, password string) error {
	cmd := exec.CommandContext(ctx, e.bin, "login", "--username", username, "--password-stdin", registryHost)
	cmd.Stdin = strings.NewReader(password)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker login failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (e *dockerEngine) Run(ctx context.Context, spec ContainerSpec) (string, error) {
	args := []string{"run", "--detach", "--name", spec.Name}
	if spec.AutoRemove {
		args = append(args, "--rm")
	}
	if spec.HostPort > 0 {
		args = append(args, "-p", fmt.Sprintf("%d:%d", spec.HostPort, spec.Port))
	} else {
		args = append(args, "-p", strconv.Itoa(spec.Port))
	}
	for _, key := range sortedKeys(spec.Environment) {
		args = append(args, "-e", key+"="+spec.Environment[key])
	}
	for _, hostPath := range sortedKeys(spec.Volumes) {
		args = append(args, "-v", hostPath+":"+spec.Volumes[hostPath])
	}
	args = append(args, spec.Image)

	cmd := exec.CommandContext(ctx, e.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker run failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("docker run returned empty container id")
	}
	return id, nil
}

// portBinding mirrors the docker inspect NetworkSettings.Ports entries.
type portBinding struct {
	HostIP   string `json:"HostIp"`
	HostPort string `json:"HostPort"`
}

func (e *dockerEngine) HostPort(ctx context.Context, containerID string, containerPort int) (int, error) {
	cmd := exec.CommandContext(ctx, e.bin, "inspect", "--format", "{{json .NetworkSettings.Ports}}", containerID)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("docker inspect failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	var ports map[string][]portBinding
	if err := json.Unmarshal(out, &ports); err != nil {
		return 0, fmt.Errorf("parse docker inspect ports: %w", err)
	}
	bindings := ports[fmt.Sprintf("%d/tcp", containerPort)]
	if len(bindings) == 0 {
		return 0, fmt.Errorf("no host port bound for container port %d", containerPort)
	}
	port, err := strconv.Atoi(bindings[0].HostPort)
	if err != nil {
		return 0, fmt.Errorf("parse bound host port %q: %w", bindings[0].HostPort, err)
	}
	return port, nil
}

func (e *dockerEngine) Running(ctx context.Context, containerID string) (bool, error) {
	cmd := exec.CommandContext(ctx, e.bin, "inspect", "--format", "{{.State.Running}}", containerID)
	out, err := cmd.CombinedOutput()
	if err != nil {
		text := strings.TrimSpace(string(out))
		if strings.Contains(text, "No such object") {
			return false, nil
		}
		return false, fmt.Errorf("docker inspect failed: %w: %s", err, text)
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

func (e *dockerEngine) Stop(ctx context.Context, containerID string, timeout time.Duration) error {
	cmd := exec.CommandContext(ctx, e.bin, "stop", "-t", strconv.Itoa(int(timeout.Seconds())), containerID)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker stop failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// containerRuntime backs docker sources with a detached, auto-removed
// container.
type containerRuntime struct {
	modelKey string
	source   registry.ModelSourceConfig
	path     string
	delay    time.Duration
	stopWait time.Duration
	engine   Engine

	containerID string
	hostPort    int
}

func newContainerRuntime(modelKey string, model registry.ModelConfig, config Config, engine Engine) *containerRuntime {
	delay := config.StartupDelay
	if model.Source.StartupDelay > 0 {
		delay = time.Duration(model.Source.StartupDelay * float64(time.Second))
	}
	return &containerRuntime{
		modelKey: modelKey,
		source:   model.Source,
		path:     endpointPath(model),
		delay:    delay,
		stopWait: config.StopTimeout,
		engine:   engine,
	}
}

func (c *containerRuntime) Start(ctx context.Context) error {
	if c.source.Image == "" {
		return errs.NewModelError(c.modelKey, "missing docker image in model configuration", nil)
	}
	if c.source.PullEnabled() {
		log.Info().Str("image", c.source.Image).Msg("pulling model image")
		if err := c.engine.Pull(ctx, c.source.Image); err != nil {
			return errs.NewModelError(c.modelKey, "failed to pull model image", err)
		}
	}

	spec := ContainerSpec{
		Name:        fmt.Sprintf("model_%s_%d", c.modelKey, os.Getpid()),
		Image:       c.source.Image,
		HostPort:    c.source.HostPort,
		Port:        c.containerPort(),
		Environment: c.source.Environment,
		Volumes:     c.source.Volumes,
		AutoRemove:  true,
	}
	containerID, err := c.engine.Run(ctx, spec)
	if err != nil {
		return errs.NewModelError(c.modelKey, "failed to start model container", err)
	}
	c.containerID = containerID
	c.hostPort = c.source.HostPort

	log.Info().
		Str("model_key", c.modelKey).
		Str("container_id", containerID).
		Msg("started model server container")
	return nil
}

// WaitHealthy sleeps the startup delay, verifies the container is still
// running and, when the engine assigned the host port, discovers it.
func (c *containerRuntime) WaitHealthy(ctx context.Context) error {
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	running, err := c.engine.Running(ctx, c.containerID)
	if err != nil {
		return errs.NewModelError(c.modelKey, "failed to inspect model container", err)
	}
	if !running {
		return errs.NewModelError(c.modelKey, "model container exited during startup", nil)
	}

	if c.hostPort == 0 {
		port, err := c.engine.HostPort(ctx, c.containerID, c.containerPort())
		if err != nil {
			return errs.NewModelError(c.modelKey, "failed to get assigned host port for model container", err)
		}
		c.hostPort = port
	}
	return nil
}

func (c *containerRuntime) Endpoint() string {
	host := c.source.Host
	if host == "" {
		host = defaultModelHost
	}
	return fmt.Sprintf("http://%s:%d%s", host, c.hostPort, c.path)
}

// Stop stops the container; auto-remove takes care of deletion.
func (c *containerRuntime) Stop(ctx context.Context) error {
	if c.containerID == "" {
		return nil
	}
	if err := c.engine.Stop(ctx, c.containerID, c.stopWait); err != nil {
		return errs.NewModelError(c.modelKey, "failed to stop model container", err)
	}
	return nil
}

func (c *containerRuntime) Cleanup() error { return nil }

func (c *containerRuntime) containerPort() int {
	if c.source.ContainerPort > 0 {
		return c.source.ContainerPort
	}
	return defaultModelPort
}
