package model

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
	"github.com/rs/zerolog/log"
)

// logTailBytes caps how much of the process log is attached to a startup
// failure.
const logTailBytes = 4096

// processRuntime backs local_artifact sources: the startup command runs as
// a child process with the artifact directory as its working directory and
// stdout/stderr captured in a per-attempt temp log file.
type processRuntime struct {
	modelKey string
	source   registry.ModelSourceConfig
	path     string
	delay    time.Duration
	stopWait time.Duration
	logRoot  string

	cmd     *exec.Cmd
	logDir  string
	logFile string
	done    chan struct{}
}

func newProcessRuntime(modelKey string, model registry.ModelConfig, config Config) *processRuntime {
	delay := config.StartupDelay
	if model.Source.StartupDelay > 0 {
		delay = time.Duration(model.Source.StartupDelay * float64(time.Second))
	}
	return &processRuntime{
		modelKey: modelKey,
		source:   model.Source,
		path:     endpointPath(model),
		delay:    delay,
		stopWait: config.StopTimeout,
		logRoot:  config.LogDir,
	}
}

// Start launches the startup command through the shell. The server must
// outlive the request that triggered the load, so the command is not bound
// to ctx; teardown happens only through Stop.
func (p *processRuntime) Start(_ context.Context) error {
	if p.source.Path == "" {
		return errs.NewModelError(p.modelKey, "missing artifact path in model configuration", nil)
	}
	if _, err := os.Stat(p.source.Path); err != nil {
		return errs.NewModelError(p.modelKey, fmt.Sprintf("model artifact path not found: %s", p.source.Path), err)
	}
	if p.source.StartupCommand == "" {
		return errs.NewModelError(p.modelKey, "missing startup command in model configuration", nil)
	}

	logDir, err := os.MkdirTemp(p.logRoot, "model_")
	if err != nil {
		return errs.NewModelError(p.modelKey, "failed to create model log directory", err)
	}
	p.logDir = logDir
	p.logFile = filepath.Join(logDir, p.modelKey+".log")
	logOut, err := os.Create(p.logFile)
	if err != nil {
		return errs.NewModelError(p.modelKey, "failed to create model log file", err)
	}

	cmd := exec.Command("/bin/sh", "-c", p.source.StartupCommand)
	cmd.Dir = p.source.Path
	cmd.Stdout = logOut
	cmd.Stderr = logOut
	if err := cmd.Start(); err != nil {
		logOut.Close()
		return errs.NewModelError(p.modelKey, "failed to start model server process", err)
	}
	logOut.Close()

	p.cmd = cmd
	p.done = make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()

	log.Info().
		Str("model_key", p.modelKey).
		Str("artifact_path", p.source.Path).
		Msg("started model server from local artifact")
	return nil
}

// WaitHealthy sleeps the configured startup delay, then fails if the
// process has already exited, attaching the exit code and the log tail.
func (p *processRuntime) WaitHealthy(ctx context.Context) error {
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-p.done:
		return errs.NewModelError(p.modelKey,
			fmt.Sprintf("model server process terminated unexpectedly, exit code %d, logs: %s",
				p.cmd.ProcessState.ExitCode(), logTail(p.logFile)), nil)
	default:
		return nil
	}
}

func (p *processRuntime) Endpoint() string {
	host := p.source.Host
	if host == "" {
		host = defaultModelHost
	}
	port := p.source.Port
	if port == 0 {
		port = defaultModelPort
	}
	return fmt.Sprintf("http://%s:%d%s", host, port, p.path)
}

// Stop terminates the process, waiting up to the stop timeout before
// killing it outright.
func (p *processRuntime) Stop(ctx context.Context) error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Warn().Err(err).Str("model_key", p.modelKey).Msg("failed to signal model server process")
	}
	timer := time.NewTimer(p.stopWait)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}
	_ = p.cmd.Process.Kill()
	<-p.done
	return nil
}

func (p *processRuntime) Cleanup() error {
	if p.logDir == "" {
		return nil
	}
	return os.RemoveAll(p.logDir)
}

func logTail(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > logTailBytes {
		data = data[len(data)-logTailBytes:]
	}
	return strings.TrimSpace(string(data))
}
