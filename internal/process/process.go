// Package process launches and stops the simulation build.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"
)

// ErrNoPath is returned by Start without an executable.
var ErrNoPath = errors.New("no executable path")

const (
	// DefaultBufferSize is the output tail kept per process.
	DefaultBufferSize = 256 * 1024
	// DefaultGracefulTimeout is how long Stop waits after SIGTERM.
	DefaultGracefulTimeout = 5 * time.Second
)

// Config describes how to launch a build.
type Config struct {
	Path string
	Args []string
	// Port is passed as -port=<port> when non-zero.
	Port int
	Dir  string
	Env  []string

	BufferSize      int
	GracefulTimeout time.Duration
	Logger          *slog.Logger
}

// Process is a running build.
type Process struct {
	cmd    *exec.Cmd
	output *ringBuffer
	logger *slog.Logger

	graceful time.Duration
	exitCode atomic.Int32
	done     chan struct{}
}

// Start launches the build in its own process group. Output is captured in
// a bounded buffer. The process is not tied to ctx after Start returns.
func Start(ctx context.Context, cfg Config) (*Process, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	args := append([]string(nil), cfg.Args...)
	if cfg.Port > 0 {
		args = append(args, "-port="+strconv.Itoa(cfg.Port))
	}

	cmd := exec.Command(cfg.Path, args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	} else {
		cmd.Env = os.Environ()
	}
	setProcAttr(cmd)

	out := newRingBuffer(cfg.BufferSize)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start build %s: %w", cfg.Path, err)
	}
	if err := setupJobObject(cmd); err != nil {
		cfg.Logger.Warn("failed to attach job object", "pid", cmd.Process.Pid, "error", err)
	}

	p := &Process{
		cmd:      cmd,
		output:   out,
		logger:   cfg.Logger,
		graceful: cfg.GracefulTimeout,
		done:     make(chan struct{}),
	}
	p.exitCode.Store(-1)
	cfg.Logger.Info("build started", "pid", cmd.Process.Pid, "path", cfg.Path, "port", cfg.Port)

	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	cleanupJobObject(p.cmd.Process.Pid)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.exitCode.Store(0)
	case errors.As(err, &exitErr):
		p.exitCode.Store(int32(exitErr.ExitCode()))
	}
	p.logger.Debug("build exited", "pid", p.cmd.Process.Pid, "code", p.exitCode.Load())
	close(p.done)
}

// PID returns the process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, or -1 while running or when killed by a
// signal.
func (p *Process) ExitCode() int { return int(p.exitCode.Load()) }

// Output returns the captured stdout and stderr tail, and whether older
// output was dropped.
func (p *Process) Output() ([]byte, bool) { return p.output.Bytes() }

// Stop asks the process group to terminate, then kills it after the
// graceful timeout or when ctx is done.
func (p *Process) Stop(ctx context.Context) error {
	if p.Exited() {
		return nil
	}

	if err := signalTerm(p.cmd); err != nil {
		p.logger.Debug("terminate signal failed", "pid", p.PID(), "error", err)
	}

	timer := time.NewTimer(p.graceful)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
		p.logger.Warn("build did not exit, killing", "pid", p.PID(), "timeout", p.graceful)
	case <-ctx.Done():
	}
	return p.kill()
}

func (p *Process) kill() error {
	if err := signalKill(p.cmd); err != nil && !p.Exited() {
		return fmt.Errorf("failed to kill build %d: %w", p.PID(), err)
	}
	select {
	case <-p.done:
	case <-time.After(time.Second):
	}
	return nil
}
