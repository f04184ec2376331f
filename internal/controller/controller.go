// Package controller runs a session with the simulation build: it launches
// or connects to the build and drives the lock-step communicate loop.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/build"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
	"github.com/standardbeagle/tdwctl/internal/process"
	"github.com/standardbeagle/tdwctl/internal/transport"
)

const (
	// Version is the build version this controller is written against.
	Version = "1.12.0"
	// DefaultPort is the build's default socket port.
	DefaultPort = 1071
	// DefaultMaxResends bounds resends of a single batch.
	DefaultMaxResends = 10

	outputTail = 4096
)

var (
	// ErrQuit is returned by Communicate after the build sent a quit signal.
	ErrQuit = errors.New("build quit")
	// ErrBuildExited is returned when a launched build exits mid-session.
	ErrBuildExited = errors.New("build process exited")
	// ErrResendBudgetExhausted is returned when the build keeps failing to
	// receive the same batch.
	ErrResendBudgetExhausted = errors.New("resend budget exhausted")
	// ErrWaitBudgetExhausted is returned by WaitUntil when the condition did
	// not hold within the cycle budget.
	ErrWaitBudgetExhausted = errors.New("wait budget exhausted")
)

// BuildInfo is what the build reported during the handshake.
type BuildInfo struct {
	TDWVersion   string
	UnityVersion string
	Standalone   bool
}

// Controller is one session with one build. Communicate calls are
// serialized; at most one request is in flight.
type Controller struct {
	mu sync.Mutex

	transport transport.Transport
	proc      *process.Process
	chain     addon.Chain
	ids       IDGenerator
	logger    *slog.Logger
	session   string

	maxResends int
	info       BuildInfo
	quit       bool
	closed     bool
}

// New prepares and launches the build unless told not to, connects to it,
// and performs the version handshake.
func New(ctx context.Context, opts ...Option) (*Controller, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.ids == nil {
		o.ids = NewRandomIDs()
	}

	c := &Controller{
		ids:        o.ids,
		session:    uuid.NewString(),
		maxResends: o.maxResends,
	}
	c.logger = o.logger.With("session", c.session)
	topts := append([]transport.Option{transport.WithLogger(c.logger)}, o.transport...)

	if o.webgl != "" {
		if err := c.acceptWebGL(ctx, o.webgl, topts); err != nil {
			return nil, err
		}
	} else {
		if o.launch {
			if err := c.launch(ctx, o); err != nil {
				return nil, err
			}
		}
		if err := c.dial(ctx, net.JoinHostPort(o.host, strconv.Itoa(o.port)), topts); err != nil {
			c.stopBuild(ctx)
			return nil, err
		}
	}

	if err := c.handshake(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	if o.checkVersion {
		c.checkVersion(o.buildVersion)
	}
	c.chain.Add(o.addOns...)
	return c, nil
}

func (c *Controller) launch(ctx context.Context, o options) error {
	path := o.buildPath
	if path == "" {
		inst := o.installer
		if inst == nil {
			var err error
			if inst, err = build.NewInstaller(build.WithLogger(c.logger)); err != nil {
				return err
			}
		}
		var err error
		if path, err = inst.Ensure(ctx, o.buildVersion); err != nil {
			return fmt.Errorf("failed to install build: %w", err)
		}
	}

	proc, err := process.Start(ctx, process.Config{
		Path:            path,
		Port:            o.port,
		GracefulTimeout: o.graceful,
		Logger:          c.logger,
	})
	if err != nil {
		return err
	}
	c.proc = proc
	return nil
}

func (c *Controller) dial(ctx context.Context, addr string, topts []transport.Option) error {
	ctx, done := c.watchBuild(ctx)
	defer done()

	t, err := transport.Dial(ctx, addr, topts...)
	if err != nil {
		return c.buildError(ctx, err)
	}
	c.transport = t
	c.logger.Info("connected to build", "addr", addr)
	return nil
}

func (c *Controller) acceptWebGL(ctx context.Context, addr string, topts []transport.Option) error {
	srv, err := transport.ListenWebSocket(addr, topts...)
	if err != nil {
		return err
	}
	c.logger.Info("waiting for WebGL build", "url", srv.URL())
	ws, err := srv.Accept(ctx)
	if err != nil {
		_ = srv.Close()
		return err
	}
	c.transport = ws
	return nil
}

func (c *Controller) handshake(ctx context.Context) error {
	resp, err := c.Communicate(ctx, command.SetErrorHandling(true, true, false), command.SendVersion())
	if err != nil {
		return fmt.Errorf("version handshake failed: %w", err)
	}
	for _, f := range resp.Frames() {
		if output.KindOf(f) != output.KindVersion {
			continue
		}
		v, err := output.NewVersion(f)
		if err != nil {
			return err
		}
		c.info = BuildInfo{
			TDWVersion:   v.TDWVersion(),
			UnityVersion: v.UnityVersion(),
			Standalone:   v.Standalone(),
		}
		c.logger.Info("build version",
			"tdw", c.info.TDWVersion,
			"unity", c.info.UnityVersion,
			"standalone", c.info.Standalone,
		)
		return nil
	}
	c.logger.Warn("build did not report its version")
	return nil
}

func (c *Controller) checkVersion(want string) {
	if c.info.TDWVersion == "" {
		return
	}
	cmp, err := build.CompareVersions(c.info.TDWVersion, want)
	switch {
	case err != nil:
		c.logger.Warn("cannot compare build version", "build", c.info.TDWVersion, "error", err)
	case cmp != 0:
		c.logger.Warn("build version differs from controller", "build", c.info.TDWVersion, "controller", want)
	}
}

// watchBuild returns a context that is cancelled with ErrBuildExited when
// the launched build exits.
func (c *Controller) watchBuild(ctx context.Context) (context.Context, func()) {
	if c.proc == nil {
		return ctx, func() {}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-c.proc.Done():
			cancel(ErrBuildExited)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(nil) }
}

// buildError reports ErrBuildExited when the build exit caused err.
func (c *Controller) buildError(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrBuildExited) {
		return c.exitedError()
	}
	return err
}

func (c *Controller) exitedError() error {
	c.logger.Error("build exited", "code", c.proc.ExitCode(), "output", c.buildOutputTail())
	return fmt.Errorf("%w: exit code %d", ErrBuildExited, c.proc.ExitCode())
}

func (c *Controller) stopBuild(ctx context.Context) error {
	if c.proc == nil {
		return nil
	}
	return c.proc.Stop(ctx)
}

// SessionID identifies this session in logs.
func (c *Controller) SessionID() string { return c.session }

// BuildInfo returns the versions the build reported.
func (c *Controller) BuildInfo() BuildInfo { return c.info }

// Quit reports whether the build sent a quit signal.
func (c *Controller) Quit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quit
}

// UniqueID returns an object id not yet used in this session.
func (c *Controller) UniqueID() int32 { return c.ids.NextID() }

// BuildOutput returns the launched build's captured output, or nil.
func (c *Controller) BuildOutput() []byte {
	if c.proc == nil {
		return nil
	}
	out, _ := c.proc.Output()
	return out
}

// AddAddOns registers add-ons after the ones already present.
func (c *Controller) AddAddOns(a ...addon.AddOn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chain.Add(a...)
}

// RemoveAddOn unregisters an add-on.
func (c *Controller) RemoveAddOn(a addon.AddOn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.Remove(a)
}

// AddOns returns the registered add-ons in order.
func (c *Controller) AddOns() []addon.AddOn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.AddOns()
}

// ResetAddOns re-arms every add-on, as after loading a new scene.
func (c *Controller) ResetAddOns() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chain.Reset()
}

// Close sends terminate, closes the connection, and stops a launched build.
// Closing twice is a no-op.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.transport != nil {
		if !c.quit && (c.proc == nil || !c.proc.Exited()) {
			msg, _ := command.Marshal([]command.Command{command.Terminate()})
			if err := c.transport.Send(ctx, msg); err != nil {
				c.logger.Debug("failed to send terminate", "error", err)
			}
		}
		if err := c.transport.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.stopBuild(ctx); err != nil {
		errs = append(errs, err)
	}
	c.logger.Info("session closed")
	return errors.Join(errs...)
}
