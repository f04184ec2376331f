package controller

import (
	"context"
	"fmt"

	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
	"github.com/standardbeagle/tdwctl/internal/transport"
)

// Communicate sends one batch and returns the build's response.
//
// The batch is every add-on's initialization commands (once) and queued
// commands, in registration order, followed by cmds. Every add-on sees the
// response before Communicate returns; the first add-on error is returned
// together with the response.
func (c *Controller) Communicate(ctx context.Context, cmds ...command.Command) (output.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return nil, transport.ErrClosed
	case c.quit:
		return nil, ErrQuit
	case c.proc != nil && c.proc.Exited():
		return nil, c.exitedError()
	}

	// Reject the caller's commands before add-on queues are drained.
	if _, err := command.Marshal(cmds); err != nil {
		return nil, err
	}
	batch := c.chain.Compose(cmds)
	msg, err := command.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode add-on commands: %w", err)
	}
	if err := c.chain.BeforeSend(batch); err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(ctx, msg)
	if err != nil {
		return nil, err
	}
	if n, ok := resp.FrameNumber(); ok {
		c.logger.Debug("communicate", "frame", n, "commands", len(batch), "tags", resp.Tags())
	}

	c.checkQuit(resp)
	if err := c.chain.Dispatch(resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// roundTrip sends msg, resending while the build reports it failed to
// receive it.
func (c *Controller) roundTrip(ctx context.Context, msg []byte) (output.Response, error) {
	ctx, done := c.watchBuild(ctx)
	defer done()

	resp, err := c.transport.RoundTrip(ctx, msg)
	for resends := 0; err == nil && output.IsFailedToReceive(resp); resends++ {
		if resends >= c.maxResends {
			return nil, fmt.Errorf("%w: after %d resends", ErrResendBudgetExhausted, resends)
		}
		c.logger.Warn("build failed to receive message, resending", "attempt", resends+1)
		resp, err = c.transport.RoundTrip(ctx, msg)
	}
	if err != nil {
		return nil, c.buildError(ctx, err)
	}
	return resp, nil
}

func (c *Controller) checkQuit(resp output.Response) {
	for _, f := range resp.Frames() {
		if output.KindOf(f) != output.KindQuitSignal {
			continue
		}
		c.quit = true
		q, err := output.NewQuitSignal(f)
		if err != nil || !q.OK() {
			tail := c.buildOutputTail()
			c.logger.Error("build quit due to an error", "output", tail)
		} else {
			c.logger.Info("build quit")
		}
		return
	}
}

func (c *Controller) buildOutputTail() string {
	if c.proc == nil {
		return ""
	}
	out, _ := c.proc.Output()
	if len(out) > outputTail {
		out = out[len(out)-outputTail:]
	}
	return string(out)
}

// WaitUntil advances the simulation with empty batches until cond holds for
// a response, for at most maxCycles cycles. Add-on commands still flow.
func (c *Controller) WaitUntil(ctx context.Context, maxCycles int, cond func(output.Response) bool) (output.Response, error) {
	for i := 0; i < maxCycles; i++ {
		resp, err := c.Communicate(ctx)
		if err != nil {
			return resp, err
		}
		if cond(resp) {
			return resp, nil
		}
	}
	return nil, fmt.Errorf("%w: %d cycles", ErrWaitBudgetExhausted, maxCycles)
}

// LoadScene loads a named scene, or an empty one when name is "".
func (c *Controller) LoadScene(ctx context.Context, name string) error {
	_, err := c.Communicate(ctx, command.LoadScene(name))
	return err
}

// AddObject adds a model with a fresh id and returns the id.
func (c *Controller) AddObject(ctx context.Context, name string, position, rotation command.Vector3, library string) (int32, error) {
	id := c.UniqueID()
	if _, err := c.Communicate(ctx, command.AddObject(name, int(id), position, rotation, library)); err != nil {
		return 0, err
	}
	return id, nil
}
