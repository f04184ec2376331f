package addon

import (
	"fmt"
	"slices"

	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// Chain holds add-ons in registration order and composes their commands
// into each batch. It is not safe for concurrent use; the controller drives
// it from a single goroutine.
type Chain struct {
	addOns []AddOn
}

// Add registers add-ons at the end of the chain. Registering the same
// add-on twice is a no-op.
func (c *Chain) Add(addOns ...AddOn) {
	for _, a := range addOns {
		if !slices.Contains(c.addOns, a) {
			c.addOns = append(c.addOns, a)
		}
	}
}

// Remove unregisters an add-on. Its pending commands are dropped.
func (c *Chain) Remove(a AddOn) bool {
	i := slices.Index(c.addOns, a)
	if i < 0 {
		return false
	}
	c.addOns = slices.Delete(c.addOns, i, i+1)
	return true
}

// AddOns returns the registered add-ons in order.
func (c *Chain) AddOns() []AddOn {
	return slices.Clone(c.addOns)
}

// Len returns the number of registered add-ons.
func (c *Chain) Len() int { return len(c.addOns) }

// Compose builds the outgoing batch: for each add-on in order, its
// initialization commands when it is not initialized, then its drained
// queue; the caller's commands come last. Every queue is drained, even when
// it is empty.
func (c *Chain) Compose(caller []command.Command) []command.Command {
	var batch []command.Command
	for _, a := range c.addOns {
		if !a.Initialized() {
			batch = append(batch, a.InitializationCommands()...)
			a.SetInitialized(true)
		}
		batch = append(batch, a.Commands()...)
	}
	return append(batch, caller...)
}

// BeforeSend shows the batch to every add-on that asks for it.
func (c *Chain) BeforeSend(batch []command.Command) error {
	for _, a := range c.addOns {
		if bs, ok := a.(BeforeSender); ok {
			if err := bs.BeforeSend(batch); err != nil {
				return fmt.Errorf("add-on %s: %w", Name(a), err)
			}
		}
	}
	return nil
}

// Dispatch calls OnSend on every add-on in order. The first error aborts
// the cycle.
func (c *Chain) Dispatch(resp output.Response) error {
	for _, a := range c.addOns {
		if err := a.OnSend(resp); err != nil {
			return fmt.Errorf("add-on %s: %w", Name(a), err)
		}
	}
	return nil
}

// Reset clears the initialized flag of every add-on. Add-ons that also
// implement Resetter clear their derived state.
func (c *Chain) Reset() {
	for _, a := range c.addOns {
		if r, ok := a.(Resetter); ok {
			r.Reset()
			continue
		}
		a.SetInitialized(false)
	}
}

// Resetter is implemented by add-ons with derived state.
type Resetter interface {
	Reset()
}
