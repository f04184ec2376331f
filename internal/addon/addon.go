// Package addon defines the lifecycle shared by stateful helpers that inject
// commands before a send and read the response after it.
package addon

import (
	"fmt"
	"slices"

	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// AddOn participates in every communicate cycle.
//
// Before a send, an add-on that is not initialized contributes
// InitializationCommands once and is marked initialized. Its pending queue is
// then drained through Commands. After the response arrives, OnSend sees it
// and may queue commands for the next cycle.
type AddOn interface {
	Initialized() bool
	SetInitialized(bool)
	InitializationCommands() []command.Command
	// Commands returns and clears the pending queue.
	Commands() []command.Command
	// OnSend consumes a response. Frames must not be modified.
	OnSend(resp output.Response) error
}

// BeforeSender is implemented by add-ons that observe the full outgoing
// batch. The batch must not be modified.
type BeforeSender interface {
	BeforeSend(batch []command.Command) error
}

// Named add-ons identify themselves in errors and logs.
type Named interface {
	Name() string
}

// Base implements the initialization flag and pending queue. Embed it.
type Base struct {
	initialized bool
	pending     []command.Command
}

// Initialized implements AddOn.
func (b *Base) Initialized() bool { return b.initialized }

// SetInitialized implements AddOn. Setting false forces re-initialization on
// the next cycle.
func (b *Base) SetInitialized(v bool) { b.initialized = v }

// Queue appends commands for the next cycle.
func (b *Base) Queue(cmds ...command.Command) {
	b.pending = append(b.pending, cmds...)
}

// Pending returns a copy of the queue without draining it.
func (b *Base) Pending() []command.Command {
	return slices.Clone(b.pending)
}

// Commands implements AddOn.
func (b *Base) Commands() []command.Command {
	cmds := b.pending
	b.pending = nil
	return cmds
}

// Name returns a readable name for any add-on.
func Name(a AddOn) string {
	if n, ok := a.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", a)
}
