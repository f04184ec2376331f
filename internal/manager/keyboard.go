package manager

import (
	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// KeyEvent is a keyboard transition.
type KeyEvent int

const (
	KeyPress KeyEvent = iota
	KeyHold
	KeyRelease
)

// KeyAction reacts to a key event. Returned commands run on the next cycle.
type KeyAction func(key string, ev KeyEvent) []command.Command

// Keyboard listens for key events from the build window.
type Keyboard struct {
	addon.Base

	listeners [3]map[string]KeyAction
}

// NewKeyboard creates a Keyboard.
func NewKeyboard() *Keyboard {
	k := &Keyboard{}
	for i := range k.listeners {
		k.listeners[i] = make(map[string]KeyAction)
	}
	return k
}

// Name implements addon.Named.
func (k *Keyboard) Name() string { return "keyboard" }

// InitializationCommands implements addon.AddOn.
func (k *Keyboard) InitializationCommands() []command.Command {
	return []command.Command{command.Send("send_keyboard", command.Always)}
}

// Listen registers action for key on each of events, KeyPress if none are
// given. A later registration for the same key and event replaces it.
// Events other than KeyPress, KeyHold and KeyRelease are ignored.
func (k *Keyboard) Listen(key string, action KeyAction, events ...KeyEvent) {
	if len(events) == 0 {
		events = []KeyEvent{KeyPress}
	}
	for _, ev := range events {
		if ev < KeyPress || ev > KeyRelease {
			continue
		}
		k.listeners[ev][key] = action
	}
}

// ListenCommands queues fixed commands when key is pressed.
func (k *Keyboard) ListenCommands(key string, cmds ...command.Command) {
	k.Listen(key, func(string, KeyEvent) []command.Command { return cmds })
}

// OnSend implements addon.AddOn.
func (k *Keyboard) OnSend(resp output.Response) error {
	return resp.Each(func(d output.Data) error {
		kb, ok := d.(*output.Keyboard)
		if !ok {
			return nil
		}
		k.fire(KeyPress, kb.Pressed())
		k.fire(KeyHold, kb.Held())
		k.fire(KeyRelease, kb.Released())
		return nil
	})
}

func (k *Keyboard) fire(ev KeyEvent, keys []string) {
	for _, key := range keys {
		if action, ok := k.listeners[ev][key]; ok {
			k.Queue(action(key, ev)...)
		}
	}
}
