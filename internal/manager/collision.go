// Package manager contains add-ons that keep derived state about the scene
// by reading each response.
package manager

import (
	"maps"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// IDPair is an unordered pair of object ids. Use Pair to build one.
type IDPair struct {
	A, B int32
}

// Pair returns the pair with the smaller id first.
func Pair(a, b int32) IDPair {
	if b < a {
		a, b = b, a
	}
	return IDPair{A: a, B: b}
}

// ObjectCollision is a collision between two objects on the current frame.
type ObjectCollision struct {
	ColliderID       int32
	CollideeID       int32
	State            output.CollisionState
	RelativeVelocity output.Vector3
	Impulse          output.Vector3
	Contacts         []output.Contact
}

// EnvironmentCollision is a collision between an object and the scene.
type EnvironmentCollision struct {
	ObjectID int32
	State    output.CollisionState
	Floor    bool
	Contacts []output.Contact
}

// CollisionManager keeps the collisions of the current frame. Both maps are
// rebuilt on every response.
type CollisionManager struct {
	addon.Base

	enter, stay, exit    bool
	objects, environment bool

	objectCollisions map[IDPair]ObjectCollision
	envCollisions    map[int32]EnvironmentCollision
}

// CollisionOption configures a CollisionManager.
type CollisionOption func(*CollisionManager)

// WithCollisionEvents selects which collision phases the build reports.
// The default is enter only.
func WithCollisionEvents(enter, stay, exit bool) CollisionOption {
	return func(m *CollisionManager) {
		m.enter, m.stay, m.exit = enter, stay, exit
	}
}

// WithCollisionTypes selects object/object and object/environment
// collisions. Both are on by default.
func WithCollisionTypes(objects, environment bool) CollisionOption {
	return func(m *CollisionManager) {
		m.objects, m.environment = objects, environment
	}
}

// NewCollisionManager creates a CollisionManager.
func NewCollisionManager(opts ...CollisionOption) *CollisionManager {
	m := &CollisionManager{
		enter:            true,
		objects:          true,
		environment:      true,
		objectCollisions: make(map[IDPair]ObjectCollision),
		envCollisions:    make(map[int32]EnvironmentCollision),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements addon.Named.
func (m *CollisionManager) Name() string { return "collision_manager" }

// InitializationCommands implements addon.AddOn.
func (m *CollisionManager) InitializationCommands() []command.Command {
	types := []string{}
	if m.objects {
		types = append(types, "obj")
	}
	if m.environment {
		types = append(types, "env")
	}
	return []command.Command{command.New("send_collisions", command.Params{
		"enter":           m.enter,
		"stay":            m.stay,
		"exit":            m.exit,
		"collision_types": types,
	})}
}

// OnSend implements addon.AddOn.
func (m *CollisionManager) OnSend(resp output.Response) error {
	clear(m.objectCollisions)
	clear(m.envCollisions)
	return resp.Each(func(d output.Data) error {
		switch c := d.(type) {
		case *output.Collision:
			m.objectCollisions[Pair(c.ColliderID(), c.CollideeID())] = ObjectCollision{
				ColliderID:       c.ColliderID(),
				CollideeID:       c.CollideeID(),
				State:            c.State(),
				RelativeVelocity: c.RelativeVelocity(),
				Impulse:          c.Impulse(),
				Contacts:         contacts(c.NumContacts(), c.Contact),
			}
		case *output.EnvironmentCollision:
			m.envCollisions[c.ObjectID()] = EnvironmentCollision{
				ObjectID: c.ObjectID(),
				State:    c.State(),
				Floor:    c.Floor(),
				Contacts: contacts(c.NumContacts(), c.Contact),
			}
		}
		return nil
	})
}

// ObjectCollisions returns this frame's object/object collisions.
func (m *CollisionManager) ObjectCollisions() map[IDPair]ObjectCollision {
	return maps.Clone(m.objectCollisions)
}

// EnvironmentCollisions returns this frame's collisions with the scene,
// keyed by object id.
func (m *CollisionManager) EnvironmentCollisions() map[int32]EnvironmentCollision {
	return maps.Clone(m.envCollisions)
}

// Reset implements addon.Resetter.
func (m *CollisionManager) Reset() {
	clear(m.objectCollisions)
	clear(m.envCollisions)
	m.SetInitialized(false)
}

func contacts(n int, at func(int) output.Contact) []output.Contact {
	if n == 0 {
		return nil
	}
	out := make([]output.Contact, n)
	for i := range out {
		out[i] = at(i)
	}
	return out
}
