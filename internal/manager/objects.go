package manager

import (
	"errors"
	"fmt"
	"maps"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// ErrUnknownObject is returned when an object id has no data this frame.
var ErrUnknownObject = errors.New("unknown object")

// ObjectStatic is data that does not change while an object exists.
type ObjectStatic struct {
	ID                int32
	Name              string
	Category          string
	SegmentationColor [3]uint8
	Mass              float32
	Kinematic         bool
}

// Transform is an object's pose on the current frame.
type Transform struct {
	Position output.Vector3
	Rotation output.Quaternion
	Forward  output.Vector3
}

// Rigidbody is an object's motion on the current frame.
type Rigidbody struct {
	Velocity        output.Vector3
	AngularVelocity output.Vector3
	Sleeping        bool
}

// Bound is an object's axis-aligned bounds on the current frame.
type Bound struct {
	Front, Back, Left, Right, Top, Bottom, Center output.Vector3
}

// ObjectManager caches static object data once and replaces transforms,
// rigidbodies and bounds on every frame.
type ObjectManager struct {
	addon.Base

	transforms, rigidbodies, bounds command.Frequency

	cached    bool
	static    map[int32]ObjectStatic
	transform map[int32]Transform
	rigidbody map[int32]Rigidbody
	bound     map[int32]Bound
}

// ObjectOption configures an ObjectManager.
type ObjectOption func(*ObjectManager)

// WithDynamicRigidbodies requests rigidbody data every frame.
func WithDynamicRigidbodies() ObjectOption {
	return func(m *ObjectManager) { m.rigidbodies = command.Always }
}

// WithDynamicBounds requests bounds every frame.
func WithDynamicBounds() ObjectOption {
	return func(m *ObjectManager) { m.bounds = command.Always }
}

// WithoutTransforms stops transform output.
func WithoutTransforms() ObjectOption {
	return func(m *ObjectManager) { m.transforms = command.Never }
}

// NewObjectManager creates an ObjectManager.
func NewObjectManager(opts ...ObjectOption) *ObjectManager {
	m := &ObjectManager{
		transforms:  command.Always,
		rigidbodies: command.Once,
		bounds:      command.Once,
		static:      make(map[int32]ObjectStatic),
		transform:   make(map[int32]Transform),
		rigidbody:   make(map[int32]Rigidbody),
		bound:       make(map[int32]Bound),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements addon.Named.
func (m *ObjectManager) Name() string { return "object_manager" }

// InitializationCommands implements addon.AddOn.
func (m *ObjectManager) InitializationCommands() []command.Command {
	return []command.Command{
		command.New("send_segmentation_colors", nil),
		command.Send("send_static_rigidbodies", command.Once),
		command.Send("send_rigidbodies", m.rigidbodies),
		command.Send("send_bounds", m.bounds),
		command.Send("send_transforms", m.transforms),
	}
}

// OnSend implements addon.AddOn.
func (m *ObjectManager) OnSend(resp output.Response) error {
	clear(m.transform)
	clear(m.rigidbody)
	clear(m.bound)

	// Static data is read from the first response that has segmentation
	// colors.
	caching := !m.cached
	return resp.Each(func(d output.Data) error {
		switch x := d.(type) {
		case *output.SegmentationColors:
			if !caching {
				return nil
			}
			for i := range x.Num() {
				s := m.static[x.ObjectID(i)]
				s.ID = x.ObjectID(i)
				s.Name = x.Name(i)
				s.Category = x.Category(i)
				s.SegmentationColor = x.Color(i)
				m.static[s.ID] = s
			}
			m.cached = true
		case *output.StaticRigidbodies:
			if !caching {
				return nil
			}
			for i := range x.Num() {
				s := m.static[x.ID(i)]
				s.ID = x.ID(i)
				s.Mass = x.Mass(i)
				s.Kinematic = x.Kinematic(i)
				m.static[s.ID] = s
			}
		case *output.Transforms:
			for i := range x.Num() {
				m.transform[x.ID(i)] = Transform{
					Position: x.Position(i),
					Rotation: x.Rotation(i),
					Forward:  x.Forward(i),
				}
			}
		case *output.Rigidbodies:
			for i := range x.Num() {
				m.rigidbody[x.ID(i)] = Rigidbody{
					Velocity:        x.Velocity(i),
					AngularVelocity: x.AngularVelocity(i),
					Sleeping:        x.Sleeping(i),
				}
			}
		case *output.Bounds:
			for i := range x.Num() {
				m.bound[x.ID(i)] = Bound{
					Front:  x.Front(i),
					Back:   x.Back(i),
					Left:   x.Left(i),
					Right:  x.Right(i),
					Top:    x.Top(i),
					Bottom: x.Bottom(i),
					Center: x.Center(i),
				}
			}
		}
		return nil
	})
}

// Static returns the cached static data keyed by object id.
func (m *ObjectManager) Static() map[int32]ObjectStatic { return maps.Clone(m.static) }

// Transforms returns this frame's transforms.
func (m *ObjectManager) Transforms() map[int32]Transform { return maps.Clone(m.transform) }

// Rigidbodies returns this frame's rigidbody state.
func (m *ObjectManager) Rigidbodies() map[int32]Rigidbody { return maps.Clone(m.rigidbody) }

// Bounds returns this frame's bounds.
func (m *ObjectManager) Bounds() map[int32]Bound { return maps.Clone(m.bound) }

// Resolve turns a target into a world position, using this frame's
// transforms for object ids.
func (m *ObjectManager) Resolve(t command.Target) (command.Vector3, error) {
	switch t := t.(type) {
	case command.Position:
		return command.Vector3(t), nil
	case command.ObjectID:
		tr, ok := m.transform[int32(t)]
		if !ok {
			return command.Vector3{}, fmt.Errorf("%w: %d", ErrUnknownObject, t)
		}
		return command.Vector3{
			X: float64(tr.Position.X),
			Y: float64(tr.Position.Y),
			Z: float64(tr.Position.Z),
		}, nil
	}
	return command.Vector3{}, fmt.Errorf("%w: target %T", command.ErrUnencodable, t)
}

// Reset implements addon.Resetter.
func (m *ObjectManager) Reset() {
	m.cached = false
	clear(m.static)
	clear(m.transform)
	clear(m.rigidbody)
	clear(m.bound)
	m.SetInitialized(false)
}
