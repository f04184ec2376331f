package manager

import (
	"maps"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// DefaultOpenAngle is the hinge angle in degrees at which a sub-object
// counts as open.
const DefaultOpenAngle = 30

// CompositeStatic is the fixed structure of a composite object.
type CompositeStatic struct {
	ObjectID   int32
	SubObjects map[output.SubObjectKind][]output.SubObject
}

// HingeState is the dynamic state of a hinge, motor or spring.
type HingeState struct {
	ID       int32
	Angle    float32
	Velocity float32
}

// CompositeDynamic is the per-frame state of a composite object.
type CompositeDynamic struct {
	ObjectID int32
	Hinges   map[int32]HingeState
	Lights   map[int32]bool
}

// CompositeObjectManager keeps static composite structure, read once, and
// hinge and light state, replaced every frame.
type CompositeObjectManager struct {
	addon.Base

	static  map[int32]CompositeStatic
	dynamic map[int32]CompositeDynamic
}

// NewCompositeObjectManager creates a CompositeObjectManager.
func NewCompositeObjectManager() *CompositeObjectManager {
	return &CompositeObjectManager{
		static:  make(map[int32]CompositeStatic),
		dynamic: make(map[int32]CompositeDynamic),
	}
}

// Name implements addon.Named.
func (m *CompositeObjectManager) Name() string { return "composite_object_manager" }

// InitializationCommands implements addon.AddOn.
func (m *CompositeObjectManager) InitializationCommands() []command.Command {
	return []command.Command{
		command.New("send_static_composite_objects", nil),
		command.Send("send_dynamic_composite_objects", command.Always),
	}
}

// OnSend implements addon.AddOn.
func (m *CompositeObjectManager) OnSend(resp output.Response) error {
	clear(m.dynamic)
	return resp.Each(func(d output.Data) error {
		switch x := d.(type) {
		case *output.StaticCompositeObjects:
			for i := range x.Num() {
				s := CompositeStatic{
					ObjectID:   x.ObjectID(i),
					SubObjects: make(map[output.SubObjectKind][]output.SubObject),
				}
				for kind := output.SubNonMachine; kind <= output.SubPrismaticJoint; kind++ {
					n := x.NumSubObjects(i, kind)
					for j := range n {
						s.SubObjects[kind] = append(s.SubObjects[kind], x.SubObject(i, kind, j))
					}
				}
				m.static[s.ObjectID] = s
			}
		case *output.DynamicCompositeObjects:
			for i := range x.NumHinges() {
				dyn := m.dynamicFor(x.HingeParentID(i))
				dyn.Hinges[x.HingeID(i)] = HingeState{
					ID:       x.HingeID(i),
					Angle:    x.HingeAngle(i),
					Velocity: x.HingeVelocity(i),
				}
			}
			for i := range x.NumLights() {
				dyn := m.dynamicFor(x.LightParentID(i))
				dyn.Lights[x.LightID(i)] = x.LightIsOn(i)
			}
		}
		return nil
	})
}

func (m *CompositeObjectManager) dynamicFor(id int32) CompositeDynamic {
	d, ok := m.dynamic[id]
	if !ok {
		d = CompositeDynamic{
			ObjectID: id,
			Hinges:   make(map[int32]HingeState),
			Lights:   make(map[int32]bool),
		}
		m.dynamic[id] = d
	}
	return d
}

// Static returns the structure of every composite object seen so far.
func (m *CompositeObjectManager) Static() map[int32]CompositeStatic {
	return maps.Clone(m.static)
}

// Dynamic returns this frame's hinge and light state.
func (m *CompositeObjectManager) Dynamic() map[int32]CompositeDynamic {
	out := make(map[int32]CompositeDynamic, len(m.dynamic))
	for id, d := range m.dynamic {
		out[id] = CompositeDynamic{
			ObjectID: d.ObjectID,
			Hinges:   maps.Clone(d.Hinges),
			Lights:   maps.Clone(d.Lights),
		}
	}
	return out
}

// IsOpen reports whether a hinge of object is at or beyond openAt degrees.
// Unknown ids are closed.
func (m *CompositeObjectManager) IsOpen(objectID, subObjectID int32, openAt float32) bool {
	d, ok := m.dynamic[objectID]
	if !ok {
		return false
	}
	h, ok := d.Hinges[subObjectID]
	return ok && h.Angle >= openAt
}

// LightIsOn reports the state of a light sub-object.
func (m *CompositeObjectManager) LightIsOn(objectID, lightID int32) bool {
	d, ok := m.dynamic[objectID]
	return ok && d.Lights[lightID]
}

// Reset implements addon.Resetter.
func (m *CompositeObjectManager) Reset() {
	clear(m.static)
	clear(m.dynamic)
	m.SetInitialized(false)
}
