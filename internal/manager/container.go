package manager

import (
	"maps"
	"slices"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// ContainmentEvent lists the objects a container holds on the current
// frame.
type ContainmentEvent struct {
	ContainerID int32
	ObjectIDs   []int32
	Tag         output.ContainerTag
	Env         bool
	Walls       bool
}

// ContainerManager reports which objects are on, inside or enclosed by
// which containers.
//
// Containment events are rebuilt every frame. Static composite object data
// is read first within each response, before any containment event, so a
// container's own sub-objects (lids, drawers, doors) are never reported as
// contained by it.
type ContainerManager struct {
	addon.Base

	parents map[int32]int32 // sub-object id -> composite root id
	events  map[int32]ContainmentEvent
}

// NewContainerManager creates a ContainerManager.
func NewContainerManager() *ContainerManager {
	return &ContainerManager{
		parents: make(map[int32]int32),
		events:  make(map[int32]ContainmentEvent),
	}
}

// Name implements addon.Named.
func (m *ContainerManager) Name() string { return "container_manager" }

// InitializationCommands implements addon.AddOn.
func (m *ContainerManager) InitializationCommands() []command.Command {
	return []command.Command{
		command.New("send_static_composite_objects", nil),
		command.Send("send_containment", command.Always),
	}
}

// OnSend implements addon.AddOn.
func (m *ContainerManager) OnSend(resp output.Response) error {
	clear(m.events)

	var contained []*output.Containment
	err := resp.Each(func(d output.Data) error {
		switch x := d.(type) {
		case *output.StaticCompositeObjects:
			m.readStatic(x)
		case *output.Containment:
			contained = append(contained, x)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, c := range contained {
		m.add(c)
	}
	return nil
}

func (m *ContainerManager) readStatic(s *output.StaticCompositeObjects) {
	for i := range s.Num() {
		root := s.ObjectID(i)
		for kind := output.SubNonMachine; kind <= output.SubPrismaticJoint; kind++ {
			for j := range s.NumSubObjects(i, kind) {
				m.parents[s.SubObject(i, kind, j).ID] = root
			}
		}
	}
}

func (m *ContainerManager) add(c *output.Containment) {
	container := c.ContainerID()
	ev, ok := m.events[container]
	if !ok {
		ev = ContainmentEvent{
			ContainerID: container,
			Tag:         c.Tag(),
			Env:         c.Env(),
			Walls:       c.Walls(),
		}
	}
	for _, id := range append([]int32{c.ObjectID()}, c.OverlapIDs()...) {
		if parent, ok := m.parents[id]; id == container || ok && parent == container {
			continue
		}
		if !slices.Contains(ev.ObjectIDs, id) {
			ev.ObjectIDs = append(ev.ObjectIDs, id)
		}
	}
	slices.Sort(ev.ObjectIDs)
	m.events[container] = ev
}

// Events returns this frame's containment events keyed by container id.
func (m *ContainerManager) Events() map[int32]ContainmentEvent {
	out := make(map[int32]ContainmentEvent, len(m.events))
	for id, ev := range m.events {
		ev.ObjectIDs = slices.Clone(ev.ObjectIDs)
		out[id] = ev
	}
	return out
}

// Contains reports whether container holds object on this frame.
func (m *ContainerManager) Contains(container, object int32) bool {
	ev, ok := m.events[container]
	return ok && slices.Contains(ev.ObjectIDs, object)
}

// SubObjectParents returns the composite root of every known sub-object.
func (m *ContainerManager) SubObjectParents() map[int32]int32 {
	return maps.Clone(m.parents)
}

// Reset implements addon.Resetter.
func (m *ContainerManager) Reset() {
	clear(m.parents)
	clear(m.events)
	m.SetInitialized(false)
}
