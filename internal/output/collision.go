package output

// CollisionState is the phase of a collision.
type CollisionState uint8

const (
	CollisionEnter CollisionState = 1
	CollisionStay  CollisionState = 2
	CollisionExit  CollisionState = 3
)

func (s CollisionState) String() string {
	switch s {
	case CollisionEnter:
		return "enter"
	case CollisionStay:
		return "stay"
	default:
		return "exit"
	}
}

// collisionState maps the wire value; anything other than enter or stay is
// an exit.
func collisionState(v uint8) CollisionState {
	switch CollisionState(v) {
	case CollisionEnter, CollisionStay:
		return CollisionState(v)
	default:
		return CollisionExit
	}
}

// Contact is one contact point of a collision.
type Contact struct {
	Normal Vector3
	Point  Vector3
}

// Collision ("coll") is a collision between two objects.
type Collision struct{ tb table }

// NewCollision reads a "coll" frame.
func NewCollision(frame []byte) (*Collision, error) {
	tb, err := root(frame, KindCollision)
	if err != nil {
		return nil, err
	}
	return &Collision{tb: tb}, nil
}

func (*Collision) Kind() Kind { return KindCollision }

func (d *Collision) ColliderID() int32 { return d.tb.int32(0) }
func (d *Collision) CollideeID() int32 { return d.tb.int32(1) }
func (d *Collision) RelativeVelocity() Vector3 { return d.tb.vec3Struct(2) }
func (d *Collision) State() CollisionState { return collisionState(d.tb.uint8(3)) }
func (d *Collision) NumContacts() int { return d.tb.vecLen(4) }
func (d *Collision) Contact(i int) Contact { return d.tb.contactAt(4, i) }
func (d *Collision) Impulse() Vector3 { return d.tb.vec3Struct(5) }

// EnvironmentCollision ("enco") is a collision between an object and the
// scene environment.
type EnvironmentCollision struct{ tb table }

// NewEnvironmentCollision reads an "enco" frame.
func NewEnvironmentCollision(frame []byte) (*EnvironmentCollision, error) {
	tb, err := root(frame, KindEnvironmentCollision)
	if err != nil {
		return nil, err
	}
	return &EnvironmentCollision{tb: tb}, nil
}

func (*EnvironmentCollision) Kind() Kind { return KindEnvironmentCollision }

func (d *EnvironmentCollision) ObjectID() int32 { return d.tb.int32(0) }
func (d *EnvironmentCollision) State() CollisionState {
	return collisionState(d.tb.uint8(1))
}
func (d *EnvironmentCollision) NumContacts() int { return d.tb.vecLen(2) }
func (d *EnvironmentCollision) Contact(i int) Contact { return d.tb.contactAt(2, i) }
func (d *EnvironmentCollision) Floor() bool { return d.tb.bool(3) }

// Overlap ("over") lists the objects inside an overlap shape.
type Overlap struct{ tb table }

// NewOverlap reads an "over" frame.
func NewOverlap(frame []byte) (*Overlap, error) {
	tb, err := root(frame, KindOverlap)
	if err != nil {
		return nil, err
	}
	return &Overlap{tb: tb}, nil
}

func (*Overlap) Kind() Kind { return KindOverlap }

func (d *Overlap) ID() int32 { return d.tb.int32(0) }
func (d *Overlap) ObjectIDs() []int32 { return d.tb.int32s(1) }
func (d *Overlap) Env() bool { return d.tb.bool(2) }
func (d *Overlap) Walls() bool { return d.tb.bool(3) }

// ContainerTag is the semantic relation of a containment event.
type ContainerTag uint8

const (
	ContainerOn ContainerTag = iota
	ContainerInside
	ContainerEnclosed
)

func (t ContainerTag) String() string {
	switch t {
	case ContainerOn:
		return "on"
	case ContainerInside:
		return "inside"
	case ContainerEnclosed:
		return "enclosed"
	default:
		return "unknown"
	}
}

// Containment ("cont") reports that an object sits in one of a container's
// shapes.
type Containment struct{ tb table }

// NewContainment reads a "cont" frame.
func NewContainment(frame []byte) (*Containment, error) {
	tb, err := root(frame, KindContainment)
	if err != nil {
		return nil, err
	}
	return &Containment{tb: tb}, nil
}

func (*Containment) Kind() Kind { return KindContainment }

// ids is [object id, container id].
func (d *Containment) ObjectID() int32 { return d.tb.int32At(0, 0) }
func (d *Containment) ContainerID() int32 { return d.tb.int32At(0, 1) }
func (d *Containment) Tag() ContainerTag { return ContainerTag(d.tb.uint8(1)) }
func (d *Containment) OverlapIDs() []int32 {
	return d.tb.int32s(2)
}
func (d *Containment) Env() bool { return d.tb.bool(3) }
func (d *Containment) Walls() bool { return d.tb.bool(4) }

// PathState is the result of a nav mesh path query.
type PathState uint8

const (
	PathComplete PathState = iota
	PathPartial
	PathInvalid
)

func (s PathState) String() string {
	switch s {
	case PathComplete:
		return "complete"
	case PathPartial:
		return "partial"
	default:
		return "invalid"
	}
}

// NavMeshPath ("path") is the answer to a nav mesh path request.
type NavMeshPath struct{ tb table }

// NewNavMeshPath reads a "path" frame.
func NewNavMeshPath(frame []byte) (*NavMeshPath, error) {
	tb, err := root(frame, KindNavMeshPath)
	if err != nil {
		return nil, err
	}
	return &NavMeshPath{tb: tb}, nil
}

func (*NavMeshPath) Kind() Kind { return KindNavMeshPath }

func (d *NavMeshPath) State() PathState { return PathState(d.tb.uint8(0)) }
func (d *NavMeshPath) ID() int32 { return d.tb.int32(2) }

// Path returns the waypoints of the path.
func (d *NavMeshPath) Path() []Vector3 {
	n := d.tb.vecLen(1) / 3
	out := make([]Vector3, n)
	for i := range out {
		out[i] = d.tb.vec3At(1, i)
	}
	return out
}
