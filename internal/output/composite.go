package output

// SubObjectKind names the vectors of a composite object entry.
type SubObjectKind int

const (
	SubNonMachine SubObjectKind = iota
	SubLight
	SubHinge
	SubMotor
	SubSpring
	SubPrismaticJoint
	numSubObjectKinds
)

func (k SubObjectKind) String() string {
	switch k {
	case SubNonMachine:
		return "non_machine"
	case SubLight:
		return "light"
	case SubHinge:
		return "hinge"
	case SubMotor:
		return "motor"
	case SubSpring:
		return "spring"
	case SubPrismaticJoint:
		return "prismatic_joint"
	default:
		return "unknown"
	}
}

// SubObject is one sub-object of a composite object. Fields that do not
// apply to its kind are zero.
type SubObject struct {
	ID        int32
	HasLimits bool
	MinLimit  float32
	MaxLimit  float32
	Axis      Vector3
	Force     float32
	Damper    float32
	Limit     float32
}

// StaticCompositeObjects ("scom") describes the structure of every
// composite object. It is sent once per scene.
type StaticCompositeObjects struct{ tb table }

// NewStaticCompositeObjects reads a "scom" frame.
func NewStaticCompositeObjects(frame []byte) (*StaticCompositeObjects, error) {
	tb, err := root(frame, KindStaticCompositeObjects)
	if err != nil {
		return nil, err
	}
	return &StaticCompositeObjects{tb: tb}, nil
}

func (*StaticCompositeObjects) Kind() Kind { return KindStaticCompositeObjects }

func (d *StaticCompositeObjects) Num() int { return d.tb.vecLen(0) }

func (d *StaticCompositeObjects) ObjectID(i int) int32 {
	return d.tb.tableAt(0, i).int32(0)
}

// NumSubObjects returns the number of sub-objects of a kind in object i.
func (d *StaticCompositeObjects) NumSubObjects(i int, kind SubObjectKind) int {
	return d.tb.tableAt(0, i).vecLen(1 + int(kind))
}

// SubObject returns sub-object j of a kind in object i.
func (d *StaticCompositeObjects) SubObject(i int, kind SubObjectKind, j int) SubObject {
	st := d.tb.tableAt(0, i).tableAt(1+int(kind), j)
	return SubObject{
		ID:        st.int32(0),
		HasLimits: st.bool(1),
		MinLimit:  st.float32(2),
		MaxLimit:  st.float32(3),
		Axis:      st.vec3Struct(4),
		Force:     st.float32(5),
		Damper:    st.float32(6),
		Limit:     st.float32(7),
	}
}

// DynamicCompositeObjects ("dcom") holds the per-frame state of hinges and
// lights of every composite object.
type DynamicCompositeObjects struct{ tb table }

// NewDynamicCompositeObjects reads a "dcom" frame.
func NewDynamicCompositeObjects(frame []byte) (*DynamicCompositeObjects, error) {
	tb, err := root(frame, KindDynamicCompositeObjects)
	if err != nil {
		return nil, err
	}
	return &DynamicCompositeObjects{tb: tb}, nil
}

func (*DynamicCompositeObjects) Kind() Kind { return KindDynamicCompositeObjects }

// hinge_ids and light_ids are [parent id, sub-object id] pairs; hinges is
// [angle, velocity] pairs.
func (d *DynamicCompositeObjects) NumHinges() int { return d.tb.vecLen(0) / 2 }
func (d *DynamicCompositeObjects) HingeParentID(i int) int32 { return d.tb.int32At(0, 2*i) }
func (d *DynamicCompositeObjects) HingeID(i int) int32 { return d.tb.int32At(0, 2*i+1) }
func (d *DynamicCompositeObjects) HingeAngle(i int) float32 { return d.tb.float32At(1, 2*i) }
func (d *DynamicCompositeObjects) HingeVelocity(i int) float32 {
	return d.tb.float32At(1, 2*i+1)
}
func (d *DynamicCompositeObjects) NumLights() int { return d.tb.vecLen(2) / 2 }
func (d *DynamicCompositeObjects) LightParentID(i int) int32 { return d.tb.int32At(2, 2*i) }
func (d *DynamicCompositeObjects) LightID(i int) int32 { return d.tb.int32At(2, 2*i+1) }
func (d *DynamicCompositeObjects) LightIsOn(i int) bool { return d.tb.boolAt(3, i) }
