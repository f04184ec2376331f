package output

// Transforms ("tran") holds the position, rotation and forward vector of
// every object that sent transforms this frame.
type Transforms struct{ tb table }

// NewTransforms reads a "tran" frame.
func NewTransforms(frame []byte) (*Transforms, error) {
	tb, err := root(frame, KindTransforms)
	if err != nil {
		return nil, err
	}
	return &Transforms{tb: tb}, nil
}

func (*Transforms) Kind() Kind { return KindTransforms }

func (d *Transforms) Num() int { return d.tb.vecLen(0) }
func (d *Transforms) ID(i int) int32 { return d.tb.int32At(0, i) }
func (d *Transforms) Position(i int) Vector3 { return d.tb.vec3At(1, i) }
func (d *Transforms) Forward(i int) Vector3 { return d.tb.vec3At(3, i) }
func (d *Transforms) Rotation(i int) Quaternion {
	return Quaternion{
		X: d.tb.float32At(2, 4*i),
		Y: d.tb.float32At(2, 4*i+1),
		Z: d.tb.float32At(2, 4*i+2),
		W: d.tb.float32At(2, 4*i+3),
	}
}

// Rigidbodies ("rigi") holds per-object velocities and sleep state.
type Rigidbodies struct{ tb table }

// NewRigidbodies reads a "rigi" frame.
func NewRigidbodies(frame []byte) (*Rigidbodies, error) {
	tb, err := root(frame, KindRigidbodies)
	if err != nil {
		return nil, err
	}
	return &Rigidbodies{tb: tb}, nil
}

func (*Rigidbodies) Kind() Kind { return KindRigidbodies }

func (d *Rigidbodies) Num() int { return d.tb.vecLen(0) }
func (d *Rigidbodies) ID(i int) int32 { return d.tb.int32At(0, i) }
func (d *Rigidbodies) Velocity(i int) Vector3 { return d.tb.vec3At(1, i) }
func (d *Rigidbodies) AngularVelocity(i int) Vector3 { return d.tb.vec3At(2, i) }
func (d *Rigidbodies) Sleeping(i int) bool { return d.tb.boolAt(3, i) }

// StaticRigidbodies ("srig") holds physics values that do not change after
// an object is created.
type StaticRigidbodies struct{ tb table }

// NewStaticRigidbodies reads a "srig" frame.
func NewStaticRigidbodies(frame []byte) (*StaticRigidbodies, error) {
	tb, err := root(frame, KindStaticRigidbodies)
	if err != nil {
		return nil, err
	}
	return &StaticRigidbodies{tb: tb}, nil
}

func (*StaticRigidbodies) Kind() Kind { return KindStaticRigidbodies }

func (d *StaticRigidbodies) Num() int { return d.tb.vecLen(0) }
func (d *StaticRigidbodies) ID(i int) int32 { return d.tb.int32At(0, i) }

// physics_values is [mass, dynamic friction, static friction, bounciness]
// per object.
func (d *StaticRigidbodies) Mass(i int) float32 { return d.tb.float32At(1, 4*i) }
func (d *StaticRigidbodies) DynamicFriction(i int) float32 { return d.tb.float32At(1, 4*i+1) }
func (d *StaticRigidbodies) StaticFriction(i int) float32 { return d.tb.float32At(1, 4*i+2) }
func (d *StaticRigidbodies) Bounciness(i int) float32 { return d.tb.float32At(1, 4*i+3) }
func (d *StaticRigidbodies) Kinematic(i int) bool { return d.tb.boolAt(2, i) }

// Bounds ("boun") holds seven world-space points per object.
type Bounds struct{ tb table }

// Bound point order within the bound_positions field.
const (
	boundFront = iota
	boundBack
	boundRight
	boundLeft
	boundTop
	boundBottom
	boundCenter
	boundPoints
)

// NewBounds reads a "boun" frame.
func NewBounds(frame []byte) (*Bounds, error) {
	tb, err := root(frame, KindBounds)
	if err != nil {
		return nil, err
	}
	return &Bounds{tb: tb}, nil
}

func (*Bounds) Kind() Kind { return KindBounds }

func (d *Bounds) Num() int { return d.tb.vecLen(0) }
func (d *Bounds) ID(i int) int32 { return d.tb.int32At(0, i) }

func (d *Bounds) point(i, p int) Vector3 { return d.tb.vec3At(1, i*boundPoints+p) }

func (d *Bounds) Front(i int) Vector3 { return d.point(i, boundFront) }
func (d *Bounds) Back(i int) Vector3 { return d.point(i, boundBack) }
func (d *Bounds) Right(i int) Vector3 { return d.point(i, boundRight) }
func (d *Bounds) Left(i int) Vector3 { return d.point(i, boundLeft) }
func (d *Bounds) Top(i int) Vector3 { return d.point(i, boundTop) }
func (d *Bounds) Bottom(i int) Vector3 { return d.point(i, boundBottom) }
func (d *Bounds) Center(i int) Vector3 { return d.point(i, boundCenter) }

// Size returns the extents of object i along each axis.
func (d *Bounds) Size(i int) Vector3 {
	return Vector3{
		X: abs32(d.Right(i).X - d.Left(i).X),
		Y: abs32(d.Top(i).Y - d.Bottom(i).Y),
		Z: abs32(d.Front(i).Z - d.Back(i).Z),
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// SegmentationColors ("segm") holds static per-object names, categories and
// segmentation colors.
type SegmentationColors struct{ tb table }

// NewSegmentationColors reads a "segm" frame.
func NewSegmentationColors(frame []byte) (*SegmentationColors, error) {
	tb, err := root(frame, KindSegmentationColors)
	if err != nil {
		return nil, err
	}
	return &SegmentationColors{tb: tb}, nil
}

func (*SegmentationColors) Kind() Kind { return KindSegmentationColors }

func (d *SegmentationColors) Num() int { return d.tb.vecLen(0) }
func (d *SegmentationColors) ObjectID(i int) int32 { return d.tb.int32At(0, i) }
func (d *SegmentationColors) Name(i int) string { return d.tb.strAt(1, i) }
func (d *SegmentationColors) Category(i int) string { return d.tb.strAt(2, i) }
func (d *SegmentationColors) Color(i int) [3]uint8 {
	return [3]uint8{d.tb.uint8At(3, 3*i), d.tb.uint8At(3, 3*i+1), d.tb.uint8At(3, 3*i+2)}
}

// StaticRobot ("srob") identifies a robot in the scene.
type StaticRobot struct{ tb table }

// NewStaticRobot reads a "srob" frame.
func NewStaticRobot(frame []byte) (*StaticRobot, error) {
	tb, err := root(frame, KindStaticRobot)
	if err != nil {
		return nil, err
	}
	return &StaticRobot{tb: tb}, nil
}

func (*StaticRobot) Kind() Kind { return KindStaticRobot }

func (d *StaticRobot) ID() int32 { return d.tb.int32(0) }
func (d *StaticRobot) Name() string { return d.tb.str(1) }
