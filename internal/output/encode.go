package output

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// Encoders produce frames in the same layout the readers expect. They are
// used by the in-process fake engine, by recorded fixtures and by tests.

type encoder struct {
	b *flatbuffers.Builder
}

func newEncoder() *encoder {
	return &encoder{b: flatbuffers.NewBuilder(256)}
}

func (e *encoder) finish(root flatbuffers.UOffsetT, kind Kind) []byte {
	e.b.FinishWithFileIdentifier(root, []byte(kind.Tag()))
	return e.b.FinishedBytes()
}

func (e *encoder) int32s(v []int32) flatbuffers.UOffsetT {
	e.b.StartVector(4, len(v), 4)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependInt32(v[i])
	}
	return e.b.EndVector(len(v))
}

func (e *encoder) float32s(v []float32) flatbuffers.UOffsetT {
	e.b.StartVector(4, len(v), 4)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependFloat32(v[i])
	}
	return e.b.EndVector(len(v))
}

func (e *encoder) bools(v []bool) flatbuffers.UOffsetT {
	e.b.StartVector(1, len(v), 1)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependBool(v[i])
	}
	return e.b.EndVector(len(v))
}

func (e *encoder) strings(v []string) flatbuffers.UOffsetT {
	offs := make([]flatbuffers.UOffsetT, len(v))
	for i, s := range v {
		offs[i] = e.b.CreateString(s)
	}
	return e.offsets(offs)
}

func (e *encoder) offsets(v []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	e.b.StartVector(4, len(v), 4)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependUOffsetT(v[i])
	}
	return e.b.EndVector(len(v))
}

func (e *encoder) contacts(v []Contact) flatbuffers.UOffsetT {
	e.b.StartVector(sizeContact, len(v), 4)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.Prep(4, sizeContact)
		prependVector3(e.b, v[i].Point)
		prependVector3(e.b, v[i].Normal)
	}
	return e.b.EndVector(len(v))
}

// vec3 writes an inline Vector3 struct. It must be called immediately before
// the PrependStructSlot that stores it.
func (e *encoder) vec3(v Vector3) flatbuffers.UOffsetT {
	e.b.Prep(4, sizeVector3)
	prependVector3(e.b, v)
	return e.b.Offset()
}

func prependVector3(b *flatbuffers.Builder, v Vector3) {
	b.PrependFloat32(v.Z)
	b.PrependFloat32(v.Y)
	b.PrependFloat32(v.X)
}

func flatten3(vs ...Vector3) []float32 {
	out := make([]float32, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, v.X, v.Y, v.Z)
	}
	return out
}

// TransformRecord is one object in a Transforms frame.
type TransformRecord struct {
	ID       int32
	Position Vector3
	Rotation Quaternion
	Forward  Vector3
}

// EncodeTransforms builds a "tran" frame.
func EncodeTransforms(recs []TransformRecord) []byte {
	e := newEncoder()
	ids := make([]int32, len(recs))
	var pos, rot, fwd []float32
	for i, r := range recs {
		ids[i] = r.ID
		pos = append(pos, flatten3(r.Position)...)
		rot = append(rot, r.Rotation.X, r.Rotation.Y, r.Rotation.Z, r.Rotation.W)
		fwd = append(fwd, flatten3(r.Forward)...)
	}
	idsOff, posOff, rotOff, fwdOff := e.int32s(ids), e.float32s(pos), e.float32s(rot), e.float32s(fwd)
	e.b.StartObject(4)
	e.b.PrependUOffsetTSlot(0, idsOff, 0)
	e.b.PrependUOffsetTSlot(1, posOff, 0)
	e.b.PrependUOffsetTSlot(2, rotOff, 0)
	e.b.PrependUOffsetTSlot(3, fwdOff, 0)
	return e.finish(e.b.EndObject(), KindTransforms)
}

// RigidbodyRecord is one object in a Rigidbodies frame.
type RigidbodyRecord struct {
	ID              int32
	Velocity        Vector3
	AngularVelocity Vector3
	Sleeping        bool
}

// EncodeRigidbodies builds a "rigi" frame.
func EncodeRigidbodies(recs []RigidbodyRecord) []byte {
	e := newEncoder()
	ids := make([]int32, len(recs))
	sleeping := make([]bool, len(recs))
	var vel, ang []float32
	for i, r := range recs {
		ids[i] = r.ID
		sleeping[i] = r.Sleeping
		vel = append(vel, flatten3(r.Velocity)...)
		ang = append(ang, flatten3(r.AngularVelocity)...)
	}
	idsOff, velOff, angOff, sleepOff := e.int32s(ids), e.float32s(vel), e.float32s(ang), e.bools(sleeping)
	e.b.StartObject(4)
	e.b.PrependUOffsetTSlot(0, idsOff, 0)
	e.b.PrependUOffsetTSlot(1, velOff, 0)
	e.b.PrependUOffsetTSlot(2, angOff, 0)
	e.b.PrependUOffsetTSlot(3, sleepOff, 0)
	return e.finish(e.b.EndObject(), KindRigidbodies)
}

// StaticRigidbodyRecord is one object in a StaticRigidbodies frame.
type StaticRigidbodyRecord struct {
	ID              int32
	Mass            float32
	DynamicFriction float32
	StaticFriction  float32
	Bounciness      float32
	Kinematic       bool
}

// EncodeStaticRigidbodies builds a "srig" frame.
func EncodeStaticRigidbodies(recs []StaticRigidbodyRecord) []byte {
	e := newEncoder()
	ids := make([]int32, len(recs))
	kinematic := make([]bool, len(recs))
	var values []float32
	for i, r := range recs {
		ids[i] = r.ID
		kinematic[i] = r.Kinematic
		values = append(values, r.Mass, r.DynamicFriction, r.StaticFriction, r.Bounciness)
	}
	idsOff, valOff, kinOff := e.int32s(ids), e.float32s(values), e.bools(kinematic)
	e.b.StartObject(3)
	e.b.PrependUOffsetTSlot(0, idsOff, 0)
	e.b.PrependUOffsetTSlot(1, valOff, 0)
	e.b.PrependUOffsetTSlot(2, kinOff, 0)
	return e.finish(e.b.EndObject(), KindStaticRigidbodies)
}

// BoundsRecord is one object in a Bounds frame.
type BoundsRecord struct {
	ID     int32
	Front  Vector3
	Back   Vector3
	Right  Vector3
	Left   Vector3
	Top    Vector3
	Bottom Vector3
	Center Vector3
}

// BoxBounds returns the bounds of an axis-aligned box.
func BoxBounds(id int32, center, size Vector3) BoundsRecord {
	hx, hy, hz := size.X/2, size.Y/2, size.Z/2
	return BoundsRecord{
		ID:     id,
		Front:  Vector3{center.X, center.Y, center.Z + hz},
		Back:   Vector3{center.X, center.Y, center.Z - hz},
		Right:  Vector3{center.X + hx, center.Y, center.Z},
		Left:   Vector3{center.X - hx, center.Y, center.Z},
		Top:    Vector3{center.X, center.Y + hy, center.Z},
		Bottom: Vector3{center.X, center.Y - hy, center.Z},
		Center: center,
	}
}

// EncodeBounds builds a "boun" frame.
func EncodeBounds(recs []BoundsRecord) []byte {
	e := newEncoder()
	ids := make([]int32, len(recs))
	var points []float32
	for i, r := range recs {
		ids[i] = r.ID
		points = append(points, flatten3(r.Front, r.Back, r.Right, r.Left, r.Top, r.Bottom, r.Center)...)
	}
	idsOff, ptsOff := e.int32s(ids), e.float32s(points)
	e.b.StartObject(2)
	e.b.PrependUOffsetTSlot(0, idsOff, 0)
	e.b.PrependUOffsetTSlot(1, ptsOff, 0)
	return e.finish(e.b.EndObject(), KindBounds)
}

// SegmentationRecord is one object in a SegmentationColors frame.
type SegmentationRecord struct {
	ID       int32
	Name     string
	Category string
	Color    [3]uint8
}

// EncodeSegmentationColors builds a "segm" frame.
func EncodeSegmentationColors(recs []SegmentationRecord) []byte {
	e := newEncoder()
	ids := make([]int32, len(recs))
	names := make([]string, len(recs))
	cats := make([]string, len(recs))
	var colors []byte
	for i, r := range recs {
		ids[i], names[i], cats[i] = r.ID, r.Name, r.Category
		colors = append(colors, r.Color[:]...)
	}
	idsOff, namesOff, catsOff := e.int32s(ids), e.strings(names), e.strings(cats)
	colorsOff := e.b.CreateByteVector(colors)
	e.b.StartObject(4)
	e.b.PrependUOffsetTSlot(0, idsOff, 0)
	e.b.PrependUOffsetTSlot(1, namesOff, 0)
	e.b.PrependUOffsetTSlot(2, catsOff, 0)
	e.b.PrependUOffsetTSlot(3, colorsOff, 0)
	return e.finish(e.b.EndObject(), KindSegmentationColors)
}

// ImagePass is one rendered pass of an Images frame.
type ImagePass struct {
	Mask  string
	Image []byte
}

// EncodeImages builds an "imag" frame.
func EncodeImages(avatarID, sensorName string, width, height int32, passes []ImagePass) []byte {
	e := newEncoder()
	passOffs := make([]flatbuffers.UOffsetT, len(passes))
	for i, p := range passes {
		mask := e.b.CreateString(p.Mask)
		img := e.b.CreateByteVector(p.Image)
		e.b.StartObject(2)
		e.b.PrependUOffsetTSlot(0, mask, 0)
		e.b.PrependUOffsetTSlot(1, img, 0)
		passOffs[i] = e.b.EndObject()
	}
	passesOff := e.offsets(passOffs)
	avatarOff := e.b.CreateString(avatarID)
	sensorOff := e.b.CreateString(sensorName)
	e.b.StartObject(5)
	e.b.PrependUOffsetTSlot(0, avatarOff, 0)
	e.b.PrependUOffsetTSlot(1, sensorOff, 0)
	e.b.PrependUOffsetTSlot(2, passesOff, 0)
	e.b.PrependInt32Slot(3, width, 0)
	e.b.PrependInt32Slot(4, height, 0)
	return e.finish(e.b.EndObject(), KindImages)
}

// CollisionRecord is the content of a Collision frame.
type CollisionRecord struct {
	ColliderID       int32
	CollideeID       int32
	State            CollisionState
	RelativeVelocity Vector3
	Impulse          Vector3
	Contacts         []Contact
}

// EncodeCollision builds a "coll" frame.
func EncodeCollision(r CollisionRecord) []byte {
	e := newEncoder()
	contactsOff := e.contacts(r.Contacts)
	e.b.StartObject(6)
	e.b.PrependInt32Slot(0, r.ColliderID, 0)
	e.b.PrependInt32Slot(1, r.CollideeID, 0)
	e.b.PrependStructSlot(2, e.vec3(r.RelativeVelocity), 0)
	e.b.PrependUint8Slot(3, uint8(r.State), 0)
	e.b.PrependUOffsetTSlot(4, contactsOff, 0)
	e.b.PrependStructSlot(5, e.vec3(r.Impulse), 0)
	return e.finish(e.b.EndObject(), KindCollision)
}

// EnvironmentCollisionRecord is the content of an EnvironmentCollision frame.
type EnvironmentCollisionRecord struct {
	ObjectID int32
	State    CollisionState
	Contacts []Contact
	Floor    bool
}

// EncodeEnvironmentCollision builds an "enco" frame.
func EncodeEnvironmentCollision(r EnvironmentCollisionRecord) []byte {
	e := newEncoder()
	contactsOff := e.contacts(r.Contacts)
	e.b.StartObject(4)
	e.b.PrependInt32Slot(0, r.ObjectID, 0)
	e.b.PrependUint8Slot(1, uint8(r.State), 0)
	e.b.PrependUOffsetTSlot(2, contactsOff, 0)
	e.b.PrependBoolSlot(3, r.Floor, false)
	return e.finish(e.b.EndObject(), KindEnvironmentCollision)
}

// OverlapRecord is the content of an Overlap frame.
type OverlapRecord struct {
	ID        int32
	ObjectIDs []int32
	Env       bool
	Walls     bool
}

// EncodeOverlap builds an "over" frame.
func EncodeOverlap(r OverlapRecord) []byte {
	e := newEncoder()
	idsOff := e.int32s(r.ObjectIDs)
	e.b.StartObject(4)
	e.b.PrependInt32Slot(0, r.ID, 0)
	e.b.PrependUOffsetTSlot(1, idsOff, 0)
	e.b.PrependBoolSlot(2, r.Env, false)
	e.b.PrependBoolSlot(3, r.Walls, false)
	return e.finish(e.b.EndObject(), KindOverlap)
}

// ContainmentRecord is the content of a Containment frame.
type ContainmentRecord struct {
	ObjectID    int32
	ContainerID int32
	Tag         ContainerTag
	OverlapIDs  []int32
	Env         bool
	Walls       bool
}

// EncodeContainment builds a "cont" frame.
func EncodeContainment(r ContainmentRecord) []byte {
	e := newEncoder()
	idsOff := e.int32s([]int32{r.ObjectID, r.ContainerID})
	overlapOff := e.int32s(r.OverlapIDs)
	e.b.StartObject(5)
	e.b.PrependUOffsetTSlot(0, idsOff, 0)
	e.b.PrependUint8Slot(1, uint8(r.Tag), 0)
	e.b.PrependUOffsetTSlot(2, overlapOff, 0)
	e.b.PrependBoolSlot(3, r.Env, false)
	e.b.PrependBoolSlot(4, r.Walls, false)
	return e.finish(e.b.EndObject(), KindContainment)
}

// EncodeNavMeshPath builds a "path" frame.
func EncodeNavMeshPath(id int32, state PathState, path []Vector3) []byte {
	e := newEncoder()
	pathOff := e.float32s(flatten3(path...))
	e.b.StartObject(3)
	e.b.PrependUint8Slot(0, uint8(state), 0)
	e.b.PrependUOffsetTSlot(1, pathOff, 0)
	e.b.PrependInt32Slot(2, id, 0)
	return e.finish(e.b.EndObject(), KindNavMeshPath)
}

// CompositeObjectRecord is one object in a StaticCompositeObjects frame.
type CompositeObjectRecord struct {
	ID         int32
	SubObjects map[SubObjectKind][]SubObject
}

func (e *encoder) subObject(s SubObject) flatbuffers.UOffsetT {
	e.b.StartObject(8)
	e.b.PrependInt32Slot(0, s.ID, 0)
	e.b.PrependBoolSlot(1, s.HasLimits, false)
	e.b.PrependFloat32Slot(2, s.MinLimit, 0)
	e.b.PrependFloat32Slot(3, s.MaxLimit, 0)
	e.b.PrependStructSlot(4, e.vec3(s.Axis), 0)
	e.b.PrependFloat32Slot(5, s.Force, 0)
	e.b.PrependFloat32Slot(6, s.Damper, 0)
	e.b.PrependFloat32Slot(7, s.Limit, 0)
	return e.b.EndObject()
}

// EncodeStaticCompositeObjects builds a "scom" frame.
func EncodeStaticCompositeObjects(objs []CompositeObjectRecord) []byte {
	e := newEncoder()
	objOffs := make([]flatbuffers.UOffsetT, len(objs))
	for i, o := range objs {
		var vecs [numSubObjectKinds]flatbuffers.UOffsetT
		for k := SubObjectKind(0); k < numSubObjectKinds; k++ {
			subs := o.SubObjects[k]
			offs := make([]flatbuffers.UOffsetT, len(subs))
			for j, s := range subs {
				offs[j] = e.subObject(s)
			}
			vecs[k] = e.offsets(offs)
		}
		e.b.StartObject(1 + int(numSubObjectKinds))
		e.b.PrependInt32Slot(0, o.ID, 0)
		for k, off := range vecs {
			e.b.PrependUOffsetTSlot(1+k, off, 0)
		}
		objOffs[i] = e.b.EndObject()
	}
	objsOff := e.offsets(objOffs)
	e.b.StartObject(1)
	e.b.PrependUOffsetTSlot(0, objsOff, 0)
	return e.finish(e.b.EndObject(), KindStaticCompositeObjects)
}

// HingeState is the dynamic state of one hinge.
type HingeState struct {
	ParentID int32
	ID       int32
	Angle    float32
	Velocity float32
}

// LightState is the dynamic state of one light.
type LightState struct {
	ParentID int32
	ID       int32
	On       bool
}

// EncodeDynamicCompositeObjects builds a "dcom" frame.
func EncodeDynamicCompositeObjects(hinges []HingeState, lights []LightState) []byte {
	e := newEncoder()
	var hingeIDs, lightIDs []int32
	var hingeValues []float32
	on := make([]bool, len(lights))
	for _, h := range hinges {
		hingeIDs = append(hingeIDs, h.ParentID, h.ID)
		hingeValues = append(hingeValues, h.Angle, h.Velocity)
	}
	for i, l := range lights {
		lightIDs = append(lightIDs, l.ParentID, l.ID)
		on[i] = l.On
	}
	hIDs, hVals, lIDs, lOn := e.int32s(hingeIDs), e.float32s(hingeValues), e.int32s(lightIDs), e.bools(on)
	e.b.StartObject(4)
	e.b.PrependUOffsetTSlot(0, hIDs, 0)
	e.b.PrependUOffsetTSlot(1, hVals, 0)
	e.b.PrependUOffsetTSlot(2, lIDs, 0)
	e.b.PrependUOffsetTSlot(3, lOn, 0)
	return e.finish(e.b.EndObject(), KindDynamicCompositeObjects)
}

// EncodeStaticRobot builds a "srob" frame.
func EncodeStaticRobot(id int32, name string) []byte {
	e := newEncoder()
	nameOff := e.b.CreateString(name)
	e.b.StartObject(2)
	e.b.PrependInt32Slot(0, id, 0)
	e.b.PrependUOffsetTSlot(1, nameOff, 0)
	return e.finish(e.b.EndObject(), KindStaticRobot)
}

// EncodeKeyboard builds a "keyb" frame.
func EncodeKeyboard(pressed, held, released []string) []byte {
	e := newEncoder()
	p, h, r := e.strings(pressed), e.strings(held), e.strings(released)
	e.b.StartObject(3)
	e.b.PrependUOffsetTSlot(0, p, 0)
	e.b.PrependUOffsetTSlot(1, h, 0)
	e.b.PrependUOffsetTSlot(2, r, 0)
	return e.finish(e.b.EndObject(), KindKeyboard)
}

// EncodeMouse builds a "mous" frame. buttons is indexed by MouseButton and
// then [pressed, held, released].
func EncodeMouse(position, scroll [2]float32, buttons [3][3]bool) []byte {
	e := newEncoder()
	var flat []bool
	for _, row := range buttons {
		flat = append(flat, row[:]...)
	}
	posOff, scrollOff, btnOff := e.float32s(position[:]), e.float32s(scroll[:]), e.bools(flat)
	e.b.StartObject(3)
	e.b.PrependUOffsetTSlot(0, posOff, 0)
	e.b.PrependUOffsetTSlot(1, scrollOff, 0)
	e.b.PrependUOffsetTSlot(2, btnOff, 0)
	return e.finish(e.b.EndObject(), KindMouse)
}

// EncodeLogMessage builds a "logm" frame.
func EncodeLogMessage(message string, level LogLevel, objectType string) []byte {
	e := newEncoder()
	msgOff, typeOff := e.b.CreateString(message), e.b.CreateString(objectType)
	e.b.StartObject(3)
	e.b.PrependUOffsetTSlot(0, msgOff, 0)
	e.b.PrependUint8Slot(1, uint8(level), 0)
	e.b.PrependUOffsetTSlot(2, typeOff, 0)
	return e.finish(e.b.EndObject(), KindLogMessage)
}

// EncodeVersion builds a "vers" frame.
func EncodeVersion(unity, tdw string, standalone bool) []byte {
	e := newEncoder()
	unityOff, tdwOff := e.b.CreateString(unity), e.b.CreateString(tdw)
	e.b.StartObject(3)
	e.b.PrependUOffsetTSlot(0, unityOff, 0)
	e.b.PrependUOffsetTSlot(1, tdwOff, 0)
	e.b.PrependBoolSlot(2, standalone, false)
	return e.finish(e.b.EndObject(), KindVersion)
}

// EncodeQuitSignal builds a "quit" frame.
func EncodeQuitSignal(ok bool) []byte {
	e := newEncoder()
	e.b.StartObject(1)
	e.b.PrependBoolSlot(0, ok, false)
	return e.finish(e.b.EndObject(), KindQuitSignal)
}

// EncodeFailedToReceive builds an "ftre" frame.
func EncodeFailedToReceive() []byte {
	e := newEncoder()
	e.b.StartObject(0)
	return e.finish(e.b.EndObject(), KindFailedToReceive)
}
