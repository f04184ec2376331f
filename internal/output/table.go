package output

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// Vector3 is a position, direction or scale as sent by the engine.
type Vector3 struct {
	X, Y, Z float32
}

// Array returns v as a flat array, one of the accepted vector forms for
// command parameters.
func (v Vector3) Array() [3]float64 {
	return [3]float64{float64(v.X), float64(v.Y), float64(v.Z)}
}

// Quaternion is a rotation as sent by the engine.
type Quaternion struct {
	X, Y, Z, W float32
}

// Array returns q as a flat array.
func (q Quaternion) Array() [4]float64 {
	return [4]float64{float64(q.X), float64(q.Y), float64(q.Z), float64(q.W)}
}

const (
	sizeVector3 = 12
	sizeContact = 24
)

// table wraps a flatbuffer table and addresses fields by declaration index.
// A field whose vtable entry is 0 is absent and reads as its zero value, as
// does any field or element that would fall outside the frame.
type table struct {
	t flatbuffers.Table
}

// root validates frame against kind and returns its root table.
func root(frame []byte, kind Kind) (table, error) {
	if len(frame) < tagOffset+tagLength {
		return table{}, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(frame))
	}
	if tag := DataTypeID(frame); tag != kind.Tag() {
		return table{}, fmt.Errorf("%w: want %q, got %q", ErrWrongFrameKind, kind.Tag(), tag)
	}
	n := flatbuffers.GetUOffsetT(frame)
	if err := checkTable(frame, n); err != nil {
		return table{}, err
	}
	return table{t: flatbuffers.Table{Bytes: frame, Pos: n}}, nil
}

// checkTable verifies that the table at pos, its vtable, and every field
// the vtable points to lie within buf.
func checkTable(buf []byte, pos flatbuffers.UOffsetT) error {
	size := int64(len(buf))
	p := int64(pos)
	if p+4 > size {
		return fmt.Errorf("%w: table offset %d beyond %d bytes", ErrMalformedFrame, p, size)
	}
	vt := p - int64(flatbuffers.GetSOffsetT(buf[p:]))
	if vt < 0 || vt+4 > size {
		return fmt.Errorf("%w: vtable offset %d outside %d bytes", ErrMalformedFrame, vt, size)
	}
	vtLen := int64(flatbuffers.GetVOffsetT(buf[vt:]))
	objLen := int64(flatbuffers.GetVOffsetT(buf[vt+2:]))
	if vtLen < 4 || vtLen%2 != 0 || vt+vtLen > size || objLen < 4 || p+objLen > size {
		return fmt.Errorf("%w: vtable of %d bytes for a %d-byte table at %d", ErrMalformedFrame, vtLen, objLen, p)
	}
	for e := vt + 4; e < vt+vtLen; e += 2 {
		if off := int64(flatbuffers.GetVOffsetT(buf[e:])); off >= objLen {
			return fmt.Errorf("%w: field offset %d beyond %d-byte table", ErrMalformedFrame, off, objLen)
		}
	}
	return nil
}

func slot(field int) flatbuffers.VOffsetT {
	return flatbuffers.VOffsetT(4 + 2*field)
}

// in reports whether n bytes at pos lie within the frame.
func (tb table) in(pos flatbuffers.UOffsetT, n int) bool {
	return int64(pos)+int64(n) <= int64(len(tb.t.Bytes))
}

func (tb table) field(field int) flatbuffers.UOffsetT {
	if tb.t.Bytes == nil {
		return 0
	}
	return flatbuffers.UOffsetT(tb.t.Offset(slot(field)))
}

// scalar returns the absolute position of an inline field of n bytes.
func (tb table) scalar(field, n int) (flatbuffers.UOffsetT, bool) {
	o := tb.field(field)
	if o == 0 || !tb.in(tb.t.Pos+o, n) {
		return 0, false
	}
	return tb.t.Pos + o, true
}

func (tb table) int32(field int) int32 {
	if p, ok := tb.scalar(field, 4); ok {
		return tb.t.GetInt32(p)
	}
	return 0
}

func (tb table) float32(field int) float32 {
	if p, ok := tb.scalar(field, 4); ok {
		return tb.t.GetFloat32(p)
	}
	return 0
}

func (tb table) bool(field int) bool {
	if p, ok := tb.scalar(field, 1); ok {
		return tb.t.GetBool(p)
	}
	return false
}

func (tb table) uint8(field int) uint8 {
	if p, ok := tb.scalar(field, 1); ok {
		return tb.t.GetUint8(p)
	}
	return 0
}

// vector follows the uoffset at pos to a vector and returns the position of
// its first element and its length.
func (tb table) vector(pos flatbuffers.UOffsetT) (flatbuffers.UOffsetT, int, bool) {
	if !tb.in(pos, 4) {
		return 0, 0, false
	}
	v := pos + flatbuffers.GetUOffsetT(tb.t.Bytes[pos:])
	if v < pos || !tb.in(v, 4) {
		return 0, 0, false
	}
	return v + 4, int(flatbuffers.GetUOffsetT(tb.t.Bytes[v:])), true
}

// byteVector reads the string or [ubyte] referenced at pos without copying.
func (tb table) byteVector(pos flatbuffers.UOffsetT) []byte {
	start, n, ok := tb.vector(pos)
	if !ok || !tb.in(start, n) {
		return nil
	}
	return tb.t.Bytes[start : int(start)+n]
}

func (tb table) str(field int) string {
	o := tb.field(field)
	if o == 0 {
		return ""
	}
	return string(tb.byteVector(o + tb.t.Pos))
}

// bytes returns a [ubyte] field without copying.
func (tb table) bytes(field int) []byte {
	o := tb.field(field)
	if o == 0 {
		return nil
	}
	return tb.byteVector(o + tb.t.Pos)
}

func (tb table) vecStart(field int) (flatbuffers.UOffsetT, int, bool) {
	o := tb.field(field)
	if o == 0 {
		return 0, 0, false
	}
	return tb.vector(o + tb.t.Pos)
}

func (tb table) vecLen(field int) int {
	_, n, ok := tb.vecStart(field)
	if !ok {
		return 0
	}
	return n
}

// elem returns the position of element j of size n of a vector field, or
// false when it is absent or out of range.
func (tb table) elem(field, j, n int) (flatbuffers.UOffsetT, bool) {
	a, l, ok := tb.vecStart(field)
	if !ok || j < 0 || j >= l {
		return 0, false
	}
	p := a + flatbuffers.UOffsetT(j*n)
	return p, tb.in(p, n)
}

func (tb table) int32At(field, j int) int32 {
	if p, ok := tb.elem(field, j, 4); ok {
		return tb.t.GetInt32(p)
	}
	return 0
}

func (tb table) int32s(field int) []int32 {
	n := tb.vecLen(field)
	out := make([]int32, 0, min(n, len(tb.t.Bytes)/4))
	for j := 0; j < n; j++ {
		p, ok := tb.elem(field, j, 4)
		if !ok {
			break
		}
		out = append(out, tb.t.GetInt32(p))
	}
	return out
}

func (tb table) float32At(field, j int) float32 {
	if p, ok := tb.elem(field, j, 4); ok {
		return tb.t.GetFloat32(p)
	}
	return 0
}

func (tb table) boolAt(field, j int) bool {
	if p, ok := tb.elem(field, j, 1); ok {
		return tb.t.GetBool(p)
	}
	return false
}

func (tb table) uint8At(field, j int) uint8 {
	if p, ok := tb.elem(field, j, 1); ok {
		return tb.t.GetUint8(p)
	}
	return 0
}

func (tb table) strAt(field, j int) string {
	if p, ok := tb.elem(field, j, 4); ok {
		return string(tb.byteVector(p))
	}
	return ""
}

func (tb table) strs(field int) []string {
	n := tb.vecLen(field)
	out := make([]string, 0, min(n, len(tb.t.Bytes)/4))
	for j := 0; j < n; j++ {
		p, ok := tb.elem(field, j, 4)
		if !ok {
			break
		}
		out = append(out, string(tb.byteVector(p)))
	}
	return out
}

// tableAt returns element j of a table vector. A malformed element reads
// as an empty table.
func (tb table) tableAt(field, j int) table {
	p, ok := tb.elem(field, j, 4)
	if !ok {
		return table{}
	}
	x := p + flatbuffers.GetUOffsetT(tb.t.Bytes[p:])
	if x < p || checkTable(tb.t.Bytes, x) != nil {
		return table{}
	}
	return table{t: flatbuffers.Table{Bytes: tb.t.Bytes, Pos: x}}
}

// vec3At reads three consecutive floats starting at element 3*j of a flat
// [float] field.
func (tb table) vec3At(field, j int) Vector3 {
	return Vector3{
		X: tb.float32At(field, 3*j),
		Y: tb.float32At(field, 3*j+1),
		Z: tb.float32At(field, 3*j+2),
	}
}

// vec3Struct reads an inline Vector3 struct field.
func (tb table) vec3Struct(field int) Vector3 {
	p, ok := tb.scalar(field, sizeVector3)
	if !ok {
		return Vector3{}
	}
	return readVector3(tb.t.Bytes, p)
}

// contactAt reads element j of a [Contact] struct vector.
func (tb table) contactAt(field, j int) Contact {
	p, ok := tb.elem(field, j, sizeContact)
	if !ok {
		return Contact{}
	}
	return Contact{
		Normal: readVector3(tb.t.Bytes, p),
		Point:  readVector3(tb.t.Bytes, p+sizeVector3),
	}
}

func readVector3(buf []byte, pos flatbuffers.UOffsetT) Vector3 {
	return Vector3{
		X: flatbuffers.GetFloat32(buf[pos:]),
		Y: flatbuffers.GetFloat32(buf[pos+4:]),
		Z: flatbuffers.GetFloat32(buf[pos+8:]),
	}
}
