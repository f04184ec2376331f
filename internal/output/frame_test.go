package output

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		frames [][]byte
	}{
		{
			name:   "sentinel only",
			frames: [][]byte{EncodeSentinel(7)},
		},
		{
			name: "mixed kinds",
			frames: [][]byte{
				EncodeQuitSignal(true),
				EncodeVersion("2020.3", "1.12.0", true),
				EncodeContainment(ContainmentRecord{ObjectID: 3, ContainerID: 7}),
				EncodeSentinel(42),
			},
		},
		{
			name:   "empty frame in the middle",
			frames: [][]byte{EncodeKeyboard(nil, nil, nil), {}, EncodeSentinel(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Split(Join(tt.frames))
			require.NoError(t, err)
			require.Len(t, resp, len(tt.frames))

			for i, f := range tt.frames {
				assert.Len(t, resp[i], len(f), "frame %d length", i)
				assert.Equal(t, DataTypeID(f), DataTypeID(resp[i]), "frame %d tag", i)
				assert.Equal(t, f, []byte(resp[i]))
			}
		})
	}
}

func TestSplit_Truncated(t *testing.T) {
	buf := Join([][]byte{EncodeQuitSignal(true), EncodeSentinel(1)})

	for _, cut := range []int{0, 3, 7, len(buf) - 1} {
		_, err := Split(buf[:cut])
		assert.True(t, errors.Is(err, ErrTruncated), "cut at %d: %v", cut, err)
	}
}

func TestSplit_TrailingBytes(t *testing.T) {
	buf := append(Join([][]byte{EncodeSentinel(1)}), 0xff)
	_, err := Split(buf)
	assert.ErrorIs(t, err, ErrFrameAccounting)
}

func TestResponse_FramesExcludeSentinel(t *testing.T) {
	resp, err := Split(Join([][]byte{
		EncodeQuitSignal(true),
		EncodeKeyboard([]string{"W"}, nil, nil),
		EncodeSentinel(9),
	}))
	require.NoError(t, err)

	frames := resp.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, []string{"quit", "keyb"}, resp.Tags())

	n, ok := resp.FrameNumber()
	require.True(t, ok)
	assert.Equal(t, uint64(9), n)

	var kinds []Kind
	require.NoError(t, resp.Each(func(d Data) error {
		kinds = append(kinds, d.Kind())
		return nil
	}))
	assert.Equal(t, []Kind{KindQuitSignal, KindKeyboard}, kinds)

	assert.Empty(t, Response(nil).Frames())
	assert.Empty(t, Response{EncodeSentinel(0)}.Frames())
}

func TestDataTypeID(t *testing.T) {
	assert.Equal(t, "coll", DataTypeID(EncodeCollision(CollisionRecord{ColliderID: 1})))
	assert.Equal(t, "", DataTypeID(EncodeSentinel(3)))
	assert.Equal(t, "", DataTypeID(nil))
}

func TestTypedReader_WrongKind(t *testing.T) {
	frame := EncodeQuitSignal(true)

	_, err := NewCollision(frame)
	assert.ErrorIs(t, err, ErrWrongFrameKind)

	_, err = NewContainment(EncodeSentinel(1))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	q, err := NewQuitSignal(frame)
	require.NoError(t, err)
	assert.True(t, q.OK())
}

func TestDecode_MalformedTable(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "vtable outside frame", frame: []byte{4, 0, 0, 0, 'c', 'o', 'l', 'l'}},
		{name: "root past end", frame: []byte{64, 0, 0, 0, 'c', 'o', 'l', 'l'}},
		{name: "vtable too short", frame: []byte{8, 0, 0, 0, 'c', 'o', 'l', 'l', 0xfc, 0xff, 0xff, 0xff, 2, 0, 4, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			assert.ErrorIs(t, err, ErrMalformedFrame)
			_, err = NewCollision(tt.frame)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestDecode_TruncatedFramesDoNotPanic(t *testing.T) {
	frames := [][]byte{
		EncodeCollision(CollisionRecord{
			ColliderID: 1,
			CollideeID: 2,
			State:      CollisionStay,
			Contacts:   []Contact{{Normal: Vector3{Y: 1}, Point: Vector3{X: 2}}},
		}),
		EncodeNavMeshPath(3, PathComplete, []Vector3{{X: 1}, {X: 2}}),
		EncodeKeyboard([]string{"Space"}, []string{"W"}, nil),
		EncodeImages("a", "SensorContainer", 4, 4, []ImagePass{{Mask: "_img", Image: []byte{1, 2, 3}}}),
		EncodeStaticCompositeObjects([]CompositeObjectRecord{{ID: 5}}),
	}
	for _, full := range frames {
		for n := tagOffset + tagLength; n < len(full); n++ {
			frame := full[:n]
			assert.NotPanics(t, func() {
				d, err := Decode(frame)
				if err != nil {
					assert.ErrorIs(t, err, ErrMalformedFrame)
					return
				}
				touch(d)
			}, "%s truncated to %d bytes", DataTypeID(full), n)
		}
	}
}

// touch calls the accessors of d that follow offsets into the frame.
func touch(d Data) {
	switch v := d.(type) {
	case *Collision:
		for i := 0; i < v.NumContacts(); i++ {
			v.Contact(i)
		}
		v.RelativeVelocity()
		v.Impulse()
	case *NavMeshPath:
		v.Path()
	case *Keyboard:
		v.Pressed()
		v.Held()
	case *Images:
		for i := 0; i < v.NumPasses(); i++ {
			v.PassMask(i)
			v.Image(i)
		}
	case *StaticCompositeObjects:
		for i := 0; i < v.Num(); i++ {
			v.ObjectID(i)
			v.NumSubObjects(i, SubNonMachine)
		}
	}
}

func TestDecode_UnknownTagIsNotAnError(t *testing.T) {
	frame := EncodeQuitSignal(true)
	copy(frame[4:8], "zzzz")

	d, err := Decode(frame)
	require.NoError(t, err)
	u, ok := d.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "zzzz", u.Tag)
	assert.Equal(t, KindUnknown, d.Kind())
}

func TestKind_Tags(t *testing.T) {
	for k, tag := range kindTags {
		got, ok := ParseKind(tag)
		require.True(t, ok, tag)
		assert.Equal(t, k, got)
		assert.Len(t, tag, 4)
	}
	assert.Equal(t, "unknown", KindUnknown.String())
}
