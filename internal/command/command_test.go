package command

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_TypeFirstAndSortedKeys(t *testing.T) {
	c := New("teleport_object", Params{"position": Vector3{1, 2, 3}, "id": 7, "absolute": true})

	b, err := c.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"$type":"teleport_object","absolute":true,"id":7,"position":{"x":1,"y":2,"z":3}}`, string(b))
}

func TestMarshal_PreservesOrderAndDuplicates(t *testing.T) {
	batch := []Command{DoNothing(), New("step_physics", Params{"frames": 1}), DoNothing()}

	b, err := Marshal(batch)
	require.NoError(t, err)
	assert.Equal(t, `[{"$type":"do_nothing"},{"$type":"step_physics","frames":1},{"$type":"do_nothing"}]`, string(b))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Len(t, decoded, 3)
	for i, c := range batch {
		assert.Equal(t, c.Name(), decoded[i]["$type"])
	}
}

func TestMarshal_VectorFormsAreIdentical(t *testing.T) {
	forms := []struct {
		name  string
		value any
	}{
		{"struct", Vector3{0.1, 2, -3}},
		{"float64 array", [3]float64{0.1, 2, -3}},
		{"float32 array", [3]float32{0.1, 2, -3}},
		{"float64 slice", []float64{0.1, 2, -3}},
		{"any slice", []any{0.1, 2, -3}},
		{"mapping", map[string]any{"x": 0.1, "y": 2, "z": -3}},
		{"float32 mapping", map[string]float32{"x": 0.1, "y": 2, "z": -3}},
		{"position target", Position{0.1, 2, -3}},
	}

	want, err := MarshalOne(New("teleport_object", Params{"id": 1, "position": forms[0].value}))
	require.NoError(t, err)
	assert.Contains(t, string(want), `"position":{"x":0.1,"y":2,"z":-3}`)

	for _, f := range forms[1:] {
		t.Run(f.name, func(t *testing.T) {
			got, err := MarshalOne(New("teleport_object", Params{"id": 1, "position": f.value}))
			require.NoError(t, err)
			assert.Equal(t, string(want), string(got))
		})
	}
}

func TestMarshal_QuaternionForms(t *testing.T) {
	a, err := MarshalOne(New("rotate_object_to", Params{"id": 1, "rotation": [4]float64{0, 0, 0, 1}}))
	require.NoError(t, err)
	b, err := MarshalOne(New("rotate_object_to", Params{"id": 1, "rotation": map[string]int{"w": 1, "x": 0, "y": 0, "z": 0}}))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `{"x":0,"y":0,"z":0,"w":1}`)
}

func TestMarshal_ListsStayListsOutsideVectorKeys(t *testing.T) {
	b, err := MarshalOne(New("bake_nav_mesh", Params{"ignore": []int{1, 2, 3}}))
	require.NoError(t, err)
	assert.Equal(t, `[{"$type":"bake_nav_mesh","ignore":[1,2,3]}]`, string(b))
}

func TestMarshal_Unencodable(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"channel", make(chan int)},
		{"func", func() {}},
		{"nan", math.NaN()},
		{"inf in vector", [3]float64{0, math.Inf(1), 0}},
		{"nested", map[string]any{"a": []any{complex(1, 2)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal([]Command{DoNothing(), New("bad", Params{"v": tt.value})})
			assert.ErrorIs(t, err, ErrUnencodable)
		})
	}
}

func TestMarshal_EmptyType(t *testing.T) {
	_, err := Marshal([]Command{{}})
	assert.ErrorIs(t, err, ErrEmptyType)
}

func TestWith_DoesNotMutate(t *testing.T) {
	a := New("send_bounds", nil)
	b := a.With("frequency", "once")

	_, ok := a.Param("frequency")
	assert.False(t, ok)
	v, ok := b.Param("frequency")
	require.True(t, ok)
	assert.Equal(t, "once", v)
}

func TestUnmarshal(t *testing.T) {
	cmds, err := Unmarshal([]byte(`[{"$type":"teleport_object","id":3,"position":[1,2,3]},{"$type":"do_nothing"}]`))
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "teleport_object", cmds[0].Name())

	b, err := Marshal(cmds[:1])
	require.NoError(t, err)
	assert.Equal(t, `[{"$type":"teleport_object","id":3,"position":{"x":1,"y":2,"z":3}}]`, string(b))

	one, err := Unmarshal([]byte(`{"$type":"terminate"}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, TerminateName, one[0].Name())

	_, err = Unmarshal([]byte(`[{"id":1}]`))
	assert.ErrorIs(t, err, ErrEmptyType)
}

func TestParseVector3(t *testing.T) {
	v, err := ParseVector3(map[string]any{"x": 1, "y": 2.5, "z": json.Number("3")})
	require.NoError(t, err)
	assert.Equal(t, Vector3{1, 2.5, 3}, v)

	_, err = ParseVector3([]float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidVector)

	_, err = ParseQuaternion([3]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidVector)
}

func TestLookAt(t *testing.T) {
	c, err := LookAt("a", ObjectID(4))
	require.NoError(t, err)
	assert.Equal(t, "look_at", c.Name())

	c, err = LookAt("a", Position{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, `{"$type":"look_at_position","avatar_id":"a","position":{"x":1,"y":0,"z":0}}`, c.String())
}
