package command

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Vector3 is a position, direction or euler rotation.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is a rotation.
type Quaternion struct {
	X, Y, Z, W float64
}

// Array returns v as a flat array.
func (v Vector3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Array returns q as a flat array.
func (q Quaternion) Array() [4]float64 { return [4]float64{q.X, q.Y, q.Z, q.W} }

// vectorKeys are parameter names whose list values are read as vectors.
// Fixed-size Go arrays and {x,y,z} mappings are vectors under any name.
var vectorKeys = map[string]bool{
	"position":         true,
	"rotation":         true,
	"euler_angles":     true,
	"scale":            true,
	"forward":          true,
	"origin":           true,
	"destination":      true,
	"velocity":         true,
	"angular_velocity": true,
	"force":            true,
	"torque":           true,
	"axis":             true,
	"direction":        true,
}

var axes = [4]string{"x", "y", "z", "w"}

// vector is the canonical wire form of both vector representations. It
// always encodes as {"x":..,"y":..,"z":..(,"w":..)}.
type vector []float64

func (v vector) MarshalJSON() ([]byte, error) {
	b := []byte{'{'}
	for i, f := range v {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '"')
		b = append(b, axes[i]...)
		b = append(b, '"', ':')
		n, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		b = append(b, n...)
	}
	return append(b, '}'), nil
}

// ParseVector3 accepts a Vector3, a 3-element numeric array or slice, or a
// mapping with exactly the keys x, y and z.
func ParseVector3(v any) (Vector3, error) {
	vec, ok, err := asVector(v, true)
	if err != nil {
		return Vector3{}, err
	}
	if !ok || len(vec) != 3 {
		return Vector3{}, fmt.Errorf("%w: %v", ErrInvalidVector, v)
	}
	return Vector3{vec[0], vec[1], vec[2]}, nil
}

// ParseQuaternion accepts the 4-component forms of ParseVector3.
func ParseQuaternion(v any) (Quaternion, error) {
	vec, ok, err := asVector(v, true)
	if err != nil {
		return Quaternion{}, err
	}
	if !ok || len(vec) != 4 {
		return Quaternion{}, fmt.Errorf("%w: %v", ErrInvalidVector, v)
	}
	return Quaternion{vec[0], vec[1], vec[2], vec[3]}, nil
}

// normalize converts a parameter value into a form encoding/json writes
// deterministically, rewriting every vector to its mapping form.
func normalize(key string, v any) (any, error) {
	vec, ok, err := asVector(v, vectorKeys[key])
	if err != nil {
		return nil, err
	}
	if ok {
		return vec, nil
	}

	switch x := v.(type) {
	case nil, bool, string, json.Number, json.RawMessage:
		return x, nil
	case float64:
		return checkFloat(x)
	case float32:
		return checkFloat(shortFloat(x))
	case json.Marshaler:
		return x, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v, nil
	case reflect.Float32, reflect.Float64:
		return checkFloat(rv.Float())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(key, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			e, err := normalize("", rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = e
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %s", ErrUnencodable, rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			e, err := normalize(k, iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = e
		}
		return out, nil
	case reflect.Struct:
		// Plain structs go through their json tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
		}
		return json.RawMessage(raw), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnencodable, v)
}

// asVector recognizes the vector forms. Lists count only when lists is set.
func asVector(v any, lists bool) (vector, bool, error) {
	switch x := v.(type) {
	case Vector3:
		return vector{x.X, x.Y, x.Z}, true, nil
	case Quaternion:
		return vector{x.X, x.Y, x.Z, x.W}, true, nil
	case *Vector3:
		if x == nil {
			return nil, false, nil
		}
		return vector{x.X, x.Y, x.Z}, true, nil
	case *Quaternion:
		if x == nil {
			return nil, false, nil
		}
		return vector{x.X, x.Y, x.Z, x.W}, true, nil
	case Position:
		return vector{x.X, x.Y, x.Z}, true, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		if n := rv.Len(); (n == 3 || n == 4) && isNumberType(rv.Type().Elem()) {
			return listVector(rv)
		}
	case reflect.Slice:
		if n := rv.Len(); lists && (n == 3 || n == 4) {
			if !isNumberType(rv.Type().Elem()) && !allNumbers(rv) {
				return nil, false, nil
			}
			return listVector(rv)
		}
	case reflect.Map:
		return mapVector(rv)
	}
	return nil, false, nil
}

func listVector(rv reflect.Value) (vector, bool, error) {
	out := make(vector, rv.Len())
	for i := range out {
		f, err := toFloat(rv.Index(i).Interface())
		if err != nil {
			return nil, false, err
		}
		out[i] = f
	}
	return out, true, nil
}

func mapVector(rv reflect.Value) (vector, bool, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, false, nil
	}
	n := rv.Len()
	if n != 3 && n != 4 {
		return nil, false, nil
	}
	out := make(vector, n)
	for i := range n {
		e := rv.MapIndex(reflect.ValueOf(axes[i]).Convert(rv.Type().Key()))
		if !e.IsValid() {
			return nil, false, nil
		}
		if !isNumber(e.Interface()) {
			return nil, false, nil
		}
		f, err := toFloat(e.Interface())
		if err != nil {
			return nil, false, err
		}
		out[i] = f
	}
	return out, true, nil
}

func isNumberType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isNumber(v any) bool {
	if _, ok := v.(json.Number); ok {
		return true
	}
	return v != nil && isNumberType(reflect.TypeOf(v))
}

func allNumbers(rv reflect.Value) bool {
	for i := range rv.Len() {
		if !isNumber(rv.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float32:
		f = shortFloat(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidVector, err)
		}
		f = p
	default:
		rv := reflect.ValueOf(v)
		switch {
		case rv.CanFloat():
			f = rv.Float()
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		default:
			return 0, fmt.Errorf("%w: component %T", ErrInvalidVector, v)
		}
	}
	return checkFloat(f)
}

// shortFloat widens f through its shortest decimal form so 0.1 stays 0.1
// instead of 0.10000000149011612.
func shortFloat(f float32) float64 {
	p, _ := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	return p
}

func checkFloat(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrUnencodable, f)
	}
	return f, nil
}
