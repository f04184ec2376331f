// Package command builds and serializes the JSON commands sent to the
// engine.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	// ErrUnencodable is returned when a parameter has no JSON form.
	ErrUnencodable = errors.New("unencodable command parameter")
	// ErrInvalidVector is returned when a vector parameter has the wrong
	// shape.
	ErrInvalidVector = errors.New("invalid vector")
	// ErrEmptyType is returned for a command without a name.
	ErrEmptyType = errors.New("command has no $type")
)

// TypeKey is the discriminator field of every command.
const TypeKey = "$type"

// Params are the named parameters of a command.
type Params map[string]any

// Command is one instruction to the engine. A Command is immutable: With
// returns a modified copy.
type Command struct {
	name   string
	params Params
}

// New creates a command. params is copied.
func New(name string, params Params) Command {
	return Command{name: name, params: maps.Clone(params)}
}

// Name returns the snake_case command name.
func (c Command) Name() string {
	return c.name
}

// Param returns a parameter as given by the caller.
func (c Command) Param(key string) (any, bool) {
	v, ok := c.params[key]
	return v, ok
}

// Keys returns the parameter names in sorted order.
func (c Command) Keys() []string {
	return slices.Sorted(maps.Keys(c.params))
}

// With returns a copy of c with one parameter set.
func (c Command) With(key string, value any) Command {
	p := maps.Clone(c.params)
	if p == nil {
		p = make(Params, 1)
	}
	p[key] = value
	return Command{name: c.name, params: p}
}

func (c Command) String() string {
	b, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%s(<%v>)", c.name, err)
	}
	return string(b)
}

// MarshalJSON encodes c as an object whose first key is "$type", followed by
// the normalized parameters in sorted key order.
func (c Command) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Command) encode(buf *bytes.Buffer) error {
	if c.name == "" {
		return ErrEmptyType
	}
	buf.WriteByte('{')
	if err := writeJSON(buf, TypeKey); err != nil {
		return err
	}
	buf.WriteByte(':')
	if err := writeJSON(buf, c.name); err != nil {
		return err
	}
	for _, key := range c.Keys() {
		if key == TypeKey {
			continue
		}
		v, err := normalize(key, c.params[key])
		if err != nil {
			return fmt.Errorf("%s.%s: %w", c.name, key, err)
		}
		buf.WriteByte(',')
		if err := writeJSON(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeJSON(buf, v); err != nil {
			return fmt.Errorf("%s.%s: %w: %v", c.name, key, ErrUnencodable, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// Marshal serializes a batch as a JSON array. Order is preserved and nothing
// is deduplicated. Any error is returned before output is produced.
func Marshal(cmds []Command) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, c := range cmds {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := c.encode(&buf); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalOne serializes a single command as a one-element batch.
func MarshalOne(c Command) ([]byte, error) {
	return Marshal([]Command{c})
}

// Unmarshal parses a JSON batch, or a single JSON object, into commands.
// Numbers keep their literal form.
func Unmarshal(data []byte) ([]Command, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		data = append(append([]byte{'['}, data...), ']')
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse commands: %w", err)
	}
	cmds := make([]Command, 0, len(raw))
	for i, m := range raw {
		name, _ := m[TypeKey].(string)
		if name == "" {
			return nil, fmt.Errorf("command %d: %w", i, ErrEmptyType)
		}
		delete(m, TypeKey)
		cmds = append(cmds, Command{name: name, params: m})
	}
	return cmds, nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}
