package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
)

// Map is an insertion-ordered mapping from filter key to value.
//
// Keys are unique; setting an existing key replaces its value in place
// without changing its position. The zero value is an empty map ready
// for use.
type Map struct {
	keys   []string
	values map[string]any
}

// M builds a Map from alternating key/value arguments.
// It panics when given an odd number of arguments or a non-string key;
// use Map.Set when keys are computed at runtime.
func M(kv ...any) Map {
	m, err := pairs(kv)
	if err != nil {
		panic(err)
	}
	return m
}

// pairs builds a Map from alternating key/value arguments.
func pairs(kv []any) (Map, error) {
	var m Map
	if len(kv)%2 != 0 {
		return m, fmt.Errorf("filter arguments must be key/value pairs, got %d values", len(kv))
	}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return m, fmt.Errorf("filter key at position %d must be a string, got %T", i, kv[i])
		}
		m.Set(key, kv[i+1])
	}
	return m, nil
}

// Set stores value under key.
func (m *Map) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of entries.
func (m Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// All iterates entries in insertion order.
func (m Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy.
func (m Map) Clone() Map {
	var out Map
	for k, v := range m.All() {
		out.Set(k, v)
	}
	return out
}

// MarshalJSON encodes the map as a JSON object, preserving key order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
