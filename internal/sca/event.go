// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// Event is a mutable JSON document addressed by JSON-pointer-style paths
// ("/event/sca/check/id"). It is the unit of work the decoder operates on:
// handlers read the raw agent payload from the source sub-tree and write
// normalized fields into the destination sub-tree of the same document.
//
// An Event is not safe for concurrent use; each decoder invocation owns the
// event it is handed for the duration of the call.
type Event struct {
	root map[string]interface{}
}

// NewEvent creates an event from an existing document tree.
// A nil document yields an empty event.
func NewEvent(doc map[string]interface{}) *Event {
	if doc == nil {
		doc = make(map[string]interface{})
	}
	return &Event{root: doc}
}

// ParseEvent decodes a JSON payload into an event.
func ParseEvent(data []byte) (*Event, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	return NewEvent(doc), nil
}

// Bytes serializes the full document back to JSON.
func (e *Event) Bytes() ([]byte, error) {
	data, err := json.Marshal(e.root)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Doc returns the underlying document tree.
func (e *Event) Doc() map[string]interface{} {
	return e.root
}

// splitPath turns "/a/b/c" into ["a","b","c"]. The empty path and "/"
// address the document root.
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// lookup walks the document and returns the value at path.
func (e *Event) lookup(path string) (interface{}, bool) {
	var cur interface{} = e.root
	for _, seg := range splitPath(path) {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Exists reports whether a value is present at path.
func (e *Event) Exists(path string) bool {
	_, ok := e.lookup(path)
	return ok
}

// GetString returns the string at path, or false when absent or not a string.
func (e *Event) GetString(path string) (string, bool) {
	v, ok := e.lookup(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the integer at path. JSON numbers decode as float64; a
// number with a fractional part is not an integer and returns false.
func (e *Event) GetInt(path string) (int, bool) {
	v, ok := e.lookup(path)
	if !ok {
		return 0, false
	}
	return asInt(v)
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// GetBool returns the boolean at path.
func (e *Event) GetBool(path string) (bool, bool) {
	v, ok := e.lookup(path)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetArray returns the array at path.
func (e *Event) GetArray(path string) ([]interface{}, bool) {
	v, ok := e.lookup(path)
	if !ok {
		return nil, false
	}
	a, ok := v.([]interface{})
	return a, ok
}

// GetObject returns the object at path.
func (e *Event) GetObject(path string) (map[string]interface{}, bool) {
	v, ok := e.lookup(path)
	if !ok {
		return nil, false
	}
	o, ok := v.(map[string]interface{})
	return o, ok
}

// RawJSON serializes the sub-tree at path. Returns false when the path is
// absent or the sub-tree cannot be marshaled.
func (e *Event) RawJSON(path string) (string, bool) {
	v, ok := e.lookup(path)
	if !ok {
		return "", false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set writes a value at path, creating intermediate objects as needed.
// Intermediate segments holding non-object values are overwritten.
func (e *Event) Set(path string, value interface{}) {
	segs := splitPath(path)
	if len(segs) == 0 {
		if obj, ok := value.(map[string]interface{}); ok {
			e.root = obj
		}
		return
	}

	cur := e.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// SetString writes a string value at path.
func (e *Event) SetString(path, value string) {
	e.Set(path, value)
}

// SetBool writes a boolean value at path.
func (e *Event) SetBool(path string, value bool) {
	e.Set(path, value)
}

// SetArray writes an empty array at path, replacing any existing value.
func (e *Event) SetArray(path string) {
	e.Set(path, []interface{}{})
}

// AppendString appends a string to the array at path. If no array exists
// there yet, one is created.
func (e *Event) AppendString(path, value string) {
	arr, ok := e.GetArray(path)
	if !ok {
		arr = []interface{}{}
	}
	e.Set(path, append(arr, value))
}

// Copy copies the value at src to dst when present.
func (e *Event) Copy(dst, src string) {
	if v, ok := e.lookup(src); ok {
		e.Set(dst, v)
	}
}
