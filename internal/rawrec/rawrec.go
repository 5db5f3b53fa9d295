// Package rawrec provides typed accessors over loosely-schemad JSON records.
// Every accessor returns a usable value: missing or wrong-typed fields fall
// back to the supplied default instead of failing.
package rawrec

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Record is one decoded JSON object from a line-delimited log.
type Record map[string]any

// Decode parses a single JSON object. Numbers are kept as json.Number so
// integer fields survive without float rounding. ok is false for malformed
// input and for JSON values that are not objects.
func Decode(line []byte) (Record, bool) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return Record(obj), true
}

// Value returns the raw value stored under key, or nil.
func (r Record) Value(key string) any {
	if r == nil {
		return nil
	}
	return r[key]
}

// Has reports whether key is present, even when its value is null.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Str returns the string form of a truthy value, or "" for falsy ones.
// Non-string scalars are rendered the way they appear in JSON.
func (r Record) Str(key string) string {
	return String(r.Value(key))
}

// FirstStr returns the first non-empty Str among keys.
func (r Record) FirstStr(keys ...string) string {
	for _, k := range keys {
		if s := r.Str(k); s != "" {
			return s
		}
	}
	return ""
}

// Int returns an integer field or def. JSON integers and integral floats are
// accepted; booleans, strings and fractional numbers are not.
func (r Record) Int(key string, def int64) int64 {
	return Int(r.Value(key), def)
}

// Bool returns def when key is absent, otherwise the truthiness of its value.
func (r Record) Bool(key string, def bool) bool {
	if !r.Has(key) {
		return def
	}
	return Truthy(r[key])
}

// Object returns a nested object field, or nil when absent or not an object.
func (r Record) Object(key string) Record {
	if obj, ok := r.Value(key).(map[string]any); ok {
		return Record(obj)
	}
	return nil
}

// String renders v as a string if it is truthy.
func String(v any) string {
	if !Truthy(v) {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return "true"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Int converts v to an int64 or returns def.
func Int(v any, def int64) int64 {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, err := t.Float64()
		if err != nil {
			return def
		}
		return integral(f, def)
	case float64:
		return integral(t, def)
	case int:
		return int64(t)
	case int64:
		return t
	default:
		return def
	}
}

func integral(f float64, def int64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return def
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return def
	}
	return int64(f)
}

// Truthy mirrors JSON-ish truthiness: null, false, zero, "" and empty
// collections are false; everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
