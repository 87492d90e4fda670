package promptgen

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
)

// stringify renders a resolved value as prompt text. Nil becomes the empty
// string, primitives use their natural form, and anything else is
// best-effort JSON. Never fails: an unserializable value becomes "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// asNumber coerces a resolved value to a finite float64.
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		if isFinite(t) {
			return t, true
		}
	case json.Number:
		f, err := t.Float64()
		if err == nil && isFinite(f) {
			return f, true
		}
	}
	return 0, false
}

func isFinite(f float64) bool {
	return f == f && f <= maxFloat && f >= -maxFloat
}

const maxFloat = 1.7976931348623157e308

// asArray coerces a resolved value to a generic slice. JSON-decoded data
// arrives as []any; registry handlers may hand back typed slices, which
// are unpacked through reflection.
func asArray(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if arr, ok := v.([]any); ok {
		return arr, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// deepEqual compares two values structurally by JSON encoding, falling
// back to direct equality when either side cannot be serialized
// (cyclic values, channels).
func deepEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA == nil && errB == nil {
		return bytes.Equal(ja, jb)
	}
	return refEqual(a, b)
}

func refEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
