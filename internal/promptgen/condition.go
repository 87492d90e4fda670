package promptgen

import "reflect"

// evalCondition evaluates one boolean predicate against a resolved
// reference. Shape mismatches evaluate to false, never to an error.
func (r *resolver) evalCondition(c *condition, sc *scope) bool {
	v := r.resolve(c.ref, sc)
	switch c.kind {
	case condExists:
		return v != nil
	case condNonEmpty:
		return isNonEmpty(v)
	case condEq:
		return deepEqual(v, c.value)
	case condNeq:
		return !deepEqual(v, c.value)
	case condGt:
		a, okA := asNumber(v)
		b, okB := asNumber(c.value)
		return okA && okB && a > b
	case condLt:
		a, okA := asNumber(v)
		b, okB := asNumber(c.value)
		return okA && okB && a < b
	}
	return false
}

// evalConditions is the AND over a message block's guards.
func (r *resolver) evalConditions(conds []condition, sc *scope) bool {
	for i := range conds {
		if !r.evalCondition(&conds[i], sc) {
			return false
		}
	}
	return true
}

// isNonEmpty is true only for arrays and strings with length > 0. Every
// other type is false by definition, including non-empty objects.
func isNonEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len() > 0
	}
	return false
}
