package promptgen

import (
	"reflect"
	"strconv"
	"strings"
)

// splitPath breaks "a.b.[0].c" into plain segments. Bracket indices are
// treated as ordinary segment names, which makes numeric array access
// fall out of the same walk as map keys.
func splitPath(path string) []string {
	var segs []string
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for {
			open := strings.Index(part, "[")
			if open < 0 {
				segs = append(segs, part)
				break
			}
			if open > 0 {
				segs = append(segs, part[:open])
			}
			close := strings.Index(part, "]")
			if close < open {
				// unbalanced bracket, keep the rest literal
				segs = append(segs, part[open:])
				break
			}
			segs = append(segs, part[open+1:close])
			part = part[close+1:]
			if part == "" {
				break
			}
		}
	}
	return segs
}

// resolveSegments walks a value tree segment by segment. A missing key,
// out-of-range index, or non-indexable value yields nil; it never panics.
func resolveSegments(root any, segs []string) any {
	cur := root
	for _, seg := range segs {
		if cur == nil {
			return nil
		}
		switch t := cur.(type) {
		case map[string]any:
			v, ok := t[seg]
			if !ok {
				return nil
			}
			cur = v
			continue
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(t) {
				return nil
			}
			cur = t[idx]
			continue
		}
		cur = resolveReflect(cur, seg)
	}
	return cur
}

// resolveReflect handles typed maps and slices supplied by registry
// handlers outside the plain JSON shapes.
func resolveReflect(cur any, seg string) any {
	rv := reflect.ValueOf(cur)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		v := rv.MapIndex(reflect.ValueOf(seg))
		if !v.IsValid() {
			return nil
		}
		return v.Interface()
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return nil
		}
		return rv.Index(idx).Interface()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return resolveReflect(rv.Elem().Interface(), seg)
	}
	return nil
}
