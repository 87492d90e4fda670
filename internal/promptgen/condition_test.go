package promptgen

import (
	"fmt"
	"testing"
)

// testRegistry is a minimal map-backed SourceRegistry for tests. It
// records resolution order so fill-order assertions can observe it.
type testRegistry struct {
	handlers map[string]func(args any, ctx any) (any, error)
	calls    []string
}

func (r *testRegistry) Resolve(ref DataRef, ctx any) (any, error) {
	r.calls = append(r.calls, ref.Source)
	h, ok := r.handlers[ref.Source]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", ref.Source)
	}
	return h(ref.Args, ctx)
}

func staticRegistry(values map[string]any) *testRegistry {
	handlers := make(map[string]func(args any, ctx any) (any, error), len(values))
	for name, v := range values {
		v := v
		handlers[name] = func(any, any) (any, error) { return v, nil }
	}
	return &testRegistry{handlers: handlers}
}

func evalKind(t *testing.T, kind string, value any, resolved any) bool {
	t.Helper()
	reg := staticRegistry(map[string]any{"src": resolved})
	r := &resolver{reg: reg}
	c := condition{kind: kind, ref: DataRef{Source: "src"}, value: value}
	return r.evalCondition(&c, newScope(nil, nil))
}

func TestConditionExists(t *testing.T) {
	if !evalKind(t, condExists, nil, "anything") {
		t.Fatalf("exists should be true for a present value")
	}
	if evalKind(t, condExists, nil, nil) {
		t.Fatalf("exists should be false for nil")
	}
}

func TestConditionNonEmpty(t *testing.T) {
	if !evalKind(t, condNonEmpty, nil, "x") {
		t.Fatalf("non-empty string")
	}
	if evalKind(t, condNonEmpty, nil, "") {
		t.Fatalf("empty string")
	}
	if !evalKind(t, condNonEmpty, nil, []any{1}) {
		t.Fatalf("non-empty array")
	}
	if evalKind(t, condNonEmpty, nil, []any{}) {
		t.Fatalf("empty array")
	}
	// non-empty objects are false by definition
	if evalKind(t, condNonEmpty, nil, map[string]any{"k": "v"}) {
		t.Fatalf("object must never be nonEmpty")
	}
	if evalKind(t, condNonEmpty, nil, 42) {
		t.Fatalf("number must never be nonEmpty")
	}
}

func TestConditionEquality(t *testing.T) {
	if !evalKind(t, condEq, "a", "a") {
		t.Fatalf("eq strings")
	}
	if !evalKind(t, condEq, float64(2), 2) {
		t.Fatalf("eq should compare 2 and 2.0 structurally")
	}
	if !evalKind(t, condEq, map[string]any{"k": "v"}, map[string]any{"k": "v"}) {
		t.Fatalf("eq deep objects")
	}
	if !evalKind(t, condNeq, "a", "b") {
		t.Fatalf("neq")
	}
}

func TestConditionOrdering(t *testing.T) {
	if !evalKind(t, condGt, float64(1), 2) {
		t.Fatalf("2 > 1")
	}
	if !evalKind(t, condLt, float64(5), 2) {
		t.Fatalf("2 < 5")
	}
	// non-numeric operands are false, not an error
	if evalKind(t, condGt, "a", "b") {
		t.Fatalf("string gt must be false")
	}
	if evalKind(t, condLt, float64(5), nil) {
		t.Fatalf("absent lt must be false")
	}
}

func TestConditionGuardList(t *testing.T) {
	reg := staticRegistry(map[string]any{"a": "x", "b": nil})
	r := &resolver{reg: reg}
	conds := []condition{
		{kind: condExists, ref: DataRef{Source: "a"}},
		{kind: condExists, ref: DataRef{Source: "b"}},
	}
	if r.evalConditions(conds, newScope(nil, nil)) {
		t.Fatalf("AND over guards should fail when one is false")
	}
	if !r.evalConditions(conds[:1], newScope(nil, nil)) {
		t.Fatalf("single passing guard should succeed")
	}
}
