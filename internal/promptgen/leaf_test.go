package promptgen

import (
	"strings"
	"testing"
)

func TestCompileLeafConstant(t *testing.T) {
	l := compileLeaf("no markers here")
	if !l.constant {
		t.Fatalf("expected constant leaf")
	}
	if got := l.render(newScope(nil, nil)); got != "no markers here" {
		t.Fatalf("render = %q", got)
	}
}

func TestCompileLeafSubstitution(t *testing.T) {
	sc := newScope(map[string]any{
		"name": "Alice",
		"user": map[string]any{"message": "Hi"},
	}, nil)

	l := compileLeaf("Hello {{name}}, you said: {{user.message}}!")
	if l.constant {
		t.Fatalf("expected non-constant leaf")
	}
	if got := l.render(sc); got != "Hello Alice, you said: Hi!" {
		t.Fatalf("render = %q", got)
	}
}

func TestCompileLeafMissingValueIsEmpty(t *testing.T) {
	sc := newScope(map[string]any{}, nil)
	l := compileLeaf("a={{missing}};")
	if got := l.render(sc); got != "a=;" {
		t.Fatalf("render = %q", got)
	}
}

func TestCompileLeafStringification(t *testing.T) {
	sc := newScope(map[string]any{
		"n":    float64(3),
		"b":    true,
		"obj":  map[string]any{"k": "v"},
		"frac": 2.5,
	}, nil)
	l := compileLeaf("{{n}}|{{b}}|{{obj}}|{{frac}}")
	if got := l.render(sc); got != `3|true|{"k":"v"}|2.5` {
		t.Fatalf("render = %q", got)
	}
}

func TestCompileLeafRecursiveExpansion(t *testing.T) {
	sc := newScope(map[string]any{
		"outer": "value is {{inner}}",
		"inner": "42",
	}, nil)
	l := compileLeaf("[{{outer}}]")
	if got := l.render(sc); got != "[value is 42]" {
		t.Fatalf("render = %q", got)
	}
}

func TestCompileLeafExpansionTerminates(t *testing.T) {
	// Mutually recursive values must hit the depth bound and stay literal.
	sc := newScope(map[string]any{
		"x": "{{y}}",
		"y": "{{x}}",
	}, nil)
	l := compileLeaf("{{x}}")
	got := l.render(sc)
	if !strings.Contains(got, "{{") {
		t.Fatalf("expected unexpanded marker after depth cutoff, got %q", got)
	}
}

func TestCompileLeafItemAndIndexBindings(t *testing.T) {
	sc := newScope(map[string]any{"label": "item"}, nil)
	sc.push(map[string]any{"title": "first"}, 0)
	sc.push(map[string]any{"title": "second"}, 1)

	l := compileLeaf("{{$index}}: {{$item.title}} (parent {{$parent.title}}, {{label}})")
	if got := l.render(sc); got != "1: second (parent first, item)" {
		t.Fatalf("render = %q", got)
	}
}

func TestStringify(t *testing.T) {
	if got := stringify(nil); got != "" {
		t.Fatalf("nil = %q", got)
	}
	if got := stringify(make(chan int)); got != "" {
		t.Fatalf("unserializable = %q, want empty", got)
	}
	if got := stringify([]any{1, "a"}); got != `[1,"a"]` {
		t.Fatalf("array = %q", got)
	}
}
