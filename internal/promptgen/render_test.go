package promptgen

import (
	"fmt"
	"reflect"
	"testing"
)

func renderTemplate(t *testing.T, raw string, ctx any, max int, reg SourceRegistry, opts *RenderOptions) []Message {
	t.Helper()
	tpl := mustCompile(t, raw)
	msgs, err := Render(tpl, ctx, NewBudgetManager(max), reg, opts)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return msgs
}

func TestRenderRoundTrip(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [
			{"kind": "message", "role": "system", "content": "Hello {{name}}"},
			{"kind": "slot", "name": "content"}
		],
		"slots": {
			"content": {"priority": 0, "plan": [
				{"kind": "message", "role": "user", "content": "User: {{user.message}}"}
			]}
		}
	}`
	ctx := map[string]any{
		"name": "Alice",
		"user": map[string]any{"message": "Hi"},
	}
	got := renderTemplate(t, raw, ctx, 0, nil, nil)
	want := []Message{
		{Role: "system", Content: "Hello Alice"},
		{Role: "user", Content: "User: Hi"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("render = %+v, want %+v", got, want)
	}
}

func TestRenderPriorityDecoupledFromLayout(t *testing.T) {
	// Slots at priorities 0,1,2 referenced in layout order 2,0,1: filling
	// must follow priority, output must follow layout.
	raw := `{
		"version": 1,
		"layout": [
			{"kind": "slot", "name": "s2"},
			{"kind": "slot", "name": "s0"},
			{"kind": "slot", "name": "s1"}
		],
		"slots": {
			"s0": {"priority": 0, "plan": [{"kind": "message", "role": "user", "from": {"source": "src0"}}]},
			"s1": {"priority": 1, "plan": [{"kind": "message", "role": "user", "from": {"source": "src1"}}]},
			"s2": {"priority": 2, "plan": [{"kind": "message", "role": "user", "from": {"source": "src2"}}]}
		}
	}`
	reg := staticRegistry(map[string]any{"src0": "zero", "src1": "one", "src2": "two"})
	got := renderTemplate(t, raw, nil, 0, reg, nil)

	if !reflect.DeepEqual(reg.calls, []string{"src0", "src1", "src2"}) {
		t.Fatalf("fill order = %v, want priority order", reg.calls)
	}
	// adjacent same-role messages squash into one, preserving layout order
	if len(got) != 1 || got[0].Content != "two\nzero\none" {
		t.Fatalf("output = %+v, want layout order two,zero,one", got)
	}
}

func TestRenderBudgetStopSemantics(t *testing.T) {
	// An over-budget message halts its sibling list; an empty message is
	// skipped without halting.
	raw := `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "s"}],
		"slots": {
			"s": {"priority": 0, "plan": [
				{"kind": "message", "role": "user", "content": ""},
				{"kind": "message", "role": "user", "content": "fits"},
				{"kind": "message", "role": "user", "content": "this one is far too long to fit the budget"},
				{"kind": "message", "role": "user", "content": "tiny"}
			]}
		}
	}`
	got := renderTemplate(t, raw, nil, 3, nil, nil)
	if len(got) != 1 || got[0].Content != "fits" {
		t.Fatalf("output = %+v, want only the fitting message", got)
	}
}

func TestRenderOmitIfEmpty(t *testing.T) {
	layout := func(omit string) string {
		return fmt.Sprintf(`{
			"version": 1,
			"layout": [{
				"kind": "slot", "name": "s"%s,
				"header": [{"kind": "message", "role": "system", "content": "HEADER"}],
				"footer": [{"kind": "message", "role": "system", "content": "FOOTER"}]
			}],
			"slots": {
				"s": {"priority": 0, "when": {"kind": "exists", "ref": {"source": "missing"}}, "plan": [
					{"kind": "message", "role": "user", "content": "body"}
				]}
			}
		}`, omit)
	}

	// default: an empty slot contributes nothing, not even header/footer
	got := renderTemplate(t, layout(""), nil, 0, staticRegistry(nil), nil)
	if len(got) != 0 {
		t.Fatalf("default omitIfEmpty should drop everything, got %+v", got)
	}

	// omitIfEmpty:false keeps header and footer
	got = renderTemplate(t, layout(`, "omitIfEmpty": false`), nil, 0, staticRegistry(nil), nil)
	if len(got) != 1 || got[0].Content != "HEADER\nFOOTER" {
		t.Fatalf("omitIfEmpty:false should render header/footer, got %+v", got)
	}
}

func TestAssembleInsertsSlotBuffersVerbatim(t *testing.T) {
	// A buffer seeded past the remaining global budget must still be
	// inserted in full; only headers and footers obey the budget.
	tpl := mustCompile(t, `{
		"version": 1,
		"layout": [{
			"kind": "slot", "name": "s",
			"header": [{"kind": "message", "role": "system", "content": "a very long header that cannot fit"}]
		}],
		"slots": {"s": {"priority": 0, "plan": []}}
	}`)
	m := NewBudgetManager(1)
	e := &executor{m: m, r: &resolver{}}
	buffers := map[string][]Message{
		"s": {
			{Role: "user", Content: "an oversized slot body that was budgeted during slot execution"},
			{Role: "assistant", Content: "another oversized message"},
		},
	}
	out, _, err := e.assemble(tpl, buffers, newScope(nil, nil))
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if len(out) != 2 || out[0].Role != "user" || out[1].Role != "assistant" {
		t.Fatalf("slot body must be inserted verbatim, got %+v", out)
	}
}

func TestAssembleUnbufferedSlotIsStructureError(t *testing.T) {
	tpl := mustCompile(t, `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "s"}],
		"slots": {"s": {"priority": 0, "plan": []}}
	}`)
	e := &executor{m: NewBudgetManager(0), r: &resolver{}}
	_, _, err := e.assemble(tpl, map[string][]Message{}, newScope(nil, nil))
	se, ok := err.(*StructureError)
	if !ok {
		t.Fatalf("expected StructureError, got %v", err)
	}
	if se.Path != "slots.s" {
		t.Fatalf("path = %q", se.Path)
	}
}

func TestRenderForEachOrderingAndLimit(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "s"}],
		"slots": {
			"s": {"priority": 0, "plan": [
				{"kind": "forEach", "forEach": {
					"from": {"source": "nums"}, "order": "asc", "limit": 2,
					"map": [{"kind": "message", "role": "user", "content": "{{$item}}"}]
				}}
			]}
		}
	}`
	reg := staticRegistry(map[string]any{"nums": []any{float64(3), float64(1), float64(2)}})
	got := renderTemplate(t, raw, nil, 0, reg, nil)
	if len(got) != 1 || got[0].Content != "1\n2" {
		t.Fatalf("output = %+v, want ascending truncated to two", got)
	}
}

func TestRenderForEachPrepend(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "s"}],
		"slots": {
			"s": {"priority": 0, "plan": [
				{"kind": "forEach", "forEach": {
					"from": {"source": "nums"}, "fillDir": "prepend",
					"map": [{"kind": "message", "role": "user", "content": "{{$item}}"}]
				}}
			]}
		}
	}`
	reg := staticRegistry(map[string]any{"nums": []any{float64(1), float64(2), float64(3)}})
	got := renderTemplate(t, raw, nil, 0, reg, nil)
	if len(got) != 1 || got[0].Content != "3\n2\n1" {
		t.Fatalf("output = %+v, want reverse fill", got)
	}
}

func TestRenderForEachNonArrayIsEmpty(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "s", "omitIfEmpty": false}],
		"slots": {
			"s": {"priority": 0, "plan": [
				{"kind": "forEach", "forEach": {
					"from": {"source": "notarray"},
					"map": [{"kind": "message", "role": "user", "content": "{{$item}}"}]
				}},
				{"kind": "message", "role": "user", "content": "after"}
			]}
		}
	}`
	reg := staticRegistry(map[string]any{"notarray": "just a string"})
	got := renderTemplate(t, raw, nil, 0, reg, nil)
	if len(got) != 1 || got[0].Content != "after" {
		t.Fatalf("output = %+v, want loop treated as empty", got)
	}
}

func TestRenderConditionalBranches(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "s"}],
		"slots": {
			"s": {"priority": 0, "plan": [
				{"kind": "if", "if": {
					"when": {"kind": "nonEmpty", "ref": {"source": "items"}},
					"then": [{"kind": "message", "role": "user", "content": "have items"}],
					"else": [{"kind": "message", "role": "user", "content": "no items"}]
				}}
			]}
		}
	}`
	got := renderTemplate(t, raw, nil, 0, staticRegistry(map[string]any{"items": []any{1}}), nil)
	if len(got) != 1 || got[0].Content != "have items" {
		t.Fatalf("then branch: %+v", got)
	}
	got = renderTemplate(t, raw, nil, 0, staticRegistry(map[string]any{"items": []any{}}), nil)
	if len(got) != 1 || got[0].Content != "no items" {
		t.Fatalf("else branch: %+v", got)
	}
}

func TestRenderDeterminism(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [
			{"kind": "message", "role": "system", "content": "S {{name}}"},
			{"kind": "slot", "name": "a"},
			{"kind": "separator", "text": "---"},
			{"kind": "slot", "name": "b"}
		],
		"slots": {
			"a": {"priority": 1, "plan": [{"kind": "message", "role": "user", "from": {"source": "x"}}]},
			"b": {"priority": 0, "budget": {"maxTokens": 50}, "plan": [
				{"kind": "forEach", "forEach": {"from": {"source": "nums"}, "order": "desc",
					"map": [{"kind": "message", "role": "assistant", "content": "n={{$item}} i={{$index}}"}]}}
			]}
		}
	}`
	ctx := map[string]any{"name": "Zed"}
	values := map[string]any{"x": "xval", "nums": []any{float64(1), float64(3), float64(2)}}

	tpl := mustCompile(t, raw)
	var first []Message
	for i := 0; i < 5; i++ {
		got, err := Render(tpl, ctx, NewBudgetManager(100), staticRegistry(values), nil)
		if err != nil {
			t.Fatalf("render %d failed: %v", i, err)
		}
		if first == nil {
			first = got
			continue
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("render %d diverged:\n%+v\nvs\n%+v", i, got, first)
		}
	}
	if len(first) == 0 {
		t.Fatalf("expected output")
	}
}

func TestRenderSwallowsHandlerFailures(t *testing.T) {
	reg := &testRegistry{handlers: map[string]func(any, any) (any, error){
		"boom": func(any, any) (any, error) { panic("handler bug") },
		"err":  func(any, any) (any, error) { return nil, fmt.Errorf("db down") },
		"ok":   func(any, any) (any, error) { return "fine", nil },
	}}
	raw := `{
		"version": 1,
		"layout": [
			{"kind": "message", "role": "system", "from": {"source": "boom"}},
			{"kind": "message", "role": "system", "from": {"source": "err"}},
			{"kind": "message", "role": "system", "from": {"source": "ok"}}
		],
		"slots": {}
	}`
	got := renderTemplate(t, raw, nil, 0, reg, nil)
	if len(got) != 1 || got[0].Content != "fine" {
		t.Fatalf("failed sources must resolve to absent, got %+v", got)
	}
}

func TestRenderSkipsUnknownNodeKinds(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [
			{"kind": "divider"},
			{"kind": "message", "role": "system", "content": "still here"}
		],
		"slots": {}
	}`
	got := renderTemplate(t, raw, nil, 0, nil, nil)
	if len(got) != 1 || got[0].Content != "still here" {
		t.Fatalf("unknown kinds must not crash the walk, got %+v", got)
	}
}

func TestRenderSeparatorNeverStopsWalk(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [
			{"kind": "separator", "text": "a separator far too long for this budget"},
			{"kind": "message", "role": "system", "content": "end"}
		],
		"slots": {}
	}`
	got := renderTemplate(t, raw, nil, 2, nil, nil)
	if len(got) != 1 || got[0].Content != "end" {
		t.Fatalf("separator must be skipped, not stop the walk: %+v", got)
	}
}

func TestRenderAttachmentLanes(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [
			{"kind": "message", "role": "system", "content": "intro"},
			{"kind": "anchor", "name": "mid"},
			{"kind": "message", "role": "assistant", "content": "outro"}
		],
		"slots": {},
		"attachments": [
			{"id": "notes", "role": "user", "template": "Note: {{payload.text}}", "anchor": "mid", "order": 2},
			{"id": "refs", "role": "user", "template": "Ref: {{payload.text}}", "anchor": "mid", "order": 1}
		]
	}`
	opts := &RenderOptions{Attachments: map[string]any{
		"notes": map[string]any{"text": "remember"},
		"refs":  map[string]any{"text": "doc-7"},
	}}
	got := renderTemplate(t, raw, nil, 0, nil, opts)

	want := []struct {
		role, content, lane string
	}{
		{"system", "intro", ""},
		{"user", "Ref: doc-7", "refs"},
		{"user", "Note: remember", "notes"},
		{"assistant", "outro", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("output = %+v", got)
	}
	for i, w := range want {
		if got[i].Role != w.role || got[i].Content != w.content {
			t.Fatalf("message %d = %+v, want %+v", i, got[i], w)
		}
		lane := ""
		if got[i].Attachment != nil {
			lane = got[i].Attachment.Lane
		}
		if lane != w.lane {
			t.Fatalf("message %d lane = %q, want %q", i, lane, w.lane)
		}
	}
}

func TestRenderLaneWithoutPayloadIsSkipped(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [{"kind": "message", "role": "system", "content": "only"}],
		"slots": {},
		"attachments": [{"id": "empty", "template": "never rendered"}]
	}`
	got := renderTemplate(t, raw, nil, 0, nil, nil)
	if len(got) != 1 || got[0].Content != "only" {
		t.Fatalf("lane without payload must not render: %+v", got)
	}
}

func TestRenderLaneFloorProtectsInjection(t *testing.T) {
	// Greedy slot filling must not starve a lane that reserved capacity.
	raw := `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "greedy"}, {"kind": "anchor", "name": "end"}],
		"slots": {
			"greedy": {"priority": 0, "plan": [
				{"kind": "message", "role": "user", "content": "aaaabbbb"},
				{"kind": "message", "role": "user", "content": "ccccdddd"},
				{"kind": "message", "role": "user", "content": "eeeeffff"}
			]}
		},
		"attachments": [
			{"id": "lane", "role": "user", "template": "{{payload}}", "anchor": "end", "reserveTokens": 4}
		]
	}`
	opts := &RenderOptions{Attachments: map[string]any{"lane": "12345678"}}
	got := renderTemplate(t, raw, nil, 8, nil, opts)

	var laneContent string
	for _, m := range got {
		if m.Attachment != nil {
			laneContent = m.Content
		}
	}
	if laneContent != "12345678" {
		t.Fatalf("lane must fit inside its reservation, got %+v", got)
	}
}

func TestRenderSlotGuard(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "s"}],
		"slots": {
			"s": {"priority": 0,
				"when": {"kind": "eq", "ref": {"source": "mode"}, "value": "on"},
				"plan": [{"kind": "message", "role": "user", "content": "guarded"}]}
		}
	}`
	got := renderTemplate(t, raw, nil, 0, staticRegistry(map[string]any{"mode": "off"}), nil)
	if len(got) != 0 {
		t.Fatalf("guard false must yield empty buffer: %+v", got)
	}
	got = renderTemplate(t, raw, nil, 0, staticRegistry(map[string]any{"mode": "on"}), nil)
	if len(got) != 1 || got[0].Content != "guarded" {
		t.Fatalf("guard true must render: %+v", got)
	}
}

func TestRenderEqualPriorityUsesDeclarationOrder(t *testing.T) {
	raw := `{
		"version": 1,
		"layout": [{"kind": "slot", "name": "b"}, {"kind": "slot", "name": "a"}],
		"slots": {
			"b": {"priority": 5, "plan": [{"kind": "message", "role": "user", "from": {"source": "src-b"}}]},
			"a": {"priority": 5, "plan": [{"kind": "message", "role": "user", "from": {"source": "src-a"}}]}
		}
	}`
	reg := staticRegistry(map[string]any{"src-a": "A", "src-b": "B"})
	renderTemplate(t, raw, nil, 0, reg, nil)
	if !reflect.DeepEqual(reg.calls, []string{"src-b", "src-a"}) {
		t.Fatalf("equal priorities must fill in declaration order, got %v", reg.calls)
	}
}
