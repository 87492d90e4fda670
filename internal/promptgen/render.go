package promptgen

import (
	"errors"
	"fmt"
	"sort"
)

// RenderOptions carries caller-side render configuration.
type RenderOptions struct {
	// Globals is exposed to leaves and references as $globals.
	Globals any
	// Attachments supplies or overrides attachment-lane payloads by lane
	// id. A lane renders only when enabled and a payload is present.
	Attachments map[string]any
}

const layoutFloor = "layout"

func laneFloor(id string) string {
	return "lane:" + id
}

// Render executes a compiled template against a caller context under a
// budget, producing the final ordered message array. It throws only the
// three defined error kinds; any unexpected internal failure is wrapped
// into a RenderError with the original as cause.
func Render(t *Template, ctx any, m *BudgetManager, reg SourceRegistry, opts *RenderOptions) (msgs []Message, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RenderError{Cause: fmt.Errorf("internal panic: %v", p)}
			msgs = nil
		}
	}()
	if t == nil {
		return nil, &RenderError{Cause: errors.New("nil template")}
	}
	if m == nil {
		m = NewBudgetManager(0)
	}

	var globals any
	if opts != nil {
		globals = opts.Globals
	}
	sc := newScope(ctx, globals)
	e := &executor{m: m, r: &resolver{reg: reg, ctx: ctx}}

	staticCost := e.layoutStaticCost(t)
	m.ReserveFloor(layoutFloor, staticCost)

	lanes := activeLanes(t, opts)
	for i := range lanes {
		m.ReserveFloor(laneFloor(lanes[i].id), lanes[i].reserve)
	}

	buffers := e.runSlots(t, sc)
	out, marks, asmErr := e.assemble(t, buffers, sc)
	m.ReleaseFloor(layoutFloor, staticCost)
	if asmErr != nil {
		return nil, asmErr
	}

	out = e.injectLanes(out, marks, lanes, sc)
	return squashMessages(out), nil
}

// activeLanes merges the template's lane descriptors with payloads
// supplied at render time. Lanes in ascending injection order.
func activeLanes(t *Template, opts *RenderOptions) []lane {
	var active []lane
	for i := range t.lanes {
		l := t.lanes[i]
		if !l.enabled {
			continue
		}
		if opts != nil {
			if payload, ok := opts.Attachments[l.id]; ok {
				l.payload = payload
			}
		}
		if l.payload == nil {
			continue
		}
		active = append(active, l)
	}
	sort.SliceStable(active, func(a, b int) bool {
		return active[a].order < active[b].order
	})
	return active
}

// injectLanes is the post-assembly pass: each pending lane releases its
// floor, renders its template with the payload in scope, budget-checks
// under the lane budget, and inserts at the recorded anchor point. A
// lane naming no known anchor appends at the end.
func (e *executor) injectLanes(out []Message, marks []anchorMark, lanes []lane, sc *scope) []Message {
	if len(lanes) == 0 {
		return out
	}
	for i := range lanes {
		l := &lanes[i]
		e.m.ReleaseFloor(laneFloor(l.id), l.reserve)

		sc.locals = map[string]any{"payload": l.payload}
		text := l.template.render(sc)
		sc.locals = nil
		if text == "" {
			continue
		}

		fits := false
		e.m.WithNodeBudget(l.budget, func() {
			if e.m.CanFit(text) {
				e.m.Consume(text)
				fits = true
			}
		})
		if !fits {
			continue
		}

		msg := Message{Role: l.role, Content: text, Attachment: &AttachmentMeta{Lane: l.id}}
		pos := len(out)
		if l.anchor != "" {
			if at, ok := anchorPos(marks, l.anchor); ok {
				pos = at
			}
		}
		out = append(out, Message{})
		copy(out[pos+1:], out[pos:])
		out[pos] = msg
		shiftMarks(marks, pos)
	}
	return out
}

func anchorPos(marks []anchorMark, name string) (int, bool) {
	for _, mk := range marks {
		if mk.name == name {
			return mk.pos, true
		}
	}
	return 0, false
}

// shiftMarks keeps later anchors valid after an insertion at pos.
func shiftMarks(marks []anchorMark, pos int) {
	for i := range marks {
		if marks[i].pos >= pos {
			marks[i].pos++
		}
	}
}
