package promptgen

import (
	"sort"

	"github.com/kayz/weave/internal/logger"
)

// executor holds the per-render machinery: the budget manager, the
// resolver boundary, and the scope stack are threaded through every
// recursive call so nothing leaks between renders.
type executor struct {
	m *BudgetManager
	r *resolver
}

// runPlan recursively evaluates a plan node list against the current
// scope, producing a flat message buffer. The stopped result reports
// that a message failed to fit: budget exhaustion halts forward progress
// at that list level instead of skipping and continuing.
func (e *executor) runPlan(nodes []planNode, sc *scope) (out []Message, stopped bool) {
	for i := range nodes {
		if !e.m.HasAny() {
			return out, true
		}
		node := &nodes[i]
		switch node.kind {
		case nodeMessage:
			msg, stop := e.emitBlock(node.msg, sc)
			if stop {
				return out, true
			}
			if msg != nil {
				out = append(out, *msg)
			}
		case nodeForEach:
			out = append(out, e.runForEach(node.loop, sc)...)
		case nodeIf:
			branchNodes := node.branch.els
			if e.r.evalCondition(&node.branch.when, sc) {
				branchNodes = node.branch.then
			}
			res, branchStopped := e.runPlan(branchNodes, sc)
			out = append(out, res...)
			if branchStopped {
				return out, true
			}
		default:
			logger.Warn("skipping unknown plan node kind %q", node.rawKind)
		}
	}
	return out, false
}

// emitBlock resolves, guards, budget-checks, and consumes one message
// block. An empty or guarded-off block is skipped silently (nil, false);
// a block that does not fit halts the owning list (nil, true).
func (e *executor) emitBlock(msg *message, sc *scope) (out *Message, stop bool) {
	text, present := e.blockText(msg, sc)
	if !present || text == "" {
		return nil, false
	}
	fits := false
	e.m.WithNodeBudget(msg.budget, func() {
		if e.m.CanFit(text) {
			e.m.Consume(text)
			fits = true
		}
	})
	if !fits {
		return nil, true
	}
	return &Message{Role: msg.role, Content: text}, false
}

// blockText produces the rendered text of a message block. Content and
// from are mutually exclusive by construction (the validator rejects
// both set).
func (e *executor) blockText(msg *message, sc *scope) (string, bool) {
	if !e.r.evalConditions(msg.when, sc) {
		return "", false
	}
	if msg.content != nil {
		return msg.content.render(sc), true
	}
	if msg.from != nil {
		return e.r.text(*msg.from, sc), true
	}
	return "", false
}

// runForEach resolves the loop collection, applies order and limit, and
// evaluates the body once per item with $item/$index bound. A non-array
// source is an empty collection, not an error. The whole loop runs under
// the node budget; a stop inside one item's body is local to that body.
func (e *executor) runForEach(loop *forEach, sc *scope) []Message {
	items := e.collection(loop.from, sc, loop.order)
	if loop.limit > 0 && len(items) > loop.limit {
		items = items[:loop.limit]
	}
	var out []Message
	e.m.WithNodeBudget(loop.budget, func() {
		for idx, item := range items {
			if !e.m.HasAny() {
				return
			}
			sc.push(item, idx)
			res, _ := e.runPlan(loop.body, sc)
			sc.pop()
			if loop.prepend {
				out = append(res, out...)
			} else {
				out = append(out, res...)
			}
		}
	})
	return out
}

// collection resolves an ordered collection. Registries implementing
// OrderedSource own the comparison; otherwise a generic numeric/string
// sort satisfies the order request.
func (e *executor) collection(ref DataRef, sc *scope, order string) []any {
	items := e.r.array(ref, sc, order)
	if order == "" || len(items) < 2 {
		return items
	}
	if _, handled := e.r.reg.(OrderedSource); handled && !isReservedSource(ref.Source) {
		return items
	}
	sorted := make([]any, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		less := genericLess(sorted[i], sorted[j])
		if order == "desc" {
			return genericLess(sorted[j], sorted[i])
		}
		return less
	})
	return sorted
}

func genericLess(a, b any) bool {
	na, okA := asNumber(a)
	nb, okB := asNumber(b)
	if okA && okB {
		return na < nb
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return sa < sb
	}
	return false
}
