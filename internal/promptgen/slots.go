package promptgen

import "sort"

// runSlots fills every slot in ascending priority order, each under its
// own optional budget scope and guard. Ties break by declaration order
// of the slots object, never by map iteration order. Filling order and
// display order are deliberately decoupled: the result is a buffer per
// slot name, and the layout decides where each buffer appears.
func (e *executor) runSlots(t *Template, sc *scope) map[string][]Message {
	order := make([]int, len(t.slots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.slots[order[a]].priority < t.slots[order[b]].priority
	})

	buffers := make(map[string][]Message, len(t.slots))
	for _, idx := range order {
		slot := &t.slots[idx]
		if slot.when != nil && !e.r.evalCondition(slot.when, sc) {
			buffers[slot.name] = nil
			continue
		}
		var buf []Message
		e.m.WithNodeBudget(slot.budget, func() {
			buf, _ = e.runPlan(slot.plan, sc)
		})
		buffers[slot.name] = buf
	}
	return buffers
}
