package promptgen

import "github.com/kayz/weave/internal/logger"

// anchorMark records where a named anchor fell in the assembled output,
// so the injection pass can insert attachment messages there.
type anchorMark struct {
	name string
	pos  int
}

// layoutStaticCost estimates the tokens the layout's own static content
// will need: constant messages, separators, and slot headers/footers.
// Dynamic leaves are left out; the estimate exists so a floor can be
// reserved ahead of slot execution, not to be exact.
func (e *executor) layoutStaticCost(t *Template) int {
	total := 0
	addConst := func(l *leaf) {
		if l != nil && l.constant && l.text != "" {
			total += e.m.Estimate(l.text)
		}
	}
	addBlocks := func(blocks []message) {
		for i := range blocks {
			addConst(blocks[i].content)
		}
	}
	for i := range t.layout {
		node := &t.layout[i]
		switch node.kind {
		case nodeMessage:
			addConst(node.msg.content)
		case nodeSeparator:
			addConst(node.sep.text)
		case nodeSlot:
			addBlocks(node.slot.header)
			addBlocks(node.slot.footer)
		}
	}
	return total
}

// assemble walks the layout in document order and produces the final
// message sequence. Layout messages and slot headers/footers are
// budget-checked here; slot bodies were budgeted during slot execution
// and are inserted verbatim, never re-checked. Separators are cosmetic:
// one that does not fit is skipped without stopping the walk.
func (e *executor) assemble(t *Template, buffers map[string][]Message, sc *scope) ([]Message, []anchorMark, error) {
	var out []Message
	var marks []anchorMark
	for i := range t.layout {
		node := &t.layout[i]
		switch node.kind {
		case nodeMessage:
			msg, stop := e.emitBlock(node.msg, sc)
			if stop {
				return out, marks, nil
			}
			if msg != nil {
				out = append(out, *msg)
			}
		case nodeSeparator:
			text := node.sep.text.render(sc)
			if text == "" || !e.m.CanFit(text) {
				continue
			}
			e.m.Consume(text)
			out = append(out, Message{Role: node.sep.role, Content: text})
		case nodeSlot:
			buf, ok := buffers[node.slot.name]
			if !ok {
				return nil, nil, structErr(slotPath(node.slot.name), "slot was never buffered")
			}
			if len(buf) == 0 && node.slot.omitIfEmpty {
				continue
			}
			out = e.emitBlockList(node.slot.header, sc, out)
			out = append(out, buf...)
			out = e.emitBlockList(node.slot.footer, sc, out)
		case nodeAnchor:
			marks = append(marks, anchorMark{name: node.anchor, pos: len(out)})
		default:
			logger.Warn("skipping unknown layout node kind %q", node.rawKind)
		}
	}
	return out, marks, nil
}

// emitBlockList emits header/footer blocks under the budget rule. A
// block that does not fit halts the rest of its own list; the layout
// walk itself continues.
func (e *executor) emitBlockList(blocks []message, sc *scope, out []Message) []Message {
	for i := range blocks {
		msg, stop := e.emitBlock(&blocks[i], sc)
		if stop {
			return out
		}
		if msg != nil {
			out = append(out, *msg)
		}
	}
	return out
}
