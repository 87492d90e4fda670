package promptgen

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CompileOptions tunes a single compile call.
type CompileOptions struct {
	// AllowedSources enables the source linter: every data reference in
	// the template must name one of these sources (or a reserved one).
	AllowedSources []string
	// TaskSources maps a task kind to additional allowed source names,
	// merged with AllowedSources when linting.
	TaskSources map[string][]string
}

// Template is the compiled, immutable counterpart of a raw template.
// Every literal string has been compiled into a leaf function and the
// whole graph lives behind unexported fields, so nothing outside this
// package can mutate it; the same compiled template may be rendered any
// number of times with different contexts.
type Template struct {
	id      string
	task    string
	name    string
	version int
	layout  []layoutNode
	slots   []slotSpec
	lanes   []lane
}

// ID returns the template identity.
func (t *Template) ID() string { return t.id }

// Task returns the task family the template is bound to.
func (t *Template) Task() string { return t.task }

// Name returns the human-readable template name.
func (t *Template) Name() string { return t.name }

// Version returns the wire-format version.
func (t *Template) Version() int { return t.version }

// SlotNames returns the slot names in declaration order.
func (t *Template) SlotNames() []string {
	names := make([]string, len(t.slots))
	for i, s := range t.slots {
		names[i] = s.name
	}
	return names
}

type nodeKind int

const (
	nodeUnknown nodeKind = iota
	nodeMessage
	nodeSlot
	nodeSeparator
	nodeAnchor
	nodeForEach
	nodeIf
)

type layoutNode struct {
	kind    nodeKind
	rawKind string // for diagnostics on unknown kinds
	msg     *message
	slot    *slotRef
	sep     *separator
	anchor  string
}

type message struct {
	role    string
	content *leaf
	from    *DataRef
	when    []condition
	budget  *Budget
	cont    bool
}

type slotRef struct {
	name        string
	header      []message
	footer      []message
	omitIfEmpty bool
}

type separator struct {
	role string
	text *leaf
}

type slotSpec struct {
	name     string
	priority int
	when     *condition
	budget   *Budget
	plan     []planNode
}

type planNode struct {
	kind    nodeKind
	rawKind string
	msg     *message
	loop    *forEach
	branch  *branch
}

type forEach struct {
	from    DataRef
	order   string
	limit   int
	prepend bool
	budget  *Budget
	body    []planNode
}

type branch struct {
	when condition
	then []planNode
	els  []planNode
}

type condition struct {
	kind  string
	ref   DataRef
	value any
}

type lane struct {
	id       string
	enabled  bool
	role     string
	template *leaf
	order    int
	reserve  int
	budget   *Budget
	payload  any
	anchor   string
}

// Compile parses, validates, optionally lints, and compiles raw JSON
// template input into its immutable executable form. Failures are
// *StructureError or *LintError; nothing else escapes.
func Compile(raw []byte, opts *CompileOptions) (*Template, error) {
	var rt rawTemplate
	if err := json.Unmarshal(raw, &rt); err != nil {
		var se *StructureError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, structErr("", "invalid template JSON: %v", err)
	}
	if err := validateTemplate(&rt); err != nil {
		return nil, err
	}
	if opts != nil && (len(opts.AllowedSources) > 0 || len(opts.TaskSources) > 0) {
		allowed := make(map[string]struct{})
		for _, name := range opts.AllowedSources {
			allowed[name] = struct{}{}
		}
		for _, name := range opts.TaskSources[rt.Task] {
			allowed[name] = struct{}{}
		}
		if err := lintSources(&rt, allowed); err != nil {
			return nil, err
		}
	}
	return compileTemplate(&rt), nil
}

func compileTemplate(rt *rawTemplate) *Template {
	t := &Template{
		id:      rt.ID,
		task:    rt.Task,
		name:    rt.Name,
		version: rt.Version,
	}
	t.layout = make([]layoutNode, len(rt.Layout))
	for i := range rt.Layout {
		t.layout[i] = compileLayoutNode(&rt.Layout[i], rt)
	}
	t.slots = make([]slotSpec, 0, len(rt.Slots.names))
	for _, name := range rt.Slots.names {
		t.slots = append(t.slots, compileSlot(name, rt.Slots.specs[name]))
	}
	t.lanes = make([]lane, len(rt.Attachments))
	for i := range rt.Attachments {
		t.lanes[i] = compileLane(&rt.Attachments[i])
	}
	return t
}

func compileLayoutNode(node *rawLayoutNode, rt *rawTemplate) layoutNode {
	switch node.Kind {
	case kindMessage:
		return layoutNode{kind: nodeMessage, msg: compileMessage(&node.rawMessage)}
	case kindSlot:
		ref := &slotRef{
			name:        node.Name,
			header:      compileBlocks(node.Header),
			footer:      compileBlocks(node.Footer),
			omitIfEmpty: node.OmitIfEmpty == nil || *node.OmitIfEmpty,
		}
		return layoutNode{kind: nodeSlot, slot: ref}
	case kindSeparator:
		role := node.Role
		if role == "" {
			role = RoleSystem
		}
		return layoutNode{kind: nodeSeparator, sep: &separator{role: role, text: compileLeaf(node.Text)}}
	case kindAnchor:
		return layoutNode{kind: nodeAnchor, anchor: node.Name}
	default:
		return layoutNode{kind: nodeUnknown, rawKind: node.Kind}
	}
}

func compileBlocks(blocks []rawMessage) []message {
	out := make([]message, len(blocks))
	for i := range blocks {
		out[i] = *compileMessage(&blocks[i])
	}
	return out
}

func compileMessage(b *rawMessage) *message {
	m := &message{
		role:   b.Role,
		when:   compileConditions(b.When),
		budget: copyBudget(b.Budget),
		cont:   b.Continue,
	}
	if b.Content != nil {
		m.content = compileLeaf(*b.Content)
	}
	if b.From != nil {
		ref := *b.From
		m.from = &ref
	}
	return m
}

func compileSlot(name string, slot *rawSlot) slotSpec {
	s := slotSpec{
		name:     name,
		priority: slot.Priority,
		budget:   copyBudget(slot.Budget),
		plan:     compilePlan(slot.Plan),
	}
	if slot.When != nil {
		c := compileCondition(slot.When)
		s.when = &c
	}
	return s
}

func compilePlan(nodes []rawPlanNode) []planNode {
	out := make([]planNode, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		switch node.Kind {
		case kindMessage:
			out[i] = planNode{kind: nodeMessage, msg: compileMessage(&node.rawMessage)}
		case kindForEach:
			fe := node.ForEach
			out[i] = planNode{kind: nodeForEach, loop: &forEach{
				from:    fe.From,
				order:   fe.Order,
				limit:   fe.Limit,
				prepend: fe.FillDir == "prepend",
				budget:  copyBudget(fe.Budget),
				body:    compilePlan(fe.Map),
			}}
		case kindIf:
			out[i] = planNode{kind: nodeIf, branch: &branch{
				when: compileCondition(&node.If.When),
				then: compilePlan(node.If.Then),
				els:  compilePlan(node.If.Else),
			}}
		default:
			out[i] = planNode{kind: nodeUnknown, rawKind: node.Kind}
		}
	}
	return out
}

func compileConditions(conds []rawCondition) []condition {
	if len(conds) == 0 {
		return nil
	}
	out := make([]condition, len(conds))
	for i := range conds {
		out[i] = compileCondition(&conds[i])
	}
	return out
}

func compileCondition(c *rawCondition) condition {
	return condition{kind: c.Kind, ref: c.Ref, value: c.Value}
}

func compileLane(l *rawLane) lane {
	role := l.Role
	if role == "" {
		role = RoleUser
	}
	return lane{
		id:       l.ID,
		enabled:  l.Enabled == nil || *l.Enabled,
		role:     role,
		template: compileLeaf(l.Template),
		order:    l.Order,
		reserve:  l.ReserveTokens,
		budget:   copyBudget(l.Budget),
		payload:  l.Payload,
		anchor:   l.Anchor,
	}
}

func copyBudget(b *Budget) *Budget {
	if b == nil || b.MaxTokens <= 0 {
		return nil
	}
	c := *b
	return &c
}

// slotPath names a slot for runtime diagnostics.
func slotPath(name string) string {
	return fmt.Sprintf("slots.%s", name)
}
