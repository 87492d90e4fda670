package promptgen

import "fmt"

// validateTemplate runs the structural checks that must all pass before
// compilation proceeds. Unknown layout/plan node kinds are deliberately
// not rejected here: the interpreter skips them with a warning so render
// keeps working when templates outgrow this engine.
func validateTemplate(t *rawTemplate) error {
	if t.Version != 1 {
		return structErr("version", "unsupported template version %d", t.Version)
	}
	for i := range t.Layout {
		node := &t.Layout[i]
		path := fmt.Sprintf("layout[%d]", i)
		switch node.Kind {
		case kindSlot:
			if node.Name == "" {
				return structErr(path, "slot node requires a name")
			}
			if _, ok := t.Slots.specs[node.Name]; !ok {
				return structErr(path, "slot %q is not defined in slots", node.Name)
			}
		case kindAnchor:
			if node.Name == "" {
				return structErr(path, "anchor node requires a name")
			}
		}
	}

	var blockErr error
	walkBlocks(t, func(path string, b *rawMessage) {
		if blockErr != nil {
			return
		}
		blockErr = validateBlock(path, b)
	})
	if blockErr != nil {
		return blockErr
	}

	var refErr error
	walkRefs(t, func(path string, ref *DataRef) {
		if refErr == nil && ref.Source == "" {
			refErr = structErr(path, "data reference requires a source name")
		}
	})
	if refErr != nil {
		return refErr
	}

	for _, name := range t.Slots.names {
		if err := validateSlot(name, t.Slots.specs[name]); err != nil {
			return err
		}
	}
	return validateLanes(t.Attachments)
}

func validateBlock(path string, b *rawMessage) error {
	if b.Role == "" {
		return structErr(path, "message requires a role")
	}
	if b.Content != nil && b.From != nil {
		return structErr(path, "message sets both content and from")
	}
	if b.Content == nil && b.From == nil {
		return structErr(path, "message requires content or from")
	}
	if b.Continue && b.Role != RoleAssistant {
		return structErr(path, "continuation flag is only legal on role %q", RoleAssistant)
	}
	for i := range b.When {
		if err := validateCondition(fmt.Sprintf("%s.when[%d]", path, i), &b.When[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateSlot(name string, slot *rawSlot) error {
	prefix := "slots." + name
	if slot.When != nil {
		if err := validateCondition(prefix+".when", slot.When); err != nil {
			return err
		}
	}
	return validatePlan(slot.Plan, prefix+".plan")
}

func validatePlan(nodes []rawPlanNode, prefix string) error {
	for i := range nodes {
		node := &nodes[i]
		path := fmt.Sprintf("%s[%d]", prefix, i)
		switch node.Kind {
		case kindMessage:
			// covered by walkBlocks
		case kindForEach:
			if node.ForEach == nil {
				return structErr(path, "forEach node requires a forEach body")
			}
			if err := validateForEach(path+".forEach", node.ForEach); err != nil {
				return err
			}
		case kindIf:
			if node.If == nil {
				return structErr(path, "if node requires an if body")
			}
			if err := validateCondition(path+".if.when", &node.If.When); err != nil {
				return err
			}
			if err := validatePlan(node.If.Then, path+".if.then"); err != nil {
				return err
			}
			if err := validatePlan(node.If.Else, path+".if.else"); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateForEach(path string, fe *rawForEach) error {
	switch fe.Order {
	case "", "asc", "desc":
	default:
		return structErr(path, "unsupported order %q", fe.Order)
	}
	switch fe.FillDir {
	case "", "append", "prepend":
	default:
		return structErr(path, "unsupported fillDir %q", fe.FillDir)
	}
	if fe.Limit < 0 {
		return structErr(path, "limit must not be negative")
	}
	return validatePlan(fe.Map, path+".map")
}

func validateCondition(path string, c *rawCondition) error {
	switch c.Kind {
	case condExists, condNonEmpty, condEq, condNeq, condGt, condLt:
	default:
		return structErr(path, "unknown condition kind %q", c.Kind)
	}
	if c.Ref.Source == "" {
		return structErr(path+".ref", "condition requires a data reference")
	}
	return nil
}

func validateLanes(lanes []rawLane) error {
	seen := make(map[string]struct{}, len(lanes))
	for i := range lanes {
		lane := &lanes[i]
		path := fmt.Sprintf("attachments[%d]", i)
		if lane.ID == "" {
			return structErr(path, "attachment lane requires an id")
		}
		if _, dup := seen[lane.ID]; dup {
			return structErr(path, "duplicate attachment lane id %q", lane.ID)
		}
		seen[lane.ID] = struct{}{}
		if lane.ReserveTokens < 0 {
			return structErr(path, "reserveTokens must not be negative")
		}
	}
	return nil
}
