package promptgen

import "fmt"

// Walkers enumerate every message block and data reference in a raw
// template with a stable path string ("slots.x.plan[2].forEach.map[0]").
// The validator and linter both lean on these so their error messages
// agree on locations.

type blockVisitor func(path string, b *rawMessage)

type refVisitor func(path string, ref *DataRef)

func walkBlocks(t *rawTemplate, fn blockVisitor) {
	for i := range t.Layout {
		node := &t.Layout[i]
		path := fmt.Sprintf("layout[%d]", i)
		switch node.Kind {
		case kindMessage:
			fn(path, &node.rawMessage)
		case kindSlot:
			for j := range node.Header {
				fn(fmt.Sprintf("%s.header[%d]", path, j), &node.Header[j])
			}
			for j := range node.Footer {
				fn(fmt.Sprintf("%s.footer[%d]", path, j), &node.Footer[j])
			}
		}
	}
	for _, name := range t.Slots.names {
		slot := t.Slots.specs[name]
		walkPlanBlocks(slot.Plan, "slots."+name+".plan", fn)
	}
}

func walkPlanBlocks(nodes []rawPlanNode, prefix string, fn blockVisitor) {
	for i := range nodes {
		node := &nodes[i]
		path := fmt.Sprintf("%s[%d]", prefix, i)
		switch node.Kind {
		case kindMessage:
			fn(path, &node.rawMessage)
		case kindForEach:
			if node.ForEach != nil {
				walkPlanBlocks(node.ForEach.Map, path+".forEach.map", fn)
			}
		case kindIf:
			if node.If != nil {
				walkPlanBlocks(node.If.Then, path+".if.then", fn)
				walkPlanBlocks(node.If.Else, path+".if.else", fn)
			}
		}
	}
}

func walkRefs(t *rawTemplate, fn refVisitor) {
	walkBlocks(t, func(path string, b *rawMessage) {
		if b.From != nil {
			fn(path+".from", b.From)
		}
		for i := range b.When {
			fn(fmt.Sprintf("%s.when[%d].ref", path, i), &b.When[i].Ref)
		}
	})
	for _, name := range t.Slots.names {
		slot := t.Slots.specs[name]
		if slot.When != nil {
			fn("slots."+name+".when.ref", &slot.When.Ref)
		}
		walkPlanRefs(slot.Plan, "slots."+name+".plan", fn)
	}
}

func walkPlanRefs(nodes []rawPlanNode, prefix string, fn refVisitor) {
	for i := range nodes {
		node := &nodes[i]
		path := fmt.Sprintf("%s[%d]", prefix, i)
		switch node.Kind {
		case kindForEach:
			if node.ForEach != nil {
				fn(path+".forEach.from", &node.ForEach.From)
				walkPlanRefs(node.ForEach.Map, path+".forEach.map", fn)
			}
		case kindIf:
			if node.If != nil {
				fn(path+".if.when.ref", &node.If.When.Ref)
				walkPlanRefs(node.If.Then, path+".if.then", fn)
				walkPlanRefs(node.If.Else, path+".if.else", fn)
			}
		}
	}
}
