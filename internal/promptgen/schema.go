package promptgen

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DataRef is an opaque, named request for externally supplied data,
// resolved through a SourceRegistry. Args are interpreted only by the
// handler registered for the source name.
type DataRef struct {
	Source string `json:"source"`
	Args   any    `json:"args,omitempty"`
}

// Budget is an optional token ceiling layered on top of the global
// ceiling for the node or slot that carries it.
type Budget struct {
	MaxTokens int `json:"maxTokens,omitempty"`
}

// Layout and plan node kinds as they appear on the wire.
const (
	kindMessage   = "message"
	kindSlot      = "slot"
	kindSeparator = "separator"
	kindAnchor    = "anchor"
	kindForEach   = "forEach"
	kindIf        = "if"
)

// Condition kinds.
const (
	condExists   = "exists"
	condNonEmpty = "nonEmpty"
	condEq       = "eq"
	condNeq      = "neq"
	condGt       = "gt"
	condLt       = "lt"
)

// rawTemplate mirrors the JSON wire format of a template before
// validation and compilation.
type rawTemplate struct {
	ID          string          `json:"id"`
	Task        string          `json:"task"`
	Name        string          `json:"name"`
	Version     int             `json:"version"`
	Layout      []rawLayoutNode `json:"layout"`
	Slots       rawSlotMap      `json:"slots"`
	Attachments []rawLane       `json:"attachments,omitempty"`
}

// rawMessage is a single message block: a role plus either a literal
// templated string or a dynamic data reference, with optional guards,
// a node budget, and the assistant-only continuation flag.
type rawMessage struct {
	Role     string         `json:"role"`
	Content  *string        `json:"content,omitempty"`
	From     *DataRef       `json:"from,omitempty"`
	When     []rawCondition `json:"when,omitempty"`
	Budget   *Budget        `json:"budget,omitempty"`
	Continue bool           `json:"continue,omitempty"`
}

type rawLayoutNode struct {
	Kind string `json:"kind"`
	rawMessage
	// slot node fields
	Name        string       `json:"name,omitempty"`
	Header      []rawMessage `json:"header,omitempty"`
	Footer      []rawMessage `json:"footer,omitempty"`
	OmitIfEmpty *bool        `json:"omitIfEmpty,omitempty"`
	// separator node field
	Text string `json:"text,omitempty"`
}

type rawSlot struct {
	Priority int           `json:"priority"`
	When     *rawCondition `json:"when,omitempty"`
	Budget   *Budget       `json:"budget,omitempty"`
	Plan     []rawPlanNode `json:"plan"`
}

type rawPlanNode struct {
	Kind string `json:"kind"`
	rawMessage
	ForEach *rawForEach `json:"forEach,omitempty"`
	If      *rawBranch  `json:"if,omitempty"`
}

type rawForEach struct {
	From    DataRef       `json:"from"`
	Order   string        `json:"order,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	FillDir string        `json:"fillDir,omitempty"`
	Budget  *Budget       `json:"budget,omitempty"`
	Map     []rawPlanNode `json:"map"`
}

type rawBranch struct {
	When rawCondition  `json:"when"`
	Then []rawPlanNode `json:"then"`
	Else []rawPlanNode `json:"else,omitempty"`
}

type rawCondition struct {
	Kind  string  `json:"kind"`
	Ref   DataRef `json:"ref"`
	Value any     `json:"value,omitempty"`
}

type rawLane struct {
	ID            string  `json:"id"`
	Enabled       *bool   `json:"enabled,omitempty"`
	Role          string  `json:"role,omitempty"`
	Template      string  `json:"template"`
	Order         int     `json:"order,omitempty"`
	ReserveTokens int     `json:"reserveTokens,omitempty"`
	Budget        *Budget `json:"budget,omitempty"`
	Payload       any     `json:"payload,omitempty"`
	Anchor        string  `json:"anchor,omitempty"`
}

// rawSlotMap preserves the declaration order of the slots object, which
// breaks priority ties deterministically. Duplicate keys are detected
// here because encoding/json would silently keep the last one.
type rawSlotMap struct {
	names []string
	specs map[string]*rawSlot
}

func (m *rawSlotMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("slots must be an object")
	}
	m.specs = make(map[string]*rawSlot)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name := keyTok.(string)
		var slot rawSlot
		if err := dec.Decode(&slot); err != nil {
			return fmt.Errorf("slot %q: %w", name, err)
		}
		if _, dup := m.specs[name]; dup {
			return structErr("slots."+name, "duplicate slot name")
		}
		m.names = append(m.names, name)
		m.specs[name] = &slot
	}
	_, err = dec.Token() // closing brace
	return err
}
