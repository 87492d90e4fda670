package promptgen

// Chat message roles understood by the renderer.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is the sole output type of a render: an ordered chat message
// ready for submission to a model.
type Message struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	Attachment *AttachmentMeta `json:"attachment,omitempty"`
}

// AttachmentMeta marks a message that was injected from an attachment lane
// rather than produced by the template's layout or slots.
type AttachmentMeta struct {
	Lane string `json:"lane"`
}

// squashMessages merges adjacent messages that share a role into one
// message joined by newline. Messages carrying attachment metadata are
// never merged, so lane provenance survives normalization.
func squashMessages(msgs []Message) []Message {
	if len(msgs) < 2 {
		return msgs
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Role == m.Role && last.Attachment == nil && m.Attachment == nil {
				last.Content = last.Content + "\n" + m.Content
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
