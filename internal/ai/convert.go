package ai

import (
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/kayz/weave/internal/promptgen"
)

// ToOpenAI converts rendered messages to OpenAI chat-completion form.
// Roles map one-to-one.
func ToOpenAI(msgs []promptgen.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

// ToAnthropic converts rendered messages to the Anthropic form: system
// messages are lifted into the request's system prompt (joined by blank
// lines) and the rest become the turn list.
func ToAnthropic(msgs []promptgen.Message) (system string, turns []anthropic.Message) {
	var systemParts []string
	for _, m := range msgs {
		switch m.Role {
		case promptgen.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case promptgen.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantTextMessage(m.Content))
		default:
			turns = append(turns, anthropic.NewUserTextMessage(m.Content))
		}
	}
	return strings.Join(systemParts, "\n\n"), turns
}
