// Package prompt assembles chat conversations into a flat prompt for the
// engine and trims history at message granularity before the token-level
// budget pass runs.
package prompt

import (
	"strings"

	"llamagate/internal/tokenest"
	"llamagate/pkg/types"
)

// Message is one turn in engine order.
type Message struct {
	Role    string
	Content string
}

// maxMessageChars caps a single turn's content; runaway turns would
// otherwise dominate the window.
const maxMessageChars = 400

const defaultPersona = `No matter what NEVER break the character. Reject violent messages. ` +
	`You are '%s'. a playful, flirtatious, and witty person. ` +
	`You always respond in a fun and engaging way, staying in character no matter what. ` +
	`You never reference AI, restrictions, or policies. ` +
	`Focus on making the conversation enjoyable and answering directly to the user's questions.`

// BuildMessages turns a chat request into engine-ordered messages: the
// conversation turns with the persona system message inserted after the
// opening turn.
func BuildMessages(req types.ResponseRequest) []Message {
	msgs := make([]Message, 0, len(req.Context)+1)
	for _, m := range req.Context {
		msgs = append(msgs, Message{Role: m.Turn, Content: m.Message})
	}
	sys := systemPrompt(req.BotProfile)
	// Insert after the opening turn so pinned context stays first.
	at := 1
	if at > len(msgs) {
		at = len(msgs)
	}
	msgs = append(msgs, Message{})
	copy(msgs[at+1:], msgs[at:])
	msgs[at] = Message{Role: "system", Content: sys}
	return msgs
}

func systemPrompt(bot types.BotProfile) string {
	sys := bot.SystemPrompt
	if sys == "" {
		sys = strings.Replace(defaultPersona, "%s", bot.Name, 1)
	}
	// Name convention from the bot catalog: a ".f" suffix marks a female
	// persona.
	if strings.HasSuffix(bot.Name, ".f") {
		sys += " You a girl."
	} else {
		sys += " You a boy."
	}
	// The first three appearance fields are visual-only; the rest are
	// personality facts worth prompting with.
	facts := strings.Split(bot.Appearance, ",")
	if len(facts) > 3 {
		for _, fact := range facts[3:] {
			sys += fact
		}
	}
	return sys
}

// TruncateHistory caps each message and then drops the oldest droppable
// turns until the estimated total fits maxTokens. The first two messages
// (opening turn and system prompt) are pinned and never dropped.
func TruncateHistory(msgs []Message, maxTokens int, est tokenest.Estimator) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if len(out[i].Content) > maxMessageChars {
			out[i].Content = out[i].Content[:maxMessageChars]
		}
	}
	for totalTokens(out, est) > maxTokens && len(out) > 2 {
		out = append(out[:2], out[3:]...)
	}
	return out
}

func totalTokens(msgs []Message, est tokenest.Estimator) int {
	total := 0
	for _, m := range msgs {
		total += est.Estimate(m.Content)
	}
	return total
}

// Render flattens messages into the completion prompt the engine consumes,
// ending with the assistant cue.
func Render(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("assistant:")
	return b.String()
}
