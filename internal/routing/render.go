package routing

import (
	"strconv"
	"strings"

	"github.com/soyeahso/sharkchat/internal/domain"
)

// callAgentLabel is how an Agent action reads on a text channel.
const callAgentLabel = "Call Agent"

// optionLabels returns the selectable labels of a bot message.
func optionLabels(msg domain.Message) []string {
	if msg.Action == nil {
		return nil
	}
	if msg.Action.Type == domain.ActionCallAgent {
		return []string{callAgentLabel}
	}
	return msg.Action.Labels()
}

// RenderText renders a bot message for a plain-text channel. Options follow
// the text on their own line as "[Yes] [No]".
func RenderText(msg domain.Message) string {
	labels := optionLabels(msg)
	if len(labels) == 0 {
		return msg.Text
	}
	var b strings.Builder
	b.WriteString(msg.Text)
	b.WriteString("\n")
	for i, l := range labels {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("[" + l + "]")
	}
	return b.String()
}

// resolveChoice maps a typed reply onto the options of the last bot
// message. A 1-based option number or a label (case-insensitive, brackets
// optional) selects that option; anything else is passed through.
func resolveChoice(body string, last domain.Message) string {
	labels := optionLabels(last)
	if len(labels) == 0 {
		return body
	}
	typed := strings.TrimSpace(body)
	typed = strings.TrimSuffix(strings.TrimPrefix(typed, "["), "]")

	choice := ""
	if n, err := strconv.Atoi(typed); err == nil && n >= 1 && n <= len(labels) {
		choice = labels[n-1]
	} else {
		for _, l := range labels {
			if strings.EqualFold(typed, l) {
				choice = l
				break
			}
		}
	}
	switch {
	case choice == "":
		return body
	case last.Action.Type == domain.ActionCallAgent:
		return domain.PhraseEscalate
	default:
		return choice
	}
}

// ResolveChoice resolves a typed reply against the latest bot message of
// a transcript.
func ResolveChoice(body string, transcript []domain.Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Origin == domain.OriginBot {
			return resolveChoice(body, transcript[i])
		}
	}
	return body
}
