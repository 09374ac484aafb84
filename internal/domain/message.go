package domain

import "time"

// Origin identifies who produced a transcript message.
type Origin string

const (
	OriginBot  Origin = "bot"
	OriginUser Origin = "user"
)

// Action types understood by every presentation shell. Backends may pass
// other template types through; shells render those as plain text.
const (
	ActionQuickReply = "QuickReply"
	ActionCallAgent  = "Agent"
)

// Option is one selectable quick-reply button.
type Option struct {
	Label string `json:"label"`
}

// Action annotates a bot message with selectable responses.
type Action struct {
	Type    string   `json:"type"`
	Options []Option `json:"options,omitempty"`
}

// QuickReply builds a QuickReply action from button labels, in order.
func QuickReply(labels ...string) *Action {
	opts := make([]Option, 0, len(labels))
	for _, l := range labels {
		opts = append(opts, Option{Label: l})
	}
	return &Action{Type: ActionQuickReply, Options: opts}
}

// Labels returns the option labels in order.
func (a *Action) Labels() []string {
	if a == nil {
		return nil
	}
	labels := make([]string, len(a.Options))
	for i, o := range a.Options {
		labels[i] = o.Label
	}
	return labels
}

// Message is a single entry in a conversation transcript. It is the only
// thing the conversation core hands to a presentation shell and is never
// modified once appended.
type Message struct {
	Origin    Origin    `json:"origin"`
	Text      string    `json:"text"`
	Action    *Action   `json:"action,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BotMessage returns a plain bot message.
func BotMessage(text string) Message {
	return Message{Origin: OriginBot, Text: text}
}

// BotPrompt returns a bot message carrying an action.
func BotPrompt(text string, action *Action) Message {
	return Message{Origin: OriginBot, Text: text, Action: action}
}

// UserMessage returns a message typed (or clicked) by the user.
func UserMessage(text string) Message {
	return Message{Origin: OriginUser, Text: text}
}

// ChatType classifies the conversation context of a channel message.
type ChatType string

const (
	ChatTypeDM    ChatType = "dm"
	ChatTypeGroup ChatType = "group"
)

// InboundMessage is a message received from a messaging channel.
type InboundMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	ChatID    string    `json:"chatId"`
	ChatType  ChatType  `json:"chatType"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundMessage is a message to be delivered through a messaging channel.
type OutboundMessage struct {
	ChannelID string `json:"channelId"`
	To        string `json:"to"`
	Body      string `json:"body"`
}

// Escalation phrases. A backend offer to reach an agent is rendered as a
// quick-reply with exactly these labels so that clicking one is handled by
// the conversation's global overrides.
const (
	PhraseEscalate = "Yes, I want to call"
	PhraseDecline  = "No, I don't want to"
)

// EscalationPrompt is the bot message offering a live agent call.
func EscalationPrompt() Message {
	return BotPrompt("Will you talk to our agent?", QuickReply(PhraseEscalate, PhraseDecline))
}
