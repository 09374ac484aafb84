package domain

import "time"

// SessionKey uniquely identifies a conversation on a channel.
type SessionKey struct {
	ChannelID string `json:"channelId"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId,omitempty"`
}

// String returns a canonical string form of the session key.
func (k SessionKey) String() string {
	s := k.ChannelID + ":" + k.ChatID
	if k.SenderID != "" {
		s += ":" + k.SenderID
	}
	return s
}

// Session is the persisted record of a conversation.
type Session struct {
	ID        string         `json:"id"`
	Key       SessionKey     `json:"key"`
	State     State          `json:"state"`
	Context   SessionContext `json:"context"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	ClosedAt  *time.Time     `json:"closedAt,omitempty"`
	Messages  []Message      `json:"messages,omitempty"`
}

// CallAttempt is the persisted record of one escalation attempt.
type CallAttempt struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"sessionId"`
	Status    CallStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}
