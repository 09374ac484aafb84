package routing

import "github.com/soyeahso/sharkchat/internal/domain"

// Session scopes.
const (
	ScopePerSender = "per-sender"
	ScopeGlobal    = "global"
)

// ResolveSessionKey builds a session key from an inbound message and the configured scope.
//
// Scopes:
//   - "per-sender": separate session per user per chat (default)
//   - "global": single session per chat, shared among all users
func ResolveSessionKey(msg domain.InboundMessage, scope string) domain.SessionKey {
	key := domain.SessionKey{
		ChannelID: msg.ChannelID,
		ChatID:    msg.ChatID,
	}
	if scope != ScopeGlobal {
		key.SenderID = msg.From
	}
	return key
}
