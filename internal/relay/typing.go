package relay

import (
	"github.com/parley/chat-app/internal/protocol"
	"github.com/parley/chat-app/internal/room"
)

// SessionResolver maps a user id to their live session ids. The connection
// registry satisfies this.
type SessionResolver interface {
	SessionsForUser(userID string) []string
}

// TypingRelay fans out transient typing indicators. Indicators are never
// persisted and never generate errors back to the client: an indicator that
// cannot be delivered is simply gone.
type TypingRelay struct {
	rooms    *room.Tracker
	resolver SessionResolver
	sender   Sender
}

// NewTypingRelay wires a TypingRelay.
func NewTypingRelay(rooms *room.Tracker, resolver SessionResolver, sender Sender) *TypingRelay {
	return &TypingRelay{rooms: rooms, resolver: resolver, sender: sender}
}

// Relay delivers one typing indicator from senderUserID. Room-scoped
// indicators (ConversationID set) go to every session in the room except the
// originating one; user-scoped indicators (Receiver set) go to every live
// session of the target user. An indicator with neither scope is dropped.
func (r *TypingRelay) Relay(sessionID, senderUserID string, msg protocol.TypingMsg) {
	payload := protocol.UserTypingMsg{
		SenderID: senderUserID,
		IsTyping: msg.IsTyping,
	}

	switch {
	case msg.ConversationID != "":
		fanOut(r.sender, r.rooms.Sessions(msg.ConversationID), sessionID, protocol.TypeUserTyping, payload)
	case msg.Receiver != "":
		fanOut(r.sender, r.resolver.SessionsForUser(msg.Receiver), sessionID, protocol.TypeUserTyping, payload)
	}
}
