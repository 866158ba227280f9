package relay

import (
	"testing"

	"github.com/parley/chat-app/internal/protocol"
	"github.com/parley/chat-app/internal/room"
)

// fakeResolver maps user ids to session lists.
type fakeResolver map[string][]string

func (f fakeResolver) SessionsForUser(userID string) []string { return f[userID] }

func TestTyping_RoomScopedExcludesOrigin(t *testing.T) {
	tracker := newTestRoom(t, "conv1", map[string][]string{
		"alice": {"s1"},
		"bob":   {"s2"},
		"carol": {"s3"},
	})
	sender := newFakeSender()
	relay := NewTypingRelay(tracker, fakeResolver{}, sender)

	relay.Relay("s1", "alice", protocol.TypingMsg{ConversationID: "conv1", IsTyping: true})

	if got := sender.types(t, "s1"); len(got) != 0 {
		t.Errorf("originating session received %v", got)
	}
	for _, sid := range []string{"s2", "s3"} {
		types := sender.types(t, sid)
		if !hasType(types, protocol.TypeUserTyping) {
			t.Errorf("session %s did not receive typing indicator", sid)
		}
	}

	var got protocol.UserTypingMsg
	sender.frame(t, "s2", 0, &got)
	if got.SenderID != "alice" || !got.IsTyping {
		t.Errorf("indicator = %+v, want sender alice, isTyping true", got)
	}
}

func TestTyping_UserScopedReachesAllTargetSessions(t *testing.T) {
	resolver := fakeResolver{"bob": {"s2", "s3"}}
	sender := newFakeSender()
	relay := NewTypingRelay(room.NewTracker(), resolver, sender)

	relay.Relay("s1", "alice", protocol.TypingMsg{Receiver: "bob", IsTyping: false})

	for _, sid := range []string{"s2", "s3"} {
		if !hasType(sender.types(t, sid), protocol.TypeUserTyping) {
			t.Errorf("session %s did not receive typing indicator", sid)
		}
	}
	var got protocol.UserTypingMsg
	sender.frame(t, "s2", 0, &got)
	if got.IsTyping {
		t.Error("expected isTyping false to be relayed as-is")
	}
}

func TestTyping_NoScopeDropped(t *testing.T) {
	sender := newFakeSender()
	relay := NewTypingRelay(room.NewTracker(), fakeResolver{}, sender)

	relay.Relay("s1", "alice", protocol.TypingMsg{IsTyping: true})

	if len(sender.sent) != 0 {
		t.Errorf("unscoped indicator produced frames: %v", sender.sent)
	}
}

func TestTyping_OfflineReceiverIsSilent(t *testing.T) {
	sender := newFakeSender()
	relay := NewTypingRelay(room.NewTracker(), fakeResolver{}, sender)

	relay.Relay("s1", "alice", protocol.TypingMsg{Receiver: "ghost", IsTyping: true})

	if len(sender.sent) != 0 {
		t.Errorf("indicator to offline user produced frames: %v", sender.sent)
	}
}
