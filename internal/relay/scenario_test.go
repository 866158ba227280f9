package relay

import (
	"context"
	"testing"

	"github.com/parley/chat-app/internal/protocol"
	"github.com/parley/chat-app/internal/room"
)

// allowList authorizes only the users it contains.
type allowList map[string]bool

func (a allowList) CanJoin(_ context.Context, userID, _ string) bool { return a[userID] }

// TestScenario_JoinRelayDisconnect walks the primary flow end to end:
// two authorized users join a conversation, one sends a message that
// reaches both, an unauthorized user is rejected without side effects,
// and a disconnect produces exactly one departure notice.
func TestScenario_JoinRelayDisconnect(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	st := newFakeStore()

	tracker := room.NewTracker()
	rooms := room.NewService(allowList{"userA": true, "userB": true}, tracker)
	mr := NewMessageRelay(st, tracker, sender, nil, nil)
	presence := NewPresenceRelay(tracker, sender)

	// userA on s1 and userB on s2 join conv1.
	if ok, members := rooms.Join(ctx, "conv1", "userA", "s1"); !ok || len(members) != 1 {
		t.Fatalf("userA join: ok=%v members=%v", ok, members)
	}
	presence.AnnounceJoin("conv1", "userA", "s1")
	if ok, members := rooms.Join(ctx, "conv1", "userB", "s2"); !ok || len(members) != 2 {
		t.Fatalf("userB join: ok=%v members=%v", ok, members)
	}
	presence.AnnounceJoin("conv1", "userB", "s2")

	// B's join is announced to the whole room, B included.
	for _, sid := range []string{"s1", "s2"} {
		var joined protocol.UserJoinedMsg
		frames := sender.types(t, sid)
		sender.frame(t, sid, len(frames)-1, &joined)
		if joined.UserID != "userB" {
			t.Errorf("session %s: userJoined.userId = %q, want userB", sid, joined.UserID)
		}
		if len(joined.OnlineUsers) != 2 {
			t.Errorf("session %s: userJoined.onlineUsers = %v, want [userA userB]", sid, joined.OnlineUsers)
		}
	}

	// userC is not a participant: the join is rejected and the room is
	// untouched. The caller reports the rejection to s3 alone.
	ok, members := rooms.Join(ctx, "conv1", "userC", "s3")
	if ok {
		t.Fatal("userC join should have been rejected")
	}
	if len(members) != 2 {
		t.Fatalf("rejected join mutated the room: members=%v", members)
	}
	send(sender, "s3", protocol.TypeJoinRoomError, protocol.JoinRoomErrorMsg{Error: "not a participant"})

	// userA sends a message; both live sessions receive it, s3 does not.
	err := mr.Send(ctx, "s1", protocol.SendMessageMsg{
		ConversationID: "conv1",
		SenderID:       "userA",
		Content:        "hello both",
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	for _, sid := range []string{"s1", "s2"} {
		if !hasType(sender.types(t, sid), protocol.TypeNewMessage) {
			t.Errorf("session %s did not receive newMessage", sid)
		}
	}
	if hasType(sender.types(t, "s3"), protocol.TypeNewMessage) {
		t.Error("rejected session s3 received the broadcast")
	}
	if len(sender.types(t, "s3")) != 1 {
		t.Errorf("s3 should have seen only the join rejection, got %v", sender.types(t, "s3"))
	}

	// s2 drops. userB had no other sessions, so the remaining members hear
	// userLeft exactly once.
	departures := tracker.DropSession("s2")
	if len(departures) != 1 {
		t.Fatalf("expected 1 departure, got %d", len(departures))
	}
	dep := departures[0]
	if dep.Room != "conv1" || dep.UserID != "userB" || !dep.UserGone {
		t.Fatalf("unexpected departure: %+v", dep)
	}
	presence.AnnounceLeave(dep.Room, dep.UserID)

	var left protocol.UserLeftMsg
	frames := sender.types(t, "s1")
	sender.frame(t, "s1", len(frames)-1, &left)
	if left.UserID != "userB" {
		t.Errorf("userLeft.userId = %q, want userB", left.UserID)
	}
	if len(left.OnlineUsers) != 1 || left.OnlineUsers[0] != "userA" {
		t.Errorf("userLeft.onlineUsers = %v, want [userA]", left.OnlineUsers)
	}
	if hasType(sender.types(t, "s2"), protocol.TypeUserLeft) {
		t.Error("departed session s2 received its own userLeft")
	}
}

// TestScenario_MultiDeviceDisconnect verifies that closing one of a user's
// sessions does not announce a departure while another session remains.
func TestScenario_MultiDeviceDisconnect(t *testing.T) {
	ctx := context.Background()
	tracker := room.NewTracker()
	rooms := room.NewService(allowList{"userA": true}, tracker)

	rooms.Join(ctx, "conv1", "userA", "phone")
	rooms.Join(ctx, "conv1", "userA", "laptop")

	departures := tracker.DropSession("phone")
	if len(departures) != 1 {
		t.Fatalf("expected 1 departure, got %d", len(departures))
	}
	if departures[0].UserGone {
		t.Error("UserGone=true while the laptop session is still in the room")
	}

	departures = tracker.DropSession("laptop")
	if len(departures) != 1 || !departures[0].UserGone {
		t.Fatalf("last session drop should report UserGone, got %+v", departures)
	}
	if tracker.RoomCount() != 0 {
		t.Errorf("empty room not reaped, RoomCount=%d", tracker.RoomCount())
	}
}
