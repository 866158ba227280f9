package relay

import (
	"encoding/json"
	"testing"

	"github.com/parley/chat-app/internal/protocol"
)

func TestSignaling_JoinAnnouncesToExistingPeersOnly(t *testing.T) {
	sender := newFakeSender()
	relay := NewSignalingRelay(sender)

	relay.JoinRoom("call1", "s1", "alice")
	if got := sender.types(t, "s1"); len(got) != 0 {
		t.Errorf("first joiner received %v, want nothing", got)
	}

	relay.JoinRoom("call1", "s2", "bob")

	types := sender.types(t, "s1")
	if !hasType(types, protocol.TypeCallUserJoined) {
		t.Fatalf("existing peer frames = %v, want user-joined", types)
	}
	var got protocol.CallUserJoinedMsg
	sender.frame(t, "s1", 0, &got)
	if got.UserID != "bob" || got.SocketID != "s2" {
		t.Errorf("announcement = %+v, want bob/s2", got)
	}

	// The joiner is not announced to itself.
	if got := sender.types(t, "s2"); len(got) != 0 {
		t.Errorf("joiner received %v, want nothing", got)
	}
}

func TestSignaling_JoinIsIdempotentPerSession(t *testing.T) {
	sender := newFakeSender()
	relay := NewSignalingRelay(sender)

	relay.JoinRoom("call1", "s1", "alice")
	relay.JoinRoom("call1", "s2", "bob")
	relay.JoinRoom("call1", "s2", "bob") // duplicate

	if got := sender.types(t, "s1"); len(got) != 1 {
		t.Errorf("existing peer got %d announcements, want 1", len(got))
	}
}

func TestSignaling_JoiningSecondRoomLeavesFirst(t *testing.T) {
	sender := newFakeSender()
	relay := NewSignalingRelay(sender)

	relay.JoinRoom("call1", "s1", "alice")
	relay.JoinRoom("call1", "s2", "bob")
	relay.JoinRoom("call2", "s2", "bob")

	types := sender.types(t, "s1")
	if !hasType(types, protocol.TypeCallUserLeft) {
		t.Errorf("first-room peer frames = %v, want user-left", types)
	}
	if len(relay.Peers("call1")) != 1 {
		t.Errorf("call1 peers = %v, want only s1", relay.Peers("call1"))
	}
	if len(relay.Peers("call2")) != 1 {
		t.Errorf("call2 peers = %v, want only s2", relay.Peers("call2"))
	}
}

func TestSignaling_LeaveAnnouncesDeparture(t *testing.T) {
	sender := newFakeSender()
	relay := NewSignalingRelay(sender)

	relay.JoinRoom("call1", "s1", "alice")
	relay.JoinRoom("call1", "s2", "bob")
	relay.LeaveRoom("s2")

	found := false
	for i, tp := range sender.types(t, "s1") {
		if tp == protocol.TypeCallUserLeft {
			var got protocol.CallUserLeftMsg
			sender.frame(t, "s1", i, &got)
			if got.SocketID != "s2" {
				t.Errorf("user-left SocketID = %q, want s2", got.SocketID)
			}
			found = true
		}
	}
	if !found {
		t.Error("remaining peer did not receive user-left")
	}

	// Leaving again is a no-op.
	before := len(sender.sent["s1"])
	relay.LeaveRoom("s2")
	if len(sender.sent["s1"]) != before {
		t.Error("repeated leave produced extra frames")
	}
}

func TestSignaling_EmptyRoomIsReaped(t *testing.T) {
	sender := newFakeSender()
	relay := NewSignalingRelay(sender)

	relay.JoinRoom("call1", "s1", "alice")
	relay.DropSession("s1")

	if relay.RoomCount() != 0 {
		t.Errorf("RoomCount() = %d, want 0", relay.RoomCount())
	}
}

func TestSignaling_OfferForwardedWithSenderStamp(t *testing.T) {
	sender := newFakeSender()
	relay := NewSignalingRelay(sender)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	relay.RelayOffer("s1", protocol.OfferMsg{Target: "s2", Offer: offer})

	types := sender.types(t, "s2")
	if len(types) != 1 || types[0] != protocol.TypeOffer {
		t.Fatalf("target frames = %v, want one webrtc-offer", types)
	}
	var got protocol.OfferRelayMsg
	sender.frame(t, "s2", 0, &got)
	if got.Sender != "s1" {
		t.Errorf("Sender = %q, want s1", got.Sender)
	}
	if string(got.Offer) != string(offer) {
		t.Errorf("Offer payload altered: %s", got.Offer)
	}
}

func TestSignaling_DeadTargetIsSilentDrop(t *testing.T) {
	sender := newFakeSender()
	sender.dead["s2"] = true
	relay := NewSignalingRelay(sender)

	relay.RelayAnswer("s1", protocol.AnswerMsg{
		Target: "s2",
		Answer: json.RawMessage(`{"type":"answer"}`),
	})
	relay.RelayCandidate("s1", protocol.IceCandidateMsg{
		Target:    "",
		Candidate: json.RawMessage(`{"candidate":"..."}`),
	})

	// Neither the sender nor anyone else hears about the failures.
	if len(sender.sent) != 0 {
		t.Errorf("drops produced frames: %v", sender.sent)
	}
}
