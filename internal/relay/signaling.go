package relay

import (
	"sync"

	"github.com/parley/chat-app/internal/metrics"
	"github.com/parley/chat-app/internal/protocol"
)

// SignalingRelay tracks call rooms and forwards WebRTC signaling payloads
// between peers. Call rooms are keyed by session, not user: every tab is its
// own peer in the mesh. Payloads are opaque; the relay only addresses them.
//
// Call rooms are deliberately independent of chat-room presence and are not
// authorized against the participant table. Knowing a room id is the ticket.
type SignalingRelay struct {
	mu        sync.Mutex
	rooms     map[string]map[string]string // room -> session -> user
	bySession map[string]string            // session -> room (one call room per session)
	sender    Sender
}

// NewSignalingRelay creates an empty SignalingRelay.
func NewSignalingRelay(sender Sender) *SignalingRelay {
	return &SignalingRelay{
		rooms:     make(map[string]map[string]string),
		bySession: make(map[string]string),
		sender:    sender,
	}
}

// JoinRoom enters a session into a call room and announces it to the peers
// already present. Peers react by opening a connection toward the announced
// socketId. A session can be in one call room at a time; joining another
// room leaves the previous one first.
func (r *SignalingRelay) JoinRoom(roomID, sessionID, userID string) {
	r.mu.Lock()
	var left []string
	if prev, ok := r.bySession[sessionID]; ok && prev != roomID {
		left = r.leaveLocked(sessionID)
	}

	peers, ok := r.rooms[roomID]
	if !ok {
		peers = make(map[string]string)
		r.rooms[roomID] = peers
		metrics.CallRooms.Inc()
	}
	if _, present := peers[sessionID]; present {
		r.mu.Unlock()
		return
	}
	peers[sessionID] = userID
	r.bySession[sessionID] = roomID

	others := make([]string, 0, len(peers)-1)
	for sid := range peers {
		if sid != sessionID {
			others = append(others, sid)
		}
	}
	r.mu.Unlock()

	if len(left) > 0 {
		fanOut(r.sender, left, "", protocol.TypeCallUserLeft, protocol.CallUserLeftMsg{
			SocketID: sessionID,
		})
	}
	fanOut(r.sender, others, "", protocol.TypeCallUserJoined, protocol.CallUserJoinedMsg{
		UserID:   userID,
		SocketID: sessionID,
	})
}

// LeaveRoom removes a session from its call room and announces the departure
// to the remaining peers. Idempotent: leaving while not in a room is a no-op.
func (r *SignalingRelay) LeaveRoom(sessionID string) {
	r.mu.Lock()
	remaining := r.leaveLocked(sessionID)
	r.mu.Unlock()

	if remaining != nil {
		fanOut(r.sender, remaining, "", protocol.TypeCallUserLeft, protocol.CallUserLeftMsg{
			SocketID: sessionID,
		})
	}
}

// leaveLocked removes the session from its room and returns the remaining
// peer sessions, or nil when the session was in no room.
func (r *SignalingRelay) leaveLocked(sessionID string) []string {
	roomID, ok := r.bySession[sessionID]
	if !ok {
		return nil
	}
	delete(r.bySession, sessionID)

	peers := r.rooms[roomID]
	delete(peers, sessionID)
	if len(peers) == 0 {
		delete(r.rooms, roomID)
		metrics.CallRooms.Dec()
		return []string{}
	}

	remaining := make([]string, 0, len(peers))
	for sid := range peers {
		remaining = append(remaining, sid)
	}
	return remaining
}

// DropSession is the disconnect-cascade hook: it behaves exactly like an
// explicit leave-room from the dropped session.
func (r *SignalingRelay) DropSession(sessionID string) {
	r.LeaveRoom(sessionID)
}

// RelayOffer forwards a WebRTC offer to the target session, stamped with the
// sender's session id so the answer can find its way back.
func (r *SignalingRelay) RelayOffer(fromSession string, msg protocol.OfferMsg) {
	r.forward("offer", msg.Target, protocol.TypeOffer, protocol.OfferRelayMsg{
		Offer:  msg.Offer,
		Sender: fromSession,
	})
}

// RelayAnswer forwards a WebRTC answer to the target session.
func (r *SignalingRelay) RelayAnswer(fromSession string, msg protocol.AnswerMsg) {
	r.forward("answer", msg.Target, protocol.TypeAnswer, protocol.AnswerRelayMsg{
		Answer: msg.Answer,
		Sender: fromSession,
	})
}

// RelayCandidate forwards an ICE candidate to the target session.
func (r *SignalingRelay) RelayCandidate(fromSession string, msg protocol.IceCandidateMsg) {
	r.forward("ice", msg.Target, protocol.TypeIceCandidate, protocol.IceCandidateRelayMsg{
		Candidate: msg.Candidate,
		Sender:    fromSession,
	})
}

// forward delivers one signaling payload point-to-point. A missing or dead
// target is a silent drop: peers discover absence through user-left or ICE
// failure, not through relay errors.
func (r *SignalingRelay) forward(kind, target, msgType string, payload interface{}) {
	if target == "" {
		metrics.SignalsTotal.WithLabelValues(kind, "dropped").Inc()
		return
	}

	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		metrics.SignalsTotal.WithLabelValues(kind, "dropped").Inc()
		return
	}
	if err := r.sender.SendMessage(target, data); err != nil {
		metrics.SignalsTotal.WithLabelValues(kind, "dropped").Inc()
		return
	}
	metrics.SignalsTotal.WithLabelValues(kind, "forwarded").Inc()
}

// Peers returns the session ids currently in a call room. Used by tests and
// the health surface.
func (r *SignalingRelay) Peers(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers, ok := r.rooms[roomID]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(peers))
	for sid := range peers {
		out = append(out, sid)
	}
	return out
}

// RoomCount returns the number of active call rooms.
func (r *SignalingRelay) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
