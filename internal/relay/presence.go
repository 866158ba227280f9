package relay

import (
	"github.com/parley/chat-app/internal/metrics"
	"github.com/parley/chat-app/internal/protocol"
	"github.com/parley/chat-app/internal/room"
)

// PresenceRelay announces room membership changes. Join and leave
// announcements are room-scoped broadcasts: every subscribed session hears
// them, the joining session included, so all clients converge on the same
// member list without diffing.
type PresenceRelay struct {
	rooms  *room.Tracker
	sender Sender
}

// NewPresenceRelay wires a PresenceRelay.
func NewPresenceRelay(rooms *room.Tracker, sender Sender) *PresenceRelay {
	return &PresenceRelay{rooms: rooms, sender: sender}
}

// AnnounceJoin tells the room that a user joined. The joining session gets
// roomJoined confirming its own join, and every session in the room — the
// joiner's too — gets userJoined. Member list and recipient set come from
// one tracker snapshot so they cannot disagree.
func (r *PresenceRelay) AnnounceJoin(roomID, userID, sessionID string) {
	members, sessions := r.rooms.Snapshot(roomID)

	send(r.sender, sessionID, protocol.TypeRoomJoined, protocol.RoomJoinedMsg{
		RoomID:      roomID,
		OnlineUsers: members,
	})

	fanOut(r.sender, sessions, "", protocol.TypeUserJoined, protocol.UserJoinedMsg{
		UserID:      userID,
		OnlineUsers: members,
	})
	metrics.BroadcastsTotal.WithLabelValues(protocol.TypeUserJoined).Inc()
}

// AnnounceLeave tells a room's remaining sessions that a user is gone.
// Callers invoke it only when the user's last session left the room, for
// explicit leaves and disconnects alike.
func (r *PresenceRelay) AnnounceLeave(roomID, userID string) {
	members, sessions := r.rooms.Snapshot(roomID)

	fanOut(r.sender, sessions, "", protocol.TypeUserLeft, protocol.UserLeftMsg{
		UserID:      userID,
		OnlineUsers: members,
	})
	metrics.BroadcastsTotal.WithLabelValues(protocol.TypeUserLeft).Inc()
}
