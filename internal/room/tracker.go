// Package room tracks live presence in conversation rooms. Presence is not
// authorization: the persisted participant list remains the source of truth
// for who may join, and the tracker only records which authorized users are
// currently reachable, with per-user session reference counting so multiple
// tabs of the same user count as one present member.
package room

import "sync"

// Departure describes one room a dropped session was present in, and whether
// the drop removed the user's last session from that room.
type Departure struct {
	Room     string
	UserID   string
	UserGone bool // true when no other session of the user remains in the room
}

// Tracker is the in-memory room membership map: room -> user -> session set.
// All mutations are critical sections; store lookups never happen under the
// tracker's lock.
type Tracker struct {
	mu        sync.RWMutex
	rooms     map[string]map[string]map[string]struct{} // room -> user -> sessions
	bySession map[string]map[string]string              // session -> room -> user
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		rooms:     make(map[string]map[string]map[string]struct{}),
		bySession: make(map[string]map[string]string),
	}
}

// add records a session's presence for (room, user) and returns the member
// snapshot after the change. Callers must have authorized the user first.
func (t *Tracker) add(roomID, userID, sessionID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.rooms[roomID]
	if !ok {
		users = make(map[string]map[string]struct{})
		t.rooms[roomID] = users
	}
	sessions, ok := users[userID]
	if !ok {
		sessions = make(map[string]struct{})
		users[userID] = sessions
	}
	sessions[sessionID] = struct{}{}

	roomsOfSession, ok := t.bySession[sessionID]
	if !ok {
		roomsOfSession = make(map[string]string)
		t.bySession[sessionID] = roomsOfSession
	}
	roomsOfSession[roomID] = userID

	return t.membersLocked(roomID)
}

// Leave removes one session's presence for (room, user). It is idempotent
// and never errors. The first return value is true when this was the user's
// last session in the room; the second is the member snapshot afterwards.
func (t *Tracker) Leave(roomID, userID, sessionID string) (bool, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaveLocked(roomID, userID, sessionID), t.membersLocked(roomID)
}

func (t *Tracker) leaveLocked(roomID, userID, sessionID string) bool {
	if roomsOfSession, ok := t.bySession[sessionID]; ok {
		delete(roomsOfSession, roomID)
		if len(roomsOfSession) == 0 {
			delete(t.bySession, sessionID)
		}
	}

	users, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	sessions, ok := users[userID]
	if !ok {
		return false
	}
	delete(sessions, sessionID)
	if len(sessions) > 0 {
		return false
	}

	delete(users, userID)
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
	return true
}

// Members returns the user ids currently present in a room.
func (t *Tracker) Members(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.membersLocked(roomID)
}

func (t *Tracker) membersLocked(roomID string) []string {
	users, ok := t.rooms[roomID]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(users))
	for uid := range users {
		out = append(out, uid)
	}
	return out
}

// Sessions returns every live session id subscribed to a room across all
// present users. This is the fan-out list for room broadcasts.
func (t *Tracker) Sessions(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionsLocked(roomID)
}

func (t *Tracker) sessionsLocked(roomID string) []string {
	users, ok := t.rooms[roomID]
	if !ok {
		return []string{}
	}
	var out []string
	for _, sessions := range users {
		for sid := range sessions {
			out = append(out, sid)
		}
	}
	return out
}

// Snapshot returns the member list and the session fan-out list of a room
// from a single read of the map, so an announcement built from it names
// exactly the users whose sessions receive it.
func (t *Tracker) Snapshot(roomID string) (members, sessions []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.membersLocked(roomID), t.sessionsLocked(roomID)
}

// DropSession removes a session from every room it joined and reports, per
// room, whether the owning user fully left. Used by the disconnect cascade;
// cleanup is session-scoped, so a user's other tabs stay present.
func (t *Tracker) DropSession(sessionID string) []Departure {
	t.mu.Lock()
	defer t.mu.Unlock()

	roomsOfSession, ok := t.bySession[sessionID]
	if !ok {
		return nil
	}

	departures := make([]Departure, 0, len(roomsOfSession))
	for roomID, userID := range roomsOfSession {
		gone := t.leaveLocked(roomID, userID, sessionID)
		departures = append(departures, Departure{Room: roomID, UserID: userID, UserGone: gone})
	}
	return departures
}

// RoomCount returns the number of rooms with at least one present user.
func (t *Tracker) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
