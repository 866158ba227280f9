// Package registry tracks the live mapping between session ids and the
// authenticated users they belong to. It is the in-process authority for
// "which user is reachable on which connection"; the Redis session mirror
// exists for operational introspection only.
package registry

import (
	"log"
	"sync"
)

// Registry is a thread-safe session <-> user registry. Sessions are created
// unbound and acquire a user id on the first successful Identify. A user may
// own any number of live sessions (multiple tabs/devices).
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]string              // session_id -> user_id ("" until identified)
	byUser map[string]map[string]struct{} // user_id -> set of session_ids
}

// New creates an empty Registry ready for use.
func New() *Registry {
	return &Registry{
		byID:   make(map[string]string),
		byUser: make(map[string]map[string]struct{}),
	}
}

// OnOpen records a new unbound session. Calling it twice for the same id is
// a no-op after the first call.
func (r *Registry) OnOpen(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[sessionID]; exists {
		log.Printf("registry: duplicate open for session=%s ignored", sessionID)
		return
	}
	r.byID[sessionID] = ""
}

// Identify binds a user id to a session. Only the first identification for a
// session is honored; later calls for an already-bound session are logged and
// return false. Identifying an unknown session is a logged no-op.
func (r *Registry) Identify(sessionID, userID string) bool {
	if userID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.byID[sessionID]
	if !exists {
		log.Printf("registry: identify for unknown session=%s ignored", sessionID)
		return false
	}
	if current != "" {
		log.Printf("registry: session=%s already bound to user=%s, rebind to %s ignored",
			sessionID, current, userID)
		return false
	}

	r.byID[sessionID] = userID
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[sessionID] = struct{}{}
	return true
}

// OnClose removes a session and returns the user id it was bound to, or ""
// if the session was unbound or unknown. Closing an unknown session is a
// logged no-op.
func (r *Registry) OnClose(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, exists := r.byID[sessionID]
	if !exists {
		log.Printf("registry: close for unknown session=%s ignored", sessionID)
		return ""
	}
	delete(r.byID, sessionID)

	if userID != "" {
		if set, ok := r.byUser[userID]; ok {
			delete(set, sessionID)
			if len(set) == 0 {
				delete(r.byUser, userID)
			}
		}
	}
	return userID
}

// Resolve returns the user id bound to a session. The second return value is
// false when the session is unknown or not yet identified.
func (r *Registry) Resolve(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, exists := r.byID[sessionID]
	if !exists || userID == "" {
		return "", false
	}
	return userID, true
}

// SessionsForUser returns a snapshot of all live session ids bound to the
// given user. Returns an empty slice for unknown users.
func (r *Registry) SessionsForUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byUser[userID]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
