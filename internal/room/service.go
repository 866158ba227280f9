package room

import (
	"context"
	"log"
)

// Authorizer decides whether a user may join a conversation's live room.
// Implementations must be fail-closed: any uncertainty means no.
type Authorizer interface {
	CanJoin(ctx context.Context, userID, conversationID string) bool
}

// ParticipantReader is the slice of the persistent store the authorizer
// consumes: an active-participant membership check.
type ParticipantReader interface {
	IsActiveParticipant(ctx context.Context, userID, conversationID string) (bool, error)
}

// StoreAuthorizer authorizes joins against the persisted participant list.
// A failed store query is treated as "not authorized", never surfaced.
type StoreAuthorizer struct {
	store ParticipantReader
}

// NewStoreAuthorizer creates an Authorizer backed by the persistent store.
func NewStoreAuthorizer(store ParticipantReader) *StoreAuthorizer {
	return &StoreAuthorizer{store: store}
}

// CanJoin reports whether (user, conversation) has an active participant
// record. Store errors fail closed and are logged.
func (a *StoreAuthorizer) CanJoin(ctx context.Context, userID, conversationID string) bool {
	ok, err := a.store.IsActiveParticipant(ctx, userID, conversationID)
	if err != nil {
		log.Printf("room: participant check failed user=%s conv=%s: %v (denying)",
			userID, conversationID, err)
		return false
	}
	return ok
}

// Service combines the authorizer and the tracker into the join contract:
// authorization is re-checked on every join attempt because durable
// membership can change between sessions.
type Service struct {
	auth    Authorizer
	tracker *Tracker
}

// NewService creates a Service over the given authorizer and tracker.
func NewService(auth Authorizer, tracker *Tracker) *Service {
	return &Service{auth: auth, tracker: tracker}
}

// Join admits a session into a conversation's live room. On rejection no
// state changes and the member snapshot reflects the untouched room; the
// caller is responsible for reporting the rejection to the originating
// session only.
func (s *Service) Join(ctx context.Context, conversationID, userID, sessionID string) (bool, []string) {
	if !s.auth.CanJoin(ctx, userID, conversationID) {
		return false, s.tracker.Members(conversationID)
	}
	return true, s.tracker.add(conversationID, userID, sessionID)
}

// Tracker exposes the underlying tracker for reads and leave/drop paths.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}
