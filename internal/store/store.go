// Package store provides PostgreSQL-backed persistence for users,
// conversations, participants, and messages. It is the durable source of
// truth the relay consults for authorization and message persistence; live
// presence never lives here.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Message statuses assigned by the server.
const (
	StatusSent = "sent"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// Message is a persisted chat message. The store is the single writer;
// everything else treats Message values as read-only.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	MessageType    string
	Content        string
	Status         string
	CreatedAt      time.Time
}

// Store wraps the database handle with the operations the relay consumes.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the given DSN and verifies the
// connection before returning.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStore creates a Store over an existing database handle (used by tests).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle for migration running.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateMessage persists a new message with a server-assigned id and
// timestamp and returns the finalized record. This is the only write that
// may fail a send: callers must not broadcast when it errors.
func (s *Store) CreateMessage(ctx context.Context, conversationID, senderID, messageType, content string) (*Message, error) {
	msg := &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		MessageType:    messageType,
		Content:        content,
		Status:         StatusSent,
	}

	const query = `
		INSERT INTO messages (id, conversation_id, sender_id, message_type, status, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.MessageType,
		msg.Status,
		msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert message: %w", err)
	}
	return msg, nil
}

// GetMessage fetches a message by id. Returns ErrNotFound when absent.
func (s *Store) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	const query = `
		SELECT id, conversation_id, sender_id, message_type, status, content, created_at
		FROM messages
		WHERE id = $1`

	var msg Message
	err := s.db.QueryRowContext(ctx, query, messageID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.MessageType,
		&msg.Status,
		&msg.Content,
		&msg.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	return &msg, nil
}

// DeleteMessage removes a message by id. Returns ErrNotFound when no row
// was deleted.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) error {
	const query = `DELETE FROM messages WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, messageID)
	if err != nil {
		return fmt.Errorf("store: delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete message rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastMessage writes the conversation's last-message summary columns.
// Invariant: callers only invoke this for successfully persisted messages,
// so the summary always reflects a message that actually exists.
func (s *Store) UpdateLastMessage(ctx context.Context, conversationID string, msg *Message) error {
	const query = `
		UPDATE conversations
		SET last_message_id = $2,
		    last_message_text = $3,
		    last_message_type = $4,
		    last_message_sender = $5,
		    last_message_timestamp = $6,
		    updated_at = NOW()
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query,
		conversationID,
		msg.ID,
		msg.Content,
		msg.MessageType,
		msg.SenderID,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: update last message: %w", err)
	}
	return nil
}

// IsActiveParticipant reports whether the user has an active participant
// record for the conversation. This is the authorization read consulted on
// every join attempt.
func (s *Store) IsActiveParticipant(ctx context.Context, userID, conversationID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM conversation_participants
			WHERE conversation_id = $1
			  AND user_id = $2
			  AND is_active
		)`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: participant check: %w", err)
	}
	return exists, nil
}

// GetUserIDsForConversation returns all active participant user ids of a
// conversation. This is a fallback read for callers that need the durable
// membership list; the live room tracker remains the presence source.
func (s *Store) GetUserIDsForConversation(ctx context.Context, conversationID string) ([]string, error) {
	const query = `
		SELECT user_id
		FROM conversation_participants
		WHERE conversation_id = $1
		  AND is_active
		ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("store: list participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate participants: %w", err)
	}
	return ids, nil
}

// CreateUser inserts a user row. Used by seeding and tests; the REST
// surface that manages users lives outside this service.
func (s *Store) CreateUser(ctx context.Context, id, username, email string) error {
	const query = `
		INSERT INTO users (id, username, email)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, id, username, email); err != nil {
		return fmt.Errorf("store: insert user: %w", err)
	}
	return nil
}

// CreateConversation inserts a conversation row and returns its id.
func (s *Store) CreateConversation(ctx context.Context, convType, name string) (string, error) {
	id := uuid.New().String()

	const query = `
		INSERT INTO conversations (id, type, name)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, id, convType, name); err != nil {
		return "", fmt.Errorf("store: insert conversation: %w", err)
	}
	return id, nil
}

// AddParticipant records an active participant of a conversation.
func (s *Store) AddParticipant(ctx context.Context, conversationID, userID, role string) error {
	const query = `
		INSERT INTO conversation_participants (conversation_id, user_id, role, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET is_active = TRUE, role = EXCLUDED.role`

	if _, err := s.db.ExecContext(ctx, query, conversationID, userID, role); err != nil {
		return fmt.Errorf("store: insert participant: %w", err)
	}
	return nil
}

// RemoveParticipant deactivates a participant record. Subsequent join
// attempts by that user fail authorization even if they are still present
// in the live room from an earlier session.
func (s *Store) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	const query = `
		UPDATE conversation_participants
		SET is_active = FALSE
		WHERE conversation_id = $1 AND user_id = $2`

	if _, err := s.db.ExecContext(ctx, query, conversationID, userID); err != nil {
		return fmt.Errorf("store: remove participant: %w", err)
	}
	return nil
}
