package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"github.com/parley/chat-app/internal/metrics"
	"github.com/parley/chat-app/internal/moderation"
	"github.com/parley/chat-app/internal/protocol"
	"github.com/parley/chat-app/internal/room"
	"github.com/parley/chat-app/internal/store"
	"github.com/parley/chat-app/internal/summary"
)

// Content limits enforced before persistence.
const (
	MaxContentBytes = 4096 // hard cap on raw payload size
	MaxContentChars = 2000 // user-facing character limit for text messages
)

// allowedMessageTypes is the set of accepted messageType values. An empty
// messageType defaults to "text".
var allowedMessageTypes = map[string]struct{}{
	"text":  {},
	"image": {},
	"video": {},
	"audio": {},
	"file":  {},
}

// MessageStore is the persistence surface the relay needs. *store.Store
// satisfies this; tests substitute a fake with failure injection.
type MessageStore interface {
	CreateMessage(ctx context.Context, conversationID, senderID, messageType, content string) (*store.Message, error)
	GetMessage(ctx context.Context, messageID string) (*store.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	UpdateLastMessage(ctx context.Context, conversationID string, msg *store.Message) error
}

// ModerationPublisher submits message text for async review. The NATS client
// satisfies this; it is optional and best-effort.
type ModerationPublisher interface {
	PublishModerationRequest(data []byte) error
}

// MessageRelay persists chat messages and fans them out to the live room.
// Persistence gates delivery: a message that fails to persist is reported to
// the sender only and never broadcast, so recipients never see a message the
// history will not contain.
type MessageRelay struct {
	store     MessageStore
	rooms     *room.Tracker
	sender    Sender
	summaries *summary.Cache      // optional, best-effort
	moderator ModerationPublisher // optional, best-effort
}

// NewMessageRelay wires a MessageRelay. summaries and moderator may be nil.
func NewMessageRelay(st MessageStore, rooms *room.Tracker, sender Sender, summaries *summary.Cache, moderator ModerationPublisher) *MessageRelay {
	return &MessageRelay{
		store:     st,
		rooms:     rooms,
		sender:    sender,
		summaries: summaries,
		moderator: moderator,
	}
}

// Send validates, persists, and broadcasts one chat message. The sender
// session receives messageError instead of a broadcast when validation or
// persistence fails. The returned error is for logging only; all client
// replies have already been sent.
func (r *MessageRelay) Send(ctx context.Context, sessionID string, msg protocol.SendMessageMsg) error {
	start := time.Now()

	msgType := msg.MessageType
	if msgType == "" {
		msgType = "text"
	}
	if err := validateContent(msg.Content, msgType); err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		send(r.sender, sessionID, protocol.TypeMessageError, protocol.MessageErrorMsg{Error: err.Error()})
		return err
	}

	stored, err := r.store.CreateMessage(ctx, msg.ConversationID, msg.SenderID, msgType, msg.Content)
	if err != nil {
		// No broadcast and no summary update for unpersisted messages.
		metrics.MessagesTotal.WithLabelValues("persist_failed").Inc()
		send(r.sender, sessionID, protocol.TypeMessageError, protocol.MessageErrorMsg{Error: "failed to save message"})
		return err
	}

	// Summary maintenance is best-effort: the message is already durable.
	if err := r.store.UpdateLastMessage(ctx, msg.ConversationID, stored); err != nil {
		log.Printf("relay: update last message conv=%s: %v", msg.ConversationID, err)
	}
	if r.summaries != nil {
		last := summary.LastMessage{
			MessageID: stored.ID,
			Text:      stored.Content,
			Type:      stored.MessageType,
			SenderID:  stored.SenderID,
			Ts:        stored.CreatedAt.Unix(),
		}
		if err := r.summaries.Set(ctx, msg.ConversationID, last); err != nil {
			log.Printf("relay: summary cache conv=%s: %v", msg.ConversationID, err)
		}
	}

	sessions := r.rooms.Sessions(msg.ConversationID)

	// The broadcast includes the sender's own sessions; clientMessageId is
	// echoed so the sender can reconcile its optimistic copy.
	fanOut(r.sender, sessions, "", protocol.TypeNewMessage, protocol.NewMessageMsg{
		ID:              stored.ID,
		ConversationID:  stored.ConversationID,
		SenderID:        stored.SenderID,
		MessageType:     stored.MessageType,
		Content:         stored.Content,
		Status:          stored.Status,
		CreatedAt:       stored.CreatedAt.Unix(),
		ClientMessageID: msg.ClientMessageID,
	})
	metrics.BroadcastsTotal.WithLabelValues(protocol.TypeNewMessage).Inc()

	// Sending a message implicitly ends any in-progress typing.
	fanOut(r.sender, sessions, sessionID, protocol.TypeUserStoppedTyping, protocol.UserStoppedTypingMsg{
		UserID: stored.SenderID,
	})

	r.publishForReview(sessionID, stored)

	metrics.MessagesTotal.WithLabelValues("relayed").Inc()
	metrics.SendLatency.Observe(time.Since(start).Seconds())
	return nil
}

// Delete removes a message on behalf of its sender and broadcasts the
// deletion to the live room. Only the original sender may delete.
func (r *MessageRelay) Delete(ctx context.Context, sessionID string, msg protocol.DeleteMessageMsg) error {
	stored, err := r.store.GetMessage(ctx, msg.MessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			send(r.sender, sessionID, protocol.TypeDeleteMessageError, protocol.DeleteMessageErrorMsg{Error: "message not found"})
		} else {
			send(r.sender, sessionID, protocol.TypeDeleteMessageError, protocol.DeleteMessageErrorMsg{Error: "failed to delete message"})
		}
		return err
	}

	if stored.SenderID != msg.UserID {
		send(r.sender, sessionID, protocol.TypeDeleteMessageError, protocol.DeleteMessageErrorMsg{Error: "only the sender can delete a message"})
		return errors.New("relay: delete by non-sender")
	}

	if err := r.store.DeleteMessage(ctx, msg.MessageID); err != nil {
		send(r.sender, sessionID, protocol.TypeDeleteMessageError, protocol.DeleteMessageErrorMsg{Error: "failed to delete message"})
		return err
	}

	// Drop a now-stale cached summary. Best-effort.
	if r.summaries != nil {
		if last, err := r.summaries.Get(ctx, stored.ConversationID); err == nil && last != nil && last.MessageID == stored.ID {
			if err := r.summaries.Delete(ctx, stored.ConversationID); err != nil {
				log.Printf("relay: summary invalidate conv=%s: %v", stored.ConversationID, err)
			}
		}
	}

	fanOut(r.sender, r.rooms.Sessions(stored.ConversationID), "", protocol.TypeMessageDeleted, protocol.MessageDeletedMsg{
		MessageID: stored.ID,
		DeletedBy: msg.UserID,
	})
	metrics.BroadcastsTotal.WithLabelValues(protocol.TypeMessageDeleted).Inc()
	return nil
}

// publishForReview submits the delivered message for async moderation.
// Failures are logged only: review is advisory and never blocks delivery.
func (r *MessageRelay) publishForReview(sessionID string, stored *store.Message) {
	if r.moderator == nil || stored.MessageType != "text" {
		return
	}

	req := moderation.ModerationRequest{
		SessionID:      sessionID,
		ConversationID: stored.ConversationID,
		MessageID:      stored.ID,
		Text:           stored.Content,
		Ts:             stored.CreatedAt.Unix(),
	}
	data, err := json.Marshal(req)
	if err != nil {
		log.Printf("relay: marshal moderation request: %v", err)
		return
	}
	if err := r.moderator.PublishModerationRequest(data); err != nil {
		log.Printf("relay: publish moderation request: %v", err)
	}
}

// validateContent enforces the message content limits.
func validateContent(content, msgType string) error {
	if _, ok := allowedMessageTypes[msgType]; !ok {
		return errors.New("unsupported message type")
	}
	if content == "" {
		return errors.New("message content is empty")
	}
	if len(content) > MaxContentBytes {
		return errors.New("message too large")
	}
	if msgType == "text" && utf8.RuneCountInString(content) > MaxContentChars {
		return errors.New("message too long")
	}
	return nil
}
