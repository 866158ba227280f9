// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator that
// doubles as the logical event name.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeIdentify      = "identify"
	TypeJoinRoom      = "joinRoom"
	TypeLeaveRoom     = "leaveRoom"
	TypeSendMessage   = "sendMessage"
	TypeDeleteMessage = "deleteMessage"
	TypeTyping        = "typing"
	TypeJoinCallRoom  = "join-room"
	TypeLeaveCallRoom = "leave-room"
	TypeOffer         = "webrtc-offer"
	TypeAnswer        = "webrtc-answer"
	TypeIceCandidate  = "webrtc-ice-candidate"
	TypePing          = "ping"
)

// Server -> Client message types. The webrtc-* constants are shared: the
// relay forwards them under the same event name they arrived on.
const (
	TypeSessionCreated     = "sessionCreated"
	TypeIdentified         = "identified"
	TypeRoomJoined         = "roomJoined"
	TypeUserJoined         = "userJoined"
	TypeUserLeft           = "userLeft"
	TypeNewMessage         = "newMessage"
	TypeMessageDeleted     = "messageDeleted"
	TypeUserStoppedTyping  = "userStoppedTyping"
	TypeUserTyping         = "typing"
	TypeJoinRoomError      = "joinRoomError"
	TypeMessageError       = "messageError"
	TypeDeleteMessageError = "deleteMessageError"
	TypeMessageWarning     = "messageWarning"
	TypeCallUserJoined     = "user-joined"
	TypeCallUserLeft       = "user-left"
	TypeRateLimited        = "rateLimited"
	TypeError              = "error"
	TypePong               = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// IdentifyMsg binds the authenticated user id to the current session. Only
// the first successful identify for a session is honored.
type IdentifyMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// JoinRoomMsg requests entry into a conversation's live room. The join is
// authorized against the persisted participant list before any presence
// state changes.
type JoinRoomMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// LeaveRoomMsg leaves a conversation's live room.
type LeaveRoomMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// SendMessageMsg submits a chat message for persistence and room fan-out.
// ClientMessageID is an optional client-generated correlation id echoed back
// in the resulting newMessage so the sender can discard its optimistic echo.
type SendMessageMsg struct {
	Type            string `json:"type"`
	ConversationID  string `json:"conversationId"`
	SenderID        string `json:"senderId"`
	MessageType     string `json:"messageType"`
	Content         string `json:"content"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// DeleteMessageMsg asks the server to delete a previously sent message.
type DeleteMessageMsg struct {
	Type           string `json:"type"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// TypingMsg signals transient typing state, scoped either to a conversation
// room (ConversationID set) or to a single target user (Receiver set).
type TypingMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Receiver       string `json:"receiver,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

// JoinCallRoomMsg enters a call room for WebRTC signaling. Call rooms are
// independent of chat-room presence and are never authorized against the
// participant table.
type JoinCallRoomMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// LeaveCallRoomMsg leaves a call room.
type LeaveCallRoomMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// OfferMsg carries a WebRTC offer to a specific target session. The offer
// payload is opaque to the relay.
type OfferMsg struct {
	Type   string          `json:"type"`
	Target string          `json:"target"`
	Offer  json.RawMessage `json:"offer"`
	RoomID string          `json:"roomId,omitempty"`
}

// AnswerMsg carries a WebRTC answer to a specific target session.
type AnswerMsg struct {
	Type   string          `json:"type"`
	Target string          `json:"target"`
	Answer json.RawMessage `json:"answer"`
}

// IceCandidateMsg carries a WebRTC ICE candidate to a specific target session.
type IceCandidateMsg struct {
	Type      string          `json:"type"`
	Target    string          `json:"target"`
	Candidate json.RawMessage `json:"candidate"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent by the server when a new session is established.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// IdentifiedMsg confirms that the session is now bound to a user.
type IdentifiedMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// RoomJoinedMsg is sent to the joining session only, confirming its own join
// with the current live-member snapshot.
type RoomJoinedMsg struct {
	Type        string   `json:"type"`
	RoomID      string   `json:"roomId"`
	OnlineUsers []string `json:"onlineUsers"`
}

// UserJoinedMsg is broadcast to a room when a user becomes present.
type UserJoinedMsg struct {
	Type        string   `json:"type"`
	UserID      string   `json:"userId"`
	OnlineUsers []string `json:"onlineUsers"`
}

// UserLeftMsg is broadcast to a room when a user's last session leaves.
type UserLeftMsg struct {
	Type        string   `json:"type"`
	UserID      string   `json:"userId"`
	OnlineUsers []string `json:"onlineUsers"`
}

// NewMessageMsg is the room broadcast of a successfully persisted message.
type NewMessageMsg struct {
	Type            string `json:"type"`
	ID              string `json:"id"`
	ConversationID  string `json:"conversationId"`
	SenderID        string `json:"senderId"`
	MessageType     string `json:"messageType"`
	Content         string `json:"content"`
	Status          string `json:"status"`
	CreatedAt       int64  `json:"createdAt"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// MessageDeletedMsg is broadcast to a room when a message is deleted.
type MessageDeletedMsg struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	DeletedBy string `json:"deletedBy"`
}

// UserStoppedTypingMsg is broadcast when a user's typing state implicitly
// ends (sending a message ends any in-progress typing).
type UserStoppedTypingMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// UserTypingMsg relays a typing indicator to a room or a target user.
type UserTypingMsg struct {
	Type     string `json:"type"`
	SenderID string `json:"senderId"`
	IsTyping bool   `json:"isTyping"`
}

// JoinRoomErrorMsg is sent to the originating session only when a join is
// rejected. It is never broadcast.
type JoinRoomErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// MessageErrorMsg is sent to the sender only when a message could not be
// persisted. No broadcast happens for such messages.
type MessageErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// DeleteMessageErrorMsg is sent to the requester when a delete is rejected.
type DeleteMessageErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// MessageWarningMsg notifies a sender that a delivered message was flagged
// by the async moderation pass. Advisory only.
type MessageWarningMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Reason         string `json:"reason"`
}

// CallUserJoinedMsg is broadcast to a call room when a new peer joins,
// carrying the session id the peer can be signaled at.
type CallUserJoinedMsg struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}

// CallUserLeftMsg is broadcast to a call room when a peer leaves.
type CallUserLeftMsg struct {
	Type     string `json:"type"`
	SocketID string `json:"socketId"`
}

// OfferRelayMsg is the point-to-point delivery of a WebRTC offer.
type OfferRelayMsg struct {
	Type   string          `json:"type"`
	Offer  json.RawMessage `json:"offer"`
	Sender string          `json:"sender"`
}

// AnswerRelayMsg is the point-to-point delivery of a WebRTC answer.
type AnswerRelayMsg struct {
	Type   string          `json:"type"`
	Answer json.RawMessage `json:"answer"`
	Sender string          `json:"sender"`
}

// IceCandidateRelayMsg is the point-to-point delivery of an ICE candidate.
type IceCandidateRelayMsg struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
	Sender    string          `json:"sender"`
}

// RateLimitedMsg is sent by the server when the client has been rate-limited.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retryAfter"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeIdentify:
		var m IdentifyMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeJoinRoom:
		var m JoinRoomMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveRoom:
		var m LeaveRoomMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeDeleteMessage:
		var m DeleteMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeJoinCallRoom:
		var m JoinCallRoomMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveCallRoom:
		var m LeaveCallRoomMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeOffer:
		var m OfferMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeAnswer:
		var m AnswerMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeIceCandidate:
		var m IceCandidateMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
