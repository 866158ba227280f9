package moderation

// ModerationRequest is published to moderation.check by the WS server
// after a message is relayed, for async content review.
type ModerationRequest struct {
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Text           string `json:"text"`
	Ts             int64  `json:"ts"`
}

// ModerationResult is published back to the WS server with the review outcome.
// Results are advisory: the message has already been delivered, so a flagged
// result produces a warning to the sender rather than a retraction.
type ModerationResult struct {
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Flagged        bool   `json:"flagged"`
	Reason         string `json:"reason"`
	Term           string `json:"term"`
}
