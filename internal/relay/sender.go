// Package relay implements the server-side event logic on top of the
// transport: message persistence and fan-out, typing indicators, and WebRTC
// signaling between call-room peers. Relays never own connections; they
// address sessions through a Sender and the room tracker.
package relay

import (
	"log"

	"github.com/parley/chat-app/internal/protocol"
)

// Sender delivers an encoded frame to a single connected session. The
// WebSocket server satisfies this; tests substitute a recorder.
type Sender interface {
	SendMessage(sessionID string, data []byte) error
}

// send encodes a server message and writes it to one session. Failures are
// logged and swallowed: a dead session is cleaned up by the disconnect
// cascade, not by its unsendable frames.
func send(s Sender, sessionID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("relay: encode %s: %v", msgType, err)
		return
	}
	if err := s.SendMessage(sessionID, data); err != nil {
		log.Printf("relay: send %s to %s: %v", msgType, sessionID, err)
	}
}

// fanOut encodes a server message once and writes it to every session in the
// list, skipping the excluded session id if non-empty.
func fanOut(s Sender, sessions []string, exclude, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("relay: encode %s: %v", msgType, err)
		return
	}
	for _, sid := range sessions {
		if sid == exclude {
			continue
		}
		if err := s.SendMessage(sid, data); err != nil {
			log.Printf("relay: send %s to %s: %v", msgType, sid, err)
		}
	}
}
