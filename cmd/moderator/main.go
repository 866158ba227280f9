package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/parley/chat-app/internal/messaging"
	"github.com/parley/chat-app/internal/moderation"
)

func main() {
	log.Println("Starting Parley moderation service...")

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "parley-moderator"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Initialize content filter.
	filter := moderation.NewFilter()

	// Subscribe to moderation check requests. Clean messages produce no
	// result: the WS server only hears about flagged content.
	err = natsClient.SubscribeModerationCheck(func(data []byte) {
		var req moderation.ModerationRequest
		if err := json.Unmarshal(data, &req); err != nil {
			log.Printf("[moderator] failed to unmarshal request: %v", err)
			return
		}

		result := filter.Check(req.Text)
		if !result.Flagged {
			log.Printf("[moderator] CLEAN session=%s conv=%s msg=%s",
				req.SessionID, req.ConversationID, req.MessageID)
			return
		}

		log.Printf("[moderator] FLAGGED session=%s conv=%s msg=%s reason=%s term=%q",
			req.SessionID, req.ConversationID, req.MessageID, result.Reason, result.Term)

		resp := moderation.ModerationResult{
			SessionID:      req.SessionID,
			ConversationID: req.ConversationID,
			MessageID:      req.MessageID,
			Flagged:        true,
			Reason:         result.Reason,
			Term:           result.Term,
		}
		respData, err := json.Marshal(resp)
		if err != nil {
			log.Printf("[moderator] failed to marshal result: %v", err)
			return
		}
		if err := natsClient.PublishModerationResult(req.SessionID, respData); err != nil {
			log.Printf("[moderator] failed to publish result: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to moderation checks: %v", err)
	}

	log.Printf("Parley moderation service running")
	log.Printf("  nats_url: %s", natsConfig.URL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}
