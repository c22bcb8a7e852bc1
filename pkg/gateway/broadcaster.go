package gateway

import (
	"github.com/rs/zerolog"
)

// EventBroadcaster sends server-wide events (ticks, shutdown) to every
// authenticated client. Session chunks go only to subscribers.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends msg to all authenticated clients and returns how many
// writes succeeded.
func (b *EventBroadcaster) Broadcast(msg EventMessage) int {
	clients := b.clients.Authenticated()
	if len(clients) == 0 {
		b.logger.Debug().Str("event", msg.Event).Msg("No authenticated clients to broadcast to")
		return 0
	}

	successCount := 0
	for _, client := range clients {
		if err := client.Send(msg); err != nil {
			b.logger.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("event", msg.Event).
				Msg("Failed to broadcast to client")
			continue
		}
		successCount++
	}

	b.logger.Debug().
		Str("event", msg.Event).
		Int("success", successCount).
		Int("failed", len(clients)-successCount).
		Msg("Event broadcast complete")
	return successCount
}
