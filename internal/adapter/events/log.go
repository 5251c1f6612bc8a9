package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the structured log. It is used when no broker
// URL is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	ev := NewEvent(routingKey, payload)
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}
	p.log.Info().
		Str("event_id", ev.ID).
		Str("event_type", ev.Type).
		RawJSON("payload", body).
		Msg("event published")
	return nil
}
