// Package events publishes domain events about sales and stock to RabbitMQ,
// or to the log when no broker is configured.
package events

import (
	"time"

	"github.com/google/uuid"
)

const Version = 1

type Event[T any] struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Version int       `json:"version"`
	Time    time.Time `json:"time"`
	Payload T         `json:"payload"`
}

func NewEvent[T any](eventType string, payload T) Event[T] {
	return Event[T]{
		ID:      uuid.NewString(),
		Type:    eventType,
		Version: Version,
		Time:    time.Now().UTC(),
		Payload: payload,
	}
}
