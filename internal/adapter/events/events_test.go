package events

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent("sale.completed", map[string]string{"sale_id": "s1"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "sale.completed", ev.Type)
	assert.Equal(t, Version, ev.Version)
	assert.False(t, ev.Time.IsZero())
	assert.Equal(t, "s1", ev.Payload["sale_id"])
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	require.NoError(t, p.Publish(context.Background(), "stock.low", map[string]any{"sku": "ABC", "stock": 3}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "stock.low", line["event_type"])
	assert.Equal(t, "event published", line["message"])
	payload, ok := line["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ABC", payload["sku"])
}

func TestLogPublisher_UnmarshalablePayload(t *testing.T) {
	p := NewLogPublisher(zerolog.Nop())
	err := p.Publish(context.Background(), "sale.failed", make(chan int))
	assert.Error(t, err)
}

func TestRabbitPublisher(t *testing.T) {
	url := os.Getenv("RABBIT_URL")
	if url == "" {
		t.Skip("RABBIT_URL not set")
	}
	p, err := Connect(url)
	if err != nil {
		t.Skipf("RabbitMQ not available: %v", err)
	}
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), "sale.completed", map[string]string{"sale_id": "s1"}))
}
