package entities

import (
	"encoding/json"
	"time"
)

// OutboundEvent is one entry in a session's gateway-to-EA event stream.
type OutboundEvent struct {
	ID          string          `json:"id"`
	Sequence    uint64          `json:"sequence"`
	EventType   string          `json:"eventType"`
	Payload     json.RawMessage `json:"payload"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
	RequiresAck bool            `json:"requiresAck"`
}

// OutboxEnqueueRequest is the transport-agnostic input to enqueue_outbox.
type OutboxEnqueueRequest struct {
	EventType   string
	Payload     json.RawMessage
	RequiresAck bool
}
