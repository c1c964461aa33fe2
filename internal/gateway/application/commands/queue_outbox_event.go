package commands

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// QueueOutboxEventCommand wires queue_outbox_event.
type QueueOutboxEventCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// QueueOutboxEventRequest is the transport-agnostic input.
type QueueOutboxEventRequest struct {
	Account        string
	SessionID      string
	EventType      string
	Payload        json.RawMessage
	RequiresAck    bool
	IdempotencyKey string
}

func (c QueueOutboxEventCommand) Execute(ctx context.Context, req QueueOutboxEventRequest) (ports.EnqueueResult, error) {
	logger := application.ResolveLogger(c.Logger)

	result, err := c.Store.QueueOutboxEvent(ctx, ports.QueueOutboxEventInput{
		Account:        req.Account,
		SessionID:      req.SessionID,
		EventType:      req.EventType,
		Payload:        req.Payload,
		RequiresAck:    req.RequiresAck,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("queue outbox event failed",
			"event", "gateway_queue_outbox_event_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"session_id", req.SessionID,
			"event_type", req.EventType,
			"error", err.Error(),
		)
		return ports.EnqueueResult{}, err
	}
	return result, nil
}
