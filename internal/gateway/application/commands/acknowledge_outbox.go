package commands

import (
	"context"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// AcknowledgeOutboxCommand wires acknowledge_outbox.
type AcknowledgeOutboxCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// AcknowledgeOutboxRequest is the transport-agnostic input.
type AcknowledgeOutboxRequest struct {
	Account        string
	BearerToken    string
	EventID        string
	IdempotencyKey string
}

func (c AcknowledgeOutboxCommand) Execute(ctx context.Context, req AcknowledgeOutboxRequest) (ports.AcknowledgeOutboxResult, error) {
	logger := application.ResolveLogger(c.Logger)

	result, err := c.Store.AcknowledgeOutbox(ctx, ports.AcknowledgeOutboxInput{
		Account:        req.Account,
		BearerToken:    req.BearerToken,
		EventID:        req.EventID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("acknowledge outbox failed",
			"event", "gateway_acknowledge_outbox_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"event_id", req.EventID,
			"error", err.Error(),
		)
		return ports.AcknowledgeOutboxResult{}, err
	}
	return result, nil
}
