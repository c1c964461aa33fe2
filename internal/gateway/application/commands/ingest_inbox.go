package commands

import (
	"context"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// IngestInboxCommand wires ingest_inbox.
type IngestInboxCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// IngestInboxRequest is the transport-agnostic input.
type IngestInboxRequest struct {
	Account        string
	BearerToken    string
	Events         []entities.InboxEvent
	IdempotencyKey string
}

// Execute runs ingest_inbox. A terminated session fails the call and
// leaves no idempotency entry, so a retry after re-approval still fails.
func (c IngestInboxCommand) Execute(ctx context.Context, req IngestInboxRequest) (ports.IngestInboxResult, error) {
	logger := application.ResolveLogger(c.Logger)

	result, err := c.Store.IngestInbox(ctx, ports.IngestInboxInput{
		Account:        req.Account,
		BearerToken:    req.BearerToken,
		Events:         req.Events,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("ingest inbox failed",
			"event", "gateway_ingest_inbox_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"batch_size", len(req.Events),
			"error", err.Error(),
		)
		return ports.IngestInboxResult{}, err
	}
	return result, nil
}
