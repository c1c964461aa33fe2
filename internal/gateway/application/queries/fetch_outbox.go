// Package queries holds the gateway's read-only use cases: fetch_outbox
// and the two supplemented projections (list_sessions,
// preapproval_status). None of these touch the idempotency ledger.
package queries

import (
	"context"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// FetchOutboxQuery wires fetch_outbox.
type FetchOutboxQuery struct {
	Store  ports.Store
	Logger *slog.Logger
}

// FetchOutboxRequest is the transport-agnostic input.
type FetchOutboxRequest struct {
	Account     string
	BearerToken string
	Cursor      uint64
	Limit       int
}

func (q FetchOutboxQuery) Execute(ctx context.Context, req FetchOutboxRequest) (ports.OutboxSnapshot, error) {
	logger := application.ResolveLogger(q.Logger)

	snapshot, err := q.Store.FetchOutbox(ctx, ports.FetchOutboxInput{
		Account:     req.Account,
		BearerToken: req.BearerToken,
		Cursor:      req.Cursor,
		Limit:       req.Limit,
	})
	if err != nil {
		logger.Warn("fetch outbox failed",
			"event", "gateway_fetch_outbox_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"error", err.Error(),
		)
		return ports.OutboxSnapshot{}, err
	}
	return snapshot, nil
}
