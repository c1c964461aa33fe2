package commands

import (
	"context"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// DeleteSessionCommand wires delete_session.
type DeleteSessionCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// DeleteSessionRequest is the transport-agnostic input.
type DeleteSessionRequest struct {
	Account        string
	BearerToken    string
	IdempotencyKey string
}

// Execute runs delete_session. Explicit close never emits a ShutdownNotice.
func (c DeleteSessionCommand) Execute(ctx context.Context, req DeleteSessionRequest) error {
	logger := application.ResolveLogger(c.Logger)

	err := c.Store.DeleteSession(ctx, ports.DeleteSessionInput{
		Account:        req.Account,
		BearerToken:    req.BearerToken,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("delete session failed",
			"event", "gateway_delete_session_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
