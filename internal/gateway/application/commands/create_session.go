package commands

import (
	"context"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// CreateSessionCommand wires create_session with structured logging around
// the atomic store operation.
type CreateSessionCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// CreateSessionRequest is the transport-agnostic input.
type CreateSessionRequest struct {
	Account        string
	AuthMethod     entities.AuthMethod
	Secret         string
	IdempotencyKey string
}

// Execute runs create_session, logging start/failure/success the way the
// rest of this codebase's commands do.
func (c CreateSessionCommand) Execute(ctx context.Context, req CreateSessionRequest) (ports.CreatedSession, error) {
	logger := application.ResolveLogger(c.Logger)
	logger.Info("create session started",
		"event", "gateway_create_session_started",
		"module", "gateway",
		"layer", "application",
		"account", req.Account,
		"auth_method", req.AuthMethod,
	)

	result, err := c.Store.CreateSession(ctx, ports.CreateSessionInput{
		Account:        req.Account,
		AuthMethod:     req.AuthMethod,
		Secret:         req.Secret,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("create session failed",
			"event", "gateway_create_session_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"error", err.Error(),
		)
		return ports.CreatedSession{}, err
	}

	logger.Info("create session completed",
		"event", "gateway_create_session_completed",
		"module", "gateway",
		"layer", "application",
		"account", req.Account,
		"session_id", result.SessionID,
		"status", result.Status,
	)
	return result, nil
}
