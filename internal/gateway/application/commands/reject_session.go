package commands

import (
	"context"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// RejectSessionCommand wires reject_session.
type RejectSessionCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// RejectSessionRequest is the transport-agnostic input.
type RejectSessionRequest struct {
	Account            string
	SessionID          string
	AuthKeyFingerprint string
	Reason             string
	RejectedBy         string
	IdempotencyKey     string
}

func (c RejectSessionCommand) Execute(ctx context.Context, req RejectSessionRequest) (ports.RejectionResponse, error) {
	logger := application.ResolveLogger(c.Logger)

	result, err := c.Store.RejectSession(ctx, ports.RejectSessionInput{
		Account:            req.Account,
		SessionID:          req.SessionID,
		AuthKeyFingerprint: req.AuthKeyFingerprint,
		Reason:             req.Reason,
		RejectedBy:         req.RejectedBy,
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("reject session failed",
			"event", "gateway_reject_session_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"session_id", req.SessionID,
			"error", err.Error(),
		)
		return ports.RejectionResponse{}, err
	}
	logger.Info("reject session completed",
		"event", "gateway_reject_session_completed",
		"module", "gateway",
		"layer", "application",
		"account", req.Account,
		"session_id", req.SessionID,
		"already_terminated", result.AlreadyTerminated,
	)
	return result, nil
}
