package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// PreapproveSessionKeyCommand wires preapprove_session_key.
type PreapproveSessionKeyCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// PreapproveSessionKeyRequest is the transport-agnostic input.
type PreapproveSessionKeyRequest struct {
	Account    string
	AuthMethod entities.AuthMethod
	Secret     string
	ApprovedBy string
	ExpiresAt  *time.Time
}

func (c PreapproveSessionKeyCommand) Execute(ctx context.Context, req PreapproveSessionKeyRequest) error {
	logger := application.ResolveLogger(c.Logger)

	err := c.Store.PreapproveSessionKey(ctx, ports.PreapproveSessionKeyInput{
		Account:    req.Account,
		AuthMethod: req.AuthMethod,
		Secret:     req.Secret,
		ApprovedBy: req.ApprovedBy,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		logger.Warn("preapprove session key failed",
			"event", "gateway_preapprove_session_key_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
