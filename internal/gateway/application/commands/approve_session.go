package commands

import (
	"context"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// ApproveSessionCommand wires both approve_session_by_fingerprint and
// approve_session_by_secret: the admin dispatcher and HTTP admin endpoint
// both resolve to this one command.
type ApproveSessionCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// ApproveByFingerprintRequest is the transport-agnostic input for the
// fingerprint-keyed approval path.
type ApproveByFingerprintRequest struct {
	Account            string
	SessionID          string
	AuthKeyFingerprint string
	ApprovedBy         string
	IdempotencyKey     string
}

// ApproveBySecretRequest is the transport-agnostic input for the
// secret-keyed approval path.
type ApproveBySecretRequest struct {
	Account        string
	SessionID      string
	Secret         string
	IdempotencyKey string
}

func (c ApproveSessionCommand) ExecuteByFingerprint(ctx context.Context, req ApproveByFingerprintRequest) (ports.PromotionResponse, error) {
	logger := application.ResolveLogger(c.Logger)

	result, err := c.Store.ApproveByFingerprint(ctx, ports.ApproveByFingerprintInput{
		Account:            req.Account,
		SessionID:          req.SessionID,
		AuthKeyFingerprint: req.AuthKeyFingerprint,
		ApprovedBy:         req.ApprovedBy,
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("approve session by fingerprint failed",
			"event", "gateway_approve_session_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"session_id", req.SessionID,
			"error", err.Error(),
		)
		return ports.PromotionResponse{}, err
	}
	logger.Info("approve session by fingerprint completed",
		"event", "gateway_approve_session_completed",
		"module", "gateway",
		"layer", "application",
		"account", req.Account,
		"session_id", req.SessionID,
		"status", result.Status,
	)
	return result, nil
}

func (c ApproveSessionCommand) ExecuteBySecret(ctx context.Context, req ApproveBySecretRequest) (ports.PromotionResponse, error) {
	logger := application.ResolveLogger(c.Logger)

	result, err := c.Store.ApproveBySecret(ctx, ports.ApproveBySecretInput{
		Account:        req.Account,
		SessionID:      req.SessionID,
		Secret:         req.Secret,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("approve session by secret failed",
			"event", "gateway_approve_session_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"session_id", req.SessionID,
			"error", err.Error(),
		)
		return ports.PromotionResponse{}, err
	}
	return result, nil
}
