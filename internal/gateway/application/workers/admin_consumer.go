// Package workers hosts the queue-driven entrypoint for admin commands:
// the same Dispatcher the HTTP admin handler calls, fed from whatever
// message broker the deployment wires in. No broker client is part of this
// repository.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/application/dispatcher"
)

// AdminConsumer decodes one queue message into an admin envelope and
// invokes the dispatcher. It performs no I/O itself: receive/delete
// against the broker happens in the caller, outside any lock, per
// spec.md §5's suspension-point rule.
type AdminConsumer struct {
	Dispatcher dispatcher.Dispatcher
	Logger     *slog.Logger
}

// Handle applies one message body. A nil return means the caller should
// delete/ack the message. A non-nil return is always a *dispatcher.Failure
// (or a decode error); the caller decides whether to dead-letter based on
// its Family.
func (c AdminConsumer) Handle(ctx context.Context, messageID string, body []byte) error {
	logger := application.ResolveLogger(c.Logger)

	var envelope dispatcher.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		logger.Warn("admin message decode failed",
			"event", "gateway_admin_message_decode_failed",
			"module", "gateway",
			"layer", "worker",
			"message_id", messageID,
			"error", err.Error(),
		)
		return &dispatcher.Failure{Family: dispatcher.FamilyApi, Err: err}
	}

	err := c.Dispatcher.Dispatch(ctx, envelope)
	if err == nil {
		return nil
	}

	var failure *dispatcher.Failure
	if errors.As(err, &failure) {
		switch failure.Family {
		case dispatcher.FamilyAdmin:
			logger.Warn("admin command rejected",
				"event", "gateway_admin_command_rejected",
				"module", "gateway",
				"layer", "worker",
				"message_id", messageID,
				"type", envelope.Type,
				"account", failure.Account,
				"session_id", failure.Session,
				"error", failure.Error(),
			)
		case dispatcher.FamilyApi:
			logger.Error("admin command poisoned",
				"event", "gateway_admin_command_poisoned",
				"module", "gateway",
				"layer", "worker",
				"message_id", messageID,
				"type", envelope.Type,
				"account", failure.Account,
				"session_id", failure.Session,
				"error", failure.Error(),
			)
		}
		return failure
	}
	return err
}
