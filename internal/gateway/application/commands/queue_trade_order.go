package commands

import (
	"context"
	"log/slog"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	"github.com/ngotraders/kopitra/internal/gateway/domain/services"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// QueueTradeOrderCommand wires the C9 normalizer to queue_outbox_event:
// the trade-order surface is sugar over the same enqueue path.
type QueueTradeOrderCommand struct {
	Store  ports.Store
	Logger *slog.Logger
}

// QueueTradeOrderRequest is the transport-agnostic input.
type QueueTradeOrderRequest struct {
	Account        string
	SessionID      string
	Order          entities.TradeOrderRequest
	IdempotencyKey string
}

func (c QueueTradeOrderCommand) Execute(ctx context.Context, req QueueTradeOrderRequest) (ports.EnqueueResult, error) {
	logger := application.ResolveLogger(c.Logger)

	// commandId is derived from the account, session id and idempotency
	// key, not minted fresh per call: a genuine retry under a stable
	// idempotency key must
	// normalize to the same payload, or it hashes differently on replay
	// and the ledger reports a conflict instead of replaying.
	commandID := services.TradeOrderCommandID(req.Account, req.SessionID, req.IdempotencyKey)

	enqueueReq, err := services.NormalizeTradeOrder(req.Order, commandID)
	if err != nil {
		logger.Warn("trade order normalization failed",
			"event", "gateway_queue_trade_order_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"session_id", req.SessionID,
			"command_type", req.Order.CommandType,
			"error", err.Error(),
		)
		return ports.EnqueueResult{}, err
	}

	result, err := c.Store.QueueOutboxEvent(ctx, ports.QueueOutboxEventInput{
		Account:        req.Account,
		SessionID:      req.SessionID,
		EventType:      enqueueReq.EventType,
		Payload:        enqueueReq.Payload,
		RequiresAck:    enqueueReq.RequiresAck,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		logger.Warn("queue trade order failed",
			"event", "gateway_queue_trade_order_failed",
			"module", "gateway",
			"layer", "application",
			"account", req.Account,
			"session_id", req.SessionID,
			"error", err.Error(),
		)
		return ports.EnqueueResult{}, err
	}
	return result, nil
}
