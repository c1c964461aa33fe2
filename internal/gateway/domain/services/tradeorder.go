package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	gatewayerrors "github.com/ngotraders/kopitra/internal/gateway/domain/errors"
)

// defaultOrderType is applied to "open" and "close" commands that omit one.
const defaultOrderType = "market"

// TradeOrderCommandID derives the commandId embedded in an OrderCommand
// payload from (account, session, idempotency key) instead of minting one
// per call: a retry under the same idempotency key must normalize to an
// identical payload, or the replay ledger hashes it as a different request.
// The result is a lowercase hex sha256 digest, not a UUID, and it is the
// same for every call with the same three values.
func TradeOrderCommandID(account, sessionID, idempotencyKey string) string {
	h := sha256.New()
	h.Write([]byte("trade_order:"))
	h.Write([]byte(account))
	h.Write([]byte{':'})
	h.Write([]byte(sessionID))
	h.Write([]byte{':'})
	h.Write([]byte(idempotencyKey))
	return hex.EncodeToString(h.Sum(nil))
}

// orderCommandPayload is the wire shape of the OrderCommand outbound event
// body (C9), carrying commandId alongside the caller's normalized fields.
type orderCommandPayload struct {
	CommandID     string          `json:"commandId"`
	CommandType   string          `json:"commandType"`
	Instrument    string          `json:"instrument"`
	OrderType     string          `json:"orderType,omitempty"`
	Side          string          `json:"side,omitempty"`
	Volume        *float64        `json:"volume,omitempty"`
	Price         *float64        `json:"price,omitempty"`
	StopLoss      *float64        `json:"stopLoss,omitempty"`
	TakeProfit    *float64        `json:"takeProfit,omitempty"`
	TimeInForce   string          `json:"timeInForce,omitempty"`
	PositionID    string          `json:"positionId,omitempty"`
	ClientOrderID string          `json:"clientOrderId,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// NormalizeTradeOrder validates and normalizes a trade-order request into
// the OutboxEnqueueRequest for an OrderCommand event: it defaults orderType
// to "market" for open/close commands, requires positionId for close, and
// embeds the supplied commandID as commandId (it mints no id itself).
func NormalizeTradeOrder(req entities.TradeOrderRequest, commandID string) (entities.OutboxEnqueueRequest, error) {
	if req.CommandType == "close" && req.PositionID == "" {
		return entities.OutboxEnqueueRequest{}, gatewayerrors.ErrPositionIDRequired
	}

	orderType := req.OrderType
	if orderType == "" && (req.CommandType == "open" || req.CommandType == "close") {
		orderType = defaultOrderType
	}

	payload := orderCommandPayload{
		CommandID:     commandID,
		CommandType:   req.CommandType,
		Instrument:    req.Instrument,
		OrderType:     orderType,
		Side:          req.Side,
		Volume:        req.Volume,
		Price:         req.Price,
		StopLoss:      req.StopLoss,
		TakeProfit:    req.TakeProfit,
		TimeInForce:   req.TimeInForce,
		PositionID:    req.PositionID,
		ClientOrderID: req.ClientOrderID,
		Metadata:      req.Metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return entities.OutboxEnqueueRequest{}, gatewayerrors.ErrInternal
	}

	return entities.OutboxEnqueueRequest{
		EventType:   "OrderCommand",
		Payload:     body,
		RequiresAck: true,
	}, nil
}
