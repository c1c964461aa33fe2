package entities

import "encoding/json"

// TradeOrderRequest is the transport-agnostic input to the trade-order
// normalizer (C9). Metadata is opaque, caller-supplied JSON.
type TradeOrderRequest struct {
	CommandType   string          `json:"commandType" validate:"required,oneof=open close modify cancel"`
	Instrument    string          `json:"instrument" validate:"required"`
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
