// Package dispatcher implements C6 AdminCommandDispatcher: the single
// reentry point shared by the synchronous HTTP admin endpoints and the
// asynchronous queue-consumer worker. Both drivers must produce identical
// effects, so both call Dispatch with the same Envelope shape.
package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ngotraders/kopitra/internal/gateway/application"
	"github.com/ngotraders/kopitra/internal/gateway/application/commands"
	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// EnvelopeType is the "type" discriminator of an admin envelope.
type EnvelopeType string

const (
	TypeAuthApproval    EnvelopeType = "authApproval"
	TypeAuthReject      EnvelopeType = "authReject"
	TypeQueueOutboxEvent EnvelopeType = "queueOutboxEvent"
	TypeTradeOrder      EnvelopeType = "tradeOrder"
)

// Envelope is the uniform admin command shape, deserializable from either
// an HTTP admin request body or a queue message body. authKeyHash is
// accepted as a synonym for authKeyFingerprint.
type Envelope struct {
	Type EnvelopeType `json:"type"`

	AccountID string `json:"accountId"`
	SessionID string `json:"sessionId"`

	AuthKeyFingerprint string `json:"authKeyFingerprint"`
	AuthKeyHash        string `json:"authKeyHash"`
	ApprovedBy         string `json:"approvedBy,omitempty"`
	RejectedBy         string `json:"rejectedBy,omitempty"`
	Reason             string `json:"reason,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`

	EventType   string          `json:"eventType,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RequiresAck *bool           `json:"requiresAck,omitempty"`

	entities.TradeOrderRequest

	// IdempotencyKey is supplied by the HTTP admin path (required there);
	// queue-driven envelopes normally omit it and the dispatcher mints a
	// fresh one per call, so a redelivered queue message is not replayed
	// from the ledger (workers.AdminConsumer does no dedup of its own).
	IdempotencyKey string `json:"-"`
}

// Fingerprint resolves authKeyFingerprint, falling back to its authKeyHash
// synonym.
func (e Envelope) Fingerprint() string {
	if e.AuthKeyFingerprint != "" {
		return e.AuthKeyFingerprint
	}
	return e.AuthKeyHash
}

func (e Envelope) requiresAck() bool {
	if e.RequiresAck == nil {
		return true
	}
	return *e.RequiresAck
}

// FailureFamily classifies a Dispatch failure per spec.md §4.6/§7: Admin
// failures are auth/session mismatches surfaced to the caller and dropped
// from a queue as a retriable rejection; Api failures are envelope/session
// contract errors, logged and dropped as permanent poison.
type FailureFamily string

const (
	FamilyAdmin FailureFamily = "admin"
	FamilyApi   FailureFamily = "api"
)

// Failure wraps a Dispatch error with its classification.
type Failure struct {
	Family  FailureFamily
	Account string
	Session string
	Err     error
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// Dispatcher is C6: it owns the four commands an admin envelope can
// resolve to and requires nothing from its caller but a decoded Envelope.
type Dispatcher struct {
	Approve     commands.ApproveSessionCommand
	Reject      commands.RejectSessionCommand
	QueueEvent  commands.QueueOutboxEventCommand
	QueueTrade  commands.QueueTradeOrderCommand
	IDGenerator ports.IDGenerator
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

func (d Dispatcher) recordOutcome(kind string) {
	if d.Metrics != nil {
		d.Metrics.AdminOutcome(kind)
	}
}

// Dispatch routes envelope to the matching command and classifies any
// failure. On success it returns nil.
func (d Dispatcher) Dispatch(ctx context.Context, envelope Envelope) error {
	logger := application.ResolveLogger(d.Logger)

	idempotencyKey := envelope.IdempotencyKey
	if idempotencyKey == "" {
		key, err := d.IDGenerator.NewID(ctx)
		if err != nil {
			d.recordOutcome("api_error")
			return &Failure{Family: FamilyApi, Account: envelope.AccountID, Session: envelope.SessionID, Err: err}
		}
		idempotencyKey = key
	}

	switch envelope.Type {
	case TypeAuthApproval:
		_, err := d.Approve.ExecuteByFingerprint(ctx, commands.ApproveByFingerprintRequest{
			Account:            envelope.AccountID,
			SessionID:          envelope.SessionID,
			AuthKeyFingerprint: envelope.Fingerprint(),
			ApprovedBy:         envelope.ApprovedBy,
			IdempotencyKey:     idempotencyKey,
		})
		if err != nil {
			d.recordOutcome("admin_error")
			return &Failure{Family: FamilyAdmin, Account: envelope.AccountID, Session: envelope.SessionID, Err: err}
		}
		d.recordOutcome("approved")
		logger.Info("admin command applied",
			"event", "gateway_admin_command_applied",
			"module", "gateway",
			"layer", "application",
			"type", envelope.Type,
			"account", envelope.AccountID,
			"session_id", envelope.SessionID,
		)
		return nil

	case TypeAuthReject:
		_, err := d.Reject.Execute(ctx, commands.RejectSessionRequest{
			Account:            envelope.AccountID,
			SessionID:          envelope.SessionID,
			AuthKeyFingerprint: envelope.Fingerprint(),
			Reason:             envelope.Reason,
			RejectedBy:         envelope.RejectedBy,
			IdempotencyKey:     idempotencyKey,
		})
		if err != nil {
			d.recordOutcome("admin_error")
			return &Failure{Family: FamilyAdmin, Account: envelope.AccountID, Session: envelope.SessionID, Err: err}
		}
		d.recordOutcome("rejected")
		logger.Info("admin command applied",
			"event", "gateway_admin_command_applied",
			"module", "gateway",
			"layer", "application",
			"type", envelope.Type,
			"account", envelope.AccountID,
			"session_id", envelope.SessionID,
		)
		return nil

	case TypeQueueOutboxEvent:
		_, err := d.QueueEvent.Execute(ctx, commands.QueueOutboxEventRequest{
			Account:        envelope.AccountID,
			SessionID:      envelope.SessionID,
			EventType:      envelope.EventType,
			Payload:        envelope.Payload,
			RequiresAck:    envelope.requiresAck(),
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			d.recordOutcome("api_error")
			return &Failure{Family: FamilyApi, Account: envelope.AccountID, Session: envelope.SessionID, Err: err}
		}
		return nil

	case TypeTradeOrder:
		_, err := d.QueueTrade.Execute(ctx, commands.QueueTradeOrderRequest{
			Account:        envelope.AccountID,
			SessionID:      envelope.SessionID,
			Order:          envelope.TradeOrderRequest,
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			d.recordOutcome("api_error")
			return &Failure{Family: FamilyApi, Account: envelope.AccountID, Session: envelope.SessionID, Err: err}
		}
		return nil

	default:
		d.recordOutcome("api_error")
		return &Failure{
			Family:  FamilyApi,
			Account: envelope.AccountID,
			Session: envelope.SessionID,
			Err:     errUnknownEnvelopeType(envelope.Type),
		}
	}
}
