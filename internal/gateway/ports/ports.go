// Package ports defines the gateway core's stable boundaries, exactly the
// way Solomon's authorization-service separates domain/application from
// adapters: the application and transport layers depend only on these
// interfaces, never on internal/gateway/adapters/memory directly.
package ports

import (
	"context"
	"time"

	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
)

// Clock abstracts wall-clock time so entities and the store stay
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for session ids, session tokens,
// outbox/inbox event ids, and the idempotency keys the admin dispatcher
// mints for envelopes that arrive without one.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Metrics is the optional observability port described in SPEC_FULL.md
// §2.5. A nil Metrics is valid everywhere; callers (memory.Store,
// dispatcher.Dispatcher) check for nil before each call.
type Metrics interface {
	SessionCreated()
	SessionPreempted()
	SessionTerminated(reason string)
	OutboxEnqueued()
	OutboxAcknowledged()
	IdempotencyHit(operation string)
	AdminOutcome(kind string)
}

// CreateSessionInput is the validated input to Store.CreateSession.
type CreateSessionInput struct {
	Account        string
	AuthMethod     entities.AuthMethod
	Secret         string
	IdempotencyKey string
}

// CreatedSession is the response body described in spec.md §4.5/§6.
type CreatedSession struct {
	SessionID                  string
	SessionToken               string
	Status                     entities.Status
	AuthMethod                 entities.AuthMethod
	Pending                    bool
	CreatedAt                  time.Time
	LastHeartbeatAt            *time.Time
	PreviousSessionTerminated  *string
}

// IngestInboxInput is the validated input to Store.IngestInbox.
type IngestInboxInput struct {
	Account        string
	BearerToken    string
	Events         []entities.InboxEvent
	IdempotencyKey string
}

// IngestInboxResult is the response body for ingest_inbox.
type IngestInboxResult struct {
	Accepted       int
	PendingSession bool
}

// FetchOutboxInput is the validated input to Store.FetchOutbox.
type FetchOutboxInput struct {
	Account     string
	BearerToken string
	Cursor      uint64
	Limit       int
}

// OutboxSnapshot is the response body for fetch_outbox.
type OutboxSnapshot struct {
	SessionID     string
	Pending       bool
	Events        []entities.OutboundEvent
	RetryAfterMs  int
}

// AcknowledgeOutboxInput is the validated input to Store.AcknowledgeOutbox.
type AcknowledgeOutboxInput struct {
	Account        string
	BearerToken    string
	EventID        string
	IdempotencyKey string
}

// AcknowledgeOutboxResult is the response body for acknowledge_outbox.
type AcknowledgeOutboxResult struct {
	AcknowledgedEventID   string
	RemainingOutboxDepth  int
}

// ApproveByFingerprintInput is the validated input to Store.ApproveByFingerprint.
type ApproveByFingerprintInput struct {
	Account            string
	SessionID          string
	AuthKeyFingerprint string
	ApprovedBy         string
	IdempotencyKey     string
}

// ApproveBySecretInput is the validated input to Store.ApproveBySecret.
type ApproveBySecretInput struct {
	Account        string
	SessionID      string
	Secret         string
	IdempotencyKey string
}

// PromotionResponse is the response body for either approve_session_* operation.
type PromotionResponse struct {
	SessionID string
	Status    entities.Status
	Pending   bool
	Message   string
}

// RejectSessionInput is the validated input to Store.RejectSession.
type RejectSessionInput struct {
	Account            string
	SessionID          string
	AuthKeyFingerprint string
	Reason             string
	RejectedBy         string
	IdempotencyKey     string
}

// RejectionResponse is the response body for reject_session.
type RejectionResponse struct {
	SessionID         string
	AlreadyTerminated bool
}

// QueueOutboxEventInput is the validated input to Store.QueueOutboxEvent.
type QueueOutboxEventInput struct {
	Account        string
	SessionID      string
	EventType      string
	Payload        []byte
	RequiresAck    bool
	IdempotencyKey string
}

// EnqueueResult is the response body for queue_outbox_event.
type EnqueueResult struct {
	SessionID      string
	EventID        string
	Sequence       uint64
	PendingSession bool
}

// PreapproveSessionKeyInput is the validated input to Store.PreapproveSessionKey.
type PreapproveSessionKeyInput struct {
	Account    string
	AuthMethod entities.AuthMethod
	Secret     string
	ApprovedBy string
	ExpiresAt  *time.Time
}

// DeleteSessionInput is the validated input to Store.DeleteSession.
type DeleteSessionInput struct {
	Account        string
	BearerToken    string
	IdempotencyKey string
}

// SessionSummary is a read-only projection returned by list_sessions
// (SPEC_FULL.md §4 supplemented operation).
type SessionSummary struct {
	SessionID       string
	Status          entities.Status
	AuthMethod      entities.AuthMethod
	CreatedAt       time.Time
	LastHeartbeatAt *time.Time
	OutboxDepth     int
	InboxDepth      int
}

// Store is the gateway core's single authoritative facade (C5
// SessionManager, fronting C3 AccountSessions and C4 IdempotencyLedger).
// Every mutating method is serialized under one exclusive gate per
// SPEC_FULL.md §5; see adapters/memory/store.go.
type Store interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (CreatedSession, error)
	DeleteSession(ctx context.Context, in DeleteSessionInput) error
	IngestInbox(ctx context.Context, in IngestInboxInput) (IngestInboxResult, error)
	FetchOutbox(ctx context.Context, in FetchOutboxInput) (OutboxSnapshot, error)
	AcknowledgeOutbox(ctx context.Context, in AcknowledgeOutboxInput) (AcknowledgeOutboxResult, error)
	ApproveByFingerprint(ctx context.Context, in ApproveByFingerprintInput) (PromotionResponse, error)
	ApproveBySecret(ctx context.Context, in ApproveBySecretInput) (PromotionResponse, error)
	RejectSession(ctx context.Context, in RejectSessionInput) (RejectionResponse, error)
	QueueOutboxEvent(ctx context.Context, in QueueOutboxEventInput) (EnqueueResult, error)
	PreapproveSessionKey(ctx context.Context, in PreapproveSessionKeyInput) error
	ListSessions(ctx context.Context, account string) ([]SessionSummary, error)
	PreapprovalStatus(ctx context.Context, account, fingerprint string) (entities.PreapprovalRecord, bool, error)
}
