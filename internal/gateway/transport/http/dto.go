// Package httptransport defines the gateway's wire DTOs: the camelCase
// JSON bodies in spec.md §6, decoupled from the domain/ports types so the
// HTTP surface can evolve independently of the core.
package httptransport

import (
	"encoding/json"
	"time"
)

// CreateSessionRequest is the POST /sessions body.
type CreateSessionRequest struct {
	AuthMethod string `json:"authMethod" validate:"required,oneof=account_session_key pre_shared_key"`
	Secret     string `json:"secret" validate:"required"`
}

// CreateSessionResponse is the POST /sessions 201 body.
type CreateSessionResponse struct {
	SessionID                string     `json:"sessionId"`
	SessionToken              string     `json:"sessionToken"`
	Status                    string     `json:"status"`
	AuthMethod                string     `json:"authMethod"`
	Pending                   bool       `json:"pending"`
	CreatedAt                 time.Time  `json:"createdAt"`
	LastHeartbeatAt           *time.Time `json:"lastHeartbeatAt"`
	PreviousSessionTerminated *string    `json:"previousSessionTerminated"`
}

// IngestInboxRequestBody is the POST /sessions/current/inbox body.
type IngestInboxRequestBody struct {
	Events []InboxEventDTO `json:"events" validate:"required,dive"`
}

// InboxEventDTO is one element of IngestInboxRequestBody.Events.
type InboxEventDTO struct {
	EventType  string          `json:"eventType" validate:"required"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt *time.Time      `json:"occurredAt,omitempty"`
}

// IngestInboxResponse is the POST /sessions/current/inbox 202 body.
type IngestInboxResponse struct {
	Accepted       int  `json:"accepted"`
	PendingSession bool `json:"pendingSession"`
}

// OutboxEventDTO is one element of OutboxSnapshotResponse.Events.
type OutboxEventDTO struct {
	ID          string          `json:"id"`
	Sequence    uint64          `json:"sequence"`
	EventType   string          `json:"eventType"`
	Payload     json.RawMessage `json:"payload"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
	RequiresAck bool            `json:"requiresAck"`
}

// OutboxSnapshotResponse is the GET .../outbox 200 body.
type OutboxSnapshotResponse struct {
	SessionID    string           `json:"sessionId"`
	Pending      bool             `json:"pending"`
	Events       []OutboxEventDTO `json:"events"`
	RetryAfterMs int              `json:"retryAfterMs"`
}

// AcknowledgeOutboxResponse is the POST .../ack 200 body.
type AcknowledgeOutboxResponse struct {
	AcknowledgedEventID  string `json:"acknowledgedEventId"`
	RemainingOutboxDepth int    `json:"remainingOutboxDepth"`
}

// ApproveSessionRequest is the POST /sessions/{sessionId}/approve body.
// Exactly one of AuthKeyFingerprint or Secret is expected; fingerprint
// takes precedence if both are set.
type ApproveSessionRequest struct {
	AuthKeyFingerprint string `json:"authKeyFingerprint,omitempty"`
	Secret             string `json:"secret,omitempty"`
	ApprovedBy         string `json:"approvedBy,omitempty"`
}

// ApproveSessionResponse is the POST /sessions/{sessionId}/approve 200 body.
type ApproveSessionResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Pending   bool   `json:"pending"`
	Message   string `json:"message"`
}

// QueueOutboxEventRequest is the POST /sessions/{sessionId}/outbox body.
type QueueOutboxEventRequest struct {
	EventType   string          `json:"eventType" validate:"required"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RequiresAck *bool           `json:"requiresAck,omitempty"`
}

// QueueOutboxEventResponse is the POST /sessions/{sessionId}/outbox 202 body.
type QueueOutboxEventResponse struct {
	SessionID      string `json:"sessionId"`
	EventID        string `json:"eventId"`
	Sequence       uint64 `json:"sequence"`
	PendingSession bool   `json:"pendingSession"`
}

// SessionSummaryDTO is one element of ListSessionsResponse.Sessions, the
// per-account session roster projection.
type SessionSummaryDTO struct {
	SessionID       string     `json:"sessionId"`
	Status          string     `json:"status"`
	AuthMethod      string     `json:"authMethod"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastHeartbeatAt *time.Time `json:"lastHeartbeatAt"`
	OutboxDepth     int        `json:"outboxDepth"`
	InboxDepth      int        `json:"inboxDepth"`
}

// ListSessionsResponse is the GET /sessions body.
type ListSessionsResponse struct {
	Sessions []SessionSummaryDTO `json:"sessions"`
}

// PreapprovalStatusResponse is the GET .../preapproval body.
type PreapprovalStatusResponse struct {
	Fingerprint string     `json:"fingerprint"`
	Armed       bool       `json:"armed"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Expired     bool       `json:"expired"`
}

// PreapproveSessionKeyRequest is the POST /preapprovals body.
type PreapproveSessionKeyRequest struct {
	AuthMethod string     `json:"authMethod" validate:"required,oneof=account_session_key pre_shared_key"`
	Secret     string     `json:"secret" validate:"required"`
	ApprovedBy string     `json:"approvedBy,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// ErrorResponse is the uniform non-2xx body (except 204).
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
