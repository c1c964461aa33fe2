package entities

import (
	"encoding/json"
	"strings"
	"time"

	gatewayerrors "github.com/ngotraders/kopitra/internal/gateway/domain/errors"
)

// Status is a SessionRecord's position in the Pending -> Authenticated ->
// Terminated state machine. Terminal states do not re-open (invariant I5).
type Status string

const (
	StatusPending       Status = "pending"
	StatusAuthenticated Status = "authenticated"
	StatusTerminated    Status = "terminated"
)

// AuthMethod is the credential scheme a session was created with.
type AuthMethod string

const (
	AuthMethodAccountSessionKey AuthMethod = "account_session_key"
	AuthMethodPreSharedKey      AuthMethod = "pre_shared_key"
)

// PromotionResult is returned by Promote. AlreadyAuthenticated is true when
// the session was Authenticated before this call (idempotent replay: no
// second InitAck is emitted).
type PromotionResult struct {
	Status               Status
	AlreadyAuthenticated bool
}

// RejectionResult is returned by Reject. AlreadyTerminated is true when the
// session was Terminated before this call; Reject is idempotent in that case
// and appends no second ShutdownNotice.
type RejectionResult struct {
	AlreadyTerminated bool
}

// SessionRecord is the per-session state engine described as C2: status,
// credentials, outbox, inbox log, and the sequence counter that orders the
// outbox (invariant I3).
type SessionRecord struct {
	SessionID          string
	SessionToken       string
	Status             Status
	AuthMethod         AuthMethod
	AuthKeyFingerprint string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastHeartbeatAt    *time.Time
	nextSequence       uint64
	outbox             []entitiesOutboxSlot
	InboxLog           []InboundEventRecord

	idFactory func() string
	nowFunc   func() time.Time
}

type entitiesOutboxSlot struct {
	event OutboundEvent
}

// NewSessionRecord constructs a fresh Pending session. idFactory and
// nowFunc are injected so the entity stays deterministic under test and
// never calls uuid.New directly (the ports.Clock/ports.IDGenerator wiring
// lives one layer up, in the memory adapter); only a nil nowFunc makes it
// fall back to time.Now.
func NewSessionRecord(sessionID, sessionToken string, authMethod AuthMethod, fingerprint string, now time.Time, idFactory func() string, nowFunc func() time.Time) *SessionRecord {
	return &SessionRecord{
		SessionID:          sessionID,
		SessionToken:       sessionToken,
		Status:             StatusPending,
		AuthMethod:         authMethod,
		AuthKeyFingerprint: fingerprint,
		CreatedAt:          now,
		UpdatedAt:          now,
		nextSequence:       1,
		idFactory:          idFactory,
		nowFunc:            nowFunc,
	}
}

func (s *SessionRecord) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now().UTC()
}

func (s *SessionRecord) newID() string {
	if s.idFactory != nil {
		return s.idFactory()
	}
	return ""
}

// Verify reports whether candidate equals this session's credential
// fingerprint. String equality only; constant-time comparison is
// recommended by spec but not required.
func (s *SessionRecord) Verify(candidateFingerprint string) bool {
	return s.AuthKeyFingerprint == candidateFingerprint
}

// Promote transitions Pending -> Authenticated, emitting exactly one InitAck
// outbound event (invariant I8). It is idempotent once Authenticated and
// fails closed on a fingerprint mismatch or a Terminated session.
func (s *SessionRecord) Promote(candidateFingerprint string) (PromotionResult, error) {
	if !s.Verify(candidateFingerprint) {
		return PromotionResult{}, gatewayerrors.ErrAuthenticationFailed
	}
	if s.Status == StatusTerminated {
		return PromotionResult{}, gatewayerrors.ErrSessionTerminated
	}
	if s.Status == StatusAuthenticated {
		return PromotionResult{Status: s.Status, AlreadyAuthenticated: true}, nil
	}

	s.Status = StatusAuthenticated
	s.UpdatedAt = s.now()
	payload, _ := json.Marshal(map[string]string{"message": "Session authenticated"})
	s.EnqueueOutbox(OutboxEnqueueRequest{
		EventType:   "InitAck",
		Payload:     payload,
		RequiresAck: true,
	})
	return PromotionResult{Status: s.Status}, nil
}

// Reject transitions any non-Terminated session to Terminated and appends a
// ShutdownNotice (invariant I9). Idempotent: repeating on an already
// Terminated session is a no-op that reports AlreadyTerminated.
func (s *SessionRecord) Reject(reason, rejectedBy string) RejectionResult {
	if s.Status == StatusTerminated {
		return RejectionResult{AlreadyTerminated: true}
	}
	terminatedAt := s.now()
	s.Status = StatusTerminated
	s.UpdatedAt = terminatedAt

	payload := map[string]any{
		"reason":       "session_rejected",
		"terminatedAt": terminatedAt,
	}
	if reason != "" {
		payload["details"] = reason
	}
	if rejectedBy != "" {
		payload["rejectedBy"] = rejectedBy
	}
	body, _ := json.Marshal(payload)
	s.EnqueueOutbox(OutboxEnqueueRequest{
		EventType:   "ShutdownNotice",
		Payload:     body,
		RequiresAck: true,
	})
	return RejectionResult{}
}

// MarkPreempted transitions a non-Terminated session to Terminated because a
// new session for the same credential replaced it, appending a
// ShutdownNotice whose reason is "session_preempted".
func (s *SessionRecord) MarkPreempted() {
	if s.Status == StatusTerminated {
		return
	}
	terminatedAt := s.now()
	s.Status = StatusTerminated
	s.UpdatedAt = terminatedAt

	payload, _ := json.Marshal(map[string]any{
		"reason":       "session_preempted",
		"terminatedAt": terminatedAt,
	})
	s.EnqueueOutbox(OutboxEnqueueRequest{
		EventType:   "ShutdownNotice",
		Payload:     payload,
		RequiresAck: true,
	})
}

// EnqueueOutbox appends an outbound event, assigning the next sequence
// number (invariant I3: strictly increasing, no gaps).
func (s *SessionRecord) EnqueueOutbox(req OutboxEnqueueRequest) OutboundEvent {
	enqueuedAt := s.now()
	event := OutboundEvent{
		ID:          s.newID(),
		Sequence:    s.nextSequence,
		EventType:   req.EventType,
		Payload:     req.Payload,
		EnqueuedAt:  enqueuedAt,
		RequiresAck: req.RequiresAck,
	}
	s.nextSequence++
	s.outbox = append(s.outbox, entitiesOutboxSlot{event: event})
	s.UpdatedAt = enqueuedAt
	return event
}

// CaptureInbox appends a batch of inbound events in order, recognizing
// heartbeat markers (substring "heartbeat", case-insensitive) and
// "outboxack" echoes that remove a matching outbox entry. It returns the
// number of events accepted, which is always len(batch) - inbox capture
// never rejects an individual event.
func (s *SessionRecord) CaptureInbox(batch []InboxEvent) int {
	for _, event := range batch {
		receivedAt := s.now()
		lowered := strings.ToLower(event.EventType)
		if strings.Contains(lowered, "heartbeat") {
			s.LastHeartbeatAt = &receivedAt
		}
		if lowered == "outboxack" {
			var ack outboxAckPayload
			if err := json.Unmarshal(event.Payload, &ack); err == nil && ack.EventID != "" {
				s.AcknowledgeOutbox(ack.EventID)
			}
		}

		s.InboxLog = append(s.InboxLog, InboundEventRecord{
			ID:         s.newID(),
			Sequence:   uint64(len(s.InboxLog) + 1),
			EventType:  event.EventType,
			Payload:    event.Payload,
			OccurredAt: event.OccurredAt,
			ReceivedAt: receivedAt,
		})
		s.UpdatedAt = receivedAt
	}
	return len(batch)
}

// AcknowledgeOutbox removes the outbox entry with the given id, reporting
// whether any entry was removed. It is idempotent: acking twice returns
// false on the second call.
func (s *SessionRecord) AcknowledgeOutbox(eventID string) bool {
	for i, slot := range s.outbox {
		if slot.event.ID == eventID {
			s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
			s.UpdatedAt = s.now()
			return true
		}
	}
	return false
}

// OutboxDepth reports the current number of unacknowledged outbox entries.
func (s *SessionRecord) OutboxDepth() int {
	return len(s.outbox)
}

// InboxDepth reports the total number of captured inbound events.
func (s *SessionRecord) InboxDepth() int {
	return len(s.InboxLog)
}

// EventsAfter returns outbound events with sequence > cursor, ascending,
// bounded by limit if > 0. While Pending and includeWhenPending is false it
// returns an empty slice (queued events are simply not surfaced yet).
func (s *SessionRecord) EventsAfter(cursor uint64, limit int, includeWhenPending bool) []OutboundEvent {
	if s.Status == StatusPending && !includeWhenPending {
		return []OutboundEvent{}
	}
	events := make([]OutboundEvent, 0, len(s.outbox))
	for _, slot := range s.outbox {
		if slot.event.Sequence > cursor {
			events = append(events, slot.event)
			if limit > 0 && len(events) >= limit {
				break
			}
		}
	}
	return events
}
