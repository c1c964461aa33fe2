// Package memory implements the gateway's only storage adapter: an
// in-process Store fronting C3 AccountSessions and C4 IdempotencyLedger
// behind the single exclusive gate C5 SessionManager requires. There is no
// persistence adapter because the system is explicitly in-memory; nothing
// here survives a restart.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	gatewayerrors "github.com/ngotraders/kopitra/internal/gateway/domain/errors"
	"github.com/ngotraders/kopitra/internal/gateway/domain/services"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// Route paths used as the literal "path" component of an idempotency
// storage key, matching the HTTP surface table verbatim (including the
// unsubstituted {sessionId}/{eventId} placeholders: the key disambiguates
// by account + idempotency key, not by resolved path).
const (
	pathCreateSession   = "/sessions"
	pathDeleteSession   = "/sessions/current"
	pathIngestInbox     = "/sessions/current/inbox"
	pathAckOutbox       = "/sessions/current/outbox/{eventId}/ack"
	pathApproveSession  = "/sessions/{sessionId}/approve"
	pathQueueOutbox     = "/sessions/{sessionId}/outbox"
)

type accountBundle struct {
	sessionsByToken map[string]*entities.SessionRecord
	sessionIndex    map[string]string // session_id -> token
	activeIndex     map[string]string // fingerprint -> token
	preapproved     map[string]entities.PreapprovalRecord
}

func newAccountBundle() *accountBundle {
	return &accountBundle{
		sessionsByToken: make(map[string]*entities.SessionRecord),
		sessionIndex:    make(map[string]string),
		activeIndex:     make(map[string]string),
		preapproved:     make(map[string]entities.PreapprovalRecord),
	}
}

func (b *accountBundle) isEmpty() bool {
	return len(b.sessionsByToken) == 0 && len(b.preapproved) == 0
}

// preemptExisting terminates the current active session for fingerprint, if
// any, and drops it from the active index. It returns the preempted
// session's id, or "" if there was none.
func (b *accountBundle) preemptExisting(fingerprint string) string {
	token, ok := b.activeIndex[fingerprint]
	if !ok {
		return ""
	}
	delete(b.activeIndex, fingerprint)
	record, ok := b.sessionsByToken[token]
	if !ok {
		return ""
	}
	record.MarkPreempted()
	return record.SessionID
}

type ledgerEntry struct {
	StatusCode  int
	Body        json.RawMessage
	RequestHash string
}

// Store is the single in-memory adapter implementing ports.Store. One
// mutex guards both the account bundles and the idempotency ledger, per
// SPEC_FULL.md's single-gate concurrency model: every exported method
// locks for its entire duration and performs no I/O while holding it.
type Store struct {
	mu sync.Mutex

	accounts map[string]*accountBundle
	ledger   map[string]ledgerEntry

	clock   ports.Clock
	ids     ports.IDGenerator
	metrics ports.Metrics
}

// NewStore builds an empty Store. metrics may be nil.
func NewStore(clock ports.Clock, ids ports.IDGenerator, metrics ports.Metrics) *Store {
	return &Store{
		accounts: make(map[string]*accountBundle),
		ledger:   make(map[string]ledgerEntry),
		clock:    clock,
		ids:      ids,
		metrics:  metrics,
	}
}

func (s *Store) now() time.Time {
	if s.clock != nil {
		return s.clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) newID() string {
	if s.ids == nil {
		return ""
	}
	id, err := s.ids.NewID(context.Background())
	if err != nil {
		return ""
	}
	return id
}

func (s *Store) bundle(account string) *accountBundle {
	b, ok := s.accounts[account]
	if !ok {
		b = newAccountBundle()
		s.accounts[account] = b
	}
	return b
}

func (s *Store) pruneIfEmpty(account string) {
	if b, ok := s.accounts[account]; ok && b.isEmpty() {
		delete(s.accounts, account)
	}
}

func hashRequest(v any) string {
	body, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func storageKey(method, path, account, idempotencyKey string) string {
	return method + ":" + path + ":" + account + ":" + idempotencyKey
}

// replay looks up key and, when present, decodes its captured body into
// dst. The caller treats a true return as "done"; it must not mutate
// state. A request-hash mismatch against an existing entry is reported as
// ErrIdempotencyConflict: the same idempotency key was reused for a
// logically different request. operation names the calling command for the
// idempotency-hit metric; it is not recorded on a miss or a conflict, only
// on a genuine replay.
func (s *Store) replay(operation, key, requestHash string, dst any) (bool, error) {
	entry, ok := s.ledger[key]
	if !ok {
		return false, nil
	}
	if entry.RequestHash != requestHash {
		return false, gatewayerrors.ErrIdempotencyConflict
	}
	if dst != nil && len(entry.Body) > 0 {
		if err := json.Unmarshal(entry.Body, dst); err != nil {
			return false, gatewayerrors.ErrInternal
		}
	}
	if s.metrics != nil {
		s.metrics.IdempotencyHit(operation)
	}
	return true, nil
}

func (s *Store) commit(key, requestHash string, statusCode int, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return gatewayerrors.ErrInternal
	}
	s.ledger[key] = ledgerEntry{StatusCode: statusCode, Body: encoded, RequestHash: requestHash}
	return nil
}

func resolveByToken(b *accountBundle, token string) (*entities.SessionRecord, error) {
	if b == nil {
		return nil, gatewayerrors.ErrSessionMissing
	}
	record, ok := b.sessionsByToken[token]
	if !ok {
		return nil, gatewayerrors.ErrInvalidSessionToken
	}
	return record, nil
}

func resolveByID(b *accountBundle, sessionID string) (*entities.SessionRecord, string, error) {
	if b == nil {
		return nil, "", gatewayerrors.ErrSessionMissing
	}
	token, ok := b.sessionIndex[sessionID]
	if !ok {
		return nil, "", gatewayerrors.ErrSessionMismatch
	}
	record, ok := b.sessionsByToken[token]
	if !ok {
		return nil, "", gatewayerrors.ErrSessionMismatch
	}
	return record, token, nil
}

// CreateSession implements create_session (SPEC_FULL.md / spec.md §4.5).
func (s *Store) CreateSession(_ context.Context, in ports.CreateSessionInput) (ports.CreatedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey("POST", pathCreateSession, in.Account, in.IdempotencyKey)
	requestHash := hashRequest(struct {
		AuthMethod entities.AuthMethod `json:"authMethod"`
		Secret     string              `json:"secret"`
	}{in.AuthMethod, in.Secret})

	var replayed ports.CreatedSession
	if hit, err := s.replay("create_session", key, requestHash, &replayed); err != nil {
		return ports.CreatedSession{}, err
	} else if hit {
		return replayed, nil
	}

	if strings.TrimSpace(in.Secret) == "" {
		return ports.CreatedSession{}, gatewayerrors.ErrAuthenticationKeyEmpty
	}

	fingerprint := services.Fingerprint(in.AuthMethod, in.Account, in.Secret)
	bundle := s.bundle(in.Account)

	var previousSessionTerminated *string
	if previousID := bundle.preemptExisting(fingerprint); previousID != "" {
		previousSessionTerminated = &previousID
		if s.metrics != nil {
			s.metrics.SessionPreempted()
		}
	}

	now := s.now()
	sessionID := s.newID()
	sessionToken := s.newID()
	record := entities.NewSessionRecord(sessionID, sessionToken, in.AuthMethod, fingerprint, now, s.newID, s.now)

	if preapproval, ok := bundle.preapproved[fingerprint]; ok {
		delete(bundle.preapproved, fingerprint)
		if !preapproval.Expired(now) {
			_, _ = record.Promote(fingerprint)
		}
	}

	bundle.sessionsByToken[sessionToken] = record
	bundle.sessionIndex[sessionID] = sessionToken
	bundle.activeIndex[fingerprint] = sessionToken

	response := ports.CreatedSession{
		SessionID:                 sessionID,
		SessionToken:              sessionToken,
		Status:                    record.Status,
		AuthMethod:                in.AuthMethod,
		Pending:                   record.Status == entities.StatusPending,
		CreatedAt:                 now,
		LastHeartbeatAt:           record.LastHeartbeatAt,
		PreviousSessionTerminated: previousSessionTerminated,
	}
	if err := s.commit(key, requestHash, 201, response); err != nil {
		return ports.CreatedSession{}, err
	}
	if s.metrics != nil {
		s.metrics.SessionCreated()
	}
	return response, nil
}

// DeleteSession implements delete_session.
func (s *Store) DeleteSession(_ context.Context, in ports.DeleteSessionInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey("DELETE", pathDeleteSession, in.Account, in.IdempotencyKey)
	requestHash := hashRequest(struct {
		BearerToken string `json:"bearerToken"`
	}{in.BearerToken})

	if hit, err := s.replay("delete_session", key, requestHash, nil); err != nil {
		return err
	} else if hit {
		return nil
	}

	bundle := s.accounts[in.Account]
	record, err := resolveByToken(bundle, in.BearerToken)
	if err != nil {
		return err
	}

	delete(bundle.sessionsByToken, in.BearerToken)
	delete(bundle.sessionIndex, record.SessionID)
	if bundle.activeIndex[record.AuthKeyFingerprint] == in.BearerToken {
		delete(bundle.activeIndex, record.AuthKeyFingerprint)
	}
	s.pruneIfEmpty(in.Account)

	if s.metrics != nil {
		s.metrics.SessionTerminated("deleted")
	}
	return s.commit(key, requestHash, 204, struct{}{})
}

// IngestInbox implements ingest_inbox.
func (s *Store) IngestInbox(_ context.Context, in ports.IngestInboxInput) (ports.IngestInboxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey("POST", pathIngestInbox, in.Account, in.IdempotencyKey)
	requestHash := hashRequest(struct {
		BearerToken string                `json:"bearerToken"`
		Events      []entities.InboxEvent `json:"events"`
	}{in.BearerToken, in.Events})

	var replayed ports.IngestInboxResult
	if hit, err := s.replay("ingest_inbox", key, requestHash, &replayed); err != nil {
		return ports.IngestInboxResult{}, err
	} else if hit {
		return replayed, nil
	}

	bundle := s.accounts[in.Account]
	record, err := resolveByToken(bundle, in.BearerToken)
	if err != nil {
		return ports.IngestInboxResult{}, err
	}
	if record.Status == entities.StatusTerminated {
		return ports.IngestInboxResult{}, gatewayerrors.ErrSessionTerminated
	}

	accepted := record.CaptureInbox(in.Events)
	result := ports.IngestInboxResult{
		Accepted:       accepted,
		PendingSession: record.Status == entities.StatusPending,
	}
	if err := s.commit(key, requestHash, 202, result); err != nil {
		return ports.IngestInboxResult{}, err
	}
	return result, nil
}

// FetchOutbox implements fetch_outbox. It is a safe read: no idempotency
// bookkeeping applies.
func (s *Store) FetchOutbox(_ context.Context, in ports.FetchOutboxInput) (ports.OutboxSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundle := s.accounts[in.Account]
	record, err := resolveByToken(bundle, in.BearerToken)
	if err != nil {
		return ports.OutboxSnapshot{}, err
	}

	events := record.EventsAfter(in.Cursor, in.Limit, false)
	return ports.OutboxSnapshot{
		SessionID:    record.SessionID,
		Pending:      record.Status == entities.StatusPending,
		Events:       events,
		RetryAfterMs: 1000,
	}, nil
}

// AcknowledgeOutbox implements acknowledge_outbox.
func (s *Store) AcknowledgeOutbox(_ context.Context, in ports.AcknowledgeOutboxInput) (ports.AcknowledgeOutboxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey("POST", pathAckOutbox, in.Account, in.IdempotencyKey)
	requestHash := hashRequest(struct {
		BearerToken string `json:"bearerToken"`
		EventID     string `json:"eventId"`
	}{in.BearerToken, in.EventID})

	var replayed ports.AcknowledgeOutboxResult
	if hit, err := s.replay("acknowledge_outbox", key, requestHash, &replayed); err != nil {
		return ports.AcknowledgeOutboxResult{}, err
	} else if hit {
		return replayed, nil
	}

	bundle := s.accounts[in.Account]
	record, err := resolveByToken(bundle, in.BearerToken)
	if err != nil {
		return ports.AcknowledgeOutboxResult{}, err
	}
	if !record.AcknowledgeOutbox(in.EventID) {
		return ports.AcknowledgeOutboxResult{}, gatewayerrors.ErrEventNotFound
	}

	result := ports.AcknowledgeOutboxResult{
		AcknowledgedEventID:  in.EventID,
		RemainingOutboxDepth: record.OutboxDepth(),
	}
	if err := s.commit(key, requestHash, 200, result); err != nil {
		return ports.AcknowledgeOutboxResult{}, err
	}
	if s.metrics != nil {
		s.metrics.OutboxAcknowledged()
	}
	return result, nil
}

// ApproveByFingerprint implements approve_session_by_fingerprint.
func (s *Store) ApproveByFingerprint(_ context.Context, in ports.ApproveByFingerprintInput) (ports.PromotionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey("POST", pathApproveSession, in.Account, in.IdempotencyKey)
	requestHash := hashRequest(struct {
		SessionID          string `json:"sessionId"`
		AuthKeyFingerprint string `json:"authKeyFingerprint"`
	}{in.SessionID, in.AuthKeyFingerprint})

	var replayed ports.PromotionResponse
	if hit, err := s.replay("approve_session_by_fingerprint", key, requestHash, &replayed); err != nil {
		return ports.PromotionResponse{}, err
	} else if hit {
		return replayed, nil
	}

	bundle := s.accounts[in.Account]
	record, _, err := resolveByID(bundle, in.SessionID)
	if err != nil {
		return ports.PromotionResponse{}, err
	}

	promotion, err := record.Promote(in.AuthKeyFingerprint)
	if err != nil {
		return ports.PromotionResponse{}, err
	}

	message := "Session authenticated"
	if promotion.AlreadyAuthenticated {
		message = "Session was already authenticated"
	}
	response := ports.PromotionResponse{
		SessionID: in.SessionID,
		Status:    promotion.Status,
		Pending:   promotion.Status == entities.StatusPending,
		Message:   message,
	}
	if err := s.commit(key, requestHash, 200, response); err != nil {
		return ports.PromotionResponse{}, err
	}
	return response, nil
}

// ApproveBySecret implements approve_session_by_secret.
func (s *Store) ApproveBySecret(_ context.Context, in ports.ApproveBySecretInput) (ports.PromotionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey("POST", pathApproveSession, in.Account, in.IdempotencyKey)
	requestHash := hashRequest(struct {
		SessionID string `json:"sessionId"`
		Secret    string `json:"secret"`
	}{in.SessionID, in.Secret})

	var replayed ports.PromotionResponse
	if hit, err := s.replay("approve_session_by_secret", key, requestHash, &replayed); err != nil {
		return ports.PromotionResponse{}, err
	} else if hit {
		return replayed, nil
	}

	bundle := s.accounts[in.Account]
	record, _, err := resolveByID(bundle, in.SessionID)
	if err != nil {
		return ports.PromotionResponse{}, err
	}

	candidate := services.Fingerprint(record.AuthMethod, in.Account, in.Secret)
	promotion, err := record.Promote(candidate)
	if err != nil {
		return ports.PromotionResponse{}, err
	}

	message := "Session authenticated"
	if promotion.AlreadyAuthenticated {
		message = "Session was already authenticated"
	}
	response := ports.PromotionResponse{
		SessionID: in.SessionID,
		Status:    promotion.Status,
		Pending:   promotion.Status == entities.StatusPending,
		Message:   message,
	}
	if err := s.commit(key, requestHash, 200, response); err != nil {
		return ports.PromotionResponse{}, err
	}
	return response, nil
}

// RejectSession implements reject_session. A fingerprint mismatch fails
// with AuthenticationFailed even though the session has already been
// located by id, matching the error table's "fingerprint mismatch on
// approve/reject" row.
func (s *Store) RejectSession(_ context.Context, in ports.RejectSessionInput) (ports.RejectionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey("POST", pathApproveSession, in.Account, in.IdempotencyKey)
	requestHash := hashRequest(struct {
		SessionID          string `json:"sessionId"`
		AuthKeyFingerprint string `json:"authKeyFingerprint"`
		Reason             string `json:"reason"`
	}{in.SessionID, in.AuthKeyFingerprint, in.Reason})

	var replayed ports.RejectionResponse
	if hit, err := s.replay("reject_session", key, requestHash, &replayed); err != nil {
		return ports.RejectionResponse{}, err
	} else if hit {
		return replayed, nil
	}

	bundle := s.accounts[in.Account]
	record, token, err := resolveByID(bundle, in.SessionID)
	if err != nil {
		return ports.RejectionResponse{}, err
	}
	if in.AuthKeyFingerprint != "" && !record.Verify(in.AuthKeyFingerprint) {
		return ports.RejectionResponse{}, gatewayerrors.ErrAuthenticationFailed
	}

	rejection := record.Reject(in.Reason, in.RejectedBy)
	if !rejection.AlreadyTerminated {
		if bundle.activeIndex[record.AuthKeyFingerprint] == token {
			delete(bundle.activeIndex, record.AuthKeyFingerprint)
		}
		if s.metrics != nil {
			s.metrics.SessionTerminated("rejected")
		}
	}

	response := ports.RejectionResponse{
		SessionID:         in.SessionID,
		AlreadyTerminated: rejection.AlreadyTerminated,
	}
	if err := s.commit(key, requestHash, 200, response); err != nil {
		return ports.RejectionResponse{}, err
	}
	return response, nil
}

// QueueOutboxEvent implements queue_outbox_event.
func (s *Store) QueueOutboxEvent(_ context.Context, in ports.QueueOutboxEventInput) (ports.EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey("POST", pathQueueOutbox, in.Account, in.IdempotencyKey)
	requestHash := hashRequest(struct {
		SessionID string          `json:"sessionId"`
		EventType string          `json:"eventType"`
		Payload   json.RawMessage `json:"payload"`
	}{in.SessionID, in.EventType, in.Payload})

	var replayed ports.EnqueueResult
	if hit, err := s.replay("queue_outbox_event", key, requestHash, &replayed); err != nil {
		return ports.EnqueueResult{}, err
	} else if hit {
		return replayed, nil
	}

	bundle := s.accounts[in.Account]
	record, _, err := resolveByID(bundle, in.SessionID)
	if err != nil {
		return ports.EnqueueResult{}, err
	}
	if record.Status == entities.StatusTerminated {
		return ports.EnqueueResult{}, gatewayerrors.ErrSessionTerminated
	}
	if strings.TrimSpace(in.EventType) == "" {
		return ports.EnqueueResult{}, gatewayerrors.ErrEventTypeEmpty
	}

	event := record.EnqueueOutbox(entities.OutboxEnqueueRequest{
		EventType:   in.EventType,
		Payload:     in.Payload,
		RequiresAck: in.RequiresAck,
	})
	result := ports.EnqueueResult{
		SessionID:      in.SessionID,
		EventID:        event.ID,
		Sequence:       event.Sequence,
		PendingSession: record.Status == entities.StatusPending,
	}
	if err := s.commit(key, requestHash, 202, result); err != nil {
		return ports.EnqueueResult{}, err
	}
	if s.metrics != nil {
		s.metrics.OutboxEnqueued()
	}
	return result, nil
}

// PreapproveSessionKey implements preapprove_session_key. It carries no
// idempotency key of its own (spec.md §4.5): re-arming the same
// credential simply overwrites the prior pre-approval record.
func (s *Store) PreapproveSessionKey(_ context.Context, in ports.PreapproveSessionKeyInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(in.Secret) == "" {
		return gatewayerrors.ErrAuthenticationKeyEmpty
	}

	fingerprint := services.Fingerprint(in.AuthMethod, in.Account, in.Secret)
	bundle := s.bundle(in.Account)
	bundle.preapproved[fingerprint] = entities.PreapprovalRecord{
		Fingerprint: fingerprint,
		ApprovedBy:  in.ApprovedBy,
		ExpiresAt:   in.ExpiresAt,
	}
	return nil
}

// ListSessions is a supplemented read-only projection (SPEC_FULL.md),
// grounded on Solomon's ListUserRoles read path.
func (s *Store) ListSessions(_ context.Context, account string) ([]ports.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, ok := s.accounts[account]
	if !ok {
		return []ports.SessionSummary{}, nil
	}

	summaries := make([]ports.SessionSummary, 0, len(bundle.sessionsByToken))
	for _, record := range bundle.sessionsByToken {
		summaries = append(summaries, ports.SessionSummary{
			SessionID:       record.SessionID,
			Status:          record.Status,
			AuthMethod:      record.AuthMethod,
			CreatedAt:       record.CreatedAt,
			LastHeartbeatAt: record.LastHeartbeatAt,
			OutboxDepth:     record.OutboxDepth(),
			InboxDepth:      record.InboxDepth(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// PreapprovalStatus is a supplemented read-only lookup (SPEC_FULL.md). It
// does not consume the record; only create_session does.
func (s *Store) PreapprovalStatus(_ context.Context, account, fingerprint string) (entities.PreapprovalRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, ok := s.accounts[account]
	if !ok {
		return entities.PreapprovalRecord{}, false, nil
	}
	record, ok := bundle.preapproved[fingerprint]
	return record, ok, nil
}

var _ ports.Store = (*Store)(nil)
