// Package httpadapter translates already-parsed typed requests into
// application-layer calls and back into transport DTOs. It never touches
// net/http directly; internal/platform/httpserver owns routing, header
// parsing, and status-code mapping.
package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/ngotraders/kopitra/internal/gateway/application/commands"
	"github.com/ngotraders/kopitra/internal/gateway/application/dispatcher"
	"github.com/ngotraders/kopitra/internal/gateway/application/queries"
	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	httptransport "github.com/ngotraders/kopitra/internal/gateway/transport/http"
)

// Handler is the gateway's transport-agnostic entrypoint.
type Handler struct {
	CreateSession     commands.CreateSessionCommand
	DeleteSession     commands.DeleteSessionCommand
	IngestInbox       commands.IngestInboxCommand
	AcknowledgeOutbox commands.AcknowledgeOutboxCommand
	ApproveSession    commands.ApproveSessionCommand
	QueueOutboxEvent  commands.QueueOutboxEventCommand
	FetchOutbox       queries.FetchOutboxQuery
	ListSessions      queries.ListSessionsQuery
	PreapprovalStatus queries.PreapprovalStatusQuery
	PreapproveSessionKey commands.PreapproveSessionKeyCommand
	Dispatcher        dispatcher.Dispatcher
	Logger            *slog.Logger
}

func (h Handler) CreateSessionHandler(ctx context.Context, account, idempotencyKey string, req httptransport.CreateSessionRequest) (httptransport.CreateSessionResponse, error) {
	result, err := h.CreateSession.Execute(ctx, commands.CreateSessionRequest{
		Account:        account,
		AuthMethod:     entities.AuthMethod(req.AuthMethod),
		Secret:         req.Secret,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.CreateSessionResponse{}, err
	}
	return httptransport.CreateSessionResponse{
		SessionID:                 result.SessionID,
		SessionToken:              result.SessionToken,
		Status:                    string(result.Status),
		AuthMethod:                string(result.AuthMethod),
		Pending:                   result.Pending,
		CreatedAt:                 result.CreatedAt,
		LastHeartbeatAt:           result.LastHeartbeatAt,
		PreviousSessionTerminated: result.PreviousSessionTerminated,
	}, nil
}

func (h Handler) DeleteSessionHandler(ctx context.Context, account, bearerToken, idempotencyKey string) error {
	return h.DeleteSession.Execute(ctx, commands.DeleteSessionRequest{
		Account:        account,
		BearerToken:    bearerToken,
		IdempotencyKey: idempotencyKey,
	})
}

func (h Handler) IngestInboxHandler(ctx context.Context, account, bearerToken, idempotencyKey string, req httptransport.IngestInboxRequestBody) (httptransport.IngestInboxResponse, error) {
	events := make([]entities.InboxEvent, 0, len(req.Events))
	for _, e := range req.Events {
		events = append(events, entities.InboxEvent{
			EventType:  e.EventType,
			Payload:    e.Payload,
			OccurredAt: e.OccurredAt,
		})
	}
	result, err := h.IngestInbox.Execute(ctx, commands.IngestInboxRequest{
		Account:        account,
		BearerToken:    bearerToken,
		Events:         events,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.IngestInboxResponse{}, err
	}
	return httptransport.IngestInboxResponse{
		Accepted:       result.Accepted,
		PendingSession: result.PendingSession,
	}, nil
}

func (h Handler) FetchOutboxHandler(ctx context.Context, account, bearerToken string, cursor uint64, limit int) (httptransport.OutboxSnapshotResponse, error) {
	snapshot, err := h.FetchOutbox.Execute(ctx, queries.FetchOutboxRequest{
		Account:     account,
		BearerToken: bearerToken,
		Cursor:      cursor,
		Limit:       limit,
	})
	if err != nil {
		return httptransport.OutboxSnapshotResponse{}, err
	}
	events := make([]httptransport.OutboxEventDTO, 0, len(snapshot.Events))
	for _, e := range snapshot.Events {
		events = append(events, httptransport.OutboxEventDTO{
			ID:          e.ID,
			Sequence:    e.Sequence,
			EventType:   e.EventType,
			Payload:     e.Payload,
			EnqueuedAt:  e.EnqueuedAt,
			RequiresAck: e.RequiresAck,
		})
	}
	return httptransport.OutboxSnapshotResponse{
		SessionID:    snapshot.SessionID,
		Pending:      snapshot.Pending,
		Events:       events,
		RetryAfterMs: snapshot.RetryAfterMs,
	}, nil
}

func (h Handler) AcknowledgeOutboxHandler(ctx context.Context, account, bearerToken, eventID, idempotencyKey string) (httptransport.AcknowledgeOutboxResponse, error) {
	result, err := h.AcknowledgeOutbox.Execute(ctx, commands.AcknowledgeOutboxRequest{
		Account:        account,
		BearerToken:    bearerToken,
		EventID:        eventID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.AcknowledgeOutboxResponse{}, err
	}
	return httptransport.AcknowledgeOutboxResponse{
		AcknowledgedEventID:  result.AcknowledgedEventID,
		RemainingOutboxDepth: result.RemainingOutboxDepth,
	}, nil
}

// ApproveSessionHandler serves POST /sessions/{sessionId}/approve. A
// fingerprint-keyed request is routed through the same C6 dispatcher the
// queue consumer uses; a secret-keyed request calls
// approve_session_by_secret directly, since that variant has no admin
// envelope equivalent (spec.md §4.6 only names the fingerprint form).
func (h Handler) ApproveSessionHandler(ctx context.Context, account, sessionID, idempotencyKey string, req httptransport.ApproveSessionRequest) (httptransport.ApproveSessionResponse, error) {
	if req.AuthKeyFingerprint != "" {
		err := h.Dispatcher.Dispatch(ctx, dispatcher.Envelope{
			Type:               dispatcher.TypeAuthApproval,
			AccountID:          account,
			SessionID:          sessionID,
			AuthKeyFingerprint: req.AuthKeyFingerprint,
			ApprovedBy:         req.ApprovedBy,
			IdempotencyKey:     idempotencyKey,
		})
		if err != nil {
			return httptransport.ApproveSessionResponse{}, err
		}
		// The dispatcher does not return the promotion body, so re-read the
		// outcome the same way a replayed request would: by issuing the
		// idempotent call again against the ledger-backed store.
		result, err := h.ApproveSession.ExecuteByFingerprint(ctx, commands.ApproveByFingerprintRequest{
			Account:            account,
			SessionID:          sessionID,
			AuthKeyFingerprint: req.AuthKeyFingerprint,
			ApprovedBy:         req.ApprovedBy,
			IdempotencyKey:     idempotencyKey,
		})
		if err != nil {
			return httptransport.ApproveSessionResponse{}, err
		}
		return httptransport.ApproveSessionResponse{
			SessionID: result.SessionID,
			Status:    string(result.Status),
			Pending:   result.Pending,
			Message:   result.Message,
		}, nil
	}

	result, err := h.ApproveSession.ExecuteBySecret(ctx, commands.ApproveBySecretRequest{
		Account:        account,
		SessionID:      sessionID,
		Secret:         req.Secret,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.ApproveSessionResponse{}, err
	}
	return httptransport.ApproveSessionResponse{
		SessionID: result.SessionID,
		Status:    string(result.Status),
		Pending:   result.Pending,
		Message:   result.Message,
	}, nil
}

// QueueOutboxEventHandler serves POST /sessions/{sessionId}/outbox,
// routed through the dispatcher so it shares the exact code path the
// queue consumer uses for queueOutboxEvent envelopes.
func (h Handler) QueueOutboxEventHandler(ctx context.Context, account, sessionID, idempotencyKey string, req httptransport.QueueOutboxEventRequest) (httptransport.QueueOutboxEventResponse, error) {
	requiresAck := true
	if req.RequiresAck != nil {
		requiresAck = *req.RequiresAck
	}
	err := h.Dispatcher.Dispatch(ctx, dispatcher.Envelope{
		Type:           dispatcher.TypeQueueOutboxEvent,
		AccountID:      account,
		SessionID:      sessionID,
		EventType:      req.EventType,
		Payload:        req.Payload,
		RequiresAck:    &requiresAck,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.QueueOutboxEventResponse{}, err
	}

	result, err := h.QueueOutboxEvent.Execute(ctx, commands.QueueOutboxEventRequest{
		Account:        account,
		SessionID:      sessionID,
		EventType:      req.EventType,
		Payload:        req.Payload,
		RequiresAck:    requiresAck,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.QueueOutboxEventResponse{}, err
	}
	return httptransport.QueueOutboxEventResponse{
		SessionID:      result.SessionID,
		EventID:        result.EventID,
		Sequence:       result.Sequence,
		PendingSession: result.PendingSession,
	}, nil
}

// PreapproveSessionKeyHandler serves POST /preapprovals. spec.md §4.5 defines
// preapprove_session_key as a core operation but §6's HTTP table never lists
// a transport for it; this route fills that gap the same way the read-only
// GET /sessions/{sessionId}/preapproval fills preapproval_status's.
func (h Handler) PreapproveSessionKeyHandler(ctx context.Context, account string, req httptransport.PreapproveSessionKeyRequest) error {
	return h.PreapproveSessionKey.Execute(ctx, commands.PreapproveSessionKeyRequest{
		Account:    account,
		AuthMethod: entities.AuthMethod(req.AuthMethod),
		Secret:     req.Secret,
		ApprovedBy: req.ApprovedBy,
		ExpiresAt:  req.ExpiresAt,
	})
}

func (h Handler) ListSessionsHandler(ctx context.Context, account string) (httptransport.ListSessionsResponse, error) {
	summaries, err := h.ListSessions.Execute(ctx, account)
	if err != nil {
		return httptransport.ListSessionsResponse{}, err
	}
	items := make([]httptransport.SessionSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, httptransport.SessionSummaryDTO{
			SessionID:       s.SessionID,
			Status:          string(s.Status),
			AuthMethod:      string(s.AuthMethod),
			CreatedAt:       s.CreatedAt,
			LastHeartbeatAt: s.LastHeartbeatAt,
			OutboxDepth:     s.OutboxDepth,
			InboxDepth:      s.InboxDepth,
		})
	}
	return httptransport.ListSessionsResponse{Sessions: items}, nil
}

func (h Handler) PreapprovalStatusHandler(ctx context.Context, account, fingerprint string) (httptransport.PreapprovalStatusResponse, error) {
	record, armed, err := h.PreapprovalStatus.Execute(ctx, account, fingerprint)
	if err != nil {
		return httptransport.PreapprovalStatusResponse{}, err
	}
	if !armed {
		return httptransport.PreapprovalStatusResponse{Fingerprint: fingerprint, Armed: false}, nil
	}
	return httptransport.PreapprovalStatusResponse{
		Fingerprint: fingerprint,
		Armed:       true,
		ApprovedBy:  record.ApprovedBy,
		ExpiresAt:   record.ExpiresAt,
		Expired:     record.Expired(time.Now().UTC()),
	}, nil
}
