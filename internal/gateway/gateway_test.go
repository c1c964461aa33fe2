package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ngotraders/kopitra/internal/gateway"
	"github.com/ngotraders/kopitra/internal/gateway/application/dispatcher"
	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	gatewayerrors "github.com/ngotraders/kopitra/internal/gateway/domain/errors"
	httptransport "github.com/ngotraders/kopitra/internal/gateway/transport/http"
)

func tradeOrderEnvelope(account, sessionID, idempotencyKey string, order entities.TradeOrderRequest) dispatcher.Envelope {
	return dispatcher.Envelope{
		Type:              dispatcher.TypeTradeOrder,
		AccountID:         account,
		SessionID:         sessionID,
		TradeOrderRequest: order,
		IdempotencyKey:    idempotencyKey,
	}
}

// Approval + ack round-trip.
func TestApprovalAndAckRoundTrip(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	created, err := module.Handler.CreateSessionHandler(ctx, "acct-001", "K1", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "shared-secret",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.Status != "pending" || !created.Pending {
		t.Fatalf("expected pending session, got %+v", created)
	}
	if created.PreviousSessionTerminated != nil {
		t.Fatalf("expected no preempted session, got %v", *created.PreviousSessionTerminated)
	}

	snapshot, err := module.Handler.FetchOutboxHandler(ctx, "acct-001", created.SessionToken, 0, 50)
	if err != nil {
		t.Fatalf("fetch outbox before approval: %v", err)
	}
	if !snapshot.Pending || len(snapshot.Events) != 0 {
		t.Fatalf("expected empty pending outbox, got %+v", snapshot)
	}

	promoted, err := module.Handler.ApproveSessionHandler(ctx, "acct-001", created.SessionID, "K3", httptransport.ApproveSessionRequest{
		Secret: "shared-secret",
	})
	if err != nil {
		t.Fatalf("approve by secret: %v", err)
	}
	if promoted.Status != "authenticated" {
		t.Fatalf("expected authenticated status, got %+v", promoted)
	}

	afterApproval, err := module.Handler.FetchOutboxHandler(ctx, "acct-001", created.SessionToken, 0, 50)
	if err != nil {
		t.Fatalf("fetch outbox after approval: %v", err)
	}
	if len(afterApproval.Events) != 1 {
		t.Fatalf("expected exactly one InitAck event, got %d", len(afterApproval.Events))
	}
	initAck := afterApproval.Events[0]
	if initAck.Sequence != 1 || initAck.EventType != "InitAck" || !initAck.RequiresAck {
		t.Fatalf("unexpected InitAck event: %+v", initAck)
	}

	ackResult, err := module.Handler.AcknowledgeOutboxHandler(ctx, "acct-001", created.SessionToken, initAck.ID, "K4")
	if err != nil {
		t.Fatalf("acknowledge outbox: %v", err)
	}
	if ackResult.AcknowledgedEventID != initAck.ID || ackResult.RemainingOutboxDepth != 0 {
		t.Fatalf("unexpected ack result: %+v", ackResult)
	}

	drained, err := module.Handler.FetchOutboxHandler(ctx, "acct-001", created.SessionToken, 0, 50)
	if err != nil {
		t.Fatalf("fetch outbox after ack: %v", err)
	}
	if len(drained.Events) != 0 {
		t.Fatalf("expected drained outbox, got %+v", drained.Events)
	}

	// Acknowledging the same event again reports EventNotFound and leaves
	// the stored depth untouched.
	if _, err := module.Handler.AcknowledgeOutboxHandler(ctx, "acct-001", created.SessionToken, initAck.ID, "K5"); !errors.Is(err, gatewayerrors.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound on re-ack, got %v", err)
	}
}

// Preemption emits a ShutdownNotice on the superseded session's outbox.
func TestPreemptionEmitsShutdownNotice(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	first, err := module.Handler.CreateSessionHandler(ctx, "acct-002", "K1", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "rotating-secret",
	})
	if err != nil {
		t.Fatalf("first create session: %v", err)
	}

	second, err := module.Handler.CreateSessionHandler(ctx, "acct-002", "K2", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "rotating-secret",
	})
	if err != nil {
		t.Fatalf("second create session: %v", err)
	}
	if second.PreviousSessionTerminated == nil || *second.PreviousSessionTerminated != first.SessionID {
		t.Fatalf("expected second session to preempt first, got %+v", second)
	}

	snapshot, err := module.Handler.FetchOutboxHandler(ctx, "acct-002", first.SessionToken, 0, 50)
	if err != nil {
		t.Fatalf("fetch preempted session outbox: %v", err)
	}
	if len(snapshot.Events) != 1 {
		t.Fatalf("expected exactly one trailing event, got %d", len(snapshot.Events))
	}
	notice := snapshot.Events[0]
	if notice.EventType != "ShutdownNotice" {
		t.Fatalf("expected ShutdownNotice, got %s", notice.EventType)
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(notice.Payload, &payload); err != nil {
		t.Fatalf("decode shutdown notice payload: %v", err)
	}
	if payload.Reason != "session_preempted" {
		t.Fatalf("expected session_preempted reason, got %q", payload.Reason)
	}
}

// A terminated session's bearer token can no longer ingest inbox events.
func TestTerminatedSessionRejectsInbox(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	first, err := module.Handler.CreateSessionHandler(ctx, "acct-003", "K1", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "shared-secret",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := module.Handler.CreateSessionHandler(ctx, "acct-003", "K2", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "shared-secret",
	}); err != nil {
		t.Fatalf("preempting create session: %v", err)
	}

	occurredAt := time.Now().UTC()
	_, err = module.Handler.IngestInboxHandler(ctx, "acct-003", first.SessionToken, "K3", httptransport.IngestInboxRequestBody{
		Events: []httptransport.InboxEventDTO{
			{EventType: "StatusHeartbeat", Payload: []byte(`{"state":"terminated"}`), OccurredAt: &occurredAt},
		},
	})
	if !errors.Is(err, gatewayerrors.ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
}

// Replaying the same idempotency key with an identical body returns a
// byte-identical response, including the minted session id and token.
func TestReplayReturnsStoredBody(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	req := httptransport.CreateSessionRequest{AuthMethod: "account_session_key", Secret: "s"}

	first, err := module.Handler.CreateSessionHandler(ctx, "acct-A", "KX", req)
	if err != nil {
		t.Fatalf("first create session: %v", err)
	}
	second, err := module.Handler.CreateSessionHandler(ctx, "acct-A", "KX", req)
	if err != nil {
		t.Fatalf("replayed create session: %v", err)
	}
	if first.SessionID != second.SessionID || first.SessionToken != second.SessionToken {
		t.Fatalf("expected byte-identical replay, got %+v and %+v", first, second)
	}
}

// A conflicting body reused against the same idempotency key is rejected,
// not silently replayed.
func TestReplayWithDifferentBodyConflicts(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	if _, err := module.Handler.CreateSessionHandler(ctx, "acct-conflict", "KX", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "s1",
	}); err != nil {
		t.Fatalf("first create session: %v", err)
	}

	_, err := module.Handler.CreateSessionHandler(ctx, "acct-conflict", "KX", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "s2",
	})
	if !errors.Is(err, gatewayerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

// Trade-order defaulting: omitted orderType defaults to "market" on
// open/close commands, and the normalized fields survive into the outbox
// payload.
func TestTradeOrderDefaulting(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	created, err := module.Handler.CreateSessionHandler(ctx, "acct-orders-002", "K1", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "s",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := module.Handler.ApproveSessionHandler(ctx, "acct-orders-002", created.SessionID, "K2", httptransport.ApproveSessionRequest{
		Secret: "s",
	}); err != nil {
		t.Fatalf("approve session: %v", err)
	}

	volume := 0.75
	if err := module.Dispatcher.Dispatch(ctx, tradeOrderEnvelope("acct-orders-002", created.SessionID, "K3", entities.TradeOrderRequest{
		CommandType: "close",
		Instrument:  "GBPUSD",
		PositionID:  "ticket-100",
		Volume:      &volume,
	})); err != nil {
		t.Fatalf("dispatch trade order: %v", err)
	}

	snapshot, err := module.Handler.FetchOutboxHandler(ctx, "acct-orders-002", created.SessionToken, 0, 50)
	if err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	var orderEvent *httptransport.OutboxEventDTO
	for i := range snapshot.Events {
		if snapshot.Events[i].EventType == "OrderCommand" {
			orderEvent = &snapshot.Events[i]
		}
	}
	if orderEvent == nil {
		t.Fatalf("expected an OrderCommand event, got %+v", snapshot.Events)
	}

	var payload struct {
		OrderType   string  `json:"orderType"`
		PositionID  string  `json:"positionId"`
		CommandType string  `json:"commandType"`
		Volume      float64 `json:"volume"`
	}
	if err := json.Unmarshal(orderEvent.Payload, &payload); err != nil {
		t.Fatalf("decode order payload: %v", err)
	}
	if payload.OrderType != "market" || payload.PositionID != "ticket-100" || payload.CommandType != "close" || payload.Volume != 0.75 {
		t.Fatalf("unexpected normalized payload: %+v", payload)
	}
}

// Closing without a position id is rejected before anything is enqueued.
func TestCloseWithoutPositionIDRejected(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	created, err := module.Handler.CreateSessionHandler(ctx, "acct-orders-003", "K1", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "s",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := module.Handler.ApproveSessionHandler(ctx, "acct-orders-003", created.SessionID, "K2", httptransport.ApproveSessionRequest{
		Secret: "s",
	}); err != nil {
		t.Fatalf("approve session: %v", err)
	}

	volume := 0.5
	err = module.Dispatcher.Dispatch(ctx, tradeOrderEnvelope("acct-orders-003", created.SessionID, "K3", entities.TradeOrderRequest{
		CommandType: "close",
		Instrument:  "EURUSD",
		Volume:      &volume,
	}))
	if !errors.Is(err, gatewayerrors.ErrPositionIDRequired) {
		t.Fatalf("expected ErrPositionIDRequired, got %v", err)
	}
}

// Pre-approving a credential before it creates a session brings the
// session up already Authenticated, with a single InitAck at sequence 1.
func TestPreapprovalConsumedAtCreation(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	if err := module.Handler.PreapproveSessionKeyHandler(ctx, "acct-pre", httptransport.PreapproveSessionKeyRequest{
		AuthMethod: "account_session_key",
		Secret:     "armed-secret",
		ApprovedBy: "ops",
	}); err != nil {
		t.Fatalf("preapprove session key: %v", err)
	}

	created, err := module.Handler.CreateSessionHandler(ctx, "acct-pre", "K1", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "armed-secret",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.Status != "authenticated" {
		t.Fatalf("expected session to come up authenticated, got %+v", created)
	}

	snapshot, err := module.Handler.FetchOutboxHandler(ctx, "acct-pre", created.SessionToken, 0, 50)
	if err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	if len(snapshot.Events) != 1 || snapshot.Events[0].EventType != "InitAck" || snapshot.Events[0].Sequence != 1 {
		t.Fatalf("expected exactly one InitAck at sequence 1, got %+v", snapshot.Events)
	}
}

// fingerprint is a pure function: the same (account, secret) under two
// different auth methods never collides on the active-session index.
func TestFingerprintVariesByAuthMethod(t *testing.T) {
	module := gateway.NewInMemoryModule(nil)
	ctx := context.Background()

	sessionKey, err := module.Handler.CreateSessionHandler(ctx, "acct-fp", "K1", httptransport.CreateSessionRequest{
		AuthMethod: "account_session_key",
		Secret:     "same-secret",
	})
	if err != nil {
		t.Fatalf("create session (account_session_key): %v", err)
	}
	presharedKey, err := module.Handler.CreateSessionHandler(ctx, "acct-fp", "K2", httptransport.CreateSessionRequest{
		AuthMethod: "pre_shared_key",
		Secret:     "same-secret",
	})
	if err != nil {
		t.Fatalf("create session (pre_shared_key): %v", err)
	}
	if sessionKey.PreviousSessionTerminated != nil || presharedKey.PreviousSessionTerminated != nil {
		t.Fatalf("different auth methods must not collide on the active-session index: %+v / %+v", sessionKey, presharedKey)
	}
}
