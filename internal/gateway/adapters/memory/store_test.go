package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ngotraders/kopitra/internal/gateway/adapters/system"
	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	gatewayerrors "github.com/ngotraders/kopitra/internal/gateway/domain/errors"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

func newTestStore() *Store {
	return NewStore(system.Clock{}, system.IDGenerator{}, nil)
}

// A nil Metrics port must never cause a panic: every call site guards it.
func TestStoreToleratesNilMetrics(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.CreateSession(ctx, ports.CreateSessionInput{
		Account:        "acct-nil-metrics",
		AuthMethod:     entities.AuthMethodAccountSessionKey,
		Secret:         "s",
		IdempotencyKey: "K1",
	}); err != nil {
		t.Fatalf("create session with nil metrics: %v", err)
	}
}

// Rejecting with a fingerprint that does not match the session's own
// fingerprint fails AuthenticationFailed, distinct from SessionMismatch
// (which covers an unknown session id entirely).
func TestRejectSessionFingerprintMismatch(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	created, err := store.CreateSession(ctx, ports.CreateSessionInput{
		Account:        "acct-reject",
		AuthMethod:     entities.AuthMethodAccountSessionKey,
		Secret:         "s",
		IdempotencyKey: "K1",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err = store.RejectSession(ctx, ports.RejectSessionInput{
		Account:            "acct-reject",
		SessionID:          created.SessionID,
		AuthKeyFingerprint: "not-the-real-fingerprint",
		Reason:             "operator mistake",
		IdempotencyKey:     "K2",
	})
	if !errors.Is(err, gatewayerrors.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

// A second reject_session call against an already-terminated session is
// idempotent: it reports already_terminated rather than erroring.
func TestRejectSessionIsIdempotentOnceTerminated(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	created, err := store.CreateSession(ctx, ports.CreateSessionInput{
		Account:        "acct-reject-2",
		AuthMethod:     entities.AuthMethodAccountSessionKey,
		Secret:         "s",
		IdempotencyKey: "K1",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	first, err := store.RejectSession(ctx, ports.RejectSessionInput{
		Account:        "acct-reject-2",
		SessionID:      created.SessionID,
		Reason:         "operator decision",
		IdempotencyKey: "K2",
	})
	if err != nil {
		t.Fatalf("first reject: %v", err)
	}
	if first.AlreadyTerminated {
		t.Fatalf("expected the first rejection to actually terminate the session")
	}

	second, err := store.RejectSession(ctx, ports.RejectSessionInput{
		Account:        "acct-reject-2",
		SessionID:      created.SessionID,
		Reason:         "operator decision",
		IdempotencyKey: "K3",
	})
	if err != nil {
		t.Fatalf("second reject: %v", err)
	}
	if !second.AlreadyTerminated {
		t.Fatalf("expected the second rejection to report already_terminated")
	}
}

// Outbox sequence numbers are a strictly increasing, contiguous range
// starting at 1 while no event has been acknowledged.
func TestOutboxSequencesAreContiguous(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	created, err := store.CreateSession(ctx, ports.CreateSessionInput{
		Account:        "acct-seq",
		AuthMethod:     entities.AuthMethodAccountSessionKey,
		Secret:         "s",
		IdempotencyKey: "K1",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := store.ApproveBySecret(ctx, ports.ApproveBySecretInput{
		Account:        "acct-seq",
		SessionID:      created.SessionID,
		Secret:         "s",
		IdempotencyKey: "K2",
	}); err != nil {
		t.Fatalf("approve session: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.QueueOutboxEvent(ctx, ports.QueueOutboxEventInput{
			Account:        "acct-seq",
			SessionID:      created.SessionID,
			EventType:      "CopyTradeConfig",
			Payload:        []byte(`{}`),
			RequiresAck:    true,
			IdempotencyKey: fmt.Sprintf("K%d", 3+i),
		}); err != nil {
			t.Fatalf("queue outbox event %d: %v", i, err)
		}
	}

	snapshot, err := store.FetchOutbox(ctx, ports.FetchOutboxInput{
		Account:     "acct-seq",
		BearerToken: created.SessionToken,
		Cursor:      0,
		Limit:       50,
	})
	if err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	// InitAck (sequence 1) plus three CopyTradeConfig events.
	if len(snapshot.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(snapshot.Events))
	}
	for i, event := range snapshot.Events {
		want := uint64(i + 1)
		if event.Sequence != want {
			t.Fatalf("expected sequence %d at index %d, got %d", want, i, event.Sequence)
		}
	}
}

var _ ports.Store = (*Store)(nil)
