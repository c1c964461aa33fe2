package queries

import (
	"context"

	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// ListSessionsQuery wires the supplemented list_sessions projection.
type ListSessionsQuery struct {
	Store ports.Store
}

func (q ListSessionsQuery) Execute(ctx context.Context, account string) ([]ports.SessionSummary, error) {
	return q.Store.ListSessions(ctx, account)
}
