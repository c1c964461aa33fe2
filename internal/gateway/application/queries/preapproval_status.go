package queries

import (
	"context"

	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// PreapprovalStatusQuery wires the supplemented preapproval_status lookup.
type PreapprovalStatusQuery struct {
	Store ports.Store
}

func (q PreapprovalStatusQuery) Execute(ctx context.Context, account, fingerprint string) (entities.PreapprovalRecord, bool, error) {
	return q.Store.PreapprovalStatus(ctx, account, fingerprint)
}
