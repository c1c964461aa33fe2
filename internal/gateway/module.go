// Package gateway is the composition surface for the trading-agent
// gateway: it wires ports.Store against the command/query layer, the
// admin dispatcher, and the transport-agnostic HTTP handler.
package gateway

import (
	"log/slog"

	httpadapter "github.com/ngotraders/kopitra/internal/gateway/adapters/http"
	"github.com/ngotraders/kopitra/internal/gateway/adapters/memory"
	"github.com/ngotraders/kopitra/internal/gateway/adapters/system"
	"github.com/ngotraders/kopitra/internal/gateway/application/commands"
	"github.com/ngotraders/kopitra/internal/gateway/application/dispatcher"
	"github.com/ngotraders/kopitra/internal/gateway/application/queries"
	"github.com/ngotraders/kopitra/internal/gateway/ports"
)

// Module is the gateway's composition surface exposed to runtime wiring.
type Module struct {
	Handler    httpadapter.Handler
	Dispatcher dispatcher.Dispatcher
	Store      *memory.Store
}

// Dependencies captures runtime ports/config required by NewModule.
type Dependencies struct {
	Store       ports.Store
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

// NewModule wires the gateway's use cases against explicit ports.
func NewModule(deps Dependencies) Module {
	createSession := commands.CreateSessionCommand{Store: deps.Store, Logger: deps.Logger}
	deleteSession := commands.DeleteSessionCommand{Store: deps.Store, Logger: deps.Logger}
	ingestInbox := commands.IngestInboxCommand{Store: deps.Store, Logger: deps.Logger}
	acknowledgeOutbox := commands.AcknowledgeOutboxCommand{Store: deps.Store, Logger: deps.Logger}
	approveSession := commands.ApproveSessionCommand{Store: deps.Store, Logger: deps.Logger}
	rejectSession := commands.RejectSessionCommand{Store: deps.Store, Logger: deps.Logger}
	queueOutboxEvent := commands.QueueOutboxEventCommand{Store: deps.Store, Logger: deps.Logger}
	queueTradeOrder := commands.QueueTradeOrderCommand{Store: deps.Store, Logger: deps.Logger}
	preapproveSessionKey := commands.PreapproveSessionKeyCommand{Store: deps.Store, Logger: deps.Logger}

	fetchOutbox := queries.FetchOutboxQuery{Store: deps.Store, Logger: deps.Logger}
	listSessions := queries.ListSessionsQuery{Store: deps.Store}
	preapprovalStatus := queries.PreapprovalStatusQuery{Store: deps.Store}

	adminDispatcher := dispatcher.Dispatcher{
		Approve:     approveSession,
		Reject:      rejectSession,
		QueueEvent:  queueOutboxEvent,
		QueueTrade:  queueTradeOrder,
		IDGenerator: deps.IDGenerator,
		Metrics:     deps.Metrics,
		Logger:      deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateSession:     createSession,
			DeleteSession:     deleteSession,
			IngestInbox:       ingestInbox,
			AcknowledgeOutbox: acknowledgeOutbox,
			ApproveSession:    approveSession,
			QueueOutboxEvent:  queueOutboxEvent,
			FetchOutbox:       fetchOutbox,
			ListSessions:         listSessions,
			PreapprovalStatus:    preapprovalStatus,
			PreapproveSessionKey: preapproveSessionKey,
			Dispatcher:           adminDispatcher,
			Logger:               deps.Logger,
		},
		Dispatcher: adminDispatcher,
	}
}

// NewInMemoryModule wires the gateway against the in-process memory.Store,
// the only store spec.md §6's Persisted state section allows, using the
// real system clock and UUID generator and no metrics registration.
func NewInMemoryModule(logger *slog.Logger) Module {
	clock := system.Clock{}
	ids := system.IDGenerator{}
	store := memory.NewStore(clock, ids, nil)
	module := NewModule(Dependencies{
		Store:       store,
		Clock:       clock,
		IDGenerator: ids,
		Logger:      logger,
	})
	module.Store = store
	return module
}
