package worker

import (
	"context"

	appsettlement "github.com/minimart/order-settlement/internal/application/settlement"
	domoutbox "github.com/minimart/order-settlement/internal/domain/outbox"
	domsettlement "github.com/minimart/order-settlement/internal/domain/settlement"
	"github.com/minimart/order-settlement/internal/observability"
	"github.com/minimart/order-settlement/internal/observability/logctx"
)

// Worker consumes rollback requests from the bus and drives the compensation
// executor. Running the executor here keeps the settle request path free of
// rollback latency.
type Worker struct {
	subscriber domoutbox.Subscriber
	executor   *appsettlement.Executor
	log        observability.Logger
}

func New(subscriber domoutbox.Subscriber, executor *appsettlement.Executor, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		subscriber: subscriber,
		executor:   executor,
		log:        logger.With(observability.F("component", "compensation_worker")),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domsettlement.RollbackRequestedEvent{}.EventName(), w.handleRollbackRequested)
}

func (w *Worker) handleRollbackRequested(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domsettlement.RollbackRequestedEvent)
	if !ok {
		return nil
	}

	logger := logctx.FromOr(ctx, w.log)
	logger.Info("rollback_started",
		observability.F("order_id", evt.OrderID),
		observability.F("entries", len(evt.Entries)),
		observability.F("reason", evt.Reason),
	)

	w.executor.Rollback(ctx, evt.OrderID, evt.Entries)

	logger.Info("rollback_finished",
		observability.F("order_id", evt.OrderID),
	)
	return nil
}
