package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	domcatalog "github.com/minimart/order-settlement/internal/domain/catalog"
	domsettlement "github.com/minimart/order-settlement/internal/domain/settlement"
	"github.com/minimart/order-settlement/internal/observability"
	"github.com/minimart/order-settlement/internal/observability/logctx"
)

// UnresolvedEntry is a compensation that could not be applied. It is kept for
// out-of-band reconciliation; the settlement caller never sees it.
type UnresolvedEntry struct {
	OrderID    string
	Entry      domsettlement.CompensationEntry
	Cause      string
	OccurredAt time.Time
}

// Executor restores stock for compensation entries of a failed settlement.
// Rollback is best-effort: each entry gets exactly one inverse adjustment,
// failures are logged and recorded but never returned, because by the time
// rollback runs the client already has its failure response.
type Executor struct {
	ledger        domcatalog.Ledger
	adjustTimeout time.Duration

	log         observability.Logger
	compCounter observability.Counter // compensation_entries_total{outcome}

	mu         sync.Mutex
	unresolved []UnresolvedEntry
}

func NewExecutor(ledger domcatalog.Ledger, tel observability.Observability, opts ...ExecutorOption) *Executor {
	if tel == nil {
		tel = observability.Nop()
	}
	e := &Executor{
		ledger:        ledger,
		adjustTimeout: defaultAdjustTimeout,
		log: tel.Logger().With(
			observability.F("component", "rollback_executor"),
		),
		compCounter: tel.Metrics().Counter(observability.MCompensationEntries),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type ExecutorOption func(*Executor)

func WithRollbackAdjustTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.adjustTimeout = d
		}
	}
}

// Rollback issues the inverse stock adjustment for every entry, fan-out/fan-in
// like settlement. It never returns an error.
func (e *Executor) Rollback(ctx context.Context, orderID string, entries []domsettlement.CompensationEntry) {
	if len(entries) == 0 {
		return
	}
	logger := logctx.FromOr(ctx, e.log)

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(entry domsettlement.CompensationEntry) {
			defer wg.Done()

			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.adjustTimeout)
			defer cancel()

			err := e.ledger.Adjust(actx, entry.ProductID, -entry.Quantity)
			if errors.Is(err, context.DeadlineExceeded) {
				err = domcatalog.ErrUnavailable
			}
			if err != nil {
				e.compCounter.Add(1, observability.L("outcome", "error"))
				logger.Error("compensation_failed",
					observability.F("order_id", orderID),
					observability.F("product_id", entry.ProductID),
					observability.F("quantity", entry.Quantity),
					observability.F("error", err),
				)
				e.recordUnresolved(orderID, entry, err)
				return
			}

			e.compCounter.Add(1, observability.L("outcome", "success"))
			logger.Info("compensation_applied",
				observability.F("order_id", orderID),
				observability.F("product_id", entry.ProductID),
				observability.F("quantity", entry.Quantity),
			)
		}(entry)
	}
	wg.Wait()
}

func (e *Executor) recordUnresolved(orderID string, entry domsettlement.CompensationEntry, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unresolved = append(e.unresolved, UnresolvedEntry{
		OrderID:    orderID,
		Entry:      entry,
		Cause:      cause.Error(),
		OccurredAt: time.Now().UTC(),
	})
}

// UnresolvedEntries returns the compensations that failed, for reconciliation.
func (e *Executor) UnresolvedEntries() []UnresolvedEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]UnresolvedEntry(nil), e.unresolved...)
}
