package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	domcatalog "github.com/minimart/order-settlement/internal/domain/catalog"
	domorder "github.com/minimart/order-settlement/internal/domain/order"
	domoutbox "github.com/minimart/order-settlement/internal/domain/outbox"
	domsettlement "github.com/minimart/order-settlement/internal/domain/settlement"
	domuser "github.com/minimart/order-settlement/internal/domain/user"
	"github.com/minimart/order-settlement/internal/observability"
	"github.com/minimart/order-settlement/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	settlementService    = "settlement-service"
	useCaseSettle        = "settlement.settle"
	spanPrefix           = "UC."
	defaultAdjustTimeout = 2 * time.Second
)

// Result is returned on successful settlement: the paid order with the owning
// user's display fields resolved.
type Result struct {
	Order *domorder.Order
	User  *domuser.User
}

// Service settles an order against the stock ledger. One goroutine per order
// line deducts stock; the service waits for every line before deciding the
// outcome, so the compensation log always reflects the full set of applied
// deductions. On any failure the applied deductions are handed to the
// compensation worker via the event bus and the caller gets the failure
// without waiting for rollback.
type Service struct {
	orders        domorder.Repository
	users         domuser.Repository
	ledger        domcatalog.Ledger
	publisher     domoutbox.Publisher
	tel           observability.Observability
	adjustTimeout time.Duration

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	adjCounter   observability.Counter   // stock_adjustments_total{outcome}
}

type Option func(*Service)

// WithAdjustTimeout bounds each individual stock adjustment. A timed-out
// adjustment surfaces as catalog.ErrUnavailable.
func WithAdjustTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.adjustTimeout = d
		}
	}
}

func NewService(
	orders domorder.Repository,
	users domuser.Repository,
	ledger domcatalog.Ledger,
	publisher domoutbox.Publisher,
	tel observability.Observability,
	opts ...Option,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}

	s := &Service{
		orders:        orders,
		users:         users,
		ledger:        ledger,
		publisher:     publisher,
		tel:           tel,
		adjustTimeout: defaultAdjustTimeout,
		log: tel.Logger().With(
			observability.F("service", settlementService),
		),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
		adjCounter:   tel.Metrics().Counter(observability.MStockAdjustments),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settle executes the stock-settlement routine for the given order. The
// payment confirmation payload is opaque; it is attached to the order when the
// settlement succeeds.
func (s *Service) Settle(ctx context.Context, orderID string, paymentResult map[string]string) (_ *Result, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseSettle))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"Settle",
		attribute.String("use_case", useCaseSettle),
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		s.reqCounter.Add(1,
			observability.L("use_case", useCaseSettle),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat,
			observability.L("use_case", useCaseSettle),
		)

		fields := []observability.Field{
			observability.F("order_id", orderID),
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	ord, err := s.orders.Get(ctx, orderID)
	if err != nil {
		outcome, statusText = "error", "ORDER_NOT_FOUND"
		return nil, err
	}
	if err = ord.Settleable(); err != nil {
		// Fail fast before any stock is touched.
		outcome, statusText = "error", "ALREADY_SETTLED"
		return nil, err
	}

	compLog, cause := s.deductLines(ctx, ord)
	if cause != nil {
		outcome, statusText = "error", "STOCK_DEDUCTION_FAILED"
		span.AddEvent("settlement.rollback_requested",
			trace.WithAttributes(attribute.Int("settlement.applied_entries", compLog.Len())),
		)
		s.requestRollback(ctx, ord.ID, compLog, cause)
		return nil, cause
	}

	if err = ord.MarkPaid(paymentResult); err != nil {
		outcome, statusText = "error", "MARK_PAID_FAILED"
		s.requestRollback(ctx, ord.ID, compLog, err)
		return nil, err
	}
	if err = s.orders.Update(ctx, ord); err != nil {
		outcome, statusText = "error", "ORDER_UPDATE_FAILED"
		s.requestRollback(ctx, ord.ID, compLog, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.status", string(ord.Status)))
	span.AddEvent("settlement.order_settled")

	if s.publisher != nil {
		if perr := s.publisher.Publish(ctx, domsettlement.NewOrderSettledEvent(ord.ID, ord.UserID, ord.TotalPrice)); perr != nil {
			logger.Warn("order_settled_event_publish_failed",
				observability.F("order_id", ord.ID),
				observability.F("error", perr),
			)
		}
	}

	result := &Result{Order: ord}
	if s.users != nil {
		if u, uerr := s.users.Get(ctx, ord.UserID); uerr == nil {
			result.User = u
		} else {
			logger.Warn("user_resolve_failed",
				observability.F("order_id", ord.ID),
				observability.F("user_id", ord.UserID),
				observability.F("error", uerr),
			)
		}
	}
	return result, nil
}

// deductLines fans out one stock deduction per order line and waits for every
// line to finish. In-flight deductions are never cancelled on a sibling's
// failure; an uncancelled deduction that succeeds must land in the
// compensation log or its stock would be lost. When several lines fail, the
// last observed cause is the one reported.
func (s *Service) deductLines(ctx context.Context, ord *domorder.Order) (*domsettlement.Log, error) {
	logger := logctx.FromOr(ctx, s.log)
	compLog := domsettlement.NewLog()

	var (
		mu      sync.Mutex
		lastErr error
		wg      sync.WaitGroup
	)

	for _, line := range ord.Lines {
		wg.Add(1)
		go func(line domorder.Line) {
			defer wg.Done()

			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.adjustTimeout)
			defer cancel()

			err := s.ledger.Adjust(actx, line.ProductID, line.Quantity)
			if errors.Is(err, context.DeadlineExceeded) {
				err = domcatalog.ErrUnavailable
			}
			if err != nil {
				s.adjCounter.Add(1, observability.L("outcome", "error"))
				logger.Warn("stock_deduction_failed",
					observability.F("order_id", ord.ID),
					observability.F("product_id", line.ProductID),
					observability.F("quantity", line.Quantity),
					observability.F("error", err),
				)
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return
			}

			s.adjCounter.Add(1, observability.L("outcome", "success"))
			compLog.Append(domsettlement.CompensationEntry{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			})
		}(line)
	}

	wg.Wait()
	return compLog, lastErr
}

// requestRollback hands the applied deductions to the compensation worker.
// Publish must not inherit the request's cancellation: the caller is about to
// receive the failure and may disconnect, but the compensation still has to run.
func (s *Service) requestRollback(ctx context.Context, orderID string, compLog *domsettlement.Log, cause error) {
	if s.publisher == nil || compLog.Len() == 0 {
		return
	}
	evt := domsettlement.NewRollbackRequestedEvent(orderID, compLog.Entries(), cause.Error())
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		logctx.FromOr(ctx, s.log).Error("rollback_request_publish_failed",
			observability.F("order_id", orderID),
			observability.F("entries", compLog.Len()),
			observability.F("error", err),
		)
	}
}
