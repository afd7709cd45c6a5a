package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appOrder "github.com/minimart/order-settlement/internal/application/order"
	appSettlement "github.com/minimart/order-settlement/internal/application/settlement"
	domcatalog "github.com/minimart/order-settlement/internal/domain/catalog"
	domuser "github.com/minimart/order-settlement/internal/domain/user"
	httptransport "github.com/minimart/order-settlement/internal/infrastructure/http"
	"github.com/minimart/order-settlement/internal/infrastructure/id"
	"github.com/minimart/order-settlement/internal/infrastructure/memory"
	"github.com/minimart/order-settlement/internal/infrastructure/observability/oteltrace"
	"github.com/minimart/order-settlement/internal/infrastructure/observability/prometrics"
	"github.com/minimart/order-settlement/internal/infrastructure/observability/telemetry"
	"github.com/minimart/order-settlement/internal/infrastructure/observability/zaplogger"
	"github.com/minimart/order-settlement/internal/infrastructure/outbox"
	settlementworker "github.com/minimart/order-settlement/internal/infrastructure/settlement/worker"
	"github.com/minimart/order-settlement/internal/observability"
	"github.com/minimart/order-settlement/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "order-settlement")
	env := getenvDefault("ENV", "dev")
	addr := getenvDefault("ADDR", ":8080")

	baseZap := logging.MustNewLogger(serviceName, env)
	defer func() { _ = baseZap.Sync() }()
	zap.ReplaceGlobals(baseZap)

	logger := zaplogger.Wrap(baseZap)

	registry := prometrics.New("minimart", "settlement")
	tel := telemetry.New(
		oteltrace.New(serviceName),
		logger,
		map[observability.MetricKey]observability.Counter{
			observability.MUsecaseRequests: registry.Counter(
				string(observability.MUsecaseRequests),
				"Total number of use case invocations.",
				"use_case", "outcome",
			),
			observability.MHTTPRequests: registry.Counter(
				string(observability.MHTTPRequests),
				"Total number of HTTP requests.",
				"method", "route", "status",
			),
			observability.MStockAdjustments: registry.Counter(
				string(observability.MStockAdjustments),
				"Stock ledger adjustments attempted during settlement.",
				"outcome",
			),
			observability.MCompensationEntries: registry.Counter(
				string(observability.MCompensationEntries),
				"Compensation entries processed by the rollback executor.",
				"outcome",
			),
		},
		map[observability.MetricKey]observability.Histogram{
			observability.MUsecaseDuration: registry.Histogram(
				string(observability.MUsecaseDuration),
				"Duration of use case execution in seconds.",
				prometheus.DefBuckets,
				"use_case",
			),
			observability.MHTTPRequestDuration: registry.Histogram(
				string(observability.MHTTPRequestDuration),
				"Duration of HTTP requests in seconds.",
				prometheus.DefBuckets,
				"method", "route", "status",
			),
		},
	)

	orderRepo := memory.NewOrderRepository()
	productRepo := memory.NewProductRepository()
	userRepo := memory.NewUserRepository()
	idGenerator := id.NewUUIDGenerator()

	bus := outbox.NewBus(logger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	adjustTimeout := getenvDuration("SETTLE_ADJUST_TIMEOUT", 2*time.Second)

	orderService := appOrder.NewService(orderRepo, productRepo, userRepo, idGenerator, logger)
	settlementService := appSettlement.NewService(
		orderRepo, userRepo, productRepo, bus, tel,
		appSettlement.WithAdjustTimeout(adjustTimeout),
	)
	rollbackExecutor := appSettlement.NewExecutor(productRepo, tel,
		appSettlement.WithRollbackAdjustTimeout(adjustTimeout),
	)

	compensationWorker := settlementworker.New(bus, rollbackExecutor, logger)
	compensationWorker.Start()

	if getenvDefault("SEED_DEMO", "true") == "true" {
		seedDemoData(productRepo, userRepo, logger)
	}

	handler := httptransport.NewHandler(orderService, settlementService)
	mw := httptransport.ObservabilityMiddleware(logger, tel)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", mw(handler.Router()))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error",
				observability.F("error", err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error",
			observability.F("error", err),
		)
	} else {
		logger.Info("http_server_stopped")
	}
}

func seedDemoData(products *memory.ProductRepository, users *memory.UserRepository, logger observability.Logger) {
	ctx := context.Background()

	demoUser := &domuser.User{ID: "user-1", Name: "Demo User", Email: "demo@minimart.local"}
	if err := users.Save(ctx, demoUser); err != nil {
		logger.Warn("seed_user_failed", observability.F("error", err))
	}

	seed := []struct {
		id    string
		name  string
		price int64
		stock int
	}{
		{"prod-keyboard", "Mechanical Keyboard", 8900, 25},
		{"prod-mouse", "Wireless Mouse", 2500, 40},
		{"prod-monitor", "27in Monitor", 21900, 10},
	}
	for _, p := range seed {
		product, err := domcatalog.NewProduct(p.id, p.name, p.price, p.stock)
		if err != nil {
			logger.Warn("seed_product_invalid", observability.F("product_id", p.id), observability.F("error", err))
			continue
		}
		if err := products.Save(ctx, product); err != nil {
			logger.Warn("seed_product_failed", observability.F("product_id", p.id), observability.F("error", err))
		}
	}

	logger.Info("demo_data_seeded", observability.F("products", len(seed)))
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
