package worker

import (
	"context"
	"testing"
	"time"

	appsettlement "github.com/minimart/order-settlement/internal/application/settlement"
	domcatalog "github.com/minimart/order-settlement/internal/domain/catalog"
	domorder "github.com/minimart/order-settlement/internal/domain/order"
	domsettlement "github.com/minimart/order-settlement/internal/domain/settlement"
	"github.com/minimart/order-settlement/internal/infrastructure/memory"
	"github.com/minimart/order-settlement/internal/infrastructure/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStock(t *testing.T, repo *memory.ProductRepository, productID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		product, err := repo.Get(context.Background(), productID)
		require.NoError(t, err)
		if product.Stock == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	product, err := repo.Get(context.Background(), productID)
	require.NoError(t, err)
	t.Fatalf("stock for %s is %d, want %d", productID, product.Stock, want)
}

func TestWorker_AppliesRollbackFromBus(t *testing.T) {
	products := memory.NewProductRepository()
	product, err := domcatalog.NewProduct("prod-x", "x", 100, 3)
	require.NoError(t, err)
	require.NoError(t, products.Save(context.Background(), product))

	bus := outbox.NewBus(nil)
	executor := appsettlement.NewExecutor(products, nil)
	New(bus, executor, nil).Start()
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), domsettlement.NewRollbackRequestedEvent(
		"order-1",
		[]domsettlement.CompensationEntry{{ProductID: "prod-x", Quantity: 2}},
		"insufficient stock elsewhere",
	)))

	waitForStock(t, products, "prod-x", 5)
}

func TestWorker_EndToEndFailedSettlementRestoresStock(t *testing.T) {
	// Full path: orchestrator fans out, one line fails, the rollback event
	// crosses the bus and the worker restores the provisional deduction.
	orders := memory.NewOrderRepository()
	products := memory.NewProductRepository()
	users := memory.NewUserRepository()

	for _, p := range []struct {
		id    string
		stock int
	}{
		{"prod-x", 5},
		{"prod-y", 0},
	} {
		product, err := domcatalog.NewProduct(p.id, p.id, 100, p.stock)
		require.NoError(t, err)
		require.NoError(t, products.Save(context.Background(), product))
	}

	ord, err := domorder.New("order-1", "user-1", []domorder.Line{
		{ProductID: "prod-x", Quantity: 2, UnitPrice: 100},
		{ProductID: "prod-y", Quantity: 1, UnitPrice: 100},
	}, domorder.Address{}, "card", 300, 0, 300)
	require.NoError(t, err)
	require.NoError(t, orders.Insert(context.Background(), ord))

	bus := outbox.NewBus(nil)
	executor := appsettlement.NewExecutor(products, nil)
	New(bus, executor, nil).Start()
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	svc := appsettlement.NewService(orders, users, products, bus, nil)
	_, err = svc.Settle(context.Background(), "order-1", nil)
	require.ErrorIs(t, err, domcatalog.ErrInsufficientStock)

	// Compensation runs behind the caller's back.
	waitForStock(t, products, "prod-x", 5)

	stored, err := orders.Get(context.Background(), "order-1")
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
	assert.Empty(t, executor.UnresolvedEntries())
}
