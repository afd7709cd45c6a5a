package memory

import (
	"context"
	"sync"
	"testing"

	domain "github.com/minimart/order-settlement/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveProduct(t *testing.T, repo *ProductRepository, id string, stock int) {
	t.Helper()
	product, err := domain.NewProduct(id, id, 100, stock)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), product))
}

func TestProductRepository_AdjustDeductsAndRestores(t *testing.T) {
	repo := NewProductRepository()
	saveProduct(t, repo, "prod-x", 5)

	require.NoError(t, repo.Adjust(context.Background(), "prod-x", 3))
	got, err := repo.Get(context.Background(), "prod-x")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	require.NoError(t, repo.Adjust(context.Background(), "prod-x", -3))
	got, err = repo.Get(context.Background(), "prod-x")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestProductRepository_AdjustRejectsOverdraw(t *testing.T) {
	repo := NewProductRepository()
	saveProduct(t, repo, "prod-x", 2)

	err := repo.Adjust(context.Background(), "prod-x", 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	got, getErr := repo.Get(context.Background(), "prod-x")
	require.NoError(t, getErr)
	assert.Equal(t, 2, got.Stock)
}

func TestProductRepository_AdjustUnknownProduct(t *testing.T) {
	repo := NewProductRepository()
	err := repo.Adjust(context.Background(), "prod-gone", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProductRepository_AdjustCancelledContext(t *testing.T) {
	repo := NewProductRepository()
	saveProduct(t, repo, "prod-x", 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Adjust(ctx, "prod-x", 1)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestProductRepository_ConcurrentAdjustNeverGoesNegative(t *testing.T) {
	const (
		initialStock = 10
		attempts     = 50
	)

	repo := NewProductRepository()
	saveProduct(t, repo, "prod-x", initialStock)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Adjust(context.Background(), "prod-x", 1); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := repo.Get(context.Background(), "prod-x")
	require.NoError(t, err)
	assert.Equal(t, initialStock, successes)
	assert.Equal(t, 0, got.Stock)
	assert.GreaterOrEqual(t, got.Stock, 0)
}

func TestProductRepository_GetReturnsClone(t *testing.T) {
	repo := NewProductRepository()
	saveProduct(t, repo, "prod-x", 5)

	got, err := repo.Get(context.Background(), "prod-x")
	require.NoError(t, err)
	got.Stock = 99

	again, err := repo.Get(context.Background(), "prod-x")
	require.NoError(t, err)
	assert.Equal(t, 5, again.Stock)
}
