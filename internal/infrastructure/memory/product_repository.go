package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/minimart/order-settlement/internal/domain/catalog"
)

// ProductRepository is an in-memory catalog store. Each Adjust call mutates a
// single product record under the repository lock, which gives the
// single-record atomicity the stock ledger contract requires; there is no
// multi-record transaction.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(product), nil
}

func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	_ = ctx
	if product == nil || product.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[product.ID] = cloneProduct(product)
	return nil
}

// Adjust implements catalog.Ledger. Positive deltas deduct stock, negative
// deltas restore it. The check-and-mutate happens under one lock so the stock
// count never goes negative, even under concurrent settlement attempts.
func (r *ProductRepository) Adjust(ctx context.Context, productID string, delta int) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	return product.Adjust(delta)
}

func cloneProduct(product *domain.Product) *domain.Product {
	if product == nil {
		return nil
	}
	clone := *product
	return &clone
}
