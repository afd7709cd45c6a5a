package catalog

import "context"

// Ledger mutates a single product's stock count. Each call is atomic for that
// product record; there is no cross-record transaction. Multi-record
// consistency is built on top by the settlement orchestrator.
type Ledger interface {
	// Adjust deducts delta units when delta is positive and restores them when
	// delta is negative. Fails with ErrInsufficientStock when the result would
	// be negative, ErrNotFound when the product does not exist, and
	// ErrUnavailable on storage faults.
	Adjust(ctx context.Context, productID string, delta int) error
}

type Repository interface {
	Get(ctx context.Context, productID string) (*Product, error)
	Save(ctx context.Context, product *Product) error
}
