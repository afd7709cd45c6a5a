package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInvalidQuantity   = errors.New("catalog: quantity must not be zero")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrUnavailable       = errors.New("catalog: stock ledger unavailable")
	ErrPriceMismatch     = errors.New("catalog: order price does not match catalog price")
)

type Product struct {
	ID        string
	Name      string
	Price     int64
	Stock     int
	UpdatedAt time.Time
}

func NewProduct(id, name string, price int64, stock int) (*Product, error) {
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Adjust applies a stock delta. A positive delta deducts stock (consumption);
// a negative delta restores it (compensation). The resulting stock must not
// go negative.
func (p *Product) Adjust(delta int) error {
	if delta == 0 {
		return ErrInvalidQuantity
	}
	if delta > p.Stock {
		return ErrInsufficientStock
	}
	p.Stock -= delta
	p.touch()
	return nil
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
