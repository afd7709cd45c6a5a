package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("order: not found")
	ErrAlreadyPaid      = errors.New("order: already paid")
	ErrNotPaid          = errors.New("order: not paid yet")
	ErrAlreadyDelivered = errors.New("order: already delivered")
	ErrNoLines          = errors.New("order: no order lines")
	ErrInvalidQuantity  = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount    = errors.New("order: amount must be zero or greater")
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
)

// Line is one ordered product with the unit price captured at order time.
// The captured price is immutable; settlement never touches it.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

type Address struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

type Order struct {
	ID              string
	UserID          string
	Lines           []Line
	ShippingAddress Address
	PaymentMethod   string
	// PaymentResult holds the opaque payment confirmation payload.
	PaymentResult map[string]string
	ItemsPrice    int64
	ShippingPrice int64
	TotalPrice    int64
	Status        Status
	IsPaid        bool
	PaidAt        *time.Time
	IsDelivered   bool
	DeliveredAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(id, userID string, lines []Line, address Address, paymentMethod string, itemsPrice, shippingPrice, totalPrice int64) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if line.UnitPrice < 0 {
			return nil, ErrInvalidAmount
		}
	}
	if itemsPrice < 0 || shippingPrice < 0 || totalPrice < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Order{
		ID:              id,
		UserID:          userID,
		Lines:           append([]Line(nil), lines...),
		ShippingAddress: address,
		PaymentMethod:   paymentMethod,
		ItemsPrice:      itemsPrice,
		ShippingPrice:   shippingPrice,
		TotalPrice:      totalPrice,
		Status:          StatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// MarkPaid transitions created -> paid exactly once. The payment result payload
// is stored verbatim; it is opaque to the order lifecycle.
func (o *Order) MarkPaid(paymentResult map[string]string) error {
	if o.IsPaid {
		return ErrAlreadyPaid
	}
	now := time.Now().UTC()
	o.IsPaid = true
	o.PaidAt = &now
	o.Status = StatusPaid
	if len(paymentResult) > 0 {
		o.PaymentResult = paymentResult
	}
	o.touch()
	return nil
}

// MarkDelivered transitions paid -> delivered. Delivered is terminal.
func (o *Order) MarkDelivered() error {
	if o.IsDelivered {
		return ErrAlreadyDelivered
	}
	if !o.IsPaid {
		return ErrNotPaid
	}
	now := time.Now().UTC()
	o.IsDelivered = true
	o.DeliveredAt = &now
	o.Status = StatusDelivered
	o.touch()
	return nil
}

// Settleable reports whether a settlement attempt may start from the current state.
// Paid and delivered orders are rejected before any stock is touched.
func (o *Order) Settleable() error {
	if o.IsPaid || o.IsDelivered {
		return ErrAlreadyPaid
	}
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		clone.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		clone.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		clone.PaymentResult = make(map[string]string, len(o.PaymentResult))
		for k, v := range o.PaymentResult {
			clone.PaymentResult[k] = v
		}
	}
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
