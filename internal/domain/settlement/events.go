package settlement

import "time"

// RollbackRequestedEvent is published when a settlement attempt fails after
// some deductions already applied. The compensation worker restores the stock
// recorded in Entries; the settle caller does not wait for it.
type RollbackRequestedEvent struct {
	OrderID    string
	Entries    []CompensationEntry
	Reason     string
	OccurredAt time.Time
}

func (RollbackRequestedEvent) EventName() string { return "settlement.rollback_requested" }

func NewRollbackRequestedEvent(orderID string, entries []CompensationEntry, reason string) RollbackRequestedEvent {
	return RollbackRequestedEvent{
		OrderID:    orderID,
		Entries:    append([]CompensationEntry(nil), entries...),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderSettledEvent is published after an order is marked paid and persisted.
type OrderSettledEvent struct {
	OrderID    string
	UserID     string
	TotalPrice int64
	OccurredAt time.Time
}

func (OrderSettledEvent) EventName() string { return "settlement.order_settled" }

func NewOrderSettledEvent(orderID, userID string, totalPrice int64) OrderSettledEvent {
	return OrderSettledEvent{
		OrderID:    orderID,
		UserID:     userID,
		TotalPrice: totalPrice,
		OccurredAt: time.Now().UTC(),
	}
}
