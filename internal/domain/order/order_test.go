package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLines() []Line {
	return []Line{{ProductID: "prod-x", Quantity: 2, UnitPrice: 100}}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		lines   []Line
		total   int64
		wantErr error
	}{
		{"no lines", nil, 200, ErrNoLines},
		{"zero quantity", []Line{{ProductID: "prod-x", Quantity: 0, UnitPrice: 100}}, 0, ErrInvalidQuantity},
		{"negative quantity", []Line{{ProductID: "prod-x", Quantity: -1, UnitPrice: 100}}, 0, ErrInvalidQuantity},
		{"negative price", []Line{{ProductID: "prod-x", Quantity: 1, UnitPrice: -5}}, 0, ErrInvalidAmount},
		{"negative total", validLines(), -1, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("order-1", "user-1", tt.lines, Address{}, "card", 0, 0, tt.total)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	ord, err := New("order-1", "user-1", validLines(), Address{City: "Springfield"}, "card", 200, 50, 250)
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, ord.Status)
	assert.False(t, ord.IsPaid)
	assert.Nil(t, ord.PaidAt)
	assert.False(t, ord.IsDelivered)
	assert.Nil(t, ord.DeliveredAt)
}

func TestMarkPaid_TransitionsOnce(t *testing.T) {
	ord, err := New("order-1", "user-1", validLines(), Address{}, "card", 200, 0, 200)
	require.NoError(t, err)

	payment := map[string]string{"id": "pay-1", "status": "COMPLETED"}
	require.NoError(t, ord.MarkPaid(payment))
	assert.True(t, ord.IsPaid)
	assert.NotNil(t, ord.PaidAt)
	assert.Equal(t, StatusPaid, ord.Status)
	assert.Equal(t, payment, ord.PaymentResult)

	firstPaidAt := *ord.PaidAt
	err = ord.MarkPaid(map[string]string{"id": "pay-2"})
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, firstPaidAt, *ord.PaidAt)
	assert.Equal(t, "pay-1", ord.PaymentResult["id"])
}

func TestMarkDelivered_RequiresPaid(t *testing.T) {
	ord, err := New("order-1", "user-1", validLines(), Address{}, "card", 200, 0, 200)
	require.NoError(t, err)

	assert.ErrorIs(t, ord.MarkDelivered(), ErrNotPaid)

	require.NoError(t, ord.MarkPaid(nil))
	require.NoError(t, ord.MarkDelivered())
	assert.True(t, ord.IsDelivered)
	assert.NotNil(t, ord.DeliveredAt)
	assert.Equal(t, StatusDelivered, ord.Status)

	assert.ErrorIs(t, ord.MarkDelivered(), ErrAlreadyDelivered)
}

func TestSettleable(t *testing.T) {
	ord, err := New("order-1", "user-1", validLines(), Address{}, "card", 200, 0, 200)
	require.NoError(t, err)

	assert.NoError(t, ord.Settleable())

	require.NoError(t, ord.MarkPaid(nil))
	assert.ErrorIs(t, ord.Settleable(), ErrAlreadyPaid)

	require.NoError(t, ord.MarkDelivered())
	assert.ErrorIs(t, ord.Settleable(), ErrAlreadyPaid)
}

func TestClone_IsDeep(t *testing.T) {
	ord, err := New("order-1", "user-1", validLines(), Address{}, "card", 200, 0, 200)
	require.NoError(t, err)
	require.NoError(t, ord.MarkPaid(map[string]string{"id": "pay-1"}))

	clone := ord.Clone()
	clone.Lines[0].Quantity = 99
	clone.PaymentResult["id"] = "tampered"
	*clone.PaidAt = clone.PaidAt.AddDate(1, 0, 0)

	assert.Equal(t, 2, ord.Lines[0].Quantity)
	assert.Equal(t, "pay-1", ord.PaymentResult["id"])
	assert.NotEqual(t, *clone.PaidAt, *ord.PaidAt)
}
