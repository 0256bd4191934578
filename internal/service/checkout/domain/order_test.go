package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []OrderItem {
	return []OrderItem{
		{ProductID: "p-1", VariantID: "v-1", Quantity: 2, UnitPrice: 1500},
		{ProductID: "p-2", VariantID: "", Quantity: 1, UnitPrice: 4200},
	}
}

func TestNewOrder(t *testing.T) {
	order, err := NewOrder("Alice", "alice@example.com", "123", testItems())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, PaymentPending, order.PaymentStatus)
	assert.Equal(t, int64(2*1500+4200), order.TotalAmount, "total must come from the item lines")
	assert.NotEmpty(t, order.Fingerprint)
	assert.Equal(t, 1, order.Version)
}

func TestNewOrderValidation(t *testing.T) {
	_, err := NewOrder("Alice", "", "123", testItems())
	assert.True(t, IsValidation(err))

	_, err = NewOrder("Alice", "alice@example.com", "123", nil)
	assert.True(t, IsValidation(err))

	bad := testItems()
	bad[0].Quantity = 0
	_, err = NewOrder("Alice", "alice@example.com", "123", bad)
	assert.True(t, IsValidation(err))

	bad = testItems()
	bad[1].UnitPrice = -1
	_, err = NewOrder("Alice", "alice@example.com", "123", bad)
	assert.True(t, IsValidation(err))
}

func TestMarkPaid(t *testing.T) {
	order, err := NewOrder("Alice", "alice@example.com", "123", testItems())
	require.NoError(t, err)

	require.NoError(t, order.MarkPaid("pay-1"))
	assert.Equal(t, StatusProcessing, order.Status)
	assert.Equal(t, PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "pay-1", order.PaymentID)
	assert.Equal(t, 2, order.Version)

	// 已支付的订单拒绝二次支付
	assert.ErrorIs(t, order.MarkPaid("pay-2"), ErrAlreadyPaid)
	assert.Equal(t, "pay-1", order.PaymentID)
}

func TestMarkPaidRejectsTerminalStates(t *testing.T) {
	order, err := NewOrder("Alice", "alice@example.com", "123", testItems())
	require.NoError(t, err)
	require.NoError(t, order.Cancel())

	assert.ErrorIs(t, order.MarkPaid("pay-1"), ErrOrderFinalized)
	assert.Equal(t, PaymentPending, order.PaymentStatus)
}

func TestStatusNeverGoesBackward(t *testing.T) {
	order, err := NewOrder("Alice", "alice@example.com", "123", testItems())
	require.NoError(t, err)

	require.NoError(t, order.MarkPaid("pay-1"))
	require.NoError(t, order.Complete())

	assert.ErrorIs(t, order.Cancel(), ErrAlreadyPaid)
	assert.ErrorIs(t, order.Complete(), ErrOrderFinalized)
	assert.Equal(t, StatusCompleted, order.Status)
}

func TestPaidImpliesProcessing(t *testing.T) {
	// 不变式: 任何可达状态下都不会出现 PAID + PENDING 的组合
	order, err := NewOrder("Alice", "alice@example.com", "123", testItems())
	require.NoError(t, err)

	require.NoError(t, order.MarkPaid("pay-1"))
	if order.PaymentStatus == PaymentPaid {
		assert.NotEqual(t, StatusPending, order.Status)
	}
}

func TestCancelPendingOrder(t *testing.T) {
	order, err := NewOrder("Alice", "alice@example.com", "123", testItems())
	require.NoError(t, err)

	require.NoError(t, order.Cancel())
	assert.Equal(t, StatusCancelled, order.Status)
	assert.ErrorIs(t, order.Cancel(), ErrOrderFinalized)
}
