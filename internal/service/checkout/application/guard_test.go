package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcore/internal/service/checkout/domain"
)

func guardItems() []domain.OrderItem {
	return []domain.OrderItem{
		{ProductID: "p-1", VariantID: "v-1", Quantity: 2, UnitPrice: 1500},
		{ProductID: "p-2", Quantity: 1, UnitPrice: 4200},
	}
}

// seedGuardOrder 放入一个同内容订单，并按场景改写状态与创建时间。
func seedGuardOrder(t *testing.T, repo *fakeOrderRepo, status domain.Status, age time.Duration) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("Alice", "alice@example.com", "123", guardItems())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), order))

	repo.mu.Lock()
	stored := repo.orders[order.ID]
	stored.Status = status
	stored.CreatedAt = time.Now().Add(-age)
	repo.mu.Unlock()
	return order
}

func TestGuardMatchesRecentPendingOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	guard := NewDuplicateOrderGuard(repo, DefaultDuplicateWindow)
	existing := seedGuardOrder(t, repo, domain.StatusPending, time.Hour)

	result, err := guard.CheckForDuplicateOrder(context.Background(), "alice@example.com", guardItems())
	require.NoError(t, err)
	assert.True(t, result.HasPendingOrder)
	assert.Equal(t, existing.ID, result.ExistingOrderID)
	assert.Equal(t, existing.Fingerprint, result.Fingerprint)
}

func TestGuardIgnoresCompletedOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	guard := NewDuplicateOrderGuard(repo, DefaultDuplicateWindow)
	// 同内容的订单已经完成，再买一份是合法行为
	seedGuardOrder(t, repo, domain.StatusCompleted, time.Hour)

	result, err := guard.CheckForDuplicateOrder(context.Background(), "alice@example.com", guardItems())
	require.NoError(t, err)
	assert.False(t, result.HasPendingOrder)
	assert.Empty(t, result.ExistingOrderID)
}

func TestGuardIgnoresPendingOrderOutsideWindow(t *testing.T) {
	repo := newFakeOrderRepo()
	guard := NewDuplicateOrderGuard(repo, DefaultDuplicateWindow)
	// 25 小时前的 PENDING 订单在 24 小时窗口之外
	seedGuardOrder(t, repo, domain.StatusPending, 25*time.Hour)

	result, err := guard.CheckForDuplicateOrder(context.Background(), "alice@example.com", guardItems())
	require.NoError(t, err)
	assert.False(t, result.HasPendingOrder)
}

func TestGuardIgnoresCancelledAndFailedOrders(t *testing.T) {
	repo := newFakeOrderRepo()
	guard := NewDuplicateOrderGuard(repo, DefaultDuplicateWindow)
	seedGuardOrder(t, repo, domain.StatusCancelled, time.Hour)
	seedGuardOrder(t, repo, domain.StatusFailed, time.Hour)

	result, err := guard.CheckForDuplicateOrder(context.Background(), "alice@example.com", guardItems())
	require.NoError(t, err)
	assert.False(t, result.HasPendingOrder)
}

func TestGuardDistinguishesCustomers(t *testing.T) {
	repo := newFakeOrderRepo()
	guard := NewDuplicateOrderGuard(repo, DefaultDuplicateWindow)
	seedGuardOrder(t, repo, domain.StatusPending, time.Hour)

	// 另一个客户提交相同商品不算重复
	result, err := guard.CheckForDuplicateOrder(context.Background(), "bob@example.com", guardItems())
	require.NoError(t, err)
	assert.False(t, result.HasPendingOrder)
}
