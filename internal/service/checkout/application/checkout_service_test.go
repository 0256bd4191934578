package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"shopcore/internal/dedup"
	"shopcore/internal/service/checkout/domain"
)

func newCheckoutService(t *testing.T, repo *fakeOrderRepo) *CheckoutService {
	t.Helper()
	guard := NewDuplicateOrderGuard(repo, DefaultDuplicateWindow)
	d := dedup.New(time.Second)
	t.Cleanup(d.Close)
	return NewCheckoutService(repo, guard, d, newFakeMarker(), otel.Tracer("test"))
}

func sampleCheckoutRequest() *CheckoutRequest {
	return &CheckoutRequest{
		Items: []CheckoutItem{
			{ProductID: "p-1", VariantID: "v-1", Quantity: 2, UnitPrice: 1500},
			{ProductID: "p-2", Quantity: 1, UnitPrice: 4200},
		},
		CustomerInfo: CustomerInfo{Name: "Alice", Email: "alice@example.com", Phone: "123"},
	}
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newCheckoutService(t, repo)

	order, err := svc.Checkout(context.Background(), sampleCheckoutRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	assert.Equal(t, int64(2*1500+4200), order.TotalAmount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.createCalls))
}

func TestCheckoutConcurrentIdenticalSubmissions(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newCheckoutService(t, repo)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := make(map[string]struct{})
	var successes, duplicates int

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := svc.Checkout(context.Background(), sampleCheckoutRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
				ids[order.ID] = struct{}{}
			case IsDuplicate(err):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// 并发重复提交要么折叠到同一个订单，要么被判为重复
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.createCalls), "exactly one order may be created")
	assert.LessOrEqual(t, len(ids), 1, "all successful callers must resolve to the same order id")
	assert.Equal(t, n, successes+duplicates)
	assert.GreaterOrEqual(t, successes, 1)
}

func TestCheckoutDetectsPendingDuplicate(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newCheckoutService(t, repo)

	first, err := svc.Checkout(context.Background(), sampleCheckoutRequest())
	require.NoError(t, err)

	// 再次提交时 guard 先于去重缓存拦截，返回已存在的订单 ID
	time.Sleep(10 * time.Millisecond)
	_, err = svc.Checkout(context.Background(), sampleCheckoutRequest())
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingOrderID)
}

func TestCheckoutDifferentCartsAreIndependent(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newCheckoutService(t, repo)

	_, err := svc.Checkout(context.Background(), sampleCheckoutRequest())
	require.NoError(t, err)

	other := sampleCheckoutRequest()
	other.Items[0].Quantity = 3
	order, err := svc.Checkout(context.Background(), other)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&repo.createCalls))
}

func TestCheckoutValidation(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newCheckoutService(t, repo)

	req := sampleCheckoutRequest()
	req.CustomerInfo.Email = ""
	_, err := svc.Checkout(context.Background(), req)
	assert.True(t, domain.IsValidation(err))

	req = sampleCheckoutRequest()
	req.Items = nil
	_, err = svc.Checkout(context.Background(), req)
	assert.True(t, domain.IsValidation(err))

	assert.Equal(t, int32(0), atomic.LoadInt32(&repo.createCalls))
}
