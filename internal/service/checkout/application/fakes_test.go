package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"shopcore/internal/service/checkout/domain"
	"shopcore/internal/service/checkout/domain/port"
)

// fakeOrderRepo 是 domain.OrderRepository 的内存实现，
// 与内存行锁配合使用，Tx 参数被忽略。
type fakeOrderRepo struct {
	mu          sync.Mutex
	orders      map[string]*domain.Order
	createCalls int32
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	atomic.AddInt32(&r.createCalls, 1)
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *fakeOrderRepo) FindPendingByFingerprint(ctx context.Context, fingerprint string, since time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.Fingerprint == fingerprint &&
			order.Status == domain.StatusPending &&
			!order.CreatedAt.Before(since) {
			cp := *order
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) FindByIDTx(tx *gorm.DB, id string) (*domain.Order, error) {
	return r.FindByID(context.Background(), id)
}

func (r *fakeOrderRepo) IncrementRetryCount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.RetryCount++
	return nil
}

func (r *fakeOrderRepo) SavePaymentTx(tx *gorm.DB, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

// fakeGateway 统计调用次数并记录幂等键，可配置失败与耗时。
type fakeGateway struct {
	calls   int32
	err     error
	latency time.Duration

	mu   sync.Mutex
	keys []string
}

func (g *fakeGateway) Charge(ctx context.Context, req port.ChargeRequest) (*port.ChargeResult, error) {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	g.keys = append(g.keys, req.IdempotencyKey)
	g.mu.Unlock()
	if g.latency > 0 {
		time.Sleep(g.latency)
	}
	if g.err != nil {
		return nil, g.err
	}
	return &port.ChargeResult{PaymentID: "pay-" + req.OrderID}, nil
}

func (g *fakeGateway) seenKeys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.keys...)
}

func (g *fakeGateway) callCount() int32 {
	return atomic.LoadInt32(&g.calls)
}

// fakeNotifier 记录收到的事件，可配置失败。
type fakeNotifier struct {
	mu     sync.Mutex
	events []*domain.PaymentSucceededEvent
	err    error
}

func (n *fakeNotifier) PaymentSucceeded(ctx context.Context, event *domain.PaymentSucceededEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

// fakeMarker 是 port.SubmissionMarker 的内存实现。
type fakeMarker struct {
	mu    sync.Mutex
	marks map[string]bool
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{marks: make(map[string]bool)}
}

func (m *fakeMarker) TryMark(ctx context.Context, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marks[fingerprint] {
		return false, nil
	}
	m.marks[fingerprint] = true
	return true, nil
}

func (m *fakeMarker) Clear(ctx context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.marks, fingerprint)
	return nil
}
