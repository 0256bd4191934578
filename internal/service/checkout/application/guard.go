// internal/service/checkout/application/guard.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopcore/internal/service/checkout/domain"
)

// DefaultDuplicateWindow 是重复订单回查的默认时间窗口。
// 窗口之外的同内容订单视为合法的再次购买。
const DefaultDuplicateWindow = 24 * time.Hour

// DuplicateError 表示本次提交命中了一个仍在 PENDING 的同内容订单。
// ExistingOrderID 可能为空：另一实例的建单还在途中，行尚不可见。
type DuplicateError struct {
	ExistingOrderID string
}

func (e *DuplicateError) Error() string {
	if e.ExistingOrderID == "" {
		return "duplicate order submission in flight"
	}
	return fmt.Sprintf("duplicate of pending order %s", e.ExistingOrderID)
}

// Is 让 errors.Is(err, domain.ErrDuplicateOrder) 成立。
func (e *DuplicateError) Is(target error) bool {
	return target == domain.ErrDuplicateOrder
}

// GuardResult 是重复订单检查的结论。
type GuardResult struct {
	HasPendingOrder bool
	ExistingOrderID string
	Fingerprint     string
}

// DuplicateOrderGuard 识别被重复提交的购物车：
// 在时间窗口内查找指纹相同、仍为 PENDING 的已有订单。
// 这是一个咨询性检查，可能与并发创建竞争，所以建单链路还会
// 叠加按同一指纹的请求去重。
type DuplicateOrderGuard struct {
	repo   domain.OrderRepository
	window time.Duration
}

func NewDuplicateOrderGuard(repo domain.OrderRepository, window time.Duration) *DuplicateOrderGuard {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	return &DuplicateOrderGuard{repo: repo, window: window}
}

// CheckForDuplicateOrder 计算指纹并回查窗口内的 PENDING 订单。
// 终态订单、非 PENDING 订单、窗口外的订单一律不算重复。
func (g *DuplicateOrderGuard) CheckForDuplicateOrder(ctx context.Context, email string, items []domain.OrderItem) (*GuardResult, error) {
	fingerprint := domain.ComputeFingerprint(email, items)
	since := time.Now().Add(-g.window)

	existing, err := g.repo.FindPendingByFingerprint(ctx, fingerprint, since)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &GuardResult{Fingerprint: fingerprint}, nil
	}
	return &GuardResult{
		HasPendingOrder: true,
		ExistingOrderID: existing.ID,
		Fingerprint:     fingerprint,
	}, nil
}

// IsDuplicate 判断 err 是否为重复提交错误。
func IsDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicateOrder)
}
