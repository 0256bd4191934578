// internal/service/checkout/domain/port/notifier.go
package port

import (
	"context"

	"shopcore/internal/service/checkout/domain"
)

// PaymentNotifier 在支付事务提交后向下游广播支付成功事件。
// 投递失败只记录不回滚——钱已经划走，状态必须以数据库为准。
type PaymentNotifier interface {
	PaymentSucceeded(ctx context.Context, event *domain.PaymentSucceededEvent) error
}
