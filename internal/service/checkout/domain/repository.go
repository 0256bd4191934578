// internal/service/checkout/domain/repository.go
package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// OrderRepository 定义了订单聚合的持久化接口，由基础设施层实现。
// 带 Tx 后缀的方法运行在调用方持有的行锁事务内，
// 其写入随事务一起提交或回滚。
type OrderRepository interface {
	// Create 持久化一个新订单。
	Create(ctx context.Context, order *Order) error

	// FindByID 按 ID 查找订单，未找到时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindPendingByFingerprint 查找 since 之后创建的、指纹匹配且仍为
	// PENDING 的订单。没有匹配时返回 (nil, nil)。
	FindPendingByFingerprint(ctx context.Context, fingerprint string, since time.Time) (*Order, error)

	// FindByIDTx 在行锁事务内重新读取订单，未找到时返回 ErrOrderNotFound。
	FindByIDTx(tx *gorm.DB, id string) (*Order, error)

	// IncrementRetryCount 在一次已确认失败的扣款尝试之后递增重试计数。
	// 运行在行锁事务之外：回滚不能吞掉这次递增，
	// 下一次尝试要靠它派生出新的网关幂等键。
	IncrementRetryCount(ctx context.Context, id string) error

	// SavePaymentTx 在行锁事务内持久化支付结果的状态变更。
	SavePaymentTx(tx *gorm.DB, order *Order) error
}
