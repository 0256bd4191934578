// internal/service/checkout/domain/state.go
package domain

// Status 定义了订单的生命周期状态。
// 状态只向前推进：PENDING -> PROCESSING -> COMPLETED，或进入 CANCELLED/FAILED，
// 不存在回退转换。
type Status string

const (
	StatusPending    Status = "PENDING"    // 已创建，等待支付
	StatusProcessing Status = "PROCESSING" // 已支付，等待履约
	StatusCompleted  Status = "COMPLETED"  // 履约完成（终态）
	StatusCancelled  Status = "CANCELLED"  // 已取消（终态）
	StatusFailed     Status = "FAILED"     // 处理失败（终态）
)

// IsTerminal 判断该状态下是否不再允许任何支付尝试。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// PaymentStatus 定义了订单的支付状态。
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)
