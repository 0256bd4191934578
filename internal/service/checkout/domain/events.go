// internal/service/checkout/domain/events.go
package domain

import "time"

// PaymentSucceededEvent 在支付事务提交之后发布，
// 驱动下游的订单履约通知。投递是尽力而为的：事件丢失不回滚支付。
type PaymentSucceededEvent struct {
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	Amount        int64     `json:"amount"`
	CustomerEmail string    `json:"customer_email"`
	PaidAt        time.Time `json:"paid_at"`
}

// EventType 标识事件类别，消费侧据此路由。
func (PaymentSucceededEvent) EventType() string {
	return "payment.succeeded"
}
