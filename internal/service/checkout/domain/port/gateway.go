// internal/service/checkout/domain/port/gateway.go
package port

import "context"

// ChargeRequest 是发往外部支付网关的扣款请求。
// IdempotencyKey 交由网关做跨进程的重复扣款抑制，
// 是行锁之外的第二道防线。
type ChargeRequest struct {
	OrderID        string `json:"order_id"`
	SourceID       string `json:"source_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"-"`
}

// ChargeResult 是网关扣款成功后的返回。
type ChargeResult struct {
	PaymentID string `json:"payment_id"`
}

// PaymentGateway 抽象外部支付网关。
// 约定：每次成功进入支付临界区最多调用 Charge 一次。
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
