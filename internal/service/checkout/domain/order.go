// internal/service/checkout/domain/order.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem 是订单内的一个商品行，参与内容指纹计算。
// UnitPrice 以最小货币单位（分）表示，整数运算避免浮点舍入。
type OrderItem struct {
	ProductID string
	VariantID string
	Quantity  int
	UnitPrice int64
}

// Order 是订单聚合的根实体，也是支付链路中唯一被争用的共享资源。
// 不变式：PaymentStatus 为 PAID 意味着网关对该订单最多被调用过一次；
// Status 只向前推进。
type Order struct {
	ID            string
	Status        Status
	PaymentStatus PaymentStatus
	TotalAmount   int64
	Items         []OrderItem

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	// Fingerprint 是商品内容 + 客户身份的内容指纹，用于识别重复提交的购物车
	Fingerprint string
	// PaymentID 是支付成功后网关返回的交易号
	PaymentID string

	RetryCount int
	// Version 是乐观版本号，供锁路径之外的更新检测丢失更新
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder 创建一个处于 PENDING/PENDING 的新订单。
// 总价由商品行累加得出，不信任调用方传入的总价。
func NewOrder(name, email, phone string, items []OrderItem) (*Order, error) {
	if email == "" {
		return nil, NewValidationError("customerInfo.email", "must not be empty")
	}
	if len(items) == 0 {
		return nil, NewValidationError("items", "must not be empty")
	}

	var total int64
	for _, item := range items {
		if item.ProductID == "" {
			return nil, NewValidationError("items.productId", "must not be empty")
		}
		if item.Quantity <= 0 {
			return nil, NewValidationError("items.quantity", "must be positive")
		}
		if item.UnitPrice < 0 {
			return nil, NewValidationError("items.unitPrice", "must not be negative")
		}
		total += item.UnitPrice * int64(item.Quantity)
	}

	now := time.Now()
	return &Order{
		ID:            uuid.New().String(),
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		TotalAmount:   total,
		Items:         items,
		CustomerName:  name,
		CustomerEmail: email,
		CustomerPhone: phone,
		Fingerprint:   ComputeFingerprint(email, items),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Payable 校验订单当前是否还允许发起支付。
func (o *Order) Payable() error {
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	if o.Status.IsTerminal() {
		return ErrOrderFinalized
	}
	return nil
}

// MarkPaid 记录支付成功：状态推进到 PROCESSING/PAID，版本号递增。
// 必须在行锁事务内与持久化一起提交。
func (o *Order) MarkPaid(paymentID string) error {
	if err := o.Payable(); err != nil {
		return err
	}
	o.Status = StatusProcessing
	o.PaymentStatus = PaymentPaid
	o.PaymentID = paymentID
	o.Version++
	o.UpdatedAt = time.Now()
	return nil
}

// Cancel 取消订单。只有尚未支付的订单可以取消。
func (o *Order) Cancel() error {
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	if o.Status.IsTerminal() {
		return ErrOrderFinalized
	}
	o.Status = StatusCancelled
	o.Version++
	o.UpdatedAt = time.Now()
	return nil
}

// Complete 标记订单履约完成，由下游履约流程调用。
func (o *Order) Complete() error {
	if o.Status != StatusProcessing {
		return ErrOrderFinalized
	}
	o.Status = StatusCompleted
	o.Version++
	o.UpdatedAt = time.Now()
	return nil
}
