// internal/service/checkout/application/dto.go
package application

import "shopcore/internal/service/checkout/domain"

// CheckoutRequest 是建单接口的入参。
type CheckoutRequest struct {
	Items        []CheckoutItem `json:"items"`
	CustomerInfo CustomerInfo   `json:"customerInfo"`
}

type CheckoutItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// toDomainItems 把入参商品行转换为领域对象。
func (r *CheckoutRequest) toDomainItems() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return items
}

// CheckoutResponse 是建单成功的响应。
type CheckoutResponse struct {
	OrderID string `json:"orderId"`
}

// PaymentRequest 是支付接口的入参。Amount 以最小货币单位表示。
type PaymentRequest struct {
	SourceID string `json:"sourceId"`
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
}

// PaymentResponse 是支付成功的响应。
type PaymentResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
}
