// internal/service/checkout/infrastructure/mapper.go
package infrastructure

import (
	"encoding/json"

	"github.com/pkg/errors"

	"shopcore/internal/service/checkout/domain"
)

// itemRecord 是商品行在 JSON 列中的存储形态。
type itemRecord struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// toModel 把领域订单转换为数据库模型。
func toModel(order *domain.Order) (*OrderModel, error) {
	records := make([]itemRecord, 0, len(order.Items))
	for _, item := range order.Items {
		records = append(records, itemRecord{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	itemsJSON, err := json.Marshal(records)
	if err != nil {
		return nil, errors.Wrap(err, "marshal order items")
	}

	return &OrderModel{
		ID:            order.ID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount,
		ItemsJSON:     string(itemsJSON),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		Fingerprint:   order.Fingerprint,
		PaymentID:     order.PaymentID,
		RetryCount:    order.RetryCount,
		Version:       order.Version,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}, nil
}

// toDomain 把数据库模型还原为领域订单。
func toDomain(model *OrderModel) (*domain.Order, error) {
	var records []itemRecord
	if err := json.Unmarshal([]byte(model.ItemsJSON), &records); err != nil {
		return nil, errors.Wrapf(err, "unmarshal items of order %s", model.ID)
	}
	items := make([]domain.OrderItem, 0, len(records))
	for _, r := range records {
		items = append(items, domain.OrderItem{
			ProductID: r.ProductID,
			VariantID: r.VariantID,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		})
	}

	return &domain.Order{
		ID:            model.ID,
		Status:        domain.Status(model.Status),
		PaymentStatus: domain.PaymentStatus(model.PaymentStatus),
		TotalAmount:   model.TotalAmount,
		Items:         items,
		CustomerName:  model.CustomerName,
		CustomerEmail: model.CustomerEmail,
		CustomerPhone: model.CustomerPhone,
		Fingerprint:   model.Fingerprint,
		PaymentID:     model.PaymentID,
		RetryCount:    model.RetryCount,
		Version:       model.Version,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}
