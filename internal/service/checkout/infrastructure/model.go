// internal/service/checkout/infrastructure/model.go
package infrastructure

import "time"

// OrderModel 是 orders 表的 GORM 映射。
// 商品行以 JSON 存储：防重查询只需要 fingerprint 列，不需要按商品行检索。
type OrderModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	Status        string `gorm:"size:20;not null;index:idx_fingerprint_status,priority:2"`
	PaymentStatus string `gorm:"size:20;not null"`
	TotalAmount   int64  `gorm:"not null"`
	ItemsJSON     string `gorm:"column:items;type:json;not null"`

	CustomerName  string `gorm:"size:100"`
	CustomerEmail string `gorm:"size:255;not null;index"`
	CustomerPhone string `gorm:"size:40"`

	Fingerprint string `gorm:"size:64;not null;index:idx_fingerprint_status,priority:1"`
	PaymentID   string `gorm:"size:64"`

	RetryCount int       `gorm:"not null;default:0"`
	Version    int       `gorm:"not null;default:1"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
}

// TableName 指定表名。
func (OrderModel) TableName() string { return "orders" }
