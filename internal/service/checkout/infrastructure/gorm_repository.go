// internal/service/checkout/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"shopcore/internal/service/checkout/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// AutoMigrate 建表，仅供本地开发与测试环境使用。
func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{})
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model, err := toModel(order)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrapf(err, "create order %s", order.ID)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "find order %s", id)
	}
	return toDomain(&model)
}

func (r *GormOrderRepository) FindPendingByFingerprint(ctx context.Context, fingerprint string, since time.Time) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Where("status = ?", string(domain.StatusPending)).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "search pending order by fingerprint")
	}
	return toDomain(&model)
}

// FindByIDTx 在行锁事务内重读订单。行已经被 FOR UPDATE 锁住，
// 这里的普通读取不会引入新的锁竞争。
func (r *GormOrderRepository) FindByIDTx(tx *gorm.DB, id string) (*domain.Order, error) {
	var model OrderModel
	err := tx.Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "reload locked order %s", id)
	}
	return toDomain(&model)
}

// IncrementRetryCount 在扣款失败后递增重试计数。
// 独立于行锁事务执行，失败的尝试回滚后这次递增仍然生效。
func (r *GormOrderRepository) IncrementRetryCount(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1"))
	if result.Error != nil {
		return errors.Wrapf(result.Error, "increment retry count of order %s", id)
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// SavePaymentTx 在行锁事务内写入支付结果，与锁同事务提交。
func (r *GormOrderRepository) SavePaymentTx(tx *gorm.DB, order *domain.Order) error {
	updates := map[string]interface{}{
		"status":         string(order.Status),
		"payment_status": string(order.PaymentStatus),
		"payment_id":     order.PaymentID,
		"version":        order.Version,
		"updated_at":     order.UpdatedAt,
	}
	result := tx.Model(&OrderModel{}).Where("id = ?", order.ID).Updates(updates)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "save payment result of order %s", order.ID)
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
