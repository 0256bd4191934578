// internal/service/checkout/application/payment_service.go
package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"shopcore/internal/pkg/logger"
	"shopcore/internal/rowlock"
	"shopcore/internal/service/checkout/domain"
	"shopcore/internal/service/checkout/domain/port"
)

// ordersTable 是行锁的目标表。
const ordersTable = "orders"

// PaymentService 编排支付流程。防双扣的三道防线：
//  1. 订单行上的 no-wait 排他锁——并发的重复提交直接拿到冲突；
//  2. 锁内重读并校验状态——晚进临界区的竞争者看到已支付后拒绝；
//  3. 网关幂等键——跨进程的兜底。
// 网关调用成功后，状态变更与持锁事务一起原子提交。
type PaymentService struct {
	repo        domain.OrderRepository
	locker      rowlock.Locker
	gateway     port.PaymentGateway
	notifiers   []port.PaymentNotifier
	lockTimeout time.Duration
	tracer      trace.Tracer
}

func NewPaymentService(repo domain.OrderRepository, locker rowlock.Locker, gateway port.PaymentGateway, notifiers []port.PaymentNotifier, lockTimeout time.Duration, tracer trace.Tracer) *PaymentService {
	return &PaymentService{
		repo:        repo,
		locker:      locker,
		gateway:     gateway,
		notifiers:   notifiers,
		lockTimeout: lockTimeout,
		tracer:      tracer,
	}
}

// Pay 对订单发起一次支付。
// 同一订单的并发支付尝试最多只有一个成功，其余得到冲突错误；
// 每次成功进入临界区，网关恰好被调用一次。
func (s *PaymentService) Pay(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "payment.Pay")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.Int64("payment.amount", req.Amount),
	)

	// 1. 结构校验，不合法的请求不加锁、不碰网关
	if err := s.validate(req); err != nil {
		paymentAttempts.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	// 2. 锁外预读：订单不存在或金额超限时同样不加锁
	current, err := s.repo.FindByID(ctx, req.OrderID)
	if err != nil {
		paymentAttempts.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if req.Amount > current.TotalAmount {
		paymentAttempts.WithLabelValues("validation_error").Inc()
		return nil, domain.NewValidationError("amount", "exceeds order total")
	}

	// 3. 持锁执行支付临界区
	var paid *domain.Order
	var event *domain.PaymentSucceededEvent
	lockOpts := rowlock.Options{NoWait: true, Timeout: s.lockTimeout}
	err = s.locker.WithRowLock(ctx, ordersTable, req.OrderID, lockOpts, func(tx *gorm.DB) error {
		return s.chargeLocked(ctx, tx, req, &paid, &event)
	})
	if err != nil {
		s.recordFailure(ctx, span, req.OrderID, err)
		return nil, err
	}

	paymentAttempts.WithLabelValues("success").Inc()
	span.AddEvent("payment committed")
	logger.Ctx(ctx).Info().
		Str("order_id", paid.ID).
		Str("payment_id", paid.PaymentID).
		Int64("amount", req.Amount).
		Msg("payment succeeded")

	// 4. 提交后的尽力而为通知，失败不回滚支付
	s.notify(ctx, event)

	return &PaymentResponse{Success: true, PaymentID: paid.PaymentID}, nil
}

// chargeLocked 是行锁临界区：重读、校验、扣款、原子落库。
// 返回错误即整体回滚，订单停留在 PENDING/PENDING。
func (s *PaymentService) chargeLocked(ctx context.Context, tx *gorm.DB, req *PaymentRequest, paid **domain.Order, event **domain.PaymentSucceededEvent) error {
	// 锁内重读：先完成支付的竞争者可能已经改掉了状态
	order, err := s.repo.FindByIDTx(tx, req.OrderID)
	if err != nil {
		return err
	}
	if err := order.Payable(); err != nil {
		return err
	}
	if req.Amount > order.TotalAmount {
		return domain.NewValidationError("amount", "exceeds order total")
	}

	// 每次成功进入临界区恰好调用网关一次。
	// 幂等键按订单加重试计数派生：同一次尝试的跨进程重复扣款由网关吞掉，
	// 已确认失败的尝试会递增计数，换新键重试，不会撞上网关缓存的失败响应。
	result, err := s.gateway.Charge(ctx, port.ChargeRequest{
		OrderID:        order.ID,
		SourceID:       req.SourceID,
		Amount:         req.Amount,
		Currency:       "USD",
		IdempotencyKey: fmt.Sprintf("charge-%s-%d", order.ID, order.RetryCount),
	})
	if err != nil {
		return err
	}

	if err := order.MarkPaid(result.PaymentID); err != nil {
		return err
	}
	if err := s.repo.SavePaymentTx(tx, order); err != nil {
		return err
	}

	*paid = order
	*event = &domain.PaymentSucceededEvent{
		OrderID:       order.ID,
		PaymentID:     order.PaymentID,
		Amount:        req.Amount,
		CustomerEmail: order.CustomerEmail,
		PaidAt:        order.UpdatedAt,
	}
	return nil
}

func (s *PaymentService) validate(req *PaymentRequest) error {
	if req.OrderID == "" {
		return domain.NewValidationError("orderId", "must not be empty")
	}
	if req.SourceID == "" {
		return domain.NewValidationError("sourceId", "must not be empty")
	}
	if req.Amount <= 0 {
		return domain.NewValidationError("amount", "must be positive")
	}
	return nil
}

func (s *PaymentService) recordFailure(ctx context.Context, span trace.Span, orderID string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "payment failed")

	switch {
	case rowlock.IsConflict(err):
		lockConflicts.Inc()
		paymentAttempts.WithLabelValues("lock_conflict").Inc()
		logger.Ctx(ctx).Info().Str("order_id", orderID).Msg("payment rejected: another attempt holds the order lock")
	case err == domain.ErrAlreadyPaid || err == domain.ErrOrderFinalized:
		paymentAttempts.WithLabelValues("state_conflict").Inc()
	case rowlock.IsNotFound(err) || err == domain.ErrOrderNotFound:
		paymentAttempts.WithLabelValues("not_found").Inc()
	case domain.IsValidation(err):
		paymentAttempts.WithLabelValues("validation_error").Inc()
	default:
		paymentAttempts.WithLabelValues("gateway_error").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("payment failed, order rolled back to pending")
		// 扣款确认失败，递增重试计数让下一次尝试拿到新的幂等键。
		// 计数写失败只影响键的新鲜度，不影响支付语义。
		if incErr := s.repo.IncrementRetryCount(ctx, orderID); incErr != nil {
			logger.Ctx(ctx).Warn().Err(incErr).Str("order_id", orderID).Msg("failed to bump retry count")
		}
	}
}

// notify 把支付成功事件广播给所有下游通知器。
func (s *PaymentService) notify(ctx context.Context, event *domain.PaymentSucceededEvent) {
	for _, n := range s.notifiers {
		if err := n.PaymentSucceeded(ctx, event); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", event.OrderID).
				Msg("post-payment notification failed, payment state is unaffected")
		}
	}
}
