// internal/service/checkout/application/checkout_service.go
package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopcore/internal/dedup"
	"shopcore/internal/pkg/logger"
	"shopcore/internal/service/checkout/domain"
	"shopcore/internal/service/checkout/domain/port"
)

// CheckoutService 编排建单流程：重复订单检查、并发请求折叠、订单落库。
// 对同一个购物车指纹，任意时刻最多只有一次建单在执行。
type CheckoutService struct {
	repo   domain.OrderRepository
	guard  *DuplicateOrderGuard
	dedup  *dedup.Deduplicator
	marker port.SubmissionMarker // 可为 nil，单实例部署不需要
	tracer trace.Tracer
}

func NewCheckoutService(repo domain.OrderRepository, guard *DuplicateOrderGuard, deduplicator *dedup.Deduplicator, marker port.SubmissionMarker, tracer trace.Tracer) *CheckoutService {
	return &CheckoutService{
		repo:   repo,
		guard:  guard,
		dedup:  deduplicator,
		marker: marker,
		tracer: tracer,
	}
}

// Checkout 处理一次购物车提交。
// 返回 *DuplicateError 表示识别到重复提交；并发的同指纹提交
// 会被折叠到同一次执行，拿到同一个订单 ID。
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout")
	defer span.End()

	items := req.toDomainItems()

	// 1. 入参校验先行，非法请求不进入任何防重机制
	order, err := domain.NewOrder(req.CustomerInfo.Name, req.CustomerInfo.Email, req.CustomerInfo.Phone, items)
	if err != nil {
		checkoutRequests.WithLabelValues("validation_error").Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String("checkout.fingerprint", order.Fingerprint))

	// 2. 咨询性的重复订单检查
	guardResult, err := s.guard.CheckForDuplicateOrder(ctx, req.CustomerInfo.Email, items)
	if err != nil {
		span.RecordError(err)
		checkoutRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if guardResult.HasPendingOrder {
		checkoutRequests.WithLabelValues("duplicate").Inc()
		span.AddEvent("duplicate pending order matched")
		return nil, &DuplicateError{ExistingOrderID: guardResult.ExistingOrderID}
	}

	// 3. 按指纹折叠并发提交，guard 的检查与创建之间的竞争窗口由这里关闭
	executed := false
	v, err := s.dedup.Do(ctx, "checkout:"+guardResult.Fingerprint, func(ctx context.Context) (interface{}, error) {
		executed = true
		return s.createOrder(ctx, order, guardResult.Fingerprint)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		checkoutRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if !executed {
		dedupHits.Inc()
	}

	created := v.(*domain.Order)
	checkoutRequests.WithLabelValues("created").Inc()
	logger.Ctx(ctx).Info().
		Str("order_id", created.ID).
		Str("fingerprint", created.Fingerprint).
		Int64("total", created.TotalAmount).
		Msg("order created")
	return created, nil
}

// GetOrder 按 ID 查询订单，供查询接口使用。
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.GetOrder")
	defer span.End()
	return s.repo.FindByID(ctx, orderID)
}

// createOrder 是去重器保护下的实际建单动作。
func (s *CheckoutService) createOrder(ctx context.Context, order *domain.Order, fingerprint string) (*domain.Order, error) {
	// 跨实例占位。占位失败说明另一实例正在为同一指纹建单。
	if s.marker != nil {
		ok, err := s.marker.TryMark(ctx, fingerprint)
		if err != nil {
			// Redis 不可用时退化为仅进程内去重，不阻塞建单
			logger.Ctx(ctx).Warn().Err(err).Msg("submission marker unavailable, falling back to in-process dedup only")
		} else if !ok {
			return nil, &DuplicateError{}
		}
	}

	if err := s.repo.Create(ctx, order); err != nil {
		if s.marker != nil {
			// 建单失败立即放行重试
			_ = s.marker.Clear(ctx, fingerprint)
		}
		return nil, err
	}
	return order, nil
}
