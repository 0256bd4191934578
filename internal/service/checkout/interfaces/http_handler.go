// internal/service/checkout/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"shopcore/internal/pkg/logger"
	"shopcore/internal/rowlock"
	"shopcore/internal/service/checkout/application"
	"shopcore/internal/service/checkout/domain"
)

const serviceName = "checkout-service"

// OrderHandler 封装了 checkout 服务的 HTTP 处理器
type OrderHandler struct {
	checkout *application.CheckoutService
	payment  *application.PaymentService
	ws       http.Handler // 可为 nil，不开启事件推送
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(checkout *application.CheckoutService, payment *application.PaymentService, ws http.Handler) *OrderHandler {
	return &OrderHandler{checkout: checkout, payment: payment, ws: ws}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/checkout", h.checkoutHandler)
	mux.HandleFunc("/checkout/payment", h.paymentHandler)
	mux.HandleFunc("/orders/", h.getOrderHandler)
	if h.ws != nil {
		mux.Handle("/ws/orders", h.ws)
	}
}

type errorResponse struct {
	Error           string `json:"error"`
	ExistingOrderID string `json:"existingOrderId,omitempty"`
}

func (h *OrderHandler) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "http.Checkout")
	defer span.End()

	var req application.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.checkout.Checkout(ctx, &req)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	writeJSON(w, http.StatusOK, application.CheckoutResponse{OrderID: order.ID})
}

func (h *OrderHandler) paymentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "http.Payment")
	defer span.End()

	var req application.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	resp, err := h.payment.Pay(ctx, &req)
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orderID := strings.TrimPrefix(r.URL.Path, "/orders/")
	if orderID == "" || strings.Contains(orderID, "/") {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		return
	}

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(r.Context(), "http.GetOrder")
	defer span.End()

	order, err := h.checkout.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("get order failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// writeCheckoutError 把建单错误映射为 HTTP 状态码：
// 重复提交 409（附已存在的订单 ID），参数非法 400，其余 500。
func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var dup *application.DuplicateError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:           "duplicate order detected",
			ExistingOrderID: dup.ExistingOrderID,
		})
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logger.Ctx(ctx).Error().Err(err).Msg("checkout failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// writePaymentError 把支付错误映射为 HTTP 状态码：
// 订单不存在 404；锁冲突、已支付、订单已终态 409；参数非法 400；
// 网关及其他失败 500，订单保持可重试状态。
func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound) || rowlock.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
	case rowlock.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "payment already in progress"})
	case errors.Is(err, domain.ErrAlreadyPaid):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "order already paid"})
	case errors.Is(err, domain.ErrOrderFinalized):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "order is finalized"})
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logger.Ctx(ctx).Error().Err(err).Msg("payment failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "payment failed, order left retryable"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
