// internal/service/checkout/infrastructure/gateway_http_adapter.go
package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"shopcore/internal/retry"
	"shopcore/internal/service/checkout/domain/port"
)

// HTTPGatewayAdapter 通过 HTTP 调用外部支付网关，实现 port.PaymentGateway。
// 幂等键放在 Idempotency-Key 头里，网关侧据此吞掉跨进程的重复请求。
type HTTPGatewayAdapter struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewHTTPGatewayAdapter(baseURL string, httpClient *http.Client, tracer trace.Tracer) *HTTPGatewayAdapter {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		}
	}
	return &HTTPGatewayAdapter{baseURL: baseURL, httpClient: httpClient, tracer: tracer}
}

func (a *HTTPGatewayAdapter) Charge(ctx context.Context, req port.ChargeRequest) (*port.ChargeResult, error) {
	ctx, span := a.tracer.Start(ctx, "gateway.Charge", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.Int64("charge.amount", req.Amount),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, retry.NonRetriable(fmt.Sprintf("marshal charge request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, retry.NonRetriable(fmt.Sprintf("build charge request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		// 网络层错误天然可重试，但重试前必须重新走一遍锁与状态校验
		return nil, retry.Retriable(fmt.Sprintf("call payment gateway: %v", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, string(respBody))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if retry.RetryableStatus(resp.StatusCode) {
			return nil, retry.RetriableWithCode(resp.StatusCode, err.Error())
		}
		return nil, retry.NonRetriableWithCode(resp.StatusCode, err.Error())
	}

	var result port.ChargeResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, retry.NonRetriable(fmt.Sprintf("decode gateway response: %v", err))
	}
	if result.PaymentID == "" {
		return nil, retry.NonRetriable("gateway response missing payment_id")
	}
	return &result, nil
}
