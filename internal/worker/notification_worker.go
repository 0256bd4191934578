// internal/worker/notification_worker.go
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"shopcore/internal/pkg/logger"
	"shopcore/internal/pkg/mq"
	"shopcore/internal/retry"
	"shopcore/internal/service/checkout/domain"
)

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopcore_notification_deliveries_total",
	Help: "Webhook delivery outcomes of payment events.",
}, []string{"outcome"})

// Sender 抽象 webhook 投递，便于测试替换。
type Sender interface {
	PostJSON(ctx context.Context, serviceURL string, payload interface{}) error
}

// NotificationWorker 消费支付成功事件并投递到商家 webhook。
// 投递失败时由分类器决定是否原地重试，超过最大尝试次数的消息被放弃，
// 仍然提交 offset，避免毒丸消息卡死整个分区。
type NotificationWorker struct {
	reader      *kafka.Reader
	sender      Sender
	classifier  retry.Classifier
	webhookURL  string
	maxAttempts int
	backoff     time.Duration
	wg          sync.WaitGroup
	stopped     atomic.Bool
}

func NewNotificationWorker(reader *kafka.Reader, sender Sender, classifier retry.Classifier, webhookURL string, maxAttempts int) *NotificationWorker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &NotificationWorker{
		reader:      reader,
		sender:      sender,
		classifier:  classifier,
		webhookURL:  webhookURL,
		maxAttempts: maxAttempts,
		backoff:     500 * time.Millisecond,
	}
}

// Start 开始监听事件主题。这是一个长期运行的方法。
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		logger.Logger.Info().Str("topic", w.reader.Config().Topic).Msg("notification worker started")
		for {
			if w.stopped.Load() {
				return
			}
			// 用 FetchMessage 而不是 ReadMessage，以便控制提交时机
			msg, err := w.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Logger.Info().Msg("notification worker shutting down")
					return
				}
				logger.Logger.Error().Err(err).Msg("could not read message, retrying")
				time.Sleep(time.Second)
				continue
			}

			w.processMessage(ctx, msg)

			if err := w.reader.CommitMessages(ctx, msg); err != nil {
				logger.Logger.Error().Err(err).Msg("failed to commit messages")
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (w *NotificationWorker) Stop() {
	w.stopped.Store(true)
	if w.reader != nil {
		w.reader.Close()
	}
	w.wg.Wait()
	logger.Logger.Info().Msg("notification worker stopped")
}

// processMessage 反序列化事件并执行带重试的投递。
func (w *NotificationWorker) processMessage(parentCtx context.Context, msg kafka.Message) {
	var event domain.PaymentSucceededEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Logger.Error().Err(err).Msg("failed to unmarshal payment event, message skipped")
		deliveries.WithLabelValues("malformed").Inc()
		return
	}

	ctx := mq.ExtractTraceContext(parentCtx, &msg)

	if err := w.Deliver(ctx, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", event.OrderID).
			Msg("payment event delivery abandoned")
	}
}

// Deliver 把事件投递到 webhook，按分类器决定是否重试。
func (w *NotificationWorker) Deliver(ctx context.Context, event *domain.PaymentSucceededEvent) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.sender.PostJSON(ctx, w.webhookURL, event)
		if err == nil {
			deliveries.WithLabelValues("delivered").Inc()
			logger.Ctx(ctx).Info().
				Str("order_id", event.OrderID).
				Int("attempt", attempt).
				Msg("payment event delivered")
			return nil
		}
		lastErr = err

		if !w.classifier.ShouldRetry(err) {
			deliveries.WithLabelValues("rejected").Inc()
			return lastErr
		}
		if attempt < w.maxAttempts {
			logger.Ctx(ctx).Warn().Err(err).
				Str("order_id", event.OrderID).
				Int("attempt", attempt).
				Msg("delivery failed, will retry")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff * time.Duration(attempt)):
			}
		}
	}
	deliveries.WithLabelValues("exhausted").Inc()
	return lastErr
}
