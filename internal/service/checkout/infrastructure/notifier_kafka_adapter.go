// internal/service/checkout/infrastructure/notifier_kafka_adapter.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"shopcore/internal/pkg/mq"
	"shopcore/internal/service/checkout/domain"
)

// NotifierKafkaAdapter 把支付成功事件投递到 Kafka，实现 port.PaymentNotifier。
// 消息 key 用订单 ID，同一订单的事件保持分区内有序。
type NotifierKafkaAdapter struct {
	writer *kafka.Writer
}

func NewNotifierKafkaAdapter(writer *kafka.Writer) *NotifierKafkaAdapter {
	return &NotifierKafkaAdapter{writer: writer}
}

func (a *NotifierKafkaAdapter) PaymentSucceeded(ctx context.Context, event *domain.PaymentSucceededEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal payment succeeded event")
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(event.OrderID), eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *NotifierKafkaAdapter) Close() error {
	return a.writer.Close()
}
