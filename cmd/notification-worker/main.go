// cmd/notification-worker/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"shopcore/internal/pkg/bootstrap"
	"shopcore/internal/pkg/httpclient"
	"shopcore/internal/pkg/logger"
	"shopcore/internal/pkg/mq"
	"shopcore/internal/retry"
	"shopcore/internal/worker"
)

const serviceName = "notification-worker"

// main 组装并启动支付事件的 webhook 投递 worker。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8082,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Cfg
			tracer := otel.Tracer(serviceName)

			// 1. 重试分类器。配置了 CEL 规则时叠加在默认分类器之上。
			var classifier retry.Classifier = retry.NewDefaultClassifier()
			if len(cfg.Worker.RetryRules) > 0 {
				ruleClassifier, err := retry.NewRuleClassifier(cfg.Worker.RetryRules, classifier)
				if err != nil {
					logger.Logger.Fatal().Err(err).Msg("invalid retry rules")
				}
				classifier = ruleClassifier
			}

			// 2. 消费者与投递客户端
			reader := mq.NewReader(cfg.Infra.KafkaBrokers, cfg.Worker.GroupID, cfg.Worker.Topic)
			sender := httpclient.NewClient(tracer)

			w := worker.NewNotificationWorker(reader, sender, classifier, cfg.Worker.WebhookURL, cfg.Worker.MaxAttempts)

			workerCtx, cancel := context.WithCancel(context.Background())
			w.Start(workerCtx)
			appCtx.OnShutdown(func(ctx context.Context) {
				cancel()
				w.Stop()
			})

			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
		},
	})
}
