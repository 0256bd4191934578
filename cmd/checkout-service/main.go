// cmd/checkout-service/main.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-zookeeper/zk"
	"go.opentelemetry.io/otel"

	"shopcore/internal/dedup"
	"shopcore/internal/pkg/bootstrap"
	"shopcore/internal/pkg/logger"
	"shopcore/internal/pkg/mq"
	"shopcore/internal/pkg/mysql"
	"shopcore/internal/pkg/redis"
	"shopcore/internal/push"
	"shopcore/internal/rowlock"
	"shopcore/internal/service/checkout/application"
	"shopcore/internal/service/checkout/domain/port"
	"shopcore/internal/service/checkout/infrastructure"
	"shopcore/internal/service/checkout/interfaces"
)

const serviceName = "checkout-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8080,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Cfg
			tracer := otel.Tracer(serviceName)

			// 1. 基础设施连接
			db, err := mysql.Open(cfg.Infra.MysqlDSN)
			if err != nil {
				logger.Logger.Fatal().Err(err).Msg("failed to connect mysql")
			}

			repo := infrastructure.NewGormOrderRepository(db)
			if err := repo.AutoMigrate(); err != nil {
				logger.Logger.Fatal().Err(err).Msg("failed to migrate schema")
			}

			// Redis 不可用时跨实例占位降级，只靠进程内去重
			var marker port.SubmissionMarker
			redisClient, err := redis.NewClient(cfg.Infra.RedisAddr)
			if err != nil {
				logger.Logger.Warn().Err(err).Msg("redis unavailable, cross-instance submission marker disabled")
			} else {
				marker = infrastructure.NewRedisMarkerAdapter(redisClient, cfg.Checkout.DedupTTL)
				appCtx.OnShutdown(func(ctx context.Context) { redisClient.Close() })
			}

			eventWriter := mq.NewWriter(cfg.Infra.KafkaBrokers, cfg.Payment.EventTopic)
			appCtx.OnShutdown(func(ctx context.Context) { eventWriter.Close() })

			// 2. 行锁：默认走 MySQL SELECT ... FOR UPDATE，
			// 配置了 Zookeeper 时切换为 ZK 互斥锁 + 普通事务
			var locker rowlock.Locker = rowlock.NewGormLocker(db)
			if len(cfg.Infra.Zookeeper.Servers) > 0 {
				conn, _, err := zk.Connect(cfg.Infra.Zookeeper.Servers, 5*time.Second)
				if err != nil {
					logger.Logger.Warn().Err(err).Msg("zookeeper unavailable, using mysql row locks")
				} else {
					locker = rowlock.NewZkLocker(conn, db)
					appCtx.OnShutdown(func(ctx context.Context) { conn.Close() })
				}
			}

			// 3. 领域服务组装
			deduplicator := dedup.New(cfg.Checkout.DedupTTL)
			appCtx.OnShutdown(func(ctx context.Context) { deduplicator.Close() })

			guard := application.NewDuplicateOrderGuard(repo, cfg.Checkout.DuplicateWindow)
			checkoutSvc := application.NewCheckoutService(repo, guard, deduplicator, marker, tracer)

			gateway := infrastructure.NewHTTPGatewayAdapter(
				cfg.Payment.GatewayBaseURL,
				&http.Client{Timeout: cfg.Payment.GatewayTimeout},
				tracer,
			)

			hub := push.NewHub()
			go hub.Run()
			appCtx.OnShutdown(func(ctx context.Context) { hub.Close() })

			notifiers := []port.PaymentNotifier{
				infrastructure.NewNotifierKafkaAdapter(eventWriter),
				hub,
			}
			paymentSvc := application.NewPaymentService(repo, locker, gateway, notifiers, cfg.Payment.LockTimeout, tracer)

			// 4. HTTP 接口
			handler := interfaces.NewOrderHandler(checkoutSvc, paymentSvc, hub)
			handler.RegisterRoutes(appCtx.Mux)
		},
	})
}
