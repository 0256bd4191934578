// internal/service/checkout/infrastructure/redis_marker_adapter.go
package infrastructure

import (
	"context"
	"fmt"
	"time"

	"shopcore/internal/pkg/redis"
)

const submissionKeyPattern = "checkout:submission:%s" // fingerprint

// RedisMarkerAdapter 是 port.SubmissionMarker 的 Redis 实现。
// 用 SET NX + TTL 在多实例之间标记在途的建单请求；
// TTL 到期自动放行，不需要显式清理的兜底逻辑。
type RedisMarkerAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMarkerAdapter(client *redis.Client, ttl time.Duration) *RedisMarkerAdapter {
	return &RedisMarkerAdapter{client: client, ttl: ttl}
}

func (a *RedisMarkerAdapter) TryMark(ctx context.Context, fingerprint string) (bool, error) {
	key := fmt.Sprintf(submissionKeyPattern, fingerprint)
	return a.client.SetNX(ctx, key, "1", a.ttl)
}

func (a *RedisMarkerAdapter) Clear(ctx context.Context, fingerprint string) error {
	key := fmt.Sprintf(submissionKeyPattern, fingerprint)
	return a.client.Del(ctx, key)
}
