// internal/service/checkout/domain/port/marker.go
package port

import "context"

// SubmissionMarker 是跨实例的提交占位标记。
// 进程内的去重缓存只覆盖单实例，多实例部署时用共享存储的 NX 占位
// 收窄跨实例窗口；它是尽力而为的，最终一致性仍由行锁与网关幂等键保证。
type SubmissionMarker interface {
	// TryMark 尝试占位，返回 false 表示其他实例已持有同一指纹的在途提交。
	TryMark(ctx context.Context, fingerprint string) (bool, error)
	// Clear 释放占位，建单失败后调用以放行重试。
	Clear(ctx context.Context, fingerprint string) error
}
