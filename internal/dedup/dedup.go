// internal/dedup/dedup.go
package dedup

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL 是成功结果在缓存中保留的默认时长。
const DefaultTTL = 5 * time.Second

// Operation 是被去重的工作单元。并发的同 key 调用只会执行一次，
// 所有调用方共享第一个调用方的结果（或错误）。
type Operation func(ctx context.Context) (interface{}, error)

// Deduplicator 把幂等键相同的并发请求折叠为一次执行：
//   - 进行中的请求通过 singleflight 合并；
//   - 成功结果在 TTL 内可重复读取，之后过期，允许合法的再次提交；
//   - 失败不缓存，纠正后的重试不会被旧错误挡住。
//
// 这是单进程内的优化，跨实例的幂等仍由行锁和网关的幂等键兜底。
type Deduplicator struct {
	group singleflight.Group
	ttl   time.Duration

	mu      sync.Mutex
	results map[string]entry

	stopOnce sync.Once
	stop     chan struct{}
}

type entry struct {
	value    interface{}
	storedAt time.Time
}

// New 创建一个去重器并启动后台清理。ttl <= 0 时使用 DefaultTTL。
func New(ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	d := &Deduplicator{
		ttl:     ttl,
		results: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go d.sweep()
	return d
}

// Do 执行 key 对应的操作。TTL 内的重复调用直接返回缓存结果，不再执行 op。
func (d *Deduplicator) Do(ctx context.Context, key string, op Operation) (interface{}, error) {
	if v, ok := d.lookup(key); ok {
		return v, nil
	}

	// 注意：并发合并时 op 运行在第一个调用方的 ctx 上，
	// 后到的调用方即使自己的 ctx 已取消也会拿到共享结果。
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		if cached, ok := d.lookup(key); ok {
			return cached, nil
		}
		value, err := op(ctx)
		if err != nil {
			// 失败不落缓存，立即放行重试
			return nil, err
		}
		d.store(key, value)
		return value, nil
	})
	return v, err
}

// Forget 主动清掉一个 key 的缓存结果。
func (d *Deduplicator) Forget(key string) {
	d.mu.Lock()
	delete(d.results, key)
	d.mu.Unlock()
}

// Close 停止后台清理 goroutine。
func (d *Deduplicator) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
}

func (d *Deduplicator) lookup(key string) (interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.results[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) >= d.ttl {
		delete(d.results, key)
		return nil, false
	}
	return e.value, true
}

func (d *Deduplicator) store(key string, value interface{}) {
	d.mu.Lock()
	d.results[key] = entry{value: value, storedAt: time.Now()}
	d.mu.Unlock()
}

// sweep 周期性清除过期条目，防止低频 key 常驻内存。
func (d *Deduplicator) sweep() {
	ticker := time.NewTicker(d.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			d.mu.Lock()
			for key, e := range d.results {
				if now.Sub(e.storedAt) >= d.ttl {
					delete(d.results, key)
				}
			}
			d.mu.Unlock()
		case <-d.stop:
			return
		}
	}
}
