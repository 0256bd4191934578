// internal/rowlock/locker.go
package rowlock

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// CriticalSection 是持有行锁期间执行的业务逻辑。
// tx 是持有锁的事务句柄：返回 nil 则事务提交，返回错误则整体回滚，
// 不依赖 panic 或哨兵异常来触发回滚。
type CriticalSection func(tx *gorm.DB) error

// Options 控制锁的获取方式。
type Options struct {
	// Timeout 限定等待锁的最长时间。NoWait 为 true 时忽略。
	Timeout time.Duration
	// NoWait 为 true 时，行已被持有则立即失败，不排队。
	NoWait bool
}

// DefaultTimeout 是未显式指定 Timeout 时的等待上限。
const DefaultTimeout = 3 * time.Second

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Locker 是行级互斥的能力抽象。
// 对同一 (table, id)，任意时刻最多只有一个临界区在执行；
// 不同实现可以基于数据库行锁、ZooKeeper 或进程内互斥（仅限单实例部署）。
type Locker interface {
	WithRowLock(ctx context.Context, table, id string, opts Options, cs CriticalSection) error
}
