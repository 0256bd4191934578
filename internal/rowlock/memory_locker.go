// internal/rowlock/memory_locker.go
package rowlock

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// MemoryLocker 用进程内互斥实现 Locker，按 (table, id) 维护一个信号量。
// 只适用于单实例部署，多实例场景必须换用 GormLocker 或 ZkLocker。
// 测试中允许 db 为 nil，此时临界区拿到的 tx 也是 nil。
type MemoryLocker struct {
	db      *gorm.DB
	mu      sync.Mutex
	entries map[string]*memEntry
}

type memEntry struct {
	sem  chan struct{}
	refs int
}

func NewMemoryLocker(db *gorm.DB) *MemoryLocker {
	return &MemoryLocker{db: db, entries: make(map[string]*memEntry)}
}

func (l *MemoryLocker) WithRowLock(ctx context.Context, table, id string, opts Options, cs CriticalSection) error {
	key := table + "/" + id
	entry := l.retain(key)

	if err := l.acquire(ctx, entry, table, id, opts); err != nil {
		l.releaseRef(key)
		return err
	}
	defer func() {
		<-entry.sem
		l.releaseRef(key)
	}()

	if l.db == nil {
		return cs(nil)
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row map[string]interface{}
		if err := tx.Table(table).Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &Error{Table: table, ID: id, Reason: ReasonNotFound, cause: err}
			}
			return errors.Wrapf(err, "read locked row %s/%s", table, id)
		}
		return cs(tx)
	})
}

func (l *MemoryLocker) acquire(ctx context.Context, entry *memEntry, table, id string, opts Options) error {
	if opts.NoWait {
		select {
		case entry.sem <- struct{}{}:
			return nil
		default:
			return &Error{Table: table, ID: id, Reason: ReasonAlreadyLocked}
		}
	}

	timer := time.NewTimer(opts.timeout())
	defer timer.Stop()
	select {
	case entry.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return &Error{Table: table, ID: id, Reason: ReasonTimeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retain 取出或创建 key 对应的信号量，并增加引用计数。
// 引用计数归零时删除条目，避免 map 无限增长。
func (l *MemoryLocker) retain(key string) *memEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &memEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *MemoryLocker) releaseRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, key)
	}
}
