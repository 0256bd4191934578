// internal/rowlock/gorm_locker.go
package rowlock

import (
	"context"
	"math"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQL 行锁相关的错误码。
const (
	mysqlErrLockWaitTimeout = 1205 // 等待行锁超过 innodb_lock_wait_timeout
	mysqlErrLockNoWait      = 3572 // FOR UPDATE NOWAIT 碰到已被持有的行
)

// GormLocker 基于 MySQL 的行级排他锁（SELECT ... FOR UPDATE）实现 Locker。
// 锁的生命周期与事务一致：临界区返回 nil 时随 Commit 释放，
// 返回错误时随 Rollback 释放，其他事务不会看到中间状态。
type GormLocker struct {
	db *gorm.DB
}

func NewGormLocker(db *gorm.DB) *GormLocker {
	return &GormLocker{db: db}
}

func (l *GormLocker) WithRowLock(ctx context.Context, table, id string, opts Options, cs CriticalSection) error {
	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "begin row lock transaction")
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	locking := clause.Locking{Strength: "UPDATE"}
	if opts.NoWait {
		locking.Options = "NOWAIT"
	} else {
		// innodb_lock_wait_timeout 以秒为粒度，向上取整，至少 1 秒
		secs := int(math.Ceil(opts.timeout().Seconds()))
		if secs < 1 {
			secs = 1
		}
		if err := tx.Exec("SET innodb_lock_wait_timeout = ?", secs).Error; err != nil {
			return errors.Wrap(err, "set lock wait timeout")
		}
	}

	// 加锁的同时校验目标行存在
	var row map[string]interface{}
	if err := tx.Table(table).Where("id = ?", id).Clauses(locking).Take(&row).Error; err != nil {
		return l.classify(table, id, err)
	}

	if err := cs(tx); err != nil {
		// 业务错误原样透传，回滚由上面的 defer 完成
		return err
	}

	if err := l.restoreLockWaitTimeout(tx, opts); err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, "commit row lock transaction")
	}
	committed = true
	return nil
}

// restoreLockWaitTimeout 把会话级的等待超时恢复为默认值，
// 避免连接归还连接池后影响后续复用同一连接的事务。
func (l *GormLocker) restoreLockWaitTimeout(tx *gorm.DB, opts Options) error {
	if opts.NoWait {
		return nil
	}
	if err := tx.Exec("SET innodb_lock_wait_timeout = DEFAULT").Error; err != nil {
		return errors.Wrap(err, "restore lock wait timeout")
	}
	return nil
}

// classify 把底层数据库错误翻译为统一的锁错误。
func (l *GormLocker) classify(table, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Table: table, ID: id, Reason: ReasonNotFound, cause: err}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrLockWaitTimeout:
			return &Error{Table: table, ID: id, Reason: ReasonTimeout, cause: err}
		case mysqlErrLockNoWait:
			return &Error{Table: table, ID: id, Reason: ReasonAlreadyLocked, cause: err}
		}
	}
	return errors.Wrapf(err, "acquire row lock %s/%s", table, id)
}
