// internal/rowlock/errors.go
package rowlock

import (
	"errors"
	"fmt"
)

// Reason 标识锁获取失败的具体原因。
type Reason string

const (
	ReasonNotFound      Reason = "not_found"      // 目标行不存在
	ReasonTimeout       Reason = "timeout"        // 等待超过 Timeout 仍未拿到锁
	ReasonAlreadyLocked Reason = "already_locked" // NoWait 模式下行已被持有
)

// Error 是锁获取失败时统一返回的错误类型。
// 临界区自身返回的业务错误不会被包装成 Error，而是原样透传。
type Error struct {
	Table  string
	ID     string
	Reason Reason
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("row lock %s/%s failed (%s): %v", e.Table, e.ID, e.Reason, e.cause)
	}
	return fmt.Sprintf("row lock %s/%s failed (%s)", e.Table, e.ID, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// AsLockError 判断 err 是否为锁获取错误，是则返回具体的 *Error。
func AsLockError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// IsConflict 判断 err 是否由锁竞争导致（超时或已被持有）。
func IsConflict(err error) bool {
	le, ok := AsLockError(err)
	return ok && (le.Reason == ReasonTimeout || le.Reason == ReasonAlreadyLocked)
}

// IsNotFound 判断 err 是否因目标行不存在导致。
func IsNotFound(err error) bool {
	le, ok := AsLockError(err)
	return ok && le.Reason == ReasonNotFound
}
