package retry

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestStructuredFlagWinsOverPatterns(t *testing.T) {
	c := NewDefaultClassifier()

	// 消息文本看似可重试，但显式标记说不
	err := NonRetriableWithCode(500, "internal server error from a different merchant")
	assert.False(t, c.ShouldRetry(err))

	// 反过来：消息看似永久失败，显式标记说可以重试
	err2 := RetriableWithCode(400, "invalid upstream snapshot, please retry")
	assert.True(t, c.ShouldRetry(err2))

	// 包装一层后标记仍然生效
	wrapped := fmt.Errorf("deliver notification: %w", err)
	assert.False(t, c.ShouldRetry(wrapped))
}

func TestPermissionErrorsAreNotRetryable(t *testing.T) {
	c := NewDefaultClassifier()
	assert.False(t, c.ShouldRetry(errors.New("403 Forbidden: credential belongs to a different merchant")))
	assert.False(t, c.ShouldRetry(errors.New("unauthorized: signature mismatch")))
	assert.False(t, c.ShouldRetry(errors.New("validation failed: amount must be positive")))
}

func TestTransientErrorsAreRetryable(t *testing.T) {
	c := NewDefaultClassifier()
	assert.True(t, c.ShouldRetry(errors.New("429 Too Many Requests")))
	assert.True(t, c.ShouldRetry(errors.New("upstream returned 502 Bad Gateway")))
	assert.True(t, c.ShouldRetry(errors.New("read tcp 10.0.0.1:443: connection reset by peer")))
	assert.True(t, c.ShouldRetry(syscall.ECONNREFUSED))
	assert.True(t, c.ShouldRetry(io.ErrUnexpectedEOF))
}

func TestDatabaseErrors(t *testing.T) {
	c := NewDefaultClassifier()

	// 唯一键冲突重试只会再次冲突
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'abc' for key 'orders.uk_fingerprint'"}
	assert.False(t, c.ShouldRetry(dup))

	// 乐观并发下的未找到可能只是写入尚未可见
	assert.True(t, c.ShouldRetry(gorm.ErrRecordNotFound))
	assert.True(t, c.ShouldRetry(fmt.Errorf("reload order: %w", gorm.ErrRecordNotFound)))

	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	assert.True(t, c.ShouldRetry(deadlock))
}

func TestUnknownErrorsAreNotRetryable(t *testing.T) {
	c := NewDefaultClassifier()
	assert.False(t, c.ShouldRetry(errors.New("something inexplicable happened")))
	assert.False(t, c.ShouldRetry(nil))
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, RetryableStatus(429))
	assert.True(t, RetryableStatus(500))
	assert.True(t, RetryableStatus(503))
	assert.False(t, RetryableStatus(400))
	assert.False(t, RetryableStatus(403))
	assert.False(t, RetryableStatus(404))
}

func TestRuleClassifier(t *testing.T) {
	c, err := NewRuleClassifier([]string{
		`message.contains("throttled")`,
		`message.contains("quota exceeded")`,
	}, nil)
	require.NoError(t, err)

	assert.True(t, c.ShouldRetry(errors.New("request throttled by upstream")))
	assert.True(t, c.ShouldRetry(errors.New("quota exceeded for project")))

	// 规则不命中时回落到内置分类器
	assert.True(t, c.ShouldRetry(errors.New("connection refused")))
	assert.False(t, c.ShouldRetry(errors.New("permission denied")))

	// 显式标记优先于规则
	assert.False(t, c.ShouldRetry(NonRetriable("request throttled by upstream")))
}

func TestRuleClassifierRejectsBadRule(t *testing.T) {
	_, err := NewRuleClassifier([]string{`message.contains(`}, nil)
	require.Error(t, err)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	orig := Retriable("transient")
	assert.Same(t, orig, Wrap(orig))

	wrapped := Wrap(errors.New("plain failure"))
	assert.False(t, wrapped.Retryable)
	assert.Equal(t, "plain failure", wrapped.Message)
}
