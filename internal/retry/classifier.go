// internal/retry/classifier.go
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Classifier 判定一个异步投递错误是否值得重试。
// 判定只看错误本身，与事件类型无关：同一个错误在任何事件上的结论一致。
type Classifier interface {
	ShouldRetry(err error) bool
}

// MySQL 唯一键冲突：重试必然再次冲突，没有意义。
const mysqlErrDuplicateEntry = 1062

// 消息文本启发式。仅当错误没有携带结构化标记时才会用到。
var (
	nonRetryablePatterns = []string{
		"forbidden",
		"unauthorized",
		"permission denied",
		"access denied",
		"invalid",
		"validation",
		"malformed",
		"bad request",
		"duplicate entry",
		"already exists",
		"not allowed",
	}
	retryablePatterns = []string{
		"rate limit",
		"too many requests",
		"timeout",
		"timed out",
		"i/o timeout",
		"connection reset",
		"connection refused",
		"broken pipe",
		"temporarily unavailable",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"internal server error",
		"unexpected eof",
	}
)

// DefaultClassifier 是内置规则的分类器实现。
// 判定顺序：结构化标记 > 已知错误类型 > 消息文本，未知错误一律不重试。
type DefaultClassifier struct{}

func NewDefaultClassifier() *DefaultClassifier {
	return &DefaultClassifier{}
}

func (c *DefaultClassifier) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// 1. 显式的可重试标记优先于一切启发式判断
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Retryable
	}

	// 2. 已知的错误类型
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 唯一键冲突说明目标已存在，重试无意义
		return myErr.Number != mysqlErrDuplicateEntry
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 乐观并发下的"记录未找到"多半是写入尚未可见，值得重试
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// 3. 消息文本，非重试特征先于重试特征匹配
	msg := strings.ToLower(err.Error())
	for _, p := range nonRetryablePatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	// 未知错误保守处理：不重试，交给人工排查
	return false
}

// RetryableStatus 按 HTTP 状态码判断是否可重试，供出站适配器构造结构化错误。
func RetryableStatus(code int) bool {
	return code == 429 || code >= 500
}
