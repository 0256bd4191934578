// internal/service/checkout/domain/errors.go
package domain

import "errors"

// 领域层的哨兵错误。接口层据此翻译为 HTTP 状态码。
var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrAlreadyPaid    = errors.New("order has already been paid")
	ErrOrderFinalized = errors.New("order is in a terminal state")
	ErrDuplicateOrder = errors.New("a matching pending order already exists")
)

// ValidationError 表示调用方提交的数据在结构上不合法。
// 这类错误在加锁和调用网关之前就会被拦下。
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation failed on " + e.Field + ": " + e.Detail
}

// NewValidationError 构造一个字段级校验错误。
func NewValidationError(field, detail string) error {
	return &ValidationError{Field: field, Detail: detail}
}

// IsValidation 判断 err 是否为校验错误。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
