// internal/retry/error.go
package retry

import "fmt"

// Error 是带可重试标记的结构化错误。
// 异步链路（网关调用、webhook 投递）产生的错误应尽量用它表达，
// 分类器对它的判断优先于任何基于消息文本的启发式规则。
type Error struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	DevDetails string `json:"dev_details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Retriable 创建可重试错误（网络抖动、限流、服务端临时故障等）。
func Retriable(message string) *Error {
	return &Error{Code: 500, Message: message, Retryable: true}
}

// RetriableWithCode 创建带状态码的可重试错误。
func RetriableWithCode(code int, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: true}
}

// NonRetriable 创建不可重试错误（参数错误、权限不符、业务规则拒绝等）。
func NonRetriable(message string) *Error {
	return &Error{Code: 400, Message: message, Retryable: false}
}

// NonRetriableWithCode 创建带状态码的不可重试错误。
func NonRetriableWithCode(code int, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: false}
}

// Wrap 把任意错误包装为结构化错误。已经是 *Error 的直接返回，
// 其余默认标记为不可重试，由调用方显式声明可重试性。
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{
		Code:       500,
		Message:    err.Error(),
		Retryable:  false,
		DevDetails: fmt.Sprintf("%+v", err),
	}
}
