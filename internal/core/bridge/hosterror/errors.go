// Package hosterror 定义宿主执行期间产生的结构化错误
//
// 📋 **错误模型**
//
// 宿主错误由 (类别, 错误码) 组成，与合约可见的 ScError 一一对应。
// 执行引擎返回的任何错误最终都会被归一为 *HostError，编排器据此
// 合成诊断事件并判定是否为宿主内部错误。
package hosterror

import (
	"errors"
	"fmt"

	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// HostError 宿主执行错误
type HostError struct {
	Err xdr.ScError
	Msg string
}

func (e *HostError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("HostError: %s", e.Err)
	}
	return fmt.Sprintf("HostError: %s: %s", e.Err, e.Msg)
}

// Is 相同 (类别, 错误码) 的宿主错误视为相等
func (e *HostError) Is(target error) bool {
	var t *HostError
	if !errors.As(target, &t) {
		return false
	}
	return t.Err == e.Err
}

// New 创建宿主错误
func New(t xdr.ScErrorType, c xdr.ScErrorCode, msg string) *HostError {
	return &HostError{Err: xdr.ScError{Type: t, Code: c}, Msg: msg}
}

// Newf 使用格式化消息创建宿主错误
func Newf(t xdr.ScErrorType, c xdr.ScErrorCode, format string, args ...interface{}) *HostError {
	return New(t, c, fmt.Sprintf(format, args...))
}

// Wrap 以给定 (类别, 错误码) 包装底层错误
func Wrap(t xdr.ScErrorType, c xdr.ScErrorCode, err error) *HostError {
	if err == nil {
		return nil
	}
	return New(t, c, err.Error())
}

// As 取出错误链中的宿主错误
func As(err error) (*HostError, bool) {
	var he *HostError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// ScErrorOf 返回错误对应的 ScError，非宿主错误归为 (Context, InternalError)
func ScErrorOf(err error) xdr.ScError {
	if he, ok := As(err); ok {
		return he.Err
	}
	return xdr.ScError{Type: xdr.ScErrorTypeContext, Code: xdr.ScErrorCodeInternalError}
}

// ==================== 常用错误 ====================

// ErrHostPanicked 宿主在边界之外发生 panic
var ErrHostPanicked = errors.New("contract host panicked")

// WrapPanic 把 recover() 得到的值包装为 ErrHostPanicked
func WrapPanic(rec interface{}) error {
	return fmt.Errorf("%w: %v", ErrHostPanicked, rec)
}

// FromPanic 把故障屏障捕获的 panic 转换为 (Context, InternalError)
func FromPanic(rec interface{}) *HostError {
	return Newf(xdr.ScErrorTypeContext, xdr.ScErrorCodeInternalError, "contract host panicked: %v", rec)
}

// TrustedDecode 内部可信结构解码失败
func TrustedDecode(err error) *HostError {
	return Wrap(xdr.ScErrorTypeValue, xdr.ScErrorCodeInternalError, err)
}

// Encode 内部结构重编码失败
func Encode(err error) *HostError {
	return Wrap(xdr.ScErrorTypeValue, xdr.ScErrorCodeInvalidInput, err)
}

// MeteredDecode 来自调用方的输入解码失败
func MeteredDecode(err error) *HostError {
	return Wrap(xdr.ScErrorTypeValue, xdr.ScErrorCodeInvalidInput, err)
}

// BudgetExceeded 预算耗尽
func BudgetExceeded(msg string) *HostError {
	return New(xdr.ScErrorTypeBudget, xdr.ScErrorCodeExceededLimit, msg)
}
