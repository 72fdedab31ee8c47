// Package xdr 实现宿主边界两侧交换结构的二进制编解码
//
// 📋 **编码格式**
//
// 基于 protobuf 线格式（protowire）：标量使用 varint/zigzag，嵌套结构与
// 联合体分支使用长度前缀字段。解码严格：
//   - 未知字段、重复的单值字段、联合体多分支/无分支均视为错误
//   - 32 字节哈希必须长度精确
//   - 每次解码/编码都受 Limits{Depth, Len} 约束，超限返回 MarshallingError
//
// 解码任何输入都不会 panic。
package xdr

import (
	"errors"
	"fmt"
)

const (
	// MarshallingStackLimit 编解码嵌套深度上限，与账本引擎的解码栈深度一致
	MarshallingStackLimit uint32 = 1000

	// DefaultEncodeLenLimit 内部重编码结构的输出上限：5MiB
	DefaultEncodeLenLimit = 5 * 1024 * 1024
)

// ErrMarshalling 编解码失败（格式错误、超长、嵌套过深）
var ErrMarshalling = errors.New("marshalling error")

// MarshallingError 携带失败方向与目标类型的编解码错误
type MarshallingError struct {
	Op   string // "decode" 或 "encode"
	Type string
	Err  error
}

func (e *MarshallingError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrMarshalling, e.Op, e.Type, e.Err)
}

// Unwrap 使 errors.Is(err, ErrMarshalling) 成立
func (e *MarshallingError) Unwrap() []error {
	return []error{ErrMarshalling, e.Err}
}

// Limits 单次编解码的资源上限
type Limits struct {
	Depth uint32 // 最大嵌套层数（顶层结构计 1 层）
	Len   int    // 最大字节数
}

// TrustedLimits 返回内部可信数据的解码上限：深度 1000，长度即缓冲区长度
func TrustedLimits(buf []byte) Limits {
	return Limits{Depth: MarshallingStackLimit, Len: len(buf)}
}

// EncodeLimits 返回内部重编码的默认上限：深度 1000，长度 5MiB
func EncodeLimits() Limits {
	return Limits{Depth: MarshallingStackLimit, Len: DefaultEncodeLenLimit}
}

// Encodable 可编码的交换结构
type Encodable interface {
	encode(w *Writer) error
}

// Decodable 可解码的交换结构
type Decodable interface {
	decode(r *Reader) error
}

// Unmarshal 在给定上限内把 buf 解码到 v
func Unmarshal(buf []byte, v Decodable, limits Limits) (err error) {
	defer func() {
		// 解码器自身的缺陷也不能越过边界
		if rec := recover(); rec != nil {
			err = &MarshallingError{Op: "decode", Type: typeName(v), Err: fmt.Errorf("decoder panic: %v", rec)}
		}
	}()

	if len(buf) > limits.Len {
		return &MarshallingError{Op: "decode", Type: typeName(v), Err: fmt.Errorf("length %d exceeds limit %d", len(buf), limits.Len)}
	}
	if limits.Depth == 0 {
		return &MarshallingError{Op: "decode", Type: typeName(v), Err: errDepthExceeded}
	}

	r := &Reader{b: buf, depthLeft: limits.Depth - 1}
	if err := v.decode(r); err != nil {
		return &MarshallingError{Op: "decode", Type: typeName(v), Err: err}
	}
	return nil
}

// Marshal 在给定上限内编码 v
func Marshal(v Encodable, limits Limits) ([]byte, error) {
	if limits.Depth == 0 {
		return nil, &MarshallingError{Op: "encode", Type: typeName(v), Err: errDepthExceeded}
	}

	w := &Writer{depthLeft: limits.Depth - 1, limit: limits.Len}
	if err := v.encode(w); err != nil {
		return nil, &MarshallingError{Op: "encode", Type: typeName(v), Err: err}
	}
	if err := w.checkLen(); err != nil {
		return nil, &MarshallingError{Op: "encode", Type: typeName(v), Err: err}
	}
	return w.b, nil
}

// UnmarshalTrusted 解码内部可信结构（如成本参数表），成本固定、不计量
func UnmarshalTrusted(buf []byte, v Decodable) error {
	return Unmarshal(buf, v, TrustedLimits(buf))
}

// MarshalTrusted 使用默认上限编码内部结构
func MarshalTrusted(v Encodable) ([]byte, error) {
	return Marshal(v, EncodeLimits())
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
