package xdr

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	errDepthExceeded  = errors.New("nesting depth exceeded")
	errLenExceeded    = errors.New("length limit exceeded")
	errWireType       = errors.New("unexpected wire type")
	errDuplicateField = errors.New("duplicate field")
	errUnknownField   = errors.New("unknown field")
	errNoUnionArm     = errors.New("union has no arm set")
	errMultiUnionArm  = errors.New("union has more than one arm set")
	errFixedSize      = errors.New("fixed-size field has wrong length")
	errOverflow       = errors.New("integer overflows target width")
)

// ============================================================================
//                                 解码器
// ============================================================================

// Reader 在一条消息体内顺序读取字段
type Reader struct {
	b         []byte
	depthLeft uint32
	seen      uint64 // 已出现的单值字段（字段号 < 64）
}

// fields 遍历消息体中的每个字段，fn 必须消费该字段的值
func (r *Reader) fields(fn func(num protowire.Number, typ protowire.Type) error) error {
	for len(r.b) > 0 {
		num, typ, n := protowire.ConsumeTag(r.b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		r.b = r.b[n:]
		if err := fn(num, typ); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
	}
	return nil
}

// once 标记单值字段，重复出现视为错误
func (r *Reader) once(num protowire.Number) error {
	if num >= 64 {
		return errUnknownField
	}
	bit := uint64(1) << uint(num)
	if r.seen&bit != 0 {
		return errDuplicateField
	}
	r.seen |= bit
	return nil
}

func (r *Reader) varint(typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeVarint(r.b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	r.b = r.b[n:]
	return v, nil
}

func (r *Reader) uint32(typ protowire.Type) (uint32, error) {
	v, err := r.varint(typ)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, errOverflow
	}
	return uint32(v), nil
}

func (r *Reader) int64(typ protowire.Type) (int64, error) {
	v, err := r.varint(typ)
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

func (r *Reader) int32(typ protowire.Type) (int32, error) {
	v, err := r.int64(typ)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, errOverflow
	}
	return int32(v), nil
}

func (r *Reader) bool(typ protowire.Type) (bool, error) {
	v, err := r.varint(typ)
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, errOverflow
	}
	return v == 1, nil
}

func (r *Reader) raw(typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, errWireType
	}
	v, n := protowire.ConsumeBytes(r.b)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	r.b = r.b[n:]
	return v, nil
}

// bytes 读取变长字节串（拷贝一份，空串返回 nil）
func (r *Reader) bytes(typ protowire.Type) ([]byte, error) {
	v, err := r.raw(typ)
	if err != nil {
		return nil, err
	}
	// 出现过的字段解码为非 nil，空值与缺省字段可区分
	return append([]byte{}, v...), nil
}

func (r *Reader) hash(typ protowire.Type) (Hash, error) {
	var h Hash
	v, err := r.raw(typ)
	if err != nil {
		return h, err
	}
	if len(v) != len(h) {
		return h, errFixedSize
	}
	copy(h[:], v)
	return h, nil
}

func (r *Reader) string(typ protowire.Type) (string, error) {
	v, err := r.raw(typ)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(v) {
		return "", errors.New("invalid utf-8")
	}
	return string(v), nil
}

// message 解码一个嵌套消息，消耗一层深度
func (r *Reader) message(typ protowire.Type, v Decodable) error {
	body, err := r.raw(typ)
	if err != nil {
		return err
	}
	if r.depthLeft == 0 {
		return errDepthExceeded
	}
	return v.decode(&Reader{b: body, depthLeft: r.depthLeft - 1})
}

// ============================================================================
//                                 编码器
// ============================================================================

// Writer 追加式编码器，共享整体长度上限
type Writer struct {
	b         []byte
	depthLeft uint32
	limit     int
}

func (w *Writer) checkLen() error {
	if len(w.b) > w.limit {
		return errLenExceeded
	}
	return nil
}

// varint 写入无符号整数，零值省略
func (w *Writer) varint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	w.forceVarint(num, v)
}

// forceVarint 无论取值都写入（联合体分支需要显式出现）
func (w *Writer) forceVarint(num protowire.Number, v uint64) {
	w.b = protowire.AppendTag(w.b, num, protowire.VarintType)
	w.b = protowire.AppendVarint(w.b, v)
}

func (w *Writer) int64(num protowire.Number, v int64) {
	w.varint(num, protowire.EncodeZigZag(v))
}

func (w *Writer) bool(num protowire.Number, v bool) {
	if v {
		w.forceVarint(num, 1)
	}
}

// bytes 写入字节串，空串省略
func (w *Writer) bytes(num protowire.Number, v []byte) error {
	if len(v) == 0 {
		return nil
	}
	return w.forceBytes(num, v)
}

func (w *Writer) forceBytes(num protowire.Number, v []byte) error {
	w.b = protowire.AppendTag(w.b, num, protowire.BytesType)
	w.b = protowire.AppendBytes(w.b, v)
	return w.checkLen()
}

func (w *Writer) hash(num protowire.Number, h Hash) error {
	return w.forceBytes(num, h[:])
}

// message 编码一个嵌套消息，消耗一层深度
func (w *Writer) message(num protowire.Number, v Encodable) error {
	if w.depthLeft == 0 {
		return errDepthExceeded
	}
	sub := &Writer{depthLeft: w.depthLeft - 1, limit: w.limit - len(w.b)}
	if err := v.encode(sub); err != nil {
		return err
	}
	return w.forceBytes(num, sub.b)
}
