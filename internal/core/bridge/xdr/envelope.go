package xdr

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// TransactionEnvelope 交易信封，仅用于语法有效性校验
type TransactionEnvelope struct {
	SourceAccount AccountID
	Fee           uint32
	SeqNum        int64
	Operations    []Operation
	SorobanData   *SorobanTransactionData
	Signatures    []DecoratedSignature
}

// Operation 单个宿主函数调用操作
type Operation struct {
	HostFunction HostFunction
	Auth         []SorobanAuthorizationEntry
}

// SorobanTransactionData 交易附带的资源声明与资源费
type SorobanTransactionData struct {
	Resources   SorobanResources
	ResourceFee int64
}

// DecoratedSignature 签名：4 字节提示 + 至多 64 字节签名
type DecoratedSignature struct {
	Hint      [4]byte
	Signature []byte
}

const maxSignatureLen = 64

// CanParseTransaction 判断 buf 是否是语法有效的交易信封，任何失败都返回 false
func CanParseTransaction(buf []byte, depthLimit uint32) bool {
	var env TransactionEnvelope
	return Unmarshal(buf, &env, Limits{Depth: depthLimit, Len: len(buf)}) == nil
}

func (t *TransactionEnvelope) encode(w *Writer) error {
	if err := w.message(1, &t.SourceAccount); err != nil {
		return err
	}
	w.varint(2, uint64(t.Fee))
	w.int64(3, t.SeqNum)
	for i := range t.Operations {
		if err := w.message(4, &t.Operations[i]); err != nil {
			return err
		}
	}
	if t.SorobanData != nil {
		if err := w.message(5, t.SorobanData); err != nil {
			return err
		}
	}
	for i := range t.Signatures {
		if err := w.message(6, &t.Signatures[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *TransactionEnvelope) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if num != 4 && num != 6 {
			if err := r.once(num); err != nil {
				return err
			}
		}
		var err error
		switch num {
		case 1:
			err = r.message(typ, &t.SourceAccount)
		case 2:
			t.Fee, err = r.uint32(typ)
		case 3:
			t.SeqNum, err = r.int64(typ)
		case 4:
			var op Operation
			if err = r.message(typ, &op); err == nil {
				t.Operations = append(t.Operations, op)
			}
		case 5:
			t.SorobanData = &SorobanTransactionData{}
			err = r.message(typ, t.SorobanData)
		case 6:
			var sig DecoratedSignature
			if err = r.message(typ, &sig); err == nil {
				t.Signatures = append(t.Signatures, sig)
			}
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1)
}

func (o *Operation) encode(w *Writer) error {
	if err := w.message(1, &o.HostFunction); err != nil {
		return err
	}
	for i := range o.Auth {
		if err := w.message(2, &o.Auth[i]); err != nil {
			return err
		}
	}
	return nil
}

func (o *Operation) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		switch num {
		case 1:
			if err := r.once(num); err != nil {
				return err
			}
			return r.message(typ, &o.HostFunction)
		case 2:
			var a SorobanAuthorizationEntry
			if err := r.message(typ, &a); err != nil {
				return err
			}
			o.Auth = append(o.Auth, a)
			return nil
		default:
			return errUnknownField
		}
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1)
}

func (d *SorobanTransactionData) encode(w *Writer) error {
	if err := w.message(1, &d.Resources); err != nil {
		return err
	}
	w.int64(2, d.ResourceFee)
	return nil
}

func (d *SorobanTransactionData) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			err = r.message(typ, &d.Resources)
		case 2:
			d.ResourceFee, err = r.int64(typ)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1)
}

func (s *DecoratedSignature) encode(w *Writer) error {
	if len(s.Signature) > maxSignatureLen {
		return errLenExceeded
	}
	if err := w.forceBytes(1, s.Hint[:]); err != nil {
		return err
	}
	return w.bytes(2, s.Signature)
}

func (s *DecoratedSignature) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		switch num {
		case 1:
			v, err := r.raw(typ)
			if err != nil {
				return err
			}
			if len(v) != len(s.Hint) {
				return errFixedSize
			}
			copy(s.Hint[:], v)
		case 2:
			v, err := r.bytes(typ)
			if err != nil {
				return err
			}
			if len(v) > maxSignatureLen {
				return errLenExceeded
			}
			s.Signature = v
		default:
			return errUnknownField
		}
		return nil
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1)
}
