package xdr

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// HostFunctionType 宿主函数类型
type HostFunctionType int32

const (
	HostFunctionTypeInvokeContract HostFunctionType = iota
	HostFunctionTypeCreateContract
	HostFunctionTypeUploadContractWasm
)

func (t HostFunctionType) String() string {
	switch t {
	case HostFunctionTypeInvokeContract:
		return "InvokeContract"
	case HostFunctionTypeCreateContract:
		return "CreateContract"
	case HostFunctionTypeUploadContractWasm:
		return "UploadContractWasm"
	default:
		return fmt.Sprintf("HostFunctionType(%d)", int32(t))
	}
}

// InvokeContractArgs 合约调用参数
type InvokeContractArgs struct {
	ContractAddress Hash
	FunctionName    string
	Args            []ScVal
}

// CreateContractArgs 合约创建参数，部署者为交易源账户
type CreateContractArgs struct {
	Salt     Hash
	WasmHash Hash
}

// HostFunction 宿主函数描述（三选一）
type HostFunction struct {
	Type           HostFunctionType
	InvokeContract *InvokeContractArgs
	CreateContract *CreateContractArgs
	Wasm           []byte
}

func (f *HostFunction) encode(w *Writer) error {
	switch f.Type {
	case HostFunctionTypeInvokeContract:
		if f.InvokeContract == nil {
			return errNoUnionArm
		}
		return w.message(1, f.InvokeContract)
	case HostFunctionTypeCreateContract:
		if f.CreateContract == nil {
			return errNoUnionArm
		}
		return w.message(2, f.CreateContract)
	case HostFunctionTypeUploadContractWasm:
		return w.forceBytes(3, f.Wasm)
	default:
		return fmt.Errorf("unknown host function type %d", f.Type)
	}
}

func (f *HostFunction) decode(r *Reader) error {
	armSet := false
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if armSet {
			return errMultiUnionArm
		}
		armSet = true
		var err error
		switch num {
		case 1:
			f.Type = HostFunctionTypeInvokeContract
			f.InvokeContract = &InvokeContractArgs{}
			err = r.message(typ, f.InvokeContract)
		case 2:
			f.Type = HostFunctionTypeCreateContract
			f.CreateContract = &CreateContractArgs{}
			err = r.message(typ, f.CreateContract)
		case 3:
			f.Type = HostFunctionTypeUploadContractWasm
			f.Wasm, err = r.bytes(typ)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	if !armSet {
		return errNoUnionArm
	}
	return nil
}

func (a *InvokeContractArgs) encode(w *Writer) error {
	if err := w.hash(1, a.ContractAddress); err != nil {
		return err
	}
	if err := ValidateSymbol(a.FunctionName); err != nil {
		return err
	}
	if err := w.bytes(2, []byte(a.FunctionName)); err != nil {
		return err
	}
	for i := range a.Args {
		if err := w.message(3, &a.Args[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *InvokeContractArgs) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if num != 3 {
			if err := r.once(num); err != nil {
				return err
			}
		}
		var err error
		switch num {
		case 1:
			a.ContractAddress, err = r.hash(typ)
		case 2:
			if a.FunctionName, err = r.string(typ); err == nil {
				err = ValidateSymbol(a.FunctionName)
			}
		case 3:
			var arg ScVal
			if err = r.message(typ, &arg); err == nil {
				a.Args = append(a.Args, arg)
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

func (c *CreateContractArgs) encode(w *Writer) error {
	if err := w.hash(1, c.Salt); err != nil {
		return err
	}
	return w.hash(2, c.WasmHash)
}

func (c *CreateContractArgs) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			c.Salt, err = r.hash(typ)
		case 2:
			c.WasmHash, err = r.hash(typ)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1, 2)
}

// ============================================================================
//                               资源声明
// ============================================================================

// LedgerFootprint 调用可访问的键集合
type LedgerFootprint struct {
	ReadOnly  []LedgerKey
	ReadWrite []LedgerKey
}

// SorobanResources 交易声明的资源
type SorobanResources struct {
	Footprint     LedgerFootprint
	Instructions  uint32
	DiskReadBytes uint32
	WriteBytes    uint32
}

func (f *LedgerFootprint) encode(w *Writer) error {
	for i := range f.ReadOnly {
		if err := w.message(1, &f.ReadOnly[i]); err != nil {
			return err
		}
	}
	for i := range f.ReadWrite {
		if err := w.message(2, &f.ReadWrite[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *LedgerFootprint) decode(r *Reader) error {
	return r.fields(func(num protowire.Number, typ protowire.Type) error {
		var k LedgerKey
		switch num {
		case 1:
			if err := r.message(typ, &k); err != nil {
				return err
			}
			f.ReadOnly = append(f.ReadOnly, k)
		case 2:
			if err := r.message(typ, &k); err != nil {
				return err
			}
			f.ReadWrite = append(f.ReadWrite, k)
		default:
			return errUnknownField
		}
		return nil
	})
}

func (s *SorobanResources) encode(w *Writer) error {
	if err := w.message(1, &s.Footprint); err != nil {
		return err
	}
	w.varint(2, uint64(s.Instructions))
	w.varint(3, uint64(s.DiskReadBytes))
	w.varint(4, uint64(s.WriteBytes))
	return nil
}

func (s *SorobanResources) decode(r *Reader) error {
	return r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			err = r.message(typ, &s.Footprint)
		case 2:
			s.Instructions, err = r.uint32(typ)
		case 3:
			s.DiskReadBytes, err = r.uint32(typ)
		case 4:
			s.WriteBytes, err = r.uint32(typ)
		default:
			return errUnknownField
		}
		return err
	})
}

// ============================================================================
//                               账户与授权
// ============================================================================

// AccountID ed25519 公钥账户
type AccountID struct {
	Ed25519 Hash
}

func (a *AccountID) encode(w *Writer) error { return hashMessage{&a.Ed25519}.encode(w) }
func (a *AccountID) decode(r *Reader) error { return hashMessage{&a.Ed25519}.decode(r) }

// SorobanAddressCredentials 地址签名凭证
type SorobanAddressCredentials struct {
	Address                   Hash
	Nonce                     int64
	SignatureExpirationLedger uint32
	Signature                 ScVal
}

// SorobanCredentials 授权凭证：Address 为 nil 表示使用交易源账户
type SorobanCredentials struct {
	Address *SorobanAddressCredentials
}

// SorobanAuthorizedFunction 被授权的函数（二选一）
type SorobanAuthorizedFunction struct {
	ContractFn     *InvokeContractArgs
	CreateContract *CreateContractArgs
}

// SorobanAuthorizedInvocation 授权调用树
type SorobanAuthorizedInvocation struct {
	Function       SorobanAuthorizedFunction
	SubInvocations []SorobanAuthorizedInvocation
}

// SorobanAuthorizationEntry 授权条目
type SorobanAuthorizationEntry struct {
	Credentials    SorobanCredentials
	RootInvocation SorobanAuthorizedInvocation
}

func (e *SorobanAuthorizationEntry) encode(w *Writer) error {
	if err := w.message(1, &e.Credentials); err != nil {
		return err
	}
	return w.message(2, &e.RootInvocation)
}

func (e *SorobanAuthorizationEntry) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		switch num {
		case 1:
			return r.message(typ, &e.Credentials)
		case 2:
			return r.message(typ, &e.RootInvocation)
		default:
			return errUnknownField
		}
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1, 2)
}

// 凭证联合体：1 source_account（空消息），2 address
func (c *SorobanCredentials) encode(w *Writer) error {
	if c.Address == nil {
		return w.message(1, emptyMessage{})
	}
	return w.message(2, c.Address)
}

func (c *SorobanCredentials) decode(r *Reader) error {
	armSet := false
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if armSet {
			return errMultiUnionArm
		}
		armSet = true
		switch num {
		case 1:
			return r.message(typ, emptyMessage{})
		case 2:
			c.Address = &SorobanAddressCredentials{}
			return r.message(typ, c.Address)
		default:
			return errUnknownField
		}
	})
	if err != nil {
		return err
	}
	if !armSet {
		return errNoUnionArm
	}
	return nil
}

func (a *SorobanAddressCredentials) encode(w *Writer) error {
	if err := w.hash(1, a.Address); err != nil {
		return err
	}
	w.int64(2, a.Nonce)
	w.varint(3, uint64(a.SignatureExpirationLedger))
	return w.message(4, &a.Signature)
}

func (a *SorobanAddressCredentials) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			a.Address, err = r.hash(typ)
		case 2:
			a.Nonce, err = r.int64(typ)
		case 3:
			a.SignatureExpirationLedger, err = r.uint32(typ)
		case 4:
			err = r.message(typ, &a.Signature)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1, 4)
}

func (i *SorobanAuthorizedInvocation) encode(w *Writer) error {
	if err := w.message(1, &i.Function); err != nil {
		return err
	}
	for k := range i.SubInvocations {
		if err := w.message(2, &i.SubInvocations[k]); err != nil {
			return err
		}
	}
	return nil
}

func (i *SorobanAuthorizedInvocation) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		switch num {
		case 1:
			if err := r.once(num); err != nil {
				return err
			}
			return r.message(typ, &i.Function)
		case 2:
			var sub SorobanAuthorizedInvocation
			if err := r.message(typ, &sub); err != nil {
				return err
			}
			i.SubInvocations = append(i.SubInvocations, sub)
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

func (f *SorobanAuthorizedFunction) encode(w *Writer) error {
	switch {
	case f.ContractFn != nil && f.CreateContract != nil:
		return errMultiUnionArm
	case f.ContractFn != nil:
		return w.message(1, f.ContractFn)
	case f.CreateContract != nil:
		return w.message(2, f.CreateContract)
	default:
		return errNoUnionArm
	}
}

func (f *SorobanAuthorizedFunction) decode(r *Reader) error {
	armSet := false
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if armSet {
			return errMultiUnionArm
		}
		armSet = true
		switch num {
		case 1:
			f.ContractFn = &InvokeContractArgs{}
			return r.message(typ, f.ContractFn)
		case 2:
			f.CreateContract = &CreateContractArgs{}
			return r.message(typ, f.CreateContract)
		default:
			return errUnknownField
		}
	})
	if err != nil {
		return err
	}
	if !armSet {
		return errNoUnionArm
	}
	return nil
}
