package xdr

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ContractCostType 预算计量的成本类别
type ContractCostType int

const (
	CostWasmInsnExec ContractCostType = iota
	CostMemAlloc
	CostMemCpy
	CostMemCmp
	CostDispatchHostFunction
	CostVisitObject
	CostValSer
	CostValDeser
	CostComputeSha256Hash
	CostComputeEd25519PubKey
	CostVerifyEd25519Sig
	CostVmInstantiation
	CostVmCachedInstantiation
	CostInvokeVmFunction
	CostComputeKeccak256Hash
	CostDecodeEcdsaCurve256Sig
	CostRecoverEcdsaSecp256k1Key
	CostInt256AddSub
	CostInt256Mul
	CostInt256Div
	CostInt256Pow
	CostInt256Shift
	CostChaCha20DrawBytes
	CostParseWasmInstructions
	CostParseWasmFunctions
	CostParseWasmGlobals
	CostParseWasmTableEntries
	CostParseWasmTypes
	CostParseWasmDataSegments
	CostParseWasmElemSegments
	CostParseWasmImports
	CostParseWasmExports
	CostParseWasmDataSegmentBytes
	CostInstantiateWasmInstructions
	CostInstantiateWasmFunctions
	CostInstantiateWasmGlobals
	CostInstantiateWasmTableEntries
	CostInstantiateWasmTypes
	CostInstantiateWasmDataSegments
	CostInstantiateWasmElemSegments
	CostInstantiateWasmImports
	CostInstantiateWasmExports
	CostInstantiateWasmDataSegmentBytes
	CostSec1DecodePointUncompressed
	CostVerifyEcdsaSecp256r1Sig
	CostBls12381EncodeFp
	CostBls12381DecodeFp
	CostBls12381G1CheckPointOnCurve
	CostBls12381G1CheckPointInSubgroup
	CostBls12381G2CheckPointOnCurve
	CostBls12381G2CheckPointInSubgroup
	CostBls12381G1ProjectiveToAffine
	CostBls12381G2ProjectiveToAffine
	CostBls12381G1Add
	CostBls12381G1Mul
	CostBls12381G1Msm
	CostBls12381MapFpToG1
	CostBls12381HashToG1
	CostBls12381G2Add
	CostBls12381G2Mul
	CostBls12381G2Msm
	CostBls12381MapFp2ToG2
	CostBls12381HashToG2
	CostBls12381Pairing
	CostBls12381FrFromU256
	CostBls12381FrToU256
	CostBls12381FrAddSub
	CostBls12381FrMul
	CostBls12381FrPow
	CostBls12381FrInv

	// NumContractCostTypes 当前已知的成本类别总数
	NumContractCostTypes = int(CostBls12381FrInv) + 1
)

var contractCostTypeNames = [NumContractCostTypes]string{
	"WasmInsnExec", "MemAlloc", "MemCpy", "MemCmp", "DispatchHostFunction",
	"VisitObject", "ValSer", "ValDeser", "ComputeSha256Hash", "ComputeEd25519PubKey",
	"VerifyEd25519Sig", "VmInstantiation", "VmCachedInstantiation", "InvokeVmFunction", "ComputeKeccak256Hash",
	"DecodeEcdsaCurve256Sig", "RecoverEcdsaSecp256k1Key", "Int256AddSub", "Int256Mul", "Int256Div",
	"Int256Pow", "Int256Shift", "ChaCha20DrawBytes", "ParseWasmInstructions", "ParseWasmFunctions",
	"ParseWasmGlobals", "ParseWasmTableEntries", "ParseWasmTypes", "ParseWasmDataSegments", "ParseWasmElemSegments",
	"ParseWasmImports", "ParseWasmExports", "ParseWasmDataSegmentBytes", "InstantiateWasmInstructions", "InstantiateWasmFunctions",
	"InstantiateWasmGlobals", "InstantiateWasmTableEntries", "InstantiateWasmTypes", "InstantiateWasmDataSegments", "InstantiateWasmElemSegments",
	"InstantiateWasmImports", "InstantiateWasmExports", "InstantiateWasmDataSegmentBytes", "Sec1DecodePointUncompressed", "VerifyEcdsaSecp256r1Sig",
	"Bls12381EncodeFp", "Bls12381DecodeFp", "Bls12381G1CheckPointOnCurve", "Bls12381G1CheckPointInSubgroup", "Bls12381G2CheckPointOnCurve",
	"Bls12381G2CheckPointInSubgroup", "Bls12381G1ProjectiveToAffine", "Bls12381G2ProjectiveToAffine", "Bls12381G1Add", "Bls12381G1Mul",
	"Bls12381G1Msm", "Bls12381MapFpToG1", "Bls12381HashToG1", "Bls12381G2Add", "Bls12381G2Mul",
	"Bls12381G2Msm", "Bls12381MapFp2ToG2", "Bls12381HashToG2", "Bls12381Pairing", "Bls12381FrFromU256",
	"Bls12381FrToU256", "Bls12381FrAddSub", "Bls12381FrMul", "Bls12381FrPow", "Bls12381FrInv",
}

func (t ContractCostType) String() string {
	if t >= 0 && int(t) < NumContractCostTypes {
		return contractCostTypeNames[t]
	}
	return fmt.Sprintf("ContractCostType(%d)", int(t))
}

// ContractCostTypeNames 返回前 n 个成本类别名称
func ContractCostTypeNames(n int) []string {
	if n > NumContractCostTypes {
		n = NumContractCostTypes
	}
	if n < 0 {
		n = 0
	}
	return append([]string(nil), contractCostTypeNames[:n]...)
}

// ContractCostParamEntry 单个成本模型：cost = ConstTerm + (LinearTerm * input) >> 7
type ContractCostParamEntry struct {
	ConstTerm  int64
	LinearTerm int64
}

// ContractCostParams 按成本类别下标排列的成本模型表
type ContractCostParams []ContractCostParamEntry

func (p ContractCostParams) encode(w *Writer) error {
	for i := range p {
		if err := w.message(1, &p[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *ContractCostParams) decode(r *Reader) error {
	return r.fields(func(num protowire.Number, typ protowire.Type) error {
		if num != 1 {
			return errUnknownField
		}
		var e ContractCostParamEntry
		if err := r.message(typ, &e); err != nil {
			return err
		}
		*p = append(*p, e)
		return nil
	})
}

func (e *ContractCostParamEntry) encode(w *Writer) error {
	w.int64(1, e.ConstTerm)
	w.int64(2, e.LinearTerm)
	return nil
}

func (e *ContractCostParamEntry) decode(r *Reader) error {
	return r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			e.ConstTerm, err = r.int64(typ)
		case 2:
			e.LinearTerm, err = r.int64(typ)
		default:
			return errUnknownField
		}
		return err
	})
}
