package protocol

import (
	"github.com/weisyn/hostbridge/internal/core/bridge/fees"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// xdr 结构描述的发布通道
const (
	xdrChannelCurr     = "curr"
	xdrChannelNext     = "next"
	xdrChannelCurrNext = "curr,next"
)

// profile 单个协议版本与通用实现之间的全部差异
type profile struct {
	maxProto     uint32
	numCostTypes int

	// xdrPkgVersion 结构描述包版本，xdrChannel 为构建时选用的发布通道
	xdrPkgVersion string
	xdrChannel    string

	// 23 之前写入条目同时计入读取条目
	writesCountAsReads bool
	// 23 之前租金费率等于写入费率
	rentRateIsWriteRate bool
	// 23 起代码条目按内存占用计租
	codeRentIncludesMemory bool
	// 22 起合约抛出的 InternalError 码不算内部错误
	contractErrorsNotInternal bool
}

// knownProfiles 受支持的协议版本
var knownProfiles = map[uint32]profile{
	21: {
		maxProto:            21,
		numCostTypes:        int(xdr.CostVerifyEcdsaSecp256r1Sig) + 1,
		xdrPkgVersion:       "21.2.0",
		xdrChannel:          xdrChannelCurr,
		writesCountAsReads:  true,
		rentRateIsWriteRate: true,
	},
	22: {
		maxProto:                  22,
		numCostTypes:              xdr.NumContractCostTypes,
		xdrPkgVersion:             "22.1.0",
		xdrChannel:                xdrChannelCurr,
		writesCountAsReads:        true,
		rentRateIsWriteRate:       true,
		contractErrorsNotInternal: true,
	},
	23: {
		maxProto:                  23,
		numCostTypes:              xdr.NumContractCostTypes,
		xdrPkgVersion:             "23.0.0",
		xdrChannel:                xdrChannelCurr,
		codeRentIncludesMemory:    true,
		contractErrorsNotInternal: true,
	},
}

// convertResources 把资源声明换算为本版本的计费口径
func (p profile) convertResources(r fees.TransactionResources) fees.TransactionResources {
	if p.writesCountAsReads {
		r.DiskReadEntries = satAddU32(r.DiskReadEntries, r.WriteEntries)
	}
	return r
}

// convertRentConfig 把租金配置换算为本版本的计费口径
func (p profile) convertRentConfig(c fees.RentFeeConfiguration) fees.RentFeeConfiguration {
	if p.rentRateIsWriteRate {
		c.FeePerRent1KB = c.FeePerWrite1KB
	}
	return c
}

func satAddU32(a, b uint32) uint32 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint32(0)
}
