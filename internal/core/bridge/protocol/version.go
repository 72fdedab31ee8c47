package protocol

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/weisyn/hostbridge/internal/app/version"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// VersionInfo 单个协议版本宿主的版本信息
type VersionInfo struct {
	EnvMaxProto      uint32         `json:"env_max_proto"`
	EnvPkgVer        string         `json:"env_pkg_ver"`
	EnvGitRev        string         `json:"env_git_rev"`
	EnvPreReleaseVer uint32         `json:"env_pre_release_ver"`
	XdrPkgVer        string         `json:"xdr_pkg_ver"`
	XdrGitRev        string         `json:"xdr_git_rev"`
	XdrBaseGitRev    string         `json:"xdr_base_git_rev"`
	XdrFileHashes    []xdr.FileHash `json:"xdr_file_hashes"`
}

// schemaRevision 由结构描述文件哈希派生的修订号
func schemaRevision(numCostTypes int) string {
	h := sha256.New()
	for _, fh := range xdr.FileHashes(numCostTypes) {
		h.Write([]byte(fh.File))
		h.Write([]byte(fh.Hash))
	}
	return hex.EncodeToString(h.Sum(nil))[:40]
}

// VersionInfo 汇总版本信息
//
// 通道为 next 时基础修订号取最新结构描述；若此时本宿主并非调用方
// 支持的最高协议，说明构建配置可疑，记录警告。
func (h *genericHost) VersionInfo(coreMaxProto uint32) VersionInfo {
	rev := schemaRevision(h.p.numCostTypes)
	info := VersionInfo{
		EnvMaxProto:      h.p.maxProto,
		EnvPkgVer:        version.GetVersion(),
		EnvGitRev:        version.GetGitRevision(),
		EnvPreReleaseVer: version.PreRelease(),
		XdrPkgVer:        h.p.xdrPkgVersion,
		XdrGitRev:        rev,
		XdrFileHashes:    xdr.FileHashes(h.p.numCostTypes),
	}

	switch h.p.xdrChannel {
	case xdrChannelCurr:
		info.XdrBaseGitRev = rev
	case xdrChannelNext, xdrChannelCurrNext:
		if coreMaxProto != h.p.maxProto && h.logger != nil {
			h.logger.Warnf("宿主 p%d 基于 next 结构描述构建，但调用方最高协议为 %d", h.p.maxProto, coreMaxProto)
		}
		info.XdrBaseGitRev = schemaRevision(xdr.NumContractCostTypes)
	default:
		info.XdrBaseGitRev = "unknown XDR module configuration: '" + h.p.xdrChannel + "'"
	}
	return info
}
