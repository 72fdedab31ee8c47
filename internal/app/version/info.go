// Package version provides version information for the application.
package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// 构建时注入的变量，通过ldflags设置
var (
	// 语义化版本信息
	Version = "v0.3.0" // 主版本号，如v1.2.3

	// GitRevision 源码修订号
	GitRevision = "unknown"

	// 构建信息
	BuildTime = "unknown"     // 构建时间戳（RFC3339格式）
	BuildEnv  = "development" // 构建环境：development, testing, production

	// Go构建信息
	GoVersion = runtime.Version() // Go版本
	GoArch    = runtime.GOARCH    // 目标架构
	GoOS      = runtime.GOOS      // 目标操作系统
)

// BuildInfo 完整构建信息结构
type BuildInfo struct {
	Version     string `json:"version"`
	GitRevision string `json:"git_revision"`

	BuildTime string `json:"build_time"`
	BuildEnv  string `json:"build_env"`

	GoVersion string `json:"go_version"`
	GoArch    string `json:"go_arch"`
	GoOS      string `json:"go_os"`
}

// GetVersion 获取版本号
func GetVersion() string {
	return Version
}

// GetGitRevision 获取源码修订号
func GetGitRevision() string {
	return GitRevision
}

// PreRelease 返回预发布序号：v1.2.3-rc.4 返回 4，正式版本返回 0
func PreRelease() uint32 {
	_, pre, ok := strings.Cut(Version, "-")
	if !ok {
		return 0
	}
	idx := strings.LastIndexAny(pre, ".-")
	n, err := strconv.ParseUint(pre[idx+1:], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// GetBuildInfo 获取完整构建信息
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:     Version,
		GitRevision: GitRevision,
		BuildTime:   BuildTime,
		BuildEnv:    BuildEnv,
		GoVersion:   GoVersion,
		GoArch:      GoArch,
		GoOS:        GoOS,
	}
}

// GetFullVersion 获取完整版本信息（用于详细输出）
func GetFullVersion() string {
	buildInfo := GetBuildInfo()

	versionStr := fmt.Sprintf("hostbridge %s (%s)", buildInfo.Version, buildInfo.GitRevision)

	if buildInfo.BuildTime != "unknown" {
		if parsedTime, err := time.Parse(time.RFC3339, buildInfo.BuildTime); err == nil {
			versionStr += fmt.Sprintf("\n构建时间: %s", parsedTime.Format("2006-01-02 15:04:05 MST"))
		} else {
			versionStr += fmt.Sprintf("\n构建时间: %s", buildInfo.BuildTime)
		}
	}

	versionStr += fmt.Sprintf("\n构建环境: %s", buildInfo.BuildEnv)
	versionStr += fmt.Sprintf("\nGo版本: %s", buildInfo.GoVersion)
	versionStr += fmt.Sprintf("\n平台: %s/%s", buildInfo.GoOS, buildInfo.GoArch)

	return versionStr
}

// IsProductionBuild 判断是否为生产构建
func IsProductionBuild() bool { return BuildEnv == "production" }
