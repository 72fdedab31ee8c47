package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/weisyn/hostbridge/internal/app"
	"github.com/weisyn/hostbridge/internal/app/version"
)

var versionCoreMax uint32

// versionCmd 宿主版本报告
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示各协议宿主的版本信息",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(svc *app.Services) error {
			report := svc.VersionReport
			if cmd.Flags().Changed("core-max") {
				report = svc.Registry.VersionReport(versionCoreMax)
			}
			if jsonOutput() {
				return printJSON(report)
			}

			pterm.Info.Println(version.GetFullVersion())
			data := pterm.TableData{{"协议", "宿主版本", "宿主修订", "预发布", "XDR 版本", "XDR 修订", "XDR 基线修订", "结构文件"}}
			for _, info := range report {
				data = append(data, []string{
					strconv.FormatUint(uint64(info.EnvMaxProto), 10),
					info.EnvPkgVer,
					info.EnvGitRev,
					strconv.FormatUint(uint64(info.EnvPreReleaseVer), 10),
					info.XdrPkgVer,
					info.XdrGitRev,
					info.XdrBaseGitRev,
					strconv.Itoa(len(info.XdrFileHashes)),
				})
			}
			return renderTable(fmt.Sprintf("核心最高协议 %d", svc.Registry.CoreMaxProtocol()), data)
		})
	},
}

func init() {
	versionCmd.Flags().Uint32Var(&versionCoreMax, "core-max", 0, "以指定的核心最高协议生成报告")
}
