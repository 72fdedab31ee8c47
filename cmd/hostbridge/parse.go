package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/weisyn/hostbridge/internal/app"
)

var (
	canParseDepth    uint32
	canParseHex      bool
	canParseProtocol uint32
)

// canParseCmd 交易可解析性检查
var canParseCmd = &cobra.Command{
	Use:   "can-parse <file>",
	Short: "检查交易信封在深度限制下是否可解析",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取交易失败: %w", err)
		}
		if canParseHex {
			buf, err = hex.DecodeString(strings.TrimSpace(string(buf)))
			if err != nil {
				return fmt.Errorf("十六进制解码失败: %w", err)
			}
		}

		return withApp(func(svc *app.Services) error {
			host, err := selectHost(svc, canParseProtocol)
			if err != nil {
				return err
			}
			depth := canParseDepth
			if depth == 0 {
				depth = svc.Options.MarshallingDepthLimit
			}
			ok := host.CanParseTransaction(buf, depth)
			if jsonOutput() {
				return printJSON(map[string]bool{"can_parse": ok})
			}
			if ok {
				pterm.Success.Printfln("可解析 (p%d, depth=%d)", host.MaxProtocol(), depth)
			} else {
				pterm.Warning.Printfln("不可解析 (p%d, depth=%d)", host.MaxProtocol(), depth)
			}
			return nil
		})
	},
}

func init() {
	canParseCmd.Flags().Uint32Var(&canParseDepth, "depth", 0, "嵌套深度限制（默认取配置）")
	canParseCmd.Flags().BoolVar(&canParseHex, "hex", false, "输入为十六进制文本")
	canParseCmd.Flags().Uint32VarP(&canParseProtocol, "protocol", "p", 0, "协议版本（默认最高协议）")
}
