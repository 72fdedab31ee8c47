package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/weisyn/hostbridge/configs"
	"github.com/weisyn/hostbridge/internal/app"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigFile   string // 配置文件路径
	LogLevel     string // 日志级别
	OutputFormat string // 输出格式
	Protocols    []uint // 覆盖启用的协议版本
}

var globalFlags GlobalFlags

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "hostbridge",
	Short: "合约宿主桥接工具",
	Long: `hostbridge - 账本引擎与合约宿主之间的调用边界

提供以下能力:
- 查看各协议宿主的版本信息
- 计算资源费、租金费与租金写入费率
- 检查交易在嵌套深度限制下是否可解析
- 计算合约代码的租金内存大小
- 预编译合约代码并查看编译记录`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Printfln("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "配置文件路径 (JSON)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "warn", "日志级别: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "table", "输出格式: table|json")
	rootCmd.PersistentFlags().UintSliceVar(&globalFlags.Protocols, "protocols", nil, "启用的协议版本，覆盖配置文件")

	rootCmd.AddCommand(versionCmd, feeCmd, canParseCmd, codeMemoryCmd, compileCmd)
}

// withApp 启动应用、执行 fn 后停止应用
func withApp(fn func(svc *app.Services) error) error {
	opts := []app.Option{
		app.WithConfigFile(globalFlags.ConfigFile),
		app.WithEmbeddedConfig(configs.GetDefaultConfig()),
		app.WithLogLevel(globalFlags.LogLevel),
	}
	if len(globalFlags.Protocols) > 0 {
		protocols := make([]uint32, len(globalFlags.Protocols))
		for i, p := range globalFlags.Protocols {
			protocols[i] = uint32(p)
		}
		opts = append(opts, app.WithProtocols(protocols...))
	}

	a, err := app.BootstrapApp(opts...)
	if err != nil {
		return err
	}
	runErr := fn(a.Services())
	if err := a.Stop(context.Background()); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// jsonOutput 是否以 JSON 输出
func jsonOutput() bool {
	return globalFlags.OutputFormat == "json"
}

// printJSON 以缩进 JSON 输出
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable 输出带表头的表格
func renderTable(title string, data pterm.TableData) error {
	if title != "" {
		pterm.DefaultSection.Println(title)
	}
	return pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(data).Render()
}

// readJSONInput 从文件（"-" 表示标准输入）读取 JSON
func readJSONInput(path string, v interface{}) error {
	var r io.Reader = os.Stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("打开输入文件失败: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("解析输入失败: %w", err)
	}
	return nil
}
