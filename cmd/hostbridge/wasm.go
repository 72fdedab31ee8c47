package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/weisyn/hostbridge/internal/app"
	"github.com/weisyn/hostbridge/internal/core/bridge/wasmcost"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

var (
	codeMemoryProtocol  uint32
	codeMemoryCPUParams string
	codeMemoryMemParams string
)

// codeMemoryCmd 合约代码的租金内存大小
var codeMemoryCmd = &cobra.Command{
	Use:   "code-memory <file.wasm>",
	Short: "计算合约代码条目的租金内存大小",
	Long: `读取 wasm 文件，构造合约代码条目并计算其租金内存大小。
成本参数表为 XDR 编码文件，未指定时使用内置默认成本。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取 wasm 文件失败: %w", err)
		}
		inputs, err := wasmcost.ParseCostInputs(code)
		if err != nil {
			return fmt.Errorf("解析 wasm 失败: %w", err)
		}
		entry, err := xdr.MarshalTrusted(&xdr.ContractCodeEntry{
			Hash:       sha256.Sum256(code),
			Code:       code,
			CostInputs: &inputs,
		})
		if err != nil {
			return err
		}
		cpuParams, err := readCostParams(codeMemoryCPUParams)
		if err != nil {
			return err
		}
		memParams, err := readCostParams(codeMemoryMemParams)
		if err != nil {
			return err
		}

		return withApp(func(svc *app.Services) error {
			host, err := selectHost(svc, codeMemoryProtocol)
			if err != nil {
				return err
			}
			size, err := host.ContractCodeMemorySizeForRent(entry, cpuParams, memParams)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(map[string]uint32{"memory_size_for_rent": size})
			}
			pterm.Success.Printfln("租金内存大小 (p%d): %d 字节", host.MaxProtocol(), size)
			return nil
		})
	},
}

// readCostParams 读取 XDR 编码的成本参数表，路径为空时返回空表
func readCostParams(path string) ([]byte, error) {
	if path == "" {
		return xdr.MarshalTrusted(xdr.ContractCostParams{})
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取成本参数失败: %w", err)
	}
	return buf, nil
}

// compileCmd 预编译合约代码
var compileCmd = &cobra.Command{
	Use:   "compile <file.wasm>...",
	Short: "预编译合约代码并显示编译记录",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(svc *app.Services) error {
			ctx := cmd.Context()
			for _, path := range args {
				code, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("读取 %s 失败: %w", path, err)
				}
				if err := svc.ModuleCache.Compile(ctx, code); err != nil {
					return fmt.Errorf("编译 %s 失败: %w", path, err)
				}
			}

			records, err := svc.ModuleCache.Records(ctx)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(records)
			}
			data := pterm.TableData{{"代码哈希", "字节数", "函数", "指令", "导入", "导出", "数据段字节", "内存"}}
			for _, rec := range records {
				data = append(data, []string{
					rec.Key.String(),
					strconv.FormatUint(uint64(rec.Size), 10),
					strconv.FormatUint(uint64(rec.CostInputs.NFunctions), 10),
					strconv.FormatUint(uint64(rec.CostInputs.NInstructions), 10),
					strconv.FormatUint(uint64(rec.CostInputs.NImports), 10),
					strconv.FormatUint(uint64(rec.CostInputs.NExports), 10),
					strconv.FormatUint(uint64(rec.CostInputs.NDataSegmentBytes), 10),
					strconv.FormatUint(rec.MemBytes, 10),
				})
			}
			if err := renderTable(fmt.Sprintf("模块缓存 %d 项", svc.ModuleCache.Len()), data); err != nil {
				return err
			}

			sample := svc.MemoryDoctor.SampleOnce()
			for _, m := range sample.Modules {
				pterm.Info.Printfln("%s: %d 项, 编译内存 %d 字节", m.Module, m.CacheItems, m.ApproxBytes)
			}
			pterm.Info.Printfln("进程堆: %d 字节, goroutine: %d", sample.HeapAlloc, sample.NumGoroutine)
			return nil
		})
	},
}

func init() {
	codeMemoryCmd.Flags().Uint32VarP(&codeMemoryProtocol, "protocol", "p", 0, "协议版本（默认最高协议）")
	codeMemoryCmd.Flags().StringVar(&codeMemoryCPUParams, "cpu-params", "", "XDR 编码的 CPU 成本参数表文件")
	codeMemoryCmd.Flags().StringVar(&codeMemoryMemParams, "mem-params", "", "XDR 编码的内存成本参数表文件")
}
