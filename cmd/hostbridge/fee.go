package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/weisyn/hostbridge/internal/app"
	"github.com/weisyn/hostbridge/internal/core/bridge/fees"
	"github.com/weisyn/hostbridge/internal/core/bridge/protocol"
)

var (
	feeInput    string
	feeProtocol uint32
)

// resourceFeeInput fee resource 的输入
type resourceFeeInput struct {
	Resources fees.TransactionResources `json:"resources"`
	Config    fees.FeeConfiguration     `json:"config"`
}

// rentFeeInput fee rent 的输入
type rentFeeInput struct {
	Changes       []fees.LedgerEntryRentChange `json:"changes"`
	Config        fees.RentFeeConfiguration    `json:"config"`
	CurrentLedger uint32                       `json:"current_ledger"`
}

// writeRateInput fee write-rate 的输入
type writeRateInput struct {
	StateSizeBytes int64                          `json:"state_size_bytes"`
	Config         fees.RentWriteFeeConfiguration `json:"config"`
}

// feeCmd 费用计算
var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "按协议规则计算费用",
	Long:  "输入为 JSON（--input 指定文件，- 表示标准输入），按 --protocol 选择宿主的费用规则",
}

var feeResourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "计算交易资源费",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in resourceFeeInput
		if err := readJSONInput(feeInput, &in); err != nil {
			return err
		}
		return withFeeHost(func(host protocol.Host) error {
			fee := host.ComputeTransactionResourceFee(in.Resources, in.Config)
			if jsonOutput() {
				return printJSON(fee)
			}
			return renderTable(fmt.Sprintf("资源费 (p%d)", host.MaxProtocol()), pterm.TableData{
				{"不可退还", "可退还"},
				{strconv.FormatInt(fee.NonRefundable, 10), strconv.FormatInt(fee.Refundable, 10)},
			})
		})
	},
}

var feeRentCmd = &cobra.Command{
	Use:   "rent",
	Short: "计算租金费",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in rentFeeInput
		if err := readJSONInput(feeInput, &in); err != nil {
			return err
		}
		return withFeeHost(func(host protocol.Host) error {
			fee := host.ComputeRentFee(in.Changes, in.Config, in.CurrentLedger)
			if jsonOutput() {
				return printJSON(map[string]int64{"rent_fee": fee})
			}
			pterm.Success.Printfln("租金费 (p%d): %d", host.MaxProtocol(), fee)
			return nil
		})
	},
}

var feeWriteRateCmd = &cobra.Command{
	Use:   "write-rate",
	Short: "按状态规模计算每 1KB 租金写入费率",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in writeRateInput
		if err := readJSONInput(feeInput, &in); err != nil {
			return err
		}
		return withFeeHost(func(host protocol.Host) error {
			rate := host.ComputeRentWriteFeePer1KB(in.StateSizeBytes, in.Config)
			if jsonOutput() {
				return printJSON(map[string]int64{"rent_write_fee_per_1kb": rate})
			}
			pterm.Success.Printfln("每 1KB 租金写入费率 (p%d): %d", host.MaxProtocol(), rate)
			return nil
		})
	},
}

// withFeeHost 按 --protocol 选择宿主，未指定时使用最高协议
func withFeeHost(fn func(host protocol.Host) error) error {
	return withApp(func(svc *app.Services) error {
		host, err := selectHost(svc, feeProtocol)
		if err != nil {
			return err
		}
		return fn(host)
	})
}

// selectHost v 为 0 时返回最高协议的宿主
func selectHost(svc *app.Services, v uint32) (protocol.Host, error) {
	if v == 0 {
		return svc.Registry.Latest(), nil
	}
	return svc.Registry.ForProtocol(v)
}

func init() {
	feeCmd.PersistentFlags().StringVarP(&feeInput, "input", "i", "-", "JSON 输入文件")
	feeCmd.PersistentFlags().Uint32VarP(&feeProtocol, "protocol", "p", 0, "协议版本（默认最高协议）")
	feeCmd.AddCommand(feeResourceCmd, feeRentCmd, feeWriteRateCmd)
}
