// hostbridge 宿主桥接命令行工具
//
// 用于检查宿主版本、计算费用、校验交易可解析性以及预编译合约代码。
// 所有子命令都通过 internal/app 装配同一套 fx 模块。
package main

func main() {
	Execute()
}
