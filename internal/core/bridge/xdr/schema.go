package xdr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FileHash 单个结构描述文件的哈希
type FileHash struct {
	File string `json:"file"`
	Hash string `json:"hash"`
}

// 结构描述文件：字段号与线格式类型的对照表。
// 任何字段调整都必须同步修改这里，哈希随之变化，调用方据此检测不兼容。
const (
	schemaContract = `
message ScError { 1 type varint; 2 code varint; }
union ScVal {
  1 void message; 2 bool varint; 3 error ScError; 4 u32 varint; 5 i32 zigzag;
  6 u64 varint; 7 i64 zigzag; 8 bytes bytes; 9 symbol bytes<=32;
  10 vec { repeated 1 ScVal; } 11 map { repeated 1 { 1 key ScVal; 2 val ScVal; } }
  12 address hash32; 13 ledger_key_contract_instance message;
}
message ContractEvent { 1 contract_id hash32 optional; 2 type varint; repeated 3 topics ScVal; 4 data ScVal; }
message DiagnosticEvent { 1 in_successful_contract_call varint; 2 event ContractEvent; }
`
	schemaLedgerEntries = `
union LedgerKey {
  1 contract_data { 1 contract hash32; 2 key ScVal; 3 durability varint; }
  2 contract_code { 1 hash hash32; }
  3 ttl { 1 key_hash hash32; }
}
message ContractCodeCostInputs { 1..10 varint; }
message LedgerEntry {
  1 last_modified_ledger_seq varint;
  2 contract_data { 1 contract hash32; 2 key ScVal; 3 durability varint; 4 val ScVal; }
  3 contract_code { 1 hash hash32; 2 code bytes; 3 cost_inputs ContractCodeCostInputs optional; }
  4 ttl { 1 key_hash hash32; 2 live_until_ledger_seq varint; }
}
`
	schemaTransaction = `
union HostFunction {
  1 invoke_contract { 1 contract hash32; 2 function_name bytes<=32; repeated 3 args ScVal; }
  2 create_contract { 1 salt hash32; 2 wasm_hash hash32; }
  3 upload_contract_wasm bytes;
}
message SorobanResources { 1 footprint { repeated 1 read_only LedgerKey; repeated 2 read_write LedgerKey; } 2 instructions varint; 3 disk_read_bytes varint; 4 write_bytes varint; }
message AccountID { 1 ed25519 hash32; }
message SorobanAuthorizationEntry {
  1 credentials { 1 source_account message | 2 address { 1 address hash32; 2 nonce zigzag; 3 signature_expiration_ledger varint; 4 signature ScVal; } }
  2 root_invocation { 1 function { 1 contract_fn | 2 create_contract } repeated 2 sub_invocations }
}
message TransactionEnvelope {
  1 source_account AccountID; 2 fee varint; 3 seq_num zigzag;
  repeated 4 operations { 1 host_function HostFunction; repeated 2 auth SorobanAuthorizationEntry; }
  5 soroban_data { 1 resources SorobanResources; 2 resource_fee zigzag; } optional
  repeated 6 signatures { 1 hint bytes4; 2 signature bytes<=64; }
}
`
	schemaConfigSettingHeader = `
message ContractCostParams { repeated 1 { 1 const_term zigzag; 2 linear_term zigzag; } }
enum ContractCostType {
`
)

// SchemaFiles 返回描述文件名及其内容，配置文件的成本类别枚举截取前 numCostTypes 项
func SchemaFiles(numCostTypes int) [][2]string {
	var cfg strings.Builder
	cfg.WriteString(schemaConfigSettingHeader)
	for i, name := range ContractCostTypeNames(numCostTypes) {
		fmt.Fprintf(&cfg, "  %s = %d;\n", name, i)
	}
	cfg.WriteString("}\n")

	return [][2]string{
		{"contract.schema", schemaContract},
		{"ledger-entries.schema", schemaLedgerEntries},
		{"transaction.schema", schemaTransaction},
		{"config-setting.schema", cfg.String()},
	}
}

// FileHashes 计算描述文件的 sha256 哈希
func FileHashes(numCostTypes int) []FileHash {
	files := SchemaFiles(numCostTypes)
	out := make([]FileHash, 0, len(files))
	for _, f := range files {
		sum := sha256.Sum256([]byte(f[1]))
		out = append(out, FileHash{File: f[0], Hash: hex.EncodeToString(sum[:])})
	}
	return out
}
