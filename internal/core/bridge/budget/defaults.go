package budget

import "github.com/weisyn/hostbridge/internal/core/bridge/xdr"

// 内置默认成本模型，下标与 xdr.ContractCostType 对应。
// 网络配置的成本参数表会按下标覆盖这些值。

var defaultCPUModels = [xdr.NumContractCostTypes]CostModel{
	xdr.CostWasmInsnExec:             {4, 0},
	xdr.CostMemAlloc:                 {434, 16},
	xdr.CostMemCpy:                   {42, 16},
	xdr.CostMemCmp:                   {44, 16},
	xdr.CostDispatchHostFunction:     {310, 0},
	xdr.CostVisitObject:              {61, 0},
	xdr.CostValSer:                   {230, 29},
	xdr.CostValDeser:                 {59052, 4001},
	xdr.CostComputeSha256Hash:        {3738, 7012},
	xdr.CostComputeEd25519PubKey:     {40253, 0},
	xdr.CostVerifyEd25519Sig:         {377524, 4068},
	xdr.CostVmInstantiation:          {451626, 45405},
	xdr.CostVmCachedInstantiation:    {41142, 634},
	xdr.CostInvokeVmFunction:         {1948, 0},
	xdr.CostComputeKeccak256Hash:     {3766, 5969},
	xdr.CostDecodeEcdsaCurve256Sig:   {710, 0},
	xdr.CostRecoverEcdsaSecp256k1Key: {2315295, 0},
	xdr.CostInt256AddSub:             {4404, 0},
	xdr.CostInt256Mul:                {4947, 0},
	xdr.CostInt256Div:                {4911, 0},
	xdr.CostInt256Pow:                {4286, 0},
	xdr.CostInt256Shift:              {913, 0},
	xdr.CostChaCha20DrawBytes:        {1058, 501},

	xdr.CostParseWasmInstructions:     {73077, 25410},
	xdr.CostParseWasmFunctions:        {0, 540752},
	xdr.CostParseWasmGlobals:          {0, 176363},
	xdr.CostParseWasmTableEntries:     {0, 29989},
	xdr.CostParseWasmTypes:            {0, 1061449},
	xdr.CostParseWasmDataSegments:     {0, 237336},
	xdr.CostParseWasmElemSegments:     {0, 328476},
	xdr.CostParseWasmImports:          {0, 701845},
	xdr.CostParseWasmExports:          {0, 429383},
	xdr.CostParseWasmDataSegmentBytes: {0, 28},

	xdr.CostInstantiateWasmInstructions:     {43030, 0},
	xdr.CostInstantiateWasmFunctions:        {0, 7556},
	xdr.CostInstantiateWasmGlobals:          {0, 10711},
	xdr.CostInstantiateWasmTableEntries:     {0, 3300},
	xdr.CostInstantiateWasmTypes:            {0, 0},
	xdr.CostInstantiateWasmDataSegments:     {0, 23038},
	xdr.CostInstantiateWasmElemSegments:     {0, 42488},
	xdr.CostInstantiateWasmImports:          {0, 828974},
	xdr.CostInstantiateWasmExports:          {0, 297100},
	xdr.CostInstantiateWasmDataSegmentBytes: {0, 14},

	xdr.CostSec1DecodePointUncompressed: {1882, 0},
	xdr.CostVerifyEcdsaSecp256r1Sig:     {3000906, 0},

	xdr.CostBls12381EncodeFp:               {661, 0},
	xdr.CostBls12381DecodeFp:               {985, 0},
	xdr.CostBls12381G1CheckPointOnCurve:    {1934, 0},
	xdr.CostBls12381G1CheckPointInSubgroup: {730510, 0},
	xdr.CostBls12381G2CheckPointOnCurve:    {5921, 0},
	xdr.CostBls12381G2CheckPointInSubgroup: {1057822, 0},
	xdr.CostBls12381G1ProjectiveToAffine:   {92642, 0},
	xdr.CostBls12381G2ProjectiveToAffine:   {100742, 0},
	xdr.CostBls12381G1Add:                  {7689, 0},
	xdr.CostBls12381G1Mul:                  {2458985, 0},
	xdr.CostBls12381G1Msm:                  {2426722, 96397671},
	xdr.CostBls12381MapFpToG1:              {1541554, 0},
	xdr.CostBls12381HashToG1:               {3211191, 6713},
	xdr.CostBls12381G2Add:                  {25207, 0},
	xdr.CostBls12381G2Mul:                  {7873219, 0},
	xdr.CostBls12381G2Msm:                  {8035968, 309667335},
	xdr.CostBls12381MapFp2ToG2:             {2420202, 0},
	xdr.CostBls12381HashToG2:               {7050564, 6797},
	xdr.CostBls12381Pairing:                {10558948, 632860943},
	xdr.CostBls12381FrFromU256:             {1994, 0},
	xdr.CostBls12381FrToU256:               {1155, 0},
	xdr.CostBls12381FrAddSub:               {74, 0},
	xdr.CostBls12381FrMul:                  {332, 0},
	xdr.CostBls12381FrPow:                  {691, 74558},
	xdr.CostBls12381FrInv:                  {35421, 0},
}

var defaultMemModels = [xdr.NumContractCostTypes]CostModel{
	xdr.CostMemAlloc:                 {16, 128},
	xdr.CostValSer:                   {242, 384},
	xdr.CostValDeser:                 {0, 384},
	xdr.CostVmInstantiation:          {130065, 5064},
	xdr.CostVmCachedInstantiation:    {69472, 1217},
	xdr.CostInvokeVmFunction:         {14, 0},
	xdr.CostRecoverEcdsaSecp256k1Key: {181, 0},
	xdr.CostInt256AddSub:             {99, 0},
	xdr.CostInt256Mul:                {99, 0},
	xdr.CostInt256Div:                {99, 0},
	xdr.CostInt256Pow:                {99, 0},
	xdr.CostInt256Shift:              {99, 0},

	xdr.CostParseWasmInstructions:     {17564, 6457},
	xdr.CostParseWasmFunctions:        {0, 47464},
	xdr.CostParseWasmGlobals:          {0, 13420},
	xdr.CostParseWasmTableEntries:     {0, 6285},
	xdr.CostParseWasmTypes:            {0, 64670},
	xdr.CostParseWasmDataSegments:     {0, 29074},
	xdr.CostParseWasmElemSegments:     {0, 48095},
	xdr.CostParseWasmImports:          {0, 103229},
	xdr.CostParseWasmExports:          {0, 36394},
	xdr.CostParseWasmDataSegmentBytes: {0, 257},

	xdr.CostInstantiateWasmInstructions:     {70704, 0},
	xdr.CostInstantiateWasmFunctions:        {0, 14613},
	xdr.CostInstantiateWasmGlobals:          {0, 6833},
	xdr.CostInstantiateWasmTableEntries:     {0, 1025},
	xdr.CostInstantiateWasmDataSegments:     {0, 129632},
	xdr.CostInstantiateWasmElemSegments:     {0, 13665},
	xdr.CostInstantiateWasmImports:          {0, 97637},
	xdr.CostInstantiateWasmExports:          {0, 9176},
	xdr.CostInstantiateWasmDataSegmentBytes: {0, 126},

	xdr.CostBls12381G1ProjectiveToAffine: {0, 0},
	xdr.CostBls12381G1Msm:                {109494, 354667},
	xdr.CostBls12381HashToG1:             {2204, 0},
	xdr.CostBls12381G2Msm:                {219654, 354667},
	xdr.CostBls12381HashToG2:             {4400, 0},
	xdr.CostBls12381Pairing:              {2204, 9340474},
	xdr.CostBls12381FrPow:                {0, 128},
}
