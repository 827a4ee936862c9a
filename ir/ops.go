package ir

import "fmt"

// Operator enum values mirror their binary format opcodes, the same way
// ValType mirrors its encoding byte. Operators from the 0xFC-prefixed misc
// space are offset by miscOpcodeBase so they stay disjoint from the
// single-byte space.
const miscOpcodeBase = 0x100

// UnaryOp identifies an operator that pops one operand and pushes one
// result: tests, counts, float math, conversions, sign extensions and
// saturating truncations.
type UnaryOp uint32

const (
	I32Eqz UnaryOp = 0x45
	I64Eqz UnaryOp = 0x50

	I32Clz    UnaryOp = 0x67
	I32Ctz    UnaryOp = 0x68
	I32Popcnt UnaryOp = 0x69

	I64Clz    UnaryOp = 0x79
	I64Ctz    UnaryOp = 0x7A
	I64Popcnt UnaryOp = 0x7B

	F32Abs     UnaryOp = 0x8B
	F32Neg     UnaryOp = 0x8C
	F32Ceil    UnaryOp = 0x8D
	F32Floor   UnaryOp = 0x8E
	F32Trunc   UnaryOp = 0x8F
	F32Nearest UnaryOp = 0x90
	F32Sqrt    UnaryOp = 0x91

	F64Abs     UnaryOp = 0x99
	F64Neg     UnaryOp = 0x9A
	F64Ceil    UnaryOp = 0x9B
	F64Floor   UnaryOp = 0x9C
	F64Trunc   UnaryOp = 0x9D
	F64Nearest UnaryOp = 0x9E
	F64Sqrt    UnaryOp = 0x9F

	I32WrapI64   UnaryOp = 0xA7
	I32TruncF32S UnaryOp = 0xA8
	I32TruncF32U UnaryOp = 0xA9
	I32TruncF64S UnaryOp = 0xAA
	I32TruncF64U UnaryOp = 0xAB

	I64ExtendI32S UnaryOp = 0xAC
	I64ExtendI32U UnaryOp = 0xAD
	I64TruncF32S  UnaryOp = 0xAE
	I64TruncF32U  UnaryOp = 0xAF
	I64TruncF64S  UnaryOp = 0xB0
	I64TruncF64U  UnaryOp = 0xB1

	F32ConvertI32S UnaryOp = 0xB2
	F32ConvertI32U UnaryOp = 0xB3
	F32ConvertI64S UnaryOp = 0xB4
	F32ConvertI64U UnaryOp = 0xB5
	F32DemoteF64   UnaryOp = 0xB6

	F64ConvertI32S UnaryOp = 0xB7
	F64ConvertI32U UnaryOp = 0xB8
	F64ConvertI64S UnaryOp = 0xB9
	F64ConvertI64U UnaryOp = 0xBA
	F64PromoteF32  UnaryOp = 0xBB

	I32ReinterpretF32 UnaryOp = 0xBC
	I64ReinterpretF64 UnaryOp = 0xBD
	F32ReinterpretI32 UnaryOp = 0xBE
	F64ReinterpretI64 UnaryOp = 0xBF

	// Sign extension operators
	I32Extend8S  UnaryOp = 0xC0
	I32Extend16S UnaryOp = 0xC1
	I64Extend8S  UnaryOp = 0xC2
	I64Extend16S UnaryOp = 0xC3
	I64Extend32S UnaryOp = 0xC4

	// Saturating truncation operators (0xFC prefix)
	I32TruncSatF32S UnaryOp = miscOpcodeBase + 0x00
	I32TruncSatF32U UnaryOp = miscOpcodeBase + 0x01
	I32TruncSatF64S UnaryOp = miscOpcodeBase + 0x02
	I32TruncSatF64U UnaryOp = miscOpcodeBase + 0x03
	I64TruncSatF32S UnaryOp = miscOpcodeBase + 0x04
	I64TruncSatF32U UnaryOp = miscOpcodeBase + 0x05
	I64TruncSatF64S UnaryOp = miscOpcodeBase + 0x06
	I64TruncSatF64U UnaryOp = miscOpcodeBase + 0x07
)

type unopInfo struct {
	name    string
	in      ValType
	out     ValType
	feature Feature
}

var unopInfos = map[UnaryOp]unopInfo{
	I32Eqz: {name: "i32.eqz", in: I32, out: I32},
	I64Eqz: {name: "i64.eqz", in: I64, out: I32},

	I32Clz:    {name: "i32.clz", in: I32, out: I32},
	I32Ctz:    {name: "i32.ctz", in: I32, out: I32},
	I32Popcnt: {name: "i32.popcnt", in: I32, out: I32},

	I64Clz:    {name: "i64.clz", in: I64, out: I64},
	I64Ctz:    {name: "i64.ctz", in: I64, out: I64},
	I64Popcnt: {name: "i64.popcnt", in: I64, out: I64},

	F32Abs:     {name: "f32.abs", in: F32, out: F32},
	F32Neg:     {name: "f32.neg", in: F32, out: F32},
	F32Ceil:    {name: "f32.ceil", in: F32, out: F32},
	F32Floor:   {name: "f32.floor", in: F32, out: F32},
	F32Trunc:   {name: "f32.trunc", in: F32, out: F32},
	F32Nearest: {name: "f32.nearest", in: F32, out: F32},
	F32Sqrt:    {name: "f32.sqrt", in: F32, out: F32},

	F64Abs:     {name: "f64.abs", in: F64, out: F64},
	F64Neg:     {name: "f64.neg", in: F64, out: F64},
	F64Ceil:    {name: "f64.ceil", in: F64, out: F64},
	F64Floor:   {name: "f64.floor", in: F64, out: F64},
	F64Trunc:   {name: "f64.trunc", in: F64, out: F64},
	F64Nearest: {name: "f64.nearest", in: F64, out: F64},
	F64Sqrt:    {name: "f64.sqrt", in: F64, out: F64},

	I32WrapI64:   {name: "i32.wrap_i64", in: I64, out: I32},
	I32TruncF32S: {name: "i32.trunc_f32_s", in: F32, out: I32},
	I32TruncF32U: {name: "i32.trunc_f32_u", in: F32, out: I32},
	I32TruncF64S: {name: "i32.trunc_f64_s", in: F64, out: I32},
	I32TruncF64U: {name: "i32.trunc_f64_u", in: F64, out: I32},

	I64ExtendI32S: {name: "i64.extend_i32_s", in: I32, out: I64},
	I64ExtendI32U: {name: "i64.extend_i32_u", in: I32, out: I64},
	I64TruncF32S:  {name: "i64.trunc_f32_s", in: F32, out: I64},
	I64TruncF32U:  {name: "i64.trunc_f32_u", in: F32, out: I64},
	I64TruncF64S:  {name: "i64.trunc_f64_s", in: F64, out: I64},
	I64TruncF64U:  {name: "i64.trunc_f64_u", in: F64, out: I64},

	F32ConvertI32S: {name: "f32.convert_i32_s", in: I32, out: F32},
	F32ConvertI32U: {name: "f32.convert_i32_u", in: I32, out: F32},
	F32ConvertI64S: {name: "f32.convert_i64_s", in: I64, out: F32},
	F32ConvertI64U: {name: "f32.convert_i64_u", in: I64, out: F32},
	F32DemoteF64:   {name: "f32.demote_f64", in: F64, out: F32},

	F64ConvertI32S: {name: "f64.convert_i32_s", in: I32, out: F64},
	F64ConvertI32U: {name: "f64.convert_i32_u", in: I32, out: F64},
	F64ConvertI64S: {name: "f64.convert_i64_s", in: I64, out: F64},
	F64ConvertI64U: {name: "f64.convert_i64_u", in: I64, out: F64},
	F64PromoteF32:  {name: "f64.promote_f32", in: F32, out: F64},

	I32ReinterpretF32: {name: "i32.reinterpret_f32", in: F32, out: I32},
	I64ReinterpretF64: {name: "i64.reinterpret_f64", in: F64, out: I64},
	F32ReinterpretI32: {name: "f32.reinterpret_i32", in: I32, out: F32},
	F64ReinterpretI64: {name: "f64.reinterpret_i64", in: I64, out: F64},

	I32Extend8S:  {name: "i32.extend8_s", in: I32, out: I32, feature: FeatureSignExtension},
	I32Extend16S: {name: "i32.extend16_s", in: I32, out: I32, feature: FeatureSignExtension},
	I64Extend8S:  {name: "i64.extend8_s", in: I64, out: I64, feature: FeatureSignExtension},
	I64Extend16S: {name: "i64.extend16_s", in: I64, out: I64, feature: FeatureSignExtension},
	I64Extend32S: {name: "i64.extend32_s", in: I64, out: I64, feature: FeatureSignExtension},

	I32TruncSatF32S: {name: "i32.trunc_sat_f32_s", in: F32, out: I32, feature: FeatureSaturatingTruncation},
	I32TruncSatF32U: {name: "i32.trunc_sat_f32_u", in: F32, out: I32, feature: FeatureSaturatingTruncation},
	I32TruncSatF64S: {name: "i32.trunc_sat_f64_s", in: F64, out: I32, feature: FeatureSaturatingTruncation},
	I32TruncSatF64U: {name: "i32.trunc_sat_f64_u", in: F64, out: I32, feature: FeatureSaturatingTruncation},
	I64TruncSatF32S: {name: "i64.trunc_sat_f32_s", in: F32, out: I64, feature: FeatureSaturatingTruncation},
	I64TruncSatF32U: {name: "i64.trunc_sat_f32_u", in: F32, out: I64, feature: FeatureSaturatingTruncation},
	I64TruncSatF64S: {name: "i64.trunc_sat_f64_s", in: F64, out: I64, feature: FeatureSaturatingTruncation},
	I64TruncSatF64U: {name: "i64.trunc_sat_f64_u", in: F64, out: I64, feature: FeatureSaturatingTruncation},
}

// String returns the text format mnemonic, e.g. "i32.trunc_sat_f32_s".
func (op UnaryOp) String() string {
	if info, ok := unopInfos[op]; ok {
		return info.name
	}
	return fmt.Sprintf("unop(0x%X)", uint32(op))
}

// Signature returns the operand and result type of the operator.
func (op UnaryOp) Signature() (in, out ValType) {
	info := unopInfos[op]
	return info.in, info.out
}

// Opcode returns the binary encoding of the operator. When prefixed is
// true, the operator is written as the 0xFC prefix byte followed by
// opcode as a LEB128 u32.
func (op UnaryOp) Opcode() (opcode uint32, prefixed bool) {
	if op >= miscOpcodeBase {
		return uint32(op) - miscOpcodeBase, true
	}
	return uint32(op), false
}

// RequiredFeature returns the proposal the operator belongs to, or
// FeatureNone for core operators.
func (op UnaryOp) RequiredFeature() Feature {
	return unopInfos[op].feature
}

// UnopFromOpcode maps a binary opcode to its UnaryOp. Prefixed operators
// are looked up by miscOpcodeBase plus their sub-opcode.
func UnopFromOpcode(opcode uint32) (UnaryOp, bool) {
	op := UnaryOp(opcode)
	_, ok := unopInfos[op]
	return op, ok
}

// UnopFromMiscOpcode maps a 0xFC-prefixed sub-opcode to its UnaryOp.
func UnopFromMiscOpcode(sub uint32) (UnaryOp, bool) {
	return UnopFromOpcode(miscOpcodeBase + sub)
}

// BinaryOp identifies an operator that pops two operands and pushes one
// result: comparisons and two-operand arithmetic.
type BinaryOp uint32

const (
	I32Eq  BinaryOp = 0x46
	I32Ne  BinaryOp = 0x47
	I32LtS BinaryOp = 0x48
	I32LtU BinaryOp = 0x49
	I32GtS BinaryOp = 0x4A
	I32GtU BinaryOp = 0x4B
	I32LeS BinaryOp = 0x4C
	I32LeU BinaryOp = 0x4D
	I32GeS BinaryOp = 0x4E
	I32GeU BinaryOp = 0x4F

	I64Eq  BinaryOp = 0x51
	I64Ne  BinaryOp = 0x52
	I64LtS BinaryOp = 0x53
	I64LtU BinaryOp = 0x54
	I64GtS BinaryOp = 0x55
	I64GtU BinaryOp = 0x56
	I64LeS BinaryOp = 0x57
	I64LeU BinaryOp = 0x58
	I64GeS BinaryOp = 0x59
	I64GeU BinaryOp = 0x5A

	F32Eq BinaryOp = 0x5B
	F32Ne BinaryOp = 0x5C
	F32Lt BinaryOp = 0x5D
	F32Gt BinaryOp = 0x5E
	F32Le BinaryOp = 0x5F
	F32Ge BinaryOp = 0x60

	F64Eq BinaryOp = 0x61
	F64Ne BinaryOp = 0x62
	F64Lt BinaryOp = 0x63
	F64Gt BinaryOp = 0x64
	F64Le BinaryOp = 0x65
	F64Ge BinaryOp = 0x66

	I32Add  BinaryOp = 0x6A
	I32Sub  BinaryOp = 0x6B
	I32Mul  BinaryOp = 0x6C
	I32DivS BinaryOp = 0x6D
	I32DivU BinaryOp = 0x6E
	I32RemS BinaryOp = 0x6F
	I32RemU BinaryOp = 0x70
	I32And  BinaryOp = 0x71
	I32Or   BinaryOp = 0x72
	I32Xor  BinaryOp = 0x73
	I32Shl  BinaryOp = 0x74
	I32ShrS BinaryOp = 0x75
	I32ShrU BinaryOp = 0x76
	I32Rotl BinaryOp = 0x77
	I32Rotr BinaryOp = 0x78

	I64Add  BinaryOp = 0x7C
	I64Sub  BinaryOp = 0x7D
	I64Mul  BinaryOp = 0x7E
	I64DivS BinaryOp = 0x7F
	I64DivU BinaryOp = 0x80
	I64RemS BinaryOp = 0x81
	I64RemU BinaryOp = 0x82
	I64And  BinaryOp = 0x83
	I64Or   BinaryOp = 0x84
	I64Xor  BinaryOp = 0x85
	I64Shl  BinaryOp = 0x86
	I64ShrS BinaryOp = 0x87
	I64ShrU BinaryOp = 0x88
	I64Rotl BinaryOp = 0x89
	I64Rotr BinaryOp = 0x8A

	F32Add      BinaryOp = 0x92
	F32Sub      BinaryOp = 0x93
	F32Mul      BinaryOp = 0x94
	F32Div      BinaryOp = 0x95
	F32Min      BinaryOp = 0x96
	F32Max      BinaryOp = 0x97
	F32Copysign BinaryOp = 0x98

	F64Add      BinaryOp = 0xA0
	F64Sub      BinaryOp = 0xA1
	F64Mul      BinaryOp = 0xA2
	F64Div      BinaryOp = 0xA3
	F64Min      BinaryOp = 0xA4
	F64Max      BinaryOp = 0xA5
	F64Copysign BinaryOp = 0xA6
)

type binopInfo struct {
	name    string
	operand ValType
	result  ValType
}

var binopInfos = map[BinaryOp]binopInfo{
	I32Eq:  {name: "i32.eq", operand: I32, result: I32},
	I32Ne:  {name: "i32.ne", operand: I32, result: I32},
	I32LtS: {name: "i32.lt_s", operand: I32, result: I32},
	I32LtU: {name: "i32.lt_u", operand: I32, result: I32},
	I32GtS: {name: "i32.gt_s", operand: I32, result: I32},
	I32GtU: {name: "i32.gt_u", operand: I32, result: I32},
	I32LeS: {name: "i32.le_s", operand: I32, result: I32},
	I32LeU: {name: "i32.le_u", operand: I32, result: I32},
	I32GeS: {name: "i32.ge_s", operand: I32, result: I32},
	I32GeU: {name: "i32.ge_u", operand: I32, result: I32},

	I64Eq:  {name: "i64.eq", operand: I64, result: I32},
	I64Ne:  {name: "i64.ne", operand: I64, result: I32},
	I64LtS: {name: "i64.lt_s", operand: I64, result: I32},
	I64LtU: {name: "i64.lt_u", operand: I64, result: I32},
	I64GtS: {name: "i64.gt_s", operand: I64, result: I32},
	I64GtU: {name: "i64.gt_u", operand: I64, result: I32},
	I64LeS: {name: "i64.le_s", operand: I64, result: I32},
	I64LeU: {name: "i64.le_u", operand: I64, result: I32},
	I64GeS: {name: "i64.ge_s", operand: I64, result: I32},
	I64GeU: {name: "i64.ge_u", operand: I64, result: I32},

	F32Eq: {name: "f32.eq", operand: F32, result: I32},
	F32Ne: {name: "f32.ne", operand: F32, result: I32},
	F32Lt: {name: "f32.lt", operand: F32, result: I32},
	F32Gt: {name: "f32.gt", operand: F32, result: I32},
	F32Le: {name: "f32.le", operand: F32, result: I32},
	F32Ge: {name: "f32.ge", operand: F32, result: I32},

	F64Eq: {name: "f64.eq", operand: F64, result: I32},
	F64Ne: {name: "f64.ne", operand: F64, result: I32},
	F64Lt: {name: "f64.lt", operand: F64, result: I32},
	F64Gt: {name: "f64.gt", operand: F64, result: I32},
	F64Le: {name: "f64.le", operand: F64, result: I32},
	F64Ge: {name: "f64.ge", operand: F64, result: I32},

	I32Add:  {name: "i32.add", operand: I32, result: I32},
	I32Sub:  {name: "i32.sub", operand: I32, result: I32},
	I32Mul:  {name: "i32.mul", operand: I32, result: I32},
	I32DivS: {name: "i32.div_s", operand: I32, result: I32},
	I32DivU: {name: "i32.div_u", operand: I32, result: I32},
	I32RemS: {name: "i32.rem_s", operand: I32, result: I32},
	I32RemU: {name: "i32.rem_u", operand: I32, result: I32},
	I32And:  {name: "i32.and", operand: I32, result: I32},
	I32Or:   {name: "i32.or", operand: I32, result: I32},
	I32Xor:  {name: "i32.xor", operand: I32, result: I32},
	I32Shl:  {name: "i32.shl", operand: I32, result: I32},
	I32ShrS: {name: "i32.shr_s", operand: I32, result: I32},
	I32ShrU: {name: "i32.shr_u", operand: I32, result: I32},
	I32Rotl: {name: "i32.rotl", operand: I32, result: I32},
	I32Rotr: {name: "i32.rotr", operand: I32, result: I32},

	I64Add:  {name: "i64.add", operand: I64, result: I64},
	I64Sub:  {name: "i64.sub", operand: I64, result: I64},
	I64Mul:  {name: "i64.mul", operand: I64, result: I64},
	I64DivS: {name: "i64.div_s", operand: I64, result: I64},
	I64DivU: {name: "i64.div_u", operand: I64, result: I64},
	I64RemS: {name: "i64.rem_s", operand: I64, result: I64},
	I64RemU: {name: "i64.rem_u", operand: I64, result: I64},
	I64And:  {name: "i64.and", operand: I64, result: I64},
	I64Or:   {name: "i64.or", operand: I64, result: I64},
	I64Xor:  {name: "i64.xor", operand: I64, result: I64},
	I64Shl:  {name: "i64.shl", operand: I64, result: I64},
	I64ShrS: {name: "i64.shr_s", operand: I64, result: I64},
	I64ShrU: {name: "i64.shr_u", operand: I64, result: I64},
	I64Rotl: {name: "i64.rotl", operand: I64, result: I64},
	I64Rotr: {name: "i64.rotr", operand: I64, result: I64},

	F32Add:      {name: "f32.add", operand: F32, result: F32},
	F32Sub:      {name: "f32.sub", operand: F32, result: F32},
	F32Mul:      {name: "f32.mul", operand: F32, result: F32},
	F32Div:      {name: "f32.div", operand: F32, result: F32},
	F32Min:      {name: "f32.min", operand: F32, result: F32},
	F32Max:      {name: "f32.max", operand: F32, result: F32},
	F32Copysign: {name: "f32.copysign", operand: F32, result: F32},

	F64Add:      {name: "f64.add", operand: F64, result: F64},
	F64Sub:      {name: "f64.sub", operand: F64, result: F64},
	F64Mul:      {name: "f64.mul", operand: F64, result: F64},
	F64Div:      {name: "f64.div", operand: F64, result: F64},
	F64Min:      {name: "f64.min", operand: F64, result: F64},
	F64Max:      {name: "f64.max", operand: F64, result: F64},
	F64Copysign: {name: "f64.copysign", operand: F64, result: F64},
}

// String returns the text format mnemonic, e.g. "i32.add".
func (op BinaryOp) String() string {
	if info, ok := binopInfos[op]; ok {
		return info.name
	}
	return fmt.Sprintf("binop(0x%X)", uint32(op))
}

// Signature returns the operand type (both operands share it) and the
// result type of the operator.
func (op BinaryOp) Signature() (operand, result ValType) {
	info := binopInfos[op]
	return info.operand, info.result
}

// Opcode returns the binary encoding of the operator.
func (op BinaryOp) Opcode() (opcode uint32, prefixed bool) {
	return uint32(op), false
}

// BinopFromOpcode maps a binary opcode to its BinaryOp.
func BinopFromOpcode(opcode uint32) (BinaryOp, bool) {
	op := BinaryOp(opcode)
	_, ok := binopInfos[op]
	return op, ok
}

// LoadKind identifies a memory load operator, including the narrow
// sign- and zero-extending variants.
type LoadKind byte

const (
	LoadI32     LoadKind = 0x28
	LoadI64     LoadKind = 0x29
	LoadF32     LoadKind = 0x2A
	LoadF64     LoadKind = 0x2B
	LoadI32_8S  LoadKind = 0x2C
	LoadI32_8U  LoadKind = 0x2D
	LoadI32_16S LoadKind = 0x2E
	LoadI32_16U LoadKind = 0x2F
	LoadI64_8S  LoadKind = 0x30
	LoadI64_8U  LoadKind = 0x31
	LoadI64_16S LoadKind = 0x32
	LoadI64_16U LoadKind = 0x33
	LoadI64_32S LoadKind = 0x34
	LoadI64_32U LoadKind = 0x35
)

type memAccessInfo struct {
	name string
	ty   ValType
	size uint32 // access width in bytes
}

var loadInfos = map[LoadKind]memAccessInfo{
	LoadI32:     {name: "i32.load", ty: I32, size: 4},
	LoadI64:     {name: "i64.load", ty: I64, size: 8},
	LoadF32:     {name: "f32.load", ty: F32, size: 4},
	LoadF64:     {name: "f64.load", ty: F64, size: 8},
	LoadI32_8S:  {name: "i32.load8_s", ty: I32, size: 1},
	LoadI32_8U:  {name: "i32.load8_u", ty: I32, size: 1},
	LoadI32_16S: {name: "i32.load16_s", ty: I32, size: 2},
	LoadI32_16U: {name: "i32.load16_u", ty: I32, size: 2},
	LoadI64_8S:  {name: "i64.load8_s", ty: I64, size: 1},
	LoadI64_8U:  {name: "i64.load8_u", ty: I64, size: 1},
	LoadI64_16S: {name: "i64.load16_s", ty: I64, size: 2},
	LoadI64_16U: {name: "i64.load16_u", ty: I64, size: 2},
	LoadI64_32S: {name: "i64.load32_s", ty: I64, size: 4},
	LoadI64_32U: {name: "i64.load32_u", ty: I64, size: 4},
}

// String returns the text format mnemonic, e.g. "i32.load8_u".
func (k LoadKind) String() string {
	if info, ok := loadInfos[k]; ok {
		return info.name
	}
	return fmt.Sprintf("load(0x%02X)", byte(k))
}

// ValueType returns the type the load pushes.
func (k LoadKind) ValueType() ValType {
	return loadInfos[k].ty
}

// AccessSize returns the number of bytes read from memory.
func (k LoadKind) AccessSize() uint32 {
	return loadInfos[k].size
}

// LoadKindFromOpcode maps a binary opcode to its LoadKind.
func LoadKindFromOpcode(opcode byte) (LoadKind, bool) {
	k := LoadKind(opcode)
	_, ok := loadInfos[k]
	return k, ok
}

// StoreKind identifies a memory store operator, including the narrow
// wrapping variants.
type StoreKind byte

const (
	StoreI32    StoreKind = 0x36
	StoreI64    StoreKind = 0x37
	StoreF32    StoreKind = 0x38
	StoreF64    StoreKind = 0x39
	StoreI32_8  StoreKind = 0x3A
	StoreI32_16 StoreKind = 0x3B
	StoreI64_8  StoreKind = 0x3C
	StoreI64_16 StoreKind = 0x3D
	StoreI64_32 StoreKind = 0x3E
)

var storeInfos = map[StoreKind]memAccessInfo{
	StoreI32:    {name: "i32.store", ty: I32, size: 4},
	StoreI64:    {name: "i64.store", ty: I64, size: 8},
	StoreF32:    {name: "f32.store", ty: F32, size: 4},
	StoreF64:    {name: "f64.store", ty: F64, size: 8},
	StoreI32_8:  {name: "i32.store8", ty: I32, size: 1},
	StoreI32_16: {name: "i32.store16", ty: I32, size: 2},
	StoreI64_8:  {name: "i64.store8", ty: I64, size: 1},
	StoreI64_16: {name: "i64.store16", ty: I64, size: 2},
	StoreI64_32: {name: "i64.store32", ty: I64, size: 4},
}

// String returns the text format mnemonic, e.g. "i64.store32".
func (k StoreKind) String() string {
	if info, ok := storeInfos[k]; ok {
		return info.name
	}
	return fmt.Sprintf("store(0x%02X)", byte(k))
}

// ValueType returns the type the store pops as its value operand.
func (k StoreKind) ValueType() ValType {
	return storeInfos[k].ty
}

// AccessSize returns the number of bytes written to memory.
func (k StoreKind) AccessSize() uint32 {
	return storeInfos[k].size
}

// StoreKindFromOpcode maps a binary opcode to its StoreKind.
func StoreKindFromOpcode(opcode byte) (StoreKind, bool) {
	k := StoreKind(opcode)
	_, ok := storeInfos[k]
	return k, ok
}
