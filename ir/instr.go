package ir

import (
	"fmt"
	"strconv"
)

// Instr is a single instruction in an instruction sequence. The set of
// implementations is closed; branch and block instructions refer to other
// sequences by InstrSeqID, never by relative depth.
type Instr interface {
	isInstr()
	fmt.Stringer
}

// Value is an immediate constant operand. Type selects which field holds
// the value. Float values keep their exact bit pattern from decode to
// encode, including NaN payloads.
type Value struct {
	Type ValType
	I32  int32
	I64  int64
	F32  float32
	F64  float64
}

// ConstI32 returns an i32 immediate.
func ConstI32(v int32) Value { return Value{Type: I32, I32: v} }

// ConstI64 returns an i64 immediate.
func ConstI64(v int64) Value { return Value{Type: I64, I64: v} }

// ConstF32 returns an f32 immediate.
func ConstF32(v float32) Value { return Value{Type: F32, F32: v} }

// ConstF64 returns an f64 immediate.
func ConstF64(v float64) Value { return Value{Type: F64, F64: v} }

// String renders the value with its type, e.g. "i32 42".
func (v Value) String() string {
	switch v.Type {
	case I32:
		return "i32 " + strconv.FormatInt(int64(v.I32), 10)
	case I64:
		return "i64 " + strconv.FormatInt(v.I64, 10)
	case F32:
		return "f32 " + strconv.FormatFloat(float64(v.F32), 'g', -1, 32)
	case F64:
		return "f64 " + strconv.FormatFloat(v.F64, 'g', -1, 64)
	default:
		return v.Type.String()
	}
}

// MemArg is the immediate of a load or store. Align is the base-two
// logarithm of the alignment, exactly as in the binary format.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// Block pushes a new label and executes a nested sequence.
type Block struct {
	Seq InstrSeqID
}

// Loop pushes a loop label. Branches that target Seq jump back to the
// start of the sequence.
type Loop struct {
	Seq InstrSeqID
}

// IfElse pops an i32 condition and executes one of two sequences. Both
// sequences are always present; an if without a written else has an empty
// alternative with the same type.
type IfElse struct {
	Consequent  InstrSeqID
	Alternative InstrSeqID
}

// Br jumps unconditionally to the end of Target, or to its start when
// Target is a loop sequence.
type Br struct {
	Target InstrSeqID
}

// BrIf pops an i32 condition and branches to Target when it is non-zero.
type BrIf struct {
	Target InstrSeqID
}

// BrTable pops an i32 index and branches to Targets[index], or to Default
// when the index is out of range.
type BrTable struct {
	Targets []InstrSeqID
	Default InstrSeqID
}

// Return jumps to the end of the function.
type Return struct{}

// Unreachable traps immediately.
type Unreachable struct{}

// Nop does nothing.
type Nop struct{}

// Call invokes a function.
type Call struct {
	Func FunctionID
}

// CallIndirect pops an i32 table index and invokes the function found in
// Table, trapping unless its signature equals Type.
type CallIndirect struct {
	Type  TypeID
	Table TableID
}

// Drop pops and discards one operand.
type Drop struct{}

// Select pops an i32 condition and two operands, pushing the first when
// the condition is non-zero. Type is nil for the classic form; the typed
// form carries the operand type explicitly.
type Select struct {
	Type *ValType
}

// Const pushes an immediate constant.
type Const struct {
	Value Value
}

// Unop applies a one-operand operator.
type Unop struct {
	Op UnaryOp
}

// Binop applies a two-operand operator.
type Binop struct {
	Op BinaryOp
}

// LocalGet pushes the value of a local.
type LocalGet struct {
	Local LocalID
}

// LocalSet pops a value into a local.
type LocalSet struct {
	Local LocalID
}

// LocalTee stores the top of the stack into a local, leaving it pushed.
type LocalTee struct {
	Local LocalID
}

// GlobalGet pushes the value of a global.
type GlobalGet struct {
	Global GlobalID
}

// GlobalSet pops a value into a global.
type GlobalSet struct {
	Global GlobalID
}

// Load reads from linear memory.
type Load struct {
	Memory MemoryID
	Kind   LoadKind
	Arg    MemArg
}

// Store writes to linear memory.
type Store struct {
	Memory MemoryID
	Kind   StoreKind
	Arg    MemArg
}

// MemorySize pushes the current size of a memory in pages.
type MemorySize struct {
	Memory MemoryID
}

// MemoryGrow pops a page delta and grows a memory, pushing the previous
// size or -1 on failure.
type MemoryGrow struct {
	Memory MemoryID
}

// MemoryInit copies a range of a passive data segment into memory.
type MemoryInit struct {
	Memory MemoryID
	Data   DataID
}

// DataDrop discards a passive data segment.
type DataDrop struct {
	Data DataID
}

// MemoryCopy copies a memory range, possibly between two memories.
type MemoryCopy struct {
	Dst MemoryID
	Src MemoryID
}

// MemoryFill fills a memory range with a byte value.
type MemoryFill struct {
	Memory MemoryID
}

// RefNull pushes a null reference of the given reference type.
type RefNull struct {
	Type ValType
}

// RefIsNull pops a reference and pushes 1 if it is null.
type RefIsNull struct{}

// RefFunc pushes a reference to a function.
type RefFunc struct {
	Func FunctionID
}

func (Block) isInstr()        {}
func (Loop) isInstr()         {}
func (IfElse) isInstr()       {}
func (Br) isInstr()           {}
func (BrIf) isInstr()         {}
func (BrTable) isInstr()      {}
func (Return) isInstr()       {}
func (Unreachable) isInstr()  {}
func (Nop) isInstr()          {}
func (Call) isInstr()         {}
func (CallIndirect) isInstr() {}
func (Drop) isInstr()         {}
func (Select) isInstr()       {}
func (Const) isInstr()        {}
func (Unop) isInstr()         {}
func (Binop) isInstr()        {}
func (LocalGet) isInstr()     {}
func (LocalSet) isInstr()     {}
func (LocalTee) isInstr()     {}
func (GlobalGet) isInstr()    {}
func (GlobalSet) isInstr()    {}
func (Load) isInstr()         {}
func (Store) isInstr()        {}
func (MemorySize) isInstr()   {}
func (MemoryGrow) isInstr()   {}
func (MemoryInit) isInstr()   {}
func (DataDrop) isInstr()     {}
func (MemoryCopy) isInstr()   {}
func (MemoryFill) isInstr()   {}
func (RefNull) isInstr()      {}
func (RefIsNull) isInstr()    {}
func (RefFunc) isInstr()      {}

func (i Block) String() string  { return fmt.Sprintf("block seq[%d]", i.Seq) }
func (i Loop) String() string   { return fmt.Sprintf("loop seq[%d]", i.Seq) }
func (i IfElse) String() string { return fmt.Sprintf("if seq[%d] else seq[%d]", i.Consequent, i.Alternative) }
func (i Br) String() string     { return fmt.Sprintf("br seq[%d]", i.Target) }
func (i BrIf) String() string   { return fmt.Sprintf("br_if seq[%d]", i.Target) }

func (i BrTable) String() string {
	s := "br_table"
	for _, t := range i.Targets {
		s += fmt.Sprintf(" seq[%d]", t)
	}
	return s + fmt.Sprintf(" default seq[%d]", i.Default)
}

func (Return) String() string      { return "return" }
func (Unreachable) String() string { return "unreachable" }
func (Nop) String() string         { return "nop" }

func (i Call) String() string { return fmt.Sprintf("call func[%d]", i.Func) }

func (i CallIndirect) String() string {
	return fmt.Sprintf("call_indirect type[%d] table[%d]", i.Type, i.Table)
}

func (Drop) String() string { return "drop" }

func (i Select) String() string {
	if i.Type != nil {
		return "select " + i.Type.String()
	}
	return "select"
}

func (i Const) String() string {
	switch i.Value.Type {
	case I32:
		return "i32.const " + strconv.FormatInt(int64(i.Value.I32), 10)
	case I64:
		return "i64.const " + strconv.FormatInt(i.Value.I64, 10)
	case F32:
		return "f32.const " + strconv.FormatFloat(float64(i.Value.F32), 'g', -1, 32)
	case F64:
		return "f64.const " + strconv.FormatFloat(i.Value.F64, 'g', -1, 64)
	}
	return "const " + i.Value.String()
}

func (i Unop) String() string  { return i.Op.String() }
func (i Binop) String() string { return i.Op.String() }

func (i LocalGet) String() string  { return fmt.Sprintf("local.get %d", i.Local) }
func (i LocalSet) String() string  { return fmt.Sprintf("local.set %d", i.Local) }
func (i LocalTee) String() string  { return fmt.Sprintf("local.tee %d", i.Local) }
func (i GlobalGet) String() string { return fmt.Sprintf("global.get %d", i.Global) }
func (i GlobalSet) String() string { return fmt.Sprintf("global.set %d", i.Global) }

func (i Load) String() string {
	return fmt.Sprintf("%s offset=%d align=%d", i.Kind, i.Arg.Offset, uint32(1)<<i.Arg.Align)
}

func (i Store) String() string {
	return fmt.Sprintf("%s offset=%d align=%d", i.Kind, i.Arg.Offset, uint32(1)<<i.Arg.Align)
}

func (i MemorySize) String() string { return fmt.Sprintf("memory.size %d", i.Memory) }
func (i MemoryGrow) String() string { return fmt.Sprintf("memory.grow %d", i.Memory) }
func (i MemoryInit) String() string { return fmt.Sprintf("memory.init data[%d]", i.Data) }
func (i DataDrop) String() string   { return fmt.Sprintf("data.drop data[%d]", i.Data) }
func (i MemoryCopy) String() string { return "memory.copy" }
func (i MemoryFill) String() string { return "memory.fill" }

func (i RefNull) String() string { return "ref.null " + i.Type.String() }
func (RefIsNull) String() string { return "ref.is_null" }
func (i RefFunc) String() string { return fmt.Sprintf("ref.func func[%d]", i.Func) }
