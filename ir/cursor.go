package ir

// Cursor is a fluent authoring front end over FunctionBuilder. Every
// method appends one instruction at the current position; the first error
// latches in the builder and turns the remaining calls into no-ops, so a
// chain can be written without per-call checks and inspected once with
// Err or Finish.
type Cursor struct {
	b *FunctionBuilder
}

// Err returns the builder's latched error, or nil.
func (c *Cursor) Err() error {
	return c.b.Err()
}

// Finish completes the function and registers it in the module.
func (c *Cursor) Finish() (FunctionID, error) {
	return c.b.Finish()
}

// Block opens a block of the given type, runs body against the nested
// sequence, then closes it. The sequence ID is handed to body for use as
// a branch target.
func (c *Cursor) Block(ty SeqType, body func(seq InstrSeqID)) *Cursor {
	seq, err := c.b.StartBlock(ty)
	if err != nil {
		return c
	}
	body(seq)
	c.b.End()
	return c
}

// Loop opens a loop of the given type, runs body, then closes it.
// Branches to the handed-out sequence ID jump back to the loop start.
func (c *Cursor) Loop(ty SeqType, body func(seq InstrSeqID)) *Cursor {
	seq, err := c.b.StartLoop(ty)
	if err != nil {
		return c
	}
	body(seq)
	c.b.End()
	return c
}

// If pops a condition and builds the consequent arm. The implicit empty
// alternative requires the block's parameters to equal its results.
func (c *Cursor) If(ty SeqType, then func(seq InstrSeqID)) *Cursor {
	seq, err := c.b.StartIf(ty)
	if err != nil {
		return c
	}
	then(seq)
	c.b.End()
	return c
}

// IfElse pops a condition and builds both arms.
func (c *Cursor) IfElse(ty SeqType, then, els func(seq InstrSeqID)) *Cursor {
	seq, err := c.b.StartIf(ty)
	if err != nil {
		return c
	}
	then(seq)
	if err := c.b.Else(); err != nil {
		return c
	}
	top, err := c.b.topFrame()
	if err == nil {
		els(top.seq)
	}
	c.b.End()
	return c
}

// Br branches unconditionally to an enclosing sequence.
func (c *Cursor) Br(target InstrSeqID) *Cursor {
	c.b.Append(Br{Target: target})
	return c
}

// BrIf branches to an enclosing sequence when the popped i32 is non-zero.
func (c *Cursor) BrIf(target InstrSeqID) *Cursor {
	c.b.Append(BrIf{Target: target})
	return c
}

// BrTable branches through a jump table of enclosing sequences.
func (c *Cursor) BrTable(targets []InstrSeqID, def InstrSeqID) *Cursor {
	c.b.Append(BrTable{Targets: targets, Default: def})
	return c
}

// Return jumps to the function end.
func (c *Cursor) Return() *Cursor {
	c.b.Append(Return{})
	return c
}

// Unreachable traps.
func (c *Cursor) Unreachable() *Cursor {
	c.b.Append(Unreachable{})
	return c
}

// Nop appends a no-op.
func (c *Cursor) Nop() *Cursor {
	c.b.Append(Nop{})
	return c
}

// Call invokes a function.
func (c *Cursor) Call(f FunctionID) *Cursor {
	c.b.Append(Call{Func: f})
	return c
}

// CallIndirect invokes through a table.
func (c *Cursor) CallIndirect(ty TypeID, table TableID) *Cursor {
	c.b.Append(CallIndirect{Type: ty, Table: table})
	return c
}

// Drop discards the top of the stack.
func (c *Cursor) Drop() *Cursor {
	c.b.Append(Drop{})
	return c
}

// Select picks one of two operands by a popped condition.
func (c *Cursor) Select() *Cursor {
	c.b.Append(Select{})
	return c
}

// I32Const pushes an i32 immediate.
func (c *Cursor) I32Const(v int32) *Cursor {
	c.b.Append(Const{Value: ConstI32(v)})
	return c
}

// I64Const pushes an i64 immediate.
func (c *Cursor) I64Const(v int64) *Cursor {
	c.b.Append(Const{Value: ConstI64(v)})
	return c
}

// F32Const pushes an f32 immediate.
func (c *Cursor) F32Const(v float32) *Cursor {
	c.b.Append(Const{Value: ConstF32(v)})
	return c
}

// F64Const pushes an f64 immediate.
func (c *Cursor) F64Const(v float64) *Cursor {
	c.b.Append(Const{Value: ConstF64(v)})
	return c
}

// Unop applies a one-operand operator.
func (c *Cursor) Unop(op UnaryOp) *Cursor {
	c.b.Append(Unop{Op: op})
	return c
}

// Binop applies a two-operand operator.
func (c *Cursor) Binop(op BinaryOp) *Cursor {
	c.b.Append(Binop{Op: op})
	return c
}

// LocalGet pushes a local.
func (c *Cursor) LocalGet(l LocalID) *Cursor {
	c.b.Append(LocalGet{Local: l})
	return c
}

// LocalSet pops into a local.
func (c *Cursor) LocalSet(l LocalID) *Cursor {
	c.b.Append(LocalSet{Local: l})
	return c
}

// LocalTee stores the stack top into a local without popping it.
func (c *Cursor) LocalTee(l LocalID) *Cursor {
	c.b.Append(LocalTee{Local: l})
	return c
}

// GlobalGet pushes a global.
func (c *Cursor) GlobalGet(g GlobalID) *Cursor {
	c.b.Append(GlobalGet{Global: g})
	return c
}

// GlobalSet pops into a global.
func (c *Cursor) GlobalSet(g GlobalID) *Cursor {
	c.b.Append(GlobalSet{Global: g})
	return c
}

// Load reads from memory.
func (c *Cursor) Load(mem MemoryID, kind LoadKind, arg MemArg) *Cursor {
	c.b.Append(Load{Memory: mem, Kind: kind, Arg: arg})
	return c
}

// Store writes to memory.
func (c *Cursor) Store(mem MemoryID, kind StoreKind, arg MemArg) *Cursor {
	c.b.Append(Store{Memory: mem, Kind: kind, Arg: arg})
	return c
}

// MemorySize pushes a memory's size in pages.
func (c *Cursor) MemorySize(mem MemoryID) *Cursor {
	c.b.Append(MemorySize{Memory: mem})
	return c
}

// MemoryGrow grows a memory by a popped page count.
func (c *Cursor) MemoryGrow(mem MemoryID) *Cursor {
	c.b.Append(MemoryGrow{Memory: mem})
	return c
}

// RefNull pushes a null reference.
func (c *Cursor) RefNull(ty ValType) *Cursor {
	c.b.Append(RefNull{Type: ty})
	return c
}

// RefIsNull tests the popped reference for null.
func (c *Cursor) RefIsNull() *Cursor {
	c.b.Append(RefIsNull{})
	return c
}

// RefFunc pushes a reference to a function.
func (c *Cursor) RefFunc(f FunctionID) *Cursor {
	c.b.Append(RefFunc{Func: f})
	return c
}
