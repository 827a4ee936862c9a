package ir

import (
	"fmt"

	"github.com/wippyai/wasm-ir/errors"
)

// anyVal is the polymorphic stack slot produced after an unconditional
// transfer of control. It satisfies any expected type.
const anyVal ValType = 0

type frameKind uint8

const (
	frameEntry frameKind = iota
	frameBlock
	frameLoop
	frameIf
	frameElse
)

// ctrlFrame is one open sequence on the builder's control stack.
type ctrlFrame struct {
	kind frameKind

	// seq is the sequence instructions are currently appended to.
	seq InstrSeqID

	// otherSeq holds the consequent while an else arm is open.
	otherSeq InstrSeqID

	// start and end are the sequence's parameter and result types.
	start []ValType
	end   []ValType

	// height is the operand stack depth outside this frame.
	height int

	// unreachable is set after an unconditional branch; stack checks
	// below height become polymorphic until the frame closes.
	unreachable bool
}

// labelTypes returns the types a branch to this frame carries: the
// parameter types for a loop, the result types otherwise.
func (f *ctrlFrame) labelTypes() []ValType {
	if f.kind == frameLoop {
		return f.start
	}
	return f.end
}

// FunctionBuilder assembles one function body as a tree of instruction
// sequences, checking operand types as instructions are appended. Branch
// instructions name their target sequence by ID; the Label method converts
// a binary format relative depth into that ID.
//
// The builder is fail-fast: the first error poisons it and every later
// call returns the same error.
type FunctionBuilder struct {
	module *Module
	ty     TypeID
	fn     *LocalFunction

	vals  []ValType
	ctrls []ctrlFrame

	finished bool
	err      error
}

// NewFunctionBuilder starts a function with the given signature, interning
// the signature in the module's type arena. Parameters are allocated as
// the first locals, in order.
func NewFunctionBuilder(m *Module, params, results []ValType) *FunctionBuilder {
	return newBuilder(m, m.AddFuncType(params, results), params, results)
}

// NewTypedFunctionBuilder starts a function with an already interned
// signature.
func NewTypedFunctionBuilder(m *Module, ty TypeID) (*FunctionBuilder, error) {
	sig, err := m.Types.Get(ty)
	if err != nil {
		return nil, err
	}
	return newBuilder(m, ty, sig.Params, sig.Results), nil
}

func newBuilder(m *Module, ty TypeID, params, results []ValType) *FunctionBuilder {
	fn := &LocalFunction{
		Locals: NewArena[LocalID, Local]("local"),
		Seqs:   NewArena[InstrSeqID, InstrSeq]("seq"),
	}
	for _, p := range params {
		fn.Args = append(fn.Args, fn.Locals.Alloc(Local{Type: p}))
	}
	entry := fn.Seqs.Alloc(InstrSeq{Ty: FuncSeqType(ty)})
	fn.Entry = entry

	b := &FunctionBuilder{module: m, ty: ty, fn: fn}
	b.ctrls = append(b.ctrls, ctrlFrame{
		kind: frameEntry,
		seq:  entry,
		end:  append([]ValType(nil), results...),
	})
	return b
}

// AddLocal declares a local variable and returns its ID.
func (b *FunctionBuilder) AddLocal(ty ValType) LocalID {
	return b.fn.Locals.Alloc(Local{Type: ty})
}

// Args returns the locals bound to the function parameters, in order.
func (b *FunctionBuilder) Args() []LocalID {
	return b.fn.Args
}

// NumLocals returns the number of locals declared so far, parameters
// included.
func (b *FunctionBuilder) NumLocals() int {
	return b.fn.Locals.Len()
}

// Err returns the first error the builder hit, or nil.
func (b *FunctionBuilder) Err() error {
	return b.err
}

// Body returns a cursor for fluent authoring.
func (b *FunctionBuilder) Body() *Cursor {
	return &Cursor{b: b}
}

// Label resolves a binary format branch depth into the sequence it
// targets. Depth 0 is the innermost open sequence; the outermost depth is
// the function entry.
func (b *FunctionBuilder) Label(depth uint32) (InstrSeqID, error) {
	if b.err != nil {
		return 0, b.err
	}
	if uint64(depth) >= uint64(len(b.ctrls)) {
		return 0, errors.BadTarget(b.path(), fmt.Sprintf("branch depth %d exceeds %d open sequences", depth, len(b.ctrls)))
	}
	return b.ctrls[len(b.ctrls)-1-int(depth)].seq, nil
}

// StartBlock opens a block sequence. Parameters are popped from the
// operand stack and become the new sequence's inputs. The matching End
// appends the Block instruction to the enclosing sequence.
func (b *FunctionBuilder) StartBlock(ty SeqType) (InstrSeqID, error) {
	return b.startFrame(frameBlock, ty)
}

// StartLoop opens a loop sequence. Branches targeting it jump back to its
// start and carry its parameter types.
func (b *FunctionBuilder) StartLoop(ty SeqType) (InstrSeqID, error) {
	return b.startFrame(frameLoop, ty)
}

// StartIf pops an i32 condition and opens the consequent sequence. Use
// Else to switch arms; End without Else supplies an empty alternative,
// which is only well-typed when the block's parameters equal its results.
func (b *FunctionBuilder) StartIf(ty SeqType) (InstrSeqID, error) {
	if b.err != nil {
		return 0, b.err
	}
	if err := b.popExpect(I32); err != nil {
		return 0, b.fail(err)
	}
	return b.startFrame(frameIf, ty)
}

func (b *FunctionBuilder) startFrame(kind frameKind, ty SeqType) (InstrSeqID, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.finished {
		return 0, b.fail(errors.BadState(errors.PhaseBuild, "builder already finished"))
	}
	params, err := ty.Params(b.module)
	if err != nil {
		return 0, b.fail(err)
	}
	results, err := ty.Results(b.module)
	if err != nil {
		return 0, b.fail(err)
	}
	if err := b.popVals(params); err != nil {
		return 0, b.fail(err)
	}
	seq := b.fn.Seqs.Alloc(InstrSeq{Ty: ty})
	b.ctrls = append(b.ctrls, ctrlFrame{
		kind:   kind,
		seq:    seq,
		start:  params,
		end:    results,
		height: len(b.vals),
	})
	b.pushVals(params)
	return seq, nil
}

// Else closes the consequent arm of the innermost if and opens the
// alternative arm.
func (b *FunctionBuilder) Else() error {
	if b.err != nil {
		return b.err
	}
	top, err := b.topFrame()
	if err != nil {
		return b.fail(err)
	}
	if top.kind != frameIf {
		return b.fail(errors.BadState(errors.PhaseBuild, "else outside an if sequence"))
	}
	frame, err := b.popCtrl()
	if err != nil {
		return b.fail(err)
	}
	seq, err := b.fn.Seqs.Get(frame.seq)
	if err != nil {
		return b.fail(err)
	}
	ty := seq.Ty
	alt := b.fn.Seqs.Alloc(InstrSeq{Ty: ty})
	b.ctrls = append(b.ctrls, ctrlFrame{
		kind:     frameElse,
		seq:      alt,
		otherSeq: frame.seq,
		start:    frame.start,
		end:      frame.end,
		height:   len(b.vals),
	})
	b.pushVals(frame.start)
	return nil
}

// End closes the innermost open sequence. For a block, loop or if it
// appends the corresponding control instruction to the enclosing sequence
// and pushes the sequence's results; for the entry sequence it completes
// the body.
func (b *FunctionBuilder) End() error {
	if b.err != nil {
		return b.err
	}
	top, err := b.topFrame()
	if err != nil {
		return b.fail(err)
	}

	var closed Instr
	switch top.kind {
	case frameEntry:
		if _, err := b.popCtrl(); err != nil {
			return b.fail(err)
		}
		b.finished = true
		return nil

	case frameBlock:
		frame, err := b.popCtrl()
		if err != nil {
			return b.fail(err)
		}
		closed = Block{Seq: frame.seq}
		b.pushVals(frame.end)

	case frameLoop:
		frame, err := b.popCtrl()
		if err != nil {
			return b.fail(err)
		}
		closed = Loop{Seq: frame.seq}
		b.pushVals(frame.end)

	case frameIf:
		// No else arm was written; the implicit empty alternative can
		// only satisfy a type whose parameters equal its results.
		if !valTypesEqual(top.start, top.end) {
			return b.fail(errors.New(errors.PhaseBuild, errors.KindTypeMismatch).
				Path(b.path()...).
				Detail("if without else requires matching parameter and result types, have %s -> %s",
					typesString(top.start), typesString(top.end)).
				Build())
		}
		frame, err := b.popCtrl()
		if err != nil {
			return b.fail(err)
		}
		seq, err := b.fn.Seqs.Get(frame.seq)
		if err != nil {
			return b.fail(err)
		}
		ty := seq.Ty
		alt := b.fn.Seqs.Alloc(InstrSeq{Ty: ty})
		closed = IfElse{Consequent: frame.seq, Alternative: alt}
		b.pushVals(frame.end)

	case frameElse:
		frame, err := b.popCtrl()
		if err != nil {
			return b.fail(err)
		}
		closed = IfElse{Consequent: frame.otherSeq, Alternative: frame.seq}
		b.pushVals(frame.end)
	}

	return b.appendRaw(closed)
}

// FinishBody completes a body whose entry sequence was explicitly closed
// with End, returning the assembled LocalFunction. Used when replaying a
// flat instruction stream that carries its own final end.
func (b *FunctionBuilder) FinishBody() (*LocalFunction, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.finished {
		return nil, b.fail(errors.BadState(errors.PhaseBuild, fmt.Sprintf("%d sequences still open", len(b.ctrls))))
	}
	return b.fn, nil
}

// Finish closes the entry sequence and registers the function in the
// module. Nested sequences must already be closed.
func (b *FunctionBuilder) Finish() (FunctionID, error) {
	if b.err != nil {
		return 0, b.err
	}
	if !b.finished {
		if len(b.ctrls) != 1 {
			return 0, b.fail(errors.BadState(errors.PhaseBuild, fmt.Sprintf("%d sequences still open", len(b.ctrls)-1)))
		}
		if err := b.End(); err != nil {
			return 0, err
		}
	}
	return b.module.Funcs.Alloc(Function{Type: b.ty, Local: b.fn}), nil
}

// Append type-checks one instruction and adds it to the innermost open
// sequence. Control instructions appended directly (Block, Loop, IfElse
// over already built sequences) apply their sequence's parameter and
// result types; branches must target an open sequence.
func (b *FunctionBuilder) Append(instr Instr) error {
	if b.err != nil {
		return b.err
	}
	if err := b.apply(instr); err != nil {
		return b.fail(err)
	}
	return b.appendRaw(instr)
}

// appendRaw adds an instruction without applying stack effects.
func (b *FunctionBuilder) appendRaw(instr Instr) error {
	top, err := b.topFrame()
	if err != nil {
		return b.fail(err)
	}
	seq, err := b.fn.Seqs.Get(top.seq)
	if err != nil {
		return b.fail(err)
	}
	seq.Instrs = append(seq.Instrs, instr)
	return nil
}

func (b *FunctionBuilder) apply(instr Instr) error {
	switch i := instr.(type) {
	case Block:
		return b.applySeqCall(i.Seq)
	case Loop:
		return b.applySeqCall(i.Seq)
	case IfElse:
		if err := b.popExpect(I32); err != nil {
			return err
		}
		return b.applySeqCall(i.Consequent)

	case Br:
		frame, err := b.openFrame(i.Target)
		if err != nil {
			return err
		}
		if err := b.popVals(frame.labelTypes()); err != nil {
			return err
		}
		b.markUnreachable()
		return nil

	case BrIf:
		if err := b.popExpect(I32); err != nil {
			return err
		}
		frame, err := b.openFrame(i.Target)
		if err != nil {
			return err
		}
		types := frame.labelTypes()
		if err := b.popVals(types); err != nil {
			return err
		}
		b.pushVals(types)
		return nil

	case BrTable:
		if err := b.popExpect(I32); err != nil {
			return err
		}
		def, err := b.openFrame(i.Default)
		if err != nil {
			return err
		}
		types := def.labelTypes()
		for _, target := range i.Targets {
			frame, err := b.openFrame(target)
			if err != nil {
				return err
			}
			if !valTypesEqual(frame.labelTypes(), types) {
				return errors.New(errors.PhaseBuild, errors.KindTypeMismatch).
					Path(b.path()...).
					Detail("br_table labels disagree: want %s, got %s",
						typesString(types), typesString(frame.labelTypes())).
					Build()
			}
		}
		if err := b.popVals(types); err != nil {
			return err
		}
		b.markUnreachable()
		return nil

	case Return:
		if err := b.popVals(b.ctrls[0].end); err != nil {
			return err
		}
		b.markUnreachable()
		return nil

	case Unreachable:
		b.markUnreachable()
		return nil

	case Nop:
		return nil

	case Call:
		fn, err := b.module.Funcs.Get(i.Func)
		if err != nil {
			return err
		}
		sig, err := b.module.Types.Get(fn.Type)
		if err != nil {
			return err
		}
		if err := b.popVals(sig.Params); err != nil {
			return err
		}
		b.pushVals(sig.Results)
		return nil

	case CallIndirect:
		if _, err := b.module.Tables.Get(i.Table); err != nil {
			return err
		}
		sig, err := b.module.Types.Get(i.Type)
		if err != nil {
			return err
		}
		if err := b.popExpect(I32); err != nil {
			return err
		}
		if err := b.popVals(sig.Params); err != nil {
			return err
		}
		b.pushVals(sig.Results)
		return nil

	case Drop:
		_, err := b.popVal()
		return err

	case Select:
		return b.applySelect(i)

	case Const:
		b.pushVal(i.Value.Type)
		return nil

	case Unop:
		in, out := i.Op.Signature()
		if err := b.popExpect(in); err != nil {
			return err
		}
		b.pushVal(out)
		return nil

	case Binop:
		operand, result := i.Op.Signature()
		if err := b.popExpect(operand); err != nil {
			return err
		}
		if err := b.popExpect(operand); err != nil {
			return err
		}
		b.pushVal(result)
		return nil

	case LocalGet:
		l, err := b.fn.Locals.Get(i.Local)
		if err != nil {
			return err
		}
		b.pushVal(l.Type)
		return nil

	case LocalSet:
		l, err := b.fn.Locals.Get(i.Local)
		if err != nil {
			return err
		}
		return b.popExpect(l.Type)

	case LocalTee:
		l, err := b.fn.Locals.Get(i.Local)
		if err != nil {
			return err
		}
		if err := b.popExpect(l.Type); err != nil {
			return err
		}
		b.pushVal(l.Type)
		return nil

	case GlobalGet:
		g, err := b.module.Globals.Get(i.Global)
		if err != nil {
			return err
		}
		b.pushVal(g.Type)
		return nil

	case GlobalSet:
		g, err := b.module.Globals.Get(i.Global)
		if err != nil {
			return err
		}
		return b.popExpect(g.Type)

	case Load:
		if _, err := b.module.Memories.Get(i.Memory); err != nil {
			return err
		}
		if err := b.popExpect(I32); err != nil {
			return err
		}
		b.pushVal(i.Kind.ValueType())
		return nil

	case Store:
		if _, err := b.module.Memories.Get(i.Memory); err != nil {
			return err
		}
		if err := b.popExpect(i.Kind.ValueType()); err != nil {
			return err
		}
		return b.popExpect(I32)

	case MemorySize:
		if _, err := b.module.Memories.Get(i.Memory); err != nil {
			return err
		}
		b.pushVal(I32)
		return nil

	case MemoryGrow:
		if _, err := b.module.Memories.Get(i.Memory); err != nil {
			return err
		}
		if err := b.popExpect(I32); err != nil {
			return err
		}
		b.pushVal(I32)
		return nil

	case MemoryInit:
		if _, err := b.module.Memories.Get(i.Memory); err != nil {
			return err
		}
		if _, err := b.module.Data.Get(i.Data); err != nil {
			return err
		}
		return b.popI32x3()

	case DataDrop:
		_, err := b.module.Data.Get(i.Data)
		return err

	case MemoryCopy:
		if _, err := b.module.Memories.Get(i.Dst); err != nil {
			return err
		}
		if _, err := b.module.Memories.Get(i.Src); err != nil {
			return err
		}
		return b.popI32x3()

	case MemoryFill:
		if _, err := b.module.Memories.Get(i.Memory); err != nil {
			return err
		}
		return b.popI32x3()

	case RefNull:
		if !i.Type.IsRef() {
			return errors.TypeMismatch(errors.PhaseBuild, b.path(), "reference type", i.Type.String())
		}
		b.pushVal(i.Type)
		return nil

	case RefIsNull:
		got, err := b.popVal()
		if err != nil {
			return err
		}
		if got != anyVal && !got.IsRef() {
			return errors.TypeMismatch(errors.PhaseBuild, b.path(), "reference type", got.String())
		}
		b.pushVal(I32)
		return nil

	case RefFunc:
		if _, err := b.module.Funcs.Get(i.Func); err != nil {
			return err
		}
		b.pushVal(FuncRef)
		return nil
	}

	return errors.BadState(errors.PhaseBuild, fmt.Sprintf("unknown instruction %T", instr))
}

// applySeqCall applies the stack effect of entering and leaving an
// already built sequence.
func (b *FunctionBuilder) applySeqCall(id InstrSeqID) error {
	seq, err := b.fn.Seqs.Get(id)
	if err != nil {
		return err
	}
	params, err := seq.Ty.Params(b.module)
	if err != nil {
		return err
	}
	results, err := seq.Ty.Results(b.module)
	if err != nil {
		return err
	}
	if err := b.popVals(params); err != nil {
		return err
	}
	b.pushVals(results)
	return nil
}

func (b *FunctionBuilder) applySelect(i Select) error {
	if err := b.popExpect(I32); err != nil {
		return err
	}
	if i.Type != nil {
		if err := b.popExpect(*i.Type); err != nil {
			return err
		}
		if err := b.popExpect(*i.Type); err != nil {
			return err
		}
		b.pushVal(*i.Type)
		return nil
	}
	t2, err := b.popVal()
	if err != nil {
		return err
	}
	t1, err := b.popVal()
	if err != nil {
		return err
	}
	if t1 != anyVal && t1.IsRef() || t2 != anyVal && t2.IsRef() {
		return errors.New(errors.PhaseBuild, errors.KindTypeMismatch).
			Path(b.path()...).
			Detail("untyped select cannot choose between references").
			Build()
	}
	if t1 != anyVal && t2 != anyVal && t1 != t2 {
		return errors.TypeMismatch(errors.PhaseBuild, b.path(), t1.String(), t2.String())
	}
	if t1 != anyVal {
		b.pushVal(t1)
	} else {
		b.pushVal(t2)
	}
	return nil
}

// openFrame finds the open frame whose sequence is id. Branches may only
// target sequences that enclose the current position.
func (b *FunctionBuilder) openFrame(id InstrSeqID) (*ctrlFrame, error) {
	for n := len(b.ctrls) - 1; n >= 0; n-- {
		if b.ctrls[n].seq == id {
			return &b.ctrls[n], nil
		}
	}
	return nil, errors.BadTarget(b.path(), fmt.Sprintf("seq[%d] is not an enclosing sequence", id))
}

func (b *FunctionBuilder) topFrame() (*ctrlFrame, error) {
	if len(b.ctrls) == 0 {
		return nil, errors.BadState(errors.PhaseBuild, "no open sequence")
	}
	return &b.ctrls[len(b.ctrls)-1], nil
}

func (b *FunctionBuilder) popCtrl() (ctrlFrame, error) {
	top, err := b.topFrame()
	if err != nil {
		return ctrlFrame{}, err
	}
	frame := *top
	if err := b.popVals(frame.end); err != nil {
		return ctrlFrame{}, err
	}
	if len(b.vals) != frame.height {
		return ctrlFrame{}, errors.TypeMismatch(errors.PhaseBuild, b.path(),
			fmt.Sprintf("%d values", frame.height), fmt.Sprintf("%d values", len(b.vals))).
			WithDetail("sequence leaves extra values on the stack")
	}
	b.ctrls = b.ctrls[:len(b.ctrls)-1]
	return frame, nil
}

func (b *FunctionBuilder) pushVal(t ValType) {
	b.vals = append(b.vals, t)
}

func (b *FunctionBuilder) pushVals(types []ValType) {
	b.vals = append(b.vals, types...)
}

func (b *FunctionBuilder) popVal() (ValType, error) {
	top, err := b.topFrame()
	if err != nil {
		return 0, err
	}
	if len(b.vals) == top.height {
		if top.unreachable {
			return anyVal, nil
		}
		return 0, errors.TypeMismatch(errors.PhaseBuild, b.path(), "a value", "empty stack")
	}
	v := b.vals[len(b.vals)-1]
	b.vals = b.vals[:len(b.vals)-1]
	return v, nil
}

func (b *FunctionBuilder) popExpect(want ValType) error {
	got, err := b.popVal()
	if err != nil {
		return err
	}
	if got != anyVal && got != want {
		return errors.TypeMismatch(errors.PhaseBuild, b.path(), want.String(), got.String())
	}
	return nil
}

// popVals pops the given types, last element first.
func (b *FunctionBuilder) popVals(types []ValType) error {
	for n := len(types) - 1; n >= 0; n-- {
		if err := b.popExpect(types[n]); err != nil {
			return err
		}
	}
	return nil
}

func (b *FunctionBuilder) popI32x3() error {
	for n := 0; n < 3; n++ {
		if err := b.popExpect(I32); err != nil {
			return err
		}
	}
	return nil
}

// markUnreachable truncates the operand stack to the current frame's
// height and makes further pops polymorphic.
func (b *FunctionBuilder) markUnreachable() {
	top := &b.ctrls[len(b.ctrls)-1]
	b.vals = b.vals[:top.height]
	top.unreachable = true
}

func (b *FunctionBuilder) fail(err error) error {
	if b.err == nil {
		b.err = err
	}
	return b.err
}

func (b *FunctionBuilder) path() []string {
	if len(b.ctrls) == 0 {
		return nil
	}
	top := b.ctrls[len(b.ctrls)-1]
	n := 0
	if seq, err := b.fn.Seqs.Get(top.seq); err == nil {
		n = len(seq.Instrs)
	}
	return []string{fmt.Sprintf("seq[%d]", top.seq), fmt.Sprintf("instr[%d]", n)}
}

func valTypesEqual(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for n, t := range a {
		if b[n] != t {
			return false
		}
	}
	return true
}

func typesString(types []ValType) string {
	if len(types) == 0 {
		return "[]"
	}
	s := "["
	for n, t := range types {
		if n > 0 {
			s += " "
		}
		s += t.String()
	}
	return s + "]"
}
