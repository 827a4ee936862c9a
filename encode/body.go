package encode

import (
	stderrors "errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/internal/binary"
	"github.com/wippyai/wasm-ir/ir"
)

// funcBodies serializes every local function body, in wire order. Each
// body is written into its own buffer from shared immutable inputs, so
// the parallel mode produces the same bytes as the serial one; only the
// scheduling differs.
func (e *encoder) funcBodies() ([][]byte, error) {
	ids := e.ids.localFuncs
	bodies := make([][]byte, len(ids))

	if !e.cfg.ParallelEncoding || len(ids) < 2 {
		for n, id := range ids {
			b, err := encodeFuncBody(e.m, e.ids, id)
			if err != nil {
				return nil, e.bodyPath(err, id)
			}
			bodies[n] = b
		}
		return bodies, nil
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for n, id := range ids {
		n, id := n, id
		g.Go(func() error {
			b, err := encodeFuncBody(e.m, e.ids, id)
			if err != nil {
				return e.bodyPath(err, id)
			}
			bodies[n] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bodies, nil
}

func (e *encoder) bodyPath(err error, id ir.FunctionID) error {
	var se *errors.Error
	if stderrors.As(err, &se) && len(se.Path) == 0 {
		se.Path = []string{fmt.Sprintf("func[%d]", e.ids.funcs[id])}
	}
	return err
}

// funcEncoder serializes one function body: the local declarations
// followed by the flattened instruction tree.
type funcEncoder struct {
	m   *ir.Module
	ids *wireIndex
	f   *ir.LocalFunction

	w      *binary.Writer
	locals map[ir.LocalID]uint32

	// depth maps each open sequence to its nesting level while the tree
	// is replayed. A branch target is emitted as the distance from the
	// current level back to the target's level, which reverses the
	// resolution decode performed.
	depth map[ir.InstrSeqID]int
	level int
}

func encodeFuncBody(m *ir.Module, ids *wireIndex, id ir.FunctionID) ([]byte, error) {
	fn, err := m.Funcs.Get(id)
	if err != nil {
		return nil, errors.DanglingID("function", uint32(id))
	}
	if fn.Local == nil {
		return nil, errors.BadState(errors.PhaseEncode, "code body requested for an imported function")
	}

	e := &funcEncoder{
		m:      m,
		ids:    ids,
		f:      fn.Local,
		w:      binary.NewWriter(),
		locals: localIndexes(fn.Local),
		depth:  make(map[ir.InstrSeqID]int),
	}
	e.localDecls()

	entry, err := fn.Local.Seqs.Get(fn.Local.Entry)
	if err != nil {
		return nil, errors.DanglingID("sequence", uint32(fn.Local.Entry))
	}
	if err := e.seq(fn.Local.Entry, entry); err != nil {
		return nil, err
	}
	e.w.Byte(binary.OpEnd)
	return e.w.Bytes(), nil
}

// localOrder returns the function's locals in wire index order:
// parameters first, then the declared locals in allocation order.
func localOrder(f *ir.LocalFunction) []ir.LocalID {
	order := make([]ir.LocalID, 0, f.Locals.Len())
	arg := make(map[ir.LocalID]bool, len(f.Args))
	for _, a := range f.Args {
		arg[a] = true
		order = append(order, a)
	}
	f.Locals.All(func(id ir.LocalID, _ *ir.Local) bool {
		if !arg[id] {
			order = append(order, id)
		}
		return true
	})
	return order
}

func localIndexes(f *ir.LocalFunction) map[ir.LocalID]uint32 {
	order := localOrder(f)
	idx := make(map[ir.LocalID]uint32, len(order))
	for n, id := range order {
		idx[id] = uint32(n)
	}
	return idx
}

// localDecls writes the run-length compressed local declarations.
// Parameters are part of the signature and never appear here.
func (e *funcEncoder) localDecls() {
	arg := make(map[ir.LocalID]bool, len(e.f.Args))
	for _, a := range e.f.Args {
		arg[a] = true
	}

	type run struct {
		count uint32
		ty    ir.ValType
	}
	var runs []run
	e.f.Locals.All(func(id ir.LocalID, l *ir.Local) bool {
		if arg[id] {
			return true
		}
		if n := len(runs); n > 0 && runs[n-1].ty == l.Type {
			runs[n-1].count++
		} else {
			runs = append(runs, run{count: 1, ty: l.Type})
		}
		return true
	})

	e.w.WriteU32(uint32(len(runs)))
	for _, r := range runs {
		e.w.WriteU32(r.count)
		e.w.Byte(byte(r.ty))
	}
}

func (e *funcEncoder) seq(id ir.InstrSeqID, s *ir.InstrSeq) error {
	if _, open := e.depth[id]; open {
		return errors.BadState(errors.PhaseEncode, fmt.Sprintf("seq[%d] is its own ancestor", id))
	}
	e.depth[id] = e.level
	e.level++
	for _, in := range s.Instrs {
		if err := e.instr(in); err != nil {
			return err
		}
	}
	e.level--
	delete(e.depth, id)
	return nil
}

func (e *funcEncoder) getSeq(id ir.InstrSeqID) (*ir.InstrSeq, error) {
	s, err := e.f.Seqs.Get(id)
	if err != nil {
		return nil, errors.DanglingID("sequence", uint32(id))
	}
	return s, nil
}

// branchDepth turns a target sequence reference back into the relative
// depth the wire format uses: 0 is the innermost open sequence.
func (e *funcEncoder) branchDepth(target ir.InstrSeqID) (uint32, error) {
	lvl, ok := e.depth[target]
	if !ok {
		return 0, errors.New(errors.PhaseEncode, errors.KindBadTarget).
			Detail("branch target seq[%d] is not on the control stack", target).
			Build()
	}
	return uint32(e.level - 1 - lvl), nil
}

func (e *funcEncoder) blockType(st ir.SeqType) error {
	switch st.Kind {
	case ir.SeqSimple:
		if st.Result == nil {
			e.w.WriteS33(binary.BlockTypeVoid)
		} else {
			e.w.Byte(byte(*st.Result))
		}
		return nil

	case ir.SeqFunc:
		ty, err := e.m.Types.Get(st.Func)
		if err != nil {
			return errors.DanglingID("type", uint32(st.Func))
		}
		switch {
		case len(ty.Params) == 0 && len(ty.Results) == 0:
			e.w.WriteS33(binary.BlockTypeVoid)
		case len(ty.Params) == 0 && len(ty.Results) == 1:
			e.w.Byte(byte(ty.Results[0]))
		default:
			idx, err := e.ids.typeIdx(st.Func)
			if err != nil {
				return err
			}
			e.w.WriteS33(int64(idx))
		}
		return nil
	}
	return errors.BadState(errors.PhaseEncode, fmt.Sprintf("unknown sequence type kind %d", st.Kind))
}

func (e *funcEncoder) instr(in ir.Instr) error {
	switch i := in.(type) {
	case ir.Block:
		s, err := e.getSeq(i.Seq)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpBlock)
		if err := e.blockType(s.Ty); err != nil {
			return err
		}
		if err := e.seq(i.Seq, s); err != nil {
			return err
		}
		e.w.Byte(binary.OpEnd)

	case ir.Loop:
		s, err := e.getSeq(i.Seq)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpLoop)
		if err := e.blockType(s.Ty); err != nil {
			return err
		}
		if err := e.seq(i.Seq, s); err != nil {
			return err
		}
		e.w.Byte(binary.OpEnd)

	case ir.IfElse:
		if err := e.ifElse(i); err != nil {
			return err
		}

	case ir.Br:
		depth, err := e.branchDepth(i.Target)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpBr)
		e.w.WriteU32(depth)

	case ir.BrIf:
		depth, err := e.branchDepth(i.Target)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpBrIf)
		e.w.WriteU32(depth)

	case ir.BrTable:
		e.w.Byte(binary.OpBrTable)
		e.w.WriteU32(uint32(len(i.Targets)))
		for _, t := range i.Targets {
			depth, err := e.branchDepth(t)
			if err != nil {
				return err
			}
			e.w.WriteU32(depth)
		}
		depth, err := e.branchDepth(i.Default)
		if err != nil {
			return err
		}
		e.w.WriteU32(depth)

	case ir.Return:
		e.w.Byte(binary.OpReturn)
	case ir.Unreachable:
		e.w.Byte(binary.OpUnreachable)
	case ir.Nop:
		e.w.Byte(binary.OpNop)

	case ir.Call:
		idx, err := e.ids.funcIdx(i.Func)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpCall)
		e.w.WriteU32(idx)

	case ir.CallIndirect:
		tyIdx, err := e.ids.typeIdx(i.Type)
		if err != nil {
			return err
		}
		tblIdx, err := e.ids.tableIdx(i.Table)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpCallIndirect)
		e.w.WriteU32(tyIdx)
		e.w.WriteU32(tblIdx)

	case ir.Drop:
		e.w.Byte(binary.OpDrop)

	case ir.Select:
		if i.Type == nil {
			e.w.Byte(binary.OpSelect)
		} else {
			e.w.Byte(binary.OpSelectType)
			e.w.WriteU32(1)
			e.w.Byte(byte(*i.Type))
		}

	case ir.Const:
		switch i.Value.Type {
		case ir.I32:
			e.w.Byte(binary.OpI32Const)
			e.w.WriteS32(i.Value.I32)
		case ir.I64:
			e.w.Byte(binary.OpI64Const)
			e.w.WriteS64(i.Value.I64)
		case ir.F32:
			e.w.Byte(binary.OpF32Const)
			e.w.WriteF32(i.Value.F32)
		case ir.F64:
			e.w.Byte(binary.OpF64Const)
			e.w.WriteF64(i.Value.F64)
		default:
			return errors.BadState(errors.PhaseEncode, fmt.Sprintf("constant of type %s", i.Value.Type))
		}

	case ir.Unop:
		code, prefixed := i.Op.Opcode()
		if prefixed {
			e.w.Byte(binary.OpPrefixMisc)
			e.w.WriteU32(code)
		} else {
			e.w.Byte(byte(code))
		}

	case ir.Binop:
		code, _ := i.Op.Opcode()
		e.w.Byte(byte(code))

	case ir.LocalGet:
		if err := e.localRef(binary.OpLocalGet, i.Local); err != nil {
			return err
		}
	case ir.LocalSet:
		if err := e.localRef(binary.OpLocalSet, i.Local); err != nil {
			return err
		}
	case ir.LocalTee:
		if err := e.localRef(binary.OpLocalTee, i.Local); err != nil {
			return err
		}

	case ir.GlobalGet:
		idx, err := e.ids.globalIdx(i.Global)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpGlobalGet)
		e.w.WriteU32(idx)
	case ir.GlobalSet:
		idx, err := e.ids.globalIdx(i.Global)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpGlobalSet)
		e.w.WriteU32(idx)

	case ir.Load:
		if _, err := e.ids.memIdx(i.Memory); err != nil {
			return err
		}
		e.w.Byte(byte(i.Kind))
		e.w.WriteU32(i.Arg.Align)
		e.w.WriteU32(i.Arg.Offset)

	case ir.Store:
		if _, err := e.ids.memIdx(i.Memory); err != nil {
			return err
		}
		e.w.Byte(byte(i.Kind))
		e.w.WriteU32(i.Arg.Align)
		e.w.WriteU32(i.Arg.Offset)

	case ir.MemorySize:
		idx, err := e.ids.memIdx(i.Memory)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpMemorySize)
		e.w.WriteU32(idx)

	case ir.MemoryGrow:
		idx, err := e.ids.memIdx(i.Memory)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpMemoryGrow)
		e.w.WriteU32(idx)

	case ir.MemoryInit:
		dIdx, err := e.ids.dataIdx(i.Data)
		if err != nil {
			return err
		}
		mIdx, err := e.ids.memIdx(i.Memory)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpPrefixMisc)
		e.w.WriteU32(binary.MiscMemoryInit)
		e.w.WriteU32(dIdx)
		e.w.WriteU32(mIdx)

	case ir.DataDrop:
		idx, err := e.ids.dataIdx(i.Data)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpPrefixMisc)
		e.w.WriteU32(binary.MiscDataDrop)
		e.w.WriteU32(idx)

	case ir.MemoryCopy:
		dst, err := e.ids.memIdx(i.Dst)
		if err != nil {
			return err
		}
		src, err := e.ids.memIdx(i.Src)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpPrefixMisc)
		e.w.WriteU32(binary.MiscMemoryCopy)
		e.w.WriteU32(dst)
		e.w.WriteU32(src)

	case ir.MemoryFill:
		idx, err := e.ids.memIdx(i.Memory)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpPrefixMisc)
		e.w.WriteU32(binary.MiscMemoryFill)
		e.w.WriteU32(idx)

	case ir.RefNull:
		e.w.Byte(binary.OpRefNull)
		e.w.Byte(byte(i.Type))
	case ir.RefIsNull:
		e.w.Byte(binary.OpRefIsNull)
	case ir.RefFunc:
		idx, err := e.ids.funcIdx(i.Func)
		if err != nil {
			return err
		}
		e.w.Byte(binary.OpRefFunc)
		e.w.WriteU32(idx)

	default:
		return errors.BadState(errors.PhaseEncode, fmt.Sprintf("unknown instruction %T", in))
	}
	return nil
}

// ifElse emits both arms under a single label. The arms are registered
// on the control stack together because a branch in either arm that
// names either sequence means the if's one label.
func (e *funcEncoder) ifElse(i ir.IfElse) error {
	cons, err := e.getSeq(i.Consequent)
	if err != nil {
		return err
	}
	alt, err := e.getSeq(i.Alternative)
	if err != nil {
		return err
	}

	e.w.Byte(binary.OpIf)
	if err := e.blockType(cons.Ty); err != nil {
		return err
	}

	if _, open := e.depth[i.Consequent]; open {
		return errors.BadState(errors.PhaseEncode, fmt.Sprintf("seq[%d] is its own ancestor", i.Consequent))
	}
	if _, open := e.depth[i.Alternative]; open {
		return errors.BadState(errors.PhaseEncode, fmt.Sprintf("seq[%d] is its own ancestor", i.Alternative))
	}
	e.depth[i.Consequent] = e.level
	e.depth[i.Alternative] = e.level
	e.level++

	for _, in := range cons.Instrs {
		if err := e.instr(in); err != nil {
			return err
		}
	}
	if len(alt.Instrs) > 0 {
		e.w.Byte(binary.OpElse)
		for _, in := range alt.Instrs {
			if err := e.instr(in); err != nil {
				return err
			}
		}
	}

	e.level--
	delete(e.depth, i.Consequent)
	delete(e.depth, i.Alternative)
	e.w.Byte(binary.OpEnd)
	return nil
}

func (e *funcEncoder) localRef(op byte, id ir.LocalID) error {
	idx, ok := e.locals[id]
	if !ok {
		return errors.DanglingID("local", uint32(id))
	}
	e.w.Byte(op)
	e.w.WriteU32(idx)
	return nil
}
