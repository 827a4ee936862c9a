package validate

import (
	"fmt"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// body checks the block structure and references of one local function.
// Operand typing is enforced by ir.FunctionBuilder while bodies are
// built; this pass guards the invariants that direct arena edits can
// still break.
func (c *checker) body(id ir.FunctionID, f *ir.Function) {
	loc := fmt.Sprintf("func[%d]", id)
	local := f.Local
	ty := c.m.Types.MustGet(f.Type)

	if len(local.Args) != len(ty.Params) {
		c.invalid(fmt.Sprintf("%d argument locals for %d parameters", len(local.Args), len(ty.Params)), loc)
	} else {
		for n, arg := range local.Args {
			l, err := local.Locals.Get(arg)
			if err != nil {
				c.badIndex("local", uint32(arg), local.Locals.Len(), loc)
				continue
			}
			if l.Type != ty.Params[n] {
				c.invalid(fmt.Sprintf("argument local %d has type %s, parameter is %s", n, l.Type, ty.Params[n]), loc)
			}
		}
	}

	w := &bodyWalker{
		c:      c,
		f:      local,
		loc:    loc,
		onPath: make(map[ir.InstrSeqID]bool),
		seen:   make(map[ir.InstrSeqID]bool),
	}
	w.seq(local.Entry)
}

// bodyWalker descends the sequence tree of one body. onPath holds the
// open ancestry so branch targets can be checked for enclosure, seen
// catches sequences wired into the tree more than once.
type bodyWalker struct {
	c   *checker
	f   *ir.LocalFunction
	loc string

	onPath map[ir.InstrSeqID]bool
	seen   map[ir.InstrSeqID]bool
}

func (w *bodyWalker) seq(id ir.InstrSeqID) {
	sloc := fmt.Sprintf("seq[%d]", id)
	if w.onPath[id] {
		w.c.invalid("sequence contains itself", w.loc, sloc)
		return
	}
	if w.seen[id] {
		w.c.invalid("sequence has more than one parent", w.loc, sloc)
		return
	}
	w.seen[id] = true

	seq, err := w.f.Seqs.Get(id)
	if err != nil {
		w.c.badIndex("sequence", uint32(id), w.f.Seqs.Len(), w.loc, sloc)
		return
	}

	w.onPath[id] = true
	for n, instr := range seq.Instrs {
		w.instr(instr, w.loc, sloc, fmt.Sprintf("instr[%d]", n))
	}
	delete(w.onPath, id)
}

func (w *bodyWalker) instr(in ir.Instr, path ...string) {
	c := w.c
	switch i := in.(type) {
	case ir.Block:
		w.seq(i.Seq)
	case ir.Loop:
		w.seq(i.Seq)
	case ir.IfElse:
		w.seq(i.Consequent)
		w.seq(i.Alternative)

	case ir.Br:
		w.target(i.Target, path)
	case ir.BrIf:
		w.target(i.Target, path)
	case ir.BrTable:
		for _, t := range i.Targets {
			w.target(t, path)
		}
		w.target(i.Default, path)

	case ir.Call:
		if _, err := c.m.Funcs.Get(i.Func); err != nil {
			c.badIndex("function", uint32(i.Func), c.m.Funcs.Len(), path...)
		}
	case ir.CallIndirect:
		if _, err := c.m.Types.Get(i.Type); err != nil {
			c.badIndex("type", uint32(i.Type), c.m.Types.Len(), path...)
		}
		if _, err := c.m.Tables.Get(i.Table); err != nil {
			c.badIndex("table", uint32(i.Table), c.m.Tables.Len(), path...)
		}

	case ir.LocalGet:
		w.local(i.Local, path)
	case ir.LocalSet:
		w.local(i.Local, path)
	case ir.LocalTee:
		w.local(i.Local, path)

	case ir.GlobalGet:
		if _, err := c.m.Globals.Get(i.Global); err != nil {
			c.badIndex("global", uint32(i.Global), c.m.Globals.Len(), path...)
		}
	case ir.GlobalSet:
		g, err := c.m.Globals.Get(i.Global)
		if err != nil {
			c.badIndex("global", uint32(i.Global), c.m.Globals.Len(), path...)
		} else if !g.Mutable {
			c.invalid("assignment to an immutable global", path...)
		}

	case ir.Load:
		w.memory(i.Memory, path)
		w.align(i.Arg.Align, i.Kind.AccessSize(), path)
	case ir.Store:
		w.memory(i.Memory, path)
		w.align(i.Arg.Align, i.Kind.AccessSize(), path)
	case ir.MemorySize:
		w.memory(i.Memory, path)
	case ir.MemoryGrow:
		w.memory(i.Memory, path)
	case ir.MemoryInit:
		w.memory(i.Memory, path)
		w.data(i.Data, path)
	case ir.DataDrop:
		w.data(i.Data, path)
	case ir.MemoryCopy:
		w.memory(i.Dst, path)
		w.memory(i.Src, path)
	case ir.MemoryFill:
		w.memory(i.Memory, path)

	case ir.RefNull:
		if !i.Type.IsRef() {
			c.invalid(fmt.Sprintf("ref.null of non-reference type %s", i.Type), path...)
		}
	case ir.RefFunc:
		if _, err := c.m.Funcs.Get(i.Func); err != nil {
			c.badIndex("function", uint32(i.Func), c.m.Funcs.Len(), path...)
		}
	}
}

func (w *bodyWalker) target(id ir.InstrSeqID, path []string) {
	if !w.onPath[id] {
		w.c.report(errors.New(errors.PhaseValidate, errors.KindBadTarget).
			Path(path...).
			Detail("branch target seq[%d] is not an enclosing sequence", id).
			Build())
	}
}

func (w *bodyWalker) local(id ir.LocalID, path []string) {
	if _, err := w.f.Locals.Get(id); err != nil {
		w.c.badIndex("local", uint32(id), w.f.Locals.Len(), path...)
	}
}

func (w *bodyWalker) memory(id ir.MemoryID, path []string) {
	if _, err := w.c.m.Memories.Get(id); err != nil {
		w.c.badIndex("memory", uint32(id), w.c.m.Memories.Len(), path...)
	}
}

func (w *bodyWalker) data(id ir.DataID, path []string) {
	if _, err := w.c.m.Data.Get(id); err != nil {
		w.c.badIndex("data", uint32(id), w.c.m.Data.Len(), path...)
	}
}

func (w *bodyWalker) align(log2, size uint32, path []string) {
	if log2 > 31 || uint32(1)<<log2 > size {
		w.c.invalid(fmt.Sprintf("alignment 2^%d exceeds the natural %d-byte alignment", log2, size), path...)
	}
}
