package encode

import (
	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// usedSet records which entities survive dead-id elimination: the
// closure of everything reachable from the exports and the start
// function.
type usedSet struct {
	types    map[ir.TypeID]bool
	funcs    map[ir.FunctionID]bool
	tables   map[ir.TableID]bool
	memories map[ir.MemoryID]bool
	globals  map[ir.GlobalID]bool
	elements map[ir.ElementID]bool
	data     map[ir.DataID]bool

	// bulkData is set when a surviving body contains memory.init or
	// data.drop, which is what makes the data count section mandatory.
	bulkData bool
}

// usedWalker drives the closure. Functions found reachable go on a
// worklist; every other entity kind is marked and expanded on the spot.
// The first unresolvable reference latches as the walker's error.
type usedWalker struct {
	m     *ir.Module
	u     *usedSet
	queue []ir.FunctionID
	err   error
}

func computeUsed(m *ir.Module) (*usedSet, error) {
	w := &usedWalker{
		m: m,
		u: &usedSet{
			types:    make(map[ir.TypeID]bool),
			funcs:    make(map[ir.FunctionID]bool),
			tables:   make(map[ir.TableID]bool),
			memories: make(map[ir.MemoryID]bool),
			globals:  make(map[ir.GlobalID]bool),
			elements: make(map[ir.ElementID]bool),
			data:     make(map[ir.DataID]bool),
		},
	}

	m.Exports.All(func(_ ir.ExportID, x *ir.Export) bool {
		switch x.Kind {
		case ir.ExternFunc:
			w.markFunc(x.Func)
		case ir.ExternTable:
			w.markTable(x.Table)
		case ir.ExternMemory:
			w.markMemory(x.Memory)
		case ir.ExternGlobal:
			w.markGlobal(x.Global)
		}
		return w.err == nil
	})
	if m.Start != nil {
		w.markFunc(*m.Start)
	}
	w.drain()

	// Passive and declared element segments describe functions rather
	// than being reachable from them, so they survive when any member
	// does. Marking a segment pulls in its remaining members, which can
	// make further segments eligible.
	for w.err == nil {
		changed := false
		m.Elements.All(func(id ir.ElementID, seg *ir.ElementSegment) bool {
			if w.u.elements[id] || seg.Kind == ir.ElementActive {
				return true
			}
			for _, f := range seg.Members {
				if w.u.funcs[f] {
					w.markElement(id)
					changed = true
					break
				}
			}
			return w.err == nil
		})
		w.drain()
		if !changed {
			break
		}
	}

	if w.err != nil {
		return nil, w.err
	}
	return w.u, nil
}

func (w *usedWalker) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *usedWalker) drain() {
	for len(w.queue) > 0 && w.err == nil {
		id := w.queue[len(w.queue)-1]
		w.queue = w.queue[:len(w.queue)-1]
		w.scanFunc(id)
	}
}

func (w *usedWalker) markFunc(id ir.FunctionID) {
	if w.u.funcs[id] {
		return
	}
	w.u.funcs[id] = true
	w.queue = append(w.queue, id)
}

func (w *usedWalker) markType(id ir.TypeID) {
	if w.u.types[id] {
		return
	}
	if _, err := w.m.Types.Get(id); err != nil {
		w.fail(errors.DanglingID("type", uint32(id)))
		return
	}
	w.u.types[id] = true
}

// markTable pulls in the active element segments that initialize the
// table, and through them their member functions.
func (w *usedWalker) markTable(id ir.TableID) {
	if w.u.tables[id] {
		return
	}
	w.u.tables[id] = true
	if _, err := w.m.Tables.Get(id); err != nil {
		w.fail(errors.DanglingID("table", uint32(id)))
		return
	}
	w.m.Elements.All(func(eid ir.ElementID, seg *ir.ElementSegment) bool {
		if seg.Kind == ir.ElementActive && seg.Table == id {
			w.markElement(eid)
		}
		return w.err == nil
	})
}

// markMemory pulls in the active data segments that initialize the
// memory.
func (w *usedWalker) markMemory(id ir.MemoryID) {
	if w.u.memories[id] {
		return
	}
	w.u.memories[id] = true
	if _, err := w.m.Memories.Get(id); err != nil {
		w.fail(errors.DanglingID("memory", uint32(id)))
		return
	}
	w.m.Data.All(func(did ir.DataID, seg *ir.DataSegment) bool {
		if seg.Kind == ir.DataActive && seg.Memory == id {
			w.markData(did)
		}
		return w.err == nil
	})
}

func (w *usedWalker) markGlobal(id ir.GlobalID) {
	if w.u.globals[id] {
		return
	}
	w.u.globals[id] = true
	g, err := w.m.Globals.Get(id)
	if err != nil {
		w.fail(errors.DanglingID("global", uint32(id)))
		return
	}
	if !g.Imported() {
		w.markConstExpr(g.Init)
	}
}

func (w *usedWalker) markElement(id ir.ElementID) {
	if w.u.elements[id] {
		return
	}
	w.u.elements[id] = true
	seg, err := w.m.Elements.Get(id)
	if err != nil {
		w.fail(errors.DanglingID("element", uint32(id)))
		return
	}
	if seg.Kind == ir.ElementActive {
		w.markTable(seg.Table)
		w.markConstExpr(seg.Offset)
	}
	for _, f := range seg.Members {
		w.markFunc(f)
	}
}

func (w *usedWalker) markData(id ir.DataID) {
	if w.u.data[id] {
		return
	}
	w.u.data[id] = true
	seg, err := w.m.Data.Get(id)
	if err != nil {
		w.fail(errors.DanglingID("data", uint32(id)))
		return
	}
	if seg.Kind == ir.DataActive {
		w.markMemory(seg.Memory)
		w.markConstExpr(seg.Offset)
	}
}

func (w *usedWalker) markConstExpr(x ir.ConstExpr) {
	switch x.Kind {
	case ir.ConstGlobalGet:
		w.markGlobal(x.Global)
	case ir.ConstRefFunc:
		w.markFunc(x.Func)
	}
}

func (w *usedWalker) scanFunc(id ir.FunctionID) {
	fn, err := w.m.Funcs.Get(id)
	if err != nil {
		w.fail(errors.DanglingID("function", uint32(id)))
		return
	}
	w.markType(fn.Type)
	if fn.Local == nil {
		return
	}

	err = fn.Local.WalkSeqs(func(_ ir.InstrSeqID, seq *ir.InstrSeq) error {
		w.markSeqType(seq.Ty)
		for _, in := range seq.Instrs {
			w.scanInstr(in)
		}
		return w.err
	})
	if err != nil {
		w.fail(errors.Wrap(errors.PhaseEncode, errors.KindDanglingID, err, "body walk hit an unallocated sequence"))
	}
}

// markSeqType marks the signature behind a block type, but only when the
// block cannot be emitted in the shorthand form. Shorthand blocks never
// mention a type index, so keeping their signature alive would leave an
// unreferenced entry in the type section.
func (w *usedWalker) markSeqType(st ir.SeqType) {
	if st.Kind != ir.SeqFunc {
		return
	}
	ty, err := w.m.Types.Get(st.Func)
	if err != nil {
		w.fail(errors.DanglingID("type", uint32(st.Func)))
		return
	}
	if len(ty.Params) > 0 || len(ty.Results) > 1 {
		w.markType(st.Func)
	}
}

func (w *usedWalker) scanInstr(in ir.Instr) {
	switch i := in.(type) {
	case ir.Call:
		w.markFunc(i.Func)
	case ir.CallIndirect:
		w.markType(i.Type)
		w.markTable(i.Table)
	case ir.GlobalGet:
		w.markGlobal(i.Global)
	case ir.GlobalSet:
		w.markGlobal(i.Global)
	case ir.Load:
		w.markMemory(i.Memory)
	case ir.Store:
		w.markMemory(i.Memory)
	case ir.MemorySize:
		w.markMemory(i.Memory)
	case ir.MemoryGrow:
		w.markMemory(i.Memory)
	case ir.MemoryInit:
		w.markMemory(i.Memory)
		w.markData(i.Data)
		w.u.bulkData = true
	case ir.DataDrop:
		w.markData(i.Data)
		w.u.bulkData = true
	case ir.MemoryCopy:
		w.markMemory(i.Dst)
		w.markMemory(i.Src)
	case ir.MemoryFill:
		w.markMemory(i.Memory)
	case ir.RefFunc:
		w.markFunc(i.Func)
	}
}
