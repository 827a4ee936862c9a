package encode

import (
	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// wireIndex maps surviving arena IDs to the dense indices the binary
// format uses and records each section's emission order. Within every
// index space the imported entities come first, then the local ones,
// both in allocation order, which keeps relative order stable across a
// decode and encode cycle.
type wireIndex struct {
	types    map[ir.TypeID]uint32
	funcs    map[ir.FunctionID]uint32
	tables   map[ir.TableID]uint32
	memories map[ir.MemoryID]uint32
	globals  map[ir.GlobalID]uint32
	data     map[ir.DataID]uint32

	typeList   []ir.TypeID
	importList []ir.ImportID

	// funcOrder is the whole function index space in wire order;
	// localFuncs is its tail, the functions with bodies to emit.
	funcOrder  []ir.FunctionID
	localFuncs []ir.FunctionID

	localTables  []ir.TableID
	localMems    []ir.MemoryID
	localGlobals []ir.GlobalID

	elemList []ir.ElementID
	dataList []ir.DataID
}

func renumber(m *ir.Module, u *usedSet) *wireIndex {
	x := &wireIndex{
		types:    make(map[ir.TypeID]uint32, len(u.types)),
		funcs:    make(map[ir.FunctionID]uint32, len(u.funcs)),
		tables:   make(map[ir.TableID]uint32, len(u.tables)),
		memories: make(map[ir.MemoryID]uint32, len(u.memories)),
		globals:  make(map[ir.GlobalID]uint32, len(u.globals)),
		data:     make(map[ir.DataID]uint32, len(u.data)),
	}

	m.Types.All(func(id ir.TypeID, _ *ir.Type) bool {
		if u.types[id] {
			x.types[id] = uint32(len(x.typeList))
			x.typeList = append(x.typeList, id)
		}
		return true
	})

	var nTables, nMems, nGlobals uint32
	m.Imports.All(func(id ir.ImportID, imp *ir.Import) bool {
		keep := false
		switch imp.Kind {
		case ir.ExternFunc:
			if u.funcs[imp.Func] {
				x.funcs[imp.Func] = uint32(len(x.funcOrder))
				x.funcOrder = append(x.funcOrder, imp.Func)
				keep = true
			}
		case ir.ExternTable:
			if u.tables[imp.Table] {
				x.tables[imp.Table] = nTables
				nTables++
				keep = true
			}
		case ir.ExternMemory:
			if u.memories[imp.Memory] {
				x.memories[imp.Memory] = nMems
				nMems++
				keep = true
			}
		case ir.ExternGlobal:
			if u.globals[imp.Global] {
				x.globals[imp.Global] = nGlobals
				nGlobals++
				keep = true
			}
		}
		if keep {
			x.importList = append(x.importList, id)
		}
		return true
	})

	m.Funcs.All(func(id ir.FunctionID, f *ir.Function) bool {
		if u.funcs[id] && !f.Imported() {
			x.funcs[id] = uint32(len(x.funcOrder))
			x.funcOrder = append(x.funcOrder, id)
			x.localFuncs = append(x.localFuncs, id)
		}
		return true
	})
	m.Tables.All(func(id ir.TableID, t *ir.Table) bool {
		if u.tables[id] && !t.Imported() {
			x.tables[id] = nTables
			nTables++
			x.localTables = append(x.localTables, id)
		}
		return true
	})
	m.Memories.All(func(id ir.MemoryID, mem *ir.Memory) bool {
		if u.memories[id] && !mem.Imported() {
			x.memories[id] = nMems
			nMems++
			x.localMems = append(x.localMems, id)
		}
		return true
	})
	m.Globals.All(func(id ir.GlobalID, g *ir.Global) bool {
		if u.globals[id] && !g.Imported() {
			x.globals[id] = nGlobals
			nGlobals++
			x.localGlobals = append(x.localGlobals, id)
		}
		return true
	})

	m.Elements.All(func(id ir.ElementID, _ *ir.ElementSegment) bool {
		if u.elements[id] {
			x.elemList = append(x.elemList, id)
		}
		return true
	})
	m.Data.All(func(id ir.DataID, _ *ir.DataSegment) bool {
		if u.data[id] {
			x.data[id] = uint32(len(x.dataList))
			x.dataList = append(x.dataList, id)
		}
		return true
	})

	return x
}

func (x *wireIndex) typeIdx(id ir.TypeID) (uint32, error) {
	idx, ok := x.types[id]
	if !ok {
		return 0, errors.DanglingID("type", uint32(id))
	}
	return idx, nil
}

func (x *wireIndex) funcIdx(id ir.FunctionID) (uint32, error) {
	idx, ok := x.funcs[id]
	if !ok {
		return 0, errors.DanglingID("function", uint32(id))
	}
	return idx, nil
}

func (x *wireIndex) tableIdx(id ir.TableID) (uint32, error) {
	idx, ok := x.tables[id]
	if !ok {
		return 0, errors.DanglingID("table", uint32(id))
	}
	return idx, nil
}

func (x *wireIndex) memIdx(id ir.MemoryID) (uint32, error) {
	idx, ok := x.memories[id]
	if !ok {
		return 0, errors.DanglingID("memory", uint32(id))
	}
	return idx, nil
}

func (x *wireIndex) globalIdx(id ir.GlobalID) (uint32, error) {
	idx, ok := x.globals[id]
	if !ok {
		return 0, errors.DanglingID("global", uint32(id))
	}
	return idx, nil
}

func (x *wireIndex) dataIdx(id ir.DataID) (uint32, error) {
	idx, ok := x.data[id]
	if !ok {
		return 0, errors.DanglingID("data", uint32(id))
	}
	return idx, nil
}
