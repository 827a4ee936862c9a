package ir

// Module is a WebAssembly module held entirely in memory. Entities live
// in typed arenas and refer to each other by ID; nothing in the structure
// depends on binary format index spaces, so entities can be added in any
// order and unreferenced ones are dropped at encode time.
type Module struct {
	// Name is the module name from the name section, or "" when absent.
	Name string

	Types    Arena[TypeID, Type]
	Imports  Arena[ImportID, Import]
	Funcs    Arena[FunctionID, Function]
	Tables   Arena[TableID, Table]
	Memories Arena[MemoryID, Memory]
	Globals  Arena[GlobalID, Global]
	Exports  Arena[ExportID, Export]
	Elements Arena[ElementID, ElementSegment]
	Data     Arena[DataID, DataSegment]

	// Start is the start function, or nil when the module has none.
	Start *FunctionID

	// Producers is the parsed producers section.
	Producers Producers

	// Customs are custom sections carried through unmodified, in the
	// order they appeared.
	Customs []CustomSection
}

// New returns an empty module.
func New() *Module {
	return &Module{
		Types:    NewArena[TypeID, Type]("type"),
		Imports:  NewArena[ImportID, Import]("import"),
		Funcs:    NewArena[FunctionID, Function]("function"),
		Tables:   NewArena[TableID, Table]("table"),
		Memories: NewArena[MemoryID, Memory]("memory"),
		Globals:  NewArena[GlobalID, Global]("global"),
		Exports:  NewArena[ExportID, Export]("export"),
		Elements: NewArena[ElementID, ElementSegment]("element"),
		Data:     NewArena[DataID, DataSegment]("data"),
	}
}

// AddFuncType interns a function signature and returns its ID. Calling it
// twice with equal signatures returns the same ID.
func (m *Module) AddFuncType(params, results []ValType) TypeID {
	want := Type{Params: params, Results: results}
	var found TypeID
	ok := false
	m.Types.All(func(id TypeID, ty *Type) bool {
		if ty.Equal(&want) {
			found, ok = id, true
			return false
		}
		return true
	})
	if ok {
		return found
	}
	return m.Types.Alloc(Type{
		Params:  append([]ValType(nil), params...),
		Results: append([]ValType(nil), results...),
	})
}

// ImportFunc adds an imported function with the given signature.
func (m *Module) ImportFunc(module, name string, ty TypeID) (FunctionID, ImportID) {
	fid := FunctionID(m.Funcs.Len())
	iid := m.Imports.Alloc(Import{Module: module, Name: name, Kind: ExternFunc, Func: fid})
	m.Funcs.Alloc(Function{Name: name, Type: ty, Import: &iid})
	return fid, iid
}

// ImportTable adds an imported table.
func (m *Module) ImportTable(module, name string, elemType ValType, limits Limits) (TableID, ImportID) {
	tid := TableID(m.Tables.Len())
	iid := m.Imports.Alloc(Import{Module: module, Name: name, Kind: ExternTable, Table: tid})
	m.Tables.Alloc(Table{Name: name, Import: &iid, ElemType: elemType, Limits: limits})
	return tid, iid
}

// ImportMemory adds an imported memory.
func (m *Module) ImportMemory(module, name string, limits Limits) (MemoryID, ImportID) {
	mid := MemoryID(m.Memories.Len())
	iid := m.Imports.Alloc(Import{Module: module, Name: name, Kind: ExternMemory, Memory: mid})
	m.Memories.Alloc(Memory{Name: name, Import: &iid, Limits: limits})
	return mid, iid
}

// ImportGlobal adds an imported global.
func (m *Module) ImportGlobal(module, name string, ty ValType, mutable bool) (GlobalID, ImportID) {
	gid := GlobalID(m.Globals.Len())
	iid := m.Imports.Alloc(Import{Module: module, Name: name, Kind: ExternGlobal, Global: gid})
	m.Globals.Alloc(Global{Name: name, Import: &iid, Type: ty, Mutable: mutable})
	return gid, iid
}

// AddTable adds a locally defined table.
func (m *Module) AddTable(elemType ValType, limits Limits) TableID {
	return m.Tables.Alloc(Table{ElemType: elemType, Limits: limits})
}

// AddMemory adds a locally defined memory.
func (m *Module) AddMemory(limits Limits) MemoryID {
	return m.Memories.Alloc(Memory{Limits: limits})
}

// AddGlobal adds a locally defined global with an initializer.
func (m *Module) AddGlobal(ty ValType, mutable bool, init ConstExpr) GlobalID {
	return m.Globals.Alloc(Global{Type: ty, Mutable: mutable, Init: init})
}

// ExportFunc exports a function under the given name.
func (m *Module) ExportFunc(name string, f FunctionID) ExportID {
	return m.Exports.Alloc(Export{Name: name, Kind: ExternFunc, Func: f})
}

// ExportTable exports a table under the given name.
func (m *Module) ExportTable(name string, t TableID) ExportID {
	return m.Exports.Alloc(Export{Name: name, Kind: ExternTable, Table: t})
}

// ExportMemory exports a memory under the given name.
func (m *Module) ExportMemory(name string, mem MemoryID) ExportID {
	return m.Exports.Alloc(Export{Name: name, Kind: ExternMemory, Memory: mem})
}

// ExportGlobal exports a global under the given name.
func (m *Module) ExportGlobal(name string, g GlobalID) ExportID {
	return m.Exports.Alloc(Export{Name: name, Kind: ExternGlobal, Global: g})
}

// SetStart marks f as the start function, run at instantiation.
func (m *Module) SetStart(f FunctionID) {
	m.Start = &f
}

// NumImportedFuncs counts imported functions. In the binary format these
// occupy the low end of the function index space.
func (m *Module) NumImportedFuncs() int {
	n := 0
	m.Funcs.All(func(_ FunctionID, f *Function) bool {
		if f.Imported() {
			n++
		}
		return true
	})
	return n
}

// NumLocalFuncs counts functions defined in this module.
func (m *Module) NumLocalFuncs() int {
	return m.Funcs.Len() - m.NumImportedFuncs()
}
