package ir

import "github.com/wippyai/wasm-ir/errors"

// Function is a function in the module, either imported or defined
// locally. Exactly one of Import and Local is non-nil.
type Function struct {
	// Name is the debug name from the name section, or "" when absent.
	Name string

	// Type is the function signature.
	Type TypeID

	// Import is set when the function is imported.
	Import *ImportID

	// Local holds the body when the function is defined in this module.
	Local *LocalFunction
}

// Imported reports whether the function body lives outside this module.
func (f *Function) Imported() bool {
	return f.Import != nil
}

// LocalFunction is the body of a function defined in this module: its
// locals, its instruction sequences and the entry sequence.
type LocalFunction struct {
	// Locals holds parameters followed by declared locals.
	Locals Arena[LocalID, Local]

	// Seqs holds every instruction sequence of the body. Sequences form a
	// tree rooted at Entry; each non-entry sequence is referenced by
	// exactly one Block, Loop or IfElse instruction.
	Seqs Arena[InstrSeqID, InstrSeq]

	// Entry is the root sequence, executed when the function is called.
	Entry InstrSeqID

	// Args are the locals bound to the function parameters, in order.
	Args []LocalID
}

// Local is a function-scoped variable. Parameters are locals too.
type Local struct {
	Name string
	Type ValType
}

// InstrSeq is one instruction sequence: the body of a function, block,
// loop, or one arm of an if.
type InstrSeq struct {
	// Ty is the sequence's block type.
	Ty SeqType

	// Instrs are the instructions in execution order.
	Instrs []Instr
}

// Limits bound the size of a table or memory. Max is nil when unbounded.
type Limits struct {
	Min uint64
	Max *uint64
}

// Table is a table of references, either imported or defined locally.
type Table struct {
	Name     string
	Import   *ImportID
	ElemType ValType
	Limits   Limits
}

// Imported reports whether the table is imported.
func (t *Table) Imported() bool {
	return t.Import != nil
}

// Memory is a linear memory, either imported or defined locally. Limits
// are in 64KiB pages.
type Memory struct {
	Name   string
	Import *ImportID
	Limits Limits
}

// Imported reports whether the memory is imported.
func (m *Memory) Imported() bool {
	return m.Import != nil
}

// Global is a global variable, either imported or defined locally. Init
// is meaningful only for locally defined globals.
type Global struct {
	Name    string
	Import  *ImportID
	Type    ValType
	Mutable bool
	Init    ConstExpr
}

// Imported reports whether the global is imported.
func (g *Global) Imported() bool {
	return g.Import != nil
}

// ExternKind discriminates importable and exportable item kinds. The
// constant values mirror the binary format descriptor bytes.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0
	ExternTable  ExternKind = 1
	ExternMemory ExternKind = 2
	ExternGlobal ExternKind = 3
)

// String returns the text format keyword for the kind.
func (k ExternKind) String() string {
	switch k {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	}
	return "extern"
}

// Import is one imported item. Kind selects which ID field refers to the
// entity created for the import.
type Import struct {
	// Module is the name of the module the item is imported from.
	Module string

	// Name is the item's name within that module.
	Name string

	Kind   ExternKind
	Func   FunctionID
	Table  TableID
	Memory MemoryID
	Global GlobalID
}

// Export is one exported item. Kind selects which ID field is meaningful.
type Export struct {
	// Name is the export name, unique within the module.
	Name string

	Kind   ExternKind
	Func   FunctionID
	Table  TableID
	Memory MemoryID
	Global GlobalID
}

// ElementKind discriminates the activation modes of an element segment.
type ElementKind byte

const (
	// ElementActive segments copy their members into a table at
	// instantiation time.
	ElementActive ElementKind = iota

	// ElementPassive segments wait for a table.init instruction.
	ElementPassive

	// ElementDeclared segments only declare functions for ref.func.
	ElementDeclared
)

// ElementSegment is a table initializer: a list of functions and, for
// active segments, the table and offset they are copied to.
type ElementSegment struct {
	Kind    ElementKind
	Table   TableID   // active segments only
	Offset  ConstExpr // active segments only
	Members []FunctionID
}

// DataKind discriminates the activation modes of a data segment.
type DataKind byte

const (
	// DataActive segments copy their bytes into a memory at
	// instantiation time.
	DataActive DataKind = iota

	// DataPassive segments wait for a memory.init instruction.
	DataPassive
)

// DataSegment is a memory initializer: raw bytes and, for active
// segments, the memory and offset they are copied to.
type DataSegment struct {
	Kind   DataKind
	Memory MemoryID  // active segments only
	Offset ConstExpr // active segments only
	Value  []byte
}

// ConstExprKind discriminates the forms a constant expression can take.
type ConstExprKind byte

const (
	// ConstValue is a t.const instruction.
	ConstValue ConstExprKind = iota

	// ConstGlobalGet reads an imported immutable global.
	ConstGlobalGet

	// ConstRefNull is a null reference.
	ConstRefNull

	// ConstRefFunc is a reference to a function.
	ConstRefFunc
)

// ConstExpr is a constant initializer expression: a single instruction
// followed by end. Used by global initializers and active segment offsets.
type ConstExpr struct {
	Kind    ConstExprKind
	Value   Value      // ConstValue
	Global  GlobalID   // ConstGlobalGet
	Func    FunctionID // ConstRefFunc
	RefType ValType    // ConstRefNull
}

// ConstExprValue returns a t.const expression.
func ConstExprValue(v Value) ConstExpr {
	return ConstExpr{Kind: ConstValue, Value: v}
}

// ConstExprGlobal returns a global.get expression.
func ConstExprGlobal(g GlobalID) ConstExpr {
	return ConstExpr{Kind: ConstGlobalGet, Global: g}
}

// ResultType returns the type the expression evaluates to.
func (e ConstExpr) ResultType(m *Module) (ValType, error) {
	switch e.Kind {
	case ConstValue:
		return e.Value.Type, nil
	case ConstGlobalGet:
		g, err := m.Globals.Get(e.Global)
		if err != nil {
			return 0, err
		}
		return g.Type, nil
	case ConstRefNull:
		return e.RefType, nil
	case ConstRefFunc:
		return FuncRef, nil
	}
	return 0, errors.InvalidData(errors.PhaseValidate, nil, "unknown const expression kind")
}

// CustomSection is an uninterpreted custom section carried through a
// decode and encode cycle.
type CustomSection struct {
	Name string
	Data []byte
}

// ProducerValue is one tool entry in a producers section field.
type ProducerValue struct {
	Name    string
	Version string
}

// ProducerField is one field of the producers section, e.g. "language"
// or "processed-by".
type ProducerField struct {
	Name   string
	Values []ProducerValue
}

// Producers is the parsed producers custom section.
type Producers struct {
	Fields []ProducerField
}

// AddLanguage records a source language in the "language" field.
func (p *Producers) AddLanguage(name, version string) {
	p.add("language", name, version)
}

// AddProcessedBy records a tool in the "processed-by" field.
func (p *Producers) AddProcessedBy(name, version string) {
	p.add("processed-by", name, version)
}

// AddSDK records an SDK in the "sdk" field.
func (p *Producers) AddSDK(name, version string) {
	p.add("sdk", name, version)
}

// Empty reports whether no fields are recorded.
func (p *Producers) Empty() bool {
	return len(p.Fields) == 0
}

func (p *Producers) add(field, name, version string) {
	for i := range p.Fields {
		if p.Fields[i].Name != field {
			continue
		}
		for j := range p.Fields[i].Values {
			if p.Fields[i].Values[j].Name == name {
				p.Fields[i].Values[j].Version = version
				return
			}
		}
		p.Fields[i].Values = append(p.Fields[i].Values, ProducerValue{Name: name, Version: version})
		return
	}
	p.Fields = append(p.Fields, ProducerField{
		Name:   field,
		Values: []ProducerValue{{Name: name, Version: version}},
	})
}
