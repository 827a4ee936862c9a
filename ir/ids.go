package ir

// Typed identifiers for module entities. Each entity kind has its own ID
// type so that an index into one arena cannot be used against another.
// IDs are only meaningful for the module whose arena allocated them.
type (
	// TypeID identifies a function signature in Module.Types.
	TypeID uint32

	// FunctionID identifies a function in Module.Funcs.
	FunctionID uint32

	// TableID identifies a table in Module.Tables.
	TableID uint32

	// MemoryID identifies a memory in Module.Memories.
	MemoryID uint32

	// GlobalID identifies a global in Module.Globals.
	GlobalID uint32

	// ElementID identifies an element segment in Module.Elements.
	ElementID uint32

	// DataID identifies a data segment in Module.Data.
	DataID uint32

	// ImportID identifies an import in Module.Imports.
	ImportID uint32

	// ExportID identifies an export in Module.Exports.
	ExportID uint32

	// LocalID identifies a local variable within one function.
	LocalID uint32

	// InstrSeqID identifies an instruction sequence within one function.
	// Branch instructions refer to their target sequence by InstrSeqID
	// rather than by relative nesting depth.
	InstrSeqID uint32
)
