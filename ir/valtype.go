package ir

import "fmt"

// ValType is a WebAssembly value type. The constant values mirror the
// binary format encoding bytes.
type ValType byte

const (
	I32       ValType = 0x7F // 32-bit integer
	I64       ValType = 0x7E // 64-bit integer
	F32       ValType = 0x7D // 32-bit float
	F64       ValType = 0x7C // 64-bit float
	V128      ValType = 0x7B // 128-bit vector (recognized, not supported)
	FuncRef   ValType = 0x70 // Function reference
	ExternRef ValType = 0x6F // External reference
)

// String returns the text format name of the value type.
func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case V128:
		return "v128"
	case FuncRef:
		return "funcref"
	case ExternRef:
		return "externref"
	default:
		return fmt.Sprintf("valtype(0x%02X)", byte(t))
	}
}

// IsNum reports whether t is one of the four numeric types.
func (t ValType) IsNum() bool {
	switch t {
	case I32, I64, F32, F64:
		return true
	}
	return false
}

// IsRef reports whether t is a reference type.
func (t ValType) IsRef() bool {
	return t == FuncRef || t == ExternRef
}

// Type is a function signature: parameter types and result types. Types
// live in Module.Types and are deduplicated on insertion, so two structurally
// equal signatures share one TypeID.
type Type struct {
	Params  []ValType
	Results []ValType
}

// Equal reports structural equality of two signatures.
func (t *Type) Equal(other *Type) bool {
	if len(t.Params) != len(other.Params) || len(t.Results) != len(other.Results) {
		return false
	}
	for i, p := range t.Params {
		if other.Params[i] != p {
			return false
		}
	}
	for i, r := range t.Results {
		if other.Results[i] != r {
			return false
		}
	}
	return true
}

// String renders the signature in text format, e.g. "[i32 i64] -> [i32]".
func (t *Type) String() string {
	s := "["
	for i, p := range t.Params {
		if i > 0 {
			s += " "
		}
		s += p.String()
	}
	s += "] -> ["
	for i, r := range t.Results {
		if i > 0 {
			s += " "
		}
		s += r.String()
	}
	return s + "]"
}

// SeqTypeKind discriminates the two shapes an instruction sequence type
// can take.
type SeqTypeKind byte

const (
	// SeqSimple is a block type with no parameters and at most one result.
	SeqSimple SeqTypeKind = iota

	// SeqFunc is a block type given by a signature in Module.Types. Used
	// for function entry sequences and for multi-value blocks.
	SeqFunc
)

// SeqType is the type of an instruction sequence: either the shorthand
// form (no params, zero or one result) or a full signature reference.
type SeqType struct {
	Kind SeqTypeKind

	// Result is the single result for SeqSimple, or nil for no result.
	Result *ValType

	// Func is the signature for SeqFunc.
	Func TypeID
}

// SeqVoid returns the shorthand sequence type with no parameters and no
// results.
func SeqVoid() SeqType {
	return SeqType{Kind: SeqSimple}
}

// SeqResult returns the shorthand sequence type with no parameters and a
// single result.
func SeqResult(t ValType) SeqType {
	r := t
	return SeqType{Kind: SeqSimple, Result: &r}
}

// FuncSeqType returns a sequence type backed by a full signature.
func FuncSeqType(ty TypeID) SeqType {
	return SeqType{Kind: SeqFunc, Func: ty}
}

// Params returns the parameter types of the sequence.
func (st SeqType) Params(m *Module) ([]ValType, error) {
	switch st.Kind {
	case SeqSimple:
		return nil, nil
	case SeqFunc:
		ty, err := m.Types.Get(st.Func)
		if err != nil {
			return nil, err
		}
		return ty.Params, nil
	}
	return nil, fmt.Errorf("unknown seq type kind %d", st.Kind)
}

// Results returns the result types of the sequence.
func (st SeqType) Results(m *Module) ([]ValType, error) {
	switch st.Kind {
	case SeqSimple:
		if st.Result == nil {
			return nil, nil
		}
		return []ValType{*st.Result}, nil
	case SeqFunc:
		ty, err := m.Types.Get(st.Func)
		if err != nil {
			return nil, err
		}
		return ty.Results, nil
	}
	return nil, fmt.Errorf("unknown seq type kind %d", st.Kind)
}
