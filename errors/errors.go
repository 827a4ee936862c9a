package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage produced the error
type Phase string

const (
	PhaseDecode   Phase = "decode"   // binary to IR
	PhaseValidate Phase = "validate" // semantic checks on a built module
	PhaseBuild    Phase = "build"    // IR construction and authoring API
	PhaseEncode   Phase = "encode"   // IR to binary
)

// Kind categorizes the error
type Kind string

const (
	KindBadMagic            Kind = "bad_magic"
	KindBadVersion          Kind = "bad_version"
	KindMalformedVarint     Kind = "malformed_varint"
	KindUnexpectedEOF       Kind = "unexpected_eof"
	KindInvalidUTF8         Kind = "invalid_utf8"
	KindSectionSizeMismatch Kind = "section_size_mismatch"
	KindSectionOrder        Kind = "section_order"
	KindUnknownSection      Kind = "unknown_section"
	KindUnknownOpcode       Kind = "unknown_opcode"
	KindUnsupported         Kind = "unsupported"
	KindInvalidData         Kind = "invalid_data"
	KindTypeMismatch        Kind = "type_mismatch"
	KindBadIndex            Kind = "bad_index"
	KindBadLimits           Kind = "bad_limits"
	KindBadStart            Kind = "bad_start"
	KindDuplicateExport     Kind = "duplicate_export"
	KindBadInitExpr         Kind = "bad_init_expr"
	KindBadTarget           Kind = "bad_target"
	KindBadState            Kind = "bad_state"
	KindInvalidID           Kind = "invalid_id"
	KindDanglingID          Kind = "dangling_id"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Section string
	Detail  string
	Path    []string
	Offset  int // byte offset into the input, -1 when not applicable
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Section != "" {
		b.WriteString(" in ")
		b.WriteString(e.Section)
		b.WriteString(" section")
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// WithDetail appends additional context to the detail message
func (e *Error) WithDetail(msg string) *Error {
	if e.Detail == "" {
		e.Detail = msg
	} else {
		e.Detail += ": " + msg
	}
	return e
}

// PhaseOf extracts the Phase of the first *Error in err's chain.
func PhaseOf(err error) (Phase, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Phase, true
	}
	return "", false
}

// KindOf extracts the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: -1,
		},
	}
}

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Section sets the wire-format section name
func (b *Builder) Section(name string) *Builder {
	b.err.Section = name
	return b
}

// Offset sets the byte offset into the input
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BadMagic creates a bad magic number error
func BadMagic(got uint32) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindBadMagic,
		Detail: fmt.Sprintf("magic word 0x%08x, want 0x%08x", got, 0x6D736100),
		Offset: 0,
		Value:  got,
	}
}

// BadVersion creates an unsupported version error
func BadVersion(got uint32) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindBadVersion,
		Detail: fmt.Sprintf("binary version %d, want 1", got),
		Offset: 4,
		Value:  got,
	}
}

// MalformedVarint creates a malformed variable-length integer error
func MalformedVarint(offset int, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindMalformedVarint,
		Detail: detail,
		Offset: offset,
	}
}

// UnexpectedEOF creates a truncated input error
func UnexpectedEOF(offset int, what string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnexpectedEOF,
		Detail: fmt.Sprintf("input ends inside %s", what),
		Offset: offset,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(offset int, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
		Offset: offset,
	}
}

// SectionSizeMismatch creates a fatal section length error
func SectionSizeMismatch(section string, declared, consumed int) *Error {
	return &Error{
		Phase:   PhaseDecode,
		Kind:    KindSectionSizeMismatch,
		Section: section,
		Detail:  fmt.Sprintf("declared size %d but %d bytes consumed", declared, consumed),
		Offset:  -1,
	}
}

// SectionOrder creates an out-of-order or duplicate section error
func SectionOrder(section string, offset int) *Error {
	return &Error{
		Phase:   PhaseDecode,
		Kind:    KindSectionOrder,
		Section: section,
		Detail:  "section out of order or duplicated",
		Offset:  offset,
	}
}

// UnknownOpcode creates an unknown opcode error
func UnknownOpcode(offset int, opcode uint32) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnknownOpcode,
		Detail: fmt.Sprintf("opcode 0x%02x", opcode),
		Offset: offset,
		Value:  opcode,
	}
}

// Unsupported creates an unsupported feature error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
		Offset: -1,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
		Offset: -1,
	}
}

// TypeMismatch creates an operand type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("want %s, got %s", want, got),
		Offset: -1,
	}
}

// BadIndex creates an out-of-range index error
func BadIndex(phase Phase, path []string, space string, index, limit uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBadIndex,
		Path:   path,
		Detail: fmt.Sprintf("%s index %d out of range (have %d)", space, index, limit),
		Offset: -1,
		Value:  index,
	}
}

// InvalidID creates an out-of-range arena handle error
func InvalidID(what string, id, length uint32) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindInvalidID,
		Detail: fmt.Sprintf("%s id %d not allocated by this module (arena holds %d)", what, id, length),
		Offset: -1,
		Value:  id,
	}
}

// DanglingID creates an internal dangling handle error
func DanglingID(what string, id uint32) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindDanglingID,
		Detail: fmt.Sprintf("%s id %d survived dead-id elimination without an entry", what, id),
		Offset: -1,
		Value:  id,
	}
}

// BadTarget creates a branch target error
func BadTarget(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindBadTarget,
		Path:   path,
		Detail: detail,
		Offset: -1,
	}
}

// BadState creates an API misuse error
func BadState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBadState,
		Detail: detail,
		Offset: -1,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
		Offset: -1,
	}
}
