// Package errors provides structured error types for the wasm-ir library.
//
// Errors are categorized by Phase (which pipeline stage failed) and Kind
// (error category). The Error type includes rich context: a location path,
// the wire-format section, the byte offset, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindMalformedVarint).
//		Section("code").
//		Offset(pos).
//		Detail("continuation bit set past byte 5").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseBuild, path, "i32", "f64")
//	err := errors.BadIndex(errors.PhaseValidate, path, "local", 7, 3)
//
// All errors implement the standard error interface and support errors.Is/As.
// PhaseOf and KindOf extract the classification from a wrapped chain, which
// is how callers map failures to exit codes without string matching.
package errors
