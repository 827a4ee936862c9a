// Package wasmir provides an in-memory intermediate representation for
// WebAssembly core modules: a streaming binary decoder, an arena-backed
// data model with an authoring builder, a collect-all validator and a
// canonicalizing encoder.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmir/              Root package with the decode/encode facade
//	├── ir/              Module model: arenas, typed ids, instruction tree, builder
//	├── decode/          Binary format reader producing ir.Module values
//	├── validate/        Whole-module semantic checks, collected rather than fail-fast
//	├── encode/          Dead-id elimination, renumbering and canonical emission
//	├── errors/          Structured error types tagged with phase and kind
//	├── conformance/     Differential checks against a reference runtime
//	└── internal/binary/ LEB128 and section framing primitives
//
// # Quick Start
//
// Rewrite a module to canonical form:
//
//	m, err := wasmir.Parse(input, ir.NewConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := wasmir.Emit(m, ir.NewConfig())
//
// Author a module from nothing:
//
//	m := ir.New()
//	fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
//	c := fb.Body()
//	c.I32Const(42)
//	fid, err := c.Finish()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m.ExportFunc("answer", fid)
//	out, err := wasmir.Emit(m, ir.NewConfig())
//
// # Ids and Arenas
//
// Every entity lives in an arena on its Module and is addressed by a
// typed id (ir.FunctionID, ir.TypeID, ...). Ids are stable for the life
// of the module: arenas only append, nothing moves. Cross-references,
// including branch targets inside function bodies, are ids rather than
// the binary format's relative indices and depths, so structural edits
// never invalidate them. Dense wire indices are recomputed from scratch
// on every encode.
//
// # Dead-Id Elimination
//
// The encoder emits only entities reachable from the module's exports
// and start function. Anything else, including unused imports and the
// type signatures only they referenced, is dropped from the output.
// Decoding the result and encoding it again reproduces the same bytes.
//
// # Thread Safety
//
// A Module is owned by one goroutine at a time. Decode, validate and
// encode never share mutable state between calls; the encoder's optional
// parallel mode only reads the module and is byte-identical to the
// serial path.
package wasmir
