// Package encode serializes ir modules back into the WebAssembly binary
// format, canonically and deterministically.
//
// Encoding begins with dead-id elimination: a reachability walk from the
// exports and the start function decides which entities are emitted.
// Surviving entities are renumbered into dense wire indices, imports
// first within each index space, preserving their relative order. The
// output therefore never mentions an arena ID; everything an instruction
// or section refers to is translated through the renumbering maps, and a
// reference that escaped the reachability walk is reported as an
// encode-phase defect rather than miscompiled.
//
// Sections are written in canonical order with minimal LEB128 sizes and
// immediates, so encoding the same module twice, or re-encoding a decode
// of the output, reproduces the exact same bytes. Function bodies are
// serialized independently of one another; ir.Config.ParallelEncoding
// spreads them across goroutines without changing a byte of the output.
//
// Branch targets are stored in the ir as direct sequence references. The
// body encoder walks the sequence tree with a live control stack and
// turns each reference back into the relative depth the wire format
// wants.
package encode
