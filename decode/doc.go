// Package decode parses the WebAssembly binary format into ir modules.
//
// Decoding is strict about structure. Varints may be non-minimal but
// never over-long, section sizes must match what their parsers consume,
// and known sections must appear in canonical order at most once.
// Custom sections and sections with unknown IDs are the exception: they
// are skipped and recorded rather than failing the decode, since both
// are legal extension points.
//
// Branch instructions in the wire format address their targets by
// relative nesting depth. The decoder resolves each depth against the
// block structure while it replays the body, so the resulting ir stores
// only direct sequence references and never needs depth arithmetic
// again.
//
// The "name" and "producers" custom sections are parsed into the module
// itself. Everything else custom is kept verbatim when
// ir.Config.PreserveCustomSections is set.
package decode
