// Package ir holds WebAssembly modules in memory as typed entity arenas
// connected by IDs, decoupled from binary format index spaces.
//
// # Identifiers and Arenas
//
// Every entity kind (types, functions, tables, memories, globals,
// segments, exports, imports) lives in its own Arena and is addressed by
// its own ID type. IDs are dense uint32 handles in allocation order; an
// ID is only meaningful for the module that allocated it. Entities are
// never removed from an arena. Encoding drops entities that are not
// reachable from an export or the start function and renumbers the rest,
// so deleting something is simply ceasing to reference it.
//
// # Instruction Sequences
//
// Function bodies are trees of instruction sequences rather than flat
// instruction streams. Each block, loop and if arm is its own InstrSeq,
// and branch instructions carry the InstrSeqID of their target sequence
// instead of a relative label depth. Relative depths exist only in the
// binary format; they are resolved into IDs once during decoding and
// derived again during encoding. Moving or wrapping code therefore never
// invalidates a branch.
//
// # Building Functions
//
// FunctionBuilder assembles one body while checking operand types
// against a stack of open sequences, the same discipline a validator
// applies to the flat format. The Cursor front end latches the first
// error so bodies can be written fluently:
//
//	m := ir.New()
//	b := ir.NewFunctionBuilder(m, []ir.ValType{ir.I32}, []ir.ValType{ir.I32})
//	arg := b.Args()[0]
//	c := b.Body()
//	c.LocalGet(arg).I32Const(1).Binop(ir.I32Add)
//	id, err := c.Finish()
//
// Decoding uses the same builder through StartBlock, Else, End, Label
// and Append, replaying the flat stream into the tree form.
//
// # Features
//
// Config.Features gates post-1.0 proposals (sign extension, saturating
// truncation, bulk memory, multi-value, reference types). The zero
// Config accepts core modules only; NewConfig enables the full supported
// set.
package ir
