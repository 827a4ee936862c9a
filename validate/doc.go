// Package validate checks whole modules and reports every finding at
// once instead of stopping at the first.
//
// The pass is complementary to the checks the ir package performs while
// code is being written: ir.FunctionBuilder enforces operand typing
// instruction by instruction, so this package concentrates on whole
// module properties. It verifies that every cross-arena reference
// resolves, that limits fit their ranges, that initializer expressions
// are constant and correctly typed, that export names are unique, that
// the start function is nullary, and that each body's sequences form a
// tree whose branches only target enclosing sequences.
package validate
