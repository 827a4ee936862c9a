// Package conformance checks encoder output against an independent
// WebAssembly implementation (wazero). It lives outside the core
// library on purpose: nothing under decode, validate or encode links a
// runtime, and these helpers exist only so tests can hold the encoder
// to what a second implementation accepts and computes.
package conformance

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"

	wasmir "github.com/wippyai/wasm-ir"
	"github.com/wippyai/wasm-ir/ir"
)

// Compile reports whether the reference implementation accepts the
// module bytes. The module is compiled and discarded, never
// instantiated, so unresolved imports do not matter here.
func Compile(ctx context.Context, data []byte) error {
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return err
	}
	return compiled.Close(ctx)
}

// Run instantiates the module bytes under the reference implementation
// and calls the named export. The module must be self-contained; the
// start section, if any, runs during instantiation.
func Run(ctx context.Context, data []byte, export string, args ...uint64) ([]uint64, error) {
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return nil, err
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("conformance"))
	if err != nil {
		return nil, err
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("module has no exported function %q", export)
	}
	return fn.Call(ctx, args...)
}

// Differential holds the encoder to its re-encoding promise: whenever
// the reference implementation accepts the input and the library
// round-trips it, the re-encoded bytes must be accepted too. The
// library rejecting something the reference takes is not a
// disagreement; the feature configuration is allowed to be stricter.
func Differential(ctx context.Context, data []byte, cfg ir.Config) error {
	if err := Compile(ctx, data); err != nil {
		return nil
	}
	out, err := wasmir.RoundTrip(data, cfg)
	if err != nil {
		return nil
	}
	if err := Compile(ctx, out); err != nil {
		return fmt.Errorf("re-encoded module rejected by the reference implementation: %w", err)
	}
	return nil
}
