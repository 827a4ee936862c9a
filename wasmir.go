package wasmir

import (
	"github.com/wippyai/wasm-ir/decode"
	"github.com/wippyai/wasm-ir/encode"
	"github.com/wippyai/wasm-ir/ir"
)

// Parse decodes a WebAssembly binary into an ir.Module. Unless
// cfg.SkipValidation is set the module is also validated, with every
// finding collected into the returned validate.Errors value.
func Parse(data []byte, cfg ir.Config) (*ir.Module, error) {
	return decode.Decode(data, cfg)
}

// Emit encodes a module into the canonical binary form, keeping only
// entities reachable from exports and the start function.
func Emit(m *ir.Module, cfg ir.Config) ([]byte, error) {
	return encode.Encode(m, cfg)
}

// RoundTrip decodes a binary and re-encodes it canonically with the
// same configuration.
func RoundTrip(data []byte, cfg ir.Config) ([]byte, error) {
	m, err := Parse(data, cfg)
	if err != nil {
		return nil, err
	}
	return Emit(m, cfg)
}
