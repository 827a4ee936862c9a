package conformance_test

import (
	"context"
	"testing"

	wasmir "github.com/wippyai/wasm-ir"
	"github.com/wippyai/wasm-ir/conformance"
	"github.com/wippyai/wasm-ir/ir"
)

// The corpus below is authored through the builder and emitted with the
// library's own encoder, then handed to wazero. Each module exercises a
// different slice of the binary format: plain bodies, loops and
// branches, imports, memories with active data, indirect calls through
// an element-initialized table, multi-value blocks, globals and the
// start section.

func emit(t *testing.T, m *ir.Module) []byte {
	t.Helper()
	data, err := wasmir.Emit(m, ir.NewConfig())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	return data
}

func constModule(t *testing.T) []byte {
	t.Helper()
	m := ir.New()
	fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
	c := fb.Body()
	c.I32Const(42)
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("run", fid)
	return emit(t, m)
}

// sumLoopModule adds the integers 1 through 10 with a loop that branches
// back to its own header, the shape renumbering and branch resolution
// must not disturb.
func sumLoopModule(t *testing.T) []byte {
	t.Helper()
	m := ir.New()
	fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
	i := fb.AddLocal(ir.I32)
	acc := fb.AddLocal(ir.I32)
	c := fb.Body()
	c.Loop(ir.SeqVoid(), func(seq ir.InstrSeqID) {
		c.LocalGet(i).I32Const(1).Binop(ir.I32Add).LocalSet(i)
		c.LocalGet(acc).LocalGet(i).Binop(ir.I32Add).LocalSet(acc)
		c.LocalGet(i).I32Const(10).Binop(ir.I32LtS).BrIf(seq)
	})
	c.LocalGet(acc)
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("sum", fid)
	return emit(t, m)
}

// importCallModule is compile-only: it calls an unresolved import from
// inside a loop, so it can be checked by the reference compiler but not
// instantiated.
func importCallModule(t *testing.T) []byte {
	t.Helper()
	m := ir.New()
	tickTy := m.AddFuncType([]ir.ValType{ir.I32}, nil)
	tick, _ := m.ImportFunc("env", "tick", tickTy)

	fb := ir.NewFunctionBuilder(m, []ir.ValType{ir.I32}, nil)
	n := fb.Args()[0]
	c := fb.Body()
	c.Loop(ir.SeqVoid(), func(seq ir.InstrSeqID) {
		c.LocalGet(n).Call(tick)
		c.LocalGet(n).I32Const(1).Binop(ir.I32Add).LocalSet(n)
		c.LocalGet(n).I32Const(10).Binop(ir.I32LtS).BrIf(seq)
	})
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("pump", fid)
	return emit(t, m)
}

func memoryReadModule(t *testing.T) []byte {
	t.Helper()
	m := ir.New()
	mem := m.AddMemory(ir.Limits{Min: 1})
	m.Data.Alloc(ir.DataSegment{
		Kind:   ir.DataActive,
		Memory: mem,
		Offset: ir.ConstExprValue(ir.ConstI32(8)),
		Value:  []byte("hi"),
	})

	fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
	c := fb.Body()
	c.I32Const(0).Load(mem, ir.LoadI32, ir.MemArg{Align: 2, Offset: 8})
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("read", fid)
	return emit(t, m)
}

func dispatchModule(t *testing.T) []byte {
	t.Helper()
	m := ir.New()

	handler := func(v int32) ir.FunctionID {
		fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
		c := fb.Body()
		c.I32Const(v)
		fid, err := c.Finish()
		if err != nil {
			t.Fatalf("build handler: %v", err)
		}
		return fid
	}
	h0, h1 := handler(10), handler(20)

	two := uint64(2)
	tbl := m.AddTable(ir.FuncRef, ir.Limits{Min: 2, Max: &two})
	m.Elements.Alloc(ir.ElementSegment{
		Kind:    ir.ElementActive,
		Table:   tbl,
		Offset:  ir.ConstExprValue(ir.ConstI32(0)),
		Members: []ir.FunctionID{h0, h1},
	})

	retTy := m.AddFuncType(nil, []ir.ValType{ir.I32})
	fb := ir.NewFunctionBuilder(m, []ir.ValType{ir.I32}, []ir.ValType{ir.I32})
	c := fb.Body()
	c.LocalGet(fb.Args()[0]).CallIndirect(retTy, tbl)
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build dispatch: %v", err)
	}
	m.ExportFunc("dispatch", fid)
	return emit(t, m)
}

func multiValueModule(t *testing.T) []byte {
	t.Helper()
	m := ir.New()
	pair := m.AddFuncType(nil, []ir.ValType{ir.I32, ir.I32})

	fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
	c := fb.Body()
	if _, err := fb.StartBlock(ir.FuncSeqType(pair)); err != nil {
		t.Fatalf("start block: %v", err)
	}
	c.I32Const(3).I32Const(4)
	if err := fb.End(); err != nil {
		t.Fatalf("end block: %v", err)
	}
	c.Binop(ir.I32Add)
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("pairsum", fid)
	return emit(t, m)
}

// startGlobalModule relies on the start section running at
// instantiation: the getter only sees 9 if the start function ran.
func startGlobalModule(t *testing.T) []byte {
	t.Helper()
	m := ir.New()
	g := m.AddGlobal(ir.I32, true, ir.ConstExprValue(ir.ConstI32(0)))

	ib := ir.NewFunctionBuilder(m, nil, nil)
	ic := ib.Body()
	ic.I32Const(9).GlobalSet(g)
	initFn, err := ic.Finish()
	if err != nil {
		t.Fatalf("build init: %v", err)
	}
	m.SetStart(initFn)

	gb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
	gc := gb.Body()
	gc.GlobalGet(g)
	getFn, err := gc.Finish()
	if err != nil {
		t.Fatalf("build get: %v", err)
	}
	m.ExportFunc("get", getFn)
	return emit(t, m)
}

func corpus(t *testing.T) map[string][]byte {
	t.Helper()
	return map[string][]byte{
		"const":        constModule(t),
		"sum_loop":     sumLoopModule(t),
		"import_call":  importCallModule(t),
		"memory_read":  memoryReadModule(t),
		"dispatch":     dispatchModule(t),
		"multi_value":  multiValueModule(t),
		"start_global": startGlobalModule(t),
	}
}

func TestDifferential_Corpus(t *testing.T) {
	ctx := context.Background()

	stripped := ir.NewConfig()
	stripped.EmitNameSection = false
	stripped.EmitProducersSection = false
	stripped.PreserveCustomSections = false

	configs := map[string]ir.Config{
		"default":  ir.NewConfig(),
		"stripped": stripped,
	}

	for name, data := range corpus(t) {
		for cfgName, cfg := range configs {
			t.Run(name+"/"+cfgName, func(t *testing.T) {
				if err := conformance.Differential(ctx, data, cfg); err != nil {
					t.Fatal(err)
				}
			})
		}
	}
}

func TestDifferential_RejectedInput(t *testing.T) {
	ctx := context.Background()
	garbage := []byte("definitely not wasm")

	if err := conformance.Compile(ctx, garbage); err == nil {
		t.Fatal("reference accepted garbage input")
	}
	if err := conformance.Differential(ctx, garbage, ir.NewConfig()); err != nil {
		t.Fatalf("differential on rejected input: %v", err)
	}
}

func TestRun_PreservesBehavior(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name   string
		data   []byte
		export string
		args   []uint64
		want   uint64
	}{
		{"const", constModule(t), "run", nil, 42},
		{"sum_loop", sumLoopModule(t), "sum", nil, 55},
		{"memory_read", memoryReadModule(t), "read", nil, 0x6968}, // "hi" little-endian
		{"dispatch_0", dispatchModule(t), "dispatch", []uint64{0}, 10},
		{"dispatch_1", dispatchModule(t), "dispatch", []uint64{1}, 20},
		{"multi_value", multiValueModule(t), "pairsum", nil, 7},
		{"start_global", startGlobalModule(t), "get", nil, 9},
	} {
		t.Run(tc.name, func(t *testing.T) {
			before, err := conformance.Run(ctx, tc.data, tc.export, tc.args...)
			if err != nil {
				t.Fatalf("run original: %v", err)
			}
			if len(before) != 1 || before[0] != tc.want {
				t.Fatalf("original %s = %v, want [%d]", tc.export, before, tc.want)
			}

			out, err := wasmir.RoundTrip(tc.data, ir.NewConfig())
			if err != nil {
				t.Fatalf("round trip: %v", err)
			}
			after, err := conformance.Run(ctx, out, tc.export, tc.args...)
			if err != nil {
				t.Fatalf("run re-encoded: %v", err)
			}
			if len(after) != 1 || after[0] != tc.want {
				t.Fatalf("re-encoded %s = %v, want [%d]", tc.export, after, tc.want)
			}
		})
	}
}
