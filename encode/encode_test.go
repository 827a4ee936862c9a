package encode_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/wippyai/wasm-ir/decode"
	"github.com/wippyai/wasm-ir/encode"
	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// Expected binaries are assembled by hand with the helpers at the bottom
// of the file, the same wire shorthand the decoder tests use. Byte-level
// comparisons run with plain(), which turns off the synthesized name and
// producers sections so the output contains nothing but the module itself.

func TestEncode_EmptyModule(t *testing.T) {
	out, err := encode.Encode(ir.New(), plain())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(out, mod()) {
		t.Fatalf("empty module = %x, want bare header", out)
	}
}

func TestEncode_BuilderOutputCanonical(t *testing.T) {
	m := ir.New()
	fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
	c := fb.Body()
	c.I32Const(42)
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("answer", fid)

	out, err := encode.Encode(m, plain())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(out, simpleModule()) {
		t.Fatalf("encoded module differs from the hand-assembled form:\n got: %x\nwant: %x",
			out, simpleModule())
	}
}

func TestEncode_RoundTripPreservesBytes(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"simple", simpleModule()},
		{"import_loop", loopExportModule()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := decode.Decode(tc.data, ir.NewConfig())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			out, err := encode.Encode(m, plain())
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if !bytes.Equal(out, tc.data) {
				t.Fatalf("canonical input did not survive the round trip:\n got: %x\nwant: %x",
					out, tc.data)
			}
		})
	}
}

// TestEncode_ImportedFuncCallLoop runs the import-and-loop module through
// decode, encode and decode again, then checks the rebuilt structure: both
// functions present, one import, and a single loop whose only branch
// targets the loop's own sequence.
func TestEncode_ImportedFuncCallLoop(t *testing.T) {
	cfg := ir.NewConfig()
	m1, err := decode.Decode(loopExportModule(), cfg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := encode.Encode(m1, cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(out, cfg)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}

	if m2.Funcs.Len() != 2 {
		t.Fatalf("funcs = %d, want 2", m2.Funcs.Len())
	}
	if m2.NumImportedFuncs() != 1 || m2.Imports.Len() != 1 {
		t.Fatalf("imports = %d (arena %d), want 1", m2.NumImportedFuncs(), m2.Imports.Len())
	}
	if !m2.Funcs.MustGet(0).Imported() {
		t.Fatal("function 0 should be the import")
	}

	fn := m2.Funcs.MustGet(1)
	if fn.Local == nil {
		t.Fatal("second function should carry the body")
	}

	var loops []ir.InstrSeqID
	calls := 0
	err = fn.Local.WalkInstrs(func(_ ir.InstrSeqID, _ int, in ir.Instr) error {
		switch i := in.(type) {
		case ir.Loop:
			loops = append(loops, i.Seq)
		case ir.Call:
			if i.Func != 0 {
				return fmt.Errorf("call targets func %d, want the import", i.Func)
			}
			calls++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(loops) != 1 {
		t.Fatalf("found %d loops, want 1", len(loops))
	}
	if calls != 1 {
		t.Fatalf("found %d calls, want 1", calls)
	}

	inner := fn.Local.Seqs.MustGet(loops[0])
	branches := 0
	for _, in := range inner.Instrs {
		switch i := in.(type) {
		case ir.Br:
			t.Fatalf("unexpected unconditional branch to seq %d", i.Target)
		case ir.BrIf:
			if i.Target != loops[0] {
				t.Fatalf("branch targets seq %d, want the loop's own seq %d", i.Target, loops[0])
			}
			branches++
		}
	}
	if branches != 1 {
		t.Fatalf("loop body has %d branches, want 1", branches)
	}
}

func TestEncode_Idempotent(t *testing.T) {
	cfg := ir.NewConfig()
	m1, err := decode.Decode(loopExportModule(), cfg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	first, err := encode.Encode(m1, cfg)
	if err != nil {
		t.Fatalf("first encode: %v", err)
	}
	m2, err := decode.Decode(first, cfg)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	second, err := encode.Encode(m2, cfg)
	if err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("encoding is not idempotent:\n first: %x\nsecond: %x", first, second)
	}
}

// TestEncode_NonMinimalVarintsCanonicalized feeds the decoder a module
// whose section size and constant immediate are padded to five bytes.
// The encoder must emit the minimal forms, which for this module is
// exactly the hand-assembled canonical binary.
func TestEncode_NonMinimalVarintsCanonicalized(t *testing.T) {
	codeBody := body([]byte{0x41, 0xAA, 0x80, 0x80, 0x80, 0x00, 0x0B})
	codePayload := vec(codeBody)
	fatCode := append([]byte{10}, 0x80|byte(len(codePayload)), 0x80, 0x80, 0x80, 0x00)
	fatCode = append(fatCode, codePayload...)

	padded := mod(
		sec(1, vec([]byte{0x60, 0x00, 0x01, 0x7F})),
		sec(3, vec([]byte{0x00})),
		sec(7, vec(append(str("answer"), 0x00, 0x00))),
		fatCode,
	)

	m, err := decode.Decode(padded, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := encode.Encode(m, plain())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(out, simpleModule()) {
		t.Fatalf("padded varints were not canonicalized:\n got: %x\nwant: %x",
			out, simpleModule())
	}
}

// TestEncode_DeadEntitiesDropped builds a module where only one export
// anchors the live set: a function that calls a helper. The unused
// import, the uncalled function, its private signature and the unread
// global must all disappear, and the survivors must keep their order.
func TestEncode_DeadEntitiesDropped(t *testing.T) {
	m := ir.New()
	voidTy := m.AddFuncType(nil, nil)
	m.ImportFunc("env", "unused", voidTy)

	hb := ir.NewFunctionBuilder(m, nil, nil)
	helper, err := hb.Body().Finish()
	if err != nil {
		t.Fatalf("build helper: %v", err)
	}

	db := ir.NewFunctionBuilder(m, []ir.ValType{ir.F64}, []ir.ValType{ir.F64})
	dc := db.Body()
	dc.LocalGet(db.Args()[0])
	if _, err := dc.Finish(); err != nil {
		t.Fatalf("build dead func: %v", err)
	}

	mb := ir.NewFunctionBuilder(m, nil, nil)
	mc := mb.Body()
	mc.Call(helper)
	main, err := mc.Finish()
	if err != nil {
		t.Fatalf("build main: %v", err)
	}

	m.AddGlobal(ir.I32, false, ir.ConstExprValue(ir.ConstI32(7)))
	m.ExportFunc("main", main)

	out, err := encode.Encode(m, ir.NewConfig())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(out, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if m2.Imports.Len() != 0 {
		t.Fatalf("imports = %d, want 0", m2.Imports.Len())
	}
	if m2.Funcs.Len() != 2 {
		t.Fatalf("funcs = %d, want 2", m2.Funcs.Len())
	}
	if m2.Globals.Len() != 0 {
		t.Fatalf("globals = %d, want 0", m2.Globals.Len())
	}
	if m2.Types.Len() != 1 {
		t.Fatalf("types = %d, want only the shared signature", m2.Types.Len())
	}

	// The helper was allocated first, so it keeps the lower index.
	exp := m2.Exports.MustGet(0)
	if exp.Name != "main" || exp.Func != 1 {
		t.Fatalf("export = %+v, want main -> func 1", exp)
	}
	entry := m2.Funcs.MustGet(1).Local.Seqs.MustGet(m2.Funcs.MustGet(1).Local.Entry)
	if len(entry.Instrs) != 1 {
		t.Fatalf("main has %d instructions, want 1", len(entry.Instrs))
	}
	call, ok := entry.Instrs[0].(ir.Call)
	if !ok || call.Func != 0 {
		t.Fatalf("main entry = %+v, want a call to func 0", entry.Instrs[0])
	}
}

func TestEncode_ParallelMatchesSerial(t *testing.T) {
	m := ir.New()
	for n := 0; n < 8; n++ {
		fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
		c := fb.Body()
		c.I32Const(int32(n * 11))
		fid, err := c.Finish()
		if err != nil {
			t.Fatalf("build func %d: %v", n, err)
		}
		m.ExportFunc(fmt.Sprintf("f%d", n), fid)
	}

	serial, err := encode.Encode(m, plain())
	if err != nil {
		t.Fatalf("serial encode: %v", err)
	}

	cfg := plain()
	cfg.ParallelEncoding = true
	parallel, err := encode.Encode(m, cfg)
	if err != nil {
		t.Fatalf("parallel encode: %v", err)
	}

	if !bytes.Equal(serial, parallel) {
		t.Fatalf("parallel output differs from serial:\n serial: %x\nparallel: %x",
			serial, parallel)
	}
	m2, err := decode.Decode(parallel, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m2.Funcs.Len() != 8 {
		t.Fatalf("funcs = %d, want 8", m2.Funcs.Len())
	}
}

func TestEncode_NameSection(t *testing.T) {
	m := ir.New()
	m.Name = "calc"
	fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
	scratch := fb.AddLocal(ir.I32)
	c := fb.Body()
	c.I32Const(3).LocalTee(scratch)
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.Funcs.MustGet(fid).Name = "main"
	m.Funcs.MustGet(fid).Local.Locals.MustGet(scratch).Name = "scratch"
	m.ExportFunc("main", fid)

	out, err := encode.Encode(m, ir.NewConfig())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(out, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m2.Name != "calc" {
		t.Fatalf("module name = %q, want calc", m2.Name)
	}
	fn := m2.Funcs.MustGet(0)
	if fn.Name != "main" {
		t.Fatalf("func name = %q, want main", fn.Name)
	}
	if got := fn.Local.Locals.MustGet(0).Name; got != "scratch" {
		t.Fatalf("local name = %q, want scratch", got)
	}

	cfg := ir.NewConfig()
	cfg.EmitNameSection = false
	out, err = encode.Encode(m, cfg)
	if err != nil {
		t.Fatalf("encode without names: %v", err)
	}
	m3, err := decode.Decode(out, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m3.Name != "" || m3.Funcs.MustGet(0).Name != "" {
		t.Fatalf("names survived with the section disabled: module %q, func %q",
			m3.Name, m3.Funcs.MustGet(0).Name)
	}
}

func TestEncode_ProducersStamped(t *testing.T) {
	m := ir.New()
	m.Producers.AddLanguage("go", "1.25")
	fb := ir.NewFunctionBuilder(m, nil, nil)
	fid, err := fb.Body().Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("noop", fid)

	cfg := ir.NewConfig()
	first, err := encode.Encode(m, cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(first, cfg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(m2.Producers.Fields) != 2 {
		t.Fatalf("producer fields = %d, want language plus processed-by", len(m2.Producers.Fields))
	}
	if m2.Producers.Fields[0].Name != "language" {
		t.Fatalf("field order changed: first is %q", m2.Producers.Fields[0].Name)
	}
	stamped := false
	for _, f := range m2.Producers.Fields {
		if f.Name != "processed-by" {
			continue
		}
		for _, v := range f.Values {
			if v.Name == "wasm-ir" && v.Version != "" {
				stamped = true
			}
		}
	}
	if !stamped {
		t.Fatal("processed-by entry for wasm-ir is missing")
	}

	// The stamp refreshes in place, so a second pass is byte-identical.
	second, err := encode.Encode(m2, cfg)
	if err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("producers stamping is not idempotent:\n first: %x\nsecond: %x", first, second)
	}

	// Stamping must not reach back into the caller's module.
	if len(m.Producers.Fields) != 1 {
		t.Fatalf("encode mutated the source module: %d fields", len(m.Producers.Fields))
	}
}

func TestEncode_CustomSectionsPreserved(t *testing.T) {
	m := ir.New()
	fb := ir.NewFunctionBuilder(m, nil, nil)
	fid, err := fb.Body().Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("noop", fid)
	m.Customs = append(m.Customs, ir.CustomSection{Name: "source-map", Data: []byte{1, 2, 3}})

	out, err := encode.Encode(m, ir.NewConfig())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(out, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(m2.Customs) != 1 || m2.Customs[0].Name != "source-map" {
		t.Fatalf("customs = %+v, want the source-map section", m2.Customs)
	}
	if !bytes.Equal(m2.Customs[0].Data, []byte{1, 2, 3}) {
		t.Fatalf("custom payload = %x, want 010203", m2.Customs[0].Data)
	}

	cfg := ir.NewConfig()
	cfg.PreserveCustomSections = false
	out, err = encode.Encode(m, cfg)
	if err != nil {
		t.Fatalf("encode without customs: %v", err)
	}
	m3, err := decode.Decode(out, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(m3.Customs) != 0 {
		t.Fatalf("customs survived with preservation disabled: %+v", m3.Customs)
	}
}

// TestEncode_DataCountSection checks that the data count section appears
// exactly when a live body uses memory.init or data.drop, and that it
// lands between the element and code sections.
func TestEncode_DataCountSection(t *testing.T) {
	t.Run("active_only", func(t *testing.T) {
		m := ir.New()
		mem := m.AddMemory(ir.Limits{Min: 1})
		m.Data.Alloc(ir.DataSegment{
			Kind:   ir.DataActive,
			Memory: mem,
			Offset: ir.ConstExprValue(ir.ConstI32(8)),
			Value:  []byte("hi"),
		})
		m.ExportMemory("mem", mem)

		out, err := encode.Encode(m, plain())
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got := sectionIDs(t, out)
		want := []byte{5, 7, 11}
		if !bytes.Equal(got, want) {
			t.Fatalf("sections = %v, want %v", got, want)
		}
	})

	t.Run("bulk_init", func(t *testing.T) {
		m := ir.New()
		mem := m.AddMemory(ir.Limits{Min: 1})
		seg := m.Data.Alloc(ir.DataSegment{Kind: ir.DataPassive, Value: []byte{0xCA, 0xFE}})

		fb := ir.NewFunctionBuilder(m, nil, nil)
		c := fb.Body()
		c.I32Const(0).I32Const(0).I32Const(2)
		if err := fb.Append(ir.MemoryInit{Memory: mem, Data: seg}); err != nil {
			t.Fatalf("append memory.init: %v", err)
		}
		fid, err := c.Finish()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		m.ExportFunc("init", fid)

		out, err := encode.Encode(m, plain())
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got := sectionIDs(t, out)
		want := []byte{1, 3, 5, 7, 12, 10, 11}
		if !bytes.Equal(got, want) {
			t.Fatalf("sections = %v, want %v", got, want)
		}

		m2, err := decode.Decode(out, ir.NewConfig())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m2.Data.Len() != 1 || m2.Data.MustGet(0).Kind != ir.DataPassive {
			t.Fatalf("passive segment did not survive: %d segments", m2.Data.Len())
		}
	})
}

func TestEncode_BlockTypeForms(t *testing.T) {
	m := ir.New()
	pair := m.AddFuncType(nil, []ir.ValType{ir.I32, ir.I32})

	fb := ir.NewFunctionBuilder(m, nil, []ir.ValType{ir.I32})
	c := fb.Body()
	c.Block(ir.SeqVoid(), func(ir.InstrSeqID) { c.Nop() })
	c.Block(ir.SeqResult(ir.I32), func(ir.InstrSeqID) { c.I32Const(40) })
	if _, err := fb.StartBlock(ir.FuncSeqType(pair)); err != nil {
		t.Fatalf("start block: %v", err)
	}
	c.I32Const(1).I32Const(1)
	if err := fb.End(); err != nil {
		t.Fatalf("end block: %v", err)
	}
	c.Binop(ir.I32Add).Binop(ir.I32Add)
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("sum", fid)

	cfg := ir.NewConfig()
	first, err := encode.Encode(m, cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(first, cfg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Only the function signature and the multi-value block type need
	// entries in the type section.
	if m2.Types.Len() != 2 {
		t.Fatalf("types = %d, want 2", m2.Types.Len())
	}

	var void, single, multi int
	fn := m2.Funcs.MustGet(0)
	err = fn.Local.WalkInstrs(func(_ ir.InstrSeqID, _ int, in ir.Instr) error {
		b, ok := in.(ir.Block)
		if !ok {
			return nil
		}
		ty := fn.Local.Seqs.MustGet(b.Seq).Ty
		switch {
		case ty.Kind == ir.SeqSimple && ty.Result == nil:
			void++
		case ty.Kind == ir.SeqSimple && *ty.Result == ir.I32:
			single++
		case ty.Kind == ir.SeqFunc:
			results, err := ty.Results(m2)
			if err != nil {
				return err
			}
			if len(results) != 2 {
				return fmt.Errorf("multi-value block has %d results", len(results))
			}
			multi++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if void != 1 || single != 1 || multi != 1 {
		t.Fatalf("blocks = %d void, %d single, %d multi, want one of each", void, single, multi)
	}

	second, err := encode.Encode(m2, cfg)
	if err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("block types are not stable across a round trip")
	}
}

func TestEncode_IfElse(t *testing.T) {
	m := ir.New()

	fb := ir.NewFunctionBuilder(m, []ir.ValType{ir.I32}, []ir.ValType{ir.I32})
	entry, err := fb.Label(0)
	if err != nil {
		t.Fatalf("label: %v", err)
	}
	c := fb.Body()
	c.LocalGet(fb.Args()[0])
	c.IfElse(ir.SeqResult(ir.I32),
		func(ir.InstrSeqID) { c.I32Const(7).Br(entry) },
		func(ir.InstrSeqID) { c.I32Const(-1) })
	sign, err := c.Finish()
	if err != nil {
		t.Fatalf("build sign: %v", err)
	}
	m.ExportFunc("sign", sign)

	gb := ir.NewFunctionBuilder(m, []ir.ValType{ir.I32}, nil)
	gc := gb.Body()
	gc.LocalGet(gb.Args()[0])
	gc.If(ir.SeqVoid(), func(ir.InstrSeqID) { gc.Nop() })
	gate, err := gc.Finish()
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}
	m.ExportFunc("gate", gate)

	cfg := ir.NewConfig()
	first, err := encode.Encode(m, cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(first, cfg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	fn := m2.Funcs.MustGet(0)
	ifElse := findIfElse(t, fn.Local)
	cons := fn.Local.Seqs.MustGet(ifElse.Consequent)
	alt := fn.Local.Seqs.MustGet(ifElse.Alternative)
	if len(cons.Instrs) != 2 {
		t.Fatalf("consequent has %d instructions, want const then br", len(cons.Instrs))
	}
	br, ok := cons.Instrs[1].(ir.Br)
	if !ok || br.Target != fn.Local.Entry {
		t.Fatalf("consequent[1] = %+v, want a branch to the entry", cons.Instrs[1])
	}
	if len(alt.Instrs) != 1 {
		t.Fatalf("alternative has %d instructions, want 1", len(alt.Instrs))
	}

	// The else-less form stays else-less.
	fn2 := m2.Funcs.MustGet(1)
	ifElse2 := findIfElse(t, fn2.Local)
	if n := len(fn2.Local.Seqs.MustGet(ifElse2.Alternative).Instrs); n != 0 {
		t.Fatalf("empty alternative grew %d instructions", n)
	}

	second, err := encode.Encode(m2, cfg)
	if err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("if-else encoding is not stable across a round trip")
	}
}

func TestEncode_BrTable(t *testing.T) {
	m := ir.New()
	fb := ir.NewFunctionBuilder(m, []ir.ValType{ir.I32}, nil)
	entry, err := fb.Label(0)
	if err != nil {
		t.Fatalf("label: %v", err)
	}
	c := fb.Body()
	c.Block(ir.SeqVoid(), func(seq ir.InstrSeqID) {
		c.LocalGet(fb.Args()[0])
		c.BrTable([]ir.InstrSeqID{seq, entry}, entry)
	})
	fid, err := c.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("dispatch", fid)

	cfg := ir.NewConfig()
	out, err := encode.Encode(m, cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(out, cfg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	fn := m2.Funcs.MustGet(0)
	var table *ir.BrTable
	var home ir.InstrSeqID
	err = fn.Local.WalkInstrs(func(seq ir.InstrSeqID, _ int, in ir.Instr) error {
		if bt, ok := in.(ir.BrTable); ok {
			table = &bt
			home = seq
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if table == nil {
		t.Fatal("br_table did not survive the round trip")
	}
	if len(table.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(table.Targets))
	}
	if table.Targets[0] != home {
		t.Fatalf("first target = seq %d, want the enclosing block seq %d", table.Targets[0], home)
	}
	if table.Targets[1] != fn.Local.Entry || table.Default != fn.Local.Entry {
		t.Fatalf("outer targets = %d/%d, want the entry seq %d",
			table.Targets[1], table.Default, fn.Local.Entry)
	}
}

func TestEncode_StartAndElementSegments(t *testing.T) {
	m := ir.New()

	ib := ir.NewFunctionBuilder(m, nil, nil)
	initFn, err := ib.Body().Finish()
	if err != nil {
		t.Fatalf("build init: %v", err)
	}
	hb := ir.NewFunctionBuilder(m, nil, nil)
	handler, err := hb.Body().Finish()
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}

	two := uint64(2)
	tbl := m.AddTable(ir.FuncRef, ir.Limits{Min: 2, Max: &two})
	m.Elements.Alloc(ir.ElementSegment{
		Kind:    ir.ElementActive,
		Table:   tbl,
		Offset:  ir.ConstExprValue(ir.ConstI32(0)),
		Members: []ir.FunctionID{handler, initFn},
	})
	m.SetStart(initFn)
	m.ExportTable("tab", tbl)

	out, err := encode.Encode(m, plain())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := sectionIDs(t, out)
	want := []byte{1, 3, 4, 7, 8, 9, 10}
	if !bytes.Equal(got, want) {
		t.Fatalf("sections = %v, want %v", got, want)
	}

	m2, err := decode.Decode(out, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m2.Start == nil || *m2.Start != 0 {
		t.Fatalf("start = %v, want func 0", m2.Start)
	}
	if m2.Elements.Len() != 1 {
		t.Fatalf("elements = %d, want 1", m2.Elements.Len())
	}
	seg := m2.Elements.MustGet(0)
	if seg.Kind != ir.ElementActive || seg.Table != 0 {
		t.Fatalf("segment = %+v, want active on table 0", seg)
	}
	if len(seg.Members) != 2 || seg.Members[0] != 1 || seg.Members[1] != 0 {
		t.Fatalf("members = %v, want [1 0]", seg.Members)
	}
	tb := m2.Tables.MustGet(0)
	if tb.Limits.Min != 2 || tb.Limits.Max == nil || *tb.Limits.Max != 2 {
		t.Fatalf("table limits = %+v, want 2..2", tb.Limits)
	}
}

func TestEncode_GlobalInitChain(t *testing.T) {
	m := ir.New()
	base, _ := m.ImportGlobal("env", "base", ir.I32, false)
	offset := m.AddGlobal(ir.I32, false, ir.ConstExprGlobal(base))
	m.ExportGlobal("offset", offset)

	out, err := encode.Encode(m, plain())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := sectionIDs(t, out)
	want := []byte{2, 6, 7}
	if !bytes.Equal(got, want) {
		t.Fatalf("sections = %v, want %v", got, want)
	}

	m2, err := decode.Decode(out, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m2.Imports.Len() != 1 || m2.Globals.Len() != 2 {
		t.Fatalf("imports = %d, globals = %d, want 1 and 2", m2.Imports.Len(), m2.Globals.Len())
	}
	local := m2.Globals.MustGet(1)
	if local.Init.Kind != ir.ConstGlobalGet || local.Init.Global != 0 {
		t.Fatalf("init = %+v, want global.get 0", local.Init)
	}
}

func TestEncode_LocalRunLengthGrouping(t *testing.T) {
	m := ir.New()
	fb := ir.NewFunctionBuilder(m, nil, nil)
	fb.AddLocal(ir.I32)
	fb.AddLocal(ir.I32)
	fb.AddLocal(ir.F64)
	fb.AddLocal(ir.I32)
	fid, err := fb.Body().Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("f", fid)

	first, err := encode.Encode(m, plain())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m2, err := decode.Decode(first, ir.NewConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	locals := m2.Funcs.MustGet(0).Local.Locals
	want := []ir.ValType{ir.I32, ir.I32, ir.F64, ir.I32}
	if locals.Len() != len(want) {
		t.Fatalf("locals = %d, want %d", locals.Len(), len(want))
	}
	for n, ty := range want {
		if got := locals.MustGet(ir.LocalID(n)).Type; got != ty {
			t.Fatalf("local %d = %v, want %v", n, got, ty)
		}
	}

	second, err := encode.Encode(m2, plain())
	if err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("local grouping is not stable across a round trip")
	}
}

func TestEncode_ValidatesFirst(t *testing.T) {
	m := ir.New()
	fb := ir.NewFunctionBuilder(m, nil, nil)
	fid, err := fb.Body().Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("dup", fid)
	m.ExportFunc("dup", fid)

	_, err = encode.Encode(m, ir.NewConfig())
	if phase, _ := errors.PhaseOf(err); phase != errors.PhaseValidate {
		t.Fatalf("phase = %q, want validate (err: %v)", phase, err)
	}
	if kind, _ := errors.KindOf(err); kind != errors.KindDuplicateExport {
		t.Fatalf("kind = %q, want duplicate_export", kind)
	}

	cfg := ir.NewConfig()
	cfg.SkipValidation = true
	out, err := encode.Encode(m, cfg)
	if err != nil {
		t.Fatalf("encode with validation skipped: %v", err)
	}
	if len(out) <= 8 {
		t.Fatal("skipped validation should still produce sections")
	}
}

func TestEncode_DanglingCall(t *testing.T) {
	m := ir.New()
	fb := ir.NewFunctionBuilder(m, nil, nil)
	fid, err := fb.Body().Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	fn := m.Funcs.MustGet(fid)
	entry := fn.Local.Seqs.MustGet(fn.Local.Entry)
	entry.Instrs = append(entry.Instrs, ir.Call{Func: ir.FunctionID(99)})
	m.ExportFunc("broken", fid)

	cfg := ir.NewConfig()
	cfg.SkipValidation = true
	_, err = encode.Encode(m, cfg)
	if phase, _ := errors.PhaseOf(err); phase != errors.PhaseEncode {
		t.Fatalf("phase = %q, want encode (err: %v)", phase, err)
	}
	if kind, _ := errors.KindOf(err); kind != errors.KindDanglingID {
		t.Fatalf("kind = %q, want dangling_id (err: %v)", kind, err)
	}
}

// findIfElse returns the only if-else in the body.
func findIfElse(t *testing.T, f *ir.LocalFunction) ir.IfElse {
	t.Helper()
	var found *ir.IfElse
	err := f.WalkInstrs(func(_ ir.InstrSeqID, _ int, in ir.Instr) error {
		if ie, ok := in.(ir.IfElse); ok {
			if found != nil {
				return fmt.Errorf("more than one if-else in the body")
			}
			found = &ie
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if found == nil {
		t.Fatal("no if-else in the body")
	}
	return *found
}

// plain returns a config that emits no synthesized custom sections, so
// output can be compared byte for byte against hand-assembled binaries.
func plain() ir.Config {
	cfg := ir.NewConfig()
	cfg.EmitNameSection = false
	cfg.EmitProducersSection = false
	return cfg
}

// sectionIDs walks the section framing of an encoded module and returns
// the section ids in order.
func sectionIDs(t *testing.T, data []byte) []byte {
	t.Helper()
	if len(data) < 8 {
		t.Fatalf("output too short for a header: %d bytes", len(data))
	}
	var ids []byte
	pos := 8
	for pos < len(data) {
		id := data[pos]
		pos++
		size, n := readUleb(t, data[pos:])
		pos += n + int(size)
		ids = append(ids, id)
	}
	if pos != len(data) {
		t.Fatalf("section framing overruns the buffer by %d bytes", pos-len(data))
	}
	return ids
}

func readUleb(t *testing.T, data []byte) (uint32, int) {
	t.Helper()
	var v uint32
	var shift uint
	for n, b := range data {
		v |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, n + 1
		}
		shift += 7
	}
	t.Fatal("unterminated varint in section framing")
	return 0, 0
}

func simpleModule() []byte {
	return mod(
		sec(1, vec([]byte{0x60, 0x00, 0x01, 0x7F})),
		sec(3, vec([]byte{0x00})),
		sec(7, vec(append(str("answer"), 0x00, 0x00))),
		sec(10, vec(body([]byte{0x41, 0x2A, 0x0B}))),
	)
}

// loopExportModule imports env.tick (i32) -> () and exports a () -> ()
// function that calls it from a loop which exits after ten iterations.
// The export keeps the pair alive through dead-id elimination.
func loopExportModule() []byte {
	return mod(
		sec(1, vec([]byte{0x60, 0x01, 0x7F, 0x00}, []byte{0x60, 0x00, 0x00})),
		sec(2, vec(append(append(str("env"), str("tick")...), 0x00, 0x00))),
		sec(3, vec([]byte{0x01})),
		sec(7, vec(append(str("run"), 0x00, 0x01))),
		sec(10, vec(body([]byte{
			0x03, 0x40, 0x20, 0x00, 0x10, 0x00, 0x20, 0x00, 0x41, 0x01, 0x6A,
			0x21, 0x00, 0x20, 0x00, 0x41, 0x0A, 0x48, 0x0D, 0x00, 0x0B, 0x0B,
		}, []byte{0x01, 0x7F}))),
	)
}

func mod(sections ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func sec(id byte, parts ...[]byte) []byte {
	var payload []byte
	for _, p := range parts {
		payload = append(payload, p...)
	}
	out := append([]byte{id}, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func str(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func body(code []byte, locals ...[]byte) []byte {
	b := vec(locals...)
	b = append(b, code...)
	return append(uleb(uint32(len(b))), b...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}
