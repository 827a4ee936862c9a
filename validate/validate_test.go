package validate_test

import (
	"strings"
	"testing"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
	"github.com/wippyai/wasm-ir/validate"
)

func TestModule_Valid(t *testing.T) {
	m := ir.New()
	mem := m.AddMemory(ir.Limits{Min: 1, Max: maxOf(4)})
	g := m.AddGlobal(ir.I32, true, ir.ConstExprValue(ir.ConstI32(0)))

	cur := ir.NewFunctionBuilder(m, nil, nil).Body()
	cur.I32Const(0).
		Load(mem, ir.LoadI32, ir.MemArg{Align: 2}).
		GlobalSet(g)
	fid, err := cur.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("run", fid)
	m.SetStart(fid)

	if err := validate.Module(m, ir.NewConfig()); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestModule_ValidLoopWithBranch(t *testing.T) {
	m := ir.New()
	tick, _ := m.ImportFunc("env", "tick", m.AddFuncType([]ir.ValType{ir.I32}, nil))

	b := ir.NewFunctionBuilder(m, nil, nil)
	counter := b.AddLocal(ir.I32)
	cur := b.Body()
	cur.Loop(ir.SeqVoid(), func(loop ir.InstrSeqID) {
		cur.LocalGet(counter).Call(tick).
			LocalGet(counter).I32Const(1).Binop(ir.I32Add).LocalSet(counter).
			LocalGet(counter).I32Const(10).Binop(ir.I32LtS).BrIf(loop)
	})
	fid, err := cur.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.ExportFunc("run", fid)

	if err := validate.Module(m, ir.NewConfig()); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestModule_CollectsAllFindings(t *testing.T) {
	m := ir.New()
	m.AddMemory(ir.Limits{Min: 2, Max: maxOf(1)})
	fid := nullaryFunc(t, m)
	m.ExportFunc("x", fid)
	m.ExportFunc("x", fid)

	err := validate.Module(m, ir.NewConfig())
	verrs, ok := err.(validate.Errors)
	if !ok {
		t.Fatalf("err is %T, want validate.Errors (err: %v)", err, err)
	}
	if len(verrs) != 2 {
		t.Fatalf("findings = %d, want 2: %v", len(verrs), err)
	}
	if findKind(err, errors.KindBadLimits) == nil {
		t.Fatalf("no bad_limits finding in %v", err)
	}
	if findKind(err, errors.KindDuplicateExport) == nil {
		t.Fatalf("no duplicate_export finding in %v", err)
	}
}

func TestModule_DuplicateExportName(t *testing.T) {
	m := ir.New()
	fid := nullaryFunc(t, m)
	mem := m.AddMemory(ir.Limits{Min: 1})
	m.ExportFunc("thing", fid)
	m.ExportMemory("thing", mem)

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindDuplicateExport)
	if finding == nil {
		t.Fatal("no duplicate_export finding")
	}
	if !strings.Contains(finding.Detail, "also used by export[0]") {
		t.Fatalf("detail = %q", finding.Detail)
	}
}

func TestModule_StartMustBeNullary(t *testing.T) {
	m := ir.New()
	fid, err := ir.NewFunctionBuilder(m, []ir.ValType{ir.I32}, nil).Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.SetStart(fid)

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadStart)
	if finding == nil {
		t.Fatal("no bad_start finding")
	}
	if !strings.Contains(finding.Detail, "[i32] -> []") {
		t.Fatalf("detail = %q", finding.Detail)
	}
}

func TestModule_MemoryPageCeiling(t *testing.T) {
	m := ir.New()
	m.AddMemory(ir.Limits{Min: 70000})

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadLimits)
	if finding == nil || !strings.Contains(finding.Detail, "pages") {
		t.Fatalf("finding = %v", finding)
	}
}

func TestModule_TableMinAboveMax(t *testing.T) {
	m := ir.New()
	m.AddTable(ir.FuncRef, ir.Limits{Min: 2, Max: maxOf(1)})

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadLimits)
	if finding == nil || !strings.Contains(finding.Detail, "min 2 exceeds max 1") {
		t.Fatalf("finding = %v", finding)
	}
}

func TestModule_GlobalInitTypeMismatch(t *testing.T) {
	m := ir.New()
	m.AddGlobal(ir.I32, false, ir.ConstExprValue(ir.ConstF32(1)))

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadInitExpr)
	if finding == nil || !strings.Contains(finding.Detail, "yields f32, want i32") {
		t.Fatalf("finding = %v", finding)
	}
}

func TestModule_GlobalInitMustReferenceImport(t *testing.T) {
	m := ir.New()
	local := m.AddGlobal(ir.I32, false, ir.ConstExprValue(ir.ConstI32(1)))
	m.AddGlobal(ir.I32, false, ir.ConstExprGlobal(local))

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadInitExpr)
	if finding == nil || !strings.Contains(finding.Detail, "non-imported") {
		t.Fatalf("finding = %v", finding)
	}

	// The imported immutable form is the legal one.
	m2 := ir.New()
	base, _ := m2.ImportGlobal("env", "base", ir.I32, false)
	m2.AddGlobal(ir.I32, false, ir.ConstExprGlobal(base))
	if err := validate.Module(m2, ir.NewConfig()); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestModule_ImmutableGlobalSet(t *testing.T) {
	m := ir.New()
	g := m.AddGlobal(ir.I32, false, ir.ConstExprValue(ir.ConstI32(0)))

	cur := ir.NewFunctionBuilder(m, nil, nil).Body()
	cur.I32Const(1).GlobalSet(g)
	if _, err := cur.Finish(); err != nil {
		t.Fatalf("build: %v", err)
	}

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindInvalidData)
	if finding == nil || !strings.Contains(finding.Detail, "immutable") {
		t.Fatalf("finding = %v", finding)
	}
}

func TestModule_BranchTargetOutsideAncestry(t *testing.T) {
	m := ir.New()
	var inner ir.InstrSeqID
	cur := ir.NewFunctionBuilder(m, nil, nil).Body()
	cur.Block(ir.SeqVoid(), func(seq ir.InstrSeqID) {
		inner = seq
		cur.Br(seq)
	})
	fid, err := cur.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Retarget the branch at a sequence outside its ancestry.
	local := m.Funcs.MustGet(fid).Local
	orphan := local.Seqs.Alloc(ir.InstrSeq{Ty: ir.SeqVoid()})
	local.Seqs.MustGet(inner).Instrs[0] = ir.Br{Target: orphan}

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadTarget)
	if finding == nil {
		t.Fatal("no bad_target finding")
	}
}

func TestModule_SequenceWithTwoParents(t *testing.T) {
	m := ir.New()
	var inner ir.InstrSeqID
	cur := ir.NewFunctionBuilder(m, nil, nil).Body()
	cur.Block(ir.SeqVoid(), func(seq ir.InstrSeqID) {
		inner = seq
	})
	fid, err := cur.Finish()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	local := m.Funcs.MustGet(fid).Local
	entry := local.Seqs.MustGet(local.Entry)
	entry.Instrs = append(entry.Instrs, ir.Block{Seq: inner})

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindInvalidData)
	if finding == nil || !strings.Contains(finding.Detail, "more than one parent") {
		t.Fatalf("finding = %v", finding)
	}
}

func TestModule_AlignmentExceedsNatural(t *testing.T) {
	m := ir.New()
	mem := m.AddMemory(ir.Limits{Min: 1})

	cur := ir.NewFunctionBuilder(m, nil, nil).Body()
	cur.I32Const(0).
		Load(mem, ir.LoadI32, ir.MemArg{Align: 3}).
		Drop()
	if _, err := cur.Finish(); err != nil {
		t.Fatalf("build: %v", err)
	}

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindInvalidData)
	if finding == nil || !strings.Contains(finding.Detail, "alignment") {
		t.Fatalf("finding = %v", finding)
	}
}

func TestModule_ElementOffsetMustBeI32(t *testing.T) {
	m := ir.New()
	table := m.AddTable(ir.FuncRef, ir.Limits{Min: 1})
	fid := nullaryFunc(t, m)
	m.Elements.Alloc(ir.ElementSegment{
		Kind:    ir.ElementActive,
		Table:   table,
		Offset:  ir.ConstExprValue(ir.ConstI64(0)),
		Members: []ir.FunctionID{fid},
	})

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadInitExpr)
	if finding == nil || !strings.Contains(finding.Detail, "yields i64, want i32") {
		t.Fatalf("finding = %v", finding)
	}
}

func TestModule_ExportDanglingIndex(t *testing.T) {
	m := ir.New()
	m.ExportFunc("f", ir.FunctionID(9))

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadIndex)
	if finding == nil || !strings.Contains(finding.Detail, "function index 9") {
		t.Fatalf("finding = %v", finding)
	}
}

func TestModule_ActiveDataNeedsMemory(t *testing.T) {
	m := ir.New()
	m.Data.Alloc(ir.DataSegment{
		Kind:   ir.DataActive,
		Offset: ir.ConstExprValue(ir.ConstI32(0)),
		Value:  []byte("x"),
	})

	finding := findKind(validate.Module(m, ir.NewConfig()), errors.KindBadIndex)
	if finding == nil || !strings.Contains(finding.Detail, "memory") {
		t.Fatalf("finding = %v", finding)
	}
}

func nullaryFunc(t *testing.T, m *ir.Module) ir.FunctionID {
	t.Helper()
	fid, err := ir.NewFunctionBuilder(m, nil, nil).Finish()
	if err != nil {
		t.Fatalf("build func: %v", err)
	}
	return fid
}

func findKind(err error, kind errors.Kind) *errors.Error {
	verrs, ok := err.(validate.Errors)
	if !ok {
		return nil
	}
	for _, e := range verrs {
		if e.Kind == kind {
			return e
		}
	}
	return nil
}

func maxOf(v uint64) *uint64 {
	return &v
}
