package ir_test

import (
	"testing"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

func TestArena_AllocGet(t *testing.T) {
	a := ir.NewArena[ir.TypeID, ir.Type]("type")

	id0 := a.Alloc(ir.Type{Params: []ir.ValType{ir.I32}})
	id1 := a.Alloc(ir.Type{Results: []ir.ValType{ir.F64}})

	if id0 != 0 || id1 != 1 {
		t.Fatalf("ids = %d, %d, want 0, 1", id0, id1)
	}
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}

	ty, err := a.Get(id1)
	if err != nil {
		t.Fatalf("Get(%d) error: %v", id1, err)
	}
	if len(ty.Results) != 1 || ty.Results[0] != ir.F64 {
		t.Errorf("Get(%d) = %+v, want one f64 result", id1, ty)
	}
}

func TestArena_GetReturnsPointer(t *testing.T) {
	a := ir.NewArena[ir.GlobalID, ir.Global]("global")
	id := a.Alloc(ir.Global{Type: ir.I32})

	g, err := a.Get(id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	g.Mutable = true

	again, _ := a.Get(id)
	if !again.Mutable {
		t.Error("mutation through Get pointer was not visible on re-read")
	}
}

func TestArena_GetOutOfRange(t *testing.T) {
	a := ir.NewArena[ir.FunctionID, ir.Function]("function")
	a.Alloc(ir.Function{})

	_, err := a.Get(ir.FunctionID(5))
	if err == nil {
		t.Fatal("expected error for unallocated id")
	}
	if kind, ok := errors.KindOf(err); !ok || kind != errors.KindInvalidID {
		t.Errorf("error kind = %v, want %v", kind, errors.KindInvalidID)
	}
}

func TestArena_MustGetPanics(t *testing.T) {
	a := ir.NewArena[ir.MemoryID, ir.Memory]("memory")

	defer func() {
		if recover() == nil {
			t.Error("MustGet on empty arena did not panic")
		}
	}()
	a.MustGet(0)
}

func TestArena_AllOrder(t *testing.T) {
	a := ir.NewArena[ir.DataID, ir.DataSegment]("data")
	a.Alloc(ir.DataSegment{Value: []byte{1}})
	a.Alloc(ir.DataSegment{Value: []byte{2}})
	a.Alloc(ir.DataSegment{Value: []byte{3}})

	var got []byte
	a.All(func(id ir.DataID, seg *ir.DataSegment) bool {
		got = append(got, seg.Value[0])
		return true
	})
	if string(got) != "\x01\x02\x03" {
		t.Errorf("All visited %v, want [1 2 3]", got)
	}
}

func TestArena_AllEarlyStop(t *testing.T) {
	a := ir.NewArena[ir.DataID, ir.DataSegment]("data")
	for n := 0; n < 5; n++ {
		a.Alloc(ir.DataSegment{})
	}

	visits := 0
	a.All(func(id ir.DataID, seg *ir.DataSegment) bool {
		visits++
		return visits < 2
	})
	if visits != 2 {
		t.Errorf("All visited %d entities after early stop, want 2", visits)
	}
}
