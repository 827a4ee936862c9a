package decode

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/internal/binary"
	"github.com/wippyai/wasm-ir/ir"
)

// Index spaces count imports first, then module-local entities, in section
// order. The lookup tables map those wire indices to arena IDs.

func (d *decoder) typeID(idx uint32) (ir.TypeID, error) {
	if int(idx) >= len(d.typeIDs) {
		return 0, errors.BadIndex(errors.PhaseDecode, nil, "type", idx, uint32(len(d.typeIDs)))
	}
	return d.typeIDs[idx], nil
}

func (d *decoder) funcID(idx uint32) (ir.FunctionID, error) {
	if int(idx) >= len(d.funcIDs) {
		return 0, errors.BadIndex(errors.PhaseDecode, nil, "function", idx, uint32(len(d.funcIDs)))
	}
	return d.funcIDs[idx], nil
}

func (d *decoder) tableID(idx uint32) (ir.TableID, error) {
	if int(idx) >= len(d.tableIDs) {
		return 0, errors.BadIndex(errors.PhaseDecode, nil, "table", idx, uint32(len(d.tableIDs)))
	}
	return d.tableIDs[idx], nil
}

func (d *decoder) memID(idx uint32) (ir.MemoryID, error) {
	if int(idx) >= len(d.memIDs) {
		return 0, errors.BadIndex(errors.PhaseDecode, nil, "memory", idx, uint32(len(d.memIDs)))
	}
	return d.memIDs[idx], nil
}

func (d *decoder) globalID(idx uint32) (ir.GlobalID, error) {
	if int(idx) >= len(d.globalIDs) {
		return 0, errors.BadIndex(errors.PhaseDecode, nil, "global", idx, uint32(len(d.globalIDs)))
	}
	return d.globalIDs[idx], nil
}

func (d *decoder) dataID(idx uint32) (ir.DataID, error) {
	if int(idx) >= len(d.dataIDs) {
		return 0, errors.BadIndex(errors.PhaseDecode, nil, "data", idx, uint32(len(d.dataIDs)))
	}
	return d.dataIDs[idx], nil
}

func (d *decoder) valType(r *binary.Reader) (ir.ValType, error) {
	off := r.Offset()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch t := ir.ValType(b); t {
	case ir.I32, ir.I64, ir.F32, ir.F64:
		return t, nil
	case ir.V128:
		return 0, unsupportedAt(off, "v128 values (SIMD)")
	case ir.FuncRef, ir.ExternRef:
		if !d.cfg.Features.ReferenceTypes {
			return 0, unsupportedAt(off, fmt.Sprintf("%s values require the reference-types proposal", t))
		}
		return t, nil
	}
	return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Offset(off).
		Detail("unknown value type 0x%02X", b).
		Build()
}

func (d *decoder) refType(r *binary.Reader) (ir.ValType, error) {
	off := r.Offset()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch t := ir.ValType(b); t {
	case ir.FuncRef:
		return t, nil
	case ir.ExternRef:
		if !d.cfg.Features.ReferenceTypes {
			return 0, unsupportedAt(off, "externref tables require the reference-types proposal")
		}
		return t, nil
	}
	return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Offset(off).
		Detail("unknown reference type 0x%02X", b).
		Build()
}

func (d *decoder) limits(r *binary.Reader) (ir.Limits, error) {
	off := r.Offset()
	flags, err := r.ReadByte()
	if err != nil {
		return ir.Limits{}, err
	}
	if flags&binary.LimitsShared != 0 {
		return ir.Limits{}, unsupportedAt(off, "shared limits (threads)")
	}
	if flags&binary.LimitsMemory64 != 0 {
		return ir.Limits{}, unsupportedAt(off, "64-bit limits (memory64)")
	}
	if flags > binary.LimitsHasMax {
		return ir.Limits{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(off).
			Detail("unknown limits flags 0x%02X", flags).
			Build()
	}
	min, err := r.ReadU32()
	if err != nil {
		return ir.Limits{}, err
	}
	l := ir.Limits{Min: uint64(min)}
	if flags == binary.LimitsHasMax {
		max, err := r.ReadU32()
		if err != nil {
			return ir.Limits{}, err
		}
		m := uint64(max)
		l.Max = &m
	}
	return l, nil
}

func (d *decoder) globalType(r *binary.Reader) (ir.ValType, bool, error) {
	ty, err := d.valType(r)
	if err != nil {
		return 0, false, err
	}
	off := r.Offset()
	mut, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}
	if mut > 1 {
		return 0, false, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(off).
			Detail("global mutability flag 0x%02X", mut).
			Build()
	}
	return ty, mut == 1, nil
}

func (d *decoder) valTypeVec(r *binary.Reader) ([]ir.ValType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]ir.ValType, 0, count)
	for n := uint32(0); n < count; n++ {
		t, err := d.valType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (d *decoder) funcVec(r *binary.Reader) ([]ir.FunctionID, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]ir.FunctionID, 0, count)
	for n := uint32(0); n < count; n++ {
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		f, err := d.funcID(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// byteVec copies the payload out of the input buffer so the module does
// not alias caller memory.
func (d *decoder) byteVec(r *binary.Reader) ([]byte, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadBytes(int(count))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), raw...), nil
}

// elemKind consumes the element kind byte used by segment encodings 1-3.
// Only kind 0x00, a vector of function indices, exists in this tier.
func (d *decoder) elemKind(r *binary.Reader) error {
	off := r.Offset()
	kind, err := r.ReadByte()
	if err != nil {
		return err
	}
	if kind != 0x00 {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(off).
			Detail("element kind 0x%02X", kind).
			Build()
	}
	return nil
}

// constExpr parses a constant initializer expression up to and including
// its terminating end opcode.
func (d *decoder) constExpr(r *binary.Reader) (ir.ConstExpr, error) {
	opOff := r.Offset()
	op, err := r.ReadByte()
	if err != nil {
		return ir.ConstExpr{}, err
	}

	var expr ir.ConstExpr
	switch op {
	case binary.OpI32Const:
		v, err := r.ReadS32()
		if err != nil {
			return ir.ConstExpr{}, err
		}
		expr = ir.ConstExprValue(ir.ConstI32(v))
	case binary.OpI64Const:
		v, err := r.ReadS64()
		if err != nil {
			return ir.ConstExpr{}, err
		}
		expr = ir.ConstExprValue(ir.ConstI64(v))
	case binary.OpF32Const:
		v, err := r.ReadF32()
		if err != nil {
			return ir.ConstExpr{}, err
		}
		expr = ir.ConstExprValue(ir.ConstF32(v))
	case binary.OpF64Const:
		v, err := r.ReadF64()
		if err != nil {
			return ir.ConstExpr{}, err
		}
		expr = ir.ConstExprValue(ir.ConstF64(v))
	case binary.OpGlobalGet:
		idx, err := r.ReadU32()
		if err != nil {
			return ir.ConstExpr{}, err
		}
		g, err := d.globalID(idx)
		if err != nil {
			return ir.ConstExpr{}, err
		}
		expr = ir.ConstExprGlobal(g)
	case binary.OpRefNull:
		if !d.cfg.Features.ReferenceTypes {
			return ir.ConstExpr{}, unsupportedAt(opOff, "ref.null initializers require the reference-types proposal")
		}
		ty, err := d.heapType(r)
		if err != nil {
			return ir.ConstExpr{}, err
		}
		expr = ir.ConstExpr{Kind: ir.ConstRefNull, RefType: ty}
	case binary.OpRefFunc:
		if !d.cfg.Features.ReferenceTypes {
			return ir.ConstExpr{}, unsupportedAt(opOff, "ref.func initializers require the reference-types proposal")
		}
		idx, err := r.ReadU32()
		if err != nil {
			return ir.ConstExpr{}, err
		}
		f, err := d.funcID(idx)
		if err != nil {
			return ir.ConstExpr{}, err
		}
		expr = ir.ConstExpr{Kind: ir.ConstRefFunc, Func: f}
	default:
		return ir.ConstExpr{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(opOff).
			Detail("opcode 0x%02X is not constant", op).
			Build()
	}

	endOff := r.Offset()
	end, err := r.ReadByte()
	if err != nil {
		return ir.ConstExpr{}, err
	}
	if end != binary.OpEnd {
		return ir.ConstExpr{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(endOff).
			Detail("constant expression not terminated, got opcode 0x%02X", end).
			Build()
	}
	return expr, nil
}

// heapType reads the type immediate of ref.null.
func (d *decoder) heapType(r *binary.Reader) (ir.ValType, error) {
	off := r.Offset()
	v, err := r.ReadS33()
	if err != nil {
		return 0, err
	}
	switch v {
	case -16:
		return ir.FuncRef, nil
	case -17:
		return ir.ExternRef, nil
	}
	return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Offset(off).
		Detail("unknown heap type %d", v).
		Build()
}

func (d *decoder) checkTableCount(off int) error {
	if d.m.Tables.Len() > 1 && !d.cfg.Features.ReferenceTypes {
		return unsupportedAt(off, "a second table requires the reference-types proposal")
	}
	return nil
}

func (d *decoder) checkMemoryCount(off int) error {
	if d.m.Memories.Len() > 1 {
		return unsupportedAt(off, "multiple memories")
	}
	return nil
}

func unsupportedAt(off int, what string) *errors.Error {
	e := errors.Unsupported(errors.PhaseDecode, what)
	e.Offset = off
	return e
}

// inSection stamps the section name onto a decode error that does not
// carry one yet.
func inSection(err error, name string) error {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Section == "" {
		e.Section = name
	}
	return err
}
