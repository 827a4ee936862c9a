package decode

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/internal/binary"
	"github.com/wippyai/wasm-ir/ir"
)

// maxFunctionLocals bounds the locals a single body may declare. The run
// length encoding would otherwise let a few bytes demand gigabytes.
const maxFunctionLocals = 50000

func (d *decoder) codeSection(r *binary.Reader) error {
	d.sawCode = true
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if int(count) != len(d.localTypes) {
		return errors.InvalidData(errors.PhaseDecode, nil,
			fmt.Sprintf("function section declares %d bodies, code section has %d", len(d.localTypes), count))
	}
	imported := len(d.funcIDs) - len(d.localTypes)
	for n := uint32(0); n < count; n++ {
		wireIdx := uint32(imported) + n
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		start := r.Offset()
		body, err := r.Sub(int(size))
		if err != nil {
			return funcPath(errors.UnexpectedEOF(start,
				fmt.Sprintf("function body of declared size %d", size)), wireIdx)
		}
		fn, err := d.decodeBody(body, d.localTypes[n])
		if err != nil {
			return funcPath(err, wireIdx)
		}
		if body.Remaining() != 0 {
			return errors.New(errors.PhaseDecode, errors.KindSectionSizeMismatch).
				Path(fmt.Sprintf("func[%d]", wireIdx)).
				Offset(body.Offset()).
				Detail("body declared %d bytes, decoding stopped %d short", size, body.Remaining()).
				Build()
		}
		d.m.Funcs.MustGet(d.funcIDs[wireIdx]).Local = fn
	}
	return nil
}

// decodeBody parses one code entry: the local declarations followed by the
// instruction stream up to the end opcode that closes the body.
func (d *decoder) decodeBody(r *binary.Reader, ty ir.TypeID) (*ir.LocalFunction, error) {
	b, err := ir.NewTypedFunctionBuilder(d.m, ty)
	if err != nil {
		return nil, err
	}

	runs, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	declared := 0
	for n := uint32(0); n < runs; n++ {
		runOff := r.Offset()
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		lt, err := d.valType(r)
		if err != nil {
			return nil, err
		}
		declared += int(count)
		if declared > maxFunctionLocals {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Offset(runOff).
				Detail("more than %d locals", maxFunctionLocals).
				Build()
		}
		for k := uint32(0); k < count; k++ {
			b.AddLocal(lt)
		}
	}

	// Relative branch depths only mean anything while the block structure
	// is being replayed, so they are resolved to sequence IDs here and
	// never stored.
	depth := 1
	for depth > 0 {
		if r.Remaining() == 0 {
			return nil, errors.UnexpectedEOF(r.Offset(), "function body")
		}
		delta, err := d.instr(r, b)
		if err != nil {
			return nil, err
		}
		depth += delta
	}

	fn, err := b.FinishBody()
	if err != nil {
		return nil, at(err, r.Offset())
	}
	return fn, nil
}

// instr decodes a single instruction into the builder and reports how the
// nesting depth changed: +1 for block starts, -1 for end, 0 otherwise.
func (d *decoder) instr(r *binary.Reader, b *ir.FunctionBuilder) (int, error) {
	opOff := r.Offset()
	op, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	switch op {
	case binary.OpUnreachable:
		return 0, at(b.Append(ir.Unreachable{}), opOff)
	case binary.OpNop:
		return 0, at(b.Append(ir.Nop{}), opOff)

	case binary.OpBlock:
		ty, err := d.blockType(r)
		if err != nil {
			return 0, err
		}
		_, err = b.StartBlock(ty)
		return 1, at(err, opOff)
	case binary.OpLoop:
		ty, err := d.blockType(r)
		if err != nil {
			return 0, err
		}
		_, err = b.StartLoop(ty)
		return 1, at(err, opOff)
	case binary.OpIf:
		ty, err := d.blockType(r)
		if err != nil {
			return 0, err
		}
		_, err = b.StartIf(ty)
		return 1, at(err, opOff)
	case binary.OpElse:
		return 0, at(b.Else(), opOff)
	case binary.OpEnd:
		return -1, at(b.End(), opOff)

	case binary.OpBr:
		seq, err := d.label(r, b)
		if err != nil {
			return 0, at(err, opOff)
		}
		return 0, at(b.Append(ir.Br{Target: seq}), opOff)
	case binary.OpBrIf:
		seq, err := d.label(r, b)
		if err != nil {
			return 0, at(err, opOff)
		}
		return 0, at(b.Append(ir.BrIf{Target: seq}), opOff)
	case binary.OpBrTable:
		count, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		targets := make([]ir.InstrSeqID, 0, count)
		for n := uint32(0); n < count; n++ {
			seq, err := d.label(r, b)
			if err != nil {
				return 0, at(err, opOff)
			}
			targets = append(targets, seq)
		}
		dflt, err := d.label(r, b)
		if err != nil {
			return 0, at(err, opOff)
		}
		return 0, at(b.Append(ir.BrTable{Targets: targets, Default: dflt}), opOff)

	case binary.OpReturn:
		return 0, at(b.Append(ir.Return{}), opOff)
	case binary.OpCall:
		idx, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		f, err := d.funcID(idx)
		if err != nil {
			return 0, at(err, opOff)
		}
		return 0, at(b.Append(ir.Call{Func: f}), opOff)
	case binary.OpCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		tableIdx, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		ty, err := d.typeID(typeIdx)
		if err != nil {
			return 0, at(err, opOff)
		}
		table, err := d.tableID(tableIdx)
		if err != nil {
			return 0, at(err, opOff)
		}
		return 0, at(b.Append(ir.CallIndirect{Type: ty, Table: table}), opOff)

	case binary.OpDrop:
		return 0, at(b.Append(ir.Drop{}), opOff)
	case binary.OpSelect:
		return 0, at(b.Append(ir.Select{}), opOff)
	case binary.OpSelectType:
		if !d.cfg.Features.ReferenceTypes {
			return 0, unsupportedAt(opOff, "typed select requires the reference-types proposal")
		}
		count, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		if count != 1 {
			return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Offset(opOff).
				Detail("typed select with %d types", count).
				Build()
		}
		t, err := d.valType(r)
		if err != nil {
			return 0, err
		}
		return 0, at(b.Append(ir.Select{Type: &t}), opOff)

	case binary.OpLocalGet, binary.OpLocalSet, binary.OpLocalTee:
		idx, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		if int(idx) >= b.NumLocals() {
			return 0, at(errors.BadIndex(errors.PhaseDecode, nil, "local", idx, uint32(b.NumLocals())), opOff)
		}
		local := ir.LocalID(idx)
		switch op {
		case binary.OpLocalGet:
			return 0, at(b.Append(ir.LocalGet{Local: local}), opOff)
		case binary.OpLocalSet:
			return 0, at(b.Append(ir.LocalSet{Local: local}), opOff)
		default:
			return 0, at(b.Append(ir.LocalTee{Local: local}), opOff)
		}

	case binary.OpGlobalGet, binary.OpGlobalSet:
		idx, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		g, err := d.globalID(idx)
		if err != nil {
			return 0, at(err, opOff)
		}
		if op == binary.OpGlobalGet {
			return 0, at(b.Append(ir.GlobalGet{Global: g}), opOff)
		}
		return 0, at(b.Append(ir.GlobalSet{Global: g}), opOff)

	case binary.OpMemorySize, binary.OpMemoryGrow:
		idx, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		mem, err := d.memID(idx)
		if err != nil {
			return 0, at(err, opOff)
		}
		if op == binary.OpMemorySize {
			return 0, at(b.Append(ir.MemorySize{Memory: mem}), opOff)
		}
		return 0, at(b.Append(ir.MemoryGrow{Memory: mem}), opOff)

	case binary.OpI32Const:
		v, err := r.ReadS32()
		if err != nil {
			return 0, err
		}
		return 0, at(b.Append(ir.Const{Value: ir.ConstI32(v)}), opOff)
	case binary.OpI64Const:
		v, err := r.ReadS64()
		if err != nil {
			return 0, err
		}
		return 0, at(b.Append(ir.Const{Value: ir.ConstI64(v)}), opOff)
	case binary.OpF32Const:
		v, err := r.ReadF32()
		if err != nil {
			return 0, err
		}
		return 0, at(b.Append(ir.Const{Value: ir.ConstF32(v)}), opOff)
	case binary.OpF64Const:
		v, err := r.ReadF64()
		if err != nil {
			return 0, err
		}
		return 0, at(b.Append(ir.Const{Value: ir.ConstF64(v)}), opOff)

	case binary.OpRefNull:
		if !d.cfg.Features.ReferenceTypes {
			return 0, unsupportedAt(opOff, "ref.null requires the reference-types proposal")
		}
		t, err := d.heapType(r)
		if err != nil {
			return 0, err
		}
		return 0, at(b.Append(ir.RefNull{Type: t}), opOff)
	case binary.OpRefIsNull:
		if !d.cfg.Features.ReferenceTypes {
			return 0, unsupportedAt(opOff, "ref.is_null requires the reference-types proposal")
		}
		return 0, at(b.Append(ir.RefIsNull{}), opOff)
	case binary.OpRefFunc:
		if !d.cfg.Features.ReferenceTypes {
			return 0, unsupportedAt(opOff, "ref.func requires the reference-types proposal")
		}
		idx, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		f, err := d.funcID(idx)
		if err != nil {
			return 0, at(err, opOff)
		}
		return 0, at(b.Append(ir.RefFunc{Func: f}), opOff)

	case binary.OpPrefixMisc:
		return 0, d.miscInstr(r, b, opOff)
	}

	if kind, ok := ir.LoadKindFromOpcode(op); ok {
		mem, arg, err := d.memArg(r, opOff)
		if err != nil {
			return 0, err
		}
		return 0, at(b.Append(ir.Load{Memory: mem, Kind: kind, Arg: arg}), opOff)
	}
	if kind, ok := ir.StoreKindFromOpcode(op); ok {
		mem, arg, err := d.memArg(r, opOff)
		if err != nil {
			return 0, err
		}
		return 0, at(b.Append(ir.Store{Memory: mem, Kind: kind, Arg: arg}), opOff)
	}
	if u, ok := ir.UnopFromOpcode(uint32(op)); ok {
		if f := u.RequiredFeature(); f != ir.FeatureNone && !d.cfg.Features.Enabled(f) {
			return 0, unsupportedAt(opOff, fmt.Sprintf("%s requires the %s proposal", u, f))
		}
		return 0, at(b.Append(ir.Unop{Op: u}), opOff)
	}
	if bi, ok := ir.BinopFromOpcode(uint32(op)); ok {
		return 0, at(b.Append(ir.Binop{Op: bi}), opOff)
	}

	return 0, errors.UnknownOpcode(opOff, uint32(op))
}

// miscInstr decodes the 0xFC-prefixed opcode space.
func (d *decoder) miscInstr(r *binary.Reader, b *ir.FunctionBuilder, opOff int) error {
	sub, err := r.ReadU32()
	if err != nil {
		return err
	}

	if sub <= binary.MiscI64TruncSatF64U {
		if !d.cfg.Features.SaturatingTruncation {
			return unsupportedAt(opOff, "saturating truncation requires its proposal")
		}
		u, ok := ir.UnopFromMiscOpcode(sub)
		if !ok {
			return errors.UnknownOpcode(opOff, sub)
		}
		return at(b.Append(ir.Unop{Op: u}), opOff)
	}

	if !d.cfg.Features.BulkMemory {
		return unsupportedAt(opOff, "bulk memory operators require the bulk-memory proposal")
	}

	switch sub {
	case binary.MiscMemoryInit:
		dataIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		memIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if d.dataCount == nil {
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Offset(opOff).
				Detail("memory.init without a data count section").
				Build()
		}
		data, err := d.dataID(dataIdx)
		if err != nil {
			return at(err, opOff)
		}
		mem, err := d.memID(memIdx)
		if err != nil {
			return at(err, opOff)
		}
		return at(b.Append(ir.MemoryInit{Memory: mem, Data: data}), opOff)

	case binary.MiscDataDrop:
		dataIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if d.dataCount == nil {
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Offset(opOff).
				Detail("data.drop without a data count section").
				Build()
		}
		data, err := d.dataID(dataIdx)
		if err != nil {
			return at(err, opOff)
		}
		return at(b.Append(ir.DataDrop{Data: data}), opOff)

	case binary.MiscMemoryCopy:
		dstIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		srcIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		dst, err := d.memID(dstIdx)
		if err != nil {
			return at(err, opOff)
		}
		src, err := d.memID(srcIdx)
		if err != nil {
			return at(err, opOff)
		}
		return at(b.Append(ir.MemoryCopy{Dst: dst, Src: src}), opOff)

	case binary.MiscMemoryFill:
		memIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		mem, err := d.memID(memIdx)
		if err != nil {
			return at(err, opOff)
		}
		return at(b.Append(ir.MemoryFill{Memory: mem}), opOff)
	}

	return errors.New(errors.PhaseDecode, errors.KindUnknownOpcode).
		Offset(opOff).
		Detail("prefixed opcode 0xFC 0x%02x", sub).
		Value(sub).
		Build()
}

// blockType reads the type of a block, loop or if. A non-negative value is
// an index into the type section, -64 is the empty type, other negative
// values name a single result type.
func (d *decoder) blockType(r *binary.Reader) (ir.SeqType, error) {
	off := r.Offset()
	v, err := r.ReadS33()
	if err != nil {
		return ir.SeqType{}, err
	}
	if v >= 0 {
		if !d.cfg.Features.MultiValue {
			return ir.SeqType{}, unsupportedAt(off, "block type indices require the multi-value proposal")
		}
		ty, err := d.typeID(uint32(v))
		if err != nil {
			return ir.SeqType{}, at(err, off)
		}
		return ir.FuncSeqType(ty), nil
	}
	if v == binary.BlockTypeVoid {
		return ir.SeqVoid(), nil
	}
	switch t := ir.ValType(byte(v & 0x7F)); t {
	case ir.I32, ir.I64, ir.F32, ir.F64:
		return ir.SeqResult(t), nil
	case ir.V128:
		return ir.SeqType{}, unsupportedAt(off, "v128 block results (SIMD)")
	case ir.FuncRef, ir.ExternRef:
		if !d.cfg.Features.ReferenceTypes {
			return ir.SeqType{}, unsupportedAt(off, fmt.Sprintf("%s block results require the reference-types proposal", t))
		}
		return ir.SeqResult(t), nil
	}
	return ir.SeqType{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Offset(off).
		Detail("unknown block type %d", v).
		Build()
}

// label resolves a relative branch depth against the builder's open frames.
func (d *decoder) label(r *binary.Reader, b *ir.FunctionBuilder) (ir.InstrSeqID, error) {
	depth, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return b.Label(depth)
}

// memArg reads an alignment and offset pair and resolves the implicit
// memory, which is always memory zero in this encoding tier.
func (d *decoder) memArg(r *binary.Reader, opOff int) (ir.MemoryID, ir.MemArg, error) {
	align, err := r.ReadU32()
	if err != nil {
		return 0, ir.MemArg{}, err
	}
	offset, err := r.ReadU32()
	if err != nil {
		return 0, ir.MemArg{}, err
	}
	mem, err := d.memID(0)
	if err != nil {
		return 0, ir.MemArg{}, at(err, opOff)
	}
	return mem, ir.MemArg{Align: align, Offset: offset}, nil
}

// at stamps off onto errors that do not already carry an input offset.
func at(err error, off int) error {
	if err == nil {
		return nil
	}
	var e *errors.Error
	if stderrors.As(err, &e) && e.Offset < 0 {
		e.Offset = off
	}
	return err
}

// funcPath prefixes the function's index onto the error location.
func funcPath(err error, wireIdx uint32) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		e.Path = append([]string{fmt.Sprintf("func[%d]", wireIdx)}, e.Path...)
	}
	return err
}
