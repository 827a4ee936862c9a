package encode

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/internal/binary"
	"github.com/wippyai/wasm-ir/ir"
	"github.com/wippyai/wasm-ir/validate"
)

// Encode serializes a module into canonical WebAssembly binary form.
// Unless cfg.SkipValidation is set the module is validated first.
// Entities unreachable from the exports and the start function are not
// emitted, and the survivors are renumbered densely, so the output never
// depends on how the arenas were populated. Encoding the result of
// decoding the output again reproduces the same bytes.
func Encode(m *ir.Module, cfg ir.Config) ([]byte, error) {
	if !cfg.SkipValidation {
		if err := validate.Module(m, cfg); err != nil {
			return nil, err
		}
	}

	u, err := computeUsed(m)
	if err != nil {
		return nil, err
	}
	ids := renumber(m, u)

	Logger().Debug("encoding module",
		zap.String("name", m.Name),
		zap.Int("functions", len(ids.funcOrder)),
		zap.Int("types", len(ids.typeList)),
		zap.Bool("parallel", cfg.ParallelEncoding))

	e := &encoder{m: m, cfg: cfg, used: u, ids: ids}
	out := binary.NewWriter()
	out.WriteU32LE(binary.Magic)
	out.WriteU32LE(binary.Version)
	if err := e.sections(out); err != nil {
		return nil, err
	}

	Logger().Debug("module encoded", zap.Int("bytes", out.Len()))
	return out.Bytes(), nil
}

type encoder struct {
	m    *ir.Module
	cfg  ir.Config
	used *usedSet
	ids  *wireIndex
}

// sections writes every non-empty section in canonical order: the known
// sections by ordinal with the data count ahead of code, then the
// synthesized and preserved custom sections.
func (e *encoder) sections(out *binary.Writer) error {
	order := []struct {
		id    byte
		build func() ([]byte, error)
	}{
		{binary.SectionType, e.typeSection},
		{binary.SectionImport, e.importSection},
		{binary.SectionFunction, e.functionSection},
		{binary.SectionTable, e.tableSection},
		{binary.SectionMemory, e.memorySection},
		{binary.SectionGlobal, e.globalSection},
		{binary.SectionExport, e.exportSection},
		{binary.SectionStart, e.startSection},
		{binary.SectionElement, e.elementSection},
		{binary.SectionDataCount, e.dataCountSection},
		{binary.SectionCode, e.codeSection},
		{binary.SectionData, e.dataSection},
	}
	for _, s := range order {
		body, err := s.build()
		if err != nil {
			return err
		}
		if len(body) == 0 {
			continue
		}
		out.Byte(s.id)
		out.WriteU32(uint32(len(body)))
		out.WriteBytes(body)
	}

	if e.cfg.EmitNameSection {
		writeCustom(out, e.nameSection())
	}
	if e.cfg.EmitProducersSection {
		writeCustom(out, e.producersSection())
	}
	if e.cfg.PreserveCustomSections {
		for _, c := range e.m.Customs {
			writeCustom(out, rawCustom(c))
		}
	}
	return nil
}

func writeCustom(out *binary.Writer, body []byte) {
	if len(body) == 0 {
		return
	}
	out.Byte(binary.SectionCustom)
	out.WriteU32(uint32(len(body)))
	out.WriteBytes(body)
}

func (e *encoder) typeSection() ([]byte, error) {
	if len(e.ids.typeList) == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.typeList)))
	for _, id := range e.ids.typeList {
		ty := e.m.Types.MustGet(id)
		w.Byte(binary.FuncTypeByte)
		w.WriteU32(uint32(len(ty.Params)))
		for _, p := range ty.Params {
			w.Byte(byte(p))
		}
		w.WriteU32(uint32(len(ty.Results)))
		for _, r := range ty.Results {
			w.Byte(byte(r))
		}
	}
	return w.Bytes(), nil
}

func (e *encoder) importSection() ([]byte, error) {
	if len(e.ids.importList) == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.importList)))
	for _, id := range e.ids.importList {
		imp := e.m.Imports.MustGet(id)
		w.WriteName(imp.Module)
		w.WriteName(imp.Name)
		w.Byte(byte(imp.Kind))

		switch imp.Kind {
		case ir.ExternFunc:
			fn, err := e.m.Funcs.Get(imp.Func)
			if err != nil {
				return nil, errors.DanglingID("function", uint32(imp.Func))
			}
			idx, err := e.ids.typeIdx(fn.Type)
			if err != nil {
				return nil, err
			}
			w.WriteU32(idx)

		case ir.ExternTable:
			t, err := e.m.Tables.Get(imp.Table)
			if err != nil {
				return nil, errors.DanglingID("table", uint32(imp.Table))
			}
			w.Byte(byte(t.ElemType))
			writeLimits(w, t.Limits)

		case ir.ExternMemory:
			mem, err := e.m.Memories.Get(imp.Memory)
			if err != nil {
				return nil, errors.DanglingID("memory", uint32(imp.Memory))
			}
			writeLimits(w, mem.Limits)

		case ir.ExternGlobal:
			g, err := e.m.Globals.Get(imp.Global)
			if err != nil {
				return nil, errors.DanglingID("global", uint32(imp.Global))
			}
			w.Byte(byte(g.Type))
			writeMut(w, g.Mutable)

		default:
			return nil, errors.BadState(errors.PhaseEncode, fmt.Sprintf("unknown import kind %d", imp.Kind))
		}
	}
	return w.Bytes(), nil
}

func (e *encoder) functionSection() ([]byte, error) {
	if len(e.ids.localFuncs) == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.localFuncs)))
	for _, id := range e.ids.localFuncs {
		fn := e.m.Funcs.MustGet(id)
		idx, err := e.ids.typeIdx(fn.Type)
		if err != nil {
			return nil, err
		}
		w.WriteU32(idx)
	}
	return w.Bytes(), nil
}

func (e *encoder) tableSection() ([]byte, error) {
	if len(e.ids.localTables) == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.localTables)))
	for _, id := range e.ids.localTables {
		t := e.m.Tables.MustGet(id)
		w.Byte(byte(t.ElemType))
		writeLimits(w, t.Limits)
	}
	return w.Bytes(), nil
}

func (e *encoder) memorySection() ([]byte, error) {
	if len(e.ids.localMems) == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.localMems)))
	for _, id := range e.ids.localMems {
		writeLimits(w, e.m.Memories.MustGet(id).Limits)
	}
	return w.Bytes(), nil
}

func (e *encoder) globalSection() ([]byte, error) {
	if len(e.ids.localGlobals) == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.localGlobals)))
	for _, id := range e.ids.localGlobals {
		g := e.m.Globals.MustGet(id)
		w.Byte(byte(g.Type))
		writeMut(w, g.Mutable)
		if err := e.constExpr(w, g.Init); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func (e *encoder) exportSection() ([]byte, error) {
	if e.m.Exports.Len() == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(e.m.Exports.Len()))
	var failed error
	e.m.Exports.All(func(_ ir.ExportID, x *ir.Export) bool {
		w.WriteName(x.Name)
		w.Byte(byte(x.Kind))

		var idx uint32
		var err error
		switch x.Kind {
		case ir.ExternFunc:
			idx, err = e.ids.funcIdx(x.Func)
		case ir.ExternTable:
			idx, err = e.ids.tableIdx(x.Table)
		case ir.ExternMemory:
			idx, err = e.ids.memIdx(x.Memory)
		case ir.ExternGlobal:
			idx, err = e.ids.globalIdx(x.Global)
		default:
			err = errors.BadState(errors.PhaseEncode, fmt.Sprintf("unknown export kind %d", x.Kind))
		}
		if err != nil {
			failed = err
			return false
		}
		w.WriteU32(idx)
		return true
	})
	if failed != nil {
		return nil, failed
	}
	return w.Bytes(), nil
}

func (e *encoder) startSection() ([]byte, error) {
	if e.m.Start == nil {
		return nil, nil
	}
	idx, err := e.ids.funcIdx(*e.m.Start)
	if err != nil {
		return nil, err
	}
	w := binary.NewWriter()
	w.WriteU32(idx)
	return w.Bytes(), nil
}

func (e *encoder) elementSection() ([]byte, error) {
	if len(e.ids.elemList) == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.elemList)))
	for _, id := range e.ids.elemList {
		seg := e.m.Elements.MustGet(id)
		switch seg.Kind {
		case ir.ElementActive:
			idx, err := e.ids.tableIdx(seg.Table)
			if err != nil {
				return nil, err
			}
			if idx == 0 {
				w.WriteU32(0)
			} else {
				w.WriteU32(2)
				w.WriteU32(idx)
			}
			if err := e.constExpr(w, seg.Offset); err != nil {
				return nil, err
			}
			if idx != 0 {
				w.Byte(0x00) // elemkind: funcref
			}
		case ir.ElementPassive:
			w.WriteU32(1)
			w.Byte(0x00)
		case ir.ElementDeclared:
			w.WriteU32(3)
			w.Byte(0x00)
		default:
			return nil, errors.BadState(errors.PhaseEncode, fmt.Sprintf("unknown element segment kind %d", seg.Kind))
		}

		w.WriteU32(uint32(len(seg.Members)))
		for _, f := range seg.Members {
			idx, err := e.ids.funcIdx(f)
			if err != nil {
				return nil, err
			}
			w.WriteU32(idx)
		}
	}
	return w.Bytes(), nil
}

// dataCountSection is emitted only when a body keeps a memory.init or
// data.drop, the instructions whose decoding needs the segment count
// before the data section arrives.
func (e *encoder) dataCountSection() ([]byte, error) {
	if !e.used.bulkData {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.dataList)))
	return w.Bytes(), nil
}

func (e *encoder) codeSection() ([]byte, error) {
	if len(e.ids.localFuncs) == 0 {
		return nil, nil
	}
	bodies, err := e.funcBodies()
	if err != nil {
		return nil, err
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(bodies)))
	for _, b := range bodies {
		w.WriteU32(uint32(len(b)))
		w.WriteBytes(b)
	}
	return w.Bytes(), nil
}

func (e *encoder) dataSection() ([]byte, error) {
	if len(e.ids.dataList) == 0 {
		return nil, nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(e.ids.dataList)))
	for _, id := range e.ids.dataList {
		seg := e.m.Data.MustGet(id)
		switch seg.Kind {
		case ir.DataActive:
			idx, err := e.ids.memIdx(seg.Memory)
			if err != nil {
				return nil, err
			}
			if idx == 0 {
				w.WriteU32(0)
			} else {
				w.WriteU32(2)
				w.WriteU32(idx)
			}
			if err := e.constExpr(w, seg.Offset); err != nil {
				return nil, err
			}
		case ir.DataPassive:
			w.WriteU32(1)
		default:
			return nil, errors.BadState(errors.PhaseEncode, fmt.Sprintf("unknown data segment kind %d", seg.Kind))
		}
		w.WriteU32(uint32(len(seg.Value)))
		w.WriteBytes(seg.Value)
	}
	return w.Bytes(), nil
}

// constExpr writes a single-instruction constant expression with its
// terminating end.
func (e *encoder) constExpr(w *binary.Writer, x ir.ConstExpr) error {
	switch x.Kind {
	case ir.ConstValue:
		switch x.Value.Type {
		case ir.I32:
			w.Byte(binary.OpI32Const)
			w.WriteS32(x.Value.I32)
		case ir.I64:
			w.Byte(binary.OpI64Const)
			w.WriteS64(x.Value.I64)
		case ir.F32:
			w.Byte(binary.OpF32Const)
			w.WriteF32(x.Value.F32)
		case ir.F64:
			w.Byte(binary.OpF64Const)
			w.WriteF64(x.Value.F64)
		default:
			return errors.BadState(errors.PhaseEncode, fmt.Sprintf("constant expression of type %s", x.Value.Type))
		}
	case ir.ConstGlobalGet:
		idx, err := e.ids.globalIdx(x.Global)
		if err != nil {
			return err
		}
		w.Byte(binary.OpGlobalGet)
		w.WriteU32(idx)
	case ir.ConstRefNull:
		w.Byte(binary.OpRefNull)
		w.Byte(byte(x.RefType))
	case ir.ConstRefFunc:
		idx, err := e.ids.funcIdx(x.Func)
		if err != nil {
			return err
		}
		w.Byte(binary.OpRefFunc)
		w.WriteU32(idx)
	default:
		return errors.BadState(errors.PhaseEncode, fmt.Sprintf("unknown constant expression kind %d", x.Kind))
	}
	w.Byte(binary.OpEnd)
	return nil
}

func writeLimits(w *binary.Writer, l ir.Limits) {
	if l.Max == nil {
		w.Byte(binary.LimitsNoMax)
		w.WriteU64(l.Min)
		return
	}
	w.Byte(binary.LimitsHasMax)
	w.WriteU64(l.Min)
	w.WriteU64(*l.Max)
}

func writeMut(w *binary.Writer, mutable bool) {
	if mutable {
		w.Byte(0x01)
	} else {
		w.Byte(0x00)
	}
}
