package decode

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/internal/binary"
	"github.com/wippyai/wasm-ir/ir"
	"github.com/wippyai/wasm-ir/validate"
)

// Result is a successful decode together with its non-fatal findings.
type Result struct {
	Module *ir.Module

	// Ignored records regions that were skipped without being understood:
	// sections with unknown IDs and metadata that failed to parse.
	Ignored []*errors.Error
}

// Decode parses a WebAssembly binary into a Module and, unless
// cfg.SkipValidation is set, validates the result. Skipped regions are
// reported through the package logger.
func Decode(data []byte, cfg ir.Config) (*ir.Module, error) {
	res, err := DecodeResult(data, cfg)
	if err != nil {
		return nil, err
	}
	for _, ig := range res.Ignored {
		Logger().Warn("skipped region in input", zap.Error(ig))
	}
	return res.Module, nil
}

// DecodeResult is Decode with the skipped-region records handed to the
// caller instead of logged.
func DecodeResult(data []byte, cfg ir.Config) (*Result, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, errors.UnexpectedEOF(0, "magic word")
	}
	if magic != binary.Magic {
		return nil, errors.BadMagic(magic)
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, errors.UnexpectedEOF(4, "version word")
	}
	if version != binary.Version {
		return nil, errors.BadVersion(version)
	}

	d := &decoder{m: ir.New(), cfg: cfg}

	lastOrd := 0
	for r.Remaining() > 0 {
		idOffset := r.Offset()
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		body, err := r.Sub(int(size))
		if err != nil {
			return nil, errors.UnexpectedEOF(idOffset,
				fmt.Sprintf("%s section of declared size %d", sectionName(id), size))
		}

		if id == binary.SectionCustom {
			d.customSection(body, idOffset)
			continue
		}

		ord := sectionOrdinal(id)
		if ord == 0 {
			d.ignored = append(d.ignored, errors.New(errors.PhaseDecode, errors.KindUnknownSection).
				Offset(idOffset).
				Detail("section id %d (%d bytes)", id, size).
				Value(id).
				Build())
			continue
		}
		if ord <= lastOrd {
			return nil, errors.SectionOrder(sectionName(id), idOffset)
		}
		lastOrd = ord

		name := sectionName(id)
		Logger().Debug("decoding section",
			zap.String("section", name),
			zap.Uint32("size", size))

		if err := d.section(id, body); err != nil {
			return nil, inSection(err, name)
		}
		if body.Remaining() != 0 {
			return nil, errors.SectionSizeMismatch(name, int(size), int(size)-body.Remaining())
		}
	}

	if len(d.localTypes) > 0 && !d.sawCode {
		return nil, errors.InvalidData(errors.PhaseDecode, nil,
			fmt.Sprintf("function section declares %d bodies but there is no code section", len(d.localTypes)))
	}
	if d.dataCount != nil && int(*d.dataCount) != d.dataParsed {
		return nil, errors.InvalidData(errors.PhaseDecode, nil,
			fmt.Sprintf("data count section declares %d segments, data section has %d", *d.dataCount, d.dataParsed))
	}

	d.applyCustoms()

	if !cfg.SkipValidation {
		if err := validate.Module(d.m, cfg); err != nil {
			return nil, err
		}
	}
	return &Result{Module: d.m, Ignored: d.ignored}, nil
}

type decoder struct {
	m   *ir.Module
	cfg ir.Config

	typeIDs   []ir.TypeID
	funcIDs   []ir.FunctionID
	tableIDs  []ir.TableID
	memIDs    []ir.MemoryID
	globalIDs []ir.GlobalID
	dataIDs   []ir.DataID

	// localTypes lists the signature of each body the code section must
	// supply, in function section order.
	localTypes []ir.TypeID
	sawCode    bool

	dataCount  *uint32
	dataParsed int

	customs []rawCustom
	ignored []*errors.Error
}

type rawCustom struct {
	name   string
	data   []byte
	offset int
}

func (d *decoder) section(id byte, r *binary.Reader) error {
	switch id {
	case binary.SectionType:
		return d.typeSection(r)
	case binary.SectionImport:
		return d.importSection(r)
	case binary.SectionFunction:
		return d.functionSection(r)
	case binary.SectionTable:
		return d.tableSection(r)
	case binary.SectionMemory:
		return d.memorySection(r)
	case binary.SectionGlobal:
		return d.globalSection(r)
	case binary.SectionExport:
		return d.exportSection(r)
	case binary.SectionStart:
		return d.startSection(r)
	case binary.SectionElement:
		return d.elementSection(r)
	case binary.SectionDataCount:
		return d.dataCountSection(r)
	case binary.SectionCode:
		return d.codeSection(r)
	case binary.SectionData:
		return d.dataSection(r)
	}
	return nil
}

func (d *decoder) typeSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		formOff := r.Offset()
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != binary.FuncTypeByte {
			return unsupportedAt(formOff, fmt.Sprintf("type form 0x%02X", form))
		}
		params, err := d.valTypeVec(r)
		if err != nil {
			return err
		}
		results, err := d.valTypeVec(r)
		if err != nil {
			return err
		}
		if len(results) > 1 && !d.cfg.Features.MultiValue {
			return unsupportedAt(formOff, "multiple results require the multi-value proposal")
		}
		d.typeIDs = append(d.typeIDs, d.m.AddFuncType(params, results))
	}
	return nil
}

func (d *decoder) importSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		module, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kindOff := r.Offset()
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch kind {
		case binary.KindFunc:
			idx, err := r.ReadU32()
			if err != nil {
				return err
			}
			ty, err := d.typeID(idx)
			if err != nil {
				return err
			}
			fid, _ := d.m.ImportFunc(module, name, ty)
			d.funcIDs = append(d.funcIDs, fid)

		case binary.KindTable:
			elem, err := d.refType(r)
			if err != nil {
				return err
			}
			limits, err := d.limits(r)
			if err != nil {
				return err
			}
			tid, _ := d.m.ImportTable(module, name, elem, limits)
			d.tableIDs = append(d.tableIDs, tid)
			if err := d.checkTableCount(kindOff); err != nil {
				return err
			}

		case binary.KindMemory:
			limits, err := d.limits(r)
			if err != nil {
				return err
			}
			mid, _ := d.m.ImportMemory(module, name, limits)
			d.memIDs = append(d.memIDs, mid)
			if err := d.checkMemoryCount(kindOff); err != nil {
				return err
			}

		case binary.KindGlobal:
			ty, mutable, err := d.globalType(r)
			if err != nil {
				return err
			}
			gid, _ := d.m.ImportGlobal(module, name, ty, mutable)
			d.globalIDs = append(d.globalIDs, gid)

		default:
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Offset(kindOff).
				Detail("unknown import kind 0x%02X", kind).
				Build()
		}
	}
	return nil
}

func (d *decoder) functionSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		ty, err := d.typeID(idx)
		if err != nil {
			return err
		}
		// The body arrives later in the code section; allocating the
		// function now lets earlier functions call later ones.
		fid := d.m.Funcs.Alloc(ir.Function{Type: ty})
		d.funcIDs = append(d.funcIDs, fid)
		d.localTypes = append(d.localTypes, ty)
	}
	return nil
}

func (d *decoder) tableSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		off := r.Offset()
		elem, err := d.refType(r)
		if err != nil {
			return err
		}
		limits, err := d.limits(r)
		if err != nil {
			return err
		}
		d.tableIDs = append(d.tableIDs, d.m.AddTable(elem, limits))
		if err := d.checkTableCount(off); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) memorySection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		off := r.Offset()
		limits, err := d.limits(r)
		if err != nil {
			return err
		}
		d.memIDs = append(d.memIDs, d.m.AddMemory(limits))
		if err := d.checkMemoryCount(off); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) globalSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		ty, mutable, err := d.globalType(r)
		if err != nil {
			return err
		}
		init, err := d.constExpr(r)
		if err != nil {
			return err
		}
		d.globalIDs = append(d.globalIDs, d.m.AddGlobal(ty, mutable, init))
	}
	return nil
}

func (d *decoder) exportSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kindOff := r.Offset()
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		switch kind {
		case binary.KindFunc:
			f, err := d.funcID(idx)
			if err != nil {
				return err
			}
			d.m.ExportFunc(name, f)
		case binary.KindTable:
			t, err := d.tableID(idx)
			if err != nil {
				return err
			}
			d.m.ExportTable(name, t)
		case binary.KindMemory:
			mem, err := d.memID(idx)
			if err != nil {
				return err
			}
			d.m.ExportMemory(name, mem)
		case binary.KindGlobal:
			g, err := d.globalID(idx)
			if err != nil {
				return err
			}
			d.m.ExportGlobal(name, g)
		default:
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Offset(kindOff).
				Detail("unknown export kind 0x%02X", kind).
				Build()
		}
	}
	return nil
}

func (d *decoder) startSection(r *binary.Reader) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	f, err := d.funcID(idx)
	if err != nil {
		return err
	}
	d.m.SetStart(f)
	return nil
}

func (d *decoder) elementSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		flagsOff := r.Offset()
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		var seg ir.ElementSegment
		switch flags {
		case 0:
			table, err := d.tableID(0)
			if err != nil {
				return err
			}
			offset, err := d.constExpr(r)
			if err != nil {
				return err
			}
			members, err := d.funcVec(r)
			if err != nil {
				return err
			}
			seg = ir.ElementSegment{Kind: ir.ElementActive, Table: table, Offset: offset, Members: members}

		case 1:
			if !d.cfg.Features.BulkMemory {
				return unsupportedAt(flagsOff, "passive element segments require the bulk-memory proposal")
			}
			if err := d.elemKind(r); err != nil {
				return err
			}
			members, err := d.funcVec(r)
			if err != nil {
				return err
			}
			seg = ir.ElementSegment{Kind: ir.ElementPassive, Members: members}

		case 2:
			if !d.cfg.Features.ReferenceTypes {
				return unsupportedAt(flagsOff, "explicit table indices require the reference-types proposal")
			}
			idx, err := r.ReadU32()
			if err != nil {
				return err
			}
			table, err := d.tableID(idx)
			if err != nil {
				return err
			}
			offset, err := d.constExpr(r)
			if err != nil {
				return err
			}
			if err := d.elemKind(r); err != nil {
				return err
			}
			members, err := d.funcVec(r)
			if err != nil {
				return err
			}
			seg = ir.ElementSegment{Kind: ir.ElementActive, Table: table, Offset: offset, Members: members}

		case 3:
			if !d.cfg.Features.ReferenceTypes {
				return unsupportedAt(flagsOff, "declared element segments require the reference-types proposal")
			}
			if err := d.elemKind(r); err != nil {
				return err
			}
			members, err := d.funcVec(r)
			if err != nil {
				return err
			}
			seg = ir.ElementSegment{Kind: ir.ElementDeclared, Members: members}

		default:
			return unsupportedAt(flagsOff, fmt.Sprintf("element segment encoding %d (expression form)", flags))
		}
		d.m.Elements.Alloc(seg)
	}
	return nil
}

func (d *decoder) dataCountSection(r *binary.Reader) error {
	if !d.cfg.Features.BulkMemory {
		return unsupportedAt(r.Offset(), "the data count section requires the bulk-memory proposal")
	}
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.dataCount = &count
	// Segments are allocated up front so data.drop and memory.init in
	// the code section can reference them before the data section.
	for n := uint32(0); n < count; n++ {
		d.dataIDs = append(d.dataIDs, d.m.Data.Alloc(ir.DataSegment{Kind: ir.DataPassive}))
	}
	return nil
}

func (d *decoder) dataSection(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if d.dataCount != nil && count != *d.dataCount {
		return errors.InvalidData(errors.PhaseDecode, nil,
			fmt.Sprintf("data count section declares %d segments, data section has %d", *d.dataCount, count))
	}
	for n := uint32(0); n < count; n++ {
		flagsOff := r.Offset()
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		var seg ir.DataSegment
		switch flags {
		case 0:
			mem, err := d.memID(0)
			if err != nil {
				return err
			}
			offset, err := d.constExpr(r)
			if err != nil {
				return err
			}
			value, err := d.byteVec(r)
			if err != nil {
				return err
			}
			seg = ir.DataSegment{Kind: ir.DataActive, Memory: mem, Offset: offset, Value: value}

		case 1:
			if !d.cfg.Features.BulkMemory {
				return unsupportedAt(flagsOff, "passive data segments require the bulk-memory proposal")
			}
			value, err := d.byteVec(r)
			if err != nil {
				return err
			}
			seg = ir.DataSegment{Kind: ir.DataPassive, Value: value}

		case 2:
			if !d.cfg.Features.BulkMemory {
				return unsupportedAt(flagsOff, "explicit memory indices require the bulk-memory proposal")
			}
			idx, err := r.ReadU32()
			if err != nil {
				return err
			}
			mem, err := d.memID(idx)
			if err != nil {
				return err
			}
			offset, err := d.constExpr(r)
			if err != nil {
				return err
			}
			value, err := d.byteVec(r)
			if err != nil {
				return err
			}
			seg = ir.DataSegment{Kind: ir.DataActive, Memory: mem, Offset: offset, Value: value}

		default:
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Offset(flagsOff).
				Detail("data segment flags %d", flags).
				Build()
		}

		if int(n) < len(d.dataIDs) {
			*d.m.Data.MustGet(d.dataIDs[n]) = seg
		} else {
			d.dataIDs = append(d.dataIDs, d.m.Data.Alloc(seg))
		}
		d.dataParsed++
	}
	return nil
}

func sectionOrdinal(id byte) int {
	switch id {
	case binary.SectionType:
		return 1
	case binary.SectionImport:
		return 2
	case binary.SectionFunction:
		return 3
	case binary.SectionTable:
		return 4
	case binary.SectionMemory:
		return 5
	case binary.SectionGlobal:
		return 6
	case binary.SectionExport:
		return 7
	case binary.SectionStart:
		return 8
	case binary.SectionElement:
		return 9
	case binary.SectionDataCount:
		return 10
	case binary.SectionCode:
		return 11
	case binary.SectionData:
		return 12
	}
	return 0
}

func sectionName(id byte) string {
	switch id {
	case binary.SectionCustom:
		return "custom"
	case binary.SectionType:
		return "type"
	case binary.SectionImport:
		return "import"
	case binary.SectionFunction:
		return "function"
	case binary.SectionTable:
		return "table"
	case binary.SectionMemory:
		return "memory"
	case binary.SectionGlobal:
		return "global"
	case binary.SectionExport:
		return "export"
	case binary.SectionStart:
		return "start"
	case binary.SectionElement:
		return "element"
	case binary.SectionCode:
		return "code"
	case binary.SectionData:
		return "data"
	case binary.SectionDataCount:
		return "data count"
	}
	return fmt.Sprintf("id %d", id)
}
