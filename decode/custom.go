package decode

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/internal/binary"
	"github.com/wippyai/wasm-ir/ir"
)

// Name subsection IDs.
const (
	nameSubModule byte = 0
	nameSubFuncs  byte = 1
	nameSubLocals byte = 2
)

// customSection stashes a custom section for later. Known metadata refers
// to entities by index, so it cannot be applied until every index space is
// complete.
func (d *decoder) customSection(r *binary.Reader, off int) {
	name, err := r.ReadName()
	if err != nil {
		e := errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "custom section with unreadable name")
		e.Offset = off
		d.ignored = append(d.ignored, e)
		return
	}
	payloadOff := r.Offset()
	data := append([]byte(nil), r.ReadRemaining()...)
	d.customs = append(d.customs, rawCustom{name: name, data: data, offset: payloadOff})
}

// applyCustoms interprets the stashed custom sections. Parse failures in
// known metadata demote the section to an opaque blob instead of failing
// the decode.
func (d *decoder) applyCustoms() {
	for _, c := range d.customs {
		switch c.name {
		case "name":
			if err := d.parseNames(binary.NewReaderAt(c.data, c.offset)); err != nil {
				d.ignore(err)
				d.preserveRaw(c)
			}
		case "producers":
			if err := d.parseProducers(binary.NewReaderAt(c.data, c.offset)); err != nil {
				d.ignore(err)
				d.preserveRaw(c)
			}
		default:
			d.preserveRaw(c)
		}
	}
}

func (d *decoder) preserveRaw(c rawCustom) {
	if !d.cfg.PreserveCustomSections {
		Logger().Debug("dropping custom section",
			zap.String("name", c.name),
			zap.Int("size", len(c.data)))
		return
	}
	d.m.Customs = append(d.m.Customs, ir.CustomSection{Name: c.name, Data: c.data})
}

func (d *decoder) ignore(err error) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "custom section")
	}
	d.ignored = append(d.ignored, e)
}

// parseNames reads the "name" custom section and attaches the debug names
// it carries to the module, its functions and their locals.
func (d *decoder) parseNames(r *binary.Reader) error {
	for r.Remaining() > 0 {
		idOff := r.Offset()
		id, err := r.ReadByte()
		if err != nil {
			return err
		}
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		sub, err := r.Sub(int(size))
		if err != nil {
			return errors.UnexpectedEOF(idOff, fmt.Sprintf("name subsection %d of declared size %d", id, size))
		}

		switch id {
		case nameSubModule:
			name, err := sub.ReadName()
			if err != nil {
				return err
			}
			d.m.Name = name

		case nameSubFuncs:
			count, err := sub.ReadU32()
			if err != nil {
				return err
			}
			for n := uint32(0); n < count; n++ {
				idx, err := sub.ReadU32()
				if err != nil {
					return err
				}
				name, err := sub.ReadName()
				if err != nil {
					return err
				}
				f, err := d.funcID(idx)
				if err != nil {
					return inSection(err, "name")
				}
				d.m.Funcs.MustGet(f).Name = name
			}

		case nameSubLocals:
			if err := d.parseLocalNames(sub); err != nil {
				return err
			}

		default:
			Logger().Debug("skipping name subsection", zap.Uint8("id", id))
			sub.ReadRemaining()
		}

		if sub.Remaining() != 0 {
			return errors.SectionSizeMismatch(
				fmt.Sprintf("name subsection %d", id), int(size), int(size)-sub.Remaining())
		}
	}
	return nil
}

func (d *decoder) parseLocalNames(r *binary.Reader) error {
	funcs, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < funcs; n++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		f, err := d.funcID(idx)
		if err != nil {
			return inSection(err, "name")
		}
		fn := d.m.Funcs.MustGet(f)

		count, err := r.ReadU32()
		if err != nil {
			return err
		}
		for k := uint32(0); k < count; k++ {
			localIdx, err := r.ReadU32()
			if err != nil {
				return err
			}
			name, err := r.ReadName()
			if err != nil {
				return err
			}
			// Imported functions carry no bodies, so their entries have
			// nothing to attach to.
			if fn.Local == nil || int(localIdx) >= fn.Local.Locals.Len() {
				continue
			}
			fn.Local.Locals.MustGet(ir.LocalID(localIdx)).Name = name
		}
	}
	return nil
}

// parseProducers reads the "producers" custom section into structured
// fields so tooling entries survive a round trip.
func (d *decoder) parseProducers(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for n := uint32(0); n < count; n++ {
		fieldName, err := r.ReadName()
		if err != nil {
			return err
		}
		values, err := r.ReadU32()
		if err != nil {
			return err
		}
		field := ir.ProducerField{Name: fieldName}
		for k := uint32(0); k < values; k++ {
			name, err := r.ReadName()
			if err != nil {
				return err
			}
			version, err := r.ReadName()
			if err != nil {
				return err
			}
			field.Values = append(field.Values, ir.ProducerValue{Name: name, Version: version})
		}
		d.m.Producers.Fields = append(d.m.Producers.Fields, field)
	}
	if r.Remaining() != 0 {
		return errors.New(errors.PhaseDecode, errors.KindSectionSizeMismatch).
			Section("producers").
			Offset(r.Offset()).
			Detail("%d bytes left over after %d fields", r.Remaining(), count).
			Build()
	}
	return nil
}
