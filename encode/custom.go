package encode

import (
	"github.com/wippyai/wasm-ir/internal/binary"
	"github.com/wippyai/wasm-ir/ir"
)

// Tool identity recorded in the producers section when
// ir.Config.EmitProducersSection is set.
const (
	toolName    = "wasm-ir"
	toolVersion = "0.1.0"
)

const (
	nameSubModule byte = 0
	nameSubFuncs  byte = 1
	nameSubLocals byte = 2
)

// nameSection synthesizes the "name" custom section payload from the
// surviving entities, with wire indices from the renumbering. Returns
// nil when the module carries no names at all.
func (e *encoder) nameSection() []byte {
	sub := binary.NewWriter()

	if e.m.Name != "" {
		payload := binary.NewWriter()
		payload.WriteName(e.m.Name)
		writeSubsection(sub, nameSubModule, payload)
	}

	funcNames := binary.NewWriter()
	count := 0
	for _, id := range e.ids.funcOrder {
		fn := e.m.Funcs.MustGet(id)
		if fn.Name == "" {
			continue
		}
		funcNames.WriteU32(e.ids.funcs[id])
		funcNames.WriteName(fn.Name)
		count++
	}
	if count > 0 {
		payload := binary.NewWriter()
		payload.WriteU32(uint32(count))
		payload.WriteBytes(funcNames.Bytes())
		writeSubsection(sub, nameSubFuncs, payload)
	}

	localNames := binary.NewWriter()
	count = 0
	for _, id := range e.ids.funcOrder {
		fn := e.m.Funcs.MustGet(id)
		if fn.Local == nil {
			continue
		}
		entries := binary.NewWriter()
		n := 0
		for wire, lid := range localOrder(fn.Local) {
			l := fn.Local.Locals.MustGet(lid)
			if l.Name == "" {
				continue
			}
			entries.WriteU32(uint32(wire))
			entries.WriteName(l.Name)
			n++
		}
		if n == 0 {
			continue
		}
		localNames.WriteU32(e.ids.funcs[id])
		localNames.WriteU32(uint32(n))
		localNames.WriteBytes(entries.Bytes())
		count++
	}
	if count > 0 {
		payload := binary.NewWriter()
		payload.WriteU32(uint32(count))
		payload.WriteBytes(localNames.Bytes())
		writeSubsection(sub, nameSubLocals, payload)
	}

	if sub.Len() == 0 {
		return nil
	}
	out := binary.NewWriter()
	out.WriteName("name")
	out.WriteBytes(sub.Bytes())
	return out.Bytes()
}

func writeSubsection(w *binary.Writer, id byte, payload *binary.Writer) {
	w.Byte(id)
	w.WriteU32(uint32(payload.Len()))
	w.WriteBytes(payload.Bytes())
}

// producersSection emits the module's producer fields with this tool
// recorded under "processed-by". The module itself is left untouched;
// refreshing an entry that is already present keeps field and value
// order stable, so repeated encodes agree byte for byte.
func (e *encoder) producersSection() []byte {
	fields := make([]ir.ProducerField, len(e.m.Producers.Fields))
	for n, f := range e.m.Producers.Fields {
		fields[n] = ir.ProducerField{
			Name:   f.Name,
			Values: append([]ir.ProducerValue(nil), f.Values...),
		}
	}
	p := ir.Producers{Fields: fields}
	p.AddProcessedBy(toolName, toolVersion)

	out := binary.NewWriter()
	out.WriteName("producers")
	out.WriteU32(uint32(len(p.Fields)))
	for _, f := range p.Fields {
		out.WriteName(f.Name)
		out.WriteU32(uint32(len(f.Values)))
		for _, v := range f.Values {
			out.WriteName(v.Name)
			out.WriteName(v.Version)
		}
	}
	return out.Bytes()
}

func rawCustom(c ir.CustomSection) []byte {
	out := binary.NewWriter()
	out.WriteName(c.Name)
	out.WriteBytes(c.Data)
	return out.Bytes()
}
