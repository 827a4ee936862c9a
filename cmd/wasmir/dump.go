package main

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-ir/ir"
)

// dumpModule renders a stable text listing of the whole module: types,
// imports, entity declarations, function bodies, exports and segments.
// Two modules with the same structure produce the same text, so the
// listing doubles as the unit the diff command compares.
func dumpModule(m *ir.Module) string {
	var b strings.Builder

	b.WriteString("module")
	if m.Name != "" {
		b.WriteString(" $" + m.Name)
	}
	b.WriteString("\n")

	m.Types.All(func(id ir.TypeID, ty *ir.Type) bool {
		fmt.Fprintf(&b, "  (type %d) %s\n", id, typeSignature(ty))
		return true
	})

	m.Imports.All(func(_ ir.ImportID, imp *ir.Import) bool {
		fmt.Fprintf(&b, "  (import %q %q) %s", imp.Module, imp.Name, imp.Kind)
		switch imp.Kind {
		case ir.ExternFunc:
			if fn, err := m.Funcs.Get(imp.Func); err == nil {
				if ty, err := m.Types.Get(fn.Type); err == nil {
					fmt.Fprintf(&b, "[%d] %s", imp.Func, typeSignature(ty))
				}
			}
		case ir.ExternTable:
			if t, err := m.Tables.Get(imp.Table); err == nil {
				fmt.Fprintf(&b, "[%d] %s %s", imp.Table, t.ElemType, limitsText(t.Limits))
			}
		case ir.ExternMemory:
			if mem, err := m.Memories.Get(imp.Memory); err == nil {
				fmt.Fprintf(&b, "[%d] %s", imp.Memory, limitsText(mem.Limits))
			}
		case ir.ExternGlobal:
			if g, err := m.Globals.Get(imp.Global); err == nil {
				fmt.Fprintf(&b, "[%d] %s", imp.Global, globalText(g))
			}
		}
		b.WriteString("\n")
		return true
	})

	m.Tables.All(func(id ir.TableID, t *ir.Table) bool {
		if !t.Imported() {
			fmt.Fprintf(&b, "  (table %d) %s %s\n", id, t.ElemType, limitsText(t.Limits))
		}
		return true
	})
	m.Memories.All(func(id ir.MemoryID, mem *ir.Memory) bool {
		if !mem.Imported() {
			fmt.Fprintf(&b, "  (memory %d) %s\n", id, limitsText(mem.Limits))
		}
		return true
	})
	m.Globals.All(func(id ir.GlobalID, g *ir.Global) bool {
		if !g.Imported() {
			fmt.Fprintf(&b, "  (global %d) %s = %s\n", id, globalText(g), constExprText(g.Init))
		}
		return true
	})

	m.Funcs.All(func(id ir.FunctionID, fn *ir.Function) bool {
		if !fn.Imported() {
			b.WriteString(dumpFunction(m, id, fn))
		}
		return true
	})

	m.Exports.All(func(_ ir.ExportID, e *ir.Export) bool {
		fmt.Fprintf(&b, "  (export %q) %s[%d]\n", e.Name, e.Kind, exportTarget(e))
		return true
	})
	if m.Start != nil {
		fmt.Fprintf(&b, "  (start func[%d])\n", *m.Start)
	}

	m.Elements.All(func(id ir.ElementID, seg *ir.ElementSegment) bool {
		fmt.Fprintf(&b, "  (elem %d) %s", id, elementKindText(seg.Kind))
		if seg.Kind == ir.ElementActive {
			fmt.Fprintf(&b, " table[%d] offset=%s", seg.Table, constExprText(seg.Offset))
		}
		refs := make([]string, len(seg.Members))
		for n, f := range seg.Members {
			refs[n] = fmt.Sprintf("func[%d]", f)
		}
		fmt.Fprintf(&b, ": %s\n", strings.Join(refs, " "))
		return true
	})
	m.Data.All(func(id ir.DataID, seg *ir.DataSegment) bool {
		fmt.Fprintf(&b, "  (data %d)", id)
		if seg.Kind == ir.DataActive {
			fmt.Fprintf(&b, " active memory[%d] offset=%s", seg.Memory, constExprText(seg.Offset))
		} else {
			b.WriteString(" passive")
		}
		fmt.Fprintf(&b, ": %d bytes\n", len(seg.Value))
		return true
	})

	for _, c := range m.Customs {
		fmt.Fprintf(&b, "  (custom %q) %d bytes\n", c.Name, len(c.Data))
	}
	if !m.Producers.Empty() {
		for _, f := range m.Producers.Fields {
			vals := make([]string, len(f.Values))
			for n, v := range f.Values {
				vals[n] = v.Name
				if v.Version != "" {
					vals[n] += " " + v.Version
				}
			}
			fmt.Fprintf(&b, "  (producers %s) %s\n", f.Name, strings.Join(vals, ", "))
		}
	}

	return b.String()
}

// dumpFunction renders one local function: its header, declared locals
// and the instruction tree with sequence labels.
func dumpFunction(m *ir.Module, id ir.FunctionID, fn *ir.Function) string {
	var b strings.Builder

	fmt.Fprintf(&b, "  (func %d)", id)
	if fn.Name != "" {
		b.WriteString(" $" + fn.Name)
	}
	if ty, err := m.Types.Get(fn.Type); err == nil {
		b.WriteString(" " + typeSignature(ty))
	}
	b.WriteString("\n")

	if fn.Local == nil {
		return b.String()
	}
	if n := fn.Local.Locals.Len(); n > len(fn.Local.Args) {
		var decls []string
		fn.Local.Locals.All(func(lid ir.LocalID, l *ir.Local) bool {
			for _, arg := range fn.Local.Args {
				if arg == lid {
					return true
				}
			}
			d := l.Type.String()
			if l.Name != "" {
				d += " $" + l.Name
			}
			decls = append(decls, d)
			return true
		})
		fmt.Fprintf(&b, "    locals: %s\n", strings.Join(decls, ", "))
	}

	writeSeq(&b, m, fn.Local, fn.Local.Entry, "    ")
	return b.String()
}

func writeSeq(b *strings.Builder, m *ir.Module, f *ir.LocalFunction, id ir.InstrSeqID, indent string) {
	seq, err := f.Seqs.Get(id)
	if err != nil {
		fmt.Fprintf(b, "%s<missing seq %d>\n", indent, id)
		return
	}
	for _, in := range seq.Instrs {
		writeInstr(b, m, f, in, indent)
	}
}

func writeInstr(b *strings.Builder, m *ir.Module, f *ir.LocalFunction, in ir.Instr, indent string) {
	switch i := in.(type) {
	case ir.Block:
		fmt.Fprintf(b, "%sblock $s%d%s\n", indent, i.Seq, seqTypeText(m, f, i.Seq))
		writeSeq(b, m, f, i.Seq, indent+"  ")
		fmt.Fprintf(b, "%send\n", indent)
	case ir.Loop:
		fmt.Fprintf(b, "%sloop $s%d%s\n", indent, i.Seq, seqTypeText(m, f, i.Seq))
		writeSeq(b, m, f, i.Seq, indent+"  ")
		fmt.Fprintf(b, "%send\n", indent)
	case ir.IfElse:
		fmt.Fprintf(b, "%sif $s%d%s\n", indent, i.Consequent, seqTypeText(m, f, i.Consequent))
		writeSeq(b, m, f, i.Consequent, indent+"  ")
		if alt, err := f.Seqs.Get(i.Alternative); err == nil && len(alt.Instrs) > 0 {
			fmt.Fprintf(b, "%selse $s%d\n", indent, i.Alternative)
			writeSeq(b, m, f, i.Alternative, indent+"  ")
		}
		fmt.Fprintf(b, "%send\n", indent)
	case ir.Br:
		fmt.Fprintf(b, "%sbr $s%d\n", indent, i.Target)
	case ir.BrIf:
		fmt.Fprintf(b, "%sbr_if $s%d\n", indent, i.Target)
	case ir.BrTable:
		targets := make([]string, len(i.Targets))
		for n, t := range i.Targets {
			targets[n] = fmt.Sprintf("$s%d", t)
		}
		fmt.Fprintf(b, "%sbr_table %s default $s%d\n", indent, strings.Join(targets, " "), i.Default)
	case ir.Return:
		fmt.Fprintf(b, "%sreturn\n", indent)
	case ir.Unreachable:
		fmt.Fprintf(b, "%sunreachable\n", indent)
	case ir.Nop:
		fmt.Fprintf(b, "%snop\n", indent)
	case ir.Call:
		fmt.Fprintf(b, "%scall func[%d]\n", indent, i.Func)
	case ir.CallIndirect:
		fmt.Fprintf(b, "%scall_indirect (type %d) table[%d]\n", indent, i.Type, i.Table)
	case ir.Drop:
		fmt.Fprintf(b, "%sdrop\n", indent)
	case ir.Select:
		if i.Type != nil {
			fmt.Fprintf(b, "%sselect %s\n", indent, *i.Type)
		} else {
			fmt.Fprintf(b, "%sselect\n", indent)
		}
	case ir.Const:
		fmt.Fprintf(b, "%s%s.const %s\n", indent, i.Value.Type, constValueText(i.Value))
	case ir.Unop:
		fmt.Fprintf(b, "%s%s\n", indent, i.Op)
	case ir.Binop:
		fmt.Fprintf(b, "%s%s\n", indent, i.Op)
	case ir.LocalGet:
		fmt.Fprintf(b, "%slocal.get %s\n", indent, localText(f, i.Local))
	case ir.LocalSet:
		fmt.Fprintf(b, "%slocal.set %s\n", indent, localText(f, i.Local))
	case ir.LocalTee:
		fmt.Fprintf(b, "%slocal.tee %s\n", indent, localText(f, i.Local))
	case ir.GlobalGet:
		fmt.Fprintf(b, "%sglobal.get global[%d]\n", indent, i.Global)
	case ir.GlobalSet:
		fmt.Fprintf(b, "%sglobal.set global[%d]\n", indent, i.Global)
	case ir.Load:
		fmt.Fprintf(b, "%s%s align=%d offset=%d\n", indent, i.Kind, i.Arg.Align, i.Arg.Offset)
	case ir.Store:
		fmt.Fprintf(b, "%s%s align=%d offset=%d\n", indent, i.Kind, i.Arg.Align, i.Arg.Offset)
	case ir.MemorySize:
		fmt.Fprintf(b, "%smemory.size memory[%d]\n", indent, i.Memory)
	case ir.MemoryGrow:
		fmt.Fprintf(b, "%smemory.grow memory[%d]\n", indent, i.Memory)
	case ir.MemoryInit:
		fmt.Fprintf(b, "%smemory.init data[%d] memory[%d]\n", indent, i.Data, i.Memory)
	case ir.DataDrop:
		fmt.Fprintf(b, "%sdata.drop data[%d]\n", indent, i.Data)
	case ir.MemoryCopy:
		fmt.Fprintf(b, "%smemory.copy memory[%d] memory[%d]\n", indent, i.Dst, i.Src)
	case ir.MemoryFill:
		fmt.Fprintf(b, "%smemory.fill memory[%d]\n", indent, i.Memory)
	case ir.RefNull:
		fmt.Fprintf(b, "%sref.null %s\n", indent, i.Type)
	case ir.RefIsNull:
		fmt.Fprintf(b, "%sref.is_null\n", indent)
	case ir.RefFunc:
		fmt.Fprintf(b, "%sref.func func[%d]\n", indent, i.Func)
	default:
		fmt.Fprintf(b, "%s<%T>\n", indent, in)
	}
}

func typeSignature(ty *ir.Type) string {
	return "(" + valTypeList(ty.Params) + ") -> (" + valTypeList(ty.Results) + ")"
}

func valTypeList(types []ir.ValType) string {
	parts := make([]string, len(types))
	for n, t := range types {
		parts[n] = t.String()
	}
	return strings.Join(parts, ", ")
}

func seqTypeText(m *ir.Module, f *ir.LocalFunction, id ir.InstrSeqID) string {
	seq, err := f.Seqs.Get(id)
	if err != nil {
		return ""
	}
	switch seq.Ty.Kind {
	case ir.SeqSimple:
		if seq.Ty.Result == nil {
			return ""
		}
		return " (result " + seq.Ty.Result.String() + ")"
	case ir.SeqFunc:
		if ty, err := m.Types.Get(seq.Ty.Func); err == nil {
			return " " + typeSignature(ty)
		}
	}
	return ""
}

func localText(f *ir.LocalFunction, id ir.LocalID) string {
	if l, err := f.Locals.Get(id); err == nil && l.Name != "" {
		return "$" + l.Name
	}
	return fmt.Sprintf("%d", id)
}

func globalText(g *ir.Global) string {
	if g.Mutable {
		return "mut " + g.Type.String()
	}
	return g.Type.String()
}

func constValueText(v ir.Value) string {
	switch v.Type {
	case ir.I32:
		return fmt.Sprintf("%d", v.I32)
	case ir.I64:
		return fmt.Sprintf("%d", v.I64)
	case ir.F32:
		return fmt.Sprintf("%g", v.F32)
	case ir.F64:
		return fmt.Sprintf("%g", v.F64)
	}
	return v.String()
}

func constExprText(x ir.ConstExpr) string {
	switch x.Kind {
	case ir.ConstValue:
		return x.Value.String()
	case ir.ConstGlobalGet:
		return fmt.Sprintf("global.get global[%d]", x.Global)
	case ir.ConstRefNull:
		return "ref.null " + x.RefType.String()
	case ir.ConstRefFunc:
		return fmt.Sprintf("ref.func func[%d]", x.Func)
	}
	return "?"
}

func limitsText(l ir.Limits) string {
	if l.Max != nil {
		return fmt.Sprintf("%d..%d", l.Min, *l.Max)
	}
	return fmt.Sprintf("%d..", l.Min)
}

func elementKindText(k ir.ElementKind) string {
	switch k {
	case ir.ElementActive:
		return "active"
	case ir.ElementPassive:
		return "passive"
	case ir.ElementDeclared:
		return "declared"
	}
	return "?"
}

func exportTarget(e *ir.Export) uint32 {
	switch e.Kind {
	case ir.ExternFunc:
		return uint32(e.Func)
	case ir.ExternTable:
		return uint32(e.Table)
	case ir.ExternMemory:
		return uint32(e.Memory)
	case ir.ExternGlobal:
		return uint32(e.Global)
	}
	return 0
}
