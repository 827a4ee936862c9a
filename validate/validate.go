package validate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/internal/binary"
	"github.com/wippyai/wasm-ir/ir"
)

// Errors is every finding of a validation pass. The pass never stops at
// the first problem, so one run reports everything that needs fixing.
type Errors []*errors.Error

// Error implements the error interface.
func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "no validation findings"
	case 1:
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more findings)", e[0].Error(), len(e)-1)
}

// Unwrap exposes the findings to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	out := make([]error, len(e))
	for n, err := range e {
		out[n] = err
	}
	return out
}

// Module checks the whole module and returns nil or an Errors listing
// every finding. The checks cover whatever the ir API cannot rule out by
// construction: cross-references between arenas, limit ranges, init
// expressions, export uniqueness, the start signature, and the block
// structure of every body.
func Module(m *ir.Module, cfg ir.Config) error {
	c := &checker{m: m, cfg: cfg}

	c.types()
	c.imports()
	c.functions()
	c.tables()
	c.memories()
	c.globals()
	c.exports()
	c.start()
	c.elements()
	c.data()

	if len(c.errs) == 0 {
		return nil
	}
	Logger().Warn("module failed validation",
		zap.String("module", m.Name),
		zap.Int("findings", len(c.errs)))
	return c.errs
}

type checker struct {
	m    *ir.Module
	cfg  ir.Config
	errs Errors
}

func (c *checker) report(e *errors.Error) {
	c.errs = append(c.errs, e)
}

func (c *checker) badIndex(space string, index uint32, limit int, path ...string) {
	c.report(errors.BadIndex(errors.PhaseValidate, path, space, index, uint32(limit)))
}

func (c *checker) invalid(detail string, path ...string) {
	c.report(errors.InvalidData(errors.PhaseValidate, path, detail))
}

func (c *checker) badInit(detail string, path ...string) {
	c.report(errors.New(errors.PhaseValidate, errors.KindBadInitExpr).
		Path(path...).
		Detail(detail).
		Build())
}

func (c *checker) badLimits(detail string, path ...string) {
	c.report(errors.New(errors.PhaseValidate, errors.KindBadLimits).
		Path(path...).
		Detail(detail).
		Build())
}

func (c *checker) unsupported(what string, path ...string) {
	c.report(errors.New(errors.PhaseValidate, errors.KindUnsupported).
		Path(path...).
		Detail(what).
		Build())
}

func (c *checker) valType(t ir.ValType, loc string) {
	switch {
	case t == ir.V128:
		c.unsupported("v128 values (SIMD)", loc)
	case t.IsRef() && !c.cfg.Features.ReferenceTypes:
		c.unsupported(fmt.Sprintf("%s values require the reference-types proposal", t), loc)
	case !t.IsNum() && !t.IsRef():
		c.invalid(fmt.Sprintf("unknown value type 0x%02X", byte(t)), loc)
	}
}

func (c *checker) types() {
	c.m.Types.All(func(id ir.TypeID, ty *ir.Type) bool {
		loc := fmt.Sprintf("type[%d]", id)
		for _, p := range ty.Params {
			c.valType(p, loc)
		}
		for _, r := range ty.Results {
			c.valType(r, loc)
		}
		if len(ty.Results) > 1 && !c.cfg.Features.MultiValue {
			c.unsupported(fmt.Sprintf("%d results require the multi-value proposal", len(ty.Results)), loc)
		}
		return true
	})
}

func (c *checker) imports() {
	c.m.Imports.All(func(id ir.ImportID, imp *ir.Import) bool {
		loc := fmt.Sprintf("import[%d]", id)
		switch imp.Kind {
		case ir.ExternFunc:
			if f, err := c.m.Funcs.Get(imp.Func); err != nil {
				c.badIndex("function", uint32(imp.Func), c.m.Funcs.Len(), loc)
			} else if !f.Imported() {
				c.invalid("import entry resolves to a local function", loc)
			}
		case ir.ExternTable:
			if t, err := c.m.Tables.Get(imp.Table); err != nil {
				c.badIndex("table", uint32(imp.Table), c.m.Tables.Len(), loc)
			} else if !t.Imported() {
				c.invalid("import entry resolves to a local table", loc)
			}
		case ir.ExternMemory:
			if mem, err := c.m.Memories.Get(imp.Memory); err != nil {
				c.badIndex("memory", uint32(imp.Memory), c.m.Memories.Len(), loc)
			} else if !mem.Imported() {
				c.invalid("import entry resolves to a local memory", loc)
			}
		case ir.ExternGlobal:
			if g, err := c.m.Globals.Get(imp.Global); err != nil {
				c.badIndex("global", uint32(imp.Global), c.m.Globals.Len(), loc)
			} else if !g.Imported() {
				c.invalid("import entry resolves to a local global", loc)
			}
		default:
			c.invalid(fmt.Sprintf("unknown import kind %d", imp.Kind), loc)
		}
		return true
	})
}

func (c *checker) functions() {
	c.m.Funcs.All(func(id ir.FunctionID, f *ir.Function) bool {
		loc := fmt.Sprintf("func[%d]", id)
		if _, err := c.m.Types.Get(f.Type); err != nil {
			c.badIndex("type", uint32(f.Type), c.m.Types.Len(), loc)
			return true
		}
		switch {
		case f.Import == nil && f.Local == nil:
			c.invalid("function has neither an import nor a body", loc)
		case f.Import != nil && f.Local != nil:
			c.invalid("function is both imported and locally defined", loc)
		case f.Local != nil:
			c.body(id, f)
		}
		return true
	})
}

func (c *checker) tables() {
	if c.m.Tables.Len() > 1 && !c.cfg.Features.ReferenceTypes {
		c.unsupported(fmt.Sprintf("%d tables require the reference-types proposal", c.m.Tables.Len()))
	}
	c.m.Tables.All(func(id ir.TableID, t *ir.Table) bool {
		loc := fmt.Sprintf("table[%d]", id)
		if !t.ElemType.IsRef() {
			c.invalid(fmt.Sprintf("element type %s is not a reference type", t.ElemType), loc)
		}
		c.limits(t.Limits, 0, "", loc)
		return true
	})
}

func (c *checker) memories() {
	if c.m.Memories.Len() > 1 {
		c.unsupported("multiple memories")
	}
	c.m.Memories.All(func(id ir.MemoryID, mem *ir.Memory) bool {
		c.limits(mem.Limits, binary.MemoryMaxPages, "pages", fmt.Sprintf("memory[%d]", id))
		return true
	})
}

func (c *checker) limits(l ir.Limits, ceiling uint64, unit string, loc string) {
	if l.Max != nil && l.Min > *l.Max {
		c.badLimits(fmt.Sprintf("min %d exceeds max %d", l.Min, *l.Max), loc)
	}
	if ceiling == 0 {
		return
	}
	if l.Min > ceiling {
		c.badLimits(fmt.Sprintf("min %d exceeds the %d %s limit", l.Min, ceiling, unit), loc)
	}
	if l.Max != nil && *l.Max > ceiling {
		c.badLimits(fmt.Sprintf("max %d exceeds the %d %s limit", *l.Max, ceiling, unit), loc)
	}
}

func (c *checker) globals() {
	c.m.Globals.All(func(id ir.GlobalID, g *ir.Global) bool {
		loc := fmt.Sprintf("global[%d]", id)
		c.valType(g.Type, loc)
		if !g.Imported() {
			c.initExpr(g.Init, g.Type, loc)
		}
		return true
	})
}

// initExpr checks that e is well formed and evaluates to want.
func (c *checker) initExpr(e ir.ConstExpr, want ir.ValType, loc string) {
	switch e.Kind {
	case ir.ConstValue:
		if e.Value.Type != want {
			c.badInit(fmt.Sprintf("initializer yields %s, want %s", e.Value.Type, want), loc)
		}
	case ir.ConstGlobalGet:
		src, err := c.m.Globals.Get(e.Global)
		if err != nil {
			c.badIndex("global", uint32(e.Global), c.m.Globals.Len(), loc)
			return
		}
		if !src.Imported() {
			c.badInit("global.get initializer references a non-imported global", loc)
		} else if src.Mutable {
			c.badInit("global.get initializer references a mutable global", loc)
		}
		if src.Type != want {
			c.badInit(fmt.Sprintf("initializer yields %s, want %s", src.Type, want), loc)
		}
	case ir.ConstRefNull:
		if e.RefType != want {
			c.badInit(fmt.Sprintf("initializer yields null %s, want %s", e.RefType, want), loc)
		}
	case ir.ConstRefFunc:
		if want != ir.FuncRef {
			c.badInit(fmt.Sprintf("initializer yields funcref, want %s", want), loc)
		}
		if _, err := c.m.Funcs.Get(e.Func); err != nil {
			c.badIndex("function", uint32(e.Func), c.m.Funcs.Len(), loc)
		}
	default:
		c.invalid(fmt.Sprintf("unknown constant expression kind %d", e.Kind), loc)
	}
}

func (c *checker) exports() {
	seen := make(map[string]ir.ExportID, c.m.Exports.Len())
	c.m.Exports.All(func(id ir.ExportID, e *ir.Export) bool {
		loc := fmt.Sprintf("export[%d]", id)
		if prev, dup := seen[e.Name]; dup {
			c.report(errors.New(errors.PhaseValidate, errors.KindDuplicateExport).
				Path(loc).
				Detail("name %q also used by export[%d]", e.Name, prev).
				Value(e.Name).
				Build())
		} else {
			seen[e.Name] = id
		}
		switch e.Kind {
		case ir.ExternFunc:
			if _, err := c.m.Funcs.Get(e.Func); err != nil {
				c.badIndex("function", uint32(e.Func), c.m.Funcs.Len(), loc)
			}
		case ir.ExternTable:
			if _, err := c.m.Tables.Get(e.Table); err != nil {
				c.badIndex("table", uint32(e.Table), c.m.Tables.Len(), loc)
			}
		case ir.ExternMemory:
			if _, err := c.m.Memories.Get(e.Memory); err != nil {
				c.badIndex("memory", uint32(e.Memory), c.m.Memories.Len(), loc)
			}
		case ir.ExternGlobal:
			if _, err := c.m.Globals.Get(e.Global); err != nil {
				c.badIndex("global", uint32(e.Global), c.m.Globals.Len(), loc)
			}
		default:
			c.invalid(fmt.Sprintf("unknown export kind %d", e.Kind), loc)
		}
		return true
	})
}

func (c *checker) start() {
	if c.m.Start == nil {
		return
	}
	f, err := c.m.Funcs.Get(*c.m.Start)
	if err != nil {
		c.badIndex("function", uint32(*c.m.Start), c.m.Funcs.Len(), "start")
		return
	}
	ty, err := c.m.Types.Get(f.Type)
	if err != nil {
		return // already reported by functions
	}
	if len(ty.Params) != 0 || len(ty.Results) != 0 {
		c.report(errors.New(errors.PhaseValidate, errors.KindBadStart).
			Path("start").
			Detail("start function has type %s, want [] -> []", ty).
			Build())
	}
}

func (c *checker) elements() {
	c.m.Elements.All(func(id ir.ElementID, seg *ir.ElementSegment) bool {
		loc := fmt.Sprintf("elem[%d]", id)
		for n, f := range seg.Members {
			if _, err := c.m.Funcs.Get(f); err != nil {
				c.badIndex("function", uint32(f), c.m.Funcs.Len(), loc, fmt.Sprintf("member[%d]", n))
			}
		}
		if seg.Kind != ir.ElementActive {
			return true
		}
		t, err := c.m.Tables.Get(seg.Table)
		if err != nil {
			c.badIndex("table", uint32(seg.Table), c.m.Tables.Len(), loc)
			return true
		}
		if t.ElemType != ir.FuncRef {
			c.invalid(fmt.Sprintf("function segment targets a %s table", t.ElemType), loc)
		}
		c.initExpr(seg.Offset, ir.I32, loc)
		return true
	})
}

func (c *checker) data() {
	c.m.Data.All(func(id ir.DataID, seg *ir.DataSegment) bool {
		if seg.Kind != ir.DataActive {
			return true
		}
		loc := fmt.Sprintf("data[%d]", id)
		if _, err := c.m.Memories.Get(seg.Memory); err != nil {
			c.badIndex("memory", uint32(seg.Memory), c.m.Memories.Len(), loc)
			return true
		}
		c.initExpr(seg.Offset, ir.I32, loc)
		return true
	})
}
