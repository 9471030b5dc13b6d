package render

import (
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/cmmoran/cxxffigen/internal/layout"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/internal/naming"
)

// ---------------------------------------------------------------------------
// wire layout declarations
// ---------------------------------------------------------------------------

func (r *Renderer) classType(c *model.ClassEntry) *Entry {
	s := r.scope()
	if c.Opaque {
		return s.entry(c, []string{descName(c), pointerName(c)},
			jen.Var().Id(descName(c)).Op("=").Add(s.q("Struct").Call(jen.Lit(c.Name), jen.Lit(0), jen.Lit(1))),
			jen.Type().Id(pointerName(c)).Add(s.q("Handle")),
		)
	}
	rec := layout.Class(c)
	if rec.Warning != "" {
		r.warn(rec.Warning)
	}
	args := []jen.Code{jen.Lit(c.Name), s.ref(sizeName(c)), lit(rec.Align)}
	args = append(args, s.slots(rec)...)
	names := []string{sizeName(c), descName(c)}
	code := []jen.Code{
		jen.Const().Id(sizeName(c)).Op("=").Add(lit(rec.Size)),
		jen.Var().Id(descName(c)).Op("=").Add(s.q("Struct").Call(args...)),
	}
	if hasPointer(c) {
		names = append(names, pointerName(c))
		code = append(code, jen.Type().Id(pointerName(c)).Add(s.q("Handle")))
	}
	return s.entry(c, names, code...)
}

func (s *scope) slots(rec *layout.Record) []jen.Code {
	out := make([]jen.Code, 0, len(rec.Slots))
	for _, slot := range rec.Slots {
		if slot.VTable {
			out = append(out, s.q("Field").Values(jen.Dict{
				jen.Id("Name"):   jen.Lit(slot.Name),
				jen.Id("Type"):   s.q("Pointer"),
				jen.Id("Offset"): jen.Lit(0),
			}))
			continue
		}
		out = append(out, s.field(slot.Name, slot.Type, slot.Offset))
	}
	return out
}

// templateTypes renders one descriptor function per template body. Every
// template parameter becomes a *ffi.Type argument.
func (r *Renderer) templateTypes(e *model.ClassTemplateEntry) []*Entry {
	var out []*Entry
	specs := append([]*model.Specialization{e.Default}, e.Partials...)
	for _, spec := range specs {
		if !renders(spec) {
			continue
		}
		s := r.scope()
		s.spec = spec
		rec := layout.Specialization(spec)
		if rec.Warning != "" {
			r.warn(rec.Warning)
		}
		params := make([]jen.Code, len(spec.Parameters))
		for i := range spec.Parameters {
			params[i] = jen.Id(s.param(i)).Op("*").Add(s.q("Type"))
		}
		// Sizes depend on the arguments; let ffi.Struct lay the body out.
		for i := range rec.Slots {
			rec.Slots[i].Offset = -1
		}
		args := append([]jen.Code{jen.Lit(e.Name), jen.Lit(0), jen.Lit(0)}, s.slots(rec)...)
		name := specName(spec)
		out = append(out, s.entry(e, []string{name},
			jen.Func().Id(name).Params(params...).Op("*").Add(s.q("Type")).Block(
				jen.Return(s.q("Struct").Call(args...)),
			),
		))
	}
	return out
}

func (r *Renderer) unionType(u *model.UnionEntry) *Entry {
	s := r.scope()
	alts, size := layout.Collapse(u.Alternatives, r.cfg.PointerSize)
	if u.Size > 0 {
		size = u.Size
	}
	args := []jen.Code{jen.Lit(u.Name), s.ref(sizeName(u)), lit(max(u.Align, 1))}
	for _, a := range alts {
		args = append(args, s.wire(a, true))
	}
	return s.entry(u, []string{sizeName(u), descName(u)},
		jen.Const().Id(sizeName(u)).Op("=").Add(lit(size)),
		jen.Var().Id(descName(u)).Op("=").Add(s.q("Union").Call(args...)),
	)
}

func enumScalar(e *model.EnumEntry) model.TypeKind {
	if u := e.Type.Underlying(); u != nil && u.Kind.Scalar() {
		return u.Kind
	}
	return model.TypeI32
}

func constName(e *model.EnumEntry, constant string) string {
	if i := strings.LastIndex(constant, "::"); i >= 0 {
		constant = constant[i+2:]
	}
	return ident(e) + naming.Pascal(constant)
}

func (r *Renderer) enumType(e *model.EnumEntry) *Entry {
	s := r.scope()
	kind := enumScalar(e)
	names := []string{ident(e), descName(e)}
	defs := make([]jen.Code, 0, len(e.Constants))
	for _, l := range layout.EnumLiterals(e) {
		name := constName(e, l.Name)
		names = append(names, name)
		if l.Ref != "" {
			defs = append(defs, jen.Id(name).Op("=").Id(constName(e, l.Ref)))
			continue
		}
		defs = append(defs, jen.Id(name).Id(ident(e)).Op("=").Op(l.Value))
	}
	code := []jen.Code{
		jen.Type().Id(ident(e)).Id(goScalars[kind]),
		jen.Var().Id(descName(e)).Op("=").Add(s.q(wireNames[kind])),
	}
	if len(defs) > 0 {
		code = append(code, jen.Const().Defs(defs...))
	}
	return s.entry(e, names, code...)
}

// scalarAlias names the Go type a scalar typedef aliases.
func scalarAlias(t *model.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind.Scalar() {
		return goScalars[t.Kind]
	}
	td := t.Typedef()
	if td == nil || scalarAlias(td.Target) == "" {
		return ""
	}
	if td.Reexport {
		return scalarAlias(td.Target)
	}
	return ident(td)
}

// typedefType aliases the target's descriptor, and the target's Go types
// where it has them.
func (r *Renderer) typedefType(td *model.TypedefEntry) *Entry {
	s := r.scope()
	names := []string{descName(td)}
	var code []jen.Code
	t := td.Target
	u := t.Underlying()
	switch {
	case u == nil:
		code = append(code, jen.Var().Id(descName(td)).Op("=").Add(s.q("Void")))
	case t.Typedef() != nil:
		code = append(code, jen.Var().Id(descName(td)).Op("=").Add(s.wire(t, false)))
	case u.Kind == model.TypeFunction:
		code = append(code, jen.Var().Id(descName(td)).Op("=").Add(s.function(u)))
	case u.Kind == model.TypePointerTo && u.Elem.Underlying() != nil && u.Elem.Underlying().Kind == model.TypeFunction:
		code = append(code, jen.Var().Id(descName(td)).Op("=").Add(s.function(u.Elem.Underlying())))
	default:
		code = append(code, jen.Var().Id(descName(td)).Op("=").Add(s.wire(t, false)))
	}
	if alias := scalarAlias(t); alias != "" {
		names = append(names, ident(td))
		code = append(code, jen.Type().Id(ident(td)).Op("=").Id(alias))
	}
	if t != nil && t.Kind == model.TypeRef && u != nil {
		if en := u.Enum(); en != nil {
			names = append(names, ident(td))
			code = append(code, jen.Type().Id(ident(td)).Op("=").Id(ident(en)))
		}
		if name, ok := surfaceBuffer(t); ok {
			names = append(names, bufferName(td))
			code = append(code, jen.Type().Id(bufferName(td)).Op("=").Id(name))
		}
		if name, ok := surfacePointer(t); ok {
			names = append(names, pointerName(td))
			code = append(code, jen.Type().Id(pointerName(td)).Op("=").Id(name))
		}
	}
	return s.entry(td, names, code...)
}

// ---------------------------------------------------------------------------
// bindings
// ---------------------------------------------------------------------------

// symbol declares one *ffi.Symbol.
func (s *scope) symbol(export, mangling string, params []jen.Code, result jen.Code, variable bool) jen.Code {
	d := jen.Dict{
		jen.Id("Name"):     jen.Lit(export),
		jen.Id("Mangling"): jen.Lit(mangling),
	}
	if len(params) > 0 {
		d[jen.Id("Params")] = jen.Index().Op("*").Add(s.q("Type")).Values(params...)
	}
	if result != nil {
		d[jen.Id("Result")] = result
	}
	if variable {
		d[jen.Id("Variable")] = jen.True()
	}
	return jen.Id(export).Op("=").Op("&").Add(s.q("Symbol")).Values(d)
}

func (r *Renderer) functionBinding(f *model.FunctionEntry) *Entry {
	s := r.scope()
	sig := s.signature(f.Parameters, f.Result, nil)
	e := s.entry(f, []string{f.Export}, jen.Var().Add(s.symbol(f.Export, f.Mangling, sig.wire, sig.result, false)))
	e.Exports = []string{f.Export}
	return e
}

func (r *Renderer) varBinding(v *model.VarEntry) *Entry {
	s := r.scope()
	e := s.entry(v, []string{v.Export}, jen.Var().Add(s.symbol(v.Export, v.Mangling, nil, s.wire(v.Type, false), true)))
	e.Exports = []string{v.Export}
	return e
}

func destructorMangling(m *model.Method, i int) string {
	if i < len(m.Manglings) {
		return m.Manglings[i]
	}
	if len(m.Manglings) > 0 {
		return m.Manglings[0]
	}
	return m.Mangling
}

// classBindings declares the symbols of every constructor, the destructor
// and every method of c in one var block.
func (r *Renderer) classBindings(c *model.ClassEntry) *Entry {
	s := r.scope()
	var defs []jen.Code
	var exports []string
	add := func(export, mangling string, sig *signature) {
		defs = append(defs, s.symbol(export, mangling, sig.wire, sig.result, false))
		exports = append(exports, export)
	}
	for _, m := range c.Constructors {
		if m.Export == "" {
			continue
		}
		mangling := m.Mangling
		if len(m.Manglings) > 0 {
			mangling = m.Manglings[0]
		}
		add(naming.Member(c.Name, m.Export), mangling, s.signature(m.Parameters, nil, c))
	}
	if d := c.Destructor; d != nil {
		add(naming.Member(c.Name, "Destructor"), destructorMangling(d, 1), s.signature(nil, nil, c))
		if len(d.Manglings) >= 3 {
			add(naming.Member(c.Name, "Delete"), d.Manglings[2], s.signature(nil, nil, c))
		}
	}
	for _, m := range c.Methods {
		if m.Export == "" {
			continue
		}
		this := c
		if m.Static {
			this = nil
		}
		add(naming.Member(c.Name, m.Export), m.Mangling, s.signature(m.Parameters, m.Result, this))
	}
	if len(defs) == 0 {
		return nil
	}
	e := s.entry(c, exports, jen.Var().Defs(defs...))
	e.Exports = exports
	return e
}
