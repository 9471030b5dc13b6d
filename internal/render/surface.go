package render

import (
	"github.com/dave/jennifer/jen"

	"github.com/cmmoran/cxxffigen/internal/layout"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/internal/naming"
)

// signature is one call rendered both ways: the descriptors of the native
// symbol and the Go parameters of its wrapper.
type signature struct {
	wire   []jen.Code
	result jen.Code

	params []jen.Code
	args   []jen.Code

	ret *model.Type
	// sret results are written through a leading buffer parameter.
	sret bool
}

func (s *scope) signature(params []*model.Parameter, result *model.Type, this *model.ClassEntry) *signature {
	if result.Underlying() == nil {
		result = nil
	}
	sig := &signature{ret: result, params: []jen.Code{jen.Id("lib").Add(s.q("Library"))}}
	if result != nil {
		if layout.ReturnsThroughBuffer(result) {
			sig.sret = true
			sig.wire = append(sig.wire, s.q("Buf").Call(s.wire(result, true)))
		} else {
			sig.result = s.wire(result, false)
		}
	}
	if this != nil {
		sig.wire = append(sig.wire, s.q("Buf").Call(s.ref(descName(this))))
		sig.args = append(sig.args, jen.Id("b").Dot("Buffer"))
	}
	taken := make(map[string]bool, len(params))
	for i, p := range params {
		name := goName(p.Name, i, taken)
		taken[name] = true
		pass, target := layout.Param(p.Type)
		switch pass {
		case layout.PassPointer:
			sig.wire = append(sig.wire, s.q("Ptr").Call(s.wire(target, true)))
			sig.params = append(sig.params, jen.Id(name).Id(pointerName(target.Underlying().Class())))
			sig.args = append(sig.args, jen.Id(name))
		case layout.PassBuffer:
			sig.wire = append(sig.wire, s.q("Buf").Call(s.wire(target, true)))
			if buf, ok := surfaceBuffer(target.Underlying()); ok {
				sig.params = append(sig.params, jen.Id(name).Id(buf))
				sig.args = append(sig.args, jen.Id(name).Dot("Buffer"))
			} else {
				sig.params = append(sig.params, jen.Id(name).Add(s.q("Buffer")))
				sig.args = append(sig.args, jen.Id(name))
			}
		default:
			sig.wire = append(sig.wire, s.wire(p.Type, false))
			sig.params = append(sig.params, jen.Id(name).Add(s.goType(p.Type)))
			if _, ok := surfaceBuffer(p.Type.Underlying()); ok {
				sig.args = append(sig.args, jen.Id(name).Dot("Buffer"))
			} else {
				sig.args = append(sig.args, jen.Id(name))
			}
		}
	}
	return sig
}

// goType is the Go type of a value passed or returned directly.
func (s *scope) goType(t *model.Type) jen.Code {
	u := t.Underlying()
	if u == nil {
		return nil
	}
	if name, ok := goScalars[u.Kind]; ok {
		return jen.Id(name)
	}
	switch u.Kind {
	case model.TypeCString:
		return jen.String()
	case model.TypeCStringArray:
		return jen.Index().String()
	case model.TypePointerTo:
		if name, ok := surfacePointer(u.Elem.Underlying()); ok {
			return jen.Id(name)
		}
	case model.TypeRef:
		if e := u.Enum(); e != nil {
			return jen.Id(ident(e))
		}
		if name, ok := surfaceBuffer(u); ok {
			return jen.Id(name)
		}
	}
	if u.StructLike() {
		return s.q("Buffer")
	}
	return s.q("Handle")
}

// resultType is goType for results; strings come back as native pointers.
func (s *scope) resultType(t *model.Type) jen.Code {
	if u := t.Underlying(); u.Kind == model.TypeCString || u.Kind == model.TypeCStringArray {
		return s.q("Handle")
	}
	return s.goType(t)
}

// convert turns the raw result v into the Go result type.
func (s *scope) convert(t *model.Type) jen.Code {
	u := t.Underlying()
	v := jen.Id("v")
	if u.Kind.Scalar() {
		return v.Dot(wireNames[u.Kind]).Call()
	}
	switch u.Kind {
	case model.TypePointerTo:
		if name, ok := surfacePointer(u.Elem.Underlying()); ok {
			return jen.Id(name).Call(v.Dot("Handle").Call())
		}
	case model.TypeRef:
		if e := u.Enum(); e != nil {
			return jen.Id(ident(e)).Call(v.Dot(wireNames[enumScalar(e)]).Call())
		}
	}
	return v.Dot("Handle").Call()
}

// newResult allocates the buffer a record result is written into.
func (s *scope) newResult(t *model.Type) (jen.Code, jen.Code) {
	if name, ok := surfaceBuffer(t.Underlying()); ok {
		return jen.Id("New" + name).Call(), jen.Id("out").Dot("Buffer")
	}
	return s.q("NewBuffer").Call(lit(t.ByteSize(s.r.cfg.PointerSize))), jen.Id("out")
}

// call renders the body of a wrapper invoking symbol and its result types.
func (s *scope) call(symbol string, sig *signature) ([]jen.Code, []jen.Code) {
	sym := jen.Id(symbol)
	lib := jen.Id("lib")
	switch {
	case sig.ret == nil:
		return []jen.Code{jen.Error()}, []jen.Code{
			jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(s.q("Call")).Call(append([]jen.Code{lib, sym}, sig.args...)...),
			jen.Return(jen.Err()),
		}
	case sig.ret.StructLike():
		alloc, out := s.newResult(sig.ret)
		var invoke jen.Code
		if sig.sret {
			invoke = jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(s.q("Call")).Call(append([]jen.Code{lib, sym, out}, sig.args...)...)
		} else {
			invoke = jen.Err().Op(":=").Add(s.q("CallInto")).Call(append([]jen.Code{lib, sym, out}, sig.args...)...)
		}
		return []jen.Code{s.goType(sig.ret), jen.Error()}, []jen.Code{
			jen.Id("out").Op(":=").Add(alloc),
			invoke,
			jen.Return(jen.Id("out"), jen.Err()),
		}
	}
	return []jen.Code{s.resultType(sig.ret), jen.Error()}, []jen.Code{
		jen.List(jen.Id("v"), jen.Err()).Op(":=").Add(s.q("Call")).Call(append([]jen.Code{lib, sym}, sig.args...)...),
		jen.Return(s.convert(sig.ret), jen.Err()),
	}
}

// returns renders a result list; a single result goes without parentheses.
func returns(results []jen.Code) jen.Code {
	if len(results) == 1 {
		return results[0]
	}
	return jen.Params(results...)
}

// methodName is the Go name of an instance method on a buffer type; it must
// not collide with the embedded field or the destructor wrapper.
func methodName(export, embedded string) string {
	name := naming.Pascal(export)
	if name == embedded || name == "Delete" {
		name += "Fn"
	}
	return name
}

// staticName keeps static wrappers off the names generated per class.
func staticName(c *model.ClassEntry, export string) string {
	name := naming.Pascal(export)
	switch name {
	case "T", "Size", "Buffer", "Pointer":
		name += "Fn"
	}
	return ident(c) + name
}

// classSurface renders the buffer type of c and a wrapper per constructor,
// destructor and method.
func (r *Renderer) classSurface(c *model.ClassEntry) *Entry {
	s := r.scope()
	buf := bufferName(c)
	wrap := "wrap" + buf
	embedded, inner := s.q("Buffer"), jen.Id("b")
	field := "Buffer"
	if len(c.Bases) > 0 {
		if base, ok := surfaceBuffer(c.Bases[0].Type.Underlying()); ok {
			embedded = s.ref(base)
			inner = jen.Id("wrap" + base).Call(jen.Id("b"))
			field = base
		}
	}
	names := []string{buf, wrap, "New" + buf, "Wrap" + buf}
	code := []jen.Code{
		jen.Type().Id(buf).Struct(embedded),
		jen.Func().Id(wrap).Params(jen.Id("b").Add(s.q("Buffer"))).Id(buf).Block(
			jen.Return(jen.Id(buf).Values(inner)),
		),
		jen.Func().Id("New" + buf).Params().Id(buf).Block(
			jen.Return(jen.Id(wrap).Call(s.q("NewBuffer").Call(jen.Id(sizeName(c))))),
		),
		jen.Func().Id("Wrap"+buf).Params(jen.Id("b").Index().Byte()).Params(jen.Id(buf), jen.Error()).Block(
			jen.List(jen.Id("w"), jen.Err()).Op(":=").Add(s.q("WrapBuffer")).Call(jen.Id("b"), jen.Id(sizeName(c))),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Id(buf).Values(), jen.Err())),
			jen.Return(jen.Id(wrap).Call(jen.Id("w")), jen.Nil()),
		),
	}
	// Signatures below only matter at call time.
	deps := s.deps
	s.deps = make(map[string]bool)

	for _, m := range c.Constructors {
		if m.Export == "" {
			continue
		}
		sig := s.signature(m.Parameters, nil, c)
		name := ident(c) + m.Export
		names = append(names, name)
		code = append(code, jen.Func().Id(name).Params(sig.params...).Params(jen.Id(buf), jen.Error()).Block(
			jen.Id("b").Op(":=").Id("New"+buf).Call(),
			jen.If(
				jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(s.q("Call")).Call(append([]jen.Code{jen.Id("lib"), jen.Id(naming.Member(c.Name, m.Export))}, sig.args...)...),
				jen.Err().Op("!=").Nil(),
			).Block(jen.Return(jen.Id(buf).Values(), jen.Err())),
			jen.Return(jen.Id("b"), jen.Nil()),
		))
	}
	if c.Destructor != nil {
		sig := s.signature(nil, nil, c)
		results, body := s.call(naming.Member(c.Name, "Destructor"), sig)
		code = append(code, jen.Func().Params(jen.Id("b").Id(buf)).Id("Delete").Params(sig.params...).Add(returns(results)).Block(body...))
	}
	for _, m := range c.Methods {
		if m.Export == "" {
			continue
		}
		symbol := naming.Member(c.Name, m.Export)
		if m.Static {
			sig := s.signature(m.Parameters, m.Result, nil)
			results, body := s.call(symbol, sig)
			name := staticName(c, m.Export)
			names = append(names, name)
			code = append(code, jen.Func().Id(name).Params(sig.params...).Add(returns(results)).Block(body...))
			continue
		}
		sig := s.signature(m.Parameters, m.Result, c)
		results, body := s.call(symbol, sig)
		code = append(code, jen.Func().Params(jen.Id("b").Id(buf)).Id(methodName(m.Export, field)).Params(sig.params...).Add(returns(results)).Block(body...))
	}
	s.deps = deps
	return s.entry(c, names, code...)
}

// functionSurface wraps a free function.
func (r *Renderer) functionSurface(f *model.FunctionEntry) *Entry {
	s := r.scope()
	sig := s.signature(f.Parameters, f.Result, nil)
	results, body := s.call(f.Export, sig)
	name := naming.Pascal(f.Export)
	if name == f.Export {
		name += "Fn"
	}
	e := s.entry(f, []string{name}, jen.Func().Id(name).Params(sig.params...).Add(returns(results)).Block(body...))
	e.Dependencies = nil
	return e
}
