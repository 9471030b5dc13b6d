package render

import (
	"go/token"
	"strconv"

	"github.com/dave/jennifer/jen"

	"github.com/cmmoran/cxxffigen/internal/layout"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/internal/naming"
)

var wireNames = map[model.TypeKind]string{
	model.TypeBool:         "Bool",
	model.TypeU8:           "U8",
	model.TypeI8:           "I8",
	model.TypeU16:          "U16",
	model.TypeI16:          "I16",
	model.TypeU32:          "U32",
	model.TypeI32:          "I32",
	model.TypeU64:          "U64",
	model.TypeI64:          "I64",
	model.TypeF32:          "F32",
	model.TypeF64:          "F64",
	model.TypePointer:      "Pointer",
	model.TypeBuffer:       "RawBuffer",
	model.TypeCString:      "CString",
	model.TypeCStringArray: "CStringArray",
}

var goScalars = map[model.TypeKind]string{
	model.TypeBool: "bool",
	model.TypeU8:   "uint8",
	model.TypeI8:   "int8",
	model.TypeU16:  "uint16",
	model.TypeI16:  "int16",
	model.TypeU32:  "uint32",
	model.TypeI32:  "int32",
	model.TypeU64:  "uint64",
	model.TypeI64:  "int64",
	model.TypeF32:  "float32",
	model.TypeF64:  "float64",
}

// Identifiers derived from an entry.
func ident(e model.Entry) string { return naming.Ident(e.Common().Name) }
func descName(e model.Entry) string { return ident(e) + "T" }
func sizeName(e model.Entry) string { return ident(e) + "Size" }
func bufferName(e model.Entry) string { return ident(e) + "Buffer" }
func pointerName(e model.Entry) string { return ident(e) + "Pointer" }

func specName(s *model.Specialization) string {
	if s.Partial() {
		return ident(s.Template) + "Partial" + strconv.Itoa(s.Index) + "T"
	}
	return descName(s.Template)
}

// renders reports whether a template body produces a descriptor.
func renders(s *model.Specialization) bool {
	return s != nil && s.Used && (len(s.Fields) > 0 || len(s.Bases) > 0 || len(s.VirtualBases) > 0 || s.Dynamic)
}

func hasPointer(c *model.ClassEntry) bool {
	return c.Usage.Pointer || c.Opaque
}

// surfaceBuffer names the buffer type generated for t, following typedefs.
func surfaceBuffer(t *model.Type) (string, bool) {
	if t == nil || t.Kind != model.TypeRef {
		return "", false
	}
	switch e := t.Ref.(type) {
	case *model.ClassEntry:
		return bufferName(e), !e.Opaque
	case *model.TypedefEntry:
		name, ok := surfaceBuffer(e.Target)
		if !ok || e.Reexport {
			return name, ok
		}
		return bufferName(e), true
	}
	return "", false
}

func surfacePointer(t *model.Type) (string, bool) {
	if t == nil || t.Kind != model.TypeRef {
		return "", false
	}
	switch e := t.Ref.(type) {
	case *model.ClassEntry:
		return pointerName(e), hasPointer(e)
	case *model.TypedefEntry:
		name, ok := surfacePointer(e.Target)
		if !ok || e.Reexport {
			return name, ok
		}
		return pointerName(e), true
	}
	return "", false
}

func lit(n int64) *jen.Statement {
	return jen.Lit(int(n))
}

// scope renders one declaration and records the generated names it needs
// defined before it.
type scope struct {
	r    *Renderer
	ffi  string
	deps map[string]bool
	// spec is the template body being rendered, for parameter names.
	spec *model.Specialization
}

func (r *Renderer) scope() *scope {
	return &scope{r: r, ffi: r.cfg.FFIPath, deps: make(map[string]bool)}
}

func (s *scope) q(name string) *jen.Statement {
	return jen.Qual(s.ffi, name)
}

func (s *scope) ref(name string) *jen.Statement {
	s.deps[name] = true
	return jen.Id(name)
}

// wire renders the descriptor of t. Nested positions render pointers as
// plain pointers so descriptors never refer to each other through one.
func (s *scope) wire(t *model.Type, nested bool) *jen.Statement {
	if t == nil {
		return s.q("Void")
	}
	if name, ok := wireNames[t.Kind]; ok {
		return s.q(name)
	}
	switch t.Kind {
	case model.TypeSelf:
		return s.q("Self")
	case model.TypePointerTo:
		if t.Elem != nil && t.Elem.Kind == model.TypeSelf {
			return s.q("Ptr").Call(s.q("Self"))
		}
		if u := t.Elem.Underlying(); !nested && u != nil && u.Kind == model.TypeFunction {
			return s.function(u)
		}
		return s.q("Pointer")
	case model.TypeArray:
		return s.q("Array").Call(s.wire(t.Elem, true), lit(t.Len))
	case model.TypeFunction:
		return s.function(t)
	case model.TypeInlineStruct:
		args := []jen.Code{jen.Lit(""), lit(t.Size), lit(t.Align)}
		for _, f := range t.Fields {
			args = append(args, s.field(f.Name, f.Type, f.Offset))
		}
		return s.q("Struct").Call(args...)
	case model.TypeInlineUnion:
		alts := make([]*model.Type, len(t.Fields))
		for i, f := range t.Fields {
			alts[i] = f.Type
		}
		return s.union("", t.Size, t.Align, alts)
	case model.TypeInstance:
		return s.instance(t)
	case model.TypeMemberPointer:
		return s.q("Array").Call(s.q("U8"), lit(t.Size))
	case model.TypeParam:
		return jen.Id(s.param(t.Index))
	case model.TypeRef:
		switch e := t.Ref.(type) {
		case *model.TypedefEntry:
			if e.Reexport {
				return s.wire(e.Target, nested)
			}
			if u := t.Underlying(); nested && u != nil && (u.Kind == model.TypePointerTo || u.Kind == model.TypeFunction) {
				return s.q("Pointer")
			}
		}
		return s.ref(descName(t.Ref))
	}
	return s.q("Void")
}

func (s *scope) function(t *model.Type) *jen.Statement {
	args := []jen.Code{s.wire(t.Result, true)}
	for _, p := range t.Params {
		args = append(args, s.wire(p.Type, true))
	}
	return s.q("Func").Call(args...)
}

func (s *scope) field(name string, t *model.Type, offset int64) *jen.Statement {
	return s.q("Field").Values(jen.Dict{
		jen.Id("Name"):   jen.Lit(name),
		jen.Id("Type"):   s.wire(t, true),
		jen.Id("Offset"): lit(offset),
	})
}

func (s *scope) union(name string, size, align int64, alternatives []*model.Type) *jen.Statement {
	alts, largest := layout.Collapse(alternatives, s.r.cfg.PointerSize)
	if size <= 0 {
		size = largest
	}
	args := []jen.Code{jen.Lit(name), lit(size), lit(align)}
	for _, a := range alts {
		args = append(args, s.wire(a, true))
	}
	return s.q("Union").Call(args...)
}

func (s *scope) instance(t *model.Type) *jen.Statement {
	in := t.Instance
	spec := in.Specialization
	if !renders(spec) {
		return s.q("Struct").Call(jen.Lit(in.Template.Name), lit(max(in.Size, 0)), lit(max(in.Align, 1)))
	}
	args := in.Args
	if spec.Partial() {
		args = in.Bindings
	}
	code := make([]jen.Code, len(args))
	for i, a := range args {
		code[i] = s.wire(a, true)
	}
	return s.ref(specName(spec)).Call(code...)
}

// param names the descriptor parameter of the template body in scope.
func (s *scope) param(i int) string {
	if s.spec == nil || i >= len(s.spec.Parameters) {
		return "t" + strconv.Itoa(i)
	}
	return goName(s.spec.Parameters[i].Name, i, nil)
}

// locals are the identifiers generated function bodies declare themselves.
var locals = map[string]bool{"lib": true, "b": true, "out": true, "v": true, "err": true, "ffi": true}

// goName turns a native parameter name into a Go identifier that does not
// clash with keywords or taken names.
func goName(name string, i int, taken map[string]bool) string {
	n := naming.Camel(name)
	if n == "" {
		n = "arg" + strconv.Itoa(i)
	}
	for token.IsKeyword(n) || locals[n] || taken[n] {
		n += "Arg"
	}
	return n
}
