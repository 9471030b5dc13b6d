package astfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cmmoran/cxxffigen/internal/clang"
)

type ctype struct {
	tu      *TranslationUnit
	kind    clang.TypeKind
	konst   bool
	pointee *ctype
	elem    *ctype
	n       int64
	params  []*ctype
	result  *ctype
	class   *ctype
	// decl is the record, enum, typedef, template parameter or (for
	// dependent instances) the class template.
	decl  *cursor
	targs []*ctype
}

func (tu *TranslationUnit) resolveSpelling(spelling string, scope *cursor) (*ctype, error) {
	e, err := parseTypeSpelling(spelling)
	if err != nil {
		return nil, err
	}
	return tu.resolve(e, scope)
}

func (tu *TranslationUnit) resolve(e *typeExpr, scope *cursor) (*ctype, error) {
	switch e.kind {
	case exprBuiltin:
		return &ctype{tu: tu, kind: e.builtin, konst: e.konst}, nil
	case exprPointer, exprLRef, exprRRef:
		p, err := tu.resolve(e.elem, scope)
		if err != nil {
			return nil, err
		}
		kind := clang.TypePointer
		if e.kind == exprLRef {
			kind = clang.TypeLValueReference
		} else if e.kind == exprRRef {
			kind = clang.TypeRValueReference
		}
		return &ctype{tu: tu, kind: kind, konst: e.konst, pointee: p}, nil
	case exprArray, exprIncompleteArray:
		el, err := tu.resolve(e.elem, scope)
		if err != nil {
			return nil, err
		}
		if e.kind == exprIncompleteArray {
			return &ctype{tu: tu, kind: clang.TypeIncompleteArray, elem: el, n: -1}, nil
		}
		return &ctype{tu: tu, kind: clang.TypeConstantArray, elem: el, n: e.length}, nil
	case exprFunc:
		res, err := tu.resolve(e.result, scope)
		if err != nil {
			return nil, err
		}
		params := make([]*ctype, len(e.params))
		for i, p := range e.params {
			if params[i], err = tu.resolve(p, scope); err != nil {
				return nil, err
			}
		}
		return &ctype{tu: tu, kind: clang.TypeFunctionProto, params: params, result: res}, nil
	case exprMemberPointer:
		p, err := tu.resolve(e.elem, scope)
		if err != nil {
			return nil, err
		}
		owner, err := tu.resolve(e.class, scope)
		if err != nil {
			return nil, err
		}
		return &ctype{tu: tu, kind: clang.TypeMemberPointer, pointee: p, class: owner}, nil
	}
	return tu.resolveNamed(e, scope)
}

func (tu *TranslationUnit) resolveNamed(e *typeExpr, scope *cursor) (*ctype, error) {
	name := strings.Join(e.names, "::")
	decl := tu.lookup(scope, e)
	if decl == nil {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	var args []*ctype
	for _, a := range e.args {
		t, err := tu.resolve(a, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}
	switch decl.kind {
	case clang.CursorStructDecl, clang.CursorClassDecl, clang.CursorUnionDecl:
		if len(args) > 0 {
			return nil, fmt.Errorf("%q is not a template", name)
		}
		return &ctype{tu: tu, kind: clang.TypeRecord, konst: e.konst, decl: decl}, nil
	case clang.CursorEnumDecl:
		return &ctype{tu: tu, kind: clang.TypeEnum, konst: e.konst, decl: decl}, nil
	case clang.CursorTypedefDecl, clang.CursorTypeAliasDecl:
		return &ctype{tu: tu, kind: clang.TypeTypedef, konst: e.konst, decl: decl}, nil
	case clang.CursorTemplateTypeParameter:
		return &ctype{tu: tu, kind: clang.TypeUnexposed, konst: e.konst, decl: decl}, nil
	case clang.CursorClassTemplate:
		if e.args == nil {
			injected, ok := injectedArgs(decl, scope)
			if !ok {
				return nil, fmt.Errorf("template %q used without arguments", name)
			}
			args = injected
		}
		return tu.instance(decl, args, e.konst), nil
	}
	return nil, fmt.Errorf("%q names a %s, not a type", name, decl.kind)
}

// injectedArgs gives the arguments of the injected class name when scope is
// inside tmpl or one of its partial specializations.
func injectedArgs(tmpl, scope *cursor) ([]*ctype, bool) {
	for s := scope; s != nil; s = s.parent {
		if s == tmpl {
			return tmpl.templateParamTypes(), true
		}
		if s.kind == clang.CursorClassTemplatePartialSpecialization && s.specialized == tmpl {
			return s.pattern, true
		}
	}
	return nil, false
}

// instance names tmpl<args>: dependent instances stay unexposed, concrete ones
// become records backed by a synthesized specialization cursor.
func (tu *TranslationUnit) instance(tmpl *cursor, args []*ctype, konst bool) *ctype {
	for _, a := range args {
		if a.dependent() {
			return &ctype{tu: tu, kind: clang.TypeUnexposed, konst: konst, decl: tmpl, targs: args}
		}
	}
	return &ctype{tu: tu, kind: clang.TypeRecord, konst: konst, decl: tu.specialization(tmpl, args)}
}

func (tu *TranslationUnit) specialization(tmpl *cursor, args []*ctype) *cursor {
	spellings := make([]string, len(args))
	for i, a := range args {
		spellings[i] = a.canonical().Spelling()
	}
	key := tmpl.id + "<" + strings.Join(spellings, ",") + ">"
	if c, ok := tu.specs[key]; ok {
		return c
	}
	c := &cursor{
		tu:          tu,
		kind:        tmpl.recordKind(),
		spelling:    tmpl.spelling,
		id:          "spec:" + key,
		file:        tmpl.file,
		parent:      tmpl.parent,
		access:      tmpl.access,
		isDef:       tmpl.IsDefinition(),
		specialized: tmpl,
		targs:       args,
	}
	c.typ = &ctype{tu: tu, kind: clang.TypeRecord, decl: c}
	tu.specs[key] = c
	return c
}

func (t *ctype) dependent() bool {
	if t == nil {
		return false
	}
	switch t.kind {
	case clang.TypeUnexposed:
		return true
	case clang.TypePointer, clang.TypeLValueReference, clang.TypeRValueReference:
		return t.pointee.dependent()
	case clang.TypeMemberPointer:
		return t.pointee.dependent() || t.class.dependent()
	case clang.TypeConstantArray, clang.TypeIncompleteArray:
		return t.elem.dependent()
	case clang.TypeFunctionProto:
		if t.result.dependent() {
			return true
		}
		for _, p := range t.params {
			if p.dependent() {
				return true
			}
		}
	case clang.TypeTypedef:
		return t.decl.underlying.dependent()
	}
	return false
}

// subst replaces template parameters bound in env.
func (t *ctype) subst(env map[*cursor]*ctype) *ctype {
	if t == nil || !t.dependent() {
		return t
	}
	cp := *t
	switch t.kind {
	case clang.TypeUnexposed:
		if t.decl.kind == clang.CursorTemplateTypeParameter {
			if b, ok := env[t.decl]; ok {
				if t.konst && !b.konst {
					bc := *b
					bc.konst = true
					return &bc
				}
				return b
			}
			return t
		}
		args := make([]*ctype, len(t.targs))
		for i, a := range t.targs {
			args[i] = a.subst(env)
		}
		return t.tu.instance(t.decl, args, t.konst)
	case clang.TypePointer, clang.TypeLValueReference, clang.TypeRValueReference:
		cp.pointee = t.pointee.subst(env)
	case clang.TypeMemberPointer:
		cp.pointee = t.pointee.subst(env)
		cp.class = t.class.subst(env)
	case clang.TypeConstantArray, clang.TypeIncompleteArray:
		cp.elem = t.elem.subst(env)
	case clang.TypeFunctionProto:
		cp.result = t.result.subst(env)
		cp.params = make([]*ctype, len(t.params))
		for i, p := range t.params {
			cp.params[i] = p.subst(env)
		}
	case clang.TypeTypedef:
		return t.decl.underlying.subst(env)
	}
	return &cp
}

func (t *ctype) canonical() *ctype {
	switch t.kind {
	case clang.TypeTypedef:
		u := t.decl.underlying.canonical()
		if t.konst && !u.konst {
			cp := *u
			cp.konst = true
			return &cp
		}
		return u
	case clang.TypePointer, clang.TypeLValueReference, clang.TypeRValueReference:
		p := t.pointee.canonical()
		if p == t.pointee {
			return t
		}
		cp := *t
		cp.pointee = p
		return &cp
	case clang.TypeConstantArray, clang.TypeIncompleteArray:
		el := t.elem.canonical()
		if el == t.elem {
			return t
		}
		cp := *t
		cp.elem = el
		return &cp
	case clang.TypeFunctionProto:
		cp := *t
		cp.result = t.result.canonical()
		cp.params = make([]*ctype, len(t.params))
		for i, p := range t.params {
			cp.params[i] = p.canonical()
		}
		return &cp
	case clang.TypeRecord:
		if d := t.tu.definitionOf(t.decl); d != nil && d != t.decl {
			cp := *t
			cp.decl = d
			return &cp
		}
	}
	return t
}

func (t *ctype) spelling() string {
	var s string
	switch t.kind {
	case clang.TypePointer, clang.TypeLValueReference, clang.TypeRValueReference:
		suffix := map[clang.TypeKind]string{
			clang.TypePointer:         "*",
			clang.TypeLValueReference: "&",
			clang.TypeRValueReference: "&&",
		}[t.kind]
		if t.pointee.kind == clang.TypeFunctionProto {
			s = t.pointee.result.spelling() + " (" + suffix + ")(" + spellings(t.pointee.params) + ")"
		} else {
			s = t.pointee.spelling() + " " + suffix
		}
		if t.konst {
			s += " const"
		}
		return s
	case clang.TypeConstantArray:
		return t.elem.spelling() + " [" + strconv.FormatInt(t.n, 10) + "]"
	case clang.TypeIncompleteArray:
		return t.elem.spelling() + " []"
	case clang.TypeFunctionProto:
		return t.result.spelling() + " (" + spellings(t.params) + ")"
	case clang.TypeMemberPointer:
		return t.pointee.spelling() + " " + t.class.spelling() + "::*"
	case clang.TypeRecord, clang.TypeEnum, clang.TypeTypedef:
		s = t.decl.qualifiedName()
		if t.kind == clang.TypeRecord && t.decl.specialized != nil {
			s += "<" + spellings(t.decl.targs) + ">"
		}
	case clang.TypeUnexposed:
		if t.decl.kind == clang.CursorClassTemplate {
			s = t.decl.qualifiedName() + "<" + spellings(t.targs) + ">"
		} else {
			s = t.decl.spelling
		}
	default:
		s = builtinSpellings[t.kind]
	}
	if t.konst {
		s = "const " + s
	}
	return s
}

func spellings(ts []*ctype) string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.spelling()
	}
	return strings.Join(out, ", ")
}

func (tu *TranslationUnit) scalarSize(k clang.TypeKind) int64 {
	switch k {
	case clang.TypeBool, clang.TypeCharS, clang.TypeCharU, clang.TypeSChar, clang.TypeUChar:
		return 1
	case clang.TypeChar16, clang.TypeShort, clang.TypeUShort:
		return 2
	case clang.TypeChar32, clang.TypeWChar, clang.TypeInt, clang.TypeUInt, clang.TypeFloat:
		return 4
	case clang.TypeLong, clang.TypeULong:
		return tu.longSize
	case clang.TypeLongLong, clang.TypeULongLong, clang.TypeDouble:
		return 8
	case clang.TypeLongDouble:
		return 16
	case clang.TypeNullPtr:
		return tu.ptrSize
	}
	return -1
}

// sizeAlign returns -1 for incomplete and dependent types.
func (t *ctype) sizeAlign() (int64, int64) {
	tu := t.tu
	switch t.kind {
	case clang.TypePointer:
		return tu.ptrSize, tu.ptrSize
	case clang.TypeLValueReference, clang.TypeRValueReference:
		return t.pointee.sizeAlign()
	case clang.TypeMemberPointer:
		if t.pointee.canonical().kind == clang.TypeFunctionProto {
			return 2 * tu.ptrSize, tu.ptrSize
		}
		return tu.ptrSize, tu.ptrSize
	case clang.TypeConstantArray:
		s, a := t.elem.sizeAlign()
		if s < 0 {
			return -1, -1
		}
		return s * t.n, a
	case clang.TypeRecord:
		l, err := tu.layoutOf(t.decl)
		if err != nil {
			return -1, -1
		}
		return l.size, l.align
	case clang.TypeEnum:
		return t.decl.underlying.sizeAlign()
	case clang.TypeTypedef:
		return t.decl.underlying.sizeAlign()
	case clang.TypeIncompleteArray, clang.TypeFunctionProto, clang.TypeUnexposed, clang.TypeVoid:
		return -1, -1
	}
	s := tu.scalarSize(t.kind)
	return s, s
}

// ---------------------------------------------------------------------------
// clang.Type
// ---------------------------------------------------------------------------

func (t *ctype) Kind() clang.TypeKind { return t.kind }
func (t *ctype) Spelling() string     { return t.spelling() }
func (t *ctype) Canonical() clang.Type {
	return t.canonical()
}
func (t *ctype) IsConst() bool { return t.konst }

func wrap(t *ctype) clang.Type {
	if t == nil {
		return nil
	}
	return t
}

func (t *ctype) Pointee() clang.Type {
	switch t.kind {
	case clang.TypePointer, clang.TypeLValueReference, clang.TypeRValueReference, clang.TypeMemberPointer:
		return wrap(t.pointee)
	}
	return nil
}

func (t *ctype) Element() clang.Type {
	return wrap(t.elem)
}

func (t *ctype) ArraySize() int64 {
	if t.kind == clang.TypeConstantArray {
		return t.n
	}
	return -1
}

func (t *ctype) NumArgs() int {
	if t.kind == clang.TypeFunctionProto {
		return len(t.params)
	}
	return -1
}

func (t *ctype) Arg(i int) clang.Type {
	if i < 0 || i >= len(t.params) {
		return nil
	}
	return t.params[i]
}

func (t *ctype) Result() clang.Type {
	return wrap(t.result)
}

func (t *ctype) templateArgs() []*ctype {
	switch {
	case t.kind == clang.TypeRecord && t.decl.specialized != nil:
		return t.decl.targs
	case t.kind == clang.TypeUnexposed && t.decl.kind == clang.CursorClassTemplate:
		return t.targs
	}
	return nil
}

func (t *ctype) NumTemplateArgs() int {
	args := t.templateArgs()
	if args == nil {
		return -1
	}
	return len(args)
}

func (t *ctype) TemplateArg(i int) clang.Type {
	args := t.templateArgs()
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

func (t *ctype) Declaration() clang.Cursor {
	if t.decl == nil {
		return nil
	}
	if t.kind == clang.TypeRecord {
		if d := t.tu.definitionOf(t.decl); d != nil {
			return d
		}
	}
	return t.decl
}

func (t *ctype) NamedType() clang.Type { return nil }

func (t *ctype) SizeOf() int64 {
	s, _ := t.sizeAlign()
	return s
}

func (t *ctype) AlignOf() int64 {
	_, a := t.sizeAlign()
	return a
}

func (t *ctype) IsPOD() bool {
	c := t.canonical()
	switch c.kind {
	case clang.TypeConstantArray, clang.TypeIncompleteArray:
		return c.elem.IsPOD()
	case clang.TypeRecord:
		return c.tu.isPOD(c.decl)
	case clang.TypeUnexposed, clang.TypeVoid, clang.TypeFunctionProto, clang.TypeLValueReference, clang.TypeRValueReference:
		return false
	}
	return true
}
