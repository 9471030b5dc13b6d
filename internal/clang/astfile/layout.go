package astfile

import (
	"fmt"

	"github.com/cmmoran/cxxffigen/internal/clang"
)

type recordLayout struct {
	size  int64
	align int64
	// dsize excludes tail padding; non-POD bases reuse it.
	dsize   int64
	dynamic bool
	pod     bool
	empty   bool
	// offsets are in bytes, keyed by the field cursors of the laid out source.
	offsets map[*cursor]int64
}

func alignTo(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

// layoutAll lays out every concrete record so layout errors surface at load.
func (tu *TranslationUnit) layoutAll(root *cursor) error {
	stack := []*cursor{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch n.kind {
		case clang.CursorClassTemplate, clang.CursorClassTemplatePartialSpecialization, clang.CursorFunctionTemplate:
			continue
		}
		if n.kind.IsRecord() && n.isDef {
			if _, err := tu.layoutOf(n); err != nil {
				return err
			}
		}
		stack = append(stack, n.children...)
	}
	return nil
}

// source picks the declaration that provides the body of rec along with the
// template parameter bindings to apply to it.
func (tu *TranslationUnit) source(rec *cursor) (*cursor, map[*cursor]*ctype, error) {
	tmpl := rec.specialized
	if tmpl == nil {
		return rec, nil, nil
	}
	var (
		matched *cursor
		env     map[*cursor]*ctype
		count   int
	)
	for _, p := range tmpl.partials {
		if len(p.pattern) != len(rec.targs) {
			continue
		}
		bindings := make(map[*cursor]*ctype)
		ok := true
		for i := range p.pattern {
			if !unify(p.pattern[i], rec.targs[i], bindings) {
				ok = false
				break
			}
		}
		if ok {
			matched, env = p, bindings
			count++
		}
	}
	switch {
	case count > 1:
		return nil, nil, fmt.Errorf("%s: ambiguous partial specialization", rec.Type().Spelling())
	case count == 1:
		return matched, env, nil
	}
	if !tmpl.IsDefinition() {
		return nil, nil, fmt.Errorf("%s: incomplete template", rec.Type().Spelling())
	}
	params := tmpl.templateParamTypes()
	if len(params) != len(rec.targs) {
		return nil, nil, fmt.Errorf("%s: expected %d template arguments", rec.Type().Spelling(), len(params))
	}
	env = make(map[*cursor]*ctype, len(params))
	for i, p := range params {
		env[p.decl] = rec.targs[i]
	}
	return tmpl, env, nil
}

func sameType(a, b *ctype) bool {
	return a.canonical().Spelling() == b.canonical().Spelling()
}

func unify(p, a *ctype, env map[*cursor]*ctype) bool {
	a = a.canonical()
	if p.kind == clang.TypeUnexposed && p.decl.kind == clang.CursorTemplateTypeParameter {
		if p.konst {
			if !a.konst {
				return false
			}
			cp := *a
			cp.konst = false
			a = &cp
		}
		if b, ok := env[p.decl]; ok {
			return sameType(b, a)
		}
		env[p.decl] = a
		return true
	}
	p = p.canonical()
	if p.konst != a.konst {
		return false
	}
	if p.kind == clang.TypeUnexposed {
		if a.kind != clang.TypeRecord || a.decl.specialized != p.decl || len(a.decl.targs) != len(p.targs) {
			return false
		}
		for i := range p.targs {
			if !unify(p.targs[i], a.decl.targs[i], env) {
				return false
			}
		}
		return true
	}
	if p.kind != a.kind {
		return false
	}
	switch p.kind {
	case clang.TypePointer, clang.TypeLValueReference, clang.TypeRValueReference:
		return unify(p.pointee, a.pointee, env)
	case clang.TypeMemberPointer:
		return unify(p.pointee, a.pointee, env) && unify(p.class, a.class, env)
	case clang.TypeConstantArray:
		return p.n == a.n && unify(p.elem, a.elem, env)
	case clang.TypeIncompleteArray:
		return unify(p.elem, a.elem, env)
	case clang.TypeFunctionProto:
		if len(p.params) != len(a.params) || !unify(p.result, a.result, env) {
			return false
		}
		for i := range p.params {
			if !unify(p.params[i], a.params[i], env) {
				return false
			}
		}
		return true
	case clang.TypeRecord, clang.TypeEnum:
		return sameType(p, a)
	}
	return true
}

func hasVirtualMember(c *cursor) bool {
	for _, k := range c.children {
		if (k.kind == clang.CursorCXXMethod || k.kind == clang.CursorDestructor) && k.IsVirtual() {
			return true
		}
	}
	return false
}

func (tu *TranslationUnit) layoutOf(rec *cursor) (*recordLayout, error) {
	if l, ok := tu.layouts[rec]; ok {
		return l, nil
	}
	def := tu.definitionOf(rec)
	if def == nil {
		return nil, fmt.Errorf("%s: incomplete type", rec.path())
	}
	if l, ok := tu.layouts[def]; ok {
		return l, nil
	}
	if tu.inLayout[def] {
		return nil, fmt.Errorf("%s: record contains itself", def.path())
	}
	tu.inLayout[def] = true
	defer delete(tu.inLayout, def)

	src, env, err := tu.source(def)
	if err != nil {
		return nil, err
	}

	l := &recordLayout{align: 1, offsets: make(map[*cursor]int64)}
	var bases, vbases []*ctype
	for _, k := range src.children {
		if k.kind != clang.CursorCXXBaseSpecifier {
			continue
		}
		if k.IsVirtual() {
			vbases = append(vbases, k.typ.subst(env))
		} else {
			bases = append(bases, k.typ.subst(env))
		}
	}
	baseLayouts := make([]*recordLayout, len(bases))
	primary := -1
	for i, b := range bases {
		bl, err := tu.baseLayout(b)
		if err != nil {
			return nil, fmt.Errorf("%s: base %s: %w", def.path(), b.Spelling(), err)
		}
		baseLayouts[i] = bl
		if bl.dynamic && primary < 0 {
			primary = i
		}
	}
	l.dynamic = hasVirtualMember(src) || len(vbases) > 0 || primary >= 0

	var size int64
	if l.dynamic && primary < 0 {
		size = tu.ptrSize
		l.align = tu.ptrSize
	}
	order := make([]int, 0, len(bases))
	if primary >= 0 {
		order = append(order, primary)
	}
	for i := range bases {
		if i != primary {
			order = append(order, i)
		}
	}
	empty := !l.dynamic
	for _, i := range order {
		bl := baseLayouts[i]
		l.align = max(l.align, bl.align)
		if bl.empty {
			continue
		}
		empty = false
		size = alignTo(size, bl.align) + bl.placed()
	}

	union := src.kind == clang.CursorUnionDecl ||
		src.decl != nil && src.decl.Tag == "union"
	for _, k := range src.children {
		if k.kind != clang.CursorFieldDecl {
			continue
		}
		t := k.typ.subst(env)
		s, a := t.sizeAlign()
		if s < 0 {
			return nil, fmt.Errorf("%s: field %s has incomplete type %s", def.path(), k.spelling, t.Spelling())
		}
		empty = false
		l.align = max(l.align, a)
		if union {
			l.offsets[k] = 0
			size = max(size, s)
			continue
		}
		off := alignTo(size, a)
		l.offsets[k] = off
		size = off + s
	}
	for _, vb := range vbases {
		bl, err := tu.baseLayout(vb)
		if err != nil {
			return nil, fmt.Errorf("%s: virtual base %s: %w", def.path(), vb.Spelling(), err)
		}
		l.align = max(l.align, bl.align)
		size = alignTo(size, bl.align) + bl.placed()
	}
	if def.decl != nil && def.decl.Align > 0 {
		l.align = def.decl.Align
	}
	if size == 0 {
		size = 1
	}
	l.empty = empty
	l.dsize = size
	l.size = alignTo(size, l.align)
	if def.decl != nil && def.decl.Size > 0 {
		l.size = def.decl.Size
	}
	l.pod = tu.isPOD(def)
	tu.layouts[def] = l
	if rec != def {
		tu.layouts[rec] = l
	}
	return l, nil
}

func (l *recordLayout) placed() int64 {
	if l.pod {
		return l.size
	}
	return l.dsize
}

func (tu *TranslationUnit) baseLayout(t *ctype) (*recordLayout, error) {
	c := t.canonical()
	if c.kind != clang.TypeRecord {
		return nil, fmt.Errorf("not a record")
	}
	return tu.layoutOf(c.decl)
}

func (tu *TranslationUnit) isPOD(rec *cursor) bool {
	def := tu.definitionOf(rec)
	if def == nil {
		return false
	}
	src, env, err := tu.source(def)
	if err != nil {
		return false
	}
	for _, k := range src.children {
		switch k.kind {
		case clang.CursorConstructor, clang.CursorDestructor:
			return false
		case clang.CursorCXXMethod:
			if k.IsVirtual() {
				return false
			}
		case clang.CursorCXXBaseSpecifier:
			if k.IsVirtual() || !k.typ.subst(env).IsPOD() {
				return false
			}
		case clang.CursorFieldDecl:
			if k.access != clang.AccessPublic || !k.typ.subst(env).IsPOD() {
				return false
			}
		}
	}
	return true
}
