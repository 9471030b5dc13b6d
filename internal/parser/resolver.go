package parser

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/clang"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// resolve maps a native type to its resolved form. A nil result is void.
// Named declarations reached here are demanded, not expanded inline.
func (p *Parser) resolve(t clang.Type) (*model.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: missing type", bindgen.ErrUnsupportedType)
	}
	out, err := p.resolveType(t)
	if err != nil {
		return nil, bindgen.Wrap(err, "type "+t.Spelling())
	}
	return out, nil
}

// value resolves t where a value is required.
func (p *Parser) value(t clang.Type) (*model.Type, error) {
	out, err := p.resolve(t)
	if err != nil {
		return nil, err
	}
	if out == nil || out.Underlying() == nil {
		return nil, bindgen.ErrVoidValue
	}
	return out, nil
}

func (p *Parser) resolveType(t clang.Type) (*model.Type, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxNesting {
		return nil, fmt.Errorf("%w: %s nests deeper than %d levels", bindgen.ErrUnsupportedType, t.Spelling(), MaxNesting)
	}
	switch k := t.Kind(); k {
	case clang.TypeVoid:
		return nil, nil
	case clang.TypeElaborated:
		return p.resolveType(t.NamedType())
	case clang.TypePointer, clang.TypeLValueReference, clang.TypeRValueReference:
		return p.resolvePointer(t)
	case clang.TypeNullPtr:
		return model.Pointer, nil
	case clang.TypeTypedef:
		return p.resolveTypedefType(t)
	case clang.TypeRecord:
		return p.resolveRecord(t)
	case clang.TypeEnum:
		return p.resolveEnum(t)
	case clang.TypeConstantArray:
		return p.resolveArray(t)
	case clang.TypeFunctionProto, clang.TypeFunctionNoProto:
		return p.resolveFunction(t)
	case clang.TypeMemberPointer:
		size, align := t.SizeOf(), t.AlignOf()
		return p.intern(fmt.Sprintf("member:%d:%d", size, align), func() *model.Type {
			return &model.Type{Kind: model.TypeMemberPointer, Size: size, Align: align}
		}), nil
	case clang.TypeUnexposed:
		return p.resolveUnexposed(t)
	case clang.TypeIncompleteArray:
		return nil, fmt.Errorf("%w: array of unknown bound %s", bindgen.ErrUnsupportedType, t.Spelling())
	default:
		if k == clang.TypeBool || k.IsSignedInteger() || k.IsUnsignedInteger() ||
			k == clang.TypeFloat || k == clang.TypeDouble || k == clang.TypeLongDouble {
			return p.resolveScalar(t)
		}
	}
	return nil, fmt.Errorf("%w: %s (%s)", bindgen.ErrUnsupportedType, t.Spelling(), t.Kind())
}

func (p *Parser) resolveScalar(t clang.Type) (*model.Type, error) {
	size := t.SizeOf()
	var out *model.Type
	switch k := t.Kind(); {
	case k == clang.TypeBool:
		if size == 1 {
			out = model.Bool
		}
	case k == clang.TypeFloat || k == clang.TypeDouble || k == clang.TypeLongDouble:
		out = model.Scalar(size, true, true)
	case k.IsSignedInteger():
		out = model.Scalar(size, true, false)
	default:
		out = model.Scalar(size, false, false)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s of %d bytes", bindgen.ErrUnsupportedType, t.Spelling(), size)
	}
	return out, nil
}

func (p *Parser) resolvePointer(t clang.Type) (*model.Type, error) {
	pointee := t.Pointee()
	if pointee == nil {
		return nil, fmt.Errorf("%w: %s has no pointee", bindgen.ErrUnsupportedType, t.Spelling())
	}
	if t.Kind() == clang.TypePointer {
		if size := t.SizeOf(); size > 0 {
			p.PointerSize = size
		}
	}
	canon := pointee.Canonical()
	if canon.Kind().IsPlainChar() {
		return model.CString, nil
	}
	if canon.Kind() == clang.TypePointer {
		if pp := canon.Pointee(); pp != nil && pp.Canonical().Kind().IsPlainChar() {
			return model.CStringArray, nil
		}
	}
	inner, err := p.resolveType(pointee)
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return model.Pointer, nil
	}
	return p.pointerTo(inner), nil
}

func (p *Parser) pointerTo(elem *model.Type) *model.Type {
	return p.intern(fmt.Sprintf("ptr:%p", elem), func() *model.Type {
		return model.PointerTo(elem)
	})
}

func (p *Parser) resolveArray(t clang.Type) (*model.Type, error) {
	elem := t.Element()
	if elem == nil {
		return nil, fmt.Errorf("%w: %s has no element type", bindgen.ErrUnsupportedType, t.Spelling())
	}
	et, err := p.resolveType(elem)
	if err != nil {
		return nil, err
	}
	if et == nil {
		return nil, bindgen.ErrVoidValue
	}
	n, size, align := t.ArraySize(), t.SizeOf(), t.AlignOf()
	return p.intern(fmt.Sprintf("array:%d:%p", n, et), func() *model.Type {
		return &model.Type{Kind: model.TypeArray, Elem: et, Len: n, Size: size, Align: align}
	}), nil
}

func (p *Parser) resolveFunction(t clang.Type) (*model.Type, error) {
	n := t.NumArgs()
	params := make([]*model.Parameter, 0, max(n, 0))
	key := strings.Builder{}
	key.WriteString("fn:")
	for i := 0; i < n; i++ {
		at, err := p.resolveType(t.Arg(i))
		if err != nil {
			return nil, err
		}
		if at == nil {
			return nil, bindgen.ErrVoidValue
		}
		params = append(params, &model.Parameter{Name: fmt.Sprintf("arg%d", i), Type: at})
		fmt.Fprintf(&key, "%p,", at)
	}
	var result *model.Type
	if rt := t.Result(); rt != nil {
		var err error
		if result, err = p.resolveType(rt); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(&key, "->%p", result)
	return p.intern(key.String(), func() *model.Type {
		return &model.Type{Kind: model.TypeFunction, Params: params, Result: result}
	}), nil
}

func (p *Parser) resolveUnexposed(t clang.Type) (*model.Type, error) {
	decl := t.Declaration()
	if decl == nil {
		return nil, fmt.Errorf("%w: %s", bindgen.ErrUnsupportedType, t.Spelling())
	}
	switch decl.Kind() {
	case clang.CursorTemplateTypeParameter:
		if pt, ok := p.params[decl.ID()]; ok {
			return pt, nil
		}
		return nil, fmt.Errorf("%w: template parameter %s", bindgen.ErrNotFound, decl.Spelling())
	case clang.CursorClassTemplate:
		return p.resolveInstance(t, decl)
	}
	return nil, fmt.Errorf("%w: %s", bindgen.ErrUnsupportedType, t.Spelling())
}

// ---------------------------------------------------------------------------
// named declarations
// ---------------------------------------------------------------------------

func (p *Parser) ref(e model.Entry) *model.Type {
	id := e.Common().ID
	if t, ok := p.refs[id]; ok {
		return t
	}
	t := model.RefTo(e)
	p.refs[id] = t
	return t
}

func (p *Parser) intern(key string, build func() *model.Type) *model.Type {
	if t, ok := p.interned[key]; ok {
		return t
	}
	t := build()
	p.interned[key] = t
	return t
}

func (p *Parser) resolveTypedefType(t clang.Type) (*model.Type, error) {
	e, _ := p.Table.ByCursor(t.Declaration()).(*model.TypedefEntry)
	if e == nil {
		// Typedefs nested in classes or functions are not registered.
		return p.resolveType(t.Canonical())
	}
	if err := p.resolveTypedef(e); err != nil {
		return nil, bindgen.Wrap(err, "typedef "+e.Name)
	}
	if e.Reexport {
		return p.resolveType(e.Cursor.TypedefUnderlyingType())
	}
	e.Used = true
	return p.ref(e), nil
}

func (p *Parser) resolveTypedef(e *model.TypedefEntry) error {
	if e.Resolved || p.typedefs[e.ID] {
		return nil
	}
	p.typedefs[e.ID] = true
	defer delete(p.typedefs, e.ID)

	under := e.Cursor.TypedefUnderlyingType()
	if under == nil {
		return fmt.Errorf("%w: typedef %s has no underlying type", bindgen.ErrUnsupportedType, e.Name)
	}
	if decl := under.Canonical().Declaration(); decl != nil && !decl.Equal(e.Cursor) &&
		decl.Spelling() == e.ShortName() && decl.File() == e.File {
		if target := p.Table.ByCursor(decl); target != nil && target.Common().Name != e.Name {
			e.Reexport = true
			e.Resolved = true
			return nil
		}
	}
	target, err := p.resolveType(under)
	if err != nil {
		return err
	}
	e.Target = target
	e.Resolved = true
	return nil
}

func (p *Parser) resolveRecord(t clang.Type) (*model.Type, error) {
	decl := t.Declaration()
	if decl == nil {
		return nil, fmt.Errorf("%w: record %s has no declaration", bindgen.ErrUnsupportedType, t.Spelling())
	}
	if tmpl := decl.SpecializedTemplate(); tmpl != nil {
		return p.resolveInstance(t, tmpl)
	}
	switch e := p.Table.ByCursor(decl).(type) {
	case *model.ClassEntry:
		p.demand(e)
		return p.ref(e), nil
	case *model.UnionEntry:
		if err := p.expandUnion(e); err != nil {
			return nil, err
		}
		return p.ref(e), nil
	}

	if !decl.IsDefinition() || t.SizeOf() < 0 {
		return p.ref(p.placeholder(decl, t.Spelling())), nil
	}
	if decl.Spelling() == "" {
		return p.resolveInline(decl, t)
	}
	// Named records outside namespace scope, e.g. declared inside a class.
	decl0 := model.Decl{Cursor: decl, Name: t.Canonical().Spelling(), File: decl.File()}
	if decl.Kind() == clang.CursorUnionDecl {
		e := &model.UnionEntry{Decl: decl0}
		p.Table.Register(e)
		p.Table.Unions.Add(e)
		if err := p.expandUnion(e); err != nil {
			return nil, err
		}
		return p.ref(e), nil
	}
	e := &model.ClassEntry{Decl: decl0}
	p.Table.Register(e)
	p.Table.Classes.Add(e)
	p.demand(e)
	return p.ref(e), nil
}

// placeholder returns the opaque stand-in for a class whose size is unknown.
func (p *Parser) placeholder(decl clang.Cursor, name string) *model.ClassEntry {
	if e, ok := p.opaque[name]; ok {
		return e
	}
	e := &model.ClassEntry{
		Decl:   model.Decl{Cursor: decl, Name: name, File: decl.File(), Used: true},
		Opaque: true,
	}
	p.Table.Register(e)
	p.opaque[name] = e
	p.log.Debug("opaque placeholder", zap.String("class", name))
	return e
}

func (p *Parser) resolveInline(decl clang.Cursor, t clang.Type) (*model.Type, error) {
	if out, ok := p.inline[decl.ID()]; ok {
		return out, nil
	}
	kind := model.TypeInlineStruct
	if decl.Kind() == clang.CursorUnionDecl {
		kind = model.TypeInlineUnion
	}
	out := &model.Type{Kind: kind, Size: t.SizeOf(), Align: t.AlignOf()}
	p.inline[decl.ID()] = out
	fields, err := p.fields(decl)
	if err != nil {
		delete(p.inline, decl.ID())
		return nil, err
	}
	out.Fields = fields
	return out, nil
}

// fields resolves every data member of decl regardless of access; the wire
// layout needs them all.
func (p *Parser) fields(decl clang.Cursor) ([]*model.Field, error) {
	var out []*model.Field
	for _, c := range clang.Children(decl) {
		if c.Kind() != clang.CursorFieldDecl {
			continue
		}
		ft, err := p.value(c.Type())
		if err != nil {
			return nil, bindgen.Wrap(err, "field "+c.Spelling())
		}
		f := &model.Field{Name: c.Spelling(), Type: ft, Offset: -1, Size: c.Type().SizeOf(), Align: c.Type().AlignOf()}
		if off := c.OffsetOfField(); off >= 0 {
			f.Offset = off / 8
		}
		out = append(out, f)
	}
	return out, nil
}

func (p *Parser) resolveEnum(t clang.Type) (*model.Type, error) {
	decl := t.Declaration()
	e, _ := p.Table.ByCursor(decl).(*model.EnumEntry)
	if e == nil {
		if decl == nil || decl.EnumIntegerType() == nil {
			return nil, fmt.Errorf("%w: enum %s", bindgen.ErrUnsupportedType, t.Spelling())
		}
		// Anonymous and class-scoped enums decay to their integer type.
		return p.resolveType(decl.EnumIntegerType())
	}
	if err := p.populateEnum(e); err != nil {
		return nil, bindgen.Wrap(err, "enum "+e.Name)
	}
	return p.ref(e), nil
}

func (p *Parser) populateEnum(e *model.EnumEntry) error {
	if e.Used {
		return nil
	}
	it := e.Cursor.EnumIntegerType()
	if it == nil {
		return fmt.Errorf("%w: enum without integer type", bindgen.ErrUnsupportedType)
	}
	underlying, err := p.resolveType(it)
	if err != nil {
		return err
	}
	e.Used = true
	e.Type = underlying
	unsigned := it.Canonical().Kind().IsUnsignedInteger()
	for _, c := range clang.Children(e.Cursor) {
		if c.Kind() != clang.CursorEnumConstantDecl {
			continue
		}
		k := &model.Constant{Name: c.Spelling(), Unsigned: unsigned}
		if unsigned {
			k.Value = int64(c.EnumUnsignedValue())
		} else {
			k.Value = c.EnumValue()
		}
		c.VisitChildren(func(child, _ clang.Cursor) clang.VisitResult {
			if child.Kind() == clang.CursorDeclRefExpr {
				k.Ref = child.Spelling()
				return clang.VisitBreak
			}
			return clang.VisitRecurse
		})
		e.Constants = append(e.Constants, k)
	}
	return nil
}
