package astfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cmmoran/cxxffigen/internal/clang"
)

// TranslationUnit is a bound snapshot.
type TranslationUnit struct {
	doc      *Document
	root     *cursor
	ptrSize  int64
	longSize int64

	definitions map[string]*cursor
	specs       map[string]*cursor
	layouts     map[*cursor]*recordLayout
	inLayout    map[*cursor]bool
}

type cursor struct {
	tu       *TranslationUnit
	decl     *Decl
	kind     clang.CursorKind
	spelling string
	id       string
	file     string
	parent   *cursor
	children []*cursor
	args     []*cursor
	access   clang.Access
	isDef    bool

	typ        *ctype
	result     *ctype
	underlying *ctype
	// pattern holds the argument pattern of a partial specialization.
	pattern  []*ctype
	partials []*cursor
	// specialized links partial specializations and instantiations to the primary template.
	specialized *cursor
	targs       []*ctype
	value       int64
}

var declKinds = map[string]clang.CursorKind{
	"namespace":              clang.CursorNamespace,
	"extern-c":               clang.CursorLinkageSpec,
	"struct":                 clang.CursorStructDecl,
	"class":                  clang.CursorClassDecl,
	"union":                  clang.CursorUnionDecl,
	"enum":                   clang.CursorEnumDecl,
	"constant":               clang.CursorEnumConstantDecl,
	"typedef":                clang.CursorTypedefDecl,
	"using":                  clang.CursorTypeAliasDecl,
	"function":               clang.CursorFunctionDecl,
	"var":                    clang.CursorVarDecl,
	"struct-template":        clang.CursorClassTemplate,
	"class-template":         clang.CursorClassTemplate,
	"partial-specialization": clang.CursorClassTemplatePartialSpecialization,
	"function-template":      clang.CursorFunctionTemplate,
	"alias-template":         clang.CursorTypeAliasTemplateDecl,
	"field":                  clang.CursorFieldDecl,
	"method":                 clang.CursorCXXMethod,
	"constructor":            clang.CursorConstructor,
	"destructor":             clang.CursorDestructor,
	"base":                   clang.CursorCXXBaseSpecifier,
}

func (tu *TranslationUnit) build(parent *cursor, d *Decl) (*cursor, error) {
	kind, ok := declKinds[d.Kind]
	if !ok {
		return nil, fmt.Errorf("%s: unknown declaration kind %q", parent.path(), d.Kind)
	}
	c := &cursor{
		tu:       tu,
		decl:     d,
		kind:     kind,
		spelling: d.Name,
		parent:   parent,
		file:     d.File,
		isDef:    !d.Forward,
	}
	if c.file == "" {
		c.file = parent.file
	}
	switch kind {
	case clang.CursorConstructor:
		c.spelling = parent.spelling
	case clang.CursorDestructor:
		c.spelling = "~" + parent.spelling
	case clang.CursorCXXBaseSpecifier:
		c.spelling = d.Type
	case clang.CursorClassTemplatePartialSpecialization:
		if c.spelling == "" {
			c.spelling = d.Template
		}
	}
	c.access = defaultAccess(parent, c)
	if d.Access != "" {
		a, err := parseAccess(d.Access)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.path(), err)
		}
		c.access = a
	}
	c.id = parent.id + "/" + d.Kind + ":" + c.spelling
	if kind == clang.CursorFunctionDecl || kind == clang.CursorCXXMethod || kind == clang.CursorConstructor {
		spellings := make([]string, len(d.Params))
		for i, p := range d.Params {
			spellings[i] = p.Type
		}
		c.id += "(" + strings.Join(spellings, ",") + ")"
		if d.Const {
			c.id += "const"
		}
	}
	for _, sib := range parent.children {
		if sib.id == c.id {
			c.id += "#" + strconv.Itoa(len(parent.children))
			break
		}
	}
	parent.children = append(parent.children, c)

	for _, tp := range d.TemplateParams {
		param, err := templateParam(c, tp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.path(), err)
		}
		c.children = append(c.children, param)
	}
	for i, p := range d.Params {
		name := p.Name
		arg := &cursor{
			tu:       tu,
			kind:     clang.CursorParmDecl,
			spelling: name,
			parent:   c,
			file:     c.file,
			id:       c.id + "/param:" + strconv.Itoa(i),
			decl:     &Decl{Kind: "param", Name: name, Type: p.Type},
			isDef:    true,
		}
		c.args = append(c.args, arg)
	}
	for _, child := range d.Decls {
		if _, err := tu.build(c, child); err != nil {
			return nil, err
		}
	}
	if kind == clang.CursorEnumConstantDecl && d.Ref != "" {
		c.children = append(c.children, &cursor{
			tu:       tu,
			kind:     clang.CursorDeclRefExpr,
			spelling: d.Ref,
			parent:   c,
			file:     c.file,
			id:       c.id + "/ref",
			isDef:    true,
		})
	}
	return c, nil
}

func templateParam(owner *cursor, spelling string) (*cursor, error) {
	fields := strings.Fields(strings.ReplaceAll(spelling, "...", " ... "))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty template parameter")
	}
	for _, f := range fields {
		if f == "..." {
			return nil, fmt.Errorf("variadic template parameter %q is not supported", spelling)
		}
	}
	name := fields[len(fields)-1]
	kind := clang.CursorTemplateTypeParameter
	var typeSpelling string
	if len(fields) > 1 && fields[0] != "typename" && fields[0] != "class" {
		kind = clang.CursorNonTypeTemplateParameter
		typeSpelling = strings.Join(fields[:len(fields)-1], " ")
	}
	return &cursor{
		tu:       owner.tu,
		kind:     kind,
		spelling: name,
		parent:   owner,
		file:     owner.file,
		id:       owner.id + "/tparam:" + name,
		decl:     &Decl{Kind: "template-param", Name: name, Type: typeSpelling},
		isDef:    true,
	}, nil
}

func parseAccess(s string) (clang.Access, error) {
	switch s {
	case "public":
		return clang.AccessPublic, nil
	case "protected":
		return clang.AccessProtected, nil
	case "private":
		return clang.AccessPrivate, nil
	}
	return clang.AccessInvalid, fmt.Errorf("unknown access %q", s)
}

// defaultAccess applies the C++ rule: class members and bases are private,
// struct and union members are public, namespace-scope declarations have none.
func defaultAccess(parent, c *cursor) clang.Access {
	if !parent.isRecordLike() {
		return clang.AccessInvalid
	}
	if c.kind == clang.CursorTemplateTypeParameter || c.kind == clang.CursorNonTypeTemplateParameter {
		return clang.AccessInvalid
	}
	if parent.classKeyword() {
		return clang.AccessPrivate
	}
	return clang.AccessPublic
}

func (c *cursor) isRecordLike() bool {
	switch c.kind {
	case clang.CursorStructDecl, clang.CursorClassDecl, clang.CursorUnionDecl,
		clang.CursorClassTemplate, clang.CursorClassTemplatePartialSpecialization:
		return true
	}
	return false
}

func (c *cursor) classKeyword() bool {
	switch c.kind {
	case clang.CursorClassDecl:
		return true
	case clang.CursorClassTemplate:
		return c.decl != nil && c.decl.Kind == "class-template"
	case clang.CursorClassTemplatePartialSpecialization:
		return c.decl != nil && c.decl.Tag == "class"
	}
	return false
}

func (c *cursor) recordKind() clang.CursorKind {
	if c.classKeyword() {
		return clang.CursorClassDecl
	}
	return clang.CursorStructDecl
}

// qualifiedName joins enclosing namespaces and records with `::`.
func (c *cursor) qualifiedName() string {
	var parts []string
	for p := c; p != nil; p = p.parent {
		switch p.kind {
		case clang.CursorTranslationUnit, clang.CursorLinkageSpec:
			continue
		}
		if p.spelling != "" {
			parts = append(parts, p.spelling)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "::")
}

func (c *cursor) path() string {
	if c == nil || c.kind == clang.CursorTranslationUnit {
		return "<tu>"
	}
	return c.qualifiedName()
}

// bind resolves every type spelling below c.
func (tu *TranslationUnit) bind(c *cursor) error {
	if tu.definitions == nil {
		tu.definitions = make(map[string]*cursor)
	}
	stack := []*cursor{c}
	var ordered []*cursor
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ordered = append(ordered, n)
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
		if n.kind.IsRecord() && n.isDef {
			tu.definitions[n.qualifiedName()] = n
		}
	}
	// Templates first so partial specializations and instantiations can link.
	for _, n := range ordered {
		if n.kind == clang.CursorClassTemplatePartialSpecialization {
			if err := tu.bindPartial(n); err != nil {
				return err
			}
		}
	}
	// Type-declaring cursors bind before their uses so canonical spellings
	// of template arguments are available.
	declares := func(n *cursor) bool {
		switch n.kind {
		case clang.CursorTypedefDecl, clang.CursorTypeAliasDecl, clang.CursorEnumDecl,
			clang.CursorClassTemplate, clang.CursorClassTemplatePartialSpecialization,
			clang.CursorTemplateTypeParameter:
			return true
		}
		return n.kind.IsRecord()
	}
	for _, pass := range []bool{true, false} {
		for _, n := range ordered {
			if declares(n) != pass {
				continue
			}
			if err := tu.bindOne(n); err != nil {
				return fmt.Errorf("%s: %w", n.path(), err)
			}
		}
	}
	return nil
}

func (tu *TranslationUnit) bindPartial(n *cursor) error {
	name := n.decl.Template
	if name == "" {
		name = n.spelling
	}
	expr, err := parseTypeSpelling(name)
	if err != nil {
		return err
	}
	target := tu.lookup(n.parent, expr)
	if target == nil || target.kind != clang.CursorClassTemplate {
		return fmt.Errorf("%s: partial specialization of unknown template %q", n.path(), name)
	}
	n.specialized = target
	target.partials = append(target.partials, n)
	return nil
}

func (tu *TranslationUnit) bindOne(n *cursor) error {
	d := n.decl
	var err error
	switch n.kind {
	case clang.CursorStructDecl, clang.CursorClassDecl, clang.CursorUnionDecl:
		n.typ = &ctype{tu: tu, kind: clang.TypeRecord, decl: n}
	case clang.CursorEnumDecl:
		spelling := d.Type
		if spelling == "" {
			spelling = "int"
		}
		if n.underlying, err = tu.resolveSpelling(spelling, n.parent); err != nil {
			return err
		}
		n.typ = &ctype{tu: tu, kind: clang.TypeEnum, decl: n}
		var next int64
		for _, k := range n.children {
			if k.kind != clang.CursorEnumConstantDecl {
				continue
			}
			switch {
			case k.decl.Value != nil:
				k.value = *k.decl.Value
			case k.decl.Ref != "":
				ref := n.findChild(k.decl.Ref)
				if ref == nil || ref.kind != clang.CursorEnumConstantDecl {
					return fmt.Errorf("enumerator %s references unknown %q", k.spelling, k.decl.Ref)
				}
				k.value = ref.value
			default:
				k.value = next
			}
			next = k.value + 1
			k.typ = n.typ
		}
	case clang.CursorTypedefDecl, clang.CursorTypeAliasDecl:
		if n.underlying, err = tu.resolveSpelling(d.Type, n.parent); err != nil {
			return err
		}
		n.typ = &ctype{tu: tu, kind: clang.TypeTypedef, decl: n}
	case clang.CursorFieldDecl, clang.CursorVarDecl:
		if n.typ, err = tu.resolveSpelling(d.Type, n.parent); err != nil {
			return err
		}
	case clang.CursorCXXBaseSpecifier:
		scope := n.parent.parent
		if n.parent.kind == clang.CursorClassTemplate || n.parent.kind == clang.CursorClassTemplatePartialSpecialization {
			// Bases of templates may name the template parameters.
			scope = n.parent
		}
		if n.typ, err = tu.resolveSpelling(d.Type, scope); err != nil {
			return err
		}
	case clang.CursorFunctionDecl, clang.CursorCXXMethod, clang.CursorConstructor, clang.CursorDestructor:
		result := d.Result
		if result == "" {
			result = "void"
		}
		if n.result, err = tu.resolveSpelling(result, n.parent); err != nil {
			return err
		}
		params := make([]*ctype, len(n.args))
		for i, a := range n.args {
			if a.typ, err = tu.resolveSpelling(a.decl.Type, n.parent); err != nil {
				return err
			}
			params[i] = a.typ
		}
		n.typ = &ctype{tu: tu, kind: clang.TypeFunctionProto, params: params, result: n.result}
	case clang.CursorClassTemplate:
		n.typ = &ctype{tu: tu, kind: clang.TypeUnexposed, decl: n}
		n.typ.targs = n.templateParamTypes()
	case clang.CursorClassTemplatePartialSpecialization:
		n.pattern = make([]*ctype, len(d.Args))
		for i, a := range d.Args {
			if n.pattern[i], err = tu.resolveSpelling(a, n); err != nil {
				return err
			}
		}
		n.typ = &ctype{tu: tu, kind: clang.TypeUnexposed, decl: n.specialized, targs: n.pattern}
	case clang.CursorTemplateTypeParameter:
		n.typ = &ctype{tu: tu, kind: clang.TypeUnexposed, decl: n}
	case clang.CursorNonTypeTemplateParameter:
		if n.typ, err = tu.resolveSpelling(d.Type, n.parent.parent); err != nil {
			return err
		}
	}
	return nil
}

func (c *cursor) templateParamTypes() []*ctype {
	var out []*ctype
	for _, k := range c.children {
		if k.kind == clang.CursorTemplateTypeParameter {
			out = append(out, &ctype{tu: c.tu, kind: clang.TypeUnexposed, decl: k})
		}
	}
	return out
}

func (c *cursor) findChild(name string) *cursor {
	var found *cursor
	for _, k := range c.children {
		if k.spelling != name {
			continue
		}
		switch k.kind {
		case clang.CursorCXXMethod, clang.CursorFunctionDecl, clang.CursorConstructor,
			clang.CursorDestructor, clang.CursorFieldDecl, clang.CursorVarDecl, clang.CursorCXXBaseSpecifier,
			clang.CursorClassTemplatePartialSpecialization:
			continue
		}
		if found == nil || (!found.isDef && k.isDef) || (found.kind != clang.CursorClassTemplate && k.kind == clang.CursorClassTemplate) {
			found = k
		}
	}
	if found != nil {
		return found
	}
	// extern "C" blocks are transparent.
	for _, k := range c.children {
		if k.kind == clang.CursorLinkageSpec {
			if f := k.findChild(name); f != nil {
				return f
			}
		}
	}
	return nil
}

// lookup resolves a named type expression from scope outwards.
func (tu *TranslationUnit) lookup(scope *cursor, e *typeExpr) *cursor {
	if e.absolute {
		scope = tu.root
	}
	for s := scope; s != nil; s = s.parent {
		if e.absolute && s != tu.root {
			continue
		}
		cur := s.findChild(e.names[0])
		for _, part := range e.names[1:] {
			if cur == nil {
				break
			}
			cur = cur.findChild(part)
		}
		if cur != nil {
			return cur
		}
		if s.kind == clang.CursorClassTemplatePartialSpecialization && s.spelling == e.names[0] && len(e.names) == 1 {
			return s.specialized
		}
	}
	return nil
}

func (tu *TranslationUnit) definitionOf(c *cursor) *cursor {
	if c.isDef {
		return c
	}
	if d, ok := tu.definitions[c.qualifiedName()]; ok {
		return d
	}
	return nil
}

// ---------------------------------------------------------------------------
// clang.Cursor
// ---------------------------------------------------------------------------

func (c *cursor) Kind() clang.CursorKind { return c.kind }
func (c *cursor) Spelling() string       { return c.spelling }
func (c *cursor) ID() string             { return c.id }
func (c *cursor) File() string           { return c.file }
func (c *cursor) Access() clang.Access   { return c.access }

func (c *cursor) IsDefinition() bool {
	switch c.kind {
	case clang.CursorClassTemplate, clang.CursorClassTemplatePartialSpecialization:
		return c.isDef && (c.decl == nil || !c.decl.Forward)
	}
	return c.isDef
}

func (c *cursor) Definition() clang.Cursor {
	switch {
	case c.kind == clang.CursorCXXBaseSpecifier:
		if c.typ != nil {
			if d := c.typ.Declaration(); d != nil {
				return d
			}
		}
		return nil
	case c.kind.IsRecord():
		if d := c.tu.definitionOf(c); d != nil {
			return d
		}
		return nil
	}
	if c.isDef {
		return c
	}
	return nil
}

func (c *cursor) IsVirtual() bool { return c.decl != nil && c.decl.Virtual }
func (c *cursor) IsStatic() bool  { return c.decl != nil && c.decl.Static }
func (c *cursor) IsConst() bool   { return c.decl != nil && c.decl.Const }
func (c *cursor) IsInlined() bool { return c.decl != nil && c.decl.Inline }

func (c *cursor) OverriddenCount() int {
	if c.decl != nil && c.decl.Override {
		return 1
	}
	return 0
}

func (c *cursor) IsCopyConstructor() bool {
	if c.kind != clang.CursorConstructor {
		return false
	}
	if c.decl.Copy {
		return true
	}
	return c.selfReferenceParam(clang.TypeLValueReference)
}

func (c *cursor) IsMoveConstructor() bool {
	if c.kind != clang.CursorConstructor {
		return false
	}
	if c.decl.Move {
		return true
	}
	return c.selfReferenceParam(clang.TypeRValueReference)
}

func (c *cursor) selfReferenceParam(kind clang.TypeKind) bool {
	if len(c.args) != 1 || c.args[0].typ == nil {
		return false
	}
	t := c.args[0].typ
	if t.kind != kind || t.pointee == nil {
		return false
	}
	p := t.pointee.canonical()
	return p.kind == clang.TypeRecord && p.decl == c.parent
}

func (c *cursor) Mangling() string {
	if c.decl != nil && c.decl.Mangling != "" {
		return c.decl.Mangling
	}
	switch c.kind {
	case clang.CursorFunctionDecl, clang.CursorCXXMethod, clang.CursorConstructor, clang.CursorDestructor:
		spellings := make([]string, len(c.args))
		for i, a := range c.args {
			spellings[i] = a.typ.Spelling()
		}
		m := c.qualifiedName() + "(" + strings.Join(spellings, ", ") + ")"
		if c.IsConst() {
			m += " const"
		}
		return m
	case clang.CursorVarDecl:
		return c.qualifiedName()
	}
	return ""
}

// Manglings falls back to one symbol per Itanium variant: base and complete
// object for constructors, base, complete and deleting for destructors.
func (c *cursor) Manglings() []string {
	if c.decl != nil && len(c.decl.Manglings) > 0 {
		return append([]string(nil), c.decl.Manglings...)
	}
	m := c.Mangling()
	switch c.kind {
	case clang.CursorConstructor:
		return []string{m + " [base]", m + " [complete]"}
	case clang.CursorDestructor:
		out := []string{m + " [base]", m + " [complete]"}
		if c.IsVirtual() {
			out = append(out, m+" [deleting]")
		}
		return out
	}
	if m == "" {
		return nil
	}
	return []string{m}
}

func (c *cursor) Type() clang.Type {
	if c.typ == nil {
		return nil
	}
	return c.typ
}

func (c *cursor) ResultType() clang.Type {
	if c.result == nil {
		return nil
	}
	return c.result
}

func (c *cursor) NumArguments() int {
	switch c.kind {
	case clang.CursorFunctionDecl, clang.CursorCXXMethod, clang.CursorConstructor, clang.CursorDestructor:
		return len(c.args)
	}
	return -1
}

func (c *cursor) Argument(i int) clang.Cursor {
	if i < 0 || i >= len(c.args) {
		return nil
	}
	return c.args[i]
}

func (c *cursor) SpecializedTemplate() clang.Cursor {
	if c.specialized == nil {
		return nil
	}
	return c.specialized
}

func (c *cursor) NumTemplateArguments() int {
	switch {
	case c.kind == clang.CursorClassTemplatePartialSpecialization:
		return len(c.pattern)
	case c.specialized != nil:
		return len(c.targs)
	}
	return -1
}

func (c *cursor) TemplateArgumentType(i int) clang.Type {
	var args []*ctype
	if c.kind == clang.CursorClassTemplatePartialSpecialization {
		args = c.pattern
	} else {
		args = c.targs
	}
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

func (c *cursor) TypedefUnderlyingType() clang.Type {
	if c.kind != clang.CursorTypedefDecl && c.kind != clang.CursorTypeAliasDecl || c.underlying == nil {
		return nil
	}
	return c.underlying
}

func (c *cursor) EnumIntegerType() clang.Type {
	if c.kind != clang.CursorEnumDecl || c.underlying == nil {
		return nil
	}
	return c.underlying
}

func (c *cursor) EnumValue() int64          { return c.value }
func (c *cursor) EnumUnsignedValue() uint64 { return uint64(c.value) }

func (c *cursor) OffsetOfField() int64 {
	if c.kind != clang.CursorFieldDecl || c.parent == nil {
		return -1
	}
	l, err := c.tu.layoutOf(c.parent)
	if err != nil {
		return -1
	}
	off, ok := l.offsets[c]
	if !ok {
		return -1
	}
	return off * 8
}

func (c *cursor) VisitChildren(v clang.Visitor) bool {
	type frame struct {
		parent *cursor
		items  []*cursor
		i      int
	}
	stack := []*frame{{parent: c, items: c.children}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.i >= len(f.items) {
			stack = stack[:len(stack)-1]
			continue
		}
		child := f.items[f.i]
		f.i++
		switch v(child, f.parent) {
		case clang.VisitBreak:
			return true
		case clang.VisitRecurse:
			if len(child.children) > 0 {
				stack = append(stack, &frame{parent: child, items: child.children})
			}
		}
	}
	return false
}

func (c *cursor) Equal(other clang.Cursor) bool {
	o, ok := other.(*cursor)
	return ok && o != nil && o.id == c.id
}
