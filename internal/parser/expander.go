package parser

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/clang"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// task is one pending expansion. Exactly one of class, tmpl is set.
type task struct {
	class *model.ClassEntry
	tmpl  *model.ClassTemplateEntry

	ctors   bindgen.Filter
	dtors   bool
	methods bindgen.Filter
}

func (t *task) wider() bool {
	return !t.ctors.Empty() || t.dtors || !t.methods.Empty()
}

var identifier = regexp.MustCompile(`^\w+$`)

func (p *Parser) push(t *task) {
	p.tasks = append(p.tasks, t)
}

// demand queues a layout-only expansion of e.
func (p *Parser) demand(e *model.ClassEntry) {
	if !e.Used && !e.Opaque {
		p.push(&task{class: e})
	}
}

// drain runs queued expansions until none remain. The queue stands in for
// recursion so deep type graphs cannot exhaust the stack.
func (p *Parser) drain() error {
	for len(p.tasks) > 0 {
		t := p.tasks[len(p.tasks)-1]
		p.tasks = p.tasks[:len(p.tasks)-1]
		var err error
		switch {
		case t.class != nil:
			err = p.expandClass(t)
		case t.tmpl != nil:
			err = p.expandTemplate(t.tmpl)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// imports
// ---------------------------------------------------------------------------

func (p *Parser) importClass(spec bindgen.ImportSpec) error {
	e, err := p.lookupClass(spec.Name)
	if err != nil {
		return err
	}
	switch v := e.(type) {
	case *model.ClassEntry:
		p.push(&task{class: v, ctors: spec.Constructors, dtors: spec.Destructors, methods: spec.Methods})
	case *model.ClassTemplateEntry:
		if err := p.prepareTemplate(v); err != nil {
			return err
		}
		p.push(&task{tmpl: v})
	}
	return nil
}

// lookupClass finds a class by name, then a typedef naming a record, then a
// class template. Ambiguity at any step is an error.
func (p *Parser) lookupClass(name string) (model.Entry, error) {
	c, err := p.Table.Classes.Find(name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, bindgen.ErrNotFound) {
		return nil, err
	}

	td, err := p.Table.Typedefs.Find(name)
	switch {
	case err == nil:
		if e := p.typedefClass(td); e != nil {
			return e, nil
		}
	case !errors.Is(err, bindgen.ErrNotFound):
		return nil, err
	}

	tm, err := p.Table.Templates.Find(name)
	if err == nil {
		return tm, nil
	}
	if !errors.Is(err, bindgen.ErrNotFound) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: class %s", bindgen.ErrNotFound, name)
}

// typedefClass returns the class a typedef names. `typedef struct {...} X;`
// gets a class named after the typedef, and the typedef itself is dropped.
func (p *Parser) typedefClass(td *model.TypedefEntry) *model.ClassEntry {
	under := td.Cursor.TypedefUnderlyingType()
	if under == nil {
		return nil
	}
	canon := under.Canonical()
	if canon.Kind() != clang.TypeRecord {
		return nil
	}
	decl := canon.Declaration()
	if decl == nil || decl.SpecializedTemplate() != nil || !decl.IsDefinition() {
		return nil
	}
	if c, ok := p.Table.ByCursor(decl).(*model.ClassEntry); ok {
		return c
	}
	if decl.Kind() == clang.CursorUnionDecl {
		return nil
	}
	e := &model.ClassEntry{Decl: model.Decl{Cursor: decl, Name: td.Name, File: td.File}}
	p.Table.Register(e)
	p.Table.Classes.Add(e)
	td.Reexport = true
	td.Resolved = true
	return e
}

func (p *Parser) importFunction(name string) error {
	fns, err := p.Table.Functions.FindAll(name)
	if err != nil {
		return err
	}
	for _, f := range fns {
		if f.Used {
			continue
		}
		f.Used = true
		f.Mangling = f.Cursor.Mangling()
		params, result, err := p.signature(f.Cursor)
		if err != nil {
			return bindgen.Wrap(err, "function "+f.Name)
		}
		f.Parameters, f.Result = params, result
	}
	return nil
}

func (p *Parser) importVar(name string) error {
	v, err := p.Table.Vars.Find(name)
	if err != nil {
		return err
	}
	if v.Used {
		return nil
	}
	v.Used = true
	v.Mangling = v.Cursor.Mangling()
	t, err := p.value(v.Cursor.Type())
	if err != nil {
		return bindgen.Wrap(err, "var "+v.Name)
	}
	v.Type = t
	return nil
}

// ---------------------------------------------------------------------------
// classes
// ---------------------------------------------------------------------------

func (p *Parser) expandClass(t *task) error {
	e := t.class
	first := !e.Used
	if !first && !t.wider() {
		return nil
	}
	e.Used = true
	frame := "class " + e.Name
	if first {
		if err := p.populateClass(e); err != nil {
			return bindgen.Wrap(err, frame)
		}
	}
	if e.Opaque {
		return nil
	}
	if t.wider() {
		// Inherited members are reachable through the derived binding.
		for _, b := range slices.Concat(e.Bases, e.VirtualBases) {
			if c := b.Type.Class(); c != nil {
				p.push(&task{class: c, dtors: t.dtors, methods: t.methods})
			}
		}
	}
	if err := p.expandMembers(e, t); err != nil {
		return bindgen.Wrap(err, frame)
	}
	return nil
}

func (p *Parser) populateClass(e *model.ClassEntry) error {
	c := e.Cursor
	ct := c.Type()
	if ct == nil || ct.SizeOf() < 0 {
		e.Opaque = true
		return nil
	}
	e.Size, e.Align = ct.SizeOf(), ct.AlignOf()

	bases, vbases, dynamic, err := p.bases(c)
	if err != nil {
		return err
	}
	e.Bases, e.VirtualBases, e.Dynamic = bases, vbases, dynamic
	for _, k := range clang.Children(c) {
		switch k.Kind() {
		case clang.CursorConstructor:
			if k.IsCopyConstructor() || k.IsMoveConstructor() {
				e.NonTrivial = true
			}
		case clang.CursorDestructor:
			e.NonTrivial = true
		}
	}

	fields, err := p.fields(c)
	if err != nil {
		return err
	}
	e.Fields = fields
	return p.resolveSelf(e.Fields, e)
}

// bases resolves the base specifiers of a record body.
func (p *Parser) bases(c clang.Cursor) (bases, vbases []*model.Base, dynamic bool, err error) {
	for _, k := range clang.Children(c) {
		switch k.Kind() {
		case clang.CursorCXXBaseSpecifier:
			bt, err := p.value(k.Type())
			if err != nil {
				return nil, nil, false, bindgen.Wrap(err, "base "+k.Spelling())
			}
			b := &model.Base{Type: bt, Virtual: k.IsVirtual()}
			if b.Virtual {
				vbases = append(vbases, b)
			} else {
				bases = append(bases, b)
			}
		case clang.CursorCXXMethod, clang.CursorDestructor:
			if k.IsVirtual() {
				dynamic = true
			}
		}
	}
	return bases, vbases, dynamic, nil
}

func memberDecl(c clang.Cursor) bindgen.Decl {
	d := bindgen.Decl{
		Name:   c.Spelling(),
		Const:  c.IsConst(),
		Static: c.IsStatic(),
		Copy:   c.IsCopyConstructor(),
		Move:   c.IsMoveConstructor(),
	}
	for i := 0; i < c.NumArguments(); i++ {
		if t := c.Argument(i).Type(); t != nil {
			d.Params = append(d.Params, t.Spelling())
		}
	}
	return d
}

func (p *Parser) expandMembers(e *model.ClassEntry, t *task) error {
	for _, c := range clang.Children(e.Cursor) {
		if c.Access() != clang.AccessPublic {
			continue
		}
		switch c.Kind() {
		case clang.CursorConstructor:
			if t.ctors.Empty() || c.IsInlined() || !t.ctors.Match(memberDecl(c)) {
				continue
			}
			manglings := c.Manglings()
			if slices.ContainsFunc(e.Constructors, func(m *model.Method) bool {
				return slices.Equal(m.Manglings, manglings)
			}) {
				continue
			}
			m, err := p.method(c)
			if err != nil {
				return bindgen.Wrap(err, "constructor "+c.Spelling())
			}
			e.Constructors = append(e.Constructors, m)
		case clang.CursorDestructor:
			if !t.dtors || e.Destructor != nil || c.IsInlined() {
				continue
			}
			m, err := p.method(c)
			if err != nil {
				return bindgen.Wrap(err, "destructor "+c.Spelling())
			}
			e.Destructor = m
		case clang.CursorCXXMethod:
			name := c.Spelling()
			if t.methods.Empty() || c.IsInlined() || !identifier.MatchString(name) || !t.methods.Match(memberDecl(c)) {
				continue
			}
			mangling := c.Mangling()
			if slices.ContainsFunc(e.Methods, func(m *model.Method) bool { return m.Mangling == mangling }) {
				continue
			}
			m, err := p.method(c)
			if err != nil {
				return bindgen.Wrap(err, "method "+name)
			}
			e.Methods = append(e.Methods, m)
		}
	}
	return nil
}

func (p *Parser) method(c clang.Cursor) (*model.Method, error) {
	m := &model.Method{
		Name:      c.Spelling(),
		Cursor:    c,
		Mangling:  c.Mangling(),
		Manglings: c.Manglings(),
		Static:    c.IsStatic(),
		Const:     c.IsConst(),
		Virtual:   c.IsVirtual(),
		Copy:      c.IsCopyConstructor(),
		Move:      c.IsMoveConstructor(),
	}
	params, result, err := p.signature(c)
	if err != nil {
		return nil, err
	}
	m.Parameters = params
	if c.Kind() == clang.CursorCXXMethod {
		m.Result = result
	}
	return m, nil
}

// signature resolves the parameters and result of a function-like cursor.
// Unnamed parameters are called arg<i>.
func (p *Parser) signature(c clang.Cursor) ([]*model.Parameter, *model.Type, error) {
	n := c.NumArguments()
	params := make([]*model.Parameter, 0, max(n, 0))
	for i := 0; i < n; i++ {
		a := c.Argument(i)
		name := a.Spelling()
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		pt, err := p.value(a.Type())
		if err != nil {
			return nil, nil, bindgen.Wrap(err, "parameter "+name)
		}
		params = append(params, &model.Parameter{Name: name, Type: pt})
	}
	var result *model.Type
	if rt := c.ResultType(); rt != nil {
		var err error
		if result, err = p.resolve(rt); err != nil {
			return nil, nil, bindgen.Wrap(err, "result")
		}
	}
	return params, result, nil
}

// ---------------------------------------------------------------------------
// templates and unions
// ---------------------------------------------------------------------------

func (p *Parser) expandTemplate(e *model.ClassTemplateEntry) error {
	if e.Used {
		return nil
	}
	e.Used = true
	frame := "class template " + e.Name
	if err := p.prepareTemplate(e); err != nil {
		return bindgen.Wrap(err, frame)
	}
	for _, spec := range slices.Concat([]*model.Specialization{e.Default}, e.Partials) {
		if spec.Used || !spec.Cursor.IsDefinition() {
			continue
		}
		spec.Used = true
		bases, vbases, dynamic, err := p.bases(spec.Cursor)
		if err != nil {
			return bindgen.Wrap(err, frame)
		}
		spec.Bases, spec.VirtualBases, spec.Dynamic = bases, vbases, dynamic
		fields, err := p.fields(spec.Cursor)
		if err != nil {
			return bindgen.Wrap(err, frame)
		}
		if err := p.resolveSelf(fields, e); err != nil {
			return bindgen.Wrap(err, frame)
		}
		spec.Fields = fields
	}
	p.log.Debug("expanded template", zap.String("template", e.Name), zap.Int("partials", len(e.Partials)))
	return nil
}

func (p *Parser) expandUnion(e *model.UnionEntry) error {
	if e.Used {
		return nil
	}
	e.Used = true
	if t := e.Cursor.Type(); t != nil {
		e.Size, e.Align = t.SizeOf(), t.AlignOf()
	}
	fields, err := p.fields(e.Cursor)
	if err != nil {
		return bindgen.Wrap(err, "union "+e.Name)
	}
	for _, f := range fields {
		e.Alternatives = append(e.Alternatives, f.Type)
	}
	return nil
}
