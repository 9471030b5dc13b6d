package parser

import (
	"fmt"
	"strings"

	"github.com/cmmoran/cxxffigen/internal/clang"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// resolveInstance resolves t, an application of the class template declared
// by tmpl, and picks the specialization that provides its body.
func (p *Parser) resolveInstance(t clang.Type, tmpl clang.Cursor) (*model.Type, error) {
	entry, _ := p.Table.ByCursor(tmpl).(*model.ClassTemplateEntry)
	if entry == nil {
		return nil, fmt.Errorf("%w: class template %s", bindgen.ErrNotFound, tmpl.Spelling())
	}
	if err := p.prepareTemplate(entry); err != nil {
		return nil, bindgen.Wrap(err, "class template "+entry.Name)
	}

	n := t.NumTemplateArgs()
	if n < 0 {
		return nil, fmt.Errorf("%w: %s has no template arguments", bindgen.ErrUnsupportedType, t.Spelling())
	}
	args := make([]*model.Type, n)
	key := strings.Builder{}
	fmt.Fprintf(&key, "inst:%d", entry.ID)
	for i := range args {
		at := t.TemplateArg(i)
		if at == nil {
			return nil, fmt.Errorf("%w: template argument %d of %s", bindgen.ErrUnsupportedType, i, t.Spelling())
		}
		resolved, err := p.resolveType(at)
		if err != nil {
			return nil, bindgen.Wrap(err, fmt.Sprintf("template argument %d", i))
		}
		if resolved == nil {
			return nil, bindgen.Wrap(bindgen.ErrVoidValue, fmt.Sprintf("template argument %d", i))
		}
		args[i] = resolved
		fmt.Fprintf(&key, ":%p", resolved)
	}
	if out, ok := p.interned[key.String()]; ok {
		return out, nil
	}

	spec, bindings, err := selectSpecialization(entry, args)
	if err != nil {
		return nil, bindgen.Wrap(err, t.Spelling())
	}
	out := &model.Type{Kind: model.TypeInstance, Instance: &model.Instance{
		Template:       entry,
		Args:           args,
		Specialization: spec,
		Bindings:       bindings,
		Size:           t.SizeOf(),
		Align:          t.AlignOf(),
	}}
	p.interned[key.String()] = out
	if !entry.Used {
		p.push(&task{tmpl: entry})
	}
	return out, nil
}

// prepareTemplate resolves the argument patterns of every partial
// specialization of e.
func (p *Parser) prepareTemplate(e *model.ClassTemplateEntry) error {
	if p.prepared[e.ID] {
		return nil
	}
	p.prepared[e.ID] = true
	for _, spec := range e.Partials {
		n := spec.Cursor.NumTemplateArguments()
		app := make([]*model.Type, 0, max(n, 0))
		for i := 0; i < n; i++ {
			at := spec.Cursor.TemplateArgumentType(i)
			if at == nil {
				return fmt.Errorf("%w: partial specialization %d argument %d", bindgen.ErrUnsupportedType, spec.Index, i)
			}
			resolved, err := p.resolveType(at)
			if err != nil {
				return bindgen.Wrap(err, fmt.Sprintf("partial specialization %d", spec.Index))
			}
			if resolved == nil {
				return bindgen.Wrap(bindgen.ErrVoidValue, fmt.Sprintf("partial specialization %d", spec.Index))
			}
			app = append(app, resolved)
		}
		spec.Application = app
	}
	return nil
}

// selectSpecialization matches args against the partial specializations of
// e. Exactly one match wins; several are ambiguous; none falls back to the
// primary template.
func selectSpecialization(e *model.ClassTemplateEntry, args []*model.Type) (*model.Specialization, []*model.Type, error) {
	var (
		matched  []*model.Specialization
		bindings []*model.Type
	)
	for _, spec := range e.Partials {
		if len(spec.Application) != len(args) {
			continue
		}
		b := make([]*model.Type, len(spec.Parameters))
		ok := true
		for i := range args {
			if !unify(spec.Application[i], args[i], b) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, spec)
			bindings = b
		}
	}
	switch len(matched) {
	case 1:
		for i, b := range bindings {
			if b == nil {
				return nil, nil, fmt.Errorf("%w: parameter %s of partial specialization %d is not deducible",
					bindgen.ErrUnsupportedType, matched[0].Parameters[i].Name, matched[0].Index)
			}
		}
		return matched[0], bindings, nil
	case 0:
	default:
		return nil, nil, fmt.Errorf("%w: %d partial specializations of %s match", bindgen.ErrAmbiguous, len(matched), e.Name)
	}
	if e.Default.Cursor.IsDefinition() {
		return e.Default, args, nil
	}
	if len(e.Partials) == 1 && len(e.Partials[0].Parameters) == len(args) {
		return e.Partials[0], args, nil
	}
	return nil, nil, fmt.Errorf("%w: no definition of %s for these arguments", bindgen.ErrNotFound, e.Name)
}

// unify matches an argument pattern against a concrete type, recording
// parameter bindings by position.
func unify(pattern, arg *model.Type, b []*model.Type) bool {
	if pattern == nil || arg == nil {
		return pattern == arg
	}
	if pattern.Kind == model.TypeParam {
		if pattern.Index >= len(b) {
			return false
		}
		if b[pattern.Index] == nil {
			b[pattern.Index] = arg
			return true
		}
		return model.Equal(b[pattern.Index], arg)
	}
	if pattern == arg {
		return true
	}
	if pattern.Kind == model.TypePointerTo && arg == model.CString {
		return unify(pattern.Elem, model.I8, b)
	}
	if pattern.Kind != arg.Kind {
		return false
	}
	switch pattern.Kind {
	case model.TypePointerTo:
		return unify(pattern.Elem, arg.Elem, b)
	case model.TypeArray:
		return pattern.Len == arg.Len && unify(pattern.Elem, arg.Elem, b)
	case model.TypeFunction:
		if len(pattern.Params) != len(arg.Params) || !unify(pattern.Result, arg.Result, b) {
			return false
		}
		for i := range pattern.Params {
			if !unify(pattern.Params[i].Type, arg.Params[i].Type, b) {
				return false
			}
		}
		return true
	case model.TypeInstance:
		pi, ai := pattern.Instance, arg.Instance
		if pi.Template != ai.Template || len(pi.Args) != len(ai.Args) {
			return false
		}
		for i := range pi.Args {
			if !unify(pi.Args[i], ai.Args[i], b) {
				return false
			}
		}
		return true
	}
	return model.Equal(pattern, arg)
}
