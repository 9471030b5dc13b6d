package parser

import (
	"fmt"
	"slices"

	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// resolveSelf rewrites references from fields back to their own record,
// source being a class or a class template. A reference behind a pointer
// becomes Self; a by-value reference is an error.
//
// Resolved types are shared, so rewrites copy instead of mutating.
func (p *Parser) resolveSelf(fields []*model.Field, source model.Entry) error {
	for _, f := range fields {
		t, err := p.selfWalk(f.Type, source, false)
		if err != nil {
			return bindgen.Wrap(err, "field "+f.Name)
		}
		f.Type = t
	}
	return nil
}

func isSource(t *model.Type, source model.Entry) bool {
	switch t.Kind {
	case model.TypeRef:
		return t.Ref == source
	case model.TypeInstance:
		return model.Entry(t.Instance.Template) == source
	}
	return false
}

func (p *Parser) selfWalk(t *model.Type, source model.Entry, indirect bool) (*model.Type, error) {
	if t == nil {
		return nil, nil
	}
	if isSource(t, source) {
		if indirect {
			return model.Self, nil
		}
		return nil, fmt.Errorf("%w: %s", bindgen.ErrSelfContainment, source.Common().Name)
	}
	switch t.Kind {
	case model.TypePointerTo:
		elem, err := p.selfWalk(t.Elem, source, true)
		if err != nil || elem == t.Elem {
			return t, err
		}
		return p.pointerTo(elem), nil

	case model.TypeArray:
		elem, err := p.selfWalk(t.Elem, source, indirect)
		if err != nil || elem == t.Elem {
			return t, err
		}
		cp := *t
		cp.Elem = elem
		return &cp, nil

	case model.TypeFunction:
		changed := false
		params := make([]*model.Parameter, len(t.Params))
		for i, param := range t.Params {
			pt, err := p.selfWalk(param.Type, source, true)
			if err != nil {
				return nil, err
			}
			params[i] = param
			if pt != param.Type {
				params[i] = &model.Parameter{Name: param.Name, Type: pt}
				changed = true
			}
		}
		result, err := p.selfWalk(t.Result, source, true)
		if err != nil {
			return nil, err
		}
		if !changed && result == t.Result {
			return t, nil
		}
		cp := *t
		cp.Params, cp.Result = params, result
		return &cp, nil

	case model.TypeInlineStruct, model.TypeInlineUnion:
		fields := slices.Clone(t.Fields)
		changed := false
		for i, f := range t.Fields {
			ft, err := p.selfWalk(f.Type, source, indirect)
			if err != nil {
				return nil, bindgen.Wrap(err, "field "+f.Name)
			}
			if ft != f.Type {
				cf := *f
				cf.Type = ft
				fields[i] = &cf
				changed = true
			}
		}
		if !changed {
			return t, nil
		}
		cp := *t
		cp.Fields = fields
		return &cp, nil

	case model.TypeRef:
		td := t.Typedef()
		if td == nil {
			// Other named records are expanded on their own.
			return t, nil
		}
		target, err := p.selfWalk(td.Target, source, indirect)
		if err != nil || target == td.Target {
			return t, err
		}
		return target, nil
	}
	return t, nil
}
