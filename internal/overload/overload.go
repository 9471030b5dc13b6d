// Package overload gives every member of an overload set a distinct binding
// name derived from how its parameters differ from its siblings.
package overload

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/internal/naming"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// Reserved names clash with methods of ffi.Buffer.
var Reserved = []string{"at", "fill", "find", "findLast", "length", "toString"}

// Signature is the part of a method or function that naming looks at.
type Signature struct {
	Name       string
	Parameters []*model.Parameter
	Result     *model.Type
	Static     bool
	Const      bool
}

func FromMethod(m *model.Method) Signature {
	return Signature{Name: m.Name, Parameters: m.Parameters, Result: m.Result, Static: m.Static, Const: m.Const}
}

// Names resolves one overload set of class methods. The result is aligned
// with set; an empty name means the member is dropped.
func Names(set []Signature) ([]string, error) {
	return resolve(set, true)
}

// resolve names the members of set. Const twins are dropped first so they
// no longer count as siblings. Only methods share a namespace with the
// buffer methods, so free functions skip the reserved list.
func resolve(set []Signature, reserved bool) ([]string, error) {
	out := make([]string, len(set))
	kept := make([]Signature, 0, len(set))
	index := make([]int, 0, len(set))
	for i, sig := range set {
		if constTwin(sig, slices.Concat(set[:i], set[i+1:])) {
			continue
		}
		kept = append(kept, sig)
		index = append(index, i)
	}
	seen := make(map[string]int, len(kept))
	for k, sig := range kept {
		name := derive(sig, slices.Concat(kept[:k], kept[k+1:]))
		if reserved {
			var err error
			if name, err = rename(name, sig); err != nil {
				return nil, err
			}
		}
		i := index[k]
		if j, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %s is claimed by overloads %d and %d of %s", bindgen.ErrDuplicateExport, name, j, i, sig.Name)
		}
		seen[name] = i
		out[i] = name
	}
	return out, nil
}

// Methods sets Export on every method, grouping overloads by source name.
func Methods(methods []*model.Method) error {
	groups := make(map[string][]*model.Method)
	var order []string
	for _, m := range methods {
		if _, ok := groups[m.Name]; !ok {
			order = append(order, m.Name)
		}
		groups[m.Name] = append(groups[m.Name], m)
	}
	for _, n := range order {
		group := groups[n]
		set := make([]Signature, len(group))
		for i, m := range group {
			set[i] = FromMethod(m)
		}
		names, err := Names(set)
		if err != nil {
			return err
		}
		for i, m := range group {
			m.Export = names[i]
		}
	}
	return nil
}

// Functions sets Export on free functions sharing one qualified name.
func Functions(fns []*model.FunctionEntry) error {
	groups := make(map[string][]*model.FunctionEntry)
	var order []string
	for _, f := range fns {
		if _, ok := groups[f.Name]; !ok {
			order = append(order, f.Name)
		}
		groups[f.Name] = append(groups[f.Name], f)
	}
	for _, n := range order {
		group := groups[n]
		set := make([]Signature, len(group))
		for i, f := range group {
			set[i] = Signature{Name: f.ShortName(), Parameters: f.Parameters, Result: f.Result}
		}
		names, err := resolve(set, false)
		if err != nil {
			return err
		}
		prefix := strings.TrimSuffix(group[0].Name, group[0].ShortName())
		for i, f := range group {
			if names[i] != "" {
				f.Export = naming.Export(prefix + names[i])
			}
		}
	}
	return nil
}

// constTwin reports whether m is a const method shadowed by a non-const
// sibling with the same signature.
func constTwin(m Signature, others []Signature) bool {
	return m.Const && slices.ContainsFunc(others, func(o Signature) bool {
		return !o.Static && !o.Const && sameSignature(m, o)
	})
}

func derive(m Signature, others []Signature) string {
	if len(others) == 0 {
		return m.Name
	}
	if m.Static && len(m.Parameters) > 0 && slices.ContainsFunc(others, func(o Signature) bool { return !o.Static }) {
		name := "static" + naming.Pascal(m.Name) + Fragment(m.Parameters[0])
		if len(m.Parameters) > 1 {
			name += "With" + fragments(m.Parameters[1:])
		}
		return name
	}
	if len(others) == 1 {
		return pair(m, others[0])
	}
	return nway(m, others)
}

// pair handles a set of two.
func pair(m, o Signature) string {
	switch {
	case len(m.Parameters) > len(o.Parameters):
		return m.Name + "With" + fragments(m.Parameters[len(o.Parameters):])
	case len(m.Parameters) > 0 && len(m.Parameters) == len(o.Parameters):
		var parts []string
		for i, p := range m.Parameters {
			q := o.Parameters[i]
			if model.Equal(p.Type, q.Type) {
				continue
			}
			if p.Name == q.Name {
				parts = append(parts, Fragment(p))
			} else {
				parts = append(parts, naming.Pascal(p.Name))
			}
		}
		return m.Name + "With" + strings.Join(parts, "And")
	}
	return m.Name
}

func nway(m Signature, others []Signature) string {
	arities := map[int]bool{len(m.Parameters): true}
	for _, o := range others {
		arities[len(o.Parameters)] = true
	}
	if len(arities) == len(others)+1 {
		shorter := false
		for _, o := range others {
			if len(o.Parameters) < len(m.Parameters) {
				shorter = true
				break
			}
		}
		if !shorter {
			return m.Name
		}
		var parts []string
		for i, p := range m.Parameters {
			if slices.ContainsFunc(others, func(o Signature) bool {
				return i < len(o.Parameters) && model.Equal(p.Type, o.Parameters[i].Type)
			}) {
				continue
			}
			if slices.ContainsFunc(others, func(o Signature) bool {
				return i < len(o.Parameters) && o.Parameters[i].Name == p.Name
			}) {
				parts = append(parts, Fragment(p))
			} else {
				parts = append(parts, naming.Pascal(p.Name))
			}
		}
		return m.Name + "With" + strings.Join(parts, "And")
	}

	var same []Signature
	for _, o := range others {
		if len(o.Parameters) == len(m.Parameters) {
			same = append(same, o)
		}
	}
	// Redundant positions still matter when other arities are in play.
	mixed := len(same) != len(others)
	var parts []string
	for i, p := range m.Parameters {
		variance := 0
		for _, o := range same {
			if !model.Equal(p.Type, o.Parameters[i].Type) {
				variance++
			}
		}
		if variance <= 1 {
			if !mixed {
				continue
			}
			byName, byType := naming.Pascal(p.Name), Fragment(p)
			if len(byType) < len(byName) {
				parts = append(parts, byType)
			} else {
				parts = append(parts, byName)
			}
			continue
		}
		if !slices.ContainsFunc(same, func(o Signature) bool { return o.Parameters[i].Name == p.Name }) {
			parts = append(parts, naming.Pascal(p.Name))
		} else {
			parts = append(parts, Fragment(p))
		}
	}
	return m.Name + "With" + strings.Join(parts, "And")
}

// rename moves plain names off the reserved list. A derived name landing on
// it cannot be fixed up.
func rename(name string, m Signature) (string, error) {
	if !slices.Contains(Reserved, name) {
		return name, nil
	}
	if name != m.Name {
		return "", fmt.Errorf("%w: overload of %s resolved to reserved name %s", bindgen.ErrDuplicateExport, m.Name, name)
	}
	if len(m.Parameters) > 0 {
		return name + naming.Pascal(m.Parameters[0].Name), nil
	}
	return name + "Fn", nil
}

func sameSignature(a, b Signature) bool {
	if !model.Equal(a.Result, b.Result) || len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		if !model.Equal(a.Parameters[i].Type, b.Parameters[i].Type) {
			return false
		}
	}
	return true
}

func fragments(params []*model.Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = Fragment(p)
	}
	return strings.Join(parts, "And")
}

// Fragment names a parameter by its type where the type has a name, and by
// the parameter's own name otherwise.
func Fragment(p *model.Parameter) string {
	return fragment(p, p.Type)
}

func fragment(p *model.Parameter, t *model.Type) string {
	if t == nil {
		return "Void"
	}
	switch {
	case t.Kind.Scalar(), t.Kind.Opaque():
		return naming.Pascal(t.Kind.Tag())
	}
	switch t.Kind {
	case model.TypePointerTo:
		if t.Elem.Kind == model.TypeSelf {
			return naming.Pascal(p.Name)
		}
		return fragment(p, t.Elem)
	case model.TypeRef:
		return naming.Pascal(t.Ref.Common().ShortName())
	case model.TypeArray:
		return naming.Pascal(naming.Singular(p.Name))
	}
	return naming.Pascal(p.Name)
}

// Constructors names the constructors of c: Constructor, CopyConstructor or
// MoveConstructor, followed by With and the parameter fragments. Copy and
// move constructors of a base type name the base.
func Constructors(c *model.ClassEntry) error {
	seen := make(map[string]bool, len(c.Constructors))
	for _, m := range c.Constructors {
		name := "Constructor"
		var with []string
		params := m.Parameters
		switch {
		case m.Copy || m.Move:
			if m.Copy {
				name = "CopyConstructor"
			} else {
				name = "MoveConstructor"
			}
			if len(params) == 0 || params[0].Type.Kind != model.TypePointerTo {
				return fmt.Errorf("%w: %s of %s does not take a reference", bindgen.ErrUnsupportedType, name, c.Name)
			}
			if src := params[0].Type.Elem.Class(); src != nil && src != c {
				with = append(with, naming.Pascal(src.ShortName()))
			}
			if len(params) > 1 {
				with = append(with, fragments(params[1:]))
			}
		case len(params) > 0:
			with = append(with, fragments(params))
		}
		if len(with) > 0 {
			name += "With" + strings.Join(with, "And")
		}
		if seen[name] {
			return fmt.Errorf("%w: %s of %s", bindgen.ErrDuplicateExport, name, c.Name)
		}
		seen[name] = true
		m.Export = name
	}
	return nil
}
