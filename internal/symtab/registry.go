// Package symtab ingests the top-level declarations of a translation unit
// into namespaced registries without resolving any types.
package symtab

import (
	"fmt"
	"sort"

	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// Registry indexes entries of one kind by qualified and by short name.
type Registry[E model.Entry] struct {
	kind    model.EntryKind
	byName  map[string][]E
	byShort map[string][]E
	order   []E
}

func NewRegistry[E model.Entry](kind model.EntryKind) *Registry[E] {
	return &Registry[E]{
		kind:    kind,
		byName:  make(map[string][]E),
		byShort: make(map[string][]E),
	}
}

func (r *Registry[E]) Add(e E) {
	d := e.Common()
	r.byName[d.Name] = append(r.byName[d.Name], e)
	short := d.ShortName()
	r.byShort[short] = append(r.byShort[short], e)
	r.order = append(r.order, e)
}

// Has reports an exact qualified-name match.
func (r *Registry[E]) Has(name string) bool {
	return len(r.byName[name]) > 0
}

// Find resolves a qualified name, falling back to a unique short name.
func (r *Registry[E]) Find(name string) (E, error) {
	all, err := r.FindAll(name)
	if err != nil {
		var zero E
		return zero, err
	}
	return all[0], nil
}

// FindAll returns every entry sharing the matched qualified name, which is
// how free-function overloads are grouped.
func (r *Registry[E]) FindAll(name string) ([]E, error) {
	if es := r.byName[name]; len(es) > 0 {
		return es, nil
	}
	es := r.byShort[name]
	if len(es) == 0 {
		return nil, fmt.Errorf("%w: %s %s", bindgen.ErrNotFound, r.kind, name)
	}
	qualified := make(map[string]bool)
	for _, e := range es {
		qualified[e.Common().Name] = true
	}
	if len(qualified) > 1 {
		names := make([]string, 0, len(qualified))
		for n := range qualified {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: %s %s matches %v, use the qualified name", bindgen.ErrAmbiguous, r.kind, name, names)
	}
	return es, nil
}

// All returns entries in registration order.
func (r *Registry[E]) All() []E {
	return r.order
}

func (r *Registry[E]) Len() int {
	return len(r.order)
}
