package render

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cmmoran/cxxffigen/internal/naming"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

var keywords = []string{"type ", "var ", "const ", "func "}

// sortKey is the entry's first declaration with its keyword stripped.
func (e *Entry) sortKey() string {
	if e.key != "" {
		return e.key
	}
	key := strings.Join(e.Names, " ")
	if len(e.Code) > 0 {
		key = fmt.Sprintf("%#v", e.Code[0])
	}
	for _, k := range keywords {
		key = strings.TrimPrefix(key, k)
	}
	e.key = key
	return key
}

func (e *Entry) references(o *Entry) bool {
	for _, n := range o.Names {
		if slices.Contains(e.Dependencies, n) {
			return true
		}
	}
	return false
}

// Order sorts entries lexically, then moves every entry ahead of the
// earliest entry that references it. Cycles are an error.
func Order(entries []*Entry) ([]*Entry, error) {
	out := slices.Clone(entries)
	sort.SliceStable(out, func(i, j int) bool {
		return naming.Compare(out[i].sortKey(), out[j].sortKey()) < 0
	})
	if cycle := findCycle(out); cycle != nil {
		return nil, fmt.Errorf("%w: %s", bindgen.ErrCyclicDependency, strings.Join(cycle, " -> "))
	}
	// Bounded for safety; acyclic input settles well within it.
	for pass := 0; pass <= len(out)*len(out); pass++ {
		moved := false
		for i := 0; i < len(out); i++ {
			e := out[i]
			j := slices.IndexFunc(out[:i], func(o *Entry) bool { return o != e && o.references(e) })
			if j < 0 {
				continue
			}
			out = slices.Delete(out, i, i+1)
			out = slices.Insert(out, j, e)
			moved = true
		}
		if !moved {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: order did not settle", bindgen.ErrCyclicDependency)
}

// findCycle returns the sources of one dependency cycle, or nil.
func findCycle(entries []*Entry) []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make([]int, len(entries))
	var stack []int
	var visit func(i int) []string
	visit = func(i int) []string {
		state[i] = active
		stack = append(stack, i)
		for j, o := range entries {
			if j == i || !entries[i].references(o) {
				continue
			}
			switch state[j] {
			case active:
				start := slices.Index(stack, j)
				var cycle []string
				for _, k := range stack[start:] {
					cycle = append(cycle, entries[k].label())
				}
				return append(cycle, entries[j].label())
			case unvisited:
				if c := visit(j); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		return nil
	}
	for i := range entries {
		if state[i] == unvisited {
			if c := visit(i); c != nil {
				return c
			}
		}
	}
	return nil
}

func (e *Entry) label() string {
	if e.Source != "" {
		return e.Source
	}
	return strings.Join(e.Names, ",")
}
