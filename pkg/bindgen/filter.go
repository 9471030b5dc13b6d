package bindgen

import (
	"fmt"
	"slices"
	"strings"
)

// Decl describes a constructor or method offered to a capability filter.
// Params holds the parameter type spellings.
type Decl struct {
	Name   string
	Params []string
	Const  bool
	Static bool
	Copy   bool
	Move   bool
}

// Signature joins the parameter spellings with commas and no spaces.
func (d Decl) Signature() string {
	parts := make([]string, len(d.Params))
	for i, p := range d.Params {
		parts[i] = compact(p)
	}
	return strings.Join(parts, ",")
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

type FilterMode int

const (
	FilterNone FilterMode = iota
	FilterAll
	FilterNames
	FilterPredicate
)

func (m FilterMode) String() string {
	switch m {
	case FilterAll:
		return "all"
	case FilterNames:
		return "names"
	case FilterPredicate:
		return "predicate"
	}
	return "none"
}

// Filter selects which constructors or methods of a class get bindings.
// The zero value selects nothing.
type Filter struct {
	Mode      FilterMode
	Names     []string
	Predicate func(Decl) bool
}

func All() Filter                     { return Filter{Mode: FilterAll} }
func None() Filter                    { return Filter{Mode: FilterNone} }
func Names(names ...string) Filter    { return Filter{Mode: FilterNames, Names: names} }
func Where(fn func(Decl) bool) Filter { return Filter{Mode: FilterPredicate, Predicate: fn} }

// Signatures selects constructors by parameter signature, e.g. "float,float".
// An empty string selects the default constructor.
func Signatures(sigs ...string) Filter {
	want := make([]string, len(sigs))
	for i, s := range sigs {
		want[i] = compact(s)
	}
	return Where(func(d Decl) bool {
		return slices.Contains(want, d.Signature())
	})
}

func (f Filter) Match(d Decl) bool {
	switch f.Mode {
	case FilterAll:
		return true
	case FilterNames:
		return slices.Contains(f.Names, d.Name)
	case FilterPredicate:
		return f.Predicate != nil && f.Predicate(d)
	}
	return false
}

// Empty reports whether the filter can never select anything.
func (f Filter) Empty() bool {
	switch f.Mode {
	case FilterNone:
		return true
	case FilterNames:
		return len(f.Names) == 0
	case FilterPredicate:
		return f.Predicate == nil
	}
	return false
}

func (f Filter) String() string {
	if f.Mode == FilterNames {
		return "[" + strings.Join(f.Names, ", ") + "]"
	}
	return f.Mode.String()
}

// ParseFilter decodes a configuration value: "all", "none", nil, or a list of
// strings. Lists are name lists unless signatures is set, in which case each
// entry is a constructor parameter signature.
func ParseFilter(v any, signatures bool) (Filter, error) {
	switch x := v.(type) {
	case nil:
		return None(), nil
	case Filter:
		return x, nil
	case bool:
		if x {
			return All(), nil
		}
		return None(), nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "all", "*":
			return All(), nil
		case "none", "":
			return None(), nil
		}
		return Filter{}, fmt.Errorf("%w: filter %q must be all, none or a list", ErrInvalidConfig, x)
	case []string:
		if signatures {
			return Signatures(x...), nil
		}
		return Names(x...), nil
	case []any:
		items := make([]string, 0, len(x))
		for _, it := range x {
			s, ok := it.(string)
			if !ok {
				return Filter{}, fmt.Errorf("%w: filter entry %v is not a string", ErrInvalidConfig, it)
			}
			items = append(items, s)
		}
		return ParseFilter(items, signatures)
	}
	return Filter{}, fmt.Errorf("%w: unsupported filter value %T", ErrInvalidConfig, v)
}
