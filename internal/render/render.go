// Package render turns the used entries of a parse into Go declarations
// against pkg/ffi, grouped into output files.
package render

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"
	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/layout"
	"github.com/cmmoran/cxxffigen/internal/logging"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/internal/naming"
	"github.com/cmmoran/cxxffigen/internal/overload"
	"github.com/cmmoran/cxxffigen/internal/parser"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

const DefaultFFIPath = "github.com/cmmoran/cxxffigen/pkg/ffi"

// Section selects the file of a unit an entry is written to.
type Section int

const (
	// Bindings hold the *ffi.Symbol of every export.
	Bindings Section = iota
	// Classes hold buffer types and call wrappers.
	Classes
	// Types hold the wire descriptors.
	Types
)

var sectionSuffix = [...]string{Bindings: "", Classes: "_classes", Types: "_types"}

// Entry is one emitted declaration group.
type Entry struct {
	// Names are the identifiers the entry declares.
	Names []string
	// Dependencies are generated identifiers that must be declared first.
	Dependencies []string
	Code         []jen.Code
	Exports      []string
	Source       string
	Section      Section

	key string
}

// File is one generated Go source file.
type File struct {
	Name    string
	Entries []*Entry
	Exports []string
}

// Header marks every generated file.
const Header = "Code generated by cxxffigen. DO NOT EDIT."

// Jen assembles f as a file of the package at pkgPath.
func (f *File) Jen(pkgPath, pkgName, ffiPath string) *jen.File {
	jf := jen.NewFilePathName(pkgPath, pkgName)
	jf.HeaderComment(Header)
	jf.ImportName(ffiPath, "ffi")
	for _, e := range f.Entries {
		for _, c := range e.Code {
			jf.Add(c)
			jf.Line()
		}
	}
	return jf
}

type Config struct {
	PointerSize int64
	FFIPath     string
}

type Renderer struct {
	cfg      Config
	log      *zap.Logger
	Warnings []string
}

func New(cfg Config) *Renderer {
	if cfg.PointerSize == 0 {
		cfg.PointerSize = 8
	}
	if cfg.FFIPath == "" {
		cfg.FFIPath = DefaultFFIPath
	}
	return &Renderer{cfg: cfg, log: logging.Named("render")}
}

func (r *Renderer) warn(msg string) {
	r.log.Warn(msg)
	r.Warnings = append(r.Warnings, msg)
}

func (s *scope) entry(e model.Entry, names []string, code ...jen.Code) *Entry {
	var deps []string
	for d := range s.deps {
		if !slices.Contains(names, d) {
			deps = append(deps, d)
		}
	}
	sort.Strings(deps)
	return &Entry{Names: names, Dependencies: deps, Code: code, Source: e.Common().Name}
}

// output collects the entries of one file stem before ordering.
type output struct {
	stem    string
	system  bool
	entries []*Entry
}

// group is every entry rendered from one model entry.
type group struct {
	unit    int
	system  bool
	entries []*Entry
}

// Render decides the wire representation of every class, names overloads
// and renders each unit. System entries move to the unit that references
// them, or to the shared system files when several do.
func (r *Renderer) Render(units []*parser.Unit) ([]*File, error) {
	var all []model.Entry
	for _, u := range units {
		all = append(all, u.Entries...)
	}
	layout.CollectUsage(all)
	layout.Finalize(all)
	if err := r.name(all); err != nil {
		return nil, err
	}

	var (
		outputs []*output
		groups  []*group
		stems   = make(map[string]int)
	)
	for _, u := range units {
		stem := stemOf(u.File)
		if n := stems[stem]; n > 0 {
			stem = fmt.Sprintf("%s_%d", stem, n)
		}
		stems[stemOf(u.File)]++
		outputs = append(outputs, &output{stem: stem, system: u.System})
		for _, e := range u.Entries {
			entries, err := r.render(e)
			if err != nil {
				return nil, bindgen.Wrap(err, e.Kind().String()+" "+e.Common().Name)
			}
			if len(entries) > 0 {
				groups = append(groups, &group{unit: len(outputs) - 1, system: u.System, entries: entries})
			}
		}
	}
	system := &output{stem: "system", system: true}
	for _, g := range groups {
		if !g.system {
			outputs[g.unit].entries = append(outputs[g.unit].entries, g.entries...)
		}
	}
	placement := systemUsers(groups)
	for _, g := range groups {
		if !g.system {
			continue
		}
		users := placement[g]
		target := system
		if len(users) == 1 {
			target = outputs[users[0]]
		}
		r.log.Debug("placed system entry", zap.String("entry", g.entries[0].Source), zap.String("unit", target.stem), zap.Int("users", len(users)))
		target.entries = append(target.entries, g.entries...)
	}
	outputs = append(outputs, system)

	if err := unique(outputs); err != nil {
		return nil, err
	}
	var files []*File
	var exports []string
	for _, o := range outputs {
		if o.system && o != system {
			continue
		}
		for sec := Bindings; sec <= Types; sec++ {
			var entries []*Entry
			for _, e := range o.entries {
				if e.Section == sec {
					entries = append(entries, e)
				}
			}
			if len(entries) == 0 {
				continue
			}
			ordered, err := Order(entries)
			if err != nil {
				return nil, bindgen.Wrap(err, "file "+o.stem+sectionSuffix[sec])
			}
			f := &File{Name: o.stem + sectionSuffix[sec] + ".go", Entries: ordered}
			for _, e := range ordered {
				f.Exports = append(f.Exports, e.Exports...)
			}
			exports = append(exports, f.Exports...)
			files = append(files, f)
		}
	}
	if len(exports) > 0 {
		files = append(files, r.symbols(exports))
	}
	r.log.Debug("rendered", zap.Int("files", len(files)), zap.Int("exports", len(exports)))
	return files, nil
}

// name assigns export names to every function and class member.
func (r *Renderer) name(all []model.Entry) error {
	var fns []*model.FunctionEntry
	for _, e := range all {
		switch v := e.(type) {
		case *model.FunctionEntry:
			fns = append(fns, v)
		case *model.VarEntry:
			v.Export = naming.Export(v.Name)
		case *model.ClassEntry:
			if err := overload.Constructors(v); err != nil {
				return bindgen.Wrap(err, "class "+v.Name)
			}
			if err := overload.Methods(v.Methods); err != nil {
				return bindgen.Wrap(err, "class "+v.Name)
			}
		}
	}
	return overload.Functions(fns)
}

func (r *Renderer) render(e model.Entry) ([]*Entry, error) {
	var out []*Entry
	add := func(sec Section, entries ...*Entry) {
		for _, x := range entries {
			if x != nil {
				x.Section = sec
				out = append(out, x)
			}
		}
	}
	switch v := e.(type) {
	case *model.ClassEntry:
		add(Types, r.classType(v))
		if !v.Opaque {
			add(Classes, r.classSurface(v))
			add(Bindings, r.classBindings(v))
		}
	case *model.ClassTemplateEntry:
		add(Types, r.templateTypes(v)...)
	case *model.EnumEntry:
		add(Types, r.enumType(v))
	case *model.TypedefEntry:
		if !v.Reexport {
			add(Types, r.typedefType(v))
		}
	case *model.UnionEntry:
		add(Types, r.unionType(v))
	case *model.FunctionEntry:
		if v.Export == "" {
			return nil, nil
		}
		add(Bindings, r.functionBinding(v))
		add(Classes, r.functionSurface(v))
	case *model.VarEntry:
		add(Bindings, r.varBinding(v))
	default:
		return nil, fmt.Errorf("%w: %s", bindgen.ErrUnsupportedType, e.Kind())
	}
	return out, nil
}

// systemUsers maps every system group to the project units that reach it,
// directly or through other system groups.
func systemUsers(groups []*group) map[*group][]int {
	owner := make(map[string]*group)
	for _, g := range groups {
		for _, e := range g.entries {
			for _, n := range e.Names {
				owner[n] = g
			}
		}
	}
	users := make(map[*group]map[int]bool)
	for _, g := range groups {
		if g.system {
			users[g] = make(map[int]bool)
		}
	}
	for _, g := range groups {
		if g.system {
			continue
		}
		for _, e := range g.entries {
			for _, d := range refs(e) {
				if o := owner[d]; o != nil && o.system {
					users[o][g.unit] = true
				}
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for _, g := range groups {
			if !g.system {
				continue
			}
			for _, e := range g.entries {
				for _, d := range refs(e) {
					o := owner[d]
					if o == nil || !o.system || o == g {
						continue
					}
					for u := range users[g] {
						if !users[o][u] {
							users[o][u] = true
							changed = true
						}
					}
				}
			}
		}
	}
	out := make(map[*group][]int, len(users))
	for _, g := range groups {
		if !g.system {
			continue
		}
		var list []int
		for u := range users[g] {
			list = append(list, u)
		}
		sort.Ints(list)
		out[g] = list
	}
	return out
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// refs lists every identifier e mentions, including call-time references
// that do not constrain declaration order.
func refs(e *Entry) []string {
	seen := make(map[string]bool)
	out := slices.Clone(e.Dependencies)
	for _, c := range e.Code {
		for _, id := range identRe.FindAllString(fmt.Sprintf("%#v", c), -1) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// unique rejects two entries declaring the same identifier.
func unique(outputs []*output) error {
	seen := map[string]string{"Symbols": "the symbol list"}
	for _, o := range outputs {
		for _, e := range o.entries {
			for _, n := range e.Names {
				if prev, ok := seen[n]; ok {
					return fmt.Errorf("%w: %s is declared by %s and %s", bindgen.ErrDuplicateExport, n, prev, e.Source)
				}
				seen[n] = e.Source
			}
		}
	}
	return nil
}

// symbols lists every export in one slice.
func (r *Renderer) symbols(exports []string) *File {
	sorted := slices.Clone(exports)
	sort.Strings(sorted)
	items := make([]jen.Code, 0, len(sorted)+1)
	for _, x := range sorted {
		items = append(items, jen.Line().Id(x))
	}
	items = append(items, jen.Line())
	code := jen.Var().Id("Symbols").Op("=").Index().Op("*").Qual(r.cfg.FFIPath, "Symbol").Values(items...)
	return &File{
		Name:    "symbols.go",
		Entries: []*Entry{{Names: []string{"Symbols"}, Code: []jen.Code{code}, Source: "symbols"}},
	}
}

var nonIdent = regexp.MustCompile(`[^a-z0-9]+`)

// stemOf derives a file stem from a header path: "geo/shapes.h" -> "geo_shapes_h".
func stemOf(file string) string {
	stem := strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(file), "_"), "_")
	if stem == "" || stem == "symbols" || strings.HasPrefix(stem, "system") {
		stem = "unit_" + stem
	}
	if strings.HasSuffix(stem, "_test") {
		stem += "_h"
	}
	return stem
}
