package render

import (
	"bytes"
	"errors"
	"regexp"
	"sort"
	"testing"

	"github.com/dave/jennifer/jen"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/cxxffigen/internal/clang/astfile"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/internal/parser"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

func renderFixture(t *testing.T) []*File {
	t.Helper()
	tu, err := astfile.Load("testdata/render.yaml")
	require.NoError(t, err)
	p := parser.New(tu.Cursor(),
		bindgen.WithBasePath("/src"),
		bindgen.WithClass("Shape", bindgen.All(), true, bindgen.All()),
		bindgen.WithClass("Circle", bindgen.All(), true, bindgen.All()),
		bindgen.WithFunction("dot"),
		bindgen.WithFunction("origin"),
		bindgen.WithFunction("walk"),
		bindgen.WithFunction("stamp"),
		bindgen.WithFunction("sleep_for"),
		bindgen.WithFunction("now"),
		bindgen.WithVar("unit"),
	)
	require.NoError(t, p.Parse())
	files, err := New(Config{}).Render(p.Units())
	require.NoError(t, err)
	return files
}

func lookup(t *testing.T, files []*File, name string) (*File, *Entry, int) {
	t.Helper()
	for _, f := range files {
		for i, e := range f.Entries {
			for _, n := range e.Names {
				if n == name {
					return f, e, i
				}
			}
		}
	}
	require.Failf(t, "missing declaration", "%s is not rendered", name)
	return nil, nil, 0
}

func source(t *testing.T, f *File) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, f.Jen("example.com/geo/bindings", "bindings", DefaultFFIPath).Render(&buf), f.Name)
	return buf.String()
}

func TestRenderFiles(t *testing.T) {
	t.Parallel()
	files := renderFixture(t)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	want := []string{
		"geo_clock_h.go", "geo_clock_h_classes.go", "geo_clock_h_types.go",
		"geo_shapes_h.go", "geo_shapes_h_classes.go", "geo_shapes_h_types.go",
		"system_classes.go", "system_types.go",
		"symbols.go",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	var exports []string
	for _, f := range files {
		exports = append(exports, f.Exports...)
	}
	assert.ElementsMatch(t, []string{
		"Geo__Shape__ConstructorWithF32", "Geo__Shape__Destructor", "Geo__Shape__Delete",
		"Geo__Shape__area", "Geo__Shape__scale", "Geo__Shape__unit",
		"Geo__Circle__ConstructorWithF64", "Geo__Circle__radius", "Geo__Circle__center",
		"Geo__dot", "Geo__origin", "Geo__walk", "Geo__stamp", "Geo__unit",
		"Sleep_for", "Now",
	}, exports)

	// Every file must survive gofmt.
	for _, f := range files {
		source(t, f)
	}
}

func TestRenderSystemPlacement(t *testing.T) {
	t.Parallel()
	files := renderFixture(t)

	f, _, _ := lookup(t, files, "TimespecT")
	assert.Equal(t, "geo_clock_h_types.go", f.Name, "one user keeps the entry local")
	f, _, _ = lookup(t, files, "TimespecBuffer")
	assert.Equal(t, "geo_clock_h_classes.go", f.Name)
	f, _, _ = lookup(t, files, "TmT")
	assert.Equal(t, "system_types.go", f.Name, "two users share the system file")
	f, _, _ = lookup(t, files, "TmPointer")
	assert.Equal(t, "system_types.go", f.Name)
}

func TestRenderOrder(t *testing.T) {
	t.Parallel()
	files := renderFixture(t)

	_, circle, ci := lookup(t, files, "GeoCircleT")
	_, _, si := lookup(t, files, "GeoShapeT")
	assert.Contains(t, circle.Dependencies, "GeoShapeT")
	assert.Less(t, si, ci, "bases precede derived classes")

	_, node, ni := lookup(t, files, "GeoNodeT")
	_, _, vi := lookup(t, files, "GeoVec3T")
	assert.Contains(t, node.Dependencies, "GeoVec3T")
	assert.NotContains(t, node.Dependencies, "GeoNodeT")
	assert.Less(t, vi, ni)

	_, buf, _ := lookup(t, files, "GeoCircleBuffer")
	assert.Contains(t, buf.Dependencies, "GeoShapeBuffer")

	assert.Contains(t, node.Names, "GeoNodePointer")
	_, vec, _ := lookup(t, files, "GeoVec3T")
	assert.NotContains(t, vec.Names, "GeoVec3Pointer", "by-value use keeps the buffer form")
}

func TestRenderSource(t *testing.T) {
	t.Parallel()
	files := renderFixture(t)
	byName := make(map[string]string, len(files))
	for _, f := range files {
		byName[f.Name] = source(t, f)
	}

	types := byName["geo_shapes_h_types.go"]
	assert.Contains(t, types, "// "+Header)
	assert.Contains(t, types, `"`+DefaultFFIPath+`"`)
	assert.Contains(t, types, "type GeoFlags uint32")
	assert.Contains(t, types, "var GeoFlagsT = ffi.U32")
	assert.Regexp(t, regexp.MustCompile(`GeoFlagsC\s+GeoFlags\s+=\s+0x4`), types)
	assert.Regexp(t, regexp.MustCompile(`GeoFlagsFirst\s+=\s+GeoFlagsA`), types)
	assert.Contains(t, types, "type GeoScalar = float64")
	assert.Contains(t, types, "var GeoVisitT = ffi.Func(ffi.Void, ffi.Pointer, GeoFlagsT)")
	assert.Contains(t, types, "type GeoNodePointer ffi.Handle")

	bindings := byName["geo_shapes_h.go"]
	assert.Contains(t, bindings, "ffi.Ptr(GeoNodeT)")
	assert.Contains(t, bindings, "ffi.Buf(GeoShapeT)")
	assert.Contains(t, bindings, `"_ZN3geo5ShapeD1Ev"`)
	assert.Contains(t, bindings, `"_ZN3geo5ShapeD0Ev"`)
	assert.NotContains(t, bindings, `"_ZN3geo5ShapeD2Ev"`, "the base object destructor is never bound")

	classes := byName["geo_shapes_h_classes.go"]
	assert.Contains(t, classes, "type GeoCircleBuffer struct {\n\tGeoShapeBuffer\n}")
	assert.Contains(t, classes, "func (b GeoShapeBuffer) Area(lib ffi.Library) (float32, error) {")
	assert.Contains(t, classes, "func (b GeoShapeBuffer) Delete(lib ffi.Library) error {")
	assert.Contains(t, classes, "func GeoShapeUnit(lib ffi.Library) (GeoShapeBuffer, error) {")
	assert.Contains(t, classes, "func GeoWalk(lib ffi.Library, n GeoNodePointer, visit ffi.Handle) (float64, error) {")
	assert.Contains(t, classes, "err := ffi.CallInto(lib, Geo__Circle__center, out.Buffer, b.Buffer)")
	assert.Contains(t, classes, "func WrapGeoVec3Buffer(b []byte) (GeoVec3Buffer, error) {")

	clock := byName["geo_clock_h_classes.go"]
	assert.Contains(t, clock, "func SleepFor(lib ffi.Library, ts TimespecPointer) error {")
	assert.Contains(t, clock, "func NowFn(lib ffi.Library, outArg TmPointer) error {")

	symbols := byName["symbols.go"]
	assert.Contains(t, symbols, "var Symbols = []*ffi.Symbol{")
	assert.Contains(t, symbols, "\tGeo__walk,\n")
}

func TestRenderDuplicateExport(t *testing.T) {
	t.Parallel()
	enum := &model.EnumEntry{
		Decl:      model.Decl{Name: "Color", File: "color.h", Used: true},
		Constants: []*model.Constant{{Name: "Red"}},
	}
	fn := &model.FunctionEntry{Decl: model.Decl{Name: "color", File: "color.h", Used: true}, Mangling: "color"}
	_, err := New(Config{}).Render([]*parser.Unit{{File: "color.h", Entries: []model.Entry{enum, fn}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, bindgen.ErrDuplicateExport), err.Error())
	assert.Contains(t, err.Error(), "Color")
}

func TestOrder(ttt *testing.T) {
	ttt.Parallel()
	entry := func(name string, deps ...string) *Entry {
		return &Entry{Names: []string{name}, Dependencies: deps, Source: name}
	}
	tests := []struct {
		name    string
		entries []*Entry
		want    []string
		cycle   string
	}{
		{
			name:    "lexical",
			entries: []*Entry{entry("Gamma"), entry("Alpha"), entry("Beta")},
			want:    []string{"Alpha", "Beta", "Gamma"},
		},
		{
			name:    "dependency first",
			entries: []*Entry{entry("Alpha", "Gamma"), entry("Beta"), entry("Gamma", "Beta")},
			want:    []string{"Beta", "Gamma", "Alpha"},
		},
		{
			name:    "case insensitive",
			entries: []*Entry{entry("Beta"), entry("alpha")},
			want:    []string{"alpha", "Beta"},
		},
		{
			name:    "cycle",
			entries: []*Entry{entry("Alpha", "Beta"), entry("Beta", "Alpha")},
			cycle:   "Alpha -> Beta -> Alpha",
		},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Order(tt.entries)
			if tt.cycle != "" {
				require.ErrorIs(t, err, bindgen.ErrCyclicDependency)
				assert.Contains(t, err.Error(), tt.cycle)
				return
			}
			require.NoError(t, err)
			names := make([]string, len(got))
			for i, e := range got {
				names[i] = e.Names[0]
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSortKeyStripsKeyword(t *testing.T) {
	t.Parallel()
	zeta := &Entry{Names: []string{"Zeta"}, Code: []jen.Code{jen.Var().Id("Zeta").Op("=").Lit(1)}}
	alpha := &Entry{Names: []string{"Alpha"}, Code: []jen.Code{jen.Type().Id("Alpha").Int()}}
	size := &Entry{Names: []string{"BetaSize"}, Code: []jen.Code{jen.Const().Id("BetaSize").Op("=").Lit(4)}}
	got, err := Order([]*Entry{zeta, size, alpha})
	require.NoError(t, err)
	assert.Equal(t, []*Entry{alpha, size, zeta}, got)
	assert.Equal(t, "Alpha int", alpha.sortKey())
}

func TestStemOf(ttt *testing.T) {
	ttt.Parallel()
	tests := map[string]string{
		"geo/shapes.h":    "geo_shapes_h",
		"/x/Y-Z.hpp":      "x_y_z_hpp",
		"System.h":        "unit_system_h",
		"symbols":         "unit_symbols",
		"bench/foo_test":  "bench_foo_test_h",
		"":                "unit_",
		"include/vec3.hh": "include_vec3_hh",
	}
	files := make([]string, 0, len(tests))
	for f := range tests {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, file := range files {
		want := tests[file]
		ttt.Run(file, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, want, stemOf(file))
		})
	}
}
