package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/cxxffigen/internal/clang/astfile"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

func newParser(t *testing.T, opts ...bindgen.Option) *Parser {
	t.Helper()
	tu, err := astfile.Load("testdata/geo.yaml")
	require.NoError(t, err)
	return New(tu.Cursor(), opts...)
}

func class(t *testing.T, p *Parser, name string) *model.ClassEntry {
	t.Helper()
	c, err := p.Table.Classes.Find(name)
	require.NoError(t, err)
	return c
}

func TestSelfReference(t *testing.T) {
	t.Parallel()
	p := newParser(t, bindgen.WithClass("Node", bindgen.None(), false, bindgen.None()))
	require.NoError(t, p.Parse())

	node := class(t, p, "geo::Node")
	assert.True(t, node.Used)
	assert.EqualValues(t, 16, node.Size)
	assert.EqualValues(t, 4, p.PointerSize)
	require.Len(t, node.Fields, 2)

	next := node.Fields[0].Type
	require.Equal(t, model.TypePointerTo, next.Kind)
	assert.Same(t, model.Self, next.Elem)
	assert.Same(t, p.pointerTo(model.Self), next)

	pos := node.Fields[1]
	assert.EqualValues(t, 4, pos.Offset)
	assert.True(t, class(t, p, "geo::Vec3").Used)
	assert.Same(t, p.ref(class(t, p, "geo::Vec3")), pos.Type)
}

func TestImportMembers(t *testing.T) {
	t.Parallel()
	p := newParser(t)
	require.NoError(t, p.Import(bindgen.ImportSpec{
		Kind:         bindgen.ImportClass,
		Name:         "Shape",
		Constructors: bindgen.All(),
		Destructors:  true,
		Methods:      bindgen.Names("area"),
	}))
	shape := class(t, p, "geo::Shape")

	require.Len(t, shape.Constructors, 2, "inline constructors have no symbol")
	assert.Len(t, shape.Constructors[1].Parameters, 2)
	require.NotNil(t, shape.Destructor)
	require.Len(t, shape.Methods, 2)
	assert.True(t, shape.Methods[0].Const)
	assert.Same(t, model.F32, shape.Methods[1].Parameters[0].Type)

	// Widening adds what is new and keeps what is there.
	require.NoError(t, p.Import(bindgen.ImportSpec{
		Kind:         bindgen.ImportClass,
		Name:         "geo::Shape",
		Constructors: bindgen.All(),
		Methods:      bindgen.All(),
	}))
	assert.Len(t, shape.Constructors, 2)
	got := make([]string, len(shape.Methods))
	for i, m := range shape.Methods {
		got[i] = m.Name
	}
	if diff := cmp.Diff([]string{"area", "area", "scale"}, got); diff != "" {
		t.Errorf("methods (-want +got):\n%s", diff)
	}
	assert.Equal(t, "arg0", shape.Methods[2].Parameters[0].Name)
}

func TestImportPropagatesToBases(t *testing.T) {
	t.Parallel()
	p := newParser(t, bindgen.WithClass("Square", bindgen.None(), true, bindgen.All()))
	require.NoError(t, p.Parse())

	square := class(t, p, "geo::Square")
	require.Len(t, square.Bases, 1)
	assert.Len(t, square.Methods, 1)
	shape := square.Bases[0].Type.Class()
	require.NotNil(t, shape)
	assert.Len(t, shape.Methods, 3)
	assert.NotNil(t, shape.Destructor)
	assert.Empty(t, shape.Constructors)
}

func TestRepeatedDemandIsNoop(t *testing.T) {
	t.Parallel()
	p := newParser(t, bindgen.WithClass("Vec3", bindgen.None(), false, bindgen.None()))
	require.NoError(t, p.Parse())
	vec := class(t, p, "geo::Vec3")
	fields := vec.Fields
	before := p.Arena.Len()

	require.NoError(t, p.Import(bindgen.ImportSpec{Kind: bindgen.ImportClass, Name: "Vec3"}))
	require.NoError(t, p.Import(bindgen.ImportSpec{Kind: bindgen.ImportFunction, Name: "length"}))
	assert.Equal(t, fields, vec.Fields)
	assert.Equal(t, before, p.Arena.Len())

	fns, err := p.Table.Functions.FindAll("length")
	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Same(t, p.pointerTo(p.ref(vec)), fns[0].Parameters[0].Type)
	assert.True(t, class(t, p, "geo::Node").Used)
}

func TestResolveOpaque(t *testing.T) {
	t.Parallel()
	p := newParser(t, bindgen.WithClass("Holder", bindgen.None(), false, bindgen.None()))
	require.NoError(t, p.Parse())
	holder := class(t, p, "geo::Holder")
	require.Len(t, holder.Fields, 4)

	handle := holder.Fields[0].Type
	require.Equal(t, model.TypePointerTo, handle.Kind)
	placeholder := handle.Elem.Class()
	require.NotNil(t, placeholder)
	assert.True(t, placeholder.Opaque)
	assert.True(t, placeholder.Used)
	assert.Equal(t, "geo::Handle", placeholder.Name)

	assert.Same(t, model.CString, holder.Fields[1].Type)
	assert.Same(t, model.CStringArray, holder.Fields[2].Type)
	assert.Same(t, model.Pointer, holder.Fields[3].Type)
}

func TestEnumsAndTypedefs(t *testing.T) {
	t.Parallel()
	p := newParser(t, bindgen.WithFunction("paint"), bindgen.WithVar("unit"))
	require.NoError(t, p.Parse())

	color, err := p.Table.Enums.Find("Color")
	require.NoError(t, err)
	assert.True(t, color.Used)
	assert.Same(t, model.U8, color.Type)
	want := []*model.Constant{
		{Name: "Red", Value: 1, Unsigned: true},
		{Name: "Green", Value: 2, Unsigned: true},
		{Name: "Crimson", Value: 1, Unsigned: true, Ref: "Red"},
	}
	if diff := cmp.Diff(want, color.Constants); diff != "" {
		t.Errorf("constants (-want +got):\n%s", diff)
	}

	unit, err := p.Table.Vars.Find("unit")
	require.NoError(t, err)
	td := unit.Type.Typedef()
	require.NotNil(t, td)
	assert.True(t, td.Used)
	assert.Same(t, model.F64, td.Target)

	paint, err := p.Table.Functions.Find("paint")
	require.NoError(t, err)
	assert.Nil(t, paint.Result)
	assert.True(t, class(t, p, "geo::Shape").Used)
}

func TestTemplateInstances(t *testing.T) {
	t.Parallel()
	p := newParser(t, bindgen.WithVar("ints"), bindgen.WithVar("floats"), bindgen.WithVar("names"))
	require.NoError(t, p.Parse())

	box, err := p.Table.Templates.Find("Box")
	require.NoError(t, err)
	assert.True(t, box.Used)
	require.Len(t, box.Partials, 1)

	instance := func(name string) *model.Instance {
		v, err := p.Table.Vars.Find(name)
		require.NoError(t, err)
		require.Equal(t, model.TypeInstance, v.Type.Kind)
		return v.Type.Instance
	}

	ints := instance("ints")
	assert.Same(t, box.Default, ints.Specialization)
	assert.Equal(t, []*model.Type{model.I32}, ints.Bindings)

	floats := instance("floats")
	assert.Same(t, box.Partials[0], floats.Specialization)
	assert.Equal(t, []*model.Type{model.F32}, floats.Bindings)
	assert.Equal(t, []*model.Type{p.pointerTo(model.F32)}, floats.Args)

	names := instance("names")
	assert.Same(t, box.Partials[0], names.Specialization)

	require.Len(t, box.Default.Fields, 2)
	assert.Equal(t, model.TypeParam, box.Default.Fields[0].Type.Kind)
	next := box.Default.Fields[1].Type
	require.Equal(t, model.TypePointerTo, next.Kind)
	assert.Same(t, model.Self, next.Elem)
}

func TestNestingLimit(ttt *testing.T) {
	ttt.Parallel()
	wrap := func(n int) string {
		return strings.Repeat("Wrap<", n) + "int" + strings.Repeat(">", n)
	}
	tests := []struct {
		name  string
		typ   string
		depth int
		is    error
	}{
		{name: "nested templates", typ: wrap(40), depth: 40},
		{name: "nested templates past the limit", typ: wrap(MaxNesting + 10), is: bindgen.ErrUnsupportedType},
		{name: "pointer chain past the limit", typ: "int" + strings.Repeat("*", MaxNesting+10), is: bindgen.ErrUnsupportedType},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := "file: /src/deep.h\n" +
				"decls:\n" +
				"  - kind: struct-template\n" +
				"    name: Wrap\n" +
				"    template_params: [T]\n" +
				"    decls:\n" +
				"      - {kind: field, name: value, type: T}\n" +
				"  - {kind: var, name: deep, type: \"" + tt.typ + "\"}\n"
			tu, err := astfile.Parse([]byte(doc))
			require.NoError(t, err)
			p := New(tu.Cursor(), bindgen.WithVar("deep"))
			err = p.Parse()
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
				assert.Zero(t, p.depth)
				return
			}
			require.NoError(t, err)
			v, err := p.Table.Vars.Find("deep")
			require.NoError(t, err)
			levels := 0
			for typ := v.Type; typ.Kind == model.TypeInstance; typ = typ.Instance.Args[0] {
				levels++
			}
			assert.Equal(t, tt.depth, levels)
		})
	}
}

func TestImportErrors(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		name   string
		spec   bindgen.ImportSpec
		is     error
		frames []string
	}{
		{
			name: "ambiguous short name",
			spec: bindgen.ImportSpec{Kind: bindgen.ImportClass, Name: "Point"},
			is:   bindgen.ErrAmbiguous,
		},
		{
			name: "unknown class",
			spec: bindgen.ImportSpec{Kind: bindgen.ImportClass, Name: "Missing"},
			is:   bindgen.ErrNotFound,
		},
		{
			name:   "void parameter",
			spec:   bindgen.ImportSpec{Kind: bindgen.ImportFunction, Name: "broken"},
			is:     bindgen.ErrVoidValue,
			frames: []string{"import broken", "function geo::broken", "parameter n"},
		},
		{
			name: "template containing itself",
			spec: bindgen.ImportSpec{Kind: bindgen.ImportClass, Name: "Chain"},
			is:   bindgen.ErrSelfContainment,
		},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newParser(t)
			err := p.Import(tt.spec)
			require.ErrorIs(t, err, tt.is)
			if tt.frames != nil {
				var ce *bindgen.ChainError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, tt.frames, ce.Frames)
			}
		})
	}
}

func TestUnits(t *testing.T) {
	t.Parallel()
	p := newParser(t, bindgen.WithFunction("sleep_for"), bindgen.WithFunction("length"))
	require.NoError(t, p.Parse())

	units := p.Units()
	require.Len(t, units, 2)
	assert.Equal(t, "geo/geo.h", units[0].File)
	assert.False(t, units[0].System)
	assert.True(t, units[1].System)
	require.Len(t, units[1].Entries, 1)
	assert.Equal(t, "timespec", units[1].Entries[0].Common().Name)
	assert.True(t, p.IsSystem("/usr/include/time.h"))
	assert.False(t, p.IsSystem("geo/geo.h"))
}

func TestSelectSpecialization(ttt *testing.T) {
	ttt.Parallel()
	tmpl := &model.ClassTemplateEntry{Decl: model.Decl{Name: "Pair"}}
	first := &model.TemplateParameter{Name: "T"}
	second := &model.TemplateParameter{Name: "U"}
	param := func(tp *model.TemplateParameter, i int) *model.Type {
		return &model.Type{Kind: model.TypeParam, Param: tp, Index: i}
	}
	left := &model.Specialization{Template: tmpl, Index: 1, Parameters: []*model.TemplateParameter{first, second},
		Application: []*model.Type{model.PointerTo(param(first, 0)), param(second, 1)}}
	right := &model.Specialization{Template: tmpl, Index: 2, Parameters: []*model.TemplateParameter{first, second},
		Application: []*model.Type{param(first, 0), model.PointerTo(param(second, 1))}}
	same := &model.Specialization{Template: tmpl, Index: 3, Parameters: []*model.TemplateParameter{first},
		Application: []*model.Type{param(first, 0), param(first, 0)}}
	tmpl.Partials = []*model.Specialization{left, right, same}

	tests := []struct {
		name     string
		args     []*model.Type
		want     *model.Specialization
		bindings []*model.Type
		is       error
	}{
		{
			name:     "left pointer",
			args:     []*model.Type{model.PointerTo(model.I32), model.F64},
			want:     left,
			bindings: []*model.Type{model.I32, model.F64},
		},
		{
			name:     "right pointer",
			args:     []*model.Type{model.U8, model.PointerTo(model.I64)},
			want:     right,
			bindings: []*model.Type{model.U8, model.I64},
		},
		{
			name: "both pointers",
			args: []*model.Type{model.PointerTo(model.I32), model.PointerTo(model.I32)},
			is:   bindgen.ErrAmbiguous,
		},
		{
			name:     "repeated parameter",
			args:     []*model.Type{model.F32, model.F32},
			want:     same,
			bindings: []*model.Type{model.F32},
		},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, bindings, err := selectSpecialization(tmpl, tt.args)
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
			assert.Equal(t, tt.bindings, bindings)
		})
	}
}
