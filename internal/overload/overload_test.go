package overload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

func param(name string, t *model.Type) *model.Parameter {
	return &model.Parameter{Name: name, Type: t}
}

func sig(name string, params ...*model.Parameter) Signature {
	return Signature{Name: name, Parameters: params}
}

func TestNames(ttt *testing.T) {
	ttt.Parallel()
	vec := &model.ClassEntry{Decl: model.Decl{Name: "geo::Vec3"}}
	tests := []struct {
		name string
		set  []Signature
		want []string
		is   error
	}{
		{
			name: "single",
			set:  []Signature{sig("area")},
			want: []string{"area"},
		},
		{
			name: "trailing parameter",
			set:  []Signature{sig("area"), sig("area", param("scale", model.F32))},
			want: []string{"area", "areaWithF32"},
		},
		{
			name: "equal arity same parameter name",
			set: []Signature{
				sig("set", param("v", model.F32)),
				sig("set", param("v", model.RefTo(vec))),
			},
			want: []string{"setWithF32", "setWithVec3"},
		},
		{
			name: "equal arity different parameter names",
			set: []Signature{
				sig("resize", param("width", model.I32), param("mode", model.U8)),
				sig("resize", param("factor", model.F64), param("mode", model.U8)),
			},
			want: []string{"resizeWithWidth", "resizeWithFactor"},
		},
		{
			name: "const twin is dropped",
			set: []Signature{
				{Name: "get", Result: model.I32, Const: true},
				{Name: "get", Result: model.I32},
			},
			want: []string{"", "get"},
		},
		{
			name: "dropped const twin leaves the set",
			set: []Signature{
				{Name: "get", Result: model.I32},
				{Name: "get", Result: model.I32, Const: true},
				{Name: "get", Result: model.I32, Parameters: []*model.Parameter{param("index", model.I32)}},
			},
			want: []string{"get", "", "getWithI32"},
		},
		{
			name: "static among instance methods",
			set: []Signature{
				{Name: "make", Static: true, Parameters: []*model.Parameter{param("n", model.I32), param("v", model.F32)}},
				sig("make"),
			},
			want: []string{"staticMakeI32WithF32", "make"},
		},
		{
			name: "distinct arities",
			set: []Signature{
				sig("draw"),
				sig("draw", param("x", model.I32)),
				sig("draw", param("x", model.I32), param("y", model.F32)),
			},
			want: []string{"draw", "drawWith", "drawWithY"},
		},
		{
			name: "same arity",
			set: []Signature{
				sig("scale", param("f", model.F32)),
				sig("scale", param("i", model.I32)),
				sig("scale", param("d", model.F64)),
			},
			want: []string{"scaleWithF", "scaleWithI", "scaleWithD"},
		},
		{
			name: "reserved plain names",
			set:  []Signature{sig("length")},
			want: []string{"lengthFn"},
		},
		{
			name: "reserved with parameter",
			set:  []Signature{sig("at", param("index", model.U64))},
			want: []string{"atIndex"},
		},
		{
			name: "indistinguishable",
			set: []Signature{
				sig("put", param("a", model.F32)),
				sig("put", param("b", model.F32)),
			},
			is: bindgen.ErrDuplicateExport,
		},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Names(tt.set)
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFragment(ttt *testing.T) {
	ttt.Parallel()
	color := &model.EnumEntry{Decl: model.Decl{Name: "geo::Color"}}
	tests := []struct {
		name  string
		param *model.Parameter
		want  string
	}{
		{name: "scalar", param: param("x", model.U16), want: "U16"},
		{name: "cstring", param: param("s", model.CString), want: "Cstring"},
		{name: "enum", param: param("c", model.RefTo(color)), want: "Color"},
		{name: "pointer peels", param: param("c", model.PointerTo(model.RefTo(color))), want: "Color"},
		{name: "array singular", param: param("points", &model.Type{Kind: model.TypeArray, Elem: model.F32, Len: 3}), want: "Point"},
		{name: "function", param: param("on_done", &model.Type{Kind: model.TypeFunction}), want: "OnDone"},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Fragment(tt.param))
		})
	}
}

func TestMethodsAndFunctions(t *testing.T) {
	t.Parallel()
	methods := []*model.Method{
		{Name: "area", Result: model.F32},
		{Name: "area", Result: model.F32, Parameters: []*model.Parameter{param("scale", model.F32)}},
		{Name: "length", Result: model.F32},
	}
	require.NoError(t, Methods(methods))
	assert.Equal(t, "area", methods[0].Export)
	assert.Equal(t, "areaWithF32", methods[1].Export)
	assert.Equal(t, "lengthFn", methods[2].Export)

	fns := []*model.FunctionEntry{
		{Decl: model.Decl{Name: "geo::dot"}, Parameters: []*model.Parameter{param("a", model.F32)}},
		{Decl: model.Decl{Name: "geo::dot"}, Parameters: []*model.Parameter{param("a", model.F64)}},
		{Decl: model.Decl{Name: "geo::cross"}},
	}
	require.NoError(t, Functions(fns))
	assert.Equal(t, "Geo__dotWithF32", fns[0].Export)
	assert.Equal(t, "Geo__dotWithF64", fns[1].Export)
	assert.Equal(t, "Geo__cross", fns[2].Export)

	// Free functions do not live next to the buffer methods.
	free := []*model.FunctionEntry{
		{Decl: model.Decl{Name: "geo::length"}, Result: model.F32, Parameters: []*model.Parameter{param("v", model.F32)}},
		{Decl: model.Decl{Name: "find"}},
	}
	require.NoError(t, Functions(free))
	assert.Equal(t, "Geo__length", free[0].Export)
	assert.Equal(t, "Find", free[1].Export)

	same := []*model.Method{{Name: "length", Result: model.F32, Parameters: []*model.Parameter{param("v", model.F32)}}}
	require.NoError(t, Methods(same))
	assert.Equal(t, "lengthV", same[0].Export)
}

func TestConstructors(t *testing.T) {
	t.Parallel()
	shape := &model.ClassEntry{Decl: model.Decl{Name: "geo::Shape"}}
	circle := &model.ClassEntry{Decl: model.Decl{Name: "geo::Circle"}}
	circle.Constructors = []*model.Method{
		{Name: "Circle"},
		{Name: "Circle", Parameters: []*model.Parameter{param("r", model.F64)}},
		{Name: "Circle", Copy: true, Parameters: []*model.Parameter{param("other", model.PointerTo(model.RefTo(circle)))}},
		{Name: "Circle", Copy: true, Parameters: []*model.Parameter{param("base", model.PointerTo(model.RefTo(shape)))}},
		{Name: "Circle", Move: true, Parameters: []*model.Parameter{param("other", model.PointerTo(model.RefTo(circle)))}},
	}
	require.NoError(t, Constructors(circle))
	got := make([]string, len(circle.Constructors))
	for i, m := range circle.Constructors {
		got[i] = m.Export
	}
	assert.Equal(t, []string{
		"Constructor",
		"ConstructorWithF64",
		"CopyConstructor",
		"CopyConstructorWithShape",
		"MoveConstructor",
	}, got)

	circle.Constructors = append(circle.Constructors, &model.Method{Name: "Circle", Parameters: []*model.Parameter{param("d", model.F64)}})
	require.ErrorIs(t, Constructors(circle), bindgen.ErrDuplicateExport)
}
