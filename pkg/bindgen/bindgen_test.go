package bindgen

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("%w: Vec3", ErrNotFound)
	err = Wrap(err, "type Vec3")
	err = Wrap(err, "field pos")
	err = Wrap(err, "class geo::Node")

	require.ErrorIs(t, err, ErrNotFound)
	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	if diff := cmp.Diff([]string{"class geo::Node", "field pos", "type Vec3"}, ce.Frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "class geo::Node -> field pos -> type Vec3: not found: Vec3", err.Error())
	assert.NoError(t, Wrap(nil, "frame"))
}

func TestFilter(ttt *testing.T) {
	ttt.Parallel()
	area := Decl{Name: "area", Params: []string{"float"}}
	ctor := Decl{Name: "Circle", Params: []string{"float", "geo::Vec2 const &"}}
	tests := []struct {
		name   string
		filter Filter
		decl   Decl
		want   bool
		empty  bool
	}{
		{name: "zero value selects nothing", filter: Filter{}, decl: area, want: false, empty: true},
		{name: "all", filter: All(), decl: area, want: true},
		{name: "names hit", filter: Names("area", "scale"), decl: area, want: true},
		{name: "names miss", filter: Names("scale"), decl: area, want: false},
		{name: "empty names", filter: Names(), decl: area, want: false, empty: true},
		{name: "predicate", filter: Where(func(d Decl) bool { return len(d.Params) == 1 }), decl: area, want: true},
		{name: "signature ignores spaces", filter: Signatures("float, geo::Vec2 const&"), decl: ctor, want: true},
		{name: "default constructor signature", filter: Signatures(""), decl: Decl{Name: "Circle"}, want: true},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.filter.Match(tt.decl))
			assert.Equal(t, tt.empty, tt.filter.Empty())
		})
	}
}

func TestParseFilter(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		name       string
		value      any
		signatures bool
		wantMode   FilterMode
		wantErr    bool
	}{
		{name: "nil", value: nil, wantMode: FilterNone},
		{name: "all", value: "all", wantMode: FilterAll},
		{name: "none", value: "None", wantMode: FilterNone},
		{name: "true", value: true, wantMode: FilterAll},
		{name: "names", value: []any{"area", "scale"}, wantMode: FilterNames},
		{name: "signatures", value: []any{"float"}, signatures: true, wantMode: FilterPredicate},
		{name: "bad word", value: "some", wantErr: true},
		{name: "bad item", value: []any{1}, wantErr: true},
		{name: "bad type", value: 3, wantErr: true},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := ParseFilter(tt.value, tt.signatures)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, f.Mode)
		})
	}
}

func TestOptionsNormalize(t *testing.T) {
	t.Parallel()
	o := NewOptions()
	o.OutputPath = "out/Geo-Bindings"
	o.AST = "testdata/../shapes.yaml"
	o.ImportList = []ImportConfig{
		{Name: "geo::Circle", Constructors: "all", Methods: []any{"area"}, Destructors: true},
		{Kind: "function", Name: "geo::scale"},
		{Kind: "var", Name: "geo::origin"},
	}
	require.NoError(t, o.Normalize())
	require.NoError(t, o.Validate())

	assert.Equal(t, "geobindings", o.PackageName)
	assert.Equal(t, "shapes.yaml", o.AST)
	assert.Nil(t, o.ImportList)
	require.Len(t, o.Imports, 3)
	assert.Equal(t, ImportClass, o.Imports[0].Kind)
	assert.Equal(t, FilterAll, o.Imports[0].Constructors.Mode)
	assert.Equal(t, []string{"area"}, o.Imports[0].Methods.Names)
	assert.True(t, o.Imports[0].Destructors)
	assert.Equal(t, ImportFunction, o.Imports[1].Kind)
	assert.Equal(t, "var geo::origin", o.Imports[2].String())
}

func TestOptionsValidate(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name: "complete",
			opts: []Option{WithAST("ast.yaml"), WithPackageName("geo"), WithClass("Circle", All(), true, None())},
		},
		{
			name:    "missing ast",
			opts:    []Option{WithPackageName("geo"), WithFunction("scale")},
			wantErr: true,
		},
		{
			name:    "no imports",
			opts:    []Option{WithAST("ast.yaml"), WithPackageName("geo")},
			wantErr: true,
		},
		{
			name:    "bad package name",
			opts:    []Option{WithAST("ast.yaml"), WithPackageName("geo-bindings"), WithVar("origin")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := NewOptions()
			for _, opt := range tt.opts {
				opt(o)
			}
			err := o.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestImportConfigUnknownKind(t *testing.T) {
	t.Parallel()
	_, err := ImportConfig{Kind: "macro", Name: "X"}.Spec()
	require.ErrorIs(t, err, ErrInvalidConfig)
}
