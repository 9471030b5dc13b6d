package generate

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

const snapshot = `
file: /src/math.h
decls:
  - kind: struct
    name: Vec2
    decls:
      - {kind: field, name: x, type: float}
      - {kind: field, name: y, type: float}
  - kind: function
    name: length
    result: float
    params:
      - {name: v, type: "const Vec2*"}
`

func workspace(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/go.mod", []byte("module example.com/work\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/work/math.yaml", []byte(snapshot), 0o644))
	return fs
}

func options(imports ...bindgen.Option) *bindgen.Options {
	o := bindgen.NewOptions()
	for _, fn := range append([]bindgen.Option{
		bindgen.WithBasePath("/src"),
		bindgen.WithAST("/work/math.yaml"),
		bindgen.WithOutputPath("/work/gen/mathb"),
	}, imports...) {
		fn(o)
	}
	return o
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	fs := workspace(t)
	res, err := Generate(context.Background(), fs, options(bindgen.WithFunction("length")))
	require.NoError(t, err)

	assert.Equal(t, "mathb", res.Package)
	assert.Equal(t, "example.com/work/gen/mathb", res.PkgPath)
	assert.Equal(t, []string{"Length"}, res.Exports)
	assert.Equal(t, []string{"math_h.go", "math_h_classes.go", "math_h_types.go", "symbols.go"}, res.Units)
	require.Len(t, res.Files, 4)
	assert.Equal(t, "symbols.go", res.Rel(res.Files[3]))

	data, err := afero.ReadFile(fs, "/work/gen/mathb/math_h_classes.go")
	require.NoError(t, err)
	assert.Contains(t, string(data), "package mathb")
	assert.Contains(t, string(data), "func LengthFn(lib ffi.Library, vArg Vec2Pointer) (float32, error) {")
	assert.NotContains(t, string(data), "LengthV", "free functions keep their source name")
}

func TestGenerateFailureWritesNothing(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		name    string
		opts    *bindgen.Options
		wantErr error
	}{
		{name: "missing symbol", opts: options(bindgen.WithFunction("width")), wantErr: bindgen.ErrNotFound},
		{name: "no imports", opts: options(), wantErr: bindgen.ErrInvalidConfig},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := workspace(t)
			_, err := Generate(context.Background(), fs, tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
			ok, err := afero.DirExists(fs, "/work/gen")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestGenerateMissingSnapshot(t *testing.T) {
	t.Parallel()
	o := options(bindgen.WithFunction("length"))
	o.AST = "/work/none.yaml"
	_, err := Generate(context.Background(), afero.NewMemMapFs(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/work/none.yaml")
}
