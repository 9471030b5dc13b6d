package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCount(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		n    int
		noun string
		want string
	}{
		{0, "warning", "0 warnings"},
		{1, "warning", "1 warning"},
		{2, "file", "2 files"},
		{1, "export", "1 export"},
	}
	for _, tt := range tests {
		ttt.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, count(tt.n, tt.noun))
		})
	}
}

func TestPrint(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	Print(&buf, Summary{
		Output:   "/work/gen",
		Package:  "gen",
		Files:    []string{"/work/gen/a.go", "/work/gen/symbols.go"},
		Exports:  1,
		Warnings: []string{"class geo::Both: multiple inheritance"},
		Elapsed:  1500 * time.Millisecond,
	})
	out := buf.String()
	assert.Contains(t, out, "class geo::Both: multiple inheritance")
	assert.Contains(t, out, "/work/gen/symbols.go")
	assert.Contains(t, out, "2 files")
	assert.Contains(t, out, "1 export")
	assert.Contains(t, out, "1 warning")
	assert.Contains(t, out, "1.500s")
}

func TestError(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	Error(&buf, errors.New("class geo::Node -> field pos -> type Vec3: not found"))
	out := buf.String()
	assert.Contains(t, out, "class geo::Node")
	assert.Contains(t, out, "  -> field pos\n")
	assert.Contains(t, out, "    -> type Vec3: not found\n")
}
