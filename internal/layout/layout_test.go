package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/cxxffigen/internal/model"
)

func class(name string) *model.ClassEntry {
	return &model.ClassEntry{Decl: model.Decl{Name: name, Used: true}, Size: 8, Align: 4}
}

func TestUsageFixedPoint(t *testing.T) {
	t.Parallel()
	node := class("Node")
	vec := class("Vec3")
	handle := class("Handle")
	callback := &model.TypedefEntry{
		Decl: model.Decl{Name: "Visit"},
		Target: model.PointerTo(&model.Type{Kind: model.TypeFunction, Params: []*model.Parameter{
			{Name: "arg0", Type: model.PointerTo(model.RefTo(handle))},
		}}),
	}
	fns := []model.Entry{
		&model.FunctionEntry{
			Decl:       model.Decl{Name: "walk"},
			Parameters: []*model.Parameter{{Name: "n", Type: model.PointerTo(model.RefTo(node))}, {Name: "v", Type: model.PointerTo(model.RefTo(vec))}},
		},
		&model.FunctionEntry{
			Decl:   model.Decl{Name: "origin"},
			Result: model.RefTo(vec),
		},
		callback,
		node, vec, handle,
	}
	CollectUsage(fns)
	Finalize(fns)

	assert.True(t, node.Usage.Pointer)
	assert.False(t, vec.Usage.Pointer, "one by-value use forces buffer form")
	assert.True(t, vec.Usage.AsPointer)
	assert.True(t, handle.Usage.Pointer)

	pass, target := Param(model.PointerTo(model.RefTo(node)))
	assert.Equal(t, PassPointer, pass)
	assert.Same(t, node, target.Class())
	pass, _ = Param(model.PointerTo(model.RefTo(vec)))
	assert.Equal(t, PassBuffer, pass)
	pass, _ = Param(model.RefTo(vec))
	assert.Equal(t, PassValue, pass)
	pass, _ = Param(model.PointerTo(model.PointerTo(model.I32)))
	assert.Equal(t, PassBuffer, pass)
	pass, _ = Param(model.I64)
	assert.Equal(t, PassValue, pass)
}

func TestPassedInRegisters(ttt *testing.T) {
	ttt.Parallel()
	plain := class("Plain")
	withDtor := class("WithDtor")
	withDtor.NonTrivial = true
	derived := class("Derived")
	derived.Bases = []*model.Base{{Type: model.RefTo(withDtor)}}
	dynamic := class("Dynamic")
	dynamic.Dynamic = true

	tests := []struct {
		name string
		t    *model.Type
		want bool
	}{
		{name: "trivial class", t: model.RefTo(plain), want: true},
		{name: "destructor", t: model.RefTo(withDtor), want: false},
		{name: "inherited destructor", t: model.RefTo(derived), want: false},
		{name: "vtable", t: model.RefTo(dynamic), want: false},
		{name: "array", t: &model.Type{Kind: model.TypeArray, Elem: model.F32, Len: 2}, want: true},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PassedInRegisters(tt.t))
			assert.Equal(t, !tt.want, ReturnsThroughBuffer(tt.t))
		})
	}
}

func TestClassRecord(t *testing.T) {
	t.Parallel()
	shape := class("Shape")
	shape.Dynamic = true
	shape.Fields = []*model.Field{{Name: "id", Type: model.I32, Offset: 8}}

	rec := Class(shape)
	require.Len(t, rec.Slots, 2)
	assert.True(t, rec.Slots[0].VTable)
	assert.Equal(t, "id", rec.Slots[1].Name)
	assert.Empty(t, rec.Warning)

	circle := class("Circle")
	circle.Dynamic = true
	circle.Bases = []*model.Base{{Type: model.RefTo(shape)}}
	circle.Fields = []*model.Field{{Name: "radius", Type: model.F64, Offset: 16}}
	rec = Class(circle)
	require.Len(t, rec.Slots, 2, "the base owns the vtable slot")
	assert.True(t, rec.Slots[0].Base)
	assert.Equal(t, "radius", rec.Slots[1].Name)

	mixin := class("Mixin")
	both := class("Both")
	both.Bases = []*model.Base{{Type: model.RefTo(shape)}, {Type: model.RefTo(mixin)}}
	both.VirtualBases = []*model.Base{{Type: model.RefTo(class("Root")), Virtual: true}}
	rec = Class(both)
	require.Len(t, rec.Slots, 3)
	assert.Equal(t, "base", rec.Slots[0].Name)
	assert.Equal(t, "base1", rec.Slots[1].Name)
	assert.True(t, rec.Slots[2].Virtual)
	assert.Contains(t, rec.Warning, "multiple inheritance")
}

func TestCollapse(t *testing.T) {
	t.Parallel()
	arr := &model.Type{Kind: model.TypeArray, Elem: model.U8, Len: 16, Size: 16}
	alts, size := Collapse([]*model.Type{model.I8, model.F64, model.I8, model.PointerTo(model.I32), arr, model.PointerTo(model.I32)}, 8)
	assert.Equal(t, []*model.Type{arr, model.F64, alts[2], model.I8}, alts)
	assert.Equal(t, model.TypePointerTo, alts[2].Kind)
	assert.EqualValues(t, 16, size)

	alts, size = Collapse(nil, 8)
	assert.Empty(t, alts)
	assert.Zero(t, size)
}

func TestEnumLiterals(ttt *testing.T) {
	ttt.Parallel()
	constants := func(unsigned bool, values ...int64) []*model.Constant {
		out := make([]*model.Constant, len(values))
		for i, v := range values {
			out[i] = &model.Constant{Name: string(rune('A' + i)), Value: v, Unsigned: unsigned}
		}
		return out
	}
	values := func(ls []Literal) []string {
		out := make([]string, len(ls))
		for i, l := range ls {
			out[i] = l.Value
			if l.Ref != "" {
				out[i] = "=" + l.Ref
			}
		}
		return out
	}
	tests := []struct {
		name      string
		constants []*model.Constant
		want      []string
	}{
		{name: "powers of two", constants: constants(false, 1, 2, 4), want: []string{"0x1", "0x2", "0x4"}},
		{name: "padded to widest", constants: constants(true, 0, 0x10, 0x100), want: []string{"0x000", "0x010", "0x100"}},
		{name: "large values", constants: constants(true, 1, 0x1001, 0x2345), want: []string{"0x0001", "0x1001", "0x2345"}},
		{name: "two bit triple", constants: constants(false, 0, 1, 2), want: []string{"0", "1", "2"}},
		{name: "sequence", constants: constants(false, 1, 2, 3, 4), want: []string{"1", "2", "3", "4"}},
		{name: "too few", constants: constants(false, 1, 8), want: []string{"1", "8"}},
		{name: "negative", constants: constants(false, -1, 2, 4), want: []string{"-1", "2", "4"}},
		{
			name: "reference",
			constants: append(constants(false, 1, 2, 4), &model.Constant{Name: "Crimson", Value: 1, Ref: "A"}),
			want: []string{"0x1", "0x2", "0x4", "=A"},
		},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := EnumLiterals(&model.EnumEntry{Constants: tt.constants})
			assert.Equal(t, tt.want, values(got))
		})
	}
}
