package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena(t *testing.T) {
	t.Parallel()
	a := NewArena()
	vec := &ClassEntry{Decl: Decl{Name: "geo::Vec3"}}
	color := &EnumEntry{Decl: Decl{Name: "Color", Used: true}}
	require.Equal(t, EntryID(0), a.Add(vec))
	require.Equal(t, EntryID(1), a.Add(color))

	assert.Same(t, vec, a.Get(0))
	assert.Nil(t, a.Get(2))
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, []Entry{color}, a.Used())
	assert.Equal(t, "Vec3", vec.ShortName())
	assert.Equal(t, "Color", color.ShortName())
	assert.Equal(t, EntryEnum, a.Get(1).Kind())
}

func TestScalar(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		name   string
		size   int64
		signed bool
		float  bool
		want   *Type
	}{
		{name: "u8", size: 1, want: U8},
		{name: "i16", size: 2, signed: true, want: I16},
		{name: "u32", size: 4, want: U32},
		{name: "i64", size: 8, signed: true, want: I64},
		{name: "f32", size: 4, float: true, want: F32},
		{name: "f64", size: 8, float: true, want: F64},
		{name: "long double", size: 16, float: true, want: nil},
		{name: "odd size", size: 3, want: nil},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Scalar(tt.size, tt.signed, tt.float)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Same(t, tt.want, got)
		})
	}
}

func TestEqual(ttt *testing.T) {
	ttt.Parallel()
	vec := &ClassEntry{Decl: Decl{Name: "Vec"}, Size: 12}
	other := &ClassEntry{Decl: Decl{Name: "Vec"}, Size: 12}
	tests := []struct {
		name string
		a, b *Type
		want bool
	}{
		{name: "same singleton", a: U32, b: U32, want: true},
		{name: "different scalars", a: U32, b: I32, want: false},
		{name: "void", a: nil, b: nil, want: true},
		{name: "void and scalar", a: nil, b: U8, want: false},
		{name: "pointer to same entry", a: PointerTo(RefTo(vec)), b: PointerTo(RefTo(vec)), want: true},
		{name: "entries compare by identity", a: RefTo(vec), b: RefTo(other), want: false},
		{
			name: "arrays",
			a:    &Type{Kind: TypeArray, Elem: F32, Len: 3},
			b:    &Type{Kind: TypeArray, Elem: F32, Len: 4},
			want: false,
		},
		{
			name: "inline structs",
			a:    &Type{Kind: TypeInlineStruct, Fields: []*Field{{Name: "x", Type: F32}}},
			b:    &Type{Kind: TypeInlineStruct, Fields: []*Field{{Name: "x", Type: F32}}},
			want: true,
		},
		{
			name: "functions",
			a:    &Type{Kind: TypeFunction, Params: []*Parameter{{Name: "a", Type: U8}}, Result: Bool},
			b:    &Type{Kind: TypeFunction, Params: []*Parameter{{Name: "b", Type: U8}}, Result: Bool},
			want: true,
		},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestTypeHelpers(t *testing.T) {
	t.Parallel()
	vec := &ClassEntry{Decl: Decl{Name: "geo::Vec"}, Size: 12}
	alias := &TypedefEntry{Decl: Decl{Name: "geo::V"}, Target: RefTo(vec), Resolved: true}
	aliasOfAlias := &TypedefEntry{Decl: Decl{Name: "W"}, Target: RefTo(alias), Resolved: true}
	ref := RefTo(aliasOfAlias)

	assert.Same(t, vec, ref.Underlying().Class())
	assert.True(t, ref.StructLike())
	assert.False(t, PointerTo(ref).StructLike())
	assert.EqualValues(t, 12, ref.ByteSize(8))
	assert.EqualValues(t, 4, PointerTo(ref).ByteSize(4))
	assert.Nil(t, (*Type)(nil).Class())

	fn := &Type{Kind: TypeFunction, Params: []*Parameter{{Type: PointerTo(Self)}}, Result: nil}
	assert.Equal(t, "fn(*self) void", fn.String())
	assert.Equal(t, "[4]u8", (&Type{Kind: TypeArray, Elem: U8, Len: 4}).String())
	assert.Equal(t, "cstringArray", CStringArray.String())
	assert.True(t, TypeF64.Scalar())
	assert.True(t, TypeCString.Opaque())
	assert.False(t, TypeRef.Scalar())
}

func TestEntriesShareDecl(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		entry Entry
		kind  EntryKind
	}{
		{&ClassEntry{Decl: Decl{Name: "geo::Shape"}}, EntryClass},
		{&ClassTemplateEntry{Decl: Decl{Name: "geo::Box"}}, EntryClassTemplate},
		{&EnumEntry{Decl: Decl{Name: "geo::Color"}}, EntryEnum},
		{&FunctionEntry{Decl: Decl{Name: "geo::dot"}}, EntryFunction},
		{&VarEntry{Decl: Decl{Name: "geo::unit"}}, EntryVar},
		{&TypedefEntry{Decl: Decl{Name: "geo::Scalar"}}, EntryTypedef},
		{&UnionEntry{Decl: Decl{Name: "geo::Value"}}, EntryUnion},
	}
	for _, tt := range tests {
		ttt.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()
			a := NewArena()
			id := a.Add(tt.entry)
			assert.Equal(t, tt.kind, tt.entry.Kind())
			assert.Equal(t, id, tt.entry.Common().ID)
			assert.Same(t, tt.entry, a.Get(id))
			tt.entry.Common().Used = true
			assert.Equal(t, []Entry{tt.entry}, a.Used())
		})
	}
}
