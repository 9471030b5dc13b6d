package ffi

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	calls []string
	ret   Value
	err   error
}

func (l *fakeLibrary) Invoke(sym *Symbol, out Buffer, _ []any) (Value, error) {
	l.calls = append(l.calls, sym.Name)
	if out != nil {
		out.Fill(0xab)
	}
	return l.ret, l.err
}

func (l *fakeLibrary) Address(sym *Symbol) (Handle, error) {
	l.calls = append(l.calls, sym.Name)
	return 0x1000, l.err
}

func TestStructLayout(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		name    string
		t       *Type
		size    int64
		align   int64
		offsets []int64
	}{
		{
			name:    "explicit",
			t:       Struct("geo::Vec3", 12, 4, Field{"x", F32, 0}, Field{"y", F32, 4}, Field{"z", F32, 8}),
			size:    12,
			align:   4,
			offsets: []int64{0, 4, 8},
		},
		{
			name:    "natural",
			t:       Struct("Box", 0, 0, Field{"tag", U8, 0}, Field{"value", F64, 0}, Field{"flag", Bool, 0}),
			size:    24,
			align:   8,
			offsets: []int64{0, 8, 16},
		},
		{
			name:    "placed after predecessor",
			t:       Struct("Mixed", 16, 8, Field{"a", I32, 0}, Field{"b", I64, -1}),
			size:    16,
			align:   8,
			offsets: []int64{0, 8},
		},
		{
			name:  "empty",
			t:     Struct("Empty", 0, 0),
			size:  0,
			align: 1,
		},
	}
	for _, tt := range tests {
		ttt.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.size, tt.t.Size)
			assert.Equal(t, tt.align, tt.t.Align)
			var offsets []int64
			for _, f := range tt.t.Fields {
				offsets = append(offsets, f.Offset)
			}
			assert.Equal(t, tt.offsets, offsets)
			require.NoError(t, tt.t.Validate())
		})
	}
}

func TestUnionAndArray(t *testing.T) {
	t.Parallel()
	arr := Array(F32, 3)
	assert.EqualValues(t, 12, arr.Size)
	assert.EqualValues(t, 4, arr.Align)
	assert.Equal(t, "f32[3]", arr.String())

	u := Union("Value", 0, 0, arr, F64, U8)
	assert.EqualValues(t, 16, u.Size)
	assert.EqualValues(t, 8, u.Align)
	require.NoError(t, u.Validate())

	bad := Union("Small", 4, 4, F64)
	require.Error(t, bad.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()
	node := Struct("Node", 16, 8, Field{"next", Ptr(Self), 0}, Field{"id", I32, 8})
	require.NoError(t, node.Validate())
	f, ok := node.Field("next")
	require.True(t, ok)
	assert.Equal(t, "ptr(self)", f.Type.String())

	overrun := Struct("Short", 4, 4, Field{"v", F64, 0})
	assert.ErrorContains(t, overrun.Validate(), "overruns")

	loop := Struct("Loop", 8, 8, Field{"self", Self, 0})
	assert.ErrorContains(t, loop.Validate(), "own struct")
}

func TestBuffer(t *testing.T) {
	t.Parallel()
	b := NewBuffer(6)
	assert.Equal(t, 6, b.Length())
	b.Fill(1)
	b[4] = 7
	assert.Equal(t, byte(7), b.At(4))
	assert.Equal(t, 0, b.Find([]byte{1, 1}))
	assert.Equal(t, 2, b.FindLast([]byte{1, 1}))
	assert.Equal(t, "010101010701", b.String())

	_, err := WrapBuffer(make([]byte, 3), 4)
	require.ErrorIs(t, err, ErrBufferSize)
	w, err := WrapBuffer(make([]byte, 4), 4)
	require.NoError(t, err)
	assert.Len(t, w.Bytes(), 4)
}

func TestCall(t *testing.T) {
	t.Parallel()
	area := &Symbol{Name: "Geo__Shape__area", Params: []*Type{Buf(Struct("Shape", 8, 4))}, Result: F32}
	lib := &fakeLibrary{ret: Value(math.Float32bits(2.5))}

	v, err := Call(lib, area, NewBuffer(8))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v.F32(), 0)
	assert.Equal(t, []string{"Geo__Shape__area"}, lib.calls)

	_, err = Call(lib, area)
	require.ErrorIs(t, err, ErrArity)
	_, err = Call(nil, area, NewBuffer(8))
	require.ErrorIs(t, err, ErrNoLibrary)

	lib.err = errors.New("boom")
	_, err = Call(lib, area, NewBuffer(8))
	assert.EqualError(t, err, "call Geo__Shape__area: boom")
}

func TestCallInto(t *testing.T) {
	t.Parallel()
	vec := Struct("Vec3", 12, 4, Field{"x", F32, 0}, Field{"y", F32, 4}, Field{"z", F32, 8})
	origin := &Symbol{Name: "Geo__origin", Result: vec}
	lib := &fakeLibrary{}

	out := NewBuffer(vec.Size)
	require.NoError(t, CallInto(lib, origin, out))
	assert.Equal(t, byte(0xab), out.At(11))
	require.ErrorIs(t, CallInto(lib, origin, NewBuffer(4)), ErrBufferSize)

	unit := &Symbol{Name: "Geo__unit", Result: F64, Variable: true}
	h, err := Address(lib, unit)
	require.NoError(t, err)
	assert.Equal(t, Handle(0x1000), h)
	assert.Equal(t, "var Geo__unit f64", unit.String())
}

func TestValue(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int8(-1), Value(0xff).I8())
	assert.Equal(t, uint16(0xffff), Value(0x1ffff).U16())
	assert.True(t, Value(1).Bool())
	assert.InDelta(t, 1.25, Value(math.Float64bits(1.25)).F64(), 0)
	assert.True(t, Value(0).Handle().IsNil())
}
