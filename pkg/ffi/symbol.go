package ffi

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoLibrary = errors.New("no library")
	ErrArity     = errors.New("argument count mismatch")
)

// Symbol is one exported native function or variable.
type Symbol struct {
	// Name is the binding name, Mangling the linker name.
	Name     string
	Mangling string
	Params   []*Type
	// Result is the function result, or the type of a variable.
	Result   *Type
	Variable bool
}

func (s *Symbol) String() string {
	if s.Variable {
		return fmt.Sprintf("var %s %s", s.Name, s.Result)
	}
	return s.Name + " " + Func(s.Result, s.Params...).String()
}

// Library is loaded native code.
type Library interface {
	// Invoke calls sym. Records returned in registers are copied into out,
	// which is nil for every other result.
	Invoke(sym *Symbol, out Buffer, args []any) (Value, error)
	// Address resolves a variable.
	Address(sym *Symbol) (Handle, error)
}

// Value is a raw scalar result.
type Value uint64

func (v Value) Bool() bool { return v&0xff != 0 }
func (v Value) U8() uint8 { return uint8(v) }
func (v Value) I8() int8 { return int8(v) }
func (v Value) U16() uint16 { return uint16(v) }
func (v Value) I16() int16 { return int16(v) }
func (v Value) U32() uint32 { return uint32(v) }
func (v Value) I32() int32 { return int32(v) }
func (v Value) U64() uint64 { return uint64(v) }
func (v Value) I64() int64 { return int64(v) }
func (v Value) F32() float32 { return math.Float32frombits(uint32(v)) }
func (v Value) F64() float64 { return math.Float64frombits(uint64(v)) }
func (v Value) Handle() Handle { return Handle(v) }

// Call invokes sym on lib after checking the argument count.
func Call(lib Library, sym *Symbol, args ...any) (Value, error) {
	return invoke(lib, sym, nil, args)
}

// CallInto invokes sym and copies a record result into out.
func CallInto(lib Library, sym *Symbol, out Buffer, args ...any) error {
	if sym.Result != nil && out.Length() != int(sym.Result.Size) {
		return fmt.Errorf("call %s: %w: have %d bytes, want %d", sym.Name, ErrBufferSize, out.Length(), sym.Result.Size)
	}
	_, err := invoke(lib, sym, out, args)
	return err
}

// Address resolves a variable symbol.
func Address(lib Library, sym *Symbol) (Handle, error) {
	if lib == nil {
		return 0, fmt.Errorf("resolve %s: %w", sym.Name, ErrNoLibrary)
	}
	h, err := lib.Address(sym)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", sym.Name, err)
	}
	return h, nil
}

func invoke(lib Library, sym *Symbol, out Buffer, args []any) (Value, error) {
	if lib == nil {
		return 0, fmt.Errorf("call %s: %w", sym.Name, ErrNoLibrary)
	}
	if len(args) != len(sym.Params) {
		return 0, fmt.Errorf("call %s: %w: have %d, want %d", sym.Name, ErrArity, len(args), len(sym.Params))
	}
	v, err := lib.Invoke(sym, out, args)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", sym.Name, err)
	}
	return v, nil
}
