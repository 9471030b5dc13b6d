// Package ffi holds the runtime descriptors generated bindings are written
// against. A Type describes the native layout of a value, a Symbol one
// exported function or variable, and a Library the loaded native code that
// resolves and invokes symbols.
package ffi

import (
	"fmt"
	"strings"
	"unsafe"
)

// PointerSize is the pointer width of the running process.
const PointerSize = int64(unsafe.Sizeof(uintptr(0)))

type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindU8
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindU64
	KindI64
	KindF32
	KindF64
	KindPointer
	KindBuffer
	KindCString
	KindCStringArray
	KindStruct
	KindUnion
	KindArray
	KindFunction
	KindPtr
	KindSelf
)

var kindNames = [...]string{
	KindVoid:         "void",
	KindBool:         "bool",
	KindU8:           "u8",
	KindI8:           "i8",
	KindU16:          "u16",
	KindI16:          "i16",
	KindU32:          "u32",
	KindI32:          "i32",
	KindU64:          "u64",
	KindI64:          "i64",
	KindF32:          "f32",
	KindF64:          "f64",
	KindPointer:      "pointer",
	KindBuffer:       "buffer",
	KindCString:      "cstring",
	KindCStringArray: "cstringArray",
	KindStruct:       "struct",
	KindUnion:        "union",
	KindArray:        "array",
	KindFunction:     "function",
	KindPtr:          "ptr",
	KindSelf:         "self",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Type describes the native representation of a value.
type Type struct {
	Kind  Kind
	Name  string
	Size  int64
	Align int64

	// KindStruct
	Fields []Field
	// KindUnion
	Alternatives []*Type
	// KindArray element, KindPtr and KindBuffer target.
	Elem *Type
	Len  int64
	// KindFunction
	Params []*Type
	Result *Type
}

// Field is one member of a struct. Offsets are in bytes.
type Field struct {
	Name   string
	Type   *Type
	Offset int64
}

func scalar(k Kind, size int64) *Type {
	return &Type{Kind: k, Size: size, Align: size}
}

var (
	Void         = &Type{Kind: KindVoid}
	Bool         = scalar(KindBool, 1)
	U8           = scalar(KindU8, 1)
	I8           = scalar(KindI8, 1)
	U16          = scalar(KindU16, 2)
	I16          = scalar(KindI16, 2)
	U32          = scalar(KindU32, 4)
	I32          = scalar(KindI32, 4)
	U64          = scalar(KindU64, 8)
	I64          = scalar(KindI64, 8)
	F32          = scalar(KindF32, 4)
	F64          = scalar(KindF64, 8)
	Pointer      = scalar(KindPointer, PointerSize)
	RawBuffer    = scalar(KindBuffer, PointerSize)
	CString      = scalar(KindCString, PointerSize)
	CStringArray = scalar(KindCStringArray, PointerSize)
	// Self stands for the struct being described, inside its own fields.
	Self = &Type{Kind: KindSelf}
)

// Struct describes a record. A zero size lays the fields out with natural
// alignment; fields with a negative offset are placed after their
// predecessor.
func Struct(name string, size, align int64, fields ...Field) *Type {
	t := &Type{Kind: KindStruct, Name: name, Size: size, Align: align, Fields: fields}
	var end int64
	for i := range t.Fields {
		f := &t.Fields[i]
		a := f.Type.alignment()
		if f.Offset < 0 || size == 0 {
			f.Offset = alignTo(end, a)
		}
		end = f.Offset + f.Type.width()
		if align == 0 {
			t.Align = max(t.Align, a)
		}
	}
	if t.Align == 0 {
		t.Align = 1
	}
	if size == 0 {
		t.Size = alignTo(end, t.Align)
	}
	return t
}

// Union describes overlapping alternatives. A zero size takes the largest.
func Union(name string, size, align int64, alternatives ...*Type) *Type {
	t := &Type{Kind: KindUnion, Name: name, Size: size, Align: align, Alternatives: alternatives}
	for _, a := range alternatives {
		if size == 0 {
			t.Size = max(t.Size, a.width())
		}
		if align == 0 {
			t.Align = max(t.Align, a.alignment())
		}
	}
	if t.Align == 0 {
		t.Align = 1
	}
	t.Size = alignTo(t.Size, t.Align)
	return t
}

func Array(elem *Type, n int64) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: n, Size: elem.width() * n, Align: elem.alignment()}
}

// Ptr is a typed pointer; Ptr(Self) points at the enclosing struct.
func Ptr(elem *Type) *Type {
	return &Type{Kind: KindPtr, Elem: elem, Size: PointerSize, Align: PointerSize}
}

// Buf is a parameter passed as the address of a caller-owned buffer of t.
func Buf(t *Type) *Type {
	return &Type{Kind: KindBuffer, Elem: t, Size: PointerSize, Align: PointerSize}
}

// Func describes a native function signature; a nil result is void.
func Func(result *Type, params ...*Type) *Type {
	if result == nil {
		result = Void
	}
	return &Type{Kind: KindFunction, Result: result, Params: params, Size: PointerSize, Align: PointerSize}
}

// Named returns a copy of t carrying name.
func Named(name string, t *Type) *Type {
	c := *t
	c.Name = name
	return &c
}

func (t *Type) width() int64 {
	if t == nil {
		return 0
	}
	return t.Size
}

func (t *Type) alignment() int64 {
	if t == nil || t.Align == 0 {
		return 1
	}
	return t.Align
}

func alignTo(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

// Field looks up a struct member by name.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks that every struct member fits inside the struct.
func (t *Type) Validate() error {
	switch t.Kind {
	case KindStruct:
		for _, f := range t.Fields {
			if f.Type == nil {
				return fmt.Errorf("%s: field %s has no type", t, f.Name)
			}
			if f.Type.Kind == KindSelf {
				return fmt.Errorf("%s: field %s contains its own struct", t, f.Name)
			}
			if f.Offset+f.Type.width() > t.Size {
				return fmt.Errorf("%s: field %s at %d overruns size %d", t, f.Name, f.Offset, t.Size)
			}
			if err := f.Type.Validate(); err != nil {
				return fmt.Errorf("%s.%s: %w", t, f.Name, err)
			}
		}
	case KindUnion:
		for _, a := range t.Alternatives {
			if a.width() > t.Size {
				return fmt.Errorf("%s: alternative %s exceeds size %d", t, a, t.Size)
			}
		}
	case KindArray:
		return t.Elem.Validate()
	}
	return nil
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	if t.Name != "" {
		return t.Name
	}
	switch t.Kind {
	case KindPtr:
		return "ptr(" + t.Elem.String() + ")"
	case KindBuffer:
		if t.Elem != nil {
			return "buf(" + t.Elem.String() + ")"
		}
	case KindArray:
		return fmt.Sprintf("%s[%d]", t.Elem, t.Len)
	case KindFunction:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.String()
		}
		return fmt.Sprintf("fn(%s) %s", strings.Join(params, ", "), t.Result)
	}
	return t.Kind.String()
}
