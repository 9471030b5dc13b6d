package model

import (
	"strconv"
	"strings"
)

type TypeKind int

const (
	TypeInvalid TypeKind = iota

	// fixed-width scalars
	TypeBool
	TypeU8
	TypeI8
	TypeU16
	TypeI16
	TypeU32
	TypeI32
	TypeU64
	TypeI64
	TypeF32
	TypeF64

	// opaque
	TypePointer
	TypeBuffer
	TypeCString
	TypeCStringArray

	// composite
	TypePointerTo
	TypeSelf
	TypeArray
	TypeFunction
	TypeInlineStruct
	TypeInlineUnion
	TypeInstance
	TypeMemberPointer
	TypeParam
	TypeRef
)

var typeTags = map[TypeKind]string{
	TypeBool:          "bool",
	TypeU8:            "u8",
	TypeI8:            "i8",
	TypeU16:           "u16",
	TypeI16:           "i16",
	TypeU32:           "u32",
	TypeI32:           "i32",
	TypeU64:           "u64",
	TypeI64:           "i64",
	TypeF32:           "f32",
	TypeF64:           "f64",
	TypePointer:       "pointer",
	TypeBuffer:        "buffer",
	TypeCString:       "cstring",
	TypeCStringArray:  "cstringArray",
	TypePointerTo:     "ptr",
	TypeSelf:          "self",
	TypeArray:         "array",
	TypeFunction:      "function",
	TypeInlineStruct:  "struct",
	TypeInlineUnion:   "union",
	TypeInstance:      "instance",
	TypeMemberPointer: "memberPointer",
	TypeParam:         "param",
	TypeRef:           "ref",
}

// Tag is the wire tag of scalar and opaque kinds.
func (k TypeKind) Tag() string {
	return typeTags[k]
}

func (k TypeKind) String() string {
	if s, ok := typeTags[k]; ok {
		return s
	}
	return "invalid"
}

func (k TypeKind) Scalar() bool {
	return k >= TypeBool && k <= TypeF64
}

func (k TypeKind) Opaque() bool {
	return k >= TypePointer && k <= TypeCStringArray
}

// Instance is a class template applied to arguments.
type Instance struct {
	Template       *ClassTemplateEntry
	Args           []*Type
	Specialization *Specialization
	// Bindings are the arguments for the parameters of Specialization, which
	// differ from Args for partial specializations.
	Bindings []*Type
	Size     int64
	Align    int64
}

// Type is the resolved form of a native type. A nil *Type is void.
type Type struct {
	Kind TypeKind

	// TypePointerTo target, TypeArray element.
	Elem *Type
	Len  int64

	// TypeFunction
	Params []*Parameter
	Result *Type

	// TypeInlineStruct fields, TypeInlineUnion alternatives.
	Fields []*Field

	Instance *Instance

	// TypeParam
	Param *TemplateParameter
	Index int

	// TypeRef
	Ref Entry

	// Size and Align of arrays, inline records and member pointers.
	Size  int64
	Align int64
}

// Singletons; resolution always hands out these pointers.
var (
	Bool         = &Type{Kind: TypeBool}
	U8           = &Type{Kind: TypeU8}
	I8           = &Type{Kind: TypeI8}
	U16          = &Type{Kind: TypeU16}
	I16          = &Type{Kind: TypeI16}
	U32          = &Type{Kind: TypeU32}
	I32          = &Type{Kind: TypeI32}
	U64          = &Type{Kind: TypeU64}
	I64          = &Type{Kind: TypeI64}
	F32          = &Type{Kind: TypeF32}
	F64          = &Type{Kind: TypeF64}
	Pointer      = &Type{Kind: TypePointer}
	Buffer       = &Type{Kind: TypeBuffer}
	CString      = &Type{Kind: TypeCString}
	CStringArray = &Type{Kind: TypeCStringArray}
	Self         = &Type{Kind: TypeSelf}
)

// Scalar returns the scalar singleton for a byte size and signedness.
func Scalar(size int64, signed, float bool) *Type {
	switch {
	case float && size == 4:
		return F32
	case float && size == 8:
		return F64
	case float:
		return nil
	}
	switch size {
	case 1:
		if signed {
			return I8
		}
		return U8
	case 2:
		if signed {
			return I16
		}
		return U16
	case 4:
		if signed {
			return I32
		}
		return U32
	case 8:
		if signed {
			return I64
		}
		return U64
	}
	return nil
}

func PointerTo(elem *Type) *Type {
	return &Type{Kind: TypePointerTo, Elem: elem}
}

func RefTo(e Entry) *Type {
	return &Type{Kind: TypeRef, Ref: e}
}

func (t *Type) Class() *ClassEntry {
	if t == nil || t.Kind != TypeRef {
		return nil
	}
	c, _ := t.Ref.(*ClassEntry)
	return c
}

func (t *Type) Enum() *EnumEntry {
	if t == nil || t.Kind != TypeRef {
		return nil
	}
	e, _ := t.Ref.(*EnumEntry)
	return e
}

func (t *Type) Typedef() *TypedefEntry {
	if t == nil || t.Kind != TypeRef {
		return nil
	}
	e, _ := t.Ref.(*TypedefEntry)
	return e
}

func (t *Type) Union() *UnionEntry {
	if t == nil || t.Kind != TypeRef {
		return nil
	}
	e, _ := t.Ref.(*UnionEntry)
	return e
}

// Underlying follows typedef references.
func (t *Type) Underlying() *Type {
	for t != nil {
		td := t.Typedef()
		if td == nil {
			return t
		}
		t = td.Target
	}
	return nil
}

// StructLike reports types that cross the boundary as fixed-size buffers.
func (t *Type) StructLike() bool {
	u := t.Underlying()
	if u == nil {
		return false
	}
	switch u.Kind {
	case TypeInlineStruct, TypeInlineUnion, TypeArray, TypeInstance:
		return true
	case TypeRef:
		return u.Class() != nil || u.Union() != nil
	}
	return false
}

// ByteSize is the native size; ptr is the pointer width of the target.
func (t *Type) ByteSize(ptr int64) int64 {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case TypeBool, TypeU8, TypeI8:
		return 1
	case TypeU16, TypeI16:
		return 2
	case TypeU32, TypeI32, TypeF32:
		return 4
	case TypeU64, TypeI64, TypeF64:
		return 8
	case TypePointer, TypeBuffer, TypeCString, TypeCStringArray, TypePointerTo:
		return ptr
	case TypeFunction:
		return ptr
	case TypeInstance:
		return t.Instance.Size
	case TypeRef:
		switch e := t.Ref.(type) {
		case *ClassEntry:
			return e.Size
		case *EnumEntry:
			return e.Type.ByteSize(ptr)
		case *TypedefEntry:
			return e.Target.ByteSize(ptr)
		case *UnionEntry:
			return e.Size
		}
	}
	return t.Size
}

// Equal compares structurally; named entries compare by identity.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TypePointerTo:
		return Equal(a.Elem, b.Elem)
	case TypeArray:
		return a.Len == b.Len && Equal(a.Elem, b.Elem)
	case TypeFunction:
		if len(a.Params) != len(b.Params) || !Equal(a.Result, b.Result) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i].Type, b.Params[i].Type) {
				return false
			}
		}
		return true
	case TypeInlineStruct, TypeInlineUnion:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case TypeInstance:
		if a.Instance.Template != b.Instance.Template || len(a.Instance.Args) != len(b.Instance.Args) {
			return false
		}
		for i := range a.Instance.Args {
			if !Equal(a.Instance.Args[i], b.Instance.Args[i]) {
				return false
			}
		}
		return true
	case TypeMemberPointer:
		return a.Size == b.Size
	case TypeParam:
		return a.Param == b.Param
	case TypeRef:
		return a.Ref == b.Ref
	}
	// Scalars and opaque kinds.
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case TypePointerTo:
		return "*" + t.Elem.String()
	case TypeArray:
		return "[" + strconv.FormatInt(t.Len, 10) + "]" + t.Elem.String()
	case TypeFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.Type.String()
		}
		return "fn(" + strings.Join(parts, ", ") + ") " + t.Result.String()
	case TypeInlineStruct, TypeInlineUnion:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Type.String()
		}
		return t.Kind.String() + "{" + strings.Join(parts, "; ") + "}"
	case TypeInstance:
		parts := make([]string, len(t.Instance.Args))
		for i, a := range t.Instance.Args {
			parts[i] = a.String()
		}
		return t.Instance.Template.Name + "<" + strings.Join(parts, ", ") + ">"
	case TypeParam:
		return t.Param.Name
	case TypeRef:
		return t.Ref.Common().Name
	}
	return t.Kind.Tag()
}
