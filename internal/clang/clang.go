// Package clang describes the query surface the generator needs from a native
// C++ AST frontend. Implementations wrap a parsed translation unit; the
// generator never parses headers itself.
package clang

// CursorKind classifies a declaration or expression node.
type CursorKind int

const (
	CursorInvalid CursorKind = iota
	CursorTranslationUnit
	CursorNamespace
	CursorLinkageSpec
	CursorUnexposedDecl
	CursorStructDecl
	CursorClassDecl
	CursorUnionDecl
	CursorEnumDecl
	CursorEnumConstantDecl
	CursorFieldDecl
	CursorFunctionDecl
	CursorVarDecl
	CursorTypedefDecl
	CursorTypeAliasDecl
	CursorClassTemplate
	CursorClassTemplatePartialSpecialization
	CursorFunctionTemplate
	CursorTypeAliasTemplateDecl
	CursorCXXMethod
	CursorConstructor
	CursorDestructor
	CursorCXXBaseSpecifier
	CursorTemplateTypeParameter
	CursorNonTypeTemplateParameter
	CursorParmDecl
	CursorDeclRefExpr
	CursorIntegerLiteral
)

var cursorKindNames = map[CursorKind]string{
	CursorInvalid:                            "Invalid",
	CursorTranslationUnit:                    "TranslationUnit",
	CursorNamespace:                          "Namespace",
	CursorLinkageSpec:                        "LinkageSpec",
	CursorUnexposedDecl:                      "UnexposedDecl",
	CursorStructDecl:                         "StructDecl",
	CursorClassDecl:                          "ClassDecl",
	CursorUnionDecl:                          "UnionDecl",
	CursorEnumDecl:                           "EnumDecl",
	CursorEnumConstantDecl:                   "EnumConstantDecl",
	CursorFieldDecl:                          "FieldDecl",
	CursorFunctionDecl:                       "FunctionDecl",
	CursorVarDecl:                            "VarDecl",
	CursorTypedefDecl:                        "TypedefDecl",
	CursorTypeAliasDecl:                      "TypeAliasDecl",
	CursorClassTemplate:                      "ClassTemplate",
	CursorClassTemplatePartialSpecialization: "ClassTemplatePartialSpecialization",
	CursorFunctionTemplate:                   "FunctionTemplate",
	CursorTypeAliasTemplateDecl:              "TypeAliasTemplateDecl",
	CursorCXXMethod:                          "CXXMethod",
	CursorConstructor:                        "Constructor",
	CursorDestructor:                         "Destructor",
	CursorCXXBaseSpecifier:                   "CXXBaseSpecifier",
	CursorTemplateTypeParameter:              "TemplateTypeParameter",
	CursorNonTypeTemplateParameter:           "NonTypeTemplateParameter",
	CursorParmDecl:                           "ParmDecl",
	CursorDeclRefExpr:                        "DeclRefExpr",
	CursorIntegerLiteral:                     "IntegerLiteral",
}

func (k CursorKind) String() string {
	if s, ok := cursorKindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// IsRecord reports whether the kind declares a class, struct or union.
func (k CursorKind) IsRecord() bool {
	return k == CursorStructDecl || k == CursorClassDecl || k == CursorUnionDecl
}

// Access is the C++ access specifier of a member.
type Access int

const (
	AccessInvalid Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

// VisitResult steers VisitChildren.
type VisitResult int

const (
	VisitBreak VisitResult = iota
	VisitContinue
	VisitRecurse
)

// Visitor is called for each child; parent is the cursor whose children are
// being enumerated (it differs from the receiver while recursing).
type Visitor func(c, parent Cursor) VisitResult

// Cursor is a node of the native AST.
type Cursor interface {
	Kind() CursorKind
	Spelling() string
	// ID is stable and unique for the declaration within one translation unit.
	ID() string
	File() string
	IsDefinition() bool
	Definition() Cursor
	Access() Access

	// IsVirtual reports a virtual method, or a virtual base for base specifiers.
	IsVirtual() bool
	IsStatic() bool
	IsConst() bool
	IsCopyConstructor() bool
	IsMoveConstructor() bool
	// IsInlined reports a function whose body is defined in the header.
	IsInlined() bool
	OverriddenCount() int

	Mangling() string
	// Manglings lists every linker symbol of a constructor or destructor.
	Manglings() []string

	Type() Type
	ResultType() Type
	NumArguments() int
	Argument(i int) Cursor

	SpecializedTemplate() Cursor
	NumTemplateArguments() int
	TemplateArgumentType(i int) Type

	TypedefUnderlyingType() Type
	EnumIntegerType() Type
	EnumValue() int64
	EnumUnsignedValue() uint64
	// OffsetOfField is measured in bits; negative when unknown.
	OffsetOfField() int64

	// VisitChildren returns true when the visitor stopped with VisitBreak.
	VisitChildren(v Visitor) bool
	Equal(other Cursor) bool
}

// TypeKind classifies a type.
type TypeKind int

const (
	TypeInvalid TypeKind = iota
	TypeUnexposed
	TypeVoid
	TypeBool
	TypeCharU
	TypeUChar
	TypeChar16
	TypeChar32
	TypeUShort
	TypeUInt
	TypeULong
	TypeULongLong
	TypeCharS
	TypeSChar
	TypeWChar
	TypeShort
	TypeInt
	TypeLong
	TypeLongLong
	TypeFloat
	TypeDouble
	TypeLongDouble
	TypeNullPtr
	TypePointer
	TypeLValueReference
	TypeRValueReference
	TypeRecord
	TypeEnum
	TypeTypedef
	TypeElaborated
	TypeFunctionProto
	TypeFunctionNoProto
	TypeConstantArray
	TypeIncompleteArray
	TypeMemberPointer
)

var typeKindNames = map[TypeKind]string{
	TypeInvalid:         "Invalid",
	TypeUnexposed:       "Unexposed",
	TypeVoid:            "Void",
	TypeBool:            "Bool",
	TypeCharU:           "Char_U",
	TypeUChar:           "UChar",
	TypeChar16:          "Char16",
	TypeChar32:          "Char32",
	TypeUShort:          "UShort",
	TypeUInt:            "UInt",
	TypeULong:           "ULong",
	TypeULongLong:       "ULongLong",
	TypeCharS:           "Char_S",
	TypeSChar:           "SChar",
	TypeWChar:           "WChar",
	TypeShort:           "Short",
	TypeInt:             "Int",
	TypeLong:            "Long",
	TypeLongLong:        "LongLong",
	TypeFloat:           "Float",
	TypeDouble:          "Double",
	TypeLongDouble:      "LongDouble",
	TypeNullPtr:         "NullPtr",
	TypePointer:         "Pointer",
	TypeLValueReference: "LValueReference",
	TypeRValueReference: "RValueReference",
	TypeRecord:          "Record",
	TypeEnum:            "Enum",
	TypeTypedef:         "Typedef",
	TypeElaborated:      "Elaborated",
	TypeFunctionProto:   "FunctionProto",
	TypeFunctionNoProto: "FunctionNoProto",
	TypeConstantArray:   "ConstantArray",
	TypeIncompleteArray: "IncompleteArray",
	TypeMemberPointer:   "MemberPointer",
}

func (k TypeKind) String() string {
	if s, ok := typeKindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// IsUnsignedInteger covers every unsigned builtin, bool included.
func (k TypeKind) IsUnsignedInteger() bool {
	switch k {
	case TypeBool, TypeCharU, TypeUChar, TypeChar16, TypeChar32, TypeUShort, TypeUInt, TypeULong, TypeULongLong:
		return true
	}
	return false
}

func (k TypeKind) IsSignedInteger() bool {
	switch k {
	case TypeCharS, TypeSChar, TypeWChar, TypeShort, TypeInt, TypeLong, TypeLongLong:
		return true
	}
	return false
}

// IsPlainChar is true for `char` only, not for its signed/unsigned spellings.
func (k TypeKind) IsPlainChar() bool {
	return k == TypeCharS || k == TypeCharU
}

// Type is a type reference of the native AST.
type Type interface {
	Kind() TypeKind
	Spelling() string
	Canonical() Type
	Pointee() Type
	Element() Type
	ArraySize() int64
	NumArgs() int
	Arg(i int) Type
	Result() Type
	NumTemplateArgs() int
	TemplateArg(i int) Type
	Declaration() Cursor
	NamedType() Type
	// SizeOf and AlignOf are in bytes; negative when incomplete or dependent.
	SizeOf() int64
	AlignOf() int64
	IsConst() bool
	IsPOD() bool
}

// Children collects the direct children of c.
func Children(c Cursor) []Cursor {
	var out []Cursor
	c.VisitChildren(func(child, _ Cursor) VisitResult {
		out = append(out, child)
		return VisitContinue
	})
	return out
}
