package model

import (
	"github.com/cmmoran/cxxffigen/internal/clang"
)

// EntryID addresses an entry in its Arena; equal IDs mean the same declaration.
type EntryID int

type EntryKind int

const (
	EntryClass EntryKind = iota
	EntryClassTemplate
	EntryEnum
	EntryFunction
	EntryVar
	EntryTypedef
	EntryUnion
)

func (k EntryKind) String() string {
	switch k {
	case EntryClass:
		return "class"
	case EntryClassTemplate:
		return "class template"
	case EntryEnum:
		return "enum"
	case EntryFunction:
		return "function"
	case EntryVar:
		return "var"
	case EntryTypedef:
		return "typedef"
	case EntryUnion:
		return "union"
	}
	return "unknown"
}

// Entry is a registered, addressable native declaration.
type Entry interface {
	Common() *Decl
	Kind() EntryKind
}

// Decl is the shape shared by every entry.
type Decl struct {
	// Identity -------------------------------------------------------------
	ID     EntryID
	Cursor clang.Cursor
	Name   string // qualified, `::` separated
	File   string

	// Used flips once, before the entry's children are expanded.
	Used bool
}

func (d *Decl) Common() *Decl { return d }

// ShortName is the last component of the qualified name.
func (d *Decl) ShortName() string {
	for i := len(d.Name) - 1; i > 0; i-- {
		if d.Name[i] == ':' && d.Name[i-1] == ':' {
			return d.Name[i+1:]
		}
	}
	return d.Name
}

// Arena owns every entry of one run.
type Arena struct {
	entries []Entry
}

func NewArena() *Arena {
	return &Arena{}
}

// Add assigns e the next ID.
func (a *Arena) Add(e Entry) EntryID {
	id := EntryID(len(a.entries))
	e.Common().ID = id
	a.entries = append(a.entries, e)
	return id
}

func (a *Arena) Get(id EntryID) Entry {
	if id < 0 || int(id) >= len(a.entries) {
		return nil
	}
	return a.entries[id]
}

func (a *Arena) Len() int {
	return len(a.entries)
}

// All returns the entries in ID order.
func (a *Arena) All() []Entry {
	return a.entries
}

// Used returns the entries whose Used flag is set, in ID order.
func (a *Arena) Used() []Entry {
	out := make([]Entry, 0, len(a.entries))
	for _, e := range a.entries {
		if e.Common().Used {
			out = append(out, e)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// members
// ---------------------------------------------------------------------------

type Field struct {
	Name string // empty for anonymous members
	Type *Type
	// Advisory layout metadata in bytes.
	Offset int64
	Size   int64
	Align  int64
}

type Parameter struct {
	Name string
	Type *Type
}

type Base struct {
	Type    *Type // class or template instance
	Virtual bool
}

// Method covers methods, constructors and destructors.
type Method struct {
	Name      string // source spelling
	Cursor    clang.Cursor
	Mangling  string
	Manglings []string

	Parameters []*Parameter
	Result     *Type // nil is void

	Static  bool
	Const   bool
	Virtual bool
	Copy    bool
	Move    bool

	// Export is the disambiguated binding name; empty when the method is dropped.
	Export string
}

// Usage accumulates how a class crosses the call boundary.
type Usage struct {
	AsBuffer  bool
	AsPointer bool
	// Pointer is the finalized representation: true iff the class was seen
	// only behind pointers.
	Pointer bool
}

// ---------------------------------------------------------------------------
// entries
// ---------------------------------------------------------------------------

type ClassEntry struct {
	Decl

	Fields       []*Field
	Bases        []*Base
	VirtualBases []*Base
	Constructors []*Method
	Destructor   *Method
	Methods      []*Method

	Size  int64
	Align int64
	// Opaque marks a forward-declared class of unknown size.
	Opaque bool
	// Dynamic reports a class that declares a virtual method itself.
	Dynamic bool
	// NonTrivial reports a user-declared copy or move constructor or destructor.
	NonTrivial bool
	Usage      Usage
}

func (*ClassEntry) Kind() EntryKind { return EntryClass }

type TemplateParameter struct {
	Name   string
	Cursor clang.Cursor
}

// Specialization is the body of a class template: the primary template
// (Index 0) or one partial specialization (Index 1..n).
type Specialization struct {
	Cursor   clang.Cursor
	Template *ClassTemplateEntry
	Index    int

	Parameters []*TemplateParameter
	// Application is the argument pattern of a partial specialization,
	// expressed in its own parameters.
	Application []*Type

	Fields       []*Field
	Bases        []*Base
	VirtualBases []*Base
	Dynamic      bool
	Used         bool
}

func (s *Specialization) Partial() bool {
	return s.Index > 0
}

type ClassTemplateEntry struct {
	Decl

	Parameters []*TemplateParameter
	Default    *Specialization
	Partials   []*Specialization
}

func (*ClassTemplateEntry) Kind() EntryKind { return EntryClassTemplate }

type Constant struct {
	Name     string
	Value    int64
	Unsigned bool
	// Ref names the enumerator this constant was initialized from.
	Ref string
}

type EnumEntry struct {
	Decl
	// Type is the underlying integer type.
	Type      *Type
	Constants []*Constant
}

func (*EnumEntry) Kind() EntryKind { return EntryEnum }

type FunctionEntry struct {
	Decl
	Mangling   string
	Parameters []*Parameter
	Result     *Type
	Export     string
}

func (*FunctionEntry) Kind() EntryKind { return EntryFunction }

type VarEntry struct {
	Decl
	Mangling string
	Type     *Type
	Export   string
}

func (*VarEntry) Kind() EntryKind { return EntryVar }

type TypedefEntry struct {
	Decl
	Target *Type
	// Resolved is set once Target has been computed; a nil Target is void.
	Resolved bool
	// Reexport marks `using X = NS::X` aliases that add nothing new.
	Reexport bool
}

func (*TypedefEntry) Kind() EntryKind { return EntryTypedef }

type UnionEntry struct {
	Decl
	Alternatives []*Type
	Size         int64
	Align        int64
}

func (*UnionEntry) Kind() EntryKind { return EntryUnion }
