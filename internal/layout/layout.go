// Package layout decides how native values cross the call boundary: as
// fixed-size buffers, as pointers or as plain scalars.
package layout

import (
	"fmt"
	"math/bits"
	"slices"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/logging"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// ---------------------------------------------------------------------------
// usage
// ---------------------------------------------------------------------------

// CollectUsage records, for every class, whether any call site passes it by
// value or only behind a pointer. It must see the whole import graph before
// Finalize runs.
func CollectUsage(entries []model.Entry) {
	for _, e := range entries {
		switch v := e.(type) {
		case *model.FunctionEntry:
			markSignature(v.Parameters, v.Result)
		case *model.VarEntry:
			mark(v.Type, false)
		case *model.ClassEntry:
			for _, m := range v.Constructors {
				markSignature(m.Parameters, nil)
			}
			for _, m := range v.Methods {
				markSignature(m.Parameters, m.Result)
			}
		case *model.TypedefEntry:
			u := v.Target.Underlying()
			if u != nil && u.Kind == model.TypePointerTo {
				u = u.Elem
			}
			if u != nil && u.Kind == model.TypeFunction {
				markSignature(u.Params, u.Result)
			}
		}
	}
}

func markSignature(params []*model.Parameter, result *model.Type) {
	for _, p := range params {
		mark(p.Type, false)
	}
	mark(result, false)
}

func mark(t *model.Type, indirect bool) {
	u := t.Underlying()
	if u == nil {
		return
	}
	switch u.Kind {
	case model.TypeRef:
		if c := u.Class(); c != nil {
			if indirect {
				c.Usage.AsPointer = true
			} else {
				c.Usage.AsBuffer = true
			}
		}
	case model.TypePointerTo:
		mark(u.Elem, true)
	case model.TypeFunction:
		markSignature(u.Params, u.Result)
	}
}

// Finalize fixes the representation of every class: pointer form iff it was
// never seen by value.
func Finalize(entries []model.Entry) {
	log := logging.Named("layout")
	for _, e := range entries {
		c, ok := e.(*model.ClassEntry)
		if !ok {
			continue
		}
		c.Usage.Pointer = !c.Usage.AsBuffer && c.Usage.AsPointer
		if c.Usage.Pointer {
			log.Debug("pointer form", zap.String("class", c.Name))
		}
	}
}

// ---------------------------------------------------------------------------
// records
// ---------------------------------------------------------------------------

// Slot is one member of a wire struct.
type Slot struct {
	Name string
	// Type is nil for the vtable pointer.
	Type    *model.Type
	VTable  bool
	Base    bool
	Virtual bool
	Offset  int64
}

// Record is the wire struct of a class or template body.
type Record struct {
	Slots   []Slot
	Size    int64
	Align   int64
	Warning string
}

// Class lays out c. Bases come first in declaration order, then fields, then
// virtual bases; a vtable pointer leads when c introduces virtual methods.
func Class(c *model.ClassEntry) *Record {
	r := body(c.Name, c.Dynamic, c.Bases, c.VirtualBases, c.Fields)
	r.Size, r.Align = c.Size, c.Align
	return r
}

// Specialization lays out a template body; sizes depend on the arguments.
func Specialization(s *model.Specialization) *Record {
	return body(s.Template.Name, s.Dynamic, s.Bases, s.VirtualBases, s.Fields)
}

func body(name string, dynamic bool, bases, vbases []*model.Base, fields []*model.Field) *Record {
	r := &Record{}
	if n := len(bases) + len(vbases); n > 1 {
		r.Warning = fmt.Sprintf("%s: %s has %d bases", bindgen.ErrMultipleInheritance, name, n)
		logging.Named("layout").Warn("multiple inheritance", zap.String("class", name), zap.Int("bases", n))
	}
	if dynamic && !slices.ContainsFunc(slices.Concat(bases, vbases), func(b *model.Base) bool { return ownsVTable(b.Type) }) {
		r.Slots = append(r.Slots, Slot{Name: "vtable", VTable: true})
	}
	for i, b := range bases {
		r.Slots = append(r.Slots, Slot{Name: baseName(i), Type: b.Type, Base: true, Offset: -1})
	}
	for _, f := range fields {
		r.Slots = append(r.Slots, Slot{Name: f.Name, Type: f.Type, Offset: f.Offset})
	}
	for i, b := range vbases {
		r.Slots = append(r.Slots, Slot{Name: "virtualBase" + strconv.Itoa(i), Type: b.Type, Base: true, Virtual: true, Offset: -1})
	}
	return r
}

func baseName(i int) string {
	if i == 0 {
		return "base"
	}
	return "base" + strconv.Itoa(i)
}

// ownsVTable reports whether t, a base type, already carries a vtable slot.
func ownsVTable(t *model.Type) bool {
	u := t.Underlying()
	if u == nil {
		return false
	}
	var (
		dynamic bool
		bases   []*model.Base
	)
	switch {
	case u.Class() != nil:
		c := u.Class()
		dynamic, bases = c.Dynamic, slices.Concat(c.Bases, c.VirtualBases)
	case u.Kind == model.TypeInstance && u.Instance.Specialization != nil:
		s := u.Instance.Specialization
		dynamic, bases = s.Dynamic, slices.Concat(s.Bases, s.VirtualBases)
	default:
		return false
	}
	return dynamic || slices.ContainsFunc(bases, func(b *model.Base) bool { return ownsVTable(b.Type) })
}

// PassedInRegisters reports whether a struct-like value is returned by value.
// Classes with a user-declared copy, move or destructor, or a vtable, are
// returned through memory.
func PassedInRegisters(t *model.Type) bool {
	u := t.Underlying()
	if u == nil {
		return true
	}
	switch {
	case u.Class() != nil:
		c := u.Class()
		if c.NonTrivial || c.Dynamic || c.Opaque {
			return false
		}
		for _, b := range slices.Concat(c.Bases, c.VirtualBases) {
			if b.Virtual || !PassedInRegisters(b.Type) {
				return false
			}
		}
	case u.Kind == model.TypeInstance:
		if s := u.Instance.Specialization; s != nil {
			if s.Dynamic || len(s.VirtualBases) > 0 {
				return false
			}
			for _, b := range s.Bases {
				if !PassedInRegisters(b.Type) {
					return false
				}
			}
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// parameters
// ---------------------------------------------------------------------------

type Pass int

const (
	// PassValue hands the value itself over: scalars, enums, pointers and
	// register-sized records.
	PassValue Pass = iota
	// PassBuffer hands over the address of a caller-owned buffer of Type.
	PassBuffer
	// PassPointer hands over an opaque pointer to Type.
	PassPointer
)

func (p Pass) String() string {
	switch p {
	case PassBuffer:
		return "buffer"
	case PassPointer:
		return "pointer"
	}
	return "value"
}

// Param classifies a parameter type. The returned type is the one the
// buffer or pointer refers to, t itself for PassValue.
func Param(t *model.Type) (Pass, *model.Type) {
	u := t.Underlying()
	if u == nil {
		return PassValue, t
	}
	switch {
	case u.Kind == model.TypePointerTo:
		elem := u.Elem
		if c := elem.Underlying().Class(); c != nil && c.Usage.Pointer {
			return PassPointer, elem
		}
		if eu := elem.Underlying(); eu != nil && eu.Kind == model.TypeFunction {
			return PassValue, t
		}
		return PassBuffer, elem
	case t.StructLike():
		if PassedInRegisters(t) {
			return PassValue, t
		}
		return PassBuffer, t
	}
	return PassValue, t
}

// ReturnsThroughBuffer reports whether a result is written into a leading
// buffer parameter instead of being returned.
func ReturnsThroughBuffer(result *model.Type) bool {
	return result.StructLike() && !PassedInRegisters(result)
}

// ---------------------------------------------------------------------------
// unions and enums
// ---------------------------------------------------------------------------

// Collapse removes structurally equal alternatives and orders the rest
// largest first. The size is that of the largest alternative.
func Collapse(alternatives []*model.Type, ptr int64) ([]*model.Type, int64) {
	var out []*model.Type
	for _, a := range alternatives {
		if !slices.ContainsFunc(out, func(b *model.Type) bool { return model.Equal(a, b) }) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ByteSize(ptr) > out[j].ByteSize(ptr)
	})
	if len(out) == 0 {
		return nil, 0
	}
	return out, out[0].ByteSize(ptr)
}

// Literal is the rendered value of one enum constant.
type Literal struct {
	Name string
	// Ref is set when the constant repeats another enumerator.
	Ref   string
	Value string
}

// EnumLiterals renders constant values, in hexadecimal for flag-like sets.
func EnumLiterals(e *model.EnumEntry) []Literal {
	hex := len(e.Constants) >= 3
	small := len(e.Constants) == 3
	width := 1
	for _, k := range e.Constants {
		if k.Ref != "" {
			small = false
			continue
		}
		v := uint64(k.Value)
		if !k.Unsigned && k.Value < 0 {
			hex = false
			break
		}
		if v != 0 && bits.OnesCount64(v) != 1 && v < 0x1000 {
			hex = false
			break
		}
		if v&0b11 != v {
			small = false
		}
		width = max(width, len(strconv.FormatUint(v, 16)))
	}
	if small {
		hex = false
	}
	out := make([]Literal, len(e.Constants))
	for i, k := range e.Constants {
		l := Literal{Name: k.Name, Ref: k.Ref}
		switch {
		case k.Ref != "":
		case hex:
			s := strconv.FormatUint(uint64(k.Value), 16)
			for len(s) < width {
				s = "0" + s
			}
			l.Value = "0x" + s
		case k.Unsigned:
			l.Value = strconv.FormatUint(uint64(k.Value), 10)
		default:
			l.Value = strconv.FormatInt(k.Value, 10)
		}
		out[i] = l
	}
	return out
}
