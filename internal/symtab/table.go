package symtab

import (
	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/clang"
	"github.com/cmmoran/cxxffigen/internal/logging"
	"github.com/cmmoran/cxxffigen/internal/model"
)

// Table is the symbol table of one translation unit.
type Table struct {
	Arena *model.Arena

	Classes   *Registry[*model.ClassEntry]
	Templates *Registry[*model.ClassTemplateEntry]
	Enums     *Registry[*model.EnumEntry]
	Functions *Registry[*model.FunctionEntry]
	Vars      *Registry[*model.VarEntry]
	Typedefs  *Registry[*model.TypedefEntry]
	Unions    *Registry[*model.UnionEntry]

	// Warnings lists declarations that were seen but cannot be bound.
	Warnings []string

	byCursor map[string]model.Entry
}

func New(arena *model.Arena) *Table {
	return &Table{
		Arena:     arena,
		Classes:   NewRegistry[*model.ClassEntry](model.EntryClass),
		Templates: NewRegistry[*model.ClassTemplateEntry](model.EntryClassTemplate),
		Enums:     NewRegistry[*model.EnumEntry](model.EntryEnum),
		Functions: NewRegistry[*model.FunctionEntry](model.EntryFunction),
		Vars:      NewRegistry[*model.VarEntry](model.EntryVar),
		Typedefs:  NewRegistry[*model.TypedefEntry](model.EntryTypedef),
		Unions:    NewRegistry[*model.UnionEntry](model.EntryUnion),
		byCursor:  make(map[string]model.Entry),
	}
}

// Register adds e to the arena and indexes it by its cursor. Entries created
// during resolution (inline records, placeholders) go through here too.
func (t *Table) Register(e model.Entry) {
	t.Arena.Add(e)
	if c := e.Common().Cursor; c != nil {
		t.byCursor[c.ID()] = e
	}
}

// ByCursor returns the entry registered for the declaration c.
func (t *Table) ByCursor(c clang.Cursor) model.Entry {
	if c == nil {
		return nil
	}
	return t.byCursor[c.ID()]
}

func (t *Table) warn(msg string, c clang.Cursor, name string) {
	t.Warnings = append(t.Warnings, msg+": "+name)
	logging.Named("symtab").Warn(msg, zap.String("symbol", name), zap.String("kind", c.Kind().String()))
}

type frame struct {
	cursor clang.Cursor
	prefix string
}

// Gather walks the translation unit once. Namespaces and class bodies extend
// the qualified-name prefix; extern "C" blocks are transparent.
func Gather(root clang.Cursor, arena *model.Arena) *Table {
	t := New(arena)
	log := logging.Named("symtab")

	var partials []clang.Cursor
	stack := []frame{{cursor: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var nested []frame
		for _, c := range clang.Children(f.cursor) {
			name := c.Spelling()
			qualified := f.prefix + name
			switch c.Kind() {
			case clang.CursorNamespace:
				if name == "" {
					nested = append(nested, frame{cursor: c, prefix: f.prefix})
				} else {
					nested = append(nested, frame{cursor: c, prefix: qualified + "::"})
				}
			case clang.CursorLinkageSpec, clang.CursorUnexposedDecl:
				nested = append(nested, frame{cursor: c, prefix: f.prefix})
			case clang.CursorStructDecl, clang.CursorClassDecl:
				if name == "" || !c.IsDefinition() {
					continue
				}
				if t.Classes.Has(qualified) {
					continue
				}
				e := &model.ClassEntry{Decl: model.Decl{Cursor: c, Name: qualified, File: c.File()}}
				t.Register(e)
				t.Classes.Add(e)
				nested = append(nested, frame{cursor: c, prefix: qualified + "::"})
			case clang.CursorUnionDecl:
				if name == "" || !c.IsDefinition() || t.Unions.Has(qualified) {
					continue
				}
				e := &model.UnionEntry{Decl: model.Decl{Cursor: c, Name: qualified, File: c.File()}}
				t.Register(e)
				t.Unions.Add(e)
			case clang.CursorClassTemplate:
				if name == "" {
					continue
				}
				if existing, err := t.Templates.Find(qualified); err == nil && existing.Common().Name == qualified {
					// A later definition replaces a forward declaration.
					if c.IsDefinition() && !existing.Cursor.IsDefinition() {
						existing.Cursor = c
						existing.Default.Cursor = c
						existing.Parameters = templateParameters(c)
						existing.Default.Parameters = existing.Parameters
						t.byCursor[c.ID()] = existing
					}
					continue
				}
				e := &model.ClassTemplateEntry{Decl: model.Decl{Cursor: c, Name: qualified, File: c.File()}}
				e.Parameters = templateParameters(c)
				e.Default = &model.Specialization{Cursor: c, Template: e, Parameters: e.Parameters}
				t.Register(e)
				t.Templates.Add(e)
			case clang.CursorClassTemplatePartialSpecialization:
				partials = append(partials, c)
			case clang.CursorEnumDecl:
				if name == "" || !c.IsDefinition() || t.Enums.Has(qualified) {
					continue
				}
				e := &model.EnumEntry{Decl: model.Decl{Cursor: c, Name: qualified, File: c.File()}}
				t.Register(e)
				t.Enums.Add(e)
			case clang.CursorTypedefDecl, clang.CursorTypeAliasDecl:
				if t.Typedefs.Has(qualified) {
					continue
				}
				e := &model.TypedefEntry{Decl: model.Decl{Cursor: c, Name: qualified, File: c.File()}}
				t.Register(e)
				t.Typedefs.Add(e)
			case clang.CursorFunctionDecl:
				if !c.IsDefinition() {
					continue
				}
				e := &model.FunctionEntry{Decl: model.Decl{Cursor: c, Name: qualified, File: c.File()}, Mangling: c.Mangling()}
				t.Register(e)
				t.Functions.Add(e)
			case clang.CursorVarDecl:
				if f.cursor.Kind().IsRecord() || !c.IsDefinition() || t.Vars.Has(qualified) {
					continue
				}
				e := &model.VarEntry{Decl: model.Decl{Cursor: c, Name: qualified, File: c.File()}, Mangling: c.Mangling()}
				t.Register(e)
				t.Vars.Add(e)
			case clang.CursorFunctionTemplate:
				t.warn("function templates are not supported", c, qualified)
			case clang.CursorTypeAliasTemplateDecl:
				t.warn("alias templates are not supported", c, qualified)
			}
		}
		// Reverse so siblings are visited in declaration order.
		for i := len(nested) - 1; i >= 0; i-- {
			stack = append(stack, nested[i])
		}
	}

	for _, c := range partials {
		tmpl, _ := t.ByCursor(c.SpecializedTemplate()).(*model.ClassTemplateEntry)
		if tmpl == nil {
			t.warn("partial specialization of unknown template", c, c.Spelling())
			continue
		}
		spec := &model.Specialization{
			Cursor:     c,
			Template:   tmpl,
			Index:      len(tmpl.Partials) + 1,
			Parameters: templateParameters(c),
		}
		tmpl.Partials = append(tmpl.Partials, spec)
	}

	log.Debug("gathered symbols",
		zap.Int("classes", t.Classes.Len()),
		zap.Int("templates", t.Templates.Len()),
		zap.Int("enums", t.Enums.Len()),
		zap.Int("functions", t.Functions.Len()),
		zap.Int("vars", t.Vars.Len()),
		zap.Int("typedefs", t.Typedefs.Len()),
		zap.Int("unions", t.Unions.Len()),
	)
	return t
}

func templateParameters(c clang.Cursor) []*model.TemplateParameter {
	var out []*model.TemplateParameter
	for _, k := range clang.Children(c) {
		if k.Kind() == clang.CursorTemplateTypeParameter {
			out = append(out, &model.TemplateParameter{Name: k.Spelling(), Cursor: k})
		}
	}
	return out
}
