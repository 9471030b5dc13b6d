// Package astfile is a native-AST frontend backed by a YAML snapshot of the
// declarations of a translation unit. Type spellings are parsed and bound to
// their declarations at load time; record layout follows Itanium rules
// (primary base first, natural alignment, vtable pointer at offset zero).
package astfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cmmoran/cxxffigen/internal/clang"
)

// Document is the on-disk snapshot format.
type Document struct {
	File   string  `yaml:"file"`
	Target Target  `yaml:"target,omitempty"`
	Decls  []*Decl `yaml:"decls"`
}

// Target describes the data model; zero values mean LP64.
type Target struct {
	PointerSize int64 `yaml:"pointer_size,omitempty"`
	LongSize    int64 `yaml:"long_size,omitempty"`
}

// Decl is one declaration or member.
//
// Kinds: namespace, extern-c, struct, class, union, enum, constant, typedef,
// using, function, var, struct-template, class-template,
// partial-specialization, function-template, alias-template, field, method,
// constructor, destructor, base.
type Decl struct {
	Kind           string   `yaml:"kind"`
	Name           string   `yaml:"name,omitempty"`
	File           string   `yaml:"file,omitempty"`
	Type           string   `yaml:"type,omitempty"`
	Result         string   `yaml:"result,omitempty"`
	Params         []Param  `yaml:"params,omitempty"`
	Mangling       string   `yaml:"mangling,omitempty"`
	Manglings      []string `yaml:"manglings,omitempty"`
	Access         string   `yaml:"access,omitempty"`
	Tag            string   `yaml:"tag,omitempty"`
	Virtual        bool     `yaml:"virtual,omitempty"`
	Static         bool     `yaml:"static,omitempty"`
	Const          bool     `yaml:"const,omitempty"`
	Inline         bool     `yaml:"inline,omitempty"`
	Override       bool     `yaml:"override,omitempty"`
	Copy           bool     `yaml:"copy,omitempty"`
	Move           bool     `yaml:"move,omitempty"`
	Forward        bool     `yaml:"forward,omitempty"`
	Template       string   `yaml:"template,omitempty"`
	Args           []string `yaml:"args,omitempty"`
	TemplateParams []string `yaml:"template_params,omitempty"`
	Value          *int64   `yaml:"value,omitempty"`
	Ref            string   `yaml:"ref,omitempty"`
	Size           int64    `yaml:"size,omitempty"`
	Align          int64    `yaml:"align,omitempty"`
	Decls          []*Decl  `yaml:"decls,omitempty"`
}

// Param is a function parameter.
type Param struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type"`
}

// Load reads and binds the snapshot at path.
func Load(path string) (*TranslationUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ast snapshot: %w", err)
	}
	return Parse(data)
}

// Parse decodes a snapshot and binds every type spelling to its declaration.
func Parse(data []byte) (*TranslationUnit, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal ast snapshot: %w", err)
	}
	return New(&doc)
}

// New binds an in-memory document.
func New(doc *Document) (*TranslationUnit, error) {
	tu := &TranslationUnit{
		doc:      doc,
		ptrSize:  8,
		longSize: 8,
		specs:    make(map[string]*cursor),
		layouts:  make(map[*cursor]*recordLayout),
		inLayout: make(map[*cursor]bool),
	}
	if doc.Target.PointerSize > 0 {
		tu.ptrSize = doc.Target.PointerSize
	}
	if doc.Target.LongSize > 0 {
		tu.longSize = doc.Target.LongSize
	}
	tu.root = &cursor{tu: tu, kind: clang.CursorTranslationUnit, file: doc.File, id: "tu"}
	for _, d := range doc.Decls {
		if _, err := tu.build(tu.root, d); err != nil {
			return nil, err
		}
	}
	if err := tu.bind(tu.root); err != nil {
		return nil, err
	}
	if err := tu.layoutAll(tu.root); err != nil {
		return nil, err
	}
	return tu, nil
}

// Cursor returns the translation unit cursor.
func (tu *TranslationUnit) Cursor() clang.Cursor {
	return tu.root
}
