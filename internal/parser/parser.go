package parser

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/clang"
	"github.com/cmmoran/cxxffigen/internal/logging"
	"github.com/cmmoran/cxxffigen/internal/model"
	"github.com/cmmoran/cxxffigen/internal/symtab"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// Parser holds state/results of a parse run.
type Parser struct {
	Opts  *bindgen.Options
	Table *symtab.Table
	Arena *model.Arena

	// PointerSize is measured from the first pointer type resolved.
	PointerSize int64
	Warnings    []string

	log *zap.Logger

	// interning: named entries by ID, anonymous records by cursor, and
	// structural types by the identity of their children.
	refs     map[model.EntryID]*model.Type
	inline   map[string]*model.Type
	interned map[string]*model.Type
	params   map[string]*model.Type

	opaque   map[string]*model.ClassEntry
	prepared map[model.EntryID]bool
	typedefs map[model.EntryID]bool
	tasks    []*task

	// depth counts the nested resolveType frames of the type being resolved.
	depth int
}

// MaxNesting bounds how deeply one type expression may nest pointers,
// template arguments and anonymous records. Declarations reached through a
// type are expanded from the task stack and do not count.
const MaxNesting = 128

// New gathers the symbol table of the translation unit rooted at root.
func New(root clang.Cursor, opts ...bindgen.Option) *Parser {
	o := bindgen.NewOptions()
	for _, fn := range opts {
		fn(o)
	}
	return NewWithOpts(root, o)
}

func NewWithOpts(root clang.Cursor, opts *bindgen.Options) *Parser {
	arena := model.NewArena()
	p := &Parser{
		Opts:        opts,
		Arena:       arena,
		Table:       symtab.Gather(root, arena),
		PointerSize: 8,
		log:         logging.Named("parser"),
		refs:        make(map[model.EntryID]*model.Type),
		inline:      make(map[string]*model.Type),
		interned:    make(map[string]*model.Type),
		params:      make(map[string]*model.Type),
		opaque:      make(map[string]*model.ClassEntry),
		prepared:    make(map[model.EntryID]bool),
		typedefs:    make(map[model.EntryID]bool),
	}
	p.Warnings = append(p.Warnings, p.Table.Warnings...)
	for _, tmpl := range p.Table.Templates.All() {
		p.indexParameters(tmpl.Default)
		for _, spec := range tmpl.Partials {
			p.indexParameters(spec)
		}
	}
	return p
}

func (p *Parser) indexParameters(spec *model.Specialization) {
	for i, param := range spec.Parameters {
		if param.Cursor == nil {
			continue
		}
		p.params[param.Cursor.ID()] = &model.Type{Kind: model.TypeParam, Param: param, Index: i}
	}
}

// Parse expands every configured import, in order. Any error aborts the run.
func (p *Parser) Parse() error {
	for _, spec := range p.Opts.Imports {
		if err := p.Import(spec); err != nil {
			return err
		}
	}
	p.log.Debug("parse complete", zap.Int("entries", p.Arena.Len()), zap.Int("used", len(p.Arena.Used())))
	return nil
}

// Import expands one import request and everything it reaches.
func (p *Parser) Import(spec bindgen.ImportSpec) error {
	var err error
	switch spec.Kind {
	case bindgen.ImportClass, "":
		err = p.importClass(spec)
	case bindgen.ImportFunction:
		err = p.importFunction(spec.Name)
	case bindgen.ImportVar:
		err = p.importVar(spec.Name)
	default:
		err = fmt.Errorf("%w: unknown import kind %q", bindgen.ErrInvalidConfig, spec.Kind)
	}
	if err == nil {
		err = p.drain()
	}
	if err != nil {
		p.tasks = nil
		return bindgen.Wrap(err, "import "+spec.Name)
	}
	return nil
}

func (p *Parser) warn(msg string, fields ...zap.Field) {
	p.log.Warn(msg, fields...)
	line := msg
	for _, f := range fields {
		if f.Type == zapStringType {
			line += " " + f.Key + "=" + f.String
		}
	}
	p.Warnings = append(p.Warnings, line)
}

var zapStringType = zap.String("", "").Type
