package bindgen

import (
	"fmt"
	"path/filepath"
	"strings"
)

type ImportKind string

const (
	ImportClass    ImportKind = "class"
	ImportFunction ImportKind = "function"
	ImportVar      ImportKind = "var"
)

// ImportSpec requests bindings for one class, function or global variable.
// Constructors, Destructors and Methods only apply to classes.
type ImportSpec struct {
	Kind         ImportKind
	Name         string
	Constructors Filter
	Destructors  bool
	Methods      Filter
}

func (s ImportSpec) String() string {
	if s.Kind != ImportClass {
		return string(s.Kind) + " " + s.Name
	}
	return fmt.Sprintf("class %s{constructors: %s, destructors: %t, methods: %s}", s.Name, s.Constructors, s.Destructors, s.Methods)
}

// ImportConfig is the decoded form of one `imports` entry.
// Constructors and Methods hold "all", "none" or a list of strings.
type ImportConfig struct {
	Kind         string `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty" mapstructure:"kind,omitempty"`
	Name         string `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
	Constructors any    `json:"constructors,omitempty" yaml:"constructors,omitempty" toml:"constructors,omitempty" mapstructure:"constructors,omitempty"`
	Destructors  bool   `json:"destructors,omitempty" yaml:"destructors,omitempty" toml:"destructors,omitempty" mapstructure:"destructors,omitempty"`
	Methods      any    `json:"methods,omitempty" yaml:"methods,omitempty" toml:"methods,omitempty" mapstructure:"methods,omitempty"`
}

// Spec converts the decoded entry; an empty kind means class.
func (c ImportConfig) Spec() (ImportSpec, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ImportSpec{}, fmt.Errorf("%w: import without name", ErrInvalidConfig)
	}
	kind := ImportKind(strings.ToLower(strings.TrimSpace(c.Kind)))
	switch kind {
	case "", ImportClass:
		ctors, err := ParseFilter(c.Constructors, true)
		if err != nil {
			return ImportSpec{}, fmt.Errorf("import %s constructors: %w", name, err)
		}
		methods, err := ParseFilter(c.Methods, false)
		if err != nil {
			return ImportSpec{}, fmt.Errorf("import %s methods: %w", name, err)
		}
		return ImportSpec{Kind: ImportClass, Name: name, Constructors: ctors, Destructors: c.Destructors, Methods: methods}, nil
	case ImportFunction, ImportVar:
		return ImportSpec{Kind: kind, Name: name}, nil
	}
	return ImportSpec{}, fmt.Errorf("%w: import %s has unknown kind %q", ErrInvalidConfig, name, c.Kind)
}

// Options control one generation run.
//
// BasePath     – headers below this path are project units, others are system units
// OutputPath   – directory that receives the generated package
// PackageName  – Go package name of the generated files (defaults to the output dir name)
// Files        – headers aggregated into the translation unit
// Include      – include directories handed to the frontend
// AST          – path of the AST snapshot produced by the frontend
// Imports      – ordered import requests
type Options struct {
	BasePath    string         `json:"base_path,omitempty" yaml:"base_path,omitempty" toml:"base_path,omitempty" mapstructure:"base_path,omitempty"`
	OutputPath  string         `json:"output_path,omitempty" yaml:"output_path,omitempty" toml:"output_path,omitempty" mapstructure:"output_path,omitempty"`
	PackageName string         `json:"package_name,omitempty" yaml:"package_name,omitempty" toml:"package_name,omitempty" mapstructure:"package_name,omitempty"`
	Files       []string       `json:"files,omitempty" yaml:"files,omitempty" toml:"files,omitempty" mapstructure:"files,omitempty"`
	Include     []string       `json:"include,omitempty" yaml:"include,omitempty" toml:"include,omitempty" mapstructure:"include,omitempty"`
	AST         string         `json:"ast,omitempty" yaml:"ast,omitempty" toml:"ast,omitempty" mapstructure:"ast,omitempty"`
	ImportList  []ImportConfig `json:"imports,omitempty" yaml:"imports,omitempty" toml:"imports,omitempty" mapstructure:"imports,omitempty"`
	Imports     []ImportSpec   `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
}

func NewOptions() *Options {
	return &Options{
		BasePath:   ".",
		OutputPath: "bindings",
	}
}

// Normalize converts ImportList into Imports and cleans up paths.
func (o *Options) Normalize() error {
	for _, c := range o.ImportList {
		spec, err := c.Spec()
		if err != nil {
			return err
		}
		o.Imports = append(o.Imports, spec)
	}
	o.ImportList = nil
	if o.BasePath == "" {
		o.BasePath = "."
	}
	o.BasePath, _ = filepath.Abs(o.BasePath)
	if len(o.OutputPath) == 0 {
		o.OutputPath = "bindings"
	}
	o.OutputPath, _ = filepath.Abs(o.OutputPath)
	if o.AST != "" {
		o.AST = filepath.Clean(o.AST)
	}
	if o.PackageName == "" {
		o.PackageName = packageName(filepath.Base(o.OutputPath))
	}
	return nil
}

// Validate reports the first missing or malformed setting.
func (o *Options) Validate() error {
	if o.AST == "" {
		return fmt.Errorf("%w: ast snapshot path is required", ErrInvalidConfig)
	}
	if len(o.Imports) == 0 {
		return fmt.Errorf("%w: no imports configured", ErrInvalidConfig)
	}
	if o.PackageName != packageName(o.PackageName) {
		return fmt.Errorf("%w: package name %q is not a Go identifier", ErrInvalidConfig, o.PackageName)
	}
	for _, spec := range o.Imports {
		if spec.Name == "" {
			return fmt.Errorf("%w: import without name", ErrInvalidConfig)
		}
	}
	return nil
}

func packageName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		return "bindings"
	}
	return b.String()
}

// functional option pattern ---------------------------------------------------

type Option func(*Options)

func WithBasePath(p string) Option      { return func(o *Options) { o.BasePath = p } }
func WithOutputPath(p string) Option    { return func(o *Options) { o.OutputPath = p } }
func WithPackageName(n string) Option   { return func(o *Options) { o.PackageName = n } }
func WithAST(p string) Option           { return func(o *Options) { o.AST = p } }
func WithFiles(files ...string) Option  { return func(o *Options) { o.Files = append(o.Files, files...) } }
func WithInclude(dirs ...string) Option { return func(o *Options) { o.Include = append(o.Include, dirs...) } }
func WithImports(specs ...ImportSpec) Option {
	return func(o *Options) { o.Imports = append(o.Imports, specs...) }
}
func WithClass(name string, constructors Filter, destructors bool, methods Filter) Option {
	return WithImports(ImportSpec{Kind: ImportClass, Name: name, Constructors: constructors, Destructors: destructors, Methods: methods})
}
func WithFunction(name string) Option {
	return WithImports(ImportSpec{Kind: ImportFunction, Name: name})
}
func WithVar(name string) Option {
	return WithImports(ImportSpec{Kind: ImportVar, Name: name})
}
