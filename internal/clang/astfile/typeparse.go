package astfile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cmmoran/cxxffigen/internal/clang"
)

type exprKind int

const (
	exprBuiltin exprKind = iota
	exprNamed
	exprPointer
	exprLRef
	exprRRef
	exprArray
	exprIncompleteArray
	exprFunc
	exprMemberPointer
)

// typeExpr is a parsed C++ type spelling, not yet bound to declarations.
type typeExpr struct {
	kind    exprKind
	builtin clang.TypeKind
	// exprNamed: qualified name parts; args belong to the last part.
	names    []string
	args     []*typeExpr
	absolute bool

	elem   *typeExpr // pointer, reference, array, member pointer target
	length int64
	params []*typeExpr
	result *typeExpr
	class  *typeExpr // member pointer owner
	konst  bool
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		r := rune(s[i])
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(s) && (s[j] == '_' || unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j]))) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		case unicode.IsDigit(r):
			j := i
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == 'x' || s[j] == 'X' || strings.ContainsRune("abcdefABCDEFuUlL", rune(s[j]))) {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case strings.HasPrefix(s[i:], "::"):
			toks = append(toks, token{tokPunct, "::"})
			i += 2
		case strings.HasPrefix(s[i:], "&&"):
			toks = append(toks, token{tokPunct, "&&"})
			i += 2
		case strings.HasPrefix(s[i:], "..."):
			toks = append(toks, token{tokPunct, "..."})
			i += 3
		case strings.ContainsRune("*&<>,()[]", r):
			toks = append(toks, token{tokPunct, string(r)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

type typeParser struct {
	src  string
	toks []token
	pos  int
}

// parseTypeSpelling parses spellings such as `const char*`, `geo::Vec3&`,
// `int[4]`, `void (*)(int, Node*)`, `Box<int*>` or `int Foo::*`.
func parseTypeSpelling(s string) (*typeExpr, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, fmt.Errorf("parse type %q: %w", s, err)
	}
	p := &typeParser{src: s, toks: toks}
	e, err := p.parseType()
	if err != nil {
		return nil, fmt.Errorf("parse type %q: %w", s, err)
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("parse type %q: trailing %q", s, p.peek().text)
	}
	return e, nil
}

func (p *typeParser) peek() token { return p.toks[p.pos] }

func (p *typeParser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos+n]
}

func (p *typeParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *typeParser) accept(text string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) expect(text string) error {
	if !p.accept(text) {
		return fmt.Errorf("expected %q, got %q", text, p.peek().text)
	}
	return nil
}

func (p *typeParser) skipQualifiers() bool {
	konst := false
	for {
		t := p.peek()
		if t.kind != tokIdent {
			return konst
		}
		switch t.text {
		case "const":
			konst = true
		case "volatile", "struct", "class", "union", "enum", "typename":
		default:
			return konst
		}
		p.pos++
	}
}

func (p *typeParser) parseType() (*typeExpr, error) {
	konst := p.skipQualifiers()
	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	if p.skipQualifiers() {
		konst = true
	}
	base.konst = konst
	return p.parseDeclarator(base)
}

var builtinWords = map[string]bool{
	"void": true, "bool": true, "char": true, "short": true, "int": true, "long": true,
	"signed": true, "unsigned": true, "float": true, "double": true, "wchar_t": true,
	"char16_t": true, "char32_t": true,
}

func (p *typeParser) parseBase() (*typeExpr, error) {
	t := p.peek()
	if t.kind == tokIdent && builtinWords[t.text] {
		var words []string
		for p.peek().kind == tokIdent && (builtinWords[p.peek().text] || p.peek().text == "const") {
			w := p.next().text
			if w != "const" {
				words = append(words, w)
			}
		}
		kind, err := builtinKind(words)
		if err != nil {
			return nil, err
		}
		return &typeExpr{kind: exprBuiltin, builtin: kind}, nil
	}
	if t.kind == tokIdent && (t.text == "nullptr_t" || t.text == "decltype") {
		p.next()
		if t.text == "decltype" {
			// decltype(nullptr)
			if err := p.expect("("); err != nil {
				return nil, err
			}
			p.next()
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		}
		return &typeExpr{kind: exprBuiltin, builtin: clang.TypeNullPtr}, nil
	}
	return p.parseNamed()
}

func (p *typeParser) parseNamed() (*typeExpr, error) {
	e := &typeExpr{kind: exprNamed}
	if p.accept("::") {
		e.absolute = true
	}
	for {
		t := p.next()
		if t.kind != tokIdent {
			return nil, fmt.Errorf("expected name, got %q", t.text)
		}
		if t.text == "std" && p.peek().text == "::" && p.peekAt(1).text == "nullptr_t" {
			p.pos += 2
			return &typeExpr{kind: exprBuiltin, builtin: clang.TypeNullPtr}, nil
		}
		e.names = append(e.names, t.text)
		e.args = nil
		if p.accept("<") {
			args, err := p.parseTemplateArgs()
			if err != nil {
				return nil, err
			}
			e.args = args
		}
		// `Foo::*` starts a member pointer declarator, not a nested name.
		if p.peek().text == "::" && p.peekAt(1).kind == tokIdent {
			p.next()
			continue
		}
		return e, nil
	}
}

func (p *typeParser) parseTemplateArgs() ([]*typeExpr, error) {
	var args []*typeExpr
	if p.accept(">") {
		return args, nil
	}
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.accept(">") {
			return args, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *typeParser) parseParams() ([]*typeExpr, error) {
	var params []*typeExpr
	if p.accept(")") {
		return params, nil
	}
	if p.peek().text == "void" && p.peekAt(1).text == ")" {
		p.pos += 2
		return params, nil
	}
	for {
		param, err := p.parseType()
		if err != nil {
			return nil, err
		}
		// Parameter names are allowed and ignored.
		if p.peek().kind == tokIdent {
			p.next()
		}
		params = append(params, param)
		if p.accept(")") {
			return params, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *typeParser) parseDeclarator(base *typeExpr) (*typeExpr, error) {
	cur := base
	for {
		t := p.peek()
		switch {
		case t.text == "*":
			p.next()
			cur = &typeExpr{kind: exprPointer, elem: cur}
			cur.konst = p.skipQualifiers()
		case t.text == "&":
			p.next()
			cur = &typeExpr{kind: exprLRef, elem: cur}
		case t.text == "&&":
			p.next()
			cur = &typeExpr{kind: exprRRef, elem: cur}
		case t.text == "[":
			p.next()
			if p.accept("]") {
				cur = &typeExpr{kind: exprIncompleteArray, elem: cur}
				continue
			}
			n := p.next()
			if n.kind != tokNumber {
				return nil, fmt.Errorf("expected array length, got %q", n.text)
			}
			length, err := strconv.ParseInt(strings.TrimRight(n.text, "uUlL"), 0, 64)
			if err != nil {
				return nil, fmt.Errorf("array length %q: %w", n.text, err)
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			cur = wrapArray(cur, length)
		case t.text == "(" && p.peekAt(1).text == "*" && p.peekAt(2).text == ")":
			p.pos += 3
			if err := p.expect("("); err != nil {
				return nil, err
			}
			params, err := p.parseParams()
			if err != nil {
				return nil, err
			}
			fn := &typeExpr{kind: exprFunc, params: params, result: cur}
			cur = &typeExpr{kind: exprPointer, elem: fn}
		case t.text == "(":
			p.next()
			params, err := p.parseParams()
			if err != nil {
				return nil, err
			}
			cur = &typeExpr{kind: exprFunc, params: params, result: cur}
		case t.kind == tokIdent && p.peekAt(1).text == "::" && p.peekAt(2).text == "*":
			p.pos += 3
			owner := &typeExpr{kind: exprNamed, names: []string{t.text}}
			cur = &typeExpr{kind: exprMemberPointer, elem: cur, class: owner}
		default:
			return cur, nil
		}
	}
}

// wrapArray keeps `int[2][3]` as an array of two `int[3]`.
func wrapArray(cur *typeExpr, length int64) *typeExpr {
	if cur.kind == exprArray {
		return &typeExpr{kind: exprArray, elem: wrapArray(cur.elem, length), length: cur.length}
	}
	return &typeExpr{kind: exprArray, elem: cur, length: length}
}

func builtinKind(words []string) (clang.TypeKind, error) {
	var signed, unsigned bool
	var shorts, longs int
	base := ""
	for _, w := range words {
		switch w {
		case "signed":
			signed = true
		case "unsigned":
			unsigned = true
		case "short":
			shorts++
		case "long":
			longs++
		default:
			if base != "" {
				return clang.TypeInvalid, fmt.Errorf("conflicting type words %v", words)
			}
			base = w
		}
	}
	switch base {
	case "void":
		return clang.TypeVoid, nil
	case "bool":
		return clang.TypeBool, nil
	case "float":
		return clang.TypeFloat, nil
	case "double":
		if longs > 0 {
			return clang.TypeLongDouble, nil
		}
		return clang.TypeDouble, nil
	case "wchar_t":
		return clang.TypeWChar, nil
	case "char16_t":
		return clang.TypeChar16, nil
	case "char32_t":
		return clang.TypeChar32, nil
	case "char":
		switch {
		case unsigned:
			return clang.TypeUChar, nil
		case signed:
			return clang.TypeSChar, nil
		}
		return clang.TypeCharS, nil
	case "", "int":
	default:
		return clang.TypeInvalid, fmt.Errorf("unknown builtin %q", base)
	}
	switch {
	case shorts > 0 && unsigned:
		return clang.TypeUShort, nil
	case shorts > 0:
		return clang.TypeShort, nil
	case longs >= 2 && unsigned:
		return clang.TypeULongLong, nil
	case longs >= 2:
		return clang.TypeLongLong, nil
	case longs == 1 && unsigned:
		return clang.TypeULong, nil
	case longs == 1:
		return clang.TypeLong, nil
	case unsigned:
		return clang.TypeUInt, nil
	}
	return clang.TypeInt, nil
}

var builtinSpellings = map[clang.TypeKind]string{
	clang.TypeVoid:       "void",
	clang.TypeBool:       "bool",
	clang.TypeCharS:      "char",
	clang.TypeCharU:      "char",
	clang.TypeSChar:      "signed char",
	clang.TypeUChar:      "unsigned char",
	clang.TypeWChar:      "wchar_t",
	clang.TypeChar16:     "char16_t",
	clang.TypeChar32:     "char32_t",
	clang.TypeShort:      "short",
	clang.TypeUShort:     "unsigned short",
	clang.TypeInt:        "int",
	clang.TypeUInt:       "unsigned int",
	clang.TypeLong:       "long",
	clang.TypeULong:      "unsigned long",
	clang.TypeLongLong:   "long long",
	clang.TypeULongLong:  "unsigned long long",
	clang.TypeFloat:      "float",
	clang.TypeDouble:     "double",
	clang.TypeLongDouble: "long double",
	clang.TypeNullPtr:    "std::nullptr_t",
}
