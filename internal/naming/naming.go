// Package naming converts C++ identifiers into Go identifiers and orders
// names the way generated files list them.
package naming

import (
	"strings"
	"sync"
	"unicode"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	title = cases.Title(language.Und, cases.NoLower)
	lower = cases.Lower(language.Und)

	collateMu sync.Mutex
	collator  = collate.New(language.Und, collate.IgnoreCase, collate.Loose)
)

// words splits on every rune that cannot appear in a Go identifier.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Pascal upper-cases the first rune of every word and joins them:
// "find_last" -> "FindLast", "toString" -> "ToString", "f32" -> "F32".
func Pascal(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(title.String(w))
	}
	return b.String()
}

// Camel is Pascal with a lower-cased first rune.
func Camel(s string) string {
	p := Pascal(s)
	for i, r := range p {
		return lower.String(string(r)) + p[i+len(string(r)):]
	}
	return p
}

// Upper upper-cases the first rune only.
func Upper(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

// Export maps a qualified C++ name to its binding name: "geo::Circle" -> "Geo__Circle".
func Export(qualified string) string {
	return Upper(strings.ReplaceAll(qualified, "::", "__"))
}

// Member names a class member binding: "Geo__Circle__area".
func Member(class, member string) string {
	return Export(class) + "__" + member
}

// Ident makes a Go identifier out of a qualified name: "geo::Vec3" -> "GeoVec3".
func Ident(qualified string) string {
	return Pascal(qualified)
}

func Singular(s string) string {
	return inflection.Singular(s)
}

func Plural(s string) string {
	return inflection.Plural(s)
}

// Compare orders names case-insensitively with the root locale's collation.
func Compare(a, b string) int {
	collateMu.Lock()
	defer collateMu.Unlock()
	return collator.CompareString(a, b)
}
