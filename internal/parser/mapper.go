package parser

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/model"
)

// Unit is the set of used entries declared in one header.
type Unit struct {
	// File is relative to the base path for project headers.
	File    string
	System  bool
	Entries []model.Entry
}

// Units groups every used entry by the header that declares it. Project
// headers sort before system headers; entries keep declaration order.
func (p *Parser) Units() []*Unit {
	byFile := make(map[string]*Unit)
	var out []*Unit
	for _, e := range p.Arena.Used() {
		if td, ok := e.(*model.TypedefEntry); ok && td.Reexport {
			continue
		}
		file := e.Common().File
		u, ok := byFile[file]
		if !ok {
			rel, err := p.HeaderPath(file)
			u = &Unit{File: rel, System: err != nil}
			byFile[file] = u
			out = append(out, u)
		}
		u.Entries = append(u.Entries, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].System != out[j].System {
			return !out[i].System
		}
		return out[i].File < out[j].File
	})
	p.log.Debug("mapped units", zap.Int("units", len(out)))
	return out
}
