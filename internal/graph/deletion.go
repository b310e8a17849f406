package graph

import "github.com/morozRed/ripple/internal/parser"

// TraceDeletion finds every symbol in the post-deletion graph whose
// dependencies still reference a deleted name under collapsed matching, then
// expands that set with the collapsed fixed point across all files. Kind is
// ignored while matching: a variable can be broken by a deleted function and
// the reverse.
func TraceDeletion(g ProjectGraph, deleted Seed) Propagation {
	gone := make(map[string]bool)
	for _, name := range deleted.All() {
		gone[parser.Collapse(name)] = true
	}
	if len(gone) == 0 {
		return Propagation{Mode: ModeCollapsed, Variables: []string{}, Functions: []string{}}
	}

	direct := Seed{}
	g.eachSymbol(g.Files(), func(ref symbolRef, sym parser.Symbol) {
		for _, dep := range sym.DependsOn {
			if !gone[parser.Collapse(dep)] {
				continue
			}
			if ref.kind == parser.SymbolFunction {
				direct.Functions = append(direct.Functions, ref.name)
			} else {
				direct.Variables = append(direct.Variables, ref.name)
			}
			return
		}
	})

	return Propagate(g, direct, Options{Mode: ModeCollapsed})
}
