package graph

import (
	"sort"

	"github.com/morozRed/ripple/internal/parser"
)

// Changes is the key-set difference between two versions of a file's table.
type Changes struct {
	AddedVariables   []string `json:"added_variables"`
	AddedFunctions   []string `json:"added_functions"`
	DeletedVariables []string `json:"deleted_variables"`
	DeletedFunctions []string `json:"deleted_functions"`
}

// Diff compares key sets per kind. Renames show up as one deletion plus one
// addition.
func Diff(previous, current parser.SymbolTable) Changes {
	return Changes{
		AddedVariables:   difference(current.Variables, previous.Variables),
		AddedFunctions:   difference(current.Functions, previous.Functions),
		DeletedVariables: difference(previous.Variables, current.Variables),
		DeletedFunctions: difference(previous.Functions, current.Functions),
	}
}

// Added returns the added names as a seed.
func (c Changes) Added() Seed {
	return Seed{Variables: c.AddedVariables, Functions: c.AddedFunctions}
}

// Deleted returns the deleted names as a seed.
func (c Changes) Deleted() Seed {
	return Seed{Variables: c.DeletedVariables, Functions: c.DeletedFunctions}
}

// Empty reports whether nothing was added or deleted.
func (c Changes) Empty() bool {
	return c.Added().Empty() && c.Deleted().Empty()
}

func difference(a, b map[string]parser.Symbol) []string {
	out := make([]string, 0)
	for name := range a {
		if _, ok := b[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
