package languages

import "github.com/morozRed/ripple/internal/parser"

// NewDefaultRegistry returns a registry that extracts dependency tables from
// Python sources. Other extensions are reported as unsupported.
func NewDefaultRegistry() *parser.Registry {
	r := parser.NewRegistry()
	r.Register(NewPythonParser())
	return r
}
