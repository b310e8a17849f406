package languages

import (
	"context"
	"fmt"

	"github.com/morozRed/ripple/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParser extracts qualified variable and function dependencies from
// Python source files.
type PythonParser struct{}

// NewPythonParser creates a new Python parser
func NewPythonParser() *PythonParser {
	return &PythonParser{}
}

func (p *PythonParser) Language() string {
	return "python"
}

func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyw"}
}

// Parse builds the symbol table for one file. A fresh tree-sitter parser is
// created per call so concurrent scans never share parser state.
func (p *PythonParser) Parse(filename string, content []byte) (*parser.FileSymbols, error) {
	sp := sitter.NewParser()
	sp.SetLanguage(python.GetLanguage())

	tree, err := sp.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%w: empty syntax tree", parser.ErrSyntax)
	}
	if root.HasError() {
		return nil, fmt.Errorf("%w near line %d", parser.ErrSyntax, firstErrorLine(root))
	}

	x := newPyExtractor(filename, content)
	x.walk(root)
	x.bindArguments()

	return &parser.FileSymbols{
		Path:     filename,
		Language: "python",
		Table:    x.table(),
	}, nil
}

type symbolBuilder struct {
	deps   map[string]bool
	params []string
	spans  []parser.Span
}

func newSymbolBuilder() *symbolBuilder {
	return &symbolBuilder{deps: make(map[string]bool)}
}

func (b *symbolBuilder) symbol() parser.Symbol {
	deps := make([]string, 0, len(b.deps))
	for dep := range b.deps {
		deps = append(deps, dep)
	}
	sym := parser.Symbol{DependsOn: deps, Spans: b.spans}
	if b.params != nil {
		sym.Params = append([]string{}, b.params...)
	}
	return sym
}

// callBinding records `target = callee(args...)` so arguments can be bound to
// the callee's parameters once every function in the file is known.
type callBinding struct {
	callee string
	args   []string // qualified positional arguments, "" when not a plain identifier
}

type pyExtractor struct {
	content  []byte
	scope    []string
	vars     map[string]*symbolBuilder
	funcs    map[string]*symbolBuilder
	bindings []callBinding
}

func newPyExtractor(filename string, content []byte) *pyExtractor {
	return &pyExtractor{
		content: content,
		scope:   []string{parser.FileIdentifier(filename)},
		vars:    make(map[string]*symbolBuilder),
		funcs:   make(map[string]*symbolBuilder),
	}
}

func (x *pyExtractor) qualify(name string) string {
	parts := append(append([]string{}, x.scope...), name)
	return parser.Qualify(parts...)
}

func (x *pyExtractor) variable(name string) *symbolBuilder {
	b, ok := x.vars[name]
	if !ok {
		b = newSymbolBuilder()
		x.vars[name] = b
	}
	return b
}

func (x *pyExtractor) text(node *sitter.Node) string {
	return node.Content(x.content)
}

func (x *pyExtractor) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_definition":
		x.function(node, nil)
		return
	case "decorated_definition":
		definition := node.ChildByFieldName("definition")
		if definition == nil || definition.Type() != "function_definition" {
			break
		}
		var decorators []*sitter.Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child.Type() == "decorator" {
				decorators = append(decorators, child)
			}
		}
		x.function(definition, decorators)
		return
	case "class_definition":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		x.scope = append(x.scope, x.text(nameNode))
		x.walk(node.ChildByFieldName("body"))
		x.scope = x.scope[:len(x.scope)-1]
		return
	case "assignment":
		x.assignment(node)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		x.walk(node.Child(i))
	}
}

// function records a definition. Decorator references count as
// dependencies of the function they wrap.
func (x *pyExtractor) function(node *sitter.Node, decorators []*sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	x.scope = append(x.scope, x.text(nameNode))
	defer func() { x.scope = x.scope[:len(x.scope)-1] }()

	qname := parser.Qualify(x.scope...)
	paramsNode := node.ChildByFieldName("parameters")
	params := parameterNames(paramsNode, x.content)

	// Redefinition replaces the earlier body.
	b := newSymbolBuilder()
	b.params = params
	b.spans = []parser.Span{nodeSpan(node)}
	x.funcs[qname] = b

	for _, param := range params {
		b.deps[x.qualify(param)] = true
	}
	names := make(map[string]bool)
	x.identifiers(node, names)
	for _, decorator := range decorators {
		x.identifiers(decorator, names)
	}
	for name := range names {
		if pythonBuiltins[name] {
			continue
		}
		b.deps[x.qualify(name)] = true
	}

	// Parameters are bound by their function and receive argument edges
	// from call sites.
	header := parser.Span{Start: nodeSpan(node).Start, End: nodeSpan(node).Start}
	if paramsNode != nil {
		header.End = nodeSpan(paramsNode).End
	}
	for _, param := range params {
		v := x.variable(x.qualify(param))
		v.deps[qname] = true
		v.spans = appendSpan(v.spans, header)
	}

	x.walk(node.ChildByFieldName("body"))
}

func (x *pyExtractor) assignment(node *sitter.Node) {
	targets := make([]*sitter.Node, 0, 1)
	var value *sitter.Node
	for cur := node; cur != nil; {
		targets = append(targets, cur.ChildByFieldName("left"))
		right := cur.ChildByFieldName("right")
		if right != nil && right.Type() == "assignment" {
			cur = right
			continue
		}
		value = right
		break
	}
	if value == nil {
		return
	}

	names := make([]string, 0, len(targets))
	for _, target := range targets {
		if target != nil && target.Type() == "identifier" {
			names = append(names, x.qualify(x.text(target)))
		}
	}
	if len(names) == 0 {
		return
	}

	deps := x.valueDependencies(value)
	span := nodeSpan(node)
	for _, name := range names {
		v := x.variable(name)
		for dep := range deps {
			v.deps[dep] = true
		}
		v.spans = appendSpan(v.spans, span)
	}
}

func (x *pyExtractor) valueDependencies(value *sitter.Node) map[string]bool {
	deps := make(map[string]bool)

	for value.Type() == "parenthesized_expression" && value.NamedChildCount() == 1 {
		value = value.NamedChild(0)
	}
	if value.Type() == "call" {
		fn := value.ChildByFieldName("function")
		switch {
		case fn != nil && fn.Type() == "identifier":
			callee := x.text(fn)
			deps[x.qualify(callee)] = true
			args := x.positionalArguments(value.ChildByFieldName("arguments"))
			for _, arg := range args {
				if arg != "" {
					deps[arg] = true
				}
			}
			x.bindings = append(x.bindings, callBinding{callee: callee, args: args})
			return deps
		case fn != nil && fn.Type() == "attribute":
			if attr := fn.ChildByFieldName("attribute"); attr != nil {
				deps[x.text(attr)] = true
			}
			return deps
		}
	}

	names := make(map[string]bool)
	x.identifiers(value, names)
	for name := range names {
		deps[x.qualify(name)] = true
	}
	return deps
}

func (x *pyExtractor) positionalArguments(args *sitter.Node) []string {
	if args == nil || args.Type() != "argument_list" {
		return nil
	}

	out := make([]string, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "keyword_argument", "dictionary_splat", "comment":
			continue
		case "identifier":
			out = append(out, x.qualify(x.text(arg)))
		default:
			out = append(out, "")
		}
	}
	return out
}

// bindArguments adds each plain-identifier argument to the matching
// parameter of every function in the file whose local name equals the callee.
func (x *pyExtractor) bindArguments() {
	for _, binding := range x.bindings {
		for qname, fn := range x.funcs {
			if parser.BareName(qname) != binding.callee {
				continue
			}
			for i, arg := range binding.args {
				if arg == "" || i >= len(fn.params) {
					continue
				}
				x.variable(parser.Qualify(qname, fn.params[i])).deps[arg] = true
			}
		}
	}
}

func (x *pyExtractor) table() parser.SymbolTable {
	table := parser.NewSymbolTable()
	for name, b := range x.vars {
		table.Variables[name] = b.symbol()
	}
	for name, b := range x.funcs {
		table.Functions[name] = b.symbol()
	}
	table.Normalize()
	return table
}

// identifiers collects every plain identifier reference under node. Attribute
// names, keyword names, definition names, parameter names and import or
// scope declarations are not references.
func (x *pyExtractor) identifiers(node *sitter.Node, out map[string]bool) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "identifier":
		out[x.text(node)] = true
		return
	case "attribute":
		x.identifiers(node.ChildByFieldName("object"), out)
		return
	case "keyword_argument":
		x.identifiers(node.ChildByFieldName("value"), out)
		return
	case "parameters", "lambda_parameters":
		x.parameterDefaults(node, out)
		return
	case "function_definition", "class_definition":
		nameNode := node.ChildByFieldName("name")
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if nameNode != nil && child.StartByte() == nameNode.StartByte() && child.EndByte() == nameNode.EndByte() {
				continue
			}
			x.identifiers(child, out)
		}
		return
	case "import_statement", "import_from_statement", "future_import_statement",
		"global_statement", "nonlocal_statement", "comment":
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		x.identifiers(node.Child(i), out)
	}
}

// parameterDefaults collects references from default values and annotations.
func (x *pyExtractor) parameterDefaults(params *sitter.Node, out map[string]bool) {
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "default_parameter":
			x.identifiers(param.ChildByFieldName("value"), out)
		case "typed_parameter":
			x.identifiers(param.ChildByFieldName("type"), out)
		case "typed_default_parameter":
			x.identifiers(param.ChildByFieldName("type"), out)
			x.identifiers(param.ChildByFieldName("value"), out)
		}
	}
}

// parameterNames returns positional parameter names in declaration order.
// Parameters after a bare `*` or `*args`, and the splats themselves, are
// keyword-only and cannot be bound positionally.
func parameterNames(params *sitter.Node, content []byte) []string {
	names := make([]string, 0)
	if params == nil {
		return names
	}

	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "identifier":
			names = append(names, param.Content(content))
		case "default_parameter", "typed_default_parameter":
			if nameNode := param.ChildByFieldName("name"); nameNode != nil {
				names = append(names, nameNode.Content(content))
			}
		case "typed_parameter":
			first := param.NamedChild(0)
			if first == nil {
				continue
			}
			if first.Type() != "identifier" {
				return names
			}
			names = append(names, first.Content(content))
		case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator":
			return names
		}
	}
	return names
}

func nodeSpan(node *sitter.Node) parser.Span {
	return parser.Span{
		Start: int(node.StartPoint().Row) + 1,
		End:   int(node.EndPoint().Row) + 1,
	}
}

func appendSpan(spans []parser.Span, span parser.Span) []parser.Span {
	for _, existing := range spans {
		if existing == span {
			return spans
		}
	}
	return append(spans, span)
}

func firstErrorLine(node *sitter.Node) int {
	if node.Type() == "ERROR" || node.IsMissing() {
		return int(node.StartPoint().Row) + 1
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstErrorLine(child)
		}
	}
	return int(node.StartPoint().Row) + 1
}
