package matcher

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"restitch/pkg/source"
)

// Policy controls which argument shapes count as safely rewritable. The
// scalar literal forms and unary-signed numbers are always accepted; object
// and array literals built purely from those forms are accepted only when
// AllowCompound is set.
type Policy struct {
	AllowCompound bool
}

// Extract parses the file's current text and returns the rewritable call
// sites, ordered by ascending call start. A call qualifies when its callee
// is a property access ending in a registered matcher name and it has either
// no arguments or exactly one argument that is a rewritable literal under
// the policy. Any argument that could reference a runtime value — a free
// identifier anywhere in its subtree — disqualifies the call outright: a
// computed expectation must never be silently replaced with its last value.
func Extract(ctx context.Context, file *source.File, reg *Registry, policy Policy) (*List, error) {
	content := file.Text()

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: file.Path()}
	}

	var list List
	walk(root, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		m, ok := classifyCall(n, content, reg, policy)
		if ok {
			list.Matchers = append(list.Matchers, m)
		}
	})

	sort.Slice(list.Matchers, func(i, j int) bool {
		return list.Matchers[i].CallStart < list.Matchers[j].CallStart
	})
	return &list, nil
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		walk(child, visit)
	}
}

func classifyCall(call *sitter.Node, content []byte, reg *Registry, policy Policy) (Matcher, bool) {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Type() != "member_expression" {
		return Matcher{}, false
	}
	prop := callee.ChildByFieldName("property")
	if prop == nil {
		return Matcher{}, false
	}
	name := string(content[prop.StartByte():prop.EndByte()])
	kind, ok := reg.Kind(name)
	if !ok {
		return Matcher{}, false
	}

	m := Matcher{
		Name:      name,
		Kind:      kind,
		ExprStart: int(call.StartByte()),
		CallStart: int(prop.StartByte()),
		CallEnd:   int(call.EndByte()),
	}

	args := namedArguments(call.ChildByFieldName("arguments"))
	switch len(args) {
	case 0:
		return m, true
	case 1:
		arg := args[0]
		if !rewritableLiteral(arg, policy) {
			return Matcher{}, false
		}
		m.HasArg = true
		m.ArgStart = int(arg.StartByte())
		m.ArgEnd = int(arg.EndByte())
		return m, true
	default:
		// Extra arguments carry intent (names, options) that a literal
		// rewrite cannot preserve.
		return Matcher{}, false
	}
}

func namedArguments(argsNode *sitter.Node) []*sitter.Node {
	if argsNode == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(argsNode.NamedChildCount()); i++ {
		child := argsNode.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// rewritableLiteral is a whitelist, not a heuristic: only shapes that can be
// stringified back without losing intent pass. Identifiers, shorthand
// properties, spreads, template strings, and computed keys all fail.
func rewritableLiteral(n *sitter.Node, policy Policy) bool {
	switch n.Type() {
	case "number", "string", "true", "false", "null", "undefined":
		return true
	case "unary_expression":
		op := n.ChildByFieldName("operator")
		arg := n.ChildByFieldName("argument")
		if op == nil && n.ChildCount() > 0 {
			op = n.Child(0)
		}
		if arg == nil || op == nil {
			return false
		}
		if t := op.Type(); t != "-" && t != "+" {
			return false
		}
		return arg.Type() == "number"
	case "parenthesized_expression":
		inner := firstNamedNonComment(n)
		return inner != nil && rewritableLiteral(inner, policy)
	case "array":
		if !policy.AllowCompound {
			return false
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child == nil || child.Type() == "comment" {
				continue
			}
			if !rewritableLiteral(child, policy) {
				return false
			}
		}
		return true
	case "object":
		if !policy.AllowCompound {
			return false
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child == nil || child.Type() == "comment" {
				continue
			}
			if child.Type() != "pair" {
				// Shorthand properties and spreads reference identifiers.
				return false
			}
			key := child.ChildByFieldName("key")
			value := child.ChildByFieldName("value")
			if key == nil || value == nil {
				return false
			}
			// Non-computed keys are names, not value references; a computed
			// key evaluates an expression and disqualifies the literal.
			switch key.Type() {
			case "property_identifier", "string", "number":
			default:
				return false
			}
			if !rewritableLiteral(value, policy) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func firstNamedNonComment(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child != nil && child.Type() != "comment" {
			return child
		}
	}
	return nil
}
