package parser

import "namedblock/rewriter-go/pkg/ast"

// attributeAt recognizes `#[...]` and `#![...]` starting at nodes[i].
func attributeAt(nodes []ast.Node, i int) (*ast.Attribute, int, bool) {
	hash := leafAt(nodes, i)
	if !hash.Is("#") {
		return nil, 0, false
	}
	j := i + 1
	var bang *ast.Leaf
	if isLeafAt(nodes, j, "!") {
		bang = leafAt(nodes, j)
		j++
	}
	body := groupAt(nodes, j)
	if body == nil || body.Delim != ast.DelimBracket {
		return nil, 0, false
	}
	return ast.NewAttribute(hash, bang, body), j + 1, true
}

// isIgnoreMarker reports whether attr is the outer attribute
// `#[<macro>(<marker>)]`.
func isIgnoreMarker(attr *ast.Attribute, macro, marker string) bool {
	if attr == nil || attr.Bang != nil || attr.Body == nil {
		return false
	}
	children := attr.Body.Children
	if len(children) != 2 {
		return false
	}
	name, ok := children[0].(*ast.Leaf)
	if !ok || name.Kind != ast.TokenIdent || name.Text != macro {
		return false
	}
	args, ok := children[1].(*ast.Group)
	if !ok || args.Delim != ast.DelimParen || len(args.Children) != 1 {
		return false
	}
	word, ok := args.Children[0].(*ast.Leaf)
	return ok && word.Kind == ast.TokenIdent && word.Text == marker
}
