package parser

import "namedblock/rewriter-go/pkg/ast"

type itemTerminator int

const (
	// body brace group or `;`, whichever comes first
	endBraceOrSemi itemTerminator = iota
	endSemi
)

var itemKeywords = map[string]itemTerminator{
	"fn":     endBraceOrSemi,
	"struct": endBraceOrSemi,
	"enum":   endBraceOrSemi,
	"union":  endBraceOrSemi,
	"trait":  endBraceOrSemi,
	"impl":   endBraceOrSemi,
	"mod":    endBraceOrSemi,
	"type":   endSemi,
	"use":    endSemi,
	"static": endSemi,
	"const":  endSemi,
}

// itemExtent decides whether nodes[i:] starts a declaration. It returns the
// item kind and the index one past its last node. When the shape is not
// clearly an item it reports false so the tokens stay visible to rewriting.
func itemExtent(nodes []ast.Node, i int) (string, int, bool) {
	j := i
	for j < len(nodes) {
		leaf := leafAt(nodes, j)
		if leaf == nil || leaf.Kind != ast.TokenIdent {
			return "", 0, false
		}
		switch leaf.Text {
		case "pub":
			j++
			if g := groupAt(nodes, j); g != nil && g.Delim == ast.DelimParen {
				j++
			}
			continue
		case "unsafe":
			if isBraceAt(nodes, j+1) {
				return "", 0, false
			}
			j++
			continue
		case "async":
			if isBraceAt(nodes, j+1) || isLeafAt(nodes, j+1, "move") || isPipeAt(nodes, j+1) {
				return "", 0, false
			}
			j++
			continue
		case "default":
			if !isAnyLeafAt(nodes, j+1, "fn", "type", "const", "unsafe", "async", "impl") {
				return "", 0, false
			}
			j++
			continue
		case "const":
			if isAnyLeafAt(nodes, j+1, "fn", "unsafe", "async", "extern") {
				j++
				continue
			}
			next := leafAt(nodes, j+1)
			if next == nil || !(next.Kind == ast.TokenIdent || next.Is("_")) {
				return "", 0, false
			}
			return scanItemEnd(nodes, j, "const", endSemi)
		case "extern":
			j++
			if lit := leafAt(nodes, j); lit != nil && lit.Kind == ast.TokenLiteral {
				j++
			}
			if isLeafAt(nodes, j, "crate") {
				return scanItemEnd(nodes, j, "extern crate", endSemi)
			}
			if isBraceAt(nodes, j) {
				return "extern", j + 1, true
			}
			continue
		case "macro_rules":
			return macroRulesExtent(nodes, j)
		case "union":
			if next := leafAt(nodes, j+1); next == nil || next.Kind != ast.TokenIdent {
				return "", 0, false
			}
			return scanItemEnd(nodes, j, "union", endBraceOrSemi)
		case "static":
			if isPipeAt(nodes, j+1) || isLeafAt(nodes, j+1, "move") {
				return "", 0, false
			}
			return scanItemEnd(nodes, j, "static", endSemi)
		}
		term, ok := itemKeywords[leaf.Text]
		if !ok {
			return "", 0, false
		}
		return scanItemEnd(nodes, j, leaf.Text, term)
	}
	return "", 0, false
}

func scanItemEnd(nodes []ast.Node, keyword int, kind string, term itemTerminator) (string, int, bool) {
	for k := keyword + 1; k < len(nodes); k++ {
		if isLeafAt(nodes, k, ";") {
			return kind, k + 1, true
		}
		if term == endBraceOrSemi && isBraceAt(nodes, k) {
			return kind, k + 1, true
		}
	}
	return "", 0, false
}

// macroRulesExtent covers `macro_rules! name { ... }` and the `(...);` form.
func macroRulesExtent(nodes []ast.Node, keyword int) (string, int, bool) {
	if !isLeafAt(nodes, keyword+1, "!") {
		return "", 0, false
	}
	name := leafAt(nodes, keyword+2)
	if name == nil || name.Kind != ast.TokenIdent {
		return "", 0, false
	}
	body := groupAt(nodes, keyword+3)
	if body == nil {
		return "", 0, false
	}
	end := keyword + 4
	if body.Delim != ast.DelimBrace && isLeafAt(nodes, end, ";") {
		end++
	}
	return "macro_rules", end, true
}

func leafAt(nodes []ast.Node, i int) *ast.Leaf {
	if i < 0 || i >= len(nodes) {
		return nil
	}
	leaf, _ := nodes[i].(*ast.Leaf)
	return leaf
}

func groupAt(nodes []ast.Node, i int) *ast.Group {
	if i < 0 || i >= len(nodes) {
		return nil
	}
	group, _ := nodes[i].(*ast.Group)
	return group
}

func isLeafAt(nodes []ast.Node, i int, text string) bool {
	return leafAt(nodes, i).Is(text)
}

func isAnyLeafAt(nodes []ast.Node, i int, texts ...string) bool {
	leaf := leafAt(nodes, i)
	for _, text := range texts {
		if leaf.Is(text) {
			return true
		}
	}
	return false
}

func isBraceAt(nodes []ast.Node, i int) bool {
	g := groupAt(nodes, i)
	return g != nil && g.Delim == ast.DelimBrace
}

func isPipeAt(nodes []ast.Node, i int) bool {
	return isAnyLeafAt(nodes, i, "|", "||")
}
