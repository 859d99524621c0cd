package rewrite

import (
	"strings"

	"namedblock/rewriter-go/pkg/ast"
)

// emitBlock builds
//
//	{ let RET; 'label: loop { RET = { body }; break 'label; } RET }
//
// The opening brace takes over the invocation's leading trivia.
func emitBlock(lb *ast.LabeledBlock, entry *ScopeEntry, body *ast.Group) ast.Node {
	leading := ""
	if first := ast.FirstLeaf(lb); first != nil {
		leading = first.Leading
	}
	loopBody := ast.Delimited(ast.DelimBrace, " ", " ",
		ast.SpIdent(entry.Result),
		ast.SpPunct("="),
		body.WithOpenLeading(" "),
		ast.Punct(";"),
		ast.NewLoopFlow(ast.FlowBreak, ast.SpIdent("break"), spLifetime(entry.Label)),
		ast.Punct(";"),
	)
	loop := ast.NewControlBlock(
		ast.ControlLoop,
		spLifetime(entry.Label),
		ast.Punct(":"),
		[]ast.Node{ast.SpIdent("loop")},
		loopBody,
	)
	return ast.Delimited(ast.DelimBrace, leading, " ",
		ast.SpIdent("let"),
		ast.SpIdent(entry.Result),
		ast.Punct(";"),
		loop,
		ast.SpIdent(entry.Result),
	)
}

// emitExit builds `{ RET = value; break 'label; }`, with `()` standing in for
// a missing value.
func emitExit(e *ast.EarlyExit, entry *ScopeEntry, value *ast.Group) ast.Node {
	var assigned ast.Node = ast.Unit()
	if value != nil {
		assigned = value
	}
	return ast.Delimited(ast.DelimBrace, e.Keyword.Leading, " ",
		ast.SpIdent(entry.Result),
		ast.SpPunct("="),
		assigned,
		ast.Punct(";"),
		ast.NewLoopFlow(ast.FlowBreak, ast.SpIdent("break"), spLifetime(entry.Label)),
		ast.Punct(";"),
	)
}

// stripMarker drops an ignore marker together with the line break and
// indentation that only served it. Comments before the marker stay. The
// decorated node is returned untouched.
func stripMarker(a *ast.Annotated) ast.Node {
	marker, inner := "", ""
	if first := ast.FirstLeaf(a.Marker); first != nil {
		marker = first.Leading
	}
	if first := ast.FirstLeaf(a.Inner); first != nil {
		inner = first.Leading
	}
	leading := markerTrivia(marker, inner)
	if leading == "" {
		return a.Inner
	}
	return ast.Seq(ast.NewLeaf(ast.TokenPunct, "", leading, ast.Position{}), a.Inner)
}

// markerTrivia returns the part of a removed marker's leading trivia that
// still belongs in the output, given the trivia the decorated node brings.
func markerTrivia(marker, inner string) string {
	if strings.Contains(inner, "\n") {
		if i := strings.LastIndexByte(marker, '\n'); i >= 0 {
			return marker[:i]
		}
		return strings.TrimRight(marker, " \t")
	}
	// Same line: the node's own spaces replace the marker's indentation.
	trimmed := strings.TrimRight(marker, " \t")
	indent := len(marker) - len(trimmed)
	spaces := len(inner) - len(strings.TrimLeft(inner, " \t"))
	if spaces < indent {
		return marker[:len(marker)-spaces]
	}
	return trimmed
}

func spLifetime(label string) *ast.Leaf {
	return ast.Lifetime(label).WithLeading(" ")
}
