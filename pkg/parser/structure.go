package parser

import (
	"namedblock/rewriter-go/pkg/ast"
)

// Keywords after which `|` opens closure parameters rather than acting as
// a binary operator.
var nonOperandKeywords = map[string]bool{
	"return": true,
	"break":  true,
	"in":     true,
	"else":   true,
	"yield":  true,
	"move":   true,
	"async":  true,
	"static": true,
	"let":    true,
	"match":  true,
	"if":     true,
	"while":  true,
}

// Structure classifies the token trees under root into the node model:
// invocations, early exits, loop flow, items, attributes, native loops and
// labeled blocks, and closures. Tokens it does not recognize stay leaves, so
// rendering the result reproduces the input exactly.
func Structure(root *ast.Group, opts Options) (*ast.Group, error) {
	if root == nil {
		return nil, nil
	}
	s := &structurer{opts: opts.normalized()}
	return s.group(root, 0)
}

type structurer struct {
	opts Options
}

func (s *structurer) group(g *ast.Group, depth int) (*ast.Group, error) {
	if depth > s.opts.MaxDepth {
		pos := ast.Position{}
		if first := ast.FirstLeaf(g); first != nil {
			pos = first.Pos
		}
		return nil, &DepthError{Limit: s.opts.MaxDepth, Pos: pos}
	}
	stmtLevel := g.Delim == ast.DelimBrace || g.Delim == ast.DelimNone
	children, err := s.seq(g.Children, stmtLevel, depth)
	if err != nil {
		return nil, err
	}
	return g.WithChildren(children), nil
}

func (s *structurer) seq(nodes []ast.Node, stmtLevel bool, depth int) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(nodes))
	atStmt := stmtLevel
	for i := 0; i < len(nodes); {
		var prev ast.Node
		if len(out) > 0 {
			prev = out[len(out)-1]
		}
		node, next, err := s.next(nodes, i, prev, atStmt, stmtLevel, depth)
		if err != nil {
			return nil, err
		}
		if lb, ok := node.(*ast.LabeledBlock); ok {
			var path []*ast.Leaf
			out, path = pullPath(out)
			if len(path) > 0 {
				node = ast.NewLabeledBlock(append(path, lb.Path...), lb.Bang, lb.Args, lb.Label, lb.Colon, lb.Body)
			}
		}
		out = append(out, node)
		atStmt = stmtLevel && startsStatement(node)
		i = next
	}
	return out, nil
}

func (s *structurer) next(nodes []ast.Node, i int, prev ast.Node, atStmt, stmtLevel bool, depth int) (ast.Node, int, error) {
	switch n := nodes[i].(type) {
	case *ast.Group:
		g, err := s.group(n, depth+1)
		return g, i + 1, err
	case *ast.Leaf:
		return s.leaf(nodes, i, n, prev, atStmt, stmtLevel, depth)
	default:
		return n, i + 1, nil
	}
}

func (s *structurer) leaf(nodes []ast.Node, i int, leaf *ast.Leaf, prev ast.Node, atStmt, stmtLevel bool, depth int) (ast.Node, int, error) {
	if attr, next, ok := attributeAt(nodes, i); ok {
		if isIgnoreMarker(attr, s.opts.Macro, s.opts.IgnoreMarker) && next < len(nodes) {
			inner, end, err := s.next(nodes, next, attr, stmtLevel, stmtLevel, depth)
			if err != nil {
				return nil, 0, err
			}
			return ast.NewAnnotated(attr, inner), end, nil
		}
		return attr, next, nil
	}
	if atStmt {
		if kind, end, ok := itemExtent(nodes, i); ok {
			body, err := s.seq(nodes[i:end], false, depth)
			if err != nil {
				return nil, 0, err
			}
			return ast.NewItemDecl(kind, body), end, nil
		}
	}
	if node, end, ok, err := s.invocation(nodes, i, depth); ok || err != nil {
		return node, end, err
	}
	if node, end, ok, err := s.control(nodes, i, depth); ok || err != nil {
		return node, end, err
	}
	if node, end, ok, err := s.closure(nodes, i, prev, depth); ok || err != nil {
		return node, end, err
	}
	if leaf.Kind == ast.TokenIdent {
		switch leaf.Text {
		case "break":
			return s.earlyExit(nodes, i, depth)
		case "continue":
			var label *ast.Leaf
			end := i + 1
			if l := leafAt(nodes, end); l != nil && l.Kind == ast.TokenLifetime {
				label = l
				end++
			}
			return ast.NewLoopFlow(ast.FlowContinue, leaf, label), end, nil
		}
	}
	return leaf, i + 1, nil
}

// invocation recognizes `<macro>!( 'label: { body } )` with any delimiter.
func (s *structurer) invocation(nodes []ast.Node, i int, depth int) (ast.Node, int, bool, error) {
	name := leafAt(nodes, i)
	if name == nil || name.Kind != ast.TokenIdent || name.Text != s.opts.Macro || !isLeafAt(nodes, i+1, "!") {
		return nil, 0, false, nil
	}
	args := groupAt(nodes, i+2)
	if args == nil {
		return nil, 0, false, nil
	}
	if len(args.Children) != 3 {
		return nil, 0, false, invocationError(args, "%s! expects `'label: { ... }`", s.opts.Macro)
	}
	label := leafAt(args.Children, 0)
	if label == nil || label.Kind != ast.TokenLifetime {
		return nil, 0, false, invocationError(args, "%s! expects a label, found %s", s.opts.Macro, describe(args.Children[0]))
	}
	colon := leafAt(args.Children, 1)
	if !colon.Is(":") {
		return nil, 0, false, invocationError(args, "%s! expects `:` after label %s", s.opts.Macro, label.Text)
	}
	body := groupAt(args.Children, 2)
	if body == nil || body.Delim != ast.DelimBrace {
		return nil, 0, false, invocationError(args, "%s! expects a braced body after %s:", s.opts.Macro, label.Text)
	}
	structured, err := s.group(body, depth+2)
	if err != nil {
		return nil, 0, false, err
	}
	bang := leafAt(nodes, i+1)
	node := ast.NewLabeledBlock(
		[]*ast.Leaf{name},
		bang,
		args.WithChildren([]ast.Node{label, colon, structured}),
		label,
		colon,
		structured,
	)
	return node, i + 3, true, nil
}

// control recognizes native loops and native labeled blocks.
func (s *structurer) control(nodes []ast.Node, i int, depth int) (ast.Node, int, bool, error) {
	var label, colon *ast.Leaf
	kw := i
	if l := leafAt(nodes, i); l != nil && l.Kind == ast.TokenLifetime && isLeafAt(nodes, i+1, ":") {
		label, colon = l, leafAt(nodes, i+1)
		kw = i + 2
		if isBraceAt(nodes, kw) {
			body, err := s.group(groupAt(nodes, kw), depth+1)
			if err != nil {
				return nil, 0, false, err
			}
			return ast.NewControlBlock(ast.ControlLabeled, label, colon, nil, body), kw + 1, true, nil
		}
	}
	keyword := leafAt(nodes, kw)
	if keyword == nil || keyword.Kind != ast.TokenIdent {
		return nil, 0, false, nil
	}
	var kind ast.ControlKind
	switch keyword.Text {
	case "loop":
		kind = ast.ControlLoop
	case "while":
		kind = ast.ControlWhile
	case "for":
		if isLeafAt(nodes, kw+1, "<") {
			return nil, 0, false, nil
		}
		kind = ast.ControlFor
	default:
		return nil, 0, false, nil
	}
	bodyAt := -1
	if kind == ast.ControlLoop {
		if isBraceAt(nodes, kw+1) {
			bodyAt = kw + 1
		}
	} else {
		for k := kw + 1; k < len(nodes); k++ {
			if isLeafAt(nodes, k, ";") {
				break
			}
			if isBraceAt(nodes, k) && !isPipeAt(nodes, k-1) {
				bodyAt = k
				break
			}
		}
	}
	if bodyAt < 0 {
		return nil, 0, false, nil
	}
	cond, err := s.seq(nodes[kw+1:bodyAt], false, depth)
	if err != nil {
		return nil, 0, false, err
	}
	header := append([]ast.Node{keyword}, cond...)
	body, err := s.group(groupAt(nodes, bodyAt), depth+1)
	if err != nil {
		return nil, 0, false, err
	}
	return ast.NewControlBlock(kind, label, colon, header, body), bodyAt + 1, true, nil
}

// closure recognizes `[async] [move] |params| [-> T] body` and async blocks.
func (s *structurer) closure(nodes []ast.Node, i int, prev ast.Node, depth int) (ast.Node, int, bool, error) {
	j := i
	if isLeafAt(nodes, j, "async") {
		j++
		if isLeafAt(nodes, j, "move") {
			j++
		}
		if isBraceAt(nodes, j) {
			body, err := s.group(groupAt(nodes, j), depth+1)
			if err != nil {
				return nil, 0, false, err
			}
			return ast.NewClosure(nodes[i:j], body), j + 1, true, nil
		}
	} else if isLeafAt(nodes, j, "move") {
		j++
	}
	if !isPipeAt(nodes, j) {
		return nil, 0, false, nil
	}
	if j == i && endsOperand(prev) {
		return nil, 0, false, nil
	}
	if isLeafAt(nodes, j, "||") {
		j++
	} else {
		closing := closingPipe(nodes, j)
		if closing < 0 {
			return nil, 0, false, nil
		}
		j = closing + 1
	}
	if armPattern(nodes, j) {
		return nil, 0, false, nil
	}
	if isLeafAt(nodes, j, "->") {
		for k := j + 1; k < len(nodes); k++ {
			if isBraceAt(nodes, k) {
				body, err := s.group(groupAt(nodes, k), depth+1)
				if err != nil {
					return nil, 0, false, err
				}
				return ast.NewClosure(nodes[i:k], body), k + 1, true, nil
			}
		}
		return nil, 0, false, nil
	}
	end := exprEnd(nodes, j)
	if end == j {
		return nil, 0, false, nil
	}
	var body ast.Node
	if end == j+1 && isBraceAt(nodes, j) {
		g, err := s.group(groupAt(nodes, j), depth+1)
		if err != nil {
			return nil, 0, false, err
		}
		body = g
	} else {
		children, err := s.seq(nodes[j:end], false, depth)
		if err != nil {
			return nil, 0, false, err
		}
		body = ast.Seq(children...)
	}
	return ast.NewClosure(nodes[i:j], body), end, true, nil
}

func (s *structurer) earlyExit(nodes []ast.Node, i int, depth int) (ast.Node, int, error) {
	keyword := leafAt(nodes, i)
	var label *ast.Leaf
	j := i + 1
	if l := leafAt(nodes, j); l != nil && l.Kind == ast.TokenLifetime {
		label = l
		j++
	}
	end := exprEnd(nodes, j)
	var value *ast.Group
	if end > j {
		children, err := s.seq(nodes[j:end], false, depth)
		if err != nil {
			return nil, 0, err
		}
		value = ast.Seq(children...)
	}
	return ast.NewEarlyExit(keyword, label, value), end, nil
}

// exprEnd returns the index of the first `;` or `,` at or after start that
// is not inside closure parameters or turbofish generics, or len(nodes).
func exprEnd(nodes []ast.Node, start int) int {
	angle := 0
	for k := start; k < len(nodes); k++ {
		leaf := leafAt(nodes, k)
		if leaf == nil || leaf.Kind != ast.TokenPunct {
			continue
		}
		if angle > 0 {
			switch leaf.Text {
			case "<":
				angle++
			case "<<":
				angle += 2
			case ">":
				angle--
			case ">>":
				angle -= 2
			}
			if angle < 0 {
				angle = 0
			}
			continue
		}
		switch {
		case leaf.Text == "::" && isLeafAt(nodes, k+1, "<"):
			angle = 1
			k++
		case leaf.Text == "|" && (k == start || !endsOperand(nodes[k-1])):
			if closing := closingPipe(nodes, k); closing > 0 && !armPattern(nodes, closing+1) {
				k = closing
			}
		case leaf.Text == ";" || leaf.Text == ",":
			return k
		}
	}
	return len(nodes)
}

// closingPipe returns the index of the `|` closing the parameter list opened
// at nodes[open], or -1.
func closingPipe(nodes []ast.Node, open int) int {
	for k := open + 1; k < len(nodes); k++ {
		if isLeafAt(nodes, k, "|") {
			return k
		}
	}
	return -1
}

// armPattern reports whether `=>` follows nodes[start:] before the next `;`
// or `,`. A leading `|...|` is then a match-arm pattern such as
// `| A | B => ...`, not closure parameters.
func armPattern(nodes []ast.Node, start int) bool {
	for k := start; k < len(nodes); k++ {
		leaf := leafAt(nodes, k)
		switch {
		case leaf.Is("=>"):
			return true
		case leaf.Is(";"), leaf.Is(","):
			return false
		}
	}
	return false
}

// endsOperand reports whether prev ends an operand, making a following `|`
// a binary operator.
func endsOperand(prev ast.Node) bool {
	switch n := prev.(type) {
	case nil:
		return false
	case *ast.Leaf:
		switch n.Kind {
		case ast.TokenIdent:
			return !nonOperandKeywords[n.Text]
		case ast.TokenLiteral, ast.TokenLifetime:
			return true
		case ast.TokenPunct:
			return n.Text == "?"
		default:
			return false
		}
	case *ast.Attribute, *ast.ItemDecl:
		return false
	default:
		return true
	}
}

func startsStatement(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.Leaf:
		return n.Is(";")
	case *ast.Group:
		return n.Delim == ast.DelimBrace
	case *ast.LabeledBlock:
		return n.Args != nil && n.Args.Delim == ast.DelimBrace
	case *ast.Attribute, *ast.Annotated, *ast.ItemDecl, *ast.ControlBlock:
		return true
	default:
		return false
	}
}

// pullPath moves a trailing `a::b::` path prefix from out into the
// invocation path.
func pullPath(out []ast.Node) ([]ast.Node, []*ast.Leaf) {
	var path []*ast.Leaf
	for len(out) > 0 {
		sep, ok := out[len(out)-1].(*ast.Leaf)
		if !ok || !sep.Is("::") {
			break
		}
		path = append([]*ast.Leaf{sep}, path...)
		out = out[:len(out)-1]
		if len(out) == 0 {
			break
		}
		seg, ok := out[len(out)-1].(*ast.Leaf)
		if !ok || seg.Kind != ast.TokenIdent || nonOperandKeywords[seg.Text] {
			break
		}
		path = append([]*ast.Leaf{seg}, path...)
		out = out[:len(out)-1]
		if seg.Text == "crate" && len(out) > 0 {
			if dollar, ok := out[len(out)-1].(*ast.Leaf); ok && dollar.Is("$") {
				path = append([]*ast.Leaf{dollar}, path...)
				out = out[:len(out)-1]
			}
		}
	}
	return out, path
}

func describe(node ast.Node) string {
	if leaf, ok := node.(*ast.Leaf); ok {
		return leaf.Kind.String() + " `" + leaf.Text + "`"
	}
	if group, ok := node.(*ast.Group); ok {
		return "`" + group.Delim.String() + "` group"
	}
	return string(node.NodeType())
}
