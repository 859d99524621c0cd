package rewrite

import "namedblock/rewriter-go/pkg/ast"

// Expander rewrites every invocation in a structured tree. Invocations the
// Rewriter leaves alone (inside items or ignored nodes of a transformed
// block) are found again in its output and transformed on their own, with
// the labels that enclose them at that point.
type Expander struct {
	rw *Rewriter
}

func NewExpander(rw *Rewriter) *Expander {
	return &Expander{rw: rw}
}

type frame struct {
	label    string
	loop     bool
	boundary bool
}

// Expand returns root with all invocations rewritten. seeds are native
// labels enclosing root, outermost first. The first failing invocation
// aborts the expansion.
func (x *Expander) Expand(root ast.Node, seeds []NativeLabel) (ast.Node, error) {
	stack := make([]frame, 0, len(seeds)+8)
	for _, seed := range seeds {
		stack = append(stack, frame{label: seed.Label, loop: seed.Loop})
	}
	out, _, err := x.walk(root, stack, 0)
	return out, err
}

// Count reports how many invocations root contains, including those nested
// inside items and ignored nodes.
func Count(root ast.Node) int {
	n := 0
	ast.Inspect(root, func(node ast.Node) bool {
		if _, ok := node.(*ast.LabeledBlock); ok {
			n++
		}
		return true
	})
	return n
}

func (x *Expander) walk(node ast.Node, stack []frame, depth int) (ast.Node, bool, error) {
	if depth > x.rw.opts.MaxDepth {
		return nil, false, newError(MalformedInput, node, "nesting exceeds max depth %d", x.rw.opts.MaxDepth)
	}
	switch n := node.(type) {
	case *ast.LabeledBlock:
		out, err := x.rw.Rewrite(n, seedsOf(stack))
		if err != nil {
			return nil, false, err
		}
		again, _, err := x.walk(out, stack, depth+1)
		if err != nil {
			return nil, false, err
		}
		return again, true, nil
	case *ast.Group:
		if n == nil {
			return n, false, nil
		}
		children, changed, err := x.walkAll(n.Children, stack, depth+1)
		if err != nil || !changed {
			return n, false, err
		}
		return n.WithChildren(children), true, nil
	case *ast.ItemDecl:
		children, changed, err := x.walkAll(n.Nodes, nil, depth+1)
		if err != nil || !changed {
			return n, false, err
		}
		return ast.NewItemDecl(n.Kind, children), true, nil
	case *ast.Annotated:
		inner, changed, err := x.walk(n.Inner, stack, depth+1)
		if err != nil || !changed {
			return n, false, err
		}
		return ast.NewAnnotated(n.Marker, inner), true, nil
	case *ast.ControlBlock:
		header, headerChanged, err := x.walkAll(n.Header, stack, depth+1)
		if err != nil {
			return nil, false, err
		}
		inner := stack
		if n.Label != nil {
			inner = push(stack, frame{label: n.Label.Text, loop: n.Kind.IsLoop()})
		}
		body, bodyChanged, err := x.walk(n.Body, inner, depth+1)
		if err != nil {
			return nil, false, err
		}
		if !headerChanged && !bodyChanged {
			return n, false, nil
		}
		return ast.NewControlBlock(n.Kind, n.Label, n.Colon, header, body.(*ast.Group)), true, nil
	case *ast.Closure:
		body, changed, err := x.walk(n.Body, push(stack, frame{boundary: true}), depth+1)
		if err != nil || !changed {
			return n, false, err
		}
		return ast.NewClosure(n.Params, body), true, nil
	case *ast.EarlyExit:
		if n.Value == nil {
			return n, false, nil
		}
		value, changed, err := x.walk(n.Value, stack, depth+1)
		if err != nil || !changed {
			return n, false, err
		}
		return ast.NewEarlyExit(n.Keyword, n.Label, value.(*ast.Group)), true, nil
	default:
		return node, false, nil
	}
}

func (x *Expander) walkAll(nodes []ast.Node, stack []frame, depth int) ([]ast.Node, bool, error) {
	var out []ast.Node
	for i, child := range nodes {
		rewritten, changed, err := x.walk(child, stack, depth)
		if err != nil {
			return nil, false, err
		}
		if changed && out == nil {
			out = make([]ast.Node, i, len(nodes))
			copy(out, nodes[:i])
		}
		if out != nil {
			out = append(out, rewritten)
		}
	}
	if out == nil {
		return nodes, false, nil
	}
	return out, true, nil
}

func push(stack []frame, f frame) []frame {
	out := make([]frame, len(stack), len(stack)+1)
	copy(out, stack)
	return append(out, f)
}

// seedsOf returns the labels visible from the top of stack: everything
// above the innermost closure boundary.
func seedsOf(stack []frame) []NativeLabel {
	start := 0
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].boundary {
			start = i + 1
			break
		}
	}
	var seeds []NativeLabel
	for _, f := range stack[start:] {
		if f.label != "" {
			seeds = append(seeds, NativeLabel{Label: f.label, Loop: f.loop})
		}
	}
	return seeds
}
