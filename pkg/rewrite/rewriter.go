// Package rewrite turns labeled-block invocations into a result slot, a
// single-iteration labeled loop, and assign-then-break exits.
package rewrite

import (
	"fmt"
	"strings"

	"namedblock/rewriter-go/pkg/ast"
)

const DefaultMaxDepth = 512

// ClosureMode decides what happens to a labeled exit that reaches a
// transformed block through a closure boundary.
type ClosureMode int

const (
	ClosuresStrict ClosureMode = iota
	ClosuresPermissive
)

func (m ClosureMode) String() string {
	if m == ClosuresPermissive {
		return "permissive"
	}
	return "strict"
}

func ParseClosureMode(value string) (ClosureMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "strict":
		return ClosuresStrict, nil
	case "permissive":
		return ClosuresPermissive, nil
	default:
		return ClosuresStrict, fmt.Errorf("rewrite: unknown closure mode %q (want strict or permissive)", value)
	}
}

type Options struct {
	Closures ClosureMode
	MaxDepth int
}

// Rewriter transforms single invocations. One Rewriter (and its Generator)
// serves a whole translation unit so that result slots never repeat.
type Rewriter struct {
	gen  *Generator
	opts Options
}

func New(gen *Generator, opts Options) *Rewriter {
	if gen == nil {
		gen = NewGenerator("")
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Rewriter{gen: gen, opts: opts}
}

// Rewrite transforms one invocation. seeds are the labels of native
// constructs enclosing it, outermost first. Nested invocations inside the
// body are transformed as well, except those inside items and ignored nodes.
func (r *Rewriter) Rewrite(block *ast.LabeledBlock, seeds []NativeLabel) (ast.Node, error) {
	if block == nil {
		return nil, &Error{Kind: MalformedInput, Message: "nil invocation"}
	}
	w := &walker{opts: r.opts, scopes: NewTracker(r.gen)}
	w.scopes.Seed(seeds)
	return w.block(block, 0)
}

type walker struct {
	opts   Options
	scopes *Tracker
}

func (w *walker) block(lb *ast.LabeledBlock, depth int) (ast.Node, error) {
	if lb.Label == nil || lb.Label.Kind != ast.TokenLifetime || lb.Body == nil {
		return nil, newError(MalformedInput, lb, "invocation without label or body")
	}
	entry := w.scopes.Enter(lb.Label.Text)
	defer w.scopes.Exit()

	body, err := w.group(lb.Body, depth+1)
	if err != nil {
		return nil, err
	}
	return emitBlock(lb, entry, body), nil
}

func (w *walker) node(node ast.Node, depth int) (ast.Node, error) {
	if depth > w.opts.MaxDepth {
		return nil, newError(MalformedInput, node, "nesting exceeds max depth %d", w.opts.MaxDepth)
	}
	switch n := node.(type) {
	case *ast.Leaf, *ast.ItemDecl, *ast.Attribute:
		return n, nil
	case *ast.Group:
		return w.group(n, depth+1)
	case *ast.LabeledBlock:
		return w.block(n, depth)
	case *ast.EarlyExit:
		return w.exit(n, depth)
	case *ast.LoopFlow:
		return w.flow(n, depth)
	case *ast.Annotated:
		return stripMarker(n), nil
	case *ast.ControlBlock:
		return w.control(n, depth)
	case *ast.Closure:
		return w.closure(n, depth)
	case nil:
		return nil, nil
	default:
		return nil, newError(MalformedInput, node, "unexpected node %s", node.NodeType())
	}
}

func (w *walker) nodes(nodes []ast.Node, depth int) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(nodes))
	for _, child := range nodes {
		rewritten, err := w.node(child, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, rewritten)
	}
	return out, nil
}

func (w *walker) group(g *ast.Group, depth int) (*ast.Group, error) {
	if g == nil {
		return nil, nil
	}
	if depth > w.opts.MaxDepth {
		return nil, newError(MalformedInput, g, "nesting exceeds max depth %d", w.opts.MaxDepth)
	}
	children, err := w.nodes(g.Children, depth)
	if err != nil {
		return nil, err
	}
	return g.WithChildren(children), nil
}

func (w *walker) control(cb *ast.ControlBlock, depth int) (ast.Node, error) {
	header, err := w.nodes(cb.Header, depth)
	if err != nil {
		return nil, err
	}
	label := ""
	if cb.Label != nil {
		label = cb.Label.Text
	}
	kind := ScopeLabeled
	if cb.Kind.IsLoop() {
		kind = ScopeLoop
	}
	w.scopes.EnterNative(kind, label)
	defer w.scopes.Exit()

	body, err := w.group(cb.Body, depth+1)
	if err != nil {
		return nil, err
	}
	return ast.NewControlBlock(cb.Kind, cb.Label, cb.Colon, header, body), nil
}

func (w *walker) closure(c *ast.Closure, depth int) (ast.Node, error) {
	w.scopes.EnterClosure()
	defer w.scopes.Exit()

	body, err := w.node(c.Body, depth+1)
	if err != nil {
		return nil, err
	}
	return ast.NewClosure(c.Params, body), nil
}

func (w *walker) value(value *ast.Group, depth int) (*ast.Group, error) {
	if value == nil {
		return nil, nil
	}
	return w.group(value, depth+1)
}
