package ast

// Components returns the direct parts of node in source order, delimiter and
// keyword leaves included. Rendering the components in order reproduces node.
func Components(node Node) []Node {
	switch n := node.(type) {
	case nil:
		return nil
	case *Leaf:
		return nil
	case *Group:
		if n == nil {
			return nil
		}
		out := make([]Node, 0, len(n.Children)+2)
		out = appendLeaf(out, n.Open)
		out = append(out, n.Children...)
		return appendLeaf(out, n.Close)
	case *LabeledBlock:
		if n == nil {
			return nil
		}
		out := make([]Node, 0, len(n.Path)+2)
		for _, leaf := range n.Path {
			out = appendLeaf(out, leaf)
		}
		out = appendLeaf(out, n.Bang)
		return appendGroup(out, n.Args)
	case *EarlyExit:
		if n == nil {
			return nil
		}
		out := appendLeaf(nil, n.Keyword)
		out = appendLeaf(out, n.Label)
		return appendGroup(out, n.Value)
	case *LoopFlow:
		if n == nil {
			return nil
		}
		out := appendLeaf(nil, n.Keyword)
		return appendLeaf(out, n.Label)
	case *ItemDecl:
		if n == nil {
			return nil
		}
		return n.Nodes
	case *Attribute:
		if n == nil {
			return nil
		}
		out := appendLeaf(nil, n.Hash)
		out = appendLeaf(out, n.Bang)
		return appendGroup(out, n.Body)
	case *Annotated:
		if n == nil {
			return nil
		}
		out := make([]Node, 0, 2)
		if n.Marker != nil {
			out = append(out, n.Marker)
		}
		if n.Inner != nil {
			out = append(out, n.Inner)
		}
		return out
	case *ControlBlock:
		if n == nil {
			return nil
		}
		out := appendLeaf(nil, n.Label)
		out = appendLeaf(out, n.Colon)
		out = append(out, n.Header...)
		return appendGroup(out, n.Body)
	case *Closure:
		if n == nil {
			return nil
		}
		out := append([]Node(nil), n.Params...)
		if n.Body != nil {
			out = append(out, n.Body)
		}
		return out
	default:
		return nil
	}
}

func appendLeaf(out []Node, leaf *Leaf) []Node {
	if leaf == nil {
		return out
	}
	return append(out, leaf)
}

func appendGroup(out []Node, group *Group) []Node {
	if group == nil {
		return out
	}
	return append(out, group)
}

// Inspect walks node depth-first in source order. When visit returns false
// the node's components are skipped.
func Inspect(node Node, visit func(Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for _, part := range Components(node) {
		Inspect(part, visit)
	}
}

// Leaves returns every token of node in source order.
func Leaves(node Node) []*Leaf {
	var out []*Leaf
	Inspect(node, func(n Node) bool {
		if leaf, ok := n.(*Leaf); ok {
			out = append(out, leaf)
		}
		return true
	})
	return out
}

// FirstLeaf returns the first token of node, or nil for an empty node.
func FirstLeaf(node Node) *Leaf {
	if leaf, ok := node.(*Leaf); ok {
		return leaf
	}
	for _, part := range Components(node) {
		if leaf := FirstLeaf(part); leaf != nil {
			return leaf
		}
	}
	return nil
}

// LastLeaf returns the last token of node, or nil for an empty node.
func LastLeaf(node Node) *Leaf {
	if leaf, ok := node.(*Leaf); ok {
		return leaf
	}
	parts := Components(node)
	for i := len(parts) - 1; i >= 0; i-- {
		if leaf := LastLeaf(parts[i]); leaf != nil {
			return leaf
		}
	}
	return nil
}

func spanOf(node Node) Span {
	first := FirstLeaf(node)
	last := LastLeaf(node)
	if first == nil || last == nil {
		return Span{}
	}
	return Span{Start: first.Pos, End: last.Span().End}
}
