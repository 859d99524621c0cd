package ast

import "strings"

// Render returns the source text of node. Untouched nodes render exactly as
// they were lexed, trivia included.
func Render(node Node) string {
	var b strings.Builder
	writeNode(&b, node)
	return b.String()
}

func writeNode(b *strings.Builder, node Node) {
	if leaf, ok := node.(*Leaf); ok {
		if leaf == nil {
			return
		}
		b.WriteString(leaf.Leading)
		b.WriteString(leaf.Text)
		return
	}
	for _, part := range Components(node) {
		writeNode(b, part)
	}
}

// Text returns the token text of node with all trivia collapsed to single
// spaces. Used for comparisons that must not depend on formatting.
func Text(node Node) string {
	leaves := Leaves(node)
	parts := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		if leaf.Text == "" {
			continue
		}
		parts = append(parts, leaf.Text)
	}
	return strings.Join(parts, " ")
}
