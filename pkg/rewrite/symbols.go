package rewrite

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"namedblock/rewriter-go/pkg/ast"
)

const DefaultSymbolPrefix = "__named_block"

// Generator hands out result-slot names. Names are unique for the lifetime
// of the generator and never equal a reserved (source) identifier. It is
// safe for concurrent use.
type Generator struct {
	prefix  string
	counter atomic.Uint64

	mu       sync.Mutex
	reserved map[string]struct{}
}

func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultSymbolPrefix
	}
	return &Generator{prefix: sanitizeIdent(prefix), reserved: make(map[string]struct{})}
}

// Reserve marks names as taken.
func (g *Generator) Reserve(names ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, name := range names {
		g.reserved[name] = struct{}{}
	}
}

// ReserveFrom reserves every identifier token under node.
func (g *Generator) ReserveFrom(node ast.Node) {
	var names []string
	for _, leaf := range ast.Leaves(node) {
		if leaf.Kind == ast.TokenIdent {
			names = append(names, strings.TrimPrefix(leaf.Text, "r#"))
		}
	}
	g.Reserve(names...)
}

// Fresh returns a new name built from hint, typically the block label.
func (g *Generator) Fresh(hint string) string {
	base := sanitizeIdent(strings.TrimPrefix(hint, "'"))
	for {
		n := g.counter.Add(1)
		name := g.prefix + "_" + base + "_" + strconv.FormatUint(n, 10)
		g.mu.Lock()
		if _, taken := g.reserved[name]; !taken {
			g.reserved[name] = struct{}{}
			g.mu.Unlock()
			return name
		}
		g.mu.Unlock()
	}
}

func sanitizeIdent(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			if i == 0 && unicode.IsDigit(r) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
