package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"namedblock/rewriter-go/pkg/ast"
)

// SeedLabel is the label of a native loop or labeled block that encloses a
// site in the host file.
type SeedLabel struct {
	Label string
	Loop  bool
}

// Site is one region of a host file that must go through the rewriter:
// either an invocation itself, or the token tree of another macro whose
// arguments mention the invocation.
type Site struct {
	Start      int
	End        int
	Pos        ast.Position
	Location   SourceLocation
	Seeds      []SeedLabel
	Invocation bool
}

// Scan is the result of locating sites in one file.
type Scan struct {
	Sites []Site
	// Identifiers lists every identifier in the file, sorted.
	Identifiers []string
}

// SiteLocator wraps a tree-sitter parser configured for Rust sources.
type SiteLocator struct {
	parser  *sitter.Parser
	opts    Options
	mention *regexp.Regexp
}

// NewSiteLocator constructs a locator with the Rust grammar loaded.
func NewSiteLocator(opts Options) (*SiteLocator, error) {
	opts = opts.normalized()
	lang := sitter.NewLanguage(tree_sitter_rust.Language())
	if lang == nil {
		return nil, fmt.Errorf("parser: rust language not available")
	}
	p := sitter.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		p.Close()
		return nil, fmt.Errorf("parser: %w", err)
	}
	mention := regexp.MustCompile(`(^|[^\w])` + regexp.QuoteMeta(opts.Macro) + `\s*!`)
	return &SiteLocator{parser: p, opts: opts, mention: mention}, nil
}

// Close releases parser resources.
func (l *SiteLocator) Close() {
	if l == nil || l.parser == nil {
		return
	}
	l.parser.Close()
}

// Locate parses source and returns the outermost sites in source order.
func (l *SiteLocator) Locate(source []byte) (*Scan, error) {
	if l == nil || l.parser == nil {
		return nil, fmt.Errorf("parser: nil site locator")
	}
	if !l.mention.Match(source) {
		return &Scan{}, nil
	}

	tree := l.parser.Parse(source, nil)
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parser: unexpected root node")
	}
	if root.HasError() {
		return nil, syntaxError(root)
	}

	scan := &Scan{}
	seen := make(map[string]bool)
	walkNodes(root, func(node *sitter.Node) {
		if node.Kind() != "identifier" {
			return
		}
		name := sliceContent(node, source)
		if name != "" && !seen[name] {
			seen[name] = true
			scan.Identifiers = append(scan.Identifiers, name)
		}
	})
	sort.Strings(scan.Identifiers)

	l.collect(root, source, scan)
	return scan, nil
}

func (l *SiteLocator) collect(node *sitter.Node, source []byte, scan *Scan) {
	if node == nil {
		return
	}
	if node.Kind() == "macro_invocation" {
		if l.isInvocation(node, source) {
			scan.Sites = append(scan.Sites, newSite(node, source, true))
			return
		}
		if args := tokenTreeOf(node); args != nil && l.mention.MatchString(sliceContent(args, source)) {
			scan.Sites = append(scan.Sites, newSite(args, source, false))
			return
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		l.collect(node.Child(i), source, scan)
	}
}

func (l *SiteLocator) isInvocation(node *sitter.Node, source []byte) bool {
	name := node.ChildByFieldName("macro")
	if name == nil {
		return false
	}
	text := strings.Join(strings.Fields(sliceContent(name, source)), "")
	return text == l.opts.Macro || strings.HasSuffix(text, "::"+l.opts.Macro)
}

func tokenTreeOf(node *sitter.Node) *sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == "token_tree" {
			return child
		}
	}
	return nil
}

func newSite(node *sitter.Node, source []byte, invocation bool) Site {
	start := int(node.StartByte())
	return Site{
		Start:      start,
		End:        int(node.EndByte()),
		Pos:        positionAt(source, start),
		Location:   locationForNode(node),
		Seeds:      seedLabels(node, source),
		Invocation: invocation,
	}
}

// seedLabels returns the labels of native loops and labeled blocks around
// node, outermost first, stopping at the nearest closure or item boundary.
func seedLabels(node *sitter.Node, source []byte) []SeedLabel {
	var seeds []SeedLabel
	for p := node.Parent(); p != nil; p = p.Parent() {
		stop := false
		switch p.Kind() {
		case "loop_expression", "while_expression", "for_expression":
			if label := labelOf(p, source); label != "" {
				seeds = append(seeds, SeedLabel{Label: label, Loop: true})
			}
		case "block":
			if label := labelOf(p, source); label != "" {
				seeds = append(seeds, SeedLabel{Label: label})
			}
		case "closure_expression", "async_block", "function_item", "const_item", "static_item",
			"impl_item", "trait_item", "mod_item", "source_file":
			stop = true
		}
		if stop {
			break
		}
	}
	for i, j := 0, len(seeds)-1; i < j; i, j = i+1, j-1 {
		seeds[i], seeds[j] = seeds[j], seeds[i]
	}
	return seeds
}

func labelOf(node *sitter.Node, source []byte) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == "label" {
			return sliceContent(child, source)
		}
	}
	return ""
}

func sliceContent(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := int(node.StartByte())
	end := int(node.EndByte())
	if start < 0 || end < start || end > len(source) {
		return ""
	}
	return string(source[start:end])
}

// positionAt converts a byte offset into the line/rune-column form the lexer
// uses.
func positionAt(source []byte, offset int) ast.Position {
	if offset > len(source) {
		offset = len(source)
	}
	prefix := source[:offset]
	line := bytes.Count(prefix, []byte{'\n'}) + 1
	lineStart := bytes.LastIndexByte(prefix, '\n') + 1
	return ast.Position{Line: line, Column: utf8.RuneCount(prefix[lineStart:]) + 1, Offset: offset}
}
