// Package driver runs the rewriter over host files: it locates invocation
// sites, transforms each one and splices the results back into the file.
package driver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"namedblock/rewriter-go/pkg/ast"
	"namedblock/rewriter-go/pkg/lexer"
	"namedblock/rewriter-go/pkg/parser"
	"namedblock/rewriter-go/pkg/rewrite"
)

// KindSyntax labels diagnostics for host syntax errors and malformed
// invocations.
const KindSyntax = "syntax error"

// Diagnostic is one failure reported for a file.
type Diagnostic struct {
	Path     string
	Line     int
	Column   int
	Kind     string
	Message  string
	Internal bool
}

func (d Diagnostic) String() string {
	path := d.Path
	if path == "" {
		path = "<stdin>"
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", path, d.Line, d.Column, d.Kind, d.Message)
}

// Result is the outcome of processing one file. Output equals Source
// whenever Diagnostics is non-empty.
type Result struct {
	Path        string
	Source      []byte
	Output      []byte
	Sites       int
	Diagnostics []Diagnostic
}

// Changed reports whether the file needs to be rewritten.
func (r *Result) Changed() bool {
	return r != nil && len(r.Diagnostics) == 0 && !bytes.Equal(r.Source, r.Output)
}

// Failed reports whether any diagnostic was recorded.
func (r *Result) Failed() bool {
	return r != nil && len(r.Diagnostics) > 0
}

// Internal reports whether any diagnostic is an invariant violation.
func (r *Result) Internal() bool {
	if r == nil {
		return false
	}
	for _, d := range r.Diagnostics {
		if d.Internal {
			return true
		}
	}
	return false
}

// Engine owns the tree-sitter locator and the settings shared by every file
// it processes. It is not safe for concurrent use.
type Engine struct {
	cfg      *Config
	locator  *parser.SiteLocator
	reporter Reporter
}

// NewEngine constructs an engine. A nil cfg means DefaultConfig; a nil
// reporter discards progress output.
func NewEngine(cfg *Config, reporter Reporter) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	locator, err := parser.NewSiteLocator(cfg.ParserOptions())
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, locator: locator, reporter: reporter}, nil
}

// Close releases parser resources.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.locator != nil {
		e.locator.Close()
		e.locator = nil
	}
}

func (e *Engine) Config() *Config {
	return e.cfg
}

// ProcessFile reads path and runs ProcessSource on it.
func (e *Engine) ProcessFile(path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("driver: read %s: %w", path, err)
	}
	return e.ProcessSource(path, src)
}

// ProcessSource transforms every site in src. One file is one translation
// unit: all of its sites share a symbol generator seeded with the file's
// identifiers. Every site is attempted so that all failures get reported,
// but a file with any failure is returned unchanged.
func (e *Engine) ProcessSource(path string, src []byte) (*Result, error) {
	if e == nil || e.locator == nil {
		return nil, fmt.Errorf("driver: closed")
	}
	res := &Result{Path: path, Source: src, Output: src}

	scan, err := e.locator.Locate(src)
	if err != nil {
		var perr *parser.ParseError
		if !errors.As(err, &perr) {
			return nil, err
		}
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Path:    path,
			Line:    perr.Location.Line,
			Column:  perr.Location.Column,
			Kind:    KindSyntax,
			Message: trimPrefix(perr.Message),
		})
		return res, nil
	}
	res.Sites = len(scan.Sites)
	if len(scan.Sites) == 0 {
		return res, nil
	}

	gen := rewrite.NewGenerator(e.cfg.SymbolPrefix)
	gen.Reserve(scan.Identifiers...)
	expander := rewrite.NewExpander(rewrite.New(gen, e.cfg.RewriteOptions()))

	var out bytes.Buffer
	last := 0
	for _, site := range scan.Sites {
		rendered, err := e.expandSite(expander, gen, string(src[site.Start:site.End]), site.Pos, nativeSeeds(site.Seeds))
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, diagnosticFor(path, err, site.Pos))
			continue
		}
		out.Write(src[last:site.Start])
		out.WriteString(rendered)
		last = site.End
	}
	if len(res.Diagnostics) > 0 {
		e.reporter.Printf("%s: %d site(s), %d error(s)", displayPath(path), len(scan.Sites), len(res.Diagnostics))
		return res, nil
	}
	out.Write(src[last:])
	res.Output = out.Bytes()
	e.reporter.Printf("%s: rewrote %d site(s)", displayPath(path), len(scan.Sites))
	return res, nil
}

// ExpandFragment transforms a standalone token sequence, such as one read
// from stdin. labels name native loops assumed to enclose the fragment,
// outermost first.
func (e *Engine) ExpandFragment(src string, labels []string) (*Result, error) {
	if e == nil {
		return nil, fmt.Errorf("driver: closed")
	}
	res := &Result{Source: []byte(src), Output: []byte(src)}
	seeds := make([]rewrite.NativeLabel, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if !strings.HasPrefix(label, "'") {
			label = "'" + label
		}
		seeds = append(seeds, rewrite.NativeLabel{Label: label, Loop: true})
	}

	gen := rewrite.NewGenerator(e.cfg.SymbolPrefix)
	expander := rewrite.NewExpander(rewrite.New(gen, e.cfg.RewriteOptions()))
	start := ast.Position{Line: 1, Column: 1}
	rendered, err := e.expandSite(expander, gen, src, start, seeds)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, diagnosticFor("", err, start))
		return res, nil
	}
	res.Output = []byte(rendered)
	return res, nil
}

func (e *Engine) expandSite(x *rewrite.Expander, gen *rewrite.Generator, text string, pos ast.Position, seeds []rewrite.NativeLabel) (string, error) {
	root, err := lexer.LexAt(text, pos)
	if err != nil {
		return "", err
	}
	structured, err := parser.Structure(root, e.cfg.ParserOptions())
	if err != nil {
		return "", err
	}
	gen.ReserveFrom(structured)
	out, err := x.Expand(structured, seeds)
	if err != nil {
		return "", err
	}
	return ast.Render(out), nil
}

func nativeSeeds(seeds []parser.SeedLabel) []rewrite.NativeLabel {
	if len(seeds) == 0 {
		return nil
	}
	out := make([]rewrite.NativeLabel, len(seeds))
	for i, s := range seeds {
		out[i] = rewrite.NativeLabel{Label: s.Label, Loop: s.Loop}
	}
	return out
}

// diagnosticFor maps front-end and rewriter errors onto a Diagnostic.
// Lexer and depth failures become MalformedInput.
func diagnosticFor(path string, err error, fallback ast.Position) Diagnostic {
	var (
		lexErr   *lexer.Error
		depthErr *parser.DepthError
		parseErr *parser.ParseError
		rwErr    *rewrite.Error
	)
	switch {
	case errors.As(err, &lexErr):
		rwErr = rewrite.Malformed(errors.New(lexErr.Message), lexErr.Pos)
	case errors.As(err, &depthErr):
		rwErr = rewrite.Malformed(errors.New(trimPrefix(depthErr.Error())), depthErr.Pos)
	case errors.As(err, &parseErr):
		return Diagnostic{
			Path:    path,
			Line:    parseErr.Location.Line,
			Column:  parseErr.Location.Column,
			Kind:    KindSyntax,
			Message: trimPrefix(parseErr.Message),
		}
	case errors.As(err, &rwErr):
	default:
		rwErr = rewrite.Malformed(err, fallback)
	}
	pos := rwErr.Pos
	if pos.IsZero() {
		pos = fallback
	}
	return Diagnostic{
		Path:     path,
		Line:     pos.Line,
		Column:   pos.Column,
		Kind:     rwErr.Kind.String(),
		Message:  rwErr.Message,
		Internal: rwErr.IsInternal(),
	}
}

func trimPrefix(message string) string {
	message = strings.TrimPrefix(message, "parser: ")
	if message == KindSyntax {
		return "unexpected input"
	}
	return strings.TrimPrefix(message, KindSyntax+": ")
}

// WriteResult stores a changed result back to its path, keeping the file
// mode. Unchanged and failed results are left alone.
func WriteResult(res *Result) (bool, error) {
	if !res.Changed() {
		return false, nil
	}
	if res.Path == "" {
		return false, fmt.Errorf("driver: result has no path")
	}
	info, err := os.Stat(res.Path)
	if err != nil {
		return false, fmt.Errorf("driver: stat %s: %w", res.Path, err)
	}
	if err := os.WriteFile(res.Path, res.Output, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("driver: write %s: %w", res.Path, err)
	}
	return true, nil
}
