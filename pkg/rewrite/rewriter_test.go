package rewrite

import (
	"errors"
	"strings"
	"testing"

	"namedblock/rewriter-go/pkg/ast"
	"namedblock/rewriter-go/pkg/lexer"
	"namedblock/rewriter-go/pkg/parser"
)

func structure(t *testing.T, src string) *ast.Group {
	t.Helper()
	root, err := lexer.Lex(src)
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	structured, err := parser.Structure(root, parser.DefaultOptions())
	if err != nil {
		t.Fatalf("structure %q: %v", src, err)
	}
	return structured
}

func firstBlock(t *testing.T, root ast.Node) *ast.LabeledBlock {
	t.Helper()
	var found *ast.LabeledBlock
	ast.Inspect(root, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if lb, ok := n.(*ast.LabeledBlock); ok {
			found = lb
			return false
		}
		return true
	})
	if found == nil {
		t.Fatalf("no invocation in %q", ast.Render(root))
	}
	return found
}

func rewriteSource(t *testing.T, src string, opts Options, seeds []NativeLabel) (string, error) {
	t.Helper()
	rw := New(NewGenerator(""), opts)
	out, err := rw.Rewrite(firstBlock(t, structure(t, src)), seeds)
	if err != nil {
		return "", err
	}
	return ast.Render(out), nil
}

func mustRewrite(t *testing.T, src string) string {
	t.Helper()
	out, err := rewriteSource(t, src, Options{}, nil)
	if err != nil {
		t.Fatalf("rewrite %q: %v", src, err)
	}
	return out
}

func TestRewriteEndToEnd(t *testing.T) {
	got := mustRewrite(t, "block!('a: { break 'a 0; 1 })")
	want := "{ let __named_block_a_1; 'a: loop { __named_block_a_1 = { { __named_block_a_1 = 0; break 'a; }; 1 }; break 'a; } __named_block_a_1 }"
	if got != want {
		t.Fatalf("unexpected expansion\nwant %s\n got %s", want, got)
	}
}

func TestRewriteKeepsSurroundingLayout(t *testing.T) {
	src := "block!('a: {\n    if c {\n        break 'a \"early\";\n    }\n    \"normal\"\n})"
	got := mustRewrite(t, src)
	if !strings.Contains(got, "if c {\n        { __named_block_a_1 = \"early\"; break 'a; };\n    }\n    \"normal\"\n}") {
		t.Fatalf("unexpected layout:\n%s", got)
	}
}

func TestRewriteUnitValue(t *testing.T) {
	got := mustRewrite(t, "block!('a: { if c { break 'a; } })")
	if !strings.Contains(got, "{ __named_block_a_1 = (); break 'a; }") {
		t.Fatalf("expected unit assignment, got %s", got)
	}
}

func TestRewriteShadowing(t *testing.T) {
	got := mustRewrite(t, "block!('a: { let v = block!('a: { break 'a 1; }); break 'a 2; })")
	if !strings.Contains(got, "__named_block_a_2 = 1; break 'a;") {
		t.Fatalf("inner exit should target the inner slot: %s", got)
	}
	if !strings.Contains(got, "__named_block_a_1 = 2; break 'a;") {
		t.Fatalf("outer exit should target the outer slot: %s", got)
	}
	if strings.Contains(got, "__named_block_a_1 = 1") {
		t.Fatalf("inner exit leaked into the outer slot: %s", got)
	}
}

func TestRewriteOuterExitFromNestedBlock(t *testing.T) {
	got := mustRewrite(t, "block!('b: { let y = block!('c: { if f { break 'b 1; }; 2 }); 3 })")
	if !strings.Contains(got, "__named_block_b_1 = 1; break 'b;") {
		t.Fatalf("expected exit to the outer block, got %s", got)
	}
}

func TestRewriteRejections(t *testing.T) {
	cases := []struct {
		name string
		src  string
		kind ErrorKind
		col  int
	}{
		{"bare break", "block!('a: { break; })", InvalidBareExit, 14},
		{"bare break with value", "block!('a: { break 1; })", InvalidBareExit, 14},
		{"bare continue", "block!('a: { continue; })", InvalidBareExit, 14},
		{"bare break in native labeled block", "block!('a: { 'n: { break; } })", InvalidBareExit, 20},
		{"self continue", "block!('a: { continue 'a; })", InvalidSelfContinue, 14},
		{"unknown label", "block!('a: { break 'z 5; })", UnresolvedLabel, 20},
		{"unknown continue label", "block!('a: { loop { continue 'z; } })", UnresolvedLabel, 30},
		{"closure crossing", "block!('a: { let f = || { break 'a 1; }; })", ExitAcrossClosure, 27},
		{"bare break in pipe-pattern arm", "block!('a: { match x { A => 0, | B | C => break, } })", InvalidBareExit, 43},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rewriteSource(t, tc.src, Options{}, nil)
			var rwErr *Error
			if !errors.As(err, &rwErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if rwErr.Kind != tc.kind {
				t.Fatalf("expected %s, got %s (%s)", tc.kind, rwErr.Kind, rwErr.Message)
			}
			if rwErr.Pos.Line != 1 || rwErr.Pos.Column != tc.col {
				t.Fatalf("expected position 1:%d, got %d:%d", tc.col, rwErr.Pos.Line, rwErr.Pos.Column)
			}
			if rwErr.IsInternal() {
				t.Fatalf("user error reported as internal")
			}
		})
	}
}

func TestRewriteExitInPipePatternArm(t *testing.T) {
	got := mustRewrite(t, "block!('a: { match x { | A | B => break 'a 1, _ => 2 } })")
	want := "| A | B => { __named_block_a_1 = 1; break 'a; }, _ => 2"
	if !strings.Contains(got, want) {
		t.Fatalf("expected %q in %s", want, got)
	}
}

func TestRewriteNativeLoopsPassThrough(t *testing.T) {
	src := "block!('a: { loop { break; } while x { continue; } 'l: for i in v { break 'l; continue 'l; } let n = 'n: { break 'n 1; }; 3 })"
	got := mustRewrite(t, src)
	for _, want := range []string{"loop { break; }", "while x { continue; }", "'l: for i in v { break 'l; continue 'l; }", "'n: { break 'n 1; }"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q untouched in %s", want, got)
		}
	}
}

func TestRewriteNativeExitValueIsRewritten(t *testing.T) {
	got := mustRewrite(t, "block!('a: { 'l: loop { break 'l block!('b: { 1 }); } })")
	if !strings.Contains(got, "break 'l {") || !strings.Contains(got, "let __named_block_b_2;") {
		t.Fatalf("expected the nested invocation in the loop exit value to expand: %s", got)
	}
}

func TestRewriteSeededLabels(t *testing.T) {
	src := "block!('d: { continue 'e; })"
	got, err := rewriteSource(t, src, Options{}, []NativeLabel{{Label: "'e", Loop: true}})
	if err != nil {
		t.Fatalf("rewrite with seeds: %v", err)
	}
	if !strings.Contains(got, "continue 'e;") {
		t.Fatalf("expected continue to pass through: %s", got)
	}

	_, err = rewriteSource(t, src, Options{}, nil)
	var rwErr *Error
	if !errors.As(err, &rwErr) || rwErr.Kind != UnresolvedLabel {
		t.Fatalf("expected UnresolvedLabel without seeds, got %v", err)
	}
}

func TestRewritePermissiveClosures(t *testing.T) {
	src := "block!('a: { let f = || { break 'a 1; }; f(); 2 })"
	got, err := rewriteSource(t, src, Options{Closures: ClosuresPermissive}, nil)
	if err != nil {
		t.Fatalf("permissive rewrite: %v", err)
	}
	if !strings.Contains(got, "|| { { __named_block_a_1 = 1; break 'a; }; }") {
		t.Fatalf("expected closure exit to be rewritten: %s", got)
	}
}

func TestRewriteClosureOwnsBareExits(t *testing.T) {
	got := mustRewrite(t, "block!('a: { let f = || loop { break; }; v.iter().for_each(|x| { let _ = x; }); 1 })")
	if !strings.Contains(got, "loop { break; }") {
		t.Fatalf("expected closure loop untouched: %s", got)
	}
}

func TestRewriteItemsAndIgnoredNodesVerbatim(t *testing.T) {
	item := "fn f() -> i32 { block!('a: { break 'a 42; }) }"
	ignored := "{ break 'a 7; }"
	src := "block!('a: {\n    " + item + "\n    #[block(ignore)] " + ignored + "\n    break 'a 1;\n})"
	got := mustRewrite(t, src)
	if !strings.Contains(got, item) {
		t.Fatalf("item changed:\n%s", got)
	}
	if !strings.Contains(got, ignored) {
		t.Fatalf("ignored node changed:\n%s", got)
	}
	if strings.Contains(got, "#[block(ignore)]") {
		t.Fatalf("ignore marker should be stripped:\n%s", got)
	}
	if !strings.Contains(got, "__named_block_a_1 = 1; break 'a;") {
		t.Fatalf("expected the block's own exit rewritten:\n%s", got)
	}
}

func TestRewriteStripsMarkerLayout(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"own line", "\n    #[block(ignore)]\n    { x }\n    1\n", "= {\n    { x }\n    1\n};"},
		{"same line as node", "\n    #[block(ignore)] { x }\n    1\n", "= {\n    { x }\n    1\n};"},
		{"comment kept", "\n    // keep\n    #[block(ignore)]\n    { x }\n    1\n", "= {\n    // keep\n    { x }\n    1\n};"},
		{"inline", " let v = #[block(ignore)] { x }; 1 ", "= { let v = { x }; 1 };"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mustRewrite(t, "block!('a: {"+tc.body+"})")
			if !strings.Contains(got, tc.want) {
				t.Fatalf("got %q want it to contain %q", got, tc.want)
			}
			for _, line := range strings.Split(got, "\n") {
				if line != "" && strings.TrimSpace(line) == "" {
					t.Fatalf("whitespace-only line left behind in %q", got)
				}
			}
		})
	}
}

func TestMarkerTrivia(t *testing.T) {
	cases := []struct {
		marker, inner, want string
	}{
		{"\n    ", "\n    ", ""},
		{"\n    ", " ", "\n   "},
		{"\n    ", "", "\n    "},
		{" ", " ", ""},
		{"\n  /* c */\n  ", "\n  ", "\n  /* c */"},
		{"", "\n", ""},
	}
	for _, tc := range cases {
		if got := markerTrivia(tc.marker, tc.inner); got != tc.want {
			t.Fatalf("markerTrivia(%q, %q) = %q, want %q", tc.marker, tc.inner, got, tc.want)
		}
	}
}

func TestRewriteSingleResultSlot(t *testing.T) {
	out, err := New(NewGenerator(""), Options{}).Rewrite(
		firstBlock(t, structure(t, "block!('a: { if x { break 'a 1; } if y { break 'a 2; } let z = block!('b: { 3 }); 4 })")), nil)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	for _, slot := range []string{"__named_block_a_1", "__named_block_b_2"} {
		declared := 0
		leaves := ast.Leaves(out)
		for i := 1; i < len(leaves); i++ {
			if leaves[i].Text == slot && leaves[i-1].Text == "let" {
				declared++
			}
		}
		if declared != 1 {
			t.Fatalf("%s declared %d times", slot, declared)
		}
	}
	group, ok := out.(*ast.Group)
	if !ok || group.Delim != ast.DelimBrace {
		t.Fatalf("expected a braced expansion, got %T", out)
	}
	last, ok := group.Children[len(group.Children)-1].(*ast.Leaf)
	if !ok || last.Text != "__named_block_a_1" {
		t.Fatalf("expected the block to end by reading its slot, got %#v", group.Children[len(group.Children)-1])
	}
}

func TestRewriteDepthLimit(t *testing.T) {
	src := "block!('a: { " + strings.Repeat("(", 12) + "1" + strings.Repeat(")", 12) + " })"
	_, err := rewriteSource(t, src, Options{MaxDepth: 6}, nil)
	var rwErr *Error
	if !errors.As(err, &rwErr) || rwErr.Kind != MalformedInput || !rwErr.IsInternal() {
		t.Fatalf("expected internal MalformedInput, got %v", err)
	}
}

func TestParseClosureMode(t *testing.T) {
	for value, want := range map[string]ClosureMode{"": ClosuresStrict, "strict": ClosuresStrict, "Permissive": ClosuresPermissive} {
		got, err := ParseClosureMode(value)
		if err != nil || got != want {
			t.Fatalf("ParseClosureMode(%q) = %v, %v", value, got, err)
		}
	}
	if _, err := ParseClosureMode("loose"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
