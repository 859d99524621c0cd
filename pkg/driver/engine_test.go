package driver

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func process(t *testing.T, engine *Engine, src string) *Result {
	t.Helper()
	res, err := engine.ProcessSource("lib.rs", []byte(src))
	if err != nil {
		t.Fatalf("ProcessSource: %v", err)
	}
	return res
}

func TestProcessSourceWithoutInvocations(t *testing.T) {
	engine := newTestEngine(t, nil)
	src := "fn main() {\n    let block = 1;\n    println!(\"{}\", block);\n}\n"
	res := process(t, engine, src)
	if res.Changed() || res.Failed() || res.Sites != 0 {
		t.Fatalf("expected untouched file, got %+v", res)
	}
	if string(res.Output) != src {
		t.Fatalf("output differs from source:\n%s", res.Output)
	}
}

func TestProcessSourceRewritesInvocation(t *testing.T) {
	engine := newTestEngine(t, nil)
	src := strings.Join([]string{
		"fn main() {",
		"    let x = block!('a: {",
		"        if cond() { break 'a 1; }",
		"        2",
		"    });",
		"}",
		"",
	}, "\n")
	want := strings.Join([]string{
		"fn main() {",
		"    let x = { let __named_block_a_1; 'a: loop { __named_block_a_1 = {",
		"        if cond() { { __named_block_a_1 = 1; break 'a; }; }",
		"        2",
		"    }; break 'a; } __named_block_a_1 };",
		"}",
		"",
	}, "\n")
	res := process(t, engine, src)
	if res.Failed() {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	if got := string(res.Output); got != want {
		t.Fatalf("unexpected output\nwant:\n%s\ngot:\n%s", want, got)
	}
	if !res.Changed() || res.Sites != 1 {
		t.Fatalf("expected one rewritten site, got %+v", res)
	}
}

func TestProcessSourceSharesSlotsAcrossSites(t *testing.T) {
	engine := newTestEngine(t, nil)
	src := "fn f() -> i32 {\n    let __named_block_a_1 = 0;\n    let p = block!('a: { 1 });\n    let q = block!('a: { 2 });\n    p + q\n}\n"
	res := process(t, engine, src)
	out := string(res.Output)
	if res.Sites != 2 || res.Failed() {
		t.Fatalf("unexpected result %+v", res)
	}
	if strings.Count(out, "let __named_block_a_1") != 1 {
		t.Fatalf("source identifier reused as a slot:\n%s", out)
	}
	for _, slot := range []string{"let __named_block_a_2;", "let __named_block_a_3;"} {
		if !strings.Contains(out, slot) {
			t.Fatalf("expected %q in\n%s", slot, out)
		}
	}
}

func TestProcessSourceSeedsEnclosingLabels(t *testing.T) {
	engine := newTestEngine(t, nil)
	src := strings.Join([]string{
		"fn f(v: &[i32]) {",
		"    'outer: for x in v {",
		"        let y = block!('b: { if *x > 2 { continue 'outer; } *x });",
		"        println!(\"{}\", y);",
		"    }",
		"}",
		"",
	}, "\n")
	res := process(t, engine, src)
	if res.Failed() {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	out := string(res.Output)
	if !strings.Contains(out, "if *x > 2 { continue 'outer; }") || !strings.Contains(out, "let __named_block_b_1;") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "'outer: for x in v {\n") {
		t.Fatalf("host loop changed:\n%s", out)
	}
}

func TestProcessSourceInsideForeignMacro(t *testing.T) {
	engine := newTestEngine(t, nil)
	src := "fn main() {\n    println!(\"{}\", block!('a: { 1 }));\n}\n"
	res := process(t, engine, src)
	if res.Failed() {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	if !strings.Contains(string(res.Output), "println!(\"{}\", { let __named_block_a_1; 'a: loop {") {
		t.Fatalf("expected expansion inside println:\n%s", res.Output)
	}
}

func TestProcessSourceReportsEveryFailure(t *testing.T) {
	engine := newTestEngine(t, nil)
	src := strings.Join([]string{
		"fn g() {",
		"    let a = block!('a: { break; });",
		"    let b = block!('b: { break 'z 1; });",
		"    let c = block!('c: { 3 });",
		"}",
		"",
	}, "\n")
	res := process(t, engine, src)
	if len(res.Diagnostics) != 2 {
		t.Fatalf("expected two diagnostics, got %v", res.Diagnostics)
	}
	first, second := res.Diagnostics[0], res.Diagnostics[1]
	if got := first.String(); got != "lib.rs:2:26: invalid bare exit: bare `break` inside block 'a would leave its synthetic loop; add a label" {
		t.Fatalf("unexpected first diagnostic %q", got)
	}
	if second.Line != 3 || second.Column != 32 || second.Kind != "unresolved label" {
		t.Fatalf("unexpected second diagnostic %+v", second)
	}
	if res.Internal() {
		t.Fatalf("user errors reported as internal")
	}
	if res.Changed() || !bytes.Equal(res.Output, res.Source) {
		t.Fatalf("a file with errors must be left unchanged")
	}
}

func TestProcessSourceSyntaxError(t *testing.T) {
	engine := newTestEngine(t, nil)
	res := process(t, engine, "fn main( {\n    block!('a: { 1 });\n}\n")
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != KindSyntax {
		t.Fatalf("expected one syntax diagnostic, got %v", res.Diagnostics)
	}
	if res.Diagnostics[0].Line == 0 {
		t.Fatalf("expected a located diagnostic, got %+v", res.Diagnostics[0])
	}
}

func TestProcessSourceMalformedInvocation(t *testing.T) {
	engine := newTestEngine(t, nil)
	res := process(t, engine, "fn main() {\n    let v = block!(a: { 1 });\n}\n")
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != KindSyntax {
		t.Fatalf("expected a malformed invocation diagnostic, got %v", res.Diagnostics)
	}
	if res.Diagnostics[0].Line != 2 {
		t.Fatalf("expected the diagnostic on line 2, got %+v", res.Diagnostics[0])
	}
}

func TestProcessSourceDepthLimitIsInternal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 4
	engine := newTestEngine(t, cfg)
	src := "fn main() {\n    let v = block!('a: { " + strings.Repeat("(", 10) + "1" + strings.Repeat(")", 10) + " });\n}\n"
	res := process(t, engine, src)
	if len(res.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %v", res.Diagnostics)
	}
	if d := res.Diagnostics[0]; d.Kind != "malformed input" || !d.Internal || !res.Internal() {
		t.Fatalf("expected internal malformed input, got %+v", d)
	}
}

func TestProcessSourcePermissiveClosures(t *testing.T) {
	src := "fn main() {\n    let v = block!('a: { let f = || { break 'a 1; }; 2 });\n}\n"

	strict := process(t, newTestEngine(t, nil), src)
	if len(strict.Diagnostics) != 1 || strict.Diagnostics[0].Kind != "exit across closure" {
		t.Fatalf("expected strict mode to reject, got %v", strict.Diagnostics)
	}

	cfg := DefaultConfig()
	cfg.Closures = "permissive"
	loose := process(t, newTestEngine(t, cfg), src)
	if loose.Failed() || !strings.Contains(string(loose.Output), "|| { { __named_block_a_1 = 1; break 'a; }; }") {
		t.Fatalf("expected permissive rewrite, got %v\n%s", loose.Diagnostics, loose.Output)
	}
}

func TestProcessSourceCustomMacro(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Macro = "nb"
	cfg.SymbolPrefix = "ret"
	engine := newTestEngine(t, cfg)
	res := process(t, engine, "fn main() {\n    let v = nb!('a: { 1 });\n    let w = block!('b: { 2 });\n}\n")
	out := string(res.Output)
	if res.Sites != 1 || !strings.Contains(out, "let ret_a_1;") || !strings.Contains(out, "block!('b: { 2 })") {
		t.Fatalf("unexpected custom macro output:\n%s", out)
	}
}

func TestExpandFragment(t *testing.T) {
	engine := newTestEngine(t, nil)
	src := "block!('a: { loop { continue 'l; } })"

	res, err := engine.ExpandFragment(src, []string{"l"})
	if err != nil {
		t.Fatalf("ExpandFragment: %v", err)
	}
	if res.Failed() || !strings.Contains(string(res.Output), "loop { continue 'l; }") {
		t.Fatalf("unexpected expansion %v\n%s", res.Diagnostics, res.Output)
	}

	res, err = engine.ExpandFragment(src, nil)
	if err != nil {
		t.Fatalf("ExpandFragment: %v", err)
	}
	if len(res.Diagnostics) != 1 || !strings.HasPrefix(res.Diagnostics[0].String(), "<stdin>:1:30: unresolved label") {
		t.Fatalf("expected unresolved label, got %v", res.Diagnostics)
	}
}

func TestExpandFragmentLexError(t *testing.T) {
	engine := newTestEngine(t, nil)
	res, err := engine.ExpandFragment("block!('a: { \"open })", nil)
	if err != nil {
		t.Fatalf("ExpandFragment: %v", err)
	}
	if len(res.Diagnostics) != 1 || !res.Diagnostics[0].Internal || res.Diagnostics[0].Kind != "malformed input" {
		t.Fatalf("expected malformed input, got %v", res.Diagnostics)
	}
}

func TestProcessFileAndWriteResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.rs")
	writeFile(t, path, "fn main() { let v = block!('a: { 1 }); }\n")
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	engine := newTestEngine(t, nil)
	res, err := engine.ProcessFile(path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	written, err := WriteResult(res)
	if err != nil || !written {
		t.Fatalf("WriteResult = %v, %v", written, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != string(res.Output) {
		t.Fatalf("file not updated:\n%s", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode changed to %v", info.Mode().Perm())
	}

	again, err := engine.ProcessFile(path)
	if err != nil {
		t.Fatalf("ProcessFile second pass: %v", err)
	}
	if again.Sites != 0 || again.Changed() {
		t.Fatalf("expected rewritten file to be stable, got %+v", again)
	}
	if written, _ := WriteResult(again); written {
		t.Fatalf("unchanged result should not be written")
	}

	if _, err := engine.ProcessFile(filepath.Join(dir, "missing.rs")); err == nil {
		t.Fatalf("expected read error")
	}
}
