package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const siteSource = `fn main() {
    'e: for i in 1..5 {
        let v = block!('d: { continue 'e; });
        let f = || block!('q: { 1 });
    }
    let w = named_block::block!('a: { 1 });
    let z = 'outer: {
        block!('c: { break 'outer 3; })
    };
    println!("{}", block!('b: { 2 }));
}
`

func newTestLocator(t *testing.T) *SiteLocator {
	t.Helper()
	locator, err := NewSiteLocator(DefaultOptions())
	if err != nil {
		t.Fatalf("NewSiteLocator: %v", err)
	}
	t.Cleanup(locator.Close)
	return locator
}

func TestLocateSites(t *testing.T) {
	locator := newTestLocator(t)
	scan, err := locator.Locate([]byte(siteSource))
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(scan.Sites) != 5 {
		t.Fatalf("expected 5 sites, got %d", len(scan.Sites))
	}

	expect := []struct {
		prefix     string
		invocation bool
		seeds      []SeedLabel
	}{
		{"block!('d:", true, []SeedLabel{{Label: "'e", Loop: true}}},
		{"block!('q:", true, nil},
		{"named_block::block!('a:", true, nil},
		{"block!('c:", true, []SeedLabel{{Label: "'outer"}}},
		{`("{}", block!`, false, nil},
	}
	for i, want := range expect {
		site := scan.Sites[i]
		text := siteSource[site.Start:site.End]
		if !strings.HasPrefix(text, want.prefix) {
			t.Fatalf("site %d: expected text starting %q, got %q", i, want.prefix, text)
		}
		if site.Invocation != want.invocation {
			t.Fatalf("site %d: expected invocation=%v", i, want.invocation)
		}
		if !reflect.DeepEqual(site.Seeds, want.seeds) {
			t.Fatalf("site %d: expected seeds %#v, got %#v", i, want.seeds, site.Seeds)
		}
	}

	first := scan.Sites[0]
	if first.Pos.Line != 3 || first.Pos.Column != 17 || first.Pos.Offset != first.Start {
		t.Fatalf("unexpected first site position %+v", first.Pos)
	}
	if first.Location.Line != 3 || first.Location.Column != 17 {
		t.Fatalf("unexpected first site location %+v", first.Location)
	}
}

func TestLocateCollectsIdentifiers(t *testing.T) {
	locator := newTestLocator(t)
	scan, err := locator.Locate([]byte(siteSource))
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	for _, name := range []string{"main", "v", "w", "z"} {
		found := false
		for _, ident := range scan.Identifiers {
			if ident == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected identifier %q in %v", name, scan.Identifiers)
		}
	}
}

func TestLocateWithoutMention(t *testing.T) {
	locator := newTestLocator(t)
	scan, err := locator.Locate([]byte("fn main() { let unblock = 1; }"))
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(scan.Sites) != 0 {
		t.Fatalf("expected no sites, got %d", len(scan.Sites))
	}
}

func TestLocateSyntaxError(t *testing.T) {
	locator := newTestLocator(t)
	_, err := locator.Locate([]byte("fn main( {\n    block!('a: { 1 });\n"))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if !strings.HasPrefix(parseErr.Message, "parser: syntax error") {
		t.Fatalf("unexpected message %q", parseErr.Message)
	}
	if parseErr.Location.Line == 0 {
		t.Fatalf("expected a location, got %+v", parseErr.Location)
	}
}
