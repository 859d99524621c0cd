package rewrite

import (
	"sync"
	"testing"
)

func TestGeneratorFresh(t *testing.T) {
	gen := NewGenerator("")
	if got := gen.Fresh("'a"); got != "__named_block_a_1" {
		t.Fatalf("unexpected first name %q", got)
	}
	if got := gen.Fresh("'a"); got != "__named_block_a_2" {
		t.Fatalf("unexpected second name %q", got)
	}
	if got := gen.Fresh("'1x"); got != "__named_block__1x_3" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}

func TestGeneratorSkipsReservedNames(t *testing.T) {
	gen := NewGenerator("ret")
	gen.Reserve("ret_a_1")
	gen.ReserveFrom(structure(t, "let ret_a_2 = r#ret_a_3;"))
	if got := gen.Fresh("'a"); got != "ret_a_4" {
		t.Fatalf("expected reserved names to be skipped, got %q", got)
	}
}

func TestGeneratorConcurrentUse(t *testing.T) {
	gen := NewGenerator("")
	const workers, perWorker = 8, 200
	names := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				names <- gen.Fresh("'a")
			}
		}()
	}
	wg.Wait()
	close(names)
	seen := make(map[string]bool)
	for name := range names {
		if seen[name] {
			t.Fatalf("duplicate name %q", name)
		}
		seen[name] = true
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d names, got %d", workers*perWorker, len(seen))
	}
}
