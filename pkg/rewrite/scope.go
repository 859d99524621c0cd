package rewrite

type ScopeKind int

const (
	// ScopeBlock is an invocation being transformed by this rewrite.
	ScopeBlock ScopeKind = iota
	// ScopeLoop is a native loop, while or for.
	ScopeLoop
	// ScopeLabeled is a native labeled block `'x: { ... }`.
	ScopeLabeled
	// ScopeClosure is a closure or async block boundary.
	ScopeClosure
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeBlock:
		return "block"
	case ScopeLoop:
		return "loop"
	case ScopeLabeled:
		return "labeled block"
	case ScopeClosure:
		return "closure"
	default:
		return "scope"
	}
}

// ScopeEntry is one frame of the label stack. Only ScopeBlock entries are
// active, i.e. owned by the rewrite and carrying a result slot.
type ScopeEntry struct {
	Kind   ScopeKind
	Label  string
	Result string
	Active bool
}

// NativeLabel is a label of a native construct enclosing an invocation.
type NativeLabel struct {
	Label string
	Loop  bool
}

// Resolution is the target of a labeled exit.
type Resolution struct {
	Entry *ScopeEntry
	// CrossedClosure is set when a closure boundary lies between the exit
	// and its target.
	CrossedClosure bool
}

// Tracker is the label stack maintained during one rewrite.
type Tracker struct {
	gen   *Generator
	stack []*ScopeEntry
}

func NewTracker(gen *Generator) *Tracker {
	return &Tracker{gen: gen}
}

// Seed pushes the labels of native constructs around the invocation,
// outermost first.
func (t *Tracker) Seed(labels []NativeLabel) {
	for _, native := range labels {
		kind := ScopeLabeled
		if native.Loop {
			kind = ScopeLoop
		}
		t.EnterNative(kind, native.Label)
	}
}

// Enter pushes a transformed block and allocates its result slot.
func (t *Tracker) Enter(label string) *ScopeEntry {
	entry := &ScopeEntry{Kind: ScopeBlock, Label: label, Result: t.gen.Fresh(label), Active: true}
	t.stack = append(t.stack, entry)
	return entry
}

// EnterNative pushes a native loop or labeled block; label may be empty.
func (t *Tracker) EnterNative(kind ScopeKind, label string) *ScopeEntry {
	entry := &ScopeEntry{Kind: kind, Label: label}
	t.stack = append(t.stack, entry)
	return entry
}

func (t *Tracker) EnterClosure() *ScopeEntry {
	return t.EnterNative(ScopeClosure, "")
}

func (t *Tracker) Exit() {
	if len(t.stack) == 0 {
		return
	}
	t.stack = t.stack[:len(t.stack)-1]
}

func (t *Tracker) Depth() int {
	return len(t.stack)
}

// Resolve finds the innermost entry carrying label.
func (t *Tracker) Resolve(label string) (Resolution, bool) {
	crossed := false
	for i := len(t.stack) - 1; i >= 0; i-- {
		entry := t.stack[i]
		if entry.Kind == ScopeClosure {
			crossed = true
			continue
		}
		if entry.Label == label {
			return Resolution{Entry: entry, CrossedClosure: crossed}, true
		}
	}
	return Resolution{}, false
}

// ResolveBare returns the transformed block an unlabeled exit would bind
// to. It reports false when a native loop or closure binds it first, or
// when nothing does.
func (t *Tracker) ResolveBare() (*ScopeEntry, bool) {
	for i := len(t.stack) - 1; i >= 0; i-- {
		entry := t.stack[i]
		switch entry.Kind {
		case ScopeLabeled:
			continue
		case ScopeBlock:
			return entry, true
		default:
			return nil, false
		}
	}
	return nil, false
}
