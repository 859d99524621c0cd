package parser

const (
	DefaultMacro        = "block"
	DefaultIgnoreMarker = "ignore"
	DefaultMaxDepth     = 512
)

// Options selects the invocation surface recognized by the structurer.
type Options struct {
	// Macro is the invocation name, as in `block!('a: { ... })`.
	Macro string
	// IgnoreMarker is the argument of the opt-out attribute `#[block(ignore)]`.
	IgnoreMarker string
	// MaxDepth bounds group nesting.
	MaxDepth int
}

func DefaultOptions() Options {
	return Options{Macro: DefaultMacro, IgnoreMarker: DefaultIgnoreMarker, MaxDepth: DefaultMaxDepth}
}

func (o Options) normalized() Options {
	if o.Macro == "" {
		o.Macro = DefaultMacro
	}
	if o.IgnoreMarker == "" {
		o.IgnoreMarker = DefaultIgnoreMarker
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}
