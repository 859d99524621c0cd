package ast

type NodeType string

const (
	NodeLeaf         NodeType = "Leaf"
	NodeGroup        NodeType = "Group"
	NodeLabeledBlock NodeType = "LabeledBlock"
	NodeEarlyExit    NodeType = "EarlyExit"
	NodeLoopFlow     NodeType = "LoopFlow"
	NodeItemDecl     NodeType = "ItemDecl"
	NodeAnnotated    NodeType = "Annotated"
	NodeAttribute    NodeType = "Attribute"
	NodeControlBlock NodeType = "ControlBlock"
	NodeClosure      NodeType = "Closure"
)

type Node interface {
	NodeType() NodeType
	Span() Span
	isNode()
}

type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// IsZero reports whether the position was never set (synthetic tokens).
func (p Position) IsZero() bool {
	return p.Line == 0 && p.Column == 0
}

type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type nodeImpl struct {
	Type NodeType `json:"type"`
}

func newNodeImpl(kind NodeType) nodeImpl {
	return nodeImpl{Type: kind}
}

func (n nodeImpl) NodeType() NodeType { return n.Type }
func (nodeImpl) isNode()              {}

// Tokens

type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenLifetime
	TokenLiteral
	TokenPunct
	TokenOpen
	TokenClose
	TokenEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "identifier"
	case TokenLifetime:
		return "lifetime"
	case TokenLiteral:
		return "literal"
	case TokenPunct:
		return "punctuation"
	case TokenOpen:
		return "open delimiter"
	case TokenClose:
		return "close delimiter"
	case TokenEOF:
		return "end of input"
	default:
		return "token"
	}
}

// Leaf is a single token together with the trivia (whitespace and comments)
// that precedes it in the source.
type Leaf struct {
	nodeImpl

	Kind    TokenKind `json:"kind"`
	Text    string    `json:"text"`
	Leading string    `json:"leading,omitempty"`
	Pos     Position  `json:"pos"`
}

func NewLeaf(kind TokenKind, text, leading string, pos Position) *Leaf {
	return &Leaf{nodeImpl: newNodeImpl(NodeLeaf), Kind: kind, Text: text, Leading: leading, Pos: pos}
}

func (l *Leaf) Span() Span {
	if l == nil {
		return Span{}
	}
	end := l.Pos
	end.Column += len([]rune(l.Text))
	end.Offset += len(l.Text)
	return Span{Start: l.Pos, End: end}
}

// Is reports whether the leaf is a non-literal token with the given text.
func (l *Leaf) Is(text string) bool {
	return l != nil && l.Kind != TokenLiteral && l.Text == text
}

// WithLeading returns a copy of the leaf carrying different leading trivia.
func (l *Leaf) WithLeading(leading string) *Leaf {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Leading = leading
	return &clone
}

// Groups

type Delimiter int

const (
	DelimNone Delimiter = iota
	DelimParen
	DelimBracket
	DelimBrace
)

func (d Delimiter) String() string {
	switch d {
	case DelimParen:
		return "()"
	case DelimBracket:
		return "[]"
	case DelimBrace:
		return "{}"
	default:
		return "none"
	}
}

// OpenText returns the opening delimiter text, or "" for DelimNone.
func (d Delimiter) OpenText() string {
	switch d {
	case DelimParen:
		return "("
	case DelimBracket:
		return "["
	case DelimBrace:
		return "{"
	default:
		return ""
	}
}

// CloseText returns the closing delimiter text, or "" for DelimNone.
func (d Delimiter) CloseText() string {
	switch d {
	case DelimParen:
		return ")"
	case DelimBracket:
		return "]"
	case DelimBrace:
		return "}"
	default:
		return ""
	}
}

// Group is a delimited token tree. A DelimNone group has no Open leaf; its
// Close leaf, when present, is an empty TokenEOF leaf holding trailing trivia.
type Group struct {
	nodeImpl

	Delim    Delimiter `json:"delim"`
	Open     *Leaf     `json:"open,omitempty"`
	Close    *Leaf     `json:"close,omitempty"`
	Children []Node    `json:"children"`
}

func NewGroup(delim Delimiter, open, closing *Leaf, children []Node) *Group {
	return &Group{nodeImpl: newNodeImpl(NodeGroup), Delim: delim, Open: open, Close: closing, Children: children}
}

func (g *Group) Span() Span {
	return spanOf(g)
}

// WithChildren returns a group of the same shape holding different children.
func (g *Group) WithChildren(children []Node) *Group {
	return NewGroup(g.Delim, g.Open, g.Close, children)
}

// WithOpenLeading returns a copy whose opening delimiter carries new trivia.
func (g *Group) WithOpenLeading(leading string) *Group {
	if g.Open == nil {
		return g
	}
	return NewGroup(g.Delim, g.Open.WithLeading(leading), g.Close, g.Children)
}

// LabeledBlock is one `block!('label: { ... })` invocation.
type LabeledBlock struct {
	nodeImpl

	Path  []*Leaf `json:"path"`
	Bang  *Leaf   `json:"bang"`
	Args  *Group  `json:"args"`
	Label *Leaf   `json:"label"`
	Colon *Leaf   `json:"colon"`
	Body  *Group  `json:"body"`
}

// NewLabeledBlock builds the invocation node. Args must hold exactly the
// label, colon and body nodes, in that order.
func NewLabeledBlock(path []*Leaf, bang *Leaf, args *Group, label, colon *Leaf, body *Group) *LabeledBlock {
	return &LabeledBlock{
		nodeImpl: newNodeImpl(NodeLabeledBlock),
		Path:     path,
		Bang:     bang,
		Args:     args,
		Label:    label,
		Colon:    colon,
		Body:     body,
	}
}

func (b *LabeledBlock) Span() Span { return spanOf(b) }

// EarlyExit is a `break` with optional label and optional value.
type EarlyExit struct {
	nodeImpl

	Keyword *Leaf  `json:"keyword"`
	Label   *Leaf  `json:"label,omitempty"`
	Value   *Group `json:"value,omitempty"`
}

func NewEarlyExit(keyword, label *Leaf, value *Group) *EarlyExit {
	return &EarlyExit{nodeImpl: newNodeImpl(NodeEarlyExit), Keyword: keyword, Label: label, Value: value}
}

func (e *EarlyExit) Span() Span { return spanOf(e) }

type FlowKind int

const (
	FlowBreak FlowKind = iota
	FlowContinue
)

func (k FlowKind) String() string {
	if k == FlowContinue {
		return "continue"
	}
	return "break"
}

// LoopFlow is a `continue`, or a value-less `break` produced by rewriting.
type LoopFlow struct {
	nodeImpl

	Kind    FlowKind `json:"kind"`
	Keyword *Leaf    `json:"keyword"`
	Label   *Leaf    `json:"label,omitempty"`
}

func NewLoopFlow(kind FlowKind, keyword, label *Leaf) *LoopFlow {
	return &LoopFlow{nodeImpl: newNodeImpl(NodeLoopFlow), Kind: kind, Keyword: keyword, Label: label}
}

func (f *LoopFlow) Span() Span { return spanOf(f) }

// ItemDecl is a whole declaration (fn, struct, impl, ...) kept as one unit.
type ItemDecl struct {
	nodeImpl

	Kind  string `json:"kind"`
	Nodes []Node `json:"nodes"`
}

func NewItemDecl(kind string, nodes []Node) *ItemDecl {
	return &ItemDecl{nodeImpl: newNodeImpl(NodeItemDecl), Kind: kind, Nodes: nodes}
}

func (d *ItemDecl) Span() Span { return spanOf(d) }

// Attribute is `#[...]` or `#![...]`.
type Attribute struct {
	nodeImpl

	Hash *Leaf  `json:"hash"`
	Bang *Leaf  `json:"bang,omitempty"`
	Body *Group `json:"body"`
}

func NewAttribute(hash, bang *Leaf, body *Group) *Attribute {
	return &Attribute{nodeImpl: newNodeImpl(NodeAttribute), Hash: hash, Bang: bang, Body: body}
}

func (a *Attribute) Span() Span { return spanOf(a) }

// Annotated pairs an opt-out marker with the node it decorates.
type Annotated struct {
	nodeImpl

	Marker *Attribute `json:"marker"`
	Inner  Node       `json:"inner"`
}

func NewAnnotated(marker *Attribute, inner Node) *Annotated {
	return &Annotated{nodeImpl: newNodeImpl(NodeAnnotated), Marker: marker, Inner: inner}
}

func (a *Annotated) Span() Span { return spanOf(a) }

// Control blocks

type ControlKind int

const (
	ControlLoop ControlKind = iota
	ControlWhile
	ControlFor
	ControlLabeled
)

func (k ControlKind) String() string {
	switch k {
	case ControlWhile:
		return "while"
	case ControlFor:
		return "for"
	case ControlLabeled:
		return "labeled block"
	default:
		return "loop"
	}
}

// IsLoop reports whether bare break/continue inside the body bind to it.
func (k ControlKind) IsLoop() bool {
	return k != ControlLabeled
}

// ControlBlock is a native loop (`loop`, `while`, `for`) or a native labeled
// block `'x: { ... }`. Header holds the keyword and condition tokens.
type ControlBlock struct {
	nodeImpl

	Kind   ControlKind `json:"kind"`
	Label  *Leaf       `json:"label,omitempty"`
	Colon  *Leaf       `json:"colon,omitempty"`
	Header []Node      `json:"header"`
	Body   *Group      `json:"body"`
}

func NewControlBlock(kind ControlKind, label, colon *Leaf, header []Node, body *Group) *ControlBlock {
	return &ControlBlock{
		nodeImpl: newNodeImpl(NodeControlBlock),
		Kind:     kind,
		Label:    label,
		Colon:    colon,
		Header:   header,
		Body:     body,
	}
}

func (c *ControlBlock) Span() Span { return spanOf(c) }

// Closure is `move |params| -> T body`; Params holds everything before Body.
type Closure struct {
	nodeImpl

	Params []Node `json:"params"`
	Body   Node   `json:"body"`
}

func NewClosure(params []Node, body Node) *Closure {
	return &Closure{nodeImpl: newNodeImpl(NodeClosure), Params: params, Body: body}
}

func (c *Closure) Span() Span { return spanOf(c) }
