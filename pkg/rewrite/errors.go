package rewrite

import (
	"fmt"

	"namedblock/rewriter-go/pkg/ast"
)

type ErrorKind int

const (
	UnresolvedLabel ErrorKind = iota + 1
	InvalidBareExit
	InvalidSelfContinue
	MalformedInput
	ExitAcrossClosure
)

func (k ErrorKind) String() string {
	switch k {
	case UnresolvedLabel:
		return "unresolved label"
	case InvalidBareExit:
		return "invalid bare exit"
	case InvalidSelfContinue:
		return "invalid self continue"
	case MalformedInput:
		return "malformed input"
	case ExitAcrossClosure:
		return "exit across closure"
	default:
		return "error"
	}
}

// Error is a position-tagged rewriting failure. A failed invocation
// produces no output tree.
type Error struct {
	Kind    ErrorKind
	Message string
	Pos     ast.Position
}

func (e *Error) Error() string {
	if e.Pos.IsZero() {
		return fmt.Sprintf("rewrite: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("rewrite: %d:%d: %s: %s", e.Pos.Line, e.Pos.Column, e.Kind, e.Message)
}

// IsInternal reports whether the error is an invariant violation rather
// than a mistake in the user's code.
func (e *Error) IsInternal() bool {
	return e != nil && e.Kind == MalformedInput
}

func newError(kind ErrorKind, at ast.Node, format string, args ...any) *Error {
	pos := ast.Position{}
	if first := ast.FirstLeaf(at); first != nil {
		pos = first.Pos
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Malformed wraps a front-end failure (lexing, nesting depth) as
// MalformedInput.
func Malformed(err error, pos ast.Position) *Error {
	return &Error{Kind: MalformedInput, Message: err.Error(), Pos: pos}
}
