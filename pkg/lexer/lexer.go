// Package lexer turns source text into token trees: leaves for tokens and
// groups for matched (), [] and {} pairs. Whitespace and comments are kept
// as leading trivia on the following token so that rendering an unmodified
// tree reproduces the input byte for byte.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"namedblock/rewriter-go/pkg/ast"
)

// Error reports malformed input (unterminated literal or comment, unbalanced
// delimiters).
type Error struct {
	Message string
	Pos     ast.Position
}

func (e *Error) Error() string {
	if e.Pos.IsZero() {
		return "lexer: " + e.Message
	}
	return fmt.Sprintf("lexer: %s at %d:%d", e.Message, e.Pos.Line, e.Pos.Column)
}

// Lex tokenizes src starting at line 1, column 1.
func Lex(src string) (*ast.Group, error) {
	return LexAt(src, ast.Position{Line: 1, Column: 1})
}

// LexAt tokenizes src whose first byte sits at start in some larger file.
// The result is a DelimNone group whose Close leaf carries trailing trivia.
func LexAt(src string, start ast.Position) (*ast.Group, error) {
	if start.Line <= 0 {
		start.Line = 1
	}
	if start.Column <= 0 {
		start.Column = 1
	}
	s := &scanner{src: src, line: start.Line, col: start.Column, base: start.Offset}
	return s.run()
}

var multiPunct = []string{
	"<<=", ">>=", "...", "..=",
	"::", "->", "=>", "==", "!=", "<=", ">=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "^=", "&=", "|=", "<<", ">>", "..",
}

type frame struct {
	delim    ast.Delimiter
	open     *ast.Leaf
	children []ast.Node
}

type scanner struct {
	src  string
	off  int
	line int
	col  int
	base int
}

func (s *scanner) run() (*ast.Group, error) {
	stack := []*frame{{delim: ast.DelimNone}}
	for {
		leading, err := s.trivia()
		if err != nil {
			return nil, err
		}
		pos := s.position()
		if s.off >= len(s.src) {
			if len(stack) > 1 {
				top := stack[len(stack)-1]
				return nil, &Error{Message: fmt.Sprintf("unclosed delimiter %q", top.open.Text), Pos: top.open.Pos}
			}
			eof := ast.NewLeaf(ast.TokenEOF, "", leading, pos)
			return ast.NewGroup(ast.DelimNone, nil, eof, stack[0].children), nil
		}
		ch := s.src[s.off]
		switch ch {
		case '(', '[', '{':
			s.advance(1)
			open := ast.NewLeaf(ast.TokenOpen, string(ch), leading, pos)
			stack = append(stack, &frame{delim: delimFor(ch), open: open})
		case ')', ']', '}':
			top := stack[len(stack)-1]
			if len(stack) == 1 {
				return nil, &Error{Message: fmt.Sprintf("unexpected closing delimiter %q", string(ch)), Pos: pos}
			}
			if top.delim != delimFor(ch) {
				return nil, &Error{
					Message: fmt.Sprintf("mismatched closing delimiter %q for %q opened at %d:%d", string(ch), top.open.Text, top.open.Pos.Line, top.open.Pos.Column),
					Pos:     pos,
				}
			}
			s.advance(1)
			closing := ast.NewLeaf(ast.TokenClose, string(ch), leading, pos)
			group := ast.NewGroup(top.delim, top.open, closing, top.children)
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, group)
		default:
			kind, text, err := s.token()
			if err != nil {
				return nil, err
			}
			top := stack[len(stack)-1]
			top.children = append(top.children, ast.NewLeaf(kind, text, leading, pos))
		}
	}
}

func delimFor(ch byte) ast.Delimiter {
	switch ch {
	case '(', ')':
		return ast.DelimParen
	case '[', ']':
		return ast.DelimBracket
	default:
		return ast.DelimBrace
	}
}

func (s *scanner) position() ast.Position {
	return ast.Position{Line: s.line, Column: s.col, Offset: s.base + s.off}
}

// advance moves n bytes forward, tracking lines and rune columns.
func (s *scanner) advance(n int) {
	end := s.off + n
	if end > len(s.src) {
		end = len(s.src)
	}
	for s.off < end {
		r, size := utf8.DecodeRuneInString(s.src[s.off:])
		s.off += size
		if r == '\n' {
			s.line++
			s.col = 1
		} else {
			s.col++
		}
	}
}

func (s *scanner) peekAt(i int) byte {
	if s.off+i >= len(s.src) {
		return 0
	}
	return s.src[s.off+i]
}

func (s *scanner) rest() string {
	return s.src[s.off:]
}

func (s *scanner) trivia() (string, error) {
	start := s.off
	for s.off < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.rest())
		switch {
		case unicode.IsSpace(r):
			s.advance(size)
		case strings.HasPrefix(s.rest(), "//"):
			idx := strings.IndexByte(s.rest(), '\n')
			if idx < 0 {
				s.advance(len(s.rest()))
			} else {
				s.advance(idx)
			}
		case strings.HasPrefix(s.rest(), "/*"):
			if err := s.blockComment(); err != nil {
				return "", err
			}
		default:
			return s.src[start:s.off], nil
		}
	}
	return s.src[start:s.off], nil
}

func (s *scanner) blockComment() error {
	pos := s.position()
	depth := 0
	for s.off < len(s.src) {
		switch {
		case strings.HasPrefix(s.rest(), "/*"):
			depth++
			s.advance(2)
		case strings.HasPrefix(s.rest(), "*/"):
			depth--
			s.advance(2)
			if depth == 0 {
				return nil
			}
		default:
			_, size := utf8.DecodeRuneInString(s.rest())
			s.advance(size)
		}
	}
	return &Error{Message: "unterminated block comment", Pos: pos}
}

func (s *scanner) token() (ast.TokenKind, string, error) {
	start := s.off
	pos := s.position()
	r, size := utf8.DecodeRuneInString(s.rest())

	switch {
	case isIdentStart(r):
		if kind, ok, err := s.prefixedLiteral(); ok || err != nil {
			return kind, s.src[start:s.off], err
		}
		if strings.HasPrefix(s.rest(), "r#") {
			next, _ := utf8.DecodeRuneInString(s.src[s.off+2:])
			if isIdentStart(next) {
				s.advance(2)
			}
		}
		s.identifier()
		return ast.TokenIdent, s.src[start:s.off], nil
	case r >= '0' && r <= '9':
		s.number()
		return ast.TokenLiteral, s.src[start:s.off], nil
	case r == '"':
		if err := s.quoted('"', pos); err != nil {
			return 0, "", err
		}
		return ast.TokenLiteral, s.src[start:s.off], nil
	case r == '\'':
		kind, err := s.quoteOrLifetime(pos)
		return kind, s.src[start:s.off], err
	}

	for _, p := range multiPunct {
		if strings.HasPrefix(s.rest(), p) {
			s.advance(len(p))
			return ast.TokenPunct, p, nil
		}
	}
	s.advance(size)
	return ast.TokenPunct, s.src[start:s.off], nil
}

// prefixedLiteral handles b"", b'', c"", r"", r#""#, br"" and cr"".
func (s *scanner) prefixedLiteral() (ast.TokenKind, bool, error) {
	pos := s.position()
	rest := s.rest()
	prefix := 0
	switch {
	case strings.HasPrefix(rest, "br"), strings.HasPrefix(rest, "cr"):
		prefix = 2
	case strings.HasPrefix(rest, "r"):
		prefix = 1
	}
	if prefix > 0 {
		hashes := 0
		for prefix+hashes < len(rest) && rest[prefix+hashes] == '#' {
			hashes++
		}
		if prefix+hashes < len(rest) && rest[prefix+hashes] == '"' {
			s.advance(prefix + hashes + 1)
			closing := "\"" + strings.Repeat("#", hashes)
			idx := strings.Index(s.rest(), closing)
			if idx < 0 {
				return 0, true, &Error{Message: "unterminated raw string literal", Pos: pos}
			}
			s.advance(idx + len(closing))
			return ast.TokenLiteral, true, nil
		}
	}
	if len(rest) >= 2 && (rest[0] == 'b' || rest[0] == 'c') && rest[1] == '"' {
		s.advance(1)
		return ast.TokenLiteral, true, s.quoted('"', pos)
	}
	if len(rest) >= 2 && rest[0] == 'b' && rest[1] == '\'' {
		s.advance(1)
		return ast.TokenLiteral, true, s.quoted('\'', pos)
	}
	return 0, false, nil
}

// quoted consumes a literal delimited by quote, honoring backslash escapes.
func (s *scanner) quoted(quote byte, pos ast.Position) error {
	s.advance(1)
	for s.off < len(s.src) {
		ch := s.src[s.off]
		switch ch {
		case '\\':
			s.advance(1)
			if s.off < len(s.src) {
				_, size := utf8.DecodeRuneInString(s.rest())
				s.advance(size)
			}
		case quote:
			s.advance(1)
			return nil
		default:
			_, size := utf8.DecodeRuneInString(s.rest())
			s.advance(size)
		}
	}
	if quote == '"' {
		return &Error{Message: "unterminated string literal", Pos: pos}
	}
	return &Error{Message: "unterminated character literal", Pos: pos}
}

// quoteOrLifetime distinguishes 'x' and '\n' character literals from 'label.
func (s *scanner) quoteOrLifetime(pos ast.Position) (ast.TokenKind, error) {
	if s.peekAt(1) == '\\' {
		return ast.TokenLiteral, s.quoted('\'', pos)
	}
	r, size := utf8.DecodeRuneInString(s.src[s.off+1:])
	if s.peekAt(1+size) == '\'' && r != utf8.RuneError {
		s.advance(2 + size)
		return ast.TokenLiteral, nil
	}
	if isIdentStart(r) {
		s.advance(1)
		s.identifier()
		return ast.TokenLifetime, nil
	}
	return 0, &Error{Message: "invalid character literal", Pos: pos}
}

func (s *scanner) identifier() {
	for s.off < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.rest())
		if !isIdentContinue(r) {
			return
		}
		s.advance(size)
	}
}

func (s *scanner) number() {
	start := s.off
	hex := strings.HasPrefix(s.rest(), "0x") || strings.HasPrefix(s.rest(), "0X")
	seenDot := false
	for s.off < len(s.src) {
		ch := s.src[s.off]
		switch {
		case ch == '_' || (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
			s.advance(1)
		case ch == '.' && !seenDot && !hex && isDigit(s.peekAt(1)):
			seenDot = true
			s.advance(1)
		case (ch == '+' || ch == '-') && !hex && s.off > start && isExponent(s.src[s.off-1]) && isDigit(s.peekAt(1)):
			s.advance(1)
		default:
			return
		}
	}
}

func isExponent(ch byte) bool {
	return ch == 'e' || ch == 'E'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
