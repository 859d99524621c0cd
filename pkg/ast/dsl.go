package ast

// Token helpers. Synthetic tokens carry no source position; sp marks a token
// preceded by a single space.

func Ident(name string) *Leaf {
	return NewLeaf(TokenIdent, name, "", Position{})
}

func Punct(text string) *Leaf {
	return NewLeaf(TokenPunct, text, "", Position{})
}

func Lifetime(name string) *Leaf {
	return NewLeaf(TokenLifetime, name, "", Position{})
}

func Lit(text string) *Leaf {
	return NewLeaf(TokenLiteral, text, "", Position{})
}

func sp(leaf *Leaf) *Leaf {
	return leaf.WithLeading(" ")
}

// SpIdent is Ident preceded by a space.
func SpIdent(name string) *Leaf { return sp(Ident(name)) }

// SpPunct is Punct preceded by a space.
func SpPunct(text string) *Leaf { return sp(Punct(text)) }

// Delimited builds a group whose delimiters are synthetic. openLeading and
// closeLeading are the trivia before the opening and closing delimiters.
func Delimited(delim Delimiter, openLeading, closeLeading string, children ...Node) *Group {
	if delim == DelimNone {
		return NewGroup(DelimNone, nil, nil, children)
	}
	open := NewLeaf(TokenOpen, delim.OpenText(), openLeading, Position{})
	closing := NewLeaf(TokenClose, delim.CloseText(), closeLeading, Position{})
	return NewGroup(delim, open, closing, children)
}

// Seq builds a bare (DelimNone) sequence.
func Seq(children ...Node) *Group {
	return NewGroup(DelimNone, nil, nil, children)
}

// Unit is the `()` value.
func Unit() *Group {
	return Delimited(DelimParen, " ", "")
}
