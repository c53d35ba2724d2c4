package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenNumber
	tokenString
	tokenDate
	tokenField
	tokenIdent
	tokenOp
	tokenLParen
	tokenRParen
	tokenLBrace
	tokenRBrace
	tokenColon
	tokenComma
	tokenDot
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of input"
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenDate:
		return "date"
	case tokenField:
		return "field reference"
	case tokenIdent:
		return "identifier"
	case tokenOp:
		return "operator"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenLBrace:
		return "'{'"
	case tokenRBrace:
		return "'}'"
	case tokenColon:
		return "':'"
	case tokenComma:
		return "','"
	case tokenDot:
		return "'.'"
	}
	return "unknown token"
}

// A token's text is verbatim source text.  For tokenString and tokenDate it
// includes the delimiters so literals can be re-emitted exactly as authored.
type token struct {
	typ  tokenType
	text string
	pos  int
}

func (t token) String() string {
	if t.typ == tokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

type lexer struct {
	src    string
	cursor int
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpace(); err != nil {
		return token{}, err
	}
	if l.cursor >= len(l.src) {
		return token{typ: tokenEOF, pos: l.cursor}, nil
	}
	pos := l.cursor
	c := l.src[l.cursor]
	switch {
	case c == '[':
		return l.field()
	case c == '\'' || c == '"':
		return l.stringLit(c)
	case c == '#':
		return l.dateLit()
	case c >= '0' && c <= '9':
		return l.number()
	case c == '.' && l.cursor+1 < len(l.src) && isDigit(l.src[l.cursor+1]):
		return l.number()
	case isIdentStart(rune(c)):
		return l.ident()
	}
	switch c {
	case '(':
		l.cursor++
		return token{tokenLParen, "(", pos}, nil
	case ')':
		l.cursor++
		return token{tokenRParen, ")", pos}, nil
	case '{':
		l.cursor++
		return token{tokenLBrace, "{", pos}, nil
	case '}':
		l.cursor++
		return token{tokenRBrace, "}", pos}, nil
	case ':':
		l.cursor++
		return token{tokenColon, ":", pos}, nil
	case ',':
		l.cursor++
		return token{tokenComma, ",", pos}, nil
	case '.':
		l.cursor++
		return token{tokenDot, ".", pos}, nil
	case '+', '-', '*', '/', '%', '^':
		l.cursor++
		return token{tokenOp, string(c), pos}, nil
	case '=':
		l.cursor++
		if l.peekByte() == '=' {
			l.cursor++
			return token{tokenOp, "==", pos}, nil
		}
		return token{tokenOp, "=", pos}, nil
	case '!':
		l.cursor++
		if l.peekByte() == '=' {
			l.cursor++
			return token{tokenOp, "!=", pos}, nil
		}
		return token{}, &Error{Msg: "unexpected character '!'", Pos: pos, End: pos + 1}
	case '<':
		l.cursor++
		switch l.peekByte() {
		case '=':
			l.cursor++
			return token{tokenOp, "<=", pos}, nil
		case '>':
			l.cursor++
			return token{tokenOp, "<>", pos}, nil
		}
		return token{tokenOp, "<", pos}, nil
	case '>':
		l.cursor++
		if l.peekByte() == '=' {
			l.cursor++
			return token{tokenOp, ">=", pos}, nil
		}
		return token{tokenOp, ">", pos}, nil
	}
	r, n := utf8.DecodeRuneInString(l.src[l.cursor:])
	return token{}, &Error{
		Msg: fmt.Sprintf("unexpected character %q", r),
		Pos: pos,
		End: pos + n,
	}
}

func (l *lexer) peekByte() byte {
	if l.cursor < len(l.src) {
		return l.src[l.cursor]
	}
	return 0
}

// skipSpace advances over whitespace and both comment forms.
func (l *lexer) skipSpace() error {
	for l.cursor < len(l.src) {
		c := l.src[l.cursor]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.cursor++
		case strings.HasPrefix(l.src[l.cursor:], "//"):
			if i := strings.IndexByte(l.src[l.cursor:], '\n'); i >= 0 {
				l.cursor += i + 1
			} else {
				l.cursor = len(l.src)
			}
		case strings.HasPrefix(l.src[l.cursor:], "/*"):
			i := strings.Index(l.src[l.cursor+2:], "*/")
			if i < 0 {
				return &Error{Msg: "unterminated comment", Pos: l.cursor, End: len(l.src)}
			}
			l.cursor += i + 4
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) field() (token, error) {
	pos := l.cursor
	l.cursor++ // consume '['
	for l.cursor < len(l.src) {
		if l.src[l.cursor] == ']' {
			l.cursor++
			return token{tokenField, l.src[pos:l.cursor], pos}, nil
		}
		l.cursor++
	}
	return token{}, &Error{Msg: "unterminated field reference", Pos: pos, End: len(l.src)}
}

func (l *lexer) stringLit(quote byte) (token, error) {
	pos := l.cursor
	l.cursor++
	for l.cursor < len(l.src) {
		c := l.src[l.cursor]
		if c == '\\' && l.cursor+1 < len(l.src) {
			l.cursor += 2
			continue
		}
		if c == quote {
			l.cursor++
			return token{tokenString, l.src[pos:l.cursor], pos}, nil
		}
		l.cursor++
	}
	return token{}, &Error{Msg: "unterminated string literal", Pos: pos, End: len(l.src)}
}

func (l *lexer) dateLit() (token, error) {
	pos := l.cursor
	l.cursor++
	for l.cursor < len(l.src) {
		if l.src[l.cursor] == '#' {
			l.cursor++
			return token{tokenDate, l.src[pos:l.cursor], pos}, nil
		}
		l.cursor++
	}
	return token{}, &Error{Msg: "unterminated date literal", Pos: pos, End: len(l.src)}
}

func (l *lexer) number() (token, error) {
	pos := l.cursor
	for l.cursor < len(l.src) && isDigit(l.src[l.cursor]) {
		l.cursor++
	}
	if l.cursor < len(l.src) && l.src[l.cursor] == '.' {
		l.cursor++
		for l.cursor < len(l.src) && isDigit(l.src[l.cursor]) {
			l.cursor++
		}
	}
	if l.cursor < len(l.src) && (l.src[l.cursor] == 'e' || l.src[l.cursor] == 'E') {
		mark := l.cursor
		l.cursor++
		if l.cursor < len(l.src) && (l.src[l.cursor] == '+' || l.src[l.cursor] == '-') {
			l.cursor++
		}
		if l.cursor < len(l.src) && isDigit(l.src[l.cursor]) {
			for l.cursor < len(l.src) && isDigit(l.src[l.cursor]) {
				l.cursor++
			}
		} else {
			l.cursor = mark
		}
	}
	return token{tokenNumber, l.src[pos:l.cursor], pos}, nil
}

func (l *lexer) ident() (token, error) {
	pos := l.cursor
	for l.cursor < len(l.src) {
		r, n := utf8.DecodeRuneInString(l.src[l.cursor:])
		if !isIdentPart(r) {
			break
		}
		l.cursor += n
	}
	return token{tokenIdent, l.src[pos:l.cursor], pos}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
