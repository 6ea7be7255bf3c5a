package calculator

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type lexToken struct {
	text string
	kind tokenKind
	pos  int
	// val is the value of a number token.
	val float64
}

func (t lexToken) String() string {
	return t.kind.String() + ":" + t.text + "@" + strconv.Itoa(t.pos)
}

type tokenKind int

const (
	tokenNone tokenKind = iota
	// tokenEOF indicates the end of the input.
	tokenEOF
	// tokenNum is a decimal number, possibly with an exponent.
	tokenNum
	// tokenIdent is a constant or function name.
	tokenIdent
	// tokenOp is an operator.
	tokenOp
	// tokenOpen is an open parenthesis.
	tokenOpen
	// tokenClose is a close parenthesis.
	tokenClose
	// tokenSep is a function arguments separator.
	tokenSep
)

func (k tokenKind) String() string {
	switch k {
	case tokenNone:
		return "None"
	case tokenEOF:
		return "EOF"
	case tokenNum:
		return "Num"
	case tokenIdent:
		return "Ident"
	case tokenOp:
		return "Op"
	case tokenOpen:
		return "Open"
	case tokenClose:
		return "Close"
	case tokenSep:
		return "Sep"
	default:
		return "tokenKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Operators contains the runes which are considered to be operators.
const Operators = "+-*/^!"

type lexer struct {
	src string
	// off is the byte offset of the next rune.
	off int
	// col is the number of runes scanned so far.
	col int
	p   lexToken
	eof bool
}

func lex(src string) *lexer {
	return &lexer{src: src}
}

// push unreads a token so that it is the next token returned from next. Panics
// if there is already a pushed token.
func (l *lexer) push(tok lexToken) {
	if l.p.kind != tokenNone {
		panic("calculator: double push")
	}
	l.p = tok
}

// must scans the pushed token. Panics if there is no pushed token.
func (l *lexer) must() lexToken {
	tok := l.p
	if tok.kind == tokenNone {
		panic("calculator: no pushed token")
	}
	l.p = lexToken{}
	return tok
}

// peek returns the rune k runes ahead of the next one without consuming
// anything. The result is -1 past the end of the input.
func (l *lexer) peek(k int) rune {
	off := l.off
	for {
		if off >= len(l.src) {
			return -1
		}
		r, sz := utf8.DecodeRuneInString(l.src[off:])
		if k == 0 {
			return r
		}
		off += sz
		k--
	}
}

// readRune consumes a rune and updates the lexer's position info.
func (l *lexer) readRune() rune {
	r, sz := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += sz
	l.col++
	return r
}

// next scans the next token from the input. The first time the end of input
// is reached, the result is an EOF token with a nil error. Subsequent times,
// if the EOF token is not pushed, the result is an empty token with errEOF.
func (l *lexer) next() (lexToken, error) {
	if l.p.kind != tokenNone {
		tok := l.p
		l.p = lexToken{}
		return tok, nil
	}
	if l.eof {
		return lexToken{}, errEOF
	}
	for {
		tok := lexToken{pos: l.col + 1}
		r := l.peek(0)
		switch {
		case r < 0:
			tok.kind = tokenEOF
			l.eof = true
			return tok, nil
		case unicode.IsSpace(r):
			// Preprocessing normally strips spaces, but the lexer does not
			// depend on it.
			l.readRune()
			continue
		case '0' <= r && r <= '9', r == '.':
			return l.scanNum(tok)
		case unicode.IsLetter(r):
			return l.scanIdent(tok), nil
		case r == ',':
			l.readRune()
			tok.text = ","
			tok.kind = tokenSep
			return tok, nil
		case r == '(':
			l.readRune()
			tok.text = "("
			tok.kind = tokenOpen
			return tok, nil
		case r == ')':
			l.readRune()
			tok.text = ")"
			tok.kind = tokenClose
			return tok, nil
		case strings.ContainsRune(Operators, r):
			l.readRune()
			tok.text = string(r)
			tok.kind = tokenOp
			return tok, nil
		default:
			l.readRune()
			return tok, &LexError{Text: string(r), Col: l.col}
		}
	}
}

// scanNum scans a decimal number with an optional exponent. An e is only
// part of the number when a digit, or a sign and then a digit, follows it;
// otherwise the number ends and e is lexed as an identifier.
func (l *lexer) scanNum(tok lexToken) (lexToken, error) {
	var b strings.Builder
	var dig, dot bool
	for {
		r := l.peek(0)
		switch {
		case '0' <= r && r <= '9':
			dig = true
		case r == '.':
			if dot {
				b.WriteRune(l.readRune())
				return tok, &LexError{Text: b.String(), Kind: "number", Col: l.col}
			}
			dot = true
		case r == 'e' && dig && l.exponentAhead():
			b.WriteRune(l.readRune())
			if s := l.peek(0); s == '+' || s == '-' {
				b.WriteRune(l.readRune())
			}
			for d := l.peek(0); '0' <= d && d <= '9'; d = l.peek(0) {
				b.WriteRune(l.readRune())
			}
			return l.number(tok, b.String())
		default:
			if !dig {
				return tok, &LexError{Text: b.String(), Kind: "number", Col: l.col}
			}
			return l.number(tok, b.String())
		}
		b.WriteRune(l.readRune())
	}
}

// exponentAhead reports whether the e at the next position starts an
// exponent.
func (l *lexer) exponentAhead() bool {
	r := l.peek(1)
	if r == '+' || r == '-' {
		r = l.peek(2)
	}
	return '0' <= r && r <= '9'
}

// number finishes a number token with the text scanned.
func (l *lexer) number(tok lexToken, text string) (lexToken, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		var ne *strconv.NumError
		// Underflow to zero or a denormal is fine. Overflow is not.
		if !errors.As(err, &ne) || ne.Err != strconv.ErrRange || math.IsInf(v, 0) {
			return tok, &LexError{Text: text, Kind: "number", Col: l.col}
		}
	}
	tok.text = text
	tok.kind = tokenNum
	tok.val = v
	return tok, nil
}

func (l *lexer) scanIdent(tok lexToken) lexToken {
	var b strings.Builder
	for r := l.peek(0); r >= 0 && unicode.IsLetter(r); r = l.peek(0) {
		b.WriteRune(l.readRune())
	}
	tok.text = b.String()
	tok.kind = tokenIdent
	return tok
}

// errEOF is returned by the lexer when scanning past the EOF token.
var errEOF = errors.New("calculator: scan past end of input")

// LexError indicates an invalid token. It implements InputError.
type LexError struct {
	// Text is the token the lexer was scanning when the invalid rune was
	// encountered, plus the invalid rune.
	Text string
	// Kind is the type of token the lexer was scanning. This is "number" or
	// the empty string if a token kind hadn't been decided.
	Kind string
	// Col is the total number of runes scanned by the lexer up to and
	// including this error.
	Col int
}

func (err *LexError) Error() string {
	pos := "column " + strconv.Itoa(err.Col)
	if err.Kind == "" {
		return "invalid token at " + pos + ": " + err.Text
	}
	return "invalid " + err.Kind + " token at " + pos + ": " + err.Text
}

func (err *LexError) Pos() int {
	return err.Col
}
