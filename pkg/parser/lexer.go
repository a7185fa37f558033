package parser

import (
	"strconv"
	"strings"

	"github.com/hql-lang/hqlc/internal/logger"
)

// tokenKind enumerates the reader's token alphabet. Unlike the teacher's
// js_lexer, which must distinguish dozens of operators and keywords, an
// S-expression reader only needs delimiters and the two atom shapes
// (symbol, string); numbers are atoms that happen to parse, not a
// distinct lexical class. "quote"/"quasiquote"/"unquote" are ordinary
// list heads in HQL source (§3's form table lists them as reader macros
// spelled out as "(op x)", not punctuation sigils), so the lexer needs no
// special-case tokens for them.
type tokenKind uint8

const (
	tEOF tokenKind = iota
	tLParen
	tRParen
	tLBracket
	tRBracket
	tSymbol
	tString
)

func (k tokenKind) String() string {
	switch k {
	case tEOF:
		return "end of file"
	case tLParen:
		return "("
	case tRParen:
		return ")"
	case tLBracket:
		return "["
	case tRBracket:
		return "]"
	case tSymbol:
		return "symbol"
	case tString:
		return "string"
	default:
		return "unknown token"
	}
}

type token struct {
	Kind tokenKind
	Loc  logger.Loc
	Text string // raw symbol text, or the decoded contents of a string literal
}

// lexer converts source.Contents into a stream of tokens on demand, the
// same pull model the teacher's js_lexer uses: the parser calls next()
// exactly when it needs another token rather than tokenizing eagerly.
type lexer struct {
	source   *logger.Source
	contents string
	pos      int
}

func newLexer(source *logger.Source) *lexer {
	return &lexer{source: source, contents: source.Contents}
}

func (l *lexer) errorAt(pos int, text string) error {
	return parseErrorAt(l.source, int32(pos), text)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// isDelimiter reports bytes that terminate a bare symbol or number atom.
// A comma is its own one-character symbol token (§4.1's vector-literal
// separator, stripped by the Syntax Transformer), not whitespace, so it
// must stop a preceding atom just like a paren would.
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '[', ']', '"', ';', ',':
		return true
	default:
		return isSpace(c)
	}
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.contents) {
		c := l.contents[l.pos]
		if c == ';' {
			for l.pos < len(l.contents) && l.contents[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		if !isSpace(c) {
			break
		}
		l.pos++
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.contents) {
		return token{Kind: tEOF, Loc: logger.Loc{Start: int32(l.pos)}}, nil
	}

	start := l.pos
	c := l.contents[l.pos]
	loc := logger.Loc{Start: int32(start)}

	switch c {
	case '(':
		l.pos++
		return token{Kind: tLParen, Loc: loc}, nil
	case ')':
		l.pos++
		return token{Kind: tRParen, Loc: loc}, nil
	case '[':
		l.pos++
		return token{Kind: tLBracket, Loc: loc}, nil
	case ']':
		l.pos++
		return token{Kind: tRBracket, Loc: loc}, nil
	case ',':
		l.pos++
		return token{Kind: tSymbol, Loc: loc, Text: ","}, nil
	case '"':
		return l.lexString(loc)
	default:
		return l.lexSymbol(loc)
	}
}

func (l *lexer) lexString(loc logger.Loc) (token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.contents) {
			return token{}, l.errorAt(int(loc.Start), "unterminated string literal")
		}
		c := l.contents[l.pos]
		if c == '"' {
			l.pos++
			return token{Kind: tString, Loc: loc, Text: sb.String()}, nil
		}
		if c == '\\' {
			l.pos++
			if l.pos >= len(l.contents) {
				return token{}, l.errorAt(int(loc.Start), "unterminated string literal")
			}
			switch l.contents[l.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			default:
				sb.WriteByte(l.contents[l.pos])
			}
			l.pos++
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
}

func (l *lexer) lexSymbol(loc logger.Loc) (token, error) {
	start := l.pos
	for l.pos < len(l.contents) && !isDelimiter(l.contents[l.pos]) {
		l.pos++
	}
	text := l.contents[start:l.pos]
	if text == "" {
		return token{}, l.errorAt(start, "unexpected character "+strconv.QuoteRune(rune(l.contents[start])))
	}
	return token{Kind: tSymbol, Loc: loc, Text: text}, nil
}
