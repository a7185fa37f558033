// Package parser is the external Parser interface named in spec §6:
// parse(source: Text) -> Sequence<SExpr>. It is a small hand-written
// lexer-plus-recursive-descent-parser pair, the same division of labor
// as the teacher's js_lexer/js_parser: the lexer knows nothing about
// grammar, the parser calls it token by token and builds the tree.
package parser

import (
	"fmt"
	"strconv"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/diag"
	"github.com/hql-lang/hqlc/internal/logger"
)

// Parse reads every top-level form in source.Contents and returns them in
// document order. A malformed form anywhere aborts the whole read: unlike
// the Lowerer's per-form aggregation (§7 "partial success per file"), a
// reader error leaves no usable SExpr tree for later phases to work
// from, so parsing itself is all-or-nothing.
func Parse(source *logger.Source) ([]ast.SExpr, error) {
	p := &parser{source: source, lex: newLexer(source)}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var forms []ast.SExpr
	for p.tok.Kind != tEOF {
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

type parser struct {
	source *logger.Source
	lex    *lexer
	tok    token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseForm() (ast.SExpr, error) {
	switch p.tok.Kind {
	case tLParen:
		return p.parseList(tRParen)
	case tLBracket:
		return p.parseList(tRBracket)
	case tRParen, tRBracket:
		return ast.SExpr{}, p.errorHere("unexpected " + p.tok.Kind.String())
	case tString:
		return p.parseString()
	case tSymbol:
		return p.parseSymbolOrNumber()
	default:
		return ast.SExpr{}, p.errorHere("expected a form, found " + p.tok.Kind.String())
	}
}

// parseList parses "(...)" or "[...]" uniformly into an SList: HQL has no
// distinct vector node (§4.1's canonicalizeVectorForm treats "[...]" as
// an ordinary nested list whose comma separators are literal "," symbols
// stripped during syntax transformation), so the reader does not need to
// distinguish the two bracket shapes beyond matching the closer.
func (p *parser) parseList(closer tokenKind) (ast.SExpr, error) {
	loc := p.tok.Loc
	if err := p.advance(); err != nil {
		return ast.SExpr{}, err
	}

	var items []ast.SExpr
	for {
		if p.tok.Kind == tEOF {
			return ast.SExpr{}, p.errorHere("unterminated list: missing " + closer.String())
		}
		if p.tok.Kind == closer {
			if err := p.advance(); err != nil {
				return ast.SExpr{}, err
			}
			return ast.SExpr{Data: &ast.SList{Items: items}, Loc: loc}, nil
		}
		if p.tok.Kind == tRParen || p.tok.Kind == tRBracket {
			return ast.SExpr{}, p.errorHere("mismatched closing delimiter: expected " + closer.String())
		}
		item, err := p.parseForm()
		if err != nil {
			return ast.SExpr{}, err
		}
		items = append(items, item)
	}
}

func (p *parser) parseString() (ast.SExpr, error) {
	s := ast.SExpr{Data: &ast.SLiteral{Kind: ast.LiteralString, String: p.tok.Text}, Loc: p.tok.Loc}
	return s, p.advance()
}

// parseSymbolOrNumber classifies a bare atom: "null"/"true"/"false" are
// literal keywords, an atom that parses wholesale as an integer or float
// is a numeric literal, everything else is a symbol (§3's four literal
// kinds plus the symbol shape).
func (p *parser) parseSymbolOrNumber() (ast.SExpr, error) {
	text, loc := p.tok.Text, p.tok.Loc

	switch text {
	case "null", "nil":
		return ast.SExpr{Data: &ast.SLiteral{Kind: ast.LiteralNull}, Loc: loc}, p.advance()
	case "true":
		return ast.SExpr{Data: &ast.SLiteral{Kind: ast.LiteralBool, Bool: true}, Loc: loc}, p.advance()
	case "false":
		return ast.SExpr{Data: &ast.SLiteral{Kind: ast.LiteralBool, Bool: false}, Loc: loc}, p.advance()
	}

	if isNumericAtom(text) {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return ast.SExpr{Data: &ast.SLiteral{Kind: ast.LiteralInt, Int: i}, Loc: loc}, p.advance()
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return ast.SExpr{Data: &ast.SLiteral{Kind: ast.LiteralFloat, Float: f}, Loc: loc}, p.advance()
		}
	}

	return ast.SExpr{Data: &ast.SSymbol{Name: text}, Loc: loc}, p.advance()
}

// isNumericAtom reports whether text's leading character(s) commit it to
// being a number, so that symbols like "-" or "->" are never mistakenly
// sent through strconv (a lone sign or a sign followed by a non-digit is
// a legal operator/arrow symbol, not a malformed number).
func isNumericAtom(text string) bool {
	i := 0
	if len(text) > 0 && (text[0] == '-' || text[0] == '+') {
		i = 1
	}
	return i < len(text) && text[i] >= '0' && text[i] <= '9'
}

func (p *parser) errorHere(msg string) error {
	return parseErrorAt(p.source, p.tok.Loc.Start, msg)
}

// parseErrorAt builds a ParseError (§7) carrying the human message,
// phase, and offending path; the line/column/offset spec §6 requires are
// folded into the message text itself, since diag.Error's structured
// fields (Form, Expected, Received) model shape violations caught later
// in the pipeline, not raw text positions that have no SExpr yet.
func parseErrorAt(source *logger.Source, pos int32, msg string) error {
	loc := source.LocationForLoc(logger.Loc{Start: pos})
	text := fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column+1, msg)
	return diag.New(diag.KindParse, logger.PhaseParse, text).WithPath(source.PrettyPath)
}
