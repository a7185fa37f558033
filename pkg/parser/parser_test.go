package parser

import (
	"testing"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/logger"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, contents string) []ast.SExpr {
	t.Helper()
	forms, err := Parse(&logger.Source{PrettyPath: "in.hql", Contents: contents})
	require.NoError(t, err)
	return forms
}

func TestParseSimpleCall(t *testing.T) {
	forms := parseSource(t, `(+ 1 2)`)
	require.Len(t, forms, 1)
	list, ok := forms[0].Data.(*ast.SList)
	require.True(t, ok)
	require.Len(t, list.Items, 3)
	head, ok := list.Items[0].Data.(*ast.SSymbol)
	require.True(t, ok)
	require.Equal(t, "+", head.Name)
	require.Equal(t, int64(1), list.Items[1].Data.(*ast.SLiteral).Int)
	require.Equal(t, int64(2), list.Items[2].Data.(*ast.SLiteral).Int)
}

func TestParseMultipleTopLevelForms(t *testing.T) {
	forms := parseSource(t, "(fn add (x y) (+ x y))\n(add 1 2)")
	require.Len(t, forms, 2)
}

func TestParseStringLiteralWithEscapes(t *testing.T) {
	forms := parseSource(t, `"hello\nworld"`)
	require.Len(t, forms, 1)
	lit, ok := forms[0].Data.(*ast.SLiteral)
	require.True(t, ok)
	require.Equal(t, ast.LiteralString, lit.Kind)
	require.Equal(t, "hello\nworld", lit.String)
}

func TestParseNegativeNumberVsMinusSymbol(t *testing.T) {
	forms := parseSource(t, `(- -5 x)`)
	list := forms[0].Data.(*ast.SList)
	head := list.Items[0].Data.(*ast.SSymbol)
	require.Equal(t, "-", head.Name)
	num := list.Items[1].Data.(*ast.SLiteral)
	require.Equal(t, ast.LiteralInt, num.Kind)
	require.Equal(t, int64(-5), num.Int)
	_, isSymbol := list.Items[2].Data.(*ast.SSymbol)
	require.True(t, isSymbol)
}

func TestParseFloatLiteral(t *testing.T) {
	forms := parseSource(t, `3.5`)
	lit := forms[0].Data.(*ast.SLiteral)
	require.Equal(t, ast.LiteralFloat, lit.Kind)
	require.Equal(t, 3.5, lit.Float)
}

func TestParseBooleanAndNullKeywords(t *testing.T) {
	forms := parseSource(t, `(true false null)`)
	list := forms[0].Data.(*ast.SList)
	require.Equal(t, true, list.Items[0].Data.(*ast.SLiteral).Bool)
	require.Equal(t, false, list.Items[1].Data.(*ast.SLiteral).Bool)
	require.Equal(t, ast.LiteralNull, list.Items[2].Data.(*ast.SLiteral).Kind)
}

func TestParseVectorLiteralKeepsCommasAsSymbols(t *testing.T) {
	// The reader does not strip commas; canonicalizeVectorForm in
	// internal/syntax does, downstream of the reader.
	forms := parseSource(t, `(export [a, b, c])`)
	list := forms[0].Data.(*ast.SList)
	vec := list.Items[1].Data.(*ast.SList)
	require.Len(t, vec.Items, 5)
	require.Equal(t, ",", vec.Items[1].Data.(*ast.SSymbol).Name)
}

func TestParseDotAccessSymbolPreserved(t *testing.T) {
	forms := parseSource(t, `obj.prop.method`)
	sym := forms[0].Data.(*ast.SSymbol)
	require.Equal(t, "obj.prop.method", sym.Name)
	require.True(t, sym.HasDotAccess())
}

func TestParseCommentIsSkipped(t *testing.T) {
	forms := parseSource(t, "; a comment\n(+ 1 2) ; trailing\n")
	require.Len(t, forms, 1)
}

func TestParseUnterminatedListIsError(t *testing.T) {
	_, err := Parse(&logger.Source{PrettyPath: "in.hql", Contents: `(+ 1 2`})
	require.Error(t, err)
}

func TestParseMismatchedClosingDelimiterIsError(t *testing.T) {
	_, err := Parse(&logger.Source{PrettyPath: "in.hql", Contents: `(foo]`})
	require.Error(t, err)
}

func TestParseErrorMessageCarriesLineAndColumn(t *testing.T) {
	_, err := Parse(&logger.Source{PrettyPath: "in.hql", Contents: "(ok)\n(bad]"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "in.hql:2:")
}
