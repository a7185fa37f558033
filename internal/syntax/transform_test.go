package syntax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/syntax"
)

func TestCanonicalizeVectorFormStripsCommas(t *testing.T) {
	// (export [add, greet])
	form := ast.ListOf(
		ast.Sym("export"),
		ast.ListOf(ast.Sym("add"), ast.Sym(","), ast.Sym("greet")),
	)

	out := syntax.Transform([]ast.SExpr{form})
	require.Len(t, out, 1)

	list := out[0].Data.(*ast.SList)
	require.Len(t, list.Items, 2)
	vec := list.Items[1].Data.(*ast.SList)
	assert.Len(t, vec.Items, 2)
	for _, item := range vec.Items {
		sym, ok := item.Data.(*ast.SSymbol)
		require.True(t, ok)
		assert.NotEqual(t, ",", sym.Name)
	}
}

func TestRewriteDotCallHead(t *testing.T) {
	// (obj.method 1 2)
	form := ast.ListOf(ast.Sym("obj.method"), ast.Int(1), ast.Int(2))

	out := syntax.Transform([]ast.SExpr{form})
	list := out[0].Data.(*ast.SList)

	require.Len(t, list.Items, 4)
	head, ok := list.Items[0].Data.(*ast.SSymbol)
	require.True(t, ok)
	assert.Equal(t, ".method", head.Name)

	receiver, ok := list.Items[1].Data.(*ast.SSymbol)
	require.True(t, ok)
	assert.Equal(t, "obj", receiver.Name)
}

func TestRewriteDotCallHeadSkipsJsEscape(t *testing.T) {
	form := ast.ListOf(ast.Sym("js/Math.max"), ast.Int(1), ast.Int(2))
	out := syntax.Transform([]ast.SExpr{form})
	list := out[0].Data.(*ast.SList)

	head, ok := list.Items[0].Data.(*ast.SSymbol)
	require.True(t, ok)
	assert.Equal(t, "js/Math.max", head.Name, "js/ escaped symbols are never dot-call rewritten")
}
