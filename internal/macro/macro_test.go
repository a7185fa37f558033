package macro_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/env"
	"github.com/hql-lang/hqlc/internal/macro"
)

// (defmacro unless (test body) `(if (not ~test) ~body))
func unlessMacro() ast.SExpr {
	return ast.ListOf(
		ast.Sym("defmacro"), ast.Sym("unless"),
		ast.ListOf(ast.Sym("test"), ast.Sym("body")),
		ast.ListOf(ast.Sym("quasiquote"),
			ast.ListOf(
				ast.Sym("if"),
				ast.ListOf(ast.Sym("not"), ast.ListOf(ast.Sym("unquote"), ast.Sym("test"))),
				ast.ListOf(ast.Sym("unquote"), ast.Sym("body")),
			),
		),
	)
}

func TestExpandRewritesMacroCallUsingQuasiquoteTemplate(t *testing.T) {
	forms := []ast.SExpr{
		unlessMacro(),
		ast.ListOf(ast.Sym("unless"), ast.Sym("done"), ast.Sym("go")),
	}

	ex := macro.NewExpander()
	e := env.New()
	out, err := ex.Expand(forms, e, "/proj/main.hql", 1024)
	require.NoError(t, err)
	require.Len(t, out, 2)

	call := out[1].Data.(*ast.SList)
	head, ok := ast.Head(out[1])
	require.True(t, ok)
	assert.Equal(t, "if", head)
	require.Len(t, call.Items, 3)

	notForm := call.Items[1].Data.(*ast.SList)
	notHead, _ := ast.Head(call.Items[1])
	assert.Equal(t, "not", notHead)
	receiver := notForm.Items[1].Data.(*ast.SSymbol)
	assert.Equal(t, "done", receiver.Name)

	branch := call.Items[2].Data.(*ast.SSymbol)
	assert.Equal(t, "go", branch.Name)
}

func TestExpandIsIdempotent(t *testing.T) {
	forms := []ast.SExpr{
		unlessMacro(),
		ast.ListOf(ast.Sym("unless"), ast.Sym("done"), ast.Sym("go")),
	}

	ex := macro.NewExpander()
	e := env.New()
	once, err := ex.Expand(forms, e, "/proj/main.hql", 1024)
	require.NoError(t, err)

	twice, err := ex.Expand(once, e, "/proj/main.hql", 1024)
	require.NoError(t, err)

	require.Len(t, once, len(twice))
	for i := range once {
		assert.True(t, ast.Equal(once[i], twice[i]), "expansion must be idempotent at index %d", i)
	}
}

func TestExpandFailsOnArityMismatch(t *testing.T) {
	forms := []ast.SExpr{
		unlessMacro(),
		ast.ListOf(ast.Sym("unless"), ast.Sym("done")),
	}
	ex := macro.NewExpander()
	e := env.New()
	_, err := ex.Expand(forms, e, "/proj/main.hql", 1024)
	require.Error(t, err)
}

// (defmacro swap2 (a b) `(do (var tmp ~a) (set! ~a ~b) (set! ~b tmp)))
// The template-local `tmp` must never collide with a caller's own `tmp`.
func swap2Macro() ast.SExpr {
	return ast.ListOf(
		ast.Sym("defmacro"), ast.Sym("swap2"),
		ast.ListOf(ast.Sym("a"), ast.Sym("b")),
		ast.ListOf(ast.Sym("quasiquote"),
			ast.ListOf(ast.Sym("do"),
				ast.ListOf(ast.Sym("var"), ast.Sym("tmp"), ast.ListOf(ast.Sym("unquote"), ast.Sym("a"))),
				ast.ListOf(ast.Sym("set!"), ast.ListOf(ast.Sym("unquote"), ast.Sym("a")), ast.ListOf(ast.Sym("unquote"), ast.Sym("b"))),
				ast.ListOf(ast.Sym("set!"), ast.ListOf(ast.Sym("unquote"), ast.Sym("b")), ast.Sym("tmp")),
			),
		),
	)
}

func TestHygieneRenamesTemplateLocalBinding(t *testing.T) {
	forms := []ast.SExpr{
		swap2Macro(),
		ast.ListOf(ast.Sym("swap2"), ast.Sym("tmp"), ast.Sym("other")),
	}
	ex := macro.NewExpander()
	e := env.New()
	out, err := ex.Expand(forms, e, "/proj/main.hql", 1024)
	require.NoError(t, err)

	doForm := out[1].Data.(*ast.SList)
	varForm := doForm.Items[1].Data.(*ast.SList)
	varName := varForm.Items[1].Data.(*ast.SSymbol)
	assert.NotEqual(t, "tmp", varName.Name, "template-introduced binding must be renamed away from the caller's own tmp")

	lastSet := doForm.Items[3].Data.(*ast.SList)
	referencedTmp := lastSet.Items[2].Data.(*ast.SSymbol)
	assert.Equal(t, varName.Name, referencedTmp.Name, "renamed binding and its use site must share the new name")
}
