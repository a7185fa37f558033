package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
	"github.com/hql-lang/hqlc/internal/lower"
)

func mustLower(t *testing.T, forms []ast.SExpr) *ir.Program {
	t.Helper()
	c := lower.NewContext()
	prog, multi := c.LowerProgram(forms)
	require.Nil(t, multi, "lowering should not report errors: %v", multi)
	return prog
}

// (+ 1 2 3) -> ((1 + 2) + 3)
func TestLowerArithmeticLeftFolds(t *testing.T) {
	forms := []ast.SExpr{
		ast.ListOf(ast.Sym("+"), ast.Int(1), ast.Int(2), ast.Int(3)),
	}
	prog := mustLower(t, forms)
	require.Len(t, prog.Body, 1)
	exprStmt := prog.Body[0].Data.(*ir.ExpressionStatement)
	outer := exprStmt.Expression.Data.(*ir.BinaryExpression)
	assert.Equal(t, "+", outer.Operator)
	inner := outer.Left.Data.(*ir.BinaryExpression)
	assert.Equal(t, "+", inner.Operator)
	assert.Equal(t, float64(1), inner.Left.Data.(*ir.NumericLiteral).Value)
	assert.Equal(t, float64(2), inner.Right.Data.(*ir.NumericLiteral).Value)
	assert.Equal(t, float64(3), outer.Right.Data.(*ir.NumericLiteral).Value)
}

func TestLowerComparisonMapsEqToStrictEquals(t *testing.T) {
	forms := []ast.SExpr{ast.ListOf(ast.Sym("="), ast.Sym("a"), ast.Sym("b"))}
	prog := mustLower(t, forms)
	bin := prog.Body[0].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.BinaryExpression)
	assert.Equal(t, "===", bin.Operator)
}

// (fn square (x) (* x x)) registers into FnRegistry and lowers to an
// FnFunctionDeclaration.
func TestLowerFnDeclarationAndCallSite(t *testing.T) {
	fnDecl := ast.ListOf(
		ast.Sym("fn"), ast.Sym("square"),
		ast.ListOf(ast.Sym("x")),
		ast.ListOf(ast.Sym("*"), ast.Sym("x"), ast.Sym("x")),
	)
	call := ast.ListOf(ast.Sym("square"), ast.Int(5))
	prog := mustLower(t, []ast.SExpr{fnDecl, call})
	require.Len(t, prog.Body, 2)

	decl := prog.Body[0].Data.(*ir.FnFunctionDeclaration)
	assert.Equal(t, "square", decl.Name)
	require.Len(t, decl.Params, 1)
	assert.Equal(t, "x", decl.Params[0].Name)

	callExpr := prog.Body[1].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.CallExpression)
	callee := callExpr.Callee.Data.(*ir.Identifier)
	assert.Equal(t, "square", callee.Name)
	require.Len(t, callExpr.Args, 1)
	assert.Equal(t, float64(5), callExpr.Args[0].Data.(*ir.NumericLiteral).Value)
}

// (fn greet (name (greeting "hi")) ...) called with a named argument and
// an omitted default resolves positionally and fills the default.
func TestLowerFnCallSiteAppliesDefaultAndNamedArgument(t *testing.T) {
	fnDecl := ast.ListOf(
		ast.Sym("fn"), ast.Sym("greet"),
		ast.ListOf(ast.Sym("name"), ast.ListOf(ast.Sym("greeting"), ast.Str("hi"))),
		ast.Sym("name"),
	)
	call := ast.ListOf(ast.Sym("greet"), ast.Sym("name:"), ast.Str("Ada"))
	prog := mustLower(t, []ast.SExpr{fnDecl, call})

	callExpr := prog.Body[1].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.CallExpression)
	require.Len(t, callExpr.Args, 2)
	assert.Equal(t, "Ada", callExpr.Args[0].Data.(*ir.StringLiteral).Value)
	assert.Equal(t, "hi", callExpr.Args[1].Data.(*ir.StringLiteral).Value)
}

// (if test c a) in expression position (here a top-level form) lowers to
// a ConditionalExpression.
func TestLowerIfInExpressionPositionIsConditional(t *testing.T) {
	forms := []ast.SExpr{
		ast.ListOf(ast.Sym("if"), ast.Sym("test"), ast.Int(1), ast.Int(2)),
	}
	prog := mustLower(t, forms)
	_, ok := prog.Body[0].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.ConditionalExpression)
	assert.True(t, ok)
}

// (fn pick (test) (if test 1 2)) lowers the tail "if" to an IfStatement
// with two ReturnStatements, not a ConditionalExpression.
func TestLowerIfInTailPositionIsIfStatement(t *testing.T) {
	fnDecl := ast.ListOf(
		ast.Sym("fn"), ast.Sym("pick"),
		ast.ListOf(ast.Sym("test")),
		ast.ListOf(ast.Sym("if"), ast.Sym("test"), ast.Int(1), ast.Int(2)),
	)
	prog := mustLower(t, []ast.SExpr{fnDecl})
	decl := prog.Body[0].Data.(*ir.FnFunctionDeclaration)
	require.Len(t, decl.Body, 1)
	ifStmt, ok := decl.Body[0].Data.(*ir.IfStatement)
	require.True(t, ok)
	consequentReturn, ok := ifStmt.Consequent.Data.(*ir.ReturnStatement)
	require.True(t, ok)
	assert.Equal(t, float64(1), consequentReturn.Argument.Data.(*ir.NumericLiteral).Value)
	require.NotNil(t, ifStmt.Alternate)
	alternateReturn, ok := (*ifStmt.Alternate).Data.(*ir.ReturnStatement)
	require.True(t, ok)
	assert.Equal(t, float64(2), alternateReturn.Argument.Data.(*ir.NumericLiteral).Value)
}

// (loop (i 0) (if (< i 3) (recur (+ i 1)) i)) lowers to an IIFE whose
// recur becomes a self-call returned from the tail position.
func TestLowerLoopRecurBecomesSelfCall(t *testing.T) {
	loopForm := ast.ListOf(
		ast.Sym("loop"),
		ast.ListOf(ast.Sym("i"), ast.Int(0)),
		ast.ListOf(ast.Sym("if"),
			ast.ListOf(ast.Sym("<"), ast.Sym("i"), ast.Int(3)),
			ast.ListOf(ast.Sym("recur"), ast.ListOf(ast.Sym("+"), ast.Sym("i"), ast.Int(1))),
			ast.Sym("i"),
		),
	)
	prog := mustLower(t, []ast.SExpr{loopForm})
	call := prog.Body[0].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.CallExpression)
	fn := call.Callee.Data.(*ir.FunctionExpression)
	require.Len(t, fn.Params, 1)
	assert.Equal(t, "i", fn.Params[0].Name)

	ifStmt := fn.Body[0].Data.(*ir.IfStatement)
	consequentReturn := ifStmt.Consequent.Data.(*ir.ReturnStatement)
	recurCall := consequentReturn.Argument.Data.(*ir.CallExpression)
	recurCallee := recurCall.Callee.Data.(*ir.Identifier)
	assert.Equal(t, fn.Name, recurCallee.Name)
}

// recur outside any loop is a shape error.
func TestLowerRecurOutsideLoopFails(t *testing.T) {
	forms := []ast.SExpr{ast.ListOf(ast.Sym("recur"), ast.Int(1))}
	c := lower.NewContext()
	_, multi := c.LowerProgram(forms)
	require.NotNil(t, multi)
	assert.True(t, multi.Fatal())
}

// (fx add ((a Int) (b Int)) (-> Int) (+ a b)) lowers params with types
// and a mandatory return type.
func TestLowerFxDeclarationCarriesTypes(t *testing.T) {
	fxDecl := ast.ListOf(
		ast.Sym("fx"), ast.Sym("add"),
		ast.ListOf(
			ast.ListOf(ast.Sym("a"), ast.Sym("Int")),
			ast.ListOf(ast.Sym("b"), ast.Sym("Int")),
		),
		ast.ListOf(ast.Sym("->"), ast.Sym("Int")),
		ast.ListOf(ast.Sym("+"), ast.Sym("a"), ast.Sym("b")),
	)
	prog := mustLower(t, []ast.SExpr{fxDecl})
	decl := prog.Body[0].Data.(*ir.FxFunctionDeclaration)
	assert.Equal(t, "Int", decl.ReturnType)
	assert.Equal(t, "Int", decl.ParamTypes["a"])
	assert.Equal(t, "Int", decl.ParamTypes["b"])
}

// fx parameter types must come from the closed set {Int, Double, String,
// Bool, Any} or a previously declared enum name (§4.4.2).
func TestLowerFxRejectsUnsupportedParamType(t *testing.T) {
	fxDecl := ast.ListOf(
		ast.Sym("fx"), ast.Sym("bad"),
		ast.ListOf(ast.ListOf(ast.Sym("a"), ast.Sym("Number"))),
		ast.ListOf(ast.Sym("->"), ast.Sym("Int")),
		ast.Sym("a"),
	)
	c := lower.NewContext()
	_, multi := c.LowerProgram([]ast.SExpr{fxDecl})
	require.NotNil(t, multi)
	assert.True(t, multi.Fatal())
}

// an fx parameter typed with an enum name declared earlier in the file
// is accepted.
func TestLowerFxAcceptsPreviouslyDeclaredEnumParamType(t *testing.T) {
	enumDecl := ast.ListOf(ast.Sym("enum"), ast.Sym("Color"), ast.Sym("Red"), ast.Sym("Blue"))
	fxDecl := ast.ListOf(
		ast.Sym("fx"), ast.Sym("describe"),
		ast.ListOf(ast.ListOf(ast.Sym("c"), ast.Sym("Color"))),
		ast.ListOf(ast.Sym("->"), ast.Sym("String")),
		ast.Sym("c"),
	)
	prog := mustLower(t, []ast.SExpr{enumDecl, fxDecl})
	require.Len(t, prog.Body, 2)
	decl := prog.Body[1].Data.(*ir.FxFunctionDeclaration)
	assert.Equal(t, "Color", decl.ParamTypes["c"])
}

// fx bodies referencing "print" (not a built-in pure operation) are
// rejected by the purity verifier (§4.5).
func TestLowerFxRejectsImpureBody(t *testing.T) {
	fxDecl := ast.ListOf(
		ast.Sym("fx"), ast.Sym("bad"),
		ast.ListOf(),
		ast.ListOf(ast.Sym("->"), ast.Sym("Int")),
		ast.ListOf(ast.Sym("print"), ast.Str("hi")),
	)
	c := lower.NewContext()
	_, multi := c.LowerProgram([]ast.SExpr{fxDecl})
	require.NotNil(t, multi)
}

// §4.5 is an allowlist: an fx body referencing an unlisted free global
// (not a parameter, local, built-in operation, registered pure
// function, or safe global) is rejected even though it isn't on any
// blacklist.
func TestLowerFxRejectsUnlistedFreeGlobal(t *testing.T) {
	fxDecl := ast.ListOf(
		ast.Sym("fx"), ast.Sym("bad"),
		ast.ListOf(),
		ast.ListOf(ast.Sym("->"), ast.Sym("Any")),
		ast.Sym("fetch"),
	)
	c := lower.NewContext()
	_, multi := c.LowerProgram([]ast.SExpr{fxDecl})
	require.NotNil(t, multi)
	assert.True(t, multi.Fatal())
}

// (.push arr x) lowers to arr.push(x).
func TestLowerDotPrefixMethodCall(t *testing.T) {
	forms := []ast.SExpr{ast.ListOf(ast.Sym(".push"), ast.Sym("arr"), ast.Int(1))}
	prog := mustLower(t, forms)
	call := prog.Body[0].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.CallExpression)
	member := call.Callee.Data.(*ir.MemberExpression)
	assert.Equal(t, "push", member.Property.Data.(*ir.Identifier).Name)
	assert.Equal(t, "arr", member.Object.Data.(*ir.Identifier).Name)
}

// (hash-map "a" 1) lowers to new Map([["a", 1]]); get with a string key
// lowers to a .get(key) call rather than computed member access.
func TestLowerHashMapAndGetByStringKey(t *testing.T) {
	hm := ast.ListOf(ast.Sym("hash-map"), ast.Str("a"), ast.Int(1))
	getForm := ast.ListOf(ast.Sym("get"), ast.Sym("m"), ast.Str("a"))
	prog := mustLower(t, []ast.SExpr{
		ast.ListOf(ast.Sym("let"), ast.Sym("m"), hm),
		getForm,
	})
	decl := prog.Body[0].Data.(*ir.VariableDeclaration)
	newExpr := decl.Decls[0].Init.Data.(*ir.NewExpression)
	assert.Equal(t, "Map", newExpr.Callee.Data.(*ir.Identifier).Name)

	getCall := prog.Body[1].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.CallExpression)
	member := getCall.Callee.Data.(*ir.MemberExpression)
	assert.Equal(t, "get", member.Property.Data.(*ir.Identifier).Name)
}

// (get v 0) with a numeric literal key lowers to computed member access.
func TestLowerGetByNumericIndexIsComputedMember(t *testing.T) {
	forms := []ast.SExpr{ast.ListOf(ast.Sym("get"), ast.Sym("v"), ast.Int(0))}
	prog := mustLower(t, forms)
	member := prog.Body[0].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.MemberExpression)
	assert.True(t, member.Computed)
}

// (export [foo bar]) elides a macro name already known to the Context.
func TestLowerExportElidesKnownMacro(t *testing.T) {
	c := lower.NewContext()
	c.KnownMacros["unless"] = true
	forms := []ast.SExpr{
		ast.ListOf(ast.Sym("export"), ast.ListOf(ast.Sym("unless"), ast.Sym("foo"))),
	}
	prog, multi := c.LowerProgram(forms)
	require.Nil(t, multi)
	decl := prog.Body[0].Data.(*ir.ExportNamedDeclaration)
	require.Len(t, decl.Specifiers, 1)
	assert.Equal(t, "foo", decl.Specifiers[0].Local)
}

// (class Point (field x) (constructor (x) (set! self.x x))) rewrites
// self to this and implicitly returns this.
func TestLowerClassConstructorRewritesSelfAndReturnsThis(t *testing.T) {
	classDecl := ast.ListOf(
		ast.Sym("class"), ast.Sym("Point"),
		ast.ListOf(ast.Sym("field"), ast.Sym("x")),
		ast.ListOf(ast.Sym("constructor"),
			ast.ListOf(ast.Sym("x")),
			ast.ListOf(ast.Sym("set!"), ast.Sym("self.x"), ast.Sym("x")),
		),
	)
	prog := mustLower(t, []ast.SExpr{classDecl})
	decl := prog.Body[0].Data.(*ir.ClassDeclaration)
	require.NotNil(t, decl.Constructor)
	require.Len(t, decl.Constructor.Body, 2)

	assign := decl.Constructor.Body[0].Data.(*ir.ExpressionStatement).Expression.Data.(*ir.AssignmentExpression)
	member := assign.Target.Data.(*ir.MemberExpression)
	assert.Equal(t, "this", member.Object.Data.(*ir.Identifier).Name)

	ret, ok := decl.Constructor.Body[1].Data.(*ir.ReturnStatement)
	require.True(t, ok)
	assert.Equal(t, "this", ret.Argument.Data.(*ir.Identifier).Name)
}
