package lower

import (
	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
)

// lowerLoopExpr lowers "(loop (n1 v1 n2 v2 ...) body...)" to a named
// function expression, immediately invoked with the initial binding
// values (§4.4.3): "(function loop_N(n1, n2) { <body> })(v1, v2)". A
// "recur" in the body's tail position becomes a self-call to loop_N
// instead of a structural loop, matching how the printer's target
// (ECMAScript) has no native tail-call optimization guarantee but does
// support ordinary recursive calls.
func (c *Context) lowerLoopExpr(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) < 2 {
		return ir.Expr{}, shapeError(f, "(loop (n v ...) body...)", "wrong arity")
	}
	bindingList, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return ir.Expr{}, shapeError(list.Items[1], "binding list", "non-list")
	}
	if len(bindingList.Items)%2 != 0 {
		return ir.Expr{}, shapeError(list.Items[1], "(n v ...)", "odd number of binding elements")
	}

	var names []string
	var inits []ir.Expr
	for i := 0; i+1 < len(bindingList.Items); i += 2 {
		name, ok := symbolName(bindingList.Items[i])
		if !ok {
			return ir.Expr{}, shapeError(bindingList.Items[i], "binding name", "non-symbol")
		}
		init, err := c.lowerExprForm(bindingList.Items[i+1])
		if err != nil {
			return ir.Expr{}, err
		}
		names = append(names, identName(name))
		inits = append(inits, init)
	}

	loopName := c.nextLoopName()
	c.loopStack = append(c.loopStack, loopFrame{name: loopName, params: names})
	body, err := c.lowerBody(list.Items[2:])
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	if err != nil {
		return ir.Expr{}, err
	}

	params := make([]ir.Param, len(names))
	for i, n := range names {
		params[i] = ir.Param{Name: n}
	}
	fn := ir.Expr{Data: &ir.FunctionExpression{Name: loopName, Params: params, Body: body}, Loc: f.Loc}
	return ir.Expr{Data: &ir.CallExpression{Callee: fn, Args: inits}, Loc: f.Loc}, nil
}

// lowerRecur lowers "(recur v1 v2 ...)" into a return of a self-call to
// the innermost enclosing loop's generated function. recur outside any
// loop, including directly in a fn/fx body, is a shape error.
func (c *Context) lowerRecur(f ast.SExpr) (ir.Stmt, error) {
	if len(c.loopStack) == 0 {
		return ir.Stmt{}, shapeError(f, "recur within an enclosing loop", "recur with no enclosing loop")
	}
	frame := c.loopStack[len(c.loopStack)-1]
	list := f.Data.(*ast.SList)
	args := list.Items[1:]
	if len(args) != len(frame.params) {
		return ir.Stmt{}, shapeError(f, "recur with one argument per loop binding", "argument count mismatch")
	}
	lowered, err := c.lowerArgs(args)
	if err != nil {
		return ir.Stmt{}, err
	}
	callee := ir.Expr{Data: &ir.Identifier{Name: frame.name}, Loc: f.Loc}
	call := ir.Expr{Data: &ir.CallExpression{Callee: callee, Args: lowered}, Loc: f.Loc}
	return ir.Stmt{Data: &ir.ReturnStatement{Argument: &call}, Loc: f.Loc}, nil
}
