package lower

import (
	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
	"github.com/hql-lang/hqlc/internal/logger"
)

// lowerBody lowers a function/lambda/constructor/loop body: every form
// but the last is lowered for its side effects, and the last is lowered
// in tail position (§4.4.1 "the body's final expression is wrapped in a
// ReturnStatement unless one is already present").
func (c *Context) lowerBody(forms []ast.SExpr) ([]ir.Stmt, error) {
	if len(forms) == 0 {
		return nil, nil
	}
	stmts := make([]ir.Stmt, 0, len(forms))
	for _, f := range forms[:len(forms)-1] {
		s, err := c.lowerNonTailStmt(f)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	tail, err := c.lowerTailStmt(forms[len(forms)-1])
	if err != nil {
		return nil, err
	}
	return append(stmts, tail...), nil
}

// lowerBodyAppendReturnThis lowers a constructor body and, if the final
// statement is not already a return, appends "return this" (§4.4.4).
func (c *Context) lowerBodyAppendReturnThis(forms []ast.SExpr) ([]ir.Stmt, error) {
	stmts, err := c.lowerBody(forms)
	if err != nil {
		return nil, err
	}
	if len(stmts) > 0 {
		if _, ok := stmts[len(stmts)-1].Data.(*ir.ReturnStatement); ok {
			return stmts, nil
		}
	}
	thisExpr := ir.Expr{Data: &ir.Identifier{Name: "this"}}
	return append(stmts, ir.Stmt{Data: &ir.ReturnStatement{Argument: &thisExpr}}), nil
}

func (c *Context) lowerNonTailStmt(f ast.SExpr) (ir.Stmt, error) {
	head, _ := ast.Head(f)
	switch head {
	case "let":
		return c.lowerVarDecl(f, ir.DeclConst)
	case "var":
		return c.lowerVarDecl(f, ir.DeclLet)
	case "set!":
		return c.lowerSetBang(f)
	case "return":
		return c.lowerReturn(f)
	case "if":
		return c.lowerIfStmt(f, false)
	case "recur":
		return c.lowerRecur(f)
	default:
		return c.lowerExprStatement(f)
	}
}

// lowerTailStmt lowers the final form of a body, returning one or more
// statements (an "if" in tail position may expand to a single
// IfStatement whose branches themselves recurse into tail position).
func (c *Context) lowerTailStmt(f ast.SExpr) ([]ir.Stmt, error) {
	head, _ := ast.Head(f)
	switch head {
	case "if":
		s, err := c.lowerIfStmt(f, true)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{s}, nil
	case "cond":
		s, err := c.lowerCondStmt(f, true)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{s}, nil
	case "do":
		list := f.Data.(*ast.SList)
		return c.lowerBody(list.Items[1:])
	case "recur":
		s, err := c.lowerRecur(f)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{s}, nil
	case "return":
		s, err := c.lowerReturn(f)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{s}, nil
	case "let", "var", "set!":
		// A binding or assignment in tail position has no meaningful
		// return value; lower it, then return undefined implicitly.
		s, err := c.lowerNonTailStmt(f)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{s}, nil
	default:
		e, err := c.lowerExprForm(f)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{{Data: &ir.ReturnStatement{Argument: &e}, Loc: f.Loc}}, nil
	}
}

func (c *Context) lowerReturn(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) == 1 {
		return ir.Stmt{Data: &ir.ReturnStatement{}, Loc: f.Loc}, nil
	}
	e, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Stmt{}, err
	}
	return ir.Stmt{Data: &ir.ReturnStatement{Argument: &e}, Loc: f.Loc}, nil
}

func (c *Context) lowerSetBang(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) != 3 {
		return ir.Stmt{}, shapeError(f, "(set! target value)", "wrong arity")
	}
	target, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Stmt{}, err
	}
	value, err := c.lowerExprForm(list.Items[2])
	if err != nil {
		return ir.Stmt{}, err
	}
	assign := &ir.AssignmentExpression{Operator: "=", Target: target, Value: value}
	return ir.Stmt{Data: &ir.ExpressionStatement{Expression: ir.Expr{Data: assign, Loc: f.Loc}}, Loc: f.Loc}, nil
}

// lowerIfStmt lowers "(if t c [a])". In tail position both branches are
// recursively lowered in tail position (so a nested recur/return reaches
// a proper ReturnStatement); otherwise both branches are lowered as
// plain non-tail statements.
func (c *Context) lowerIfStmt(f ast.SExpr, tail bool) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) < 3 || len(list.Items) > 4 {
		return ir.Stmt{}, shapeError(f, "(if t c [a])", "wrong arity")
	}
	test, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Stmt{}, err
	}
	consequent, err := c.lowerBranch(list.Items[2], tail)
	if err != nil {
		return ir.Stmt{}, err
	}

	var alt *ir.Stmt
	if len(list.Items) == 4 {
		a, err := c.lowerBranch(list.Items[3], tail)
		if err != nil {
			return ir.Stmt{}, err
		}
		alt = &a
	}
	return ir.Stmt{Data: &ir.IfStatement{Test: test, Consequent: consequent, Alternate: alt}, Loc: f.Loc}, nil
}

func (c *Context) lowerBranch(f ast.SExpr, tail bool) (ir.Stmt, error) {
	var stmts []ir.Stmt
	var err error
	if tail {
		stmts, err = c.lowerTailStmt(f)
	} else {
		var s ir.Stmt
		s, err = c.lowerNonTailStmt(f)
		stmts = []ir.Stmt{s}
	}
	if err != nil {
		return ir.Stmt{}, err
	}
	if len(stmts) == 1 {
		return stmts[0], nil
	}
	return ir.Stmt{Data: &ir.BlockStatement{Body: stmts}}, nil
}

// lowerCondStmt lowers "(cond (t1 r1) ... (else rn))" into a chain of
// nested IfStatements.
func (c *Context) lowerCondStmt(f ast.SExpr, tail bool) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	clauses := list.Items[1:]
	if len(clauses) == 0 {
		return ir.Stmt{}, shapeError(f, "(cond (t r) ...)", "no clauses")
	}
	return c.lowerCondClauses(clauses, tail, f.Loc)
}

func (c *Context) lowerCondClauses(clauses []ast.SExpr, tail bool, loc logger.Loc) (ir.Stmt, error) {
	clause, ok := clauses[0].Data.(*ast.SList)
	if !ok || len(clause.Items) != 2 {
		return ir.Stmt{}, shapeError(clauses[0], "(test result)", "malformed cond clause")
	}
	isElse := false
	if sym, ok := clause.Items[0].Data.(*ast.SSymbol); ok && sym.Name == "else" {
		isElse = true
	}
	if isElse || len(clauses) == 1 {
		return c.lowerBranch(clause.Items[1], tail)
	}
	test, err := c.lowerExprForm(clause.Items[0])
	if err != nil {
		return ir.Stmt{}, err
	}
	consequent, err := c.lowerBranch(clause.Items[1], tail)
	if err != nil {
		return ir.Stmt{}, err
	}
	rest, err := c.lowerCondClauses(clauses[1:], tail, loc)
	if err != nil {
		return ir.Stmt{}, err
	}
	return ir.Stmt{Data: &ir.IfStatement{Test: test, Consequent: consequent, Alternate: &rest}, Loc: loc}, nil
}

func (c *Context) lowerVarDecl(f ast.SExpr, kind ir.DeclKind) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) < 2 {
		return ir.Stmt{}, shapeError(f, "(let/var name v) or (let/var (n v ...) body...)", "wrong arity")
	}

	if name, ok := symbolName(list.Items[1]); ok {
		if len(list.Items) != 3 {
			return ir.Stmt{}, shapeError(f, "(let/var name v)", "wrong arity")
		}
		init, err := c.lowerExprForm(list.Items[2])
		if err != nil {
			return ir.Stmt{}, err
		}
		decl := ir.VariableDeclaration{Kind: kind, Decls: []ir.VariableDeclarator{{Name: identName(name), Init: &init}}}
		return ir.Stmt{Data: &decl, Loc: f.Loc}, nil
	}

	bindingList, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return ir.Stmt{}, shapeError(f, "(let/var (n v ...) body...)", "second element is neither a symbol nor a list")
	}
	var decls []ir.VariableDeclarator
	for i := 0; i+1 < len(bindingList.Items); i += 2 {
		name, ok := symbolName(bindingList.Items[i])
		if !ok {
			return ir.Stmt{}, shapeError(bindingList.Items[i], "binding name", "non-symbol")
		}
		init, err := c.lowerExprForm(bindingList.Items[i+1])
		if err != nil {
			return ir.Stmt{}, err
		}
		decls = append(decls, ir.VariableDeclarator{Name: identName(name), Init: &init})
	}
	return ir.Stmt{Data: &ir.VariableDeclaration{Kind: kind, Decls: decls}, Loc: f.Loc}, nil
}
