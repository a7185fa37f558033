package lower

import (
	"fmt"
	"strings"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
	"github.com/hql-lang/hqlc/internal/logger"
)

var comparisonOps = map[string]string{
	"=": "===", "eq?": "===", "!=": "!==",
	"<": "<", ">": ">", "<=": "<=", ">=": ">=",
}

var arithmeticOps = map[string]string{"+": "+", "-": "-", "*": "*", "/": "/", "%": "%"}

// lowerExprForm lowers a single SExpr in expression position. For a list
// the dispatch order is: dot-prefixed method calls first, then the
// canonical special forms (get-based collection access among them), a
// headless list as an array literal, registered fx/fn call sites,
// primitive operators, and finally a plain positional CallExpression.
func (c *Context) lowerExprForm(f ast.SExpr) (ir.Expr, error) {
	switch d := f.Data.(type) {
	case *ast.SLiteral:
		return lowerLiteral(d, f.Loc), nil
	case *ast.SSymbol:
		return c.lowerSymbolExpr(d, f.Loc), nil
	case *ast.SList:
		return c.lowerListExpr(f, d)
	default:
		return ir.Expr{}, shapeError(f, "literal, symbol, or list", "unknown SExpr variant")
	}
}

func lowerLiteral(lit *ast.SLiteral, loc logger.Loc) ir.Expr {
	switch lit.Kind {
	case ast.LiteralString:
		return ir.Expr{Data: &ir.StringLiteral{Value: lit.String}, Loc: loc}
	case ast.LiteralInt:
		return ir.Expr{Data: &ir.NumericLiteral{Value: float64(lit.Int)}, Loc: loc}
	case ast.LiteralFloat:
		return ir.Expr{Data: &ir.NumericLiteral{Value: lit.Float}, Loc: loc}
	case ast.LiteralBool:
		return ir.Expr{Data: &ir.BooleanLiteral{Value: lit.Bool}, Loc: loc}
	default:
		return ir.Expr{Data: &ir.NullLiteral{}, Loc: loc}
	}
}

func (c *Context) lowerSymbolExpr(sym *ast.SSymbol, loc logger.Loc) ir.Expr {
	if sym.IsPlaceholder() {
		return ir.Expr{Data: &ir.Identifier{Name: "_"}, Loc: loc}
	}
	if sym.IsJSEscape() {
		return ir.Expr{Data: &ir.Identifier{Name: identName(sym.Name[3:])}, Loc: loc}
	}
	if sym.HasDotAccess() {
		return lowerDotChainSymbol(sym.Name, loc)
	}
	return ir.Expr{Data: &ir.Identifier{Name: identName(sym.Name)}, Loc: loc}
}

// lowerDotChainSymbol turns "obj.prop.prop2" into a chain of
// MemberExpressions (§4.4 fallthrough rule: "dot-chain member access").
func lowerDotChainSymbol(name string, loc logger.Loc) ir.Expr {
	parts := strings.Split(name, ".")
	base := ir.Expr{Data: &ir.Identifier{Name: identName(parts[0])}, Loc: loc}
	for _, p := range parts[1:] {
		base = ir.Expr{
			Data: &ir.MemberExpression{
				Object:   base,
				Property: ir.Expr{Data: &ir.Identifier{Name: identName(p)}, Loc: loc},
			},
			Loc: loc,
		}
	}
	return base
}

func (c *Context) lowerListExpr(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) == 0 {
		return ir.Expr{Data: &ir.ArrayExpression{}, Loc: f.Loc}, nil
	}

	head, hasHead := ast.Head(f)
	if hasHead {
		if strings.HasPrefix(head, ".") && len(head) > 1 {
			return c.lowerDotPrefixCall(f, list, head[1:])
		}
		if special, ok, err := c.lowerSpecialForm(f, list, head); ok {
			return special, err
		}
	}

	// Vector literal: a bare list whose head is not a recognized symbol
	// form is only reachable here when the syntax transformer left a
	// literal vector untouched (e.g. nested inside quasiquote data); treat
	// it as an array literal of its lowered elements.
	if !hasHead {
		return c.lowerVectorLiteral(f, list)
	}

	if fx, ok := c.FxRegistry[head]; ok {
		return c.lowerRegisteredCall(f, list, fx.Params, fx.Defaults, "")
	}
	if fn, ok := c.FnRegistry[head]; ok {
		return c.lowerRegisteredCall(f, list, fn.Params, fn.Defaults, fn.RestParam)
	}

	if op, ok := comparisonOps[head]; ok {
		return c.lowerComparison(f, list, op)
	}
	if op, ok := arithmeticOps[head]; ok {
		return c.lowerArithmetic(f, list, op, head)
	}
	switch head {
	case "and":
		return c.lowerLogical(f, list, "&&")
	case "or":
		return c.lowerLogical(f, list, "||")
	case "not":
		return c.lowerNot(f, list)
	}

	return c.lowerPlainCall(f, list)
}

// lowerSpecialForm dispatches the canonical special forms that are not
// subject to the general call-site resolution rules. ok is false when
// head names no special form, in which case the caller falls through to
// the generic dispatch chain.
func (c *Context) lowerSpecialForm(f ast.SExpr, list *ast.SList, head string) (ir.Expr, bool, error) {
	switch head {
	case "if":
		e, err := c.lowerIfExpr(f, list)
		return e, true, err
	case "cond":
		e, err := c.lowerCondExpr(f, list)
		return e, true, err
	case "let", "var":
		e, err := c.lowerLetExpr(f, list)
		return e, true, err
	case "do":
		e, err := c.lowerDoExpr(f, list)
		return e, true, err
	case "lambda", "fn*":
		e, err := c.lowerLambda(f, list)
		return e, true, err
	case "loop":
		e, err := c.lowerLoopExpr(f, list)
		return e, true, err
	case "quote":
		e, err := c.lowerQuote(f, list)
		return e, true, err
	case "quasiquote":
		e, err := c.lowerQuasiquoteLiteral(f, list)
		return e, true, err
	case "vector":
		e, err := c.lowerVectorLiteral(f, list)
		return e, true, err
	case "hash-map", "empty-map":
		e, err := c.lowerHashMap(f, list)
		return e, true, err
	case "hash-set", "empty-set":
		e, err := c.lowerHashSet(f, list)
		return e, true, err
	case "empty-array":
		return ir.Expr{Data: &ir.ArrayExpression{}, Loc: f.Loc}, true, nil
	case "get":
		e, err := c.lowerGet(f, list)
		return e, true, err
	case "new":
		e, err := c.lowerNew(f, list)
		return e, true, err
	case "js-get":
		e, err := c.lowerJsGet(f, list)
		return e, true, err
	case "js-set":
		e, err := c.lowerJsSet(f, list)
		return e, true, err
	case "js-call":
		e, err := c.lowerJsCall(f, list)
		return e, true, err
	case "js-new":
		e, err := c.lowerJsNew(f, list)
		return e, true, err
	case "js-get-invoke":
		e, err := c.lowerJsGetInvoke(f, list)
		return e, true, err
	case "method-call":
		e, err := c.lowerMethodCall(f, list)
		return e, true, err
	case "recur":
		// recur in expression position outside tail position is a shape
		// error: it only makes sense as the final form of a loop/fn body.
		return ir.Expr{}, true, shapeError(f, "recur in tail position", "recur in expression position")
	}
	return ir.Expr{}, false, nil
}

func (c *Context) lowerArgs(items []ast.SExpr) ([]ir.Expr, error) {
	out := make([]ir.Expr, 0, len(items))
	for _, it := range items {
		e, err := c.lowerExprForm(it)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Context) lowerPlainCall(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	callee, err := c.lowerExprForm(list.Items[0])
	if err != nil {
		return ir.Expr{}, err
	}
	args, err := c.lowerArgs(list.Items[1:])
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.CallExpression{Callee: callee, Args: args}, Loc: f.Loc}, nil
}

// lowerDotPrefixCall lowers "(.push arr x y)" to "arr.push(x, y)".
func (c *Context) lowerDotPrefixCall(f ast.SExpr, list *ast.SList, method string) (ir.Expr, error) {
	if len(list.Items) < 2 {
		return ir.Expr{}, shapeError(f, "(.method receiver args...)", "missing receiver")
	}
	receiver, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	args, err := c.lowerArgs(list.Items[2:])
	if err != nil {
		return ir.Expr{}, err
	}
	callee := ir.Expr{
		Data: &ir.MemberExpression{Object: receiver, Property: ir.Expr{Data: &ir.Identifier{Name: identName(method)}}},
		Loc:  f.Loc,
	}
	return ir.Expr{Data: &ir.CallExpression{Callee: callee, Args: args}, Loc: f.Loc}, nil
}

func (c *Context) lowerComparison(f ast.SExpr, list *ast.SList, op string) (ir.Expr, error) {
	args := list.Items[1:]
	if len(args) != 2 {
		return ir.Expr{}, shapeError(f, "(op a b)", "comparison operators are strictly binary")
	}
	left, err := c.lowerExprForm(args[0])
	if err != nil {
		return ir.Expr{}, err
	}
	right, err := c.lowerExprForm(args[1])
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.BinaryExpression{Operator: op, Left: left, Right: right}, Loc: f.Loc}, nil
}

// lowerArithmetic implements §4.4.6's n-ary left fold for +,-,*,/,%, with
// unary +/- lowered to a prefix UnaryExpression and unary */% lowered to
// an implicit-identity BinaryExpression against 1.
func (c *Context) lowerArithmetic(f ast.SExpr, list *ast.SList, op, head string) (ir.Expr, error) {
	args := list.Items[1:]
	if len(args) == 0 {
		return ir.Expr{}, shapeError(f, "(op a ...)", "arithmetic operator with no operands")
	}
	if len(args) == 1 {
		operand, err := c.lowerExprForm(args[0])
		if err != nil {
			return ir.Expr{}, err
		}
		if head == "+" || head == "-" {
			return ir.Expr{Data: &ir.UnaryExpression{Operator: head, Argument: operand, Prefix: true}, Loc: f.Loc}, nil
		}
		identity := ir.Expr{Data: &ir.NumericLiteral{Value: 1}, Loc: f.Loc}
		return ir.Expr{Data: &ir.BinaryExpression{Operator: op, Left: identity, Right: operand}, Loc: f.Loc}, nil
	}
	acc, err := c.lowerExprForm(args[0])
	if err != nil {
		return ir.Expr{}, err
	}
	for _, a := range args[1:] {
		next, err := c.lowerExprForm(a)
		if err != nil {
			return ir.Expr{}, err
		}
		acc = ir.Expr{Data: &ir.BinaryExpression{Operator: op, Left: acc, Right: next}, Loc: f.Loc}
	}
	return acc, nil
}

func (c *Context) lowerLogical(f ast.SExpr, list *ast.SList, op string) (ir.Expr, error) {
	args := list.Items[1:]
	if len(args) == 0 {
		return ir.Expr{}, shapeError(f, "(and/or a ...)", "no operands")
	}
	acc, err := c.lowerExprForm(args[0])
	if err != nil {
		return ir.Expr{}, err
	}
	for _, a := range args[1:] {
		next, err := c.lowerExprForm(a)
		if err != nil {
			return ir.Expr{}, err
		}
		acc = ir.Expr{Data: &ir.BinaryExpression{Operator: op, Left: acc, Right: next}, Loc: f.Loc}
	}
	return acc, nil
}

func (c *Context) lowerNot(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) != 2 {
		return ir.Expr{}, shapeError(f, "(not a)", "wrong arity")
	}
	arg, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.UnaryExpression{Operator: "!", Argument: arg, Prefix: true}, Loc: f.Loc}, nil
}

func (c *Context) lowerIfExpr(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) < 3 || len(list.Items) > 4 {
		return ir.Expr{}, shapeError(f, "(if t c [a])", "wrong arity")
	}
	test, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	consequent, err := c.lowerExprForm(list.Items[2])
	if err != nil {
		return ir.Expr{}, err
	}
	alternate := ir.Expr{Data: &ir.Identifier{Name: "undefined"}, Loc: f.Loc}
	if len(list.Items) == 4 {
		alternate, err = c.lowerExprForm(list.Items[3])
		if err != nil {
			return ir.Expr{}, err
		}
	}
	return ir.Expr{Data: &ir.ConditionalExpression{Test: test, Consequent: consequent, Alternate: alternate}, Loc: f.Loc}, nil
}

func (c *Context) lowerCondExpr(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	clauses := list.Items[1:]
	if len(clauses) == 0 {
		return ir.Expr{}, shapeError(f, "(cond (t r) ...)", "no clauses")
	}
	return c.lowerCondClauseExprs(clauses, f.Loc)
}

func (c *Context) lowerCondClauseExprs(clauses []ast.SExpr, loc logger.Loc) (ir.Expr, error) {
	clause, ok := clauses[0].Data.(*ast.SList)
	if !ok || len(clause.Items) != 2 {
		return ir.Expr{}, shapeError(clauses[0], "(test result)", "malformed cond clause")
	}
	isElse := false
	if sym, ok := clause.Items[0].Data.(*ast.SSymbol); ok && sym.Name == "else" {
		isElse = true
	}
	result, err := c.lowerExprForm(clause.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	if isElse || len(clauses) == 1 {
		return result, nil
	}
	test, err := c.lowerExprForm(clause.Items[0])
	if err != nil {
		return ir.Expr{}, err
	}
	rest, err := c.lowerCondClauseExprs(clauses[1:], loc)
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.ConditionalExpression{Test: test, Consequent: result, Alternate: rest}, Loc: loc}, nil
}

// lowerLetExpr lowers a "let"/"var" appearing in expression position
// (e.g. as a macro-produced argument) into an IIFE: "(function(){ ...;
// return tail; })()", since JS has no expression-level block scoping.
func (c *Context) lowerLetExpr(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) < 2 {
		return ir.Expr{}, shapeError(f, "(let/var bindings body...)", "wrong arity")
	}
	declForm := ast.ListOf(list.Items[0], list.Items[1])
	forms := append([]ast.SExpr{declForm}, list.Items[2:]...)
	return c.wrapAsIIFE(f, forms)
}

func (c *Context) lowerDoExpr(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	return c.wrapAsIIFE(f, list.Items[1:])
}

// wrapAsIIFE lowers a body sequence into "(function(){ <body> })()" so a
// multi-statement form can appear in expression position.
func (c *Context) wrapAsIIFE(f ast.SExpr, forms []ast.SExpr) (ir.Expr, error) {
	body, err := c.lowerBody(forms)
	if err != nil {
		return ir.Expr{}, err
	}
	fn := ir.Expr{Data: &ir.FunctionExpression{Body: body}, Loc: f.Loc}
	return ir.Expr{Data: &ir.CallExpression{Callee: fn}, Loc: f.Loc}, nil
}

func (c *Context) lowerLambda(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) < 2 {
		return ir.Expr{}, shapeError(f, "(lambda (params...) body...)", "wrong arity")
	}
	paramList, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return ir.Expr{}, shapeError(list.Items[1], "parameter list", "non-list")
	}
	params, err := lowerParamList(paramList)
	if err != nil {
		return ir.Expr{}, err
	}
	body, err := c.lowerBody(list.Items[2:])
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.FunctionExpression{Params: params, Body: body, Arrow: true}, Loc: f.Loc}, nil
}

func lowerParamList(list *ast.SList) ([]ir.Param, error) {
	var params []ir.Param
	for i := 0; i < len(list.Items); i++ {
		name, ok := symbolName(list.Items[i])
		if !ok {
			return nil, shapeError(list.Items[i], "parameter name", "non-symbol")
		}
		if name == "&" {
			i++
			if i >= len(list.Items) {
				return nil, shapeError(list.Items[i-1], "rest parameter name", "missing after &")
			}
			restName, ok := symbolName(list.Items[i])
			if !ok {
				return nil, shapeError(list.Items[i], "rest parameter name", "non-symbol")
			}
			params = append(params, ir.Param{Name: identName(restName), Rest: true})
			continue
		}
		params = append(params, ir.Param{Name: identName(name)})
	}
	return params, nil
}

// lowerQuote lowers "(quote x)": a symbol quotes to its name as a string
// (JS has no symbol type), a list quotes to a nested array-of-strings
// structural literal, and a literal quotes to itself.
func (c *Context) lowerQuote(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) != 2 {
		return ir.Expr{}, shapeError(f, "(quote x)", "wrong arity")
	}
	return lowerQuotedData(list.Items[1]), nil
}

func lowerQuotedData(s ast.SExpr) ir.Expr {
	switch d := s.Data.(type) {
	case *ast.SLiteral:
		return lowerLiteral(d, s.Loc)
	case *ast.SSymbol:
		return ir.Expr{Data: &ir.StringLiteral{Value: d.Name}, Loc: s.Loc}
	case *ast.SList:
		elems := make([]ir.Expr, len(d.Items))
		for i, it := range d.Items {
			elems[i] = lowerQuotedData(it)
		}
		return ir.Expr{Data: &ir.ArrayExpression{Elements: elems}, Loc: s.Loc}
	default:
		return ir.Expr{Data: &ir.NullLiteral{}, Loc: s.Loc}
	}
}

// lowerQuasiquoteLiteral lowers a quasiquote form that survived macro
// expansion as ordinary source (not inside a macro template, where the
// Expander already resolved it away). unquote/unquote-splicing contents
// are macro-expanded code by construction and are lowered normally;
// everything else is treated as quoted structural data.
//
// unquote-splicing at the top level of a vector literal has no clean
// array-spread representation in the current IR (ir.ArrayExpression has
// no spread-element concept); nested splices inside quasiquoted data are
// therefore rejected rather than silently mishandled.
func (c *Context) lowerQuasiquoteLiteral(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) != 2 {
		return ir.Expr{}, shapeError(f, "(quasiquote x)", "wrong arity")
	}
	return c.lowerQuasiquoteForm(list.Items[1])
}

func (c *Context) lowerQuasiquoteForm(s ast.SExpr) (ir.Expr, error) {
	if head, ok := ast.Head(s); ok && head == "unquote" {
		l := s.Data.(*ast.SList)
		if len(l.Items) != 2 {
			return ir.Expr{}, shapeError(s, "(unquote x)", "wrong arity")
		}
		return c.lowerExprForm(l.Items[1])
	}
	list, ok := s.Data.(*ast.SList)
	if !ok {
		return lowerQuotedData(s), nil
	}
	elems := make([]ir.Expr, 0, len(list.Items))
	for _, it := range list.Items {
		if head, ok := ast.Head(it); ok && head == "unquote-splicing" {
			return ir.Expr{}, shapeError(it, "non-splicing element", "unquote-splicing inside a quasiquoted literal has no IR spread representation")
		}
		e, err := c.lowerQuasiquoteForm(it)
		if err != nil {
			return ir.Expr{}, err
		}
		elems = append(elems, e)
	}
	return ir.Expr{Data: &ir.ArrayExpression{Elements: elems}, Loc: s.Loc}, nil
}

func (c *Context) lowerVectorLiteral(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	start := 0
	if head, ok := ast.Head(f); ok && head == "vector" {
		start = 1
	}
	elems, err := c.lowerArgs(list.Items[start:])
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.ArrayExpression{Elements: elems}, Loc: f.Loc}, nil
}

// lowerHashMap lowers "(hash-map k1 v1 k2 v2 ...)" to "new Map([[k1,v1],
// [k2,v2], ...])", a real JS Map rather than a plain object literal, so
// that "get" below can lower uniformly to a ".get(key)" call.
func (c *Context) lowerHashMap(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	head, _ := ast.Head(f)
	pairs := list.Items[1:]
	if head == "empty-map" {
		pairs = nil
	}
	if len(pairs)%2 != 0 {
		return ir.Expr{}, shapeError(f, "(hash-map k v ...)", "odd number of arguments")
	}
	entries := make([]ir.Expr, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, err := c.lowerExprForm(pairs[i])
		if err != nil {
			return ir.Expr{}, err
		}
		v, err := c.lowerExprForm(pairs[i+1])
		if err != nil {
			return ir.Expr{}, err
		}
		entries = append(entries, ir.Expr{Data: &ir.ArrayExpression{Elements: []ir.Expr{k, v}}, Loc: f.Loc})
	}
	arr := ir.Expr{Data: &ir.ArrayExpression{Elements: entries}, Loc: f.Loc}
	return ir.Expr{Data: &ir.NewExpression{Callee: ir.Expr{Data: &ir.Identifier{Name: "Map"}}, Args: []ir.Expr{arr}}, Loc: f.Loc}, nil
}

// lowerHashSet lowers "(hash-set a b c)" to "new Set([a, b, c])".
func (c *Context) lowerHashSet(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	head, _ := ast.Head(f)
	items := list.Items[1:]
	if head == "empty-set" {
		items = nil
	}
	elems, err := c.lowerArgs(items)
	if err != nil {
		return ir.Expr{}, err
	}
	arr := ir.Expr{Data: &ir.ArrayExpression{Elements: elems}, Loc: f.Loc}
	return ir.Expr{Data: &ir.NewExpression{Callee: ir.Expr{Data: &ir.Identifier{Name: "Set"}}, Args: []ir.Expr{arr}}, Loc: f.Loc}, nil
}

// lowerGet implements the §4.4 "get" fallthrough rule: "(get coll key)"
// with a numeric-literal key is array/computed member access; anything
// else is treated as a Map/Set-style ".get(key)" call, since hash-map
// values are real JS Maps (see lowerHashMap).
func (c *Context) lowerGet(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) != 3 {
		return ir.Expr{}, shapeError(f, "(get coll key)", "wrong arity")
	}
	coll, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	key, err := c.lowerExprForm(list.Items[2])
	if err != nil {
		return ir.Expr{}, err
	}
	if lit, ok := list.Items[2].Data.(*ast.SLiteral); ok && (lit.Kind == ast.LiteralInt || lit.Kind == ast.LiteralFloat) {
		return ir.Expr{Data: &ir.MemberExpression{Object: coll, Property: key, Computed: true}, Loc: f.Loc}, nil
	}
	getMethod := ir.Expr{Data: &ir.MemberExpression{Object: coll, Property: ir.Expr{Data: &ir.Identifier{Name: "get"}}}}
	return ir.Expr{Data: &ir.CallExpression{Callee: getMethod, Args: []ir.Expr{key}}, Loc: f.Loc}, nil
}

func (c *Context) lowerNew(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) < 2 {
		return ir.Expr{}, shapeError(f, "(new Ctor args...)", "wrong arity")
	}
	callee, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	args, err := c.lowerArgs(list.Items[2:])
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.NewExpression{Callee: callee, Args: args}, Loc: f.Loc}, nil
}

func symbolOrStringArg(s ast.SExpr) (string, bool) {
	if sym, ok := s.Data.(*ast.SSymbol); ok {
		return sym.Name, true
	}
	if lit, ok := s.Data.(*ast.SLiteral); ok && lit.Kind == ast.LiteralString {
		return lit.String, true
	}
	return "", false
}

// lowerJsGet lowers "(js-get obj prop)" to "obj.prop".
func (c *Context) lowerJsGet(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) != 3 {
		return ir.Expr{}, shapeError(f, "(js-get obj prop)", "wrong arity")
	}
	obj, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	prop, ok := symbolOrStringArg(list.Items[2])
	if !ok {
		return ir.Expr{}, shapeError(list.Items[2], "property name", "non-symbol, non-string")
	}
	return ir.Expr{Data: &ir.MemberExpression{Object: obj, Property: ir.Expr{Data: &ir.Identifier{Name: prop}}}, Loc: f.Loc}, nil
}

// lowerJsSet lowers "(js-set obj prop v)" to "(obj.prop = v)".
func (c *Context) lowerJsSet(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) != 4 {
		return ir.Expr{}, shapeError(f, "(js-set obj prop v)", "wrong arity")
	}
	obj, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	prop, ok := symbolOrStringArg(list.Items[2])
	if !ok {
		return ir.Expr{}, shapeError(list.Items[2], "property name", "non-symbol, non-string")
	}
	value, err := c.lowerExprForm(list.Items[3])
	if err != nil {
		return ir.Expr{}, err
	}
	target := ir.Expr{Data: &ir.MemberExpression{Object: obj, Property: ir.Expr{Data: &ir.Identifier{Name: prop}}}}
	return ir.Expr{Data: &ir.AssignmentExpression{Operator: "=", Target: target, Value: value}, Loc: f.Loc}, nil
}

// lowerJsCall lowers "(js-call obj method args...)" to "obj.method(args)".
func (c *Context) lowerJsCall(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) < 3 {
		return ir.Expr{}, shapeError(f, "(js-call obj method args...)", "wrong arity")
	}
	obj, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	method, ok := symbolOrStringArg(list.Items[2])
	if !ok {
		return ir.Expr{}, shapeError(list.Items[2], "method name", "non-symbol, non-string")
	}
	args, err := c.lowerArgs(list.Items[3:])
	if err != nil {
		return ir.Expr{}, err
	}
	callee := ir.Expr{Data: &ir.MemberExpression{Object: obj, Property: ir.Expr{Data: &ir.Identifier{Name: method}}}}
	return ir.Expr{Data: &ir.CallExpression{Callee: callee, Args: args}, Loc: f.Loc}, nil
}

// lowerJsNew lowers "(js-new Ctor args...)" identically to "new".
func (c *Context) lowerJsNew(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	return c.lowerNew(f, list)
}

// lowerJsGetInvoke lowers "(js-get-invoke obj prop args...)" to an
// InteropIIFE: read the property, call it with obj as receiver if
// callable, otherwise evaluate to the value (§4.4.7).
func (c *Context) lowerJsGetInvoke(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) < 3 {
		return ir.Expr{}, shapeError(f, "(js-get-invoke obj prop args...)", "wrong arity")
	}
	obj, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	prop, ok := symbolOrStringArg(list.Items[2])
	if !ok {
		return ir.Expr{}, shapeError(list.Items[2], "property name", "non-symbol, non-string")
	}
	args, err := c.lowerArgs(list.Items[3:])
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.InteropIIFE{Object: obj, Property: prop, Args: args}, Loc: f.Loc}, nil
}

// lowerMethodCall lowers "(method-call receiver name args...)" to a
// GetAndCall: look up name on receiver, call it bound to receiver if
// callable, else evaluate to its value (§4.4.7 dynamic dispatch).
func (c *Context) lowerMethodCall(f ast.SExpr, list *ast.SList) (ir.Expr, error) {
	if len(list.Items) < 3 {
		return ir.Expr{}, shapeError(f, "(method-call receiver name args...)", "wrong arity")
	}
	receiver, err := c.lowerExprForm(list.Items[1])
	if err != nil {
		return ir.Expr{}, err
	}
	name, ok := symbolOrStringArg(list.Items[2])
	if !ok {
		return ir.Expr{}, shapeError(list.Items[2], "method name", "non-symbol, non-string")
	}
	args, err := c.lowerArgs(list.Items[3:])
	if err != nil {
		return ir.Expr{}, err
	}
	return ir.Expr{Data: &ir.GetAndCall{Receiver: receiver, Method: name, Args: args}, Loc: f.Loc}, nil
}

// lowerRegisteredCall resolves a call site against a registered fn/fx
// declaration's parameter list (§4.4.1/§4.4.2): a call is either all
// positional, filling parameters left to right, or all "name: value"
// named-argument pairs, placed by parameter name (a call mixing the two
// is rejected); missing parameters
// fall back to their default expression when one is registered; a
// restParam, if present, collects all remaining positional arguments into
// an array.
func (c *Context) lowerRegisteredCall(f ast.SExpr, list *ast.SList, params []ir.Param, defaults map[string]ir.Expr, restParam string) (ir.Expr, error) {
	callee, err := c.lowerExprForm(list.Items[0])
	if err != nil {
		return ir.Expr{}, err
	}

	named := map[string]ast.SExpr{}
	var namedOrder []string
	var positional []ast.SExpr
	for i := 1; i < len(list.Items); i++ {
		if sym, ok := list.Items[i].Data.(*ast.SSymbol); ok && sym.IsNamedArgLabel() {
			key := strings.TrimSuffix(sym.Name, ":")
			if i+1 >= len(list.Items) {
				return ir.Expr{}, shapeError(list.Items[i], "value following named argument label", "end of call")
			}
			named[key] = list.Items[i+1]
			namedOrder = append(namedOrder, key)
			i++
			continue
		}
		positional = append(positional, list.Items[i])
	}

	// §4.4.1: a call may use positional arguments or named arguments, but
	// never both at the same call site.
	if len(named) > 0 && len(positional) > 0 {
		return ir.Expr{}, validationError(f, "call mixes positional and named arguments")
	}

	// §4.4.1/§7: every named argument key must name an actual parameter.
	paramNames := make(map[string]bool, len(params))
	for _, p := range params {
		if !p.Rest {
			paramNames[p.Name] = true
		}
	}
	for _, key := range namedOrder {
		if !paramNames[key] {
			return ir.Expr{}, validationError(f, fmt.Sprintf("unknown named argument %q", key))
		}
	}

	args := make([]ir.Expr, 0, len(params))
	posIdx := 0
	for _, p := range params {
		if p.Rest {
			continue
		}
		if v, ok := named[p.Name]; ok {
			e, err := c.lowerExprForm(v)
			if err != nil {
				return ir.Expr{}, err
			}
			args = append(args, e)
			continue
		}
		if posIdx < len(positional) {
			if sym, ok := positional[posIdx].Data.(*ast.SSymbol); ok && sym.IsPlaceholder() {
				placeholder := positional[posIdx]
				posIdx++
				d, ok := defaults[p.Name]
				if !ok {
					return ir.Expr{}, validationError(placeholder, fmt.Sprintf("placeholder for parameter %q has no registered default", p.Name))
				}
				args = append(args, d)
				continue
			}
			e, err := c.lowerExprForm(positional[posIdx])
			if err != nil {
				return ir.Expr{}, err
			}
			args = append(args, e)
			posIdx++
			continue
		}
		if d, ok := defaults[p.Name]; ok {
			args = append(args, d)
			continue
		}
		return ir.Expr{}, validationError(f, fmt.Sprintf("missing required argument %q", p.Name))
	}
	if restParam != "" {
		for ; posIdx < len(positional); posIdx++ {
			e, err := c.lowerExprForm(positional[posIdx])
			if err != nil {
				return ir.Expr{}, err
			}
			args = append(args, e)
		}
	}

	return ir.Expr{Data: &ir.CallExpression{Callee: callee, Args: args}, Loc: f.Loc}, nil
}

