package lower

import (
	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
)

// safeGlobals are host globals an fx body may reference without
// compromising purity: built-in value types and their static methods,
// none of which can observe or mutate state outside their arguments
// (§4.5).
var safeGlobals = map[string]bool{
	"String": true, "Number": true, "Boolean": true,
	"Object": true, "Array": true, "JSON": true, "Math": true, "Date": true,
}

// pureOperationNames are the structural and control-flow forms an fx
// body may use without compromising purity (§4.5): value operators,
// branching, and literal collection builders. Host interop forms that
// reach outside the expression they're given — js-set, js-call, new,
// js-new, method-call, js-get-invoke — are deliberately absent, since
// calling an arbitrary host method can never be proven side-effect
// free from here.
var pureOperationNames = map[string]bool{
	"if": true, "cond": true, "do": true, "and": true, "or": true, "not": true,
	"quote": true, "quasiquote": true, "unquote": true, "unquote-splicing": true,
	"vector": true, "hash-map": true, "hash-set": true,
	"empty-map": true, "empty-set": true, "empty-array": true,
	"get": true, "recur": true,
}

func init() {
	for op := range comparisonOps {
		pureOperationNames[op] = true
	}
	for op := range arithmeticOps {
		pureOperationNames[op] = true
	}
}

// isPure walks a sequence of forms (an fx body) and reports whether
// every referenced free symbol is either one of params, a local
// binding introduced within the body, a built-in pure operation, a
// registered pure function, or a member of safeGlobals (§4.5).
func (c *Context) isPure(params []ir.Param, forms []ast.SExpr) bool {
	locals := make(map[string]bool, len(params))
	for _, p := range params {
		locals[p.Name] = true
	}
	for _, f := range forms {
		if !c.isPureForm(f, locals) {
			return false
		}
	}
	return true
}

func (c *Context) isPureForm(f ast.SExpr, locals map[string]bool) bool {
	switch d := f.Data.(type) {
	case *ast.SLiteral:
		return true
	case *ast.SSymbol:
		return c.isPureReference(d.Name, locals)
	case *ast.SList:
		return c.isPureList(d, locals)
	default:
		return true
	}
}

func (c *Context) isPureReference(name string, locals map[string]bool) bool {
	if locals[name] {
		return true
	}
	if safeGlobals[name] {
		return true
	}
	if pureOperationNames[name] {
		return true
	}
	if _, isFx := c.FxRegistry[name]; isFx {
		return true
	}
	if c.pureFns[name] {
		return true
	}
	// §4.5 is an allowlist, not a blacklist: a bare symbol is pure only
	// if it's a parameter, a local, a built-in pure operation, a
	// registered pure fx, or a safe global. Everything else — an
	// unrecognized free global, a host interop form, an ordinary
	// (possibly effectful) fn — is presumed impure.
	return false
}

func (c *Context) isPureList(list *ast.SList, locals map[string]bool) bool {
	if len(list.Items) == 0 {
		return true
	}
	head, hasHead := ast.Head(ast.SExpr{Data: list})
	if hasHead {
		if head == "fn" {
			return false
		}
		switch head {
		case "let", "loop":
			return c.isPureBindingForm(list, locals)
		case "lambda":
			return c.isPureLambda(list, locals)
		}
	}
	for _, item := range list.Items {
		if !c.isPureForm(item, locals) {
			return false
		}
	}
	return true
}

// isPureBindingForm extends locals with a let/loop's binding names
// (letrec-style: all binding names are visible to every binding's own
// init expression and to the body, matching how the Lowerer later emits
// them as sibling declarations in one scope) before checking purity.
func (c *Context) isPureBindingForm(list *ast.SList, locals map[string]bool) bool {
	if len(list.Items) < 2 {
		return true
	}
	// (let name v): name stays visible to the rest of the enclosing body.
	if name, ok := symbolName(list.Items[1]); ok {
		locals[name] = true
		for _, v := range list.Items[2:] {
			if !c.isPureForm(v, locals) {
				return false
			}
		}
		return true
	}
	bindingList, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return true
	}
	inner := cloneLocals(locals)
	for i := 0; i+1 < len(bindingList.Items); i += 2 {
		if name, ok := symbolName(bindingList.Items[i]); ok {
			inner[name] = true
		}
	}
	for i := 1; i+1 < len(bindingList.Items); i += 2 {
		if !c.isPureForm(bindingList.Items[i], inner) {
			return false
		}
	}
	for _, body := range list.Items[2:] {
		if !c.isPureForm(body, inner) {
			return false
		}
	}
	return true
}

func (c *Context) isPureLambda(list *ast.SList, locals map[string]bool) bool {
	if len(list.Items) < 2 {
		return true
	}
	paramList, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return true
	}
	inner := cloneLocals(locals)
	for _, p := range paramList.Items {
		if name, ok := symbolName(p); ok && name != "&" {
			inner[name] = true
		}
	}
	for _, body := range list.Items[2:] {
		if !c.isPureForm(body, inner) {
			return false
		}
	}
	return true
}

func cloneLocals(locals map[string]bool) map[string]bool {
	out := make(map[string]bool, len(locals)+4)
	for k, v := range locals {
		out[k] = v
	}
	return out
}
