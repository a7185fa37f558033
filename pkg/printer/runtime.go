package printer

import "github.com/hql-lang/hqlc/internal/ir"

// getRuntimeHelperSource is the shared "get" helper method-call (§4.4.7)
// needs: a safe property lookup that returns undefined for a missing
// property instead of throwing on a null/undefined receiver. Modeled on
// the teacher's internal/runtime package, which keeps a small fixed set
// of helper functions as Go string constants and injects them into
// output only when the feature that needs them is used.
const getRuntimeHelperSource = `function get(obj, key) {
  if (obj === null || obj === undefined) return undefined;
  return obj[key];
}
`

// usesGetAndCall and collectJsImportReferences both need a full walk of
// the IR tree; rather than building a generic visitor (the node catalog
// is closed and small enough that a direct type switch is clearer), each
// walk is its own short recursive pair of functions over Stmt and Expr.

func usesGetAndCall(body []ir.Stmt) bool {
	for _, s := range body {
		if stmtUsesGetAndCall(s) {
			return true
		}
	}
	return false
}

func stmtUsesGetAndCall(s ir.Stmt) bool {
	switch d := s.Data.(type) {
	case *ir.ExpressionStatement:
		return exprUsesGetAndCall(d.Expression)
	case *ir.ReturnStatement:
		return d.Argument != nil && exprUsesGetAndCall(*d.Argument)
	case *ir.IfStatement:
		if exprUsesGetAndCall(d.Test) || stmtUsesGetAndCall(d.Consequent) {
			return true
		}
		return d.Alternate != nil && stmtUsesGetAndCall(*d.Alternate)
	case *ir.BlockStatement:
		return usesGetAndCall(d.Body)
	case *ir.VariableDeclaration:
		for _, decl := range d.Decls {
			if decl.Init != nil && exprUsesGetAndCall(*decl.Init) {
				return true
			}
		}
		return false
	case *ir.FunctionDeclaration:
		return usesGetAndCall(d.Body)
	case *ir.FnFunctionDeclaration:
		return usesGetAndCall(d.Body)
	case *ir.FxFunctionDeclaration:
		return usesGetAndCall(d.Body)
	case *ir.ExportVariableDeclaration:
		return stmtUsesGetAndCall(ir.Stmt{Data: &d.Declaration})
	case *ir.ClassDeclaration:
		if d.Constructor != nil && usesGetAndCall(d.Constructor.Body) {
			return true
		}
		for _, m := range d.Methods {
			if usesGetAndCall(m.Body) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func exprUsesGetAndCall(e ir.Expr) bool {
	switch d := e.Data.(type) {
	case *ir.GetAndCall:
		return true
	case *ir.ArrayExpression:
		for _, el := range d.Elements {
			if exprUsesGetAndCall(el) {
				return true
			}
		}
		return false
	case *ir.ObjectExpression:
		for _, prop := range d.Properties {
			if exprUsesGetAndCall(prop.Key) || exprUsesGetAndCall(prop.Value) {
				return true
			}
		}
		return false
	case *ir.MemberExpression:
		return exprUsesGetAndCall(d.Object) || exprUsesGetAndCall(d.Property)
	case *ir.CallExpression:
		if exprUsesGetAndCall(d.Callee) {
			return true
		}
		return anyExprUsesGetAndCall(d.Args)
	case *ir.NewExpression:
		if exprUsesGetAndCall(d.Callee) {
			return true
		}
		return anyExprUsesGetAndCall(d.Args)
	case *ir.BinaryExpression:
		return exprUsesGetAndCall(d.Left) || exprUsesGetAndCall(d.Right)
	case *ir.UnaryExpression:
		return exprUsesGetAndCall(d.Argument)
	case *ir.ConditionalExpression:
		return exprUsesGetAndCall(d.Test) || exprUsesGetAndCall(d.Consequent) || exprUsesGetAndCall(d.Alternate)
	case *ir.AssignmentExpression:
		return exprUsesGetAndCall(d.Target) || exprUsesGetAndCall(d.Value)
	case *ir.FunctionExpression:
		return usesGetAndCall(d.Body)
	case *ir.InteropIIFE:
		if exprUsesGetAndCall(d.Object) {
			return true
		}
		return anyExprUsesGetAndCall(d.Args)
	default:
		return false
	}
}

func anyExprUsesGetAndCall(exprs []ir.Expr) bool {
	for _, e := range exprs {
		if exprUsesGetAndCall(e) {
			return true
		}
	}
	return false
}

func collectJsImportReferences(body []ir.Stmt) []*ir.JsImportReference {
	var out []*ir.JsImportReference
	for _, s := range body {
		collectStmtJsImportReferences(s, &out)
	}
	return out
}

func collectStmtJsImportReferences(s ir.Stmt, out *[]*ir.JsImportReference) {
	switch d := s.Data.(type) {
	case *ir.ExpressionStatement:
		collectExprJsImportReferences(d.Expression, out)
	case *ir.ReturnStatement:
		if d.Argument != nil {
			collectExprJsImportReferences(*d.Argument, out)
		}
	case *ir.IfStatement:
		collectExprJsImportReferences(d.Test, out)
		collectStmtJsImportReferences(d.Consequent, out)
		if d.Alternate != nil {
			collectStmtJsImportReferences(*d.Alternate, out)
		}
	case *ir.BlockStatement:
		for _, sub := range d.Body {
			collectStmtJsImportReferences(sub, out)
		}
	case *ir.VariableDeclaration:
		for _, decl := range d.Decls {
			if decl.Init != nil {
				collectExprJsImportReferences(*decl.Init, out)
			}
		}
	case *ir.ExportVariableDeclaration:
		collectStmtJsImportReferences(ir.Stmt{Data: &d.Declaration}, out)
	}
}

func collectExprJsImportReferences(e ir.Expr, out *[]*ir.JsImportReference) {
	switch d := e.Data.(type) {
	case *ir.JsImportReference:
		*out = append(*out, d)
	case *ir.AssignmentExpression:
		collectExprJsImportReferences(d.Value, out)
	}
}
