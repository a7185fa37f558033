package lower

import (
	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
)

// lowerImport lowers "(import [a, b as c] from "path")" and the
// namespace form "(import name from "path")" (§3 module surface). A
// vector specifier list becomes one ImportSpecifier per name, honoring
// "(as original alias)" renames; a bare name becomes a single
// "*"-imported specifier, a convention the printer special-cases into a
// namespace import.
func (c *Context) lowerImport(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) != 4 {
		return ir.Stmt{}, shapeError(f, `(import specifiers from "path")`, "wrong arity")
	}
	fromSym, ok := symbolName(list.Items[2])
	if !ok || fromSym != "from" {
		return ir.Stmt{}, shapeError(list.Items[2], `the "from" keyword`, "missing")
	}
	source, ok := stringLiteralOf(list.Items[3])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[3], "string literal import path", "non-string")
	}

	specifiers, err := lowerImportSpecifiers(list.Items[1])
	if err != nil {
		return ir.Stmt{}, err
	}
	return ir.Stmt{Data: &ir.ImportDeclaration{Specifiers: specifiers, Source: source}, Loc: f.Loc}, nil
}

func lowerImportSpecifiers(f ast.SExpr) ([]ir.ImportSpecifier, error) {
	if name, ok := symbolName(f); ok {
		return []ir.ImportSpecifier{{Imported: "*", Local: identName(name)}}, nil
	}
	list, ok := f.Data.(*ast.SList)
	if !ok {
		return nil, shapeError(f, "namespace symbol or [specifiers]", "neither")
	}
	var out []ir.ImportSpecifier
	for _, item := range list.Items {
		if name, ok := symbolName(item); ok {
			out = append(out, ir.ImportSpecifier{Imported: identName(name), Local: identName(name)})
			continue
		}
		asForm, ok := item.Data.(*ast.SList)
		if !ok || len(asForm.Items) != 3 {
			return nil, shapeError(item, "name or (as original alias)", "malformed import specifier")
		}
		asHead, ok := symbolName(asForm.Items[0])
		if !ok || asHead != "as" {
			return nil, shapeError(asForm.Items[0], `"as"`, "missing")
		}
		original, ok := symbolName(asForm.Items[1])
		if !ok {
			return nil, shapeError(asForm.Items[1], "original name", "non-symbol")
		}
		alias, ok := symbolName(asForm.Items[2])
		if !ok {
			return nil, shapeError(asForm.Items[2], "alias name", "non-symbol")
		}
		out = append(out, ir.ImportSpecifier{Imported: identName(original), Local: identName(alias)})
	}
	return out, nil
}

// lowerExport lowers "(export [a, b as c])" (§3): each exported name must
// resolve to either a value binding or a macro; macro names are elided
// from the emitted ExportNamedDeclaration (§4.4 fallthrough rule 3),
// since macros have no runtime representation to export.
func (c *Context) lowerExport(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) != 2 {
		return ir.Stmt{}, shapeError(f, "(export [specifiers])", "wrong arity")
	}
	specList, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[1], "[specifiers]", "non-list")
	}

	var specs []ir.ExportSpecifier
	for _, item := range specList.Items {
		local, exported, err := lowerExportSpecifier(item)
		if err != nil {
			return ir.Stmt{}, err
		}
		if c.KnownMacros[local] {
			continue
		}
		specs = append(specs, ir.ExportSpecifier{Local: local, Exported: exported})
	}
	return ir.Stmt{Data: &ir.ExportNamedDeclaration{Specifiers: specs}, Loc: f.Loc}, nil
}

func lowerExportSpecifier(f ast.SExpr) (local, exported string, err error) {
	if name, ok := symbolName(f); ok {
		return identName(name), identName(name), nil
	}
	asForm, ok := f.Data.(*ast.SList)
	if !ok || len(asForm.Items) != 3 {
		return "", "", shapeError(f, "name or (as original alias)", "malformed export specifier")
	}
	asHead, ok := symbolName(asForm.Items[0])
	if !ok || asHead != "as" {
		return "", "", shapeError(asForm.Items[0], `"as"`, "missing")
	}
	original, ok := symbolName(asForm.Items[1])
	if !ok {
		return "", "", shapeError(asForm.Items[1], "original name", "non-symbol")
	}
	alias, ok := symbolName(asForm.Items[2])
	if !ok {
		return "", "", shapeError(asForm.Items[2], "alias name", "non-symbol")
	}
	return identName(original), identName(alias), nil
}

// lowerJsImportDecl lowers "(js-import name "source")" into a binding of
// "name" to a JsImportReference (§6): the printer hoists the underlying
// namespace import and merges it with the module's default export at
// print time, so "name" resolves to the merged object everywhere it is
// used, not to a discarded expression result.
func (c *Context) lowerJsImportDecl(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) != 3 {
		return ir.Stmt{}, shapeError(f, `(js-import name "source")`, "wrong arity")
	}
	name, ok := symbolName(list.Items[1])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[1], "importer name", "non-symbol")
	}
	source, ok := stringLiteralOf(list.Items[2])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[2], "string literal source", "non-string")
	}
	ref := ir.Expr{Data: &ir.JsImportReference{ImporterName: identName(name), Source: source, HasDefault: true}, Loc: f.Loc}
	decl := ir.VariableDeclaration{Kind: ir.DeclConst, Decls: []ir.VariableDeclarator{{Name: identName(name), Init: &ref}}}
	return ir.Stmt{Data: &decl, Loc: f.Loc}, nil
}

// lowerJsExport lowers "(js-export name expr)" into "export const name =
// expr" (§6 host-export surface).
func (c *Context) lowerJsExport(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) != 3 {
		return ir.Stmt{}, shapeError(f, "(js-export name expr)", "wrong arity")
	}
	name, ok := symbolName(list.Items[1])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[1], "export name", "non-symbol")
	}
	value, err := c.lowerExprForm(list.Items[2])
	if err != nil {
		return ir.Stmt{}, err
	}
	decl := ir.VariableDeclaration{Kind: ir.DeclConst, Decls: []ir.VariableDeclarator{{Name: identName(name), Init: &value}}}
	return ir.Stmt{Data: &ir.ExportVariableDeclaration{Declaration: decl}, Loc: f.Loc}, nil
}

func stringLiteralOf(f ast.SExpr) (string, bool) {
	lit, ok := f.Data.(*ast.SLiteral)
	if !ok || lit.Kind != ast.LiteralString {
		return "", false
	}
	return lit.String, true
}
