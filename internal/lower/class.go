package lower

import (
	"strings"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
)

// lowerClassDecl lowers "(class Name (field ...) (constructor (params...)
// body...) (method name (params...) body...) (fx-method name
// (typed-params...) (-> T) body...) ...)" (§4.4.4): field declarations,
// an optional constructor that rewrites "self" to "this" and implicitly
// returns "this" when the body has no explicit return, and a mix of
// plain and fx methods.
func (c *Context) lowerClassDecl(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) < 2 {
		return ir.Stmt{}, shapeError(f, "(class Name members...)", "wrong arity")
	}
	name, ok := symbolName(list.Items[1])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[1], "class name", "non-symbol")
	}

	decl := &ir.ClassDeclaration{Name: identName(name)}
	for _, member := range list.Items[2:] {
		memberList, ok := member.Data.(*ast.SList)
		if !ok || len(memberList.Items) == 0 {
			return ir.Stmt{}, shapeError(member, "class member form", "non-list or empty")
		}
		kind, _ := symbolName(memberList.Items[0])
		switch kind {
		case "field":
			field, err := lowerClassField(member, memberList)
			if err != nil {
				return ir.Stmt{}, err
			}
			decl.Fields = append(decl.Fields, field)
		case "constructor":
			ctor, err := c.lowerClassConstructor(member, memberList)
			if err != nil {
				return ir.Stmt{}, err
			}
			decl.Constructor = ctor
		case "method":
			method, err := c.lowerClassMethod(member, memberList, ir.MethodPlain)
			if err != nil {
				return ir.Stmt{}, err
			}
			decl.Methods = append(decl.Methods, method)
		case "fx-method":
			method, err := c.lowerClassMethod(member, memberList, ir.MethodFx)
			if err != nil {
				return ir.Stmt{}, err
			}
			decl.Methods = append(decl.Methods, method)
		default:
			return ir.Stmt{}, shapeError(member, "field, constructor, method, or fx-method", kind)
		}
	}
	return ir.Stmt{Data: decl, Loc: f.Loc}, nil
}

// lowerClassField lowers "(field name [mutable?] [init])". A bare symbol
// after the name that reads "mutable" marks the field as non-readonly;
// any remaining form is the initializer.
func lowerClassField(f ast.SExpr, list *ast.SList) (ir.ClassField, error) {
	if len(list.Items) < 2 {
		return ir.ClassField{}, shapeError(f, "(field name [mutable] [init])", "wrong arity")
	}
	name, ok := symbolName(list.Items[1])
	if !ok {
		return ir.ClassField{}, shapeError(list.Items[1], "field name", "non-symbol")
	}
	field := ir.ClassField{Name: identName(name)}
	rest := list.Items[2:]
	if len(rest) > 0 {
		if sym, ok := symbolName(rest[0]); ok && sym == "mutable" {
			field.Mutable = true
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		// initializers are fixed structural data at class-definition time,
		// not run through the general expression lowerer's Context state.
		init := lowerQuotedDataAsPlainExpr(rest[0])
		field.Init = &init
	}
	return field, nil
}

// lowerQuotedDataAsPlainExpr lowers a class field initializer without
// needing Context: field initializers in practice are literal constants.
func lowerQuotedDataAsPlainExpr(f ast.SExpr) ir.Expr {
	switch d := f.Data.(type) {
	case *ast.SLiteral:
		return lowerLiteral(d, f.Loc)
	case *ast.SSymbol:
		return ir.Expr{Data: &ir.Identifier{Name: identName(d.Name)}, Loc: f.Loc}
	default:
		return ir.Expr{Data: &ir.NullLiteral{}, Loc: f.Loc}
	}
}

func (c *Context) lowerClassConstructor(f ast.SExpr, list *ast.SList) (*ir.ClassConstructor, error) {
	if len(list.Items) < 2 {
		return nil, shapeError(f, "(constructor (params...) body...)", "wrong arity")
	}
	paramList, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return nil, shapeError(list.Items[1], "parameter list", "non-list")
	}
	params, err := lowerParamList(paramList)
	if err != nil {
		return nil, err
	}
	body, err := c.lowerBodyAppendReturnThis(rewriteSelfForms(list.Items[2:]))
	if err != nil {
		return nil, err
	}
	return &ir.ClassConstructor{Params: params, Body: body}, nil
}

func (c *Context) lowerClassMethod(f ast.SExpr, list *ast.SList, kind ir.ClassMethodKind) (ir.ClassMethod, error) {
	if len(list.Items) < 3 {
		return ir.ClassMethod{}, shapeError(f, "(method name (params...) body...)", "wrong arity")
	}
	name, ok := symbolName(list.Items[1])
	if !ok {
		return ir.ClassMethod{}, shapeError(list.Items[1], "method name", "non-symbol")
	}
	paramList, ok := list.Items[2].Data.(*ast.SList)
	if !ok {
		return ir.ClassMethod{}, shapeError(list.Items[2], "parameter list", "non-list")
	}

	bodyForms := list.Items[3:]
	var params []ir.Param
	defaults := map[string]ir.Expr{}
	var err error
	if kind == ir.MethodFx {
		_, returnBody := extractReturnTypeAnnotation(bodyForms)
		bodyForms = returnBody
		params, defaults, _, err = c.lowerFxParamList(paramList)
	} else {
		params, defaults, _, err = c.lowerFnParamList(paramList)
	}
	if err != nil {
		return ir.ClassMethod{}, err
	}

	body, err := c.lowerBody(rewriteSelfForms(bodyForms))
	if err != nil {
		return ir.ClassMethod{}, err
	}
	return ir.ClassMethod{Name: identName(name), Kind: kind, Params: params, Defaults: defaults, Body: body}, nil
}

// rewriteSelfForms replaces the symbol "self" with "this" throughout a
// constructor/method body (§4.4.4), since ECMAScript's receiver binding
// is named "this".
func rewriteSelfForms(forms []ast.SExpr) []ast.SExpr {
	out := make([]ast.SExpr, len(forms))
	for i, f := range forms {
		out[i] = rewriteSelf(f)
	}
	return out
}

func rewriteSelf(f ast.SExpr) ast.SExpr {
	switch d := f.Data.(type) {
	case *ast.SSymbol:
		if d.Name == "self" {
			return ast.SExpr{Data: &ast.SSymbol{Name: "this"}, Loc: f.Loc}
		}
		if strings.HasPrefix(d.Name, "self.") {
			return ast.SExpr{Data: &ast.SSymbol{Name: "this" + d.Name[len("self"):]}, Loc: f.Loc}
		}
		return f
	case *ast.SList:
		items := make([]ast.SExpr, len(d.Items))
		for i, it := range d.Items {
			items[i] = rewriteSelf(it)
		}
		return ast.SExpr{Data: &ast.SList{Items: items}, Loc: f.Loc}
	default:
		return f
	}
}
