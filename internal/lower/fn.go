package lower

import (
	"fmt"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
)

// lowerFnDecl lowers "(fn name (params...) [(-> ReturnType)] body...)"
// (§4.4.1): untyped parameters, optional per-parameter defaults, a single
// trailing rest parameter, and named-argument calls resolved later at
// each call site against FnRegistry.
func (c *Context) lowerFnDecl(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) < 3 {
		return ir.Stmt{}, shapeError(f, "(fn name (params...) body...)", "wrong arity")
	}
	name, ok := symbolName(list.Items[1])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[1], "function name", "non-symbol")
	}
	paramList, ok := list.Items[2].Data.(*ast.SList)
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[2], "parameter list", "non-list")
	}
	params, defaults, rest, err := c.lowerFnParamList(paramList)
	if err != nil {
		return ir.Stmt{}, err
	}

	bodyForms := list.Items[3:]
	returnType, bodyForms := extractReturnTypeAnnotation(bodyForms)

	decl := &ir.FnFunctionDeclaration{
		Name:       identName(name),
		Params:     params,
		Defaults:   defaults,
		RestParam:  rest,
		ReturnType: returnType,
	}
	c.FnRegistry[identName(name)] = decl

	body, err := c.lowerBody(bodyForms)
	if err != nil {
		return ir.Stmt{}, err
	}
	decl.Body = body
	return ir.Stmt{Data: decl, Loc: f.Loc}, nil
}

// lowerFxDecl lowers "(fx name ((param Type) ...) (-> ReturnType)
// body...)" (§4.4.2): every parameter is typed, a return type is
// mandatory, and the printer is responsible for the deep-copy prologue
// over object-typed parameters (§6).
func (c *Context) lowerFxDecl(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) < 4 {
		return ir.Stmt{}, shapeError(f, "(fx name (typed-params...) (-> ReturnType) body...)", "wrong arity")
	}
	name, ok := symbolName(list.Items[1])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[1], "function name", "non-symbol")
	}
	paramList, ok := list.Items[2].Data.(*ast.SList)
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[2], "typed parameter list", "non-list")
	}
	params, defaults, paramTypes, err := c.lowerFxParamList(paramList)
	if err != nil {
		return ir.Stmt{}, err
	}

	returnType, ok := parseReturnTypeForm(list.Items[3])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[3], "(-> ReturnType)", "fx declarations require a mandatory return type")
	}

	decl := &ir.FxFunctionDeclaration{
		Name:       identName(name),
		Params:     params,
		Defaults:   defaults,
		ParamTypes: paramTypes,
		ReturnType: returnType,
	}
	c.FxRegistry[identName(name)] = decl

	if !c.isPure(params, list.Items[4:]) {
		return ir.Stmt{}, shapeError(f, "a body free of side effects", "fx body references an impure operation")
	}

	body, err := c.lowerBody(list.Items[4:])
	if err != nil {
		return ir.Stmt{}, err
	}
	decl.Body = body
	c.pureFns[identName(name)] = true
	return ir.Stmt{Data: decl, Loc: f.Loc}, nil
}

// lowerFnParamList parses an untyped fn parameter list: a bare symbol is
// a required parameter, "(name default)" supplies a default expression,
// and "& rest" marks the trailing rest parameter.
func (c *Context) lowerFnParamList(list *ast.SList) ([]ir.Param, map[string]ir.Expr, string, error) {
	var params []ir.Param
	defaults := map[string]ir.Expr{}
	rest := ""
	for i := 0; i < len(list.Items); i++ {
		item := list.Items[i]
		if name, ok := symbolName(item); ok {
			if name == "&" {
				if rest != "" {
					return nil, nil, "", validationError(item, "duplicate rest parameters")
				}
				i++
				if i >= len(list.Items) {
					return nil, nil, "", shapeError(item, "rest parameter name", "missing after &")
				}
				restName, ok := symbolName(list.Items[i])
				if !ok {
					return nil, nil, "", shapeError(list.Items[i], "rest parameter name", "non-symbol")
				}
				rest = identName(restName)
				params = append(params, ir.Param{Name: rest, Rest: true})
				continue
			}
			params = append(params, ir.Param{Name: identName(name)})
			continue
		}
		pair, ok := item.Data.(*ast.SList)
		if !ok || len(pair.Items) != 2 {
			return nil, nil, "", shapeError(item, "parameter name or (name default)", "malformed parameter")
		}
		name, ok := symbolName(pair.Items[0])
		if !ok {
			return nil, nil, "", shapeError(pair.Items[0], "parameter name", "non-symbol")
		}
		defaultExpr, err := c.lowerExprForm(pair.Items[1])
		if err != nil {
			return nil, nil, "", err
		}
		params = append(params, ir.Param{Name: identName(name), Default: &defaultExpr})
		defaults[identName(name)] = defaultExpr
	}
	return params, defaults, rest, nil
}

// lowerFxParamList parses a typed fx parameter list: "(name Type)" or
// "(name Type default)".
func (c *Context) lowerFxParamList(list *ast.SList) ([]ir.Param, map[string]ir.Expr, map[string]string, error) {
	var params []ir.Param
	defaults := map[string]ir.Expr{}
	types := map[string]string{}
	for _, item := range list.Items {
		pair, ok := item.Data.(*ast.SList)
		if !ok || len(pair.Items) < 2 || len(pair.Items) > 3 {
			return nil, nil, nil, shapeError(item, "(name Type [default])", "malformed typed parameter")
		}
		name, ok := symbolName(pair.Items[0])
		if !ok {
			return nil, nil, nil, shapeError(pair.Items[0], "parameter name", "non-symbol")
		}
		typeName, ok := symbolName(pair.Items[1])
		if !ok {
			return nil, nil, nil, shapeError(pair.Items[1], "parameter type", "non-symbol")
		}
		if !c.isFxParamType(typeName) {
			return nil, nil, nil, validationError(pair.Items[1], fmt.Sprintf("unsupported type %q", typeName))
		}
		p := ir.Param{Name: identName(name), Type: typeName}
		if len(pair.Items) == 3 {
			defaultExpr, err := c.lowerExprForm(pair.Items[2])
			if err != nil {
				return nil, nil, nil, err
			}
			p.Default = &defaultExpr
			defaults[identName(name)] = defaultExpr
		}
		params = append(params, p)
		types[identName(name)] = typeName
	}
	return params, defaults, types, nil
}

// isFxParamType reports whether typeName is a member of §4.4.2's closed
// fx parameter type set, or the name of an enum declared earlier in this
// file.
func (c *Context) isFxParamType(typeName string) bool {
	switch typeName {
	case "Int", "Double", "String", "Bool", "Any":
		return true
	}
	return c.EnumNames[typeName]
}

// extractReturnTypeAnnotation recognizes a leading "(-> Type)" form in an
// fn body (an optional annotation, unlike fx's mandatory one) and strips
// it from the body forms.
func extractReturnTypeAnnotation(body []ast.SExpr) (string, []ast.SExpr) {
	if len(body) == 0 {
		return "", body
	}
	if t, ok := parseReturnTypeForm(body[0]); ok {
		return t, body[1:]
	}
	return "", body
}

func parseReturnTypeForm(f ast.SExpr) (string, bool) {
	list, ok := f.Data.(*ast.SList)
	if !ok || len(list.Items) != 2 {
		return "", false
	}
	head, ok := symbolName(list.Items[0])
	if !ok || head != "->" {
		return "", false
	}
	t, ok := symbolName(list.Items[1])
	return t, ok
}
