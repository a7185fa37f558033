package lower

import (
	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/ir"
)

// lowerEnumDecl lowers "(enum Name [RawType] case ...)" (§4.4.5). Every
// case in one declaration must share the same kind — bare, raw-valued,
// or associated-values — since the printer emits a structurally
// different representation for each and a mixed declaration has no
// single coherent lowering.
func (c *Context) lowerEnumDecl(f ast.SExpr) (ir.Stmt, error) {
	list := f.Data.(*ast.SList)
	if len(list.Items) < 2 {
		return ir.Stmt{}, shapeError(f, "(enum Name cases...)", "wrong arity")
	}
	name, ok := symbolName(list.Items[1])
	if !ok {
		return ir.Stmt{}, shapeError(list.Items[1], "enum name", "non-symbol")
	}

	rest := list.Items[2:]
	rawType := ""
	if len(rest) > 0 {
		if t, ok := symbolName(rest[0]); ok && isEnumRawTypeName(t) {
			rawType = t
			rest = rest[1:]
		}
	}

	var cases []ir.EnumCase
	var kindSeen *ir.EnumCaseKind
	for _, caseForm := range rest {
		kase, err := lowerEnumCase(caseForm)
		if err != nil {
			return ir.Stmt{}, err
		}
		if kindSeen != nil && *kindSeen != kase.Kind {
			return ir.Stmt{}, shapeError(caseForm, "cases of a single uniform kind", "mixed bare/raw-valued/associated cases in one enum")
		}
		k := kase.Kind
		kindSeen = &k
		cases = append(cases, kase)
	}

	c.EnumNames[identName(name)] = true
	return ir.Stmt{Data: &ir.EnumDeclaration{Name: identName(name), RawType: rawType, Cases: cases}, Loc: f.Loc}, nil
}

func isEnumRawTypeName(name string) bool {
	switch name {
	case "String", "Number", "Int", "Float":
		return true
	default:
		return false
	}
}

// lowerEnumCase lowers one case form: a bare symbol is EnumCaseBare, "(name
// value)" with a literal value is EnumCaseRawValued, and "(name (label
// Type) ...)" is EnumCaseAssociated.
func lowerEnumCase(f ast.SExpr) (ir.EnumCase, error) {
	if name, ok := symbolName(f); ok {
		return ir.EnumCase{Kind: ir.EnumCaseBare, Name: identName(name)}, nil
	}
	list, ok := f.Data.(*ast.SList)
	if !ok || len(list.Items) < 1 {
		return ir.EnumCase{}, shapeError(f, "case name or (name ...)", "malformed enum case")
	}
	name, ok := symbolName(list.Items[0])
	if !ok {
		return ir.EnumCase{}, shapeError(list.Items[0], "case name", "non-symbol")
	}
	if len(list.Items) == 1 {
		return ir.EnumCase{Kind: ir.EnumCaseBare, Name: identName(name)}, nil
	}
	if len(list.Items) == 2 {
		if _, isAssocPair := list.Items[1].Data.(*ast.SList); !isAssocPair {
			value := lowerQuotedDataAsPlainExpr(list.Items[1])
			return ir.EnumCase{Kind: ir.EnumCaseRawValued, Name: identName(name), RawValue: &value}, nil
		}
	}
	var params []ir.AssociatedParam
	for _, p := range list.Items[1:] {
		pair, ok := p.Data.(*ast.SList)
		if !ok || len(pair.Items) != 2 {
			return ir.EnumCase{}, shapeError(p, "(label Type)", "malformed associated value")
		}
		label, ok := symbolName(pair.Items[0])
		if !ok {
			return ir.EnumCase{}, shapeError(pair.Items[0], "associated value label", "non-symbol")
		}
		typeName, ok := symbolName(pair.Items[1])
		if !ok {
			return ir.EnumCase{}, shapeError(pair.Items[1], "associated value type", "non-symbol")
		}
		params = append(params, ir.AssociatedParam{Label: identName(label), Type: typeName})
	}
	return ir.EnumCase{Kind: ir.EnumCaseAssociated, Name: identName(name), Associated: params}, nil
}
