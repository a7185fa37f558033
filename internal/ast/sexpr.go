// Package ast is the S-expression data model that flows from the
// external Parser through the Syntax Transformer, Import Resolver, and
// Macro Expander before reaching the Lowerer. The shape mirrors the
// teacher's js_ast.Expr/E tagged-interface pattern: a thin wrapper struct
// carrying source location plus a sum-type payload.
package ast

import "github.com/hql-lang/hqlc/internal/logger"

// SExpr is a node in the S-expression tree. Loc is the byte offset of the
// form's opening character in its source file, used only for diagnostics.
type SExpr struct {
	Data SData
	Loc  logger.Loc
}

// SData is never called; its purpose is to encode a closed sum type in
// Go's type system, exactly as the teacher's "E interface{ isExpr() }"
// does for ECMAScript expressions.
type SData interface{ isSExpr() }

func (*SLiteral) isSExpr() {}
func (*SSymbol) isSExpr()  {}
func (*SList) isSExpr()    {}

// LiteralKind distinguishes the four literal shapes named in §3: null,
// boolean, integer/float, string.
type LiteralKind uint8

const (
	LiteralNull LiteralKind = iota
	LiteralBool
	LiteralInt
	LiteralFloat
	LiteralString
)

type SLiteral struct {
	Kind   LiteralKind
	Bool   bool
	Int    int64
	Float  float64
	String string
}

// SSymbol is an identifier. Case is preserved verbatim; the "-" to "_"
// rewrite happens only during lowering, never at this layer, so earlier
// phases (macro hygiene in particular) see the symbol exactly as written.
type SSymbol struct {
	Name string
}

// IsJSEscape reports the "js/" sigil that escapes to the host namespace.
func (s *SSymbol) IsJSEscape() bool {
	return len(s.Name) >= 3 && s.Name[:3] == "js/"
}

// IsNamedArgLabel reports a trailing ":" marking a named-argument key.
func (s *SSymbol) IsNamedArgLabel() bool {
	return len(s.Name) > 1 && s.Name[len(s.Name)-1] == ':'
}

// IsPlaceholder reports the reserved "_" symbol, usable only in call sites.
func (s *SSymbol) IsPlaceholder() bool {
	return s.Name == "_"
}

// HasDotAccess reports an embedded "." that is not the "js/" escape, used
// for method-access sugar (§3 invariants, §4.1 dot-notation rewrite).
func (s *SSymbol) HasDotAccess() bool {
	if s.IsJSEscape() {
		return false
	}
	for i := 0; i < len(s.Name); i++ {
		if s.Name[i] == '.' {
			return true
		}
	}
	return false
}

// SList is an ordered sequence of SExprs. An empty list denotes the empty
// array literal (§3).
type SList struct {
	Items []SExpr
}

// Head returns the list's first element's symbol name, or "" if the list
// is empty or does not start with a symbol. Used pervasively by the
// dispatch logic in the syntax transformer and lowerer.
func Head(s SExpr) (string, bool) {
	list, ok := s.Data.(*SList)
	if !ok || len(list.Items) == 0 {
		return "", false
	}
	sym, ok := list.Items[0].Data.(*SSymbol)
	if !ok {
		return "", false
	}
	return sym.Name, true
}

// IsEmptyList reports whether s is exactly "()".
func IsEmptyList(s SExpr) bool {
	list, ok := s.Data.(*SList)
	return ok && len(list.Items) == 0
}

// Sym is a constructor convenience used throughout the transformer and
// tests.
func Sym(name string) SExpr { return SExpr{Data: &SSymbol{Name: name}} }

// ListOf is a constructor convenience for building canonical forms.
func ListOf(items ...SExpr) SExpr { return SExpr{Data: &SList{Items: items}} }

func Str(v string) SExpr   { return SExpr{Data: &SLiteral{Kind: LiteralString, String: v}} }
func Int(v int64) SExpr    { return SExpr{Data: &SLiteral{Kind: LiteralInt, Int: v}} }
func Float(v float64) SExpr { return SExpr{Data: &SLiteral{Kind: LiteralFloat, Float: v}} }
func Bool(v bool) SExpr    { return SExpr{Data: &SLiteral{Kind: LiteralBool, Bool: v}} }
func Null() SExpr          { return SExpr{Data: &SLiteral{Kind: LiteralNull}} }

// NormalizeDash implements the "-" to "_" symbol rewrite that §3 says is
// applied "only during lowering", never earlier. Kept here, next to the
// symbol type it rewrites, so every lowering call site shares one
// definition of the rule.
func NormalizeDash(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '-' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}

// Equal performs a structural comparison, ignoring Loc, for idempotence
// property tests (spec §8 property 1).
func Equal(a, b SExpr) bool {
	switch av := a.Data.(type) {
	case *SLiteral:
		bv, ok := b.Data.(*SLiteral)
		return ok && *av == *bv
	case *SSymbol:
		bv, ok := b.Data.(*SSymbol)
		return ok && av.Name == bv.Name
	case *SList:
		bv, ok := b.Data.(*SList)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
