// Package printer implements the outbound Printer interface named in
// spec §6: print(program: IR) -> Text. Structurally it mirrors the
// teacher's internal/js_printer: a printer struct wrapping one output
// buffer, indentation tracked as a counter, and a type switch per IR
// node kind standing in for js_printer's switch over js_ast.E/S. It does
// not attempt js_printer's minification, source maps, or comment
// preservation — those concerns have no IR-level counterpart here — but
// keeps its naming and buffer-management style (print/printIndent/
// printNewline).
package printer

import (
	"strconv"
	"strings"

	"github.com/hql-lang/hqlc/internal/ir"
)

// Print renders a full program to ECMAScript text (§6). When the IR uses
// GetAndCall anywhere, the "get" runtime helper (see runtime.go) is
// prepended once at the top of the file — the teacher's internal/runtime
// package injects its helpers the same way, only when the feature that
// needs them is actually used. Every JsImportReference's underlying
// namespace import is hoisted above the rest of the body, since ES
// module imports are declarations, not expressions, and cannot appear
// nested where a JsImportReference's host list position places them.
func Print(prog *ir.Program) string {
	p := &printer{}
	if usesGetAndCall(prog.Body) {
		p.sb.WriteString(getRuntimeHelperSource)
	}
	for _, ref := range collectJsImportReferences(prog.Body) {
		p.print("import * as " + ref.ImporterName + "$ns from " + strconv.Quote(ref.Source) + ";")
		p.printNewline()
	}
	p.printStmts(prog.Body)
	return p.sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) print(text string) { p.sb.WriteString(text) }

func (p *printer) printIndent() {
	for i := 0; i < p.indent; i++ {
		p.sb.WriteString("  ")
	}
}

func (p *printer) printNewline() { p.sb.WriteByte('\n') }

// ---- statements ----

func (p *printer) printStmts(body []ir.Stmt) {
	for _, s := range body {
		p.printIndent()
		p.printStmt(s)
		p.printNewline()
	}
}

func (p *printer) printStmt(s ir.Stmt) {
	switch d := s.Data.(type) {
	case *ir.ExpressionStatement:
		// An object or function literal in statement-initial position is
		// ambiguous with a block or a declaration in ECMAScript grammar;
		// wrapping in parens forces the expression reading.
		ambiguous := false
		switch d.Expression.Data.(type) {
		case *ir.ObjectExpression, *ir.FunctionExpression:
			ambiguous = true
		}
		if ambiguous {
			p.print("(")
			p.printExpr(d.Expression)
			p.print(");")
		} else {
			p.printExpr(d.Expression)
			p.print(";")
		}
	case *ir.ReturnStatement:
		p.print("return")
		if d.Argument != nil {
			p.print(" ")
			p.printExpr(*d.Argument)
		}
		p.print(";")
	case *ir.IfStatement:
		p.printIfStatement(d)
	case *ir.BlockStatement:
		p.printBlock(d.Body)
	case *ir.VariableDeclaration:
		p.printVariableDeclaration(d)
		p.print(";")
	case *ir.FunctionDeclaration:
		p.print("function " + d.Name + "(")
		p.printParams(d.Params)
		p.print(") ")
		p.printBlock(d.Body)
	case *ir.FnFunctionDeclaration:
		p.printFnFunctionDeclaration(d)
	case *ir.FxFunctionDeclaration:
		p.printFxFunctionDeclaration(d)
	case *ir.ImportDeclaration:
		p.printImportDeclaration(d)
	case *ir.ExportNamedDeclaration:
		p.printExportNamedDeclaration(d)
	case *ir.ExportVariableDeclaration:
		p.print("export ")
		p.printVariableDeclaration(&d.Declaration)
		p.print(";")
	case *ir.ClassDeclaration:
		p.printClassDeclaration(d)
	case *ir.EnumDeclaration:
		p.printEnumDeclaration(d)
	case *ir.CommentBlock:
		for _, line := range strings.Split(d.Text, "\n") {
			p.print("// " + line)
			p.printNewline()
			p.printIndent()
		}
	case *ir.RawStatement:
		p.print(d.Text)
	default:
		panic("internal error: unhandled Stmt variant in printer")
	}
}

// printBlock prints "{ ... }" with a trailing newline-free close brace,
// letting the caller decide whether a newline follows.
func (p *printer) printBlock(body []ir.Stmt) {
	p.print("{")
	p.printNewline()
	p.indent++
	p.printStmts(body)
	p.indent--
	p.printIndent()
	p.print("}")
}

// printStmtAsBranch prints an if/else branch: a BlockStatement prints
// inline after the keyword, anything else is wrapped in a synthetic
// block so every branch has a brace-delimited body regardless of how the
// Lowerer shaped it.
func (p *printer) printStmtAsBranch(s ir.Stmt) {
	if block, ok := s.Data.(*ir.BlockStatement); ok {
		p.printBlock(block.Body)
		return
	}
	p.printBlock([]ir.Stmt{s})
}

func (p *printer) printIfStatement(d *ir.IfStatement) {
	p.print("if (")
	p.printExpr(d.Test)
	p.print(") ")
	p.printStmtAsBranch(d.Consequent)
	if d.Alternate == nil {
		return
	}
	p.print(" else ")
	if nested, ok := d.Alternate.Data.(*ir.IfStatement); ok {
		p.printIfStatement(nested)
		return
	}
	p.printStmtAsBranch(*d.Alternate)
}

func (p *printer) printVariableDeclaration(d *ir.VariableDeclaration) {
	p.print(d.Kind.String() + " ")
	for i, decl := range d.Decls {
		if i > 0 {
			p.print(", ")
		}
		p.print(decl.Name)
		if decl.Init != nil {
			p.print(" = ")
			p.printExpr(*decl.Init)
		}
	}
}

func (p *printer) printParams(params []ir.Param) {
	for i, param := range params {
		if i > 0 {
			p.print(", ")
		}
		if param.Rest {
			p.print("...")
		}
		p.print(param.Name)
		if param.Default != nil {
			p.print(" = ")
			p.printExpr(*param.Default)
		}
	}
}

func (p *printer) printFnFunctionDeclaration(d *ir.FnFunctionDeclaration) {
	p.print("function " + d.Name + "(")
	for i, param := range d.Params {
		if i > 0 {
			p.print(", ")
		}
		if param.Rest {
			p.print("...")
		}
		p.print(param.Name)
		if def, ok := d.Defaults[param.Name]; ok {
			p.print(" = ")
			p.printExpr(def)
		}
	}
	if d.RestParam != "" {
		if len(d.Params) > 0 {
			p.print(", ")
		}
		p.print("..." + d.RestParam)
	}
	p.print(") ")
	p.printBlock(d.Body)
}

// primitiveFxTypes are the scalar members of the lowerer's closed fx
// parameter type set (`Int`, `Double`, `String`, `Bool`) that never need
// the deep-copy prologue (§6): a JS number/string/boolean is already
// copied by value. `Any` and any enum name are deliberately absent — an
// `Any`-typed parameter could be holding an object at runtime, and an
// enum's associated-value cases can themselves carry object payloads —
// so both still get the defensive deep copy.
var primitiveFxTypes = map[string]bool{
	"Int": true, "Double": true, "String": true, "Bool": true,
}

// printFxFunctionDeclaration emits the §6 printer contract verbatim: a
// variadic receiver, then a prologue that (a) unpacks a single object
// argument whose keys match parameter names, (b) falls back to
// positional assignment, (c) deep-copies each object-typed parameter via
// JSON round-trip (§9 design notes: "a semantic requirement of fx call
// prologues, not an implementation choice").
func (p *printer) printFxFunctionDeclaration(d *ir.FxFunctionDeclaration) {
	p.print("function " + d.Name + "(...args) ")
	p.print("{")
	p.printNewline()
	p.indent++

	p.printIndent()
	p.print("var $opts = (args.length === 1 && args[0] !== null && typeof args[0] === \"object\" && !Array.isArray(args[0])) ? args[0] : null;")
	p.printNewline()

	for i, param := range d.Params {
		p.printIndent()
		p.print("var " + param.Name + " = $opts && (\"" + param.Name + "\" in $opts) ? $opts." + param.Name + " : (args[" + strconv.Itoa(i) + "] !== undefined ? args[" + strconv.Itoa(i) + "]")
		if def, ok := d.Defaults[param.Name]; ok {
			p.print(" : ")
			p.printExpr(def)
		} else {
			p.print(" : undefined")
		}
		p.print(");")
		p.printNewline()

		if !primitiveFxTypes[param.Type] {
			p.printIndent()
			p.print(param.Name + " = (" + param.Name + " !== null && typeof " + param.Name + " === \"object\") ? JSON.parse(JSON.stringify(" + param.Name + ")) : " + param.Name + ";")
			p.printNewline()
		}
	}

	p.printStmts(d.Body)
	p.indent--
	p.printIndent()
	p.print("}")
}

func (p *printer) printImportDeclaration(d *ir.ImportDeclaration) {
	p.print("import ")
	if len(d.Specifiers) == 1 && d.Specifiers[0].Imported == "*" {
		p.print("* as " + d.Specifiers[0].Local + " ")
	} else {
		p.print("{ ")
		for i, spec := range d.Specifiers {
			if i > 0 {
				p.print(", ")
			}
			if spec.Imported == spec.Local {
				p.print(spec.Local)
			} else {
				p.print(spec.Imported + " as " + spec.Local)
			}
		}
		p.print(" } ")
	}
	p.print("from " + strconv.Quote(d.Source) + ";")
}

func (p *printer) printExportNamedDeclaration(d *ir.ExportNamedDeclaration) {
	p.print("export { ")
	for i, spec := range d.Specifiers {
		if i > 0 {
			p.print(", ")
		}
		if spec.Local == spec.Exported {
			p.print(spec.Local)
		} else {
			p.print(spec.Local + " as " + spec.Exported)
		}
	}
	p.print(" };")
}

func (p *printer) printClassDeclaration(d *ir.ClassDeclaration) {
	p.print("class " + d.Name + " {")
	p.printNewline()
	p.indent++

	for _, field := range d.Fields {
		p.printIndent()
		p.print(field.Name)
		if field.Init != nil {
			p.print(" = ")
			p.printExpr(*field.Init)
		}
		p.print(";")
		p.printNewline()
	}

	if d.Constructor != nil {
		p.printIndent()
		p.print("constructor(")
		p.printParams(d.Constructor.Params)
		p.print(") ")
		p.printBlock(d.Constructor.Body)
		p.printNewline()
	}

	for _, method := range d.Methods {
		p.printIndent()
		p.print(method.Name + "(")
		for i, param := range method.Params {
			if i > 0 {
				p.print(", ")
			}
			if param.Rest {
				p.print("...")
			}
			p.print(param.Name)
			if def, ok := method.Defaults[param.Name]; ok {
				p.print(" = ")
				p.printExpr(def)
			}
		}
		p.print(") ")
		p.printBlock(method.Body)
		p.printNewline()
	}

	p.indent--
	p.printIndent()
	p.print("}")
}

// printEnumDeclaration renders an enum as a frozen plain object, the
// same representation a hand-written "poor man's enum" takes in
// ECMAScript (no native enum node exists to target): bare cases map to
// their name, raw-valued cases map to the raw value, and
// associated-value cases become factory functions that build a tagged
// object carrying their labeled arguments.
func (p *printer) printEnumDeclaration(d *ir.EnumDeclaration) {
	p.print("const " + d.Name + " = Object.freeze({")
	p.printNewline()
	p.indent++
	for _, kase := range d.Cases {
		p.printIndent()
		p.print(kase.Name + ": ")
		switch kase.Kind {
		case ir.EnumCaseBare:
			p.print(strconv.Quote(kase.Name))
		case ir.EnumCaseRawValued:
			p.printExpr(*kase.RawValue)
		case ir.EnumCaseAssociated:
			p.print("(")
			for i, assoc := range kase.Associated {
				if i > 0 {
					p.print(", ")
				}
				p.print(assoc.Label)
			}
			p.print(") => ({ case: " + strconv.Quote(kase.Name))
			for _, assoc := range kase.Associated {
				p.print(", " + assoc.Label + ": " + assoc.Label)
			}
			p.print(" })")
		}
		p.print(",")
		p.printNewline()
	}
	p.indent--
	p.printIndent()
	p.print("})")
}

// ---- expressions ----

// needsParensAsOperand reports compound expression kinds that must be
// wrapped in parentheses whenever they appear nested inside another
// expression, so the printer never has to reason about relative operator
// precedence between e.g. "+" and "?:" — it always parenthesizes the
// lower-precedence shapes instead. This costs a few redundant
// parentheses in the emitted text; it never costs correctness.
func needsParensAsOperand(e ir.Expr) bool {
	switch e.Data.(type) {
	case *ir.BinaryExpression, *ir.ConditionalExpression, *ir.AssignmentExpression,
		*ir.UnaryExpression, *ir.FunctionExpression:
		return true
	default:
		return false
	}
}

func (p *printer) printExprAtom(e ir.Expr) {
	if needsParensAsOperand(e) {
		p.print("(")
		p.printExpr(e)
		p.print(")")
	} else {
		p.printExpr(e)
	}
}

func (p *printer) printExpr(e ir.Expr) {
	switch d := e.Data.(type) {
	case *ir.StringLiteral:
		p.print(strconv.Quote(d.Value))
	case *ir.NumericLiteral:
		p.print(formatNumber(d.Value))
	case *ir.BooleanLiteral:
		p.print(strconv.FormatBool(d.Value))
	case *ir.NullLiteral:
		p.print("null")
	case *ir.Identifier:
		p.print(d.Name)
	case *ir.ArrayExpression:
		p.print("[")
		for i, el := range d.Elements {
			if i > 0 {
				p.print(", ")
			}
			p.printExpr(el)
		}
		p.print("]")
	case *ir.ObjectExpression:
		p.printObjectExpression(d)
	case *ir.MemberExpression:
		p.printMemberExpression(d)
	case *ir.CallExpression:
		p.printCallExpression(d)
	case *ir.NewExpression:
		p.print("new ")
		p.printExprAtom(d.Callee)
		p.print("(")
		p.printArgs(d.Args)
		p.print(")")
	case *ir.BinaryExpression:
		p.printExprAtom(d.Left)
		p.print(" " + d.Operator + " ")
		p.printExprAtom(d.Right)
	case *ir.UnaryExpression:
		if d.Prefix {
			p.print(d.Operator)
			if isWordOperator(d.Operator) {
				p.print(" ")
			}
			p.printExprAtom(d.Argument)
		} else {
			p.printExprAtom(d.Argument)
			p.print(d.Operator)
		}
	case *ir.ConditionalExpression:
		p.printExprAtom(d.Test)
		p.print(" ? ")
		p.printExprAtom(d.Consequent)
		p.print(" : ")
		p.printExprAtom(d.Alternate)
	case *ir.AssignmentExpression:
		p.printExpr(d.Target)
		p.print(" " + d.Operator + " ")
		p.printExpr(d.Value)
	case *ir.FunctionExpression:
		p.printFunctionExpression(d)
	case *ir.InteropIIFE:
		p.printInteropIIFE(d)
	case *ir.GetAndCall:
		p.printGetAndCall(d)
	case *ir.JsImportReference:
		p.printJsImportReference(d)
	case *ir.Raw:
		p.print(d.Text)
	default:
		panic("internal error: unhandled Expr variant in printer")
	}
}

func isWordOperator(op string) bool {
	switch op {
	case "typeof", "void", "delete":
		return true
	default:
		return false
	}
}

func (p *printer) printObjectExpression(d *ir.ObjectExpression) {
	p.print("{")
	for i, prop := range d.Properties {
		if i > 0 {
			p.print(",")
		}
		p.print(" ")
		if prop.Computed {
			p.print("[")
			p.printExpr(prop.Key)
			p.print("]")
		} else if ident, ok := prop.Key.Data.(*ir.Identifier); ok {
			p.print(ident.Name)
		} else {
			p.printExpr(prop.Key)
		}
		p.print(": ")
		p.printExpr(prop.Value)
	}
	if len(d.Properties) > 0 {
		p.print(" ")
	}
	p.print("}")
}

func (p *printer) printMemberExpression(d *ir.MemberExpression) {
	p.printExprAtom(d.Object)
	if d.Optional {
		p.print("?.")
	}
	if d.Computed {
		p.print("[")
		p.printExpr(d.Property)
		p.print("]")
		return
	}
	if !d.Optional {
		p.print(".")
	}
	p.printExpr(d.Property)
}

func (p *printer) printCallExpression(d *ir.CallExpression) {
	p.printExprAtom(d.Callee)
	if d.Optional {
		p.print("?.")
	}
	p.print("(")
	p.printArgs(d.Args)
	p.print(")")
}

func (p *printer) printArgs(args []ir.Expr) {
	for i, a := range args {
		if i > 0 {
			p.print(", ")
		}
		p.printExpr(a)
	}
}

func (p *printer) printFunctionExpression(d *ir.FunctionExpression) {
	if d.Arrow {
		p.print("(")
		p.printParams(d.Params)
		p.print(") => ")
		p.printBlock(d.Body)
		return
	}
	p.print("function" + nameSuffix(d.Name) + "(")
	p.printParams(d.Params)
	p.print(") ")
	p.printBlock(d.Body)
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return " " + name
}

// printInteropIIFE emits the §6-mandated shape for js-get-invoke: a
// self-invoking function that caches the receiver, reads the property
// once, and conditionally invokes it if it turns out to be callable.
func (p *printer) printInteropIIFE(d *ir.InteropIIFE) {
	p.print("(function ($o) { var $v = $o." + d.Property + "; return typeof $v === \"function\" ? $v.apply($o, [")
	p.printArgs(d.Args)
	p.print("]) : $v; })(")
	p.printExpr(d.Object)
	p.print(")")
}

// printGetAndCall emits the §6-mandated shape for method-call: a
// self-invoking function that looks the method up through the shared
// "get" runtime helper and conditionally invokes it with the receiver
// bound as "this".
func (p *printer) printGetAndCall(d *ir.GetAndCall) {
	p.print("(function ($r) { var $m = get($r, " + strconv.Quote(d.Method) + "); return typeof $m === \"function\" ? $m.apply($r, [")
	p.printArgs(d.Args)
	p.print("]) : $m; })(")
	p.printExpr(d.Receiver)
	p.print(")")
}

// printJsImportReference emits the §6-mandated shape for js-import: a
// namespace import (hoisted separately, see collectJsImportReferences)
// followed by a wrapper object copying every non-default export onto the
// module's default export, or an empty object if the module has none.
// Whether the source module actually has a default export is not known
// at compile time, so the emitted code checks at run time rather than
// branching on HasDefault (kept on the IR node for a future static
// source-module inspection pass, not consulted here).
func (p *printer) printJsImportReference(d *ir.JsImportReference) {
	p.print("(function ($ns) { var $def = Object.assign({}, $ns.default || {}); for (var $k in $ns) { if ($k !== \"default\") $def[$k] = $ns[$k]; } return $def; })(" + d.ImporterName + "$ns)")
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
