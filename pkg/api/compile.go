package api

import (
	"path/filepath"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/config"
	"github.com/hql-lang/hqlc/internal/diag"
	"github.com/hql-lang/hqlc/internal/env"
	"github.com/hql-lang/hqlc/internal/logger"
	"github.com/hql-lang/hqlc/internal/lower"
	"github.com/hql-lang/hqlc/internal/macro"
	"github.com/hql-lang/hqlc/internal/resolver"
	"github.com/hql-lang/hqlc/pkg/parser"
	"github.com/hql-lang/hqlc/pkg/printer"
)

// parserAdapter satisfies resolver.Parser with pkg/parser's free function.
// pkg/parser.Parse takes *logger.Source (it mutates nothing but is sized
// for a lexer that holds a pointer into it); resolver.Parser was declared
// against a value receiver to keep internal/resolver's test doubles
// trivial to construct. The mismatch is bridged here rather than in
// either package, since neither package should know about the other's
// calling convention.
type parserAdapter struct{}

func (parserAdapter) Parse(source logger.Source) ([]ast.SExpr, error) {
	return parser.Parse(&source)
}

func validateLogLevel(value LogLevel) logger.LogLevel {
	switch value {
	case LogLevelInfo:
		return logger.LevelInfo
	case LogLevelWarning:
		return logger.LevelWarning
	case LogLevelError:
		return logger.LevelError
	case LogLevelSilent:
		return logger.LevelSilent
	default:
		panic("invalid log level")
	}
}

func compileImpl(options CompileOptions) CompileResult {
	absPath, err := filepath.Abs(options.EntryPoint)
	if err != nil {
		return CompileResult{Errors: []Message{{Text: "invalid entry point: " + err.Error()}}}
	}

	cfg := config.Options{
		EntryPoint:        absPath,
		SystemMacroDir:    options.SystemMacroDir,
		Debug:             options.Debug,
		ExpansionDepthCap: options.ExpansionDepthCap,
		Concurrency:       options.Concurrency,
		LogLevel:          validateLogLevel(options.LogLevel),
	}.WithDefaults()

	log := logger.NewDeferLog()
	r := &resolver.Resolver{
		Env:     env.New(),
		Parser:  parserAdapter{},
		Expand:  macro.NewExpander(),
		Options: cfg,
		Log:     log,
	}

	forms, err := r.Resolve(absPath)
	if err != nil {
		return CompileResult{Errors: []Message{messageFromError(err)}}
	}

	ctx := lower.NewContext()
	for name := range r.Env.ModuleMacros(absPath) {
		ctx.KnownMacros[name] = true
	}

	prog, multi := ctx.LowerProgram(forms)
	var warnings []Message
	if multi != nil {
		if multi.Fatal() {
			return CompileResult{Errors: messagesFromMulti(multi)}
		}
		warnings = messagesFromMulti(multi)
	}

	code := printer.Print(prog)
	return CompileResult{Code: code, Warnings: warnings}
}

// messageFromError renders err's full diagnostic text, including kind,
// phase, and shape/path detail. diag.Error carries no structured
// line/column fields of its own (pkg/parser folds those into its message
// text at the point a byte offset is still available; by the time an
// error reaches here, only the offending SExpr or path survives), so
// Location stays nil rather than fabricate a position.
func messageFromError(err error) Message {
	de := diag.AsDiagError(err)
	if de == nil {
		return Message{Text: err.Error()}
	}
	return Message{Text: de.Error()}
}

func messagesFromMulti(multi *diag.MultiError) []Message {
	out := make([]Message, 0, len(multi.Errors))
	for _, e := range multi.Errors {
		out = append(out, Message{Text: e.Error()})
	}
	return out
}
