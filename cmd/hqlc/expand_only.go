package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/config"
	"github.com/hql-lang/hqlc/internal/diag"
	"github.com/hql-lang/hqlc/internal/env"
	"github.com/hql-lang/hqlc/internal/exitcode"
	"github.com/hql-lang/hqlc/internal/logger"
	"github.com/hql-lang/hqlc/internal/macro"
	"github.com/hql-lang/hqlc/internal/resolver"
	"github.com/hql-lang/hqlc/pkg/parser"
)

// expandOnlyParser is the same value/pointer bridge pkg/api.parserAdapter
// provides; duplicated here rather than exported from pkg/api, since
// "expand-only" deliberately stops short of pkg/api.Compile's full
// pipeline and has no other reason to import it.
type expandOnlyParser struct{}

func (expandOnlyParser) Parse(source logger.Source) ([]ast.SExpr, error) {
	return parser.Parse(&source)
}

func newExpandOnlyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "expand-only [entry.hql]",
		Short: "Resolve imports and expand macros without lowering or printing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := absEntryPoint(args[0])
			if err != nil {
				return err
			}
			if _, err := validateLogLevel(flags.logLevel); err != nil {
				return exitcode.Set(err, 2)
			}

			cfg := config.Options{
				EntryPoint:        abs,
				SystemMacroDir:    flags.macroDir,
				Debug:             flags.debug,
				ExpansionDepthCap: flags.expansionDepthCap,
				Concurrency:       flags.concurrency,
			}.WithDefaults()

			r := &resolver.Resolver{
				Env:     env.New(),
				Parser:  expandOnlyParser{},
				Expand:  macro.NewExpander(),
				Options: cfg,
				Log:     logger.NewDeferLog(),
			}

			forms, err := r.Resolve(abs)
			if err != nil {
				if de := diag.AsDiagError(err); de != nil {
					fmt.Fprintln(os.Stderr, de.Error())
				} else {
					fmt.Fprintln(os.Stderr, err)
				}
				return exitcode.Set(fmt.Errorf("expansion failed"), 1)
			}

			for _, f := range forms {
				fmt.Fprintln(cmd.OutOrStdout(), sexprString(f))
			}
			return nil
		},
	}
}

// sexprString renders an expanded form back to HQL surface syntax, for
// "expand-only" output and debugging macro expansion. It is the inverse
// of pkg/parser's reader, kept here rather than as a method on ast.SExpr
// since internal/ast is a pure data package with no rendering concerns
// of its own.
func sexprString(s ast.SExpr) string {
	switch d := s.Data.(type) {
	case *ast.SLiteral:
		switch d.Kind {
		case ast.LiteralNull:
			return "null"
		case ast.LiteralBool:
			return strconv.FormatBool(d.Bool)
		case ast.LiteralInt:
			return strconv.FormatInt(d.Int, 10)
		case ast.LiteralFloat:
			return strconv.FormatFloat(d.Float, 'g', -1, 64)
		case ast.LiteralString:
			return strconv.Quote(d.String)
		default:
			return "?"
		}
	case *ast.SSymbol:
		return d.Name
	case *ast.SList:
		parts := make([]string, len(d.Items))
		for i, item := range d.Items {
			parts[i] = sexprString(item)
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return "?"
	}
}
