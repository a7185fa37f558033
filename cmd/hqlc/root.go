package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hql-lang/hqlc/internal/cli_helpers"
	"github.com/hql-lang/hqlc/pkg/api"
)

const version = "0.1.0"

// rootFlags holds the persistent flags shared by every subcommand, the
// same role the teacher's main.go local variables (heapFile, traceFile,
// ...) play before being threaded into cli.Run.
type rootFlags struct {
	macroDir          string
	concurrency       int
	expansionDepthCap int
	logLevel          string
	debug             bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "hqlc [entry.hql]",
		Short:         "Compile HQL source to ECMAScript",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.ExactArgs(1),
		// Invoking hqlc with a bare entry point is equivalent to "hqlc
		// compile entry.hql", matching the teacher's root command doubling
		// as its own default build invocation.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, flags, args[0], "")
		},
	}

	root.PersistentFlags().StringVar(&flags.macroDir, "macro-dir", "", "system macro directory searched before relative resolution")
	root.PersistentFlags().IntVar(&flags.concurrency, "concurrency", 1, "number of sibling dependency files to resolve in parallel")
	root.PersistentFlags().IntVar(&flags.expansionDepthCap, "expansion-depth-cap", 0, "macro fixed-point iteration cap (0 = spec default)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "info | warning | error | silent")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "emit a Note-level diagnostic for every non-fatal compiler decision")

	root.AddCommand(newCompileCmd(flags))
	root.AddCommand(newExpandOnlyCmd(flags))
	root.AddCommand(newWatchCmd(flags))
	root.AddCommand(newVersionCmd())

	cobra.OnInitialize(func() { loadDotEnv(flags) })

	return root
}

// loadDotEnv reads an optional ".hqlrc.env" from the current directory
// (§6 "Environment variables") before flags are otherwise finalized, so
// HQL_DEBUG set there has the same effect as setting it in the shell.
// godotenv.Load never overrides variables already present in the
// process environment, matching the usual "file is a default, not an
// override" convention for dotenv-style config.
func loadDotEnv(flags *rootFlags) {
	if _, err := os.Stat(".hqlrc.env"); err == nil {
		_ = godotenv.Load(".hqlrc.env")
	}
	if v := os.Getenv("HQL_DEBUG"); v != "" && v != "0" && strings.ToLower(v) != "false" {
		flags.debug = true
	}
}

func (f *rootFlags) toOptions(entryPoint string) (api.CompileOptions, error) {
	level, err := validateLogLevel(f.logLevel)
	if err != nil {
		return api.CompileOptions{}, err
	}
	return api.CompileOptions{
		EntryPoint:        entryPoint,
		SystemMacroDir:    f.macroDir,
		Debug:             f.debug,
		ExpansionDepthCap: f.expansionDepthCap,
		Concurrency:       f.concurrency,
		LogLevel:          level,
	}, nil
}

// validateLogLevel rejects an unrecognized "--log-level" value with the
// flag's full set of accepted spellings, the same ErrorWithNote shape the
// teacher's own parseLogLevel in pkg/cli/cli_impl.go reports invalid
// "--log-level=" values with.
func validateLogLevel(s string) (api.LogLevel, error) {
	switch strings.ToLower(s) {
	case "info", "":
		return api.LogLevelInfo, nil
	case "warning":
		return api.LogLevelWarning, nil
	case "error":
		return api.LogLevelError, nil
	case "silent":
		return api.LogLevelSilent, nil
	default:
		note := cli_helpers.MakeErrorWithNote(
			fmt.Sprintf("Invalid value %q in \"--log-level\"", s),
			`Valid values are "info", "warning", "error", or "silent".`,
		)
		return api.LogLevelInfo, fmt.Errorf("%s\nnote: %s", note.Text, note.Note)
	}
}

func absEntryPoint(entry string) (string, error) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return "", fmt.Errorf("resolving entry point: %w", err)
	}
	return abs, nil
}
