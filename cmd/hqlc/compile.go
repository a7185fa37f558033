package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hql-lang/hqlc/internal/exitcode"
	"github.com/hql-lang/hqlc/pkg/api"
)

func newCompileCmd(flags *rootFlags) *cobra.Command {
	var outfile string

	cmd := &cobra.Command{
		Use:   "compile [entry.hql]",
		Short: "Compile an HQL entry point to ECMAScript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, flags, args[0], outfile)
		},
	}

	cmd.Flags().StringVarP(&outfile, "outfile", "o", "", "write output here instead of stdout")
	return cmd
}

func runCompile(cmd *cobra.Command, flags *rootFlags, entry, outfile string) error {
	abs, err := absEntryPoint(entry)
	if err != nil {
		return err
	}

	options, err := flags.toOptions(abs)
	if err != nil {
		return exitcode.Set(err, 2)
	}

	result := api.Compile(options)
	printMessages(os.Stderr, "warning", result.Warnings)

	if len(result.Errors) > 0 {
		printMessages(os.Stderr, "error", result.Errors)
		// 1 marks "the source has diagnostics"; 2 below marks a surrounding
		// I/O or flag failure, so the two failure modes are distinguishable
		// from a shell script's exit code alone.
		return exitcode.Set(fmt.Errorf("compilation failed: %d error(s)", len(result.Errors)), 1)
	}

	if outfile == "" {
		fmt.Fprint(cmd.OutOrStdout(), result.Code)
		return nil
	}
	if err := os.WriteFile(outfile, []byte(result.Code), 0644); err != nil {
		return exitcode.Set(fmt.Errorf("writing %s: %w", outfile, err), 2)
	}
	return nil
}
