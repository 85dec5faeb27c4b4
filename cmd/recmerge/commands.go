package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"recmerge/internal/extracthtml"
	"recmerge/internal/migrate"
	"recmerge/internal/report"
)

// rangeArgs is cobra.RangeArgs reported as a usage error.
func rangeArgs(min, max int) cobra.PositionalArgs {
	check := cobra.RangeArgs(min, max)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}

func (a *app) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare [legacy] [canonical]",
		Short: "Report records missing from or extra in the canonical file; writes nothing",
		Args:  rangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			legacy, canonical := a.paths(args)

			rep, err := a.tool(ctx, true).Compare(ctx, legacy, canonical)
			if rerr := a.render(rep); rerr != nil && err == nil {
				err = rerr
			}
			return err
		},
	}
}

func (a *app) mergeCmd() *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "merge [legacy] [canonical]",
		Short: "Insert missing records under their region sections, after a backup",
		Args:  rangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			legacy, canonical := a.paths(args)

			var confirm migrate.ConfirmFunc
			if !assumeYes {
				confirm = a.promptConfirm(canonical)
			}
			rep, err := a.tool(ctx, true).Merge(ctx, legacy, canonical, confirm)
			if rerr := a.render(rep); rerr != nil && err == nil {
				err = rerr
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Merge without asking for confirmation")
	return cmd
}

// promptConfirm lists the missing records on stderr and reads a y/N
// answer from stdin. Anything but y or yes, including EOF, declines.
func (a *app) promptConfirm(canonical string) migrate.ConfirmFunc {
	return func(_ context.Context, rep report.Report) (bool, error) {
		fmt.Fprintf(a.stderr, "%d records missing from %s:\n", len(rep.Missing), canonical)
		for _, m := range rep.Missing {
			fmt.Fprintf(a.stderr, "  - %s\n", m)
		}
		fmt.Fprintf(a.stderr, "Back up %s and merge them? [y/N]: ", canonical)

		line, err := bufio.NewReader(a.stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

func (a *app) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <title>...",
		Short: "Print legacy records by title in canonical style, ready to paste",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef(`usage: recmerge extract "Event Name 1" "Event Name 2"`)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			legacy, canonical := a.paths(nil)

			sel, err := a.tool(ctx, false).ExtractByTitle(ctx, legacy, canonical, args)
			if err != nil {
				return err
			}
			for _, f := range sel.Found {
				fmt.Fprintf(a.stdout, "// %s\n%s,\n\n", f.Title, f.Text)
			}
			for _, t := range sel.NotFound {
				fmt.Fprintf(a.stderr, "could not find record: %s\n", t)
			}
			if len(sel.NotFound) > 0 {
				return fmt.Errorf("%d of %d titles not found", len(sel.NotFound), len(args))
			}
			return nil
		},
	}
}

func (a *app) extractAllCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "extract-all [legacy]",
		Short: "Write the legacy record array to a file for manual review",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			legacy, _ := a.paths(args)

			n, err := a.tool(ctx, false).ExtractAll(ctx, legacy, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Extracted %d records to: %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "extracted-records.js", "Output file")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	var (
		selector string
		textOnly bool
	)
	cmd := &cobra.Command{
		Use:   "inspect --selector <css> [legacy]",
		Short: "Print the elements a CSS selector matches in the legacy page, to build an html layout",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(selector) == "" {
				return usagef("--selector is required")
			}
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			legacy, _ := a.paths(args)

			html, err := a.tool(ctx, false).LoadDocument(ctx, legacy)
			if err != nil {
				return err
			}
			n, err := extracthtml.PrintMatches(a.stdout, html, selector, textOnly)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "%d matches for %q\n", n, selector)
			return nil
		},
	}
	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector to print matches for")
	cmd.Flags().BoolVar(&textOnly, "text", false, "Print collapsed text instead of outer HTML")
	return cmd
}
