// Command recmerge compares the records of a legacy page against a
// canonical data file and merges the missing ones into the right region
// sections of the canonical file.
//
// Usage:
//
//	recmerge compare ["Event Hunter V0.1.html"] [data.js]
//	recmerge merge [--yes] [legacy] [canonical]
//	recmerge extract "Event Name 1" "Event Name 2"
//	recmerge extract-all [--out extracted-records.js]
//	recmerge inspect --selector ".company-name" [--text] [legacy]
//
// Settings come from flags, RECMERGE_* environment variables and an
// optional --config file (YAML, JSON or TOML).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recmerge/internal/config"
	_ "recmerge/internal/ledger/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// usageError marks errors that exit with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

// run is split out from main so the command can be tested in-process.
//
// It returns a Unix-style exit code:
//   - 0 for success, including "nothing to do"
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		v:      config.New(),
		log:    zap.NewNop(),
	}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "recmerge: %v\n", err)

	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return 2
	}
	return 1
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recmerge",
		Short:         "Compare and merge record arrays between a legacy page and a canonical data file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return usagef("missing command")
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "Config file path (optional)")
	pf.StringVar(&a.format, "format", "text", "Report format: text|json|yaml")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")
	pf.String("ledger-kind", "", "Audit ledger backend: sqlite|postgres|mssql (empty disables)")
	pf.String("ledger-dsn", "", "Audit ledger DSN")
	pf.String("metrics-backend", "", "Metrics backend: nop|datadog")
	pf.StringSlice("metrics-tags", nil, "Extra metric tags, e.g. env:prod,team:data")
	_ = a.v.BindPFlag("ledger.kind", pf.Lookup("ledger-kind"))
	_ = a.v.BindPFlag("ledger.dsn", pf.Lookup("ledger-dsn"))
	_ = a.v.BindPFlag("metrics.backend", pf.Lookup("metrics-backend"))
	_ = a.v.BindPFlag("metrics.tags", pf.Lookup("metrics-tags"))

	root.AddCommand(
		a.compareCmd(),
		a.mergeCmd(),
		a.extractCmd(),
		a.extractAllCmd(),
		a.inspectCmd(),
	)
	return root
}
