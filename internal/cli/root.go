// Package cli implements ledgerctl, the operator tool for a local SQLite
// ledger.
package cli

import (
	"fmt"

	"github.com/Harshitk-cp/veritas/internal/buildconfig"
	"github.com/Harshitk-cp/veritas/internal/config"
	"github.com/Harshitk-cp/veritas/internal/service"
	"github.com/Harshitk-cp/veritas/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	dbPath  string
	format  string
	verbose bool
}

// env is what every subcommand works against. Close releases the database.
type env struct {
	db     *store.SQLiteStore
	ledger *service.LedgerService
	facts  *service.FactService
	out    *printer
}

func (e *env) Close() {
	_ = e.db.Close()
}

func (o *options) open(cmd *cobra.Command) (*env, error) {
	if o.format != "json" && o.format != "text" {
		return nil, fmt.Errorf("unknown format %q (valid options: text, json)", o.format)
	}
	path := o.dbPath
	if path == "" {
		path = config.SQLitePath()
	}
	db, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	logger := zap.NewNop()
	if o.verbose {
		logger, _ = zap.NewDevelopment()
	}
	ledger := service.NewLedgerService(db.Claims(), db.Dependencies(), db.Checkpoints(), logger)
	return &env{
		db:     db,
		ledger: ledger,
		facts:  service.NewFactService(db.Facts(), ledger, nil, logger),
		out:    newPrinter(cmd.OutOrStdout(), o.format == "json"),
	}, nil
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect and administer a veritas knowledge ledger",
		Long:          "ledgerctl reads and changes the claims, dependencies, checkpoints and facts of a SQLite-backed ledger.",
		Version:       buildconfig.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load()
		},
	}

	root.PersistentFlags().StringVarP(&o.dbPath, "db", "d", "", "Database path (default: $SQLITE_PATH or veritas.db)")
	root.PersistentFlags().StringVarP(&o.format, "format", "f", "text", "Output format: text or json")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Log service activity to stderr")

	root.AddCommand(newClaimsCmd(o), newInvalidateCmd(o), newCheckpointsCmd(o), newFactsCmd(o))
	return root
}

// Execute runs ledgerctl and reports failures in colour on stderr.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		printError(root.ErrOrStderr(), err)
		return 1
	}
	return 0
}

// withEnv opens the ledger around one command run.
func withEnv(o *options, fn func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := o.open(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, args, e)
	}
}
