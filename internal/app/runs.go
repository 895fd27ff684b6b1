package app

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/output"
	"github.com/blackwell-systems/cartrules/internal/runs"
	"github.com/blackwell-systems/cartrules/internal/store"
)

var (
	runsShowTop     int
	runsExportFmt   string
	runsExportOut   string
	runsPruneDays   int
	runsPruneDryRun bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved mining runs",
	Long: `List runs archived with 'cartrules mine --save', newest first.

Each run is kept as a JSON file under ~/.cartrules/runs and as rows in the
database. Subcommands accept a full run ID or any unique prefix.`,
	Args: cobra.NoArgs,
	RunE: runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the itemsets and rules of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a saved run as JSON or msgpack",
	Example: `  # JSON to stdout
  cartrules runs export 3f2a91c4

  # Compact binary archive
  cartrules runs export 3f2a91c4 --format msgpack --out run.msgpack`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsExport,
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete saved runs older than the retention period",
	Long: `Delete runs older than --days, both the archive file and the database
rows. The default retention comes from retention_days in config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runRunsPrune,
}

func init() {
	runsShowCmd.Flags().IntVar(&runsShowTop, "top", 20, "rules and itemsets to show (0 for all)")
	runsExportCmd.Flags().StringVar(&runsExportFmt, "format", runs.FormatJSON, "export format: json or msgpack")
	runsExportCmd.Flags().StringVarP(&runsExportOut, "out", "o", "", "write to this file instead of stdout")
	runsPruneCmd.Flags().IntVar(&runsPruneDays, "days", 0, "retention in days (default: retention_days from config)")
	runsPruneCmd.Flags().BoolVar(&runsPruneDryRun, "dry-run", false, "list the runs that would be deleted")

	runsCmd.AddCommand(runsShowCmd, runsExportCmd, runsPruneCmd)
	RootCmd.AddCommand(runsCmd)
}

// withRuns opens the database and run manager for the duration of fn.
func withRuns(fn func(rm *runs.Manager, retention time.Duration) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rm, err := openRuns(st, cfg, logger)
	if err != nil {
		return err
	}
	return fn(rm, time.Duration(cfg.RetentionDays)*24*time.Hour)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	return withRuns(func(rm *runs.Manager, _ time.Duration) error {
		list, err := rm.List()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderRunTable(list))
		return nil
	})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	return withRuns(func(rm *runs.Manager, _ time.Duration) error {
		a, err := rm.Load(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s\n", a.ID)
		fmt.Fprintf(out, "  dataset:        %s (%d transactions)\n", a.Dataset, a.Transactions)
		fmt.Fprintf(out, "  created:        %s\n", a.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "  min support:    %.1f%%\n", a.MinSupport*100)
		fmt.Fprintf(out, "  min confidence: %.1f%%\n", a.MinConfidence*100)
		if a.MinLift > 0 {
			fmt.Fprintf(out, "  min lift:       %.3f\n", a.MinLift)
		}
		fmt.Fprintln(out)

		fmt.Fprintf(out, "Frequent itemsets (%d)\n", len(a.Itemsets))
		fmt.Fprint(out, output.RenderItemsetTable(a.Itemsets, runsShowTop))
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Association rules (%d)\n", len(a.Rules))
		fmt.Fprint(out, output.RenderRuleTable(a.Rules, runsShowTop))
		return nil
	})
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	return withRuns(func(rm *runs.Manager, _ time.Duration) error {
		if runsExportOut == "" {
			return rm.Export(args[0], cmd.OutOrStdout(), runsExportFmt)
		}

		f, err := os.Create(runsExportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", runsExportOut, err)
		}
		if err := rm.Export(args[0], f, runsExportFmt); err != nil {
			f.Close()
			os.Remove(runsExportOut)
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", runsExportOut, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported run to %s\n", runsExportOut)
		return nil
	})
}

func runRunsPrune(cmd *cobra.Command, args []string) error {
	if runsPruneDays < 0 {
		return fmt.Errorf("invalid days: %d (must not be negative)", runsPruneDays)
	}

	return withRuns(func(rm *runs.Manager, retention time.Duration) error {
		if runsPruneDays > 0 {
			retention = time.Duration(runsPruneDays) * 24 * time.Hour
		}
		if retention <= 0 {
			retention = runs.DefaultRetention
		}

		out := cmd.OutOrStdout()
		if runsPruneDryRun {
			list, err := rm.List()
			if err != nil {
				return err
			}
			cutoff := time.Now().Add(-retention)
			var old []*store.Run
			for _, r := range list {
				if r.CreatedAt.Before(cutoff) {
					old = append(old, r)
				}
			}
			if len(old) == 0 {
				fmt.Fprintln(out, "No runs older than the retention period.")
				return nil
			}
			fmt.Fprintf(out, "Would delete %d runs:\n", len(old))
			fmt.Fprint(out, output.RenderRunTable(old))
			return nil
		}

		n, err := rm.CleanupOldRuns(retention)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Deleted %d runs older than %d days\n", n, int(retention.Hours()/24))
		return nil
	})
}
