package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/output"
	"github.com/blackwell-systems/cartrules/internal/runs"
	"github.com/blackwell-systems/cartrules/internal/watcher"
)

var (
	watchTop      int
	watchSave     bool
	watchDebounce time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-mine a transaction file whenever it changes",
		Long: `Mine a transaction file now and again every time it is written.

The watcher runs in the foreground until interrupted with Ctrl+C. Bursts of
writes are coalesced: mining starts once the file has been quiet for the
--debounce period. A file that fails to parse is reported and the watcher
keeps waiting for the next change.`,
		Example: `  # Re-mine an export as it is refreshed
  cartrules watch orders.csv --min-support 0.05

  # Archive every run
  cartrules watch orders.json --save`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
)

func init() {
	addThresholdFlags(watchCmd)
	watchCmd.Flags().StringVar(&flagInputFormat, "input-format", "", "file format: csv, csv-long, json or yaml (default: from extension)")
	watchCmd.Flags().IntVar(&watchTop, "top", 10, "rules to show per run (0 for all)")
	watchCmd.Flags().BoolVar(&watchSave, "save", false, "archive every run")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before re-mining")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	a := newAnalyzer(nil, logger)
	var rm *runs.Manager
	if watchSave {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if rm, err = openRuns(st, cfg, logger); err != nil {
			return err
		}
	}

	p := mineParams(cmd, cfg)
	out := cmd.OutOrStdout()

	handler := func(ctx context.Context, path string) error {
		ds, err := a.Dataset("", path, flagInputFormat)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %v\n", err)
			return err
		}
		report, err := a.Analyze(ctx, ds, p)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %v\n", err)
			return err
		}

		fmt.Fprintf(out, "── %s ──\n", time.Now().Format("15:04:05"))
		renderReport(out, report, watchTop, false)

		if rm != nil {
			run, err := rm.Save(runs.NewArchive(report.Dataset, report.Result, report.Rules, p.MinConfidence, p.MinLift, p.MaxLen))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Saved run %s\n", shortRunID(run.ID))
		}
		fmt.Fprintln(out)
		return nil
	}

	w, err := watcher.New(args[0], handler, logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.SetDebounce(watchDebounce)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)...\n\n", w.Path())
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	<-ctx.Done()

	spinner := output.NewSpinner("Stopping watcher...")
	spinner.Start()
	if err := w.Stop(); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	spinner.StopWithMessage("✓ Watcher stopped")
	return nil
}
