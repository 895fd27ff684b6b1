package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/analyzer"
	"github.com/blackwell-systems/cartrules/internal/output"
	"github.com/blackwell-systems/cartrules/internal/runs"
	"github.com/blackwell-systems/cartrules/internal/store"
)

var (
	mineTop    int
	mineOutput string
	mineSave   bool
	mineLevels bool

	mineCmd = &cobra.Command{
		Use:   "mine",
		Short: "Mine frequent itemsets and association rules",
		Long: `Run the Apriori search over a dataset and derive association rules.

An itemset is frequent when the fraction of transactions containing all of
its items reaches --min-support. Every split of a frequent itemset into a
non-empty antecedent and consequent becomes a rule, kept when its confidence
reaches --min-confidence.

Rules are ranked by confidence, then lift. Lift above 1 means the items are
bought together more often than chance (positive association), below 1 less
often (negative).

Thresholds not given on the command line come from config.yaml.`,
		Example: `  # Mine a stored dataset
  cartrules mine --dataset baskets --min-support 0.05 --min-confidence 0.4

  # Mine a file and archive the run
  cartrules mine --file orders.json --save

  # Print the full result as JSON
  cartrules mine --dataset baskets --output json > result.json`,
		Args: cobra.NoArgs,
		RunE: runMine,
	}
)

func init() {
	addSourceFlags(mineCmd)
	addThresholdFlags(mineCmd)
	mineCmd.Flags().IntVar(&mineTop, "top", 20, "rules and itemsets to show (0 for all)")
	mineCmd.Flags().StringVarP(&mineOutput, "output", "o", "table", "output format: table or json")
	mineCmd.Flags().BoolVar(&mineSave, "save", false, "archive the run")
	mineCmd.Flags().BoolVar(&mineLevels, "levels", false, "show per-level search statistics")

	RootCmd.AddCommand(mineCmd)
}

func runMine(cmd *cobra.Command, args []string) error {
	if mineOutput != "table" && mineOutput != "json" {
		return fmt.Errorf("invalid output format: %s (must be table or json)", mineOutput)
	}
	if mineTop < 0 {
		return fmt.Errorf("invalid top: %d (must not be negative)", mineTop)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	var rm *runs.Manager
	a := newAnalyzer(nil, logger)
	if needsStore() || mineSave {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		a = newAnalyzer(st, logger)
		if rm, err = openRuns(st, cfg, logger); err != nil {
			return err
		}
	}

	ds, err := a.Dataset(flagDataset, flagFile, flagInputFormat)
	if err != nil {
		return err
	}

	p := mineParams(cmd, cfg)
	levels := p.MaxLen
	if levels == 0 {
		levels = len(ds.Items())
	}
	bar := output.NewProgress(levels, "mining "+ds.Name)
	p.OnLevel = output.LevelProgress(bar)

	report, err := a.Analyze(cmd.Context(), ds, p)
	if err != nil {
		return err
	}
	bar.SetCurrent(levels)
	bar.Finish()

	archive := runs.NewArchive(report.Dataset, report.Result, report.Rules, p.MinConfidence, p.MinLift, p.MaxLen)
	var saved *store.Run
	if mineSave {
		if saved, err = rm.Save(archive); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if mineOutput == "json" {
		return runs.Encode(out, archive, runs.FormatJSON)
	}
	renderReport(out, report, mineTop, mineLevels)
	if saved != nil {
		fmt.Fprintf(out, "\n✓ Saved run %s (%s)\n", shortRunID(saved.ID), saved.RunPath)
	}
	return nil
}

// renderReport prints the itemset and rule tables of a mining report.
func renderReport(out io.Writer, report *analyzer.Report, top int, showLevels bool) {
	res := report.Result
	fmt.Fprintf(out, "Dataset %s: %d transactions, min support %.1f%%\n\n",
		report.Dataset, report.Transactions, res.MinSupport*100)

	if showLevels {
		fmt.Fprint(out, output.RenderLevelTable(res.Levels))
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Frequent itemsets (%d)\n", res.Len())
	fmt.Fprint(out, output.RenderItemsetTable(res.Itemsets, top))
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Association rules (%d)\n", len(report.Rules))
	if len(report.Rules) == 0 {
		fmt.Fprintln(out, "No rules met the thresholds. Try lowering --min-confidence or --min-support.")
		return
	}
	fmt.Fprint(out, output.RenderRuleTable(report.Rules, top))
	fmt.Fprintln(out, output.RenderAssociationSummary(report.Rules))
}
