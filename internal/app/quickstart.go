package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/analyzer"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/output"
)

// quickstartInterpretations is how many top rules quickstart explains.
const quickstartInterpretations = 3

var quickstartCmd = &cobra.Command{
	Use:   "quickstart",
	Short: "Mine the built-in demo baskets",
	Long: `Mine ten phone-accessory baskets with support and confidence thresholds
of 10% and walk through the results.

Steps performed:
  1. Show the demo transactions
  2. List the frequent itemsets
  3. List the association rules and their lift classes
  4. Explain the three strongest rules in plain language

Nothing is written to disk.`,
	Args: cobra.NoArgs,
	RunE: runQuickstart,
}

func init() {
	RootCmd.AddCommand(quickstartCmd)
}

func runQuickstart(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ds := dataset.Demo()

	// ── Step 1: Transactions ──────────────────────────────────────────────────
	fmt.Fprintf(out, "Step 1/4: Demo transactions (%d baskets)\n", ds.Len())
	for _, txn := range ds.Transactions {
		fmt.Fprintf(out, "  %3s  %v\n", txn.ID, txn.Items)
	}
	fmt.Fprintln(out)

	a := analyzer.New(nil, newLogger())
	report, err := a.Analyze(cmd.Context(), ds, analyzer.Params{
		MinSupport:    0.1,
		MinConfidence: 0.1,
	})
	if err != nil {
		return fmt.Errorf("demo analysis failed: %w", err)
	}

	// ── Step 2: Itemsets ──────────────────────────────────────────────────────
	fmt.Fprintf(out, "Step 2/4: Frequent itemsets with support ≥ 10%% (%d)\n", report.Result.Len())
	fmt.Fprint(out, output.RenderItemsetTable(report.Result.Itemsets, 0))
	fmt.Fprintln(out)

	// ── Step 3: Rules ─────────────────────────────────────────────────────────
	fmt.Fprintf(out, "Step 3/4: Association rules with confidence ≥ 10%% (%d)\n", len(report.Rules))
	fmt.Fprint(out, output.RenderRuleTable(report.Rules, 0))
	fmt.Fprintln(out, output.RenderAssociationSummary(report.Rules))
	fmt.Fprintln(out)

	// ── Step 4: Interpretation ────────────────────────────────────────────────
	top := report.Rules
	if len(top) > quickstartInterpretations {
		top = top[:quickstartInterpretations]
	}
	fmt.Fprintf(out, "Step 4/4: What the top %d rules mean\n", len(top))
	for _, r := range top {
		fmt.Fprint(out, output.RenderInterpretation(r))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  cartrules load baskets.csv                   # import your own data")
	fmt.Fprintln(out, "  cartrules mine --dataset baskets --save      # mine and archive a run")
	fmt.Fprintln(out, "  cartrules explain 手机壳 --then 数据线 -f baskets.csv")
	return nil
}
