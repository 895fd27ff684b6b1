package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/output"
	"github.com/blackwell-systems/cartrules/internal/rules"
)

var (
	statsItem string

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show item frequencies for a dataset",
		Long: `Display a summary of a dataset and how often each item occurs.

Use --item to list the mined rules that mention one item, using the
threshold flags to control the search.`,
		Example: `  # Item frequencies of a stored dataset
  cartrules stats --dataset baskets

  # Rules involving one item
  cartrules stats --file baskets.csv --item 耳机 --min-support 0.1`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}
)

func init() {
	addSourceFlags(statsCmd)
	addThresholdFlags(statsCmd)
	statsCmd.Flags().StringVar(&statsItem, "item", "", "show rules involving this item")

	RootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	a := newAnalyzer(nil, logger)
	if needsStore() {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		a = newAnalyzer(st, logger)
	}

	ds, err := a.Dataset(flagDataset, flagFile, flagInputFormat)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dataset: %s\n", ds.Name)
	fmt.Fprint(out, output.RenderStats(ds.Stats(), ds.ItemCounts()))

	if statsItem == "" {
		return nil
	}

	if _, ok := ds.ItemCounts()[statsItem]; !ok {
		return fmt.Errorf("item %s does not occur in dataset %s", statsItem, ds.Name)
	}

	report, err := a.Analyze(cmd.Context(), ds, mineParams(cmd, cfg))
	if err != nil {
		return err
	}
	involving := rules.Involving(report.Rules, statsItem)

	fmt.Fprintf(out, "\nRules involving %s (%d)\n", statsItem, len(involving))
	fmt.Fprint(out, output.RenderRuleTable(involving, 0))
	return nil
}
