package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/analyzer"
	"github.com/blackwell-systems/cartrules/internal/output"
)

var (
	explainThen string

	explainCmd = &cobra.Command{
		Use:   "explain <antecedent> --then <consequent>",
		Short: "Show the metrics of one rule",
		Long: `Compute support, confidence, lift, leverage and conviction for a single
rule directly from the transactions, whatever thresholds a mining run would
apply, and explain what they mean.

Both sides are comma-separated item lists and must not share items.`,
		Example: `  # How strongly does a phone case predict a cable?
  cartrules explain 手机壳 --then 数据线 --dataset demo

  # Two items on the left
  cartrules explain "手机壳,充电宝" --then 数据线 --file baskets.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runExplain,
	}
)

func init() {
	addSourceFlags(explainCmd)
	explainCmd.Flags().StringVar(&explainThen, "then", "", "consequent items, comma-separated")
	explainCmd.MarkFlagRequired("then") //nolint:errcheck

	RootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
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

	r, err := a.Explain(ds, analyzer.ParseItems(args[0]), analyzer.ParseItems(explainThen))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderInterpretation(r))
	fmt.Fprintf(out, "  leverage:   %+.4f\n", r.Leverage)
	fmt.Fprintf(out, "  conviction: %s\n", formatConviction(r.Conviction))
	fmt.Fprintln(out)
	return nil
}
