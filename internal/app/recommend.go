package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/analyzer"
	"github.com/blackwell-systems/cartrules/internal/output"
	"github.com/blackwell-systems/cartrules/internal/rules"
)

var (
	recommendBasket string
	recommendRun    string
	recommendLimit  int

	recommendCmd = &cobra.Command{
		Use:   "recommend",
		Short: "Suggest items to add to a basket",
		Long: `Suggest items for a basket from association rules.

A rule applies when every item of its antecedent is already in the basket.
Each item it predicts that is not yet in the basket is suggested, credited to
the strongest applicable rule.

Rules come from a saved run (--run) or are mined on the spot from a dataset
with the usual threshold flags.`,
		Example: `  # Use a saved run
  cartrules recommend --run 3f2a91c4 --basket 手机壳

  # Mine a dataset first
  cartrules recommend --dataset demo --basket "手机壳,充电宝" --min-confidence 0.3`,
		Args: cobra.NoArgs,
		RunE: runRecommend,
	}
)

func init() {
	addSourceFlags(recommendCmd)
	addThresholdFlags(recommendCmd)
	recommendCmd.Flags().StringVarP(&recommendBasket, "basket", "b", "", "items already in the basket, comma-separated")
	recommendCmd.Flags().StringVar(&recommendRun, "run", "", "saved run ID or prefix to take rules from")
	recommendCmd.Flags().IntVar(&recommendLimit, "limit", 5, "maximum suggestions (0 for all)")
	recommendCmd.MarkFlagRequired("basket") //nolint:errcheck

	RootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	basket := analyzer.ParseItems(recommendBasket)
	if len(basket) == 0 {
		return fmt.Errorf("basket is empty")
	}
	if recommendLimit < 0 {
		return fmt.Errorf("invalid limit: %d (must not be negative)", recommendLimit)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	a := newAnalyzer(nil, logger)
	var rs []rules.Rule

	if recommendRun != "" || needsStore() {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		a = newAnalyzer(st, logger)

		if recommendRun != "" {
			rm, err := openRuns(st, cfg, logger)
			if err != nil {
				return err
			}
			archive, err := rm.Load(recommendRun)
			if err != nil {
				return err
			}
			rs = archive.Rules
		}
	}

	if recommendRun == "" {
		ds, err := a.Dataset(flagDataset, flagFile, flagInputFormat)
		if err != nil {
			return err
		}
		report, err := a.Analyze(cmd.Context(), ds, mineParams(cmd, cfg))
		if err != nil {
			return err
		}
		rs = report.Rules
	}

	recs := a.Recommend(rs, basket, recommendLimit)
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No rule applies to this basket.")
		return nil
	}

	fmt.Fprint(out, output.RenderRecommendationTable(recs))
	return nil
}
