package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
	verbose    bool

	// RootCmd is the root command for cartrules
	RootCmd = &cobra.Command{
		Use:   "cartrules",
		Short: "Shopping-basket association rules with Apriori",
		Long: `cartrules mines frequent itemsets from transaction data and derives
association rules scored by support, confidence, lift, leverage and conviction.

Quick Start:
  1. cartrules quickstart             # mine the built-in demo baskets
  2. cartrules load baskets.csv       # import your own transactions
  3. cartrules mine --dataset baskets --min-support 0.05 --save
  4. cartrules explain 手机壳 --then 数据线 --dataset baskets

Transactions are read from CSV (one basket per row, or --input-format
csv-long for id,item pairs), JSON or YAML. Defaults for thresholds and
paths come from ~/.config/cartrules/config.yaml; item aliases from
~/.config/cartrules/aliases.

Examples:
  # Mine a file directly without importing it
  cartrules mine --file orders.csv --min-support 0.02 --min-confidence 0.3

  # Suggest additions for a basket from a saved run
  cartrules recommend --run 3f2a --basket "phone case,charger"

  # Re-mine whenever a file changes
  cartrules watch orders.csv

  # Serve the HTTP API
  cartrules serve --addr 127.0.0.1:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "cartrules: association rules for shopping baskets")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'cartrules quickstart' to see it on demo data.")
			fmt.Fprintln(out, "Run 'cartrules --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.cartrules/cartrules.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/cartrules/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
