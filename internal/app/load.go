package app

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/encoder"
	"github.com/blackwell-systems/cartrules/internal/output"
)

var (
	loadName   string
	loadFormat string

	loadCmd = &cobra.Command{
		Use:   "load <file>",
		Short: "Import a transaction file into the database",
		Long: `Read transactions from a file and store them as a named dataset.

Loading a dataset under an existing name replaces it. Files are checked
before they are stored: every transaction needs an identifier that no other
transaction uses and at least one item.

Supported formats:
  • csv       one basket per row: id,item,item,...
  • csv-long  one id,item pair per row
  • json      [{"id": 1, "items": ["a", "b"]}, ...]
  • yaml      a sequence of {id, items} mappings`,
		Example: `  # Import baskets.csv as dataset "baskets"
  cartrules load baskets.csv

  # Import id,item pairs under a different name
  cartrules load order_lines.csv --input-format csv-long --name orders`,
		Args: cobra.ExactArgs(1),
		RunE: runLoad,
	}
)

func init() {
	loadCmd.Flags().StringVarP(&loadName, "name", "n", "", "dataset name (default: file name without extension)")
	loadCmd.Flags().StringVar(&loadFormat, "input-format", "", "file format: csv, csv-long, json or yaml (default: from extension)")

	RootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	path := args[0]

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

	a := newAnalyzer(st, logger)
	ds, err := a.Dataset(loadName, path, loadFormat)
	if err != nil {
		return err
	}

	if _, err := encoder.Encode(ds); err != nil {
		return fmt.Errorf("cannot load %s: %w", path, err)
	}

	source, err := filepath.Abs(path)
	if err != nil {
		source = path
	}

	spinner := output.NewSpinner(fmt.Sprintf("Storing %s transactions...", humanize.Comma(int64(ds.Len()))))
	spinner.Start()
	if _, err := st.SaveDataset(ds, source); err != nil {
		spinner.Stop()
		return err
	}
	spinner.Stop()

	stats := ds.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Loaded dataset %s: %s transactions, %s distinct items\n",
		ds.Name, humanize.Comma(int64(stats.Transactions)), humanize.Comma(int64(stats.DistinctItems)))
	return nil
}
