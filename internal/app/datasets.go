package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/output"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List stored datasets",
	Args:  cobra.NoArgs,
	RunE:  runDatasets,
}

var datasetsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored dataset",
	Long: `Delete a dataset and its transactions from the database.

Saved runs mined from the dataset are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runDatasetsDelete,
}

func init() {
	datasetsCmd.AddCommand(datasetsDeleteCmd)
	RootCmd.AddCommand(datasetsCmd)
}

func runDatasets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListDatasets()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderDatasetTable(infos))
	return nil
}

func runDatasetsDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteDataset(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted dataset %s\n", args[0])
	return nil
}
