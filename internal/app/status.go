package app

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/config"
	"github.com/blackwell-systems/cartrules/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where cartrules keeps its data and what is stored",
	Long: `Display the database and config locations, the effective default
thresholds, and how many datasets and runs are stored.`,
	Example: `  # Check status
  cartrules status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := getDBPath(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	const label = "%-16s %s\n"

	cfgFile := configPath
	if cfgFile == "" {
		cfgFile, _ = config.DefaultPath()
	}
	if _, err := os.Stat(cfgFile); err != nil {
		cfgFile += " (not found, using defaults)"
	}
	fmt.Fprintf(out, label, "Config:", cfgFile)
	fmt.Fprintf(out, label, "Min support:", fmt.Sprintf("%.1f%%", cfg.MinSupport*100))
	fmt.Fprintf(out, label, "Min confidence:", fmt.Sprintf("%.1f%%", cfg.MinConfidence*100))

	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(out, label, "Database:", path+" (not created yet)")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Run 'cartrules load <file>' to import transactions.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat database: %w", err)
	}
	fmt.Fprintf(out, label, "Database:", fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(fi.Size()))))

	st, err := store.New(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	datasets, err := st.ListDatasets()
	if err != nil {
		return err
	}
	list, err := st.ListRuns()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, label, "Datasets:", humanize.Comma(int64(len(datasets))))
	fmt.Fprintf(out, label, "Saved runs:", humanize.Comma(int64(len(list))))
	if len(list) > 0 {
		last := list[0]
		fmt.Fprintf(out, label, "Last run:", fmt.Sprintf("%s on %s, %s", shortRunID(last.ID), last.Dataset, humanize.Time(last.CreatedAt)))
	}
	return nil
}
