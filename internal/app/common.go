package app

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/cartrules/internal/analyzer"
	"github.com/blackwell-systems/cartrules/internal/config"
	"github.com/blackwell-systems/cartrules/internal/logging"
	"github.com/blackwell-systems/cartrules/internal/runs"
	"github.com/blackwell-systems/cartrules/internal/store"
)

// Threshold flags shared by the commands that mine.
var (
	flagMinSupport    float64
	flagMinConfidence float64
	flagMinLift       float64
	flagMaxLen        int
	flagWorkers       int
)

// Dataset source flags.
var (
	flagDataset     string
	flagFile        string
	flagInputFormat string
)

func addThresholdFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&flagMinSupport, "min-support", config.DefaultMinSupport, "minimum itemset support, in (0, 1]")
	cmd.Flags().Float64Var(&flagMinConfidence, "min-confidence", config.DefaultMinConfidence, "minimum rule confidence, in (0, 1]")
	cmd.Flags().Float64Var(&flagMinLift, "min-lift", 0, "drop rules with lift below this (0 keeps all)")
	cmd.Flags().IntVar(&flagMaxLen, "max-len", 0, "largest itemset size to search (0 for no limit)")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "goroutines counting support (0 for one per CPU)")
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagDataset, "dataset", "d", "", "stored dataset name")
	cmd.Flags().StringVarP(&flagFile, "file", "f", "", "read transactions from a file instead")
	cmd.Flags().StringVar(&flagInputFormat, "input-format", "", "file format: csv, csv-long, json or yaml (default: from extension)")
	cmd.MarkFlagsMutuallyExclusive("dataset", "file")
}

// mineParams merges config defaults with the flags set on cmd.
func mineParams(cmd *cobra.Command, cfg *config.Config) analyzer.Params {
	p := analyzer.Params{
		MinSupport:    cfg.MinSupport,
		MinConfidence: cfg.MinConfidence,
		MinLift:       cfg.MinLift,
		MaxLen:        cfg.MaxLen,
		Workers:       cfg.Workers,
	}
	flags := cmd.Flags()
	if flags.Changed("min-support") {
		p.MinSupport = flagMinSupport
	}
	if flags.Changed("min-confidence") {
		p.MinConfidence = flagMinConfidence
	}
	if flags.Changed("min-lift") {
		p.MinLift = flagMinLift
	}
	if flags.Changed("max-len") {
		p.MaxLen = flagMaxLen
	}
	if flags.Changed("workers") {
		p.Workers = flagWorkers
	}
	return p
}

// getDataDir returns ~/.cartrules, creating it if needed.
func getDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".cartrules")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cartrules directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the database path: the --db flag, then the config file,
// then ~/.cartrules/cartrules.db.
func getDBPath(cfg *config.Config) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if cfg != nil && cfg.DB != "" {
		return cfg.DB, nil
	}

	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cartrules.db"), nil
}

// getRunDir returns the directory run archives are written to.
func getRunDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.RunDir != "" {
		return cfg.RunDir, nil
	}

	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs"), nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Default(), nil
		}
		path = p
	}
	return config.Load(path)
}

func newLogger() *zap.Logger {
	logger, err := logging.New(verbose)
	if err != nil {
		return logging.Nop()
	}
	return logger
}

// openStore opens the database and makes sure the schema exists.
func openStore(cfg *config.Config) (*store.Store, error) {
	path, err := getDBPath(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return st, nil
}

// openRuns returns a run manager over st.
func openRuns(st *store.Store, cfg *config.Config, logger *zap.Logger) (*runs.Manager, error) {
	dir, err := getRunDir(cfg)
	if err != nil {
		return nil, err
	}
	return runs.New(st, dir, logger), nil
}

// newAnalyzer returns an analyzer with the user's item aliases applied.
func newAnalyzer(st *store.Store, logger *zap.Logger) *analyzer.Analyzer {
	a := analyzer.New(st, logger)

	dir, err := config.Dir()
	if err != nil {
		return a
	}
	aliases, err := config.LoadAliases(dir)
	if err != nil {
		logger.Warn("ignoring aliases file", zap.Error(err))
		return a
	}
	a.SetAliases(aliases)
	return a
}

// needsStore reports whether a command reading from the source flags has
// to open the database.
func needsStore() bool {
	return flagDataset != "" && flagFile == ""
}

func formatConviction(v float64) string {
	if math.IsInf(v, 1) {
		return "∞ (the rule never fails)"
	}
	return fmt.Sprintf("%.4f", v)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
