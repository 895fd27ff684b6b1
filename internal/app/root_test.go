package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/cartrules/internal/config"
	"github.com/blackwell-systems/cartrules/internal/dataset"
)

// isolate points HOME and the config directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	return home
}

// resetFlags restores every flag to its default so commands can be run
// repeatedly in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil) //nolint:errcheck
		} else {
			f.Value.Set(f.DefValue) //nolint:errcheck
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command with args and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCmd)

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	defer func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	}()

	err := RootCmd.Execute()
	return out.String(), err
}

// writeDemoCSV writes the demo baskets as a wide CSV file.
func writeDemoCSV(t *testing.T, dir string) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("id,items\n")
	for _, txn := range dataset.Demo().Transactions {
		sb.WriteString(txn.ID + "," + strings.Join(txn.Items, ",") + "\n")
	}
	path := filepath.Join(dir, "baskets.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "cartrules" {
		t.Errorf("expected Use to be 'cartrules', got '%s'", RootCmd.Use)
	}
	if RootCmd.Short == "" || RootCmd.Long == "" {
		t.Error("expected Short and Long descriptions to be set")
	}
	if !RootCmd.SilenceUsage || !RootCmd.SilenceErrors {
		t.Error("expected SilenceUsage and SilenceErrors to be true")
	}
	if RootCmd.SuggestionsMinimumDistance != 2 {
		t.Errorf("SuggestionsMinimumDistance = %d, want 2", RootCmd.SuggestionsMinimumDistance)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	expected := []string{"load", "datasets", "mine", "explain", "recommend", "stats", "runs", "watch", "serve", "status", "quickstart"}

	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, name := range expected {
		if !found[name] {
			t.Errorf("expected command '%s' to be registered", name)
		}
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"db", "config", "verbose"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
}

func TestRootCmd_BareInvocation(t *testing.T) {
	isolate(t)
	out, err := runCLI(t)
	if err != nil {
		t.Fatalf("bare invocation returned error: %v", err)
	}
	if !strings.Contains(out, "quickstart") {
		t.Errorf("expected bare output to mention quickstart, got: %s", out)
	}
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("--help returned error: %v", err)
	}
	if !strings.Contains(out, "Usage:") || !strings.Contains(out, "Quick Start") {
		t.Errorf("unexpected help output: %s", out)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	isolate(t)
	_, err := runCLI(t, "blorp")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected unknown command error, got: %v", err)
	}
}

func TestGetDBPath(t *testing.T) {
	home := isolate(t)

	oldDBPath := dbPath
	defer func() { dbPath = oldDBPath }()

	tests := []struct {
		name   string
		flag   string
		config string
		want   string
	}{
		{"default path", "", "", filepath.Join(home, ".cartrules", "cartrules.db")},
		{"config path", "", "/tmp/from-config.db", "/tmp/from-config.db"},
		{"flag wins", "/tmp/flag.db", "/tmp/from-config.db", "/tmp/flag.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath = tt.flag
			cfg := config.Default()
			cfg.DB = tt.config

			got, err := getDBPath(cfg)
			if err != nil {
				t.Fatalf("getDBPath() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("getDBPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetRunDir(t *testing.T) {
	home := isolate(t)

	dir, err := getRunDir(config.Default())
	if err != nil {
		t.Fatalf("getRunDir() error: %v", err)
	}
	if want := filepath.Join(home, ".cartrules", "runs"); dir != want {
		t.Errorf("getRunDir() = %q, want %q", dir, want)
	}

	cfg := config.Default()
	cfg.RunDir = "/srv/runs"
	if dir, _ := getRunDir(cfg); dir != "/srv/runs" {
		t.Errorf("getRunDir() = %q, want /srv/runs", dir)
	}
}

func TestLoadConfig_FlagPath(t *testing.T) {
	home := isolate(t)

	path := filepath.Join(home, "custom.yaml")
	if err := os.WriteFile(path, []byte("min_support: 0.3\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	old := configPath
	configPath = path
	defer func() { configPath = old }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.MinSupport != 0.3 {
		t.Errorf("MinSupport = %v, want 0.3", cfg.MinSupport)
	}
}

func TestNewAnalyzer_AppliesAliases(t *testing.T) {
	home := isolate(t)

	dir := filepath.Join(home, ".config", "cartrules")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "aliases"), []byte("cable=数据线\n"), 0644); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(home, "b.csv")
	if err := os.WriteFile(path, []byte("1,cable,手机壳\n2,数据线\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a := newAnalyzer(nil, newLogger())
	ds, err := a.Dataset("", path, "")
	if err != nil {
		t.Fatalf("Dataset() error: %v", err)
	}
	if got := ds.ItemCounts()["数据线"]; got != 2 {
		t.Errorf("数据线 count = %d, want 2 after aliasing", got)
	}
}
