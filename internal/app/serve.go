package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cartrules/internal/server"
)

var (
	serveAddr    string
	serveOrigins []string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the mining HTTP API",
		Long: `Start an HTTP server exposing mining over JSON.

Endpoints:
  GET  /healthz           liveness check
  POST /v1/mine           mine inline transactions or a stored dataset
  POST /v1/explain        metrics of a single rule
  GET  /v1/datasets       stored datasets
  GET  /v1/runs           saved runs
  GET  /v1/runs/{id}      one saved run, by ID or unique prefix

Threshold flags set the defaults for requests that omit them. The server
stops gracefully on Ctrl+C.`,
		Example: `  # Listen locally
  cartrules serve

  # Allow a browser front end on another port
  cartrules serve --addr :8080 --cors-origin http://localhost:3000`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	addThresholdFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr, "listen address")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	rm, err := openRuns(st, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(newAnalyzer(st, logger), st, rm, server.Options{
		AllowedOrigins: serveOrigins,
		Defaults:       mineParams(cmd, cfg),
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (press Ctrl+C to stop)\n", serveAddr)
	if err := srv.ListenAndServe(ctx, serveAddr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
	return nil
}
