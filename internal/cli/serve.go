package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/evalia/internal/pipeline"
	"github.com/ppiankov/evalia/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve evaluations and history over HTTP",
	Long: `Serve starts a JSON HTTP API:
  POST /api/evaluate                 evaluate a claim (JSON or multipart with "image")
  GET  /api/history?limit=N          newest memory entries
  GET  /api/history/:id              one entry (a unique id prefix is accepted)
  GET  /api/history/:id/report.pdf   PDF report of an entry
  GET  /api/history/:id/seal.png     seal image of an entry

Example:
  evalia serve --addr 127.0.0.1:8501`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	srv := server.New(pipeline.New(cfg, provider, logger), st, server.Options{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		LogoPath:       cfg.Report.LogoPath,
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Evalia listening on http://%s\n", cfg.Server.Addr)
	return srv.Run(ctx)
}
