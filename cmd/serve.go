package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/perarneng/gmail2s3/pkg/api"
	"github.com/perarneng/gmail2s3/pkg/syncer"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gmail2s3 HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	if cfg.Sentry.URL != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.URL,
			Environment:      cfg.Sentry.Environment,
			TracesSampleRate: 1.0,
		}); err != nil {
			return fmt.Errorf("sentry init: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := os.MkdirAll(cfg.Gmail2S3.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(cfg, syncer.NewFactory(cfg, log), log)
	return server.Listen(ctx, cfg.Server.Addr)
}
