package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/haplo/internal/model"
	"github.com/ppiankov/haplo/internal/pipeline"
	"github.com/ppiankov/haplo/internal/server"
)

var shutdownTimeout time.Duration

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve haplogroup classification over HTTP",
	Long: `Serve starts an HTTP API:

  GET  /service-info           service description
  POST /haplogroups/classify   classify a genome

The classify body is {"subject", "build", "genome": {rsid: {genotype,
chromosome, position}}} or a WeGene payload {"inputs": {"data", "format"}}.
Requests are rate limited per client address.

Example:
  haplo serve --addr :8080
  HAPLO_SERVER_REQUESTS_PER_SECOND=20 haplo serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveBindings = []flagBinding{
	{"addr", []string{"server.addr"}},
	{"rps", []string{"server.requests_per_second"}},
	{"burst", []string{"server.burst"}},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addClassificationFlags(serveCmd)

	def := model.DefaultConfig()
	serveCmd.Flags().String("addr", def.Server.Addr, "listen address")
	serveCmd.Flags().Float64("rps", def.Server.RequestsPerSecond, "requests per second per client (0 disables limiting)")
	serveCmd.Flags().Int("burst", def.Server.Burst, "request burst per client")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := bindFlags(viper.GetViper(), cmd, serveBindings); err != nil {
		return err
	}
	cfg, err := classificationConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(slog.LevelInfo)

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	srv := server.New(p, cfg, Version, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
