package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/api"
	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/worker"
)

// serveCmd runs the HTTP job API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assessment job API server",
	Long: `Start the HTTP server exposing the pipeline as asynchronous jobs:

  POST /run        {"registry": "verra", "id": "1566"}
  GET  /jobs/{id}  job status and results
  GET  /health     liveness probe`,
	RunE: serve,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, downloader, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	pool := worker.NewPool(cfg.HTTP.Workers, cfg.HTTP.Workers*4, log.Named("worker"))
	pool.Start()
	defer pool.Shutdown()

	server := api.NewServer(cfg, p, downloader, pool, log.Named("api"))
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("job API listening", zap.String("addr", cfg.HTTP.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
