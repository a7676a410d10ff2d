package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evidencemed/evidence-gateway/internal/cache"
	"github.com/evidencemed/evidence-gateway/internal/conditions"
	"github.com/evidencemed/evidence-gateway/internal/evidence"
	"github.com/evidencemed/evidence-gateway/internal/logging"
	"github.com/evidencemed/evidence-gateway/internal/pubmed"
	"github.com/evidencemed/evidence-gateway/internal/server"
	"github.com/evidencemed/evidence-gateway/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP search API",
	Long: `Serve starts the HTTP server exposing POST /api/pubmed/search and
GET /healthz. Expired cache rows are pruned in the background while the
server runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadGatewayConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	log, err := logging.New(cfg.Server.Mode)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	svc, store, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	router := server.NewRouter(cfg.Server, svc, log)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cache.PruneInterval > 0 {
		go pruneLoop(ctx, store, cfg.Cache.PruneInterval, log)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.Server.Addr, "mode", cfg.Server.Mode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
	}
	return nil
}

// buildService wires the condition mapper, the E-utilities client and the
// SQLite cache into the search service.
func buildService(cfg types.GatewayConfig, log *zap.SugaredLogger) (*evidence.Service, *cache.Store, error) {
	mapper, err := loadMapper(cfg.Search)
	if err != nil {
		return nil, nil, fmt.Errorf("loading condition table: %w", err)
	}

	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	client := pubmed.NewClient(cfg.Upstream, &http.Client{Timeout: cfg.Upstream.Timeout})
	svc := evidence.NewService(mapper, client, store, log, cfg.Search)
	return svc, store, nil
}

func loadMapper(cfg types.SearchConfig) (*conditions.Mapper, error) {
	if cfg.ConditionsFile != "" {
		return conditions.LoadMapper(cfg.ConditionsFile)
	}
	return conditions.DefaultMapper()
}

func pruneLoop(ctx context.Context, store *cache.Store, interval time.Duration, log *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PruneExpired(ctx)
			if err != nil {
				log.Warnw("cache prune failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debugw("pruned expired cache rows", "rows", n)
			}
		}
	}
}
