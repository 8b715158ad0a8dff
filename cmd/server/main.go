// Command server runs the turn-orchestrator HTTP API: the turn endpoint,
// conversation read/export/autosave endpoints, project file management,
// lexical search, and the view-preview endpoint (spec §6).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"turn-orchestrator/internal/api"
	"turn-orchestrator/internal/config"
	"turn-orchestrator/internal/filestore"
	"turn-orchestrator/internal/indexer"
	"turn-orchestrator/internal/logging"
	"turn-orchestrator/internal/orchestrator"
	"turn-orchestrator/internal/reliability"
	"turn-orchestrator/internal/search"
	"turn-orchestrator/internal/store"
	"turn-orchestrator/internal/transcript"
	"turn-orchestrator/pkg/provider"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address, overrides config server.host:server.port")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("loading configuration: %v\n", err)
		return
	}

	log := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, *addr); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server exited with error", "error", err.Error())
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger, addrOverride string) error {
	s, err := store.Open(ctx, store.Config{
		Path:        cfg.Store.Path,
		BusyTimeout: cfg.Store.BusyTimeout,
		JournalMode: cfg.Store.JournalMode,
		SyncMode:    cfg.Store.SyncMode,
	}, log.WithComponent("store"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	files, err := filestore.New(cfg.Store.BlobDir)
	if err != nil {
		return fmt.Errorf("opening file blob store: %w", err)
	}

	breakers := reliability.NewCircuitBreakerManager()
	registry, err := provider.NewRegistry(cfg, breakers)
	if err != nil {
		return fmt.Errorf("building provider registry: %w", err)
	}

	idx := indexer.New(s, files, cfg.Chunking.LineWindow, log.WithComponent("indexer"))
	searcher := search.NewFromStore(s, cfg.Search.MaxLimit)
	writer := transcript.NewWriter(s, cfg.Transcripts.Dir, cfg.Transcripts.DefaultFormat)
	orch := orchestrator.New(s, registry, cfg, writer, log.WithComponent("orchestrator"))

	router := api.NewRouter(s, orch, searcher, files, idx, writer, cfg, log.WithComponent("api"))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if addrOverride != "" {
		addr = addrOverride
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("turn-orchestrator listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return <-serveErr
	case err := <-serveErr:
		return err
	}
}
