package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stevemurr/simple-record-server/config"
	"github.com/stevemurr/simple-record-server/handler"
	"github.com/stevemurr/simple-record-server/log"
	"github.com/stevemurr/simple-record-server/record"
	"github.com/stevemurr/simple-record-server/store"
)

func main() {
	var (
		configPath string
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a TOML configuration file")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Simple Record Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Environment: HOST, PORT, DATA_DIR, STORE_BACKEND, COLLECTION, STATIC_DIR, ALLOWED_ORIGINS, VERBOSE\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.SetVerbose(verbose || cfg.Verbose)

	s, err := store.New(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to create store (backend=%s): %v", cfg.StoreBackend, err)
	}

	if err := run(cfg, s); err != nil {
		s.Close()
		log.Fatalf("server error: %v", err)
	}
	if err := s.Close(); err != nil {
		log.Errorf("failed to close store: %v", err)
	}
}

// run serves until SIGINT/SIGTERM, then drains in-flight requests.
func run(cfg *config.Config, s store.Store) error {
	h := handler.New(record.NewService(s, cfg.Collection), handler.Options{
		StaticDir:      cfg.StaticDir,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Simple Record Server starting on %s (store=%s, collection=%s, data=%s)",
			srv.Addr, cfg.StoreBackend, cfg.Collection, cfg.DataDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
