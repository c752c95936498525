package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/chainlens"
	httpAdapter "github.com/aretw0/chainlens/pkg/adapters/http"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/observability"
	"github.com/aretw0/chainlens/pkg/ports"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// ServeOptions configures Serve.
type ServeOptions struct {
	Addr    string
	Version string
	Metrics bool
	Logger  *slog.Logger

	// DemoEvery, when positive, runs the demo chain on that interval so
	// /events and /metrics have traffic to show.
	DemoEvery time.Duration
	DemoAppID string
}

// Serve exposes store over HTTP until ctx is cancelled.
func Serve(ctx context.Context, w io.Writer, store ports.RecordStore, opts ServeOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		srvOpts = []httpAdapter.Option{
			httpAdapter.WithVersion(opts.Version),
			httpAdapter.WithLogger(logger),
		}
		hooks []domain.Hooks
	)
	if opts.Metrics {
		reg := prometheus.NewRegistry()
		m := observability.NewMetrics(reg)
		srvOpts = append(srvOpts, httpAdapter.WithMetrics(m.Handler()))
		hooks = append(hooks, m.Hooks())
	}
	api := httpAdapter.NewServer(store, srvOpts...)
	hooks = append(hooks, api.Hooks(), observability.LogHooks(logger))

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		printSystemMessage(w, "Starting chainlens server on %s", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	if opts.DemoEvery > 0 {
		app, err := NewDemoApp(DemoOptions{
			AppID:  opts.DemoAppID,
			Store:  store,
			Hooks:  hooks,
			Logger: logger,
		})
		if err != nil {
			_ = srv.Close()
			return err
		}
		go feedDemo(ctx, io.Discard, app, opts.DemoEvery, logger)
	}

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		printSystemMessage(w, "Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("close server: %w", err)
			}
		}
		printSystemMessage(w, "Server stopped gracefully")
		return nil
	}
}

func feedDemo(ctx context.Context, w io.Writer, app *chainlens.App, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	questions := []string{
		"  What does a record hold?  ",
		"Which calls were slow?",
		"Did any branch fail?",
	}
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := RunDemo(ctx, w, app, questions[i%len(questions)]); err != nil {
				logger.Error("demo run failed", "err", err)
			}
		}
	}
}
