// Package runtime wires configuration into a running pipeline, either
// batch (request catalog) or worker (bus subscription).
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vozlabs/voz-pipeline/internal/auth"
	"github.com/vozlabs/voz-pipeline/internal/bus"
	"github.com/vozlabs/voz-pipeline/internal/catalog"
	"github.com/vozlabs/voz-pipeline/internal/config"
	"github.com/vozlabs/voz-pipeline/internal/pipeline"
	"github.com/vozlabs/voz-pipeline/internal/provenance"
	"github.com/vozlabs/voz-pipeline/internal/synth"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	telClose   func(context.Context) error
	ready      atomic.Bool
	wg         sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telClose = shutdownTelemetry

	r.startHTTP(metricsHandler)
	defer r.stopHTTP()

	if err := os.MkdirAll(r.cfg.Pipeline.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	prov := provenance.New(filepath.Join(r.cfg.Pipeline.OutputDir, r.cfg.Pipeline.ProvenanceFile))

	synthesizer, err := r.buildSynthesizer(ctx)
	if err != nil {
		return err
	}
	pipe, err := pipeline.New(r.cfg.Pipeline, r.cfg.Backend.Format, synthesizer, prov, r.logger)
	if err != nil {
		return err
	}

	r.ready.Store(true)
	if r.cfg.Bus.Enabled {
		return r.runWorker(ctx, pipe)
	}
	return r.runBatch(ctx, pipe)
}

func (r *Runtime) buildSynthesizer(ctx context.Context) (synth.Synthesizer, error) {
	switch r.cfg.Backend.Kind {
	case "polly":
		authenticator := auth.New(r.cfg.Backend.Profile, synth.AWSSession(r.cfg.Backend.Profile), auth.SSOLogin, r.logger)
		return synth.NewPollySynthesizer(ctx, r.cfg.Backend, authenticator, r.logger)
	case "http":
		session, err := auth.Static(r.cfg.Backend.SessionToken, r.logger).Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return synth.NewHTTPSynthesizer(r.cfg.Backend, session.(string), r.logger), nil
	case "mock":
		return synth.NewMock(nil), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", r.cfg.Backend.Kind)
	}
}

// runBatch processes the request catalog once. Per-request failures
// are logged and the batch continues; auth exhaustion aborts the run.
func (r *Runtime) runBatch(ctx context.Context, pipe *pipeline.Pipeline) error {
	requests, err := catalog.Load(r.cfg.Catalog.Path)
	if err != nil {
		return err
	}
	r.logger.Info("batch started",
		slog.Int("requests", len(requests)),
		slog.String("backend", r.cfg.Backend.Kind))

	failed := 0
	for _, req := range requests {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Info("processing request", slog.String("request_id", req.ID))
		if _, err := pipe.Process(ctx, req); err != nil {
			if errors.Is(err, auth.ErrExhausted) {
				return err
			}
			failed++
			r.logger.Error("request failed",
				slog.String("request_id", req.ID),
				slog.String("error", err.Error()))
		}
	}

	r.logger.Info("batch finished",
		slog.Int("requests", len(requests)),
		slog.Int("failed", failed))
	return nil
}

// runWorker serves bus requests until the context is cancelled.
func (r *Runtime) runWorker(ctx context.Context, pipe *pipeline.Pipeline) error {
	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return err
	}
	defer busClient.Close()

	svc := pipeline.NewService(ctx, busClient, pipe, r.logger)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("start pipeline service: %w", err)
	}
	defer svc.Close()

	r.logger.Info("worker started")
	<-ctx.Done()
	r.logger.Info("worker stopping")
	return nil
}

func (r *Runtime) startHTTP(metricsHandler http.Handler) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
	r.logger.Info("http server started", slog.String("addr", addr))
}

func (r *Runtime) stopHTTP() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.telClose != nil {
		if err := r.telClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
