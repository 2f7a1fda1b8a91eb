// Package pipeline drives text through chunking, synthesis, assembly
// and provenance recording.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vozlabs/voz-pipeline/internal/assemble"
	"github.com/vozlabs/voz-pipeline/internal/chunker"
	"github.com/vozlabs/voz-pipeline/internal/config"
	"github.com/vozlabs/voz-pipeline/internal/provenance"
	"github.com/vozlabs/voz-pipeline/internal/synth"
)

// Extension maps an audio format to its artifact file extension.
func Extension(format string) (string, error) {
	switch format {
	case "mp3":
		return ".mp3", nil
	case "ogg_vorbis":
		return ".ogg", nil
	case "pcm":
		return ".pcm", nil
	default:
		return "", fmt.Errorf("unsupported audio format %q", format)
	}
}

// Pipeline processes one request at a time: chunk the text, synthesize
// every chunk through the backend, assemble the artifact in chunk
// order, record provenance. Chunk synthesis may run on a bounded
// worker pool; results are placed by index, so assembly order never
// depends on completion order.
type Pipeline struct {
	cfg     config.PipelineConfig
	ext     string
	synth   synth.Synthesizer
	prov    *provenance.Log
	limiter *rate.Limiter
	logger  *slog.Logger

	tracer        trace.Tracer
	chunksOK      metric.Int64Counter
	chunkFailures metric.Int64Counter
	artifacts     metric.Int64Counter
	artifactBytes metric.Int64Counter
}

func New(cfg config.PipelineConfig, format string, synthesizer synth.Synthesizer, prov *provenance.Log, log *slog.Logger) (*Pipeline, error) {
	if cfg.MaxChunkChars <= 0 {
		return nil, chunker.ErrInvalidLimit
	}
	ext, err := Extension(format)
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	meter := otel.Meter("voz-pipeline")
	chunksOK, err := meter.Int64Counter("voz.pipeline.chunks_synthesized")
	if err != nil {
		return nil, err
	}
	chunkFailures, err := meter.Int64Counter("voz.pipeline.chunk_failures")
	if err != nil {
		return nil, err
	}
	artifacts, err := meter.Int64Counter("voz.pipeline.artifacts")
	if err != nil {
		return nil, err
	}
	artifactBytes, err := meter.Int64Counter("voz.pipeline.artifact_bytes")
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:           cfg,
		ext:           ext,
		synth:         synthesizer,
		prov:          prov,
		limiter:       limiter,
		logger:        log.With(slog.String("component", "pipeline")),
		tracer:        otel.Tracer("voz-pipeline"),
		chunksOK:      chunksOK,
		chunkFailures: chunkFailures,
		artifacts:     artifacts,
		artifactBytes: artifactBytes,
	}, nil
}

// Process synthesizes one request end to end and returns the artifact
// path. Any failure abandons the request: no partial artifact, no
// provenance record, staging space released.
func (p *Pipeline) Process(ctx context.Context, req synth.Request) (string, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("request.id", req.ID),
			attribute.String("request.speaker", req.Speaker),
		))
	defer span.End()

	chunks, err := chunker.Split(req.Text, p.cfg.MaxChunkChars)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("request %s has no synthesizable text", req.ID)
	}
	span.SetAttributes(attribute.Int("request.chunks", len(chunks)))

	store, err := assemble.NewStore("")
	if err != nil {
		return "", err
	}
	defer func() {
		if rerr := store.Release(); rerr != nil {
			p.logger.Warn("failed to release chunk store",
				slog.String("request_id", req.ID),
				slog.String("error", rerr.Error()))
		}
	}()

	if err := p.synthesizeAll(ctx, req, chunks, store); err != nil {
		return "", err
	}

	name := uuid.NewString() + "_" + req.Speaker + p.ext
	artifact := filepath.Join(p.cfg.OutputDir, name)
	if err := store.Assemble(artifact, len(chunks)); err != nil {
		return "", err
	}
	if err := p.prov.Append(artifact, req.Text); err != nil {
		return "", err
	}

	p.artifacts.Add(ctx, 1)
	if info, err := os.Stat(artifact); err == nil {
		p.artifactBytes.Add(ctx, info.Size())
	}
	p.logger.Info("artifact produced",
		slog.String("request_id", req.ID),
		slog.String("artifact", artifact),
		slog.Int("chunks", len(chunks)))
	return artifact, nil
}

func (p *Pipeline) synthesizeAll(parent context.Context, req synth.Request, chunks []string, store *assemble.Store) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(index int, err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = fmt.Errorf("chunk %d of request %s: %w", index, req.ID, err)
		}
		mu.Unlock()
		cancel()
	}

	sem := make(chan struct{}, p.cfg.Concurrency)
	for i, text := range chunks {
		wg.Add(1)
		go func(index int, text string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return
				}
			}
			data, err := p.synth.Synthesize(ctx, text, req.Speaker)
			if err != nil {
				p.chunkFailures.Add(ctx, 1)
				fail(index, err)
				return
			}
			if err := store.Put(index, data); err != nil {
				fail(index, err)
				return
			}
			p.chunksOK.Add(ctx, 1)
		}(i, text)
	}
	wg.Wait()

	// Goroutines that observed cancellation skipped their chunk without
	// reporting anything; surface the cancellation so a partially
	// populated store is never assembled as a success.
	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err == nil {
		if cerr := parent.Err(); cerr != nil {
			return cerr
		}
	}
	return err
}
