package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vozlabs/voz-pipeline/internal/bus"
	"github.com/vozlabs/voz-pipeline/internal/protocol"
	"github.com/vozlabs/voz-pipeline/internal/synth"
)

// Service is the bus front-end of the pipeline: requests arrive on
// the synthesize subject, artifacts (or failures) are reported on the
// result subject. Requests run one at a time; scheduling across
// independent runs lives outside this worker.
type Service struct {
	bus    *bus.Client
	pipe   *Pipeline
	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	run    sync.Mutex
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewService(parent context.Context, busClient *bus.Client, pipe *Pipeline, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:    busClient,
		pipe:   pipe,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "pipeline-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSynthesizeRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.SynthesizeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode synthesize request", slog.String("error", err.Error()))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run.Lock()
		defer s.run.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		artifact, err := s.pipe.Process(s.ctx, synth.Request{ID: req.ID, Speaker: req.Speaker, Text: req.Text})
		result := protocol.SynthesizeResult{ID: req.ID, Timestamp: time.Now().UTC()}
		if err != nil {
			s.logger.Error("request failed",
				slog.String("request_id", req.ID),
				slog.String("error", err.Error()))
			result.Error = err.Error()
		} else {
			result.Artifact = artifact
		}
		s.publishResult(result)
	}()
}

func (s *Service) publishResult(result protocol.SynthesizeResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("failed to marshal result", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectSynthesizeResult, data); err != nil {
		s.logger.Warn("failed to publish result", slog.String("error", err.Error()))
	}
}
