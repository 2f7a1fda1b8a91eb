package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/vozlabs/voz-pipeline/internal/auth"
	"github.com/vozlabs/voz-pipeline/internal/config"
)

// AWSSession builds and validates an SDK session for a shared-config
// profile. Credential resolution is forced eagerly so an expired SSO
// token fails here, inside the authenticator's retry budget, instead
// of on the first synthesis call.
func AWSSession(profile string) auth.BuildFunc {
	return func(ctx context.Context) (auth.Session, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithSharedConfigProfile(profile))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
			return nil, fmt.Errorf("resolve credentials: %w", err)
		}
		return cfg, nil
	}
}

// speechCaller is the slice of the Polly client the synthesizer
// needs; it keeps the refresh-and-retry flow testable without AWS.
type speechCaller interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollySynthesizer calls the managed speech service. On a
// credential-expiry error it asks the authenticator for a fresh
// session and retries the call exactly once.
type PollySynthesizer struct {
	auth      *auth.Authenticator
	engine    string
	format    string
	language  string
	newClient func(aws.Config) speechCaller
	mu        sync.Mutex
	client    speechCaller
	logger    *slog.Logger
}

func NewPollySynthesizer(ctx context.Context, cfg config.BackendConfig, authenticator *auth.Authenticator, log *slog.Logger) (*PollySynthesizer, error) {
	s := &PollySynthesizer{
		auth:     authenticator,
		engine:   cfg.Engine,
		format:   cfg.Format,
		language: cfg.Language,
		newClient: func(awsCfg aws.Config) speechCaller {
			return polly.NewFromConfig(awsCfg)
		},
		logger: log.With(slog.String("component", "polly-synth")),
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PollySynthesizer) refresh(ctx context.Context) error {
	session, err := s.auth.Acquire(ctx)
	if err != nil {
		return err
	}
	awsCfg, ok := session.(aws.Config)
	if !ok {
		return fmt.Errorf("unexpected session type %T", session)
	}
	s.mu.Lock()
	s.client = s.newClient(awsCfg)
	s.mu.Unlock()
	return nil
}

func (s *PollySynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	audio, err := s.call(ctx, text, voice)
	if err == nil {
		return audio, nil
	}
	if !isCredentialExpiry(err) {
		return nil, err
	}

	s.logger.Warn("credential expired mid-run, refreshing session", slog.String("error", err.Error()))
	if rerr := s.refresh(ctx); rerr != nil {
		return nil, rerr
	}
	return s.call(ctx, text, voice)
}

func (s *PollySynthesizer) call(ctx context.Context, text, voice string) ([]byte, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	out, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       pollytypes.Engine(s.engine),
		OutputFormat: pollytypes.OutputFormat(s.format),
		Text:         aws.String(text),
		VoiceId:      pollytypes.VoiceId(voice),
		LanguageCode: pollytypes.LanguageCode(s.language),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read audio stream: %w", err)
	}
	return audio, nil
}

func isCredentialExpiry(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ExpiredToken", "ExpiredTokenException", "UnauthorizedException", "InvalidGrantException":
			return true
		}
	}
	// SSO token cache failures surface before the request is signed
	// and carry no API error code.
	msg := err.Error()
	return strings.Contains(msg, "SSO session") || strings.Contains(msg, "token has expired")
}
