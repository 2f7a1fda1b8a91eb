package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// BackendConfig selects and parameterizes the synthesis backend.
type BackendConfig struct {
	Kind           string `yaml:"kind"` // polly, http
	BaseURL        string `yaml:"base_url"`
	ClientID       string `yaml:"client_id"`
	SpeakerMapType int    `yaml:"speaker_map_type"`
	AID            string `yaml:"aid"`
	SessionToken   string `yaml:"session_token"`
	Profile        string `yaml:"profile"`
	Engine         string `yaml:"engine"`
	Format         string `yaml:"format"` // mp3, ogg_vorbis, pcm
	Language       string `yaml:"language"`
}

type PipelineConfig struct {
	OutputDir      string  `yaml:"output_dir"`
	ProvenanceFile string  `yaml:"provenance_file"`
	MaxChunkChars  int     `yaml:"max_chunk_chars"`
	Concurrency    int     `yaml:"concurrency"`
	RateLimit      float64 `yaml:"rate_limit_per_sec"` // 0 disables throttling
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Backend     BackendConfig   `yaml:"backend"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Catalog     CatalogConfig   `yaml:"catalog"`
}

func Default() Config {
	return Config{
		ServiceName: "voz-pipeline",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Backend: BackendConfig{
			Kind:           "polly",
			Profile:        "default",
			SpeakerMapType: 0,
			Engine:         "standard",
			Format:         "mp3",
			Language:       "en-US",
		},
		Pipeline: PipelineConfig{
			OutputDir:      "./generated_files",
			ProvenanceFile: "audio_to_text_map.csv",
			MaxChunkChars:  3000,
			Concurrency:    1,
			RateLimit:      0,
		},
		Catalog: CatalogConfig{
			Path: "./requests.csv",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "VOZ_SERVICE_NAME")
	overrideString(&cfg.Environment, "VOZ_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOZ_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOZ_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOZ_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOZ_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOZ_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOZ_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "VOZ_BUS_ENABLED")
	overrideStringSlice(&cfg.Bus.Servers, "VOZ_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOZ_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOZ_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOZ_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOZ_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOZ_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Backend.Kind, "VOZ_BACKEND_KIND")
	overrideString(&cfg.Backend.BaseURL, "VOZ_BACKEND_BASE_URL")
	overrideString(&cfg.Backend.ClientID, "VOZ_BACKEND_CLIENT_ID")
	overrideInt(&cfg.Backend.SpeakerMapType, "VOZ_BACKEND_SPEAKER_MAP_TYPE")
	overrideString(&cfg.Backend.AID, "VOZ_BACKEND_AID")
	overrideString(&cfg.Backend.SessionToken, "VOZ_BACKEND_SESSION_TOKEN")
	overrideString(&cfg.Backend.Profile, "VOZ_BACKEND_PROFILE")
	overrideString(&cfg.Backend.Engine, "VOZ_BACKEND_ENGINE")
	overrideString(&cfg.Backend.Format, "VOZ_BACKEND_FORMAT")
	overrideString(&cfg.Backend.Language, "VOZ_BACKEND_LANGUAGE")
	overrideString(&cfg.Pipeline.OutputDir, "VOZ_PIPELINE_OUTPUT_DIR")
	overrideString(&cfg.Pipeline.ProvenanceFile, "VOZ_PIPELINE_PROVENANCE_FILE")
	overrideInt(&cfg.Pipeline.MaxChunkChars, "VOZ_PIPELINE_MAX_CHUNK_CHARS")
	overrideInt(&cfg.Pipeline.Concurrency, "VOZ_PIPELINE_CONCURRENCY")
	overrideFloat(&cfg.Pipeline.RateLimit, "VOZ_PIPELINE_RATE_LIMIT_PER_SEC")
	overrideString(&cfg.Catalog.Path, "VOZ_CATALOG_PATH")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Backend.Kind {
	case "polly":
		if cfg.Backend.Profile == "" {
			return errors.New("backend.profile must be set when kind=polly")
		}
	case "http":
		if cfg.Backend.BaseURL == "" {
			return errors.New("backend.base_url must be set when kind=http")
		}
		if cfg.Backend.SessionToken == "" {
			return errors.New("backend.session_token must be set when kind=http")
		}
	case "mock":
	default:
		return errors.New("backend.kind must be one of polly|http|mock")
	}
	switch cfg.Backend.Format {
	case "mp3", "ogg_vorbis", "pcm":
	default:
		return errors.New("backend.format must be one of mp3|ogg_vorbis|pcm")
	}
	if cfg.Pipeline.MaxChunkChars <= 0 {
		return errors.New("pipeline.max_chunk_chars must be positive")
	}
	if cfg.Pipeline.Concurrency <= 0 {
		return errors.New("pipeline.concurrency must be >= 1")
	}
	if cfg.Pipeline.RateLimit < 0 {
		return errors.New("pipeline.rate_limit_per_sec must be >= 0")
	}
	if cfg.Pipeline.OutputDir == "" {
		return errors.New("pipeline.output_dir must not be empty")
	}
	if cfg.Pipeline.ProvenanceFile == "" {
		return errors.New("pipeline.provenance_file must not be empty")
	}
	if cfg.Bus.Enabled && len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when bus mode is enabled")
	}
	return nil
}
