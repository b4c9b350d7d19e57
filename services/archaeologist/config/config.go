// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the archaeologist configuration from embedded
// defaults, an optional YAML file, a .env file and the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/CodeArchaeologist/services/llm"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed defaults.yaml
var defaultConfigYAML []byte

// Graph backends.
const (
	GraphBackendNeo4j  = "neo4j"
	GraphBackendBadger = "badger"
)

// Archive backends.
const (
	ArchiveBackendLocal = "local"
	ArchiveBackendGCS   = "gcs"
	ArchiveBackendS3    = "s3"
	ArchiveBackendNone  = "none"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the complete service configuration.
//
// Thread Safety: Immutable after Load; safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	Graph     GraphConfig     `yaml:"graph"`
	Ingest    IngestConfig    `yaml:"ingest"`
	View      ViewConfig      `yaml:"view"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets are sealed after loading and never serialized.
	Secrets Secrets `yaml:"-" validate:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	CORSOrigins    []string `yaml:"cors_origins" validate:"dive,required"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" validate:"gt=0"`
	Debug          bool     `yaml:"debug"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// LLMConfig selects and tunes the model provider.
type LLMConfig struct {
	// Provider is gemini, openai, anthropic, ollama, or auto to infer it
	// from Model.
	Provider          string        `yaml:"provider" validate:"required"`
	Model             string        `yaml:"model" validate:"required"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=0"`

	// Temperature and MaxTokens apply to every call. Unset uses the
	// provider default.
	Temperature *float32 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `yaml:"max_tokens" validate:"gte=0"`

	// TransformModel, when set, serves /refactor and /generate-tests
	// instead of Model.
	TransformModel string `yaml:"transform_model"`
}

// GraphConfig selects and tunes the graph store.
type GraphConfig struct {
	Backend           string `yaml:"backend" validate:"oneof=neo4j badger"`
	URI               string `yaml:"uri" validate:"required_if=Backend neo4j"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	Database          string `yaml:"database"`
	BadgerPath        string `yaml:"badger_path"`
	EnsureConstraints bool   `yaml:"ensure_constraints"`
	FunctionScope     string `yaml:"function_scope" validate:"oneof=global file"`
	QueryLimit        int    `yaml:"query_limit" validate:"gt=0"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	FailurePlaceholder string `yaml:"failure_placeholder" validate:"required"`
}

// ViewConfig tunes the graph view.
type ViewConfig struct {
	CodePlaceholder        string `yaml:"code_placeholder"`
	ExplanationPlaceholder string `yaml:"explanation_placeholder"`
}

// ArchiveConfig selects where uploaded files are archived.
type ArchiveConfig struct {
	Backend         string `yaml:"backend" validate:"oneof=local gcs s3 none"`
	Dir             string `yaml:"dir" validate:"required_if=Backend local"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	CredentialsFile string `yaml:"credentials_file"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" validate:"required"`
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Metrics      string `yaml:"metrics" validate:"oneof=prometheus stdout none"`
}

// Secrets holds sealed credentials.
type Secrets struct {
	LLMAPIKey     *Secret
	GraphPassword *Secret
	AWSAccessKey  *Secret
	AWSSecretKey  *Secret
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigPath is an optional YAML file layered over the defaults.
	ConfigPath string

	// EnvFile is an optional dotenv file. Empty means ".env" if present.
	EnvFile string

	// Logger receives configuration warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// =============================================================================
// Loading
// =============================================================================

// Load builds the configuration.
//
// Description:
//
//	Layers, lowest precedence first: embedded defaults.yaml, the optional
//	YAML file, the dotenv file (which never overrides variables already
//	set in the process environment), then environment variables. The
//	result is validated and its credentials sealed.
//
// Inputs:
//   - opts: Where to look for the YAML and dotenv files.
//
// Outputs:
//   - *Config: The validated configuration.
//   - error: Non-nil if a file cannot be read or parsed, or validation fails.
func Load(opts LoadOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", opts.ConfigPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", opts.ConfigPath, err)
		}
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	provider, err := llm.ResolveProvider(cfg.LLM.Provider, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: llm.provider: %w", err)
	}
	cfg.LLM.Provider = provider

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.seal()

	if cfg.Graph.Backend == GraphBackendNeo4j && !cfg.Secrets.GraphPassword.IsSet() {
		logger.Warn("NEO4J_PASSWORD is not set; connecting to the graph without a password")
	}
	if envVar := llm.APIKeyEnvVar(cfg.LLM.Provider); envVar != "" && !cfg.Secrets.LLMAPIKey.IsSet() {
		logger.Warn("LLM API key is not set; explanations will fall back to the placeholder",
			slog.String("env_var", envVar),
			slog.String("provider", cfg.LLM.Provider))
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// applyEnv layers environment variables over cfg.
//
// The NEO4J_* and GEMINI_* names are the ones existing deployments
// already export. ARCHAEOLOGIST_* names cover the rest.
func applyEnv(cfg *Config) error {
	setString(&cfg.Graph.URI, "NEO4J_URI")
	setString(&cfg.Graph.User, "NEO4J_USER")
	setString(&cfg.Graph.Password, "NEO4J_PASSWORD")
	setString(&cfg.Graph.Database, "NEO4J_DATABASE")
	setString(&cfg.Graph.Backend, "ARCHAEOLOGIST_GRAPH_BACKEND")
	setString(&cfg.Graph.BadgerPath, "ARCHAEOLOGIST_BADGER_PATH")

	setString(&cfg.LLM.Provider, "ARCHAEOLOGIST_LLM_PROVIDER")
	if cfg.LLM.Provider == llm.ProviderGemini {
		setString(&cfg.LLM.Model, "GEMINI_MODEL")
	}
	setString(&cfg.LLM.Model, "ARCHAEOLOGIST_LLM_MODEL")
	if cfg.LLM.Provider == llm.ProviderOllama {
		setString(&cfg.LLM.BaseURL, "OLLAMA_BASE_URL")
	}

	setString(&cfg.Log.Level, "ARCHAEOLOGIST_LOG_LEVEL")
	setString(&cfg.Archive.Backend, "ARCHAEOLOGIST_ARCHIVE_BACKEND")
	setString(&cfg.Archive.Bucket, "ARCHAEOLOGIST_ARCHIVE_BUCKET")
	setString(&cfg.Archive.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if v := os.Getenv("ARCHAEOLOGIST_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ARCHAEOLOGIST_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func setString(dst *string, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		*dst = v
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !llm.IsValidProvider(c.LLM.Provider) {
		return fmt.Errorf("invalid configuration: llm.provider %q is not one of %v", c.LLM.Provider, llm.ValidProviders)
	}
	switch c.Archive.Backend {
	case ArchiveBackendGCS, ArchiveBackendS3:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("invalid configuration: archive.bucket is required for the %s backend", c.Archive.Backend)
		}
	}
	return nil
}

// seal moves credentials into enclaves and clears the plain copies.
func (c *Config) seal() {
	var apiKey string
	if envVar := llm.APIKeyEnvVar(c.LLM.Provider); envVar != "" {
		apiKey = os.Getenv(envVar)
	}
	c.Secrets = Secrets{
		LLMAPIKey:     NewSecret(apiKey),
		GraphPassword: NewSecret(c.Graph.Password),
		AWSAccessKey:  NewSecret(os.Getenv("AWS_ACCESS_KEY_ID")),
		AWSSecretKey:  NewSecret(os.Getenv("AWS_SECRET_ACCESS_KEY")),
	}
	c.Graph.Password = ""
}

// GenerationParams returns the per-call settings for explanations.
func (c *Config) GenerationParams() llm.GenerationParams {
	params := llm.GenerationParams{Temperature: c.LLM.Temperature}
	if c.LLM.MaxTokens > 0 {
		params.MaxTokens = llm.Int(c.LLM.MaxTokens)
	}
	return params
}

// TransformParams returns the per-call settings for refactoring and test
// generation.
func (c *Config) TransformParams() llm.GenerationParams {
	params := c.GenerationParams()
	params.ModelOverride = c.LLM.TransformModel
	return params
}

// ProviderConfig reveals the LLM key and returns the provider settings.
func (c *Config) ProviderConfig() (llm.ProviderConfig, error) {
	apiKey, err := c.Secrets.LLMAPIKey.Reveal()
	if err != nil {
		return llm.ProviderConfig{}, fmt.Errorf("revealing LLM API key: %w", err)
	}
	return llm.ProviderConfig{
		Provider:          c.LLM.Provider,
		Model:             c.LLM.Model,
		BaseURL:           c.LLM.BaseURL,
		APIKey:            apiKey,
		Timeout:           c.LLM.Timeout,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
	}, nil
}
