// Package config loads context-management settings from YAML.
//
// A config file names the tokenizer model, the compaction strategy
// and, for the summary strategy or the chat CLI, the model to call:
//
//	token_model: gpt-4o-mini
//	execution_context_interval: 3
//	strategy:
//	  type: summary
//	  keep_recent_tokens: 4000
//	  compression_threshold: 24000
//	model:
//	  provider: openai
//	  name: gpt-4o-mini
//
// Documents are validated against [Schema] before decoding, so
// unknown keys and missing strategy parameters are rejected with
// ctxwindow.ErrInvalidConfig.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/compaction"
	"github.com/rickchristie/ctxwindow/hooks"
	"github.com/rickchristie/ctxwindow/models"
	"github.com/rickchristie/ctxwindow/schema"
	"github.com/rickchristie/ctxwindow/tokens"
	"gopkg.in/yaml.v3"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGitHub = "github"
)

// File is a decoded config file.
type File struct {
	TokenModel               string         `yaml:"token_model"`
	ExecutionContextInterval *int           `yaml:"execution_context_interval,omitempty"`
	TokenCacheSize           *int           `yaml:"token_cache_size,omitempty"`
	Strategy                 StrategyConfig `yaml:"strategy"`
	Model                    *ModelConfig   `yaml:"model,omitempty"`
}

// StrategyConfig holds the strategy tag and the parameters of every
// variant. Only the parameters of the tagged variant are used.
type StrategyConfig struct {
	Type string `yaml:"type"`

	// keep_last
	N int `yaml:"n,omitempty"`

	// adaptive_window
	TokenBudget int `yaml:"token_budget,omitempty"`

	// keep_last and adaptive_window
	ExecutionContextInterval *int `yaml:"execution_context_interval,omitempty"`

	// compress_tools
	Tools            []string `yaml:"tools,omitempty"`
	KeepRecentRounds int      `yaml:"keep_recent_rounds,omitempty"`
	MaxArgLength     int      `yaml:"max_arg_length,omitempty"`
	MaxResultLength  int      `yaml:"max_result_length,omitempty"`

	// summary
	KeepRecentTokens     int `yaml:"keep_recent_tokens,omitempty"`
	CompressionThreshold int `yaml:"compression_threshold,omitempty"`
}

// ModelConfig selects a chat model. TokenEnv names the environment
// variable holding the API token and defaults to OPENAI_API_KEY or
// GITHUB_TOKEN depending on the provider.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`
}

// Schema is the JSON Schema every config document must satisfy.
var Schema = schema.MustCompile(schema.Object(map[string]*schema.Property{
	"token_model": schema.String(
		"Model whose tokenizer counts the context",
	).MinLength(1),
	"execution_context_interval": schema.Integer(
		"Inject the execution status every k-th invocation; 0 disables",
	).Min(0),
	"token_cache_size": schema.Integer(
		"Size of the per-message token count memo; 0 disables",
	).Min(0).Default(tokens.DefaultCacheSize),
	"strategy": schema.Nested("Compaction strategy", map[string]*schema.Property{
		"type": schema.String("Strategy tag").Enum(
			compaction.TagKeepLast,
			compaction.TagAdaptiveWindow,
			compaction.TagCompressTools,
			compaction.TagSummary,
		),
		"n": schema.Integer("Messages to keep").Min(0),
		"token_budget": schema.Integer(
			"Token budget of the kept window",
		).Min(0),
		"execution_context_interval": schema.Integer(
			"Overrides the top-level interval",
		).Min(0),
		"tools": schema.Array(
			"Tools whose call arguments may be truncated",
			map[string]any{"type": "string", "minLength": 1},
		),
		"keep_recent_rounds": schema.Integer(
			"Most recent tool rounds left intact",
		).Min(0),
		"max_arg_length": schema.Integer(
			"Per-argument length limit in characters",
		).Min(1).Default(compaction.DefaultMaxArgLength),
		"max_result_length": schema.Integer(
			"Tool result length limit in characters",
		).Min(1).Default(compaction.DefaultMaxResultLength),
		"keep_recent_tokens": schema.Integer(
			"Tokens of recent history kept verbatim",
		).Min(0),
		"compression_threshold": schema.Integer(
			"Context size that triggers summarization",
		).Min(1),
	}, "type").
		When("type", compaction.TagKeepLast, "n").
		When("type", compaction.TagAdaptiveWindow, "token_budget").
		When("type", compaction.TagCompressTools, "tools").
		When("type", compaction.TagSummary,
			"keep_recent_tokens", "compression_threshold"),
	"model": schema.Nested("Chat model", map[string]*schema.Property{
		"provider": schema.String("Model provider").
			Enum(ProviderOpenAI, ProviderGitHub),
		"name":     schema.String("Model name").MinLength(1),
		"base_url": schema.String("OpenAI-compatible API base URL"),
		"token_env": schema.String(
			"Environment variable holding the API token",
		).MinLength(1),
	}, "provider", "name"),
}, "token_model", "strategy"))

// Load parses and validates a YAML config document.
func Load(data []byte) (*File, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ctxwindow.ErrInvalidConfig, err)
	}
	if doc == nil {
		return nil, fmt.Errorf(
			"%w: empty config document", ctxwindow.ErrInvalidConfig,
		)
	}

	// Round trip through JSON so numbers reach the validator as
	// json.Number and non-string map keys are reported.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ctxwindow.ErrInvalidConfig, err)
	}
	if err := Schema.ValidateJSON(asJSON); err != nil {
		return nil, fmt.Errorf("%w: %w", ctxwindow.ErrInvalidConfig, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ctxwindow.ErrInvalidConfig, err)
	}
	return &f, nil
}

// LoadFile reads and loads the config file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// BuildStrategy builds the configured strategy. model is the
// summarization model and is required by the summary strategy only.
func (f *File) BuildStrategy(model ctxwindow.Model) (compaction.Strategy, error) {
	sc := f.Strategy
	var s compaction.Strategy
	switch sc.Type {
	case compaction.TagKeepLast:
		s = compaction.KeepLast{
			N:                        sc.N,
			ExecutionContextInterval: sc.ExecutionContextInterval,
		}
	case compaction.TagAdaptiveWindow:
		s = compaction.AdaptiveWindow{
			TokenBudget:              sc.TokenBudget,
			ExecutionContextInterval: sc.ExecutionContextInterval,
		}
	case compaction.TagCompressTools:
		compressor := compaction.NewToolCallCompressor(sc.Tools...)
		if sc.MaxArgLength > 0 {
			compressor.WithMaxArgLength(sc.MaxArgLength)
		}
		if sc.MaxResultLength > 0 {
			compressor.WithMaxResultLength(sc.MaxResultLength)
		}
		s = compaction.CompressTools{
			Compressor:       compressor,
			KeepRecentRounds: sc.KeepRecentRounds,
		}
	case compaction.TagSummary:
		if model == nil {
			return nil, fmt.Errorf(
				"%w: summary strategy requires a model",
				ctxwindow.ErrInvalidConfig,
			)
		}
		s = compaction.Summary{
			KeepRecentTokens:     sc.KeepRecentTokens,
			CompressionThreshold: sc.CompressionThreshold,
			Model:                model,
		}
	default:
		return nil, fmt.Errorf(
			"%w: unknown strategy %q", ctxwindow.ErrInvalidConfig, sc.Type,
		)
	}
	return compaction.ValidateStrategy(s)
}

// HookConfig builds a hooks.Config from the file. The accountant
// uses tiktoken with the configured memo size. Plan is left for the
// caller to set.
func (f *File) HookConfig(
	model ctxwindow.Model,
	logger *slog.Logger,
	stats *ctxwindow.Stats,
) (hooks.Config, error) {
	strategy, err := f.BuildStrategy(model)
	if err != nil {
		return hooks.Config{}, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []tokens.Option{
		tokens.WithLogger(logger),
		tokens.WithStats(stats),
	}
	if f.TokenCacheSize != nil {
		opts = append(opts, tokens.WithCacheSize(*f.TokenCacheSize))
	}

	return hooks.Config{
		Strategy:                 strategy,
		TokenModel:               f.TokenModel,
		Accountant:               tokens.NewAccountant(tokens.NewTiktoken(), opts...),
		ExecutionContextInterval: f.ExecutionContextInterval,
		Logger:                   logger,
		Stats:                    stats,
	}, nil
}

// TokenEnvName returns the environment variable holding the API
// token.
func (m *ModelConfig) TokenEnvName() string {
	if m.TokenEnv != "" {
		return m.TokenEnv
	}
	if m.Provider == ProviderGitHub {
		return "GITHUB_TOKEN"
	}
	return "OPENAI_API_KEY"
}

// Open creates the configured model, reading its token from the
// environment.
func (m *ModelConfig) Open(logger *slog.Logger) (*models.LCGWrapper, error) {
	token := os.Getenv(m.TokenEnvName())

	var (
		model *models.LCGWrapper
		err   error
	)
	switch m.Provider {
	case ProviderGitHub:
		model, err = models.NewGitHub(m.Name, token)
	case ProviderOpenAI:
		model, err = models.NewOpenAI(m.Name, token, m.BaseURL)
	default:
		return nil, fmt.Errorf(
			"%w: unknown provider %q", ctxwindow.ErrInvalidConfig, m.Provider,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s model: %w", m.Provider, err)
	}
	if logger != nil {
		model.WithLogger(logger)
	}
	return model, nil
}
