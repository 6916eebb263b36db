package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/compaction"
	"github.com/rickchristie/ctxwindow/config"
	"github.com/rickchristie/ctxwindow/hooks"
	"github.com/rickchristie/ctxwindow/internal/tt"
	"github.com/rickchristie/ctxwindow/models"
	"github.com/rickchristie/ctxwindow/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	type expected struct {
		file          *config.File
		err           error
		schemaFailure bool
	}

	tests := []struct {
		name     string
		input    string
		expected expected
	}{
		{
			name: "keep_last with intervals",
			input: `
token_model: gpt-4o
execution_context_interval: 3
strategy:
  type: keep_last
  n: 20
  execution_context_interval: 0
`,
			expected: expected{file: &config.File{
				TokenModel:               "gpt-4o",
				ExecutionContextInterval: compaction.Interval(3),
				Strategy: config.StrategyConfig{
					Type:                     compaction.TagKeepLast,
					N:                        20,
					ExecutionContextInterval: compaction.Interval(0),
				},
			}},
		},
		{
			name: "compress_tools with limits",
			input: `
token_model: gpt-4o
token_cache_size: 0
strategy:
  type: compress_tools
  tools: [read_file, search]
  keep_recent_rounds: 2
  max_arg_length: 80
  max_result_length: 300
`,
			expected: expected{file: &config.File{
				TokenModel:     "gpt-4o",
				TokenCacheSize: intPtr(0),
				Strategy: config.StrategyConfig{
					Type:             compaction.TagCompressTools,
					Tools:            []string{"read_file", "search"},
					KeepRecentRounds: 2,
					MaxArgLength:     80,
					MaxResultLength:  300,
				},
			}},
		},
		{
			name: "summary with model",
			input: `
token_model: gpt-4o-mini
strategy:
  type: summary
  keep_recent_tokens: 4000
  compression_threshold: 24000
model:
  provider: github
  name: openai/gpt-4.1-mini
`,
			expected: expected{file: &config.File{
				TokenModel: "gpt-4o-mini",
				Strategy: config.StrategyConfig{
					Type:                 compaction.TagSummary,
					KeepRecentTokens:     4000,
					CompressionThreshold: 24000,
				},
				Model: &config.ModelConfig{
					Provider: config.ProviderGitHub,
					Name:     "openai/gpt-4.1-mini",
				},
			}},
		},
		{
			name:     "empty document",
			input:    "",
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
		{
			name:     "malformed yaml",
			input:    "token_model: [gpt-4o",
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
		{
			name: "missing token model",
			input: `
strategy:
  type: keep_last
  n: 2
`,
			expected: expected{
				err:           ctxwindow.ErrInvalidConfig,
				schemaFailure: true,
			},
		},
		{
			name: "summary without threshold",
			input: `
token_model: gpt-4o
strategy:
  type: summary
  keep_recent_tokens: 4000
`,
			expected: expected{
				err:           ctxwindow.ErrInvalidConfig,
				schemaFailure: true,
			},
		},
		{
			name: "unknown strategy",
			input: `
token_model: gpt-4o
strategy:
  type: sliding_window
`,
			expected: expected{
				err:           ctxwindow.ErrInvalidConfig,
				schemaFailure: true,
			},
		},
		{
			name: "misspelled key",
			input: `
token_model: gpt-4o
strategy:
  type: keep_last
  n: 2
  keep_recent: 3
`,
			expected: expected{
				err:           ctxwindow.ErrInvalidConfig,
				schemaFailure: true,
			},
		},
		{
			name: "negative interval",
			input: `
token_model: gpt-4o
execution_context_interval: -1
strategy:
  type: keep_last
  n: 2
`,
			expected: expected{
				err:           ctxwindow.ErrInvalidConfig,
				schemaFailure: true,
			},
		},
		{
			name: "unknown provider",
			input: `
token_model: gpt-4o
strategy:
  type: keep_last
  n: 2
model:
  provider: bedrock
  name: claude
`,
			expected: expected{
				err:           ctxwindow.ErrInvalidConfig,
				schemaFailure: true,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := config.Load([]byte(tc.input))

			if tc.expected.err != nil {
				require.ErrorIs(t, err, tc.expected.err)
				var vErr *schema.ValidationError
				assert.Equal(t, tc.expected.schemaFailure, errors.As(err, &vErr))
				assert.Nil(t, f)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected.file, f)
		})
	}
}

func intPtr(n int) *int {
	return &n
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
token_model: gpt-4o
strategy:
  type: adaptive_window
  token_budget: 8000
`), 0o600))

	f, err := config.LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, 8000, f.Strategy.TokenBudget)

	_, err = config.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFile_BuildStrategy(t *testing.T) {
	model := tt.NewMockModel()

	type input struct {
		strategy config.StrategyConfig
		model    ctxwindow.Model
	}

	type expected struct {
		strategy compaction.Strategy
		err      error
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "keep_last",
			input: input{strategy: config.StrategyConfig{
				Type:                     compaction.TagKeepLast,
				N:                        10,
				ExecutionContextInterval: compaction.Interval(2),
			}},
			expected: expected{strategy: compaction.KeepLast{
				N:                        10,
				ExecutionContextInterval: compaction.Interval(2),
			}},
		},
		{
			name: "adaptive_window",
			input: input{strategy: config.StrategyConfig{
				Type:        compaction.TagAdaptiveWindow,
				TokenBudget: 8000,
			}},
			expected: expected{strategy: compaction.AdaptiveWindow{
				TokenBudget: 8000,
			}},
		},
		{
			name: "compress_tools with default limits",
			input: input{strategy: config.StrategyConfig{
				Type:             compaction.TagCompressTools,
				Tools:            []string{"search", "read_file"},
				KeepRecentRounds: 1,
			}},
			expected: expected{strategy: compaction.CompressTools{
				Compressor: compaction.NewToolCallCompressor(
					"search", "read_file",
				),
				KeepRecentRounds: 1,
			}},
		},
		{
			name: "compress_tools with limits",
			input: input{strategy: config.StrategyConfig{
				Type:            compaction.TagCompressTools,
				Tools:           []string{"search"},
				MaxArgLength:    80,
				MaxResultLength: 300,
			}},
			expected: expected{strategy: compaction.CompressTools{
				Compressor: compaction.NewToolCallCompressor("search").
					WithMaxArgLength(80).
					WithMaxResultLength(300),
			}},
		},
		{
			name: "summary",
			input: input{
				strategy: config.StrategyConfig{
					Type:                 compaction.TagSummary,
					KeepRecentTokens:     4000,
					CompressionThreshold: 24000,
				},
				model: model,
			},
			expected: expected{strategy: compaction.Summary{
				KeepRecentTokens:     4000,
				CompressionThreshold: 24000,
				Model:                model,
			}},
		},
		{
			name: "summary without model",
			input: input{strategy: config.StrategyConfig{
				Type:                 compaction.TagSummary,
				KeepRecentTokens:     4000,
				CompressionThreshold: 24000,
			}},
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
		{
			name: "summary with zero threshold",
			input: input{
				strategy: config.StrategyConfig{Type: compaction.TagSummary},
				model:    model,
			},
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
		{
			name: "unknown tag",
			input: input{strategy: config.StrategyConfig{
				Type: "sliding_window",
			}},
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &config.File{
				TokenModel: "gpt-4o",
				Strategy:   tc.input.strategy,
			}

			s, err := f.BuildStrategy(tc.input.model)

			if tc.expected.err != nil {
				assert.ErrorIs(t, err, tc.expected.err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected.strategy, s)
		})
	}
}

func TestFile_HookConfig(t *testing.T) {
	f, err := config.Load([]byte(`
token_model: gpt-4o
execution_context_interval: 4
token_cache_size: 128
strategy:
  type: adaptive_window
  token_budget: 8000
`))
	require.NoError(t, err)
	stats := ctxwindow.NewStats()

	cfg, err := f.HookConfig(nil, nil, stats)

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.TokenModel)
	assert.Equal(t, compaction.AdaptiveWindow{TokenBudget: 8000}, cfg.Strategy)
	assert.Equal(t, compaction.Interval(4), cfg.ExecutionContextInterval)
	assert.NotNil(t, cfg.Accountant)
	assert.NotNil(t, cfg.Logger)
	assert.Same(t, stats, cfg.Stats)

	hook, err := hooks.NewContextHook(cfg)
	require.NoError(t, err)
	assert.Equal(t, compaction.TagAdaptiveWindow, hook.Strategy().Name())
}

func TestFile_HookConfigRejectsInvalidStrategy(t *testing.T) {
	f := &config.File{
		TokenModel: "gpt-4o",
		Strategy:   config.StrategyConfig{Type: compaction.TagSummary},
	}

	_, err := f.HookConfig(nil, nil, nil)

	assert.ErrorIs(t, err, ctxwindow.ErrInvalidConfig)
}

func TestModelConfig_TokenEnvName(t *testing.T) {
	tests := []struct {
		name     string
		input    config.ModelConfig
		expected string
	}{
		{
			name:     "openai default",
			input:    config.ModelConfig{Provider: config.ProviderOpenAI},
			expected: "OPENAI_API_KEY",
		},
		{
			name:     "github default",
			input:    config.ModelConfig{Provider: config.ProviderGitHub},
			expected: "GITHUB_TOKEN",
		},
		{
			name: "explicit",
			input: config.ModelConfig{
				Provider: config.ProviderOpenAI,
				TokenEnv: "XAI_API_KEY",
			},
			expected: "XAI_API_KEY",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.input.TokenEnvName())
		})
	}
}

func TestModelConfig_Open(t *testing.T) {
	t.Setenv("CTXWINDOW_TEST_TOKEN", "secret")
	t.Setenv("GITHUB_TOKEN", "")

	m := &config.ModelConfig{
		Provider: config.ProviderOpenAI,
		Name:     "grok-3-mini",
		BaseURL:  "https://api.x.ai/v1",
		TokenEnv: "CTXWINDOW_TEST_TOKEN",
	}
	model, err := m.Open(nil)
	require.NoError(t, err)
	assert.Equal(t, "grok-3-mini", model.ModelName())

	missing := &config.ModelConfig{
		Provider: config.ProviderGitHub,
		Name:     "openai/gpt-4.1-mini",
	}
	_, err = missing.Open(nil)
	assert.ErrorIs(t, err, models.ErrMissingToken)

	unknown := &config.ModelConfig{Provider: "bedrock", Name: "x"}
	_, err = unknown.Open(nil)
	assert.ErrorIs(t, err, ctxwindow.ErrInvalidConfig)
}
