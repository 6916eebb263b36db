package compaction

import (
	"testing"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/internal/tt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unknownStrategy struct{}

func (unknownStrategy) Name() string { return "unknown" }
func (unknownStrategy) isStrategy()  {}

func TestValidateStrategy(t *testing.T) {
	model := tt.NewMockModel()
	compressor := NewToolCallCompressor("read")

	type expected struct {
		strategy Strategy
		err      error
	}

	tests := []struct {
		name     string
		input    Strategy
		expected expected
	}{
		{
			name:     "keep last",
			input:    KeepLast{N: 10},
			expected: expected{strategy: KeepLast{N: 10}},
		},
		{
			name:  "pointer form is dereferenced",
			input: &AdaptiveWindow{TokenBudget: 100},
			expected: expected{
				strategy: AdaptiveWindow{TokenBudget: 100},
			},
		},
		{
			name:  "compress tools",
			input: CompressTools{Compressor: compressor},
			expected: expected{
				strategy: CompressTools{Compressor: compressor},
			},
		},
		{
			name: "summary",
			input: &Summary{
				KeepRecentTokens:     100,
				CompressionThreshold: 1000,
				Model:                model,
			},
			expected: expected{strategy: Summary{
				KeepRecentTokens:     100,
				CompressionThreshold: 1000,
				Model:                model,
			}},
		},
		{
			name:     "nil",
			input:    nil,
			expected: expected{err: ctxwindow.ErrContractViolation},
		},
		{
			name:     "nil pointer",
			input:    (*KeepLast)(nil),
			expected: expected{err: ctxwindow.ErrContractViolation},
		},
		{
			name:     "unknown variant",
			input:    unknownStrategy{},
			expected: expected{err: ctxwindow.ErrContractViolation},
		},
		{
			name: "negative interval",
			input: KeepLast{
				N:                        5,
				ExecutionContextInterval: Interval(-1),
			},
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
		{
			name:     "negative budget",
			input:    AdaptiveWindow{TokenBudget: -1},
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
		{
			name:     "missing compressor",
			input:    CompressTools{KeepRecentRounds: 2},
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
		{
			name: "missing summary model",
			input: Summary{
				KeepRecentTokens:     100,
				CompressionThreshold: 1000,
			},
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
		{
			name: "zero threshold",
			input: Summary{
				KeepRecentTokens: 100,
				Model:            model,
			},
			expected: expected{err: ctxwindow.ErrInvalidConfig},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateStrategy(tc.input)

			if tc.expected.err != nil {
				assert.ErrorIs(t, err, tc.expected.err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected.strategy, got)
		})
	}
}

func TestExecutionContextInterval(t *testing.T) {
	interval, ok := ExecutionContextInterval(
		KeepLast{N: 3, ExecutionContextInterval: Interval(4)},
	)
	require.True(t, ok)
	assert.Equal(t, 4, *interval)

	interval, ok = ExecutionContextInterval(AdaptiveWindow{TokenBudget: 10})
	assert.True(t, ok)
	assert.Nil(t, interval)

	_, ok = ExecutionContextInterval(CompressTools{})
	assert.False(t, ok)

	_, ok = ExecutionContextInterval(Summary{})
	assert.False(t, ok)
}

func TestStrategy_Name(t *testing.T) {
	assert.Equal(t, TagKeepLast, KeepLast{}.Name())
	assert.Equal(t, TagAdaptiveWindow, AdaptiveWindow{}.Name())
	assert.Equal(t, TagCompressTools, CompressTools{}.Name())
	assert.Equal(t, TagSummary, Summary{}.Name())
}
