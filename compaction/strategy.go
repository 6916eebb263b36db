package compaction

import (
	"fmt"

	"github.com/rickchristie/ctxwindow"
)

// Strategy is the compression configuration of a context hook. The
// set of strategies is closed: [KeepLast], [AdaptiveWindow],
// [CompressTools] and [Summary]. Consumers dispatch with a type
// switch and treat any other value as a programming error.
type Strategy interface {
	// Name returns the strategy tag used in config files, logs
	// and stat keys.
	Name() string

	isStrategy()
}

// Strategy tags.
const (
	TagKeepLast       = "keep_last"
	TagAdaptiveWindow = "adaptive_window"
	TagCompressTools  = "compress_tools"
	TagSummary        = "summary"
)

// KeepLast keeps the last N messages; see [Processor.KeepLastN].
//
// ExecutionContextInterval controls execution-status injection:
// nil injects on every invocation, 0 disables injection, and k
// injects on every k-th invocation.
type KeepLast struct {
	N                        int
	ExecutionContextInterval *int
}

// AdaptiveWindow keeps the most recent messages fitting in
// TokenBudget; see [Processor.AdaptiveWindowTrim].
// ExecutionContextInterval works as in [KeepLast].
type AdaptiveWindow struct {
	TokenBudget              int
	ExecutionContextInterval *int
}

// CompressTools truncates tool content of all but the
// KeepRecentRounds most recent rounds; see
// [Processor.CompressEarlierToolRounds].
type CompressTools struct {
	Compressor       *ToolCallCompressor
	KeepRecentRounds int
}

// Summary summarizes older history with Model once the context
// exceeds CompressionThreshold tokens, keeping the most recent
// KeepRecentTokens tokens verbatim; see [Processor.SummarizeAndTrim].
type Summary struct {
	KeepRecentTokens     int
	CompressionThreshold int
	Model                ctxwindow.Model
}

func (KeepLast) Name() string       { return TagKeepLast }
func (AdaptiveWindow) Name() string { return TagAdaptiveWindow }
func (CompressTools) Name() string  { return TagCompressTools }
func (Summary) Name() string        { return TagSummary }

func (KeepLast) isStrategy()       {}
func (AdaptiveWindow) isStrategy() {}
func (CompressTools) isStrategy()  {}
func (Summary) isStrategy()        {}

// Interval returns a pointer to n, for ExecutionContextInterval
// fields.
func Interval(n int) *int {
	return &n
}

// ExecutionContextInterval returns the interval configured on s,
// and whether s carries one at all. Only KeepLast and
// AdaptiveWindow do.
func ExecutionContextInterval(s Strategy) (*int, bool) {
	switch v := s.(type) {
	case KeepLast:
		return v.ExecutionContextInterval, true
	case AdaptiveWindow:
		return v.ExecutionContextInterval, true
	default:
		return nil, false
	}
}

// Normalize returns s with pointer forms (*KeepLast etc.)
// dereferenced, so consumers only switch on value types. A nil
// strategy or nil pointer is a contract violation.
func Normalize(s Strategy) (Strategy, error) {
	switch v := s.(type) {
	case nil:
		return nil, fmt.Errorf(
			"%w: strategy is nil", ctxwindow.ErrContractViolation,
		)
	case *KeepLast:
		if v != nil {
			return *v, nil
		}
	case *AdaptiveWindow:
		if v != nil {
			return *v, nil
		}
	case *CompressTools:
		if v != nil {
			return *v, nil
		}
	case *Summary:
		if v != nil {
			return *v, nil
		}
	case KeepLast, AdaptiveWindow, CompressTools, Summary:
		return s, nil
	default:
		return nil, fmt.Errorf(
			"%w: unrecognized strategy %T",
			ctxwindow.ErrContractViolation, s,
		)
	}
	return nil, fmt.Errorf(
		"%w: strategy %T is nil", ctxwindow.ErrContractViolation, s,
	)
}

// ValidateStrategy normalizes s and checks its parameters.
// Out-of-range parameters are ctxwindow.ErrInvalidConfig.
func ValidateStrategy(s Strategy) (Strategy, error) {
	s, err := Normalize(s)
	if err != nil {
		return nil, err
	}
	invalid := func(msg string) error {
		return fmt.Errorf(
			"%w: %s: %s", ctxwindow.ErrInvalidConfig, s.Name(), msg,
		)
	}
	negativeInterval := func(interval *int) bool {
		return interval != nil && *interval < 0
	}

	switch v := s.(type) {
	case KeepLast:
		if negativeInterval(v.ExecutionContextInterval) {
			return nil, invalid("execution context interval must be >= 0")
		}
	case AdaptiveWindow:
		if v.TokenBudget < 0 {
			return nil, invalid("token budget must be >= 0")
		}
		if negativeInterval(v.ExecutionContextInterval) {
			return nil, invalid("execution context interval must be >= 0")
		}
	case CompressTools:
		if v.Compressor == nil {
			return nil, invalid("compressor is required")
		}
		if v.KeepRecentRounds < 0 {
			return nil, invalid("keep recent rounds must be >= 0")
		}
	case Summary:
		if v.Model == nil {
			return nil, invalid("model is required")
		}
		if v.KeepRecentTokens < 0 {
			return nil, invalid("keep recent tokens must be >= 0")
		}
		if v.CompressionThreshold <= 0 {
			return nil, invalid("compression threshold must be > 0")
		}
	}
	return s, nil
}
