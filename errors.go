package ctxwindow

import "errors"

// Sentinel errors. Wrapped errors returned by this module match
// one of these with errors.Is.
var (
	// ErrContractViolation indicates a caller bug: nil state, a
	// state without messages, or an unrecognized strategy.
	// Never retried.
	ErrContractViolation = errors.New("ctxwindow: contract violation")

	// ErrProtocolIntegrity indicates a tool call without a
	// matching result (or the reverse) in a message sequence.
	// It points at a bug upstream of the engine and is never
	// masked.
	ErrProtocolIntegrity = errors.New("ctxwindow: protocol integrity violation")

	// ErrMissingModel is returned when token accounting is asked
	// to count without a model identifier.
	ErrMissingModel = errors.New("ctxwindow: model identifier is required")

	// ErrInvalidConfig indicates an invalid configuration value.
	ErrInvalidConfig = errors.New("ctxwindow: invalid configuration")

	// ErrSummarization indicates the summarization model failed or
	// returned empty content. Summarize-and-trim recovers from it
	// by leaving the state unchanged, so callers only see it in
	// logs and the summarization failure counter.
	ErrSummarization = errors.New("ctxwindow: summarization failed")
)
