package compaction

import (
	"fmt"
	"log/slog"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/history"
	"github.com/tmc/langchaingo/llms"
)

// TokenCounter counts tokens for a model. *tokens.Accountant
// implements it.
type TokenCounter interface {
	Count(model string, msgs []*ctxwindow.Message) (int, error)
	CountMessage(model string, msg *ctxwindow.Message) (int, error)
}

// Error wraps a failure of a compaction operation. Unwrap
// exposes the cause, typically a *history.ProtocolError or one of
// the ctxwindow sentinel errors.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compaction %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Processor implements the compaction operations over a message
// sequence. Every operation returns the edited sequence as
// entries (removal markers first, then retained or new messages)
// and leaves its input untouched.
//
// A Processor holds only read-only configuration and can be
// shared across sessions.
type Processor struct {
	counter TokenCounter
	model   string
	logger  *slog.Logger
	stats   *ctxwindow.Stats
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithStats sets the stats receiving failure counters.
func WithStats(stats *ctxwindow.Stats) ProcessorOption {
	return func(p *Processor) {
		p.stats = stats
	}
}

// NewProcessor creates a Processor that counts tokens for model
// with counter.
func NewProcessor(
	counter TokenCounter,
	model string,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		counter: counter,
		model:   model,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// KeepLastN keeps roughly the last n messages.
//
// A leading system message is always kept and counts toward n.
// The cut starts at len(msgs)-n and moves toward older messages
// until the kept suffix passes history.Validate, so a round is
// never split. If n <= 0 everything except the system message is
// dropped. When len(msgs) <= n the input is returned unchanged.
func (p *Processor) KeepLastN(
	msgs []*ctxwindow.Message,
	n int,
) ([]ctxwindow.Entry, error) {
	if len(msgs) <= n {
		return ctxwindow.KeepAll(msgs), nil
	}

	var system *ctxwindow.Message
	rest := msgs
	if len(msgs) > 0 && msgs[0].Role == llms.ChatMessageTypeSystem {
		system = msgs[0]
		rest = msgs[1:]
		n--
	}

	cut := len(rest) - max(n, 0)
	for ; cut >= 0; cut-- {
		if history.Validate(rest[cut:]) == nil {
			break
		}
	}
	if cut < 0 {
		return nil, &Error{Op: "keep_last", Err: history.Validate(rest)}
	}

	dropped, kept := rest[:cut], rest[cut:]
	out := make([]ctxwindow.Entry, 0, len(msgs))
	out = append(out, ctxwindow.MarkersFor(dropped)...)
	if system != nil {
		out = append(out, system)
	}
	out = append(out, ctxwindow.KeepAll(kept)...)

	p.logger.Debug(
		"keep-last trimmed history",
		"n", n,
		"dropped", len(dropped),
		"kept", len(kept),
	)
	return out, nil
}

// AdaptiveWindowTrim keeps the longest contiguous suffix of msgs
// that fits in budget tokens.
//
// Messages are added from the newest backward until the first one
// that would overflow the budget; nothing older is considered
// after that, even if it would fit. Chronological contiguity
// matters more to the model than packing. Tool results left at the
// head of the suffix without their assistant message are dropped
// too. The kept suffix may be empty.
func (p *Processor) AdaptiveWindowTrim(
	msgs []*ctxwindow.Message,
	budget int,
) ([]ctxwindow.Entry, error) {
	split, err := p.partitionByTokens(msgs, budget)
	if err != nil {
		return nil, &Error{Op: "adaptive_window", Err: err}
	}

	dropped, kept := msgs[:split], msgs[split:]
	if err := history.Validate(kept); err != nil {
		return nil, &Error{Op: "adaptive_window", Err: err}
	}

	p.logger.Debug(
		"adaptive window trimmed history",
		"budget", budget,
		"dropped", len(dropped),
		"kept", len(kept),
	)
	return append(
		ctxwindow.MarkersFor(dropped),
		ctxwindow.KeepAll(kept)...,
	), nil
}

// CompressEarlierToolRounds applies compressor to every message of
// every round except the keepRecentRounds most recent ones.
// Messages outside rounds are never touched. When there are at
// most keepRecentRounds rounds the input is returned unchanged.
//
// Compressed messages keep their IDs, so a store that replaces by
// ID (see ctxwindow.Merge) swaps them in place. No removal markers
// are produced.
func (p *Processor) CompressEarlierToolRounds(
	msgs []*ctxwindow.Message,
	compressor *ToolCallCompressor,
	keepRecentRounds int,
) ([]ctxwindow.Entry, error) {
	keepRecentRounds = max(keepRecentRounds, 0)

	rounds, err := history.IdentifyRounds(msgs)
	if err != nil {
		return nil, &Error{Op: "compress_tools", Err: err}
	}
	if len(rounds) <= keepRecentRounds {
		return ctxwindow.KeepAll(msgs), nil
	}
	if compressor == nil {
		return nil, &Error{
			Op:  "compress_tools",
			Err: fmt.Errorf("%w: compressor is nil", ctxwindow.ErrInvalidConfig),
		}
	}

	out := make([]*ctxwindow.Message, len(msgs))
	copy(out, msgs)
	compressed := 0
	for _, r := range rounds[:len(rounds)-keepRecentRounds] {
		for i := r.Start; i < r.End; i++ {
			out[i] = compressor.Compress(msgs[i])
			if out[i] != msgs[i] {
				compressed++
			}
		}
	}

	if err := history.Validate(out); err != nil {
		return nil, &Error{Op: "compress_tools", Err: err}
	}

	p.logger.Debug(
		"compressed earlier tool rounds",
		"rounds", len(rounds),
		"protected", keepRecentRounds,
		"compressed", compressed,
	)
	return ctxwindow.KeepAll(out), nil
}

// partitionByTokens returns the index splitting msgs into an
// older part and the longest recent contiguous part fitting in
// budget. The recent part never starts with a tool result.
func (p *Processor) partitionByTokens(
	msgs []*ctxwindow.Message,
	budget int,
) (int, error) {
	used := 0
	split := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		n, err := p.counter.CountMessage(p.model, msgs[i])
		if err != nil {
			return 0, err
		}
		if used+n > budget {
			break
		}
		used += n
		split = i
	}
	for split < len(msgs) && history.StartsMidRound(msgs[split:]) {
		split++
	}
	return split, nil
}
