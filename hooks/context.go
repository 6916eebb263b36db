package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/compaction"
	"github.com/rickchristie/ctxwindow/tokens"
)

// ExecutionPlan renders the agent's execution status (plan steps,
// progress, pending work) as text for injection into the context.
type ExecutionPlan interface {
	BuildContextPrompt(ctx context.Context) (string, error)
}

// Config configures a [ContextHook].
type Config struct {
	// Strategy selects the compaction operation. Required.
	Strategy compaction.Strategy

	// TokenModel identifies the model whose tokenizer counts the
	// context. Required.
	TokenModel string

	// Accountant counts tokens. Defaults to a tokens.Accountant
	// backed by tiktoken.
	Accountant compaction.TokenCounter

	// Plan, when set, renders the execution-status message.
	Plan ExecutionPlan

	// ExecutionContextInterval controls status injection for
	// strategies that do not carry their own interval, and for
	// KeepLast and AdaptiveWindow when theirs is nil. nil injects on
	// every invocation, 0 never, k every k-th invocation.
	ExecutionContextInterval *int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Stats receives counters and the context-token gauge. May be
	// nil.
	Stats *ctxwindow.Stats
}

// ContextHook keeps the conversation within the model's context
// window before every model call.
//
// Each invocation:
//  1. injects an execution-status message when the interval allows
//     it, replacing the previous one
//  2. counts the context tokens, status message included
//  3. decides whether to compress: always for KeepLast,
//     AdaptiveWindow and CompressTools (the operation itself
//     decides whether anything changes), and for Summary only
//     once the count exceeds CompressionThreshold
//  4. runs the strategy's operation
//
// The returned state holds the removal markers carried in from the
// input, then the operation's markers and messages. Invocations is
// incremented; RunningSummary only changes under Summary.
//
// A ContextHook holds configuration only. Per-session data lives in
// the State, so one hook may serve many sessions concurrently.
type ContextHook struct {
	strategy  compaction.Strategy
	model     string
	counter   compaction.TokenCounter
	processor *compaction.Processor
	plan      ExecutionPlan
	interval  *int
	logger    *slog.Logger
	stats     *ctxwindow.Stats
}

var (
	_ ctxwindow.Hook      = (*ContextHook)(nil)
	_ ctxwindow.AsyncHook = (*ContextHook)(nil)
)

// NewContextHook validates cfg and creates a ContextHook.
func NewContextHook(cfg Config) (*ContextHook, error) {
	if cfg.TokenModel == "" {
		return nil, ctxwindow.ErrMissingModel
	}
	strategy, err := compaction.ValidateStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.ExecutionContextInterval != nil &&
		*cfg.ExecutionContextInterval < 0 {
		return nil, fmt.Errorf(
			"%w: execution context interval must be >= 0",
			ctxwindow.ErrInvalidConfig,
		)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	counter := cfg.Accountant
	if counter == nil {
		counter = tokens.NewAccountant(
			tokens.NewTiktoken(),
			tokens.WithLogger(logger),
			tokens.WithStats(cfg.Stats),
		)
	}

	interval := cfg.ExecutionContextInterval
	if own, ok := compaction.ExecutionContextInterval(strategy); ok &&
		own != nil {
		interval = own
	}

	return &ContextHook{
		strategy: strategy,
		model:    cfg.TokenModel,
		counter:  counter,
		processor: compaction.NewProcessor(
			counter,
			cfg.TokenModel,
			compaction.WithLogger(logger),
			compaction.WithStats(cfg.Stats),
		),
		plan:     cfg.Plan,
		interval: interval,
		logger:   logger.With("strategy", strategy.Name()),
		stats:    cfg.Stats,
	}, nil
}

// Strategy returns the validated strategy.
func (h *ContextHook) Strategy() compaction.Strategy {
	return h.strategy
}

// Invoke implements ctxwindow.Hook. A summarization model call
// blocks the calling goroutine.
func (h *ContextHook) Invoke(
	ctx context.Context,
	state *ctxwindow.State,
) (*ctxwindow.State, error) {
	return h.run(ctx, state, compaction.Blocking)
}

// InvokeAsync implements ctxwindow.AsyncHook. Token counting and
// validation still run synchronously on the hook goroutine; only
// the summarization model call is abandoned when ctx is done.
func (h *ContextHook) InvokeAsync(
	ctx context.Context,
	state *ctxwindow.State,
) <-chan ctxwindow.HookResult {
	out := make(chan ctxwindow.HookResult, 1)
	go func() {
		defer close(out)
		s, err := h.run(ctx, state, compaction.Suspending)
		out <- ctxwindow.HookResult{State: s, Err: err}
	}()
	return out
}

func (h *ContextHook) run(
	ctx context.Context,
	state *ctxwindow.State,
	invoke compaction.Invoker,
) (*ctxwindow.State, error) {
	if state == nil {
		return nil, fmt.Errorf(
			"%w: state is nil", ctxwindow.ErrContractViolation,
		)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.stats.IncrCounter(ctxwindow.KeyInvocations, 1)

	msgs := ctxwindow.AssignIDs(state.Live())
	msgs, stale := h.maybeInjectContext(ctx, state.Invocations, msgs)

	count, err := h.counter.Count(h.model, msgs)
	if err != nil {
		return nil, err
	}
	h.stats.SetGauge(ctxwindow.KeyContextTokens, float64(count))

	entries := ctxwindow.KeepAll(msgs)
	summary := state.RunningSummary
	if h.shouldCompress(count) {
		entries, summary, err = h.compress(
			ctx, msgs, state.RunningSummary, invoke,
		)
		if err != nil {
			return nil, err
		}
		h.recordCompaction(msgs, entries, count)
	} else {
		h.logger.Debug(
			"context below threshold, not compressing",
			"tokens", count,
		)
	}

	pending := state.Pending()
	out := make([]ctxwindow.Entry, 0, len(pending)+len(stale)+len(entries))
	for _, m := range pending {
		out = append(out, m)
	}
	out = append(out, stale...)
	out = append(out, entries...)

	next := state.Clone()
	next.Messages = out
	next.RunningSummary = summary
	next.Invocations = state.Invocations + 1
	return next, nil
}

// maybeInjectContext appends a fresh execution-status message to
// msgs when the interval allows it. Earlier status messages are
// taken out of msgs and returned as removal markers. Failures are
// logged and leave msgs unchanged.
func (h *ContextHook) maybeInjectContext(
	ctx context.Context,
	invocations int,
	msgs []*ctxwindow.Message,
) ([]*ctxwindow.Message, []ctxwindow.Entry) {
	if !h.shouldInject(invocations) {
		return msgs, nil
	}

	status, err := h.plan.BuildContextPrompt(ctx)
	if err != nil {
		h.stats.IncrCounter(ctxwindow.KeyInjectionFailures, 1)
		h.logger.Warn(
			"building execution status failed, skipping injection",
			"error", err,
			"invocation", invocations,
		)
		return msgs, nil
	}
	if status == "" {
		return msgs, nil
	}

	out := make([]*ctxwindow.Message, 0, len(msgs)+1)
	var stale []ctxwindow.Entry
	for _, m := range msgs {
		if m.Origin == ctxwindow.OriginExecutionStatus {
			stale = append(stale, ctxwindow.RemovalMarker{DeleteID: m.ID})
			continue
		}
		out = append(out, m)
	}
	statusMsg := ctxwindow.NewHumanMessage(status)
	statusMsg.Origin = ctxwindow.OriginExecutionStatus
	return append(out, statusMsg), stale
}

func (h *ContextHook) shouldInject(invocations int) bool {
	if h.plan == nil {
		return false
	}
	if h.interval == nil {
		return true
	}
	if *h.interval == 0 {
		return false
	}
	return invocations%*h.interval == 0
}

func (h *ContextHook) shouldCompress(count int) bool {
	if s, ok := h.strategy.(compaction.Summary); ok {
		return count > s.CompressionThreshold
	}
	return true
}

func (h *ContextHook) compress(
	ctx context.Context,
	msgs []*ctxwindow.Message,
	runningSummary string,
	invoke compaction.Invoker,
) ([]ctxwindow.Entry, string, error) {
	var (
		entries []ctxwindow.Entry
		err     error
	)
	switch s := h.strategy.(type) {
	case compaction.KeepLast:
		entries, err = h.processor.KeepLastN(msgs, s.N)
	case compaction.AdaptiveWindow:
		entries, err = h.processor.AdaptiveWindowTrim(msgs, s.TokenBudget)
	case compaction.CompressTools:
		entries, err = h.processor.CompressEarlierToolRounds(
			msgs, s.Compressor, s.KeepRecentRounds,
		)
	case compaction.Summary:
		res, serr := h.processor.SummarizeAndTrimWith(
			ctx, msgs, s.KeepRecentTokens, s.Model, runningSummary, invoke,
		)
		if serr != nil {
			return nil, "", serr
		}
		return res.Entries, res.RunningSummary, nil
	default:
		return nil, "", fmt.Errorf(
			"%w: unrecognized strategy %T",
			ctxwindow.ErrContractViolation, h.strategy,
		)
	}
	if err != nil {
		return nil, "", err
	}
	return entries, runningSummary, nil
}

func (h *ContextHook) recordCompaction(
	before []*ctxwindow.Message,
	entries []ctxwindow.Entry,
	count int,
) {
	kept, markers := ctxwindow.SplitEntries(entries)
	changed := len(markers) > 0 || len(kept) != len(before)
	for i := 0; !changed && i < len(kept); i++ {
		changed = kept[i] != before[i]
	}
	if !changed {
		h.logger.Debug("nothing to compress", "tokens", count)
		return
	}

	h.stats.IncrCounter(ctxwindow.KeyCompactions, 1)
	h.stats.IncrCounter(
		ctxwindow.KeyCompactionsFor.For(h.strategy.Name()), 1,
	)
	h.stats.IncrCounter(ctxwindow.KeyMessagesDropped, int64(len(markers)))
	h.logger.Info(
		"compacted context",
		"tokens", count,
		"dropped", len(markers),
		"kept", len(kept),
	)
}
