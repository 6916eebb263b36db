// Package tokens counts the tokens a message sequence occupies in
// a model's context window.
//
// Counting is exact when a [Tokenizer] knows the model and
// approximate otherwise; see [Accountant.Count].
package tokens

import (
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rickchristie/ctxwindow"
	"github.com/zeebo/xxh3"
)

// PerMessageOverhead is the number of tokens charged for every
// message on top of its content, covering role and separator
// tokens added by chat templates. It also makes counts strictly
// monotonic: appending a message always adds at least this much.
const PerMessageOverhead = 4

// DefaultCacheSize is the default number of per-message counts
// the Accountant memoizes.
const DefaultCacheSize = 4096

// Accountant counts tokens for message sequences.
//
// One Accountant may be shared by any number of hooks and
// sessions. It holds no per-session state, only a memo of exact
// per-message counts keyed by model and content.
type Accountant struct {
	tokenizer Tokenizer
	cache     *lru.Cache[uint64, int]
	logger    *slog.Logger
	stats     *ctxwindow.Stats
}

// Option configures an Accountant.
type Option func(*Accountant)

// WithLogger sets the logger used to report tokenizer fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accountant) {
		a.logger = logger
	}
}

// WithStats sets the stats that receive
// [ctxwindow.KeyTokenizerFallbacks] increments.
func WithStats(stats *ctxwindow.Stats) Option {
	return func(a *Accountant) {
		a.stats = stats
	}
}

// WithCacheSize sets the memo size. Sizes below 1 disable the
// memo.
func WithCacheSize(size int) Option {
	return func(a *Accountant) {
		if size < 1 {
			a.cache = nil
			return
		}
		a.cache, _ = lru.New[uint64, int](size)
	}
}

// NewAccountant creates an Accountant using tokenizer for exact
// counts. A nil tokenizer makes every count approximate.
func NewAccountant(tokenizer Tokenizer, opts ...Option) *Accountant {
	cache, _ := lru.New[uint64, int](DefaultCacheSize)
	a := &Accountant{
		tokenizer: tokenizer,
		cache:     cache,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Count returns the number of tokens msgs occupy for model.
//
// model is required; an empty model returns
// [ctxwindow.ErrMissingModel]. When the tokenizer fails for any
// message the whole sequence is counted with [Approximate]
// instead, so one count never mixes exact and approximate
// figures. The fallback is logged as a warning and is not an
// error.
//
// The count is deterministic for identical input and never
// decreases when a message is appended.
func (a *Accountant) Count(
	model string,
	msgs []*ctxwindow.Message,
) (int, error) {
	if model == "" {
		return 0, ctxwindow.ErrMissingModel
	}

	total := 0
	for _, m := range msgs {
		n, err := a.exact(model, m)
		if err != nil {
			a.reportFallback(model, err)
			return approximateAll(msgs), nil
		}
		total += n
	}
	return total, nil
}

// CountMessage returns the tokens a single message occupies,
// overhead included. It follows the same fallback rule as Count.
func (a *Accountant) CountMessage(
	model string,
	msg *ctxwindow.Message,
) (int, error) {
	if model == "" {
		return 0, ctxwindow.ErrMissingModel
	}
	n, err := a.exact(model, msg)
	if err != nil {
		a.reportFallback(model, err)
		return approximateOne(msg), nil
	}
	return n, nil
}

func (a *Accountant) exact(
	model string,
	msg *ctxwindow.Message,
) (int, error) {
	if a.tokenizer == nil {
		return 0, fmt.Errorf("no tokenizer configured")
	}

	text := msg.Render()
	key := xxh3.HashString(model + "\x00" + text)
	if a.cache != nil {
		if n, ok := a.cache.Get(key); ok {
			return n, nil
		}
	}

	n, err := a.tokenizer.CountText(model, text)
	if err != nil {
		return 0, err
	}
	n += PerMessageOverhead
	if a.cache != nil {
		a.cache.Add(key, n)
	}
	return n, nil
}

func (a *Accountant) reportFallback(model string, err error) {
	a.stats.IncrCounter(ctxwindow.KeyTokenizerFallbacks, 1)
	a.logger.Warn(
		"exact token counting failed, using approximate count",
		"model", model,
		"error", err,
	)
}

func approximateAll(msgs []*ctxwindow.Message) int {
	total := 0
	for _, m := range msgs {
		total += approximateOne(m)
	}
	return total
}

func approximateOne(msg *ctxwindow.Message) int {
	return Approximate(msg.Render()) + PerMessageOverhead
}
