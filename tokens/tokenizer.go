package tokens

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts the exact tokens of text for a model.
// Implementations return an error when they have no encoding for
// the model; the Accountant then falls back to [Approximate].
//
// Failures must depend on the model only, never on the text: the
// Accountant approximates a whole sequence once any message fails,
// so a tokenizer that rejects some texts for a model it otherwise
// supports can make a longer sequence count lower than a shorter
// one.
type Tokenizer interface {
	CountText(model, text string) (int, error)
}

// Tiktoken is a [Tokenizer] backed by tiktoken-go. Encodings are
// loaded once per model and cached.
//
// tiktoken-go downloads BPE ranks on first use of an encoding, so
// the first call for a model may fail in offline environments.
// Failures are not cached; the next call retries.
type Tiktoken struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewTiktoken creates a Tiktoken tokenizer.
func NewTiktoken() *Tiktoken {
	return &Tiktoken{
		encodings: make(map[string]*tiktoken.Tiktoken),
	}
}

// CountText implements Tokenizer.
func (t *Tiktoken) CountText(model, text string) (int, error) {
	enc, err := t.encoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (t *Tiktoken) encoding(
	model string,
) (*tiktoken.Tiktoken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if enc, ok := t.encodings[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf(
			"tiktoken encoding for %q: %w", model, err,
		)
	}
	t.encodings[model] = enc
	return enc, nil
}

// Approximate estimates the token count of text from its word
// count: four tokens per three words, rounded up. Text without
// any whitespace-separated word but with content still counts as
// one token.
func Approximate(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		if text == "" {
			return 0
		}
		return 1
	}
	return int(math.Ceil(float64(words) * 4 / 3))
}

// Compile-time check.
var _ Tokenizer = (*Tiktoken)(nil)
