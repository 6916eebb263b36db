package ctxwindow

// StatKey names a counter or gauge in [Stats].
type StatKey string

// For returns the key with suffix appended, for per-strategy or
// per-model keys such as KeyCompactionsFor.For("summary").
func (k StatKey) For(suffix string) StatKey {
	return k + StatKey(suffix)
}

// Standard key prefix for all ctxwindow keys. Users should use
// their own prefix (e.g., "myapp:") for custom metrics.
const KeyPrefix = "ctxwindow:"

// Hook invocation tracking.
const (
	KeyInvocations StatKey = "ctxwindow:invocations"

	// KeyContextTokens is a gauge holding the token count of the
	// most recent invocation, measured before compression.
	KeyContextTokens StatKey = "ctxwindow:context_tokens"
)

// Compaction tracking keys.
const (
	KeyCompactions     StatKey = "ctxwindow:compactions"
	KeyCompactionsFor  StatKey = "ctxwindow:compactions:" // + strategy name
	KeyMessagesDropped StatKey = "ctxwindow:messages_dropped"
)

// Failure tracking keys. These are recovered failures: the engine
// kept going, but the caller may want to alert on them.
const (
	KeySummarizationFailures StatKey = "ctxwindow:summarization_failures"
	KeyTokenizerFallbacks    StatKey = "ctxwindow:tokenizer_fallbacks"
	KeyInjectionFailures     StatKey = "ctxwindow:injection_failures"
)
