// Package ctxwindow keeps a growing, tool-using agent conversation
// inside a model's context-window token budget without breaking
// the tool-call protocol: every tool call the model made keeps its
// matching tool result.
//
// # Quick Start
//
//	accountant := tokens.NewAccountant(tokens.NewTiktoken())
//	hook, err := hooks.NewContextHook(hooks.Config{
//	    Strategy:   compaction.AdaptiveWindow{TokenBudget: 8000},
//	    TokenModel: "gpt-4o",
//	    Accountant: accountant,
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Before each model call:
//	next, err := hook.Invoke(ctx, state)
//	if err != nil {
//	    return err
//	}
//	history = ctxwindow.Merge(history, next.Messages)
//
// # Packages
//
//   - ctxwindow: messages, entries, state, hook interfaces, stats
//   - tokens: token accounting with exact and approximate counting
//   - history: tool-call round identification and validation
//   - compaction: the compression operations and strategies
//   - hooks: the per-turn context hook and hook chaining
//   - models: langchaingo model adapter for summarization
//   - config: YAML configuration
//   - schema: JSON Schema builders used to validate configuration
//
// # Edits, not deletions
//
// Hooks return the conversation as a list of [Entry] values:
// messages to keep and [RemovalMarker] tombstones naming messages
// to delete. The caller's store applies them, for example with
// [Merge]. This keeps every history edit replayable.
package ctxwindow
