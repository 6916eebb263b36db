// Package hooks provides the pre-model hooks that keep a
// conversation within its context window.
//
// # Hooks
//
//   - [ContextHook]: counts the context, injects execution status and
//     applies a compaction.Strategy
//   - [Chain]: runs several hooks in order as one step
//
// Both implement ctxwindow.Hook (blocking) and ctxwindow.AsyncHook
// (suspending).
//
// # Creating a Context Hook
//
//	hook, err := hooks.NewContextHook(hooks.Config{
//	    Strategy: compaction.Summary{
//	        KeepRecentTokens:     4000,
//	        CompressionThreshold: 24000,
//	        Model:                summarizer,
//	    },
//	    TokenModel: "gpt-4o",
//	    Plan:       planner,
//	    Stats:      stats,
//	})
//
// # Applying the Result
//
// A hook returns edits, not a new history: removal markers first,
// then the messages to keep or insert. The agent loop persists
// them with its own store; ctxwindow.Merge is the reference for
// the expected semantics.
//
//	next, err := chain.Invoke(ctx, state)
//	if err != nil {
//	    return err
//	}
//	store = ctxwindow.Merge(store, next.Messages)
//
// # Example
//
// See integrationtest/cli for a chat loop that composes a
// ContextHook with the YAML state logger from
// integrationtest/loggers.
package hooks
