// Package compaction implements the operations that shrink a
// conversation to fit a model's context window, and the
// [Strategy] values selecting between them.
//
// # Operations
//
//   - [Processor.KeepLastN]: keep the last N messages
//   - [Processor.AdaptiveWindowTrim]: keep the most recent
//     messages fitting in a token budget
//   - [Processor.CompressEarlierToolRounds]: truncate tool
//     content of older rounds with a [ToolCallCompressor]
//   - [Processor.SummarizeAndTrim]: replace older history with
//     an LLM summary, extending the previous one
//
// Every operation returns removal markers for what it dropped
// followed by what it kept, and every returned sequence passes
// history.Validate: a tool call never loses its result.
//
// # Contiguity over packing
//
// AdaptiveWindowTrim and SummarizeAndTrim both keep a contiguous
// run of the most recent messages. They stop at the first message
// that does not fit instead of skipping it to pack in smaller,
// older ones. Message order carries causal meaning for the model.
package compaction
