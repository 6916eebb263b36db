package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/history"
	"github.com/tmc/langchaingo/llms"
)

// SummaryPreamble opens the synthetic context message that
// replaces summarized history.
const SummaryPreamble = "The earlier part of this conversation " +
	"was summarized to save context space. The summary below " +
	"stands in for it; continue the work from where it " +
	"leaves off.\n\n"

// CreateSummaryPrompt is the instruction used when no running
// summary exists yet.
//
// Like [ExtendSummaryPrompt] it frames the summary as a handoff
// to another instance of the agent, asks for named sections, and
// requires preserving the user's original request and objectives,
// the original plan, every referenced file path, the current plan
// and progress, and key results.
const CreateSummaryPrompt = `You are creating a ` +
	`continuation checkpoint for an AI agent. Another ` +
	`instance will resume this work using only your ` +
	`summary and the recent messages retained after it. ` +
	`Summarize the conversation provided by the user ` +
	`message so work can continue without loss of ` +
	`critical details.

Write a summary with the following sections. Include ` +
	`more detail for recent activity and less for ` +
	`older completed work.

### Objectives
The user's original request and objectives, and any ` +
	`refinements received since. Quote the most recent ` +
	`user requests verbatim.

### Original Plan
The plan the agent set out to follow, as first stated.

### Files & Identifiers
Every file path referenced, plus exact names, values, ` +
	`URLs, function signatures, and configuration details.

### Progress & Current Plan
What has been done, what is in progress, and the plan ` +
	`as it stands now.

### Key Results
Important outputs, findings, and errors with their ` +
	`resolutions. Include specific error messages.

## Rules
- Preserve exact identifiers: names, paths, values, ` +
	`error messages, and configuration details
- Do not invent new tasks or plan beyond what was asked
- Do NOT treat this as a conclusion: the agent's work ` +
	`continues after this checkpoint
- Write ONLY the summary sections, no preamble`

// ExtendSummaryPrompt is the instruction used when a running
// summary exists. The model receives the existing summary and the
// messages that happened since, and rewrites the summary as a
// whole; this module never merges summary text itself.
const ExtendSummaryPrompt = `You are updating a ` +
	`continuation checkpoint for an AI agent. Another ` +
	`instance will resume this work using only your ` +
	`summary and the recent messages retained after it. ` +
	`The user message holds the existing summary followed ` +
	`by the activity that happened since. Produce one ` +
	`updated summary that integrates the new activity.

Keep the same sections, updating each in place rather than ` +
	`appending. Include more detail for recent activity and ` +
	`less for older completed work.

### Objectives
The user's original request and objectives, and any ` +
	`refinements received since. Keep the original request ` +
	`even if it is only in the existing summary.

### Original Plan
The plan the agent set out to follow, as first stated. ` +
	`Carry it over from the existing summary unchanged.

### Files & Identifiers
Every file path referenced in the existing summary or the ` +
	`new activity, plus exact names, values, URLs, function ` +
	`signatures, and configuration details.

### Progress & Current Plan
What has been done, what is in progress, and the plan as ` +
	`it stands now. Move finished items out of the plan.

### Key Results
Important outputs, findings, and errors with their ` +
	`resolutions, from both the existing summary and the ` +
	`new activity.

## Rules
- Preserve exact identifiers: names, paths, values, ` +
	`error messages, and configuration details
- Do not drop information from the existing summary ` +
	`unless the new activity supersedes it
- Do not invent new tasks or plan beyond what was asked
- Do NOT treat this as a conclusion: the agent's work ` +
	`continues after this checkpoint
- Write ONLY the summary sections, no preamble`

// Invoker performs the summarization model call. [Blocking] and
// [Suspending] are the two implementations; the rest of
// summarize-and-trim is shared.
type Invoker func(
	ctx context.Context,
	model ctxwindow.Model,
	messages []llms.MessageContent,
) (*ctxwindow.ContentResponse, error)

// Blocking calls the model on the caller's goroutine.
func Blocking(
	ctx context.Context,
	model ctxwindow.Model,
	messages []llms.MessageContent,
) (*ctxwindow.ContentResponse, error) {
	return model.GenerateContent(ctx, messages)
}

// Suspending calls the model on its own goroutine and waits for
// either the answer or ctx. When ctx wins, the call keeps running
// out of band and its result is discarded.
func Suspending(
	ctx context.Context,
	model ctxwindow.Model,
	messages []llms.MessageContent,
) (*ctxwindow.ContentResponse, error) {
	type result struct {
		resp *ctxwindow.ContentResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := model.GenerateContent(ctx, messages)
		done <- result{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SummaryResult is the outcome of summarize-and-trim.
type SummaryResult struct {
	// Entries is the edited message sequence.
	Entries []ctxwindow.Entry

	// RunningSummary is the new summary on success and the input
	// summary otherwise.
	RunningSummary string

	// Summarized reports whether history was summarized. False
	// means a no-op: nothing to summarize, or the model failed.
	Summarized bool
}

// SummaryOutcome is delivered by [Processor.SummarizeAndTrimAsync].
type SummaryOutcome struct {
	Result *SummaryResult
	Err    error
}

// SummarizeAndTrim replaces older history with an LLM summary,
// blocking on the model call. See [Processor.SummarizeAndTrimWith].
func (p *Processor) SummarizeAndTrim(
	ctx context.Context,
	msgs []*ctxwindow.Message,
	keepRecentTokens int,
	model ctxwindow.Model,
	runningSummary string,
) (*SummaryResult, error) {
	return p.SummarizeAndTrimWith(
		ctx, msgs, keepRecentTokens, model, runningSummary, Blocking,
	)
}

// SummarizeAndTrimAsync is the suspending form of
// SummarizeAndTrim. The channel receives one outcome and is
// closed.
func (p *Processor) SummarizeAndTrimAsync(
	ctx context.Context,
	msgs []*ctxwindow.Message,
	keepRecentTokens int,
	model ctxwindow.Model,
	runningSummary string,
) <-chan SummaryOutcome {
	out := make(chan SummaryOutcome, 1)
	go func() {
		defer close(out)
		res, err := p.SummarizeAndTrimWith(
			ctx, msgs, keepRecentTokens, model, runningSummary,
			Suspending,
		)
		out <- SummaryOutcome{Result: res, Err: err}
	}()
	return out
}

// SummarizeAndTrimWith replaces older history with an LLM summary.
//
// A leading system prompt is kept as is. The rest of msgs is
// split like [Processor.AdaptiveWindowTrim]: the most recent
// messages fitting in keepRecentTokens are kept verbatim,
// everything older is summarized. The model gets
// [CreateSummaryPrompt] or, when runningSummary is set,
// [ExtendSummaryPrompt], plus a transcript of the older messages.
//
// On success the result is markers(older) ++ systemPrompt ++
// contextMessage ++ recent, where contextMessage is a system message holding
// [SummaryPreamble] and the summary, and the new summary replaces
// runningSummary.
//
// Nothing to summarize, a model error, or an empty answer are
// no-ops: the input comes back unchanged with Summarized false.
// Failures are logged and counted, not returned. Cancellation of
// ctx is the exception and is returned as an error.
func (p *Processor) SummarizeAndTrimWith(
	ctx context.Context,
	msgs []*ctxwindow.Message,
	keepRecentTokens int,
	model ctxwindow.Model,
	runningSummary string,
	invoke Invoker,
) (*SummaryResult, error) {
	noop := &SummaryResult{
		Entries:        ctxwindow.KeepAll(msgs),
		RunningSummary: runningSummary,
	}

	system, rest := splitSystemPrompt(msgs)
	split, err := p.partitionByTokens(rest, keepRecentTokens)
	if err != nil {
		return nil, &Error{Op: "summary", Err: err}
	}
	toSummarize, toKeep := rest[:split], rest[split:]
	if len(toSummarize) == 0 {
		return noop, nil
	}
	if model == nil {
		return nil, &Error{
			Op:  "summary",
			Err: fmt.Errorf("%w: model is nil", ctxwindow.ErrInvalidConfig),
		}
	}

	request := BuildSummaryRequest(toSummarize, runningSummary)
	resp, err := invoke(ctx, model, request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Op: "summary", Err: ctxErr}
		}
		p.summaryFailed(err, len(toSummarize))
		return noop, nil
	}

	summary := strings.TrimSpace(resp.FirstContent())
	if summary == "" {
		p.summaryFailed(
			fmt.Errorf("%w: empty response", ctxwindow.ErrSummarization),
			len(toSummarize),
		)
		return noop, nil
	}

	contextMsg := &ctxwindow.Message{
		ID:   uuid.NewString(),
		Role: llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{
			llms.TextContent{Text: SummaryPreamble + summary},
		},
		Origin: ctxwindow.OriginSummary,
	}
	kept := make([]*ctxwindow.Message, 0, len(toKeep)+2)
	if system != nil {
		kept = append(kept, system)
	}
	kept = append(kept, contextMsg)
	kept = append(kept, toKeep...)
	if err := history.Validate(kept); err != nil {
		return nil, &Error{Op: "summary", Err: err}
	}

	p.logger.Info(
		"summarized history",
		"summarized", len(toSummarize),
		"kept", len(toKeep),
		"extended", runningSummary != "",
	)
	return &SummaryResult{
		Entries: append(
			ctxwindow.MarkersFor(toSummarize),
			ctxwindow.KeepAll(kept)...,
		),
		RunningSummary: summary,
		Summarized:     true,
	}, nil
}

// splitSystemPrompt separates a leading caller-supplied system
// message, which is never summarized.
func splitSystemPrompt(
	msgs []*ctxwindow.Message,
) (*ctxwindow.Message, []*ctxwindow.Message) {
	if len(msgs) > 0 &&
		msgs[0].Role == llms.ChatMessageTypeSystem &&
		msgs[0].Origin == ctxwindow.OriginConversation {
		return msgs[0], msgs[1:]
	}
	return nil, msgs
}

func (p *Processor) summaryFailed(err error, pending int) {
	p.stats.IncrCounter(ctxwindow.KeySummarizationFailures, 1)
	p.logger.Error(
		"summarization failed, leaving history unchanged",
		"error", err,
		"pending", pending,
	)
}

// BuildSummaryRequest builds the model request summarizing msgs,
// extending runningSummary when it is set. The instruction is the
// system message; the existing summary and the transcript are
// the user message.
//
// When a running summary exists, earlier synthetic summary
// messages are left out of the transcript: the running summary
// already covers them.
func BuildSummaryRequest(
	msgs []*ctxwindow.Message,
	runningSummary string,
) []llms.MessageContent {
	instruction := CreateSummaryPrompt
	var sb strings.Builder
	if runningSummary != "" {
		instruction = ExtendSummaryPrompt
		sb.WriteString("## Existing Summary\n\n")
		sb.WriteString(runningSummary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## New Activity\n\n")

	n := 0
	for _, m := range msgs {
		if runningSummary != "" &&
			m.Origin == ctxwindow.OriginSummary {
			continue
		}
		n++
		fmt.Fprintf(&sb, "### Message %d\n\n", n)
		sb.WriteString(m.Render())
		sb.WriteString("\n\n")
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, instruction),
		llms.TextParts(llms.ChatMessageTypeHuman, sb.String()),
	}
}
