// Package history identifies tool-call rounds in a message
// sequence and validates that the tool-call protocol is intact.
//
// A round is one assistant message carrying tool calls plus every
// tool-result message immediately following it. Round-based
// compaction protects or compresses whole rounds, never halves.
package history

import (
	"fmt"
	"strings"

	"github.com/rickchristie/ctxwindow"
)

// maxListedOffenders caps how many offending tool calls a
// ProtocolError message enumerates.
const maxListedOffenders = 3

// Round is the index range [Start, End) of one round within the
// slice it was identified in. msgs[Start] is the assistant
// message; msgs[Start+1:End] are its tool results.
type Round struct {
	Start int
	End   int
}

// Assistant returns the assistant message of the round.
func (r Round) Assistant(
	msgs []*ctxwindow.Message,
) *ctxwindow.Message {
	return msgs[r.Start]
}

// Messages returns every message of the round.
func (r Round) Messages(
	msgs []*ctxwindow.Message,
) []*ctxwindow.Message {
	return msgs[r.Start:r.End]
}

// Len returns the number of messages in the round.
func (r Round) Len() int {
	return r.End - r.Start
}

// ProtocolError reports a broken tool-call protocol. It matches
// ctxwindow.ErrProtocolIntegrity with errors.Is.
type ProtocolError struct {
	// Missing holds tool-call IDs without a matching result.
	Missing []string

	// Orphaned holds tool-result IDs without a matching call.
	Orphaned []string

	// Interrupted holds the ID of an assistant message whose tool
	// calls are not immediately followed by a tool result.
	Interrupted string
}

func (e *ProtocolError) Error() string {
	var parts []string
	if e.Interrupted != "" {
		parts = append(parts, fmt.Sprintf(
			"assistant message %q with tool calls is not "+
				"followed by a tool result",
			e.Interrupted,
		))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf(
			"%d tool call(s) without result: %s",
			len(e.Missing), listOffenders(e.Missing),
		))
	}
	if len(e.Orphaned) > 0 {
		parts = append(parts, fmt.Sprintf(
			"%d tool result(s) without call: %s",
			len(e.Orphaned), listOffenders(e.Orphaned),
		))
	}
	return ctxwindow.ErrProtocolIntegrity.Error() + ": " +
		strings.Join(parts, "; ")
}

func (e *ProtocolError) Unwrap() error {
	return ctxwindow.ErrProtocolIntegrity
}

func listOffenders(ids []string) string {
	shown := ids
	if len(shown) > maxListedOffenders {
		shown = shown[:maxListedOffenders]
	}
	s := strings.Join(shown, ", ")
	if len(ids) > len(shown) {
		s += fmt.Sprintf(" (and %d more)", len(ids)-len(shown))
	}
	return s
}

// IdentifyRounds scans msgs left to right and returns every round.
//
// An assistant message with tool calls must be immediately
// followed by at least one tool-result message. Anything else,
// including the sequence ending right after it, is a protocol
// violation and returns a *ProtocolError at once: a later message
// interleaving with an unresolved tool call cannot be repaired by
// looking further ahead.
func IdentifyRounds(msgs []*ctxwindow.Message) ([]Round, error) {
	var rounds []Round
	for i := 0; i < len(msgs); i++ {
		if !msgs[i].HasToolCalls() {
			continue
		}
		end := i + 1
		for end < len(msgs) && msgs[end].IsToolResult() {
			end++
		}
		if end == i+1 {
			return nil, &ProtocolError{Interrupted: msgs[i].ID}
		}
		rounds = append(rounds, Round{Start: i, End: end})
		i = end - 1
	}
	return rounds, nil
}

// Validate checks that every tool call in msgs has a tool result
// with the same ID somewhere in msgs, and that every tool result
// answers a tool call in msgs. The second rule rejects sequences
// that start with the tail of a round whose assistant message was
// cut away.
//
// On failure the returned *ProtocolError lists up to the first 3
// offenders of each kind. An empty sequence is valid.
func Validate(msgs []*ctxwindow.Message) error {
	rounds, err := IdentifyRounds(msgs)
	if err != nil {
		return err
	}

	calls := make(map[string]bool)
	for _, r := range rounds {
		for _, call := range r.Assistant(msgs).ToolCalls() {
			calls[call.ID] = true
		}
	}

	results := make(map[string]bool)
	var orphaned []string
	for _, m := range msgs {
		for _, resp := range m.ToolResponses() {
			results[resp.ToolCallID] = true
			if !calls[resp.ToolCallID] {
				orphaned = append(orphaned, resp.ToolCallID)
			}
		}
	}

	var missing []string
	for _, r := range rounds {
		for _, call := range r.Assistant(msgs).ToolCalls() {
			if !results[call.ID] {
				missing = append(missing, call.ID)
			}
		}
	}

	if len(missing) == 0 && len(orphaned) == 0 {
		return nil
	}
	return &ProtocolError{Missing: missing, Orphaned: orphaned}
}

// StartsMidRound reports whether msgs begins with a tool-result
// message, i.e. a suffix cut between an assistant message and its
// results.
func StartsMidRound(msgs []*ctxwindow.Message) bool {
	return len(msgs) > 0 && msgs[0].IsToolResult()
}
