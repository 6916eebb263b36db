package ctxwindow

import (
	"fmt"
	"maps"
)

// Well-known keys for map-shaped state, see [StateFromMap].
const (
	StateKeyMessages       = "messages"
	StateKeyRunningSummary = "running_summary"
	StateKeyInvocations    = "context_invocations"
)

// State is the value threaded through hooks before each model
// call.
//
// Messages holds the conversation as entries. On input it
// normally contains only messages, but removal markers emitted by
// a previous hook that the store has not consumed yet are allowed
// and are carried forward. On output it holds
// removalMarkers ++ retainedOrNewMessages.
//
// RunningSummary is the cumulative summary text, empty when no
// summarization happened yet. Invocations counts completed
// context-hook invocations for the session and drives periodic
// execution-status injection. Values carries caller fields that
// hooks pass through untouched.
type State struct {
	Messages       []Entry
	RunningSummary string
	Invocations    int
	Values         map[string]any
}

// NewState creates a state holding msgs.
func NewState(msgs ...*Message) *State {
	return &State{Messages: KeepAll(msgs)}
}

// Live returns the messages of the state with pending removals
// applied, in order. A marker with an empty DeleteID removes
// nothing.
func (s *State) Live() []*Message {
	msgs, markers := SplitEntries(s.Messages)
	if len(markers) == 0 {
		return msgs
	}
	deleted := make(map[string]bool, len(markers))
	for _, m := range markers {
		if m.DeleteID != "" {
			deleted[m.DeleteID] = true
		}
	}
	live := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == "" || !deleted[m.ID] {
			live = append(live, m)
		}
	}
	return live
}

// Pending returns the removal markers carried by the state.
func (s *State) Pending() []RemovalMarker {
	_, markers := SplitEntries(s.Messages)
	return markers
}

// Clone returns a shallow copy of s with its own Messages slice
// and Values map. Messages themselves are shared; they are
// immutable by convention.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]Entry(nil), s.Messages...)
	if s.Values != nil {
		c.Values = maps.Clone(s.Values)
	}
	return &c
}

// StateFromMap builds a State from a loosely typed state map,
// the shape graph runtimes pass around. The map must carry a
// "messages" key holding []*Message or []Entry; anything else is
// a contract violation. ID-less messages get fresh IDs, see
// [AssignIDs]. Other keys are kept in Values.
func StateFromMap(m map[string]any) (*State, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: state is nil", ErrContractViolation)
	}
	raw, ok := m[StateKeyMessages]
	if !ok {
		return nil, fmt.Errorf(
			"%w: state has no %q field",
			ErrContractViolation, StateKeyMessages,
		)
	}

	s := &State{Values: make(map[string]any)}
	switch v := raw.(type) {
	case []Entry:
		s.Messages = make([]Entry, len(v))
		for i, e := range v {
			if m, ok := e.(*Message); ok {
				e = AssignIDs([]*Message{m})[0]
			}
			s.Messages[i] = e
		}
	case []*Message:
		s.Messages = KeepAll(AssignIDs(v))
	default:
		return nil, fmt.Errorf(
			"%w: %q field has type %T",
			ErrContractViolation, StateKeyMessages, raw,
		)
	}

	for k, v := range m {
		switch k {
		case StateKeyMessages:
		case StateKeyRunningSummary:
			summary, ok := v.(string)
			if !ok && v != nil {
				return nil, fmt.Errorf(
					"%w: %q field has type %T",
					ErrContractViolation, k, v,
				)
			}
			s.RunningSummary = summary
		case StateKeyInvocations:
			n, ok := v.(int)
			if !ok {
				return nil, fmt.Errorf(
					"%w: %q field has type %T",
					ErrContractViolation, k, v,
				)
			}
			s.Invocations = n
		default:
			s.Values[k] = v
		}
	}
	return s, nil
}

// Map converts s back to the map shape accepted by
// [StateFromMap].
func (s *State) Map() map[string]any {
	m := make(map[string]any, len(s.Values)+3)
	maps.Copy(m, s.Values)
	m[StateKeyMessages] = append([]Entry(nil), s.Messages...)
	m[StateKeyInvocations] = s.Invocations
	if s.RunningSummary != "" {
		m[StateKeyRunningSummary] = s.RunningSummary
	}
	return m
}
