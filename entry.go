package ctxwindow

// Entry is one element of an edited message sequence: either a
// message to keep ([*Message]) or a [RemovalMarker] telling the
// external store to delete a message by ID.
//
// The set of implementations is closed. Use a type switch:
//
//	switch e := entry.(type) {
//	case *ctxwindow.Message:
//	    // keep (or upsert) e
//	case ctxwindow.RemovalMarker:
//	    // delete e.DeleteID
//	}
type Entry interface {
	isEntry()
}

// RemovalMarker is a tombstone: the external store should delete
// the message whose ID is DeleteID. History edits are expressed
// this way instead of by literal deletion so they can be replayed
// and audited.
type RemovalMarker struct {
	DeleteID string
}

func (RemovalMarker) isEntry() {}

// KeepAll wraps messages as entries, preserving order.
func KeepAll(msgs []*Message) []Entry {
	entries := make([]Entry, len(msgs))
	for i, m := range msgs {
		entries[i] = m
	}
	return entries
}

// MarkersFor returns one removal marker per message, in order.
func MarkersFor(msgs []*Message) []Entry {
	entries := make([]Entry, len(msgs))
	for i, m := range msgs {
		entries[i] = RemovalMarker{DeleteID: m.ID}
	}
	return entries
}

// SplitEntries separates kept messages from removal markers,
// preserving the relative order of each.
func SplitEntries(
	entries []Entry,
) ([]*Message, []RemovalMarker) {
	var (
		msgs    []*Message
		markers []RemovalMarker
	)
	for _, e := range entries {
		switch v := e.(type) {
		case *Message:
			msgs = append(msgs, v)
		case RemovalMarker:
			markers = append(markers, v)
		}
	}
	return msgs, markers
}

// Merge applies edited entries to a stored history and returns
// the new history. It is the reference implementation of the
// external merge layer:
//   - a RemovalMarker deletes the stored message with that ID
//   - a message whose ID is already stored replaces it in place
//   - any other message is inserted before the next stored
//     message that follows it in entries, or appended when no
//     stored message follows
//
// An empty ID never matches: ID-less stored messages are kept,
// ID-less entries are inserted, and markers with an empty DeleteID
// are ignored.
//
// history is not modified.
func Merge(history []*Message, entries []Entry) []*Message {
	stored := make(map[string]bool, len(history))
	for _, m := range history {
		if m.ID != "" {
			stored[m.ID] = true
		}
	}

	var (
		deleted  = make(map[string]bool)
		replaced = make(map[string]*Message)
		before   = make(map[string][]*Message)
		pending  []*Message
	)
	for _, e := range entries {
		switch v := e.(type) {
		case RemovalMarker:
			if v.DeleteID != "" {
				deleted[v.DeleteID] = true
			}
		case *Message:
			if !stored[v.ID] {
				pending = append(pending, v)
				continue
			}
			replaced[v.ID] = v
			delete(deleted, v.ID)
			before[v.ID] = append(before[v.ID], pending...)
			pending = nil
		}
	}

	out := make([]*Message, 0, len(history)+len(pending))
	for _, m := range history {
		if m.ID == "" {
			out = append(out, m)
			continue
		}
		out = append(out, before[m.ID]...)
		if deleted[m.ID] {
			continue
		}
		if r, ok := replaced[m.ID]; ok {
			m = r
		}
		out = append(out, m)
	}
	return append(out, pending...)
}
