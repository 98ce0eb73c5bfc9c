package core

const defaultHistoryMax = 100

// History is a fixed-capacity ring of command results. Slot i%cap holds
// the i-th insertion; once full each insertion overwrites the oldest.
type History struct {
	slots []*IoResult
	count int
}

func newHistory(max int) *History {
	if max <= 0 {
		max = defaultHistoryMax
	}
	return &History{slots: make([]*IoResult, max)}
}

// append stores r and reports whether an older entry was evicted.
func (h *History) append(r *IoResult) bool {
	evicted := h.count >= len(h.slots)
	h.slots[h.count%len(h.slots)] = r
	h.count++
	return evicted
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	if h.count < len(h.slots) {
		return h.count
	}
	return len(h.slots)
}

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.slots) }

// Entries returns the retained entries, most recent first.
func (h *History) Entries() []*IoResult {
	n := h.Len()
	out := make([]*IoResult, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, h.slots[(h.count-i)%len(h.slots)])
	}
	return out
}

// Last returns the most recent entry.
func (h *History) Last() (*IoResult, bool) {
	if h.count == 0 {
		return nil, false
	}
	return h.slots[(h.count-1)%len(h.slots)], true
}
