package console

// History records accepted input lines, oldest first. It is never truncated.
type History struct {
	entries []string
}

func (h *History) Append(line string) {
	h.entries = append(h.entries, line)
}

func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the recorded lines.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

// Last returns the most recent line.
func (h *History) Last() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	return h.entries[len(h.entries)-1], true
}
