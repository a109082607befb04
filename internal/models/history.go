package models

// HistoryEntry is the stored result for one (date, target) pair.
type HistoryEntry struct {
	Time    string `json:"time"` // HH:MM:SS
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// History maps date (YYYY-MM-DD) -> target -> entry.
type History map[string]map[string]HistoryEntry

// Len returns the number of (date, target) entries.
func (h History) Len() int {
	n := 0
	for _, day := range h {
		n += len(day)
	}
	return n
}
