package settlement

import "sync"

// CompensationEntry records one successfully applied stock deduction so it can
// be reversed if a sibling deduction in the same attempt fails.
type CompensationEntry struct {
	ProductID string
	Quantity  int
}

// Log is the append-only record of applied deductions for a single settlement
// attempt. Appends happen from concurrent per-line goroutines; each attempt
// owns its own Log, nothing is shared across orders.
type Log struct {
	mu      sync.Mutex
	entries []CompensationEntry
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(entry CompensationEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the logged entries.
func (l *Log) Entries() []CompensationEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CompensationEntry(nil), l.entries...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
