package pipeline

import (
	"fmt"
	"slices"
	"sync"
)

// ErrorLog collects non-fatal problems for a single request. It is safe for
// concurrent use and only ever grows.
type ErrorLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *ErrorLog) Add(msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()
}

func (l *ErrorLog) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the warnings in insertion order.
func (l *ErrorLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
