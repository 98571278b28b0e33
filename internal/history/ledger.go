package history

import (
	"strings"
)

// DefaultMaxSize bounds the ledger when no explicit limit is configured.
const DefaultMaxSize = 100

// Snapshot is the durable form of a ledger.
type Snapshot struct {
	Commands []string
	MaxSize  int
}

// Ledger is a most-recent-first list of executed commands without duplicates.
// It performs no I/O and is not safe for concurrent writers.
type Ledger struct {
	commands []string
	maxSize  int
}

// NewLedger returns an empty ledger holding at most maxSize entries. A
// non-positive maxSize selects DefaultMaxSize.
func NewLedger(maxSize int) *Ledger {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Ledger{maxSize: maxSize}
}

// Record moves command to the front of the ledger. Blank input is ignored.
func (l *Ledger) Record(command string) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return
	}

	for i, existing := range l.commands {
		if existing == trimmed {
			l.commands = append(l.commands[:i], l.commands[i+1:]...)
			break
		}
	}

	l.commands = append([]string{trimmed}, l.commands...)
	l.truncate()
}

// List returns the entries, most recent first.
func (l *Ledger) List() []string {
	out := make([]string, len(l.commands))
	copy(out, l.commands)
	return out
}

// Len returns the number of stored entries.
func (l *Ledger) Len() int {
	return len(l.commands)
}

// Clear drops every entry. The size limit is kept.
func (l *Ledger) Clear() {
	l.commands = nil
}

// MaxSize returns the current size limit.
func (l *Ledger) MaxSize() int {
	return l.maxSize
}

// SetMaxSize changes the limit, clamping it to at least 1, and drops the
// oldest entries that no longer fit.
func (l *Ledger) SetMaxSize(n int) {
	if n < 1 {
		n = 1
	}
	l.maxSize = n
	l.truncate()
}

// Snapshot captures the ledger for persistence.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{Commands: l.List(), MaxSize: l.maxSize}
}

// Restore replaces the ledger contents with snap. Blank and duplicate
// entries are dropped, keeping the first (most recent) occurrence.
func (l *Ledger) Restore(snap Snapshot) {
	l.maxSize = snap.MaxSize
	if l.maxSize < 1 {
		l.maxSize = DefaultMaxSize
	}

	seen := make(map[string]struct{}, len(snap.Commands))
	l.commands = make([]string, 0, len(snap.Commands))
	for _, cmd := range snap.Commands {
		trimmed := strings.TrimSpace(cmd)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		l.commands = append(l.commands, trimmed)
	}
	l.truncate()
}

func (l *Ledger) truncate() {
	if len(l.commands) > l.maxSize {
		l.commands = l.commands[:l.maxSize:l.maxSize]
	}
}
