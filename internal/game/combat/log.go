package combat

import (
	"fmt"
	"sync"
)

const (
	// LiveWindow is the number of entries shown on the live turn display.
	LiveWindow = 3
	// SummaryWindow is the number of entries shown on the final summary.
	SummaryWindow = 30
	// EmptyLogLine is rendered in place of entries when nothing has happened yet.
	EmptyLogLine = "---"
)

// EntryKind distinguishes combat log events.
type EntryKind int

const (
	EntryAttack EntryKind = iota
	EntryCritical
	EntrySurrender
	EntryTimeout
	EntryItem
)

// String returns a short label for the kind.
func (k EntryKind) String() string {
	switch k {
	case EntryAttack:
		return "attack"
	case EntryCritical:
		return "critical"
	case EntrySurrender:
		return "surrender"
	case EntryTimeout:
		return "timeout"
	case EntryItem:
		return "item"
	default:
		return "unknown"
	}
}

// Entry is one immutable combat event.
type Entry struct {
	Kind   EntryKind
	Icon   string
	Actor  string
	Target string
	Amount int
	// Text is the free-form description carried by item entries.
	Text string
}

// AttackEntry records a regular hit dealing amount after armor.
func AttackEntry(icon, actor, target string, amount int) Entry {
	return Entry{Kind: EntryAttack, Icon: icon, Actor: actor, Target: target, Amount: amount}
}

// CriticalEntry records a critical hit dealing amount after armor.
func CriticalEntry(actor, target string, amount int) Entry {
	return Entry{Kind: EntryCritical, Actor: actor, Target: target, Amount: amount}
}

// SurrenderEntry records actor giving up.
func SurrenderEntry(actor string) Entry {
	return Entry{Kind: EntrySurrender, Actor: actor}
}

// TimeoutEntry records actor failing to choose within the turn deadline.
func TimeoutEntry(actor string) Entry {
	return Entry{Kind: EntryTimeout, Actor: actor}
}

// ItemEntry records an item effect described by text.
func ItemEntry(icon, text string) Entry {
	return Entry{Kind: EntryItem, Icon: icon, Text: text}
}

// String renders the entry as one display line.
func (e Entry) String() string {
	switch e.Kind {
	case EntryAttack:
		return fmt.Sprintf("%s %s attacked %s for %d damage.", e.Icon, e.Actor, e.Target, e.Amount)
	case EntryCritical:
		return fmt.Sprintf("💥 %s got a critical hit on %s for %d damage!", e.Actor, e.Target, e.Amount)
	case EntrySurrender:
		return fmt.Sprintf("🏳 %s surrendered.", e.Actor)
	case EntryTimeout:
		return fmt.Sprintf("⏱ %s ran out of time.", e.Actor)
	case EntryItem:
		return fmt.Sprintf("%s %s", e.Icon, e.Text)
	default:
		return "?"
	}
}

// Log is the append-only, insertion-ordered record of a duel.
// Views are returned most-recent-first.
// All methods are safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewLog returns an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Add appends e. It never fails.
func (l *Log) Add(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Len returns the number of entries recorded.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the most recently added entry.
//
// Postcondition: ok is false iff the log is empty.
func (l *Log) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Recent returns up to n entries, most recent first.
//
// Postcondition: len(result) == min(n, Len()); result is a copy.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n = min(max(n, 0), len(l.entries))
	out := make([]Entry, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Full returns the window rendered on the final summary.
func (l *Log) Full() []Entry {
	return l.Recent(SummaryWindow)
}

// Lines renders Recent(n) as strings, or a single EmptyLogLine placeholder
// when nothing has been recorded.
func (l *Log) Lines(n int) []string {
	recent := l.Recent(n)
	if len(recent) == 0 {
		return []string{EmptyLogLine}
	}
	lines := make([]string, len(recent))
	for i, e := range recent {
		lines[i] = e.String()
	}
	return lines
}
