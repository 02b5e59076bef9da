package ledger

import "sync"

// OfflineCredit is one credit transaction executed locally while the
// owning node was disconnected (spec.md §3, "Offline-credit log").
type OfflineCredit struct {
	TxnID     uint64
	AccountID uint64
	Amount    uint64
}

// OfflineLog is the per-node ordered list of credits applied while
// connected = false. It need not survive process restarts (spec.md §9):
// it is an in-memory slice with no size limit. Entries are appended during
// offline operation and drained, in original order, on reconnect so the
// coordinator replays them with the same Commit semantics as the live
// path (spec.md §9, open question resolved in favor of original-order
// replay).
type OfflineLog struct {
	mu      sync.Mutex
	entries []OfflineCredit
}

// NewOfflineLog creates an empty offline-credit log.
func NewOfflineLog() *OfflineLog {
	return &OfflineLog{}
}

// Append records a credit applied while offline.
func (l *OfflineLog) Append(c OfflineCredit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, c)
}

// Drain returns every recorded credit, in the order it was appended, and
// clears the log. Called once on reconnect.
func (l *OfflineLog) Drain() []OfflineCredit {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.entries
	l.entries = nil
	return out
}

// Len reports how many credits are currently pending replay.
func (l *OfflineLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
