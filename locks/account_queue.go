// Package locks implements the coordinator's per-account mutual-exclusion
// queue. This is a logical serialization primitive, not an OS lock: a
// per-account FIFO queue of waiting transaction ids, living entirely
// inside the coordinator actor and never held across network I/O
// (spec.md §9, "Account locking").
package locks

import (
	"sync"

	mapset "github.com/deckarep/golang-set"
)

// AccountQueues tracks, per account_id, which debit transaction
// currently holds the account and which are waiting their turn. Dequeue
// is FIFO; release happens on Commit or Abort (spec.md §3).
type AccountQueues struct {
	mu      sync.Mutex
	locked  mapset.Set
	waiting map[uint64][]uint64
}

// NewAccountQueues creates an empty set of per-account queues.
func NewAccountQueues() *AccountQueues {
	return &AccountQueues{
		locked:  mapset.NewSet(),
		waiting: make(map[uint64][]uint64),
	}
}

// TryAcquire attempts to grant accountID's lock to txID. If the account
// is free it is locked immediately and TryAcquire returns true. If it is
// already held, txID is appended to the FIFO wait queue and TryAcquire
// returns false — the caller must not start this transaction's Prepare
// phase until a later Release hands it the lock.
func (q *AccountQueues) TryAcquire(accountID, txID uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.locked.Contains(accountID) {
		q.waiting[accountID] = append(q.waiting[accountID], txID)
		return false
	}
	q.locked.Add(accountID)
	return true
}

// Release drops accountID's lock. If another transaction is waiting, it
// is dequeued FIFO and immediately re-granted the lock; the returned
// (txID, true) tells the caller to begin that transaction's Prepare
// phase. If nothing is waiting, Release returns (0, false) and the
// account becomes free.
func (q *AccountQueues) Release(accountID uint64) (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiters := q.waiting[accountID]
	if len(waiters) == 0 {
		q.locked.Remove(accountID)
		return 0, false
	}
	next := waiters[0]
	q.waiting[accountID] = waiters[1:]
	// lock stays held, now on behalf of next.
	return next, true
}

// CancelWaiting removes txID from accountID's FIFO wait queue without
// touching the lock itself, for a transaction aborted before it ever
// reached the head of the queue. Returns false if txID was not found
// waiting — either it already holds the lock, or it was never queued —
// in which case the caller must release the lock through Release
// instead, not this method.
func (q *AccountQueues) CancelWaiting(accountID, txID uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiters := q.waiting[accountID]
	for i, id := range waiters {
		if id == txID {
			q.waiting[accountID] = append(waiters[:i], waiters[i+1:]...)
			return true
		}
	}
	return false
}

// IsLocked reports whether accountID currently has an owner.
func (q *AccountQueues) IsLocked(accountID uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.locked.Contains(accountID)
}

// QueueLen reports how many transactions are waiting on accountID,
// excluding whichever one currently holds the lock.
func (q *AccountQueues) QueueLen(accountID uint64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting[accountID])
}
