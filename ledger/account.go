// Package ledger holds the per-node account store: the only shared
// mutable state in a node (spec.md §5). It is mutated from several
// goroutines (per-request branch handlers, the coordinator connection's
// receive loop, a locally hosted coordinator); every mutation takes the
// store's lock, which serializes them and lets read-only observers (a
// status accessor, tests) take a consistent snapshot. The lock is never
// held across network I/O.
package ledger

import (
	mapset "github.com/deckarep/golang-set"
	"github.com/viney-shih/go-lock"
)

// Account is a point balance identified by an integer id, shared
// cluster-wide. Nothing in this repository sets Locked, so it always
// reads false; the coordinator tracks which accounts are held by a live
// debit 2PC round in locks.AccountQueues instead.
type Account struct {
	ID      uint64
	Balance uint64
	Locked  bool
}

// Store is the per-node account map. Accounts are created lazily on
// first reference with Balance = SaldoInicial and are never destroyed
// (spec.md §3).
type Store struct {
	mu             lock.Mutex
	saldoInicial   uint64
	accounts       map[uint64]*Account
	appliedCredits mapset.Set // tx_ids already folded into a balance
}

// NewStore creates an empty account store seeded with saldoInicial for
// any account referenced for the first time.
func NewStore(saldoInicial uint64) *Store {
	return &Store{
		mu:             lock.NewCASMutex(),
		saldoInicial:   saldoInicial,
		accounts:       make(map[uint64]*Account),
		appliedCredits: mapset.NewSet(),
	}
}

func (s *Store) getOrCreateLocked(accountID uint64) *Account {
	a, ok := s.accounts[accountID]
	if !ok {
		a = &Account{ID: accountID, Balance: s.saldoInicial}
		s.accounts[accountID] = a
	}
	return a
}

// CreditOnce applies a credit identified by txnID exactly once: a
// duplicate delivery (offline-credit replay, a retransmitted broadcast)
// is silently ignored, the idempotence property spec.md §7 requires of
// credit tx_ids.
func (s *Store) CreditOnce(txnID, accountID, amount uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appliedCredits.Contains(txnID) {
		a := s.getOrCreateLocked(accountID)
		return a.Balance
	}
	s.appliedCredits.Add(txnID)
	a := s.getOrCreateLocked(accountID)
	a.Balance += amount
	return a.Balance
}

// Debit decreases the balance of accountID by amount if sufficient funds
// are available, preserving I1 (balance floor). Returns the resulting
// balance and whether the debit was applied.
func (s *Store) Debit(accountID uint64, amount uint64) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.getOrCreateLocked(accountID)
	if a.Balance < amount {
		return a.Balance, false
	}
	a.Balance -= amount
	return a.Balance, true
}

// CanDebit reports whether amount can currently be deducted from
// accountID without taking the lock past this read. Used by the
// coordinator, which holds its own authoritative view, to decide
// InsufficientFunds before running 2PC.
func (s *Store) CanDebit(accountID uint64, amount uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return s.saldoInicial >= amount
	}
	return a.Balance >= amount
}

// Balance returns the current balance for accountID without mutating
// the store (lazily-created accounts read as SaldoInicial).
func (s *Store) Balance(accountID uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return s.saldoInicial
	}
	return a.Balance
}

// Snapshot returns a copy of every known account's balance, for tests
// and introspection (spec.md §8, properties P1/P3/P4/P5).
func (s *Store) Snapshot() map[uint64]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]uint64, len(s.accounts))
	for id, a := range s.accounts {
		out[id] = a.Balance
	}
	return out
}
