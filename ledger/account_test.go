package ledger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountStartsAtSaldoInicial(t *testing.T) {
	s := NewStore(100)
	assert.Equal(t, uint64(100), s.Balance(42))
}

func TestCreditOnceIncreasesBalance(t *testing.T) {
	s := NewStore(100)
	bal := s.CreditOnce(1, 1, 25)
	assert.Equal(t, uint64(125), bal)
	assert.Equal(t, uint64(125), s.Balance(1))
}

func TestDebitRefusesBelowFloor(t *testing.T) {
	s := NewStore(100)
	bal, ok := s.Debit(1, 150)
	require.False(t, ok)
	assert.Equal(t, uint64(100), bal)
}

func TestDebitSucceedsWithSufficientFunds(t *testing.T) {
	s := NewStore(100)
	bal, ok := s.Debit(1, 40)
	require.True(t, ok)
	assert.Equal(t, uint64(60), bal)
}

func TestCanDebitMatchesDebitOutcome(t *testing.T) {
	s := NewStore(100)
	assert.True(t, s.CanDebit(1, 100))
	assert.False(t, s.CanDebit(1, 101))
	_, ok := s.Debit(1, 101)
	assert.False(t, ok)
	_, ok = s.Debit(1, 100)
	assert.True(t, ok)
}

func TestCreditOnceIsIdempotent(t *testing.T) {
	s := NewStore(100)
	first := s.CreditOnce(7, 1, 30)
	second := s.CreditOnce(7, 1, 30)
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(130), second)
}

func TestSnapshotReflectsAllTouchedAccounts(t *testing.T) {
	s := NewStore(100)
	s.CreditOnce(1, 1, 10)
	s.CreditOnce(2, 2, 20)

	want := map[uint64]uint64{1: 110, 2: 120}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}
