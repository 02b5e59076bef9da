package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfflineLogDrainPreservesOrder(t *testing.T) {
	l := NewOfflineLog()
	l.Append(OfflineCredit{TxnID: 1, AccountID: 5, Amount: 10})
	l.Append(OfflineCredit{TxnID: 2, AccountID: 5, Amount: 20})
	l.Append(OfflineCredit{TxnID: 3, AccountID: 6, Amount: 30})

	assert.Equal(t, 3, l.Len())
	entries := l.Drain()
	assert.Equal(t, []OfflineCredit{
		{TxnID: 1, AccountID: 5, Amount: 10},
		{TxnID: 2, AccountID: 5, Amount: 20},
		{TxnID: 3, AccountID: 6, Amount: 30},
	}, entries)
	assert.Equal(t, 0, l.Len())
}

func TestOfflineLogDrainIsEmptyInitially(t *testing.T) {
	l := NewOfflineLog()
	assert.Empty(t, l.Drain())
}
