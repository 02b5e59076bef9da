package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeewards/configs"
	"coffeewards/ledger"
	"coffeewards/network"
)

type sentMsg struct {
	to  uint64
	env *network.Envelope
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeSender) SendTo(nodeID uint64, e *network.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{to: nodeID, env: e})
	return nil
}

func (f *fakeSender) countMark(mark string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.env.Mark == mark {
			n++
		}
	}
	return n
}

func newTestManager(selfID uint64) (*Manager, *fakeSender) {
	store := ledger.NewStore(100)
	ctx := NewContext(selfID, store)
	sender := &fakeSender{}
	return NewManager(ctx, sender, NewLogManager("")), sender
}

func TestOnStartWithNoPeersCommitsImmediatelyAfterFinish(t *testing.T) {
	mgr, _ := newTestManager(1)
	mgr.OnStart(100, 5, 10, 1)
	mgr.OnFinish(100, configs.KindSub, 5, 10, 1)
	assert.Equal(t, uint64(90), mgr.Balance(5))
}

func TestOnStartRejectsInsufficientFundsBeforePrepare(t *testing.T) {
	mgr, sender := newTestManager(1)
	mgr.OnStart(100, 5, 1000, 1)
	assert.Equal(t, uint64(100), mgr.Balance(5))
	assert.Equal(t, 0, sender.countMark(configs.MarkPrepare))
}

func TestOnStartRejectsInsufficientFundsAndTellsRemoteOrigin(t *testing.T) {
	mgr, sender := newTestManager(1)
	mgr.AddPeer(2)

	mgr.OnStart(100, 5, 1000, 2)

	assert.Equal(t, 1, sender.countMark(configs.MarkAbortAll), "the remote origin must hear about its rejected debit")
	sent := sender.sent[len(sender.sent)-1]
	assert.Equal(t, uint64(2), sent.to)
	assert.Equal(t, uint64(100), sent.env.AbortAll.TxnID)

	mgr.OnOkeyAbort(100, 2)
	_, stillPresent := mgr.txTable.Load(uint64(100))
	assert.False(t, stillPresent, "the tx_table entry must be released once the origin acks the abort")
}

type fakeLocalOrigin struct {
	mu        sync.Mutex
	decisions map[uint64]bool
}

func (f *fakeLocalOrigin) NotifyExecute(txnID uint64) {}

func (f *fakeLocalOrigin) NotifyDecision(txnID uint64, committed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decisions == nil {
		f.decisions = make(map[uint64]bool)
	}
	f.decisions[txnID] = committed
}

func TestOnStartRejectsInsufficientFundsAndNotifiesSelfOrigin(t *testing.T) {
	mgr, _ := newTestManager(1)
	local := &fakeLocalOrigin{}
	mgr.SetLocalOrigin(local)

	mgr.OnStart(100, 5, 1000, 1)

	local.mu.Lock()
	committed, told := local.decisions[100]
	local.mu.Unlock()
	require.True(t, told, "a self-originated rejection must still reach NotifyDecision")
	assert.False(t, committed)
}

func TestSecondDebitOnSameAccountQueuesUntilFirstResolves(t *testing.T) {
	mgr, sender := newTestManager(1)
	mgr.AddPeer(2)

	mgr.OnStart(100, 5, 10, 1)
	require.Equal(t, 1, sender.countMark(configs.MarkPrepare))

	mgr.OnStart(200, 5, 5, 1)
	require.Equal(t, 1, sender.countMark(configs.MarkPrepare), "second debit must not Prepare until the first resolves")

	mgr.OnYes(100, 2)
	mgr.OnFinish(100, configs.KindSub, 5, 10, 1)

	assert.Equal(t, uint64(90), mgr.Balance(5))
	assert.Equal(t, 2, sender.countMark(configs.MarkPrepare), "queued debit should Prepare once the lock is released")
	assert.Equal(t, 1, sender.countMark(configs.MarkCommit))
}

func TestRemovePeerCountsOutstandingVoteAsYes(t *testing.T) {
	mgr, sender := newTestManager(1)
	mgr.AddPeer(2)
	mgr.OnStart(100, 5, 10, 1)
	require.Equal(t, 1, sender.countMark(configs.MarkPrepare))

	mgr.RemovePeer(2)

	mgr.OnFinish(100, configs.KindSub, 5, 10, 1)
	assert.Equal(t, uint64(90), mgr.Balance(5))
}

func TestSelfOriginatedDebitCommitIsGarbageCollected(t *testing.T) {
	mgr, _ := newTestManager(1)
	mgr.OnStart(100, 5, 10, 1)
	mgr.OnFinish(100, configs.KindSub, 5, 10, 1)

	_, stillPresent := mgr.txTable.Load(uint64(100))
	assert.False(t, stillPresent, "tx_table entry for a self-originated commit must not leak")
}

func TestSelfOriginatedDebitAbortIsGarbageCollected(t *testing.T) {
	mgr, _ := newTestManager(1)
	mgr.OnStart(100, 5, 1000, 1)

	_, stillPresent := mgr.txTable.Load(uint64(100))
	assert.False(t, stillPresent, "tx_table entry for a self-originated abort must not leak")
}

func TestAbortingAQueuedDebitDoesNotStealTheHeldLock(t *testing.T) {
	mgr, sender := newTestManager(1)
	mgr.AddPeer(2)
	mgr.AddPeer(3)

	// tx 100 (origin 2) acquires the lock and is mid-Prepare against
	// required voters {2, 3}.
	mgr.OnStart(100, 5, 10, 2)
	require.Equal(t, 2, sender.countMark(configs.MarkPrepare))

	// tx 200 (origin 3) queues behind it.
	mgr.OnStart(200, 5, 5, 3)
	require.Equal(t, 2, sender.countMark(configs.MarkPrepare), "a queued debit must not Prepare")

	// Node 3 (origin of the queued tx, and an outstanding voter on tx
	// 100) disconnects: its queued debit is discarded, but tx 100 must
	// keep holding the account lock, and its disconnect counts as an
	// implicit Yes on tx 100 per spec.md §4.2's tie-break.
	mgr.RemovePeer(3)
	assert.True(t, mgr.queues.IsLocked(5), "the active debit's lock must survive an unrelated queued-tx abort")

	_, stillQueued := mgr.txTable.Load(uint64(200))
	assert.False(t, stillQueued, "the discarded queued transaction must be removed from tx_table")

	// tx 100 only needs node 2's vote now; it can still complete normally.
	mgr.OnYes(100, 2)
	mgr.OnFinish(100, configs.KindSub, 5, 10, 2)
	assert.Equal(t, uint64(90), mgr.Balance(5))
}

func TestCreditFastPathBroadcastsToPeersExceptOrigin(t *testing.T) {
	mgr, sender := newTestManager(1)
	mgr.AddPeer(2)
	mgr.AddPeer(3)

	mgr.OnFinish(900, configs.KindAdd, 5, 25, 2)

	assert.Equal(t, uint64(125), mgr.Balance(5))
	// The credit fan-out runs on its own goroutines; wait for it to land.
	assert.Eventually(t, func() bool { return sender.countMark(configs.MarkCommit) == 1 }, time.Second, time.Millisecond)
}
