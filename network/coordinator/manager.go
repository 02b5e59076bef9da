package coordinator

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"golang.org/x/sync/errgroup"

	"coffeewards/configs"
	"coffeewards/locks"
	"coffeewards/network"
)

// PeerSender delivers an envelope to a specific node over whatever
// node-handler connection the transport layer (conn.go) keeps open for
// it. Decoupling the protocol logic from the transport mirrors the
// teacher's Manager/Commu split in network/coordinator/{manager,conn}.go.
type PeerSender interface {
	SendTo(nodeID uint64, e *network.Envelope) error
}

// LocalOrigin notifies the node actor co-resident with this coordinator
// when it is itself the origin of a debit it is sequencing — there is no
// loopback TCP connection to carry Execute/Commit/AbortAll to oneself.
type LocalOrigin interface {
	NotifyExecute(txnID uint64)
	NotifyDecision(txnID uint64, committed bool)
}

// Manager runs the coordinator role described in spec.md §4.2: 2PC for
// debits, per-account locking via locks.AccountQueues, and the
// lock-free asynchronous broadcast path for credits.
type Manager struct {
	ctx     *Context
	peers   *PeerSet
	queues  *locks.AccountQueues
	txTable sync.Map // txnID -> *txnHandler
	sender  PeerSender
	logs    *LogManager
	local   LocalOrigin
}

// NewManager builds a coordinator Manager bound to ctx, using sender to
// reach peers over the network and logs for the optional audit trail.
func NewManager(ctx *Context, sender PeerSender, logs *LogManager) *Manager {
	return &Manager{
		ctx:    ctx,
		peers:  NewPeerSet(),
		queues: locks.NewAccountQueues(),
		sender: sender,
		logs:   logs,
	}
}

// SetLocalOrigin registers the node actor to notify when this
// coordinator's own node is the origin of a debit it sequences.
func (c *Manager) SetLocalOrigin(lo LocalOrigin) { c.local = lo }

// SetSender installs the transport used to reach peers. Split from
// NewManager so a Commu and its Manager can be wired up in either
// order (cmd/coffeewards-server builds the Manager first, then a Commu
// bound to it, then feeds the Commu back in as the sender).
func (c *Manager) SetSender(s PeerSender) { c.sender = s }

// AddPeer registers a newly connected (or reconnected) peer as active.
// Offline-credit replay rides the ordinary Finish(Add,...) fast path
// once the reconnecting node starts sending it (spec.md §4.1/§4.2).
func (c *Manager) AddPeer(nodeID uint64) {
	c.peers.Add(nodeID)
}

// RemovePeer drops nodeID from the live set on node-handler EOF/write
// failure and fails transactions forward so progress never stalls on a
// peer that is gone (spec.md §4.2 tie-breaks):
//   - an outstanding vote from nodeID is counted as Yes, since a node
//     that no longer sees the transaction cannot refuse it;
//   - if nodeID was the ORIGIN of a debit still in flight, the spec's
//     resolved open question applies: EOF aborts immediately rather
//     than waiting for the T_exec timeout.
func (c *Manager) RemovePeer(nodeID uint64) {
	c.peers.Remove(nodeID)
	c.txTable.Range(func(key, value interface{}) bool {
		h := value.(*txnHandler)
		state := h.getState()
		if state == configs.Preparing && h.Required.Contains(nodeID) && !h.Votes.Contains(nodeID) {
			if h.addVote(nodeID) {
				c.enterExecuting(h)
			}
		}
		if h.OriginID == nodeID && state != configs.Committed && state != configs.Aborted {
			c.abortTxn(h)
		}
		return true
	})
}

// OnStart handles spec.md §4.2's `Start` message: either grant the
// account lock immediately and begin Prepare, or join the FIFO queue.
func (c *Manager) OnStart(txnID, accountID, amount, originID uint64) {
	h := newTxnHandler(txnID, accountID, amount, originID)
	c.txTable.Store(txnID, h)
	c.logs.writeState(txnID, h.State)
	if !c.queues.TryAcquire(accountID, txnID) {
		configs.TxnPrintf(txnID, "queued behind an in-flight debit on account %d", accountID)
		return
	}
	c.beginPrepare(h)
}

// beginPrepare checks the coordinator's own authoritative balance (the
// only point at which InsufficientFunds is decided, spec.md §7) and
// either rejects the debit outright via AbortAll, or broadcasts Prepare
// and waits for votes.
func (c *Manager) beginPrepare(h *txnHandler) {
	if !c.ctx.Local.CanDebit(h.AccountID, h.Amount) {
		configs.TxnPrintf(h.TxnID, "insufficient funds on account %d, rejecting before Prepare", h.AccountID)
		// Required is still empty at this point (populated further down,
		// on the accepted path) — set it to the origin alone so abortTxn's
		// fan-out has someone to tell. No peer has seen a Prepare for this
		// transaction yet, so the origin is the only node that needs word.
		h.mu.Lock()
		h.Required = mapset.NewSet(h.OriginID)
		h.mu.Unlock()
		c.abortTxn(h)
		return
	}
	required := mapset.NewSet()
	for _, id := range c.peers.Snapshot() {
		required.Add(id)
	}
	required.Add(h.OriginID)
	h.mu.Lock()
	h.Required = required
	h.State = configs.Preparing
	h.mu.Unlock()
	c.logs.writeState(h.TxnID, configs.Preparing)

	prep := &network.Prepare{TxnID: h.TxnID, AccountID: h.AccountID, Amount: h.Amount, Kind: configs.KindSub}
	var g errgroup.Group
	for _, raw := range required.ToSlice() {
		id := raw.(uint64)
		if id == c.ctx.SelfID {
			// The coordinator's own node cannot refuse a Sub it originated.
			if h.addVote(id) {
				c.enterExecuting(h)
			}
			continue
		}
		g.Go(func() error { return c.sender.SendTo(id, &network.Envelope{Mark: configs.MarkPrepare, Prepare: prep}) })
	}
	if err := g.Wait(); err != nil {
		configs.DPrintf("prepare fan-out for tx %d hit a dead peer: %v", h.TxnID, err)
	}
}

// OnYes handles a peer's (or the origin's) vote.
func (c *Manager) OnYes(txnID, nodeID uint64) {
	v, ok := c.txTable.Load(txnID)
	if !ok {
		return
	}
	h := v.(*txnHandler)
	if h.getState() != configs.Preparing {
		return
	}
	if h.addVote(nodeID) {
		c.enterExecuting(h)
	}
}

func (c *Manager) enterExecuting(h *txnHandler) {
	h.transit(configs.Executing)
	c.logs.writeState(h.TxnID, configs.Executing)
	if h.OriginID == c.ctx.SelfID {
		if c.local != nil {
			c.local.NotifyExecute(h.TxnID)
		}
	} else {
		go c.sender.SendTo(h.OriginID, &network.Envelope{Mark: configs.MarkExecute, Execute: &network.Execute{TxnID: h.TxnID}})
	}
	h.mu.Lock()
	h.execTimer = time.AfterFunc(configs.TExec, func() { c.onExecTimeout(h.TxnID) })
	h.mu.Unlock()
}

func (c *Manager) onExecTimeout(txnID uint64) {
	v, ok := c.txTable.Load(txnID)
	if !ok {
		return
	}
	h := v.(*txnHandler)
	if h.getState() == configs.Executing {
		configs.TxnPrintf(txnID, "origin silent after Execute, aborting on T_exec timeout")
		c.abortTxn(h)
	}
}

// OnFinish handles spec.md §4.2's `Finish` message for both the debit
// (Sub) decide path and the credit (Add) fast path.
func (c *Manager) OnFinish(txnID uint64, kind string, accountID, amount, fromNodeID uint64) {
	if kind == configs.KindAdd {
		c.creditFastPath(txnID, accountID, amount, fromNodeID)
		return
	}
	v, ok := c.txTable.Load(txnID)
	if !ok {
		return
	}
	h := v.(*txnHandler)
	h.stopExecTimer()
	h.transit(configs.Finishing)
	c.logs.writeState(txnID, configs.Finishing)
	c.commitTxn(h)
}

// OnAbort handles spec.md §4.2's `Abort` message: the origin's brew
// failed after Execute.
func (c *Manager) OnAbort(txnID, accountID uint64) {
	v, ok := c.txTable.Load(txnID)
	if !ok {
		return
	}
	h := v.(*txnHandler)
	h.stopExecTimer()
	c.abortTxn(h)
}

// commitTxn applies the decided debit to the coordinator's own ledger
// and broadcasts Commit to every node that needs to mirror it.
func (c *Manager) commitTxn(h *txnHandler) {
	h.transit(configs.Committed)
	c.logs.writeState(h.TxnID, configs.Committed)
	c.ctx.Local.Debit(h.AccountID, h.Amount)
	commit := &network.Commit{TxnID: h.TxnID, Kind: configs.KindSub, AccountID: h.AccountID, Amount: h.Amount}
	var g errgroup.Group
	selfRequired := false
	for _, raw := range h.Required.ToSlice() {
		id := raw.(uint64)
		if id == c.ctx.SelfID {
			selfRequired = true
			if h.OriginID == c.ctx.SelfID && c.local != nil {
				c.local.NotifyDecision(h.TxnID, true)
			}
			continue
		}
		g.Go(func() error { return c.sender.SendTo(id, &network.Envelope{Mark: configs.MarkCommit, Commit: commit}) })
	}
	if err := g.Wait(); err != nil {
		configs.DPrintf("commit fan-out for tx %d hit a dead peer: %v", h.TxnID, err)
	}
	// Self is a required acker when it is the coordinator's own origin
	// (Required always includes OriginID); there is no loopback Okey
	// for it, so record it directly or the handler never reaches full
	// ack and leaks in tx_table forever.
	switch {
	case h.Required.Cardinality() == 0:
		c.txTable.Delete(h.TxnID)
	case selfRequired:
		c.ack(h.TxnID, c.ctx.SelfID)
	}
	c.releaseAndAdvance(h.AccountID)
}

func (c *Manager) abortTxn(h *txnHandler) {
	h.transit(configs.Aborted)
	c.logs.writeState(h.TxnID, configs.Aborted)
	// A transaction aborted while still waiting in the per-account FIFO
	// (e.g. RemovePeer discarding a queued debit whose origin just
	// disconnected) never acquired the account lock through TryAcquire,
	// so there is nothing to Release and no peer ever saw a Prepare for
	// it to ack. Releasing here would steal the lock out from under
	// whichever transaction actually holds it (spec.md §3/§5 I3/O1).
	if c.queues.CancelWaiting(h.AccountID, h.TxnID) {
		if h.OriginID == c.ctx.SelfID && c.local != nil {
			c.local.NotifyDecision(h.TxnID, false)
		}
		c.txTable.Delete(h.TxnID)
		return
	}
	abortAll := &network.AbortAll{TxnID: h.TxnID, AccountID: h.AccountID}
	var g errgroup.Group
	selfRequired := false
	for _, raw := range h.Required.ToSlice() {
		id := raw.(uint64)
		if id == c.ctx.SelfID {
			selfRequired = true
			if h.OriginID == c.ctx.SelfID && c.local != nil {
				c.local.NotifyDecision(h.TxnID, false)
			}
			continue
		}
		g.Go(func() error { return c.sender.SendTo(id, &network.Envelope{Mark: configs.MarkAbortAll, AbortAll: abortAll}) })
	}
	if err := g.Wait(); err != nil {
		configs.DPrintf("abort fan-out for tx %d hit a dead peer: %v", h.TxnID, err)
	}
	// Required is empty only if the abort came before beginPrepare set
	// it (its insufficient-funds path sets it to the origin first):
	// nothing to wait an ack from.
	switch {
	case h.Required.Cardinality() == 0:
		c.txTable.Delete(h.TxnID)
	case selfRequired:
		c.ack(h.TxnID, c.ctx.SelfID)
	}
	c.releaseAndAdvance(h.AccountID)
}

// releaseAndAdvance frees accountID's lock and, if another debit was
// waiting, immediately starts its Prepare phase — FIFO per spec.md's
// ordering guarantee O1.
func (c *Manager) releaseAndAdvance(accountID uint64) {
	nextID, ok := c.queues.Release(accountID)
	if !ok {
		return
	}
	v, ok := c.txTable.Load(nextID)
	if !ok {
		configs.Assert(false, "queued transaction vanished from tx table")
		return
	}
	c.beginPrepare(v.(*txnHandler))
}

// creditFastPath implements the asynchronous credit broadcast of
// spec.md §4.2: no lock, no Prepare, idempotent by tx_id.
func (c *Manager) creditFastPath(txnID, accountID, amount, originID uint64) {
	if originID != c.ctx.SelfID {
		c.ctx.Local.CreditOnce(txnID, accountID, amount)
	}
	h := newTxnHandler(txnID, accountID, amount, originID)
	h.State = configs.Committed
	required := mapset.NewSet()
	for _, id := range c.peers.Snapshot() {
		if id == originID {
			continue
		}
		required.Add(id)
	}
	h.Required = required
	c.txTable.Store(txnID, h)
	commit := &network.Commit{TxnID: txnID, Kind: configs.KindAdd, AccountID: accountID, Amount: amount}
	var g errgroup.Group
	for _, raw := range required.ToSlice() {
		id := raw.(uint64)
		g.Go(func() error { return c.sender.SendTo(id, &network.Envelope{Mark: configs.MarkCommit, Commit: commit}) })
	}
	go func() {
		if err := g.Wait(); err != nil {
			configs.DPrintf("credit fan-out for tx %d hit a dead peer: %v", txnID, err)
		}
	}()
	if required.Cardinality() == 0 {
		c.txTable.Delete(txnID)
	}
}

// OnOkey/OnOkeyAbort accumulate decision acknowledgements; once every
// required node has ack'd, the handler is garbage-collected.
func (c *Manager) OnOkey(txnID, nodeID uint64)      { c.ack(txnID, nodeID) }
func (c *Manager) OnOkeyAbort(txnID, nodeID uint64) { c.ack(txnID, nodeID) }

func (c *Manager) ack(txnID, nodeID uint64) {
	v, ok := c.txTable.Load(txnID)
	if !ok {
		return
	}
	h := v.(*txnHandler)
	if h.addAck(nodeID) {
		c.txTable.Delete(txnID)
	}
}

// Balance exposes the coordinator's authoritative view of an account,
// used by tests asserting P1/P3/P4.
func (c *Manager) Balance(accountID uint64) uint64 {
	return c.ctx.Local.Balance(accountID)
}

// ActivePeers reports the current live-peer membership, for tests and
// the status accessor.
func (c *Manager) ActivePeers() []uint64 {
	return c.peers.Snapshot()
}
