// Package node implements the node ROLE described in spec.md §4.1: the
// per-node state machine that originates transactions, drives a debit
// through the coordinator's 2PC round, and applies every decided Commit
// to its own ledger replica. Exactly one Node runs per process; it may
// additionally host the coordinator role (network/coordinator) when the
// Bully election names it leader.
package node

import (
	"sync"
	"time"

	"coffeewards/configs"
	"coffeewards/ledger"
	"coffeewards/network"
	"coffeewards/network/coordinator"
	"coffeewards/utils"
)

// SubmitResult is what a Submit call reports back to the branch
// listener, spec.md §6's client-facing status vocabulary.
type SubmitResult struct {
	Status  string
	Balance uint64
}

type pendingDebit struct {
	accountID uint64
	amount    uint64
	state     uint8
	resultCh  chan SubmitResult
}

// Node is this process's account replica plus the origin-side state
// machine for debits it submits. Its only shared mutable state is the
// ledger.Store (spec.md §5); pending and connected/coordConn are node
// actor bookkeeping guarded by mu so concurrent goroutines handling
// separate in-flight transactions never race each other.
type Node struct {
	SelfID  uint64
	Store   *ledger.Store
	Offline *ledger.OfflineLog
	ids     *utils.TxnIDAllocator

	// Brew simulates the physical side effect a debit pays for (spec.md
	// §4.1, "Execute ... perform the side effect"). NewNode installs
	// defaultBrew, which always succeeds; assigning this field is the only
	// way to make a brew fail.
	Brew func(accountID, amount uint64) bool

	mu            sync.Mutex
	connected     bool
	voluntary     bool
	manualOffline bool
	coordConn     *network.Conn
	coordID       uint64
	pending       map[uint64]*pendingDebit

	// coord is non-nil exactly when this node also currently hosts the
	// coordinator role (it won the last Bully election). Self-submitted
	// debits and their Execute/Commit/Abort notifications then take an
	// in-process path instead of a loopback TCP connection.
	coord *coordinator.Manager
}

// NewNode builds a node actor for selfID, backed by store and offline.
func NewNode(selfID uint64, store *ledger.Store, offline *ledger.OfflineLog) *Node {
	return &Node{
		SelfID:  selfID,
		Store:   store,
		Offline: offline,
		ids:     utils.NewTxnIDAllocator(selfID),
		Brew:    defaultBrew,
		pending: make(map[uint64]*pendingDebit),
	}
}

// defaultBrew simulates a coffee machine whose brew always succeeds.
func defaultBrew(accountID, amount uint64) bool { return true }

// SetCoordinator installs mgr as this node's locally hosted coordinator
// (called once after a Bully win) and registers this node for
// NotifyExecute/NotifyDecision self-origin callbacks.
func (n *Node) SetCoordinator(mgr *coordinator.Manager) {
	n.mu.Lock()
	n.coord = mgr
	n.manualOffline = false
	n.mu.Unlock()
	mgr.SetLocalOrigin(n)
}

// ClearCoordinator drops the locally hosted coordinator on handover to
// a new leader.
func (n *Node) ClearCoordinator() {
	n.mu.Lock()
	n.coord = nil
	n.mu.Unlock()
}

// SetConnection installs the live TCP connection to the current
// coordinator, replaying any queued offline credits in original order
// once it is set (spec.md §4.1/§4.3).
func (n *Node) SetConnection(coordID uint64, conn *network.Conn) {
	n.mu.Lock()
	n.connected = true
	n.coordConn = conn
	n.coordID = coordID
	n.manualOffline = false
	n.mu.Unlock()
	n.replayOffline(conn)
}

// SetDisconnected marks the node offline; subsequent credits are queued
// in the offline log and debits are rejected immediately rather than
// blocking on a dead connection: with StatusOffline after a voluntary
// Disconnect, with StatusCoordinatorUnavailable otherwise.
func (n *Node) SetDisconnected() {
	n.mu.Lock()
	n.connected = false
	n.coordConn = nil
	n.mu.Unlock()
}

func (n *Node) snapshotLink() (bool, *network.Conn, *coordinator.Manager) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected, n.coordConn, n.coord
}

// isManualOffline distinguishes spec.md §7's two disconnected-debit
// error kinds: this node voluntarily left the cluster (StatusOffline)
// versus no coordinator has been elected or reached yet, e.g. at
// startup or mid-election (StatusCoordinatorUnavailable).
func (n *Node) isManualOffline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manualOffline
}

// Disconnect implements the node-initiated half of spec.md §4.3's
// connect/disconnect lifecycle: announce departure, then drop the
// link. It is grounded on the teacher's participant Break()/NetBreak()
// fault-injection methods, repurposed here from "simulate a crash for
// a benchmark" to "voluntarily leave the cluster". Subsequent credits
// accumulate in the offline log until the node rejoins and SetConnection
// replays it. Disconnect does not touch a locally hosted coordinator
// role: while one is installed, credits still go to it instead of the
// offline log, debits are still sequenced through it, and its peers'
// connections stay open.
func (n *Node) Disconnect() {
	n.mu.Lock()
	conn := n.coordConn
	n.voluntary = true
	n.manualOffline = true
	n.connected = false
	n.coordConn = nil
	n.mu.Unlock()
	if conn == nil {
		return
	}
	conn.Send(&network.Envelope{Mark: configs.MarkDisconnect, Disconnect: &network.Disconnect{NodeID: n.SelfID}})
	conn.Close()
}

// Snapshot returns a read-only copy of every account balance this node
// currently holds, for status introspection and test/load-generator
// convergence checks (spec.md §8 P1/P3/P4/P5) without exposing the
// underlying ledger.Store.
func (n *Node) Snapshot() map[uint64]uint64 {
	return n.Store.Snapshot()
}

// WasVoluntaryDisconnect reports (and clears) whether the most recent
// loss of the coordinator connection was this node calling Disconnect,
// as opposed to the coordinator actually disappearing. The server main
// loop uses this to decide whether to treat a dropped connection as
// "the coordinator died, start an election" or "I chose to leave".
func (n *Node) WasVoluntaryDisconnect() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	was := n.voluntary
	n.voluntary = false
	return was
}

// Submit is the branch listener's entry point: it originates a credit
// or a debit for accountID, blocking until a terminal status is known
// or T_client elapses (spec.md §6). A non-positive amount is a
// node-local validation error and never touches the network (spec.md
// §4.1, §7).
func (n *Node) Submit(accountID, amount uint64, kind string) SubmitResult {
	if amount == 0 {
		configs.DPrintf("rejecting submit on account %d: %v", accountID, utils.ErrInvalidAmount)
		return SubmitResult{Status: configs.StatusInvalidAmount}
	}
	var res SubmitResult
	if kind == configs.KindAdd {
		res = n.submitCredit(accountID, amount)
	} else {
		res = n.submitDebit(accountID, amount)
	}
	if err := utils.ErrorForStatus(res.Status); err != nil {
		configs.DPrintf("submit on account %d ended in %v", accountID, err)
	}
	return res
}

// submitCredit applies I2 immediately and locally, regardless of
// connectivity: a credit never fails. If connected it is also forwarded
// to the coordinator for cluster-wide replication; if offline it is
// appended to the replay log instead (spec.md §4.1, §9).
func (n *Node) submitCredit(accountID, amount uint64) SubmitResult {
	txnID := n.ids.Next()
	bal := n.Store.CreditOnce(txnID, accountID, amount)

	connected, conn, coord := n.snapshotLink()
	if coord != nil {
		coord.OnFinish(txnID, configs.KindAdd, accountID, amount, n.SelfID)
		return SubmitResult{Status: configs.StatusOk, Balance: bal}
	}
	if !connected {
		n.Offline.Append(ledger.OfflineCredit{TxnID: txnID, AccountID: accountID, Amount: amount})
		return SubmitResult{Status: configs.StatusOk, Balance: bal}
	}
	go conn.Send(&network.Envelope{
		Mark:   configs.MarkFinish,
		Finish: &network.Finish{TxnID: txnID, Kind: configs.KindAdd, AccountID: accountID, Amount: amount},
	})
	return SubmitResult{Status: configs.StatusOk, Balance: bal}
}

// submitDebit starts a 2PC round for a Sub and blocks for its outcome.
func (n *Node) submitDebit(accountID, amount uint64) SubmitResult {
	connected, conn, coord := n.snapshotLink()
	if !connected && coord == nil {
		if n.isManualOffline() {
			return SubmitResult{Status: configs.StatusOffline}
		}
		return SubmitResult{Status: configs.StatusCoordinatorUnavailable}
	}

	txnID := n.ids.Next()
	resultCh := make(chan SubmitResult, 1)
	n.mu.Lock()
	n.pending[txnID] = &pendingDebit{accountID: accountID, amount: amount, state: configs.AwaitExecute, resultCh: resultCh}
	n.mu.Unlock()

	if coord != nil {
		coord.OnStart(txnID, accountID, amount, n.SelfID)
	} else {
		go conn.Send(&network.Envelope{
			Mark:  configs.MarkStart,
			Start: &network.Start{TxnID: txnID, AccountID: accountID, Amount: amount},
		})
	}

	select {
	case res := <-resultCh:
		return res
	case <-time.After(configs.TClient):
		n.mu.Lock()
		delete(n.pending, txnID)
		n.mu.Unlock()
		return SubmitResult{Status: configs.StatusTimeout}
	}
}

// HandleEnvelope dispatches a message received from the coordinator
// over this node's TCP connection (network/node/conn.go's receive
// loop).
func (n *Node) HandleEnvelope(e *network.Envelope) {
	switch e.Mark {
	case configs.MarkPrepare:
		n.onPrepare(e.Prepare)
	case configs.MarkExecute:
		n.onExecute(e.Execute.TxnID)
	case configs.MarkCommit:
		n.onCommit(e.Commit)
	case configs.MarkAbortAll:
		n.onAbortAll(e.AbortAll)
	default:
		configs.Warn(false, "node: unexpected mark from coordinator "+e.Mark)
	}
}

// onPrepare votes Yes on a debit's account lock: with no Byzantine
// peers and InsufficientFunds already decided at the coordinator before
// Prepare is ever sent (spec.md §7), a peer never has grounds to refuse.
func (n *Node) onPrepare(p *network.Prepare) {
	_, conn, coord := n.snapshotLink()
	if coord != nil {
		coord.OnYes(p.TxnID, n.SelfID)
		return
	}
	if conn != nil {
		go conn.Send(&network.Envelope{Mark: configs.MarkYes, Yes: &network.Yes{TxnID: p.TxnID, NodeID: n.SelfID}})
	}
}

func (n *Node) takePending(txnID uint64) (*pendingDebit, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pd, ok := n.pending[txnID]
	return pd, ok
}

// onExecute runs when the coordinator has collected every vote for a
// debit this node originated remotely: perform the side effect and
// report Finish or Abort.
func (n *Node) onExecute(txnID uint64) {
	n.mu.Lock()
	pd, ok := n.pending[txnID]
	if ok {
		pd.state = configs.Brewing
	}
	conn := n.coordConn
	n.mu.Unlock()
	if !ok {
		return
	}
	n.runBrewRemote(txnID, pd, conn)
}

func (n *Node) runBrewRemote(txnID uint64, pd *pendingDebit, conn *network.Conn) {
	if n.Brew(pd.accountID, pd.amount) {
		n.mu.Lock()
		pd.state = configs.AwaitCommit
		n.mu.Unlock()
		conn.Send(&network.Envelope{
			Mark:   configs.MarkFinish,
			Finish: &network.Finish{TxnID: txnID, Kind: configs.KindSub, AccountID: pd.accountID, Amount: pd.amount},
		})
		return
	}
	conn.Send(&network.Envelope{
		Mark:  configs.MarkAbort,
		Abort: &network.Abort{TxnID: txnID, AccountID: pd.accountID},
	})
}

// NotifyExecute implements coordinator.LocalOrigin for the case where
// this node hosts the coordinator that is sequencing its own debit: no
// loopback TCP hop, brew and report straight back into the Manager.
func (n *Node) NotifyExecute(txnID uint64) {
	pd, ok := n.takePending(txnID)
	if !ok {
		return
	}
	n.mu.Lock()
	pd.state = configs.Brewing
	coord := n.coord
	n.mu.Unlock()
	if coord == nil {
		return
	}
	if n.Brew(pd.accountID, pd.amount) {
		n.mu.Lock()
		pd.state = configs.AwaitCommit
		n.mu.Unlock()
		coord.OnFinish(txnID, configs.KindSub, pd.accountID, pd.amount, n.SelfID)
		return
	}
	coord.OnAbort(txnID, pd.accountID)
}

// NotifyDecision implements coordinator.LocalOrigin: the self-hosted
// coordinator has already applied (or discarded) the debit to the
// shared Store; route the terminal status back to the blocked client.
func (n *Node) NotifyDecision(txnID uint64, committed bool) {
	n.mu.Lock()
	pd, ok := n.pending[txnID]
	if ok {
		delete(n.pending, txnID)
	}
	n.mu.Unlock()
	if !ok {
		return
	}
	status := configs.StatusOk
	if !committed {
		status = decisionFailureStatus(pd.state)
	}
	pd.resultCh <- SubmitResult{Status: status, Balance: n.Store.Balance(pd.accountID)}
}

// onCommit applies a coordinator-decided Commit to this replica and,
// if it was this node's own pending debit, unblocks the waiting client.
func (n *Node) onCommit(c *network.Commit) {
	var bal uint64
	if c.Kind == configs.KindAdd {
		bal = n.Store.CreditOnce(c.TxnID, c.AccountID, c.Amount)
	} else {
		bal, _ = n.Store.Debit(c.AccountID, c.Amount)
	}
	if pd, ok := n.takePendingAndDelete(c.TxnID); ok {
		pd.resultCh <- SubmitResult{Status: configs.StatusOk, Balance: bal}
	}
	n.ackCommit(c.TxnID)
}

// onAbortAll discards a debit this node originated remotely, mapping
// the abort to InsufficientFunds if it happened before Execute was ever
// received (the coordinator rejected it outright) or BrewFailed if the
// node itself had already reported a failed brew.
func (n *Node) onAbortAll(a *network.AbortAll) {
	pd, ok := n.takePendingAndDelete(a.TxnID)
	if ok {
		pd.resultCh <- SubmitResult{Status: decisionFailureStatus(pd.state)}
	}
	n.ackAbort(a.TxnID)
}

func decisionFailureStatus(state uint8) string {
	if state == configs.AwaitExecute {
		return configs.StatusInsufficientFunds
	}
	return configs.StatusBrewFailed
}

func (n *Node) takePendingAndDelete(txnID uint64) (*pendingDebit, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pd, ok := n.pending[txnID]
	if ok {
		delete(n.pending, txnID)
	}
	return pd, ok
}

func (n *Node) ackCommit(txnID uint64) {
	_, conn, coord := n.snapshotLink()
	if coord != nil {
		return
	}
	if conn != nil {
		go conn.Send(&network.Envelope{Mark: configs.MarkOkey, Okey: &network.Okey{TxnID: txnID}})
	}
}

func (n *Node) ackAbort(txnID uint64) {
	_, conn, coord := n.snapshotLink()
	if coord != nil {
		return
	}
	if conn != nil {
		go conn.Send(&network.Envelope{Mark: configs.MarkOkeyAbort, OkeyAbort: &network.OkeyAbort{TxnID: txnID}})
	}
}
