package coordinator

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"

	"coffeewards/configs"
)

// txnHandler is the coordinator-side record of one in-flight transaction
// (spec.md §3, "Transaction"). Debits run their 2PC round through it;
// a credit taking the lock-free fast path (creditFastPath) gets one too,
// already Committed, only to collect the peers' Commit acknowledgements.
type txnHandler struct {
	mu sync.Mutex

	TxnID      uint64
	AccountID  uint64
	Amount     uint64
	OriginID   uint64
	State      uint8
	Votes      mapset.Set // node ids (+origin) that have voted Yes
	Acked      mapset.Set // node ids that have ack'd the decision
	Required   mapset.Set // active_peers ∪ {origin} snapshotted at Prepare time

	execTimer *time.Timer
}

func newTxnHandler(txnID, accountID, amount, originID uint64) *txnHandler {
	return &txnHandler{
		TxnID:     txnID,
		AccountID: accountID,
		Amount:    amount,
		OriginID:  originID,
		State:     configs.Starting,
		Votes:     mapset.NewSet(),
		Acked:     mapset.NewSet(),
		Required:  mapset.NewSet(),
	}
}

func (h *txnHandler) transit(state uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.State = state
}

func (h *txnHandler) getState() uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.State
}

// addVote records a Yes vote and reports whether every required voter
// (active_peers ∪ {origin} at Prepare time) has now voted.
func (h *txnHandler) addVote(nodeID uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Votes.Add(nodeID)
	return h.Required.IsSubset(h.Votes)
}

// addAck records a decision acknowledgement and reports whether every
// required node has ack'd (so the handler can be garbage-collected).
func (h *txnHandler) addAck(nodeID uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Acked.Add(nodeID)
	return h.Required.IsSubset(h.Acked)
}

func (h *txnHandler) stopExecTimer() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.execTimer != nil {
		h.execTimer.Stop()
		h.execTimer = nil
	}
}
