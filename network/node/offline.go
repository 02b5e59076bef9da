package node

import (
	"coffeewards/configs"
	"coffeewards/network"
)

// replayOffline drains accumulated offline credits and resends each as
// an ordinary Finish(Add,...), in the original order they were earned
// (spec.md §9's resolved Open Question: replay must preserve order).
// The coordinator's creditFastPath and every replica's CreditOnce make
// this safe to resend even if a prior attempt partially landed.
func (n *Node) replayOffline(conn *network.Conn) {
	entries := n.Offline.Drain()
	if len(entries) == 0 {
		return
	}
	configs.TPrintf("node %d replaying %d offline credits", n.SelfID, len(entries))
	for _, c := range entries {
		if err := conn.Send(&network.Envelope{
			Mark:   configs.MarkFinish,
			Finish: &network.Finish{TxnID: c.TxnID, Kind: configs.KindAdd, AccountID: c.AccountID, Amount: c.Amount},
		}); err != nil {
			configs.Warn(false, "offline replay interrupted: "+err.Error())
			return
		}
	}
}
