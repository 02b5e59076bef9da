package utils

import "sync/atomic"

// TxnIDAllocator hands out monotonic, per-node-unique transaction ids by
// composing a local counter with the owning node's id, as required by
// spec.md §9 ("tx_id = (origin_node_id, local_counter)"): global
// uniqueness without coordination, and it survives offline-credit replay
// deduplication on Commit.
type TxnIDAllocator struct {
	nodeID  uint64
	counter uint64
}

// NewTxnIDAllocator builds an allocator for the given node id.
func NewTxnIDAllocator(nodeID uint64) *TxnIDAllocator {
	return &TxnIDAllocator{nodeID: nodeID}
}

// Next returns the next tx_id owned by this node. The node id occupies
// the high 32 bits, the local counter the low 32 bits, so distinct nodes
// never collide and a node's own ids stay monotonic.
func (a *TxnIDAllocator) Next() uint64 {
	c := atomic.AddUint64(&a.counter, 1)
	return (a.nodeID << 32) | (c & 0xffffffff)
}

// OriginOf extracts the origin_node_id encoded into a tx_id by Next.
func OriginOf(txID uint64) uint64 {
	return txID >> 32
}
