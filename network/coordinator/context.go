// Package coordinator implements the coordinator ROLE described in
// spec.md §4.2: 2PC sequencing for debits, per-account locking, and the
// asynchronous credit broadcast fast path. It is spawned when a node
// wins a Bully election and torn down on handover, never tied to
// process lifetime (spec.md §9, "coordinator-as-role").
package coordinator

import (
	"coffeewards/ledger"

	mapset "github.com/deckarep/golang-set"
)

// Context is the coordinator's view of the world: which node it is
// running on top of, and the local ledger it shares with that node's
// own actor (the coordinator applies its own Commit deltas to the same
// store a plain peer would apply them to, spec.md §4.2).
type Context struct {
	SelfID uint64
	Local  *ledger.Store
}

// NewContext builds a coordinator context bound to selfID's local store.
func NewContext(selfID uint64, local *ledger.Store) *Context {
	return &Context{SelfID: selfID, Local: local}
}

// PeerSet is a small wrapper so call sites read naturally
// ("peers.Add(id)") without importing mapset everywhere.
type PeerSet struct {
	set mapset.Set
}

// NewPeerSet creates an empty peer set.
func NewPeerSet() *PeerSet { return &PeerSet{set: mapset.NewSet()} }

func (p *PeerSet) Add(id uint64)    { p.set.Add(id) }
func (p *PeerSet) Remove(id uint64) { p.set.Remove(id) }

// Snapshot returns the current member ids.
func (p *PeerSet) Snapshot() []uint64 {
	vals := p.set.ToSlice()
	out := make([]uint64, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.(uint64))
	}
	return out
}
