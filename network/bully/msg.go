// Package bully implements the Bully leader-election subsystem of
// spec.md §4.4 over UDP: Election/Okey/Coordinator for the election
// itself, and Ping/PingCord for a reconnecting node to learn the
// current coordinator without forcing a fresh election.
package bully

// Mark values for the datagram Envelope below.
const (
	MarkElection    = "Election"
	MarkOkey        = "Okey"
	MarkCoordinator = "Coordinator"
	MarkPing        = "Ping"
	MarkPingCord    = "PingCord"
)

// Envelope is the whole of the Bully wire protocol: one small
// fixed-shape UDP datagram per message, framed with goccy/go-json like
// the TCP protocol in network/msg.go.
type Envelope struct {
	Mark string `json:"mark"`
	From uint64 `json:"from"`
	// CoordinatorID is populated on PingCord: the currently known
	// leader's node id. A Coordinator announcement names the new leader
	// in From instead.
	CoordinatorID uint64 `json:"coordinator_id,omitempty"`
}
