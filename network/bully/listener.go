package bully

import (
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"coffeewards/configs"
)

// Listener runs one node's side of the Bully algorithm. It owns no
// ledger state; it only decides who the coordinator is and notifies its
// owner (the server's main loop) when that changes.
type Listener struct {
	selfID  uint64
	peers   []uint64 // every other node id in the fixed cluster (spec.md's fixed max node count)
	addrFor func(nodeID uint64) string

	conn *net.UDPConn

	mu            sync.Mutex
	coordinatorID uint64 // 0 means unknown
	electionTerm  int
	okeySeen      bool
	connected     bool

	OnBecomeCoordinator func()
	OnCoordinator       func(coordID uint64)
}

// NewListener builds a Listener for selfID among the given peer ids,
// resolving a node id to its Bully UDP address with addrFor. A Listener
// starts connected (spec.md §4.4: "maintains a connected flag mirroring
// the node's own").
func NewListener(selfID uint64, peers []uint64, addrFor func(uint64) string) *Listener {
	return &Listener{selfID: selfID, peers: peers, addrFor: addrFor, connected: true}
}

// SetConnected mirrors the owning node's own connect/disconnect state
// (spec.md §4.4). While disconnected the listener ignores every
// incoming datagram and sends none, so a node that has voluntarily left
// the cluster cannot answer Election/Ping or self-declare coordinator.
func (l *Listener) SetConnected(connected bool) {
	l.mu.Lock()
	l.connected = connected
	l.mu.Unlock()
}

func (l *Listener) isConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Listen binds addr and starts the receive loop.
func (l *Listener) Listen(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	l.conn = conn
	go l.readLoop()
	return nil
}

// Close stops the receive loop.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// CoordinatorID reports the last known leader, 0 if none is known yet.
func (l *Listener) CoordinatorID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.coordinatorID
}

func (l *Listener) higherPeers() []uint64 {
	out := make([]uint64, 0, len(l.peers))
	for _, id := range l.peers {
		if id > l.selfID {
			out = append(out, id)
		}
	}
	return out
}

func (l *Listener) send(to uint64, e Envelope) {
	if !l.isConnected() {
		return
	}
	addr := l.addrFor(to)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		configs.Warn(false, "bully: bad address for node "+addr)
		return
	}
	buf, err := json.Marshal(e)
	if err != nil {
		configs.Warn(false, err.Error())
		return
	}
	if _, err := l.conn.WriteToUDP(buf, udpAddr); err != nil {
		configs.DPrintf("bully: send to %d failed: %v", to, err)
	}
}

func (l *Listener) readLoop() {
	buf := make([]byte, 512)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var e Envelope
		if err := json.Unmarshal(buf[:n], &e); err != nil {
			continue
		}
		l.handle(e)
	}
}

func (l *Listener) handle(e Envelope) {
	if !l.isConnected() {
		return
	}
	switch e.Mark {
	case MarkElection:
		l.send(e.From, Envelope{Mark: MarkOkey, From: l.selfID})
		go l.StartElection()
	case MarkOkey:
		l.mu.Lock()
		l.okeySeen = true
		l.mu.Unlock()
	case MarkCoordinator:
		l.setCoordinator(e.From)
	case MarkPing:
		l.mu.Lock()
		cid := l.coordinatorID
		l.mu.Unlock()
		l.send(e.From, Envelope{Mark: MarkPingCord, From: l.selfID, CoordinatorID: cid})
	case MarkPingCord:
		if e.CoordinatorID != 0 {
			l.setCoordinator(e.CoordinatorID)
		}
	}
}

func (l *Listener) setCoordinator(id uint64) {
	l.mu.Lock()
	changed := l.coordinatorID != id
	l.coordinatorID = id
	l.mu.Unlock()
	if changed && l.OnCoordinator != nil {
		l.OnCoordinator(id)
	}
}

// StartElection runs one Bully round: Election to every higher-id peer,
// then either yield to whichever of them answers Okey (and wait to hear
// who wins) or, after T_bully with no answer, declare victory and
// broadcast Coordinator to the whole cluster.
func (l *Listener) StartElection() {
	if !l.isConnected() {
		return
	}
	l.mu.Lock()
	l.electionTerm++
	term := l.electionTerm
	l.okeySeen = false
	l.mu.Unlock()

	higher := l.higherPeers()
	if len(higher) == 0 {
		l.becomeCoordinator()
		return
	}
	for _, id := range higher {
		l.send(id, Envelope{Mark: MarkElection, From: l.selfID})
	}

	time.Sleep(configs.TBully)

	l.mu.Lock()
	staleTerm := term != l.electionTerm
	sawOkey := l.okeySeen
	l.mu.Unlock()
	if staleTerm {
		// A newer election (triggered by an incoming Election of our own)
		// has already superseded this one.
		return
	}
	if sawOkey {
		// Someone higher is alive and should be running their own
		// election; give them time to announce before re-challenging.
		time.AfterFunc(configs.TBully, func() {
			l.mu.Lock()
			stillUnknown := l.coordinatorID == 0 && term == l.electionTerm
			l.mu.Unlock()
			if stillUnknown {
				l.StartElection()
			}
		})
		return
	}
	l.becomeCoordinator()
}

func (l *Listener) becomeCoordinator() {
	l.setCoordinator(l.selfID)
	for _, id := range l.peers {
		l.send(id, Envelope{Mark: MarkCoordinator, From: l.selfID})
	}
	if l.OnBecomeCoordinator != nil {
		l.OnBecomeCoordinator()
	}
}

// Ping asks a single peer who it believes the coordinator is, used by a
// reconnecting node before resorting to a full election (spec.md §4.4).
func (l *Listener) Ping(peerID uint64) {
	l.send(peerID, Envelope{Mark: MarkPing, From: l.selfID})
}

// Rejoin implements spec.md §4.4's reconnect handshake: Ping every
// configured peer and wait T_ping for a PingCord naming the current
// coordinator. A reply drives setCoordinator as usual, which fires
// OnCoordinator so the caller's existing dial-the-coordinator wiring
// runs without Rejoin needing to know about TCP at all. If nothing
// answers within T_ping and this node holds the highest configured id,
// it self-proclaims rather than waiting on a coordinator that may be
// gone too; otherwise it falls back to a full election to let Bully
// settle the question.
//
// The caller must re-enable the listener with SetConnected(true) before
// calling Rejoin — a disconnected listener sends nothing, including its
// own Pings.
func (l *Listener) Rejoin() {
	l.mu.Lock()
	l.coordinatorID = 0
	l.mu.Unlock()

	for _, id := range l.peers {
		l.Ping(id)
	}
	time.Sleep(configs.TPing)

	if l.CoordinatorID() != 0 {
		return
	}
	if len(l.higherPeers()) == 0 {
		l.becomeCoordinator()
		return
	}
	l.StartElection()
}
