// Package faultctl is a tiny UDP control plane letting an operator (or
// a test harness) toggle one node's connect/disconnect lifecycle
// on demand, a deliberately simple stand-in for physically pulling a
// branch terminal offline.
package faultctl

import "net"

// Commands recognized on the control socket.
const (
	CmdDisconnect = "d"
	CmdReconnect  = "c"
)

// Controllable is what faultctl needs from a node: a way to leave.
type Controllable interface {
	Disconnect()
}

// BullyControl is what faultctl needs from the node's Bully listener to
// keep its connected flag mirroring the node's own (spec.md §4.4) and to
// run the Ping/PingCord reconnect handshake. Rejoin's own OnCoordinator/
// OnBecomeCoordinator callbacks (wired once at startup) do the actual
// dialing, so faultctl never needs to know a coordinator address itself.
type BullyControl interface {
	SetConnected(connected bool)
	Rejoin()
}

// Listener serves single-datagram commands against a Controllable.
type Listener struct {
	target Controllable
	bully  BullyControl
	conn   *net.UDPConn
}

// NewListener builds a fault-injection listener over target's node
// actor and bully listener.
func NewListener(target Controllable, bully BullyControl) *Listener {
	return &Listener{target: target, bully: bully}
}

// Listen binds addr and serves commands until closed.
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

// Close stops serving commands.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

func (l *Listener) readLoop() {
	buf := make([]byte, 16)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		switch string(buf[:n]) {
		case CmdDisconnect:
			l.target.Disconnect()
			l.bully.SetConnected(false)
		case CmdReconnect:
			l.bully.SetConnected(true)
			go l.bully.Rejoin()
		}
	}
}
