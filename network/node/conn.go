package node

import (
	"net"

	"coffeewards/configs"
	"coffeewards/network"
)

// Dial opens a TCP connection to the coordinator at addr and completes
// the Connect handshake, announcing selfID.
func Dial(addr string, selfID uint64) (*network.Conn, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	conn := network.NewConn(raw)
	if err := conn.Send(&network.Envelope{Mark: configs.MarkConnect, Connect: &network.Connect{NodeID: selfID}}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// RunClient dials coordAddr, installs the connection on n (replaying
// any credits earned while offline, spec.md §4.1/§4.3), and pumps
// incoming envelopes into n.HandleEnvelope until the connection drops,
// at which point it marks n disconnected and returns. Callers (the
// Bully OnCoordinator/OnBecomeCoordinator wiring in cmd/coffeewards-server)
// decide whether and when to redial and re-run the discovery that picks
// the next coordinator address.
func RunClient(n *Node, coordID uint64, coordAddr string) error {
	conn, err := Dial(coordAddr, n.SelfID)
	if err != nil {
		return err
	}
	n.SetConnection(coordID, conn)
	defer n.SetDisconnected()

	for {
		e, err := conn.Recv()
		if err != nil {
			conn.Close()
			return err
		}
		n.HandleEnvelope(e)
	}
}
