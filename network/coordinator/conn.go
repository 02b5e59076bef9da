package coordinator

import (
	"net"
	"sync"

	"coffeewards/configs"
	"coffeewards/network"
)

// Commu is the coordinator's TCP front door: it accepts one long-lived
// connection per connected node, attributes inbound envelopes to the
// Manager's handlers, and implements PeerSender so the Manager can
// address a specific node without knowing about sockets. Grounded on
// the teacher's network/coordinator/conn.go Commu (connMap sync.Map,
// a semaphore bounding concurrent handlers, one goroutine per
// connection).
type Commu struct {
	mgr      *Manager
	listener net.Listener
	connMap  sync.Map // nodeID -> *network.Conn
	sem      chan struct{}
}

// NewCommu builds a Commu bound to mgr. It does not start listening;
// call Listen.
func NewCommu(mgr *Manager) *Commu {
	return &Commu{
		mgr: mgr,
		sem: make(chan struct{}, configs.MaxConnectionHandler),
	}
}

// Listen opens addr and accepts node connections until the listener is
// closed.
func (c *Commu) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	c.listener = ln
	go c.acceptLoop()
	return nil
}

// Shutdown closes the listener and every live node connection.
func (c *Commu) Shutdown() {
	if c.listener != nil {
		c.listener.Close()
	}
	c.connMap.Range(func(_, v interface{}) bool {
		v.(*network.Conn).Close()
		return true
	})
}

func (c *Commu) acceptLoop() {
	for {
		raw, err := c.listener.Accept()
		if err != nil {
			return
		}
		go c.handleConn(raw)
	}
}

func (c *Commu) handleConn(raw net.Conn) {
	conn := network.NewConn(raw)
	hello, err := conn.Recv()
	if err != nil || hello.Mark != configs.MarkConnect || hello.Connect == nil {
		configs.Warn(false, "node-handler: peer did not send Connect as first message")
		conn.Close()
		return
	}
	nodeID := hello.Connect.NodeID
	c.connMap.Store(nodeID, conn)
	c.mgr.AddPeer(nodeID)

	for {
		e, err := conn.Recv()
		if err != nil {
			c.connMap.Delete(nodeID)
			c.mgr.RemovePeer(nodeID)
			conn.Close()
			return
		}
		c.sem <- struct{}{}
		c.dispatch(nodeID, e)
		<-c.sem
	}
}

func (c *Commu) dispatch(nodeID uint64, e *network.Envelope) {
	switch e.Mark {
	case configs.MarkStart:
		c.mgr.OnStart(e.Start.TxnID, e.Start.AccountID, e.Start.Amount, nodeID)
	case configs.MarkYes:
		c.mgr.OnYes(e.Yes.TxnID, e.Yes.NodeID)
	case configs.MarkFinish:
		c.mgr.OnFinish(e.Finish.TxnID, e.Finish.Kind, e.Finish.AccountID, e.Finish.Amount, nodeID)
	case configs.MarkAbort:
		c.mgr.OnAbort(e.Abort.TxnID, e.Abort.AccountID)
	case configs.MarkOkey:
		c.mgr.OnOkey(e.Okey.TxnID, nodeID)
	case configs.MarkOkeyAbort:
		c.mgr.OnOkeyAbort(e.OkeyAbort.TxnID, nodeID)
	case configs.MarkDisconnect:
		if conn, ok := c.connMap.Load(nodeID); ok {
			conn.(*network.Conn).Close()
		}
		c.connMap.Delete(nodeID)
		c.mgr.RemovePeer(nodeID)
	default:
		configs.Warn(false, "node-handler: unexpected mark from node "+e.Mark)
	}
}

// SendTo implements PeerSender by writing e to nodeID's live connection,
// if any. A missing or broken connection is treated as the peer already
// having disconnected.
func (c *Commu) SendTo(nodeID uint64, e *network.Envelope) error {
	v, ok := c.connMap.Load(nodeID)
	if !ok {
		return nil
	}
	conn := v.(*network.Conn)
	if err := conn.Send(e); err != nil {
		c.connMap.Delete(nodeID)
		c.mgr.RemovePeer(nodeID)
		return err
	}
	return nil
}
