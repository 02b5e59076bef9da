package branch

import (
	"net"

	"github.com/goccy/go-json"

	"coffeewards/configs"
	"coffeewards/network/node"
)

// Submitter is the subset of *node.Node the branch listener needs —
// narrowed to an interface so tests can stub client behavior without a
// whole Node.
type Submitter interface {
	Submit(accountID, amount uint64, kind string) node.SubmitResult
}

// Listener is the UDP front door a coffee-machine branch terminal talks
// to. Each request is handled on its own goroutine so one slow brew
// never head-of-line blocks unrelated accounts (spec.md §4.1 allows
// concurrent debits on different accounts).
type Listener struct {
	n    Submitter
	conn *net.UDPConn
}

// NewListener builds a branch listener that forwards requests to n.
func NewListener(n Submitter) *Listener {
	return &Listener{n: n}
}

// Listen binds addr and serves requests until the listener is closed.
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

// Close stops serving requests.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

func (l *Listener) readLoop() {
	buf := make([]byte, 512)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			configs.Warn(false, "branch: malformed request from "+from.String())
			continue
		}
		go l.handle(req, from)
	}
}

func (l *Listener) handle(req Request, from *net.UDPAddr) {
	res := l.n.Submit(req.AccountID, req.Amount, req.Kind)
	reply := Reply{CorrID: req.CorrID, Status: res.Status, Balance: res.Balance}
	buf, err := json.Marshal(reply)
	if err != nil {
		configs.Warn(false, err.Error())
		return
	}
	if _, err := l.conn.WriteToUDP(buf, from); err != nil {
		configs.DPrintf("branch: reply to %s failed: %v", from, err)
	}
}
