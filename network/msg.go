// Package network defines the wire contracts for the node↔node TCP
// protocol (spec.md §6) and the shared framing helpers both the
// coordinator's and a node's TCP endpoints build on.
package network

import (
	"bufio"
	"net"
	"time"

	"github.com/goccy/go-json"

	"coffeewards/configs"
)

// Envelope wraps every node↔node TCP message. Mark selects which of the
// typed payload fields below is populated, mirroring the teacher's
// Mark-tagged dispatch in network/participant/conn.go.
type Envelope struct {
	Mark      string     `json:"mark"`
	Start     *Start     `json:"start,omitempty"`
	Prepare   *Prepare   `json:"prepare,omitempty"`
	Yes       *Yes       `json:"yes,omitempty"`
	Execute   *Execute   `json:"execute,omitempty"`
	Finish    *Finish    `json:"finish,omitempty"`
	Abort     *Abort     `json:"abort,omitempty"`
	Commit    *Commit    `json:"commit,omitempty"`
	AbortAll  *AbortAll  `json:"abort_all,omitempty"`
	Okey      *Okey      `json:"okey,omitempty"`
	OkeyAbort *OkeyAbort `json:"okey_abort,omitempty"`
	Disconnect *Disconnect `json:"disconnect,omitempty"`
	Connect    *Connect    `json:"connect,omitempty"`
}

// Connect is the first message a node sends on dialing the coordinator
// (or the coordinator's node-handler accepting a dial), announcing its
// node id so the coordinator can attribute subsequent messages.
type Connect struct {
	NodeID uint64 `json:"node_id"`
}

// Start is sent origin -> coord to open a new debit, carrying a tx_id
// the origin has already allocated (spec.md §9, tx_id scheme).
type Start struct {
	TxnID     uint64 `json:"txn_id"`
	AccountID uint64 `json:"account_id"`
	Amount    uint64 `json:"amount"`
}

// Prepare is sent coord -> peers (and to the origin) to open a debit's
// voting round.
type Prepare struct {
	TxnID     uint64 `json:"txn_id"`
	AccountID uint64 `json:"account_id"`
	Amount    uint64 `json:"amount"`
	Kind      string `json:"kind"`
}

// Yes is the peer -> coord vote in favor of a Prepare.
type Yes struct {
	TxnID  uint64 `json:"txn_id"`
	NodeID uint64 `json:"node_id"`
}

// Execute is sent coord -> origin once every vote is in: go brew.
type Execute struct {
	TxnID uint64 `json:"txn_id"`
}

// Finish is sent origin -> coord to report the outcome of the side
// effect that followed Execute (brew succeeded), or to report a
// fast-path credit ready to broadcast.
type Finish struct {
	TxnID     uint64 `json:"txn_id"`
	Kind      string `json:"kind"`
	AccountID uint64 `json:"account_id"`
	Amount    uint64 `json:"amount"`
}

// Abort is sent origin -> coord when the side effect (brew) failed.
type Abort struct {
	TxnID     uint64 `json:"txn_id"`
	AccountID uint64 `json:"account_id"`
}

// Commit is broadcast coord -> peers to apply a transaction's delta.
type Commit struct {
	TxnID     uint64 `json:"txn_id"`
	Kind      string `json:"kind"`
	AccountID uint64 `json:"account_id"`
	Amount    uint64 `json:"amount"`
}

// AbortAll is broadcast coord -> peers to discard a transaction.
type AbortAll struct {
	TxnID     uint64 `json:"txn_id"`
	AccountID uint64 `json:"account_id"`
}

// Okey acknowledges a Commit.
type Okey struct {
	TxnID uint64 `json:"txn_id"`
}

// OkeyAbort acknowledges an AbortAll.
type OkeyAbort struct {
	TxnID uint64 `json:"txn_id"`
}

// Disconnect is a node's self-announcement to the coordinator that it is
// leaving the cluster.
type Disconnect struct {
	NodeID uint64 `json:"node_id"`
}

// Conn is a thin newline-delimited JSON framer around a net.Conn,
// grounded in the teacher's network/coordinator/conn.go and
// network/participant/conn.go (bufio.Reader.ReadString('\n') +
// goccy/go-json, one write deadline per send).
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
}

// NewConn wraps an established connection for envelope framing.
func NewConn(raw net.Conn) *Conn {
	return &Conn{raw: raw, reader: bufio.NewReader(raw)}
}

// Send serializes and writes one envelope, newline-terminated.
func (c *Conn) Send(e *Envelope) error {
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	if err := c.raw.SetWriteDeadline(time.Now().Add(1 * time.Second)); err != nil {
		configs.Warn(false, err.Error())
	}
	_, err = c.raw.Write(buf)
	return err
}

// Recv blocks for the next newline-delimited envelope. It returns
// io.EOF when the peer closes the connection, the signal the node-handler
// uses to detect peer loss (spec.md §4.3).
func (c *Conn) Recv() (*Envelope, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	var e Envelope
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}
