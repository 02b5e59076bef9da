package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnRoundTripsAnEnvelope(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	a := NewConn(client)
	b := NewConn(server)

	want := &Envelope{Mark: "Prepare", Prepare: &Prepare{TxnID: 1, AccountID: 2, Amount: 3, Kind: "Sub"}}
	go func() { require.NoError(t, a.Send(want)) }()

	got, err := b.Recv()
	require.NoError(t, err)
	assert.Equal(t, want.Mark, got.Mark)
	require.NotNil(t, got.Prepare)
	assert.Equal(t, *want.Prepare, *got.Prepare)
}

func TestRecvReturnsErrorOnClosedConn(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(client)
	server.Close()
	client.Close()

	_, err := conn.Recv()
	assert.Error(t, err)
}
