package node

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeewards/configs"
	"coffeewards/ledger"
	"coffeewards/network"
	"coffeewards/network/coordinator"
)

func newTestNode() *Node {
	store := ledger.NewStore(100)
	return NewNode(1, store, ledger.NewOfflineLog())
}

func TestSubmitDebitBeforeAnyCoordinatorKnownReturnsCoordinatorUnavailable(t *testing.T) {
	n := newTestNode()
	res := n.Submit(5, 10, configs.KindSub)
	assert.Equal(t, configs.StatusCoordinatorUnavailable, res.Status)
}

func TestSubmitDebitAfterVoluntaryDisconnectReturnsOffline(t *testing.T) {
	n := newTestNode()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	n.SetConnection(2, network.NewConn(client))
	go network.NewConn(server).Recv() // drain the Disconnect announcement

	n.Disconnect()

	res := n.Submit(5, 10, configs.KindSub)
	assert.Equal(t, configs.StatusOffline, res.Status)
}

func TestSubmitCreditWhileOfflineAppliesLocallyAndQueuesReplay(t *testing.T) {
	n := newTestNode()
	res := n.Submit(5, 20, configs.KindAdd)
	assert.Equal(t, configs.StatusOk, res.Status)
	assert.Equal(t, uint64(120), res.Balance)
	assert.Equal(t, 1, n.Offline.Len())
}

func TestSubmitCreditWhileConnectedForwardsFinishToCoordinator(t *testing.T) {
	n := newTestNode()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	n.SetConnection(2, network.NewConn(client))
	serverConn := network.NewConn(server)

	res := n.Submit(5, 15, configs.KindAdd)
	assert.Equal(t, configs.StatusOk, res.Status)
	assert.Equal(t, uint64(115), res.Balance)

	e, err := serverConn.Recv()
	require.NoError(t, err)
	assert.Equal(t, configs.MarkFinish, e.Mark)
	require.NotNil(t, e.Finish)
	assert.Equal(t, configs.KindAdd, e.Finish.Kind)
	assert.Equal(t, uint64(15), e.Finish.Amount)
}

func TestOnPrepareRepliesYesOverTheWire(t *testing.T) {
	n := newTestNode()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	n.SetConnection(2, network.NewConn(client))
	serverConn := network.NewConn(server)

	n.HandleEnvelope(&network.Envelope{
		Mark:    configs.MarkPrepare,
		Prepare: &network.Prepare{TxnID: 7, AccountID: 5, Amount: 10, Kind: configs.KindSub},
	})

	e, err := serverConn.Recv()
	require.NoError(t, err)
	assert.Equal(t, configs.MarkYes, e.Mark)
	require.NotNil(t, e.Yes)
	assert.Equal(t, uint64(7), e.Yes.TxnID)
	assert.Equal(t, uint64(1), e.Yes.NodeID)
}

func TestSelfHostedCoordinatorDebitResolvesThroughNotifyDecision(t *testing.T) {
	n := newTestNode()
	store := n.Store
	ctx := coordinator.NewContext(1, store)
	mgr := coordinator.NewManager(ctx, nil, coordinator.NewLogManager(""))
	n.SetCoordinator(mgr)

	// With no other peers registered, the coordinator's own vote
	// satisfies quorum immediately and the whole round resolves
	// synchronously within this call.
	res := n.Submit(5, 10, configs.KindSub)
	assert.Equal(t, configs.StatusOk, res.Status)
	assert.Equal(t, uint64(90), res.Balance)
}

func TestSelfHostedCoordinatorRejectsInsufficientFunds(t *testing.T) {
	n := newTestNode()
	ctx := coordinator.NewContext(1, n.Store)
	mgr := coordinator.NewManager(ctx, nil, coordinator.NewLogManager(""))
	n.SetCoordinator(mgr)

	res := n.Submit(5, 1000, configs.KindSub)
	assert.Equal(t, configs.StatusInsufficientFunds, res.Status)
}
