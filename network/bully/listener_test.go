package bully

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighestNodeBecomesCoordinatorWithoutAnyPeers(t *testing.T) {
	l := NewListener(3, nil, func(uint64) string { return "" })
	became := false
	l.OnBecomeCoordinator = func() { became = true }

	l.StartElection()

	assert.True(t, became)
	assert.Equal(t, uint64(3), l.CoordinatorID())
}

func TestSetCoordinatorFiresCallbackOnlyOnChange(t *testing.T) {
	l := NewListener(1, nil, func(uint64) string { return "" })
	calls := 0
	l.OnCoordinator = func(uint64) { calls++ }

	l.setCoordinator(5)
	l.setCoordinator(5)
	l.setCoordinator(7)

	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(7), l.CoordinatorID())
}

func TestHigherPeersFiltersBySelfID(t *testing.T) {
	l := NewListener(2, []uint64{1, 2, 3, 4}, func(uint64) string { return "" })
	assert.ElementsMatch(t, []uint64{3, 4}, l.higherPeers())
}

func TestDisconnectedListenerIgnoresIncomingTraffic(t *testing.T) {
	l := NewListener(1, []uint64{2}, func(uint64) string { return "" })
	l.SetConnected(false)

	l.handle(Envelope{Mark: MarkCoordinator, From: 2})
	l.handle(Envelope{Mark: MarkElection, From: 2})

	assert.Equal(t, uint64(0), l.CoordinatorID(), "a disconnected listener must not adopt a coordinator it hears about")
}

func TestDisconnectedListenerStartsNoElection(t *testing.T) {
	l := NewListener(1, nil, func(uint64) string { return "" })
	l.SetConnected(false)
	became := false
	l.OnBecomeCoordinator = func() { became = true }

	l.StartElection()

	assert.False(t, became, "a disconnected listener must not self-declare")
}

func TestRejoinSelfProclaimsWhenHighestAndNothingAnswers(t *testing.T) {
	l := NewListener(3, []uint64{1, 2}, func(uint64) string { return "" })
	became := false
	l.OnBecomeCoordinator = func() { became = true }

	l.Rejoin()

	assert.True(t, became, "the highest-id node must self-proclaim if no PingCord answers")
	assert.Equal(t, uint64(3), l.CoordinatorID())
}
