package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddVoteReportsQuorumOnlyWhenRequiredSatisfied(t *testing.T) {
	h := newTxnHandler(1, 5, 10, 1)
	h.Required.Add(uint64(1))
	h.Required.Add(uint64(2))

	assert.False(t, h.addVote(1))
	assert.True(t, h.addVote(2))
}

func TestAddAckIsIndependentOfVotes(t *testing.T) {
	h := newTxnHandler(1, 5, 10, 1)
	h.Required.Add(uint64(1))
	h.Required.Add(uint64(2))

	assert.False(t, h.addAck(1))
	assert.True(t, h.addAck(2))
	assert.Equal(t, 0, h.Votes.Cardinality())
}

func TestStopExecTimerIsSafeWithoutATimer(t *testing.T) {
	h := newTxnHandler(1, 5, 10, 1)
	h.stopExecTimer()
}
