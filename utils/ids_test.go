package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIDsAreMonotonicAndCarryOrigin(t *testing.T) {
	a := NewTxnIDAllocator(3)
	first := a.Next()
	second := a.Next()

	assert.Less(t, first, second)
	assert.Equal(t, uint64(3), OriginOf(first))
	assert.Equal(t, uint64(3), OriginOf(second))
}

func TestDistinctNodesNeverCollide(t *testing.T) {
	a := NewTxnIDAllocator(1)
	b := NewTxnIDAllocator(2)

	assert.NotEqual(t, a.Next(), b.Next())
	assert.Equal(t, uint64(1), OriginOf(a.Next()))
	assert.Equal(t, uint64(2), OriginOf(b.Next()))
}
