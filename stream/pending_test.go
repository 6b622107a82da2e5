package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingQueueFrontBackOrder(t *testing.T) {
	var q pendingQueue
	require.True(t, q.empty())

	var a = newStreamBlock(16, 0, 0, "")
	var b = newStreamBlock(16, 16, 0, "")
	var c = newStreamBlock(16, 32, 0, "")

	q.pushBack(a)
	q.pushBack(b)
	q.pushBack(c)
	require.Equal(t, 3, q.len())
	require.Same(t, a, q.front())
	require.Same(t, c, q.back())

	require.Same(t, c, q.popBack())
	require.Equal(t, 2, q.len())

	require.Same(t, a, q.popFront())
	require.Equal(t, 1, q.len())
	require.Same(t, b, q.front())
	require.Same(t, b, q.back())
}
