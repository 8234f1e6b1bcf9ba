package relay

import (
	"sync/atomic"
	"testing"

	"camrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOut_BroadcastPreservesOrder(t *testing.T) {
	f := NewFanOut(nil, nil)
	a, b := newFakeViewer(10), newFakeViewer(10)
	require.NoError(t, f.Attach(a))
	require.NoError(t, f.Attach(b))

	for _, chunk := range []string{"1", "2", "3"} {
		assert.Equal(t, 2, f.Broadcast([]byte(chunk)))
	}

	assert.Equal(t, []string{"1", "2", "3"}, a.received())
	assert.Equal(t, []string{"1", "2", "3"}, b.received())
}

func TestFanOut_SlowViewerDroppedWithoutStallingOthers(t *testing.T) {
	var empties atomic.Int32
	f := NewFanOut(func() { empties.Add(1) }, nil)
	fast, slow := newFakeViewer(100), newFakeViewer(1)
	require.NoError(t, f.Attach(fast))
	require.NoError(t, f.Attach(slow))

	f.Broadcast([]byte("a"))
	delivered := f.Broadcast([]byte("b"))

	assert.Equal(t, 1, delivered)
	assert.True(t, slow.isClosed())
	assert.False(t, fast.isClosed())
	assert.Equal(t, 1, f.Count())
	assert.Equal(t, []string{"a", "b"}, fast.received())
	assert.Equal(t, int32(0), empties.Load())
}

func TestFanOut_DetachIdempotentAndSignalsEmpty(t *testing.T) {
	var empties atomic.Int32
	f := NewFanOut(func() { empties.Add(1) }, nil)
	v := newFakeViewer(1)
	require.NoError(t, f.Attach(v))

	assert.True(t, f.Detach(v))
	assert.False(t, f.Detach(v))
	assert.Equal(t, 0, f.Count())
	assert.Equal(t, int32(1), empties.Load())
}

func TestFanOut_CloseClosesViewersAndRejectsAttach(t *testing.T) {
	var empties atomic.Int32
	f := NewFanOut(func() { empties.Add(1) }, nil)
	views := []*fakeViewer{newFakeViewer(1), newFakeViewer(1), newFakeViewer(1)}
	for _, v := range views {
		require.NoError(t, f.Attach(v))
	}

	f.Close()
	f.Close()

	for _, v := range views {
		assert.True(t, v.isClosed())
	}
	assert.Equal(t, 0, f.Count())
	assert.Equal(t, 0, f.Broadcast([]byte("late")))
	assert.ErrorIs(t, f.Attach(newFakeViewer(1)), domain.ErrChannelClosed)
	assert.Equal(t, int32(0), empties.Load(), "closing is not an idle transition")
}
