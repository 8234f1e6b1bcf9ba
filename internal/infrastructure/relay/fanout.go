package relay

import (
	"sync"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
)

// FanOut copies every transcoder chunk to all attached viewers. Broadcast
// never blocks on a viewer: one whose queue is full is dropped and closed.
type FanOut struct {
	mu      sync.RWMutex
	viewers map[string]ports.Viewer
	closed  bool

	// onEmpty runs, outside the lock, whenever membership drops to zero
	// through Detach or a drop.
	onEmpty func()
	metrics Metrics
}

func NewFanOut(onEmpty func(), metrics Metrics) *FanOut {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &FanOut{
		viewers: make(map[string]ports.Viewer),
		onEmpty: onEmpty,
		metrics: metrics,
	}
}

func (f *FanOut) Attach(v ports.Viewer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.ErrChannelClosed
	}
	if _, ok := f.viewers[v.ID()]; !ok {
		f.viewers[v.ID()] = v
		f.metrics.ViewerAttached()
	}
	return nil
}

// Detach removes v. It reports whether v was attached; repeated calls are no-ops.
func (f *FanOut) Detach(v ports.Viewer) bool {
	f.mu.Lock()
	removed, empty := f.removeLocked(v)
	f.mu.Unlock()

	if empty && f.onEmpty != nil {
		f.onEmpty()
	}
	return removed
}

func (f *FanOut) removeLocked(v ports.Viewer) (removed, empty bool) {
	cur, ok := f.viewers[v.ID()]
	if !ok || cur != v {
		return false, false
	}
	delete(f.viewers, v.ID())
	f.metrics.ViewerDetached()
	return true, len(f.viewers) == 0 && !f.closed
}

// Broadcast queues frame on every viewer and returns how many accepted it.
func (f *FanOut) Broadcast(frame []byte) int {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return 0
	}
	var slow []ports.Viewer
	delivered := 0
	for _, v := range f.viewers {
		if v.Send(frame) {
			delivered++
		} else {
			slow = append(slow, v)
		}
	}
	f.mu.RUnlock()

	f.metrics.BytesRelayed(len(frame) * delivered)

	for _, v := range slow {
		f.metrics.ViewerDropped()
		f.Detach(v)
		v.Close()
	}
	return delivered
}

func (f *FanOut) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.viewers)
}

// Close detaches and closes every viewer. Later attaches fail.
func (f *FanOut) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	viewers := make([]ports.Viewer, 0, len(f.viewers))
	for id, v := range f.viewers {
		viewers = append(viewers, v)
		delete(f.viewers, id)
		f.metrics.ViewerDetached()
	}
	f.mu.Unlock()

	for _, v := range viewers {
		v.Close()
	}
}
