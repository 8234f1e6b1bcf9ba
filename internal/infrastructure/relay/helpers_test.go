package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"camrelay/internal/core/domain"
)

var viewerSeq atomic.Int64

type fakeViewer struct {
	id       string
	capacity int

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeViewer(capacity int) *fakeViewer {
	return &fakeViewer{id: fmt.Sprintf("viewer-%d", viewerSeq.Add(1)), capacity: capacity}
}

func (v *fakeViewer) ID() string { return v.id }

func (v *fakeViewer) Send(frame []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || len(v.frames) >= v.capacity {
		return false
	}
	v.frames = append(v.frames, frame)
	return true
}

func (v *fakeViewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *fakeViewer) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *fakeViewer) received() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.frames))
	for i, f := range v.frames {
		out[i] = string(f)
	}
	return out
}

type publishedEvent struct {
	severity domain.Severity
	title    string
	message  string
	source   string
}

type eventRecorder struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *eventRecorder) Publish(ctx context.Context, severity domain.Severity, title, message, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{severity, title, message, source})
}

func (r *eventRecorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.title
	}
	return out
}

func (r *eventRecorder) all() []publishedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]publishedEvent(nil), r.events...)
}
