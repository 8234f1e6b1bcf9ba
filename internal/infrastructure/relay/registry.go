// Package relay owns live camera streams: one transcoder per source, fanned
// out to any number of viewers and reaped once nobody watches.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/internal/infrastructure/transcode"
	"camrelay/pkg/rtspurl"
	"camrelay/pkg/tracing"

	"go.uber.org/zap"
)

type Config struct {
	IdleGrace    time.Duration
	Transcode    transcode.Config
	EndpointBase string
}

// ActiveStream is one running relay. All mutable fields are guarded by the
// owning Registry's lock.
type ActiveStream struct {
	source     domain.StreamSource
	masked     string
	supervisor *transcode.Supervisor
	fanout     *FanOut
	reaper     IdleReaper
	createdAt  time.Time

	ready     chan struct{} // closed once the spawn outcome is known
	err       error         // spawn outcome, readable after ready
	announced bool
	stopping  bool

	// predecessor is the previous stream for the same source while its
	// transcoder is still exiting.
	predecessor *ActiveStream
}

func (s *ActiveStream) Key() domain.StreamKey { return s.source.Key }

// Registry maps stream keys to active streams. It is the only owner of
// ActiveStream lifecycles and is injected wherever streams are needed.
type Registry struct {
	mu       sync.Mutex
	streams  map[domain.StreamKey]*ActiveStream
	retiring map[domain.StreamKey]*ActiveStream

	launcher transcode.Launcher
	cfg      Config
	events   ports.EventPublisher
	metrics  Metrics
	logger   *zap.SugaredLogger
}

func NewRegistry(
	launcher transcode.Launcher,
	cfg Config,
	events ports.EventPublisher,
	metrics Metrics,
	logger *zap.SugaredLogger,
) *Registry {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if cfg.IdleGrace <= 0 {
		cfg.IdleGrace = 5 * time.Second
	}
	if cfg.EndpointBase == "" {
		cfg.EndpointBase = "/ws/streams/"
	}
	return &Registry{
		streams:  make(map[domain.StreamKey]*ActiveStream),
		retiring: make(map[domain.StreamKey]*ActiveStream),
		launcher: launcher,
		cfg:      cfg,
		events:   events,
		metrics:  metrics,
		logger:   logger,
	}
}

// Acquire returns the stream for rawURL, spawning its transcoder if needed.
// Concurrent callers for the same source share one spawn. Returning an
// existing stream cancels its pending idle teardown; while it has no viewers
// a fresh countdown starts so an unattached stream is still reaped.
func (r *Registry) Acquire(ctx context.Context, rawURL string) (*ActiveStream, error) {
	if !rtspurl.IsValid(rawURL) {
		return nil, domain.ErrInvalidSource
	}
	src := domain.NewStreamSource(rawURL)

	ctx, span := tracing.TraceRelay(ctx, "acquire", string(src.Key))
	defer span.End()

	for {
		r.mu.Lock()
		s, ok := r.streams[src.Key]
		if !ok {
			s = r.newStream(src)
			s.predecessor = r.retiring[src.Key]
			r.streams[src.Key] = s
			r.mu.Unlock()
			return r.start(ctx, s)
		}
		r.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if s.err != nil {
			return nil, s.err
		}

		r.mu.Lock()
		if r.streams[src.Key] == s && !s.stopping {
			s.reaper.Disarm()
			r.armIdleLocked(s)
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()
		// Torn down while we waited; start over with a fresh entry.
	}
}

func (r *Registry) newStream(src domain.StreamSource) *ActiveStream {
	s := &ActiveStream{
		source:    src,
		masked:    rtspurl.Mask(src.URL),
		createdAt: time.Now(),
		ready:     make(chan struct{}),
	}
	s.fanout = NewFanOut(func() { r.onEmpty(s) }, r.metrics)
	s.supervisor = transcode.NewSupervisor(src.URL, r.launcher, r.cfg.Transcode,
		func(frame []byte) { s.fanout.Broadcast(frame) },
		func(exit transcode.Exit) { r.handleExit(s, exit) },
		r.logger.With("stream_id", src.Key))
	return s
}

func (r *Registry) start(ctx context.Context, s *ActiveStream) (*ActiveStream, error) {
	if prev := s.predecessor; prev != nil {
		// Stop returns once the old transcoder exited or its grace periods ran out.
		prev.supervisor.Stop()
		r.mu.Lock()
		r.forgetRetiringLocked(prev)
		s.predecessor = nil
		r.mu.Unlock()
	}

	spawnErr := s.supervisor.Start()

	r.mu.Lock()
	switch {
	case spawnErr != nil:
		r.detachLocked(s)
		s.err = spawnErr
		if !errors.Is(spawnErr, domain.ErrSpawnFailed) {
			s.err = fmt.Errorf("%w: %s", domain.ErrSpawnFailed, rtspurl.MaskText(spawnErr.Error()))
		}
	case s.stopping:
		// Exited or removed before anyone could use it.
		s.err = domain.ErrTranscoderExited
	default:
		s.announced = true
		r.armIdleLocked(s)
	}
	close(s.ready)
	r.mu.Unlock()

	if s.err != nil {
		r.metrics.SpawnFailed()
		tracing.RecordError(ctx, s.err)
		r.logger.Errorw("Failed to start stream", "stream_id", s.Key(), "source", s.masked, "error", s.err)
		r.events.Publish(ctx, domain.SeverityError, "Stream failed to start", s.err.Error(), s.masked)
		return nil, s.err
	}

	r.metrics.StreamStarted()
	r.logger.Infow("Stream started", "stream_id", s.Key(), "source", s.masked, "pid", s.supervisor.Pid())
	r.events.Publish(ctx, domain.SeverityInfo, "Stream connected", "Relay started for camera", s.masked)
	return s, nil
}

// Attach adds viewer to the stream and cancels any pending idle teardown.
func (r *Registry) Attach(ctx context.Context, key domain.StreamKey, viewer ports.Viewer) error {
	r.mu.Lock()
	s, ok := r.streams[key]
	r.mu.Unlock()
	if !ok {
		return domain.ErrStreamNotFound
	}

	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streams[key] != s || s.stopping {
		return domain.ErrStreamStopped
	}
	s.reaper.Disarm()
	if err := s.fanout.Attach(viewer); err != nil {
		r.armIdleLocked(s)
		return err
	}
	r.logger.Debugw("Viewer attached", "stream_id", key, "viewer_id", viewer.ID())
	return nil
}

// Release detaches viewer. The idle countdown starts when the last viewer leaves.
func (r *Registry) Release(key domain.StreamKey, viewer ports.Viewer) {
	r.mu.Lock()
	s, ok := r.streams[key]
	r.mu.Unlock()
	if !ok {
		return
	}
	if s.fanout.Detach(viewer) {
		r.logger.Debugw("Viewer released", "stream_id", key, "viewer_id", viewer.ID())
	}
}

func (r *Registry) onEmpty(s *ActiveStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streams[s.Key()] == s {
		r.armIdleLocked(s)
	}
}

func (r *Registry) armIdleLocked(s *ActiveStream) {
	if s.stopping || s.fanout.Count() > 0 {
		return
	}
	s.reaper.Arm(r.cfg.IdleGrace, func(gen uint64) { r.reap(s, gen) })
}

func (r *Registry) reap(s *ActiveStream, gen uint64) {
	r.mu.Lock()
	if r.streams[s.Key()] != s || s.stopping || !s.reaper.Current(gen) || s.fanout.Count() > 0 {
		r.mu.Unlock()
		return
	}
	announced := r.detachLocked(s)
	r.mu.Unlock()

	r.logger.Infow("Stream idle, tearing down", "stream_id", s.Key(), "grace", r.cfg.IdleGrace)
	r.teardown(s, "idle", announced)
}

// detachLocked removes s from the map and marks it stopping. A stream whose
// transcoder is still running stays retiring until it exits, so a new stream
// for the same source does not spawn alongside it. It reports whether the
// stream had been announced as started.
func (r *Registry) detachLocked(s *ActiveStream) bool {
	if r.streams[s.Key()] == s {
		delete(r.streams, s.Key())
	}
	select {
	case <-s.supervisor.Done():
	default:
		r.retiring[s.Key()] = s
	}
	s.stopping = true
	s.reaper.Disarm()
	return s.announced
}

func (r *Registry) forgetRetiringLocked(s *ActiveStream) {
	if r.retiring[s.Key()] == s {
		delete(r.retiring, s.Key())
	}
}

// Remove tears the stream down unconditionally. It reports whether a stream
// was found; a second call is a no-op.
func (r *Registry) Remove(ctx context.Context, key domain.StreamKey) bool {
	_, span := tracing.TraceRelay(ctx, "remove", string(key))
	defer span.End()

	r.mu.Lock()
	s, ok := r.streams[key]
	if !ok {
		r.mu.Unlock()
		return false
	}
	announced := r.detachLocked(s)
	r.mu.Unlock()

	r.teardown(s, "disconnect", announced)
	return true
}

func (r *Registry) teardown(s *ActiveStream, reason string, announced bool) {
	s.supervisor.Stop()
	s.fanout.Close()

	if !announced {
		return
	}
	r.metrics.StreamEnded(reason)
	r.logger.Infow("Stream stopped", "stream_id", s.Key(), "source", s.masked, "reason", reason)
	r.events.Publish(context.Background(), domain.SeverityInfo, "Stream disconnected",
		fmt.Sprintf("Relay stopped (%s)", reason), s.masked)
}

// handleExit runs on the supervisor goroutine after the transcoder exited.
func (r *Registry) handleExit(s *ActiveStream, exit transcode.Exit) {
	r.mu.Lock()
	alreadyStopping := s.stopping
	announced := r.detachLocked(s)
	r.forgetRetiringLocked(s)
	r.mu.Unlock()

	s.fanout.Close()

	if alreadyStopping || !announced {
		return
	}

	r.metrics.StreamEnded("exit")
	if exit.Err != nil {
		msg := rtspurl.MaskText(exit.Err.Error())
		r.logger.Errorw("Transcoder exited unexpectedly", "stream_id", s.Key(), "source", s.masked, "error", msg)
		r.events.Publish(context.Background(), domain.SeverityError, "Stream failed",
			"Transcoder exited: "+msg, s.masked)
		return
	}
	r.logger.Warnw("Stream ended", "stream_id", s.Key(), "source", s.masked)
	r.events.Publish(context.Background(), domain.SeverityWarning, "Stream ended",
		"Camera stopped sending video", s.masked)
}

// Shutdown tears down every stream and waits for them, bounded by ctx.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	type pending struct {
		s         *ActiveStream
		announced bool
	}
	all := make([]pending, 0, len(r.streams))
	for _, s := range r.streams {
		all = append(all, pending{s: s, announced: r.detachLocked(s)})
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, p := range all {
			wg.Add(1)
			go func(p pending) {
				defer wg.Done()
				r.teardown(p.s, "shutdown", p.announced)
			}(p)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) info(s *ActiveStream) *domain.StreamInfo {
	st := s.supervisor.Stats()
	info := &domain.StreamInfo{
		ID:        s.Key(),
		Source:    s.masked,
		State:     st.State,
		Viewers:   s.fanout.Count(),
		Pid:       st.Pid,
		StartedAt: s.createdAt,
		BytesOut:  st.BytesOut,
		Endpoint:  r.cfg.EndpointBase + string(s.Key()),
	}
	if !st.FirstByteAt.IsZero() {
		t := st.FirstByteAt
		info.FirstByteAt = &t
	}
	return info
}

// Connect implements ports.RelayService.
func (r *Registry) Connect(ctx context.Context, rawURL string) (*domain.StreamInfo, error) {
	s, err := r.Acquire(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return r.info(s), nil
}

// Disconnect stops the stream for rawURL. Unknown sources are not an error.
func (r *Registry) Disconnect(ctx context.Context, rawURL string) error {
	if !rtspurl.IsValid(rawURL) {
		return domain.ErrInvalidSource
	}
	r.Remove(ctx, domain.NewStreamSource(rawURL).Key)
	return nil
}

func (r *Registry) Stop(ctx context.Context, key domain.StreamKey) error {
	if !r.Remove(ctx, key) {
		return domain.ErrStreamNotFound
	}
	return nil
}

func (r *Registry) Get(key domain.StreamKey) (*domain.StreamInfo, error) {
	r.mu.Lock()
	s, ok := r.streams[key]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	return r.info(s), nil
}

func (r *Registry) List() []*domain.StreamInfo {
	r.mu.Lock()
	streams := make([]*ActiveStream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.Unlock()

	infos := make([]*domain.StreamInfo, 0, len(streams))
	for _, s := range streams {
		infos = append(infos, r.info(s))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StartedAt.Before(infos[j].StartedAt) })
	return infos
}

var _ ports.RelayService = (*Registry)(nil)
