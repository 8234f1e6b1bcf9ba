// Package transcode supervises the external transcoder that turns an RTSP
// source into a browser-playable MPEG-TS byte stream.
package transcode

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/pkg/rtspurl"

	"go.uber.org/zap"
)

var ErrAlreadyStarted = errors.New("supervisor already started")

type Config struct {
	ChunkSize int
	StopGrace time.Duration
}

// Exit describes how a transcoder ended.
type Exit struct {
	Err       error
	Requested bool // ended because Stop was called
	Tail      []string
}

// Supervisor owns one transcoder process. States only move forward:
// starting, running, stopping, stopped. There is no restart.
type Supervisor struct {
	source   string // masked
	url      string
	launcher Launcher
	cfg      Config
	sink     func([]byte)
	onExit   func(Exit)
	logger   *zap.SugaredLogger

	mu            sync.Mutex
	state         domain.StreamState
	proc          Process
	started       bool
	stopRequested bool
	startedAt     time.Time
	firstByteAt   time.Time

	bytesOut atomic.Uint64
	done     chan struct{}
}

// NewSupervisor prepares a supervisor. sink receives every stdout chunk in
// order from a single goroutine; onExit is called exactly once after the
// process has exited.
func NewSupervisor(
	sourceURL string,
	launcher Launcher,
	cfg Config,
	sink func([]byte),
	onExit func(Exit),
	logger *zap.SugaredLogger,
) *Supervisor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 64 * 1024
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 2 * time.Second
	}
	masked := rtspurl.Mask(sourceURL)
	return &Supervisor{
		source:   masked,
		url:      sourceURL,
		launcher: launcher,
		cfg:      cfg,
		sink:     sink,
		onExit:   onExit,
		logger:   logger.With("source", masked),
		state:    domain.StreamStarting,
		done:     make(chan struct{}),
	}
}

// Start spawns the transcoder. RUNNING is entered as soon as the process is
// up; FirstByteAt tells whether output ever arrived.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	proc, err := s.launcher.Launch(s.url)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = domain.StreamStopped
		close(s.done)
		s.logger.Errorw("Failed to start transcoder", "error", rtspurl.MaskText(err.Error()))
		return err
	}

	s.proc = proc
	s.startedAt = time.Now()
	go s.run(proc)

	if s.stopRequested {
		// Stop was called while the process was being spawned.
		go s.terminate(proc)
		return nil
	}

	s.state = domain.StreamRunning
	s.logger.Infow("Transcoder started", "pid", proc.Pid())
	return nil
}

func (s *Supervisor) run(proc Process) {
	stdout := proc.Stdout()
	buf := make([]byte, s.cfg.ChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			if s.bytesOut.Add(uint64(n)) == uint64(n) {
				s.mu.Lock()
				s.firstByteAt = time.Now()
				s.mu.Unlock()
			}
			s.sink(frame)
		}
		if err != nil {
			break
		}
	}

	waitErr := proc.Wait()

	s.mu.Lock()
	s.state = domain.StreamStopped
	exit := Exit{Err: waitErr, Requested: s.stopRequested, Tail: proc.StderrTail()}
	s.mu.Unlock()
	close(s.done)

	switch {
	case exit.Requested:
		s.logger.Infow("Transcoder stopped", "pid", proc.Pid())
	case waitErr != nil:
		s.logger.Errorw("Transcoder exited", "pid", proc.Pid(), "error", waitErr, "stderr", exit.Tail)
	default:
		s.logger.Warnw("Transcoder output ended", "pid", proc.Pid(), "bytes", s.bytesOut.Load())
	}

	if s.onExit != nil {
		s.onExit(exit)
	}
}

// Stop asks the transcoder to terminate, escalating to kill after the grace
// period. It returns once the process has exited or the second grace period
// elapsed. Safe to call repeatedly and concurrently with a natural exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	switch s.state {
	case domain.StreamStopped:
		s.mu.Unlock()
		return
	case domain.StreamStopping:
		s.mu.Unlock()
		s.await(2 * s.cfg.StopGrace)
		return
	}
	proc := s.proc
	s.state = domain.StreamStopping
	s.stopRequested = true
	s.mu.Unlock()

	if proc == nil {
		// Still spawning; Start terminates the process once it is up.
		return
	}
	s.terminate(proc)
}

func (s *Supervisor) terminate(proc Process) {
	if err := proc.Terminate(); err != nil {
		s.logger.Debugw("Terminate signal failed", "pid", proc.Pid(), "error", err)
	}
	if s.await(s.cfg.StopGrace) {
		return
	}

	s.logger.Warnw("Transcoder ignored terminate, killing", "pid", proc.Pid())
	if err := proc.Kill(); err != nil {
		s.logger.Warnw("Kill failed", "pid", proc.Pid(), "error", err)
	}
	if !s.await(s.cfg.StopGrace) {
		s.logger.Errorw("Transcoder did not exit after kill", "pid", proc.Pid())
	}
}

func (s *Supervisor) await(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	}
}

// Done is closed once the process has exited or failed to start.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

func (s *Supervisor) State() domain.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return 0
	}
	return s.proc.Pid()
}

type Stats struct {
	State       domain.StreamState
	Pid         int
	StartedAt   time.Time
	FirstByteAt time.Time
	BytesOut    uint64
}

func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		State:       s.state,
		StartedAt:   s.startedAt,
		FirstByteAt: s.firstByteAt,
		BytesOut:    s.bytesOut.Load(),
	}
	if s.proc != nil {
		st.Pid = s.proc.Pid()
	}
	return st
}
