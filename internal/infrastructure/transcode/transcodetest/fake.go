// Package transcodetest provides in-memory transcoder processes for tests.
package transcodetest

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"camrelay/internal/infrastructure/transcode"
)

var ErrKilled = errors.New("signal: killed")

// FakeProcess behaves like a transcoder whose stdout is fed by Emit.
type FakeProcess struct {
	pid int
	r   *io.PipeReader
	w   *io.PipeWriter

	exited  chan struct{}
	once    sync.Once
	exitErr error

	ignoreTerminate bool
	terminated      atomic.Bool
	killed          atomic.Bool
}

func NewFakeProcess(pid int, ignoreTerminate bool) *FakeProcess {
	r, w := io.Pipe()
	return &FakeProcess{
		pid:             pid,
		r:               r,
		w:               w,
		exited:          make(chan struct{}),
		ignoreTerminate: ignoreTerminate,
	}
}

// Emit writes a chunk to stdout. It blocks until the supervisor reads it.
func (p *FakeProcess) Emit(chunk []byte) error {
	_, err := p.w.Write(chunk)
	return err
}

// Exit ends the process with err as its wait result.
func (p *FakeProcess) Exit(err error) {
	p.once.Do(func() {
		p.exitErr = err
		p.w.Close()
		close(p.exited)
	})
}

func (p *FakeProcess) Exited() <-chan struct{} { return p.exited }
func (p *FakeProcess) Terminated() bool       { return p.terminated.Load() }
func (p *FakeProcess) Killed() bool           { return p.killed.Load() }

func (p *FakeProcess) Stdout() io.Reader    { return p.r }
func (p *FakeProcess) Pid() int             { return p.pid }
func (p *FakeProcess) StderrTail() []string { return []string{"fake transcoder"} }

func (p *FakeProcess) Wait() error {
	<-p.exited
	return p.exitErr
}

func (p *FakeProcess) Terminate() error {
	p.terminated.Store(true)
	if !p.ignoreTerminate {
		p.Exit(nil)
	}
	return nil
}

func (p *FakeProcess) Kill() error {
	p.killed.Store(true)
	p.Exit(ErrKilled)
	return nil
}

// FakeLauncher records launches and hands out FakeProcesses.
type FakeLauncher struct {
	// SpawnDelay widens the window in which concurrent callers can race.
	SpawnDelay      time.Duration
	IgnoreTerminate bool

	mu       sync.Mutex
	err      error
	procs    []*FakeProcess
	urls     []string
	launches atomic.Int32
}

func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{}
}

// FailWith makes subsequent launches fail with err; nil restores success.
func (l *FakeLauncher) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *FakeLauncher) Launch(sourceURL string) (transcode.Process, error) {
	l.launches.Add(1)
	if l.SpawnDelay > 0 {
		time.Sleep(l.SpawnDelay)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, sourceURL)
	if l.err != nil {
		return nil, l.err
	}
	p := NewFakeProcess(1000+len(l.procs), l.IgnoreTerminate)
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *FakeLauncher) Launches() int {
	return int(l.launches.Load())
}

func (l *FakeLauncher) Processes() []*FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakeProcess(nil), l.procs...)
}

func (l *FakeLauncher) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

// Last returns the most recently launched process, or nil.
func (l *FakeLauncher) Last() *FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.procs) == 0 {
		return nil
	}
	return l.procs[len(l.procs)-1]
}
