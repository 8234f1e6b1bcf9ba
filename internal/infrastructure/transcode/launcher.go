package transcode

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	"camrelay/internal/core/domain"
	"camrelay/pkg/rtspurl"
	"camrelay/pkg/utils"

	"go.uber.org/zap"
)

// Process is a running transcoder. Stdout must be drained to EOF before Wait
// is called.
type Process interface {
	Stdout() io.Reader
	Pid() int
	Wait() error
	Terminate() error
	Kill() error
	StderrTail() []string
}

type Launcher interface {
	Launch(sourceURL string) (Process, error)
}

type FFmpegConfig struct {
	Path         string
	VideoBitrate string
	FrameRate    int
	AudioEnabled bool
	StderrLines  int
}

// FFmpegLauncher starts ffmpeg reading RTSP over TCP and writing MPEG-TS
// (mpeg1video, optional mono mp2) to stdout.
type FFmpegLauncher struct {
	cfg    FFmpegConfig
	logger *zap.SugaredLogger
}

func NewFFmpegLauncher(cfg FFmpegConfig, logger *zap.SugaredLogger) *FFmpegLauncher {
	if cfg.Path == "" {
		cfg.Path = "ffmpeg"
	}
	if cfg.StderrLines <= 0 {
		cfg.StderrLines = 20
	}
	return &FFmpegLauncher{cfg: cfg, logger: logger}
}

func (l *FFmpegLauncher) Args(sourceURL string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-rtsp_transport", "tcp",
		"-i", sourceURL,
		"-f", "mpegts",
		"-codec:v", "mpeg1video",
		"-b:v", l.cfg.VideoBitrate,
		"-r", strconv.Itoa(l.cfg.FrameRate),
		"-bf", "0",
	}
	if l.cfg.AudioEnabled {
		args = append(args, "-codec:a", "mp2", "-ar", "44100", "-ac", "1", "-b:a", "64k")
	} else {
		args = append(args, "-an")
	}
	return append(args, "pipe:1")
}

func (l *FFmpegLauncher) Launch(sourceURL string) (Process, error) {
	cmd := exec.Command(l.cfg.Path, l.Args(sourceURL)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", domain.ErrSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", domain.ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSpawnFailed, rtspurl.MaskText(err.Error()))
	}

	p := &ffmpegProcess{
		cmd:        cmd,
		stdout:     stdout,
		stderrDone: make(chan struct{}),
		tailSize:   l.cfg.StderrLines,
	}
	go p.drainStderr(stderr, l.logger.With("pid", cmd.Process.Pid, "source", rtspurl.Mask(sourceURL)))

	return p, nil
}

type ffmpegProcess struct {
	cmd        *exec.Cmd
	stdout     io.Reader
	stderrDone chan struct{}

	mu       sync.Mutex
	tail     []string
	tailSize int
}

// drainStderr logs ffmpeg diagnostics. The output is never interpreted.
func (p *ffmpegProcess) drainStderr(r io.Reader, logger *zap.SugaredLogger) {
	defer close(p.stderrDone)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := rtspurl.MaskText(utils.SanitizeString(scanner.Text()))
		if line == "" {
			continue
		}
		logger.Debugw("ffmpeg", "line", line)

		p.mu.Lock()
		p.tail = append(p.tail, line)
		if len(p.tail) > p.tailSize {
			p.tail = p.tail[len(p.tail)-p.tailSize:]
		}
		p.mu.Unlock()
	}
}

func (p *ffmpegProcess) Stdout() io.Reader { return p.stdout }

func (p *ffmpegProcess) Pid() int { return p.cmd.Process.Pid }

func (p *ffmpegProcess) Wait() error {
	<-p.stderrDone
	return p.cmd.Wait()
}

func (p *ffmpegProcess) Terminate() error {
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *ffmpegProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *ffmpegProcess) StderrTail() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tail...)
}
