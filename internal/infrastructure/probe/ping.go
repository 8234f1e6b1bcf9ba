package probe

import (
	"context"
	"strconv"
	"time"

	"camrelay/pkg/tracing"
)

// Pinger sends a single ICMP echo through the system ping tool.
type Pinger struct {
	runner CommandRunner
	goos   string
}

func NewPinger(runner CommandRunner, goos string) *Pinger {
	return &Pinger{runner: runner, goos: goos}
}

// Ping returns whether host answered and the raw tool output.
func (p *Pinger) Ping(ctx context.Context, host string, timeout time.Duration) (bool, string) {
	ctx, span := tracing.TraceProbe(ctx, "ping", host)
	defer span.End()

	// The tool's own wait is bounded by timeout; the extra second covers process startup.
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	out, err := p.runner.Run(ctx, "ping", pingArgs(p.goos, host, timeout)...)
	if err != nil {
		tracing.RecordError(ctx, err)
		return false, out
	}
	return true, out
}

func pingArgs(goos, host string, timeout time.Duration) []string {
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), host}
	case "darwin":
		// -W is in milliseconds on darwin.
		return []string{"-c", "1", "-W", strconv.FormatInt(timeout.Milliseconds(), 10), host}
	default:
		return []string{"-c", "1", "-W", strconv.Itoa(seconds(timeout)), host}
	}
}

func seconds(d time.Duration) int {
	s := int(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
