package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"camrelay/pkg/tracing"
)

// Tracer records the network path to a host. Its output is informational only.
type Tracer struct {
	runner CommandRunner
	goos   string
}

func NewTracer(runner CommandRunner, goos string) *Tracer {
	return &Tracer{runner: runner, goos: goos}
}

func (t *Tracer) Trace(ctx context.Context, host string, maxHops int, timeout time.Duration) string {
	ctx, span := tracing.TraceProbe(ctx, "traceroute", host)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name, args := traceArgs(t.goos, host, maxHops)
	out, err := t.runner.Run(ctx, name, args...)
	if errors.Is(err, exec.ErrNotFound) && t.goos == "linux" {
		out, err = t.runner.Run(ctx, "tracepath", "-m", strconv.Itoa(maxHops), host)
	}
	if err != nil && out == "" {
		tracing.RecordError(ctx, err)
		return fmt.Sprintf("traceroute unavailable: %v", err)
	}
	return out
}

func traceArgs(goos, host string, maxHops int) (string, []string) {
	hops := strconv.Itoa(maxHops)
	if goos == "windows" {
		return "tracert", []string{"-d", "-h", hops, "-w", "1000", host}
	}
	return "traceroute", []string{"-n", "-m", hops, "-w", "1", "-q", "1", host}
}
