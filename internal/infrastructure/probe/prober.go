package probe

import (
	"context"
	"net"
	"runtime"
	"time"

	"camrelay/pkg/utils"
)

// maxOutputBytes caps tool output carried in a diagnostics result.
const maxOutputBytes = 8 * 1024

type Config struct {
	ProbeTimeout      time.Duration
	PingTimeout       time.Duration
	TracerouteTimeout time.Duration
	TracerouteMaxHops int
	InternetTargets   []string
}

// Prober bundles the individual probes behind the timeouts from Config.
type Prober struct {
	cfg      Config
	ports    *PortProbe
	pinger   *Pinger
	tracer   *Tracer
	internet *InternetChecker
	addrs    InterfaceAddrsFunc
}

func NewProber(cfg Config, runner CommandRunner) *Prober {
	if runner == nil {
		runner = ExecRunner{}
	}
	ports := NewPortProbe()
	return &Prober{
		cfg:      cfg,
		ports:    ports,
		pinger:   NewPinger(runner, runtime.GOOS),
		tracer:   NewTracer(runner, runtime.GOOS),
		internet: NewInternetChecker(ports, cfg.InternetTargets, cfg.ProbeTimeout),
		addrs:    net.InterfaceAddrs,
	}
}

func (p *Prober) Ping(ctx context.Context, host string) (bool, string) {
	ok, out := p.pinger.Ping(ctx, host, p.cfg.PingTimeout)
	return ok, utils.TruncateString(out, maxOutputBytes)
}

func (p *Prober) ProbePort(ctx context.Context, host string, port int) bool {
	return p.ports.Probe(ctx, host, port, p.cfg.ProbeTimeout)
}

func (p *Prober) Traceroute(ctx context.Context, host string) string {
	out := p.tracer.Trace(ctx, host, p.cfg.TracerouteMaxHops, p.cfg.TracerouteTimeout)
	return utils.TruncateString(out, maxOutputBytes)
}

func (p *Prober) InternetReachable(ctx context.Context) bool {
	return p.internet.Check(ctx)
}

func (p *Prober) LocalIPv4() string {
	return FirstIPv4(p.addrs)
}
