package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"camrelay/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// PortProbe checks TCP port liveness with a raw connect.
type PortProbe struct {
	dial func(timeout time.Duration) DialFunc
}

func NewPortProbe() *PortProbe {
	return &PortProbe{
		dial: func(timeout time.Duration) DialFunc {
			d := &net.Dialer{Timeout: timeout}
			return d.DialContext
		},
	}
}

// Probe reports whether host:port accepted a TCP connection within timeout.
// The connection, if any, is closed before returning.
func (p *PortProbe) Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ctx, span := tracing.TraceProbe(ctx, "port", addr)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dial(timeout)(ctx, "tcp", addr)
	if err != nil {
		span.SetAttributes(attribute.Bool("probe.open", false))
		return false
	}
	conn.Close()

	span.SetAttributes(attribute.Bool("probe.open", true))
	return true
}
