package probe

import (
	"context"
	"net"
	"strconv"
	"time"
)

// InternetChecker considers the internet reachable when any target accepts a
// TCP connection.
type InternetChecker struct {
	ports   *PortProbe
	targets []string
	timeout time.Duration
}

func NewInternetChecker(ports *PortProbe, targets []string, timeout time.Duration) *InternetChecker {
	return &InternetChecker{ports: ports, targets: targets, timeout: timeout}
}

func (c *InternetChecker) Check(ctx context.Context) bool {
	if len(c.targets) == 0 {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan bool, len(c.targets))
	for _, target := range c.targets {
		host, portStr, err := net.SplitHostPort(target)
		if err != nil {
			results <- false
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			results <- false
			continue
		}
		go func(host string, port int) {
			results <- c.ports.Probe(ctx, host, port, c.timeout)
		}(host, port)
	}

	for range c.targets {
		if <-results {
			return true
		}
	}
	return false
}
