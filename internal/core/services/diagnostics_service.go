package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/tracing"
	"camrelay/pkg/validation"

	"go.uber.org/zap"
)

// DiagnosticsObserver receives the outcome of every diagnostics run.
type DiagnosticsObserver interface {
	ObserveDiagnostics(status domain.DiagnosticsStatus, duration time.Duration)
}

type diagnosticsService struct {
	prober   ports.NetworkProber
	events   ports.EventPublisher
	observer DiagnosticsObserver
	timeout  time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewDiagnosticsService(
	prober ports.NetworkProber,
	events ports.EventPublisher,
	observer DiagnosticsObserver, // optional
	timeout time.Duration,
	logger *zap.SugaredLogger,
) ports.DiagnosticsService {
	return &diagnosticsService{
		prober:   prober,
		events:   events,
		observer: observer,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Run probes the camera and composes the result. Only invalid input is
// returned as an error; probe failures are part of the result.
func (s *diagnosticsService) Run(ctx context.Context, cameraIP string, rtspPort int) (*domain.DiagnosticsResult, error) {
	if err := validation.ValidateIPv4(cameraIP); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	if err := validation.ValidatePort(rtspPort); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}

	ctx, span := tracing.TraceDiagnostics(ctx, cameraIP, rtspPort)
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	result := &domain.DiagnosticsResult{
		ServerIP:  s.prober.LocalIPv4(),
		Camera:    domain.CameraProbe{IP: cameraIP, Port: rtspPort},
		CheckedAt: start,
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		result.Camera.Reachable, result.Camera.PingOutput = s.prober.Ping(ctx, cameraIP)
	}()
	go func() {
		defer wg.Done()
		result.Camera.PortOpen = s.prober.ProbePort(ctx, cameraIP, rtspPort)
	}()
	go func() {
		defer wg.Done()
		result.Camera.TraceOutput = s.prober.Traceroute(ctx, cameraIP)
	}()
	go func() {
		defer wg.Done()
		result.InternetReachable = s.prober.InternetReachable(ctx)
	}()
	wg.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		result.Camera.Error = "diagnostics timed out before all probes completed"
	}

	result.Status = domain.DeriveStatus(result.Camera.Reachable, result.Camera.PortOpen)
	result.Suggestions = Suggest(result, cameraIP)
	result.Duration = s.now().Sub(start)

	span.SetAttributes(tracing.StatusKey.String(string(result.Status)))
	if s.observer != nil {
		s.observer.ObserveDiagnostics(result.Status, result.Duration)
	}

	s.logger.Infow("Diagnostics completed",
		"camera_ip", cameraIP,
		"port", rtspPort,
		"status", result.Status,
		"reachable", result.Camera.Reachable,
		"port_open", result.Camera.PortOpen,
		"internet", result.InternetReachable,
		"duration", result.Duration)

	s.events.Publish(ctx, diagnosticsSeverity(result.Status),
		"Diagnostics completed",
		fmt.Sprintf("Camera %s:%d: %s", cameraIP, rtspPort, result.Status),
		cameraIP)

	return result, nil
}

func diagnosticsSeverity(status domain.DiagnosticsStatus) domain.Severity {
	switch status {
	case domain.DiagnosticsSuccess:
		return domain.SeveritySuccess
	case domain.DiagnosticsPartial:
		return domain.SeverityWarning
	default:
		return domain.SeverityError
	}
}

// Suggest derives remediation hints from a result. Rules are evaluated in a
// fixed order and more than one may fire; the fallback only fires when no
// other rule did and the camera is not fully reachable.
func Suggest(result *domain.DiagnosticsResult, cameraIP string) []string {
	suggestions := []string{}
	cam := result.Camera

	if result.ServerIP != "" && !SameSubnet(result.ServerIP, cameraIP) {
		suggestions = append(suggestions, fmt.Sprintf(
			"Server (%s) and camera (%s) appear to be on different subnets. Check that both devices are on the same network or that routing between them is configured.",
			result.ServerIP, cameraIP))
	}

	if !result.InternetReachable {
		suggestions = append(suggestions,
			"The server has no internet connection. Check its network cable, gateway and DNS settings.")
	}

	if !cam.Reachable && !cam.PortOpen {
		suggestions = append(suggestions, fmt.Sprintf(
			"Camera %s is not responding. Check that it is powered on, connected to the network and that the IP address is correct.",
			cameraIP))
	}

	if cam.Reachable && !cam.PortOpen {
		suggestions = append(suggestions, fmt.Sprintf(
			"Camera responds to ping but port %d is closed. Check that RTSP is enabled on the camera and that the port number is correct.",
			cam.Port))
	}

	if len(suggestions) == 0 && result.Status != domain.DiagnosticsSuccess {
		suggestions = append(suggestions,
			"Unable to determine the cause. Restart the camera and review its network settings.")
	}

	return suggestions
}

// SameSubnet compares the first three dotted octets of two IPv4 addresses.
// Anything that is not dotted-quad is treated as matching.
func SameSubnet(a, b string) bool {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	if len(pa) != 4 || len(pb) != 4 {
		return true
	}
	return pa[0] == pb[0] && pa[1] == pb[1] && pa[2] == pb[2]
}
