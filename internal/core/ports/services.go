package ports

import (
	"context"

	"camrelay/internal/core/domain"
)

// RelayService owns live streams and their viewers.
type RelayService interface {
	Connect(ctx context.Context, rawURL string) (*domain.StreamInfo, error)
	Disconnect(ctx context.Context, rawURL string) error
	Stop(ctx context.Context, key domain.StreamKey) error
	Attach(ctx context.Context, key domain.StreamKey, viewer Viewer) error
	Release(key domain.StreamKey, viewer Viewer)
	Get(key domain.StreamKey) (*domain.StreamInfo, error)
	List() []*domain.StreamInfo
}

type DiagnosticsService interface {
	Run(ctx context.Context, cameraIP string, rtspPort int) (*domain.DiagnosticsResult, error)
}

// EventPublisher records operator events. Recording failures are absorbed.
type EventPublisher interface {
	Publish(ctx context.Context, severity domain.Severity, title, message, source string)
}

type EventService interface {
	EventPublisher
	List(ctx context.Context, limit int) ([]*domain.Event, error)
}

type CameraService interface {
	Create(ctx context.Context, camera *domain.Camera) (*domain.Camera, error)
	Get(ctx context.Context, id string) (*domain.Camera, error)
	Default(ctx context.Context) (*domain.Camera, error)
	List(ctx context.Context) ([]*domain.Camera, error)
	Update(ctx context.Context, id string, patch *domain.CameraPatch) (*domain.Camera, error)
	Delete(ctx context.Context, id string) error
}

// NetworkProber runs the individual reachability probes. Failures are
// reported as false or as output text, never as errors.
type NetworkProber interface {
	Ping(ctx context.Context, host string) (bool, string)
	ProbePort(ctx context.Context, host string, port int) bool
	Traceroute(ctx context.Context, host string) string
	InternetReachable(ctx context.Context) bool
	LocalIPv4() string
}
