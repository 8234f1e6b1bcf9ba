package ports

import (
	"context"

	"camrelay/internal/core/domain"
)

// EventRepository is the outbound persistence collaborator for events.
type EventRepository interface {
	Save(ctx context.Context, event *domain.Event) error
	List(ctx context.Context, limit int) ([]*domain.Event, error)
}

// CameraRepository stores camera records and the single default pointer.
// Update applies a patch and any default change as one atomic operation.
type CameraRepository interface {
	Create(ctx context.Context, camera *domain.Camera) error
	GetByID(ctx context.Context, id string) (*domain.Camera, error)
	List(ctx context.Context) ([]*domain.Camera, error)
	Update(ctx context.Context, id string, patch *domain.CameraPatch) (*domain.Camera, error)
	Delete(ctx context.Context, id string) error
	GetDefault(ctx context.Context) (*domain.Camera, error)
}
