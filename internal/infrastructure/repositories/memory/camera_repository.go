package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
)

// MemoryCameraRepository stores cameras in a map. The default camera is a
// single id, so setting a new default implicitly clears the old one.
type MemoryCameraRepository struct {
	cameras   map[string]*domain.Camera
	defaultID string
	mu        sync.RWMutex
}

func NewMemoryCameraRepository() ports.CameraRepository {
	return &MemoryCameraRepository{
		cameras: make(map[string]*domain.Camera),
	}
}

func (r *MemoryCameraRepository) Create(ctx context.Context, camera *domain.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cameras[camera.ID]; exists {
		return fmt.Errorf("camera already exists: %s", camera.ID)
	}

	stored := *camera
	stored.IsDefault = false
	r.cameras[camera.ID] = &stored
	if camera.IsDefault {
		r.defaultID = camera.ID
	}
	return nil
}

func (r *MemoryCameraRepository) GetByID(ctx context.Context, id string) (*domain.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	camera, exists := r.cameras[id]
	if !exists {
		return nil, domain.ErrCameraNotFound
	}
	return r.view(camera), nil
}

func (r *MemoryCameraRepository) List(ctx context.Context) ([]*domain.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cameras := make([]*domain.Camera, 0, len(r.cameras))
	for _, camera := range r.cameras {
		cameras = append(cameras, r.view(camera))
	}
	sortCameras(cameras)
	return cameras, nil
}

func (r *MemoryCameraRepository) Update(ctx context.Context, id string, patch *domain.CameraPatch) (*domain.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	camera, exists := r.cameras[id]
	if !exists {
		return nil, domain.ErrCameraNotFound
	}

	updated := *camera
	patch.Apply(&updated)
	updated.UpdatedAt = time.Now().UTC()
	r.cameras[id] = &updated

	if patch.IsDefault != nil {
		switch {
		case *patch.IsDefault:
			r.defaultID = id
		case r.defaultID == id:
			r.defaultID = ""
		}
	}
	return r.view(&updated), nil
}

func (r *MemoryCameraRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cameras[id]; !exists {
		return domain.ErrCameraNotFound
	}
	delete(r.cameras, id)
	if r.defaultID == id {
		r.defaultID = ""
	}
	return nil
}

func (r *MemoryCameraRepository) GetDefault(ctx context.Context) (*domain.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	camera, exists := r.cameras[r.defaultID]
	if r.defaultID == "" || !exists {
		return nil, domain.ErrCameraNotFound
	}
	return r.view(camera), nil
}

// view returns a copy with IsDefault resolved. Callers hold r.mu.
func (r *MemoryCameraRepository) view(camera *domain.Camera) *domain.Camera {
	out := *camera
	out.IsDefault = camera.ID == r.defaultID
	return &out
}

func sortCameras(cameras []*domain.Camera) {
	sort.Slice(cameras, func(i, j int) bool {
		if cameras[i].CreatedAt.Equal(cameras[j].CreatedAt) {
			return cameras[i].ID < cameras[j].ID
		}
		return cameras[i].CreatedAt.Before(cameras[j].CreatedAt)
	})
}
