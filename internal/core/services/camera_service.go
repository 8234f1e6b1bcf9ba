package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/rtspurl"
	"camrelay/pkg/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxLocationLength = 200

type cameraService struct {
	repo   ports.CameraRepository
	events ports.EventPublisher
	logger *zap.SugaredLogger
}

func NewCameraService(repo ports.CameraRepository, events ports.EventPublisher, logger *zap.SugaredLogger) ports.CameraService {
	return &cameraService{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

func invalidCamera(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidCamera, err)
}

func validateCamera(camera *domain.Camera) error {
	if err := validation.ValidateCameraName(camera.Name); err != nil {
		return invalidCamera(err)
	}
	if err := validation.ValidateRTSPURL(camera.RTSPURL); err != nil {
		return invalidCamera(err)
	}
	if err := validation.ValidateStringLength(camera.Location, 0, maxLocationLength, "location"); err != nil {
		return invalidCamera(err)
	}
	if !camera.MountType.Valid() {
		return invalidCamera(fmt.Errorf("unknown mount type %q", camera.MountType))
	}
	return nil
}

func (s *cameraService) Create(ctx context.Context, camera *domain.Camera) (*domain.Camera, error) {
	now := time.Now().UTC()
	record := *camera
	record.ID = uuid.NewString()
	record.Name = strings.TrimSpace(record.Name)
	record.RTSPURL = strings.TrimSpace(record.RTSPURL)
	if record.MountType == "" {
		record.MountType = domain.MountWall
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := validateCamera(&record); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to create camera: %w", err)
	}

	s.logger.Infow("camera created",
		"camera_id", record.ID,
		"name", record.Name,
		"source", rtspurl.Mask(record.RTSPURL),
		"default", record.IsDefault,
	)
	s.events.Publish(ctx, domain.SeverityInfo, "Camera added", fmt.Sprintf("Camera %q was added", record.Name), record.RTSPURL)

	return s.repo.GetByID(ctx, record.ID)
}

func (s *cameraService) Get(ctx context.Context, id string) (*domain.Camera, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *cameraService) Default(ctx context.Context) (*domain.Camera, error) {
	return s.repo.GetDefault(ctx)
}

func (s *cameraService) List(ctx context.Context) ([]*domain.Camera, error) {
	return s.repo.List(ctx)
}

// Update validates the patched record before handing the patch to the
// repository, which applies it atomically.
func (s *cameraService) Update(ctx context.Context, id string, patch *domain.CameraPatch) (*domain.Camera, error) {
	if patch == nil || patch.Empty() {
		return nil, invalidCamera(fmt.Errorf("patch has no fields"))
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if patch.RTSPURL != nil {
		trimmed := strings.TrimSpace(*patch.RTSPURL)
		patch.RTSPURL = &trimmed
	}

	preview := *current
	patch.Apply(&preview)
	if err := validateCamera(&preview); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("camera updated",
		"camera_id", id,
		"default", updated.IsDefault,
	)
	return updated, nil
}

func (s *cameraService) Delete(ctx context.Context, id string) error {
	camera, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Infow("camera deleted", "camera_id", id)
	s.events.Publish(ctx, domain.SeverityInfo, "Camera removed", fmt.Sprintf("Camera %q was removed", camera.Name), camera.RTSPURL)
	return nil
}
