package services

import (
	"context"
	"errors"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/circuitbreaker"
	"camrelay/pkg/rtspurl"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultEventListLimit applies when a caller asks for a non-positive limit.
const DefaultEventListLimit = 50

type eventService struct {
	repo           ports.EventRepository
	fallback       ports.EventRepository
	breaker        *circuitbreaker.CircuitBreaker
	persistTimeout time.Duration
	logger         *zap.SugaredLogger
	now            func() time.Time
}

// NewEventService records events in repo through breaker. While the breaker
// is open or a write fails, events go to fallback (if set) instead.
func NewEventService(
	repo ports.EventRepository,
	fallback ports.EventRepository, // optional
	breaker *circuitbreaker.CircuitBreaker,
	persistTimeout time.Duration,
	logger *zap.SugaredLogger,
) ports.EventService {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	return &eventService{
		repo:           repo,
		fallback:       fallback,
		breaker:        breaker,
		persistTimeout: persistTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// Publish never fails. The write runs on a context detached from the
// caller's so teardown paths with cancelled contexts still record.
func (s *eventService) Publish(ctx context.Context, severity domain.Severity, title, message, source string) {
	event := &domain.Event{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   rtspurl.MaskText(message),
		Severity:  severity,
		Source:    rtspurl.Mask(source),
		CreatedAt: s.now().UTC(),
	}

	s.logger.Infow("event",
		"title", event.Title,
		"severity", event.Severity,
		"source", event.Source,
		"message", event.Message,
	)

	writeCtx := context.WithoutCancel(ctx)
	if s.persistTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(writeCtx, s.persistTimeout)
		defer cancel()
	}

	err := s.breaker.Execute(writeCtx, func() error {
		return s.repo.Save(writeCtx, event)
	})
	if err == nil {
		return
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		s.logger.Debugw("event store unavailable, circuit open", "event_id", event.ID)
	} else {
		s.logger.Warnw("failed to persist event",
			"event_id", event.ID,
			"circuit", s.breaker.GetState().String(),
			"error", err,
		)
	}
	if s.fallback != nil {
		if err := s.fallback.Save(writeCtx, event); err != nil {
			s.logger.Errorw("failed to persist event to fallback", "event_id", event.ID, "error", err)
		}
	}
}

func (s *eventService) List(ctx context.Context, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = DefaultEventListLimit
	}
	if s.fallback == nil {
		return s.repo.List(ctx, limit)
	}

	if s.breaker.GetState() != circuitbreaker.StateOpen {
		events, err := s.repo.List(ctx, limit)
		if err == nil {
			return events, nil
		}
		s.logger.Warnw("failed to list events, using fallback", "error", err)
	}
	return s.fallback.List(ctx, limit)
}
