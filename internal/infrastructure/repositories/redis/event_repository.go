package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

const (
	eventsKey     = "camrelay:events"
	eventsChannel = "camrelay:events:live"
)

// RedisEventRepository keeps a capped list of events, newest at the head,
// and publishes each saved event on eventsChannel.
type RedisEventRepository struct {
	client     *redis.Client
	maxRecords int64
}

func NewRedisEventRepository(client *redis.Client, maxRecords int) ports.EventRepository {
	if maxRecords <= 0 {
		maxRecords = 500
	}
	return &RedisEventRepository{
		client:     client,
		maxRecords: int64(maxRecords),
	}
}

func (r *RedisEventRepository) Save(ctx context.Context, event *domain.Event) error {
	ctx, span := tracing.TraceRepository(ctx, "save", "event")
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, eventsKey, data)
		pipe.LTrim(ctx, eventsKey, 0, r.maxRecords-1)
		pipe.Publish(ctx, eventsChannel, data)
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to save event in Redis: %w", err)
	}
	return nil
}

func (r *RedisEventRepository) List(ctx context.Context, limit int) ([]*domain.Event, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	values, err := r.client.LRange(ctx, eventsKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events from Redis: %w", err)
	}

	events := make([]*domain.Event, 0, len(values))
	for _, value := range values {
		var event domain.Event
		if err := json.Unmarshal([]byte(value), &event); err != nil {
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}
