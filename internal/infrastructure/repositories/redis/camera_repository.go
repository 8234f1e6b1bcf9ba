package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries when a watched key
// changes underneath an update.
const maxTxRetries = 5

// RedisCameraRepository stores each camera as JSON under its own key, an
// index set of ids, and one key holding the default camera id.
type RedisCameraRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisCameraRepository(client *redis.Client) ports.CameraRepository {
	return &RedisCameraRepository{
		client: client,
		prefix: "camrelay:camera:",
	}
}

func (r *RedisCameraRepository) cameraKey(id string) string {
	return r.prefix + id
}

func (r *RedisCameraRepository) indexKey() string {
	return "camrelay:cameras"
}

func (r *RedisCameraRepository) defaultKey() string {
	return r.prefix + "default"
}

func encodeCamera(camera *domain.Camera) ([]byte, error) {
	stored := *camera
	stored.IsDefault = false
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal camera: %w", err)
	}
	return data, nil
}

func decodeCamera(data string, defaultID string) (*domain.Camera, error) {
	var camera domain.Camera
	if err := json.Unmarshal([]byte(data), &camera); err != nil {
		return nil, fmt.Errorf("failed to unmarshal camera: %w", err)
	}
	camera.IsDefault = camera.ID == defaultID
	return &camera, nil
}

func (r *RedisCameraRepository) Create(ctx context.Context, camera *domain.Camera) error {
	data, err := encodeCamera(camera)
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, r.cameraKey(camera.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set camera in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("camera already exists: %s", camera.ID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.indexKey(), camera.ID)
		if camera.IsDefault {
			pipe.Set(ctx, r.defaultKey(), camera.ID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index camera: %w", err)
	}
	return nil
}

func (r *RedisCameraRepository) GetByID(ctx context.Context, id string) (*domain.Camera, error) {
	values, err := r.client.MGet(ctx, r.cameraKey(id), r.defaultKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get camera from Redis: %w", err)
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, domain.ErrCameraNotFound
	}
	defaultID, _ := values[1].(string)
	return decodeCamera(data, defaultID)
}

func (r *RedisCameraRepository) List(ctx context.Context) ([]*domain.Camera, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras from Redis: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Camera{}, nil
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.cameraKey(id))
	}
	keys = append(keys, r.defaultKey())

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get cameras from Redis: %w", err)
	}
	defaultID, _ := values[len(values)-1].(string)

	cameras := make([]*domain.Camera, 0, len(ids))
	for _, value := range values[:len(values)-1] {
		data, ok := value.(string)
		if !ok {
			continue
		}
		camera, err := decodeCamera(data, defaultID)
		if err != nil {
			continue
		}
		cameras = append(cameras, camera)
	}

	sort.Slice(cameras, func(i, j int) bool {
		if cameras[i].CreatedAt.Equal(cameras[j].CreatedAt) {
			return cameras[i].ID < cameras[j].ID
		}
		return cameras[i].CreatedAt.Before(cameras[j].CreatedAt)
	})
	return cameras, nil
}

// Update applies patch and any default change in a single MULTI/EXEC
// guarded by WATCH on the camera and the default pointer.
func (r *RedisCameraRepository) Update(ctx context.Context, id string, patch *domain.CameraPatch) (*domain.Camera, error) {
	key := r.cameraKey(id)
	var result *domain.Camera

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return domain.ErrCameraNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get camera from Redis: %w", err)
		}
		defaultID, err := tx.Get(ctx, r.defaultKey()).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("failed to get default camera: %w", err)
		}

		camera, err := decodeCamera(data, defaultID)
		if err != nil {
			return err
		}
		patch.Apply(camera)
		camera.UpdatedAt = time.Now().UTC()

		encoded, err := encodeCamera(camera)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			if patch.IsDefault != nil {
				switch {
				case *patch.IsDefault:
					pipe.Set(ctx, r.defaultKey(), id, 0)
					defaultID = id
				case defaultID == id:
					pipe.Del(ctx, r.defaultKey())
					defaultID = ""
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		camera.IsDefault = defaultID == id
		result = camera
		return nil
	}

	if err := r.watch(ctx, "update", txf, key, r.defaultKey()); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *RedisCameraRepository) Delete(ctx context.Context, id string) error {
	key := r.cameraKey(id)

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check camera in Redis: %w", err)
		}
		if exists == 0 {
			return domain.ErrCameraNotFound
		}
		defaultID, err := tx.Get(ctx, r.defaultKey()).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("failed to get default camera: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.indexKey(), id)
			if defaultID == id {
				pipe.Del(ctx, r.defaultKey())
			}
			return nil
		})
		return err
	}

	return r.watch(ctx, "delete", txf, key, r.defaultKey())
}

func (r *RedisCameraRepository) GetDefault(ctx context.Context) (*domain.Camera, error) {
	defaultID, err := r.client.Get(ctx, r.defaultKey()).Result()
	if err == redis.Nil {
		return nil, domain.ErrCameraNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default camera: %w", err)
	}
	return r.GetByID(ctx, defaultID)
}

// watch runs txf under WATCH on keys, retrying when a watched key changed
// before EXEC.
func (r *RedisCameraRepository) watch(ctx context.Context, op string, txf func(*redis.Tx) error, keys ...string) error {
	ctx, span := tracing.TraceRepository(ctx, op, "camera")
	defer span.End()

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrCameraNotFound) {
			tracing.RecordError(ctx, err)
		}
		return err
	}
	err := fmt.Errorf("camera transaction aborted after %d retries: %w", maxTxRetries, redis.TxFailedErr)
	tracing.RecordError(ctx, err)
	return err
}
