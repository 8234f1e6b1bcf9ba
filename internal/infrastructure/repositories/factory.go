package repositories

import (
	"context"

	"camrelay/internal/core/ports"
	"camrelay/internal/infrastructure/repositories/memory"
	redisrepo "camrelay/internal/infrastructure/repositories/redis"
	"camrelay/pkg/config"
	"camrelay/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	maxEvents   int
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when enabled and falls back to
// in-memory repositories when it cannot.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis:  cfg.Redis.Enabled,
		maxEvents: cfg.Events.MaxRecords,
		logger:    logger,
	}

	if cfg.Redis.Enabled {
		retryCfg := retry.DefaultConfig()
		retryCfg.MaxAttempts = cfg.Redis.ConnectAttempts
		retryCfg.InitialDelay = cfg.Redis.ConnectRetryDelay

		client, err := redisrepo.NewRedisClient(ctx, redisrepo.ClientConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Retry:    retryCfg,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory
}

// UsesRedis reports whether repositories are Redis backed.
func (f *RepositoryFactory) UsesRedis() bool {
	return f.useRedis && f.redisClient != nil
}

// CreateEventRepository creates an event repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateEventRepository() ports.EventRepository {
	if f.UsesRedis() {
		return redisrepo.NewRedisEventRepository(f.redisClient, f.maxEvents)
	}
	return memory.NewMemoryEventRepository(f.maxEvents)
}

// CreateCameraRepository creates a camera repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateCameraRepository() ports.CameraRepository {
	if f.UsesRedis() {
		return redisrepo.NewRedisCameraRepository(f.redisClient)
	}
	return memory.NewMemoryCameraRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.UsesRedis() {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
