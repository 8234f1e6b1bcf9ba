package redis

import (
	"context"
	"fmt"
	"time"

	"camrelay/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey     = "camrelay:schema:version"
	schemaLockKey        = "camrelay:schema:lock"
	currentSchemaVersion = 1

	migrationLockTTL  = 30 * time.Second
	migrationLockWait = 10 * time.Second
)

// Migration is one versioned change to the Redis key layout.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
	Down    func(ctx context.Context, client *redis.Client) error
}

// Migrate runs all pending migrations. Instances starting together
// serialize on a schema lock so each migration runs once.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	lock := distributed.NewDistributedLock(client, schemaLockKey, migrationLockTTL)
	if err := lock.LockWithTimeout(ctx, migrationLockWait); err != nil {
		return fmt.Errorf("failed to acquire schema lock: %w", err)
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil && logger != nil {
			logger.Warnw("failed to release schema lock", "error", err)
		}
	}()

	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			// Drops a default pointer left behind by a camera deleted
			// outside the repository.
			Up: func(ctx context.Context, client *redis.Client) error {
				defaultKey := "camrelay:camera:default"
				id, err := client.Get(ctx, defaultKey).Result()
				if err == redis.Nil {
					return nil
				}
				if err != nil {
					return err
				}
				member, err := client.SIsMember(ctx, "camrelay:cameras", id).Result()
				if err != nil {
					return err
				}
				if !member {
					return client.Del(ctx, defaultKey).Err()
				}
				return nil
			},
			Down: func(ctx context.Context, client *redis.Client) error {
				return nil
			},
		},
	}
}
