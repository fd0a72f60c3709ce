package repositories

import (
	"context"

	"livecast/internal/core/ports"
	"livecast/internal/infrastructure/distributed"
	"livecast/internal/infrastructure/repositories/memory"
	redisrepo "livecast/internal/infrastructure/repositories/redis"
	"livecast/pkg/config"
	"livecast/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoreFactory selects the chat store and platform event bus backends:
// Redis when configured and reachable, in-memory fallbacks otherwise. A
// failed Redis connection degrades rather than aborting startup; chat
// durability is best-effort by contract.
type StoreFactory struct {
	useRedis    bool
	redisClient *redis.Client
	eventBus    *distributed.EventBus
	retention   int
	logger      *zap.SugaredLogger
}

func NewStoreFactory(cfg *config.Config, logger *zap.SugaredLogger) *StoreFactory {
	factory := &StoreFactory{
		useRedis:  cfg.Redis.Enabled,
		retention: cfg.Chat.RetentionLimit,
		logger:    logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to in-memory store",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			factory.eventBus = distributed.NewEventBus(client, utils.GenerateID("node"), logger)
			logger.Info("using Redis chat store")
		}
	}

	if !factory.useRedis {
		logger.Info("using in-memory chat store")
	}

	return factory
}

func (f *StoreFactory) CreateChatStore() ports.ChatStore {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisChatRepository(f.redisClient, f.retention)
	}
	return memory.NewMemoryChatRepository(f.retention)
}

// CreateEventPublisher returns the Redis-backed platform bus, or a no-op
// publisher when running without Redis.
func (f *StoreFactory) CreateEventPublisher() ports.EventPublisher {
	if f.eventBus != nil {
		return f.eventBus
	}
	return distributed.NoopPublisher{}
}

// RedisClient exposes the shared client for health checks; nil when the
// in-memory fallback is active.
func (f *StoreFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// EventBus exposes the platform bus for subscribing to events from other
// instances; nil when running without Redis.
func (f *StoreFactory) EventBus() *distributed.EventBus {
	return f.eventBus
}

func (f *StoreFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

func (f *StoreFactory) Close() error {
	if f.eventBus != nil {
		f.eventBus.Close()
	}
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}
