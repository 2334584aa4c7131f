package integrations

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/config"
)

// InitRedis connects to Redis when an address is configured. Returns nil
// when Redis is disabled; the trigger route then runs without rate limiting.
func InitRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, trigger rate limiting disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}

	log.Info("redis connected", "addr", cfg.RedisAddr)
	return client
}
