package utils

import (
	"context"
	"time"

	"homeglow/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheClient holds discount usage counters. Task queue traffic uses a separate
// Redis DB owned by asynq.
var CacheClient *redis.Client

const cachePingAttempts = 3

// InitCache connects to the counter DB. Counters are best-effort, so an
// unreachable Redis is logged rather than fatal; the health monitor reports it.
func InitCache() {
	logger := GetLogger()
	CacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})

	var err error
	for attempt := 1; attempt <= cachePingAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = CacheClient.Ping(ctx).Err()
		cancel()
		if err == nil {
			logger.Info("connected to Redis", zap.String("addr", config.AppConfig.RedisAddr), zap.Int("db", config.AppConfig.RedisCacheDB))
			return
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	logger.Warn("Redis counter store unreachable; discount usage will not be recorded", zap.Error(err))
}

func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		InitCache()
	}
	return CacheClient
}

// CloseCache releases the pool. Safe to call more than once.
func CloseCache() {
	if CacheClient == nil {
		return
	}
	if err := CacheClient.Close(); err != nil {
		GetLogger().Warn("failed to close Redis", zap.Error(err))
	}
	CacheClient = nil
}
