package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	memorystorage "github.com/JeanGrijp/request-throttle/internal/adapters/storage/memory"
	redisstorage "github.com/JeanGrijp/request-throttle/internal/adapters/storage/redis"
	"github.com/JeanGrijp/request-throttle/internal/config"
	"github.com/JeanGrijp/request-throttle/internal/core/ports"
)

const memorySweepInterval = time.Minute

func initStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ports.CounterStore, func(), error) {
	switch cfg.Storage.Type {
	case config.StorageRedis:
		storage, err := redisstorage.New(redisstorage.Config{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {
			if err := storage.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close redis storage")
			}
		}, nil
	case config.StorageMemory:
		storage := memorystorage.New()
		sweepCtx, cancel := context.WithCancel(ctx)
		go storage.Run(sweepCtx, memorySweepInterval)
		logger.Warn().Msg("memory storage keeps counters per process; limits are not shared across instances")
		return storage, func() {
			cancel()
			_ = storage.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
