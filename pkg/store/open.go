package store

import (
	"context"
	"fmt"

	"github.com/vegetable-invoicing/pkg/config"
)

// OpenSlot connects the slot backend named by cfg.Driver.
func OpenSlot(ctx context.Context, cfg config.StorageConfig) (Slot, error) {
	switch cfg.Driver {
	case config.DriverBadger:
		return OpenBadgerSlot(cfg.Path)
	case config.DriverPostgres:
		return OpenPostgresSlot(ctx, cfg.PostgresDSN)
	case config.DriverRedis:
		return OpenRedisSlot(ctx, cfg.RedisAddr)
	case config.DriverMemory:
		return NewMemorySlot(), nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
}
