package instagram

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/pkg/logger"
)

// snapshotTTL bounds how stale a cached profile snapshot may be. Popularity
// checks tolerate slightly stale counts; everything else bypasses the cache.
const snapshotTTL = 5 * time.Minute

// SnapshotCache keeps recent profile snapshots in Redis so repeated menu
// navigation does not hammer the provider. A cache miss or error falls
// through to the provider silently.
type SnapshotCache struct {
	logger *logger.Logger
	client *redis.Client
}

func NewSnapshotCache(addr, password string, logger *logger.Logger) *SnapshotCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &SnapshotCache{client: client, logger: logger}
}

func key(username string) string {
	return "profile:" + username
}

func (c *SnapshotCache) Get(ctx context.Context, username string) (*models.ProfileInfo, bool) {
	data, err := c.client.Get(ctx, key(username)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Snapshot cache read failed ", "error ", err)
		}
		return nil, false
	}
	var info models.ProfileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, false
	}
	return &info, true
}

func (c *SnapshotCache) Set(ctx context.Context, info *models.ProfileInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(info.Username), data, snapshotTTL).Err(); err != nil {
		c.logger.Warn("Snapshot cache write failed ", "error ", err)
	}
}

func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
