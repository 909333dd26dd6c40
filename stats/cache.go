package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guildboard/guildboard/cache"
	"github.com/guildboard/guildboard/model"
)

// Cache serves computed guild stats from the cache layer, recomputing on
// miss. Every write path that touches a guild's battles or roster must call
// Invalidate for that guild; invalidations are also broadcast over pub/sub
// so other instances sharing a Redis drop their entry too.
type Cache struct {
	c      cache.Cache
	ps     cache.PubSub
	agg    *Aggregator
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates a stats Cache. ps may be nil when the process runs
// standalone.
func NewCache(c cache.Cache, ps cache.PubSub, agg *Aggregator, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{c: c, ps: ps, agg: agg, ttl: ttl, logger: logger}
}

const invalidateChannel = "stats:invalidate"

func statsKey(guildID int64) string {
	return fmt.Sprintf("stats:guild:%d", guildID)
}

// Listen subscribes to invalidation broadcasts from other instances and
// drops the local entry for each. It returns immediately; the subscription
// lives until ctx is canceled.
func (sc *Cache) Listen(ctx context.Context) error {
	if sc.ps == nil {
		return nil
	}
	ch, cancel, err := sc.ps.Subscribe(ctx, invalidateChannel)
	if err != nil {
		return err
	}
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				id, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				if err := sc.c.Del(ctx, statsKey(id)); err != nil {
					sc.logger.Warn("stats cache remote invalidation failed",
						zap.Int64("guild_id", id), zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Get returns the guild's stats, from cache when fresh.
func (sc *Cache) Get(ctx context.Context, guildID int64) (*GuildStats, error) {
	if raw, err := sc.c.Get(ctx, statsKey(guildID)); err == nil {
		var cached GuildStats
		if json.Unmarshal([]byte(raw), &cached) == nil {
			return &cached, nil
		}
		// Unreadable cache entry; fall through to recompute.
		_ = sc.c.Del(ctx, statsKey(guildID))
	}
	return sc.refresh(ctx, guildID)
}

// Invalidate drops the cached stats of a guild and broadcasts the
// invalidation.
func (sc *Cache) Invalidate(ctx context.Context, guildID int64) {
	if err := sc.c.Del(ctx, statsKey(guildID)); err != nil {
		sc.logger.Warn("stats cache invalidation failed",
			zap.Int64("guild_id", guildID), zap.Error(err))
	}
	if sc.ps != nil {
		if err := sc.ps.Publish(ctx, invalidateChannel, strconv.FormatInt(guildID, 10)); err != nil {
			sc.logger.Warn("stats invalidation broadcast failed",
				zap.Int64("guild_id", guildID), zap.Error(err))
		}
	}
}

// RefreshAll recomputes and re-caches stats for every guild; the scheduler
// runs it periodically so cold requests stay fast.
func (sc *Cache) RefreshAll(ctx context.Context, db *gorm.DB) {
	var ids []int64
	if err := db.Model(&model.Guild{}).Pluck("id", &ids).Error; err != nil {
		sc.logger.Error("stats refresh: listing guilds failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if _, err := sc.refresh(ctx, id); err != nil {
			sc.logger.Warn("stats refresh failed",
				zap.Int64("guild_id", id), zap.Error(err))
		}
	}
}

func (sc *Cache) refresh(ctx context.Context, guildID int64) (*GuildStats, error) {
	gs, err := sc.agg.ComputeGuildStats(guildID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(gs); err == nil {
		if err := sc.c.Set(ctx, statsKey(guildID), string(raw), sc.ttl); err != nil {
			sc.logger.Warn("stats cache write failed",
				zap.Int64("guild_id", guildID), zap.Error(err))
		}
	}
	return gs, nil
}
