// Package cache 提供任务难度与目录数据的 redis 读穿缓存。
// 难度接口是公共读、聚合计算，后端偏慢且数据变化缓慢，适合短 TTL 缓存。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/sidequest-sync/internal/model"
	"github.com/d60-Lab/sidequest-sync/pkg/logger"
)

// RateFetcher 回源取完成率（通常是 api.Client.QuestDifficulty）
type RateFetcher func(ctx context.Context, questID string) (float64, error)

// DifficultyCache 完成率的读穿缓存，实现 service.RateSource。
// cache 为 nil 时退化成纯透传。
type DifficultyCache struct {
	cache *redis.Client
	fetch RateFetcher
	ttl   time.Duration
}

func NewDifficultyCache(cache *redis.Client, fetch RateFetcher, ttl time.Duration) *DifficultyCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DifficultyCache{cache: cache, fetch: fetch, ttl: ttl}
}

func rateKey(questID string) string { return "quest:rate:" + questID }

func (c *DifficultyCache) CompletionRate(ctx context.Context, questID string) (float64, error) {
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, rateKey(questID)).Result(); err == nil {
			if rate, pErr := strconv.ParseFloat(raw, 64); pErr == nil {
				return rate, nil
			}
		}
	}

	rate, err := c.fetch(ctx, questID)
	if err != nil {
		return 0, err
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, rateKey(questID), strconv.FormatFloat(rate, 'f', -1, 64), c.ttl).Err(); err != nil {
			logger.Warn("difficulty cache set failed", zap.String("quest", questID), zap.Error(err))
		}
	}
	return rate, nil
}

// Invalidate 某任务刚被完成时主动失效，下一次结算拿到新鲜完成率
func (c *DifficultyCache) Invalidate(ctx context.Context, questID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Del(ctx, rateKey(questID)).Err(); err != nil {
		logger.Warn("difficulty cache invalidate failed", zap.String("quest", questID), zap.Error(err))
	}
}

// CatalogFetcher 回源取任务目录（api.Client.ListQuests 的适配）
type CatalogFetcher func(ctx context.Context, period model.Period) ([]model.Quest, error)

// CatalogCache 公共任务榜单的整页缓存，按时间窗口分 key
type CatalogCache struct {
	cache *redis.Client
	fetch CatalogFetcher
	ttl   time.Duration
}

func NewCatalogCache(cache *redis.Client, fetch CatalogFetcher, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CatalogCache{cache: cache, fetch: fetch, ttl: ttl}
}

func catalogKey(period model.Period) string {
	return fmt.Sprintf("quest:catalog:%s", period)
}

func (c *CatalogCache) Quests(ctx context.Context, period model.Period) ([]model.Quest, error) {
	if period == "" {
		period = model.PeriodAll
	}
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, catalogKey(period)).Bytes(); err == nil {
			var out []model.Quest
			if uErr := json.Unmarshal(data, &out); uErr == nil {
				return out, nil
			}
		}
	}

	quests, err := c.fetch(ctx, period)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if payload, mErr := json.Marshal(quests); mErr == nil {
			if err := c.cache.Set(ctx, catalogKey(period), payload, c.ttl).Err(); err != nil {
				logger.Warn("catalog cache set failed", zap.Error(err))
			}
		}
	}
	return quests, nil
}
