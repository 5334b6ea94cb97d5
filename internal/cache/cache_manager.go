package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CacheManager groups the per-domain cache helpers.
type CacheManager struct {
	client *redis.Client

	Course *CacheHelper
	Slot   *CacheHelper
	Stats  *CacheHelper
}

// NewCacheManager creates cache helpers for every cached domain. A nil client
// yields a manager whose helpers degrade gracefully to pass-through.
func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client: client,
		Course: NewCacheHelper(client, CourseCacheConfig.Prefix),
		Slot:   NewCacheHelper(client, SlotCacheConfig.Prefix),
		Stats:  NewCacheHelper(client, StatsCacheConfig.Prefix),
	}
}

// HealthCheck pings the underlying Redis connection.
func (m *CacheManager) HealthCheck(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	if _, err := m.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// ClearAll flushes every cached domain (use with caution).
func (m *CacheManager) ClearAll(ctx context.Context) error {
	for _, helper := range []*CacheHelper{m.Course, m.Slot, m.Stats} {
		if err := helper.DeletePattern(ctx, "*"); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateCourseCache drops all cached entries for one course, including
// derived progress stats.
func InvalidateCourseCache(ctx context.Context, m *CacheManager, courseID uint) {
	SafeDelete(ctx, m.Course, fmt.Sprintf("id:%d", courseID))
	SafeDelete(ctx, m.Stats, fmt.Sprintf("progress:%d", courseID))
	SafeInvalidatePattern(ctx, m.Course, "list:*")
}

// InvalidateSlotCache drops cached slot listings for one instructor.
func InvalidateSlotCache(ctx context.Context, m *CacheManager, instructorID string) {
	SafeInvalidatePattern(ctx, m.Slot, fmt.Sprintf("instructor:%s:*", instructorID))
}
