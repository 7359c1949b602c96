package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"lms/logger"
	courseModels "lms/models/course"
	"time"

	"github.com/redis/go-redis/v9"
)

const viewTTL = 10 * time.Minute

// ViewCache is the cached read view of progress records that lesson lists
// and headers render from. Writers do not push updates into it; they
// invalidate, and the next read repopulates from the store.
type ViewCache struct {
	client *redis.Client
	log    *logger.Logger
}

func NewViewCache(client *redis.Client, baseLog *logger.Logger) *ViewCache {
	return &ViewCache{client: client, log: baseLog.With("component", "ProgressViewCache")}
}

func viewKey(userID, courseID uint) string {
	return fmt.Sprintf("progress:%d:%d", userID, courseID)
}

// Get returns the cached record, or nil on miss or cache trouble.
func (c *ViewCache) Get(ctx context.Context, userID, courseID uint) *courseModels.CourseProgress {
	if c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, viewKey(userID, courseID)).Bytes()
	if err != nil {
		return nil
	}
	var row courseModels.CourseProgress
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	return &row
}

// Set stores the record under a short TTL.
func (c *ViewCache) Set(ctx context.Context, row *courseModels.CourseProgress) {
	if c.client == nil || row == nil {
		return
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, viewKey(row.UserID, row.CourseID), raw, viewTTL).Err(); err != nil {
		c.log.Warn("progress view cache set failed", "user_id", row.UserID, "course_id", row.CourseID, "error", err)
	}
}

// Invalidate drops the cached view after a progress write so the next read
// reflects the new state.
func (c *ViewCache) Invalidate(ctx context.Context, userID, courseID uint) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, viewKey(userID, courseID)).Err(); err != nil {
		c.log.Warn("progress view cache invalidation failed", "user_id", userID, "course_id", courseID, "error", err)
	}
}
