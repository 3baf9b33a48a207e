package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a cache pattern, logging failures instead
// of propagating them; cache invalidation must never fail a write.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes cache keys, logging failures.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateRequestCache invalidates all caches touching one data request.
func InvalidateRequestCache(ctx context.Context, cm *CacheManager, requestID, creatorID string) {
	SafeDelete(ctx, cm.Request,
		fmt.Sprintf("id:%s", requestID))

	SafeInvalidatePattern(ctx, cm.Request, fmt.Sprintf("creator:%s:*", creatorID))
	SafeInvalidatePattern(ctx, cm.Request, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("request:%s:*", requestID))
}

// InvalidateUserCache invalidates directory caches for one user.
func InvalidateUserCache(ctx context.Context, cm *CacheManager, userID string) {
	SafeDelete(ctx, cm.User, fmt.Sprintf("id:%s", userID))
	SafeInvalidatePattern(ctx, cm.User, "list:*")
}
