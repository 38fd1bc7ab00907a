package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostIDKeyPrefix   = "post:id:%s"
	PostSlugKeyPrefix = "post:slug:%s"
	PublishedListKey  = "posts:published"
)

const (
	PostTTL          = 30 * time.Minute
	PublishedListTTL = 2 * time.Minute
)

func PostIDKey(id string) string {
	return fmt.Sprintf(PostIDKeyPrefix, id)
}

func PostSlugKey(slug string) string {
	return fmt.Sprintf(PostSlugKeyPrefix, slug)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidatePost drops every cached view a write to the post can affect.
func InvalidatePost(ctx context.Context, id, slug string) {
	Invalidate(ctx, PostIDKey(id), PostSlugKey(slug), PublishedListKey)
}
