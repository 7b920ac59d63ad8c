package presence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mahaj/supportdesk/pkg/model"
)

// RedisCache stores each flag as its own key with a TTL, so Redis does the
// expiry and the latest heartbeat always wins.
type RedisCache struct {
	redis *redis.Client
	ttl   TTL
}

func NewRedisCache(rdb *redis.Client, ttl TTL) *RedisCache {
	return &RedisCache{redis: rdb, ttl: ttl}
}

func onlineKey(conversationID int64, role model.Role) string {
	return fmt.Sprintf("presence:%d:%s:online", conversationID, role)
}

func typingKey(conversationID int64, role model.Role) string {
	return fmt.Sprintf("presence:%d:%s:typing", conversationID, role)
}

func (c *RedisCache) Touch(ctx context.Context, conversationID int64, role model.Role) error {
	return c.redis.Set(ctx, onlineKey(conversationID, role), 1, c.ttl.Online).Err()
}

func (c *RedisCache) SetTyping(ctx context.Context, conversationID int64, role model.Role) error {
	pipe := c.redis.Pipeline()
	pipe.Set(ctx, typingKey(conversationID, role), 1, c.ttl.Typing)
	pipe.Set(ctx, onlineKey(conversationID, role), 1, c.ttl.Online)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Snapshot(ctx context.Context, conversationID int64, role model.Role) (model.Presence, error) {
	pipe := c.redis.Pipeline()
	online := pipe.Exists(ctx, onlineKey(conversationID, role))
	typing := pipe.Exists(ctx, typingKey(conversationID, role))
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Presence{Role: role}, err
	}
	return model.Presence{
		Role:   role,
		Online: online.Val() == 1,
		Typing: typing.Val() == 1,
	}, nil
}
