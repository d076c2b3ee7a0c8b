package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix はRedis上のセッションキーの名前空間。
const sessionKeyPrefix = "session:"

// RedisSessionStore はRedisを使用したセッション属性ストア。
// 属性セットはハッシュとして保存し、有効期限はキーのTTLで管理する。
// auth.SessionStoreの実装。
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore はRedisSessionStoreを生成する。
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Get はセッション属性を取得する。キー不在の場合は(nil, nil)を返す。
func (s *RedisSessionStore) Get(ctx context.Context, key string) (map[string]string, error) {
	attrs, err := s.client.HGetAll(ctx, sessionKeyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	// HGetAllはキー不在でも空マップを返す
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs, nil
}

// Set はセッション属性をTTL付きで保存する。
func (s *RedisSessionStore) Set(ctx context.Context, key string, attrs map[string]string, ttl time.Duration) error {
	rkey := sessionKeyPrefix + key

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, rkey, attrs)
	pipe.Expire(ctx, rkey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Touch はキーの有効期限をttl後に延長する。キー不在の場合は何もしない。
func (s *RedisSessionStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, sessionKeyPrefix+key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to extend session TTL: %w", err)
	}
	return nil
}

// Delete はセッションを即時削除する。
func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}
