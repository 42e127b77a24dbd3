package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisPrefix 隔离本工具的键，避免与同库其它数据冲突。
const redisPrefix = "tubeqa:"

// Redis 把键存为 tubeqa:<key> 字符串值。
//
// Update 是普通的 GET + SET，不做乐观锁检查。
type Redis struct {
	rdb *redis.Client
}

// OpenRedis 解析 redis:// URL 并确认服务可达。
func OpenRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("kv: invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("kv: redis unreachable (%s): %w", opts.Addr, err)
	}
	return &Redis{rdb: rdb}, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	b, err := s.rdb.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisPrefix+key, value, 0).Err()
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.rdb.Del(ctx, redisPrefix+key).Err()
}

func (s *Redis) Update(ctx context.Context, key string, fn func([]byte, bool) ([]byte, error)) error {
	old, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, next)
}

func (s *Redis) Close() error { return s.rdb.Close() }
