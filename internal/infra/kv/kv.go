// Package kv 是持久化键值存储的后端层。
//
// 值是不透明的字节（上层存 JSON）；后端只负责读、写、删与单键的读改写。
package kv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Backend 是键值存储后端。
//
// Update 对单个键做读改写：fn 收到旧值（不存在时 ok=false），返回新值。
// 后端尽力保证 Update 期间同一键不被交错写入（file 用文件锁，sqlite 用事务）。
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn func(old []byte, ok bool) ([]byte, error)) error
	Close() error
}

// ErrInvalidKey 表示键名不合法。
var ErrInvalidKey = errors.New("kv: invalid key")

var keyRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func checkKey(key string) error {
	// 最小约束：file 后端直接用键名做文件名，必须避免路径穿越。
	if !keyRE.MatchString(key) {
		return fmt.Errorf("%w：%q", ErrInvalidKey, key)
	}
	return nil
}

// Open 按 DSN 的 scheme 选择后端：
//
//	file:///path/to/dir 或裸路径  -> File
//	sqlite:///path/to/db           -> SQLite
//	redis://host:6379/0            -> Redis
//	memory:                        -> Memory（进程内，不持久化）
func Open(ctx context.Context, dsn string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, errors.New("kv: dsn 不能为空")
	case dsn == "memory:" || dsn == "memory://":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "file://"):
		return OpenFile(strings.TrimPrefix(dsn, "file://"))
	case strings.HasPrefix(dsn, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return OpenRedis(ctx, dsn)
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("kv: 不支持的 dsn：%q", dsn)
	default:
		return OpenFile(dsn)
	}
}
