// Package store 是设置、问答历史与截帧记录的持久化层。
//
// 三个键：apiKey（JSON 字符串）、history（QAExchange 数组）、screenshots（CapturedFrame 数组）。
// 修改都是读改写，不做乐观并发检查；跨进程互斥由后端负责。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/infra/kv"
)

const (
	KeyAPIKey      = "apiKey"
	KeyHistory     = "history"
	KeyScreenshots = "screenshots"
)

// Error 是存储层错误，Code 固定为 store_failed。
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s：%s %s 失败：%v", domain.ErrCodeStoreFailed, e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 返回 store_failed。
func (e *Error) Code() string { return domain.ErrCodeStoreFailed }

// IsError 判断 err 是否来自存储层。
func IsError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Store 在 kv.Backend 之上提供领域操作。
type Store struct {
	kv      kv.Backend
	secrets SecretStore
	now     func() time.Time
}

// Option customizes the store.
type Option func(*Store)

// WithSecrets 把 API key 存到独立的密钥存储（例如系统 keyring），而不是 kv。
func WithSecrets(s SecretStore) Option {
	return func(st *Store) { st.secrets = s }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(st *Store) {
		if now != nil {
			st.now = now
		}
	}
}

func New(b kv.Backend, opts ...Option) *Store {
	s := &Store{kv: b, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close 关闭底层后端。
func (s *Store) Close() error { return s.kv.Close() }

// APIKey 返回已保存的 key；未设置时返回空串。
func (s *Store) APIKey(ctx context.Context) (string, error) {
	if s.secrets != nil {
		k, err := s.secrets.Get()
		if err != nil {
			return "", &Error{Op: "get", Key: KeyAPIKey, Err: err}
		}
		return k, nil
	}
	var k string
	if _, err := s.getJSON(ctx, KeyAPIKey, &k); err != nil {
		return "", err
	}
	return k, nil
}

// Settings 返回单槽设置。
func (s *Store) Settings(ctx context.Context) (domain.Settings, error) {
	k, err := s.APIKey(ctx)
	return domain.Settings{APIKey: k}, err
}

// SetAPIKey 保存 key（去掉首尾空白）；空 key 等同于 ClearAPIKey。
func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return s.ClearAPIKey(ctx)
	}
	if s.secrets != nil {
		if err := s.secrets.Set(key); err != nil {
			return &Error{Op: "set", Key: KeyAPIKey, Err: err}
		}
		return nil
	}
	return s.setJSON(ctx, KeyAPIKey, key)
}

// ClearAPIKey 删除已保存的 key（不存在时不是错误）。
func (s *Store) ClearAPIKey(ctx context.Context) error {
	if s.secrets != nil {
		if err := s.secrets.Delete(); err != nil {
			return &Error{Op: "delete", Key: KeyAPIKey, Err: err}
		}
		return nil
	}
	if err := s.kv.Delete(ctx, KeyAPIKey); err != nil {
		return &Error{Op: "delete", Key: KeyAPIKey, Err: err}
	}
	return nil
}

// History 按时间顺序（最旧在前）返回问答历史。
func (s *Store) History(ctx context.Context) ([]domain.QAExchange, error) {
	out := []domain.QAExchange{}
	if _, err := s.getJSON(ctx, KeyHistory, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddExchange 追加一条问答记录，超出 HistoryCap 时淘汰最旧的。
// Timestamp 为 0 时使用当前时间。
func (s *Store) AddExchange(ctx context.Context, ex domain.QAExchange) (domain.QAExchange, error) {
	if ex.Timestamp == 0 {
		ex.Timestamp = s.now().UnixMilli()
	}
	err := s.update(ctx, KeyHistory, func(raw []byte) ([]byte, error) {
		var list []domain.QAExchange
		if err := decodeList(raw, &list); err != nil {
			return nil, err
		}
		return json.Marshal(domain.AppendCapped(list, ex, domain.HistoryCap))
	})
	return ex, err
}

// ClearHistory 清空问答历史。
func (s *Store) ClearHistory(ctx context.Context) error {
	return s.setJSON(ctx, KeyHistory, []domain.QAExchange{})
}

// Frames 按时间顺序返回截帧记录。
func (s *Store) Frames(ctx context.Context) ([]domain.CapturedFrame, error) {
	out := []domain.CapturedFrame{}
	if _, err := s.getJSON(ctx, KeyScreenshots, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddFrame 追加一张截帧，超出 FrameCap 时淘汰最旧的。
// ID 与 CreatedAt 为 0 时取当前毫秒；ID 与已有记录冲突时顺延，保证唯一。
func (s *Store) AddFrame(ctx context.Context, f domain.CapturedFrame) (domain.CapturedFrame, error) {
	now := s.now().UnixMilli()
	if f.CreatedAt == 0 {
		f.CreatedAt = now
	}
	if f.ID == 0 {
		f.ID = now
	}
	err := s.update(ctx, KeyScreenshots, func(raw []byte) ([]byte, error) {
		var list []domain.CapturedFrame
		if err := decodeList(raw, &list); err != nil {
			return nil, err
		}
		for _, existing := range list {
			if existing.ID >= f.ID {
				f.ID = existing.ID + 1
			}
		}
		return json.Marshal(domain.AppendCapped(list, f, domain.FrameCap))
	})
	return f, err
}

// DeleteFrame 按 id 删除截帧；返回是否找到。
func (s *Store) DeleteFrame(ctx context.Context, id int64) (bool, error) {
	found := false
	err := s.update(ctx, KeyScreenshots, func(raw []byte) ([]byte, error) {
		var list []domain.CapturedFrame
		if err := decodeList(raw, &list); err != nil {
			return nil, err
		}
		kept := make([]domain.CapturedFrame, 0, len(list))
		for _, f := range list {
			if f.ID == id {
				found = true
				continue
			}
			kept = append(kept, f)
		}
		return json.Marshal(kept)
	})
	return found, err
}

// ClearFrames 清空截帧记录。
func (s *Store) ClearFrames(ctx context.Context) error {
	return s.setJSON(ctx, KeyScreenshots, []domain.CapturedFrame{})
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, &Error{Op: "get", Key: key, Err: err}
	}
	if !ok || len(strings.TrimSpace(string(raw))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, &Error{Op: "decode", Key: key, Err: err}
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return &Error{Op: "encode", Key: key, Err: err}
	}
	if err := s.kv.Set(ctx, key, b); err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *Store) update(ctx context.Context, key string, fn func(raw []byte) ([]byte, error)) error {
	err := s.kv.Update(ctx, key, func(old []byte, _ bool) ([]byte, error) { return fn(old) })
	if err != nil {
		return &Error{Op: "update", Key: key, Err: err}
	}
	return nil
}

func decodeList(raw []byte, v any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
