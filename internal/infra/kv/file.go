package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/John-Robertt/tubeqa/internal/infra/fsx"
)

const lockRetryDelay = 25 * time.Millisecond

// File 把每个键存为 <root>/<key>.json。
//
// 约束：
// - 写入走 fsx 的原子替换（临时文件 + rename，权限 0600），读者不会看到半截内容
// - 所有修改都在 <root>/.lock 的文件锁内进行，避免两个 CLI 进程交错写入
type File struct {
	Root string

	mu   sync.Mutex // 同一进程内的互斥；flock 对同一句柄不可重入
	lock *flock.Flock
}

// OpenFile 打开（必要时创建）目录型存储。
func OpenFile(root string) (*File, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("kv: 存储目录不能为空")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("kv: 创建存储目录失败：%w", err)
	}
	return &File{Root: root, lock: flock.New(filepath.Join(root, ".lock"))}, nil
}

// Path 返回键对应的文件路径。
func (s *File) Path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.Root, key+".json"), nil
}

func (s *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, false, err
	}
	return readFile(path)
}

func (s *File) Set(ctx context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.locked(ctx, func() error {
		return fsx.WriteFileAtomicMode(s.Root, key+".json", value, fsx.PermPrivate)
	})
}

func (s *File) Delete(ctx context.Context, key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	return s.locked(ctx, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

func (s *File) Update(ctx context.Context, key string, fn func([]byte, bool) ([]byte, error)) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	return s.locked(ctx, func() error {
		old, ok, err := readFile(path)
		if err != nil {
			return err
		}
		next, err := fn(old, ok)
		if err != nil {
			return err
		}
		return fsx.WriteFileAtomicMode(s.Root, key+".json", next, fsx.PermPrivate)
	})
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Close()
}

func (s *File) locked(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("kv: 获取文件锁失败：%w", err)
	}
	if !ok {
		return errors.New("kv: 获取文件锁失败")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func readFile(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}
