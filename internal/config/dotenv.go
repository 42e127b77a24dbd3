package config

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv 加载 dir/.env；只填充尚未设置的环境变量。文件不存在不是错误。
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return nil
}
