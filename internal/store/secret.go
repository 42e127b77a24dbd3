package store

import (
	"errors"
	"os/user"
	"strings"

	"github.com/zalando/go-keyring"
)

// SecretStore 保存单个密钥（API key）。
type SecretStore interface {
	Get() (string, error) // 未设置时返回 ""、nil
	Set(secret string) error
	Delete() error // 未设置时不是错误
}

// KeyringService 是系统 keyring 中的服务名。
const KeyringService = "tubeqa"

// Keyring 把密钥存进系统 keyring（macOS Keychain / Secret Service / Windows Credential Manager）。
type Keyring struct {
	Service string
	User    string
}

// NewKeyring 使用当前系统用户名作为账户名。
func NewKeyring() Keyring {
	return Keyring{Service: KeyringService, User: systemUser()}
}

func (k Keyring) Get() (string, error) {
	s, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return s, err
}

func (k Keyring) Set(secret string) error {
	return keyring.Set(k.Service, k.User, secret)
}

func (k Keyring) Delete() error {
	err := keyring.Delete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func systemUser() string {
	if u, err := user.Current(); err == nil && strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	return "default"
}
