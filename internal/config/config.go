package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	DefaultLang           = "en"
	DefaultModel          = "gemini-2.0-flash"
	DefaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTimeoutSeconds = 60
	DefaultOrigin         = "https://www.youtube.com"
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "console"

	BackendStore   = "store"
	BackendKeyring = "keyring"
)

// 环境变量名。
const (
	EnvAPIKey = "GEMINI_API_KEY"
	EnvStore  = "TUBEQA_STORE"
	EnvProxy  = "TUBEQA_PROXY"
)

//go:embed sample_config.toml
var sampleConfig []byte

// SampleConfig 返回带注释的配置模板（config init 写出的内容）。
func SampleConfig() []byte { return bytes.Clone(sampleConfig) }

// CLIArgs 是命令行可覆盖的项；*Set 记录“是否显式指定”，
// 这样 --lang=en 才能覆盖配置文件中的其它值。
type CLIArgs struct {
	ConfigPath string

	Lang    string
	LangSet bool

	Store    string
	StoreSet bool

	Proxy    string
	ProxySet bool

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应 config.toml 的解析结构。
type FileConfig struct {
	Lang    string        `toml:"lang"`
	Gemini  GeminiConfig  `toml:"gemini"`
	Store   StoreConfig   `toml:"store"`
	Network NetworkConfig `toml:"network"`
	Log     LogConfig     `toml:"log"`
}

type GeminiConfig struct {
	Model             string `toml:"model"`
	BaseURL           string `toml:"base_url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

type StoreConfig struct {
	DSN           string `toml:"dsn"`
	APIKeyBackend string `toml:"api_key_backend"`
}

type NetworkConfig struct {
	Proxy  string `toml:"proxy"`
	Origin string `toml:"origin"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// EffectiveConfig 是合并并规范化后的最终配置。
type EffectiveConfig struct {
	ConfigPath   string
	ConfigExists bool

	Lang string

	Model             string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int

	StoreDSN      string
	APIKeyBackend string

	ProxyURL string
	Origin   string

	LogLevel  string
	LogFormat string

	// EnvAPIKey 来自 GEMINI_API_KEY；非空时优先于存储中的 key。
	EnvAPIKey string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LookupEnv 与 os.LookupEnv 同签名，便于测试注入。
type LookupEnv func(key string) (string, bool)

// DefaultConfigPath 返回 <用户配置目录>/tubeqa/config.toml。
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tubeqa", "config.toml"), nil
}

// DefaultStoreDSN 返回 file://<数据目录>/tubeqa（遵循 XDG_DATA_HOME）。
func DefaultStoreDSN(env LookupEnv) string {
	if env == nil {
		env = os.LookupEnv
	}
	if d, ok := env("XDG_DATA_HOME"); ok && strings.TrimSpace(d) != "" {
		return "file://" + filepath.Join(d, "tubeqa")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "file://" + filepath.Join(os.TempDir(), "tubeqa")
	}
	return "file://" + filepath.Join(home, ".local", "share", "tubeqa")
}

// LoadEffective 读取配置文件并与环境变量、CLI 参数合并为最终配置。
//
// 发现规则：
// 1) --config 显式给出：文件必须存在，否则 config_not_found
// 2) 否则读取 DefaultConfigPath()（可选，不存在时全部取默认值）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 内置默认。
func LoadEffective(cli CLIArgs, env LookupEnv) (EffectiveConfig, error) {
	if env == nil {
		env = os.LookupEnv
	}

	cfgPath := strings.TrimSpace(cli.ConfigPath)
	explicit := cfgPath != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err == nil {
			cfgPath = p
		}
	}

	var (
		fc     FileConfig
		exists bool
		err    error
	)
	if cfgPath != "" {
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}
	if explicit && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	eff, err := merge(cli, env, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	eff.ConfigExists = exists
	return eff, nil
}

var langRE = regexp.MustCompile(`^[A-Za-z]{2,3}([-_][A-Za-z0-9]{1,8})*$`)

func merge(cli CLIArgs, env LookupEnv, fc FileConfig) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Lang:              pick(DefaultLang, fc.Lang, "", cli.Lang, cli.LangSet),
		Model:             pick(DefaultModel, fc.Gemini.Model, "", "", false),
		BaseURL:           pick(DefaultBaseURL, fc.Gemini.BaseURL, "", "", false),
		RequestsPerMinute: fc.Gemini.RequestsPerMinute,
		StoreDSN:          pick(DefaultStoreDSN(env), fc.Store.DSN, envValue(env, EnvStore), cli.Store, cli.StoreSet),
		APIKeyBackend:     strings.ToLower(pick(BackendStore, fc.Store.APIKeyBackend, "", "", false)),
		ProxyURL:          pick("", fc.Network.Proxy, envValue(env, EnvProxy), cli.Proxy, cli.ProxySet),
		Origin:            strings.TrimRight(pick(DefaultOrigin, fc.Network.Origin, "", "", false), "/"),
		LogLevel:          strings.ToLower(pick(DefaultLogLevel, fc.Log.Level, "", cli.LogLevel, cli.LogLevelSet)),
		LogFormat:         strings.ToLower(pick(DefaultLogFormat, fc.Log.Format, "", "", false)),
		EnvAPIKey:         envValue(env, EnvAPIKey),
	}

	if !langRE.MatchString(eff.Lang) {
		return EffectiveConfig{}, fmt.Errorf("lang 无效：%q", eff.Lang)
	}
	if err := checkHTTPURL("gemini.base_url", eff.BaseURL); err != nil {
		return EffectiveConfig{}, err
	}
	if err := checkHTTPURL("network.origin", eff.Origin); err != nil {
		return EffectiveConfig{}, err
	}

	switch {
	case fc.Gemini.TimeoutSeconds < 0:
		return EffectiveConfig{}, fmt.Errorf("gemini.timeout_seconds 不能为负数：%d", fc.Gemini.TimeoutSeconds)
	case fc.Gemini.TimeoutSeconds == 0:
		eff.Timeout = DefaultTimeoutSeconds * time.Second
	default:
		eff.Timeout = time.Duration(fc.Gemini.TimeoutSeconds) * time.Second
	}
	if eff.RequestsPerMinute < 0 {
		return EffectiveConfig{}, fmt.Errorf("gemini.requests_per_minute 不能为负数：%d", eff.RequestsPerMinute)
	}

	switch eff.APIKeyBackend {
	case BackendStore, BackendKeyring:
	default:
		return EffectiveConfig{}, fmt.Errorf("store.api_key_backend 只能是 store 或 keyring，实际是 %q", eff.APIKeyBackend)
	}

	if eff.ProxyURL != "" {
		u, err := url.Parse(eff.ProxyURL)
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy 无效：%w", err)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return EffectiveConfig{}, fmt.Errorf("proxy 必须是 http/https/socks5：%q", eff.ProxyURL)
		}
	}

	switch eff.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, fmt.Errorf("log.level 无效：%q", eff.LogLevel)
	}
	switch eff.LogFormat {
	case "console", "json":
	default:
		return EffectiveConfig{}, fmt.Errorf("log.format 只能是 console 或 json，实际是 %q", eff.LogFormat)
	}
	return eff, nil
}

// pick 按 CLI > env > file > default 选值；空白值视为未设置（CLI 显式给出的除外）。
func pick(def, file, env, cli string, cliSet bool) string {
	if cliSet {
		return strings.TrimSpace(cli)
	}
	if v := strings.TrimSpace(env); v != "" {
		return v
	}
	if v := strings.TrimSpace(file); v != "" {
		return v
	}
	return def
}

func envValue(env LookupEnv, key string) string {
	v, ok := env(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func checkHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
