package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

func envMap(m map[string]string) LookupEnv {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	_, err := LoadEffective(CLIArgs{ConfigPath: path}, envMap(nil))
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_DefaultPathOptional(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME 仅在 linux 上决定 UserConfigDir")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	eff, err := LoadEffective(CLIArgs{}, envMap(map[string]string{"XDG_DATA_HOME": "/data"}))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigExists {
		t.Fatalf("默认配置文件不存在时 ConfigExists 应为 false")
	}
	if eff.Lang != DefaultLang || eff.Model != DefaultModel || eff.Timeout != 60*time.Second {
		t.Fatalf("默认值不正确：%+v", eff)
	}
	if eff.StoreDSN != "file://"+filepath.Join("/data", "tubeqa") {
		t.Fatalf("默认 store dsn 不正确：%q", eff.StoreDSN)
	}
}

func TestLoadEffective_SampleConfigIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, SampleConfig())

	eff, err := LoadEffective(CLIArgs{ConfigPath: path}, envMap(nil))
	if err != nil {
		t.Fatalf("模板配置应当合法：%v", err)
	}
	if !eff.ConfigExists || eff.ConfigPath != path {
		t.Fatalf("配置路径记录不正确：%+v", eff)
	}
	if eff.APIKeyBackend != BackendStore || eff.LogFormat != "console" || eff.Origin != DefaultOrigin {
		t.Fatalf("模板值不正确：%+v", eff)
	}

	var fc FileConfig
	if err := toml.Unmarshal(SampleConfig(), &fc); err != nil {
		t.Fatalf("模板无法解析：%v", err)
	}
}

func TestLoadEffective_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, []byte(`
lang = "de"
[store]
dsn = "sqlite:///from/file.db"
[network]
proxy = "http://file:8080"
[log]
level = "info"
`))

	// 只有文件。
	eff, err := LoadEffective(CLIArgs{ConfigPath: path}, envMap(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Lang != "de" || eff.StoreDSN != "sqlite:///from/file.db" || eff.ProxyURL != "http://file:8080" || eff.LogLevel != "info" {
		t.Fatalf("应使用文件中的值：%+v", eff)
	}

	// 环境变量覆盖文件。
	env := envMap(map[string]string{
		EnvStore:  "redis://localhost:6379/0",
		EnvProxy:  "socks5://env:1080",
		EnvAPIKey: "  env-key ",
	})
	eff, err = LoadEffective(CLIArgs{ConfigPath: path}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.StoreDSN != "redis://localhost:6379/0" || eff.ProxyURL != "socks5://env:1080" || eff.EnvAPIKey != "env-key" {
		t.Fatalf("环境变量应覆盖文件：%+v", eff)
	}

	// CLI 覆盖环境变量；--proxy= 显式置空也算覆盖。
	eff, err = LoadEffective(CLIArgs{
		ConfigPath: path,
		Lang:       "fr", LangSet: true,
		Store: "memory:", StoreSet: true,
		Proxy: "", ProxySet: true,
		LogLevel: "debug", LogLevelSet: true,
	}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Lang != "fr" || eff.StoreDSN != "memory:" || eff.ProxyURL != "" || eff.LogLevel != "debug" {
		t.Fatalf("CLI 应覆盖环境变量：%+v", eff)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":          `lang = `,
		"lang":            `lang = "not a lang"`,
		"base_url":        "[gemini]\nbase_url = \"ftp://x\"",
		"timeout":         "[gemini]\ntimeout_seconds = -1",
		"rpm":             "[gemini]\nrequests_per_minute = -5",
		"api_key_backend": "[store]\napi_key_backend = \"vault\"",
		"proxy":           "[network]\nproxy = \"http://[::1\"",
		"proxy_scheme":    "[network]\nproxy = \"ftp://p:21\"",
		"log_level":       "[log]\nlevel = \"loud\"",
		"log_format":      "[log]\nformat = \"xml\"",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			writeFile(t, path, []byte(body))
			_, err := LoadEffective(CLIArgs{ConfigPath: path}, envMap(nil))
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), []byte("TUBEQA_TEST_A=from-file\nTUBEQA_TEST_B=from-file\n"))
	t.Setenv("TUBEQA_TEST_A", "from-env")
	t.Setenv("TUBEQA_TEST_B", "")
	os.Unsetenv("TUBEQA_TEST_B")

	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := os.Getenv("TUBEQA_TEST_A"); got != "from-env" {
		t.Fatalf(".env 不应覆盖已有变量，实际 %q", got)
	}
	if got := os.Getenv("TUBEQA_TEST_B"); got != "from-file" {
		t.Fatalf(".env 应填充未设置的变量，实际 %q", got)
	}

	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Fatalf(".env 不存在不应报错：%v", err)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
