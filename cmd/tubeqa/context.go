package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/tubeqa/internal/app"
	"github.com/John-Robertt/tubeqa/internal/config"
	"github.com/John-Robertt/tubeqa/internal/infra/httpx"
	"github.com/John-Robertt/tubeqa/internal/infra/kv"
	"github.com/John-Robertt/tubeqa/internal/logging"
	"github.com/John-Robertt/tubeqa/internal/qa"
	"github.com/John-Robertt/tubeqa/internal/store"
)

// commandContext 按需构造各命令共享的依赖：配置、日志、HTTP client 与存储。
type commandContext struct {
	flags config.CLIArgs
	env   config.LookupEnv

	configOnce sync.Once
	eff        config.EffectiveConfig
	configErr  error
	logger     *slog.Logger

	storeOnce sync.Once
	store     *store.Store
	storeErr  error

	// secrets 覆盖 keyring 后端（测试用）。
	secrets store.SecretStore
}

func newCommandContext(env config.LookupEnv) *commandContext {
	if env == nil {
		env = os.LookupEnv
	}
	return &commandContext{env: env}
}

// bindFlags 记录哪些全局参数被显式指定（--lang= 也算显式）。
func (c *commandContext) bindFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	c.flags.LangSet = fs.Changed("lang")
	c.flags.StoreSet = fs.Changed("store")
	c.flags.ProxySet = fs.Changed("proxy")
	c.flags.LogLevelSet = fs.Changed("log-level")
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (config.EffectiveConfig, error) {
	c.configOnce.Do(func() {
		if wd, err := os.Getwd(); err == nil {
			if err := config.LoadDotEnv(wd); err != nil {
				c.configErr = err
				return
			}
		}
		eff, err := config.LoadEffective(c.flags, c.env)
		if err != nil {
			c.configErr = err
			return
		}
		l, err := logging.New(logging.Options{Level: eff.LogLevel, Format: eff.LogFormat, Writer: cmd.ErrOrStderr()})
		if err != nil {
			c.configErr = &config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigPath, Err: err}
			return
		}
		c.logger, _ = logging.WithSession(l)
		c.eff = eff
	})
	return c.eff, c.configErr
}

func (c *commandContext) log() *slog.Logger {
	if c.logger == nil {
		return logging.NewNop()
	}
	return c.logger
}

// openStore 打开存储；同一进程内只打开一次。
func (c *commandContext) openStore(ctx context.Context) (*store.Store, error) {
	c.storeOnce.Do(func() {
		b, err := kv.Open(ctx, c.eff.StoreDSN)
		if err != nil {
			c.storeErr = &store.Error{Op: "open", Err: err}
			return
		}
		var opts []store.Option
		if c.eff.APIKeyBackend == config.BackendKeyring {
			sec := c.secrets
			if sec == nil {
				sec = store.NewKeyring()
			}
			opts = append(opts, store.WithSecrets(sec))
		}
		c.store = store.New(b, opts...)
		c.log().Debug("store opened", slog.String("dsn", redactDSN(c.eff.StoreDSN)))
	})
	return c.store, c.storeErr
}

func (c *commandContext) pageClient(lang string) (*http.Client, error) {
	cl, err := httpx.NewClient(httpx.Options{ProxyURL: c.eff.ProxyURL, Lang: lang})
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Path: c.eff.ConfigPath, Err: err}
	}
	return cl, nil
}

func (c *commandContext) qaClient() (*qa.Client, error) {
	cl, err := httpx.NewClient(httpx.Options{
		ProxyURL:  c.eff.ProxyURL,
		Timeout:   c.eff.Timeout,
		UserAgent: "tubeqa/" + version,
	})
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Path: c.eff.ConfigPath, Err: err}
	}
	return qa.NewClient(
		qa.WithHTTPClient(cl),
		qa.WithBaseURL(c.eff.BaseURL),
		qa.WithModel(c.eff.Model),
		qa.WithRequestsPerMinute(c.eff.RequestsPerMinute),
		qa.WithLogger(c.log()),
	), nil
}

// newSession 组装一次会话；lang 为空时使用配置值。
func (c *commandContext) newSession(ctx context.Context, lang string, obs app.Observer) (*app.Session, error) {
	if lang == "" {
		lang = c.eff.Lang
	}
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	pc, err := c.pageClient(lang)
	if err != nil {
		return nil, err
	}
	qc, err := c.qaClient()
	if err != nil {
		return nil, err
	}
	return app.NewSession(app.Options{
		HTTPClient: pc,
		QA:         qc,
		Store:      st,
		Lang:       lang,
		Origin:     c.eff.Origin,
		EnvAPIKey:  c.eff.EnvAPIKey,
		Logger:     c.log(),
		Observer:   obs,
	})
}

// Close 释放存储。
func (c *commandContext) Close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
