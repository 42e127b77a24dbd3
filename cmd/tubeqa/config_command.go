package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/John-Robertt/tubeqa/internal/config"
	"github.com/John-Robertt/tubeqa/internal/infra/fsx"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "配置与 API key 管理",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigSetKeyCommand(ctx))
	configCmd.AddCommand(&cobra.Command{
		Use:   "clear-key",
		Short: "删除已保存的 API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.ClearAPIKey(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "已删除 API key")
			return nil
		},
	})

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "显示生效的配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			keySource, keyHint := "none", ""
			switch {
			case eff.EnvAPIKey != "":
				keySource, keyHint = "env ("+config.EnvAPIKey+")", maskKey(eff.EnvAPIKey)
			default:
				st, err := ctx.openStore(cmd.Context())
				if err != nil {
					return err
				}
				k, err := st.APIKey(cmd.Context())
				if err != nil {
					return err
				}
				if k != "" {
					keySource, keyHint = eff.APIKeyBackend, maskKey(k)
				}
			}

			cfgPath := eff.ConfigPath
			if !eff.ConfigExists {
				cfgPath += "（不存在，使用默认值）"
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"config", cfgPath},
				{"lang", eff.Lang},
				{"gemini.model", eff.Model},
				{"gemini.base_url", eff.BaseURL},
				{"gemini.timeout", eff.Timeout.String()},
				{"gemini.requests_per_minute", fmt.Sprint(eff.RequestsPerMinute)},
				{"store.dsn", redactDSN(eff.StoreDSN)},
				{"store.api_key_backend", eff.APIKeyBackend},
				{"api_key", strings.TrimSpace(keySource + " " + keyHint)},
				{"network.proxy", formatProxy(eff.ProxyURL)},
				{"network.origin", eff.Origin},
				{"log.level", eff.LogLevel},
				{"log.format", eff.LogFormat},
			}
			if isTerminal(out) {
				fmt.Fprintln(out, renderTable([]string{"key", "value"}, rows, nil))
				return nil
			}
			for _, r := range rows {
				fmt.Fprintf(out, "%s = %s\n", r[0], r[1])
			}
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "写出带注释的配置模板（不覆盖已有文件）",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				if p, _ := cmd.Flags().GetString("config"); strings.TrimSpace(p) != "" {
					target = strings.TrimSpace(p)
				} else {
					def, err := config.DefaultConfigPath()
					if err != nil {
						return fmt.Errorf("无法确定默认配置路径：%w", err)
					}
					target = def
				}
			}
			dir, name := filepath.Split(target)
			if dir == "" {
				dir = "."
			}
			if err := fsx.WriteFileAtomicNoOverwrite(dir, name, config.SampleConfig()); err != nil {
				if errors.Is(err, os.ErrExist) {
					return fmt.Errorf("配置文件已存在：%s", target)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已写入配置模板 %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "使用 `tubeqa config set-key` 保存 API key（或设置 GEMINI_API_KEY）。")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "配置文件写入位置")
	return cmd
}

func newConfigSetKeyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key [KEY]",
		Short: "保存 API key（不带参数时从终端读取，不回显）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				k, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				key = k
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("API key 不能为空（删除请使用 config clear-key）")
			}
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.SetAPIKey(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "已保存 API key %s\n", maskKey(key))
			return nil
		},
	}
}

// readSecret 终端下不回显读取；否则读取 stdin 的第一行。
func readSecret(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "API key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}

// maskKey 只保留首尾各 4 个字符。
func maskKey(k string) string {
	k = strings.TrimSpace(k)
	if len(k) <= 8 {
		return strings.Repeat("*", len(k))
	}
	return k[:4] + strings.Repeat("*", 4) + k[len(k)-4:]
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	return "on (" + redactDSN(raw) + ")"
}
