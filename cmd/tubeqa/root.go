package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tubeqa",
		Short:         "提取 YouTube 字幕，并基于字幕回答问题",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.bindFlags(cmd)
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&ctx.flags.ConfigPath, "config", "c", "", "配置文件路径（默认 <用户配置目录>/tubeqa/config.toml）")
	pf.StringVar(&ctx.flags.Lang, "lang", "", "字幕目标语言（默认 en）")
	pf.StringVar(&ctx.flags.Store, "store", "", "存储 dsn：file://DIR、sqlite://FILE、redis://HOST/DB、memory:")
	pf.StringVar(&ctx.flags.Proxy, "proxy", "", "代理地址（http/https/socks5）")
	pf.StringVar(&ctx.flags.LogLevel, "log-level", "", "日志级别：debug/info/warn/error")

	rootCmd.AddCommand(newTranscriptCommand(ctx))
	rootCmd.AddCommand(newAskCommand(ctx))
	rootCmd.AddCommand(newChatCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newFramesCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
