package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/tubeqa/internal/app"
	"github.com/John-Robertt/tubeqa/internal/mcpserver"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "以 MCP（stdio）服务运行：get_transcript / ask_video / list_history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			server := mcpserver.New(version, mcpserver.Deps{
				Store: st,
				NewSession: func(lang string) (*app.Session, error) {
					return ctx.newSession(cmd.Context(), lang, nil)
				},
			})
			ctx.log().Info("mcp server starting", slog.String("version", version))
			return mcpserver.Run(cmd.Context(), server)
		},
	}
}
