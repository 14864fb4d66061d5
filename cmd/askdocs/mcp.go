package main

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/memrook/askdocs/internal/session"
)

// mcpChatID is the synthetic chat used for all MCP tool calls. MCP
// clients share one conversation thread.
const mcpChatID = -1

// mcpCmd serves the question-answering path over MCP stdio, without
// Telegram or the HTTP gateway.
func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve an MCP stdio server exposing the ask_documents tool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			app, appCtx, _, err := buildApp(cfgPath, []string{"channel.telegram", "gateway.http"})
			if err != nil {
				return err
			}
			if err := app.Start(); err != nil {
				return err
			}
			defer app.Stop()

			svc, ok := appCtx.Service("session.manager")
			if !ok {
				return errors.New("mcp: session.manager service not available")
			}
			manager, ok := svc.(*session.Manager)
			if !ok {
				return errors.New("mcp: session.manager service has wrong type")
			}

			s := server.NewMCPServer("askdocs", version)
			tool := mcp.NewTool("ask_documents",
				mcp.WithDescription("Answer a question using the indexed document corpus."),
				mcp.WithString("question",
					mcp.Required(),
					mcp.Description("The question to answer, in any language."),
				),
			)
			s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				question, err := req.RequireString("question")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}

				reply, err := manager.Send(ctx, session.ChatInfo{ChatID: mcpChatID}, question)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return mcp.NewToolResultText(reply), nil
			})

			return server.ServeStdio(s)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
