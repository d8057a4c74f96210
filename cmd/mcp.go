package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/NachoColl/agilevibecoding-sub003/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets Claude Code drive avc natively: import backlogs, inspect
work items, select panels, run validations, and read feedback.
Configure in Claude Code with:

  {
    "mcpServers": {
      "avc": { "command": "avc", "args": ["mcp"] }
    }
  }

Available tools: avc_list_items, avc_show_item, avc_import_backlog,
avc_select_panel, avc_validate_item, avc_get_feedback, avc_list_runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	engine, err := getEngine()
	if err != nil {
		return err
	}

	return mcp.NewServer(s, engine).ServeStdio(context.Background())
}
