package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NachoColl/agilevibecoding-sub003/internal/backlog"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import epics and stories from a backlog YAML file",
	Long: `Import a backlog YAML document into the local database.

The file declares epics with nested stories:

  epics:
    - id: EPIC-001
      title: User Management System
      domain: user-management
      features: [authentication]
      stories:
        - id: EPIC-001-S01
          title: User registration
          acceptance_criteria:
            - User can register with email and password

Re-importing updates titles, domains, features, and criteria in place.
Cached reviewer panels and validation stamps are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return importRun(args[0])
	},
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview parsed items without importing them")
	rootCmd.AddCommand(importCmd)
}

func importRun(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	b, err := backlog.Parse(data)
	if err != nil {
		return fmt.Errorf("invalid backlog: %w", err)
	}

	items := b.WorkItems()
	if len(items) == 0 {
		ui.Info("No work items found in file.")
		return nil
	}

	// Preview table
	table := ui.Table([]string{"ID", "Kind", "Title", "Domain"})
	for _, item := range items {
		_ = table.Append([]string{
			item.ID,
			string(item.Kind),
			item.Title,
			item.Domain,
		})
	}
	_ = table.Render()

	if importDryRun || dryRun {
		ui.DryRunMsg("Would import %d work items from %d epics", len(items), len(b.Epics))
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	created, updated, err := backlog.Import(ctx, s, b)
	if err != nil {
		return fmt.Errorf("import backlog: %w", err)
	}

	ui.Success("Imported %d work items (%d created, %d updated)", created+updated, created, updated)
	return nil
}
