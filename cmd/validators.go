package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NachoColl/agilevibecoding-sub003/internal/instructions"
	"github.com/NachoColl/agilevibecoding-sub003/internal/output"
	"github.com/NachoColl/agilevibecoding-sub003/internal/verdict"
)

var validatorsCmd = &cobra.Command{
	Use:   "validators",
	Short: "List available validators",
	Long: `List the reviewers avc can put on a panel.

Each validator has an instruction document, either embedded in the
binary or overridden by a <reviewer-id>.md file in validators.dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validatorsListRun()
	},
}

var validatorsShowCmd = &cobra.Command{
	Use:   "show <reviewer-id>",
	Short: "Show a validator's instruction document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validatorsShowRun(args[0])
	},
}

func init() {
	validatorsCmd.AddCommand(validatorsShowCmd)
	rootCmd.AddCommand(validatorsCmd)
}

func validatorsListRun() error {
	instr := instructions.New(viper.GetString("validators.dir"))
	ids, err := instr.List()
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		ui.Info("No validators found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Kind", "Specialty", "Source"})
	for _, id := range ids {
		kind := "-"
		switch {
		case strings.HasPrefix(id, "reviewer-epic-"):
			kind = "epic"
		case strings.HasPrefix(id, "reviewer-story-"):
			kind = "story"
		}
		_ = table.Append([]string{
			id,
			kind,
			verdict.ExtractDomain(id),
			instr.Source(id),
		})
	}
	_ = table.Render()
	return nil
}

func validatorsShowRun(id string) error {
	instr := instructions.New(viper.GetString("validators.dir"))
	doc, err := instr.Load(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s (%s)\n\n", output.Cyan(id), instr.Source(id))
	fmt.Fprintln(ui.Out, doc)
	return nil
}
