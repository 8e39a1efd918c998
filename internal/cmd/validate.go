package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cyclone/internal/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Validate a workflow definition",
	Long: `Parse and validate a workflow definition, then show its queues with
family members expanded to the task names each queue limits.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	def, err := workflow.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderDefinition(def))
	return nil
}

func renderDefinition(def *workflow.Definition) string {
	const width = 14
	lines := []string{
		headerStyle.Render(def.Name) + " " + okStyle.Render("valid"),
		"",
		row("tasks", width, strings.Join(def.TaskNames(), " ")),
		row("cycle points", width, strings.Join(def.Points(), " ")),
	}

	families := make([]string, 0, len(def.Families))
	for f := range def.Families {
		families = append(families, f)
	}
	slices.Sort(families)
	for _, f := range families {
		lines = append(lines, row("family "+f, width, strings.Join(def.Families[f], " ")))
	}

	lines = append(lines, "", headerStyle.Render("queues"))
	limiters := def.NewQueue().Limiters()
	if len(limiters) == 0 {
		lines = append(lines, mutedStyle.Render("no limited queues"))
	}
	for _, l := range limiters {
		label := l.Name() + " (" + strconv.Itoa(l.Limit()) + ")"
		lines = append(lines, row(label, width+6, strings.Join(l.Members(), " ")))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
