package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cyclone/internal/config"
	"github.com/Iron-Ham/cyclone/internal/flow"
)

var flowsCmd = &cobra.Command{
	Use:   "flows <workflow-name>",
	Short: "List the flows recorded for a workflow",
	Long: `List the flows recorded in a workflow's state directory with their
descriptions and start times.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlows,
}

func init() {
	flowsCmd.Flags().String("state-dir", "", "state directory (default from state.dir)")
}

func runFlows(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("state-dir")
	if dir == "" {
		dir = cfg.State.ResolveStateDir(args[0])
	}

	state, err := flow.LoadState(dir)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no flows recorded in "+dir))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderFlows(args[0], state))
	return nil
}

func renderFlows(name string, state flow.State) string {
	mgr, err := flow.NewManager(state.Scheme, nil, nil)
	if err != nil {
		mgr, _ = flow.NewManager(flow.SchemeNumbers, nil, nil)
	}

	atoms := make([]int, 0, len(state.Flows))
	for a := range state.Flows {
		atoms = append(atoms, a)
	}
	slices.Sort(atoms)

	lines := []string{headerStyle.Render(name + " flows")}
	if len(atoms) == 0 {
		lines = append(lines, mutedStyle.Render("(none)"))
	}
	for _, a := range atoms {
		meta := state.Flows[a]
		value := meta.Description + "  " + mutedStyle.Render(meta.StartTime.Format("2006-01-02T15:04:05Z07:00"))
		lines = append(lines, row(mgr.Label(flow.NewID(a)), 6, value))
	}
	if state.Scheme == flow.SchemeLabels {
		lines = append(lines, "", row("available", 11, strconv.Itoa(len(state.Available))))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
