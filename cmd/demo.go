package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/patchdance/patchdance/internal/engine"
	"github.com/patchdance/patchdance/internal/gitrepo"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted patch move against an in-memory repository",
	Long: `Seed an in-memory repository with a few commits, move the newest
commit's patch into an older commit, and show the history before and
after. Nothing on disk is touched.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := gitrepo.DemoRepository()
	if err != nil {
		return err
	}

	headerStyle := lipgloss.NewStyle().Foreground(headerColor).Bold(true)

	graph, err := loadGraph(ctx, repo)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render("History before:"))
	printGraph(graph)
	fmt.Println()

	// move the head commit's patch into the commit two below it
	head, target := graph.Commits[0], graph.Commits[2]
	patches, err := repo.GetPatches(ctx, head.ID)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return fmt.Errorf("demo head commit has no patches")
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Moving patch %s from %s to %s:",
		patches[0].ID, head.ID.Short(), target.ID.Short())))
	if err := runOperation(ctx, repo, engine.MovePatch{
		PatchID:    patches[0].ID,
		FromCommit: head.ID,
		ToCommit:   target.ID,
		Position:   engine.PositionAfter,
	}); err != nil {
		return err
	}
	fmt.Println()

	graph, err = loadGraph(ctx, repo)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render("History after:"))
	printGraph(graph)
	return nil
}
