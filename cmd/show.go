package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/patchdance/patchdance/internal/diff"
	"github.com/patchdance/patchdance/internal/history"
)

var showCmd = &cobra.Command{
	Use:   "show [commit]",
	Short: "Show a commit's patches and their hunks",
	Long: `Show the patches a commit introduces, one per file, with each
hunk's line runs and content. Patch IDs printed here are the handles
move, split, and create take.

Examples:
  patchdance show a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0
  patchdance show HEAD-commit-id --repo /path/to/repo`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	id := history.CommitID(args[0])
	info, err := repo.GetCommitInfo(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read commit: %w", err)
	}
	patches, err := repo.GetPatches(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read patches: %w", err)
	}

	headerStyle := lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	commitStyle := lipgloss.NewStyle().Foreground(commitColor)
	textStyle := lipgloss.NewStyle().Foreground(textColor)

	fmt.Printf("%s %s\n", headerStyle.Render("commit"), commitStyle.Render(string(info.ID)))
	fmt.Printf("%s %s <%s>\n", headerStyle.Render("author"), textStyle.Render(info.Author), info.Email)
	fmt.Printf("%s %s\n\n", headerStyle.Render("date  "), textStyle.Render(info.Timestamp.Format("Jan 02 2006, 15:04")))
	fmt.Println(textStyle.Render("    " + info.Summary()))
	fmt.Println()

	for _, patch := range patches {
		printPatch(patch)
	}
	return nil
}

func printPatch(patch diff.Patch) {
	fileStyle := lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	idStyle := lipgloss.NewStyle().Foreground(commitColor)
	runStyle := lipgloss.NewStyle().Foreground(borderColor)
	modeStyle := lipgloss.NewStyle().Foreground(numberColor).Italic(true)

	fmt.Printf("%s %s\n", fileStyle.Render(patch.TargetFile), idStyle.Render("["+patch.ID+"]"))
	if patch.ModeChange != nil {
		fmt.Println(modeStyle.Render("  " + describeModeChange(*patch.ModeChange)))
	}

	for _, hunk := range patch.Hunks {
		fmt.Println(runStyle.Render(fmt.Sprintf("  @@ -%d,%d +%d,%d @@",
			hunk.Old.Start, hunk.Old.Lines, hunk.New.Start, hunk.New.Lines)))
		for _, line := range hunk.Lines {
			fmt.Println("  " + renderDiffLine(line))
		}
	}
	fmt.Println()
}

func renderDiffLine(line diff.DiffLine) string {
	switch line.Type {
	case diff.LineAddition:
		return lipgloss.NewStyle().Foreground(addColor).Render("+ " + line.Content)
	case diff.LineDeletion:
		return lipgloss.NewStyle().Foreground(deleteColor).Render("- " + line.Content)
	default:
		return lipgloss.NewStyle().Foreground(textColor).Render("  " + line.Content)
	}
}

func describeModeChange(mode diff.ModeChange) string {
	switch mode.Kind {
	case diff.ModeNewFile:
		return fmt.Sprintf("new file mode %o", mode.Mode)
	case diff.ModeDeletedFile:
		return fmt.Sprintf("deleted file mode %o", mode.Mode)
	default:
		return fmt.Sprintf("mode change %o -> %o", mode.OldMode, mode.NewMode)
	}
}
