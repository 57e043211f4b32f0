package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/patchdance/patchdance/internal/history"
)

var logJSON bool

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the commit graph with patch-level file summaries",
	Long: `Show the visible window of the commit graph, newest first.

Each row shows the short commit ID, author, subject, and the files the
commit touches. These are the commits operations can address.

Examples:
  patchdance log
  patchdance log --repo /path/to/repo --max-commits 20
  patchdance log --json`,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().BoolVar(&logJSON, "json", false, "Emit the commit graph as JSON")
}

func runLog(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	graph, err := loadGraph(cmd.Context(), repo)
	if err != nil {
		return err
	}

	if logJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(graph)
	}

	printGraph(graph)
	return nil
}

func printGraph(graph history.CommitGraph) {
	// Column widths
	const (
		idWidth     = 10
		authorWidth = 16
		dateWidth   = 15
		msgWidth    = 44
	)

	headerStyle := lipgloss.NewStyle().
		Foreground(headerColor).
		Bold(true).
		Padding(0, 1)

	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	headers := []string{
		headerStyle.Width(idWidth).Render("COMMIT"),
		headerStyle.Width(authorWidth).Render("AUTHOR"),
		headerStyle.Width(dateWidth).Render("DATE"),
		headerStyle.Width(msgWidth).Render("SUBJECT"),
	}
	fmt.Println(strings.Join(headers, borderStyle.Render("│")))

	separatorParts := []string{
		strings.Repeat("─", idWidth),
		strings.Repeat("─", authorWidth),
		strings.Repeat("─", dateWidth),
		strings.Repeat("─", msgWidth),
	}
	fmt.Println(borderStyle.Render(strings.Join(separatorParts, "┼")))

	idStyle := lipgloss.NewStyle().
		Foreground(commitColor).
		Padding(0, 1).
		Width(idWidth)
	authorStyle := lipgloss.NewStyle().
		Foreground(numberColor).
		Padding(0, 1).
		Width(authorWidth)
	dateStyle := lipgloss.NewStyle().
		Foreground(textColor).
		Padding(0, 1).
		Width(dateWidth)
	msgStyle := lipgloss.NewStyle().
		Foreground(textColor).
		Padding(0, 1).
		Width(msgWidth)
	fileStyle := lipgloss.NewStyle().
		Foreground(borderColor).
		PaddingLeft(2)

	for _, commit := range graph.Commits {
		cells := []string{
			idStyle.Render(commit.ID.Short()),
			authorStyle.Render(commit.Author),
			dateStyle.Render(commit.Timestamp.Format("Jan 02, 15:04")),
			msgStyle.Render(commit.Summary()),
		}
		fmt.Println(strings.Join(cells, borderStyle.Render("│")))

		if len(commit.FilesChanged) > 0 {
			fmt.Println(fileStyle.Render(strings.Join(commit.FilesChanged, ", ")))
		}
	}

	fmt.Println()
	summaryStyle := lipgloss.NewStyle().Foreground(headerColor).Italic(true)
	summary := fmt.Sprintf("Branch %s: showing %d of %d commits",
		graph.CurrentBranch, len(graph.Commits), graph.TotalCount)
	if graph.IsPartial() {
		summary += " (partial)"
	}
	fmt.Println(summaryStyle.Render(summary))
}
