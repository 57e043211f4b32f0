package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/patchdance/patchdance/internal/engine"
)

// LipGloss signature purple/pink palette, shared by every command
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink/magenta
	commitColor  = lipgloss.Color("#BD93F9") // Purple
	numberColor  = lipgloss.Color("#FF79C6") // Pink
	textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	borderColor  = lipgloss.Color("#6272A4") // Muted purple
	successColor = lipgloss.Color("#50FA7B") // Green
	errorColor   = lipgloss.Color("#FF5555") // Red
	addColor     = lipgloss.Color("#50FA7B") // Green
	deleteColor  = lipgloss.Color("#FF5555") // Red
)

func printResult(result engine.OperationResult) {
	successStyle := lipgloss.NewStyle().Foreground(successColor)
	commitStyle := lipgloss.NewStyle().Foreground(commitColor)

	fmt.Println(successStyle.Render("✓ " + result.Message))
	for _, id := range result.NewCommitIDs {
		fmt.Printf("  %s\n", commitStyle.Render(id.Short()))
	}
}

func printConflicts(result engine.OperationResult) {
	errorStyle := lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	fileStyle := lipgloss.NewStyle().Foreground(commitColor)
	descStyle := lipgloss.NewStyle().Foreground(textColor)
	sideStyle := lipgloss.NewStyle().Foreground(borderColor)

	fmt.Println(errorStyle.Render(fmt.Sprintf("✗ %d conflict(s) detected", len(result.Conflicts))))
	for _, c := range result.Conflicts {
		fmt.Printf("%s %s %s\n",
			errorStyle.Render("["+c.Kind.String()+"]"),
			fileStyle.Render(c.FilePath),
			descStyle.Render(c.Description))
		if c.OurContent != "" {
			printConflictSide(sideStyle, "existing", c.OurContent)
		}
		if c.TheirContent != "" {
			printConflictSide(sideStyle, "incoming", c.TheirContent)
		}
	}
}

func printConflictSide(style lipgloss.Style, label, content string) {
	fmt.Printf("  %s\n", style.Render(label+":"))
	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		fmt.Printf("    %s\n", style.Render(line))
	}
}
