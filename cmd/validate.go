package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the repository is usable for history editing",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}

	if !repo.ValidateRepository(cmd.Context()) {
		return fmt.Errorf("repository at %s has no readable HEAD commit", repoPath)
	}

	successStyle := lipgloss.NewStyle().Foreground(successColor)
	fmt.Println(successStyle.Render("✓ repository is valid"))
	return nil
}
