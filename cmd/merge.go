package cmd

import (
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/patchdance/patchdance/internal/engine"
	"github.com/patchdance/patchdance/internal/history"
)

var mergeMessage string

var mergeCmd = &cobra.Command{
	Use:   "merge [commit]...",
	Short: "Merge several commits into one",
	Long: `Collapse two or more commits into a single commit carrying all of
their patches. Commits must be given earliest first, and the edit is
refused when any two inputs change overlapping lines of the same file.

Examples:
  patchdance merge a1b2c3d4... e5f6a7b8... -m "Combine refactors"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVarP(&mergeMessage, "message", "m", "", "Message for the merged commit (required)")
	mergeCmd.MarkFlagRequired("message")
}

func runMerge(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	return runOperation(cmd.Context(), repo, engine.MergeCommits{
		CommitIDs: lo.Map(args, func(arg string, _ int) history.CommitID { return history.CommitID(arg) }),
		Message:   mergeMessage,
	})
}
