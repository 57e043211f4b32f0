package cmd

import (
	"github.com/spf13/cobra"

	"github.com/patchdance/patchdance/internal/engine"
)

var (
	createMessage string
	createBefore  bool
)

var createCmd = &cobra.Command{
	Use:   "create [patch-id]...",
	Short: "Create a new commit from existing patches",
	Long: `Create a new commit from patches drawn from anywhere in the visible
history. By default the commit lands on top of the branch head; with
--before it is inserted beneath it instead.

Examples:
  patchdance create a1b2c3d4:src/app.py -m "Extract app changes"
  patchdance create a1b2c3d4:a.py e5f6a7b8:b.py -m "Regroup" --before`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createMessage, "message", "m", "", "Message for the new commit (required)")
	createCmd.Flags().BoolVar(&createBefore, "before", false, "Insert beneath the branch head instead of on top")
	createCmd.MarkFlagRequired("message")
}

func runCreate(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}

	position := engine.PositionAtBranchHead
	if createBefore {
		position = engine.PositionBefore
	}

	return runOperation(cmd.Context(), repo, engine.CreateCommit{
		PatchIDs: args,
		Message:  createMessage,
		Position: position,
	})
}
