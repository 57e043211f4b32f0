package cmd

import (
	"github.com/spf13/cobra"

	"github.com/patchdance/patchdance/internal/engine"
	"github.com/patchdance/patchdance/internal/history"
)

var moveBefore bool

var moveCmd = &cobra.Command{
	Use:   "move [patch-id] [from-commit] [to-commit]",
	Short: "Move a patch from one commit to another",
	Long: `Move a single patch out of one commit and into another, rewriting
both commits. The edit is refused if the patch's hunks overlap changes
the destination already makes to the same file.

Examples:
  patchdance move a1b2c3d4:src/app.py a1b2c3d4... e5f6a7b8...
  patchdance move a1b2c3d4:src/app.py a1b2c3d4... e5f6a7b8... --before`,
	Args: cobra.ExactArgs(3),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().BoolVar(&moveBefore, "before", false, "Place the patch before the destination's own changes")
}

func runMove(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}

	position := engine.PositionAfter
	if moveBefore {
		position = engine.PositionBefore
	}

	return runOperation(cmd.Context(), repo, engine.MovePatch{
		PatchID:    args[0],
		FromCommit: history.CommitID(args[1]),
		ToCommit:   history.CommitID(args[2]),
		Position:   position,
	})
}
