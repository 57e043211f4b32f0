package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patchdance/patchdance/internal/engine"
	"github.com/patchdance/patchdance/internal/history"
)

var splitInto []string

var splitCmd = &cobra.Command{
	Use:   "split [commit]",
	Short: "Split a commit into several smaller commits",
	Long: `Split one commit into a chain of smaller commits, each taking a
subset of its patches. Every patch of the source must be assigned to
exactly one part; the parts keep the source's position in history.

Each --into takes "message=patch-id,patch-id,...".

Examples:
  patchdance split a1b2c3d4... \
    --into "Extract parser=a1b2c3d4:parser.py" \
    --into "Extract tests=a1b2c3d4:parser_test.py,a1b2c3d4:fixtures.py"`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringArrayVar(&splitInto, "into", nil, `New commit spec: "message=patch1,patch2"`)
}

func runSplit(cmd *cobra.Command, args []string) error {
	if len(splitInto) == 0 {
		return fmt.Errorf("split requires at least one --into")
	}

	newCommits := make([]engine.NewCommit, 0, len(splitInto))
	for _, spec := range splitInto {
		nc, err := parseSplitSpec(spec)
		if err != nil {
			return err
		}
		newCommits = append(newCommits, nc)
	}

	repo, err := openRepository()
	if err != nil {
		return err
	}
	return runOperation(cmd.Context(), repo, engine.SplitCommit{
		SourceCommit: history.CommitID(args[0]),
		NewCommits:   newCommits,
	})
}

func parseSplitSpec(spec string) (engine.NewCommit, error) {
	message, rawIDs, ok := strings.Cut(spec, "=")
	if !ok || strings.TrimSpace(message) == "" {
		return engine.NewCommit{}, fmt.Errorf("invalid --into %q, want \"message=patch1,patch2\"", spec)
	}

	var patchIDs []string
	for _, id := range strings.Split(rawIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			patchIDs = append(patchIDs, id)
		}
	}
	if len(patchIDs) == 0 {
		return engine.NewCommit{}, fmt.Errorf("invalid --into %q: no patch ids", spec)
	}

	return engine.NewCommit{
		Message:  strings.TrimSpace(message),
		PatchIDs: patchIDs,
	}, nil
}
