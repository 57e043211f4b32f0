package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/patchdance/patchdance/internal/engine"
	"github.com/patchdance/patchdance/internal/gitrepo"
	"github.com/patchdance/patchdance/internal/history"
	"github.com/patchdance/patchdance/internal/logging"
)

var (
	repoPath string
	logLevel string
	maxGraph int
)

var rootCmd = &cobra.Command{
	Use:   "patchdance",
	Short: "Patchdance - patch-level git history editor",
	Long: `Patchdance edits git history at the granularity of individual patches.

It decomposes commits into addressable per-file patches and hunks, then
moves, splits, merges, and recombines them into rewritten commits,
refusing any edit whose hunks would collide.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", ".", "Path to the git repository")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel(), "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().IntVar(&maxGraph, "max-commits", 100, "Maximum number of commits to load")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// repository is the slice of gitrepo the commands need: the port plus
// the ref update that makes a rewritten history reachable
type repository interface {
	gitrepo.Repository
	UpdateBranch(name string, id history.CommitID) error
}

func openRepository() (repository, error) {
	repo, err := gitrepo.Open(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", repoPath, err)
	}
	return repo, nil
}

func loadGraph(ctx context.Context, repo gitrepo.Repository) (history.CommitGraph, error) {
	graph, err := repo.GetCommitGraph(ctx, gitrepo.GraphOptions{Limit: maxGraph})
	if err != nil {
		return history.CommitGraph{}, fmt.Errorf("failed to load commit graph: %w", err)
	}
	return graph, nil
}

func newEngine(repo gitrepo.Repository) *engine.Engine {
	return engine.New(repo, authorName(), authorEmail())
}

func defaultLogLevel() string {
	if level := os.Getenv("PATCHDANCE_LOG_LEVEL"); level != "" {
		return level
	}
	return "warn"
}

func authorName() string {
	if name := os.Getenv("PATCHDANCE_AUTHOR"); name != "" {
		return name
	}
	return "patchdance"
}

func authorEmail() string {
	if email := os.Getenv("PATCHDANCE_EMAIL"); email != "" {
		return email
	}
	return "patchdance@localhost"
}

// runOperation applies one operation and, on success, repoints the
// branch at the rebuilt head. The engine always rebuilds through the
// branch tip, and NewCommitIDs come back parents first, so the last ID
// is the new head. Persisted objects from a failed run stay
// unreferenced until the next gc.
func runOperation(ctx context.Context, repo repository, op engine.Operation) error {
	graph, err := loadGraph(ctx, repo)
	if err != nil {
		return err
	}

	result, err := newEngine(repo).Apply(ctx, graph, op)
	if err != nil {
		return err
	}

	if !result.Success {
		printConflicts(result)
		return fmt.Errorf("operation aborted: %d conflict(s)", len(result.Conflicts))
	}

	if len(result.NewCommitIDs) > 0 {
		head := result.NewCommitIDs[len(result.NewCommitIDs)-1]
		if err := repo.UpdateBranch(graph.CurrentBranch, head); err != nil {
			return fmt.Errorf("failed to update branch %s: %w", graph.CurrentBranch, err)
		}
	}

	printResult(result)
	return nil
}
