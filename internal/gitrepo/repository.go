package gitrepo

import (
	"context"
	"errors"

	"github.com/patchdance/patchdance/internal/diff"
	"github.com/patchdance/patchdance/internal/history"
)

var (
	// ErrRepositoryNotFound means no git repository exists at the requested path
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrNoCommitsFound means the repository has zero commits
	ErrNoCommitsFound = errors.New("no commits found")

	// ErrInvalidCommitID means a commit ID is malformed or unknown to the repository
	ErrInvalidCommitID = errors.New("invalid commit id")

	// ErrGitOperation wraps failures of the underlying storage engine
	ErrGitOperation = errors.New("git operation failed")
)

// FileOperation is one entry of a commit request: either new content
// for a path or its removal. The two are mutually exclusive. Partial
// marks content rendered from hunks that reference base lines the
// operation does not carry; writing it verbatim would truncate the
// file, so on-disk implementations must refuse it.
type FileOperation struct {
	Content string
	Remove  bool
	Partial bool
}

// CommitRequest carries everything needed to materialize one new commit
type CommitRequest struct {
	Message        string
	Author         string
	Email          string
	ParentIDs      []history.CommitID
	FileOperations map[string]FileOperation
}

// GraphOptions narrows a commit graph fetch. A zero Limit means the
// implementation's default window.
type GraphOptions struct {
	Limit         int
	BaseBranch    string
	CurrentBranch string
}

// Repository is the port through which the operation engine reads
// existing history and persists newly constructed commits. It never
// mutates existing commits. Implementations serialize access: two
// structural rewrites must not run concurrently against the same
// repository.
type Repository interface {
	// GetCommitGraph returns the ordered commit view, newest first.
	// Fails with ErrNoCommitsFound on an empty repository.
	GetCommitGraph(ctx context.Context, opts GraphOptions) (history.CommitGraph, error)

	// GetCommitInfo fails with ErrInvalidCommitID for unknown commits
	GetCommitInfo(ctx context.Context, id history.CommitID) (history.CommitInfo, error)

	// GetPatches returns the per-file patches a commit introduces over
	// its first parent
	GetPatches(ctx context.Context, id history.CommitID) ([]diff.Patch, error)

	// CreateCommit persists a new commit and returns its ID. Fails with
	// ErrGitOperation on any underlying storage failure. Nothing
	// references the new commit until the caller links it, so a commit
	// persisted before a later failure is harmless.
	CreateCommit(ctx context.Context, req CommitRequest) (history.CommitID, error)

	// ValidateRepository is a best-effort health check and never fails
	ValidateRepository(ctx context.Context) bool
}
