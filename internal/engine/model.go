package engine

import (
	"github.com/patchdance/patchdance/internal/conflict"
	"github.com/patchdance/patchdance/internal/history"
)

// InsertPosition says where a commit or moved patch lands relative to
// its destination
type InsertPosition int

const (
	PositionBefore InsertPosition = iota
	PositionAfter
	PositionAtBranchHead
)

func (p InsertPosition) String() string {
	switch p {
	case PositionBefore:
		return "before"
	case PositionAfter:
		return "after"
	default:
		return "at_branch_head"
	}
}

// Operation is a requested structural edit to commit history. Exactly
// one variant is active; the engine dispatches exhaustively over the
// closed set.
type Operation interface {
	isOperation()
}

// MovePatch moves one patch from one commit to another
type MovePatch struct {
	PatchID    string
	FromCommit history.CommitID
	ToCommit   history.CommitID
	Position   InsertPosition
}

// NewCommit describes one output commit of a split
type NewCommit struct {
	Message  string
	PatchIDs []string
	Position InsertPosition
}

// SplitCommit partitions a source commit's patches across several new
// commits. Every patch of the source must appear in exactly one entry.
type SplitCommit struct {
	SourceCommit history.CommitID
	NewCommits   []NewCommit
}

// CreateCommit builds a new commit from patches drawn from arbitrary
// existing commits
type CreateCommit struct {
	PatchIDs []string
	Message  string
	Position InsertPosition
}

// MergeCommits collapses several commits, given earliest-first, into one
type MergeCommits struct {
	CommitIDs []history.CommitID
	Message   string
}

func (MovePatch) isOperation()    {}
func (SplitCommit) isOperation()  {}
func (CreateCommit) isOperation() {}
func (MergeCommits) isOperation() {}

// OperationResult is the outcome of applying one operation. Success
// implies an empty conflict list; a non-empty conflict list implies
// success is false. NewCommitIDs are ordered parents before children.
type OperationResult struct {
	Success         bool                `json:"success"`
	NewCommitIDs    []history.CommitID  `json:"new_commit_ids"`
	ModifiedCommits []history.CommitID  `json:"modified_commits"`
	Conflicts       []conflict.Conflict `json:"conflicts"`
	Message         string              `json:"message"`
}
