package history

import (
	"strings"
	"time"
)

// CommitID is the full hex digest of a commit. Equality is by value;
// the short form used for display is the first 8 characters.
type CommitID string

// Short returns the abbreviated form of the commit ID for display
func (id CommitID) Short() string {
	if len(id) < 8 {
		return string(id)
	}
	return string(id)[:8]
}

func (id CommitID) String() string {
	return string(id)
}

// CommitInfo is an immutable metadata snapshot of one commit
// An empty ParentIDs slice marks a root commit, more than one a merge
type CommitInfo struct {
	ID           CommitID   `json:"id"`
	Message      string     `json:"message"`
	Author       string     `json:"author"`
	Email        string     `json:"email"`
	Timestamp    time.Time  `json:"timestamp"`
	ParentIDs    []CommitID `json:"parent_ids"`
	FilesChanged []string   `json:"files_changed"`
}

// Summary returns the first line of the commit message
func (c CommitInfo) Summary() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}

// IsMerge reports whether the commit has more than one parent
func (c CommitInfo) IsMerge() bool {
	return len(c.ParentIDs) > 1
}

// CommitGraph is an ordered, read-only view of a branch's commits,
// newest first. It is rebuilt after every successful operation, never
// mutated in place.
type CommitGraph struct {
	Commits       []CommitInfo `json:"commits"`
	CurrentBranch string       `json:"current_branch"`
	TotalCount    int          `json:"total_count"`
}

// NewCommitGraph builds a graph whose total count equals the number of
// commits in the view
func NewCommitGraph(commits []CommitInfo, currentBranch string) CommitGraph {
	return CommitGraph{
		Commits:       commits,
		CurrentBranch: currentBranch,
		TotalCount:    len(commits),
	}
}

// NewPartialCommitGraph builds a graph backed by a partial fetch, where
// totalCount reflects the full history rather than the visible window
func NewPartialCommitGraph(commits []CommitInfo, currentBranch string, totalCount int) CommitGraph {
	return CommitGraph{
		Commits:       commits,
		CurrentBranch: currentBranch,
		TotalCount:    totalCount,
	}
}

// IsPartial reports whether the view is a window onto a longer history
func (g CommitGraph) IsPartial() bool {
	return g.TotalCount > len(g.Commits)
}

// FindCommit looks up a commit by ID. Linear scan; the graph is bounded
// by the visible history window.
func (g CommitGraph) FindCommit(id CommitID) (CommitInfo, bool) {
	for _, commit := range g.Commits {
		if commit.ID == id {
			return commit, true
		}
	}
	return CommitInfo{}, false
}

// CommitIndex returns the position of a commit within the ordered view
func (g CommitGraph) CommitIndex(id CommitID) (int, bool) {
	for i, commit := range g.Commits {
		if commit.ID == id {
			return i, true
		}
	}
	return 0, false
}
