package diff

import (
	"github.com/patchdance/patchdance/internal/history"
)

// LineType classifies a diff line as context, addition, or deletion
type LineType int

const (
	LineContext LineType = iota
	LineAddition
	LineDeletion
)

// Prefix returns the 2-character marker used in the textual encoding
func (t LineType) Prefix() string {
	switch t {
	case LineAddition:
		return "+ "
	case LineDeletion:
		return "- "
	default:
		return "  "
	}
}

func (t LineType) String() string {
	switch t {
	case LineAddition:
		return "addition"
	case LineDeletion:
		return "deletion"
	default:
		return "context"
	}
}

// DiffLine is one line within a hunk. Content excludes the kind marker.
type DiffLine struct {
	Content string   `json:"content"`
	Type    LineType `json:"type"`
}

// LineRun addresses a contiguous run of lines by start line and count
type LineRun struct {
	Start int `json:"start"`
	Lines int `json:"lines"`
}

// End returns the last line covered by the run. A zero-length run
// occupies a single insertion point at Start.
func (r LineRun) End() int {
	if r.Lines == 0 {
		return r.Start
	}
	return r.Start + r.Lines - 1
}

// Overlaps reports whether two runs touch the same old-file lines.
// Zero-length runs are treated as points so that two insertions at the
// same position still collide.
func (r LineRun) Overlaps(other LineRun) bool {
	return r.Start <= other.End() && other.Start <= r.End()
}

// Hunk is a contiguous change region addressed by old- and new-file
// line runs. Construct with NewHunk so the declared runs are checked
// against the actual line counts.
type Hunk struct {
	Old     LineRun    `json:"old"`
	New     LineRun    `json:"new"`
	Lines   []DiffLine `json:"lines"`
	Context string     `json:"context,omitempty"`
}

// ModeChangeKind discriminates the ModeChange variants
type ModeChangeKind int

const (
	ModeNewFile ModeChangeKind = iota
	ModeDeletedFile
	ModeChanged
)

func (k ModeChangeKind) String() string {
	switch k {
	case ModeNewFile:
		return "new_file"
	case ModeDeletedFile:
		return "deleted_file"
	default:
		return "mode_change"
	}
}

// ModeChange is a file-mode transition. Exactly one variant applies:
// a created file (Mode), a deleted file (Mode), or a permission change
// (OldMode -> NewMode).
type ModeChange struct {
	Kind    ModeChangeKind `json:"kind"`
	Mode    int            `json:"mode,omitempty"`
	OldMode int            `json:"old_mode,omitempty"`
	NewMode int            `json:"new_mode,omitempty"`
}

// NewFileMode marks a file created with the given mode
func NewFileMode(mode int) ModeChange {
	return ModeChange{Kind: ModeNewFile, Mode: mode}
}

// DeletedFileMode marks a file deleted that previously had the given mode
func DeletedFileMode(mode int) ModeChange {
	return ModeChange{Kind: ModeDeletedFile, Mode: mode}
}

// ChangedMode marks a permission transition on an existing file
func ChangedMode(oldMode, newMode int) ModeChange {
	return ModeChange{Kind: ModeChanged, OldMode: oldMode, NewMode: newMode}
}

// Equal reports whether two mode changes describe the same transition
func (m ModeChange) Equal(other ModeChange) bool {
	return m == other
}

// Patch is one file's changes as introduced by a specific commit.
// Hunks are ordered by ascending old-file start line and do not
// overlap. Instances are immutable snapshots read from the repository;
// the engine computes new values instead of mutating them.
type Patch struct {
	ID           string           `json:"id"`
	SourceCommit history.CommitID `json:"source_commit"`
	TargetFile   string           `json:"target_file"`
	Hunks        []Hunk           `json:"hunks"`
	ModeChange   *ModeChange      `json:"mode_change,omitempty"`
}

// IsDeletion reports whether the patch removes its target file
func (p Patch) IsDeletion() bool {
	return p.ModeChange != nil && p.ModeChange.Kind == ModeDeletedFile
}
