package conflict

import (
	"fmt"
	"sort"

	"github.com/patchdance/patchdance/internal/diff"
)

// FileCheck describes one target file's state for detection: the hunks
// and mode change already present on top of the destination commit, and
// the hunks and mode change being introduced or moved there.
type FileCheck struct {
	Path         string
	Existing     []diff.Hunk
	Incoming     []diff.Hunk
	ExistingMode *diff.ModeChange
	IncomingMode *diff.ModeChange
}

// Detect runs DetectFile over every check and returns all conflicts in
// stable order: file path ascending, then old-file start line ascending.
// Pure and deterministic, so dry-run previews are reproducible.
func Detect(checks []FileCheck) []Conflict {
	sorted := make([]FileCheck, len(checks))
	copy(sorted, checks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	var conflicts []Conflict
	for _, check := range sorted {
		conflicts = append(conflicts, DetectFile(check)...)
	}
	return conflicts
}

// DetectFile compares the existing and incoming change sets for a
// single file. Delete-modify takes precedence over content conflicts;
// mode conflicts are reported independently, so a file can carry both a
// mode and a content conflict.
func DetectFile(check FileCheck) []Conflict {
	var conflicts []Conflict

	if c, ok := detectDeleteModify(check); ok {
		conflicts = append(conflicts, c)
	} else {
		conflicts = append(conflicts, detectContent(check)...)
	}

	if c, ok := detectMode(check); ok {
		conflicts = append(conflicts, c)
	}

	return conflicts
}

func detectDeleteModify(check FileCheck) (Conflict, bool) {
	existingDeletes := check.ExistingMode != nil && check.ExistingMode.Kind == diff.ModeDeletedFile
	incomingDeletes := check.IncomingMode != nil && check.IncomingMode.Kind == diff.ModeDeletedFile

	var ours, theirs string
	switch {
	case existingDeletes && !incomingDeletes && len(check.Incoming) > 0:
		ours = "(file deleted)"
		theirs = renderHunks(check.Incoming)
	case incomingDeletes && !existingDeletes && len(check.Existing) > 0:
		ours = renderHunks(check.Existing)
		theirs = "(file deleted)"
	default:
		return Conflict{}, false
	}

	return Conflict{
		ID:           conflictID(check.Path, KindDeleteModify),
		Kind:         KindDeleteModify,
		FilePath:     check.Path,
		Description:  fmt.Sprintf("%s is deleted on one side and modified on the other", check.Path),
		OurContent:   ours,
		TheirContent: theirs,
	}, true
}

func detectContent(check FileCheck) []Conflict {
	existing := diff.SortHunks(check.Existing)
	incoming := diff.SortHunks(check.Incoming)

	var conflicts []Conflict
	for _, in := range incoming {
		for _, ex := range existing {
			if !ex.Old.Overlaps(in.Old) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				ID:       contentConflictID(check.Path, ex.Old.Start, in.Old.Start),
				Kind:     KindContent,
				FilePath: check.Path,
				Description: fmt.Sprintf("hunks overlap in %s: old lines %d-%d and %d-%d",
					check.Path, ex.Old.Start, ex.Old.End(), in.Old.Start, in.Old.End()),
				OurContent:   ex.Render(),
				TheirContent: in.Render(),
			})
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].ID < conflicts[j].ID
	})
	return conflicts
}

func detectMode(check FileCheck) (Conflict, bool) {
	if check.ExistingMode == nil || check.IncomingMode == nil {
		return Conflict{}, false
	}
	if check.ExistingMode.Equal(*check.IncomingMode) {
		return Conflict{}, false
	}
	// delete vs modify is already classified as delete-modify
	existingDeletes := check.ExistingMode.Kind == diff.ModeDeletedFile
	incomingDeletes := check.IncomingMode.Kind == diff.ModeDeletedFile
	if existingDeletes != incomingDeletes {
		return Conflict{}, false
	}

	return Conflict{
		ID:           conflictID(check.Path, KindMode),
		Kind:         KindMode,
		FilePath:     check.Path,
		Description:  fmt.Sprintf("conflicting mode changes on %s: %s vs %s", check.Path, describeMode(*check.ExistingMode), describeMode(*check.IncomingMode)),
		OurContent:   describeMode(*check.ExistingMode),
		TheirContent: describeMode(*check.IncomingMode),
	}, true
}

// Conflict IDs are deterministic so that repeated detection over the
// same inputs yields identical records. Content IDs carry both sides'
// old-file starts: two distinct overlapping pairs on the same path must
// never share an ID, even when their leftmost lines coincide.
func contentConflictID(path string, existingStart, incomingStart int) string {
	return fmt.Sprintf("%s:%06d:%06d:%s", path, existingStart, incomingStart, KindContent)
}

func conflictID(path string, kind Kind) string {
	return fmt.Sprintf("%s:%s", path, kind)
}

func describeMode(m diff.ModeChange) string {
	switch m.Kind {
	case diff.ModeNewFile:
		return fmt.Sprintf("new file %o", m.Mode)
	case diff.ModeDeletedFile:
		return fmt.Sprintf("deleted file %o", m.Mode)
	default:
		return fmt.Sprintf("mode %o -> %o", m.OldMode, m.NewMode)
	}
}

func renderHunks(hunks []diff.Hunk) string {
	out := ""
	for i, h := range hunks {
		if i > 0 {
			out += "\n"
		}
		out += h.Render()
	}
	return out
}
