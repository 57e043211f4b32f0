package diff

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/patchdance/patchdance/internal/history"
)

// ErrMalformedDiffLine signals that a raw diff line violated the
// 2-character marker contract
var ErrMalformedDiffLine = errors.New("malformed diff line")

// ErrInvalidHunk signals that a hunk's declared line runs disagree with
// its actual line counts
var ErrInvalidHunk = errors.New("invalid hunk")

// ParseLine decodes a raw diff line. The line must begin with "+ "
// (addition), "- " (deletion), or "  " (context); an empty input is an
// empty context line.
func ParseLine(raw string) (DiffLine, error) {
	if raw == "" {
		return DiffLine{Type: LineContext}, nil
	}
	if len(raw) < 2 {
		return DiffLine{}, fmt.Errorf("%w: %q must start with %q, %q, or %q", ErrMalformedDiffLine, raw, "+ ", "- ", "  ")
	}

	content := raw[2:]
	switch raw[:2] {
	case "+ ":
		return DiffLine{Content: content, Type: LineAddition}, nil
	case "- ":
		return DiffLine{Content: content, Type: LineDeletion}, nil
	case "  ":
		return DiffLine{Content: content, Type: LineContext}, nil
	default:
		return DiffLine{}, fmt.Errorf("%w: %q must start with %q, %q, or %q", ErrMalformedDiffLine, raw, "+ ", "- ", "  ")
	}
}

// Render encodes the line back to its raw textual form, the inverse of
// ParseLine
func (l DiffLine) Render() string {
	return l.Type.Prefix() + l.Content
}

// NewHunk validates that the declared line runs match the actual line
// counts: old.Lines must equal the number of context+deletion lines and
// new.Lines the number of context+addition lines.
func NewHunk(old, new LineRun, lines []DiffLine, context string) (Hunk, error) {
	oldCount, newCount := 0, 0
	for _, line := range lines {
		switch line.Type {
		case LineContext:
			oldCount++
			newCount++
		case LineDeletion:
			oldCount++
		case LineAddition:
			newCount++
		}
	}

	if oldCount != old.Lines {
		return Hunk{}, fmt.Errorf("%w: old run declares %d lines but %d context+deletion lines present", ErrInvalidHunk, old.Lines, oldCount)
	}
	if newCount != new.Lines {
		return Hunk{}, fmt.Errorf("%w: new run declares %d lines but %d context+addition lines present", ErrInvalidHunk, new.Lines, newCount)
	}

	return Hunk{Old: old, New: new, Lines: lines, Context: context}, nil
}

// ParseHunk builds a validated hunk from raw diff lines
func ParseHunk(old, new LineRun, raw []string, context string) (Hunk, error) {
	lines := make([]DiffLine, 0, len(raw))
	for _, r := range raw {
		line, err := ParseLine(r)
		if err != nil {
			return Hunk{}, err
		}
		lines = append(lines, line)
	}
	return NewHunk(old, new, lines, context)
}

// Render encodes the hunk's lines back to raw textual form
func (h Hunk) Render() string {
	rendered := make([]string, len(h.Lines))
	for i, line := range h.Lines {
		rendered[i] = line.Render()
	}
	return strings.Join(rendered, "\n")
}

// NewContent returns the hunk's new-side text, the context and addition
// lines in order
func (h Hunk) NewContent() []string {
	var out []string
	for _, line := range h.Lines {
		if line.Type == LineContext || line.Type == LineAddition {
			out = append(out, line.Content)
		}
	}
	return out
}

// SortHunks orders hunks by ascending old-file start line, returning a
// new slice
func SortHunks(hunks []Hunk) []Hunk {
	sorted := make([]Hunk, len(hunks))
	copy(sorted, hunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Old.Start < sorted[j].Old.Start
	})
	return sorted
}

// NewPatch sorts the hunks by old-file start line and builds a patch.
// Overlapping hunks within one patch violate the model and fail with
// ErrInvalidHunk.
func NewPatch(id string, sourceCommit history.CommitID, targetFile string, hunks []Hunk, modeChange *ModeChange) (Patch, error) {
	sorted := SortHunks(hunks)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Old.Overlaps(sorted[i-1].Old) {
			return Patch{}, fmt.Errorf("%w: hunks at old lines %d and %d overlap in %s",
				ErrInvalidHunk, sorted[i-1].Old.Start, sorted[i].Old.Start, targetFile)
		}
	}

	return Patch{
		ID:           id,
		SourceCommit: sourceCommit,
		TargetFile:   targetFile,
		Hunks:        sorted,
		ModeChange:   modeChange,
	}, nil
}
