package gitrepo

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patchdance/patchdance/internal/diff"
	"github.com/patchdance/patchdance/internal/history"
)

// FakeRepository is an in-memory Repository used by tests and the demo
// command. Commits are held newest-last in insertion order; the graph
// view reverses that, matching the newest-first contract.
type FakeRepository struct {
	mu            sync.Mutex
	commits       map[history.CommitID]history.CommitInfo
	patches       map[history.CommitID][]diff.Patch
	order         []history.CommitID
	branches      map[string]history.CommitID
	currentBranch string
	dirty         bool
	clock         time.Time

	failAfter int // fail CreateCommit after this many successes; -1 disables
	creates   int
}

// NewFakeRepository returns an empty fake on branch main
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		commits:       make(map[history.CommitID]history.CommitInfo),
		patches:       make(map[history.CommitID][]diff.Patch),
		branches:      make(map[string]history.CommitID),
		currentBranch: "main",
		clock:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		failAfter:     -1,
	}
}

// FailCreateAfter makes CreateCommit fail once n creates have
// succeeded. Used to exercise mid-sequence persistence failures.
func (f *FakeRepository) FailCreateAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAfter = n
	f.creates = 0
}

// SetDirty marks the working tree dirty
func (f *FakeRepository) SetDirty(dirty bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty = dirty
}

// CurrentBranch returns the checked-out branch name
func (f *FakeRepository) CurrentBranch() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentBranch
}

// HeadCommit returns the current branch head, if any
func (f *FakeRepository) HeadCommit() (history.CommitID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.branches[f.currentBranch]
	return id, ok
}

// AddCommit seeds the fake with a commit and its patches, advancing the
// branch head. Intended for test fixtures.
func (f *FakeRepository) AddCommit(info history.CommitInfo, patches []diff.Patch) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if info.Timestamp.IsZero() {
		f.clock = f.clock.Add(time.Minute)
		info.Timestamp = f.clock
	}
	f.commits[info.ID] = info
	f.patches[info.ID] = patches
	f.order = append(f.order, info.ID)
	f.branches[f.currentBranch] = info.ID
}

// UpdateBranch points a branch at a commit. This is the caller's step
// after a successful operation; CreateCommit alone never moves a ref.
func (f *FakeRepository) UpdateBranch(name string, id history.CommitID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.commits[id]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCommitID, id)
	}
	f.branches[name] = id
	return nil
}

// CommitCount reports how many commits the fake holds
func (f *FakeRepository) CommitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// GetCommitGraph walks the first-parent chain from the branch head,
// newest first. Commits persisted but not yet referenced by a branch do
// not appear.
func (f *FakeRepository) GetCommitGraph(ctx context.Context, opts GraphOptions) (history.CommitGraph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	branch := f.currentBranch
	if opts.CurrentBranch != "" {
		branch = opts.CurrentBranch
	}

	head, ok := f.branches[branch]
	if !ok {
		return history.CommitGraph{}, ErrNoCommitsFound
	}

	var commits []history.CommitInfo
	for id := head; ; {
		info, ok := f.commits[id]
		if !ok {
			break
		}
		commits = append(commits, info)
		if len(info.ParentIDs) == 0 {
			break
		}
		id = info.ParentIDs[0]
	}

	if opts.Limit > 0 && len(commits) > opts.Limit {
		return history.NewPartialCommitGraph(commits[:opts.Limit], branch, len(commits)), nil
	}
	return history.NewCommitGraph(commits, branch), nil
}

func (f *FakeRepository) GetCommitInfo(ctx context.Context, id history.CommitID) (history.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.commits[id]
	if !ok {
		return history.CommitInfo{}, fmt.Errorf("%w: %s", ErrInvalidCommitID, id)
	}
	return info, nil
}

func (f *FakeRepository) GetPatches(ctx context.Context, id history.CommitID) ([]diff.Patch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.commits[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommitID, id)
	}
	patches := make([]diff.Patch, len(f.patches[id]))
	copy(patches, f.patches[id])
	return patches, nil
}

func (f *FakeRepository) CreateCommit(ctx context.Context, req CommitRequest) (history.CommitID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAfter >= 0 && f.creates >= f.failAfter {
		return "", fmt.Errorf("%w: simulated storage failure", ErrGitOperation)
	}
	f.creates++

	id := f.hashRequest(req)
	f.clock = f.clock.Add(time.Minute)

	paths := sortedPaths(req.FileOperations)
	info := history.CommitInfo{
		ID:           id,
		Message:      req.Message,
		Author:       req.Author,
		Email:        req.Email,
		Timestamp:    f.clock,
		ParentIDs:    append([]history.CommitID(nil), req.ParentIDs...),
		FilesChanged: paths,
	}

	patches := make([]diff.Patch, 0, len(paths))
	for _, path := range paths {
		patch, err := f.operationPatch(id, path, req.FileOperations[path])
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrGitOperation, err)
		}
		patches = append(patches, patch)
	}

	f.commits[id] = info
	f.patches[id] = patches
	f.order = append(f.order, id)
	return id, nil
}

func (f *FakeRepository) ValidateRepository(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order) > 0
}

// operationPatch derives the stored patch for one file operation:
// removal becomes a deleted-file patch, content a new-file patch whose
// single hunk adds every line
func (f *FakeRepository) operationPatch(commit history.CommitID, path string, op FileOperation) (diff.Patch, error) {
	if op.Remove {
		mode := diff.DeletedFileMode(0o100644)
		return diff.Patch{
			ID:           uuid.NewString(),
			SourceCommit: commit,
			TargetFile:   path,
			ModeChange:   &mode,
		}, nil
	}

	raw := strings.Split(strings.TrimSuffix(op.Content, "\n"), "\n")
	lines := make([]diff.DiffLine, len(raw))
	for i, r := range raw {
		lines[i] = diff.DiffLine{Content: r, Type: diff.LineAddition}
	}
	hunk, err := diff.NewHunk(diff.LineRun{Start: 1, Lines: 0}, diff.LineRun{Start: 1, Lines: len(lines)}, lines, "")
	if err != nil {
		return diff.Patch{}, err
	}

	mode := diff.NewFileMode(0o100644)
	return diff.Patch{
		ID:           uuid.NewString(),
		SourceCommit: commit,
		TargetFile:   path,
		Hunks:        []diff.Hunk{hunk},
		ModeChange:   &mode,
	}, nil
}

// hashRequest derives a content-addressed 40-char hex ID from the
// request, mirroring how real commit IDs behave
func (f *FakeRepository) hashRequest(req CommitRequest) history.CommitID {
	h := sha1.New()
	fmt.Fprintf(h, "message %s\nauthor %s <%s>\ntime %d\n", req.Message, req.Author, req.Email, f.clock.UnixNano())
	for _, parent := range req.ParentIDs {
		fmt.Fprintf(h, "parent %s\n", parent)
	}
	for _, path := range sortedPaths(req.FileOperations) {
		op := req.FileOperations[path]
		fmt.Fprintf(h, "file %s remove=%v\n%s\n", path, op.Remove, op.Content)
	}
	return history.CommitID(hex.EncodeToString(h.Sum(nil)))
}

func sortedPaths(ops map[string]FileOperation) []string {
	paths := make([]string, 0, len(ops))
	for path := range ops {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
