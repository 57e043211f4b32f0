package gitrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	fdiff "github.com/go-git/go-git/v6/plumbing/format/diff"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/rs/zerolog/log"

	"github.com/patchdance/patchdance/internal/diff"
	"github.com/patchdance/patchdance/internal/history"
)

// GitRepository adapts a local git repository to the Repository port
// using go-git. A mutex serializes operations: two structural rewrites
// against the same repository could both read the same parent and each
// believe they are the sole child.
type GitRepository struct {
	mu   sync.Mutex
	repo *git.Repository
	path string
}

// Open opens the git repository at path, searching parent directories
// for the .git directory
func Open(path string) (*GitRepository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, path)
		}
		return nil, fmt.Errorf("%w: opening %s: %v", ErrGitOperation, path, err)
	}

	return &GitRepository{repo: repo, path: path}, nil
}

// Path returns the path the repository was opened at
func (r *GitRepository) Path() string {
	return r.path
}

// CurrentBranch returns the checked-out branch name, or "HEAD" when
// detached
func (r *GitRepository) CurrentBranch() string {
	head, err := r.repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return "HEAD"
	}
	return head.Name().Short()
}

// HeadCommit returns the HEAD commit ID, if any
func (r *GitRepository) HeadCommit() (history.CommitID, bool) {
	head, err := r.repo.Head()
	if err != nil {
		return "", false
	}
	return history.CommitID(head.Hash().String()), true
}

func (r *GitRepository) GetCommitGraph(ctx context.Context, opts GraphOptions) (history.CommitGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if err != nil {
		return history.CommitGraph{}, fmt.Errorf("%w: repository has no HEAD", ErrNoCommitsFound)
	}

	from := head.Hash()
	branch := r.CurrentBranch()
	if opts.CurrentBranch != "" {
		ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(opts.CurrentBranch), true)
		if err != nil {
			return history.CommitGraph{}, fmt.Errorf("%w: branch %s: %v", ErrGitOperation, opts.CurrentBranch, err)
		}
		from = ref.Hash()
		branch = opts.CurrentBranch
	}

	iter, err := r.repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return history.CommitGraph{}, fmt.Errorf("%w: log: %v", ErrGitOperation, err)
	}
	defer iter.Close()

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	var commits []history.CommitInfo
	truncated := false
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(commits) >= limit {
			truncated = true
			return fmt.Errorf("limit reached")
		}
		info, err := convertCommit(c)
		if err != nil {
			return err
		}
		commits = append(commits, info)
		return nil
	})
	if err != nil && !truncated {
		return history.CommitGraph{}, fmt.Errorf("%w: iterating commits: %v", ErrGitOperation, err)
	}

	if len(commits) == 0 {
		return history.CommitGraph{}, ErrNoCommitsFound
	}
	if truncated {
		// window is partial; the true total is unknown without a full
		// walk, so count one past the window
		return history.NewPartialCommitGraph(commits, branch, len(commits)+1), nil
	}
	return history.NewCommitGraph(commits, branch), nil
}

func (r *GitRepository) GetCommitInfo(ctx context.Context, id history.CommitID) (history.CommitInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	commit, err := r.repo.CommitObject(plumbing.NewHash(string(id)))
	if err != nil {
		return history.CommitInfo{}, fmt.Errorf("%w: %s", ErrInvalidCommitID, id)
	}
	return convertCommit(commit)
}

func (r *GitRepository) GetPatches(ctx context.Context, id history.CommitID) ([]diff.Patch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	commit, err := r.repo.CommitObject(plumbing.NewHash(string(id)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommitID, id)
	}

	parent, err := commit.Parents().Next()
	if err != nil {
		// root commit: every file is an addition
		return rootPatches(commit)
	}

	patch, err := parent.Patch(commit)
	if err != nil {
		return nil, fmt.Errorf("%w: diffing %s: %v", ErrGitOperation, id.Short(), err)
	}

	var patches []diff.Patch
	for _, filePatch := range patch.FilePatches() {
		p, err := convertFilePatch(id, filePatch)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, nil
}

func (r *GitRepository) CreateCommit(ctx context.Context, req CommitRequest) (history.CommitID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// partial content misses base lines its hunks sit between; writing
	// it verbatim would truncate the file on disk
	for path, op := range req.FileOperations {
		if op.Partial && !op.Remove {
			return "", fmt.Errorf("%w: refusing partial content for %s: hunks reference base lines the request does not carry", ErrGitOperation, path)
		}
	}

	entries, err := r.baseEntries(req.ParentIDs)
	if err != nil {
		return "", err
	}

	for path, op := range req.FileOperations {
		if op.Remove {
			delete(entries, path)
			continue
		}
		blobHash, err := r.writeBlob(op.Content)
		if err != nil {
			return "", err
		}
		entries[path] = flatEntry{hash: blobHash, mode: filemode.Regular}
	}

	treeHash, err := r.writeTree(entries)
	if err != nil {
		return "", err
	}

	parents := make([]plumbing.Hash, len(req.ParentIDs))
	for i, parent := range req.ParentIDs {
		parents[i] = plumbing.NewHash(string(parent))
	}

	sig := object.Signature{Name: req.Author, Email: req.Email, When: time.Now()}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      req.Message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", fmt.Errorf("%w: encoding commit: %v", ErrGitOperation, err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("%w: storing commit: %v", ErrGitOperation, err)
	}

	log.Debug().
		Str("commit", hash.String()[:8]).
		Int("files", len(req.FileOperations)).
		Msg("created commit object")

	return history.CommitID(hash.String()), nil
}

// UpdateBranch points a branch at a commit, making a rewritten history
// reachable. Kept off the Repository port: the engine materializes
// objects, the caller decides when refs move.
func (r *GitRepository) UpdateBranch(name string, id history.CommitID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), plumbing.NewHash(string(id)))
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("%w: updating branch %s: %v", ErrGitOperation, name, err)
	}
	return nil
}

func (r *GitRepository) ValidateRepository(ctx context.Context) bool {
	head, err := r.repo.Head()
	if err != nil {
		return false
	}
	_, err = r.repo.CommitObject(head.Hash())
	return err == nil
}

// flatEntry is one blob in a flattened tree, keyed by full path
type flatEntry struct {
	hash plumbing.Hash
	mode filemode.FileMode
}

// baseEntries flattens the first parent's tree into path-keyed entries.
// A parentless request starts from an empty tree.
func (r *GitRepository) baseEntries(parents []history.CommitID) (map[string]flatEntry, error) {
	entries := make(map[string]flatEntry)
	if len(parents) == 0 {
		return entries, nil
	}

	parent, err := r.repo.CommitObject(plumbing.NewHash(string(parents[0])))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommitID, parents[0])
	}
	tree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: reading parent tree: %v", ErrGitOperation, err)
	}

	err = tree.Files().ForEach(func(file *object.File) error {
		entries[file.Name] = flatEntry{hash: file.Hash, mode: file.Mode}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking parent tree: %v", ErrGitOperation, err)
	}
	return entries, nil
}

func (r *GitRepository) writeBlob(content string) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: blob writer: %v", ErrGitOperation, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("%w: writing blob: %v", ErrGitOperation, err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: closing blob: %v", ErrGitOperation, err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: storing blob: %v", ErrGitOperation, err)
	}
	return hash, nil
}

// writeTree rebuilds the nested tree objects from flattened entries and
// returns the root tree hash
func (r *GitRepository) writeTree(entries map[string]flatEntry) (plumbing.Hash, error) {
	direct := make(map[string]flatEntry)
	subdirs := make(map[string]map[string]flatEntry)

	for path, entry := range entries {
		name, rest, nested := strings.Cut(path, "/")
		if !nested {
			direct[name] = entry
			continue
		}
		if subdirs[name] == nil {
			subdirs[name] = make(map[string]flatEntry)
		}
		subdirs[name][rest] = entry
	}

	var treeEntries []object.TreeEntry
	for name, entry := range direct {
		treeEntries = append(treeEntries, object.TreeEntry{Name: name, Mode: entry.mode, Hash: entry.hash})
	}
	for name, children := range subdirs {
		hash, err := r.writeTree(children)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		treeEntries = append(treeEntries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}

	// git orders tree entries by name, directories as if suffixed with "/"
	sort.Slice(treeEntries, func(i, j int) bool {
		return treeSortKey(treeEntries[i]) < treeSortKey(treeEntries[j])
	})

	tree := &object.Tree{Entries: treeEntries}
	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: encoding tree: %v", ErrGitOperation, err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: storing tree: %v", ErrGitOperation, err)
	}
	return hash, nil
}

func treeSortKey(entry object.TreeEntry) string {
	if entry.Mode == filemode.Dir {
		return entry.Name + "/"
	}
	return entry.Name
}

// convertCommit maps a go-git commit to the immutable CommitInfo snapshot
func convertCommit(commit *object.Commit) (history.CommitInfo, error) {
	parents := make([]history.CommitID, 0, commit.NumParents())
	err := commit.Parents().ForEach(func(parent *object.Commit) error {
		parents = append(parents, history.CommitID(parent.Hash.String()))
		return nil
	})
	if err != nil {
		return history.CommitInfo{}, fmt.Errorf("%w: reading parents: %v", ErrGitOperation, err)
	}

	files, err := changedFiles(commit)
	if err != nil {
		return history.CommitInfo{}, err
	}

	return history.CommitInfo{
		ID:           history.CommitID(commit.Hash.String()),
		Message:      commit.Message,
		Author:       commit.Author.Name,
		Email:        commit.Author.Email,
		Timestamp:    commit.Author.When,
		ParentIDs:    parents,
		FilesChanged: files,
	}, nil
}

func changedFiles(commit *object.Commit) ([]string, error) {
	parent, err := commit.Parents().Next()
	if err != nil {
		// root commit: list the whole tree
		tree, err := commit.Tree()
		if err != nil {
			return nil, fmt.Errorf("%w: reading tree: %v", ErrGitOperation, err)
		}
		var files []string
		err = tree.Files().ForEach(func(file *object.File) error {
			files = append(files, file.Name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: walking tree: %v", ErrGitOperation, err)
		}
		return files, nil
	}

	patch, err := parent.Patch(commit)
	if err != nil {
		return nil, fmt.Errorf("%w: diffing: %v", ErrGitOperation, err)
	}

	var files []string
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		switch {
		case to != nil:
			files = append(files, to.Path())
		case from != nil:
			files = append(files, from.Path())
		}
	}
	return files, nil
}

// rootPatches treats every file of a parentless commit as an addition
func rootPatches(commit *object.Commit) ([]diff.Patch, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: reading tree: %v", ErrGitOperation, err)
	}

	id := history.CommitID(commit.Hash.String())
	var patches []diff.Patch
	err = tree.Files().ForEach(func(file *object.File) error {
		mode := diff.NewFileMode(int(file.Mode))
		patch := diff.Patch{
			ID:           patchID(id, file.Name),
			SourceCommit: id,
			TargetFile:   file.Name,
			ModeChange:   &mode,
		}

		if binary, _ := file.IsBinary(); !binary {
			content, err := file.Contents()
			if err != nil {
				return err
			}
			hunk, err := additionHunk(content)
			if err != nil {
				return err
			}
			patch.Hunks = []diff.Hunk{hunk}
		}

		patches = append(patches, patch)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: building root patches: %v", ErrGitOperation, err)
	}
	return patches, nil
}

// convertFilePatch maps one go-git file patch into the hunk model,
// deriving old/new line runs by walking the chunk stream
func convertFilePatch(commit history.CommitID, fp fdiff.FilePatch) (diff.Patch, error) {
	from, to := fp.Files()

	var path string
	var modeChange *diff.ModeChange
	switch {
	case from == nil && to != nil:
		path = to.Path()
		mode := diff.NewFileMode(int(to.Mode()))
		modeChange = &mode
	case from != nil && to == nil:
		path = from.Path()
		mode := diff.DeletedFileMode(int(from.Mode()))
		modeChange = &mode
	default:
		path = to.Path()
		if from.Mode() != to.Mode() {
			mode := diff.ChangedMode(int(from.Mode()), int(to.Mode()))
			modeChange = &mode
		}
	}

	patch := diff.Patch{
		ID:           patchID(commit, path),
		SourceCommit: commit,
		TargetFile:   path,
		ModeChange:   modeChange,
	}
	if fp.IsBinary() {
		return patch, nil
	}

	hunks, err := chunksToHunks(fp.Chunks())
	if err != nil {
		return diff.Patch{}, fmt.Errorf("%w: converting chunks for %s: %v", ErrGitOperation, path, err)
	}
	patch.Hunks = hunks
	return patch, nil
}

// chunksToHunks folds go-git's typed content chunks into hunks. Equal
// chunks advance both line counters and close the open hunk; runs of
// additions and deletions accumulate into the open hunk.
func chunksToHunks(chunks []fdiff.Chunk) ([]diff.Hunk, error) {
	var hunks []diff.Hunk

	oldLine, newLine := 1, 1
	var open []diff.DiffLine
	openOld, openNew := 0, 0
	oldCount, newCount := 0, 0

	flush := func() error {
		if len(open) == 0 {
			return nil
		}
		hunk, err := diff.NewHunk(
			diff.LineRun{Start: openOld, Lines: oldCount},
			diff.LineRun{Start: openNew, Lines: newCount},
			open, "")
		if err != nil {
			return err
		}
		hunks = append(hunks, hunk)
		open = nil
		oldCount, newCount = 0, 0
		return nil
	}

	for _, chunk := range chunks {
		lines := splitLines(chunk.Content())
		switch chunk.Type() {
		case fdiff.Equal:
			if err := flush(); err != nil {
				return nil, err
			}
			oldLine += len(lines)
			newLine += len(lines)
		case fdiff.Add:
			if len(open) == 0 {
				openOld, openNew = oldLine, newLine
			}
			for _, line := range lines {
				open = append(open, diff.DiffLine{Content: line, Type: diff.LineAddition})
			}
			newCount += len(lines)
			newLine += len(lines)
		case fdiff.Delete:
			if len(open) == 0 {
				openOld, openNew = oldLine, newLine
			}
			for _, line := range lines {
				open = append(open, diff.DiffLine{Content: line, Type: diff.LineDeletion})
			}
			oldCount += len(lines)
			oldLine += len(lines)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return hunks, nil
}

func additionHunk(content string) (diff.Hunk, error) {
	raw := splitLines(content)
	lines := make([]diff.DiffLine, len(raw))
	for i, r := range raw {
		lines[i] = diff.DiffLine{Content: r, Type: diff.LineAddition}
	}
	return diff.NewHunk(diff.LineRun{Start: 1, Lines: 0}, diff.LineRun{Start: 1, Lines: len(lines)}, lines, "")
}

// patchID is stable across reads so that operations can address a
// patch by ID between a dry run and an apply
func patchID(commit history.CommitID, path string) string {
	return fmt.Sprintf("%s:%s", commit.Short(), path)
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
