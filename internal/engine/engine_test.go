package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/patchdance/patchdance/internal/conflict"
	"github.com/patchdance/patchdance/internal/diff"
	"github.com/patchdance/patchdance/internal/gitrepo"
	"github.com/patchdance/patchdance/internal/history"
)

func cid(letter byte) history.CommitID {
	return history.CommitID(strings.Repeat(string(letter), 40))
}

// additionPatch inserts count new lines at start (no old-side footprint
// beyond the insertion point)
func additionPatch(t *testing.T, patchID string, commit history.CommitID, file string, start, count int) diff.Patch {
	t.Helper()
	lines := make([]diff.DiffLine, count)
	for i := range lines {
		lines[i] = diff.DiffLine{Content: file + " added line", Type: diff.LineAddition}
	}
	hunk, err := diff.NewHunk(diff.LineRun{Start: start, Lines: 0}, diff.LineRun{Start: start, Lines: count}, lines, "")
	if err != nil {
		t.Fatalf("building hunk: %v", err)
	}
	patch, err := diff.NewPatch(patchID, commit, file, []diff.Hunk{hunk}, nil)
	if err != nil {
		t.Fatalf("building patch: %v", err)
	}
	return patch
}

// modificationPatch rewrites count lines in place starting at start
func modificationPatch(t *testing.T, patchID string, commit history.CommitID, file string, start, count int) diff.Patch {
	t.Helper()
	var lines []diff.DiffLine
	for i := 0; i < count; i++ {
		lines = append(lines, diff.DiffLine{Content: "old", Type: diff.LineDeletion})
	}
	for i := 0; i < count; i++ {
		lines = append(lines, diff.DiffLine{Content: "new", Type: diff.LineAddition})
	}
	hunk, err := diff.NewHunk(diff.LineRun{Start: start, Lines: count}, diff.LineRun{Start: start, Lines: count}, lines, "")
	if err != nil {
		t.Fatalf("building hunk: %v", err)
	}
	patch, err := diff.NewPatch(patchID, commit, file, []diff.Hunk{hunk}, nil)
	if err != nil {
		t.Fatalf("building patch: %v", err)
	}
	return patch
}

// modeChangePatch carries only a permission transition, no hunks
func modeChangePatch(t *testing.T, patchID string, commit history.CommitID, file string, mode diff.ModeChange) diff.Patch {
	t.Helper()
	patch, err := diff.NewPatch(patchID, commit, file, nil, &mode)
	if err != nil {
		t.Fatalf("building patch: %v", err)
	}
	return patch
}

func seedCommit(repo *gitrepo.FakeRepository, id history.CommitID, message string, parents []history.CommitID, patches ...diff.Patch) {
	repo.AddCommit(history.CommitInfo{
		ID:        id,
		Message:   message,
		Author:    "Test Author",
		Email:     "test@example.com",
		ParentIDs: parents,
	}, patches)
}

func fetchGraph(t *testing.T, repo *gitrepo.FakeRepository) history.CommitGraph {
	t.Helper()
	graph, err := repo.GetCommitGraph(context.Background(), gitrepo.GraphOptions{})
	if err != nil {
		t.Fatalf("fetching graph: %v", err)
	}
	return graph
}

// commitContent fingerprints a commit by target file and new-side text,
// ignoring IDs
func commitContent(t *testing.T, repo *gitrepo.FakeRepository, id history.CommitID) map[string]string {
	t.Helper()
	patches, err := repo.GetPatches(context.Background(), id)
	if err != nil {
		t.Fatalf("fetching patches for %s: %v", id.Short(), err)
	}
	content := make(map[string]string)
	for _, p := range patches {
		var lines []string
		for _, h := range p.Hunks {
			lines = append(lines, h.NewContent()...)
		}
		content[p.TargetFile] = strings.Join(lines, "\n")
	}
	return content
}

func equalContent(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for file, text := range a {
		if b[file] != text {
			return false
		}
	}
	return true
}

func newEngine(repo *gitrepo.FakeRepository) *Engine {
	return New(repo, "Editor", "editor@example.com")
}

func TestMovePatchClean(t *testing.T) {
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Add block at line 10", nil,
		additionPatch(t, "P1", idA, "file.py", 10, 3))
	seedCommit(repo, idB, "Add block at line 40", []history.CommitID{idA},
		additionPatch(t, "P2", idB, "file.py", 40, 2))

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, MovePatch{
		PatchID:    "P2",
		FromCommit: idB,
		ToCommit:   idA,
		Position:   PositionAfter,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", res.Conflicts)
	}
	if len(res.NewCommitIDs) != 2 {
		t.Fatalf("expected 2 new commits, got %d", len(res.NewCommitIDs))
	}

	// parents-first ordering: rewritten A comes before rewritten B
	newA, newB := res.NewCommitIDs[0], res.NewCommitIDs[1]

	contentA := commitContent(t, repo, newA)
	if text, ok := contentA["file.py"]; !ok || !strings.Contains(text, "added line") {
		t.Errorf("rewritten source commit content = %+v, want both blocks in file.py", contentA)
	}
	if len(commitContent(t, repo, newB)) != 0 {
		t.Errorf("rewritten child should carry no changes, got %+v", commitContent(t, repo, newB))
	}

	infoB, err := repo.GetCommitInfo(ctx, newB)
	if err != nil {
		t.Fatalf("GetCommitInfo: %v", err)
	}
	if len(infoB.ParentIDs) != 1 || infoB.ParentIDs[0] != newA {
		t.Errorf("rewritten child parents = %v, want [%s]", infoB.ParentIDs, newA.Short())
	}
}

func TestMovePatchConflict(t *testing.T) {
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Rewrite lines 10-14", nil,
		modificationPatch(t, "P1", idA, "file.py", 10, 5))
	seedCommit(repo, idB, "Rewrite lines 12-13", []history.CommitID{idA},
		modificationPatch(t, "P2", idB, "file.py", 12, 2))

	before := repo.CommitCount()
	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, MovePatch{
		PatchID:    "P2",
		FromCommit: idB,
		ToCommit:   idA,
		Position:   PositionAfter,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Success {
		t.Fatal("expected conflict outcome, got success")
	}
	if len(res.Conflicts) == 0 {
		t.Fatal("expected at least one conflict")
	}
	if res.Conflicts[0].FilePath != "file.py" {
		t.Errorf("conflict file = %q, want file.py", res.Conflicts[0].FilePath)
	}
	if len(res.NewCommitIDs) != 0 {
		t.Errorf("conflict outcome leaked new commit ids: %v", res.NewCommitIDs)
	}
	if repo.CommitCount() != before {
		t.Errorf("conflict outcome created commits: %d -> %d", before, repo.CommitCount())
	}
}

func TestMovePatchInverseRestoresContent(t *testing.T) {
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Add module a", nil,
		additionPatch(t, "P1", idA, "module_a.py", 1, 4))
	seedCommit(repo, idB, "Add module b", []history.CommitID{idA},
		additionPatch(t, "P2", idB, "module_b.py", 1, 6))

	wantA := commitContent(t, repo, idA)
	wantB := commitContent(t, repo, idB)

	eng := newEngine(repo)
	graph := fetchGraph(t, repo)
	res, err := eng.Apply(ctx, graph, MovePatch{PatchID: "P2", FromCommit: idB, ToCommit: idA, Position: PositionAfter})
	if err != nil || !res.Success {
		t.Fatalf("first move failed: res=%+v err=%v", res, err)
	}
	movedA, movedB := res.NewCommitIDs[0], res.NewCommitIDs[1]

	// find the moved patch on the rewritten A
	patches, err := repo.GetPatches(ctx, movedA)
	if err != nil {
		t.Fatalf("GetPatches: %v", err)
	}
	var movedID string
	for _, p := range patches {
		if p.TargetFile == "module_b.py" {
			movedID = p.ID
		}
	}
	if movedID == "" {
		t.Fatal("moved patch not found on rewritten commit")
	}

	infoA, _ := repo.GetCommitInfo(ctx, movedA)
	infoB, _ := repo.GetCommitInfo(ctx, movedB)
	rewritten := history.NewCommitGraph([]history.CommitInfo{infoB, infoA}, "main")

	res, err = eng.Apply(ctx, rewritten, MovePatch{PatchID: movedID, FromCommit: movedA, ToCommit: movedB, Position: PositionAfter})
	if err != nil || !res.Success {
		t.Fatalf("inverse move failed: res=%+v err=%v", res, err)
	}

	finalA, finalB := res.NewCommitIDs[0], res.NewCommitIDs[1]
	if !equalContent(commitContent(t, repo, finalA), wantA) {
		t.Errorf("inverse move did not restore first commit: got %+v, want %+v", commitContent(t, repo, finalA), wantA)
	}
	if !equalContent(commitContent(t, repo, finalB), wantB) {
		t.Errorf("inverse move did not restore second commit: got %+v, want %+v", commitContent(t, repo, finalB), wantB)
	}
}

func TestMovePatchReplaysDescendants(t *testing.T) {
	// moving between non-adjacent commits must replay the commits in
	// between, or the rebuilt chain would be unreachable from the head
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idA, idB, idC := cid('a'), cid('b'), cid('c')
	seedCommit(repo, idA, "Add module a", nil, additionPatch(t, "P1", idA, "module_a.py", 1, 2))
	seedCommit(repo, idB, "Add module b", []history.CommitID{idA}, additionPatch(t, "P2", idB, "module_b.py", 1, 3))
	seedCommit(repo, idC, "Add module c", []history.CommitID{idB}, additionPatch(t, "P3", idC, "module_c.py", 1, 4))

	wantB := commitContent(t, repo, idB)

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, MovePatch{
		PatchID:    "P3",
		FromCommit: idC,
		ToCommit:   idA,
		Position:   PositionAfter,
	})
	if err != nil || !res.Success {
		t.Fatalf("Apply: res=%+v err=%v", res, err)
	}
	if len(res.NewCommitIDs) != 3 {
		t.Fatalf("expected 3 new commits, got %d", len(res.NewCommitIDs))
	}

	newA, newB, newC := res.NewCommitIDs[0], res.NewCommitIDs[1], res.NewCommitIDs[2]
	if !equalContent(commitContent(t, repo, newB), wantB) {
		t.Errorf("replayed middle commit content = %+v, want %+v", commitContent(t, repo, newB), wantB)
	}

	infoB, _ := repo.GetCommitInfo(ctx, newB)
	if len(infoB.ParentIDs) != 1 || infoB.ParentIDs[0] != newA {
		t.Errorf("replayed commit parents = %v, want [%s]", infoB.ParentIDs, newA.Short())
	}
	infoC, _ := repo.GetCommitInfo(ctx, newC)
	if len(infoC.ParentIDs) != 1 || infoC.ParentIDs[0] != newB {
		t.Errorf("rebuilt head parents = %v, want [%s]", infoC.ParentIDs, newB.Short())
	}
}

func TestMovePatchMergeDestination(t *testing.T) {
	// rewriting a merge commit must keep its parent list exactly: first
	// parent from the chain, second parent carried over once
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idX, idR, idA, idB := cid('e'), cid('0'), cid('a'), cid('b')
	seedCommit(repo, idX, "Side branch work", nil, additionPatch(t, "PX", idX, "side.py", 1, 2))
	seedCommit(repo, idR, "Base", nil, additionPatch(t, "P0", idR, "base.py", 1, 1))
	seedCommit(repo, idA, "Merge side branch", []history.CommitID{idR, idX},
		additionPatch(t, "P1", idA, "one.py", 1, 2))
	seedCommit(repo, idB, "Add two", []history.CommitID{idA},
		additionPatch(t, "P2", idB, "two.py", 1, 2))

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, MovePatch{
		PatchID:    "P2",
		FromCommit: idB,
		ToCommit:   idA,
		Position:   PositionAfter,
	})
	if err != nil || !res.Success {
		t.Fatalf("Apply: res=%+v err=%v", res, err)
	}
	if len(res.NewCommitIDs) != 2 {
		t.Fatalf("expected 2 new commits, got %d", len(res.NewCommitIDs))
	}

	newA := res.NewCommitIDs[0]
	infoA, err := repo.GetCommitInfo(ctx, newA)
	if err != nil {
		t.Fatalf("GetCommitInfo: %v", err)
	}
	if len(infoA.ParentIDs) != 2 || infoA.ParentIDs[0] != idR || infoA.ParentIDs[1] != idX {
		t.Fatalf("rewritten merge parents = %v, want [%s %s]", infoA.ParentIDs, idR.Short(), idX.Short())
	}
	seen := make(map[history.CommitID]int)
	for _, p := range infoA.ParentIDs {
		seen[p]++
	}
	for p, n := range seen {
		if n > 1 {
			t.Errorf("parent %s listed %d times on rewritten merge commit", p.Short(), n)
		}
	}

	content := commitContent(t, repo, newA)
	if content["one.py"] == "" || content["two.py"] == "" {
		t.Errorf("rewritten merge content = %+v, want one.py and two.py", content)
	}
}

func TestMovePatchSameCommit(t *testing.T) {
	repo := gitrepo.NewFakeRepository()
	idA := cid('a')
	seedCommit(repo, idA, "Only commit", nil, additionPatch(t, "P1", idA, "file.py", 1, 1))

	graph := fetchGraph(t, repo)
	_, err := newEngine(repo).Apply(context.Background(), graph, MovePatch{
		PatchID:    "P1",
		FromCommit: idA,
		ToCommit:   idA,
	})
	var patchErr *PatchError
	if !errors.As(err, &patchErr) {
		t.Errorf("error = %v, want PatchError", err)
	}
}

func TestMovePatchUnknownCommit(t *testing.T) {
	repo := gitrepo.NewFakeRepository()
	idA := cid('a')
	seedCommit(repo, idA, "Only commit", nil, additionPatch(t, "P1", idA, "file.py", 1, 1))

	graph := fetchGraph(t, repo)
	_, err := newEngine(repo).Apply(context.Background(), graph, MovePatch{
		PatchID:    "P1",
		FromCommit: cid('f'),
		ToCommit:   idA,
	})
	if !errors.Is(err, gitrepo.ErrInvalidCommitID) {
		t.Errorf("error = %v, want ErrInvalidCommitID", err)
	}
}

func TestMovePatchUnknownPatch(t *testing.T) {
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "First", nil, additionPatch(t, "P1", idA, "file.py", 1, 1))
	seedCommit(repo, idB, "Second", []history.CommitID{idA}, additionPatch(t, "P2", idB, "other.py", 1, 1))

	graph := fetchGraph(t, repo)
	_, err := newEngine(repo).Apply(context.Background(), graph, MovePatch{
		PatchID:    "missing",
		FromCommit: idB,
		ToCommit:   idA,
	})
	var patchErr *PatchError
	if !errors.As(err, &patchErr) {
		t.Errorf("error = %v, want PatchError", err)
	}
}

func TestSplitCommit(t *testing.T) {
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idA := cid('a')
	seedCommit(repo, idA, "Big commit", nil,
		additionPatch(t, "P1", idA, "one.py", 1, 2),
		additionPatch(t, "P2", idA, "two.py", 1, 2),
		additionPatch(t, "P3", idA, "three.py", 1, 2))

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, SplitCommit{
		SourceCommit: idA,
		NewCommits: []NewCommit{
			{Message: "First part", PatchIDs: []string{"P1"}},
			{Message: "Second part", PatchIDs: []string{"P2", "P3"}},
		},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Success || len(res.NewCommitIDs) != 2 {
		t.Fatalf("expected 2 new commits, got %+v", res)
	}

	first, second := res.NewCommitIDs[0], res.NewCommitIDs[1]
	if content := commitContent(t, repo, first); len(content) != 1 || content["one.py"] == "" {
		t.Errorf("first split commit content = %+v", content)
	}
	if content := commitContent(t, repo, second); len(content) != 2 {
		t.Errorf("second split commit content = %+v", content)
	}

	// parent chain: first inherits the source's parents, second chains
	// onto first
	infoFirst, _ := repo.GetCommitInfo(ctx, first)
	if len(infoFirst.ParentIDs) != 0 {
		t.Errorf("first split commit parents = %v, want none", infoFirst.ParentIDs)
	}
	infoSecond, _ := repo.GetCommitInfo(ctx, second)
	if len(infoSecond.ParentIDs) != 1 || infoSecond.ParentIDs[0] != first {
		t.Errorf("second split commit parents = %v, want [%s]", infoSecond.ParentIDs, first.Short())
	}

	if len(res.ModifiedCommits) != 1 || res.ModifiedCommits[0] != idA {
		t.Errorf("ModifiedCommits = %v, want [%s]", res.ModifiedCommits, idA.Short())
	}
}

func TestSplitCommitIncompletePartition(t *testing.T) {
	repo := gitrepo.NewFakeRepository()
	idA := cid('a')
	seedCommit(repo, idA, "Big commit", nil,
		additionPatch(t, "P1", idA, "one.py", 1, 2),
		additionPatch(t, "P2", idA, "two.py", 1, 2))

	before := repo.CommitCount()
	graph := fetchGraph(t, repo)

	cases := []SplitCommit{
		// omits P2
		{SourceCommit: idA, NewCommits: []NewCommit{{Message: "Partial", PatchIDs: []string{"P1"}}}},
		// duplicates P1
		{SourceCommit: idA, NewCommits: []NewCommit{
			{Message: "One", PatchIDs: []string{"P1"}},
			{Message: "Two", PatchIDs: []string{"P1", "P2"}},
		}},
		// invents a patch
		{SourceCommit: idA, NewCommits: []NewCommit{
			{Message: "One", PatchIDs: []string{"P1"}},
			{Message: "Two", PatchIDs: []string{"P9"}},
		}},
	}

	for _, op := range cases {
		_, err := newEngine(repo).Apply(context.Background(), graph, op)
		var patchErr *PatchError
		if !errors.As(err, &patchErr) {
			t.Errorf("Apply(%+v) error = %v, want PatchError", op, err)
		}
	}

	if repo.CommitCount() != before {
		t.Errorf("failed splits created commits: %d -> %d", before, repo.CommitCount())
	}
	after := fetchGraph(t, repo)
	if len(after.Commits) != len(graph.Commits) {
		t.Errorf("commit graph altered by failed split")
	}
}

func TestCreateCommit(t *testing.T) {
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Add helpers", nil,
		additionPatch(t, "P1", idA, "helpers.py", 1, 3))
	seedCommit(repo, idB, "Add handlers", []history.CommitID{idA},
		additionPatch(t, "P2", idB, "handlers.py", 1, 3))

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, CreateCommit{
		PatchIDs: []string{"P1"},
		Message:  "Extracted helpers",
		Position: PositionAtBranchHead,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Success || len(res.NewCommitIDs) != 1 {
		t.Fatalf("expected 1 new commit, got %+v", res)
	}

	info, _ := repo.GetCommitInfo(ctx, res.NewCommitIDs[0])
	if len(info.ParentIDs) != 1 || info.ParentIDs[0] != idB {
		t.Errorf("created commit parents = %v, want branch head %s", info.ParentIDs, idB.Short())
	}
	if info.Author != "Editor" {
		t.Errorf("created commit author = %q, want engine author", info.Author)
	}
}

func TestCreateCommitBeforeHead(t *testing.T) {
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Add helpers", nil,
		additionPatch(t, "P1", idA, "helpers.py", 1, 3))
	seedCommit(repo, idB, "Add handlers", []history.CommitID{idA},
		additionPatch(t, "P2", idB, "handlers.py", 1, 3))

	wantHead := commitContent(t, repo, idB)

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, CreateCommit{
		PatchIDs: []string{"P1"},
		Message:  "Slipped beneath the head",
		Position: PositionBefore,
	})
	if err != nil || !res.Success {
		t.Fatalf("Apply: res=%+v err=%v", res, err)
	}
	if len(res.NewCommitIDs) != 2 {
		t.Fatalf("expected created commit plus replayed head, got %d commits", len(res.NewCommitIDs))
	}

	created, replayed := res.NewCommitIDs[0], res.NewCommitIDs[1]
	infoCreated, _ := repo.GetCommitInfo(ctx, created)
	if len(infoCreated.ParentIDs) != 1 || infoCreated.ParentIDs[0] != idA {
		t.Errorf("created commit parents = %v, want [%s]", infoCreated.ParentIDs, idA.Short())
	}
	infoReplayed, _ := repo.GetCommitInfo(ctx, replayed)
	if len(infoReplayed.ParentIDs) != 1 || infoReplayed.ParentIDs[0] != created {
		t.Errorf("replayed head parents = %v, want [%s]", infoReplayed.ParentIDs, created.Short())
	}
	if !equalContent(commitContent(t, repo, replayed), wantHead) {
		t.Errorf("replayed head content changed: %+v", commitContent(t, repo, replayed))
	}
}

func TestCreateCommitConflictAgainstHead(t *testing.T) {
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Rewrite region", nil,
		modificationPatch(t, "P1", idA, "app.py", 10, 5))
	seedCommit(repo, idB, "Rewrite overlapping region", []history.CommitID{idA},
		modificationPatch(t, "P2", idB, "app.py", 12, 5))

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(context.Background(), graph, CreateCommit{
		PatchIDs: []string{"P1"},
		Message:  "Would collide with head",
		Position: PositionAtBranchHead,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Success || len(res.Conflicts) == 0 {
		t.Fatalf("expected conflict outcome, got %+v", res)
	}
}

func TestMergeCommitsConflict(t *testing.T) {
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Rewrite lines 10-14", nil,
		modificationPatch(t, "P1", idA, "file.py", 10, 5))
	seedCommit(repo, idB, "Rewrite lines 13-15", []history.CommitID{idA},
		modificationPatch(t, "P2", idB, "file.py", 13, 3))

	before := repo.CommitCount()
	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(context.Background(), graph, MergeCommits{
		CommitIDs: []history.CommitID{idA, idB},
		Message:   "Squash",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Success {
		t.Fatal("expected conflict outcome, got success")
	}
	found := false
	for _, c := range res.Conflicts {
		if c.FilePath == "file.py" {
			found = true
		}
	}
	if !found {
		t.Errorf("no content conflict names file.py: %+v", res.Conflicts)
	}
	if repo.CommitCount() != before {
		t.Errorf("conflict outcome created commits")
	}
}

func TestMergeCommitsModeConflict(t *testing.T) {
	// two inputs flipping the same file's mode in different directions
	// must surface as a mode conflict, never a silent last-wins
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Make script executable", nil,
		modeChangePatch(t, "P1", idA, "script.sh", diff.ChangedMode(0o100644, 0o100755)))
	seedCommit(repo, idB, "Lock script down", []history.CommitID{idA},
		modeChangePatch(t, "P2", idB, "script.sh", diff.ChangedMode(0o100644, 0o100600)))

	before := repo.CommitCount()
	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(context.Background(), graph, MergeCommits{
		CommitIDs: []history.CommitID{idA, idB},
		Message:   "Squash mode flips",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Success {
		t.Fatal("expected conflict outcome, got success")
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %+v", res.Conflicts)
	}
	if res.Conflicts[0].Kind != conflict.KindMode {
		t.Errorf("conflict kind = %v, want mode", res.Conflicts[0].Kind)
	}
	if res.Conflicts[0].FilePath != "script.sh" {
		t.Errorf("conflict file = %q, want script.sh", res.Conflicts[0].FilePath)
	}
	if repo.CommitCount() != before {
		t.Errorf("conflict outcome created commits")
	}
}

func TestMergeCommitsClean(t *testing.T) {
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idR, idA, idB := cid('0'), cid('a'), cid('b')
	seedCommit(repo, idR, "Base", nil, additionPatch(t, "P0", idR, "base.py", 1, 1))
	seedCommit(repo, idA, "Add one", []history.CommitID{idR}, additionPatch(t, "P1", idA, "one.py", 1, 2))
	seedCommit(repo, idB, "Add two", []history.CommitID{idA}, additionPatch(t, "P2", idB, "two.py", 1, 2))

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, MergeCommits{
		CommitIDs: []history.CommitID{idA, idB},
		Message:   "Squash one and two",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Success || len(res.NewCommitIDs) != 1 {
		t.Fatalf("expected single merged commit, got %+v", res)
	}

	merged := res.NewCommitIDs[0]
	content := commitContent(t, repo, merged)
	if len(content) != 2 || content["one.py"] == "" || content["two.py"] == "" {
		t.Errorf("merged commit content = %+v", content)
	}

	// first parents of the inputs are {R, A}; A is retired by the merge
	// so only R survives
	info, _ := repo.GetCommitInfo(ctx, merged)
	if len(info.ParentIDs) != 1 || info.ParentIDs[0] != idR {
		t.Errorf("merged commit parents = %v, want [%s]", info.ParentIDs, idR.Short())
	}
}

func TestMergeCommitsReplaysIntermediate(t *testing.T) {
	// merging non-adjacent commits replays the commits between them on
	// top of the merged commit
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idR, idA, idC, idB := cid('0'), cid('a'), cid('c'), cid('b')
	seedCommit(repo, idR, "Base", nil, additionPatch(t, "P0", idR, "base.py", 1, 1))
	seedCommit(repo, idA, "Add one", []history.CommitID{idR}, additionPatch(t, "P1", idA, "one.py", 1, 2))
	seedCommit(repo, idC, "Add middle", []history.CommitID{idA}, additionPatch(t, "PC", idC, "middle.py", 1, 2))
	seedCommit(repo, idB, "Add two", []history.CommitID{idC}, additionPatch(t, "P2", idB, "two.py", 1, 2))

	wantMiddle := commitContent(t, repo, idC)

	graph := fetchGraph(t, repo)
	res, err := newEngine(repo).Apply(ctx, graph, MergeCommits{
		CommitIDs: []history.CommitID{idA, idB},
		Message:   "Squash around the middle",
	})
	if err != nil || !res.Success {
		t.Fatalf("Apply: res=%+v err=%v", res, err)
	}
	if len(res.NewCommitIDs) != 2 {
		t.Fatalf("expected merged commit plus replayed middle, got %d", len(res.NewCommitIDs))
	}

	merged, middle := res.NewCommitIDs[0], res.NewCommitIDs[1]
	if content := commitContent(t, repo, merged); len(content) != 2 {
		t.Errorf("merged commit content = %+v, want one.py and two.py", content)
	}
	if !equalContent(commitContent(t, repo, middle), wantMiddle) {
		t.Errorf("replayed middle content = %+v, want %+v", commitContent(t, repo, middle), wantMiddle)
	}

	infoMerged, _ := repo.GetCommitInfo(ctx, merged)
	if len(infoMerged.ParentIDs) != 1 || infoMerged.ParentIDs[0] != idR {
		t.Errorf("merged commit parents = %v, want [%s]", infoMerged.ParentIDs, idR.Short())
	}
	infoMiddle, _ := repo.GetCommitInfo(ctx, middle)
	if len(infoMiddle.ParentIDs) != 1 || infoMiddle.ParentIDs[0] != merged {
		t.Errorf("replayed middle parents = %v, want [%s]", infoMiddle.ParentIDs, merged.Short())
	}
}

func TestMergeCommitsWrongOrder(t *testing.T) {
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "First", nil, additionPatch(t, "P1", idA, "one.py", 1, 1))
	seedCommit(repo, idB, "Second", []history.CommitID{idA}, additionPatch(t, "P2", idB, "two.py", 1, 1))

	graph := fetchGraph(t, repo)
	_, err := newEngine(repo).Apply(context.Background(), graph, MergeCommits{
		CommitIDs: []history.CommitID{idB, idA},
		Message:   "Backwards",
	})
	var patchErr *PatchError
	if !errors.As(err, &patchErr) {
		t.Errorf("error = %v, want PatchError for newest-first input", err)
	}
}

func TestMergeCommitsEmpty(t *testing.T) {
	repo := gitrepo.NewFakeRepository()
	idA := cid('a')
	seedCommit(repo, idA, "Only", nil, additionPatch(t, "P1", idA, "one.py", 1, 1))

	graph := fetchGraph(t, repo)
	_, err := newEngine(repo).Apply(context.Background(), graph, MergeCommits{Message: "Nothing"})
	var patchErr *PatchError
	if !errors.As(err, &patchErr) {
		t.Errorf("error = %v, want PatchError for empty input", err)
	}
}

func TestFileOperationsPartialContent(t *testing.T) {
	idA := cid('a')

	// a modification hunk references base lines it does not carry
	ops := fileOperations([]diff.Patch{modificationPatch(t, "P1", idA, "app.py", 10, 3)})
	if !ops["app.py"].Partial {
		t.Error("modification hunks not flagged as partial content")
	}

	// pure insertions carry everything they materialize
	ops = fileOperations([]diff.Patch{additionPatch(t, "P2", idA, "new.py", 1, 2)})
	if ops["new.py"].Partial {
		t.Error("pure additions flagged as partial content")
	}

	// a new-file mode change marks the hunks as the entire file
	mode := diff.NewFileMode(0o100644)
	patch, err := diff.NewPatch("P3", idA, "fresh.py", modificationPatch(t, "P3", idA, "fresh.py", 1, 2).Hunks, &mode)
	if err != nil {
		t.Fatalf("building patch: %v", err)
	}
	if fileOperations([]diff.Patch{patch})["fresh.py"].Partial {
		t.Error("new-file patch flagged as partial content")
	}
}

func TestMovePatchAtomicityOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := gitrepo.NewFakeRepository()
	idA, idB := cid('a'), cid('b')
	seedCommit(repo, idA, "Add module a", nil, additionPatch(t, "P1", idA, "module_a.py", 1, 2))
	seedCommit(repo, idB, "Add module b", []history.CommitID{idA}, additionPatch(t, "P2", idB, "module_b.py", 1, 2))

	graph := fetchGraph(t, repo)

	// first create succeeds, second fails mid-sequence
	repo.FailCreateAfter(1)
	res, err := newEngine(repo).Apply(ctx, graph, MovePatch{
		PatchID:    "P2",
		FromCommit: idB,
		ToCommit:   idA,
		Position:   PositionAfter,
	})

	var appErr *ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %v, want ApplicationError", err)
	}
	if !errors.Is(err, gitrepo.ErrGitOperation) {
		t.Errorf("ApplicationError does not wrap the storage failure: %v", err)
	}
	if len(res.NewCommitIDs) != 0 {
		t.Errorf("failed operation leaked commit ids: %v", res.NewCommitIDs)
	}

	// the branch never moved, so the visible graph is untouched; the
	// one persisted object is unreferenced and harmless
	after := fetchGraph(t, repo)
	if len(after.Commits) != len(graph.Commits) {
		t.Fatalf("graph length changed: %d -> %d", len(graph.Commits), len(after.Commits))
	}
	for i := range after.Commits {
		if after.Commits[i].ID != graph.Commits[i].ID {
			t.Errorf("graph commit %d changed: %s -> %s", i, graph.Commits[i].ID.Short(), after.Commits[i].ID.Short())
		}
	}
}
