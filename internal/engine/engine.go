package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/patchdance/patchdance/internal/conflict"
	"github.com/patchdance/patchdance/internal/diff"
	"github.com/patchdance/patchdance/internal/gitrepo"
	"github.com/patchdance/patchdance/internal/history"
)

// Engine validates and applies structural operations against a commit
// graph. Each invocation is a single transition: the whole new chain is
// computed in memory before any persist call, and commits are persisted
// parents-first so a mid-sequence failure leaves only unreferenced
// objects behind. Commits above the deepest rewritten one are replayed
// on top of it, keeping the branch a single consistent chain.
//
// The engine is synchronous; callers must not run two operations
// concurrently against the same repository.
type Engine struct {
	repo   gitrepo.Repository
	author string
	email  string
}

// New builds an engine. author and email sign commits the user authors
// through an operation (create, merge); rewritten commits keep their
// original author.
func New(repo gitrepo.Repository, author, email string) *Engine {
	return &Engine{repo: repo, author: author, email: email}
}

// Apply runs one operation and reports the outcome. Conflicts are a
// business outcome, not an error: they come back in a success=false
// result with a nil error. Validation and storage failures come back
// as errors with no mutation performed.
func (e *Engine) Apply(ctx context.Context, graph history.CommitGraph, op Operation) (OperationResult, error) {
	switch op := op.(type) {
	case MovePatch:
		return e.applyMovePatch(ctx, graph, op)
	case SplitCommit:
		return e.applySplitCommit(ctx, graph, op)
	case CreateCommit:
		return e.applyCreateCommit(ctx, graph, op)
	case MergeCommits:
		return e.applyMergeCommits(ctx, graph, op)
	default:
		return OperationResult{}, fmt.Errorf("unsupported operation %T", op)
	}
}

func (e *Engine) applyMovePatch(ctx context.Context, graph history.CommitGraph, op MovePatch) (OperationResult, error) {
	if op.FromCommit == op.ToCommit {
		return OperationResult{}, &PatchError{Reason: "source and destination are the same commit"}
	}
	idxFrom, err := commitIndex(graph, op.FromCommit)
	if err != nil {
		return OperationResult{}, err
	}
	idxTo, err := commitIndex(graph, op.ToCommit)
	if err != nil {
		return OperationResult{}, err
	}

	fromPatches, err := e.repo.GetPatches(ctx, op.FromCommit)
	if err != nil {
		return OperationResult{}, err
	}
	toPatches, err := e.repo.GetPatches(ctx, op.ToCommit)
	if err != nil {
		return OperationResult{}, err
	}

	moved, idx, found := lo.FindIndexOf(fromPatches, func(p diff.Patch) bool { return p.ID == op.PatchID })
	if !found {
		return OperationResult{}, &PatchError{Reason: fmt.Sprintf("patch %s not found on commit %s", op.PatchID, op.FromCommit.Short())}
	}
	remaining := append(fromPatches[:idx:idx], fromPatches[idx+1:]...)

	check := conflict.FileCheck{
		Path:         moved.TargetFile,
		Incoming:     moved.Hunks,
		IncomingMode: moved.ModeChange,
	}
	for _, p := range toPatches {
		if p.TargetFile != moved.TargetFile {
			continue
		}
		check.Existing = append(check.Existing, p.Hunks...)
		if p.ModeChange != nil {
			mode := *p.ModeChange
			check.ExistingMode = &mode
		}
	}

	if conflicts := conflict.Detect([]conflict.FileCheck{check}); len(conflicts) > 0 {
		return conflictResult(conflicts, fmt.Sprintf("cannot move patch %s to commit %s", op.PatchID, op.ToCommit.Short())), nil
	}

	var newToPatches []diff.Patch
	if op.Position == PositionBefore {
		newToPatches = append([]diff.Patch{moved}, toPatches...)
	} else {
		// AFTER and AT_BRANCH_HEAD both append after the latest
		newToPatches = append(toPatches, moved)
	}

	depth := idxFrom
	if idxTo > depth {
		depth = idxTo
	}

	plans, err := e.chainPlans(ctx, graph, depth, func(info history.CommitInfo) ([]commitPlan, bool, error) {
		switch info.ID {
		case op.FromCommit:
			return []commitPlan{rewritePlan(info, remaining)}, true, nil
		case op.ToCommit:
			return []commitPlan{rewritePlan(info, newToPatches)}, true, nil
		default:
			return nil, false, nil
		}
	})
	if err != nil {
		return OperationResult{}, err
	}

	ids, err := e.rebuildChain(ctx, graph.Commits[depth].ParentIDs, plans)
	if err != nil {
		return OperationResult{}, err
	}

	return OperationResult{
		Success:         true,
		NewCommitIDs:    ids,
		ModifiedCommits: []history.CommitID{op.FromCommit, op.ToCommit},
		Message:         fmt.Sprintf("moved patch %s from %s to %s", op.PatchID, op.FromCommit.Short(), op.ToCommit.Short()),
	}, nil
}

func (e *Engine) applySplitCommit(ctx context.Context, graph history.CommitGraph, op SplitCommit) (OperationResult, error) {
	if len(op.NewCommits) == 0 {
		return OperationResult{}, &PatchError{Reason: "split requires at least one new commit"}
	}

	sourceInfo, err := findCommit(graph, op.SourceCommit)
	if err != nil {
		return OperationResult{}, err
	}
	sourcePatches, err := e.repo.GetPatches(ctx, op.SourceCommit)
	if err != nil {
		return OperationResult{}, err
	}

	byID := lo.KeyBy(sourcePatches, func(p diff.Patch) string { return p.ID })
	var requested []string
	for _, nc := range op.NewCommits {
		requested = append(requested, nc.PatchIDs...)
	}
	if len(requested) != len(sourcePatches) || len(lo.Uniq(requested)) != len(requested) {
		return OperationResult{}, &PatchError{Reason: "incomplete or duplicate partition"}
	}
	for _, id := range requested {
		if _, ok := byID[id]; !ok {
			return OperationResult{}, &PatchError{Reason: "incomplete or duplicate partition"}
		}
	}

	// A pure partition of one commit's own patches cannot overlap with
	// itself, so no conflict detection is needed here.
	splitPlans := lo.Map(op.NewCommits, func(nc NewCommit, _ int) commitPlan {
		patches := lo.Map(nc.PatchIDs, func(id string, _ int) diff.Patch { return byID[id] })
		return commitPlan{
			message: nc.Message,
			author:  sourceInfo.Author,
			email:   sourceInfo.Email,
			fileOps: fileOperations(patches),
		}
	})

	depth, err := commitIndex(graph, op.SourceCommit)
	if err != nil {
		return OperationResult{}, err
	}
	plans, err := e.chainPlans(ctx, graph, depth, func(info history.CommitInfo) ([]commitPlan, bool, error) {
		if info.ID == op.SourceCommit {
			return splitPlans, true, nil
		}
		return nil, false, nil
	})
	if err != nil {
		return OperationResult{}, err
	}

	ids, err := e.rebuildChain(ctx, sourceInfo.ParentIDs, plans)
	if err != nil {
		return OperationResult{}, err
	}

	return OperationResult{
		Success:         true,
		NewCommitIDs:    ids,
		ModifiedCommits: []history.CommitID{op.SourceCommit},
		Message:         fmt.Sprintf("split commit %s into %d commits", op.SourceCommit.Short(), len(op.NewCommits)),
	}, nil
}

func (e *Engine) applyCreateCommit(ctx context.Context, graph history.CommitGraph, op CreateCommit) (OperationResult, error) {
	if len(op.PatchIDs) == 0 {
		return OperationResult{}, &PatchError{Reason: "create requires at least one patch"}
	}
	if len(graph.Commits) == 0 {
		return OperationResult{}, gitrepo.ErrNoCommitsFound
	}

	patches, err := e.resolvePatches(ctx, graph, op.PatchIDs)
	if err != nil {
		return OperationResult{}, err
	}

	head := graph.Commits[0]
	headPatches, err := e.repo.GetPatches(ctx, head.ID)
	if err != nil {
		return OperationResult{}, err
	}

	// Whichever side of the head the new commit lands on, the head's
	// own changes are what it must coexist with.
	checks := destinationChecks(headPatches, patches)
	if conflicts := conflict.Detect(checks); len(conflicts) > 0 {
		return conflictResult(conflicts, fmt.Sprintf("cannot create commit %q", firstLine(op.Message))), nil
	}

	created := commitPlan{
		message: op.Message,
		author:  e.author,
		email:   e.email,
		fileOps: fileOperations(patches),
	}

	var base []history.CommitID
	var plans []commitPlan
	if op.Position == PositionBefore {
		// insert beneath the head and replay the head on top
		base = head.ParentIDs
		plans = []commitPlan{created, rewritePlan(head, headPatches)}
	} else {
		base = []history.CommitID{head.ID}
		plans = []commitPlan{created}
	}

	ids, err := e.rebuildChain(ctx, base, plans)
	if err != nil {
		return OperationResult{}, err
	}

	return OperationResult{
		Success:      true,
		NewCommitIDs: ids,
		Message:      fmt.Sprintf("created commit %s from %d patches", ids[0].Short(), len(patches)),
	}, nil
}

func (e *Engine) applyMergeCommits(ctx context.Context, graph history.CommitGraph, op MergeCommits) (OperationResult, error) {
	if len(op.CommitIDs) == 0 {
		return OperationResult{}, &PatchError{Reason: "merge requires at least one commit"}
	}

	infos := make([]history.CommitInfo, len(op.CommitIDs))
	indices := make([]int, len(op.CommitIDs))
	for i, id := range op.CommitIDs {
		info, err := findCommit(graph, id)
		if err != nil {
			return OperationResult{}, err
		}
		infos[i] = info
		indices[i], _ = graph.CommitIndex(id)
	}

	// the graph is newest first, so earliest-first input means strictly
	// descending indices
	for i := 1; i < len(indices); i++ {
		if indices[i] >= indices[i-1] {
			return OperationResult{}, &PatchError{Reason: "commits must be ordered earliest first"}
		}
	}

	var allPatches []diff.Patch
	byFile := make(map[string][]diff.Patch)
	var fileOrder []string
	for _, info := range infos {
		patches, err := e.repo.GetPatches(ctx, info.ID)
		if err != nil {
			return OperationResult{}, err
		}
		for _, p := range patches {
			if _, seen := byFile[p.TargetFile]; !seen {
				fileOrder = append(fileOrder, p.TargetFile)
			}
			byFile[p.TargetFile] = append(byFile[p.TargetFile], p)
			allPatches = append(allPatches, p)
		}
	}

	// fold each file's patches earliest first, checking every commit's
	// contribution against everything accepted so far
	sort.Strings(fileOrder)
	var conflicts []conflict.Conflict
	for _, file := range fileOrder {
		var acc []diff.Hunk
		var accMode *diff.ModeChange
		for _, p := range byFile[file] {
			if len(acc) > 0 || accMode != nil {
				conflicts = append(conflicts, conflict.DetectFile(conflict.FileCheck{
					Path:         file,
					Existing:     acc,
					Incoming:     p.Hunks,
					ExistingMode: accMode,
					IncomingMode: p.ModeChange,
				})...)
			}
			acc = append(acc, p.Hunks...)
			if p.ModeChange != nil {
				mode := *p.ModeChange
				accMode = &mode
			}
		}
	}
	if len(conflicts) > 0 {
		return conflictResult(conflicts, fmt.Sprintf("cannot merge %d commits", len(op.CommitIDs))), nil
	}

	// the merged commit takes the earliest input's place; later inputs
	// vanish and any commits between inputs are replayed on top
	merged := commitPlan{
		message: op.Message,
		author:  e.author,
		email:   e.email,
		fileOps: fileOperations(allPatches),
	}

	depth := indices[0]
	earliest := op.CommitIDs[0]
	plans, err := e.chainPlans(ctx, graph, depth, func(info history.CommitInfo) ([]commitPlan, bool, error) {
		if info.ID == earliest {
			return []commitPlan{merged}, true, nil
		}
		if lo.Contains(op.CommitIDs, info.ID) {
			return nil, true, nil
		}
		return nil, false, nil
	})
	if err != nil {
		return OperationResult{}, err
	}

	ids, err := e.rebuildChain(ctx, infos[0].ParentIDs, plans)
	if err != nil {
		return OperationResult{}, err
	}

	return OperationResult{
		Success:         true,
		NewCommitIDs:    ids,
		ModifiedCommits: op.CommitIDs,
		Message:         fmt.Sprintf("merged %d commits into %s", len(op.CommitIDs), ids[0].Short()),
	}, nil
}

// commitPlan is one commit of the in-memory new chain. extraParents
// preserves the non-first parents of a replayed merge commit; the first
// parent comes from the chain itself.
type commitPlan struct {
	message      string
	author       string
	email        string
	fileOps      map[string]gitrepo.FileOperation
	extraParents []history.CommitID
}

// rewritePlan keeps a commit's identity but gives it a new patch set
func rewritePlan(info history.CommitInfo, patches []diff.Patch) commitPlan {
	plan := commitPlan{
		message: info.Message,
		author:  info.Author,
		email:   info.Email,
		fileOps: fileOperations(patches),
	}
	if len(info.ParentIDs) > 1 {
		plan.extraParents = append(plan.extraParents, info.ParentIDs[1:]...)
	}
	return plan
}

// chainPlans walks the graph from depth up to the head, oldest first,
// asking edit for each commit's replacement plans. Commits the edit
// does not claim are replayed unchanged.
func (e *Engine) chainPlans(ctx context.Context, graph history.CommitGraph, depth int, edit func(history.CommitInfo) ([]commitPlan, bool, error)) ([]commitPlan, error) {
	var plans []commitPlan
	for i := depth; i >= 0; i-- {
		info := graph.Commits[i]
		replacement, claimed, err := edit(info)
		if err != nil {
			return nil, err
		}
		if claimed {
			plans = append(plans, replacement...)
			continue
		}
		patches, err := e.repo.GetPatches(ctx, info.ID)
		if err != nil {
			return nil, err
		}
		plans = append(plans, rewritePlan(info, patches))
	}
	return plans, nil
}

// rebuildChain persists planned commits oldest first. The first plan
// sits on base; each later plan parents the one before it. A failure is
// fatal for the operation: the engine does not know how to safely
// resume a half-constructed history edit, and commits persisted before
// the failure are unreferenced and therefore harmless.
func (e *Engine) rebuildChain(ctx context.Context, base []history.CommitID, plans []commitPlan) ([]history.CommitID, error) {
	ids := make([]history.CommitID, 0, len(plans))
	parents := append([]history.CommitID(nil), base...)
	// a rewrite plan carries its own non-first parents; when the first
	// plan does, the base contributes only the first-parent link, or a
	// rewritten merge commit would list its second parent twice
	if len(plans) > 0 && len(plans[0].extraParents) > 0 && len(parents) > 1 {
		parents = parents[:1]
	}

	for _, plan := range plans {
		id, err := e.repo.CreateCommit(ctx, gitrepo.CommitRequest{
			Message:        plan.message,
			Author:         plan.author,
			Email:          plan.email,
			ParentIDs:      append(append([]history.CommitID(nil), parents...), plan.extraParents...),
			FileOperations: plan.fileOps,
		})
		if err != nil {
			return nil, &ApplicationError{Message: firstLine(plan.message), Err: err}
		}
		ids = append(ids, id)
		parents = []history.CommitID{id}
	}
	return ids, nil
}

// fileOperations folds a commit's patches into the per-path operations
// the repository port persists. A deletion patch wins over content for
// the same path; otherwise the file materializes as the new-side lines
// of its sorted hunks.
func fileOperations(patches []diff.Patch) map[string]gitrepo.FileOperation {
	grouped := lo.GroupBy(patches, func(p diff.Patch) string { return p.TargetFile })

	ops := make(map[string]gitrepo.FileOperation, len(grouped))
	for file, group := range grouped {
		if lo.SomeBy(group, func(p diff.Patch) bool { return p.IsDeletion() }) {
			ops[file] = gitrepo.FileOperation{Remove: true}
			continue
		}
		var hunks []diff.Hunk
		for _, p := range group {
			hunks = append(hunks, p.Hunks...)
		}
		ops[file] = gitrepo.FileOperation{
			Content: renderContent(hunks),
			Partial: partialContent(group),
		}
	}
	return ops
}

// partialContent reports whether a file's rendered hunks cannot be
// assumed to rebuild the whole file. A new-file mode change means the
// hunks are the entire file; a context or deletion line means base
// content exists that the hunks do not carry.
func partialContent(group []diff.Patch) bool {
	for _, p := range group {
		if p.ModeChange != nil && p.ModeChange.Kind == diff.ModeNewFile {
			return false
		}
	}
	for _, p := range group {
		for _, h := range p.Hunks {
			for _, line := range h.Lines {
				if line.Type != diff.LineAddition {
					return true
				}
			}
		}
	}
	return false
}

func renderContent(hunks []diff.Hunk) string {
	var lines []string
	for _, h := range diff.SortHunks(hunks) {
		lines = append(lines, h.NewContent()...)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// resolvePatches finds patches by ID across the whole graph
func (e *Engine) resolvePatches(ctx context.Context, graph history.CommitGraph, patchIDs []string) ([]diff.Patch, error) {
	wanted := lo.SliceToMap(patchIDs, func(id string) (string, bool) { return id, true })
	found := make(map[string]diff.Patch, len(patchIDs))

	for _, commit := range graph.Commits {
		if len(found) == len(wanted) {
			break
		}
		patches, err := e.repo.GetPatches(ctx, commit.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range patches {
			if wanted[p.ID] {
				found[p.ID] = p
			}
		}
	}

	resolved := make([]diff.Patch, 0, len(patchIDs))
	for _, id := range patchIDs {
		p, ok := found[id]
		if !ok {
			return nil, &PatchError{Reason: fmt.Sprintf("patch %s not found in commit graph", id)}
		}
		resolved = append(resolved, p)
	}
	return resolved, nil
}

// destinationChecks pairs incoming patches with the destination's
// existing changes per target file
func destinationChecks(existing, incoming []diff.Patch) []conflict.FileCheck {
	existingByFile := lo.GroupBy(existing, func(p diff.Patch) string { return p.TargetFile })
	incomingByFile := lo.GroupBy(incoming, func(p diff.Patch) string { return p.TargetFile })

	checks := make([]conflict.FileCheck, 0, len(incomingByFile))
	for file, group := range incomingByFile {
		check := conflict.FileCheck{Path: file}
		for _, p := range group {
			check.Incoming = append(check.Incoming, p.Hunks...)
			if p.ModeChange != nil {
				mode := *p.ModeChange
				check.IncomingMode = &mode
			}
		}
		for _, p := range existingByFile[file] {
			check.Existing = append(check.Existing, p.Hunks...)
			if p.ModeChange != nil {
				mode := *p.ModeChange
				check.ExistingMode = &mode
			}
		}
		checks = append(checks, check)
	}
	return checks
}

func findCommit(graph history.CommitGraph, id history.CommitID) (history.CommitInfo, error) {
	info, ok := graph.FindCommit(id)
	if !ok {
		return history.CommitInfo{}, fmt.Errorf("%w: %s", gitrepo.ErrInvalidCommitID, id)
	}
	return info, nil
}

func commitIndex(graph history.CommitGraph, id history.CommitID) (int, error) {
	idx, ok := graph.CommitIndex(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", gitrepo.ErrInvalidCommitID, id)
	}
	return idx, nil
}

func conflictResult(conflicts []conflict.Conflict, message string) OperationResult {
	return OperationResult{
		Success:   false,
		Conflicts: conflicts,
		Message:   fmt.Sprintf("%s: %d conflict(s) detected", message, len(conflicts)),
	}
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}
