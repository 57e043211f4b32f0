package gitrepo

import (
	"context"
	"testing"
)

func TestDemoRepository(t *testing.T) {
	repo, err := DemoRepository()
	if err != nil {
		t.Fatalf("DemoRepository: %v", err)
	}

	graph, err := repo.GetCommitGraph(context.Background(), GraphOptions{})
	if err != nil {
		t.Fatalf("GetCommitGraph: %v", err)
	}
	if len(graph.Commits) != 4 {
		t.Fatalf("len(Commits) = %d, want 4", len(graph.Commits))
	}

	// every non-root commit chains onto its predecessor
	for i := 0; i < len(graph.Commits)-1; i++ {
		commit := graph.Commits[i]
		if len(commit.ParentIDs) != 1 || commit.ParentIDs[0] != graph.Commits[i+1].ID {
			t.Errorf("commit %s parents = %v, want [%s]",
				commit.ID.Short(), commit.ParentIDs, graph.Commits[i+1].ID.Short())
		}
	}
	root := graph.Commits[len(graph.Commits)-1]
	if len(root.ParentIDs) != 0 {
		t.Errorf("root commit has parents: %v", root.ParentIDs)
	}

	patches, err := repo.GetPatches(context.Background(), graph.Commits[0].ID)
	if err != nil {
		t.Fatalf("GetPatches: %v", err)
	}
	if len(patches) != 1 || patches[0].TargetFile != "submodule/module3.py" {
		t.Errorf("head patches = %+v, want single patch on submodule/module3.py", patches)
	}
}
