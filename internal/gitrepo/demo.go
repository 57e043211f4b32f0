package gitrepo

import (
	"context"
	"fmt"
)

// DemoRepository builds an in-memory repository seeded with commits
// that add line runs at different positions, giving move/split/merge
// operations something to chew on without touching a real repository.
func DemoRepository() (*FakeRepository, error) {
	repo := NewFakeRepository()
	ctx := context.Background()

	commits := []CommitRequest{
		{
			Message: "Initial commit: create module structure",
			Author:  "Demo User",
			Email:   "demo@example.com",
			FileOperations: map[string]FileOperation{
				"README.md":            {Content: "# Demo Repository\n\nDemonstrates patch manipulation.\n"},
				"submodule/__init__.py": {Content: "\"\"\"Demo submodule for patch manipulation.\"\"\"\n"},
			},
		},
		{
			Message: "Add module1.py with import block at top",
			Author:  "Demo User",
			Email:   "demo@example.com",
			FileOperations: map[string]FileOperation{
				"submodule/module1.py": {Content: "#!/usr/bin/env python3\n\"\"\"Module 1: line run at the beginning.\"\"\"\n\nimport sys\nimport os\nimport logging\n\n\ndef main():\n    print(\"Hello from module 1!\")\n"},
			},
		},
		{
			Message: "Add module2.py with validation block in the middle",
			Author:  "Demo User",
			Email:   "demo@example.com",
			FileOperations: map[string]FileOperation{
				"submodule/module2.py": {Content: "#!/usr/bin/env python3\n\"\"\"Module 2: line run in the middle.\"\"\"\n\nimport sys\n\n\ndef validate_input(data):\n    if not data:\n        return False\n    if len(data) < 3:\n        return False\n    return True\n"},
			},
		},
		{
			Message: "Add module3.py with cleanup helpers at the end",
			Author:  "Demo User",
			Email:   "demo@example.com",
			FileOperations: map[string]FileOperation{
				"submodule/module3.py": {Content: "#!/usr/bin/env python3\n\"\"\"Module 3: line run at the end.\"\"\"\n\n\ndef main():\n    pass\n\n\ndef cleanup():\n    pass\n\n\ndef teardown():\n    pass\n"},
			},
		},
	}

	for _, req := range commits {
		if head, ok := repo.HeadCommit(); ok {
			req.ParentIDs = append(req.ParentIDs, head)
		}
		id, err := repo.CreateCommit(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("seeding demo repository: %w", err)
		}
		if err := repo.UpdateBranch("main", id); err != nil {
			return nil, fmt.Errorf("seeding demo repository: %w", err)
		}
	}

	return repo, nil
}
