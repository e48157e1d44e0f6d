package tree

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// step advances one hop toward root: it returns the parent of id, or
// terminal=true if id is root (parent == id) or id is missing entirely
// (handled separately by the parent-exists invariant, not treated as a
// cycle here).
func step(ctx context.Context, v view, id lbmodel.FileID) (parent lbmodel.FileID, terminal bool, err error) {
	file, ok, err := v.merged(ctx, id)
	if err != nil {
		return lbmodel.FileID{}, false, err
	}
	if !ok {
		return lbmodel.FileID{}, true, nil
	}
	if file.Metadata.Parent == id {
		return id, true, nil
	}
	return file.Metadata.Parent, false, nil
}

// hasCycle walks start's ancestor chain with Floyd's tortoise-and-hare: a
// slow pointer advances one hop per round, a fast pointer advances two. If
// they ever land on the same id before either reaches root, the chain
// loops back on itself. Bounded by MaxTreeDepth so a malformed or
// adversarial chain can't spin forever.
func hasCycle(ctx context.Context, v view, start lbmodel.FileID) (bool, error) {
	slow, fast := start, start

	for i := 0; i < MaxTreeDepth; i++ {
		var terminal bool
		var err error

		slow, terminal, err = step(ctx, v, slow)
		if err != nil {
			return false, err
		}
		if terminal {
			return false, nil
		}

		for j := 0; j < 2; j++ {
			fast, terminal, err = step(ctx, v, fast)
			if err != nil {
				return false, err
			}
			if terminal {
				return false, nil
			}
		}

		if slow == fast {
			return true, nil
		}
	}
	return true, nil
}
