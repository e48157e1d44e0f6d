package tree

import (
	"context"
	"fmt"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// NameFor returns the plaintext name of id, decrypting it under its own
// key on first access. Memoized in name_cache for the bare tree view only;
// a staged view's names are computed fresh every time since they apply to
// one in-flight operation and may never be promoted.
func (t *Tree) NameFor(ctx context.Context, v view, id lbmodel.FileID) (string, error) {
	bare := t.isBare(v)

	if bare {
		t.mu.RLock()
		if t.nameCache != nil {
			if name, ok := t.nameCache[id]; ok {
				t.mu.RUnlock()
				return name, nil
			}
		}
		t.mu.RUnlock()
	}

	file, ok, err := v.merged(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("file %s not found while resolving name", id)
	}

	key, err := t.KeyFor(ctx, v, id)
	if err != nil {
		return "", err
	}
	name, err := file.Metadata.Name.Reveal(key)
	if err != nil {
		return "", fmt.Errorf("decrypt name for %s: %w", id, err)
	}

	if bare {
		t.mu.Lock()
		if t.nameCache == nil {
			t.nameCache = make(map[lbmodel.FileID]string)
		}
		t.nameCache[id] = name
		t.mu.Unlock()
	}

	return name, nil
}

// ParentChain returns id's ancestors from its immediate parent up to and
// including root, terminating early (without error) at the first missing
// parent. The chain excludes id itself. Memoized for the bare view only.
func (t *Tree) ParentChain(ctx context.Context, v view, id lbmodel.FileID) ([]lbmodel.FileID, error) {
	bare := t.isBare(v)

	if bare {
		t.mu.RLock()
		if t.parentChain != nil {
			if chain, ok := t.parentChain[id]; ok {
				t.mu.RUnlock()
				return append([]lbmodel.FileID(nil), chain...), nil
			}
		}
		t.mu.RUnlock()
	}

	var chain []lbmodel.FileID
	cur := id
	for depth := 0; depth < MaxTreeDepth; depth++ {
		file, ok, err := v.merged(ctx, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if file.Metadata.Parent == cur {
			break
		}
		chain = append(chain, file.Metadata.Parent)
		cur = file.Metadata.Parent
	}

	if bare {
		t.mu.Lock()
		if t.parentChain == nil {
			t.parentChain = make(map[lbmodel.FileID][]lbmodel.FileID)
		}
		t.parentChain[id] = chain
		t.mu.Unlock()
	}

	return append([]lbmodel.FileID(nil), chain...), nil
}

// IsDeleted reports whether id or any ancestor up to root carries
// is_deleted, per invariant 4: a folder's subtree is deleted for
// visibility purposes the moment the folder itself (or any ancestor) is
// marked deleted. The walk stops without error at the first ancestor
// missing from v, as for a shared file whose owner's root this account
// does not hold. Memoized for the bare view only.
func (t *Tree) IsDeleted(ctx context.Context, v view, id lbmodel.FileID) (bool, error) {
	bare := t.isBare(v)

	if bare {
		t.mu.RLock()
		if t.deletedCache != nil {
			if deleted, ok := t.deletedCache[id]; ok {
				t.mu.RUnlock()
				return deleted, nil
			}
		}
		t.mu.RUnlock()
	}

	file, ok, err := v.merged(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("file %s not found while resolving deletion state", id)
	}

	deleted := file.Metadata.IsDeleted
	if !deleted && file.Metadata.Parent != file.Metadata.ID {
		if _, parentOK, err := v.merged(ctx, file.Metadata.Parent); err != nil {
			return false, err
		} else if parentOK {
			parentDeleted, err := t.IsDeleted(ctx, v, file.Metadata.Parent)
			if err != nil {
				return false, err
			}
			deleted = parentDeleted
		}
	}

	if bare {
		t.mu.Lock()
		if t.deletedCache == nil {
			t.deletedCache = make(map[lbmodel.FileID]bool)
		}
		t.deletedCache[id] = deleted
		t.mu.Unlock()
	}

	return deleted, nil
}

// Children returns the direct children of parent, built lazily by
// scanning every merged file once and indexing by Parent. For the bare
// view the index is cached wholesale (children_cache); a staged view
// rebuilds it every call, since the delta can change from one staged
// operation to the next.
func (t *Tree) Children(ctx context.Context, v view, parent lbmodel.FileID) ([]lbmodel.FileID, error) {
	if t.isBare(v) {
		if err := t.buildChildrenCache(ctx, v); err != nil {
			return nil, err
		}
		t.mu.RLock()
		defer t.mu.RUnlock()
		return append([]lbmodel.FileID(nil), t.childrenCache[parent]...), nil
	}

	index, err := childrenIndex(ctx, v)
	if err != nil {
		return nil, err
	}
	return index[parent], nil
}

func (t *Tree) buildChildrenCache(ctx context.Context, v view) error {
	t.mu.RLock()
	built := t.childrenBuilt
	t.mu.RUnlock()
	if built {
		return nil
	}

	index, err := childrenIndex(ctx, v)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.childrenCache = index
	t.childrenBuilt = true
	t.mu.Unlock()
	return nil
}

func childrenIndex(ctx context.Context, v view) (map[lbmodel.FileID][]lbmodel.FileID, error) {
	all, err := v.allMerged(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[lbmodel.FileID][]lbmodel.FileID)
	for _, f := range all {
		if f.Metadata.Parent == f.Metadata.ID {
			continue // root has no parent to index under
		}
		index[f.Metadata.Parent] = append(index[f.Metadata.Parent], f.Metadata.ID)
	}
	return index, nil
}
