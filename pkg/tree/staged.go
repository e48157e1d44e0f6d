package tree

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore"
)

// staged is a transient overlay placed above a Tree for the duration of a
// single operation: merged(id) picks from delta first, then falls through
// to the tree's own local-over-base view. Nothing here is visible to
// other callers of the tree until Promote runs.
type staged struct {
	tree  *Tree
	delta map[lbmodel.FileID]lbmodel.SignedFile
}

// Stage opens a new staged view over t with an empty delta.
func (t *Tree) Stage() *staged {
	return &staged{tree: t, delta: make(map[lbmodel.FileID]lbmodel.SignedFile)}
}

// Put records file in the staged delta, shadowing whatever local or base
// currently hold for its id.
func (s *staged) Put(file lbmodel.SignedFile) {
	s.delta[file.Metadata.ID] = file
}

// merged implements view: delta, then local, then base.
func (s *staged) merged(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	if file, ok := s.delta[id]; ok {
		return file, true, nil
	}
	return s.tree.merged(ctx, id)
}

// allMerged implements view: every delta entry, plus every tree entry not
// shadowed by one.
func (s *staged) allMerged(ctx context.Context) ([]lbmodel.SignedFile, error) {
	base, err := s.tree.allMerged(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]lbmodel.SignedFile, 0, len(base)+len(s.delta))
	seen := make(map[lbmodel.FileID]struct{}, len(s.delta))
	for _, f := range s.delta {
		out = append(out, f)
		seen[f.Metadata.ID] = struct{}{}
	}
	for _, f := range base {
		if _, ok := seen[f.Metadata.ID]; ok {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Changed returns the ids the delta touches, the set validation treats as
// its starting points.
func (s *staged) Changed() []lbmodel.FileID {
	ids := make([]lbmodel.FileID, 0, len(s.delta))
	for id := range s.delta {
		ids = append(ids, id)
	}
	return ids
}

// Validate runs the full invariant suite over s, seeded from every id the
// delta touches.
func (s *staged) Validate(ctx context.Context) error {
	return Validate(ctx, s.tree, s, s.Changed())
}

// Promote folds the staged delta into the tree's local layer in a single
// transaction and invalidates every memoized cache. Callers must have
// already validated s; Promote does not validate.
func (s *staged) Promote(ctx context.Context) error {
	if len(s.delta) == 0 {
		return nil
	}
	err := s.tree.local.WithTransaction(ctx, func(tx metadatastore.Layer) error {
		for _, file := range s.delta {
			if err := tx.Put(ctx, file); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.tree.invalidate()
	return nil
}

// Discard drops the staged delta without applying it. It exists mainly
// for symmetry with Promote and to make the discard-on-failure path at
// call sites explicit and self-documenting.
func (s *staged) Discard() {
	s.delta = make(map[lbmodel.FileID]lbmodel.SignedFile)
}
