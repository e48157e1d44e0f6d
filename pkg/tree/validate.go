package tree

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Validate runs the invariant suite over v, seeded from changed and every
// id reachable from it through parent links (its full ancestor chain up
// to root). Signature verification and folder-access-key chain
// consistency (invariants 9 and 10) are not re-checked here: they require
// cryptographic material (the signer's public key at signing time, the
// device's own key material) that only the layers actually performing
// signing and key unwrapping have, namely pkg/crypto at record-build time
// and the sync engine when it accepts remote records.
func Validate(ctx context.Context, t *Tree, v view, changed []lbmodel.FileID) error {
	seen := make(map[lbmodel.FileID]struct{})
	var toCheck []lbmodel.FileID

	for _, id := range changed {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		toCheck = append(toCheck, id)

		chain, err := t.ParentChain(ctx, v, id)
		if err != nil {
			return err
		}
		for _, ancestor := range chain {
			if _, ok := seen[ancestor]; ok {
				continue
			}
			seen[ancestor] = struct{}{}
			toCheck = append(toCheck, ancestor)
		}
	}

	for _, id := range toCheck {
		if err := validateOne(ctx, t, v, id); err != nil {
			return err
		}
	}

	return validateSiblingNames(ctx, t, v, toCheck)
}

func validateOne(ctx context.Context, t *Tree, v view, id lbmodel.FileID) error {
	file, ok, err := v.merged(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil // pruned mid-check by a concurrent change; nothing to validate
	}
	meta := file.Metadata

	if err := validateDeletedNotUpdated(ctx, t, v, meta); err != nil {
		return err
	}

	if meta.Parent != meta.ID {
		parent, ok, err := v.merged(ctx, meta.Parent)
		if err != nil {
			return err
		}
		if !ok {
			return lberrors.NewFileParentNonexistent(idString(meta.ID))
		}
		if parent.Metadata.Type.Tag != lbmodel.FileTypeFolder {
			return lberrors.NewNonFolderWithChildren(idString(meta.Parent))
		}
		if meta.Type.Tag != lbmodel.FileTypeLink && !meta.Owner.Equal(parent.Metadata.Owner) {
			return lberrors.NewOwnershipViolation(idString(meta.ID))
		}
	}

	if meta.Type.Tag != lbmodel.FileTypeFolder {
		children, err := t.Children(ctx, v, meta.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return lberrors.NewNonFolderWithChildren(idString(meta.ID))
		}
	}

	cyclic, err := hasCycle(ctx, v, meta.ID)
	if err != nil {
		return err
	}
	if cyclic {
		return lberrors.NewCycle(idString(meta.ID))
	}

	if name, err := t.NameFor(ctx, v, meta.ID); err == nil {
		if name == "" {
			return lberrors.NewFileNameEmpty()
		}
		if containsSlash(name) {
			return lberrors.NewFileNameContainsSlash()
		}
	}

	return nil
}

// validateDeletedNotUpdated rejects a staged change that mutates anything
// beyond the is_deleted flag on a record the tree already considered
// deleted, per "cannot update a deleted file".
func validateDeletedNotUpdated(ctx context.Context, t *Tree, v view, meta lbmodel.FileMetadata) error {
	before, ok, err := t.merged(ctx, meta.ID)
	if err != nil || !ok || !before.Metadata.IsDeleted {
		return err
	}
	diff := lbmodel.EditFileDiff(before, lbmodel.SignedFile{Metadata: meta})
	for _, change := range diff.Changes() {
		if change != lbmodel.DiffDeleted {
			return lberrors.NewDeletedFileUpdated(idString(meta.ID))
		}
	}
	return nil
}

// validateSiblingNames checks invariant 3 (no HMAC-name collisions among
// non-deleted siblings) for every parent touched by toCheck.
func validateSiblingNames(ctx context.Context, t *Tree, v view, toCheck []lbmodel.FileID) error {
	parents := make(map[lbmodel.FileID]struct{})
	for _, id := range toCheck {
		file, ok, err := v.merged(ctx, id)
		if err != nil {
			return err
		}
		if !ok || file.Metadata.Parent == id {
			continue
		}
		parents[file.Metadata.Parent] = struct{}{}
	}

	for parent := range parents {
		children, err := t.Children(ctx, v, parent)
		if err != nil {
			return err
		}
		var names []lbmodel.SecretFileName
		var ids []lbmodel.FileID
		for _, childID := range children {
			child, ok, err := v.merged(ctx, childID)
			if err != nil {
				return err
			}
			if !ok || child.Metadata.IsDeleted {
				continue
			}
			for i, existing := range names {
				if existing.Equal(child.Metadata.Name) {
					return lberrors.NewPathConflict([]string{idString(ids[i]), idString(childID)})
				}
			}
			names = append(names, child.Metadata.Name)
			ids = append(ids, childID)
		}
	}
	return nil
}

func containsSlash(s string) bool {
	for _, r := range s {
		if r == '/' {
			return true
		}
	}
	return false
}

func idString(id lbmodel.FileID) string {
	return id.String()
}
