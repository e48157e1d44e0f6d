package tree

import (
	"context"
	"strings"

	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// IDToPath renders id's position in the tree as a "/"-joined path from
// root, built from id's own parent chain. Root itself is "/". Links are
// not followed: a file whose parent chain does not reach this account's
// root, such as one reachable only through an accepted share's link,
// returns FileNonexistent.
func (t *Tree) IDToPath(ctx context.Context, id lbmodel.FileID) (string, error) {
	root, err := t.Root(ctx)
	if err != nil {
		return "", err
	}
	if id == root.Metadata.ID {
		return "/", nil
	}

	chain, err := t.ParentChain(ctx, t, id)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 || chain[len(chain)-1] != root.Metadata.ID {
		return "", lberrors.NewFileNonexistent(idString(id))
	}

	segments := make([]string, 0, len(chain)+1)
	for i := len(chain) - 2; i >= 0; i-- {
		name, err := t.NameFor(ctx, t, chain[i])
		if err != nil {
			return "", err
		}
		segments = append(segments, name)
	}
	name, err := t.NameFor(ctx, t, id)
	if err != nil {
		return "", err
	}
	segments = append(segments, name)

	return "/" + strings.Join(segments, "/"), nil
}

// PathToID resolves a "/"-joined path to a file id, walking from root one
// component at a time and transparently following links encountered along
// the way, bounded by MaxTreeDepth hops total so a link cycle cannot spin
// forever.
func (t *Tree) PathToID(ctx context.Context, path string) (lbmodel.FileID, error) {
	root, err := t.Root(ctx)
	if err != nil {
		return lbmodel.FileID{}, err
	}

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return root.Metadata.ID, nil
	}

	cur := root.Metadata.ID
	hops := 0
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" {
			return lbmodel.FileID{}, lberrors.NewPathContainsEmptyFileName()
		}

		cur, err = t.resolveChildLink(ctx, cur, &hops)
		if err != nil {
			return lbmodel.FileID{}, err
		}

		next, err := t.findChildByName(ctx, cur, segment)
		if err != nil {
			return lbmodel.FileID{}, err
		}
		cur = next
	}

	return t.resolveChildLink(ctx, cur, &hops)
}

// findChildByName returns the non-deleted child of parent whose plaintext
// name equals name.
func (t *Tree) findChildByName(ctx context.Context, parent lbmodel.FileID, name string) (lbmodel.FileID, error) {
	children, err := t.Children(ctx, t, parent)
	if err != nil {
		return lbmodel.FileID{}, err
	}
	for _, childID := range children {
		file, ok, err := t.merged(ctx, childID)
		if err != nil {
			return lbmodel.FileID{}, err
		}
		if !ok || file.Metadata.IsDeleted {
			continue
		}
		childName, err := t.NameFor(ctx, t, childID)
		if err != nil {
			return lbmodel.FileID{}, err
		}
		if childName == name {
			return childID, nil
		}
	}
	return lbmodel.FileID{}, lberrors.NewFileNonexistent(idString(parent))
}

// resolveChildLink follows id through at most one Link record, returning its
// target. Links are rejected at creation time if their target is itself a
// link (see lberrors.NewSharedLinkToLink), so any link encountered here
// should already resolve in a single hop; a link whose target is still a
// link is treated as a dangling target rather than chained through, which is
// the behavior legacy trees created before that check existed fall back to.
// hops is a shared counter across an entire path resolution, not just one
// segment, so a path with many linked segments still can't exceed the
// overall depth bound.
func (t *Tree) resolveChildLink(ctx context.Context, id lbmodel.FileID, hops *int) (lbmodel.FileID, error) {
	if *hops > MaxTreeDepth {
		return lbmodel.FileID{}, lberrors.NewCycle(idString(id))
	}
	*hops++

	file, ok, err := t.merged(ctx, id)
	if err != nil {
		return lbmodel.FileID{}, err
	}
	if !ok {
		return lbmodel.FileID{}, lberrors.NewFileNonexistent(idString(id))
	}
	if file.Metadata.Type.Tag != lbmodel.FileTypeLink {
		return id, nil
	}

	target := file.Metadata.Type.Target
	targetFile, ok, err := t.merged(ctx, target)
	if err != nil {
		return lbmodel.FileID{}, err
	}
	if !ok || targetFile.Metadata.Type.Tag == lbmodel.FileTypeLink {
		return lbmodel.FileID{}, lberrors.NewLinkTargetNonexistent(idString(id))
	}
	return target, nil
}
