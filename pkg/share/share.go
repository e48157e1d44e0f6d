// Package share implements the account-facing half of sharing that sits
// above pkg/tree: listing shares granted to this account that have not yet
// been linked into its own tree, and accepting one by creating that link.
//
// Permission enforcement itself (required ≥ Write on a shared ancestor to
// mutate it) lives in pkg/tree, which has the key material and merged view
// this package only reads through.
package share

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/tree"
)

// Resolver lists and accepts shares for one account's tree.
type Resolver struct {
	tree *tree.Tree
}

// New builds a share resolver over t.
func New(t *tree.Tree) *Resolver {
	return &Resolver{tree: t}
}

// PendingShares returns every file this account holds a non-deleted
// UserAccessKey on, directly, that is not already reachable from this
// account's own root through an accepted Link. Per spec.md §4.7, a share
// stays pending until accept_share links it in; this never happens
// automatically.
func (r *Resolver) PendingShares(ctx context.Context) ([]lbmodel.SignedFile, error) {
	all, err := r.tree.AllMerged(ctx)
	if err != nil {
		return nil, err
	}

	linked, err := r.acceptedTargets(ctx)
	if err != nil {
		return nil, err
	}

	me := r.tree.Account().Owner()
	var pending []lbmodel.SignedFile
	for _, file := range all {
		if file.Metadata.Owner.Equal(me) {
			continue
		}
		if _, ok := linked[file.Metadata.ID]; ok {
			continue
		}
		for _, grant := range file.Metadata.UserAccessKeys {
			if !grant.Deleted && grant.Recipient.Equal(me) {
				pending = append(pending, file)
				break
			}
		}
	}
	return pending, nil
}

// acceptedTargets returns the set of file ids already targeted by a Link
// reachable from this account's own root, so PendingShares can exclude
// shares the account has already accepted.
func (r *Resolver) acceptedTargets(ctx context.Context) (map[lbmodel.FileID]struct{}, error) {
	root, err := r.tree.Root(ctx)
	if err != nil {
		return nil, err
	}

	targets := make(map[lbmodel.FileID]struct{})
	visited := make(map[lbmodel.FileID]struct{})
	queue := []lbmodel.FileID{root.Metadata.ID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}

		file, ok, err := r.tree.Merged(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if file.Metadata.Type.Tag == lbmodel.FileTypeLink {
			targets[file.Metadata.Type.Target] = struct{}{}
			continue
		}

		children, err := r.tree.Children(ctx, r.tree, id)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}

	return targets, nil
}

// AcceptShare links sharedID into folder under name, the only way a
// pending share becomes visible in this account's own tree.
func (r *Resolver) AcceptShare(ctx context.Context, folder, sharedID lbmodel.FileID, name string) (lbmodel.FileID, error) {
	return r.tree.AcceptShare(ctx, folder, sharedID, name)
}
