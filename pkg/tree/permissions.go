package tree

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// EffectiveMode returns this account's access level on id: AccessOwner if
// the account owns id or any ancestor up to the nearest shared boundary,
// otherwise the mode of the nearest ancestor (including id itself) that
// carries a non-deleted UserAccessKey for this account. Per the resolver
// design, only the *nearest* shared ancestor's grant governs; permissions
// are not intersected across the whole chain.
func (t *Tree) EffectiveMode(ctx context.Context, v view, id lbmodel.FileID) (lbmodel.AccessMode, error) {
	me := t.account.Owner()
	cur := id

	for depth := 0; depth < MaxTreeDepth; depth++ {
		file, ok, err := v.merged(ctx, cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		if file.Metadata.Owner.Equal(me) {
			return lbmodel.AccessOwner, nil
		}
		for _, grant := range file.Metadata.UserAccessKeys {
			if !grant.Deleted && grant.Recipient.Equal(me) {
				return grant.Mode, nil
			}
		}
		if file.Metadata.Parent == cur {
			break
		}
		cur = file.Metadata.Parent
	}

	return 0, lberrors.NewInsufficientPermission(idString(id))
}

// RequireMode errors with InsufficientPermission unless this account's
// effective mode on id is at least min.
func (t *Tree) RequireMode(ctx context.Context, v view, id lbmodel.FileID, min lbmodel.AccessMode) error {
	mode, err := t.EffectiveMode(ctx, v, id)
	if err != nil {
		return err
	}
	if mode < min {
		return lberrors.NewInsufficientPermission(idString(id))
	}
	return nil
}
