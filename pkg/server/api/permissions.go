package api

import (
	"context"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// maxAncestorWalk bounds the ancestor walk the same way pkg/tree's
// MaxTreeDepth does client-side, so a corrupt or cyclic parent chain
// cannot spin the server forever.
const maxAncestorWalk = 500

// effectiveMode re-grounds pkg/tree.EffectiveMode's ancestor walk against
// the server's own store rows: ownership or the nearest non-deleted
// UserAccessKey grant going up the parent chain decides the signer's
// access. It is not the same *Tree method because the server has no
// base/local merged view to walk — only its own authoritative rows — but
// the algorithm is identical.
func (s *Service) effectiveMode(ctx context.Context, signer []byte, id lbmodel.FileID) (lbmodel.AccessMode, bool) {
	me := lbmodel.Owner{PublicKey: signer}
	cur := id

	for depth := 0; depth < maxAncestorWalk; depth++ {
		file, ok, err := s.store.GetByID(ctx, cur)
		if err != nil || !ok {
			return 0, false
		}
		if file.Metadata.Owner.Equal(me) {
			return lbmodel.AccessOwner, true
		}
		for _, grant := range file.Metadata.UserAccessKeys {
			if !grant.Deleted && grant.Recipient.Equal(me) {
				return grant.Mode, true
			}
		}
		if file.Metadata.Parent == cur {
			break
		}
		cur = file.Metadata.Parent
	}
	return 0, false
}

// authorize requires signer to have at least min access to the diff's
// target id. A brand-new file (diff.Old == nil) is authorized by parent
// access instead, since the file itself doesn't exist server-side yet.
func (s *Service) authorize(ctx context.Context, signer []byte, diff lbmodel.FileDiff, min lbmodel.AccessMode) error {
	target := diff.New.Metadata.ID
	if diff.Old == nil {
		target = diff.New.Metadata.Parent
	}
	mode, ok := s.effectiveMode(ctx, signer, target)
	if !ok || mode < min {
		return errNotPermissioned
	}
	return nil
}

func (s *Service) authorizeRead(ctx context.Context, signer []byte, id lbmodel.FileID) error {
	mode, ok := s.effectiveMode(ctx, signer, id)
	if !ok || mode < lbmodel.AccessRead {
		return errNotPermissioned
	}
	return nil
}
