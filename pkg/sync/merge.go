package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/lockbook/lockbook-core/pkg/blobstore"
	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/tree"
)

// mergePlan is merge's pure output: what to write where, computed without
// touching any store. Nothing in it is committed until promote runs, so a
// validation failure between merge and promote leaves both layers exactly
// as they were before Sync started.
type mergePlan struct {
	// delta is keyed by id and holds the final record every touched id
	// should resolve to in the simulated merged view used for validation.
	// toBase entries are inserted first, pushAfterMerge entries second, so
	// a follow-up local edit on an id shadows its own base adoption the
	// same way local always shadows base at runtime.
	delta map[lbmodel.FileID]lbmodel.SignedFile

	toBase         []lbmodel.SignedFile
	discardLocal   []lbmodel.FileID
	pushAfterMerge []lbmodel.SignedFile
}

func newMergePlan() *mergePlan {
	return &mergePlan{delta: make(map[lbmodel.FileID]lbmodel.SignedFile)}
}

func (p *mergePlan) adoptRemote(f lbmodel.SignedFile) {
	p.toBase = append(p.toBase, f)
	p.delta[f.Metadata.ID] = f
}

func (p *mergePlan) authorLocal(f lbmodel.SignedFile) {
	p.pushAfterMerge = append(p.pushAfterMerge, f)
	p.delta[f.Metadata.ID] = f
}

// merge runs §4.6 step 4 over every id touched by this round: the ids
// with a pending local edit, plus every id the pull returned. It reads
// only; nothing is written to either store.
func (e *Engine) merge(ctx context.Context, pulled []lbmodel.SignedFile) (*mergePlan, error) {
	pulledByID := make(map[lbmodel.FileID]lbmodel.SignedFile, len(pulled))
	for _, f := range pulled {
		pulledByID[f.Metadata.ID] = f
	}

	localFiles, err := e.tree.AllLocal(ctx)
	if err != nil {
		return nil, err
	}

	plan := newMergePlan()
	seen := make(map[lbmodel.FileID]struct{}, len(localFiles)+len(pulled))

	for _, local := range localFiles {
		id := local.Metadata.ID
		seen[id] = struct{}{}

		remote, hasRemote := pulledByID[id]
		if !hasRemote {
			// Only local changed: keep local, nothing to do.
			continue
		}

		if remote.Metadata.Equal(local.Metadata) {
			// Our own prior push, echoed back by the pull: converge on it.
			plan.adoptRemote(remote)
			plan.discardLocal = append(plan.discardLocal, id)
			continue
		}

		base, _, err := e.tree.Base(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := e.resolveConflict(ctx, plan, pulledByID, base, local, remote); err != nil {
			return nil, err
		}
		plan.discardLocal = append(plan.discardLocal, id)
	}

	for id, remote := range pulledByID {
		if _, ok := seen[id]; ok {
			continue
		}
		// Only remote changed (or this id has no local counterpart at
		// all): adopt it into base outright.
		plan.adoptRemote(remote)
	}

	if err := e.resolveCrossIDCollisions(ctx, plan); err != nil {
		return nil, err
	}

	return plan, nil
}

// resolveCrossIDCollisions handles concurrent creation: two different ids
// independently given the same name under the same parent, each adopted by
// the loops above with no idea the other exists. Left alone this produces
// two siblings with colliding (parent, name), which validateSiblingNames
// rejects forever since nothing about the stored state changes between
// retries. One id per colliding group keeps its name; every other is
// suffixed, the same recovery authorSuffixedRename already performs for a
// same-id double rename, just triggered by a different id instead of a
// different local/remote version of one id. The id chosen to keep its name
// is deterministic (lowest FileID) so every client resolves the collision
// the same way without coordinating.
func (e *Engine) resolveCrossIDCollisions(ctx context.Context, plan *mergePlan) error {
	byParent := make(map[lbmodel.FileID][]lbmodel.FileID)
	for id, f := range plan.delta {
		if f.Metadata.IsDeleted || f.Metadata.Parent == id {
			continue
		}
		byParent[f.Metadata.Parent] = append(byParent[f.Metadata.Parent], id)
	}

	for parent, ids := range byParent {
		groups := groupByName(plan.delta, ids)
		for _, group := range groups {
			if len(group) < 2 {
				continue
			}
			sort.Slice(group, func(i, j int) bool { return group[i].String() < group[j].String() })

			taken, err := e.existingSiblingNames(ctx, parent, plan.delta)
			if err != nil {
				return err
			}
			// The winner keeps its name and joins taken so later losers in
			// this same group suffix against it too.
			taken = append(taken, plan.delta[group[0]])

			for _, loserID := range group[1:] {
				renamed, err := e.authorCollisionSuffixedRename(ctx, plan.delta[loserID], taken)
				if err != nil {
					return err
				}
				plan.authorLocal(renamed)
				taken = append(taken, renamed)
			}
		}
	}
	return nil
}

// groupByName partitions ids (all sharing one parent) into buckets of
// mutually name-colliding ids, comparing via SecretFileName.Equal so no
// name is ever decrypted just to detect a collision.
func groupByName(delta map[lbmodel.FileID]lbmodel.SignedFile, ids []lbmodel.FileID) [][]lbmodel.FileID {
	var groups [][]lbmodel.FileID
	for _, id := range ids {
		name := delta[id].Metadata.Name
		placed := false
		for i, group := range groups {
			if delta[group[0]].Metadata.Name.Equal(name) {
				groups[i] = append(group, id)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []lbmodel.FileID{id})
		}
	}
	return groups
}

// existingSiblingNames returns the non-deleted children of parent already
// stored in the tree that this merge round doesn't itself touch, the set a
// suffixed name must avoid colliding with in addition to this round's own
// adoptions.
func (e *Engine) existingSiblingNames(ctx context.Context, parent lbmodel.FileID, delta map[lbmodel.FileID]lbmodel.SignedFile) ([]lbmodel.SignedFile, error) {
	children, err := e.tree.Children(ctx, e.tree, parent)
	if err != nil {
		return nil, err
	}
	out := make([]lbmodel.SignedFile, 0, len(children))
	for _, childID := range children {
		if _, inDelta := delta[childID]; inDelta {
			continue
		}
		f, ok, err := e.tree.Merged(ctx, childID)
		if err != nil {
			return nil, err
		}
		if ok && !f.Metadata.IsDeleted {
			out = append(out, f)
		}
	}
	return out, nil
}

// authorCollisionSuffixedRename finds the smallest integer suffix for f's
// own name that collides with no name in taken, and re-signs f under it.
func (e *Engine) authorCollisionSuffixedRename(ctx context.Context, f lbmodel.SignedFile, taken []lbmodel.SignedFile) (lbmodel.SignedFile, error) {
	fileKey, err := e.tree.KeyFor(ctx, e.tree, f.Metadata.ID)
	if err != nil {
		return lbmodel.SignedFile{}, fmt.Errorf("resolve key for colliding file %s: %w", f.Metadata.ID, err)
	}
	plaintext, err := f.Metadata.Name.Reveal(fileKey)
	if err != nil {
		return lbmodel.SignedFile{}, fmt.Errorf("reveal name for colliding file %s: %w", f.Metadata.ID, err)
	}

	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", plaintext, n)
		sealed, err := lbmodel.SealName(fileKey, candidate)
		if err != nil {
			return lbmodel.SignedFile{}, err
		}
		collision := false
		for _, t := range taken {
			if t.Metadata.ID == f.Metadata.ID {
				continue
			}
			if t.Metadata.Name.Equal(sealed) {
				collision = true
				break
			}
		}
		if collision {
			continue
		}
		renamed := f
		renamed.Metadata.Name = sealed
		if err := e.tree.Sign(&renamed); err != nil {
			return lbmodel.SignedFile{}, err
		}
		return renamed, nil
	}
}

// resolveConflict reconciles one id where both base->local and
// base->remote changed, applying each of §4.6 step 4's five per-aspect
// rules. The record that results becomes base; any follow-up local
// authoring (a suffixed rename, a conflict document) is queued for the
// post-merge push.
func (e *Engine) resolveConflict(
	ctx context.Context,
	plan *mergePlan,
	pulledByID map[lbmodel.FileID]lbmodel.SignedFile,
	base lbmodel.SignedFile,
	local, remote lbmodel.SignedFile,
) error {
	merged := remote // remote is the default winner for every field we don't special-case below
	id := merged.Metadata.ID

	// Deletion: either side deleting wins outright.
	if local.Metadata.IsDeleted || remote.Metadata.IsDeleted {
		merged.Metadata.IsDeleted = true
		plan.adoptRemote(merged)
		return nil
	}

	// Shares: union of grants, a revoked key on either side wins.
	merged.Metadata.UserAccessKeys = mergeUserAccessKeys(base.Metadata.UserAccessKeys, local.Metadata.UserAccessKeys, remote.Metadata.UserAccessKeys)

	// Parent: if both moved to different parents, accept remote's move
	// unless it would create a cycle, in which case the file stays where
	// it was before local's own move.
	bothMoved := local.Metadata.Parent != base.Metadata.Parent && remote.Metadata.Parent != base.Metadata.Parent
	if bothMoved && local.Metadata.Parent != remote.Metadata.Parent {
		if cyclic, err := e.wouldCycle(ctx, pulledByID, id, remote.Metadata.Parent); err != nil {
			return err
		} else if cyclic {
			merged.Metadata.Parent = base.Metadata.Parent
			merged.Metadata.FolderAccessKey = base.Metadata.FolderAccessKey
			merged.Metadata.Owner = base.Metadata.Owner
		}
	}

	plan.adoptRemote(merged)

	// Name: if both renamed to different names, keep remote's choice in
	// the adopted record, then re-author local's intended name as a
	// suffixed follow-up edit so it is not silently lost.
	bothRenamed := !local.Metadata.Name.Equal(base.Metadata.Name) && !remote.Metadata.Name.Equal(base.Metadata.Name)
	if bothRenamed && !local.Metadata.Name.Equal(remote.Metadata.Name) {
		renamed, err := e.authorSuffixedRename(ctx, merged, local)
		if err != nil {
			return err
		}
		plan.authorLocal(renamed)
	}

	// Document content: if both sides wrote new, different content, remote's
	// bytes stay at the canonical id; local's become a new sibling conflict
	// doc rather than being silently discarded.
	localWroteDoc := local.Metadata.DocumentHmac != nil && (base.Metadata.DocumentHmac == nil || *local.Metadata.DocumentHmac != *base.Metadata.DocumentHmac)
	remoteWroteDoc := remote.Metadata.DocumentHmac != nil && (base.Metadata.DocumentHmac == nil || *remote.Metadata.DocumentHmac != *base.Metadata.DocumentHmac)
	if local.Metadata.Type.Tag == lbmodel.FileTypeDocument && localWroteDoc && remoteWroteDoc &&
		*local.Metadata.DocumentHmac != *remote.Metadata.DocumentHmac {
		conflictDoc, err := e.authorConflictDocument(ctx, merged, local)
		if err != nil {
			return err
		}
		plan.authorLocal(conflictDoc)
	}

	return nil
}

// wouldCycle reports whether parenting id under candidateParent would
// create a cycle, walking candidateParent's ancestor chain and preferring
// a same-round pulled record over whatever the tree currently stores, so
// a batch of remote moves is checked against itself consistently.
func (e *Engine) wouldCycle(ctx context.Context, pulledByID map[lbmodel.FileID]lbmodel.SignedFile, id, candidateParent lbmodel.FileID) (bool, error) {
	cur := candidateParent
	for depth := 0; depth < tree.MaxTreeDepth; depth++ {
		if cur == id {
			return true, nil
		}
		var file lbmodel.SignedFile
		if f, ok := pulledByID[cur]; ok {
			file = f
		} else {
			f, ok, err := e.tree.Merged(ctx, cur)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			file = f
		}
		if file.Metadata.Parent == cur {
			return false, nil
		}
		cur = file.Metadata.Parent
	}
	return false, fmt.Errorf("ancestor walk for %s exceeds max depth", id)
}

// authorSuffixedRename builds the follow-up local edit that recovers
// local's intended name under a "name-1", "name-2", ... suffix once
// remote's conflicting rename has won the canonical slot.
func (e *Engine) authorSuffixedRename(ctx context.Context, adopted, local lbmodel.SignedFile) (lbmodel.SignedFile, error) {
	fileKey, err := e.tree.KeyFor(ctx, e.tree, local.Metadata.ID)
	if err != nil {
		return lbmodel.SignedFile{}, fmt.Errorf("resolve key for renamed file %s: %w", local.Metadata.ID, err)
	}
	plaintext, err := local.Metadata.Name.Reveal(fileKey)
	if err != nil {
		return lbmodel.SignedFile{}, fmt.Errorf("reveal local name for %s: %w", local.Metadata.ID, err)
	}

	siblings, err := e.tree.Children(ctx, e.tree, adopted.Metadata.Parent)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	suffixed, err := suffixedName(ctx, e.tree, siblings, fileKey, plaintext, local.Metadata.ID)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}

	sealed, err := lbmodel.SealName(fileKey, suffixed)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}

	renamed := adopted
	renamed.Metadata.Name = sealed
	if err := e.tree.Sign(&renamed); err != nil {
		return lbmodel.SignedFile{}, err
	}
	return renamed, nil
}

// suffixedName finds the smallest integer suffix that collides with no
// non-deleted sibling's name.
func suffixedName(ctx context.Context, t *tree.Tree, siblings []lbmodel.FileID, fileKey crypto.SymmetricKey, base string, self lbmodel.FileID) (string, error) {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		sealedCandidate, err := lbmodel.SealName(fileKey, candidate)
		if err != nil {
			return "", err
		}

		collision := false
		for _, sibID := range siblings {
			if sibID == self {
				continue
			}
			sibFile, ok, err := t.Merged(ctx, sibID)
			if err != nil {
				return "", err
			}
			if !ok || sibFile.Metadata.IsDeleted {
				continue
			}
			if sibFile.Metadata.Name.Equal(sealedCandidate) {
				collision = true
				break
			}
		}
		if !collision {
			return candidate, nil
		}
	}
}

// authorConflictDocument creates a brand new sibling document under
// adopted's parent named "<original>-<shortpk>-<timestamp>", carrying
// local's bytes, since the canonical id keeps remote's content.
func (e *Engine) authorConflictDocument(ctx context.Context, adopted, local lbmodel.SignedFile) (lbmodel.SignedFile, error) {
	localKey, err := e.tree.KeyFor(ctx, e.tree, local.Metadata.ID)
	if err != nil {
		return lbmodel.SignedFile{}, fmt.Errorf("resolve key for conflicted document %s: %w", local.Metadata.ID, err)
	}
	localBlob, ok, err := e.blobs.Get(ctx, blobstore.Key{FileID: local.Metadata.ID, Hmac: *local.Metadata.DocumentHmac})
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	if !ok {
		return lbmodel.SignedFile{}, fmt.Errorf("local content for conflicted document %s is missing from the blob store", local.Metadata.ID)
	}
	plaintext, err := crypto.Decrypt(localKey, localBlob)
	if err != nil {
		return lbmodel.SignedFile{}, fmt.Errorf("decrypt local content for %s: %w", local.Metadata.ID, err)
	}

	originalName, err := local.Metadata.Name.Reveal(localKey)
	if err != nil {
		return lbmodel.SignedFile{}, fmt.Errorf("reveal original name for %s: %w", local.Metadata.ID, err)
	}

	account := e.tree.Account()
	shortPK := fmt.Sprintf("%x", account.Owner().PublicKey)
	if len(shortPK) > 8 {
		shortPK = shortPK[:8]
	}
	conflictName := fmt.Sprintf("%s-%s-%d", originalName, shortPK, local.Metadata.LastModified.Unix())

	parentKey, err := e.tree.KeyFor(ctx, e.tree, adopted.Metadata.Parent)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	newKey, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	folderKey, err := tree.WrapFolderAccessKey(parentKey, newKey)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	sealedName, err := lbmodel.SealName(parentKey, conflictName)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}

	sealedContent, err := crypto.Encrypt(newKey, plaintext)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	hmac := lbmodel.DocumentHmac(crypto.HMAC(newKey, plaintext))
	newID := lbmodel.NewFileID()
	if err := e.blobs.Put(ctx, blobstore.Key{FileID: newID, Hmac: hmac}, sealedContent); err != nil {
		return lbmodel.SignedFile{}, err
	}

	doc := lbmodel.SignedFile{
		Metadata: lbmodel.FileMetadata{
			ID:              newID,
			Type:            lbmodel.Document(),
			Parent:          adopted.Metadata.Parent,
			Name:            sealedName,
			Owner:           adopted.Metadata.Owner,
			DocumentHmac:    &hmac,
			FolderAccessKey: folderKey,
		},
	}
	if err := e.tree.Sign(&doc); err != nil {
		return lbmodel.SignedFile{}, err
	}
	return doc, nil
}

// mergeUserAccessKeys unions grants by recipient; a Deleted=true entry on
// either side dominates, per "a revoked key on either side wins."
func mergeUserAccessKeys(base, local, remote []lbmodel.UserAccessKey) []lbmodel.UserAccessKey {
	byRecipient := make(map[string]lbmodel.UserAccessKey)
	order := make([]string, 0)

	apply := func(keys []lbmodel.UserAccessKey) {
		for _, k := range keys {
			rk := fmt.Sprintf("%x", k.Recipient.PublicKey)
			existing, ok := byRecipient[rk]
			if !ok {
				byRecipient[rk] = k
				order = append(order, rk)
				continue
			}
			if k.Deleted {
				existing.Deleted = true
			} else if !existing.Deleted && len(k.Sealed) > 0 {
				existing.Sealed = k.Sealed
				existing.Mode = k.Mode
			}
			byRecipient[rk] = existing
		}
	}
	apply(base)
	apply(local)
	apply(remote)

	out := make([]lbmodel.UserAccessKey, 0, len(order))
	for _, rk := range order {
		out = append(out, byRecipient[rk])
	}
	return out
}
