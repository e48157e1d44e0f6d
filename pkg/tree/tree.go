// Package tree provides the lazy merged view over an account's base and
// local metadata layers: one file record per id, picked from local when
// present and falling back to base otherwise, plus the derived state
// (plaintext names, symmetric keys, parent chains, deletion status,
// children) that only makes sense once records are merged.
//
// Nothing in this package talks to a server or a blob store directly; it
// is the in-memory tree the engine stages mutations against before they
// are pushed.
package tree

import (
	"context"
	"sync"

	"github.com/lockbook/lockbook-core/pkg/crypto"
	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore"
)

// MaxTreeDepth bounds every ancestor walk (key resolution, parent chains,
// cycle detection, link traversal). No legitimate tree nests this deep;
// hitting it means a cycle slipped past validation somewhere upstream.
const MaxTreeDepth = 500

// view is the read surface both the bare tree and a staged overlay
// implement, so validation and derived-state lookups can run identically
// against either one.
type view interface {
	merged(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error)
	allMerged(ctx context.Context) ([]lbmodel.SignedFile, error)
}

// Tree is the merged view `local.or(base)` for one account, along with the
// memoized caches the component design calls for. It is safe for
// concurrent use; callers needing a consistent multi-step read should hold
// their own higher-level lock (the engine's metadata mutex).
type Tree struct {
	account *lbmodel.Account
	base    metadatastore.Store
	local   metadatastore.Store

	mu            sync.RWMutex
	keyCache      map[lbmodel.FileID]crypto.SymmetricKey
	nameCache     map[lbmodel.FileID]string
	parentChain   map[lbmodel.FileID][]lbmodel.FileID
	deletedCache  map[lbmodel.FileID]bool
	childrenCache map[lbmodel.FileID][]lbmodel.FileID
	childrenBuilt bool
}

// New constructs a tree over the given base and local metadata stores for
// account. The stores are not owned by the tree; closing them is the
// caller's responsibility.
func New(account *lbmodel.Account, base, local metadatastore.Store) *Tree {
	return &Tree{
		account: account,
		base:    base,
		local:   local,
	}
}

// merged implements view for the bare tree: local takes precedence over
// base.
func (t *Tree) merged(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	if file, ok, err := t.local.Get(ctx, id); err != nil {
		return lbmodel.SignedFile{}, false, err
	} else if ok {
		return file, true, nil
	}
	return t.base.Get(ctx, id)
}

// Merged returns the merged record for id, picking local over base.
func (t *Tree) Merged(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	return t.merged(ctx, id)
}

// allMerged returns every id visible in the merged view, base entries
// shadowed by a local entry with the same id deduplicated in favor of
// local. Metadatastore has no parent index, so this full scan is how the
// tree builds one on demand.
func (t *Tree) allMerged(ctx context.Context) ([]lbmodel.SignedFile, error) {
	localFiles, err := t.local.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[lbmodel.FileID]struct{}, len(localFiles))
	out := make([]lbmodel.SignedFile, 0, len(localFiles))
	for _, f := range localFiles {
		seen[f.Metadata.ID] = struct{}{}
		out = append(out, f)
	}

	baseFiles, err := t.base.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range baseFiles {
		if _, ok := seen[f.Metadata.ID]; ok {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// AllMerged returns every file visible in the merged view.
func (t *Tree) AllMerged(ctx context.Context) ([]lbmodel.SignedFile, error) {
	return t.allMerged(ctx)
}

// Account returns the account this tree is merging and staging for.
func (t *Tree) Account() *lbmodel.Account {
	return t.account
}

// Root returns the account's root file: the unique merged record whose
// parent is itself.
func (t *Tree) Root(ctx context.Context) (lbmodel.SignedFile, error) {
	all, err := t.allMerged(ctx)
	if err != nil {
		return lbmodel.SignedFile{}, err
	}
	for _, f := range all {
		if f.Metadata.Parent == f.Metadata.ID {
			return f, nil
		}
	}
	return lbmodel.SignedFile{}, lberrors.NewRootNonexistent()
}

// isBare reports whether v is this tree's own unstaged view. Caches are
// only ever read from or written to for the bare view: a staged overlay's
// merged() differs from the tree's, so memoizing its results on the tree
// would leak uncommitted (or since-discarded) state into later bare reads.
func (t *Tree) isBare(v view) bool {
	tv, ok := v.(*Tree)
	return ok && tv == t
}

// SeedBase writes file directly into the base layer, bypassing staging.
// It exists for the engine's sync path: a record pulled from the server
// lands in base, never local, since local is reserved for this device's
// own uncommitted edits.
func (t *Tree) SeedBase(ctx context.Context, file lbmodel.SignedFile) error {
	if err := t.base.Put(ctx, file); err != nil {
		return err
	}
	t.invalidate()
	return nil
}

// SeedBaseAll writes every file into the base layer in one transaction,
// the batched form of SeedBase the sync engine's promote phase uses to
// land a whole pulled/merged set at once.
func (t *Tree) SeedBaseAll(ctx context.Context, files []lbmodel.SignedFile) error {
	if len(files) == 0 {
		return nil
	}
	err := t.base.WithTransaction(ctx, func(tx metadatastore.Layer) error {
		for _, f := range files {
			if err := tx.Put(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.invalidate()
	return nil
}

// Base returns id's raw base-layer record, without falling through to
// local. The sync engine uses this to compare the three versions
// (base/local/remote) a merge reconciles, which the merged view alone
// cannot distinguish.
func (t *Tree) Base(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	return t.base.Get(ctx, id)
}

// Local returns id's raw local-layer record, without falling through to
// base. ok is false when this device has no pending edit for id, which
// is a different fact than "id's merged record equals its base record".
func (t *Tree) Local(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	return t.local.Get(ctx, id)
}

// AllLocal returns every record held in the local layer: this device's
// full set of pending, unpushed edits.
func (t *Tree) AllLocal(ctx context.Context) ([]lbmodel.SignedFile, error) {
	return t.local.All(ctx)
}

// DiscardLocal removes id's local-layer record, used once a sync has
// folded it into base (the merged result now equals base) or once a
// merge resolves it away entirely (e.g. a local move overridden by a
// remote rename with no conflict).
func (t *Tree) DiscardLocal(ctx context.Context, id lbmodel.FileID) error {
	if err := t.local.Delete(ctx, id); err != nil {
		return err
	}
	t.invalidate()
	return nil
}

// Prune removes id's metadata record from both layers, used by sync's
// final phase once both sides agree id is deleted and it has no
// surviving descendants. It does not touch blob storage; a caller
// pruning a document is responsible for reclaiming its blob itself.
func (t *Tree) Prune(ctx context.Context, id lbmodel.FileID) error {
	if err := t.local.Delete(ctx, id); err != nil {
		return err
	}
	if err := t.base.Delete(ctx, id); err != nil {
		return err
	}
	t.invalidate()
	return nil
}

// invalidate clears every memoized cache. Called after every promotion,
// per the component design's "all caches are invalidated whenever a
// staged diff is promoted".
func (t *Tree) invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keyCache = nil
	t.nameCache = nil
	t.parentChain = nil
	t.deletedCache = nil
	t.childrenCache = nil
	t.childrenBuilt = false
}
