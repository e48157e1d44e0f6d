package sync

import "context"

// validateMerge runs the full invariant suite over merge's plan without
// committing it: a staged overlay simulates the post-merge tree exactly
// as promote would leave it, so a failure here means promote never runs
// and both stores stay exactly as they were before Sync started.
func (e *Engine) validateMerge(ctx context.Context, plan *mergePlan) error {
	s := e.tree.Stage()
	for _, f := range plan.delta {
		s.Put(f)
	}
	return s.Validate(ctx)
}

// promote commits a validated plan: remote-adopted and merge-resolved
// records land in base, their superseded local counterparts are dropped,
// and any record merge itself authored (a suffixed rename, a conflict
// document) is staged into local for the next sync's push.
func (e *Engine) promote(ctx context.Context, plan *mergePlan) error {
	if err := e.tree.SeedBaseAll(ctx, plan.toBase); err != nil {
		return err
	}
	for _, id := range plan.discardLocal {
		if err := e.tree.DiscardLocal(ctx, id); err != nil {
			return err
		}
	}
	if len(plan.pushAfterMerge) == 0 {
		return nil
	}
	s := e.tree.Stage()
	for _, f := range plan.pushAfterMerge {
		s.Put(f)
	}
	return s.Promote(ctx)
}
