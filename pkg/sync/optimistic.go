package sync

import (
	"github.com/trolleyhq/trolley/pkg/models"
)

// pendingEdit is the transient record shadowing one optimistic mutation in
// flight: the pre-mutation values of every item the mutation touched. It
// exists only between the local speculative apply and the request's
// resolution — on success the server-confirmed values overwrite the
// speculative ones and the edit is dropped; on failure revert restores the
// snapshots. It is never persisted.
type pendingEdit struct {
	before []models.Item
}

// beginEdit snapshots the named items ahead of an optimistic mutation.
// IDs not present in the set are skipped (nothing to restore for them).
func (s itemSet) beginEdit(ids ...models.ItemID) pendingEdit {
	edit := pendingEdit{before: make([]models.Item, 0, len(ids))}
	for _, id := range ids {
		if item, ok := s[id]; ok {
			edit.before = append(edit.before, item)
		}
	}
	return edit
}

// revert restores every snapshot taken by beginEdit, undoing the optimistic
// mutation: updated items regain their previous values, deleted items are
// reinserted. Reverting is idempotent — restoring the same snapshot twice
// is a no-op.
func (s itemSet) revert(edit pendingEdit) {
	for _, item := range edit.before {
		s[item.ID] = item
	}
}
