package sync

import (
	"github.com/trolleyhq/trolley/pkg/models"
)

// itemSet is the canonical local mirror of a list's items, keyed by ID.
// It is only ever mutated through apply or through the optimistic edit
// helpers; the owning Session serializes both behind one mutex.
type itemSet map[models.ItemID]models.Item

// apply folds one canonical event into the set. Rules:
//
//   - upsert for an unknown ID inserts; for a known ID it replaces the
//     record wholesale. Last writer wins on the full record — there is no
//     field-level merge, so concurrent edits to different fields of the
//     same item by two participants will have the later-arriving record
//     silently discard the earlier one's change. That is an accepted
//     simplification, not a bug.
//   - removal of an unknown ID is a no-op.
//   - bulk replace swaps the entire set.
//
// apply is idempotent: re-applying the same event leaves the set unchanged.
// Events must be applied strictly in arrival order; the caller provides
// that serialization.
func (s itemSet) apply(ev Event) {
	switch ev.Kind {
	case EventItemUpserted:
		if ev.Item != nil {
			s[ev.Item.ID] = *ev.Item
		}
	case EventItemRemoved:
		delete(s, ev.ItemID)
	case EventBulkReplaced:
		for id := range s {
			delete(s, id)
		}
		for _, item := range ev.Items {
			s[item.ID] = item
		}
	}
}

// snapshot returns the items as an unordered slice copy.
func (s itemSet) snapshot() []models.Item {
	items := make([]models.Item, 0, len(s))
	for _, item := range s {
		items = append(items, item)
	}
	return items
}
