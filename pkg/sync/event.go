package sync

import (
	"github.com/trolleyhq/trolley/pkg/models"
)

// EventKind identifies a canonical change event.
type EventKind int

const (
	// EventItemUpserted carries the full post-mutation item; it covers
	// both inserts and wholesale replacements.
	EventItemUpserted EventKind = iota
	// EventItemRemoved carries only the removed item's ID.
	EventItemRemoved
	// EventBulkReplaced swaps the entire item set, used for initial load,
	// explicit refreshes, and recovery after a failed bulk mutation.
	EventBulkReplaced
)

func (k EventKind) String() string {
	switch k {
	case EventItemUpserted:
		return "ItemUpserted"
	case EventItemRemoved:
		return "ItemRemoved"
	case EventBulkReplaced:
		return "BulkReplaced"
	default:
		return "InvalidEvent"
	}
}

// Event is the canonical shape every inbound change signal is normalized
// into, whether it came back as a direct mutation response or was pushed on
// the feed by another participant (or this one, echoed back).
type Event struct {
	Kind   EventKind
	Item   *models.Item  // set for EventItemUpserted
	ItemID models.ItemID // set for EventItemRemoved
	Items  []models.Item // set for EventBulkReplaced
}

// ItemUpserted builds an upsert event for one item.
func ItemUpserted(item models.Item) Event {
	return Event{Kind: EventItemUpserted, Item: &item, ItemID: item.ID}
}

// ItemRemoved builds a removal event for one item ID.
func ItemRemoved(id models.ItemID) Event {
	return Event{Kind: EventItemRemoved, ItemID: id}
}

// BulkReplaced builds an event replacing the whole item set.
func BulkReplaced(items []models.Item) Event {
	return Event{Kind: EventBulkReplaced, Items: items}
}

// normalizeNotification converts a raw feed notification into a canonical
// event. The second return is false when the notification carries nothing
// applicable (e.g. a create/update without an item payload).
func normalizeNotification(n models.ChangeNotification) (Event, bool) {
	switch n.Action {
	case models.ActionCreate, models.ActionUpdate:
		if n.Item == nil {
			return Event{}, false
		}
		return ItemUpserted(*n.Item), true
	case models.ActionDelete:
		if n.ItemID.IsZero() {
			return Event{}, false
		}
		return ItemRemoved(n.ItemID), true
	default:
		return Event{}, false
	}
}
