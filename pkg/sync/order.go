package sync

import (
	"github.com/trolleyhq/trolley/pkg/models"
)

// NextSortOrder returns the sort order for an item appended to the list:
// the current maximum plus one, or zero for an empty list. Sort orders need
// not be contiguous; only their relative order matters.
func NextSortOrder(items []models.Item) int {
	next := 0
	for _, item := range items {
		if item.SortOrder >= next {
			next = item.SortOrder + 1
		}
	}
	return next
}

// MoveItem relocates one item within the canonical sequence and returns the
// resulting full ID sequence: the item is removed from its current position
// and reinserted at to (clamped to the sequence bounds). The caller applies
// the result with a full reorder, which reassigns every item's sort order to
// its positional rank — rewriting all indices on every relocation keeps them
// dense and collision-free, which is affordable at shopping-list sizes.
//
// ordered must already be in canonical order. If id is not present the
// sequence is returned unchanged.
func MoveItem(ordered []models.Item, id models.ItemID, to int) []models.ItemID {
	ids := make([]models.ItemID, 0, len(ordered))
	from := -1
	for i, item := range ordered {
		if item.ID == id {
			from = i
		}
		ids = append(ids, item.ID)
	}
	if from < 0 {
		return ids
	}

	ids = append(ids[:from], ids[from+1:]...)
	if to < 0 {
		to = 0
	}
	if to > len(ids) {
		to = len(ids)
	}
	ids = append(ids, models.ItemID{})
	copy(ids[to+1:], ids[to:])
	ids[to] = id
	return ids
}
