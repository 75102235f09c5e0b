package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolleyhq/trolley/pkg/models"
)

func makeItem(name string, sortOrder int) models.Item {
	return models.Item{
		ID:        models.NewItemID(),
		Name:      name,
		SortOrder: sortOrder,
	}
}

func TestItemSetApply(t *testing.T) {
	milk := makeItem("Milk", 0)
	bread := makeItem("Bread", 1)

	set := make(itemSet)
	set.apply(ItemUpserted(milk))
	set.apply(ItemUpserted(bread))
	require.Len(t, set, 2)
	assert.Equal(t, milk, set[milk.ID])

	// Re-applying the same event changes nothing.
	set.apply(ItemUpserted(bread))
	require.Len(t, set, 2)

	// Upsert for a known ID replaces the record wholesale.
	renamed := milk
	renamed.Name = "Oat Milk"
	set.apply(ItemUpserted(renamed))
	assert.Equal(t, "Oat Milk", set[milk.ID].Name)

	set.apply(ItemRemoved(bread.ID))
	require.Len(t, set, 1)

	// Removing an unknown ID is a no-op.
	set.apply(ItemRemoved(models.NewItemID()))
	require.Len(t, set, 1)
}

func TestItemSetApplyBulkReplace(t *testing.T) {
	set := make(itemSet)
	set.apply(ItemUpserted(makeItem("Old", 0)))

	eggs := makeItem("Eggs", 0)
	butter := makeItem("Butter", 1)
	set.apply(BulkReplaced([]models.Item{eggs, butter}))

	require.Len(t, set, 2)
	assert.Equal(t, eggs, set[eggs.ID])
	assert.Equal(t, butter, set[butter.ID])
}

func TestItemSetApplyOrderDependence(t *testing.T) {
	item := makeItem("Milk", 0)
	updated := item
	updated.Bought = true

	// Same events, same order, from any starting point converge.
	a := make(itemSet)
	a.apply(ItemUpserted(item))
	a.apply(ItemUpserted(updated))
	a.apply(ItemRemoved(item.ID))

	b := make(itemSet)
	b.apply(ItemUpserted(updated))
	b.apply(ItemRemoved(item.ID))

	assert.Equal(t, a.snapshot(), b.snapshot())
	assert.Empty(t, a)
}

func TestNormalizeNotification(t *testing.T) {
	listID := models.NewListID()
	item := makeItem("Milk", 0)

	ev, ok := normalizeNotification(models.ChangeNotification{
		Action: models.ActionCreate,
		ListID: listID,
		ItemID: item.ID,
		Item:   &item,
	})
	require.True(t, ok)
	assert.Equal(t, EventItemUpserted, ev.Kind)
	assert.Equal(t, item, *ev.Item)

	ev, ok = normalizeNotification(models.ChangeNotification{
		Action: models.ActionDelete,
		ListID: listID,
		ItemID: item.ID,
	})
	require.True(t, ok)
	assert.Equal(t, EventItemRemoved, ev.Kind)
	assert.Equal(t, item.ID, ev.ItemID)

	// An update without a payload carries nothing applicable.
	_, ok = normalizeNotification(models.ChangeNotification{
		Action: models.ActionUpdate,
		ListID: listID,
		ItemID: item.ID,
	})
	assert.False(t, ok)

	// A delete without an ID carries nothing applicable.
	_, ok = normalizeNotification(models.ChangeNotification{
		Action: models.ActionDelete,
		ListID: listID,
	})
	assert.False(t, ok)
}
