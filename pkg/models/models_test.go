package models

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShareToken(t *testing.T) {
	hexToken := regexp.MustCompile(`^[0-9a-f]{16}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := NewShareToken()
		assert.Regexp(t, hexToken, token)
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestSortItems(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := Item{ID: NewItemID(), Name: "a", SortOrder: 2, CreatedAt: base}
	b := Item{ID: NewItemID(), Name: "b", SortOrder: 0, CreatedAt: base.Add(time.Minute)}
	// c and d share a sort order; creation time breaks the tie.
	c := Item{ID: NewItemID(), Name: "c", SortOrder: 1, CreatedAt: base.Add(2 * time.Minute)}
	d := Item{ID: NewItemID(), Name: "d", SortOrder: 1, CreatedAt: base.Add(time.Minute)}

	input := []Item{a, b, c, d}
	sorted := SortItems(input)

	var names []string
	for _, it := range sorted {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, names)

	// Input order untouched.
	assert.Equal(t, "a", input[0].Name)
}

func TestItemIDJSONRoundTrip(t *testing.T) {
	id := NewItemID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+id.String()+`"`, string(data))

	var decoded ItemID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestItemIDCBORRoundTrip(t *testing.T) {
	id := NewItemID()

	data, err := id.MarshalCBOR()
	require.NoError(t, err)

	var decoded ItemID
	require.NoError(t, decoded.UnmarshalCBOR(data))
	assert.Equal(t, id, decoded)

	// A list RecordID must not decode into an ItemID.
	listData, err := NewListID().MarshalCBOR()
	require.NoError(t, err)
	assert.Error(t, decoded.UnmarshalCBOR(listData))
}

func TestItemPatch(t *testing.T) {
	t.Run("applies only set fields", func(t *testing.T) {
		qty := "2"
		item := Item{Name: "Milk", Qty: &qty, Bought: false}

		name := "Oat milk"
		bought := true
		patch := ItemPatch{Name: &name, Bought: &bought}
		patch.ApplyTo(&item)

		assert.Equal(t, "Oat milk", item.Name)
		assert.True(t, item.Bought)
		require.NotNil(t, item.Qty)
		assert.Equal(t, "2", *item.Qty)
	})

	t.Run("marshals only set fields", func(t *testing.T) {
		bought := false
		data, err := json.Marshal(ItemPatch{Bought: &bought})
		require.NoError(t, err)
		assert.JSONEq(t, `{"bought":false}`, string(data))

		data, err = json.Marshal(ItemPatch{})
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, ItemPatch{}.IsEmpty())
		name := "x"
		assert.False(t, ItemPatch{Name: &name}.IsEmpty())
	})
}
