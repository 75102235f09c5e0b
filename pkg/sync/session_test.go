package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolleyhq/trolley/pkg/models"
)

// fakeBackend is an in-memory Backend with switchable failure modes.
type fakeBackend struct {
	mu    stdsync.Mutex
	list  models.List
	items map[models.ItemID]models.Item

	failCreate  bool
	failUpdate  bool
	failDelete  bool
	failClear   bool
	failReorder bool
}

var errBackendDown = errors.New("backend unavailable")

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		list: models.List{
			ID:         models.NewListID(),
			Name:       "Weekly Shop",
			ShareToken: models.NewShareToken(),
		},
		items: make(map[models.ItemID]models.Item),
	}
}

func (b *fakeBackend) put(item models.Item) models.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[item.ID] = item
	return item
}

func (b *fakeBackend) FetchList(ctx context.Context, token string) (*models.List, []models.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if token != b.list.ShareToken {
		return nil, nil, nil
	}
	list := b.list
	items := make([]models.Item, 0, len(b.items))
	for _, item := range b.items {
		items = append(items, item)
	}
	return &list, items, nil
}

func (b *fakeBackend) CreateItem(ctx context.Context, token string, params models.CreateItemParams) (*models.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCreate {
		return nil, errBackendDown
	}
	item := models.Item{
		ID:        models.NewItemID(),
		ListID:    b.list.ID,
		Name:      params.Name,
		Price:     params.Price,
		SortOrder: len(b.items),
	}
	if params.Qty != "" {
		item.Qty = &params.Qty
	}
	if params.Unit != "" {
		item.Unit = &params.Unit
	}
	b.items[item.ID] = item
	return &item, nil
}

func (b *fakeBackend) UpdateItem(ctx context.Context, token string, id models.ItemID, patch models.ItemPatch) (*models.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failUpdate {
		return nil, errBackendDown
	}
	item, ok := b.items[id]
	if !ok {
		return nil, nil
	}
	patch.ApplyTo(&item)
	b.items[id] = item
	return &item, nil
}

func (b *fakeBackend) DeleteItem(ctx context.Context, token string, id models.ItemID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDelete {
		return errBackendDown
	}
	delete(b.items, id)
	return nil
}

func (b *fakeBackend) ClearBought(ctx context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failClear {
		return errBackendDown
	}
	for id, item := range b.items {
		if item.Bought {
			delete(b.items, id)
		}
	}
	return nil
}

func (b *fakeBackend) Reorder(ctx context.Context, token string, ids []models.ItemID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failReorder {
		return errBackendDown
	}
	for pos, id := range ids {
		item, ok := b.items[id]
		if !ok {
			return errors.New("unknown item in reorder")
		}
		item.SortOrder = pos
		b.items[id] = item
	}
	return nil
}

func openTestSession(t *testing.T, backend *fakeBackend) *Session {
	t.Helper()
	s, err := Open(context.Background(), backend, backend.list.ShareToken, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenUnknownToken(t *testing.T) {
	backend := newFakeBackend()
	_, err := Open(context.Background(), backend, "0000000000000000", Options{})
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestSessionAddItem(t *testing.T) {
	backend := newFakeBackend()
	s := openTestSession(t, backend)
	ctx := context.Background()

	item, err := s.AddItem(ctx, models.CreateItemParams{Name: "  Milk  ", Qty: "2"})
	require.NoError(t, err)
	assert.Equal(t, "Milk", item.Name, "name is trimmed")
	assert.Equal(t, 0, item.SortOrder)

	view := s.CurrentView()
	require.Len(t, view.VisibleItems, 1)
	assert.Equal(t, item.ID, view.VisibleItems[0].ID)

	_, err = s.AddItem(ctx, models.CreateItemParams{Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyName)

	neg := -1.0
	_, err = s.AddItem(ctx, models.CreateItemParams{Name: "Bread", Price: &neg})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestSessionAddItemFailureLeavesStateUntouched(t *testing.T) {
	backend := newFakeBackend()
	s := openTestSession(t, backend)
	backend.failCreate = true

	_, err := s.AddItem(context.Background(), models.CreateItemParams{Name: "Milk"})
	require.ErrorIs(t, err, errBackendDown)
	assert.Empty(t, s.CurrentView().VisibleItems)
}

func TestSessionUpdateItemConfirms(t *testing.T) {
	backend := newFakeBackend()
	seeded := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk"})
	s := openTestSession(t, backend)

	name := "Oat Milk"
	require.NoError(t, s.UpdateItem(context.Background(), seeded.ID, models.ItemPatch{Name: &name}))
	assert.Equal(t, "Oat Milk", s.CurrentView().VisibleItems[0].Name)
}

func TestSessionUpdateItemRevertsOnFailure(t *testing.T) {
	backend := newFakeBackend()
	seeded := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk"})
	s := openTestSession(t, backend)
	backend.failUpdate = true

	var views []int
	s.onChange = func() { views = append(views, len(s.CurrentView().VisibleItems)) }

	err := s.ToggleBought(context.Background(), seeded.ID)
	require.ErrorIs(t, err, errBackendDown)

	view := s.CurrentView()
	require.Len(t, view.VisibleItems, 1)
	assert.False(t, view.VisibleItems[0].Bought, "failed toggle reverts")
	assert.Len(t, views, 2, "optimistic apply then revert both observable")
}

func TestSessionUpdateVanishedItem(t *testing.T) {
	backend := newFakeBackend()
	seeded := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk"})
	s := openTestSession(t, backend)

	// Another participant deleted it server-side after our session loaded.
	backend.mu.Lock()
	delete(backend.items, seeded.ID)
	backend.mu.Unlock()

	bought := true
	err := s.UpdateItem(context.Background(), seeded.ID, models.ItemPatch{Bought: &bought})
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Empty(t, s.CurrentView().VisibleItems, "server-missing item dropped locally")
}

func TestSessionDeleteItem(t *testing.T) {
	backend := newFakeBackend()
	seeded := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk"})
	s := openTestSession(t, backend)

	require.NoError(t, s.DeleteItem(context.Background(), seeded.ID))
	assert.Empty(t, s.CurrentView().VisibleItems)
	assert.ErrorIs(t, s.DeleteItem(context.Background(), seeded.ID), ErrItemNotFound)
}

func TestSessionDeleteItemRevertsOnFailure(t *testing.T) {
	backend := newFakeBackend()
	seeded := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk"})
	s := openTestSession(t, backend)
	backend.failDelete = true

	err := s.DeleteItem(context.Background(), seeded.ID)
	require.ErrorIs(t, err, errBackendDown)
	assert.Len(t, s.CurrentView().VisibleItems, 1, "failed delete restores the item")
}

func TestSessionFeedEchoDoesNotResurrectPendingDelete(t *testing.T) {
	backend := newFakeBackend()
	seeded := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk"})
	s := openTestSession(t, backend)

	// Simulate the feed echoing an older update while our delete request is
	// still in flight.
	s.mu.Lock()
	delete(s.items, seeded.ID)
	s.pendingDeletes[seeded.ID] = struct{}{}
	s.mu.Unlock()

	s.handleNotification(models.ChangeNotification{
		Action: models.ActionUpdate,
		ListID: backend.list.ID,
		ItemID: seeded.ID,
		Item:   &seeded,
	})
	assert.Empty(t, s.CurrentView().VisibleItems, "echo suppressed mid-delete")

	// Once the delete resolves, suppression ends.
	s.mu.Lock()
	delete(s.pendingDeletes, seeded.ID)
	s.mu.Unlock()

	s.handleNotification(models.ChangeNotification{
		Action: models.ActionCreate,
		ListID: backend.list.ID,
		ItemID: seeded.ID,
		Item:   &seeded,
	})
	assert.Len(t, s.CurrentView().VisibleItems, 1)
}

func TestSessionIgnoresOtherListNotifications(t *testing.T) {
	backend := newFakeBackend()
	s := openTestSession(t, backend)

	foreign := makeItem("Not ours", 0)
	s.handleNotification(models.ChangeNotification{
		Action: models.ActionCreate,
		ListID: models.NewListID(),
		ItemID: foreign.ID,
		Item:   &foreign,
	})
	assert.Empty(t, s.CurrentView().VisibleItems)
}

func TestSessionClearBought(t *testing.T) {
	backend := newFakeBackend()
	milk := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk", Bought: true})
	backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Bread", SortOrder: 1})
	s := openTestSession(t, backend)

	require.NoError(t, s.ClearBought(context.Background()))
	view := s.CurrentView()
	require.Len(t, view.VisibleItems, 1)
	assert.Equal(t, "Bread", view.VisibleItems[0].Name)
	assert.NotContains(t, backend.items, milk.ID)

	// Nothing bought left: a second clear is a no-op without a request.
	backend.failClear = true
	assert.NoError(t, s.ClearBought(context.Background()))
}

func TestSessionClearBoughtRevertsOnFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk", Bought: true})
	s := openTestSession(t, backend)
	backend.failClear = true

	err := s.ClearBought(context.Background())
	require.ErrorIs(t, err, errBackendDown)
	assert.Len(t, s.CurrentView().VisibleItems, 1)
}

func TestSessionReorder(t *testing.T) {
	backend := newFakeBackend()
	a := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "A", SortOrder: 0})
	b := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "B", SortOrder: 1})
	c := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "C", SortOrder: 2})
	s := openTestSession(t, backend)
	ctx := context.Background()

	require.NoError(t, s.Reorder(ctx, []models.ItemID{c.ID, a.ID, b.ID}))

	view := s.CurrentView()
	require.Len(t, view.VisibleItems, 3)
	assert.Equal(t, "C", view.VisibleItems[0].Name)
	assert.Equal(t, "A", view.VisibleItems[1].Name)
	assert.Equal(t, "B", view.VisibleItems[2].Name)
	assert.Equal(t, 0, view.VisibleItems[0].SortOrder, "orders rewritten to positional rank")

	backend.mu.Lock()
	assert.Equal(t, 0, backend.items[c.ID].SortOrder)
	assert.Equal(t, 2, backend.items[b.ID].SortOrder)
	backend.mu.Unlock()
}

func TestSessionReorderRejectedWhileFiltered(t *testing.T) {
	backend := newFakeBackend()
	a := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "A"})
	s := openTestSession(t, backend)

	s.SetFilter(FilterUnbought)
	err := s.Reorder(context.Background(), []models.ItemID{a.ID})
	assert.ErrorIs(t, err, ErrFilteredReorder)

	s.SetFilter(FilterAll)
	assert.NoError(t, s.Reorder(context.Background(), []models.ItemID{a.ID}))
}

func TestSessionReorderStaleSequence(t *testing.T) {
	backend := newFakeBackend()
	a := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "A", SortOrder: 0})
	backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "B", SortOrder: 1})
	s := openTestSession(t, backend)
	ctx := context.Background()

	assert.ErrorIs(t, s.Reorder(ctx, []models.ItemID{a.ID}), ErrStaleReorder,
		"partial sequence")
	assert.ErrorIs(t, s.Reorder(ctx, []models.ItemID{a.ID, models.NewItemID()}), ErrStaleReorder,
		"unknown member")
}

func TestSessionReorderRevertsOnFailure(t *testing.T) {
	backend := newFakeBackend()
	a := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "A", SortOrder: 0})
	b := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "B", SortOrder: 1})
	s := openTestSession(t, backend)
	backend.failReorder = true

	err := s.Reorder(context.Background(), []models.ItemID{b.ID, a.ID})
	require.ErrorIs(t, err, errBackendDown)

	view := s.CurrentView()
	assert.Equal(t, "A", view.VisibleItems[0].Name, "failed reorder reverts to prior order")
}

func TestSessionMove(t *testing.T) {
	backend := newFakeBackend()
	backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "A", SortOrder: 0})
	b := backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "B", SortOrder: 1})
	backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "C", SortOrder: 2})
	s := openTestSession(t, backend)

	require.NoError(t, s.Move(context.Background(), b.ID, 0))
	view := s.CurrentView()
	assert.Equal(t, "B", view.VisibleItems[0].Name)
	assert.Equal(t, "A", view.VisibleItems[1].Name)
}

func TestSessionRefresh(t *testing.T) {
	backend := newFakeBackend()
	s := openTestSession(t, backend)

	// Server state moved on while we were away.
	backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk"})

	require.NoError(t, s.Refresh(context.Background()))
	assert.Len(t, s.CurrentView().VisibleItems, 1)
}

func TestSessionCurrentView(t *testing.T) {
	backend := newFakeBackend()
	price := 1.80
	qty := "2"
	backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Milk", Qty: &qty, Price: &price, Bought: true})
	backend.put(models.Item{ID: models.NewItemID(), ListID: backend.list.ID, Name: "Bread", SortOrder: 1})
	s := openTestSession(t, backend)

	view := s.CurrentView()
	assert.Equal(t, backend.list.ID, view.List.ID)
	assert.Equal(t, FilterAll, view.Filter)
	assert.Equal(t, Counts{All: 2, Bought: 1, Unbought: 1}, view.Counts)
	assert.InDelta(t, 3.60, view.Billing.Total, 1e-9)
	assert.InDelta(t, 3.60, view.Billing.BoughtTotal, 1e-9)
	assert.Equal(t, StateDisconnected, view.Status, "no feed configured")

	s.SetFilter(FilterBought)
	view = s.CurrentView()
	require.Len(t, view.VisibleItems, 1)
	assert.Equal(t, "Milk", view.VisibleItems[0].Name)
	assert.Equal(t, Counts{All: 2, Bought: 1, Unbought: 1}, view.Counts,
		"counts unaffected by the filter")
}
