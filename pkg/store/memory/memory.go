// Package memory provides a mutex-guarded in-memory implementation of the
// [github.com/trolleyhq/trolley/pkg/store.Store] interface. It backs tests
// and single-node deployments where durability is not required.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/trolleyhq/trolley/pkg/models"
	"github.com/trolleyhq/trolley/pkg/store"
)

// MemoryStore keeps lists and items in maps keyed by ID. All operations
// take the store mutex, so it is safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	lists        map[models.ListID]models.List
	listsByToken map[string]models.ListID
	items        map[models.ItemID]models.Item
}

var _ store.Store = (*MemoryStore)(nil)

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{
		lists:        make(map[models.ListID]models.List),
		listsByToken: make(map[string]models.ListID),
		items:        make(map[models.ItemID]models.Item),
	}
}

func (s *MemoryStore) CreateList(ctx context.Context, list *models.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if list.ID.IsZero() {
		list.ID = models.NewListID()
	}
	if list.ShareToken == "" {
		list.ShareToken = models.NewShareToken()
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now().UTC()
	}

	s.lists[list.ID] = *list
	s.listsByToken[list.ShareToken] = list.ID
	return nil
}

func (s *MemoryStore) GetListByToken(ctx context.Context, token string) (*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.listsByToken[token]
	if !ok {
		return nil, nil
	}
	list := s.lists[id]
	return &list, nil
}

func (s *MemoryStore) CreateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID.IsZero() {
		item.ID = models.NewItemID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.SortOrder < 0 {
		item.SortOrder = s.nextSortOrderLocked(item.ListID)
	}

	s.items[item.ID] = *item
	return nil
}

// nextSortOrderLocked returns max+1 over the list's items, or zero for an
// empty list. Caller must hold the mutex.
func (s *MemoryStore) nextSortOrderLocked(listID models.ListID) int {
	next := 0
	for _, it := range s.items {
		if it.ListID == listID && it.SortOrder >= next {
			next = it.SortOrder + 1
		}
	}
	return next
}

func (s *MemoryStore) GetItem(ctx context.Context, listID models.ListID, itemID models.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok || item.ListID != listID {
		return nil, nil
	}
	return &item, nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, listID models.ListID, itemID models.ItemID, patch models.ItemPatch) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || item.ListID != listID {
		return nil, nil
	}

	patch.ApplyTo(&item)
	s.items[itemID] = item
	return &item, nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, listID models.ListID, itemID models.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[itemID]; ok && item.ListID == listID {
		delete(s.items, itemID)
	}
	return nil
}

func (s *MemoryStore) DeleteBoughtItems(ctx context.Context, listID models.ListID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range s.items {
		if item.ListID == listID && item.Bought {
			delete(s.items, id)
		}
	}
	return nil
}

func (s *MemoryStore) ReorderItems(ctx context.Context, listID models.ListID, ids []models.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pos, id := range ids {
		item, ok := s.items[id]
		if !ok || item.ListID != listID {
			continue
		}
		item.SortOrder = pos
		s.items[id] = item
	}
	return nil
}

func (s *MemoryStore) ListItems(ctx context.Context, listID models.ListID) ([]*models.Item, error) {
	s.mu.RLock()
	var owned []models.Item
	for _, item := range s.items {
		if item.ListID == listID {
			owned = append(owned, item)
		}
	}
	s.mu.RUnlock()

	sorted := models.SortItems(owned)
	result := make([]*models.Item, len(sorted))
	for i := range sorted {
		result[i] = &sorted[i]
	}
	return result, nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
