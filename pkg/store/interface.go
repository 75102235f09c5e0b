// Package store defines the persistence interface for trolley lists and
// items, abstracted over three backends:
//
//   - memory: mutex-guarded maps, the default for tests and single-node runs
//   - postgres: GORM ORM over PostgreSQL with AutoMigrate schema management
//   - surreal: SurrealDB over the official SDK with CBOR marshaling
//
// The memory backend is authoritative for semantics; the persistent backends
// mirror it. Conventions shared by all implementations:
//
//   - Get methods return (nil, nil) for missing records, never a not-found
//     error; callers translate nil into their own not-found handling.
//   - Create methods assign the record ID, the creation timestamp, and (for
//     items) the sort order when unset. An item's sort order is assigned as
//     the list's current maximum plus one, so appends never collide.
//   - Delete methods are idempotent: deleting an absent record is not an
//     error.
//   - List methods return records in canonical order (sort order ascending,
//     creation time as tie-break) and an empty slice for no results.
package store

import (
	"context"

	"github.com/trolleyhq/trolley/pkg/models"
)

// Store is the persistence interface for lists and their items.
type Store interface {
	// CreateList persists a new list, assigning ID, share token, and
	// creation timestamp when unset.
	CreateList(ctx context.Context, list *models.List) error

	// GetListByToken resolves a share token. Returns (nil, nil) when no
	// list carries the token.
	GetListByToken(ctx context.Context, token string) (*models.List, error)

	// CreateItem persists a new item, assigning ID and creation timestamp
	// when unset. When item.SortOrder is negative the store assigns the
	// list's current maximum sort order plus one (zero for an empty list).
	CreateItem(ctx context.Context, item *models.Item) error

	// GetItem fetches one item scoped to a list. Returns (nil, nil) when
	// the item does not exist under that list.
	GetItem(ctx context.Context, listID models.ListID, itemID models.ItemID) (*models.Item, error)

	// UpdateItem applies a partial update and returns the updated item.
	// Returns (nil, nil) when the item does not exist under that list.
	UpdateItem(ctx context.Context, listID models.ListID, itemID models.ItemID, patch models.ItemPatch) (*models.Item, error)

	// DeleteItem removes one item. Removing an absent item is a no-op.
	DeleteItem(ctx context.Context, listID models.ListID, itemID models.ItemID) error

	// DeleteBoughtItems removes every bought item on the list.
	DeleteBoughtItems(ctx context.Context, listID models.ListID) error

	// ReorderItems sets each listed item's sort order to its position in
	// ids (0, 1, 2, ...). Items of the list not named in ids keep their
	// sort order; IDs not found under the list are skipped.
	ReorderItems(ctx context.Context, listID models.ListID, ids []models.ItemID) error

	// ListItems returns the list's items in canonical order.
	ListItems(ctx context.Context, listID models.ListID) ([]*models.Item, error)

	// Migrate prepares backend schema. A no-op for schemaless backends.
	Migrate(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
