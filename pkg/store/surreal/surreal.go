// Package surreal implements the [github.com/trolleyhq/trolley/pkg/store.Store]
// interface on SurrealDB using the official SDK.
//
// The connection is configured with the surrealcbor codec rather than the
// default marshaler: SurrealDB speaks CBOR internally, and the codec is what
// makes time.Time values and the typed record IDs round-trip correctly. The
// typed IDs marshal themselves to RecordIDs, so models are passed to the SDK
// directly and queries stay parameterized throughout.
package surreal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/trolleyhq/trolley/pkg/models"
	"github.com/trolleyhq/trolley/pkg/store"
)

// Config holds the SurrealDB connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store implements the store interface using SurrealDB.
type Store struct {
	db *surrealdb.DB
}

var _ store.Store = (*Store)(nil)

// New connects to SurrealDB, authenticates, and selects the configured
// namespace and database.
func New(ctx context.Context, cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)
	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate defines the unique index on the share token. Tables themselves are
// created implicitly on first insert.
func (s *Store) Migrate(ctx context.Context) error {
	query := "DEFINE INDEX IF NOT EXISTS lists_share_token ON TABLE lists COLUMNS share_token UNIQUE"
	if _, err := surrealdb.Query[any](ctx, s.db, query, nil); err != nil {
		return fmt.Errorf("failed to define share token index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFound translates the SDK's empty-result errors into the package's
// (nil, nil) missing-record convention.
func handleNotFound(err error) error {
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "Expected a single or multiple results but got 0") ||
			strings.Contains(errStr, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

func (s *Store) CreateList(ctx context.Context, list *models.List) error {
	if list.ID.IsZero() {
		list.ID = models.NewListID()
	}
	if list.ShareToken == "" {
		list.ShareToken = models.NewShareToken()
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now()
	}

	if _, err := surrealdb.Create[models.List](ctx, s.db, "lists", list); err != nil {
		return fmt.Errorf("failed to create list: %w", err)
	}
	return nil
}

func (s *Store) GetListByToken(ctx context.Context, token string) (*models.List, error) {
	query := "SELECT * FROM lists WHERE share_token = $token LIMIT 1"
	result, err := surrealdb.Query[[]models.List](ctx, s.db, query, map[string]any{
		"token": token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	if result == nil || len(*result) == 0 || len((*result)[0].Result) == 0 {
		return nil, nil
	}
	list := (*result)[0].Result[0]
	return &list, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID.IsZero() {
		item.ID = models.NewItemID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	if item.SortOrder < 0 {
		// Assign max+1 within the list, zero for an empty list.
		query := "SELECT VALUE sort_order FROM items WHERE list_id = $list ORDER BY sort_order DESC LIMIT 1"
		result, err := surrealdb.Query[[]int](ctx, s.db, query, map[string]any{
			"list": item.ListID.RecordID(),
		})
		if err != nil {
			return fmt.Errorf("failed to assign sort order: %w", err)
		}
		item.SortOrder = 0
		if result != nil && len(*result) > 0 && len((*result)[0].Result) > 0 {
			item.SortOrder = (*result)[0].Result[0] + 1
		}
	}

	if _, err := surrealdb.Create[models.Item](ctx, s.db, "items", item); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, listID models.ListID, itemID models.ItemID) (*models.Item, error) {
	item, err := surrealdb.Select[models.Item](ctx, s.db, itemID.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil || item.ListID != listID {
		return nil, nil
	}
	return item, nil
}

func (s *Store) UpdateItem(ctx context.Context, listID models.ListID, itemID models.ItemID, patch models.ItemPatch) (*models.Item, error) {
	item, err := s.GetItem(ctx, listID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	patch.ApplyTo(item)
	if _, err := surrealdb.Update[models.Item](ctx, s.db, itemID.RecordID(), item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

func (s *Store) DeleteItem(ctx context.Context, listID models.ListID, itemID models.ItemID) error {
	query := "DELETE FROM items WHERE id = $id AND list_id = $list"
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"id":   itemID.RecordID(),
		"list": listID.RecordID(),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

func (s *Store) DeleteBoughtItems(ctx context.Context, listID models.ListID) error {
	query := "DELETE FROM items WHERE list_id = $list AND bought = true"
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"list": listID.RecordID(),
	})
	if err != nil {
		return fmt.Errorf("failed to delete bought items: %w", err)
	}
	return nil
}

func (s *Store) ReorderItems(ctx context.Context, listID models.ListID, ids []models.ItemID) error {
	// One transaction so a concurrent reader never observes a half-applied
	// order.
	var sb strings.Builder
	params := map[string]any{"list": listID.RecordID()}
	sb.WriteString("BEGIN TRANSACTION;\n")
	for pos, id := range ids {
		fmt.Fprintf(&sb, "UPDATE $id%d SET sort_order = %d WHERE list_id = $list;\n", pos, pos)
		params[fmt.Sprintf("id%d", pos)] = id.RecordID()
	}
	sb.WriteString("COMMIT TRANSACTION;")

	if _, err := surrealdb.Query[any](ctx, s.db, sb.String(), params); err != nil {
		return fmt.Errorf("failed to reorder items: %w", err)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, listID models.ListID) ([]*models.Item, error) {
	query := "SELECT * FROM items WHERE list_id = $list ORDER BY sort_order ASC, created_at ASC"
	result, err := surrealdb.Query[[]*models.Item](ctx, s.db, query, map[string]any{
		"list": listID.RecordID(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items := []*models.Item{}
	if result != nil && len(*result) > 0 {
		items = (*result)[0].Result
	}
	return items, nil
}
