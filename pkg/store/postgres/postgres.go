// Package postgres implements the [github.com/trolleyhq/trolley/pkg/store.Store]
// interface on PostgreSQL using GORM.
//
// The schema maps the models directly: lists and items tables, with the
// share token under a unique index and items carrying a list_id foreign
// key. [Store.Migrate] uses GORM's AutoMigrate, which only adds missing
// schema elements and never drops data, so it is safe to run on every
// start.
//
// Sort order assignment and the reorder rewrite run inside transactions so
// two concurrent appends cannot be assigned the same position.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/trolleyhq/trolley/pkg/models"
	"github.com/trolleyhq/trolley/pkg/store"
)

// Store implements the store interface using PostgreSQL with GORM.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New connects to PostgreSQL.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates missing tables and indexes for the list and item models.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.List{}, &models.Item{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
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
	if err := s.db.WithContext(ctx).Create(list).Error; err != nil {
		return fmt.Errorf("failed to create list: %w", err)
	}
	return nil
}

func (s *Store) GetListByToken(ctx context.Context, token string) (*models.List, error) {
	var list models.List
	err := s.db.WithContext(ctx).Where("share_token = ?", token).First(&list).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return &list, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID.IsZero() {
		item.ID = models.NewItemID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if item.SortOrder < 0 {
			var next int
			err := tx.Model(&models.Item{}).
				Where("list_id = ?", item.ListID).
				Select("COALESCE(MAX(sort_order) + 1, 0)").
				Scan(&next).Error
			if err != nil {
				return fmt.Errorf("failed to assign sort order: %w", err)
			}
			item.SortOrder = next
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}
		return nil
	})
}

func (s *Store) GetItem(ctx context.Context, listID models.ListID, itemID models.ItemID) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).
		Where("id = ? AND list_id = ?", itemID, listID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

func (s *Store) UpdateItem(ctx context.Context, listID models.ListID, itemID models.ItemID, patch models.ItemPatch) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND list_id = ?", itemID, listID).First(&item).Error
		if err != nil {
			return err
		}
		patch.ApplyTo(&item)
		return tx.Save(&item).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return &item, nil
}

func (s *Store) DeleteItem(ctx context.Context, listID models.ListID, itemID models.ItemID) error {
	err := s.db.WithContext(ctx).
		Where("id = ? AND list_id = ?", itemID, listID).
		Delete(&models.Item{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

func (s *Store) DeleteBoughtItems(ctx context.Context, listID models.ListID) error {
	err := s.db.WithContext(ctx).
		Where("list_id = ? AND bought = ?", listID, true).
		Delete(&models.Item{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete bought items: %w", err)
	}
	return nil
}

func (s *Store) ReorderItems(ctx context.Context, listID models.ListID, ids []models.ItemID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for pos, id := range ids {
			err := tx.Model(&models.Item{}).
				Where("id = ? AND list_id = ?", id, listID).
				Update("sort_order", pos).Error
			if err != nil {
				return fmt.Errorf("failed to reorder item %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *Store) ListItems(ctx context.Context, listID models.ListID) ([]*models.Item, error) {
	items := []*models.Item{}
	err := s.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("sort_order ASC, created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}
