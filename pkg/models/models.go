// Package models defines the shared record types for trolley: collaborative
// shopping lists addressed by an unguessable share token, and the items they
// contain. The same structs cross every boundary of the system — the store
// backends (PostgreSQL via gorm tags, SurrealDB via RecordID-aware typed
// IDs), the REST API and its client, and the websocket change feed.
package models

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"time"
)

// Known units for item quantities. The unit is free-form at the storage
// level; this set is what the clients offer. UnitEach is the display default
// and is conventionally hidden next to a quantity.
const (
	UnitEach = "each"
	UnitKg   = "kg"
	UnitG    = "g"
	UnitL    = "L"
	UnitMl   = "mL"
	UnitPack = "pack"
)

// List is a shared shopping list. The share token is the sole access
// credential: anyone holding it can read and write the list, so it must be
// high-entropy and is never derived from the list ID.
type List struct {
	ID         ListID    `gorm:"type:uuid;primary_key" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	ShareToken string    `gorm:"uniqueIndex;not null" json:"share_token"`
	CreatedAt  time.Time `json:"created_at"`
}

// Item is a single entry on a list.
//
// Qty is a free-text numeric-like string ("2", "1.5"); Unit is only
// meaningful when Qty is present. Price is a non-negative unit price, or nil
// when the item is unpriced. SortOrder and CreatedAt together define the
// item's position: sort order ascending, creation time as tie-break.
type Item struct {
	ID        ItemID    `gorm:"type:uuid;primary_key" json:"id"`
	ListID    ListID    `gorm:"type:uuid;not null;index" json:"list_id"`
	Name      string    `gorm:"not null" json:"name"`
	Qty       *string   `json:"qty,omitempty"`
	Unit      *string   `json:"unit,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	Bought    bool      `gorm:"not null" json:"bought"`
	SortOrder int       `gorm:"not null" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemPatch is a partial update for an item. Nil fields are left untouched.
type ItemPatch struct {
	Name   *string  `json:"name,omitempty"`
	Qty    *string  `json:"qty,omitempty"`
	Unit   *string  `json:"unit,omitempty"`
	Price  *float64 `json:"price,omitempty"`
	Bought *bool    `json:"bought,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Name == nil && p.Qty == nil && p.Unit == nil && p.Price == nil && p.Bought == nil
}

// ApplyTo copies the patch's set fields onto the item.
func (p ItemPatch) ApplyTo(item *Item) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Qty != nil {
		item.Qty = p.Qty
	}
	if p.Unit != nil {
		item.Unit = p.Unit
	}
	if p.Price != nil {
		item.Price = p.Price
	}
	if p.Bought != nil {
		item.Bought = *p.Bought
	}
}

// CreateItemParams is the payload for creating an item. Name is required;
// the rest are optional. The server owns ID and sort-order assignment.
type CreateItemParams struct {
	Name  string   `json:"name"`
	Qty   string   `json:"qty,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// ChangeAction identifies the kind of mutation a change notification
// describes.
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// ChangeNotification is the raw event delivered on a list's change feed.
// Create and update carry the full post-mutation item; delete carries only
// the item ID.
type ChangeNotification struct {
	Action ChangeAction `json:"action"`
	ListID ListID       `json:"list_id"`
	ItemID ItemID       `json:"item_id"`
	Item   *Item        `json:"item,omitempty"`
}

// NewShareToken returns a fresh 16-hex-character share token (64 bits of
// randomness), matching the capability-URL scheme the lists are shared by.
func NewShareToken() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// SortItems returns the items in their canonical total order: sort order
// ascending, then creation time ascending. The input is not modified.
func SortItems(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortOrder != sorted[j].SortOrder {
			return sorted[i].SortOrder < sorted[j].SortOrder
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}
