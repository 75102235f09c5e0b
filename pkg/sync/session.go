package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	stdsync "sync"

	"github.com/rs/zerolog"

	"github.com/trolleyhq/trolley/pkg/models"
)

var (
	// ErrListNotFound means the share token resolved to no list.
	ErrListNotFound = errors.New("list not found")
	// ErrItemNotFound means the targeted item is not in the current set.
	ErrItemNotFound = errors.New("item not found")
	// ErrEmptyName rejects a blank item name before any mutation happens.
	ErrEmptyName = errors.New("item name must not be empty")
	// ErrInvalidPrice rejects a negative unit price before any mutation.
	ErrInvalidPrice = errors.New("price must not be negative")
	// ErrFilteredReorder rejects reordering while a filtered view is
	// active: a partial-sequence move cannot be mapped unambiguously onto
	// the full order.
	ErrFilteredReorder = errors.New("reordering requires the unfiltered view")
	// ErrStaleReorder rejects a reorder sequence that no longer matches
	// the current item set (a concurrent edit landed mid-drag).
	ErrStaleReorder = errors.New("reorder sequence does not match current items")
)

// Backend is the mutation/query surface the session needs from the server.
// [github.com/trolleyhq/trolley/pkg/client.Client] implements it; tests
// substitute fakes.
type Backend interface {
	FetchList(ctx context.Context, token string) (*models.List, []models.Item, error)
	CreateItem(ctx context.Context, token string, params models.CreateItemParams) (*models.Item, error)
	UpdateItem(ctx context.Context, token string, id models.ItemID, patch models.ItemPatch) (*models.Item, error)
	DeleteItem(ctx context.Context, token string, id models.ItemID) error
	ClearBought(ctx context.Context, token string) error
	Reorder(ctx context.Context, token string, ids []models.ItemID) error
}

// View is the session's read surface for rendering: the filtered item
// sequence, tallies over the whole set, the bill estimate, and the feed
// connectivity status.
type View struct {
	List         models.List
	Filter       Filter
	VisibleItems []models.Item
	Counts       Counts
	Billing      Billing
	Status       State
}

// Options configures a Session. The zero value opens a session without a
// realtime feed (mutations and refreshes still work).
type Options struct {
	// Dial, when set, establishes the change feed subscription; the
	// session supervises it and reconnects on loss.
	Dial DialFunc

	// Retryer overrides the supervisor's reconnect policy.
	Retryer Retryer

	// OnChange, when set, is called after every canonical state change —
	// optimistic applies, confirmations, reverts, and feed events. It is
	// called outside the session lock and may call back into the session.
	OnChange func()

	// Logger defaults to a no-op logger.
	Logger zerolog.Logger
}

// Session is the synchronization engine for one open list view. It owns the
// canonical local mirror of the list's items and is the only writer to it:
// every inbound signal — this session's own optimistic edits and request
// outcomes, and other participants' changes pushed on the feed — funnels
// into one serialized apply path, so state transitions form a single linear
// history.
//
// Mutation intents validate first (nothing is mutated or sent on a
// validation error), then apply the speculative change locally, then issue
// the request in the calling goroutine. Concurrent readers observe the
// optimistic state immediately through CurrentView; the intent's return
// value is the confirmed-or-reverted resolution. A failed request reverts
// the affected items to their pre-mutation values and is returned to the
// caller; it is never retried automatically (a blind retry after a revert
// could duplicate a create).
//
// Sessions are safe for concurrent use. Each open view owns its own
// Session; canonical state is never shared between views.
type Session struct {
	list    models.List
	token   string
	backend Backend
	sup     *Supervisor
	log     zerolog.Logger

	onChange func()

	mu             stdsync.Mutex
	items          itemSet
	filter         Filter
	pendingDeletes map[models.ItemID]struct{}
}

// Open resolves the share token, loads the current item set, and (when
// opts.Dial is set) starts supervising the change feed. Returns
// ErrListNotFound when the token resolves to nothing.
func Open(ctx context.Context, backend Backend, token string, opts Options) (*Session, error) {
	list, items, err := backend.FetchList(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list: %w", err)
	}
	if list == nil {
		return nil, ErrListNotFound
	}

	s := &Session{
		list:           *list,
		token:          token,
		backend:        backend,
		log:            opts.Logger,
		onChange:       opts.OnChange,
		items:          make(itemSet, len(items)),
		filter:         FilterAll,
		pendingDeletes: make(map[models.ItemID]struct{}),
	}
	for _, item := range items {
		s.items[item.ID] = item
	}

	if opts.Dial != nil {
		s.sup = NewSupervisor(SupervisorConfig{
			Dial:    opts.Dial,
			Deliver: s.handleNotification,
			Retryer: opts.Retryer,
			Logger:  opts.Logger,
		})
		s.sup.Start(ctx)
	}
	return s, nil
}

// Close tears the session down, releasing the feed subscription and
// canceling any pending reconnect. Canonical state is discarded with the
// session.
func (s *Session) Close() error {
	if s.sup != nil {
		return s.sup.Close()
	}
	return nil
}

// List returns the list this session mirrors.
func (s *Session) List() models.List {
	return s.list
}

// SetFilter switches the active view filter.
func (s *Session) SetFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	s.notifyChange()
}

// CurrentView derives the render view from canonical state: items visible
// under the active filter in canonical order, counts over the unfiltered
// set, the bill estimate, and feed status.
func (s *Session) CurrentView() View {
	s.mu.Lock()
	items := s.items.snapshot()
	filter := s.filter
	s.mu.Unlock()

	proj := Project(items, filter)
	status := StateDisconnected
	if s.sup != nil {
		status = s.sup.State()
	}
	return View{
		List:         s.list,
		Filter:       filter,
		VisibleItems: proj.VisibleItems,
		Counts:       proj.Counts,
		Billing:      ComputeBilling(items),
		Status:       status,
	}
}

// AddItem creates a new item. Creation is deliberately not optimistic: the
// store owns both the item ID and the sort order, so the item appears only
// once the confirmed record arrives. Name is required; qty, unit, and price
// are optional.
func (s *Session) AddItem(ctx context.Context, params models.CreateItemParams) (*models.Item, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Qty = strings.TrimSpace(params.Qty)
	params.Unit = strings.TrimSpace(params.Unit)
	if params.Name == "" {
		return nil, ErrEmptyName
	}
	if params.Price != nil && *params.Price < 0 {
		return nil, ErrInvalidPrice
	}

	item, err := s.backend.CreateItem(ctx, s.token, params)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	s.applyEvent(ItemUpserted(*item))
	return item, nil
}

// UpdateItem applies a partial update optimistically, then confirms it with
// the server. On failure the item reverts to its pre-mutation value. The
// server-confirmed record (which may differ, e.g. normalized strings)
// overwrites the speculative one on success.
func (s *Session) UpdateItem(ctx context.Context, id models.ItemID, patch models.ItemPatch) error {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return ErrEmptyName
		}
		patch.Name = &trimmed
	}
	if patch.Price != nil && *patch.Price < 0 {
		return ErrInvalidPrice
	}
	if patch.IsEmpty() {
		return nil
	}

	s.mu.Lock()
	current, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	edit := s.items.beginEdit(id)
	patch.ApplyTo(&current)
	s.items[id] = current
	s.mu.Unlock()
	s.notifyChange()

	confirmed, err := s.backend.UpdateItem(ctx, s.token, id, patch)
	if err != nil {
		s.mu.Lock()
		s.items.revert(edit)
		s.mu.Unlock()
		s.notifyChange()
		return fmt.Errorf("update request failed: %w", err)
	}
	if confirmed == nil {
		// The server no longer knows the item; drop it locally too.
		s.applyEvent(ItemRemoved(id))
		return ErrItemNotFound
	}
	s.applyEvent(ItemUpserted(*confirmed))
	return nil
}

// ToggleBought flips the item's bought flag, optimistically.
func (s *Session) ToggleBought(ctx context.Context, id models.ItemID) error {
	s.mu.Lock()
	current, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return ErrItemNotFound
	}
	bought := !current.Bought
	return s.UpdateItem(ctx, id, models.ItemPatch{Bought: &bought})
}

// DeleteItem removes the item optimistically. While the request is in
// flight, feed events for the item are suppressed so an echo of an older
// mutation cannot resurrect it. On failure the item is restored.
func (s *Session) DeleteItem(ctx context.Context, id models.ItemID) error {
	s.mu.Lock()
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	edit := s.items.beginEdit(id)
	delete(s.items, id)
	s.pendingDeletes[id] = struct{}{}
	s.mu.Unlock()
	s.notifyChange()

	err := s.backend.DeleteItem(ctx, s.token, id)

	s.mu.Lock()
	delete(s.pendingDeletes, id)
	if err != nil {
		s.items.revert(edit)
	}
	s.mu.Unlock()

	if err != nil {
		s.notifyChange()
		return fmt.Errorf("delete request failed: %w", err)
	}
	return nil
}

// ClearBought removes every bought item, optimistically, in one request.
// On failure the removed items are restored; callers wanting certainty
// after a failure can follow up with Refresh.
func (s *Session) ClearBought(ctx context.Context) error {
	s.mu.Lock()
	var ids []models.ItemID
	for id, item := range s.items {
		if item.Bought {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		s.mu.Unlock()
		return nil
	}
	edit := s.items.beginEdit(ids...)
	for _, id := range ids {
		delete(s.items, id)
		s.pendingDeletes[id] = struct{}{}
	}
	s.mu.Unlock()
	s.notifyChange()

	err := s.backend.ClearBought(ctx, s.token)

	s.mu.Lock()
	for _, id := range ids {
		delete(s.pendingDeletes, id)
	}
	if err != nil {
		s.items.revert(edit)
	}
	s.mu.Unlock()

	if err != nil {
		s.notifyChange()
		return fmt.Errorf("clear bought request failed: %w", err)
	}
	return nil
}

// Reorder replaces the item order with the given full sequence,
// optimistically, issuing one batched request for the whole new order.
// Every item's sort order is rewritten to its positional rank. Rejected
// when a filtered view is active (the restriction is structural, see
// ErrFilteredReorder) or when ids is not a permutation of the current set.
func (s *Session) Reorder(ctx context.Context, ids []models.ItemID) error {
	s.mu.Lock()
	if s.filter != FilterAll {
		s.mu.Unlock()
		return ErrFilteredReorder
	}
	if len(ids) != len(s.items) {
		s.mu.Unlock()
		return ErrStaleReorder
	}
	for _, id := range ids {
		if _, ok := s.items[id]; !ok {
			s.mu.Unlock()
			return ErrStaleReorder
		}
	}

	edit := s.items.beginEdit(ids...)
	for pos, id := range ids {
		item := s.items[id]
		item.SortOrder = pos
		s.items[id] = item
	}
	s.mu.Unlock()
	s.notifyChange()

	if err := s.backend.Reorder(ctx, s.token, ids); err != nil {
		s.mu.Lock()
		s.items.revert(edit)
		s.mu.Unlock()
		s.notifyChange()
		return fmt.Errorf("reorder request failed: %w", err)
	}
	return nil
}

// Move relocates one item to position to within the full sequence and
// issues the resulting reorder. It is the boundary call a drag gesture
// resolves into.
func (s *Session) Move(ctx context.Context, id models.ItemID, to int) error {
	s.mu.Lock()
	ordered := models.SortItems(s.items.snapshot())
	s.mu.Unlock()
	return s.Reorder(ctx, MoveItem(ordered, id, to))
}

// Refresh refetches the full item set and replaces canonical state with it.
// Used for explicit re-sync, e.g. after a failed bulk mutation or a long
// disconnection; a feed reconnect alone never discards state.
func (s *Session) Refresh(ctx context.Context) error {
	list, items, err := s.backend.FetchList(ctx, s.token)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if list == nil {
		return ErrListNotFound
	}
	s.applyEvent(BulkReplaced(items))
	return nil
}

// handleNotification is the feed delivery path: normalize, suppress echoes
// for items this session is deleting, apply.
func (s *Session) handleNotification(n models.ChangeNotification) {
	if n.ListID != s.list.ID {
		return
	}
	ev, ok := normalizeNotification(n)
	if !ok {
		return
	}

	s.mu.Lock()
	if _, deleting := s.pendingDeletes[ev.ItemID]; deleting {
		// A feed echo must not resurrect an item mid-delete.
		s.mu.Unlock()
		return
	}
	s.items.apply(ev)
	s.mu.Unlock()
	s.notifyChange()
}

// applyEvent folds one canonical event into state under the session lock.
func (s *Session) applyEvent(ev Event) {
	s.mu.Lock()
	s.items.apply(ev)
	s.mu.Unlock()
	s.notifyChange()
}

func (s *Session) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}
