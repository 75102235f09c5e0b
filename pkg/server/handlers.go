package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/trolleyhq/trolley/pkg/models"
)

type createListRequest struct {
	Name string `json:"name"`
}

type createItemRequest struct {
	Name  string   `json:"name"`
	Qty   string   `json:"qty,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

type reorderRequest struct {
	Order []models.ItemID `json:"order"`
}

// listResponse is the combined payload for the initial load: the list
// resolved from its share token plus its items in canonical order.
type listResponse struct {
	List  *models.List   `json:"list"`
	Items []*models.Item `json:"items"`
}

// handleCreateList creates a new list with a fresh share token.
//
// POST /api/lists
func (a *App) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "List name is required")
		return
	}

	ctx := r.Context()
	list := &models.List{Name: req.Name}
	if err := a.store.CreateList(ctx, list); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, list)
}

// handleGetList resolves a share token and returns the list together with
// its items in canonical order. Opening a share link and Refresh both land
// here.
//
// GET /api/lists/{token}
func (a *App) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, ok := a.resolveList(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	items, err := a.store.ListItems(ctx, list.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, listResponse{List: list, Items: items})
}

// handleCreateItem appends an item to the list. The store assigns the sort
// order (current maximum plus one).
//
// POST /api/lists/{token}/items
func (a *App) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	list, ok := a.resolveList(w, r)
	if !ok {
		return
	}

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Item name is required")
		return
	}
	if req.Price != nil && *req.Price < 0 {
		respondError(w, http.StatusBadRequest, "Price must not be negative")
		return
	}

	item := &models.Item{
		ListID:    list.ID,
		Name:      req.Name,
		Price:     req.Price,
		SortOrder: -1, // store assigns max+1
	}
	if qty := strings.TrimSpace(req.Qty); qty != "" {
		item.Qty = &qty
	}
	if unit := strings.TrimSpace(req.Unit); unit != "" {
		item.Unit = &unit
	}

	ctx := r.Context()
	if err := a.store.CreateItem(ctx, item); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.publish(models.ActionCreate, list.ID, item.ID, item)
	respondJSON(w, http.StatusCreated, item)
}

// handleUpdateItem applies a partial update and returns the full updated
// item.
//
// PATCH /api/lists/{token}/items/{id}
func (a *App) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	list, ok := a.resolveList(w, r)
	if !ok {
		return
	}
	id, err := models.ParseItemID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	var patch models.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			respondError(w, http.StatusBadRequest, "Item name is required")
			return
		}
		patch.Name = &trimmed
	}
	if patch.Price != nil && *patch.Price < 0 {
		respondError(w, http.StatusBadRequest, "Price must not be negative")
		return
	}

	ctx := r.Context()
	item, err := a.store.UpdateItem(ctx, list.ID, id, patch)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	a.publish(models.ActionUpdate, list.ID, item.ID, item)
	respondJSON(w, http.StatusOK, item)
}

// handleDeleteItem removes one item. Deleting an absent item succeeds, so a
// client retrying a timed-out delete gets the same outcome.
//
// DELETE /api/lists/{token}/items/{id}
func (a *App) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	list, ok := a.resolveList(w, r)
	if !ok {
		return
	}
	id, err := models.ParseItemID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	ctx := r.Context()
	if err := a.store.DeleteItem(ctx, list.ID, id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.publish(models.ActionDelete, list.ID, id, nil)
	respondJSON(w, http.StatusNoContent, nil)
}

// handleClearBought removes every bought item on the list in one request,
// publishing a delete notification per removed item.
//
// DELETE /api/lists/{token}/items
func (a *App) handleClearBought(w http.ResponseWriter, r *http.Request) {
	list, ok := a.resolveList(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	items, err := a.store.ListItems(ctx, list.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := a.store.DeleteBoughtItems(ctx, list.ID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, item := range items {
		if item.Bought {
			a.publish(models.ActionDelete, list.ID, item.ID, nil)
		}
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleReorderItems rewrites every item's sort order to its position in
// the submitted sequence, then publishes the reordered items so other
// participants converge without refetching.
//
// PATCH /api/lists/{token}/items/reorder
func (a *App) handleReorderItems(w http.ResponseWriter, r *http.Request) {
	list, ok := a.resolveList(w, r)
	if !ok {
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(req.Order) == 0 {
		respondError(w, http.StatusBadRequest, "Order is required")
		return
	}

	ctx := r.Context()
	if err := a.store.ReorderItems(ctx, list.ID, req.Order); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items, err := a.store.ListItems(ctx, list.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, item := range items {
		a.publish(models.ActionUpdate, list.ID, item.ID, item)
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleHealth reports service liveness.
//
// GET /health, GET /api/health
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend := a.config.Backend
	if backend == "" {
		backend = "memory"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"backend": backend,
		"time":    time.Now().Unix(),
	})
}

// resolveList fetches the list for the share token in the route, responding
// 404 itself when the token is unknown.
func (a *App) resolveList(w http.ResponseWriter, r *http.Request) (*models.List, bool) {
	token := mux.Vars(r)["token"]
	list, err := a.store.GetListByToken(r.Context(), token)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if list == nil {
		respondError(w, http.StatusNotFound, "List not found")
		return nil, false
	}
	return list, true
}

// publish fans a change notification out to the list's feed subscribers.
func (a *App) publish(action models.ChangeAction, listID models.ListID, itemID models.ItemID, item *models.Item) {
	a.hub.publish(models.ChangeNotification{
		Action: action,
		ListID: listID,
		ItemID: itemID,
		Item:   item,
	})
}

// respondJSON sends a JSON response with the given status. A nil payload
// sends an empty body.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

// respondError sends a standardized {"error": message} response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
