// Package client is the Go HTTP client for the trolley API. It mirrors the
// server's endpoints with typed methods and satisfies the synchronization
// engine's backend interface, so a [Client] plus [Client.Subscribe] is
// everything a live session needs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trolleyhq/trolley/pkg/models"
)

// Client provides typed access to the trolley REST API. Instances are safe
// for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client. baseURL includes protocol and host
// (e.g. "http://localhost:8080") without a trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d, body=%s", e.Status, e.Body)
}

// isNotFound reports whether err is a 404 response.
func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// doRequest performs an HTTP request with a JSON body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into target, returning an
// [*APIError] for non-2xx statuses.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Health checks the health status of the server.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateList creates a new list and returns it with its share token.
func (c *Client) CreateList(ctx context.Context, name string) (*models.List, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/lists", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var result models.List
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchList resolves a share token to the list and its items in canonical
// order. Returns (nil, nil, nil) for an unknown token.
func (c *Client) FetchList(ctx context.Context, token string) (*models.List, []models.Item, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/lists/%s", token), nil)
	if err != nil {
		return nil, nil, err
	}

	var result struct {
		List  *models.List  `json:"list"`
		Items []models.Item `json:"items"`
	}
	if err := decodeResponse(resp, &result); err != nil {
		if isNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return result.List, result.Items, nil
}

// CreateItem appends an item to the list; the server assigns ID and sort
// order.
func (c *Client) CreateItem(ctx context.Context, token string, params models.CreateItemParams) (*models.Item, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/lists/%s/items", token), params)
	if err != nil {
		return nil, err
	}

	var result models.Item
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateItem applies a partial update and returns the full updated item.
// Returns (nil, nil) when the server no longer knows the item.
func (c *Client) UpdateItem(ctx context.Context, token string, id models.ItemID, patch models.ItemPatch) (*models.Item, error) {
	resp, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/lists/%s/items/%s", token, id), patch)
	if err != nil {
		return nil, err
	}

	var result models.Item
	if err := decodeResponse(resp, &result); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// DeleteItem removes one item. Deleting an already-removed item succeeds.
func (c *Client) DeleteItem(ctx context.Context, token string, id models.ItemID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/lists/%s/items/%s", token, id), nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// ClearBought removes every bought item on the list.
func (c *Client) ClearBought(ctx context.Context, token string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/lists/%s/items", token), nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// Reorder submits the full new item sequence; the server rewrites each
// item's sort order to its position.
func (c *Client) Reorder(ctx context.Context, token string, ids []models.ItemID) error {
	resp, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/lists/%s/items/reorder", token),
		map[string][]models.ItemID{"order": ids})
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}
