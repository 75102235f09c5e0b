package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/trolleyhq/trolley/pkg/models"
)

// subscriptionBuffer is the inbound notification buffer. The consumer is
// expected to drain promptly; the buffer only absorbs short bursts.
const subscriptionBuffer = 64

// Subscription is one live websocket subscription to a list's change feed.
// It satisfies the synchronization engine's feed interface: Notifications
// yields server-pushed changes in arrival order and is closed when the
// connection drops for any reason.
type Subscription struct {
	conn *websocket.Conn
	ch   chan models.ChangeNotification

	closeOnce sync.Once
}

// Subscribe opens the change feed for the list behind the share token.
// The returned subscription lives until Close is called or the connection
// drops; it never reconnects by itself — that is the caller's supervisor's
// job.
func (c *Client) Subscribe(ctx context.Context, token string) (*Subscription, error) {
	wsURL := httpToWS(c.baseURL) + fmt.Sprintf("/api/lists/%s/feed", token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to subscribe: %w (status=%d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &Subscription{
		conn: conn,
		ch:   make(chan models.ChangeNotification, subscriptionBuffer),
	}
	go sub.readLoop()
	return sub, nil
}

// Notifications returns the channel of server-pushed changes. It is closed
// when the subscription ends.
func (s *Subscription) Notifications() <-chan models.ChangeNotification {
	return s.ch
}

// Close tears the subscription down. Idempotent.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// readLoop decodes inbound messages until the connection fails, then closes
// the notification channel so consumers observe the drop.
func (s *Subscription) readLoop() {
	defer close(s.ch)
	for {
		var n models.ChangeNotification
		if err := s.conn.ReadJSON(&n); err != nil {
			_ = s.Close()
			return
		}
		s.ch <- n
	}
}

// httpToWS rewrites an http(s) base URL to its ws(s) counterpart.
func httpToWS(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
