package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/trolleyhq/trolley/pkg/models"
)

const (
	// feedSendBuffer is the per-subscriber notification buffer. A
	// subscriber that cannot drain this many pending notifications is
	// considered stuck and has further notifications dropped; it converges
	// again on its next refresh.
	feedSendBuffer = 64

	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
)

// hub fans change notifications out to the websocket subscribers of each
// list. Publishing never blocks a mutation handler.
type hub struct {
	log zerolog.Logger

	mu          sync.Mutex
	subscribers map[models.ListID]map[chan models.ChangeNotification]struct{}
}

func newHub(log zerolog.Logger) *hub {
	return &hub{
		log:         log,
		subscribers: make(map[models.ListID]map[chan models.ChangeNotification]struct{}),
	}
}

// subscribe registers a new subscriber for the list's notifications.
func (h *hub) subscribe(listID models.ListID) chan models.ChangeNotification {
	ch := make(chan models.ChangeNotification, feedSendBuffer)
	h.mu.Lock()
	subs, ok := h.subscribers[listID]
	if !ok {
		subs = make(map[chan models.ChangeNotification]struct{})
		h.subscribers[listID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// unsubscribe removes the subscriber and closes its channel.
func (h *hub) unsubscribe(listID models.ListID, ch chan models.ChangeNotification) {
	h.mu.Lock()
	if subs, ok := h.subscribers[listID]; ok {
		if _, member := subs[ch]; member {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, listID)
		}
	}
	h.mu.Unlock()
}

// publish delivers the notification to every subscriber of its list,
// dropping it for subscribers whose buffer is full.
func (h *hub) publish(n models.ChangeNotification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[n.ListID] {
		select {
		case ch <- n:
		default:
			h.log.Warn().
				Stringer("list_id", n.ListID).
				Str("action", string(n.Action)).
				Msg("feed subscriber buffer full, dropping notification")
		}
	}
}

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Share links are the access control; the feed is open to any origin
	// holding one.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleFeed upgrades the request to a websocket and streams the list's
// change notifications as JSON messages until the peer disconnects.
//
// GET /api/lists/{token}/feed
func (a *App) handleFeed(w http.ResponseWriter, r *http.Request) {
	list, ok := a.resolveList(w, r)
	if !ok {
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		a.log.Debug().Err(err).Msg("feed upgrade failed")
		return
	}

	ch := a.hub.subscribe(list.ID)
	defer func() {
		a.hub.unsubscribe(list.ID, ch)
		_ = conn.Close()
	}()

	// Reader goroutine: the feed is server-to-client only, so inbound
	// reads exist to detect disconnects and service control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(n); err != nil {
				a.log.Debug().Err(err).Stringer("list_id", list.ID).Msg("feed write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
