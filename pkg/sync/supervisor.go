package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trolleyhq/trolley/pkg/models"
)

// DefaultReconnectDelay is the fixed delay before a feed reconnection
// attempt.
const DefaultReconnectDelay = 3 * time.Second

// State is the connection state of the change feed subscription.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

// canTransitionTo reports whether moving to newState is a legal transition.
// StateClosed is terminal and reachable from everywhere but itself.
func (s State) canTransitionTo(newState State) bool {
	switch s {
	case StateDisconnected:
		return newState == StateConnecting || newState == StateClosed
	case StateConnecting:
		return newState == StateConnected || newState == StateDisconnected || newState == StateClosed
	case StateConnected:
		return newState == StateDisconnected || newState == StateClosed
	case StateClosed:
		return false
	}
	return false
}

// Feed is one live subscription to a list's change feed. Notifications
// returns a channel that is closed when the subscription drops; Close
// releases the subscription.
type Feed interface {
	Notifications() <-chan models.ChangeNotification
	Close() error
}

// DialFunc establishes a new feed subscription.
type DialFunc func(ctx context.Context) (Feed, error)

// SupervisorConfig configures a Supervisor. Dial and Deliver are required.
type SupervisorConfig struct {
	// Dial establishes a feed subscription.
	Dial DialFunc

	// Deliver receives every notification from the active feed, in
	// arrival order, from a single goroutine.
	Deliver func(models.ChangeNotification)

	// Retryer controls reconnection delays. Defaults to a fixed
	// DefaultReconnectDelay with unlimited attempts.
	Retryer Retryer

	// OnState, when set, observes every state transition. It is invoked
	// with the supervisor's internal lock held and must not call back into
	// the Supervisor.
	OnState func(State)

	// Logger defaults to a no-op logger.
	Logger zerolog.Logger
}

// Supervisor owns the subscription lifecycle to a list's change feed:
// connect, detect drop, reconnect after a delay, and tear down. At most one
// feed handle is open at any time; a reconnect attempt closes any stale
// handle before subscribing again so notifications are never delivered
// twice.
//
// Feed loss is never fatal and never surfaced as an error to the mutation
// path — the feed only receives other participants' changes; this
// participant's own mutations go out as direct requests regardless of feed
// state. Consumers observe connectivity through State.
type Supervisor struct {
	dial    DialFunc
	deliver func(models.ChangeNotification)
	retryer Retryer
	onState func(State)
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	feed    Feed
	timer   *time.Timer
	attempt int
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSupervisor creates a supervisor in StateDisconnected. Call Start to
// begin connecting.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	retryer := cfg.Retryer
	if retryer == nil {
		retryer = NewFixedDelayRetryer(DefaultReconnectDelay, 0)
	}
	return &Supervisor{
		dial:    cfg.Dial,
		deliver: cfg.Deliver,
		retryer: retryer,
		onState: cfg.OnState,
		log:     cfg.Logger,
		state:   StateDisconnected,
	}
}

// State returns the current connection state.
func (sv *Supervisor) State() State {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.state
}

// Start begins the first connection attempt in the background. ctx bounds
// the supervisor's whole lifetime: dialing stops when it is canceled.
func (sv *Supervisor) Start(ctx context.Context) {
	sv.mu.Lock()
	if sv.state == StateClosed || sv.ctx != nil {
		sv.mu.Unlock()
		return
	}
	sv.ctx, sv.cancel = context.WithCancel(ctx)
	sv.mu.Unlock()

	go sv.connect()
}

// connect performs one subscription attempt. It tears down any stale feed
// first, then dials, and on failure schedules exactly one reconnect.
func (sv *Supervisor) connect() {
	sv.mu.Lock()
	if sv.state == StateClosed {
		sv.mu.Unlock()
		return
	}
	stale := sv.feed
	sv.feed = nil
	sv.transitionToLocked(StateConnecting)
	ctx := sv.ctx
	sv.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}

	feed, err := sv.dial(ctx)
	if err != nil {
		sv.log.Debug().Err(err).Msg("feed subscription failed")
		sv.mu.Lock()
		if sv.state != StateClosed {
			sv.transitionToLocked(StateDisconnected)
			sv.scheduleReconnectLocked()
		}
		sv.mu.Unlock()
		return
	}

	sv.mu.Lock()
	if sv.state == StateClosed {
		sv.mu.Unlock()
		_ = feed.Close()
		return
	}
	sv.feed = feed
	sv.attempt = 0
	sv.retryer.Reset()
	sv.transitionToLocked(StateConnected)
	sv.mu.Unlock()

	go sv.consume(feed)
}

// consume drains one feed until its channel closes, then reports the drop.
func (sv *Supervisor) consume(feed Feed) {
	for n := range feed.Notifications() {
		sv.deliver(n)
	}

	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.state == StateClosed || sv.feed != feed {
		// Either torn down, or this feed was already replaced.
		return
	}
	sv.feed = nil
	sv.transitionToLocked(StateDisconnected)
	sv.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms exactly one reconnect timer. Caller must
// hold the mutex.
func (sv *Supervisor) scheduleReconnectLocked() {
	delay, ok := sv.retryer.NextDelay(sv.attempt, nil)
	if !ok {
		sv.log.Warn().Int("attempts", sv.attempt).Msg("feed reconnect attempts exhausted")
		return
	}
	sv.attempt++

	sv.log.Debug().Dur("delay", delay).Msg("scheduling feed reconnect")
	sv.timer = time.AfterFunc(delay, func() {
		sv.mu.Lock()
		if sv.state == StateClosed {
			sv.mu.Unlock()
			return
		}
		sv.timer = nil
		sv.mu.Unlock()
		sv.connect()
	})
}

// Close tears the supervisor down: the pending reconnect timer (if any) is
// stopped under the mutex before the state flips to StateClosed, so a timer
// that already fired observes the closed state and bails instead of racing
// a new subscription into existence. Close is idempotent.
func (sv *Supervisor) Close() error {
	sv.mu.Lock()
	if sv.state == StateClosed {
		sv.mu.Unlock()
		return nil
	}
	if sv.timer != nil {
		sv.timer.Stop()
		sv.timer = nil
	}
	feed := sv.feed
	sv.feed = nil
	sv.transitionToLocked(StateClosed)
	if sv.cancel != nil {
		sv.cancel()
	}
	sv.mu.Unlock()

	if feed != nil {
		return feed.Close()
	}
	return nil
}

// transitionToLocked moves to newState, logging the transition. Caller must
// hold the mutex. An illegal transition indicates a bug in the call graph
// and is logged rather than applied.
func (sv *Supervisor) transitionToLocked(newState State) {
	if !sv.state.canTransitionTo(newState) {
		sv.log.Error().
			Stringer("from", sv.state).
			Stringer("to", newState).
			Msg("BUG: invalid feed state transition")
		return
	}
	sv.state = newState
	sv.log.Debug().Stringer("state", newState).Msg("feed state changed")
	if sv.onState != nil {
		sv.onState(newState)
	}
}
