// Package sync implements the client-side synchronization engine for a
// shared trolley list: the state machine that keeps one participant's local
// mirror of a list convergent with the server under concurrent edits,
// optimistic local mutation, and an unreliable realtime feed.
//
// The moving parts, leaves first:
//
//   - order assignment (order.go): computes sort orders for appends and
//     full-sequence rewrites for relocations.
//   - events (event.go): one canonical event shape that both mutation
//     responses and pushed feed notifications normalize into.
//   - reconciliation (reconcile.go): the single apply path that folds
//     canonical events into local state, last writer wins.
//   - optimistic edits (optimistic.go): snapshot-before-mutate records that
//     make failed requests revertible.
//   - projection (project.go): pure filtered/sorted/aggregated read views.
//   - supervisor (supervisor.go, retry.go): the feed subscription lifecycle
//     with automatic reconnection.
//   - [Session] (session.go): ties the above together behind mutation
//     intents and CurrentView.
//
// A Session is owned by exactly one open list view and is constructed via
// [Open] and released via [Session.Close]; it is never shared across views.
// Feed notifications and this session's own request outcomes funnel into the
// same serialized apply path, so state transitions form one linear history.
package sync
