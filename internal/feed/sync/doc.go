// Package sync is the post synchronization core. It keeps one in-memory list
// of posts, backed by the local cache and, when configured, by a remote
// gateway.
//
// # Policy
//
// Remote wins on fetch: a successful FetchAll replaces the cache with remote
// truth. Local wins until confirmed: every mutation that could not reach the
// remote is applied to the cache and recorded as a pending Intent, and
// Reconcile re-applies pending intents on top of each remote fetch so they
// stay visible until ReplayPending confirms them.
//
// No operation returns an error for a remote failure. Callers get either a
// degraded-but-valid result (served from the cache) or nil when neither path
// produced one.
//
// # Concurrency
//
// Operations may run concurrently. The in-memory list is guarded by a mutex
// that is never held across a remote call; the last cache write wins.
//
// # Notifications
//
// Subscribe returns a channel of typed events.Event values, one per cache
// mutation, replacing a global "posts changed" signal.
package sync
