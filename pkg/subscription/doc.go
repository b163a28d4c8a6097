// Package subscription keeps the set of topics the client has joined and
// replays it after a reconnect.
//
// Membership only grows: topics are recorded when a view joins and are never
// removed individually. The server forgets group membership when a
// connection drops, so every recorded topic is joined again on the new
// connection.
//
// # Replay
//
// Replay works on a snapshot taken when it starts, in key order. Each join
// runs to completion before the next one starts. A failed join is recorded
// in the result and does not stop the remaining joins.
package subscription
