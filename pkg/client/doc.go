// Package client implements the Fluxbase sync client: a single WebSocket
// session that multiplexes one-shot queries, mutations, and actions together
// with reactive query subscriptions.
//
// A Client owns one event-loop goroutine; all protocol state (the query set,
// the request correlation table, the connection state machine) lives on that
// goroutine. Public methods are safe for concurrent use: they post work onto
// the loop and wait on per-call channels.
//
// The client reconnects automatically with exponential backoff. On every
// successful reconnect the full query set is replayed in a single batch and
// unanswered mutations and actions are retransmitted, so subscriptions and
// in-flight calls survive connection loss transparently. When the configured
// attempt ceiling is reached the client stops on its own and surfaces that
// through GiveUp; a manual Reconnect revives it.
package client
