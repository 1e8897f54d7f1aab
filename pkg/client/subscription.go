package client

import (
	"sync"

	"github.com/fluxbase/flux-go/pkg/protocol"
)

// Result is one subscription update: a new value for the query, or the
// error the UDF failed with. A subscription keeps delivering after an
// errored update; errors are per-evaluation, not terminal.
type Result struct {
	Value protocol.Value
	Err   error
}

// Subscription is a caller-visible handle over one live query-set entry.
// Updates are delivered on a buffered channel; when the consumer falls
// behind, the oldest buffered update is dropped so the latest value still
// arrives. The channel is closed when the subscription is cancelled or the
// client is closed.
//
// A subscription survives reconnects: the client silently re-adds it to the
// fresh session's query set and delivery resumes.
type Subscription struct {
	client  *Client
	udfPath string

	// id and chClosed are owned by the client event loop.
	id       uint32
	chClosed bool

	updates    chan Result
	cancelOnce sync.Once
}

// Updates returns the update channel.
func (s *Subscription) Updates() <-chan Result {
	return s.updates
}

// UDFPath returns the subscribed function's path.
func (s *Subscription) UDFPath() string {
	return s.udfPath
}

// Cancel removes the subscription. It is idempotent and effective
// immediately: no update is delivered after Cancel returns control to the
// event loop, even though the Remove message is only best-effort (a dropped
// Remove is harmless because the query set is rebuilt from scratch on the
// next connect).
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.client.post(func() {
			s.client.cancelSubscription(s)
		})
	})
}

// push delivers an update, dropping the oldest buffered one on overflow.
// Runs on the client event loop.
func (s *Subscription) push(r Result) {
	if s.chClosed {
		return
	}
	select {
	case s.updates <- r:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- r:
	default:
	}
}

// closeChannel closes the update channel once. Runs on the client event
// loop.
func (s *Subscription) closeChannel() {
	if s.chClosed {
		return
	}
	s.chClosed = true
	close(s.updates)
}
