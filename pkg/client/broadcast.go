package client

import "sync"

// broadcaster fans a stream of values out to any number of observer
// channels. Observers that fall behind lose their oldest buffered value so
// the latest one always lands; state observers care about where things are
// now, not the full history.
type broadcaster[T any] struct {
	mu     sync.Mutex
	subs   []chan T
	buffer int
	last   T
	seeded bool
	closed bool
}

func newBroadcaster[T any](buffer int) *broadcaster[T] {
	return &broadcaster[T]{buffer: buffer}
}

// subscribe registers a new observer channel. The current value, if any, is
// delivered first so late observers see the present state.
func (b *broadcaster[T]) subscribe() <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	if b.seeded {
		ch <- b.last
	}
	b.subs = append(b.subs, ch)
	return ch
}

// publish delivers v to every observer.
func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.last = v
	b.seeded = true
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			// Full observer: drop the oldest value to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// current returns the last published value.
func (b *broadcaster[T]) current() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.seeded
}

// close closes all observer channels. Further publishes are dropped.
func (b *broadcaster[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
