package client

import "time"

// backoff computes the reconnect delay schedule: min(base << attempt, cap)
// with a bounded attempt count. It is an explicit counter rather than an
// open-ended timer chain so give-up is a real terminal state and tests can
// walk the schedule deterministically.
type backoff struct {
	base        time.Duration
	cap         time.Duration
	maxAttempts int
	attempt     int
}

func newBackoff(base, cap time.Duration, maxAttempts int) *backoff {
	return &backoff{base: base, cap: cap, maxAttempts: maxAttempts}
}

// next returns the delay before the next attempt and whether an attempt is
// still allowed. Each call consumes one attempt.
func (b *backoff) next() (time.Duration, bool) {
	if b.attempt >= b.maxAttempts {
		return 0, false
	}
	d := b.base
	for i := 0; i < b.attempt; i++ {
		d *= 2
		if d >= b.cap {
			d = b.cap
			break
		}
	}
	if d > b.cap {
		d = b.cap
	}
	b.attempt++
	return d, true
}

// reset clears the attempt counter after a successful connection or a manual
// reconnect request.
func (b *backoff) reset() {
	b.attempt = 0
}

// attempts returns the number of attempts consumed since the last reset.
func (b *backoff) attempts() int {
	return b.attempt
}
