package client

import (
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	b := newBackoff(1*time.Second, 32*time.Second, 8)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		32 * time.Second,
		32 * time.Second,
	}
	for i, wd := range want {
		d, ok := b.next()
		if !ok {
			t.Fatalf("next() attempt %d exhausted early", i)
		}
		if d != wd {
			t.Errorf("next() attempt %d = %v; want %v", i, d, wd)
		}
	}

	if _, ok := b.next(); ok {
		t.Error("next() after max attempts = ok; want exhausted")
	}
}

func TestBackoffReset(t *testing.T) {
	b := newBackoff(1*time.Second, 32*time.Second, 2)
	b.next()
	b.next()
	if _, ok := b.next(); ok {
		t.Fatal("next() = ok after 2 attempts with max 2")
	}

	b.reset()
	if b.attempts() != 0 {
		t.Errorf("attempts() after reset = %d; want 0", b.attempts())
	}
	d, ok := b.next()
	if !ok || d != 1*time.Second {
		t.Errorf("next() after reset = %v, %v; want 1s, true", d, ok)
	}
}
