package client

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fluxbase/flux-go/pkg/transport"
)

// Config holds configuration for a Client.
type Config struct {
	// Timeouts

	// DialTimeout bounds one connection attempt, handshake included.
	// Default: 10 seconds.
	DialTimeout time.Duration

	// RequestTimeout is the default deadline for query/mutation/action calls
	// when the caller's context carries none. Default: 30 seconds.
	RequestTimeout time.Duration

	// Reconnect policy

	// BackoffBase is the delay before the first reconnect attempt; each
	// subsequent attempt doubles it. Default: 1 second.
	BackoffBase time.Duration

	// BackoffCap caps the per-attempt delay. Default: 32 seconds.
	BackoffCap time.Duration

	// MaxReconnectAttempts bounds consecutive failed attempts before the
	// client gives up and surfaces ErrGiveUp. Default: 16.
	MaxReconnectAttempts int

	// Buffers

	// SubscriptionBuffer is the per-subscription update channel capacity.
	// When a consumer falls behind, the oldest buffered update is dropped so
	// the latest value still gets through. Default: 16.
	SubscriptionBuffer int

	// ObserverBuffer is the capacity of connection-state and auth-state
	// observer channels. Default: 8.
	ObserverBuffer int

	// Plumbing

	// Logger receives structured logs. Default: slog.Default().
	Logger *slog.Logger

	// Clock drives backoff and request deadlines. Tests inject a mock so
	// reconnect schedules run without real delays. Default: wall clock.
	Clock clock.Clock

	// Dialer opens sockets. Default: a transport.WebSocketDialer.
	Dialer transport.Dialer

	// MetricsRegistry, when set, registers client metrics (reconnects,
	// pending requests, message counters) with the given registerer.
	// Default: nil, metrics disabled.
	MetricsRegistry prometheus.Registerer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:          10 * time.Second,
		RequestTimeout:       30 * time.Second,
		BackoffBase:          1 * time.Second,
		BackoffCap:           32 * time.Second,
		MaxReconnectAttempts: 16,
		SubscriptionBuffer:   16,
		ObserverBuffer:       8,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults fills zero fields with their defaults.
func (c *Config) withDefaults() *Config {
	out := c.Clone()
	if out == nil {
		out = &Config{}
	}
	def := DefaultConfig()
	if out.DialTimeout <= 0 {
		out.DialTimeout = def.DialTimeout
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = def.RequestTimeout
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = def.BackoffBase
	}
	if out.BackoffCap <= 0 {
		out.BackoffCap = def.BackoffCap
	}
	if out.MaxReconnectAttempts <= 0 {
		out.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if out.SubscriptionBuffer <= 0 {
		out.SubscriptionBuffer = def.SubscriptionBuffer
	}
	if out.ObserverBuffer <= 0 {
		out.ObserverBuffer = def.ObserverBuffer
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Clock == nil {
		out.Clock = clock.New()
	}
	if out.Dialer == nil {
		out.Dialer = &transport.WebSocketDialer{HandshakeTimeout: out.DialTimeout}
	}
	return out
}
