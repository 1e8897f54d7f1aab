package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"

	"github.com/fluxbase/flux-go/pkg/protocol"
	"github.com/fluxbase/flux-go/pkg/transport"
)

// ConnectionState is the observable connection state.
type ConnectionState int

const (
	// Connecting means the socket is closed and the client is connecting or
	// reconnecting. It is the initial state and the state after any close.
	Connecting ConnectionState = iota

	// Connected means the socket is open and the handshake has been sent.
	Connected
)

// String returns the string representation of the state.
func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Client is a sync protocol client: one WebSocket session multiplexing
// one-shot function calls and reactive query subscriptions.
//
// All protocol state lives on a single event-loop goroutine. Socket
// callbacks, timers, and public operations post work onto the loop, so the
// query set, the correlation table, and the connection state are never
// touched concurrently and need no locks.
type Client struct {
	cfg     *Config
	logger  *slog.Logger
	clk     clock.Clock
	dialer  transport.Dialer
	metrics *metricsSet
	syncURL string

	ops  chan func()
	done chan struct{}

	closeOnce  sync.Once
	closedFlag atomic.Bool

	stateCast *broadcaster[ConnectionState]
	authCast  *broadcaster[bool]
	lastFatal atomic.Pointer[ProtocolError]
	giveUp    chan struct{}
	giveUpOnce sync.Once

	// Everything below is owned by the event loop.

	requests *requestTable
	queries  *querySet
	boff     *backoff

	state   ConnectionState
	conn    transport.Conn
	gen     int
	dialing bool
	closed  bool

	sessionID       string
	connectionCount int
	lastCloseReason *string
	maxObservedTs   int64

	token string

	reconnectTimer   *clock.Timer
	connectedWaiters []chan struct{}
}

// New creates a client for the given deployment URL and starts connecting
// immediately. The deployment URL is rewritten to the WebSocket sync
// endpoint (https → wss, path /api/sync).
func New(deploymentURL string, cfg *Config) (*Client, error) {
	syncURL, err := transport.SyncURL(deploymentURL)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:       cfg,
		clk:       cfg.Clock,
		dialer:    cfg.Dialer,
		metrics:   newMetricsSet(cfg.MetricsRegistry),
		syncURL:   syncURL,
		ops:       make(chan func(), 32),
		done:      make(chan struct{}),
		stateCast: newBroadcaster[ConnectionState](cfg.ObserverBuffer),
		authCast:  newBroadcaster[bool](cfg.ObserverBuffer),
		giveUp:    make(chan struct{}),
		requests:  newRequestTable(),
		queries:   newQuerySet(),
		boff:      newBackoff(cfg.BackoffBase, cfg.BackoffCap, cfg.MaxReconnectAttempts),
		state:     Connecting,
		sessionID: ulid.Make().String(),
	}
	c.logger = cfg.Logger.With("session_id", c.sessionID)
	c.stateCast.publish(Connecting)

	go c.run()
	c.post(c.startDial)
	return c, nil
}

// run is the event loop. It exits when dispose closes done.
func (c *Client) run() {
	for {
		select {
		case op := <-c.ops:
			op()
		case <-c.done:
			return
		}
	}
}

// post queues op onto the event loop. Ops posted after Close are dropped.
func (c *Client) post(op func()) {
	select {
	case c.ops <- op:
	case <-c.done:
	}
}

// SessionID returns the client-generated session identifier, stable for the
// client's lifetime across reconnects.
func (c *Client) SessionID() string {
	return c.sessionID
}

// ConnectionStates returns a channel observing connection state changes.
// The current state is delivered first. The channel closes when the client
// is closed.
func (c *Client) ConnectionStates() <-chan ConnectionState {
	return c.stateCast.subscribe()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	s, ok := c.stateCast.current()
	if !ok {
		return Connecting
	}
	return s
}

// AuthStates returns a channel observing authentication state changes.
func (c *Client) AuthStates() <-chan bool {
	return c.authCast.subscribe()
}

// GiveUp returns a channel that is closed once the reconnect attempt
// ceiling has been reached. A manual Reconnect resets the attempt counter,
// but the channel stays closed; it marks that the ceiling was hit at least
// once.
func (c *Client) GiveUp() <-chan struct{} {
	return c.giveUp
}

// LastFatalError returns the most recent FatalError the server sent, if
// any.
func (c *Client) LastFatalError() error {
	if e := c.lastFatal.Load(); e != nil {
		return e
	}
	return nil
}

// Query executes a one-shot query and returns its first result.
//
// The protocol has no query message: the call adds a temporary entry to the
// query set and removes it again after the first Transition that covers it.
func (c *Client) Query(ctx context.Context, udfPath string, args protocol.Value) (protocol.Value, error) {
	ctx, span := startSpan(ctx, "query", udfPath)
	start := time.Now()

	value, err := c.runQuery(ctx, udfPath, args)

	c.metrics.observeOperation("query", time.Since(start).Seconds())
	endSpan(span, err)
	return value, err
}

func (c *Client) runQuery(ctx context.Context, udfPath string, args protocol.Value) (protocol.Value, error) {
	timeout := c.timeoutFor(ctx)
	result := make(chan requestResult, 1)
	entry := &queryEntry{udfPath: udfPath, args: args, oneShot: result}

	c.post(func() {
		if c.closed {
			result <- requestResult{err: ErrClientClosed}
			return
		}
		msg := c.queries.add(entry)
		c.metrics.setActiveQueries(c.queries.size())
		entry.timer = c.clk.AfterFunc(timeout, func() {
			c.post(func() { c.expireOneShot(entry) })
		})
		c.sendIfConnected(msg)
	})

	select {
	case r := <-result:
		return r.value, r.err
	case <-ctx.Done():
		c.post(func() { c.dropOneShot(entry) })
		return protocol.Value{}, ctx.Err()
	case <-c.done:
		return protocol.Value{}, ErrClientClosed
	}
}

// Mutation executes a mutation and returns its result.
func (c *Client) Mutation(ctx context.Context, udfPath string, args protocol.Value) (protocol.Value, error) {
	return c.call(ctx, kindMutation, udfPath, args)
}

// Action executes an action and returns its result.
func (c *Client) Action(ctx context.Context, udfPath string, args protocol.Value) (protocol.Value, error) {
	return c.call(ctx, kindAction, udfPath, args)
}

func (c *Client) call(ctx context.Context, kind requestKind, udfPath string, args protocol.Value) (protocol.Value, error) {
	ctx, span := startSpan(ctx, string(kind), udfPath)
	start := time.Now()

	value, err := c.runCall(ctx, kind, udfPath, args)

	c.metrics.observeOperation(string(kind), time.Since(start).Seconds())
	endSpan(span, err)
	return value, err
}

func (c *Client) runCall(ctx context.Context, kind requestKind, udfPath string, args protocol.Value) (protocol.Value, error) {
	timeout := c.timeoutFor(ctx)
	result := make(chan requestResult, 1)
	var requestID int64

	registered := make(chan struct{})
	c.post(func() {
		defer close(registered)
		if c.closed {
			result <- requestResult{err: ErrClientClosed}
			return
		}
		req := c.requests.register(kind, udfPath, result)
		requestID = req.id
		req.timer = c.clk.AfterFunc(timeout, func() {
			c.post(func() {
				if c.requests.fail(req.id, ErrTimeout) {
					c.metrics.setPendingRequests(c.requests.size())
				}
			})
		})
		c.metrics.setPendingRequests(c.requests.size())

		var msg protocol.ClientMessage
		if kind == kindMutation {
			msg = protocol.NewMutationRequest(req.id, udfPath, args)
		} else {
			msg = protocol.NewActionRequest(req.id, udfPath, args)
		}
		req.msg = msg
		c.sendIfConnected(msg)
	})

	select {
	case r := <-result:
		return r.value, r.err
	case <-ctx.Done():
		<-registered
		c.post(func() {
			if c.requests.fail(requestID, ctx.Err()) {
				c.metrics.setPendingRequests(c.requests.size())
			}
		})
		return protocol.Value{}, ctx.Err()
	case <-c.done:
		return protocol.Value{}, ErrClientClosed
	}
}

// Subscribe adds a durable subscription for the given query. Updates arrive
// on the returned handle's channel until Cancel or client Close; the
// subscription silently survives reconnects.
func (c *Client) Subscribe(udfPath string, args protocol.Value) *Subscription {
	sub := &Subscription{
		client:  c,
		udfPath: udfPath,
		updates: make(chan Result, c.cfg.SubscriptionBuffer),
	}
	c.post(func() {
		if c.closed {
			sub.closeChannel()
			return
		}
		entry := &queryEntry{udfPath: udfPath, args: args, sub: sub}
		msg := c.queries.add(entry)
		sub.id = entry.id
		c.metrics.setActiveQueries(c.queries.size())
		c.sendIfConnected(msg)
	})
	return sub
}

// SetAuth caches the auth token and, when connected, sends it to the
// server. An empty token clears the auth state; the server is not notified
// of a clear, the token simply stops being offered on future handshakes.
func (c *Client) SetAuth(token string) {
	c.post(func() {
		if c.closed {
			return
		}
		c.token = token
		authed := token != ""
		if authed && c.state == Connected {
			c.send(protocol.NewAuthenticate(token))
		}
		c.authCast.publish(authed)
	})
}

// Reconnect closes any existing socket and dials a fresh one immediately,
// bypassing backoff and resetting the attempt counter. It returns once the
// client reaches Connected, or with an error when ctx expires first.
func (c *Client) Reconnect(ctx context.Context) error {
	connected := make(chan struct{})
	c.post(func() {
		if c.closed {
			return
		}
		c.boff.reset()
		if c.reconnectTimer != nil {
			c.reconnectTimer.Stop()
			c.reconnectTimer = nil
		}
		if c.conn != nil {
			c.conn.Close(1000, "manual reconnect")
			c.conn = nil
		}
		c.gen++ // invalidate callbacks from the old socket
		c.dialing = false
		c.setState(Connecting)
		c.connectedWaiters = append(c.connectedWaiters, connected)
		c.startDial()
	})

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrReconnectTimeout
		}
		return ctx.Err()
	case <-c.done:
		return ErrClientClosed
	}
}

// Close disposes the client: pending requests fail with ErrClientClosed,
// subscription channels close, the socket closes, and all observers are
// released. Close blocks until disposal completes and is idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closedFlag.Store(true)
		c.post(c.dispose)
	})
	<-c.done
}

// dispose runs on the event loop, exactly once.
func (c *Client) dispose() {
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.requests.cancelAll(ErrClientClosed)
	for _, entry := range c.queries.all() {
		if entry.oneShot != nil {
			entry.oneShot <- requestResult{err: ErrClientClosed}
		}
		if entry.sub != nil {
			entry.sub.closeChannel()
		}
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	if c.conn != nil {
		c.conn.Close(1000, "client closed")
		c.conn = nil
	}
	c.stateCast.close()
	c.authCast.close()
	close(c.done)
}

// timeoutFor derives the one-shot deadline from the caller's context, or
// falls back to the configured request timeout.
func (c *Client) timeoutFor(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
		return time.Nanosecond
	}
	return c.cfg.RequestTimeout
}

// expireOneShot times out a pending one-shot query. Runs on the event
// loop. A response that already arrived wins; the timer firing late is a
// no-op because the entry is gone.
func (c *Client) expireOneShot(entry *queryEntry) {
	if live, ok := c.queries.get(entry.id); !ok || live != entry {
		return
	}
	removeMsg, _ := c.queries.remove(entry.id)
	c.metrics.setActiveQueries(c.queries.size())
	c.sendIfConnected(removeMsg)
	entry.oneShot <- requestResult{err: ErrTimeout}
}

// dropOneShot removes a one-shot entry without delivering a result, used
// when the caller's context is cancelled. Runs on the event loop.
func (c *Client) dropOneShot(entry *queryEntry) {
	if live, ok := c.queries.get(entry.id); !ok || live != entry {
		return
	}
	removeMsg, _ := c.queries.remove(entry.id)
	c.metrics.setActiveQueries(c.queries.size())
	c.sendIfConnected(removeMsg)
}

// cancelSubscription removes a durable subscription. Runs on the event
// loop. Delivery stops immediately; the Remove message is best-effort.
func (c *Client) cancelSubscription(sub *Subscription) {
	sub.closeChannel()
	entry, ok := c.queries.get(sub.id)
	if !ok || entry.sub != sub {
		// Already removed, or never registered because the client closed
		// first. Nothing on the wire to undo.
		return
	}
	removeMsg, _ := c.queries.remove(sub.id)
	c.metrics.setActiveQueries(c.queries.size())
	c.sendIfConnected(removeMsg)
}
