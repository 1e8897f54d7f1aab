package client

import (
	"context"
	"strconv"

	"github.com/fluxbase/flux-go/pkg/protocol"
	"github.com/fluxbase/flux-go/pkg/transport"
)

// Everything in this file runs on the client event loop unless noted.
// Socket callbacks and dial results carry the generation they belong to;
// events from a socket that has since been replaced are dropped.

// startDial opens a fresh connection attempt.
func (c *Client) startDial() {
	if c.closed || c.dialing || c.conn != nil {
		return
	}
	c.dialing = true
	c.gen++
	gen := c.gen
	c.connectionCount++
	if c.connectionCount > 1 {
		c.metrics.recordReconnect()
	}
	c.logger.Debug("dialing", "url", c.syncURL, "connection_count", c.connectionCount)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
		defer cancel()

		conn, err := c.dialer.Dial(ctx, c.syncURL, transport.Callbacks{
			OnMessage: func(data []byte) {
				c.post(func() { c.handleMessage(gen, data) })
			},
			OnClose: func(code int, reason string, clean bool) {
				c.post(func() { c.handleSocketClose(gen, code, reason, clean) })
			},
			OnError: func(err error) {
				c.post(func() { c.handleSocketError(gen, err) })
			},
		})
		c.post(func() { c.handleDialResult(gen, conn, err) })
	}()
}

// handleDialResult finishes a connection attempt.
func (c *Client) handleDialResult(gen int, conn transport.Conn, err error) {
	if gen != c.gen || c.closed {
		if conn != nil {
			conn.Close(1000, "superseded")
		}
		return
	}
	c.dialing = false

	if err != nil {
		c.logger.Info("dial failed", "error", err)
		c.scheduleReconnect()
		return
	}

	c.conn = conn
	c.boff.reset()
	c.setState(Connected)

	// Handshake first, then auth, then the query-set rebuild. Nothing else
	// may go out on a fresh socket before these three.
	c.send(protocol.NewConnect(
		c.sessionID,
		c.connectionCount,
		c.lastCloseReason,
		c.clk.Now().UnixMilli(),
		c.maxObservedTs,
	))
	if c.token != "" {
		c.send(protocol.NewAuthenticate(c.token))
	}
	if batch := c.queries.rebuild(); batch != nil {
		c.send(batch)
	}
	// Requests that were in flight when the previous socket died are
	// retransmitted; their ids are process-unique so correlation holds.
	for _, req := range c.requests.inFlight() {
		if req.msg != nil {
			c.send(req.msg)
		}
	}
}

// handleSocketClose reacts to the socket dying, cleanly or not.
func (c *Client) handleSocketClose(gen int, code int, reason string, clean bool) {
	if gen != c.gen || c.closed {
		return
	}
	c.conn = nil
	closeReason := strconv.Itoa(code)
	c.lastCloseReason = &closeReason
	c.logger.Info("socket closed", "code", code, "reason", reason, "clean", clean)
	c.setState(Connecting)
	c.scheduleReconnect()
}

// handleSocketError logs a socket-level failure; OnClose always follows and
// drives the actual recovery.
func (c *Client) handleSocketError(gen int, err error) {
	if gen != c.gen || c.closed {
		return
	}
	c.logger.Warn("socket error", "error", err)
}

// scheduleReconnect arms the backoff timer for the next attempt, or gives
// up once the attempt ceiling is reached. Giving up is surfaced, never a
// crash; a manual Reconnect can still revive the client.
func (c *Client) scheduleReconnect() {
	if c.closed || c.dialing || c.conn != nil {
		return
	}
	delay, ok := c.boff.next()
	if !ok {
		c.logger.Error("reconnect attempts exhausted", "max_attempts", c.cfg.MaxReconnectAttempts)
		c.metrics.recordGiveUp()
		c.giveUpOnce.Do(func() { close(c.giveUp) })
		return
	}
	c.logger.Debug("scheduling reconnect", "delay", delay, "attempt", c.boff.attempts())
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = c.clk.AfterFunc(delay, func() {
		c.post(func() {
			c.reconnectTimer = nil
			c.startDial()
		})
	})
}

// setState transitions the connection state and notifies observers.
func (c *Client) setState(s ConnectionState) {
	if c.state == s {
		return
	}
	c.state = s
	c.metrics.setConnected(s == Connected)
	c.stateCast.publish(s)
	if s == Connected {
		for _, w := range c.connectedWaiters {
			close(w)
		}
		c.connectedWaiters = nil
	}
}

// handleMessage dispatches one inbound frame.
func (c *Client) handleMessage(gen int, data []byte) {
	if gen != c.gen || c.closed {
		return
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		// A single bad frame never tears down the connection.
		c.logger.Warn("dropping malformed message", "error", err)
		c.metrics.recordDecodeError()
		return
	}
	c.metrics.recordReceived(serverMessageType(msg))

	switch m := msg.(type) {
	case *protocol.Ping:
		// The server treats a missed pong as a dead connection; reply
		// before touching anything else.
		c.send(protocol.NewPong())

	case *protocol.Transition:
		c.handleTransition(m)

	case *protocol.MutationResponse:
		if m.Ts > c.maxObservedTs {
			c.maxObservedTs = m.Ts
		}
		c.completeRequest(m.RequestID, m.Success, m.Result, m.ErrorData)

	case *protocol.ActionResponse:
		c.completeRequest(m.RequestID, m.Success, m.Result, m.ErrorData)

	case *protocol.FatalError:
		perr := &ProtocolError{Message: m.Error}
		c.lastFatal.Store(perr)
		c.logger.Error("fatal protocol error", "error", m.Error)
		// Close deliberately; the close event funnels into the normal
		// reconnect path, which decides whether a fresh session is tried.
		if c.conn != nil {
			c.conn.Close(1000, "fatal error")
		}

	case *protocol.AuthError:
		c.logger.Warn("authentication rejected", "error", m.Error)
		c.token = ""
		c.authCast.publish(false)
	}
}

// handleTransition delivers new values to the affected query entries.
func (c *Client) handleTransition(tr *protocol.Transition) {
	for _, mod := range tr.Modifications {
		entry, ok := c.queries.get(mod.QueryID)
		if !ok {
			// Raced with a local cancellation; not an error.
			c.logger.Debug("transition for unknown query", "query_id", mod.QueryID)
			continue
		}

		var resultErr error
		if mod.ErrorMessage != "" {
			resultErr = &ApplicationError{
				UDFPath: entry.udfPath,
				Message: mod.ErrorMessage,
				Data:    mod.ErrorData,
			}
		}

		if entry.sub != nil {
			entry.sub.push(Result{Value: mod.Value, Err: resultErr})
			continue
		}

		// One-shot query: first value wins, then the temporary
		// subscription cancels itself.
		removeMsg, _ := c.queries.remove(entry.id)
		c.metrics.setActiveQueries(c.queries.size())
		c.sendIfConnected(removeMsg)
		entry.oneShot <- requestResult{value: mod.Value, err: resultErr}
	}
}

// completeRequest resolves or fails a pending one-shot request. Unknown ids
// are late or duplicate responses and are dropped.
func (c *Client) completeRequest(id int64, success *bool, result protocol.Value, errorData *protocol.Value) {
	req, ok := c.requests.lookup(id)
	if !ok {
		c.logger.Debug("response for unknown request", "request_id", id)
		return
	}

	if protocol.Succeeded(success) {
		c.requests.resolve(id, result)
	} else {
		message := result.String()
		if result.Kind() == protocol.KindString {
			message = result.AsString()
		}
		c.requests.fail(id, &ApplicationError{
			UDFPath: req.udfPath,
			Message: message,
			Data:    errorData,
		})
	}
	c.metrics.setPendingRequests(c.requests.size())
}

// send encodes and writes one message on the current socket.
func (c *Client) send(m protocol.ClientMessage) {
	if c.conn == nil {
		return
	}
	data, err := protocol.Encode(m)
	if err != nil {
		c.logger.Error("encode failed", "error", err)
		return
	}
	if err := c.conn.Send(data); err != nil {
		// The socket close event will follow and drive reconnection.
		c.logger.Warn("send failed", "error", err)
		return
	}
	c.metrics.recordSent(clientMessageType(m))
}

// sendIfConnected sends only while the session is connected. Dropping the
// message is fine: the query set is replayed in full on the next connect.
func (c *Client) sendIfConnected(m protocol.ClientMessage) {
	if c.state != Connected {
		return
	}
	c.send(m)
}

// clientMessageType returns the wire discriminator for metrics labels.
func clientMessageType(m protocol.ClientMessage) string {
	switch m.(type) {
	case *protocol.Connect:
		return protocol.TypeConnect
	case *protocol.ModifyQuerySet:
		return protocol.TypeModifyQuerySet
	case *protocol.MutationRequest:
		return protocol.TypeMutation
	case *protocol.ActionRequest:
		return protocol.TypeAction
	case *protocol.Authenticate:
		return protocol.TypeAuthenticate
	case *protocol.ClientEvent:
		return protocol.TypeEvent
	default:
		return "Unknown"
	}
}

// serverMessageType returns the wire discriminator for metrics labels.
func serverMessageType(m protocol.ServerMessage) string {
	switch m.(type) {
	case *protocol.Transition:
		return protocol.TypeTransition
	case *protocol.MutationResponse:
		return protocol.TypeMutationResponse
	case *protocol.ActionResponse:
		return protocol.TypeActionResponse
	case *protocol.Ping:
		return protocol.TypePing
	case *protocol.FatalError:
		return protocol.TypeFatalError
	case *protocol.AuthError:
		return protocol.TypeAuthError
	default:
		return "Unknown"
	}
}
