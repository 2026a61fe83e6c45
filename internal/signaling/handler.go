package signaling

import "log/slog"

// dispatch classifies an inbound envelope. Authentication and keepalive
// replies are consumed here; everything the session layer needs is
// delivered on Messages.
func (c *Client) dispatch(conn *connection, env *Envelope) {
	if !env.IsServer() {
		c.deliver(conn, env)
		return
	}

	switch env.Type {

	case TypeUserAuthenticated:
		c.setAuthenticated(conn)

	case TypePong:
		slog.Debug("relay pong")

	case TypeRoomMembers:
		c.deliver(conn, env)

	case TypeFailure:
		c.handleFailure(env)
		c.deliver(conn, env)

	case TypeServerClosing:
		slog.Warn("relay is shutting down")
		c.deliver(conn, env)

	default:
		slog.Debug("unknown message type from server, ignoring it", "type", env.Type)
	}
}

// handleFailure logs a relay rejection.
func (c *Client) handleFailure(env *Envelope) {
	var f FailurePayload
	if err := env.Decode(&f); err != nil {
		slog.Warn("relay reported a failure", "err", err)
		return
	}
	slog.Warn("relay reported a failure", "source", f.Source, "errors", f.Errors)
}

// deliver hands env to the consumer unless the connection it arrived on has
// been closed in the meantime.
func (c *Client) deliver(conn *connection, env *Envelope) {
	select {
	case c.messages <- env:
	case <-conn.done:
	}
}
