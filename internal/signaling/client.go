package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/dns"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// DefaultPingInterval keeps the relay from evicting an idle but
	// authenticated connection.
	DefaultPingInterval = 20 * time.Second
)

var (
	ErrMalformedMessage = errors.New("malformed signaling message")
	ErrNotConnected     = errors.New("signaling channel not open")
)

// Status is the connectivity of the signaling channel as shown to the user.
type Status string

const (
	StatusOn  Status = "ON"
	StatusOff Status = "OFF"
)

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithPingInterval sets the application-level keepalive period.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// Client owns the single control connection to the relay.
type Client struct {
	serverURL    string
	dialer       *websocket.Dialer
	pingInterval time.Duration

	messages chan *Envelope

	mu            sync.Mutex
	conn          *connection
	authenticated bool
	observers     []func(Status)
}

// connection is one dialed socket. A new Connect replaces it.
type connection struct {
	ws       *websocket.Conn
	outgoing chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewClient creates a new signaling client.
func NewClient(serverURL string, opts ...Option) *Client {
	resolver := dns.NewResolver()
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = resolver.DialContext

	c := &Client{
		serverURL:    serverURL,
		dialer:       &dialer,
		pingInterval: DefaultPingInterval,
		messages:     make(chan *Envelope, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Messages returns the channel of inbound envelopes that the session layer
// consumes: roster updates, failures and peer-relayed messages. It stays open
// across reconnects.
func (c *Client) Messages() <-chan *Envelope {
	return c.messages
}

// OnStatus registers an observer of ON/OFF transitions. Observers run on the
// client's read goroutine and must not block.
func (c *Client) OnStatus(fn func(Status)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Authenticated reports whether the relay confirmed our credential on the
// current connection.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Status returns ON while the channel is open and authenticated.
func (c *Client) Status() Status {
	if c.Authenticated() {
		return StatusOn
	}
	return StatusOff
}

// Connect dials the relay and sends the credential. An existing connection is
// closed first. Authentication completes asynchronously; observe it through
// OnStatus.
func (c *Client) Connect(ctx context.Context, credential string) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	c.mu.Lock()
	prev := c.conn
	c.mu.Unlock()
	if prev != nil {
		c.closeConnection(prev)
	}

	ws, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	conn := &connection{
		ws:       ws,
		outgoing: make(chan []byte, 32),
		done:     make(chan struct{}),
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.authenticated = false
	c.mu.Unlock()

	go c.readPump(conn)
	go c.writePump(conn)

	slog.Info("signaling connection established, sending credentials", "server", u.Host)
	auth, err := NewServerMessage(TypeUserAuthentication, credential)
	if err != nil {
		return err
	}
	c.Send(auth)
	return nil
}

// Send serializes and queues an envelope. When the channel is not open the
// envelope is dropped and logged; callers check Authenticated beforehand.
func (c *Client) Send(env *Envelope) {
	if err := c.send(env); err != nil {
		slog.Warn("dropping signaling message", "type", env.Type, "event", env.Event, "to", env.To, "err", err)
	}
}

func (c *Client) send(env *Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	select {
	case conn.outgoing <- b:
		return nil
	case <-conn.done:
		return ErrNotConnected
	}
}

// SendPeerLog forwards a diagnostic line to the relay log.
func (c *Client) SendPeerLog(peer PeerID, message string, objects ...any) {
	env, err := NewServerMessage(TypePeerLog, PeerLogPayload{
		PeerID:  fmt.Sprint(peer),
		Message: message,
		Objects: objects,
	})
	if err != nil {
		slog.Warn("failed to encode peer log", "err", err)
		return
	}
	c.Send(env)
}

// Close closes the current connection. The client can Connect again.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.closeConnection(conn)
	}
}

// closeConnection tears conn down once and, if it is still the current
// connection, clears authentication and reports OFF.
func (c *Client) closeConnection(conn *connection) {
	conn.once.Do(func() {
		close(conn.done)

		c.mu.Lock()
		current := c.conn == conn
		if current {
			c.conn = nil
			c.authenticated = false
		}
		c.mu.Unlock()

		if current {
			c.notify(StatusOff)
		}
	})
}

func (c *Client) setAuthenticated(conn *connection) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.authenticated = true
	c.mu.Unlock()

	slog.Info("signaling connection is authenticated")
	c.notify(StatusOn)
}

func (c *Client) notify(s Status) {
	c.mu.Lock()
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump(conn *connection) {
	defer func() {
		conn.ws.Close()
		c.closeConnection(conn)
	}()

	conn.ws.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Info("signaling connection closed cleanly", "err", err)
			} else {
				select {
				case <-conn.done:
				default:
					slog.Warn("signaling connection died", "err", err)
				}
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("dropping malformed signaling message", "err", err)
			continue
		}

		c.dispatch(conn, &env)
	}
}

// writePump writes queued messages and keeps the connection alive with
// WebSocket pings and relay-level PING messages.
func (c *Client) writePump(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	keepalive := time.NewTicker(c.pingInterval)

	defer func() {
		ticker.Stop()
		keepalive.Stop()
		conn.ws.Close()
	}()

	ping, _ := json.Marshal(&Envelope{Type: TypePing})

	for {
		select {
		case message := <-conn.outgoing:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-keepalive.C:
			if !c.Authenticated() {
				continue
			}
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}

		case <-conn.done:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			conn.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
