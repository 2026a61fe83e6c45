// Package signalingtest provides an in-process relay that speaks the
// signaling protocol, for tests of clients and call managers.
package signalingtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"

	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Relay is a minimal signaling relay: it authenticates secrets, tracks a
// single room and forwards peer messages.
type Relay struct {
	server  *httptest.Server
	secrets map[string]signaling.PeerID

	// register, unregister and inbound feed the hub loop, which is the
	// only goroutine that touches clients and room.
	register   chan *relayClient
	unregister chan *relayClient
	inbound    chan inbound
	calls      chan func()
	stop       chan struct{}

	clients map[*relayClient]struct{}
	byID    map[signaling.PeerID]*relayClient
	room    []signaling.PeerID

	mu       sync.Mutex
	received []signaling.Envelope
}

type relayClient struct {
	conn *websocket.Conn
	send chan []byte
	id   signaling.PeerID
	auth bool
}

type inbound struct {
	client *relayClient
	data   []byte
}

// NewRelay starts a relay that accepts the given secret to id mapping.
func NewRelay(secrets map[string]signaling.PeerID) *Relay {
	r := &Relay{
		secrets:    secrets,
		register:   make(chan *relayClient),
		unregister: make(chan *relayClient),
		inbound:    make(chan inbound, 64),
		calls:      make(chan func()),
		stop:       make(chan struct{}),
		clients:    make(map[*relayClient]struct{}),
		byID:       make(map[signaling.PeerID]*relayClient),
	}
	go r.run()
	r.server = httptest.NewServer(http.HandlerFunc(r.serveWs))
	return r
}

// URL returns the ws:// address of the relay.
func (r *Relay) URL() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

// Close stops the relay and drops every connection.
func (r *Relay) Close() {
	r.server.CloseClientConnections()
	r.server.Close()
	close(r.stop)
}

// Received returns every envelope the relay has parsed, in arrival order.
func (r *Relay) Received() []signaling.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]signaling.Envelope(nil), r.received...)
}

// Room returns the current room members.
func (r *Relay) Room() []signaling.PeerID {
	var out []signaling.PeerID
	r.do(func() { out = slices.Clone(r.room) })
	return out
}

// SendRaw writes data verbatim to the connection authenticated as id.
func (r *Relay) SendRaw(id signaling.PeerID, data []byte) {
	r.do(func() {
		if c, ok := r.byID[id]; ok {
			c.send <- data
		}
	})
}

// Drop closes the connection authenticated as id.
func (r *Relay) Drop(id signaling.PeerID) {
	r.do(func() {
		if c, ok := r.byID[id]; ok {
			c.conn.Close()
		}
	})
}

func (r *Relay) do(fn func()) {
	done := make(chan struct{})
	select {
	case r.calls <- func() { fn(); close(done) }:
		<-done
	case <-r.stop:
	}
}

func (r *Relay) serveWs(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	c := &relayClient{conn: conn, send: make(chan []byte, 256)}
	select {
	case r.register <- c:
	case <-r.stop:
		conn.Close()
		return
	}

	go r.writePump(c)
	go r.readPump(c)
}

func (r *Relay) readPump(c *relayClient) {
	defer func() {
		select {
		case r.unregister <- c:
		case <-r.stop:
		}
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case r.inbound <- inbound{client: c, data: data}:
		case <-r.stop:
			return
		}
	}
}

func (r *Relay) writePump(c *relayClient) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// run is the single goroutine that manages all relay state.
func (r *Relay) run() {
	for {
		select {
		case c := <-r.register:
			r.clients[c] = struct{}{}

		case c := <-r.unregister:
			delete(r.clients, c)
			if c.auth && r.byID[c.id] == c {
				delete(r.byID, c.id)
				r.leave(c.id)
			}
			close(c.send)

		case in := <-r.inbound:
			r.handle(in.client, in.data)

		case fn := <-r.calls:
			fn()

		case <-r.stop:
			return
		}
	}
}

func (r *Relay) handle(c *relayClient, data []byte) {
	if _, ok := r.clients[c]; !ok {
		return
	}

	var env signaling.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}

	r.mu.Lock()
	r.received = append(r.received, env)
	r.mu.Unlock()

	if !env.IsServer() {
		if !c.auth || env.From != c.id {
			return
		}
		if dest, ok := r.byID[env.To]; ok {
			dest.send <- data
		}
		return
	}

	if !c.auth && env.Type != signaling.TypeUserAuthentication {
		r.write(c, signaling.TypeFailure, signaling.FailurePayload{
			Source: signaling.MessageType("UNKNOWN"),
			Errors: []string{"NOT_AUTHENTICATED"},
		})
		return
	}

	switch env.Type {
	case signaling.TypeUserAuthentication:
		var secret string
		if err := env.Decode(&secret); err != nil {
			return
		}
		id, ok := r.secrets[secret]
		if !ok {
			return
		}
		if prev, ok := r.byID[id]; ok && prev != c {
			prev.conn.Close()
		}
		c.id, c.auth = id, true
		r.byID[id] = c
		r.write(c, signaling.TypeUserAuthenticated, nil)

	case signaling.TypeJoinRoom:
		if !slices.Contains(r.room, c.id) {
			r.room = append(r.room, c.id)
			r.broadcastRoom()
		}

	case signaling.TypeLeaveRoom:
		r.leave(c.id)

	case signaling.TypePing:
		r.write(c, signaling.TypePong, nil)
	}
}

func (r *Relay) leave(id signaling.PeerID) {
	i := slices.Index(r.room, id)
	if i < 0 {
		return
	}
	r.room = slices.Delete(r.room, i, i+1)
	r.broadcastRoom()
}

func (r *Relay) broadcastRoom() {
	members := slices.Clone(r.room)
	if members == nil {
		members = []signaling.PeerID{}
	}
	for _, c := range r.byID {
		r.write(c, signaling.TypeRoomMembers, members)
	}
}

func (r *Relay) write(c *relayClient, t signaling.MessageType, data any) {
	env, err := signaling.NewServerMessage(t, data)
	if err != nil {
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.send <- b
}
