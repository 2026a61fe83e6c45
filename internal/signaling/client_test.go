package signaling_test

import (
	"context"
	"testing"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	"github.com/BioHazard786/Warpdrop/meet/internal/signaling/signalingtest"
)

const testTimeout = 5 * time.Second

func newRelay(t *testing.T) *signalingtest.Relay {
	t.Helper()
	r := signalingtest.NewRelay(map[string]signaling.PeerID{
		"alpha": 1,
		"bravo": 2,
	})
	t.Cleanup(r.Close)
	return r
}

func connect(t *testing.T, relay *signalingtest.Relay, secret string, opts ...signaling.Option) (*signaling.Client, <-chan signaling.Status) {
	t.Helper()

	c := signaling.NewClient(relay.URL(), opts...)
	statuses := make(chan signaling.Status, 16)
	c.OnStatus(func(s signaling.Status) { statuses <- s })

	if err := c.Connect(context.Background(), secret); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Close)
	return c, statuses
}

func waitStatus(t *testing.T, ch <-chan signaling.Status, want signaling.Status) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("status=%s, want %s", got, want)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for status %s", want)
	}
}

func nextMessage(t *testing.T, c *signaling.Client) *signaling.Envelope {
	t.Helper()
	select {
	case env := <-c.Messages():
		return env
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for message")
		return nil
	}
}

func TestClient_AuthenticatesAndReportsOn(t *testing.T) {
	relay := newRelay(t)
	c, statuses := connect(t, relay, "alpha")

	waitStatus(t, statuses, signaling.StatusOn)
	if !c.Authenticated() {
		t.Fatalf("Authenticated=false after ON")
	}
	if c.Status() != signaling.StatusOn {
		t.Fatalf("Status=%s, want ON", c.Status())
	}
}

func TestClient_NotifiesEveryObserver(t *testing.T) {
	relay := newRelay(t)
	c := signaling.NewClient(relay.URL())
	first := make(chan signaling.Status, 16)
	second := make(chan signaling.Status, 16)
	c.OnStatus(func(s signaling.Status) { first <- s })
	c.OnStatus(func(s signaling.Status) { second <- s })

	if err := c.Connect(context.Background(), "alpha"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Close)

	waitStatus(t, first, signaling.StatusOn)
	waitStatus(t, second, signaling.StatusOn)

	c.Close()
	waitStatus(t, first, signaling.StatusOff)
	waitStatus(t, second, signaling.StatusOff)
}

func TestClient_InvalidCredentialStaysOff(t *testing.T) {
	relay := newRelay(t)
	c, statuses := connect(t, relay, "wrong")

	join, _ := signaling.NewServerMessage(signaling.TypeJoinRoom, nil)
	c.Send(join)

	env := nextMessage(t, c)
	if env.Type != signaling.TypeFailure {
		t.Fatalf("Type=%s, want FAILURE", env.Type)
	}
	var f signaling.FailurePayload
	if err := env.Decode(&f); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(f.Errors) != 1 || f.Errors[0] != "NOT_AUTHENTICATED" {
		t.Fatalf("Errors=%v", f.Errors)
	}
	if c.Authenticated() {
		t.Fatalf("Authenticated=true with a bad credential")
	}
	select {
	case s := <-statuses:
		t.Fatalf("unexpected status %s", s)
	default:
	}
}

func TestClient_DeliversRosterAndIgnoresUnknownTypes(t *testing.T) {
	relay := newRelay(t)
	c, statuses := connect(t, relay, "alpha")
	waitStatus(t, statuses, signaling.StatusOn)

	relay.SendRaw(1, []byte(`{"type":"SOMETHING_NEW","data":1}`))
	relay.SendRaw(1, []byte(`not json`))

	join, _ := signaling.NewServerMessage(signaling.TypeJoinRoom, nil)
	c.Send(join)

	env := nextMessage(t, c)
	if env.Type != signaling.TypeRoomMembers {
		t.Fatalf("Type=%s, want ROOM_MEMBERS", env.Type)
	}
	r, err := env.Roster()
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(r) != 1 || r[0] != 1 {
		t.Fatalf("Roster=%v, want [1]", r)
	}
}

func TestClient_RelaysPeerMessages(t *testing.T) {
	relay := newRelay(t)
	a, sa := connect(t, relay, "alpha")
	b, sb := connect(t, relay, "bravo")
	waitStatus(t, sa, signaling.StatusOn)
	waitStatus(t, sb, signaling.StatusOn)

	env, err := signaling.NewPeerMessage(1, 2, signaling.EventOffer, map[string]string{"type": "offer", "sdp": "v=0"})
	if err != nil {
		t.Fatalf("NewPeerMessage: %v", err)
	}
	a.Send(env)

	got := nextMessage(t, b)
	if got.IsServer() {
		t.Fatalf("expected peer message, got type %s", got.Type)
	}
	if got.From != 1 || got.To != 2 || got.Event != signaling.EventOffer {
		t.Fatalf("got %+v", got)
	}
}

func TestClient_CloseReportsOffAndDropsSends(t *testing.T) {
	relay := newRelay(t)
	c, statuses := connect(t, relay, "alpha")
	waitStatus(t, statuses, signaling.StatusOn)

	c.Close()
	waitStatus(t, statuses, signaling.StatusOff)
	if c.Authenticated() {
		t.Fatalf("Authenticated=true after Close")
	}

	join, _ := signaling.NewServerMessage(signaling.TypeJoinRoom, nil)
	c.Send(join)

	time.Sleep(50 * time.Millisecond)
	for _, env := range relay.Received() {
		if env.Type == signaling.TypeJoinRoom {
			t.Fatalf("JOIN_ROOM reached the relay after Close")
		}
	}
}

func TestClient_ServerDropReportsOffWithoutReconnect(t *testing.T) {
	relay := newRelay(t)
	c, statuses := connect(t, relay, "alpha")
	waitStatus(t, statuses, signaling.StatusOn)

	relay.Drop(1)
	waitStatus(t, statuses, signaling.StatusOff)

	select {
	case s := <-statuses:
		t.Fatalf("unexpected status %s, client must not reconnect", s)
	case <-time.After(200 * time.Millisecond):
	}
	if c.Authenticated() {
		t.Fatalf("Authenticated=true after drop")
	}
}

func TestClient_ReconnectReplacesConnection(t *testing.T) {
	relay := newRelay(t)
	c, statuses := connect(t, relay, "alpha")
	waitStatus(t, statuses, signaling.StatusOn)

	if err := c.Connect(context.Background(), "alpha"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitStatus(t, statuses, signaling.StatusOff)
	waitStatus(t, statuses, signaling.StatusOn)
}

func TestClient_KeepaliveSendsPing(t *testing.T) {
	relay := newRelay(t)
	_, statuses := connect(t, relay, "alpha", signaling.WithPingInterval(20*time.Millisecond))
	waitStatus(t, statuses, signaling.StatusOn)

	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		for _, env := range relay.Received() {
			if env.Type == signaling.TypePing {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("relay never received PING")
}

func TestClient_SendPeerLog(t *testing.T) {
	relay := newRelay(t)
	c, statuses := connect(t, relay, "alpha")
	waitStatus(t, statuses, signaling.StatusOn)

	c.SendPeerLog(2, "ice restart", "disconnected")

	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		for _, env := range relay.Received() {
			if env.Type != signaling.TypePeerLog {
				continue
			}
			var p signaling.PeerLogPayload
			if err := env.Decode(&p); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if p.PeerID != "2" || p.Message != "ice restart" {
				t.Fatalf("payload=%+v", p)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("relay never received PEER_LOG")
}

func TestClient_ConnectInvalidURL(t *testing.T) {
	c := signaling.NewClient("://bad")
	if err := c.Connect(context.Background(), "x"); err == nil {
		t.Fatalf("expected error for invalid URL")
	}
}
