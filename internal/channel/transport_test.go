package channel

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/forge3d/realtime/internal/config"
	"github.com/forge3d/realtime/internal/model"
)

func TestBackoffDelaySequence(t *testing.T) {
	base := time.Second
	want := []time.Duration{
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := backoffDelay(base, attempt); got != expected {
			t.Fatalf("attempt %d: got %v, want %v", attempt, got, expected)
		}
	}
}

func TestSendWhenClosedReturnsFalse(t *testing.T) {
	tr := NewTransport(config.ChannelConfig{URL: "ws://127.0.0.1:1/ws"}, NewRouter())
	if tr.Send(model.Directive{Action: model.WSActionPing}) {
		t.Fatal("Send on a closed transport must return false")
	}
}

func TestSubscriptionSetDedupAndOrder(t *testing.T) {
	tr := NewTransport(config.ChannelConfig{URL: "ws://127.0.0.1:1/ws"}, NewRouter())

	tr.SubscribeToJob("a")
	tr.SubscribeToJob("b")
	tr.SubscribeToJob("a") // duplicate
	tr.SubscribeToJob("c")
	tr.UnsubscribeFromJob("b")
	tr.UnsubscribeFromJob("b") // already gone

	got := tr.Subscriptions()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c], got %v", got)
	}
}

func TestReconnectExhaustion(t *testing.T) {
	router := NewRouter()
	tr := NewTransport(config.ChannelConfig{
		URL:                   "ws://127.0.0.1:1/ws", // nothing listens here
		ReconnectBaseInterval: time.Millisecond,
		MaxReconnectAttempts:  2,
		PingInterval:          time.Hour,
	}, router)

	exhausted := make(chan struct{})
	router.OnError(func(err error) {
		if errors.Is(err, ErrReconnectExhausted) {
			close(exhausted)
		}
	})

	tr.Connect()

	select {
	case <-exhausted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exhaustion")
	}
	if !tr.GaveUp() {
		t.Fatal("expected GaveUp after exhaustion")
	}
	if tr.State() != StateClosed {
		t.Fatalf("expected closed state, got %v", tr.State())
	}
}

// testServer is a minimal live endpoint: each accepted connection is
// handed to the test, inbound directives are queued, pings are answered.
type testServer struct {
	app   *fiber.App
	url   string
	conns chan *testConn
}

type testConn struct {
	directives chan model.Directive
	close      func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	srv := &testServer{conns: make(chan *testConn, 4)}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	// Without KeepHijackedConns, fasthttp's hijacked-conn Close is a
	// no-op, so testConn.close could never tear down the stream.
	app.Server().KeepHijackedConns = true

	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/progress", fiberws.New(func(c *fiberws.Conn) {
		// Closing the wrapped conn from outside the handler does not
		// tear down fasthttp's hijacked stream; the raw net.Conn does.
		tc := &testConn{
			directives: make(chan model.Directive, 16),
			close:      func() { _ = c.NetConn().Close() },
		}
		srv.conns <- tc
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				close(tc.directives)
				return
			}
			var d model.Directive
			if json.Unmarshal(data, &d) != nil {
				continue
			}
			if d.Action == model.WSActionPing {
				_ = c.WriteMessage(fiberws.TextMessage, []byte(`{"type":"pong"}`))
				continue
			}
			tc.directives <- d
		}
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	srv.app = app
	srv.url = "ws://" + ln.Addr().String() + "/ws/progress"
	return srv
}

func waitConn(t *testing.T, srv *testServer) *testConn {
	t.Helper()
	select {
	case tc := <-srv.conns:
		return tc
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func waitDirective(t *testing.T, tc *testConn) model.Directive {
	t.Helper()
	select {
	case d, ok := <-tc.directives:
		if !ok {
			t.Fatal("connection closed while waiting for directive")
		}
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for directive")
		return model.Directive{}
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	srv := startTestServer(t)
	router := NewRouter()
	tr := NewTransport(config.ChannelConfig{
		URL:                   srv.url,
		ReconnectBaseInterval: 10 * time.Millisecond,
		MaxReconnectAttempts:  5,
		PingInterval:          time.Hour,
	}, router)
	defer tr.Disconnect()

	tr.Connect()
	waitConn(t, srv)

	tr.Connect()
	tr.Connect()

	select {
	case <-srv.conns:
		t.Fatal("repeat Connect opened a second connection")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscriptionReplayOnReconnect(t *testing.T) {
	srv := startTestServer(t)
	router := NewRouter()
	tr := NewTransport(config.ChannelConfig{
		URL:                   srv.url,
		ReconnectBaseInterval: 10 * time.Millisecond,
		MaxReconnectAttempts:  5,
		PingInterval:          time.Hour,
	}, router)
	defer tr.Disconnect()

	// Subscribed before the channel opens; must be replayed on open.
	tr.SubscribeToJob("job-a")

	tr.Connect()
	first := waitConn(t, srv)

	if d := waitDirective(t, first); d.Action != model.WSActionSubscribe || d.JobID != "job-a" {
		t.Fatalf("expected replay of job-a, got %+v", d)
	}

	// Live subscription goes out immediately.
	tr.SubscribeToJob("job-b")
	if d := waitDirective(t, first); d.Action != model.WSActionSubscribe || d.JobID != "job-b" {
		t.Fatalf("expected live subscribe of job-b, got %+v", d)
	}

	// Kill the connection server-side; the transport reconnects and
	// replays both subscriptions, in order, exactly once.
	first.close()
	second := waitConn(t, srv)

	if d := waitDirective(t, second); d.JobID != "job-a" {
		t.Fatalf("expected job-a first, got %+v", d)
	}
	if d := waitDirective(t, second); d.JobID != "job-b" {
		t.Fatalf("expected job-b second, got %+v", d)
	}
	select {
	case d := <-second.directives:
		t.Fatalf("unexpected extra directive after replay: %+v", d)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPingKeepaliveAndPong(t *testing.T) {
	srv := startTestServer(t)
	router := NewRouter()
	tr := NewTransport(config.ChannelConfig{
		URL:                   srv.url,
		ReconnectBaseInterval: 10 * time.Millisecond,
		MaxReconnectAttempts:  5,
		PingInterval:          20 * time.Millisecond,
	}, router)
	defer tr.Disconnect()

	// Pongs must never surface as events.
	router.OnEvent(func(ev model.Event) {
		if _, ok := ev.(*model.PongEvent); ok {
			t.Error("pong reached event handlers")
		}
	})

	tr.Connect()
	waitConn(t, srv)

	deadline := time.Now().Add(5 * time.Second)
	for tr.LastPong().IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("no pong recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIntentionalDisconnectDoesNotReconnect(t *testing.T) {
	srv := startTestServer(t)
	router := NewRouter()
	tr := NewTransport(config.ChannelConfig{
		URL:                   srv.url,
		ReconnectBaseInterval: 10 * time.Millisecond,
		MaxReconnectAttempts:  5,
		PingInterval:          time.Hour,
	}, router)

	tr.Connect()
	waitConn(t, srv)

	tr.Disconnect()

	select {
	case <-srv.conns:
		t.Fatal("transport reconnected after intentional disconnect")
	case <-time.After(200 * time.Millisecond):
	}
	if tr.State() != StateClosed {
		t.Fatalf("expected closed, got %v", tr.State())
	}
}
