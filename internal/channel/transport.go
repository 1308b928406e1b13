package channel

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/forge3d/realtime/internal/config"
	"github.com/forge3d/realtime/internal/model"
)

// State is the transport connection state.
type State string

const (
	StateClosed     State = "closed"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
)

// ErrReconnectExhausted is reported once the transport has used up its
// reconnect budget. The transport stays closed until Connect is called
// again; callers must surface this as a persistent disconnected state.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// Transport owns the single websocket connection to the backend. It
// reconnects with exponential backoff, keeps the connection alive with
// application-level pings, and replays job subscriptions on every open.
type Transport struct {
	cfg    config.ChannelConfig
	router *Router
	dialer *websocket.Dialer

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	attempts    int
	intentional bool
	exhausted   bool
	subs        []string // insertion order preserved for replay
	subSet      map[string]struct{}
	reconnect   *time.Timer
	pingStop    chan struct{}
	lastPong    time.Time

	writeMu sync.Mutex
}

// NewTransport creates a transport bound to a router. The router
// receives every decoded frame except pongs, which are consumed here.
func NewTransport(cfg config.ChannelConfig, router *Router) *Transport {
	t := &Transport{
		cfg:    cfg,
		router: router,
		dialer: websocket.DefaultDialer,
		state:  StateClosed,
		subSet: make(map[string]struct{}),
	}
	router.setPongHook(t.notePong)
	return t
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect opens the channel. It is idempotent: a transport that is
// already open or connecting is left alone. Calling Connect after the
// reconnect budget was exhausted starts a fresh attempt series.
func (t *Transport) Connect() {
	t.mu.Lock()
	if t.state != StateClosed {
		t.mu.Unlock()
		return
	}
	t.state = StateConnecting
	t.intentional = false
	t.exhausted = false
	t.attempts = 0
	t.mu.Unlock()

	go t.dial()
}

// Disconnect closes the channel and marks the closure as intentional so
// no reconnect is scheduled. Subscriptions are kept for a later Connect.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.intentional = true
	if t.reconnect != nil {
		t.reconnect.Stop()
		t.reconnect = nil
	}
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		// Read loop unblocks with an error and finishes the teardown.
		conn.Close()
	} else {
		t.mu.Lock()
		t.state = StateClosed
		t.mu.Unlock()
	}
}

// Send marshals a record onto the channel. Returns false without
// buffering when the channel is not open.
func (t *Transport) Send(v interface{}) bool {
	t.mu.Lock()
	if t.state != StateOpen || t.conn == nil {
		t.mu.Unlock()
		return false
	}
	conn := t.conn
	t.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[Channel] Failed to marshal outbound message: %v", err)
		return false
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[Channel] Write failed: %v", err)
		return false
	}
	return true
}

// SubscribeToJob adds a job id to the subscription set and, when open,
// transmits the subscribe directive immediately. The set survives
// reconnects and is replayed in insertion order on every open.
func (t *Transport) SubscribeToJob(jobID string) {
	t.mu.Lock()
	if _, ok := t.subSet[jobID]; ok {
		t.mu.Unlock()
		return
	}
	t.subSet[jobID] = struct{}{}
	t.subs = append(t.subs, jobID)
	open := t.state == StateOpen
	t.mu.Unlock()

	if open {
		t.Send(model.Directive{Action: model.WSActionSubscribe, JobID: jobID})
	}
}

// UnsubscribeFromJob removes a job id from the subscription set.
func (t *Transport) UnsubscribeFromJob(jobID string) {
	t.mu.Lock()
	if _, ok := t.subSet[jobID]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.subSet, jobID)
	for i, id := range t.subs {
		if id == jobID {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			break
		}
	}
	open := t.state == StateOpen
	t.mu.Unlock()

	if open {
		t.Send(model.Directive{Action: model.WSActionUnsubscribe, JobID: jobID})
	}
}

// Subscriptions returns the subscribed job ids in insertion order.
func (t *Transport) Subscriptions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.subs))
	copy(out, t.subs)
	return out
}

// GaveUp reports whether the last attempt series exhausted its budget.
func (t *Transport) GaveUp() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exhausted
}

func (t *Transport) dial() {
	conn, _, err := t.dialer.Dial(t.cfg.URL, nil)
	if err != nil {
		log.Printf("[Channel] Dial %s failed: %v", t.cfg.URL, err)
		t.mu.Lock()
		t.state = StateClosed
		t.mu.Unlock()
		t.router.emitError(err)
		t.scheduleReconnect()
		return
	}

	t.mu.Lock()
	if t.intentional {
		// Disconnect raced the dial; drop the fresh connection.
		t.state = StateClosed
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.state = StateOpen
	t.attempts = 0
	t.exhausted = false
	replay := make([]string, len(t.subs))
	copy(replay, t.subs)
	stop := make(chan struct{})
	t.pingStop = stop
	t.mu.Unlock()

	log.Printf("[Channel] Connected to %s", t.cfg.URL)

	for _, jobID := range replay {
		t.Send(model.Directive{Action: model.WSActionSubscribe, JobID: jobID})
	}

	t.router.emitConnect()

	go t.pingLoop(stop)
	go t.readLoop(conn)
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClose(conn, err)
			return
		}
		t.router.HandleFrame(data)
	}
}

func (t *Transport) handleClose(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		// A newer connection already replaced this one.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.state = StateClosed
	if t.pingStop != nil {
		close(t.pingStop)
		t.pingStop = nil
	}
	intentional := t.intentional
	t.mu.Unlock()

	conn.Close()

	if intentional {
		log.Printf("[Channel] Disconnected")
	} else {
		log.Printf("[Channel] Connection lost: %v", err)
	}

	t.router.emitDisconnect()

	if !intentional {
		t.scheduleReconnect()
	}
}

func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	if t.intentional {
		t.mu.Unlock()
		return
	}
	if t.attempts >= t.cfg.MaxReconnectAttempts {
		t.exhausted = true
		t.mu.Unlock()
		log.Printf("[Channel] Giving up after %d reconnect attempts", t.cfg.MaxReconnectAttempts)
		t.router.emitError(ErrReconnectExhausted)
		return
	}
	delay := backoffDelay(t.cfg.ReconnectBaseInterval, t.attempts)
	t.attempts++
	attempt := t.attempts
	t.reconnect = time.AfterFunc(delay, func() {
		t.mu.Lock()
		if t.intentional || t.state != StateClosed {
			t.mu.Unlock()
			return
		}
		t.state = StateConnecting
		t.mu.Unlock()
		go t.dial()
	})
	t.mu.Unlock()

	log.Printf("[Channel] Reconnect attempt %d in %v", attempt, delay)
}

func (t *Transport) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Send(model.Directive{Action: model.WSActionPing})
		case <-stop:
			return
		}
	}
}

func (t *Transport) notePong() {
	t.mu.Lock()
	t.lastPong = time.Now()
	t.mu.Unlock()
}

// LastPong returns the arrival time of the most recent pong. A missing
// pong does not by itself close the connection; liveness comes from the
// socket's own close signal.
func (t *Transport) LastPong() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPong
}

// backoffDelay computes the reconnect delay for an attempt number:
// base * 1.5^attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(1.5, float64(attempt)))
}
