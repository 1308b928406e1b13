package channel

import (
	"log"
	"sync"

	"github.com/forge3d/realtime/internal/model"
)

// Router decodes inbound frames into typed events and fans them out to
// registered handlers. It carries no business logic; subscribers fold
// events into their own state.
type Router struct {
	mu                 sync.Mutex
	nextID             int
	eventHandlers      map[int]func(model.Event)
	connectHandlers    map[int]func()
	disconnectHandlers map[int]func()
	errorHandlers      map[int]func(error)

	// pongHook is set by the transport; pong frames are consumed here
	// and never reach external subscribers.
	pongHook func()
}

// Subscription undoes a handler registration.
type Subscription struct {
	cancel func()
}

// Cancel removes the handler. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		eventHandlers:      make(map[int]func(model.Event)),
		connectHandlers:    make(map[int]func()),
		disconnectHandlers: make(map[int]func()),
		errorHandlers:      make(map[int]func(error)),
	}
}

// OnEvent registers a handler for every decoded event.
func (r *Router) OnEvent(h func(model.Event)) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.eventHandlers[id] = h
	return &Subscription{cancel: func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.eventHandlers, id)
	}}
}

// OnConnect registers a handler invoked after every successful open.
func (r *Router) OnConnect(h func()) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.connectHandlers[id] = h
	return &Subscription{cancel: func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.connectHandlers, id)
	}}
}

// OnDisconnect registers a handler invoked after the connection closes.
func (r *Router) OnDisconnect(h func()) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.disconnectHandlers[id] = h
	return &Subscription{cancel: func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.disconnectHandlers, id)
	}}
}

// OnError registers a handler for transport faults.
func (r *Router) OnError(h func(error)) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.errorHandlers[id] = h
	return &Subscription{cancel: func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.errorHandlers, id)
	}}
}

// HandleFrame decodes one raw frame and dispatches it. Frames that fail
// to parse or carry an unknown type are dropped and logged, never fatal.
func (r *Router) HandleFrame(data []byte) {
	ev, err := model.DecodeEvent(data)
	if err != nil {
		log.Printf("[Channel] Dropping frame: %v", err)
		return
	}

	if _, ok := ev.(*model.PongEvent); ok {
		r.mu.Lock()
		hook := r.pongHook
		r.mu.Unlock()
		if hook != nil {
			hook()
		}
		return
	}

	for _, h := range r.snapshotEventHandlers() {
		invoke(func() { h(ev) })
	}
}

func (r *Router) emitConnect() {
	r.mu.Lock()
	hs := make([]func(), 0, len(r.connectHandlers))
	for _, h := range r.connectHandlers {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		invoke(h)
	}
}

func (r *Router) emitDisconnect() {
	r.mu.Lock()
	hs := make([]func(), 0, len(r.disconnectHandlers))
	for _, h := range r.disconnectHandlers {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		invoke(h)
	}
}

func (r *Router) emitError(err error) {
	r.mu.Lock()
	hs := make([]func(error), 0, len(r.errorHandlers))
	for _, h := range r.errorHandlers {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		h := h
		invoke(func() { h(err) })
	}
}

func (r *Router) setPongHook(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pongHook = hook
}

func (r *Router) snapshotEventHandlers() []func(model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs := make([]func(model.Event), 0, len(r.eventHandlers))
	for _, h := range r.eventHandlers {
		hs = append(hs, h)
	}
	return hs
}

// invoke runs one handler, absorbing panics so one bad subscriber
// cannot starve the others or kill the read loop.
func invoke(h func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Channel] Handler panic recovered: %v", rec)
		}
	}()
	h()
}
