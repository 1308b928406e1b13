package channel

import (
	"testing"

	"github.com/forge3d/realtime/internal/model"
)

func TestHandleFrameDispatchesTypedEvent(t *testing.T) {
	r := NewRouter()

	var got model.Event
	r.OnEvent(func(ev model.Event) { got = ev })

	r.HandleFrame([]byte(`{"type":"progress","job_id":"j1","progress":0.3,"stage":"mesh","status":"processing"}`))

	ev, ok := got.(*model.ProgressEvent)
	if !ok {
		t.Fatalf("expected ProgressEvent, got %T", got)
	}
	if ev.JobID != "j1" || ev.Progress != 0.3 || ev.Status != model.JobStatusProcessing {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHandleFrameDropsMalformed(t *testing.T) {
	r := NewRouter()

	calls := 0
	r.OnEvent(func(model.Event) { calls++ })

	r.HandleFrame([]byte(`{broken`))
	r.HandleFrame([]byte(`{"type":"no_such_type"}`))
	r.HandleFrame([]byte(`{}`))

	if calls != 0 {
		t.Fatalf("bad frames reached handlers %d times", calls)
	}
}

func TestPongConsumedByHook(t *testing.T) {
	r := NewRouter()

	pongs := 0
	r.setPongHook(func() { pongs++ })

	leaked := 0
	r.OnEvent(func(model.Event) { leaked++ })

	r.HandleFrame([]byte(`{"type":"pong"}`))

	if pongs != 1 {
		t.Fatalf("expected 1 pong hook call, got %d", pongs)
	}
	if leaked != 0 {
		t.Fatalf("pong leaked to %d event handlers", leaked)
	}
}

func TestSubscriptionCancel(t *testing.T) {
	r := NewRouter()

	calls := 0
	sub := r.OnEvent(func(model.Event) { calls++ })

	r.HandleFrame([]byte(`{"type":"pipeline_status","shape_loaded":true}`))
	sub.Cancel()
	sub.Cancel() // second cancel is a no-op
	r.HandleFrame([]byte(`{"type":"pipeline_status","shape_loaded":true}`))

	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestPanickingHandlerDoesNotStarveOthers(t *testing.T) {
	r := NewRouter()

	r.OnEvent(func(model.Event) { panic("bad subscriber") })
	survived := false
	r.OnEvent(func(model.Event) { survived = true })

	r.HandleFrame([]byte(`{"type":"queue_status","queue_size":1,"pending_count":1,"processing_count":0}`))

	if !survived {
		t.Fatal("panic in one handler starved the others")
	}
}

func TestConnectAndErrorEmission(t *testing.T) {
	r := NewRouter()

	connects, disconnects, errs := 0, 0, 0
	r.OnConnect(func() { connects++ })
	r.OnDisconnect(func() { disconnects++ })
	r.OnError(func(error) { errs++ })

	r.emitConnect()
	r.emitDisconnect()
	r.emitError(ErrReconnectExhausted)

	if connects != 1 || disconnects != 1 || errs != 1 {
		t.Fatalf("unexpected emission counts: %d %d %d", connects, disconnects, errs)
	}
}
