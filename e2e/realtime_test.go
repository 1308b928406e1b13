package e2e

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/forge3d/realtime/internal/channel"
	"github.com/forge3d/realtime/internal/config"
	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/session"
)

// startRealtime exposes the test app on a real listener, with the hub's
// websocket endpoint mounted, and returns its base address.
func startRealtime(t *testing.T, ta *testApp) string {
	t.Helper()

	ta.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ta.app.Get("/ws/progress", websocket.New(func(c *websocket.Conn) {
		ta.hub.HandleConnection(c)
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = ta.app.Listener(ln) }()
	t.Cleanup(func() { _ = ta.app.Shutdown() })

	return ln.Addr().String()
}

func sessionConfig(addr string) *config.Config {
	return &config.Config{
		Channel: config.ChannelConfig{
			URL:                   "ws://" + addr + "/ws/progress",
			ReconnectBaseInterval: 50 * time.Millisecond,
			MaxReconnectAttempts:  5,
			PingInterval:          100 * time.Millisecond,
		},
		Backend: config.BackendConfig{
			BaseURL: "http://" + addr,
			Timeout: 10 * time.Second,
		},
		Poll: config.PollConfig{Interval: time.Hour},
	}
}

// TestSessionAgainstLiveServer drives the full realtime path: a session
// connects over a real socket, receives the greeting snapshot, submits
// a job over HTTP, and sees the job_created broadcast come back.
func TestSessionAgainstLiveServer(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)
	addr := startRealtime(t, ta)

	s := session.NewSession(sessionConfig(addr))
	defer s.Close()

	snapshot := make(chan struct{}, 1)
	created := make(chan *model.JobCreatedEvent, 1)
	s.Router().OnEvent(func(ev model.Event) {
		switch e := ev.(type) {
		case *model.QueueStatusEvent:
			select {
			case snapshot <- struct{}{}:
			default:
			}
		case *model.JobCreatedEvent:
			select {
			case created <- e:
			default:
			}
		}
	})

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-snapshot:
	case <-time.After(5 * time.Second):
		t.Fatal("no queue_status greeting received")
	}

	resp, err := s.GenerateAsset(context.Background(), &model.GenerationRequest{
		Type:       model.JobTypeTextTo3D,
		Prompt:     "a bronze rabbit",
		Parameters: model.DefaultGenerationParameters(),
	})
	if err != nil {
		t.Fatalf("submit over live server failed: %v", err)
	}

	select {
	case ev := <-created:
		if ev.JobID != resp.JobID {
			t.Fatalf("job_created for %s, submitted %s", ev.JobID, resp.JobID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no job_created broadcast received")
	}

	job, ok := s.Job(resp.JobID)
	if !ok {
		t.Fatal("submitted job missing from tracker")
	}
	if job.Status != model.JobStatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if !s.IsGenerating() {
		t.Fatal("expected generating flag while job queued")
	}
}

// TestHubPipelineBroadcast checks that a server-side pipeline mutation
// reaches a connected session.
func TestHubPipelineBroadcast(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)
	addr := startRealtime(t, ta)

	s := session.NewSession(sessionConfig(addr))
	defer s.Close()
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.ChannelState() != channel.StateOpen {
		if time.Now().After(deadline) {
			t.Fatal("session never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ta.pipelineService.LoadShape()

	for {
		status, at := s.Pipeline()
		if !at.IsZero() && status.ShapeLoaded {
			if status.VRAMFreeGB >= status.VRAMTotalGB {
				t.Fatalf("expected VRAM accounted for, got %+v", status)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline broadcast never arrived, last %+v", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
