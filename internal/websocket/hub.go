package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/forge3d/realtime/internal/model"
)

// Client represents one connected UI session.
type Client struct {
	Conn *websocket.Conn
	Send chan []byte

	// Job ids this client asked to follow. A client with an empty set
	// receives every job event; subscribing narrows the stream.
	subs map[string]bool
}

// Hub maintains active WebSocket connections. All clients attach to the
// single /ws/progress endpoint and narrow their stream with subscribe
// directives; queue, workflow, and pipeline broadcasts go to everyone.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	// statusProvider supplies the queue snapshot sent on connect and in
	// answer to request_status.
	statusProvider func() model.QueueStatus

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast. An empty JobID
// addresses every client.
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// SetStatusProvider wires the queue snapshot source.
func (h *Hub) SetStatusProvider(f func() model.QueueStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statusProvider = f
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Client connected (%d active)", h.clientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("Client disconnected (%d active)", h.clientCount())

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !h.wants(client, msg.JobID) {
					continue
				}
				select {
				case client.Send <- msg.Message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// wants reports whether a client should receive a message addressed to
// a job. Caller holds at least the read lock.
func (h *Hub) wants(client *Client, jobID string) bool {
	if jobID == "" {
		return true
	}
	if len(client.subs) == 0 {
		return true
	}
	return client.subs[jobID]
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) send(jobID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to marshal %T: %v", v, err)
		return
	}
	h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}
}

// BroadcastProgress sends a job progress update to its subscribers.
func (h *Hub) BroadcastProgress(jobID, assetID string, progress float64, stage string, status model.JobStatus, errMsg string) {
	h.send(jobID, model.ProgressEvent{
		Type:     model.WSTypeProgress,
		JobID:    jobID,
		AssetID:  assetID,
		Progress: progress,
		Stage:    stage,
		Status:   status,
		Error:    errMsg,
	})
}

// BroadcastJobCreated announces a newly queued job to everyone.
func (h *Hub) BroadcastJobCreated(jobID, assetID, jobType string, queuePosition int) {
	h.send("", model.JobCreatedEvent{
		Type:          model.WSTypeJobCreated,
		JobID:         jobID,
		AssetID:       assetID,
		JobType:       jobType,
		QueuePosition: queuePosition,
	})
}

// BroadcastQueueStatus pushes the aggregate counters to everyone.
func (h *Hub) BroadcastQueueStatus(qs model.QueueStatus) {
	h.send("", model.QueueStatusEvent{Type: model.WSTypeQueueStatus, QueueStatus: qs})
}

// BroadcastAssetReady announces a finished asset to everyone.
func (h *Hub) BroadcastAssetReady(asset *model.Asset) {
	h.send("", model.AssetReadyEvent{
		Type:         model.WSTypeAssetReady,
		AssetID:      asset.ID,
		Name:         asset.Name,
		ThumbnailURL: asset.ThumbnailURL,
		DownloadURL:  asset.DownloadURL,
	})
}

// BroadcastError sends an error notification to a job's subscribers.
func (h *Hub) BroadcastError(jobID, code, message string) {
	h.send(jobID, model.ErrorEvent{
		Type:    model.WSTypeError,
		Code:    code,
		Message: message,
		JobID:   jobID,
	})
}

// BroadcastRiggingProgress sends rigging progress to a job's subscribers.
func (h *Hub) BroadcastRiggingProgress(jobID, assetID string, progress float64, stage, detectedType string) {
	h.send(jobID, model.RiggingProgressEvent{
		Type:         model.WSTypeRiggingProgress,
		JobID:        jobID,
		AssetID:      assetID,
		Progress:     progress,
		Stage:        stage,
		DetectedType: detectedType,
	})
}

// BroadcastRiggingComplete announces a finished rig.
func (h *Hub) BroadcastRiggingComplete(jobID, assetID string, characterType model.CharacterType, boneCount int) {
	h.send(jobID, model.RiggingCompleteEvent{
		Type:          model.WSTypeRiggingComplete,
		JobID:         jobID,
		AssetID:       assetID,
		CharacterType: string(characterType),
		BoneCount:     boneCount,
	})
}

// BroadcastRiggingFailed announces a failed rig.
func (h *Hub) BroadcastRiggingFailed(jobID, assetID, errMsg string) {
	h.send(jobID, model.RiggingFailedEvent{
		Type:    model.WSTypeRiggingFailed,
		JobID:   jobID,
		AssetID: assetID,
		Error:   errMsg,
	})
}

// BroadcastWorkflowUpdate announces a stage change to everyone.
func (h *Hub) BroadcastWorkflowUpdate(assetID, stage, status, message string) {
	h.send("", model.WorkflowUpdateEvent{
		Type:    model.WSTypeWorkflowUpdate,
		AssetID: assetID,
		Stage:   stage,
		Status:  status,
		Message: message,
	})
}

// BroadcastPipelineStatus pushes the resource snapshot to everyone.
func (h *Hub) BroadcastPipelineStatus(ps model.PipelineStatus) {
	h.send("", model.PipelineStatusEvent{
		Type:            model.WSTypePipelineStatus,
		ShapeLoaded:     ps.ShapeLoaded,
		TextureLoaded:   ps.TextureLoaded,
		VRAMAllocatedGB: ps.VRAMAllocatedGB,
		VRAMFreeGB:      ps.VRAMFreeGB,
		VRAMTotalGB:     ps.VRAMTotalGB,
		ReadyForStage:   ps.ReadyForStage,
	})
}

// HandleConnection handles a WebSocket connection for its lifetime.
func (h *Hub) HandleConnection(c *websocket.Conn) {
	client := &Client{
		Conn: c,
		Send: make(chan []byte, 256),
		subs: make(map[string]bool),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine
	go func() {
		for message := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
		c.WriteMessage(websocket.CloseMessage, []byte{})
	}()

	// Greet with the current queue snapshot so a reconnecting UI can
	// resynchronize before any event arrives.
	h.sendStatusTo(client)

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var d model.Directive
		if err := json.Unmarshal(message, &d); err != nil {
			continue
		}

		switch d.Action {
		case model.WSActionSubscribe:
			if d.JobID != "" {
				h.mu.Lock()
				client.subs[d.JobID] = true
				h.mu.Unlock()
			}
		case model.WSActionUnsubscribe:
			if d.JobID != "" {
				h.mu.Lock()
				delete(client.subs, d.JobID)
				h.mu.Unlock()
			}
		case model.WSActionRequestStatus:
			h.sendStatusTo(client)
		case model.WSActionPing:
			pong, _ := json.Marshal(model.PongEvent{Type: model.WSTypePong})
			select {
			case client.Send <- pong:
			default:
			}
		}
	}
}

// sendStatusTo queues a queue_status frame for one client.
func (h *Hub) sendStatusTo(client *Client) {
	h.mu.RLock()
	provider := h.statusProvider
	h.mu.RUnlock()
	if provider == nil {
		return
	}
	data, err := json.Marshal(model.QueueStatusEvent{Type: model.WSTypeQueueStatus, QueueStatus: provider()})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}
