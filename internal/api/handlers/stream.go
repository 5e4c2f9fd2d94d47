package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/screener/internal/backtest"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

const (
	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	// events buffered per client before it is dropped
	clientBuffer = 256
)

// Event types on the stream
const (
	EventProgress = "progress"
	EventMatch    = "match"
	EventComplete = "complete"
)

// Event is one message pushed to stream clients
type Event struct {
	Type     string                 `json:"type"`
	RunID    string                 `json:"run_id"`
	Progress *backtest.Progress     `json:"progress,omitempty"`
	Match    *contracts.MatchResult `json:"match,omitempty"`
	Report   *CompleteEvent         `json:"report,omitempty"`
}

// CompleteEvent is the report without its result list
type CompleteEvent struct {
	RunName     string           `json:"run_name"`
	Universe    int              `json:"universe"`
	Matched     int              `json:"matched"`
	TimedOut    int              `json:"timed_out"`
	Failed      int              `json:"failed"`
	Interrupted bool             `json:"interrupted"`
	ResultPath  string           `json:"result_path,omitempty"`
	DurationMs  int64            `json:"duration_ms"`
	Summary     backtest.Summary `json:"summary"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StreamHub broadcasts backtest events to WebSocket clients
// ⭐ SSOT: 진행 상황 스트리밍은 이 허브에서만
type StreamHub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

// NewStreamHub creates a hub; register it with Engine.AddObserver
func NewStreamHub(log *logger.Logger) *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  log.WithComponent("stream"),
		clients: make(map[*streamClient]struct{}),
	}
}

// ClientCount returns the number of connected clients
func (h *StreamHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams events until the client leaves
// GET /ws/backtest
func (h *StreamHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("clients", h.ClientCount()).Debug("Stream client connected")

	go h.writeLoop(client)
	h.readLoop(client)
}

// OnProgress implements backtest.Observer
func (h *StreamHub) OnProgress(p backtest.Progress) {
	h.broadcast(Event{Type: EventProgress, RunID: p.RunID, Progress: &p})
}

// OnMatch implements backtest.Observer
func (h *StreamHub) OnMatch(runID string, match contracts.MatchResult) {
	h.broadcast(Event{Type: EventMatch, RunID: runID, Match: &match})
}

// OnComplete implements backtest.Observer
func (h *StreamHub) OnComplete(report *backtest.Report) {
	h.broadcast(Event{
		Type:  EventComplete,
		RunID: report.RunID,
		Report: &CompleteEvent{
			RunName:     report.RunName,
			Universe:    report.Universe,
			Matched:     report.Matched,
			TimedOut:    report.TimedOut,
			Failed:      report.Failed,
			Interrupted: report.Interrupted,
			ResultPath:  report.ResultPath,
			DurationMs:  report.Duration().Milliseconds(),
			Summary:     report.Summary,
		},
	})
}

// broadcast never blocks the engine; a client whose buffer is full is dropped
func (h *StreamHub) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to encode stream event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			delete(h.clients, client)
			close(client.send)
			h.logger.Warn("Dropping slow stream client")
		}
	}
}

func (h *StreamHub) remove(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// readLoop discards client messages and detects disconnects
func (h *StreamHub) readLoop(client *streamClient) {
	defer func() {
		h.remove(client)
		client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writeLoop(client *streamClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
