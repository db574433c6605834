package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"zupgo/internal/batch"
	"zupgo/internal/models"
)

const broadcastBuffer = 256

// Hub fans batch progress out to every connected websocket client.
// Sends never block a batch: messages are dropped when the buffer is full.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
}

type ProgressUpdate struct {
	Type       string `json:"type"`
	BatchID    string `json:"batchId"`
	Collection string `json:"collection"`
	Done       int    `json:"done"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Percent    int    `json:"percent"`
}

func NewProgressUpdate(p batch.Progress) *ProgressUpdate {
	percent := 100
	if p.Total > 0 {
		percent = p.Done * 100 / p.Total
	}
	return &ProgressUpdate{
		Type:       "progress",
		BatchID:    p.BatchID,
		Collection: p.Collection,
		Done:       p.Done,
		Total:      p.Total,
		Succeeded:  p.Succeeded,
		Skipped:    p.Skipped,
		Failed:     p.Failed,
		Percent:    percent,
	}
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastBuffer),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) StartTicker(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.send([]byte(`{"type": "heartbeat"}`))
		}
	}
}

// BatchProgress implements batch.Observer.
func (h *Hub) BatchProgress(p batch.Progress) {
	h.sendJSON(NewProgressUpdate(p))
}

// BatchDone is a batch.CompletionHook announcing the final counts.
func (h *Hub) BatchDone(_ context.Context, res *models.BatchResult) {
	update := NewProgressUpdate(batch.Progress{
		BatchID:    res.ID,
		Collection: res.Collection,
		Done:       res.Done(),
		Total:      res.Total,
		Succeeded:  res.Succeeded,
		Skipped:    res.Skipped,
		Failed:     len(res.Failed),
	})
	update.Type = "batch_done"
	h.sendJSON(update)
}

func (h *Hub) sendJSON(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal progress update", "error", err)
		return
	}
	h.send(msg)
}

func (h *Hub) send(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		slog.Debug("Progress update dropped, broadcast buffer full")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) WsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("Client connected", "remote_addr", r.RemoteAddr)
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		slog.Info("Client disconnected")
	}()

	waitTimeout := 60 * time.Second
	for {
		conn.SetReadDeadline(time.Now().Add(waitTimeout))
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WS read error", "error", err)
			}
			break
		}
	}
}
