package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// writeTimeout bounds each frame write so a stalled reader cannot pin the goroutine.
const writeTimeout = 60 * time.Second

// Handler streams catalog events at GET /api/v1/events.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP subscribes the caller and writes events until either side goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect()
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With(slog.String("client_id", client.ID))

	hello := map[string]string{"client_id": client.ID}
	if err := h.writeFrame(w, rc, "connected", hello); err != nil {
		log.Warn("failed to send hello frame", slog.String("error", err.Error()))
		return
	}

	// Heartbeats come from the manager's broadcast loop.
	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := h.writeFrame(w, rc, string(event.Type), event); err != nil {
				log.Info("client went away during write")
				return
			}
		case <-client.Done:
			log.Info("client closed by manager")
			return
		case <-ctx.Done():
			log.Info("client context canceled")
			return
		}
	}
}

// writeFrame writes "event: <type>\ndata: <json>\n\n" and flushes it.
func (h *Handler) writeFrame(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		// httptest recorders and some proxies do not support deadlines.
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}
