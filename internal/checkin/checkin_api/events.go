package checkin_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const keepAliveInterval = 25 * time.Second

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// StreamEvents pushes admissions and resets to an operator dashboard.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.renderText(w, http.StatusInternalServerError, msgInternal)
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	eventChan := h.Events.Subscribe(ctx)

	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Dashboard connected from %s (%d clients)", h.clientAddr(r), h.Events.ClientCount()))

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-eventChan:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize event: %v", err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.EventID, evt.Type, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Dashboard disconnected from %s", h.clientAddr(r)))
			return
		}
	}
}
