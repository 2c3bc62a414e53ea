package interfaces

import (
	"encoding/json"
	"net/http"

	"tienda-cloud/internal/notify"
	"tienda-cloud/internal/observability/metrics"
)

// handleStream bridges a notification topic onto a server-sent event
// stream. Delivery is at-most-once: a client that cannot keep up loses
// events and must re-poll the session state on reconnect.
func (h *DiscountHandler) handleStream(w http.ResponseWriter, r *http.Request, topic string) {
	if h.channel == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 16)
	unsubscribe := h.channel.Subscribe(topic, func(event any) {
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		select {
		case ch <- payload:
		default:
		}
	})
	defer unsubscribe()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	done := r.Context().Done()
	for {
		select {
		case payload := <-ch:
			_, _ = w.Write([]byte("event: discount\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
			metrics.CountNotifyDelivered(topicKind(topic))
		case <-done:
			return
		}
	}
}

func topicKind(topic string) string {
	if topic == "" {
		return "unknown"
	}
	if topic == notify.TopicPendingRequests {
		return "pending"
	}
	return "session"
}
